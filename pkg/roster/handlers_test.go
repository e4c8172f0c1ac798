package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classworks/rosterd/pkg/authz"
	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/store"
)

func newTestRouter(t *testing.T) (*mux.Router, *store.MemoryStore) {
	t.Helper()
	backing := store.NewMemoryStore()
	svc := NewService(backing, nil, nil, nil)
	engine := authz.NewEngine(backing, nil, nil, nil)
	handlers := NewHandlers(svc, engine)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	return router, backing
}

func doAs(router *mux.Router, p *principal.Principal, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if p != nil {
		req = req.WithContext(authz.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func instructorOf(classID string) *principal.Principal {
	return &principal.Principal{
		ID: "i1",
		ClassMemberships: []principal.Membership{
			{ClassID: classID, Role: "instructor"},
		},
	}
}

func TestAssignRoleEndpoint(t *testing.T) {
	router, backing := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{ID: "s1"}))

	rec := doAs(router, instructorOf("cda"), http.MethodPost, "/v1/classes/cda/members",
		map[string]string{"user_id": "s1", "role": "ta"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	stored, err := backing.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "ta", stored.ClassRoles["cda"])
}

func TestAssignRoleEndpointForbiddenForTA(t *testing.T) {
	router, backing := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{ID: "s1"}))

	ta := &principal.Principal{
		ID: "t1",
		ClassMemberships: []principal.Membership{
			{ClassID: "cda", Role: "ta"},
		},
	}
	rec := doAs(router, ta, http.MethodPost, "/v1/classes/cda/members",
		map[string]string{"user_id": "s1", "role": "student"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAssignRoleEndpointInvalidRole(t *testing.T) {
	router, backing := newTestRouter(t)
	require.NoError(t, backing.Upsert(context.Background(), &principal.Principal{ID: "s1"}))

	rec := doAs(router, instructorOf("cda"), http.MethodPost, "/v1/classes/cda/members",
		map[string]string{"user_id": "s1", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMembersEndpointAllowsTA(t *testing.T) {
	router, backing := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{
		ID: "s1",
		ClassMemberships: []principal.Membership{
			{ClassID: "cda", Role: "student"},
		},
	}))

	ta := &principal.Principal{
		ID: "t1",
		ClassMemberships: []principal.Membership{
			{ClassID: "cda", Role: "ta"},
		},
	}
	rec := doAs(router, ta, http.MethodGet, "/v1/classes/cda/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Members []Member `json:"members"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Members, 2)
}

func TestRemoveRoleEndpoint(t *testing.T) {
	router, backing := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{
		ID: "s1",
		ClassMemberships: []principal.Membership{
			{ClassID: "cda", Role: "student"},
		},
	}))

	rec := doAs(router, instructorOf("cda"), http.MethodDelete, "/v1/classes/cda/members/s1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doAs(router, instructorOf("cda"), http.MethodDelete, "/v1/classes/cda/members/s1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetGlobalRolesEndpointAdminOnly(t *testing.T) {
	router, backing := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{ID: "u1"}))

	rec := doAs(router, instructorOf("cda"), http.MethodPut, "/v1/users/u1/roles",
		map[string][]string{"roles": {"instructor"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := &principal.Principal{ID: "a1", Roles: []string{"admin"}}
	rec = doAs(router, admin, http.MethodPut, "/v1/users/u1/roles",
		map[string][]string{"roles": {"instructor"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListClassesEndpoint(t *testing.T) {
	router, backing := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{
		ID: "u1",
		ClassMemberships: []principal.Membership{
			{ClassID: "cda", Role: "instructor"},
			{ClassID: "fhir22", Role: "ta"},
			{ClassID: "ohdsi24", Role: "student"},
		},
	}))

	self := &principal.Principal{ID: "u1"}
	rec := doAs(router, self, http.MethodGet, "/v1/users/u1/classes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Classes []string `json:"classes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"cda", "fhir22"}, body.Classes)

	rec = doAs(router, self, http.MethodGet, "/v1/users/u1/classes?min_role=student", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Classes, 3)

	rec = doAs(router, self, http.MethodGet, "/v1/users/u1/classes?min_role=admin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	other := &principal.Principal{ID: "u2"}
	rec = doAs(router, other, http.MethodGet, "/v1/users/u1/classes", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetPrincipalEndpoint(t *testing.T) {
	router, backing := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{
		ID:         "u1",
		ClassRoles: map[string]string{"cda": "ta"},
	}))

	// self access allowed
	self := &principal.Principal{ID: "u1"}
	rec := doAs(router, self, http.MethodGet, "/v1/users/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Consistent bool     `json:"consistent"`
		Issues     []string `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Consistent)
	assert.NotEmpty(t, body.Issues)

	// another non-admin user is forbidden
	other := &principal.Principal{ID: "u2"}
	rec = doAs(router, other, http.MethodGet, "/v1/users/u1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
