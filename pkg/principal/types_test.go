package principal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, doc string) *Principal {
	t.Helper()
	var p Principal
	require.NoError(t, json.Unmarshal([]byte(doc), &p))
	return &p
}

func TestDecodeListShape(t *testing.T) {
	p := decode(t, `{
		"id": "jdoe1",
		"email": "jdoe1@example.edu",
		"roles": ["instructor"],
		"class_memberships": [
			{"class_id": "cda", "role": "instructor", "assigned_at": "2024-01-05T10:00:00Z", "assigned_by": "admin1"},
			{"class_id": "fhir22", "role": "ta"}
		]
	}`)

	assert.Equal(t, "jdoe1", p.ID)
	assert.Equal(t, []string{"instructor"}, p.Roles)
	require.Len(t, p.ClassMemberships, 2)
	assert.Equal(t, "cda", p.ClassMemberships[0].ClassID)
	assert.Equal(t, "admin1", p.ClassMemberships[0].AssignedBy)
	assert.False(t, p.membershipsFromMap)
}

func TestDecodeMapShape(t *testing.T) {
	p := decode(t, `{
		"id": "u1",
		"class_memberships": {
			"fhir22": "instructor",
			"cda": {"role": "ta"}
		}
	}`)

	require.Len(t, p.ClassMemberships, 2)
	assert.True(t, p.membershipsFromMap)
	// Map-derived entries are ordered by class_id for determinism.
	assert.Equal(t, "cda", p.ClassMemberships[0].ClassID)
	assert.Equal(t, "ta", p.ClassMemberships[0].Role)
	assert.Equal(t, "fhir22", p.ClassMemberships[1].ClassID)
	assert.Equal(t, "instructor", p.ClassMemberships[1].Role)
}

func TestDecodeNestedClassRoles(t *testing.T) {
	p := decode(t, `{"id": "u1", "classRoles": {"cda": {"role": "instructor"}, "fhir22": "student"}}`)

	assert.Equal(t, "instructor", p.ClassRoles["cda"])
	assert.Equal(t, "student", p.ClassRoles["fhir22"])
}

func TestDecodeMalformedShapesTreatedAsEmpty(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"memberships as number", `{"id": "u1", "class_memberships": 42}`},
		{"memberships as string", `{"id": "u1", "class_memberships": "cda"}`},
		{"classRoles as list", `{"id": "u1", "classRoles": ["cda"]}`},
		{"accessible as object", `{"id": "u1", "accessible_classes": {"cda": true}}`},
		{"roles as object", `{"id": "u1", "roles": {"admin": true}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := decode(t, tt.doc)
			assert.Empty(t, p.ClassMemberships)
			assert.Empty(t, p.ClassRoles)
			assert.Empty(t, p.AccessibleClasses)
		})
	}
}

func TestDecodeRolesBareString(t *testing.T) {
	p := decode(t, `{"id": "u1", "roles": "admin"}`)
	assert.Equal(t, []string{"admin"}, p.Roles)
	assert.True(t, p.IsAdmin())
}

func TestDecodeSkipsEntriesWithoutClassID(t *testing.T) {
	p := decode(t, `{"id": "u1", "class_memberships": [{"role": "ta"}, {"class_id": "cda", "role": "ta"}]}`)
	require.Len(t, p.ClassMemberships, 1)
	assert.Equal(t, "cda", p.ClassMemberships[0].ClassID)
}

func TestRoundTripPreservesUnknownFields(t *testing.T) {
	p := decode(t, `{
		"id": "u1",
		"roles": [],
		"quiz_history": [{"quiz": "q1", "score": 10}],
		"preferences": {"theme": "dark"},
		"class_memberships": [{"class_id": "cda", "role": "student"}]
	}`)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "quiz_history")
	assert.Contains(t, doc, "preferences")
	assert.Contains(t, doc, "classRoles")
	assert.Contains(t, doc, "accessible_classes")
}

func TestHasGlobalRoleCaseInsensitive(t *testing.T) {
	p := &Principal{Roles: []string{"Instructor"}, LegacyRole: "Admin"}
	assert.True(t, p.HasGlobalRole("instructor"))
	assert.True(t, p.HasGlobalRole("admin"))
	assert.True(t, p.IsAdmin())
	assert.False(t, p.HasGlobalRole("ta"))
}

func TestHasMembershipData(t *testing.T) {
	assert.False(t, (&Principal{ID: "u1"}).HasMembershipData())
	assert.True(t, (&Principal{AccessibleClasses: []string{"cda"}}).HasMembershipData())
	assert.True(t, (&Principal{ClassRoles: map[string]string{"cda": "ta"}}).HasMembershipData())
}

func TestCloneIsDeep(t *testing.T) {
	p := &Principal{
		ID:               "u1",
		Roles:            []string{"instructor"},
		ClassMemberships: []Membership{{ClassID: "cda", Role: "ta"}},
		ClassRoles:       map[string]string{"cda": "ta"},
	}
	c := p.Clone()
	c.Roles[0] = "student"
	c.ClassMemberships[0].Role = "instructor"
	c.ClassRoles["cda"] = "instructor"

	assert.Equal(t, "instructor", p.Roles[0])
	assert.Equal(t, "ta", p.ClassMemberships[0].Role)
	assert.Equal(t, "ta", p.ClassRoles["cda"])
}
