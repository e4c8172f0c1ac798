package roster

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/classworks/rosterd/pkg/authz"
	"github.com/classworks/rosterd/pkg/httputil"
	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/rbac"
)

// Handlers exposes the roster service over HTTP.
type Handlers struct {
	service *Service
	engine  *authz.Engine
}

// NewHandlers creates HTTP handlers backed by the service.
func NewHandlers(service *Service, engine *authz.Engine) *Handlers {
	return &Handlers{service: service, engine: engine}
}

// RegisterRoutes mounts the roster API onto the router. Callers are expected
// to have installed an authentication middleware that attaches the principal
// to the request context.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	members := r.PathPrefix("/v1/classes/{class_id}/members").Subrouter()

	staff := authz.RequireClassRole(h.engine, "class_id", rbac.RoleInstructor, rbac.RoleTA)
	manage := authz.RequireCapability(h.engine, rbac.CapManageMembers, "class_id")

	members.Handle("", staff(http.HandlerFunc(h.listMembers))).Methods(http.MethodGet)
	members.Handle("", manage(http.HandlerFunc(h.assignRole))).Methods(http.MethodPost)
	members.Handle("/{user_id}", manage(http.HandlerFunc(h.updateRole))).Methods(http.MethodPut)
	members.Handle("/{user_id}", manage(http.HandlerFunc(h.removeRole))).Methods(http.MethodDelete)

	r.HandleFunc("/v1/users/{user_id}/roles", h.setGlobalRoles).Methods(http.MethodPut)
	r.HandleFunc("/v1/users/{user_id}/classes", h.listClasses).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{user_id}", h.getPrincipal).Methods(http.MethodGet)
}

func (h *Handlers) listMembers(w http.ResponseWriter, r *http.Request) {
	classID := mux.Vars(r)["class_id"]
	members, err := h.service.ListMembers(r.Context(), classID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"class_id": classID,
		"members":  members,
	})
}

type assignRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handlers) assignRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.PrincipalFromContext(r.Context())
	classID := mux.Vars(r)["class_id"]

	var req assignRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") {
		return
	}

	updated, err := h.service.AssignRole(r.Context(), actor.ID, req.UserID, classID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, membershipView(updated, classID))
}

type updateRequest struct {
	Role string `json:"role"`
}

func (h *Handlers) updateRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.PrincipalFromContext(r.Context())
	vars := mux.Vars(r)

	var req updateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateRole(r.Context(), actor.ID, vars["user_id"], vars["class_id"], req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, membershipView(updated, vars["class_id"]))
}

func (h *Handlers) removeRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.PrincipalFromContext(r.Context())
	vars := mux.Vars(r)

	if _, err := h.service.RemoveRole(r.Context(), actor.ID, vars["user_id"], vars["class_id"]); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type globalRolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *Handlers) setGlobalRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	// Global role changes are reserved for admins.
	if !actor.IsAdmin() {
		httputil.WriteForbidden(w, "admin role required")
		return
	}

	var req globalRolesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := h.service.SetGlobalRoles(r.Context(), actor.ID, mux.Vars(r)["user_id"], req.Roles)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id": updated.ID,
		"roles":   updated.Roles,
	})
}

// listClasses returns the classes where the user holds at least the role
// named by the min_role query parameter, defaulting to ta so the bare call
// answers "which classes does this user help run".
func (h *Handlers) listClasses(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	targetID := mux.Vars(r)["user_id"]
	if !actor.IsAdmin() && actor.ID != targetID {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	minRole := rbac.NormalizeRole(r.URL.Query().Get("min_role"))
	if r.URL.Query().Get("min_role") == "" {
		minRole = rbac.RoleTA
	}
	if !rbac.IsClassAssignable(string(minRole)) {
		httputil.WriteBadRequest(w, "min_role must be a class role")
		return
	}

	target, err := h.service.fetch(r.Context(), targetID)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user_id":  targetID,
		"min_role": minRole,
		"classes":  principal.ClassesWithRoleAtLeast(target, minRole),
	})
}

func (h *Handlers) getPrincipal(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	targetID := mux.Vars(r)["user_id"]
	if !actor.IsAdmin() && actor.ID != targetID {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	target, err := h.service.fetch(r.Context(), targetID)
	if err != nil {
		writeError(w, err)
		return
	}

	normalized := principal.Normalize(target)
	consistent, issues := principal.Check(target)
	httputil.WriteSuccess(w, map[string]interface{}{
		"principal":  normalized,
		"consistent": consistent,
		"issues":     issues,
	})
}

func membershipView(p *principal.Principal, classID string) map[string]interface{} {
	view := map[string]interface{}{
		"user_id":  p.ID,
		"class_id": classID,
	}
	for _, m := range p.ClassMemberships {
		if m.ClassID == classID {
			view["role"] = m.Role
			view["assigned_at"] = m.AssignedAt
			view["assigned_by"] = m.AssignedBy
		}
	}
	return view
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRole):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, ErrSelfModification):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, ErrPrincipalNotFound), errors.Is(err, ErrMembershipNotFound):
		httputil.WriteNotFound(w, err.Error())
	default:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}
