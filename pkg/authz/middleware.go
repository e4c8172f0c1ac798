package authz

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/classworks/rosterd/pkg/httputil"
	"github.com/classworks/rosterd/pkg/rbac"
)

// RequireCapability wraps a handler with a capability check. The class scope
// is read from the named mux route variable; pass an empty name for checks
// with no class scope.
func RequireCapability(engine *Engine, capability rbac.Capability, classIDVar string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			classID := ""
			if classIDVar != "" {
				classID = mux.Vars(r)[classIDVar]
			}

			decision := engine.HasPermission(r.Context(), p, capability, classID)
			if !decision.Allowed {
				httputil.WriteDenied(w, http.StatusForbidden, "permission denied", decision.Reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireClassRole wraps a handler with an exact class-role check against an
// allow-list. Inheritance is not expanded; an instructor does not satisfy a
// ta-only list unless instructor is in the list.
func RequireClassRole(engine *Engine, classIDVar string, allowed ...rbac.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			classID := mux.Vars(r)[classIDVar]
			decision := engine.HasClassRole(r.Context(), p, classID, allowed...)
			if !decision.Allowed {
				httputil.WriteDenied(w, http.StatusForbidden, "permission denied", decision.Reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
