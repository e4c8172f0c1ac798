// Package auth attaches the caller's identity to incoming requests.
//
// rosterd runs behind a gateway that terminates authentication and
// forwards the verified user ID in the X-User-ID header. This package
// turns that header into a principal record loaded from the store; it
// does not verify credentials itself.
package auth

import (
	"errors"
	"net/http"

	"github.com/classworks/rosterd/pkg/authz"
	"github.com/classworks/rosterd/pkg/httputil"
	"github.com/classworks/rosterd/pkg/observability"
	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/store"
)

// IdentityHeader carries the verified user ID set by the gateway.
const IdentityHeader = "X-User-ID"

// IdentityMiddleware resolves the caller's principal from the identity
// header and stores it in the request context.
type IdentityMiddleware struct {
	store  store.PrincipalStore
	logger *observability.Logger
	// If true, requests without an identity header pass through without
	// a principal and fail later at the authorization check.
	optional bool
}

// NewIdentityMiddleware creates an identity middleware backed by the
// given principal store.
func NewIdentityMiddleware(ps store.PrincipalStore, logger *observability.Logger, optional bool) *IdentityMiddleware {
	return &IdentityMiddleware{
		store:    ps,
		logger:   logger,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with identity resolution.
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(IdentityHeader)
		if userID == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing identity header")
			return
		}

		p, err := m.store.Get(r.Context(), userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Known to the gateway but not to us yet. A bare record
			// carries no roles, so authorization denies by default.
			p = &principal.Principal{ID: userID}
		case err != nil:
			m.logger.WithError(err).WithField("user_id", userID).Error("Failed to load principal")
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "identity lookup failed")
			return
		}

		ctx := authz.WithPrincipal(r.Context(), p)
		ctx = observability.WithUserID(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
