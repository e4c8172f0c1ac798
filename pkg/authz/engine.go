package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classworks/rosterd/pkg/audit"
	"github.com/classworks/rosterd/pkg/observability"
	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/rbac"
	"github.com/classworks/rosterd/pkg/store"
)

// Decision is the result of a permission check.
type Decision struct {
	// Allowed reports whether the capability is granted.
	Allowed bool

	// Reason is a human-readable explanation of the outcome.
	Reason string

	// Role is the class role the decision was based on, empty when the
	// grant came from a global role or the user has no class role.
	Role rbac.Role

	// Source identifies what granted or denied: "admin", "class_role",
	// "global_role", or "none".
	Source string
}

// Engine evaluates capability checks. The store is optional and used for a
// single read-through when a principal carries no membership data; logger,
// metrics, and auditor may be nil.
type Engine struct {
	store   store.PrincipalStore
	logger  *observability.Logger
	metrics *observability.Metrics
	auditor audit.Logger
}

// NewEngine creates a decision engine.
func NewEngine(ps store.PrincipalStore, logger *observability.Logger, metrics *observability.Metrics, auditor audit.Logger) *Engine {
	return &Engine{store: ps, logger: logger, metrics: metrics, auditor: auditor}
}

// HasPermission reports whether p may perform capability in the given class.
//
// The decision order is fixed: a global admin is allowed immediately, then
// the user's role in the class is resolved and checked, then each global
// role is checked, and otherwise the request is denied. Role resolution for
// the class reads the raw membership fields in priority order, so a stale
// projection cannot grant more than its source shape.
func (e *Engine) HasPermission(ctx context.Context, p *principal.Principal, capability rbac.Capability, classID string) Decision {
	start := time.Now()
	p = e.ensureMemberships(ctx, p)

	d := e.evaluate(p, capability, classID)

	e.record(ctx, p, capability, classID, d, time.Since(start))
	return d
}

func (e *Engine) evaluate(p *principal.Principal, capability rbac.Capability, classID string) Decision {
	if p == nil {
		return Decision{Reason: "no authenticated user", Source: "none"}
	}

	if p.IsAdmin() {
		return Decision{
			Allowed: true,
			Reason:  "granted by admin role",
			Role:    rbac.RoleAdmin,
			Source:  "admin",
		}
	}

	var classRole rbac.Role
	hasClassRole := false
	if classID != "" {
		classRole, hasClassRole = principal.RoleForClass(p, classID)
	}
	if hasClassRole {
		if rbac.Resolve(string(classRole)).Has(capability) {
			return Decision{
				Allowed: true,
				Reason:  fmt.Sprintf("granted by class role %s in %s", classRole, classID),
				Role:    classRole,
				Source:  "class_role",
			}
		}
		// A held class role that lacks the capability denies without
		// consulting global roles.
		return Decision{
			Reason: fmt.Sprintf("capability %s not granted to role %s in class %s", capability, classRole, classID),
			Role:   classRole,
			Source: "none",
		}
	}

	for _, name := range globalRoles(p) {
		role := rbac.NormalizeRole(name)
		if rbac.Resolve(string(role)).Has(capability) {
			return Decision{
				Allowed: true,
				Reason:  fmt.Sprintf("granted by global role %s", role),
				Source:  "global_role",
			}
		}
	}

	if classID != "" {
		return Decision{
			Reason: fmt.Sprintf("no role in class %s and no global grant for capability %s", classID, capability),
			Source: "none",
		}
	}
	return Decision{
		Reason: fmt.Sprintf("no global grant for capability %s", capability),
		Source: "none",
	}
}

// HasClassRole reports whether p holds one of the allowed roles in the
// class. The match is exact: instructor does not satisfy a ta requirement.
// A global admin always passes.
func (e *Engine) HasClassRole(ctx context.Context, p *principal.Principal, classID string, allowed ...rbac.Role) Decision {
	p = e.ensureMemberships(ctx, p)

	if p == nil {
		return Decision{Reason: "no authenticated user", Source: "none"}
	}

	if p.IsAdmin() {
		return Decision{
			Allowed: true,
			Reason:  "granted by admin role",
			Role:    rbac.RoleAdmin,
			Source:  "admin",
		}
	}

	classRole, ok := principal.RoleForClass(p, classID)
	if !ok {
		return Decision{
			Reason: fmt.Sprintf("no role in class %s", classID),
			Source: "none",
		}
	}

	for _, want := range allowed {
		if classRole == want {
			return Decision{
				Allowed: true,
				Reason:  fmt.Sprintf("granted by class role %s in %s", classRole, classID),
				Role:    classRole,
				Source:  "class_role",
			}
		}
	}

	return Decision{
		Reason: fmt.Sprintf("class role %s in %s is not one of the required roles", classRole, classID),
		Role:   classRole,
		Source: "none",
	}
}

// ensureMemberships performs at most one store read, and only when the
// principal carries none of the membership fields.
func (e *Engine) ensureMemberships(ctx context.Context, p *principal.Principal) *principal.Principal {
	if p == nil || p.HasMembershipData() || e.store == nil {
		return p
	}

	if e.metrics != nil {
		e.metrics.AuthzStoreLookups.Inc()
	}

	fetched, err := e.store.Get(ctx, p.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && e.logger != nil {
			e.logger.WithError(err).WithField("user_id", p.ID).
				Warn("principal lookup failed, deciding on in-memory data")
		}
		return p
	}

	// Identity attributes from the caller win; membership fields come
	// from the stored record.
	merged := fetched.Clone()
	if len(merged.Roles) == 0 {
		merged.Roles = append([]string(nil), p.Roles...)
	}
	if merged.LegacyRole == "" {
		merged.LegacyRole = p.LegacyRole
	}
	return merged
}

func (e *Engine) record(ctx context.Context, p *principal.Principal, capability rbac.Capability, classID string, d Decision, elapsed time.Duration) {
	if e.metrics != nil {
		outcome := "deny"
		if d.Allowed {
			outcome = "allow"
		}
		e.metrics.AuthzDecisionsTotal.WithLabelValues(outcome, d.Source).Inc()
		e.metrics.AuthzDecisionDuration.Observe(elapsed.Seconds())
	}

	if e.logger != nil {
		entry := e.logger.
			WithField("capability", string(capability)).
			WithField("class_id", classID).
			WithField("allowed", d.Allowed).
			WithField("source", d.Source)
		if p != nil {
			entry = entry.WithField("user_id", p.ID)
		}
		if d.Allowed {
			entry.Debug(d.Reason)
		} else {
			entry.Info(d.Reason)
		}
	}

	if e.auditor != nil {
		actorID := ""
		if p != nil {
			actorID = p.ID
		}
		_ = audit.LogDecision(ctx, e.auditor, actorID, classID, string(capability), d.Allowed, d.Reason)
	}
}

func globalRoles(p *principal.Principal) []string {
	names := make([]string, 0, len(p.Roles)+1)
	names = append(names, p.Roles...)
	if p.LegacyRole != "" {
		names = append(names, p.LegacyRole)
	}
	return names
}
