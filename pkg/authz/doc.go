// Package authz evaluates capability checks against class-scoped roles.
//
// The engine answers one question: may this user perform this capability in
// this class. Decisions follow a fixed order: global admin short-circuit,
// then the user's class role, then global roles, then deny. Evaluation is
// pure given the principal's membership data; at most one store read is
// performed, and only when the principal carries no membership fields at all.
//
//	engine := authz.NewEngine(store, logger, metrics, auditLogger)
//	decision := engine.HasPermission(ctx, p, rbac.CapManageMembers, "cda")
//	if !decision.Allowed {
//		// decision.Reason explains the denial
//	}
//
// HTTP handlers use the middleware wrappers:
//
//	r.Handle("/classes/{class_id}/members",
//		authz.RequireCapability(engine, rbac.CapManageMembers, "class_id")(handler))
package authz
