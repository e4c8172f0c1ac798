// Package audit records authorization decisions, roster mutations, and
// backfill writes as structured events.
//
// # Event Types
//
// Authorization: authz.decision, authz.access_denied
// Roster: roster.member_add, roster.member_role_change, roster.member_remove,
// roster.global_role_change
// Backfill: backfill.membership_write, backfill.skip, backfill.consistency_fix
//
// # Usage
//
// Record a roster mutation:
//
//	audit.LogMembershipChange(ctx, logger,
//		audit.EventTypeRosterMemberAdd, actorID, targetID, classID, "ta")
//
// Fan out to a file plus memory:
//
//	logger := audit.NewMultiLogger(fileLogger, audit.NewMemoryLogger())
//
// Events carry a uuid, UTC timestamp, actor and target user IDs, the class
// scope, and free-form metadata.
package audit
