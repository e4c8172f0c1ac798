// Package principal models the stored user record and reconciles its three
// historically-accreted class membership representations.
//
// # Overview
//
// A principal record carries class membership facts in up to three shapes:
//
//	class_memberships   - list of {class_id, role, assigned_at, assigned_by}
//	                      (current standard; legacy records store a map here)
//	classRoles          - map class_id -> role (older intermediate shape)
//	accessible_classes  - bare list of class_id (oldest shape, role inferred)
//
// Decoding is a single tolerant boundary step: a representation that is not
// the expected container type is treated as absent, never raised as an error,
// because historical data is known to be inconsistent. Unknown document
// fields are preserved opaquely so round-tripping a record is lossless.
//
// # Normalization
//
// Normalize selects one source of truth in priority order (membership list,
// membership map, classRoles, accessible_classes) and regenerates the two
// legacy shapes by projection. The first non-empty source wins outright;
// lower-priority sources are never merged in, so a membership a higher
// shape intentionally dropped cannot silently reappear. Normalize is
// idempotent.
//
// Check reports divergences among the three shapes without mutating
// anything; callers decide whether to normalize.
package principal
