// Package store provides the principal document store and the read-only
// activity log views consumed by the backfill engine.
//
// # Overview
//
// Principals live in a document-style `users` table: one row per principal
// with the full record as a JSONB column. Writes always replace the whole
// document, never a fragment of it, so every membership-shape mutation is a
// pure function of the complete current record and the three legacy shapes
// cannot diverge through partial updates.
//
// Implementations:
//
//	SQLStore     - PostgreSQL-backed (database/sql, lib/pq placeholders)
//	MemoryStore  - in-process map, used by tests and the decision engine's
//	               read-through hook in examples
//	CachedStore  - read-through LRU (L1) + Redis (L2) wrapper around any
//	               PrincipalStore
//
// The activity log views scan the quiz and answer tables for the two
// backfill heuristics: who modified which class's quizzes, and how many
// answers each (student, class) pair submitted.
package store
