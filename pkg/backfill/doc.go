// Package backfill reconstructs class memberships for user records that
// predate the structured membership list.
//
// Two heuristics run as batch jobs, never on the request path:
//
//   - Authorship: users who edited quiz content for a class were managing
//     it. An explicit recorded role is kept when the user actually modified
//     content; a recorded role with no modification evidence means they only
//     took the class and becomes student; modification evidence with no
//     recorded role becomes instructor.
//
//   - Enrollment: a (student, course) pair with enough answer submissions
//     and no existing membership of any role gets a student membership.
//     Submission volume is evidence of enrollment, never of demotion.
//
// Both heuristics are idempotent: a record that already carries a canonical
// membership list is skipped, so re-running a partially completed batch is
// safe. Every engine supports a dry-run mode that reports the planned writes
// without persisting them, and per-record failures accumulate in the report
// instead of aborting the batch.
//
// The consistency audit walks all records, reports shape disagreements, and
// optionally rewrites flagged records through the normalizer.
package backfill
