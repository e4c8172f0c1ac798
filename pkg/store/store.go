package store

import (
	"context"
	"errors"
	"time"

	"github.com/classworks/rosterd/pkg/principal"
)

// ErrNotFound indicates that no record exists for the requested principal.
var ErrNotFound = errors.New("store: principal not found")

// PrincipalStore is the keyed document store for principal records.
type PrincipalStore interface {
	// Get fetches a principal record by ID. Returns ErrNotFound when the
	// record does not exist.
	Get(ctx context.Context, id string) (*principal.Principal, error)

	// Upsert writes the full record, replacing any existing document.
	Upsert(ctx context.Context, p *principal.Principal) error

	// ForEach iterates every principal record. Used only by batch
	// processes, never on the request path. Iteration stops early if fn
	// returns an error.
	ForEach(ctx context.Context, fn func(*principal.Principal) error) error
}

// Modification is one content-modification event from the quiz change log:
// actor edited a quiz belonging to class.
type Modification struct {
	ActorID   string
	ClassID   string
	Timestamp time.Time
}

// EnrollmentCount aggregates answer submissions for one (student, class)
// pair.
type EnrollmentCount struct {
	StudentID   string
	ClassID     string
	Submissions int
}

// ActivityLog is the read-only evidence source for the backfill heuristics.
// The schema behind it is owned by the surrounding system.
type ActivityLog interface {
	// QuizModifications returns every content-modification event with an
	// identifiable actor and class.
	QuizModifications(ctx context.Context) ([]Modification, error)

	// SubmissionCounts returns (student, class) pairs with at least
	// minSubmissions recorded answers.
	SubmissionCounts(ctx context.Context, minSubmissions int) ([]EnrollmentCount, error)
}
