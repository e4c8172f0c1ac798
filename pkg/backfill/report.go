package backfill

import (
	"fmt"
	"sort"
	"strings"

	"github.com/classworks/rosterd/pkg/rbac"
)

// Options controls a backfill run.
type Options struct {
	// DryRun computes and reports planned writes without persisting.
	DryRun bool

	// MinSubmissions is the answer-count threshold for the enrollment
	// heuristic. Zero means the default of 5.
	MinSubmissions int
}

// DefaultMinSubmissions is the enrollment evidence threshold.
const DefaultMinSubmissions = 5

// PlannedWrite is one membership a heuristic intends to create or rewrite.
type PlannedWrite struct {
	UserID  string    `json:"user_id"`
	ClassID string    `json:"class_id"`
	Role    rbac.Role `json:"role"`
	Reason  string    `json:"reason"`
}

// RecordError is a per-record failure that did not abort the batch.
type RecordError struct {
	UserID string `json:"user_id"`
	Err    string `json:"error"`
}

// Report summarizes a backfill run.
type Report struct {
	Heuristic    string         `json:"heuristic"`
	DryRun       bool           `json:"dry_run"`
	Scanned      int            `json:"scanned"`
	UsersUpdated int            `json:"users_updated"`
	Written      int            `json:"memberships_written"`
	Skipped      map[string]int `json:"skipped"`
	Planned      []PlannedWrite `json:"planned,omitempty"`
	Errors       []RecordError  `json:"errors,omitempty"`
}

func newReport(heuristic string, dryRun bool) *Report {
	return &Report{
		Heuristic: heuristic,
		DryRun:    dryRun,
		Skipped:   make(map[string]int),
	}
}

func (r *Report) skip(reason string) {
	r.Skipped[reason]++
}

func (r *Report) recordError(userID string, err error) {
	r.Errors = append(r.Errors, RecordError{UserID: userID, Err: err.Error()})
}

// Summary renders a one-paragraph human-readable account of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	mode := "live"
	if r.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(&b, "%s (%s): scanned %d, updated %d users, wrote %d memberships",
		r.Heuristic, mode, r.Scanned, r.UsersUpdated, r.Written)

	if len(r.Skipped) > 0 {
		reasons := make([]string, 0, len(r.Skipped))
		for reason := range r.Skipped {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		parts := make([]string, 0, len(reasons))
		for _, reason := range reasons {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, r.Skipped[reason]))
		}
		fmt.Fprintf(&b, ", skipped %s", strings.Join(parts, " "))
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, ", %d errors", len(r.Errors))
	}
	return b.String()
}
