package backfill

import (
	"context"
	"errors"
	"time"

	"github.com/classworks/rosterd/pkg/audit"
	"github.com/classworks/rosterd/pkg/observability"
	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/rbac"
	"github.com/classworks/rosterd/pkg/store"
)

// EnrollmentActor is recorded as assigned_by on memberships written by the
// enrollment heuristic.
const EnrollmentActor = "enrollment-backfill"

// EnrollmentEngine backfills student memberships from answer submissions.
type EnrollmentEngine struct {
	store    store.PrincipalStore
	activity store.ActivityLog
	logger   *observability.Logger
	metrics  *observability.Metrics
	auditor  audit.Logger
	now      func() time.Time
}

// NewEnrollmentEngine creates the enrollment backfill engine. Logger,
// metrics, and auditor may be nil.
func NewEnrollmentEngine(ps store.PrincipalStore, activity store.ActivityLog, logger *observability.Logger, metrics *observability.Metrics, auditor audit.Logger) *EnrollmentEngine {
	return &EnrollmentEngine{
		store:    ps,
		activity: activity,
		logger:   logger,
		metrics:  metrics,
		auditor:  auditor,
		now:      time.Now,
	}
}

// Run scans the submission log for (student, course) pairs at or above the
// threshold and writes a student membership for each pair where the student
// has no membership of any role. Existing instructor and ta roles are never
// overwritten.
func (e *EnrollmentEngine) Run(ctx context.Context, opts Options) (*Report, error) {
	start := e.now()
	report := newReport("enrollment", opts.DryRun)

	minSubmissions := opts.MinSubmissions
	if minSubmissions <= 0 {
		minSubmissions = DefaultMinSubmissions
	}

	counts, err := e.activity.SubmissionCounts(ctx, minSubmissions)
	if err != nil {
		return nil, err
	}

	for _, c := range counts {
		report.Scanned++
		if IsPlaceholder(c.StudentID) {
			report.skip("placeholder_username")
			continue
		}
		if err := e.enroll(ctx, c, opts, report); err != nil {
			report.recordError(c.StudentID, err)
		}
	}

	if e.metrics != nil {
		mode := "live"
		if opts.DryRun {
			mode = "dry-run"
		}
		e.metrics.BackfillRunsTotal.WithLabelValues("enrollment", mode).Inc()
		e.metrics.BackfillRunDuration.WithLabelValues("enrollment").Observe(e.now().Sub(start).Seconds())
	}
	if e.logger != nil {
		e.logger.Info(report.Summary())
	}
	return report, nil
}

func (e *EnrollmentEngine) enroll(ctx context.Context, c store.EnrollmentCount, opts Options, report *Report) error {
	p, err := e.store.Get(ctx, c.StudentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			report.skip("user_not_found")
			return nil
		}
		return err
	}

	if role, ok := principal.RoleForClass(p, c.ClassID); ok {
		// Submission volume never changes an existing membership.
		report.skip("already_" + string(role))
		return nil
	}

	report.Planned = append(report.Planned, PlannedWrite{
		UserID:  c.StudentID,
		ClassID: c.ClassID,
		Role:    rbac.RoleStudent,
		Reason:  "submissions above threshold with no membership",
	})
	report.Written++
	report.UsersUpdated++

	if e.logger != nil {
		e.logger.WithFields(map[string]interface{}{
			"heuristic":   "enrollment",
			"user_id":     c.StudentID,
			"class_id":    c.ClassID,
			"submissions": c.Submissions,
			"dry_run":     opts.DryRun,
		}).Info("membership backfill planned")
	}

	if opts.DryRun {
		return nil
	}

	updated := principal.AddMembership(p, c.ClassID, string(rbac.RoleStudent), EnrollmentActor, e.now())
	if err := e.store.Upsert(ctx, updated); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.BackfillWritesTotal.WithLabelValues("enrollment", string(rbac.RoleStudent)).Inc()
	}
	if e.auditor != nil {
		_ = audit.LogBackfillWrite(ctx, e.auditor, "enrollment", c.StudentID, c.ClassID, string(rbac.RoleStudent))
	}
	return nil
}
