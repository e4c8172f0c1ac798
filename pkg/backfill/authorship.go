package backfill

import (
	"context"
	"sort"
	"time"

	"github.com/classworks/rosterd/pkg/audit"
	"github.com/classworks/rosterd/pkg/observability"
	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/rbac"
	"github.com/classworks/rosterd/pkg/store"
)

// AuthorshipActor is recorded as assigned_by on memberships written by the
// authorship heuristic.
const AuthorshipActor = "authorship-backfill"

// AuthorshipEngine rebuilds membership lists from quiz modification history.
type AuthorshipEngine struct {
	store    store.PrincipalStore
	activity store.ActivityLog
	logger   *observability.Logger
	metrics  *observability.Metrics
	auditor  audit.Logger
	now      func() time.Time
}

// NewAuthorshipEngine creates the authorship backfill engine. Logger,
// metrics, and auditor may be nil.
func NewAuthorshipEngine(ps store.PrincipalStore, activity store.ActivityLog, logger *observability.Logger, metrics *observability.Metrics, auditor audit.Logger) *AuthorshipEngine {
	return &AuthorshipEngine{
		store:    ps,
		activity: activity,
		logger:   logger,
		metrics:  metrics,
		auditor:  auditor,
		now:      time.Now,
	}
}

// Run walks every principal and rewrites records that carry only legacy
// membership shapes. Records with a non-empty membership list are skipped,
// which makes re-runs and interrupted runs safe.
func (e *AuthorshipEngine) Run(ctx context.Context, opts Options) (*Report, error) {
	start := e.now()
	report := newReport("authorship", opts.DryRun)

	modifications, err := e.activity.QuizModifications(ctx)
	if err != nil {
		return nil, err
	}
	modifiedClasses := make(map[string]map[string]bool)
	for _, m := range modifications {
		if m.ActorID == "" || m.ClassID == "" {
			continue
		}
		if modifiedClasses[m.ActorID] == nil {
			modifiedClasses[m.ActorID] = make(map[string]bool)
		}
		modifiedClasses[m.ActorID][m.ClassID] = true
	}

	err = e.store.ForEach(ctx, func(p *principal.Principal) error {
		report.Scanned++
		if err := e.migrate(ctx, p, modifiedClasses[p.ID], opts, report); err != nil {
			report.recordError(p.ID, err)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	if e.metrics != nil {
		mode := "live"
		if opts.DryRun {
			mode = "dry-run"
		}
		e.metrics.BackfillRunsTotal.WithLabelValues("authorship", mode).Inc()
		e.metrics.BackfillRunDuration.WithLabelValues("authorship").Observe(e.now().Sub(start).Seconds())
	}
	if e.logger != nil {
		e.logger.Info(report.Summary())
	}
	return report, nil
}

func (e *AuthorshipEngine) migrate(ctx context.Context, p *principal.Principal, modified map[string]bool, opts Options, report *Report) error {
	if len(p.ClassMemberships) > 0 {
		report.skip("already_migrated")
		return nil
	}

	classes := e.candidateClasses(p, modified)
	if len(classes) == 0 {
		report.skip("no_classes")
		return nil
	}

	updated := p.Clone()
	when := e.now()
	for _, classID := range classes {
		role, reason := classRoleFromEvidence(p, classID, modified[classID])
		updated = principal.AddMembership(updated, classID, string(role), AuthorshipActor, when)

		report.Planned = append(report.Planned, PlannedWrite{
			UserID:  p.ID,
			ClassID: classID,
			Role:    role,
			Reason:  reason,
		})
		report.Written++

		if e.logger != nil {
			e.logger.WithFields(map[string]interface{}{
				"heuristic": "authorship",
				"user_id":   p.ID,
				"class_id":  classID,
				"role":      string(role),
				"reason":    reason,
				"dry_run":   opts.DryRun,
			}).Info("membership backfill planned")
		}
		if e.metrics != nil && !opts.DryRun {
			e.metrics.BackfillWritesTotal.WithLabelValues("authorship", string(role)).Inc()
		}
	}
	report.UsersUpdated++

	if opts.DryRun {
		return nil
	}
	if err := e.store.Upsert(ctx, updated); err != nil {
		return err
	}
	if e.auditor != nil {
		for _, m := range updated.ClassMemberships {
			_ = audit.LogBackfillWrite(ctx, e.auditor, "authorship", p.ID, m.ClassID, m.Role)
		}
	}
	return nil
}

// candidateClasses is every class the user had any access record for, plus
// every class with modification evidence, sorted for deterministic output.
func (e *AuthorshipEngine) candidateClasses(p *principal.Principal, modified map[string]bool) []string {
	set := make(map[string]bool)
	for classID := range p.ClassRoles {
		if classID != "" {
			set[classID] = true
		}
	}
	for _, classID := range p.AccessibleClasses {
		if classID != "" {
			set[classID] = true
		}
	}
	for classID := range modified {
		set[classID] = true
	}

	classes := make([]string, 0, len(set))
	for classID := range set {
		classes = append(classes, classID)
	}
	sort.Strings(classes)
	return classes
}

// classRoleFromEvidence decides the backfilled role for one class.
//
// A recorded role is only trusted when the user actually modified quiz
// content for the class; a role with no modification evidence means they
// only took the class. Modification evidence with no recorded role means
// they were managing it.
func classRoleFromEvidence(p *principal.Principal, classID string, modifiedThisClass bool) (rbac.Role, string) {
	recorded, hasRecorded := p.ClassRoles[classID]

	if hasRecorded {
		if modifiedThisClass {
			switch rbac.NormalizeRole(recorded) {
			case rbac.RoleInstructor:
				return rbac.RoleInstructor, "recorded role confirmed by modifications"
			case rbac.RoleTA:
				return rbac.RoleTA, "recorded role confirmed by modifications"
			default:
				// Whoever touched quiz content was managing the class.
				return rbac.RoleInstructor, "modified content under a non-staff role"
			}
		}
		return rbac.RoleStudent, "recorded role with no modification evidence"
	}

	if modifiedThisClass {
		return rbac.RoleInstructor, "modified content with no recorded role"
	}
	return rbac.RoleStudent, "access with no role and no modifications"
}
