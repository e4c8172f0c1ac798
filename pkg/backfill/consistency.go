package backfill

import (
	"context"

	"github.com/classworks/rosterd/pkg/audit"
	"github.com/classworks/rosterd/pkg/observability"
	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/store"
)

// Finding is one inconsistent record discovered by the audit.
type Finding struct {
	UserID string   `json:"user_id"`
	Issues []string `json:"issues"`
}

// AuditReport summarizes a consistency audit run.
type AuditReport struct {
	Scanned  int           `json:"scanned"`
	Flagged  int           `json:"flagged"`
	Fixed    int           `json:"fixed"`
	Findings []Finding     `json:"findings,omitempty"`
	Errors   []RecordError `json:"errors,omitempty"`
}

// ConsistencyAudit walks all records and reports membership-shape
// disagreements. With fix enabled, flagged records are rewritten through the
// normalizer.
type ConsistencyAudit struct {
	store   store.PrincipalStore
	logger  *observability.Logger
	metrics *observability.Metrics
	auditor audit.Logger
}

// NewConsistencyAudit creates a consistency audit. Logger, metrics, and
// auditor may be nil.
func NewConsistencyAudit(ps store.PrincipalStore, logger *observability.Logger, metrics *observability.Metrics, auditor audit.Logger) *ConsistencyAudit {
	return &ConsistencyAudit{store: ps, logger: logger, metrics: metrics, auditor: auditor}
}

// Run checks every principal. Fix rewrites flagged records; a fix failure is
// accumulated per record and the walk continues.
func (a *ConsistencyAudit) Run(ctx context.Context, fix bool) (*AuditReport, error) {
	report := &AuditReport{}

	err := a.store.ForEach(ctx, func(p *principal.Principal) error {
		report.Scanned++

		consistent, issues := principal.Check(p)
		if consistent {
			return nil
		}
		report.Flagged++
		report.Findings = append(report.Findings, Finding{UserID: p.ID, Issues: issues})

		if a.metrics != nil {
			a.metrics.ConsistencyFlagsTotal.Inc()
		}
		if a.logger != nil {
			a.logger.WithFields(map[string]interface{}{
				"user_id": p.ID,
				"issues":  issues,
			}).Warn("inconsistent membership shapes")
		}

		if !fix {
			return nil
		}
		if err := a.store.Upsert(ctx, principal.Normalize(p)); err != nil {
			report.recordError(p.ID, err)
			return nil
		}
		report.Fixed++
		if a.auditor != nil {
			event := audit.NewEvent(audit.EventTypeBackfillConsistencyFix, audit.EventStatusSuccess)
			event.TargetID = p.ID
			event.Metadata["issues"] = issues
			_ = a.auditor.Log(ctx, event)
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}

func (r *AuditReport) recordError(userID string, err error) {
	r.Errors = append(r.Errors, RecordError{UserID: userID, Err: err.Error()})
}
