package backfill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classworks/rosterd/pkg/audit"
	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/store"
)

func TestConsistencyAuditReportOnly(t *testing.T) {
	backing := store.NewMemoryStore()
	ctx := context.Background()

	// Consistent record.
	require.NoError(t, backing.Upsert(ctx, principal.Normalize(&principal.Principal{
		ID:         "clean",
		ClassRoles: map[string]string{"cda": "ta"},
	})))
	// Divergent shapes.
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{
		ID: "drifted",
		ClassMemberships: []principal.Membership{
			{ClassID: "cda", Role: "ta"},
		},
		ClassRoles: map[string]string{"cda": "instructor"},
	}))

	auditRun := NewConsistencyAudit(backing, nil, nil, nil)
	report, err := auditRun.Run(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Flagged)
	assert.Zero(t, report.Fixed)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "drifted", report.Findings[0].UserID)
	assert.NotEmpty(t, report.Findings[0].Issues)

	// Report-only mode leaves the record as it was.
	p, err := backing.Get(ctx, "drifted")
	require.NoError(t, err)
	assert.Equal(t, "instructor", p.ClassRoles["cda"])
}

func TestConsistencyAuditFix(t *testing.T) {
	backing := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{
		ID: "drifted",
		ClassMemberships: []principal.Membership{
			{ClassID: "cda", Role: "ta"},
		},
		ClassRoles: map[string]string{"cda": "instructor", "phys101": "student"},
	}))

	auditor := audit.NewMemoryLogger()
	report, err := NewConsistencyAudit(backing, nil, nil, auditor).Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fixed)

	// The list shape wins and the map is reprojected from it.
	p, err := backing.Get(ctx, "drifted")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cda": "ta"}, p.ClassRoles)

	consistent, _ := principal.Check(p)
	assert.True(t, consistent)

	events := auditor.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventTypeBackfillConsistencyFix, events[0].EventType)
}
