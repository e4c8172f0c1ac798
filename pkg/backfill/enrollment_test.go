package backfill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/rbac"
	"github.com/classworks/rosterd/pkg/store"
)

func newEnrollment(backing *store.MemoryStore, activity *store.MemoryActivityLog) *EnrollmentEngine {
	e := NewEnrollmentEngine(backing, activity, nil, nil, nil)
	e.now = fixedClock
	return e
}

func TestEnrollmentBackfillsMissingMembership(t *testing.T) {
	backing := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{ID: "sliu197"}))

	activity := &store.MemoryActivityLog{
		Counts: []store.EnrollmentCount{
			{StudentID: "sliu197", ClassID: "cda", Submissions: 164},
		},
	}

	report, err := newEnrollment(backing, activity).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)

	p, err := backing.Get(ctx, "sliu197")
	require.NoError(t, err)
	role, ok := principal.RoleForClass(p, "cda")
	require.True(t, ok)
	assert.Equal(t, rbac.RoleStudent, role)
	assert.Equal(t, EnrollmentActor, p.ClassMemberships[0].AssignedBy)
}

func TestEnrollmentNeverDowngrades(t *testing.T) {
	backing := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{
		ID: "prof",
		ClassMemberships: []principal.Membership{
			{ClassID: "cda", Role: "instructor"},
		},
	}))

	activity := &store.MemoryActivityLog{
		Counts: []store.EnrollmentCount{
			{StudentID: "prof", ClassID: "cda", Submissions: 50},
		},
	}

	report, err := newEnrollment(backing, activity).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.Written)
	assert.Equal(t, 1, report.Skipped["already_instructor"])

	p, err := backing.Get(ctx, "prof")
	require.NoError(t, err)
	assert.Equal(t, "instructor", p.ClassMemberships[0].Role)
}

func TestEnrollmentSkipsExistingStudentAndLegacyShapes(t *testing.T) {
	backing := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{
		ID:         "legacy",
		ClassRoles: map[string]string{"cda": "student"},
	}))

	activity := &store.MemoryActivityLog{
		Counts: []store.EnrollmentCount{
			{StudentID: "legacy", ClassID: "cda", Submissions: 10},
		},
	}

	report, err := newEnrollment(backing, activity).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.Written)
	assert.Equal(t, 1, report.Skipped["already_student"])
}

func TestEnrollmentThresholdAndMissingUsers(t *testing.T) {
	backing := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{ID: "s1"}))

	activity := &store.MemoryActivityLog{
		Counts: []store.EnrollmentCount{
			{StudentID: "s1", ClassID: "cda", Submissions: 4},
			{StudentID: "ghost", ClassID: "cda", Submissions: 9},
		},
	}

	report, err := newEnrollment(backing, activity).Run(ctx, Options{})
	require.NoError(t, err)
	// s1 is below the default threshold of 5 and never reaches the engine.
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Skipped["user_not_found"])
	assert.Zero(t, report.Written)

	report, err = newEnrollment(backing, activity).Run(ctx, Options{MinSubmissions: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Written)
}

func TestEnrollmentFiltersPlaceholders(t *testing.T) {
	backing := store.NewMemoryStore()
	ctx := context.Background()

	activity := &store.MemoryActivityLog{
		Counts: []store.EnrollmentCount{
			{StudentID: "YourJHED here", ClassID: "cda", Submissions: 20},
			{StudentID: "ab", ClassID: "cda", Submissions: 20},
			{StudentID: "  ", ClassID: "cda", Submissions: 20},
		},
	}

	report, err := newEnrollment(backing, activity).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Skipped["placeholder_username"])
	assert.Zero(t, report.Written)
}

func TestEnrollmentDryRun(t *testing.T) {
	backing := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, backing.Upsert(ctx, &principal.Principal{ID: "s1"}))

	activity := &store.MemoryActivityLog{
		Counts: []store.EnrollmentCount{
			{StudentID: "s1", ClassID: "cda", Submissions: 12},
		},
	}

	report, err := newEnrollment(backing, activity).Run(ctx, Options{DryRun: true})
	require.NoError(t, err)
	require.Len(t, report.Planned, 1)
	assert.Equal(t, "cda", report.Planned[0].ClassID)

	p, err := backing.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, p.ClassMemberships)
}

func TestIsPlaceholder(t *testing.T) {
	placeholders := []string{"", "  ", "ab", "YourJHED", "enter JHED ID", "##student##", "TIME2024-x"}
	for _, name := range placeholders {
		assert.True(t, IsPlaceholder(name), name)
	}
	real := []string{"sliu197", "jdoe42", "abc"}
	for _, name := range real {
		assert.False(t, IsPlaceholder(name), name)
	}
}
