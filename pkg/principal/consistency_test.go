package principal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConsistentRecord(t *testing.T) {
	p := &Principal{
		ID:                "u1",
		ClassMemberships:  []Membership{{ClassID: "cda", Role: "ta"}},
		ClassRoles:        map[string]string{"cda": "ta"},
		AccessibleClasses: []string{"cda"},
	}

	consistent, issues := Check(p)
	assert.True(t, consistent)
	assert.Empty(t, issues)
}

func TestCheckRoleMismatch(t *testing.T) {
	p := &Principal{
		ID:                "u1",
		ClassMemberships:  []Membership{{ClassID: "x", Role: "ta"}},
		ClassRoles:        map[string]string{"x": "instructor"},
		AccessibleClasses: []string{"x"},
	}

	consistent, issues := Check(p)
	assert.False(t, consistent)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "role mismatch for x")
	assert.Contains(t, issues[0], `"ta"`)
	assert.Contains(t, issues[0], `"instructor"`)
}

func TestCheckRoleComparisonIgnoresCase(t *testing.T) {
	p := &Principal{
		ID:                "u1",
		ClassMemberships:  []Membership{{ClassID: "x", Role: "TA"}},
		ClassRoles:        map[string]string{"x": "ta"},
		AccessibleClasses: []string{"x"},
	}

	consistent, _ := Check(p)
	assert.True(t, consistent)
}

func TestCheckMissingClasses(t *testing.T) {
	p := &Principal{
		ID:                "u1",
		ClassMemberships:  []Membership{{ClassID: "a", Role: "student"}},
		ClassRoles:        map[string]string{"b": "student"},
		AccessibleClasses: []string{"c"},
	}

	consistent, issues := Check(p)
	assert.False(t, consistent)
	assert.Contains(t, issues, "class_memberships missing classes: b, c")
	assert.Contains(t, issues, "classRoles missing classes: a, c")
	assert.Contains(t, issues, "accessible_classes missing classes: a, b")
}

func TestCheckMapShapeReported(t *testing.T) {
	p := decode(t, `{"id": "u1", "class_memberships": {"cda": "ta"}, "classRoles": {"cda": "ta"}, "accessible_classes": ["cda"]}`)

	consistent, issues := Check(p)
	assert.False(t, consistent)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "map shape")
}

func TestCheckDuplicateMembership(t *testing.T) {
	p := &Principal{
		ID: "u1",
		ClassMemberships: []Membership{
			{ClassID: "cda", Role: "ta"},
			{ClassID: "cda", Role: "student"},
		},
		ClassRoles:        map[string]string{"cda": "ta"},
		AccessibleClasses: []string{"cda"},
	}

	consistent, issues := Check(p)
	assert.False(t, consistent)
	assert.Contains(t, issues[0], "duplicate entry")
}

func TestCheckEmptyRecordIsConsistent(t *testing.T) {
	consistent, issues := Check(&Principal{ID: "u1"})
	assert.True(t, consistent)
	assert.Empty(t, issues)

	consistent, _ = Check(nil)
	assert.True(t, consistent)
}

func TestCheckNeverMutates(t *testing.T) {
	p := &Principal{
		ID:               "u1",
		ClassMemberships: []Membership{{ClassID: "a", Role: "grader"}},
		ClassRoles:       map[string]string{"b": "instructor"},
	}
	want := p.Clone()

	_, _ = Check(p)

	assert.Equal(t, want, p)
}
