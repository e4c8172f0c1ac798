package rbac

import "strings"

// Role is a role name from the fixed catalog enumeration.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleTA         Role = "ta"
	RoleStudent    Role = "student"

	// Deprecated names still present in stored records. Coerced on read by
	// NormalizeRole; never written back.
	RoleGrader Role = "grader"
	RoleUser   Role = "user"
)

// Capability is a namespaced permission string granted to a role.
type Capability string

const (
	// Class management capabilities.
	CapManageQuizzes Capability = "manage_quizzes"
	CapManageTokens  Capability = "manage_tokens"
	CapManageMembers Capability = "manage_members"
	CapViewAnalytics Capability = "view_analytics"
	CapGrantTA       Capability = "grant_ta"

	// Quiz lifecycle capabilities.
	CapQuizView   Capability = "quiz.view"
	CapQuizCreate Capability = "quiz.create"
	CapQuizModify Capability = "quiz.modify"
	CapQuizDelete Capability = "quiz.delete"

	// Student capabilities.
	CapTakeQuizzes  Capability = "take_quizzes"
	CapQuizAttempt  Capability = "quiz.attempt"
	CapViewProgress Capability = "view_progress"
	CapViewOwnData  Capability = "view_own_data"

	// CapWildcard matches every capability. Held implicitly by admin only.
	CapWildcard Capability = "*"
)

// NormalizeRole lower-cases a role name and coerces deprecated aliases.
// An empty name normalizes to student, the safe floor for legacy records
// that recorded access without a role.
func NormalizeRole(name string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(name))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleInstructor:
		return RoleInstructor
	case RoleTA, RoleGrader:
		return RoleTA
	case RoleStudent, RoleUser, "":
		return RoleStudent
	default:
		return Role(strings.ToLower(strings.TrimSpace(name)))
	}
}

// ClassAssignableRoles are the roles an administrator may assign for a class.
// Admin is global-only and never a class role.
func ClassAssignableRoles() []Role {
	return []Role{RoleInstructor, RoleTA, RoleStudent}
}

// IsClassAssignable reports whether name (after alias coercion) is a valid
// class-scoped role for an explicit assignment. Unlike reads of legacy data,
// assignment validation is strict: only the fixed enumeration plus the
// documented grader/user coercions are accepted.
func IsClassAssignable(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "instructor", "ta", "student", "grader", "user":
		return true
	default:
		return false
	}
}

// roleRank orders class roles for hierarchy comparisons. Higher outranks
// lower. Unknown roles rank zero and never satisfy a minimum-role check.
var roleRank = map[Role]int{
	RoleInstructor: 3,
	RoleTA:         2,
	RoleStudent:    1,
}

// Rank returns the hierarchy rank of a role after alias coercion.
func Rank(name string) int {
	return roleRank[NormalizeRole(name)]
}

// AtLeast reports whether role meets or exceeds min in the class hierarchy.
func AtLeast(role, min string) bool {
	return Rank(role) >= Rank(min) && Rank(role) > 0
}
