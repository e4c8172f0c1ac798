package rbac

// catalogEntry defines a role's directly granted capabilities and the roles
// it inherits from. The catalog is immutable at runtime.
type catalogEntry struct {
	Capabilities []Capability
	Inherits     []Role
}

// catalog is the static role catalog. Admin is deliberately absent: it is
// short-circuited before resolution everywhere and holds the wildcard
// implicitly, so it must never be expanded through the graph.
var catalog = map[Role]catalogEntry{
	RoleInstructor: {
		Capabilities: []Capability{
			CapManageQuizzes,
			CapManageTokens,
			CapManageMembers,
			CapViewAnalytics,
			CapGrantTA,
			CapQuizCreate,
			CapQuizModify,
			CapQuizDelete,
		},
		Inherits: []Role{RoleStudent},
	},
	RoleTA: {
		Capabilities: []Capability{
			CapManageQuizzes,
			CapManageTokens,
			CapViewAnalytics,
			CapQuizCreate,
			CapQuizModify,
		},
		Inherits: []Role{RoleStudent},
	},
	RoleStudent: {
		Capabilities: []Capability{
			CapTakeQuizzes,
			CapQuizView,
			CapQuizAttempt,
			CapViewProgress,
			CapViewOwnData,
		},
	},
}

// CapabilitySet is the resolved set of capabilities for a role.
type CapabilitySet map[Capability]struct{}

// Has reports whether the set grants c, either directly or via wildcard.
func (s CapabilitySet) Has(c Capability) bool {
	if _, ok := s[CapWildcard]; ok {
		return true
	}
	_, ok := s[c]
	return ok
}

// Contains reports whether every capability in other is present in s.
func (s CapabilitySet) Contains(other CapabilitySet) bool {
	for c := range other {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Resolve computes the transitive capability set for a role name. Input is
// case-insensitive and deprecated aliases are coerced first. Unknown roles
// resolve to an empty set. Cycles in the inheritance graph are skipped via
// the visited set rather than reported: a misconfigured catalog degrades to
// granting each role's capabilities once instead of failing requests.
func Resolve(name string) CapabilitySet {
	caps := make(CapabilitySet)
	visited := make(map[Role]struct{})
	expand(NormalizeRole(name), caps, visited)
	return caps
}

func expand(role Role, caps CapabilitySet, visited map[Role]struct{}) {
	if _, seen := visited[role]; seen {
		return
	}
	visited[role] = struct{}{}

	entry, ok := catalog[role]
	if !ok {
		return
	}
	for _, c := range entry.Capabilities {
		caps[c] = struct{}{}
	}
	for _, parent := range entry.Inherits {
		expand(parent, caps, visited)
	}
}

// CatalogRoles returns the role names present in the catalog, for audits and
// diagnostics. Admin is not included; see Resolve.
func CatalogRoles() []Role {
	roles := make([]Role, 0, len(catalog))
	for r := range catalog {
		roles = append(roles, r)
	}
	return roles
}
