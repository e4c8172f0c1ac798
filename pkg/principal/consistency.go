package principal

import (
	"fmt"
	"sort"
	"strings"
)

// Check reports every divergence among the three membership representations
// without mutating the record. It is used as a pre-flight check before
// trusting a record and as a batch audit; callers choose whether to run
// Normalize afterwards.
//
// Reported issues: a class present in the union of all three shapes but
// missing from any individual shape, a role disagreement between the
// membership list and classRoles (compared lower-cased), and the legacy map
// shape of class_memberships itself.
func Check(p *Principal) (bool, []string) {
	if p == nil {
		return true, nil
	}

	var issues []string

	if p.membershipsFromMap {
		issues = append(issues, "class_memberships stored as map shape (should be list)")
	}

	membershipClasses := make(map[string]string, len(p.ClassMemberships))
	for _, m := range p.ClassMemberships {
		if m.ClassID == "" {
			continue
		}
		if _, dup := membershipClasses[m.ClassID]; dup {
			issues = append(issues, fmt.Sprintf("class_memberships has duplicate entry for %q", m.ClassID))
			continue
		}
		membershipClasses[m.ClassID] = m.Role
	}

	roleClasses := make(map[string]struct{}, len(p.ClassRoles))
	for classID := range p.ClassRoles {
		roleClasses[classID] = struct{}{}
	}

	accessible := make(map[string]struct{}, len(p.AccessibleClasses))
	for _, c := range p.AccessibleClasses {
		if c != "" {
			accessible[c] = struct{}{}
		}
	}

	union := make(map[string]struct{})
	for c := range membershipClasses {
		union[c] = struct{}{}
	}
	for c := range roleClasses {
		union[c] = struct{}{}
	}
	for c := range accessible {
		union[c] = struct{}{}
	}

	var missingMemberships, missingRoles, missingAccessible []string
	for c := range union {
		if _, ok := membershipClasses[c]; !ok {
			missingMemberships = append(missingMemberships, c)
		}
		if _, ok := roleClasses[c]; !ok {
			missingRoles = append(missingRoles, c)
		}
		if _, ok := accessible[c]; !ok {
			missingAccessible = append(missingAccessible, c)
		}
	}
	if len(missingMemberships) > 0 {
		sort.Strings(missingMemberships)
		issues = append(issues, fmt.Sprintf("class_memberships missing classes: %s", strings.Join(missingMemberships, ", ")))
	}
	if len(missingRoles) > 0 {
		sort.Strings(missingRoles)
		issues = append(issues, fmt.Sprintf("classRoles missing classes: %s", strings.Join(missingRoles, ", ")))
	}
	if len(missingAccessible) > 0 {
		sort.Strings(missingAccessible)
		issues = append(issues, fmt.Sprintf("accessible_classes missing classes: %s", strings.Join(missingAccessible, ", ")))
	}

	for _, classID := range sortedKeys(p.ClassRoles) {
		memberRole, ok := membershipClasses[classID]
		if !ok {
			continue
		}
		mapRole := p.ClassRoles[classID]
		if !strings.EqualFold(memberRole, mapRole) {
			issues = append(issues, fmt.Sprintf(
				"role mismatch for %s: class_memberships has %q, classRoles has %q",
				classID, memberRole, mapRole))
		}
	}

	return len(issues) == 0, issues
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
