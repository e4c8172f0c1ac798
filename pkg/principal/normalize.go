package principal

import (
	"time"

	"github.com/classworks/rosterd/pkg/rbac"
)

// Normalize rewrites the three membership representations into a mutually
// consistent state and returns the updated record. The input is not
// modified.
//
// Source-of-truth priority: the class_memberships list, then the legacy
// class_memberships map (already converted at decode), then classRoles, then
// accessible_classes with the role inferred from the global role set. Only
// the first non-empty source is trusted; lower-priority sources are
// discarded, not merged, so removals made in a higher shape stick.
//
// Role values in the canonical list are coerced through the catalog aliases
// (grader to ta, user to student); empty or unrecognized roles default to
// student. Both legacy shapes are regenerated by projection. The whole
// operation is idempotent.
func Normalize(p *Principal) *Principal {
	if p == nil {
		return nil
	}
	out := p.Clone()

	canonical := selectCanonical(out)
	out.ClassMemberships = canonical
	out.membershipsFromMap = false

	out.ClassRoles = make(map[string]string, len(canonical))
	out.AccessibleClasses = make([]string, 0, len(canonical))
	for _, m := range canonical {
		out.ClassRoles[m.ClassID] = m.Role
		out.AccessibleClasses = append(out.AccessibleClasses, m.ClassID)
	}
	return out
}

// selectCanonical picks the highest-priority non-empty source and returns
// the canonical entry list with coerced roles and duplicate class IDs
// collapsed (first entry wins).
func selectCanonical(p *Principal) []Membership {
	switch {
	case len(p.ClassMemberships) > 0:
		// Priority 1 (list shape) and 2 (legacy map shape, converted and
		// ordered at decode). Metadata on list entries is preserved.
		return dedupeCoerced(p.ClassMemberships)

	case len(p.ClassRoles) > 0:
		entries := make([]Membership, 0, len(p.ClassRoles))
		for _, classID := range sortedKeys(p.ClassRoles) {
			entries = append(entries, Membership{ClassID: classID, Role: p.ClassRoles[classID]})
		}
		return dedupeCoerced(entries)

	case len(p.AccessibleClasses) > 0:
		inferred := InferredClassRole(p)
		entries := make([]Membership, 0, len(p.AccessibleClasses))
		for _, classID := range p.AccessibleClasses {
			if classID == "" {
				continue
			}
			entries = append(entries, Membership{ClassID: classID, Role: string(inferred)})
		}
		return dedupeCoerced(entries)

	default:
		return []Membership{}
	}
}

// InferredClassRole maps the principal's global role set onto the class role
// used when only the bare accessible_classes shape exists: admin and
// instructor grant instructor, ta and grader grant ta, everything else is
// student.
func InferredClassRole(p *Principal) rbac.Role {
	if p.HasGlobalRole("admin") || p.HasGlobalRole("instructor") {
		return rbac.RoleInstructor
	}
	if p.HasGlobalRole("ta") || p.HasGlobalRole("grader") {
		return rbac.RoleTA
	}
	return rbac.RoleStudent
}

func dedupeCoerced(entries []Membership) []Membership {
	out := make([]Membership, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, m := range entries {
		if m.ClassID == "" {
			continue
		}
		if _, dup := seen[m.ClassID]; dup {
			continue
		}
		seen[m.ClassID] = struct{}{}
		m.Role = string(coerceClassRole(m.Role))
		out = append(out, m)
	}
	return out
}

// coerceClassRole restricts a stored role value to the class enumeration.
// Catalog aliases are applied first; anything still outside the enumeration
// falls back to student rather than surviving as an unknown grant.
func coerceClassRole(role string) rbac.Role {
	switch r := rbac.NormalizeRole(role); r {
	case rbac.RoleInstructor, rbac.RoleTA, rbac.RoleStudent:
		return r
	default:
		return rbac.RoleStudent
	}
}

// AddMembership upserts a membership for classID across all three shapes and
// returns the updated record. An existing entry for the class is replaced in
// place rather than duplicated. The record is normalized first so the upsert
// always applies to the canonical view.
func AddMembership(p *Principal, classID, role, assignedBy string, now time.Time) *Principal {
	out := Normalize(p)
	entry := Membership{
		ClassID:    classID,
		Role:       string(coerceClassRole(role)),
		AssignedAt: now.UTC().Format(time.RFC3339),
		AssignedBy: assignedBy,
	}

	replaced := false
	for i, m := range out.ClassMemberships {
		if m.ClassID == classID {
			out.ClassMemberships[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		out.ClassMemberships = append(out.ClassMemberships, entry)
		out.AccessibleClasses = append(out.AccessibleClasses, classID)
	}
	out.ClassRoles[classID] = entry.Role
	return out
}

// RemoveMembership deletes the entry for classID from all three shapes and
// returns the updated record. Removing an absent class is a no-op.
func RemoveMembership(p *Principal, classID string) *Principal {
	out := Normalize(p)

	memberships := out.ClassMemberships[:0]
	for _, m := range out.ClassMemberships {
		if m.ClassID != classID {
			memberships = append(memberships, m)
		}
	}
	out.ClassMemberships = memberships

	delete(out.ClassRoles, classID)

	accessible := out.AccessibleClasses[:0]
	for _, c := range out.AccessibleClasses {
		if c != classID {
			accessible = append(accessible, c)
		}
	}
	out.AccessibleClasses = accessible
	return out
}

// RoleForClass resolves the principal's role for a class from the raw record
// without normalizing it: the membership list is consulted first, then
// classRoles, then accessible_classes where bare access defaults to student.
// The boolean reports whether any representation grants access at all.
func RoleForClass(p *Principal, classID string) (rbac.Role, bool) {
	if p == nil || classID == "" {
		return "", false
	}

	for _, m := range p.ClassMemberships {
		if m.ClassID == classID {
			return coerceClassRole(m.Role), true
		}
	}

	if role, ok := p.ClassRoles[classID]; ok {
		return coerceClassRole(role), true
	}

	for _, c := range p.AccessibleClasses {
		if c == classID {
			return rbac.RoleStudent, true
		}
	}

	return "", false
}

// ClassesWithRoleAtLeast returns the classes where the principal holds at
// least min in the role hierarchy. Only the membership list and classRoles
// are consulted; bare accessible_classes access carries no explicit role and
// is deliberately excluded here.
func ClassesWithRoleAtLeast(p *Principal, min rbac.Role) []string {
	if p == nil {
		return nil
	}

	if len(p.ClassMemberships) > 0 {
		out := make([]string, 0, len(p.ClassMemberships))
		for _, m := range p.ClassMemberships {
			if rbac.AtLeast(m.Role, string(min)) {
				out = append(out, m.ClassID)
			}
		}
		return out
	}

	out := make([]string, 0, len(p.ClassRoles))
	for _, classID := range sortedKeys(p.ClassRoles) {
		if rbac.AtLeast(p.ClassRoles[classID], string(min)) {
			out = append(out, classID)
		}
	}
	return out
}
