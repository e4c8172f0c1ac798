package principal

import (
	"encoding/json"
	"sort"
	"strings"
)

// Membership is one canonical class membership entry. AssignedAt and
// AssignedBy are audit metadata only and never participate in consistency
// comparisons.
type Membership struct {
	ClassID    string `json:"class_id"`
	Role       string `json:"role"`
	AssignedAt string `json:"assigned_at,omitempty"`
	AssignedBy string `json:"assigned_by,omitempty"`
}

// Principal is a stored user record. The three class membership fields may
// individually be absent or malformed on the wire; decode treats malformed
// shapes as empty.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	// Roles is the global role set. LegacyRole is the older single global
	// role field that predates it; both are consulted case-insensitively.
	Roles      []string `json:"roles"`
	LegacyRole string   `json:"role,omitempty"`

	ClassMemberships  []Membership      `json:"class_memberships"`
	ClassRoles        map[string]string `json:"classRoles"`
	AccessibleClasses []string          `json:"accessible_classes"`

	// Extra preserves unrecognized document fields across a round trip so
	// an upsert never drops data owned by other subsystems.
	Extra map[string]json.RawMessage `json:"-"`

	// membershipsFromMap records that class_memberships arrived in the
	// legacy map shape; the normalizer treats that as a lower-priority
	// source than the list shape.
	membershipsFromMap bool
}

var knownFields = map[string]struct{}{
	"id":                 {},
	"email":              {},
	"display_name":       {},
	"roles":              {},
	"role":               {},
	"class_memberships":  {},
	"classRoles":         {},
	"accessible_classes": {},
}

// UnmarshalJSON performs the tolerant boundary decode. Every membership
// shape that is not its expected container type decodes to empty rather
// than erroring.
func (p *Principal) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*p = Principal{}
	for key, raw := range doc {
		switch key {
		case "id":
			decodeString(raw, &p.ID)
		case "email":
			decodeString(raw, &p.Email)
		case "display_name":
			decodeString(raw, &p.DisplayName)
		case "roles":
			p.Roles = decodeStringList(raw)
		case "role":
			decodeString(raw, &p.LegacyRole)
		case "class_memberships":
			p.ClassMemberships, p.membershipsFromMap = decodeMemberships(raw)
		case "classRoles":
			p.ClassRoles = decodeRoleMap(raw)
		case "accessible_classes":
			p.AccessibleClasses = decodeClassList(raw)
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[key] = raw
		}
	}
	return nil
}

// MarshalJSON emits the known fields plus any preserved extras. All three
// membership shapes are always emitted so downstream readers of any vintage
// find the shape they expect.
func (p *Principal) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(p.Extra)+8)
	for key, raw := range p.Extra {
		if _, known := knownFields[key]; known {
			continue
		}
		doc[key] = raw
	}

	doc["id"] = p.ID
	if p.Email != "" {
		doc["email"] = p.Email
	}
	if p.DisplayName != "" {
		doc["display_name"] = p.DisplayName
	}
	doc["roles"] = nonNilStrings(p.Roles)
	if p.LegacyRole != "" {
		doc["role"] = p.LegacyRole
	}
	doc["class_memberships"] = nonNilMemberships(p.ClassMemberships)
	doc["classRoles"] = nonNilRoleMap(p.ClassRoles)
	doc["accessible_classes"] = nonNilStrings(p.AccessibleClasses)

	return json.Marshal(doc)
}

// Clone returns a deep copy. Normalization and membership mutation operate
// on copies so the engine stays a pure function of its input record.
func (p *Principal) Clone() *Principal {
	out := *p
	out.Roles = append([]string(nil), p.Roles...)
	out.ClassMemberships = append([]Membership(nil), p.ClassMemberships...)
	out.AccessibleClasses = append([]string(nil), p.AccessibleClasses...)
	if p.ClassRoles != nil {
		out.ClassRoles = make(map[string]string, len(p.ClassRoles))
		for k, v := range p.ClassRoles {
			out.ClassRoles[k] = v
		}
	}
	if p.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// HasGlobalRole reports whether name appears in the global role set or the
// legacy single-role field, case-insensitively.
func (p *Principal) HasGlobalRole(name string) bool {
	name = strings.ToLower(name)
	for _, r := range p.Roles {
		if strings.ToLower(r) == name {
			return true
		}
	}
	return strings.ToLower(p.LegacyRole) == name
}

// IsAdmin reports the global admin bypass condition.
func (p *Principal) IsAdmin() bool {
	return p.HasGlobalRole("admin")
}

// HasMembershipData reports whether any of the three representations carries
// data in memory. When false, the authorization engine may fall back to a
// single store lookup.
func (p *Principal) HasMembershipData() bool {
	return len(p.ClassMemberships) > 0 || len(p.ClassRoles) > 0 || len(p.AccessibleClasses) > 0
}

// decodeString assigns raw into dst when raw is a JSON string.
func decodeString(raw json.RawMessage, dst *string) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*dst = s
	}
}

// decodeStringList accepts a list of strings or a single bare string.
// Non-string elements are dropped.
func decodeStringList(raw json.RawMessage) []string {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, el := range list {
			var s string
			if err := json.Unmarshal(el, &s); err == nil {
				out = append(out, s)
			}
		}
		return out
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []string{s}
	}
	return nil
}

// decodeClassList decodes accessible_classes, dropping empties.
func decodeClassList(raw json.RawMessage) []string {
	list := decodeStringList(raw)
	out := list[:0]
	for _, c := range list {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// decodeRoleValue unwraps a role stored either as a bare string or nested
// as {"role": x}.
func decodeRoleValue(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var nested struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested.Role, true
	}
	return "", false
}

// decodeMemberships decodes class_memberships from either the list-of-object
// shape or the legacy map shape. The second return reports the map shape.
// Entries without a class_id are dropped; map-derived entries are ordered by
// class_id so decoding is deterministic.
func decodeMemberships(raw json.RawMessage) ([]Membership, bool) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]Membership, 0, len(list))
		for _, el := range list {
			var m Membership
			if err := json.Unmarshal(el, &m); err != nil {
				continue
			}
			if m.ClassID == "" {
				continue
			}
			out = append(out, m)
		}
		return out, false
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err == nil {
		classIDs := make([]string, 0, len(asMap))
		for classID := range asMap {
			if classID != "" {
				classIDs = append(classIDs, classID)
			}
		}
		sort.Strings(classIDs)

		out := make([]Membership, 0, len(classIDs))
		for _, classID := range classIDs {
			role, ok := decodeRoleValue(asMap[classID])
			if !ok {
				role = ""
			}
			out = append(out, Membership{ClassID: classID, Role: role})
		}
		return out, true
	}

	return nil, false
}

// decodeRoleMap decodes classRoles, unwrapping nested role objects.
func decodeRoleMap(raw json.RawMessage) map[string]string {
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil
	}
	out := make(map[string]string, len(asMap))
	for classID, val := range asMap {
		if classID == "" {
			continue
		}
		role, ok := decodeRoleValue(val)
		if !ok {
			continue
		}
		out[classID] = role
	}
	return out
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilMemberships(in []Membership) []Membership {
	if in == nil {
		return []Membership{}
	}
	return in
}

func nonNilRoleMap(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}
	return in
}
