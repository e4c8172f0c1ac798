package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/classworks/rosterd/pkg/audit"
	"github.com/classworks/rosterd/pkg/observability"
	"github.com/classworks/rosterd/pkg/principal"
	"github.com/classworks/rosterd/pkg/rbac"
	"github.com/classworks/rosterd/pkg/store"
)

var (
	// ErrInvalidRole is returned when an assignment names a role outside
	// the fixed enumeration.
	ErrInvalidRole = errors.New("invalid role")

	// ErrSelfModification is returned when a role update targets the
	// acting user's own membership.
	ErrSelfModification = errors.New("cannot modify own membership")

	// ErrPrincipalNotFound is returned when the target user record does
	// not exist.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrMembershipNotFound is returned when an update or removal names a
	// class the target holds no membership in.
	ErrMembershipNotFound = errors.New("membership not found")
)

// Member is one row of a class roster listing.
type Member struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Role        rbac.Role `json:"role"`
	AssignedAt  string    `json:"assigned_at,omitempty"`
	AssignedBy  string    `json:"assigned_by,omitempty"`
}

// Service performs membership mutations against the principal store.
type Service struct {
	store   store.PrincipalStore
	logger  *observability.Logger
	metrics *observability.Metrics
	auditor audit.Logger
	now     func() time.Time
}

// NewService creates a roster service. Logger, metrics, and auditor may be nil.
func NewService(ps store.PrincipalStore, logger *observability.Logger, metrics *observability.Metrics, auditor audit.Logger) *Service {
	return &Service{
		store:   ps,
		logger:  logger,
		metrics: metrics,
		auditor: auditor,
		now:     time.Now,
	}
}

// AssignRole grants targetID the role in classID, replacing any existing
// membership for that class. The role must be one of the class-assignable
// roles; aliases are accepted and stored under their canonical name.
func (s *Service) AssignRole(ctx context.Context, actorID, targetID, classID string, role string) (*principal.Principal, error) {
	canonical, err := validateClassRole(role)
	if err != nil {
		return nil, err
	}
	if classID == "" {
		return nil, fmt.Errorf("class id is required")
	}

	target, err := s.fetch(ctx, targetID)
	if err != nil {
		return nil, err
	}

	updated := principal.AddMembership(target, classID, string(canonical), actorID, s.now())
	if err := s.store.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("persisting membership for %s: %w", targetID, err)
	}

	s.recordMutation(ctx, audit.EventTypeRosterMemberAdd, "assign", actorID, targetID, classID, canonical)
	return updated, nil
}

// UpdateRole changes the role of an existing membership. The target must
// already hold a membership in the class, and the actor may not update their
// own record.
func (s *Service) UpdateRole(ctx context.Context, actorID, targetID, classID string, role string) (*principal.Principal, error) {
	canonical, err := validateClassRole(role)
	if err != nil {
		return nil, err
	}
	if actorID == targetID {
		return nil, ErrSelfModification
	}

	target, err := s.fetch(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if _, ok := principal.RoleForClass(target, classID); !ok {
		return nil, fmt.Errorf("%w: %s has no membership in %s", ErrMembershipNotFound, targetID, classID)
	}

	updated := principal.AddMembership(target, classID, string(canonical), actorID, s.now())
	if err := s.store.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("persisting membership for %s: %w", targetID, err)
	}

	s.recordMutation(ctx, audit.EventTypeRosterMemberRoleChange, "update", actorID, targetID, classID, canonical)
	return updated, nil
}

// RemoveRole revokes targetID's membership in classID from all three
// representations.
func (s *Service) RemoveRole(ctx context.Context, actorID, targetID, classID string) (*principal.Principal, error) {
	target, err := s.fetch(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if _, ok := principal.RoleForClass(target, classID); !ok {
		return nil, fmt.Errorf("%w: %s has no membership in %s", ErrMembershipNotFound, targetID, classID)
	}

	updated := principal.RemoveMembership(target, classID)
	if err := s.store.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("persisting membership removal for %s: %w", targetID, err)
	}

	s.recordMutation(ctx, audit.EventTypeRosterMemberRemove, "remove", actorID, targetID, classID, "")
	return updated, nil
}

// ListMembers returns every user holding a membership in classID, ordered by
// role rank (instructors first) and then by display name.
func (s *Service) ListMembers(ctx context.Context, classID string) ([]Member, error) {
	var members []Member
	err := s.store.ForEach(ctx, func(p *principal.Principal) error {
		role, ok := principal.RoleForClass(p, classID)
		if !ok {
			return nil
		}
		member := Member{
			UserID:      p.ID,
			DisplayName: p.DisplayName,
			Email:       p.Email,
			Role:        role,
		}
		for _, m := range principal.Normalize(p).ClassMemberships {
			if m.ClassID == classID {
				member.AssignedAt = m.AssignedAt
				member.AssignedBy = m.AssignedBy
			}
		}
		members = append(members, member)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", classID, err)
	}

	sort.SliceStable(members, func(i, j int) bool {
		ri, rj := rbac.Rank(string(members[i].Role)), rbac.Rank(string(members[j].Role))
		if ri != rj {
			return ri > rj
		}
		return displayKey(members[i]) < displayKey(members[j])
	})
	return members, nil
}

// SetGlobalRoles replaces targetID's global role set. Used for promotions
// such as granting the admin role; every name must be a known role.
func (s *Service) SetGlobalRoles(ctx context.Context, actorID, targetID string, roles []string) (*principal.Principal, error) {
	cleaned := make([]string, 0, len(roles))
	for _, name := range roles {
		lowered := strings.ToLower(strings.TrimSpace(name))
		if !knownRoles[lowered] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, name)
		}
		cleaned = append(cleaned, lowered)
	}
	if actorID == targetID {
		return nil, ErrSelfModification
	}

	target, err := s.fetch(ctx, targetID)
	if err != nil {
		return nil, err
	}

	updated := principal.Normalize(target)
	updated.Roles = cleaned
	if err := s.store.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("persisting global roles for %s: %w", targetID, err)
	}

	s.recordMutation(ctx, audit.EventTypeRosterGlobalRoleChange, "set_global_roles", actorID, targetID, "", rbac.Role(strings.Join(cleaned, ",")))
	return updated, nil
}

// knownRoles is the strict vocabulary for global role writes. It includes
// the deprecated aliases still present in stored records.
var knownRoles = map[string]bool{
	"admin":      true,
	"instructor": true,
	"ta":         true,
	"student":    true,
	"grader":     true,
	"user":       true,
}

func validateClassRole(role string) (rbac.Role, error) {
	lowered := strings.ToLower(strings.TrimSpace(role))
	if !rbac.IsClassAssignable(lowered) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return rbac.NormalizeRole(lowered), nil
}

func (s *Service) fetch(ctx context.Context, targetID string) (*principal.Principal, error) {
	if targetID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrPrincipalNotFound)
	}
	p, err := s.store.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPrincipalNotFound, targetID)
		}
		return nil, fmt.Errorf("loading %s: %w", targetID, err)
	}
	return p, nil
}

func (s *Service) recordMutation(ctx context.Context, eventType audit.EventType, operation, actorID, targetID, classID string, role rbac.Role) {
	if s.metrics != nil {
		s.metrics.MembershipWritesTotal.WithLabelValues(operation, string(role)).Inc()
	}
	if s.logger != nil {
		s.logger.WithFields(map[string]interface{}{
			"operation": operation,
			"actor_id":  actorID,
			"target_id": targetID,
			"class_id":  classID,
			"role":      string(role),
		}).Info("membership updated")
	}
	if s.auditor != nil {
		_ = audit.LogMembershipChange(ctx, s.auditor, eventType, actorID, targetID, classID, string(role))
	}
}

func displayKey(m Member) string {
	if m.DisplayName != "" {
		return strings.ToLower(m.DisplayName)
	}
	return m.UserID
}
