package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cybrsens.io/internal/audit"
	"cybrsens.io/internal/authn"
	"cybrsens.io/internal/authz"
	"cybrsens.io/internal/ids"
)

// Service is the membership lifecycle manager. Every mutation re-evaluates
// the authorization table for the acting identity before touching the
// store, and every privileged mutation commits exactly one audit entry
// together with its store change.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the lifecycle service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	return &Service{store: store, now: time.Now}, nil
}

// WithClock overrides the time source. Only intended for test use.
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// GetOrganization returns one organization.
func (s *Service) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Organization{}, fmt.Errorf("%w: organization id is required", ErrInvalid)
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return Organization{}, mapStoreErr(err)
	}
	return org, nil
}

// ListMembers returns the organization's members, newest created first.
func (s *Service) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalid)
	}
	members, err := s.store.ListMembers(ctx, orgID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return members, nil
}

// Invite creates a pending member and records a user_invited audit entry.
// Any existing member with the same email in the organization blocks the
// invite, including inactive ones.
func (s *Service) Invite(ctx context.Context, orgID, email string, role authz.Role, actor authn.Identity) (Member, error) {
	orgID = strings.TrimSpace(orgID)
	email = strings.TrimSpace(strings.ToLower(email))
	if orgID == "" {
		return Member{}, fmt.Errorf("%w: organization id is required", ErrInvalid)
	}
	if email == "" || !strings.Contains(email, "@") {
		return Member{}, fmt.Errorf("%w: valid email is required", ErrInvalid)
	}
	if !role.Valid() {
		return Member{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	if !authz.Decide(actor.Role, authz.ActionInviteMember, false) {
		return Member{}, ErrForbidden
	}

	now := s.now().UTC()
	member := Member{
		ID:             ids.New(),
		OrganizationID: orgID,
		Email:          email,
		Name:           displayName(email),
		Role:           role,
		Status:         StatusPending,
		Preferences:    DefaultPreferences(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	entry := &audit.Entry{
		ID:             ids.New(),
		OrganizationID: orgID,
		ActorUserID:    actor.UserID,
		Action:         audit.ActionUserInvited,
		ResourceType:   "user",
		ResourceID:     member.ID,
		Details: map[string]any{
			"invited_email": email,
			"role":          string(role),
		},
		CreatedAt: now,
	}
	if err := s.store.CreateMember(ctx, &member, entry); err != nil {
		return Member{}, mapStoreErr(err)
	}
	audit.Emit(ctx, entry)
	return member, nil
}

// UpdateRole changes a member's role. Self-targeted changes are denied for
// every actor, admins included.
func (s *Service) UpdateRole(ctx context.Context, orgID, userID string, newRole authz.Role, actor authn.Identity) (Member, error) {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return Member{}, fmt.Errorf("%w: organization id and user id are required", ErrInvalid)
	}
	if !newRole.Valid() {
		return Member{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, newRole)
	}
	if !authz.Decide(actor.Role, authz.ActionUpdateMemberRole, userID == actor.UserID) {
		return Member{}, ErrForbidden
	}

	entry := &audit.Entry{
		ID:             ids.New(),
		OrganizationID: orgID,
		ActorUserID:    actor.UserID,
		Action:         audit.ActionUserRoleUpdated,
		ResourceType:   "user",
		ResourceID:     userID,
		Details:        map[string]any{"new_role": string(newRole)},
		CreatedAt:      s.now().UTC(),
	}
	member, err := s.store.UpdateMemberRole(ctx, orgID, userID, newRole, entry)
	if err != nil {
		return Member{}, mapStoreErr(err)
	}
	audit.Emit(ctx, entry)
	return member, nil
}

// Remove soft deletes a member: the record flips to inactive and is
// retained. Self removal is denied for every actor.
func (s *Service) Remove(ctx context.Context, orgID, userID string, actor authn.Identity) error {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return fmt.Errorf("%w: organization id and user id are required", ErrInvalid)
	}
	if !authz.Decide(actor.Role, authz.ActionRemoveMember, userID == actor.UserID) {
		return ErrForbidden
	}

	entry := &audit.Entry{
		ID:             ids.New(),
		OrganizationID: orgID,
		ActorUserID:    actor.UserID,
		Action:         audit.ActionUserRemoved,
		ResourceType:   "user",
		ResourceID:     userID,
		Details:        map[string]any{},
		CreatedAt:      s.now().UTC(),
	}
	if _, err := s.store.DeactivateMember(ctx, orgID, userID, entry); err != nil {
		return mapStoreErr(err)
	}
	audit.Emit(ctx, entry)
	return nil
}

// UpdateOrganization applies a partial update. Keys are "name", "domain"
// and dotted "settings.<leaf>" entries; settings merge leaf by leaf into
// the existing map. No audit entry is written for organization updates;
// that matches the reference system and is tracked as an open gap.
func (s *Service) UpdateOrganization(ctx context.Context, orgID string, updates map[string]any, actor authn.Identity) (Organization, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Organization{}, fmt.Errorf("%w: organization id is required", ErrInvalid)
	}
	if !authz.Decide(actor.Role, authz.ActionUpdateOrganization, false) {
		return Organization{}, ErrForbidden
	}
	upd, err := buildOrganizationUpdate(updates)
	if err != nil {
		return Organization{}, err
	}

	org, err := s.store.UpdateOrganization(ctx, orgID, upd)
	if err != nil {
		return Organization{}, mapStoreErr(err)
	}
	return org, nil
}

// MarkActive records a first successful authenticated session for a
// pending member. The signal comes from the authentication collaborator,
// not from a caller role, so there is no authorization gate here.
func (s *Service) MarkActive(ctx context.Context, orgID, userID string) (Member, error) {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return Member{}, fmt.Errorf("%w: organization id and user id are required", ErrInvalid)
	}
	member, err := s.store.MarkMemberActive(ctx, orgID, userID, s.now().UTC())
	if err != nil {
		return Member{}, mapStoreErr(err)
	}
	return member, nil
}

func buildOrganizationUpdate(updates map[string]any) (OrganizationUpdate, error) {
	var upd OrganizationUpdate
	if len(updates) == 0 {
		return upd, fmt.Errorf("%w: no fields to update", ErrInvalid)
	}
	for key, value := range updates {
		switch {
		case key == "name":
			name, ok := value.(string)
			if !ok || strings.TrimSpace(name) == "" {
				return OrganizationUpdate{}, fmt.Errorf("%w: name must be a non-empty string", ErrInvalid)
			}
			trimmed := strings.TrimSpace(name)
			upd.Name = &trimmed
		case key == "domain":
			domain, ok := value.(string)
			if !ok {
				return OrganizationUpdate{}, fmt.Errorf("%w: domain must be a string", ErrInvalid)
			}
			trimmed := strings.TrimSpace(domain)
			upd.Domain = &trimmed
		case strings.HasPrefix(key, "settings."):
			leaf := strings.TrimPrefix(key, "settings.")
			if leaf == "" || strings.Contains(leaf, ".") {
				return OrganizationUpdate{}, fmt.Errorf("%w: unsupported settings key %q", ErrInvalid, key)
			}
			if err := validateSetting(leaf, value); err != nil {
				return OrganizationUpdate{}, err
			}
			if upd.Settings == nil {
				upd.Settings = map[string]any{}
			}
			upd.Settings[leaf] = value
		default:
			return OrganizationUpdate{}, fmt.Errorf("%w: unsupported field %q", ErrInvalid, key)
		}
	}
	return upd, nil
}

func validateSetting(leaf string, value any) error {
	switch leaf {
	case SettingDataRetentionDays, SettingSessionTimeoutMinutes:
		if !isNumeric(value) {
			return fmt.Errorf("%w: %s must be numeric", ErrInvalid, leaf)
		}
	case SettingTimezone, SettingPasswordPolicy:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: %s must be a string", ErrInvalid, leaf)
		}
	}
	return nil
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

// displayName derives a provisional name from the email's local part.
func displayName(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// mapStoreErr normalizes store failures into the service error taxonomy.
// Deadline and cancellation become the retryable ErrUnavailable; taxonomy
// errors pass through untouched.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicateMember),
		errors.Is(err, ErrInvalid),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
