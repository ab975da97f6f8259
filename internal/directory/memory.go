package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cybrsens.io/internal/audit"
	"cybrsens.io/internal/authz"
)

// Memory implements Store in process. A single mutex serializes all writes,
// which gives the same guarantee row locking gives the Postgres store: a
// concurrent role update and removal of one member can never interleave.
// Used by tests and DSN-less deployments.
type Memory struct {
	mu      sync.RWMutex
	orgs    map[string]*Organization
	members map[string]*Member // member id -> record
	audits  audit.Store
}

// NewMemory creates an empty in-memory store. Audit entries passed to
// mutations are appended to auditLog inside the same critical section.
func NewMemory(auditLog audit.Store) *Memory {
	return &Memory{
		orgs:    make(map[string]*Organization),
		members: make(map[string]*Member),
		audits:  auditLog,
	}
}

var _ Store = (*Memory)(nil)

// SeedOrganization inserts an organization, overwriting any previous record.
func (m *Memory) SeedOrganization(org Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := org
	copied.Settings = copySettings(org.Settings)
	m.orgs[org.ID] = &copied
}

// SeedMember inserts a member without lifecycle checks. Test fixture only.
func (m *Memory) SeedMember(member Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := member
	m.members[member.ID] = &copied
}

func (m *Memory) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	org, ok := m.orgs[orgID]
	if !ok {
		return Organization{}, ErrNotFound
	}
	out := *org
	out.Settings = copySettings(org.Settings)
	return out, nil
}

func (m *Memory) UpdateOrganization(ctx context.Context, orgID string, upd OrganizationUpdate) (Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[orgID]
	if !ok {
		return Organization{}, ErrNotFound
	}
	if upd.Name != nil {
		org.Name = *upd.Name
	}
	if upd.Domain != nil {
		org.Domain = *upd.Domain
	}
	if len(upd.Settings) > 0 {
		if org.Settings == nil {
			org.Settings = map[string]any{}
		}
		for k, v := range upd.Settings {
			org.Settings[k] = v
		}
	}
	org.UpdatedAt = time.Now().UTC()
	out := *org
	out.Settings = copySettings(org.Settings)
	return out, nil
}

func (m *Memory) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Member
	for _, member := range m.members {
		if member.OrganizationID == orgID {
			result = append(result, *member)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) GetMember(ctx context.Context, orgID, userID string) (Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[userID]
	if !ok || member.OrganizationID != orgID {
		return Member{}, ErrNotFound
	}
	return *member, nil
}

func (m *Memory) CreateMember(ctx context.Context, member *Member, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[member.OrganizationID]; !ok {
		return ErrNotFound
	}
	// Any member with this email blocks the invite, inactive ones included.
	for _, existing := range m.members {
		if existing.OrganizationID == member.OrganizationID && existing.Email == member.Email {
			return ErrDuplicateMember
		}
	}
	copied := *member
	m.members[member.ID] = &copied
	return m.appendAudit(ctx, entry)
}

func (m *Memory) UpdateMemberRole(ctx context.Context, orgID, userID string, role authz.Role, entry *audit.Entry) (Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[userID]
	if !ok || member.OrganizationID != orgID {
		return Member{}, ErrNotFound
	}
	member.Role = role
	member.UpdatedAt = time.Now().UTC()
	if err := m.appendAudit(ctx, entry); err != nil {
		return Member{}, err
	}
	return *member, nil
}

func (m *Memory) DeactivateMember(ctx context.Context, orgID, userID string, entry *audit.Entry) (Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[userID]
	if !ok || member.OrganizationID != orgID {
		return Member{}, ErrNotFound
	}
	member.Status = StatusInactive
	member.UpdatedAt = time.Now().UTC()
	if err := m.appendAudit(ctx, entry); err != nil {
		return Member{}, err
	}
	return *member, nil
}

func (m *Memory) MarkMemberActive(ctx context.Context, orgID, userID string, at time.Time) (Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[userID]
	if !ok || member.OrganizationID != orgID || member.Status == StatusInactive {
		return Member{}, ErrNotFound
	}
	if member.Status == StatusPending {
		member.Status = StatusActive
	}
	stamp := at
	member.LastLogin = &stamp
	member.UpdatedAt = at
	return *member, nil
}

func (m *Memory) appendAudit(ctx context.Context, entry *audit.Entry) error {
	if entry == nil || m.audits == nil {
		return nil
	}
	return m.audits.Append(ctx, entry)
}

func copySettings(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out
}
