package directory

import (
	"context"
	"time"

	"cybrsens.io/internal/audit"
	"cybrsens.io/internal/authz"
)

// Store is the persistence contract for organizations and members.
//
// Mutations that carry an *audit.Entry must commit the primary change and
// the audit append atomically: either both land or neither does. The store
// must also serialize conflicting writes to the same member record so a
// concurrent role update and removal can never interleave into a record
// with inconsistent role+status.
type Store interface {
	GetOrganization(ctx context.Context, orgID string) (Organization, error)
	// UpdateOrganization applies a partial update. Settings entries merge
	// into the existing settings map leaf by leaf; siblings are preserved.
	UpdateOrganization(ctx context.Context, orgID string, upd OrganizationUpdate) (Organization, error)

	ListMembers(ctx context.Context, orgID string) ([]Member, error)
	GetMember(ctx context.Context, orgID, userID string) (Member, error)

	// CreateMember fails with ErrDuplicateMember when any member with the
	// same email exists in the organization, regardless of status.
	CreateMember(ctx context.Context, member *Member, entry *audit.Entry) error
	UpdateMemberRole(ctx context.Context, orgID, userID string, role authz.Role, entry *audit.Entry) (Member, error)
	// DeactivateMember soft deletes: status becomes inactive, the row stays.
	DeactivateMember(ctx context.Context, orgID, userID string, entry *audit.Entry) (Member, error)
	// MarkMemberActive records a first successful session: pending flips to
	// active and last_login is stamped. Inactive members are not revived.
	MarkMemberActive(ctx context.Context, orgID, userID string, at time.Time) (Member, error)
}

// OrganizationUpdate is a partial organization mutation. Nil fields are
// left untouched; Settings holds leaf values to merge.
type OrganizationUpdate struct {
	Name     *string
	Domain   *string
	Settings map[string]any
}
