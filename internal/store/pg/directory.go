package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cybrsens.io/internal/audit"
	"cybrsens.io/internal/authz"
	"cybrsens.io/internal/directory"
)

var _ directory.Store = (*Store)(nil)

func (s *Store) GetOrganization(ctx context.Context, orgID string) (directory.Organization, error) {
	if s.db == nil {
		return directory.Organization{}, errors.New("database connection unavailable")
	}
	var (
		org         directory.Organization
		rawSettings []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, domain, settings, created_at, updated_at
		from organizations
		where id = $1
	`, orgID).Scan(&org.ID, &org.Name, &org.Domain, &rawSettings, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Organization{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Organization{}, err
	}
	org.Settings = map[string]any{}
	if len(rawSettings) > 0 {
		if err := json.Unmarshal(rawSettings, &org.Settings); err != nil {
			return directory.Organization{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	return org, nil
}

func (s *Store) UpdateOrganization(ctx context.Context, orgID string, upd directory.OrganizationUpdate) (directory.Organization, error) {
	if s.db == nil {
		return directory.Organization{}, errors.New("database connection unavailable")
	}

	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Domain != nil {
		sets = append(sets, fmt.Sprintf("domain = $%d", idx))
		args = append(args, *upd.Domain)
		idx++
	}
	if len(upd.Settings) > 0 {
		bytes, err := json.Marshal(upd.Settings)
		if err != nil {
			return directory.Organization{}, fmt.Errorf("marshal settings: %w", err)
		}
		// jsonb concatenation merges changed keys and keeps siblings.
		sets = append(sets, fmt.Sprintf("settings = settings || $%d::jsonb", idx))
		args = append(args, bytes)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update organizations set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, orgID)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return directory.Organization{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return directory.Organization{}, err
		}
		if aff == 0 {
			return directory.Organization{}, directory.ErrNotFound
		}
	}
	return s.GetOrganization(ctx, orgID)
}

const memberColumns = `id, organization_id, email, name, role, status, last_login, preferences, created_at, updated_at`

func scanMember(scan func(dest ...any) error) (directory.Member, error) {
	var (
		m        directory.Member
		role     string
		last     sql.NullTime
		rawPrefs []byte
	)
	if err := scan(&m.ID, &m.OrganizationID, &m.Email, &m.Name, &role, &m.Status, &last, &rawPrefs, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return directory.Member{}, err
	}
	m.Role = authz.Role(role)
	if last.Valid {
		t := last.Time
		m.LastLogin = &t
	}
	if len(rawPrefs) > 0 {
		m.Preferences = map[string]any{}
		if err := json.Unmarshal(rawPrefs, &m.Preferences); err != nil {
			return directory.Member{}, fmt.Errorf("decode preferences: %w", err)
		}
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, orgID string) ([]directory.Member, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+memberColumns+`
		from users
		where organization_id = $1
		order by created_at desc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []directory.Member
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) GetMember(ctx context.Context, orgID, userID string) (directory.Member, error) {
	if s.db == nil {
		return directory.Member{}, errors.New("database connection unavailable")
	}
	m, err := scanMember(s.db.QueryRowContext(ctx, `
		select `+memberColumns+`
		from users
		where organization_id = $1 and id = $2
	`, orgID, userID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Member{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Member{}, err
	}
	return m, nil
}

func (s *Store) CreateMember(ctx context.Context, member *directory.Member, entry *audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	prefs, err := json.Marshal(member.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into users (id, organization_id, email, name, role, status, preferences, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, member.ID, member.OrganizationID, member.Email, member.Name, string(member.Role), member.Status, prefs, member.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return directory.ErrDuplicateMember
			case pgErrForeignKeyViolation:
				return directory.ErrNotFound
			}
		}
		return err
	}
	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpdateMemberRole(ctx context.Context, orgID, userID string, role authz.Role, entry *audit.Entry) (directory.Member, error) {
	return s.mutateMember(ctx, orgID, userID, entry, `
		update users set role = $3, updated_at = now()
		where organization_id = $1 and id = $2
	`, string(role))
}

func (s *Store) DeactivateMember(ctx context.Context, orgID, userID string, entry *audit.Entry) (directory.Member, error) {
	return s.mutateMember(ctx, orgID, userID, entry, `
		update users set status = 'inactive', updated_at = now()
		where organization_id = $1 and id = $2
	`)
}

// mutateMember locks the member row, applies the update, appends the audit
// entry and commits, all in one transaction. The row lock serializes
// conflicting writes to the same member.
func (s *Store) mutateMember(ctx context.Context, orgID, userID string, entry *audit.Entry, query string, extra ...any) (directory.Member, error) {
	if s.db == nil {
		return directory.Member{}, errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return directory.Member{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var dummy int
	err = tx.QueryRowContext(ctx, `
		select 1 from users where organization_id = $1 and id = $2 for update
	`, orgID, userID).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Member{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Member{}, err
	}

	args := append([]any{orgID, userID}, extra...)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return directory.Member{}, err
	}
	m, err := scanMember(tx.QueryRowContext(ctx, `
		select `+memberColumns+`
		from users
		where organization_id = $1 and id = $2
	`, orgID, userID).Scan)
	if err != nil {
		return directory.Member{}, err
	}
	if err := insertAudit(ctx, tx, entry); err != nil {
		return directory.Member{}, err
	}
	if err := tx.Commit(); err != nil {
		return directory.Member{}, err
	}
	return m, nil
}

func (s *Store) MarkMemberActive(ctx context.Context, orgID, userID string, at time.Time) (directory.Member, error) {
	if s.db == nil {
		return directory.Member{}, errors.New("database connection unavailable")
	}
	m, err := scanMember(s.db.QueryRowContext(ctx, `
		update users
		set status = case when status = 'pending' then 'active' else status end,
		    last_login = $3,
		    updated_at = now()
		where organization_id = $1 and id = $2 and status <> 'inactive'
		returning `+memberColumns+`
	`, orgID, userID, at).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Member{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Member{}, err
	}
	return m, nil
}
