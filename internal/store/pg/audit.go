package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cybrsens.io/internal/audit"
)

var _ audit.Store = (*Store)(nil)

// insertAudit appends the entry inside the caller's transaction so the
// primary change and its audit record commit together.
func insertAudit(ctx context.Context, tx *sql.Tx, entry *audit.Entry) error {
	if entry == nil {
		return nil
	}
	details := []byte("{}")
	if len(entry.Details) > 0 {
		bytes, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = bytes
	}
	_, err := tx.ExecContext(ctx, `
		insert into audit_logs (id, organization_id, actor_user_id, action, resource_type, resource_id, details, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.OrganizationID, entry.ActorUserID, entry.Action, entry.ResourceType, entry.ResourceID, details, entry.CreatedAt)
	return err
}

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListByOrg(ctx context.Context, orgID string, limit int) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, actor_user_id, action, resource_type, resource_id, details, created_at
		from audit_logs
		where organization_id = $1
		order by created_at desc
		limit $2
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry      audit.Entry
			rawDetails []byte
		)
		if err := rows.Scan(&entry.ID, &entry.OrganizationID, &entry.ActorUserID, &entry.Action, &entry.ResourceType, &entry.ResourceID, &rawDetails, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Details = map[string]any{}
		if len(rawDetails) > 0 {
			if err := json.Unmarshal(rawDetails, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
