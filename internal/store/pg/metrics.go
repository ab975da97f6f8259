package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cybrsens.io/internal/audit"
	"cybrsens.io/internal/metrics"
)

var _ metrics.Store = (*Store)(nil)

func (s *Store) ListSamples(ctx context.Context, orgID string, since time.Time) ([]metrics.Sample, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, metric_type, value, severity, recorded_at, created_by, metadata
		from security_metrics
		where organization_id = $1 and recorded_at >= $2
		order by recorded_at desc
	`, orgID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []metrics.Sample
	for rows.Next() {
		var (
			sample  metrics.Sample
			typ     string
			sev     string
			rawMeta []byte
		)
		if err := rows.Scan(&sample.ID, &sample.OrganizationID, &typ, &sample.Value, &sev, &sample.RecordedAt, &sample.CreatedBy, &rawMeta); err != nil {
			return nil, err
		}
		sample.Type = metrics.Type(typ)
		sample.Severity = metrics.Severity(sev)
		if len(rawMeta) > 0 {
			sample.Metadata = map[string]any{}
			if err := json.Unmarshal(rawMeta, &sample.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func (s *Store) InsertSample(ctx context.Context, sample *metrics.Sample, entry *audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	meta := []byte("{}")
	if len(sample.Metadata) > 0 {
		bytes, err := json.Marshal(sample.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = bytes
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into security_metrics (id, organization_id, metric_type, value, severity, recorded_at, created_by, metadata)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sample.ID, sample.OrganizationID, string(sample.Type), sample.Value, string(sample.Severity), sample.RecordedAt, sample.CreatedBy, meta); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return errors.New("organization not found")
		}
		return err
	}
	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListActiveThreats(ctx context.Context, orgID string, limit int) ([]metrics.Threat, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, title, severity, status, coalesce(source, ''), detected_at
		from threats
		where organization_id = $1 and status in ('active', 'investigating')
		order by detected_at desc
		limit $2
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threats []metrics.Threat
	for rows.Next() {
		var (
			threat metrics.Threat
			sev    string
		)
		if err := rows.Scan(&threat.ID, &threat.OrganizationID, &threat.Title, &sev, &threat.Status, &threat.Source, &threat.DetectedAt); err != nil {
			return nil, err
		}
		threat.Severity = metrics.Severity(sev)
		threats = append(threats, threat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return threats, nil
}

func (s *Store) ListRecentIncidents(ctx context.Context, orgID string, limit int) ([]metrics.Incident, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, title, severity, coalesce(category, ''), status, created_at
		from incidents
		where organization_id = $1
		order by created_at desc
		limit $2
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []metrics.Incident
	for rows.Next() {
		var (
			incident metrics.Incident
			sev      string
		)
		if err := rows.Scan(&incident.ID, &incident.OrganizationID, &incident.Title, &sev, &incident.Category, &incident.Status, &incident.CreatedAt); err != nil {
			return nil, err
		}
		incident.Severity = metrics.Severity(sev)
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return incidents, nil
}
