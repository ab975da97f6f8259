package metrics

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
	"cybrsens.io/internal/obs"
)

const defaultListLimit = 10

// Store is the persistence contract for the aggregator.
type Store interface {
	// ListSamples returns samples recorded at or after since, newest first.
	ListSamples(ctx context.Context, orgID string, since time.Time) ([]Sample, error)
	// InsertSample commits the sample and its audit entry atomically.
	InsertSample(ctx context.Context, sample *Sample, entry *audit.Entry) error
	// ListActiveThreats returns threats with status active or investigating,
	// newest detected_at first.
	ListActiveThreats(ctx context.Context, orgID string, limit int) ([]Threat, error)
	// ListRecentIncidents returns incidents newest created_at first.
	ListRecentIncidents(ctx context.Context, orgID string, limit int) ([]Incident, error)
}

// Aggregator converts raw samples into windowed summaries and serves the
// read side of the dashboard. Reads fail open: a store failure degrades to
// defined defaults so metrics never block dashboard availability. The
// ingestion path fails closed like every other mutation.
type Aggregator struct {
	store Store
	now   func() time.Time
}

// NewAggregator constructs the metrics aggregator.
func NewAggregator(store Store) (*Aggregator, error) {
	if store == nil {
		return nil, errors.New("metrics store is required")
	}
	return &Aggregator{store: store, now: time.Now}, nil
}

// WithClock overrides the time source. Only intended for test use.
func (a *Aggregator) WithClock(fn func() time.Time) *Aggregator {
	if fn != nil {
		a.now = fn
	}
	return a
}

// WindowStart resolves a time-range token to the window's start instant.
// Unrecognized tokens fall back to 24h rather than erroring: the token
// comes from a constrained selector, not untrusted input.
func (a *Aggregator) WindowStart(token string) time.Time {
	now := a.now().UTC()
	switch token {
	case "1h":
		return now.Add(-time.Hour)
	case "24h":
		return now.Add(-24 * time.Hour)
	case "7d":
		return now.Add(-7 * 24 * time.Hour)
	case "30d":
		return now.Add(-30 * 24 * time.Hour)
	default:
		return now.Add(-24 * time.Hour)
	}
}

// Summarize recomputes the windowed summary for every known metric type.
func (a *Aggregator) Summarize(ctx context.Context, orgID, timeRange string) Summary {
	summary := defaultSummary()
	samples, err := a.store.ListSamples(ctx, orgID, a.WindowStart(timeRange))
	if err != nil {
		obs.LogRequest(map[string]any{
			"level":           "warn",
			"msg":             "metrics summary degraded to defaults",
			"organization_id": orgID,
			"error":           err.Error(),
		})
		return summary
	}

	byType := make(map[Type][]Sample)
	for _, sample := range samples {
		byType[sample.Type] = append(byType[sample.Type], sample)
	}
	for typ, typed := range byType {
		ts := summarizeType(typed)
		switch typ {
		case TypeThreats:
			summary.Threats = ts
		case TypeIncidents:
			summary.Incidents = ts
		case TypeVulnerabilities:
			summary.Vulnerabilities = ts
		case TypeCompliance:
			summary.Compliance = ts
		}
	}
	return summary
}

// summarizeType derives the summary from samples ordered newest first.
func summarizeType(samples []Sample) TypeSummary {
	latest := samples[0]
	ts := TypeSummary{
		Current:  latest.Value,
		Change:   0,
		Trend:    TrendStable,
		Severity: latest.Severity,
	}
	if len(samples) < 2 {
		return ts
	}
	previous := samples[1]
	// previous == 0 must fail safe to 0% change; a non-finite value must
	// never escape this function.
	if previous.Value != 0 {
		ts.Change = (latest.Value - previous.Value) / previous.Value * 100
	}
	switch {
	case latest.Value > previous.Value:
		ts.Trend = TrendUp
	case latest.Value < previous.Value:
		ts.Trend = TrendDown
	}
	return ts
}

// ActiveThreats lists open threats, newest first, bounded to limit.
func (a *Aggregator) ActiveThreats(ctx context.Context, orgID string, limit int) []Threat {
	if limit <= 0 {
		limit = defaultListLimit
	}
	threats, err := a.store.ListActiveThreats(ctx, orgID, limit)
	if err != nil {
		obs.LogRequest(map[string]any{
			"level":           "warn",
			"msg":             "active threats query degraded to empty list",
			"organization_id": orgID,
			"error":           err.Error(),
		})
		return []Threat{}
	}
	return threats
}

// RecentIncidents lists incidents, newest first, bounded to limit.
func (a *Aggregator) RecentIncidents(ctx context.Context, orgID string, limit int) []Incident {
	if limit <= 0 {
		limit = defaultListLimit
	}
	incidents, err := a.store.ListRecentIncidents(ctx, orgID, limit)
	if err != nil {
		obs.LogRequest(map[string]any{
			"level":           "warn",
			"msg":             "recent incidents query degraded to empty list",
			"organization_id": orgID,
			"error":           err.Error(),
		})
		return []Incident{}
	}
	return incidents
}

// Record ingests one raw sample. Analysts and admins only; the sample and
// its audit entry commit atomically or not at all.
func (a *Aggregator) Record(ctx context.Context, orgID string, typ Type, value float64, severity Severity, actor authn.Identity, metadata map[string]any) (Sample, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Sample{}, fmt.Errorf("%w: organization id is required", ErrInvalid)
	}
	if !typ.Valid() {
		return Sample{}, fmt.Errorf("%w: unknown metric type %q", ErrInvalid, typ)
	}
	if !severity.Valid() {
		return Sample{}, fmt.Errorf("%w: unknown severity %q", ErrInvalid, severity)
	}
	if !authz.Decide(actor.Role, authz.ActionIngestMetrics, false) {
		return Sample{}, ErrForbidden
	}

	now := a.now().UTC()
	sample := Sample{
		ID:             ids.New(),
		OrganizationID: orgID,
		Type:           typ,
		Value:          value,
		Severity:       severity,
		RecordedAt:     now,
		CreatedBy:      actor.UserID,
		Metadata:       metadata,
	}
	entry := &audit.Entry{
		ID:             ids.New(),
		OrganizationID: orgID,
		ActorUserID:    actor.UserID,
		Action:         audit.ActionMetricRecorded,
		ResourceType:   "security_metric",
		ResourceID:     sample.ID,
		Details: map[string]any{
			"metric_type": string(typ),
			"severity":    string(severity),
		},
		CreatedAt: now,
	}
	if err := a.store.InsertSample(ctx, &sample, entry); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	audit.Emit(ctx, entry)
	obs.CountMetricSample(string(typ))
	return sample, nil
}

// Export assembles a serializable snapshot. Viewers get threats and
// incidents redacted to id/title/severity; the metric summary is complete
// for every role.
func (a *Aggregator) Export(ctx context.Context, orgID, timeRange string, actor authn.Identity) Snapshot {
	summary := a.Summarize(ctx, orgID, timeRange)
	threats := a.ActiveThreats(ctx, orgID, defaultListLimit)
	incidents := a.RecentIncidents(ctx, orgID, defaultListLimit)

	snapshot := Snapshot{
		Metrics:    summary,
		Threats:    make([]any, 0, len(threats)),
		Incidents:  make([]any, 0, len(incidents)),
		ExportedAt: a.now().UTC(),
		ExportedBy: actor.UserID,
	}
	redact := actor.Role == authz.RoleViewer
	for _, threat := range threats {
		if redact {
			snapshot.Threats = append(snapshot.Threats, Redacted{ID: threat.ID, Title: threat.Title, Severity: threat.Severity})
			continue
		}
		snapshot.Threats = append(snapshot.Threats, threat)
	}
	for _, incident := range incidents {
		if redact {
			snapshot.Incidents = append(snapshot.Incidents, Redacted{ID: incident.ID, Title: incident.Title, Severity: incident.Severity})
			continue
		}
		snapshot.Incidents = append(snapshot.Incidents, incident)
	}
	return snapshot
}

func defaultSummary() Summary {
	return Summary{
		Threats:         TypeSummary{Current: 0, Change: 0, Trend: TrendStable, Severity: SeverityLow},
		Incidents:       TypeSummary{Current: 0, Change: 0, Trend: TrendStable, Severity: SeverityLow},
		Vulnerabilities: TypeSummary{Current: 0, Change: 0, Trend: TrendStable, Severity: SeverityLow},
		Compliance:      TypeSummary{Current: 100, Change: 0, Trend: TrendStable, Severity: SeverityLow},
	}
}
