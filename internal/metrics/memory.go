package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"cybrsens.io/internal/audit"
)

// Memory implements Store in process, for tests and DSN-less deployments.
type Memory struct {
	mu        sync.RWMutex
	samples   []Sample
	threats   []Threat
	incidents []Incident
	audits    audit.Store
}

// NewMemory creates an empty in-memory metrics store.
func NewMemory(auditLog audit.Store) *Memory {
	return &Memory{audits: auditLog}
}

var _ Store = (*Memory)(nil)

// SeedThreat inserts a threat fixture.
func (m *Memory) SeedThreat(threat Threat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threats = append(m.threats, threat)
}

// SeedIncident inserts an incident fixture.
func (m *Memory) SeedIncident(incident Incident) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = append(m.incidents, incident)
}

// SeedSample inserts a sample without the ingestion gate. Test fixture only.
func (m *Memory) SeedSample(sample Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample)
}

func (m *Memory) ListSamples(ctx context.Context, orgID string, since time.Time) ([]Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Sample
	for _, sample := range m.samples {
		if sample.OrganizationID != orgID || sample.RecordedAt.Before(since) {
			continue
		}
		result = append(result, sample)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt.After(result[j].RecordedAt)
	})
	return result, nil
}

func (m *Memory) InsertSample(ctx context.Context, sample *Sample, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, *sample)
	if entry != nil && m.audits != nil {
		return m.audits.Append(ctx, entry)
	}
	return nil
}

func (m *Memory) ListActiveThreats(ctx context.Context, orgID string, limit int) ([]Threat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Threat
	for _, threat := range m.threats {
		if threat.OrganizationID != orgID {
			continue
		}
		if threat.Status != "active" && threat.Status != "investigating" {
			continue
		}
		result = append(result, threat)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DetectedAt.After(result[j].DetectedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *Memory) ListRecentIncidents(ctx context.Context, orgID string, limit int) ([]Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Incident
	for _, incident := range m.incidents {
		if incident.OrganizationID != orgID {
			continue
		}
		result = append(result, incident)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
