// Package audit owns the append-only record of privileged actions. All
// writes go through a Store's single Append operation; entries are never
// updated or deleted, and the soft-deleted member records they reference
// are retained so the trail stays resolvable.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"cybrsens.io/internal/obs"
)

// Actions recorded for privileged mutations.
const (
	ActionUserInvited     = "user_invited"
	ActionUserRoleUpdated = "user_role_updated"
	ActionUserRemoved     = "user_removed"
	ActionMetricRecorded  = "metric_recorded"
)

// Entry is one immutable audit record.
type Entry struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	ActorUserID    string         `json:"actor_user_id"`
	Action         string         `json:"action"`
	ResourceType   string         `json:"resource_type"`
	ResourceID     string         `json:"resource_id"`
	Details        map[string]any `json:"details"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Store appends immutable entries. Appends are commutative; presentation
// order is defined by querying on CreatedAt, not by insertion order.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByOrg(ctx context.Context, orgID string, limit int) ([]Entry, error)
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so audit
// log lines can be correlated with request logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Emit writes a structured audit log line for an appended entry and bumps
// the audit counter. Log emission is observability, not the record of
// truth; the Store append is.
func Emit(ctx context.Context, entry *Entry) {
	if entry == nil {
		return
	}
	line := map[string]any{
		"ts":              entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		"type":            "audit",
		"event":           entry.Action,
		"organization_id": entry.OrganizationID,
		"actor_user_id":   entry.ActorUserID,
		"resource_type":   entry.ResourceType,
		"resource_id":     entry.ResourceID,
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		line["request_id"] = rid
	}
	if len(entry.Details) > 0 {
		line["details"] = entry.Details
	} else {
		line["details"] = map[string]any{}
	}
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
	obs.CountAuditEntry(entry.Action)
}

// Memory is an in-process Store used by tests and DSN-less deployments.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory creates an empty in-memory audit store.
func NewMemory() *Memory {
	return &Memory{}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Append(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	if len(entry.Details) > 0 {
		copied.Details = make(map[string]any, len(entry.Details))
		for k, v := range entry.Details {
			copied.Details[k] = v
		}
	}
	m.entries = append(m.entries, copied)
	return nil
}

func (m *Memory) ListByOrg(ctx context.Context, orgID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Entry
	// Newest first by CreatedAt; the slice is append-ordered so walk backwards.
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].OrganizationID != orgID {
			continue
		}
		result = append(result, m.entries[i])
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}
