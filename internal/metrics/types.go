package metrics

import (
	"errors"
	"time"
)

// Type enumerates the four known security metric types.
type Type string

const (
	TypeThreats         Type = "threats"
	TypeIncidents       Type = "incidents"
	TypeVulnerabilities Type = "vulnerabilities"
	TypeCompliance      Type = "compliance"
)

// Valid reports whether t is a known metric type.
func (t Type) Valid() bool {
	switch t {
	case TypeThreats, TypeIncidents, TypeVulnerabilities, TypeCompliance:
		return true
	}
	return false
}

// Severity is the qualitative risk level attached to samples, threats and
// incidents.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Trend directions between the two most recent samples of a type.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Sample is one raw time-stamped metric observation. Immutable once written.
type Sample struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Type           Type           `json:"metric_type"`
	Value          float64        `json:"value"`
	Severity       Severity       `json:"severity"`
	RecordedAt     time.Time      `json:"recorded_at"`
	CreatedBy      string         `json:"created_by"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// TypeSummary is the derived view of one metric type over a window.
type TypeSummary struct {
	Current  float64  `json:"current"`
	Change   float64  `json:"change"`
	Trend    string   `json:"trend"`
	Severity Severity `json:"severity"`
}

// Summary is recomputed on every query and never cached across calls.
type Summary struct {
	Threats         TypeSummary `json:"threats"`
	Incidents       TypeSummary `json:"incidents"`
	Vulnerabilities TypeSummary `json:"vulnerabilities"`
	Compliance      TypeSummary `json:"compliance"`
}

// Threat is read-only from the core's perspective; the detection pipeline
// that creates these records lives elsewhere.
type Threat struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Severity       Severity  `json:"severity"`
	Status         string    `json:"status"`
	Source         string    `json:"source,omitempty"`
	DetectedAt     time.Time `json:"detected_at"`
}

// Incident is likewise read-only here.
type Incident struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Severity       Severity  `json:"severity"`
	Category       string    `json:"category,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Redacted is the shape viewers get for threats and incidents in exports.
type Redacted struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`
}

// Snapshot is a serializable export of the dashboard state. Threats and
// Incidents hold either full records or Redacted ones depending on the
// exporting role; the metric summary is always complete.
type Snapshot struct {
	Metrics    Summary   `json:"metrics"`
	Threats    []any     `json:"threats"`
	Incidents  []any     `json:"incidents"`
	ExportedAt time.Time `json:"exported_at"`
	ExportedBy string    `json:"exported_by"`
}

var (
	// ErrForbidden is an authorization denial on the ingestion path.
	ErrForbidden = errors.New("metrics: forbidden")
	// ErrInvalid marks malformed input (unknown type or severity).
	ErrInvalid = errors.New("metrics: invalid input")
	// ErrUnavailable marks a store timeout or transient failure on a
	// mutation. Reads never surface it; they degrade to defaults instead.
	ErrUnavailable = errors.New("metrics: store unavailable")
)
