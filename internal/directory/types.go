package directory

import (
	"time"

	"cybrsens.io/internal/authz"
)

// Member lifecycle states. Removal never deletes the row: the record flips
// to inactive and is retained for audit continuity.
const (
	StatusActive   = "active"
	StatusPending  = "pending"
	StatusInactive = "inactive"
)

// Organization settings keys accepted by UpdateOrganization.
const (
	SettingTimezone              = "timezone"
	SettingDataRetentionDays     = "data_retention_days"
	SettingSessionTimeoutMinutes = "session_timeout_minutes"
	SettingPasswordPolicy        = "password_policy"
)

// Organization is a tenant. All data in the system is partitioned by its id.
type Organization struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Domain    string         `json:"domain"`
	Settings  map[string]any `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Member is a user record scoped to one organization. OrganizationID is
// immutable after creation; role and status only change through the
// lifecycle service.
type Member struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Email          string         `json:"email"`
	Name           string         `json:"name"`
	Role           authz.Role     `json:"role"`
	Status         string         `json:"status"`
	LastLogin      *time.Time     `json:"last_login,omitempty"`
	Preferences    map[string]any `json:"preferences,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DefaultPreferences returns the preference set new members start with.
func DefaultPreferences() map[string]any {
	return map[string]any{
		"theme":            "dark",
		"dashboard_layout": "grid",
		"notifications": map[string]any{
			"email": true,
			"push":  false,
			"sms":   false,
		},
	}
}
