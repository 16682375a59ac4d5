package models

// Role identifies which experience a caller is using
type Role string

const (
	RoleParent Role = "parent"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// RecipientGroup is the intended audience of an alert
type RecipientGroup string

const (
	RecipientsParents RecipientGroup = "parents"
	RecipientsSchool  RecipientGroup = "school"
	RecipientsDriver  RecipientGroup = "driver"
	RecipientsBoth    RecipientGroup = "both"
)

func (g RecipientGroup) Valid() bool {
	switch g {
	case RecipientsParents, RecipientsSchool, RecipientsDriver, RecipientsBoth:
		return true
	}
	return false
}

// Severity is ordered by urgency: green < yellow < orange < red.
// The empty value means the alert carries no severity.
type Severity string

const (
	SeverityNone   Severity = ""
	SeverityGreen  Severity = "green"
	SeverityYellow Severity = "yellow"
	SeverityOrange Severity = "orange"
	SeverityRed    Severity = "red"
)

// Rank returns the urgency rank of s; 0 for no severity
func (s Severity) Rank() int {
	switch s {
	case SeverityGreen:
		return 1
	case SeverityYellow:
		return 2
	case SeverityOrange:
		return 3
	case SeverityRed:
		return 4
	}
	return 0
}

// Escalates reports whether alerts of this severity open an incident
func (s Severity) Escalates() bool {
	return s == SeverityRed || s == SeverityOrange
}

type AlertMessage struct {
	ID            string         `json:"id" bson:"id"`
	Title         string         `json:"title" bson:"title"`
	Body          string         `json:"body" bson:"body"`
	Recipients    RecipientGroup `json:"recipients" bson:"recipients"`
	Severity      Severity       `json:"severity,omitempty" bson:"severity,omitempty"`
	TemplateID    TemplateID     `json:"templateId,omitempty" bson:"template_id,omitempty"`
	VehicleID     string         `json:"vehicleId,omitempty" bson:"vehicle_id,omitempty"`
	CreatedAt     int64          `json:"createdAt" bson:"created_at"` // epoch milliseconds
	CreatedByRole Role           `json:"createdByRole" bson:"created_by_role"`
}

type NotificationPrefs struct {
	Enabled                bool `json:"enabled"`
	ReceiveDriverAlerts    bool `json:"receiveDriverAlerts"`
	ReceiveAdminBroadcasts bool `json:"receiveAdminBroadcasts"`
}

// DefaultNotificationPrefs returns prefs with every channel switched on
func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{
		Enabled:                true,
		ReceiveDriverAlerts:    true,
		ReceiveAdminBroadcasts: true,
	}
}

// NotificationPrefsPatch carries a partial prefs update; nil fields are left alone
type NotificationPrefsPatch struct {
	Enabled                *bool `json:"enabled,omitempty"`
	ReceiveDriverAlerts    *bool `json:"receiveDriverAlerts,omitempty"`
	ReceiveAdminBroadcasts *bool `json:"receiveAdminBroadcasts,omitempty"`
}

// Apply returns p with the non-nil fields of patch applied
func (p NotificationPrefs) Apply(patch NotificationPrefsPatch) NotificationPrefs {
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
	if patch.ReceiveDriverAlerts != nil {
		p.ReceiveDriverAlerts = *patch.ReceiveDriverAlerts
	}
	if patch.ReceiveAdminBroadcasts != nil {
		p.ReceiveAdminBroadcasts = *patch.ReceiveAdminBroadcasts
	}
	return p
}
