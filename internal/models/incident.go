package models

// IncidentStatus of an incident
type IncidentStatus string

const (
	IncidentOpen     IncidentStatus = "open"
	IncidentResolved IncidentStatus = "resolved"
)

func (s IncidentStatus) Valid() bool {
	return s == IncidentOpen || s == IncidentResolved
}

// IncidentEventType of an audit trail entry
type IncidentEventType string

const (
	IncidentEventCreated  IncidentEventType = "created"
	IncidentEventNote     IncidentEventType = "note"
	IncidentEventResolved IncidentEventType = "resolved"
)

type IncidentEvent struct {
	ID      string            `json:"id" bson:"id"`
	At      int64             `json:"at" bson:"at"`
	ByRole  Role              `json:"byRole" bson:"by_role"`
	Type    IncidentEventType `json:"type" bson:"type"`
	Message string            `json:"message" bson:"message"`
}

// Incident is opened from an escalating alert. Events are append-only.
type Incident struct {
	ID            string          `json:"id" bson:"id"`
	AlertID       string          `json:"alertId" bson:"alert_id"`
	Title         string          `json:"title" bson:"title"`
	Description   string          `json:"description" bson:"description"`
	Severity      Severity        `json:"severity" bson:"severity"`
	VehicleID     string          `json:"vehicleId,omitempty" bson:"vehicle_id,omitempty"`
	CreatedByRole Role            `json:"createdByRole" bson:"created_by_role"`
	Status        IncidentStatus  `json:"status" bson:"status"`
	CreatedAt     int64           `json:"createdAt" bson:"created_at"`
	UpdatedAt     int64           `json:"updatedAt" bson:"updated_at"`
	Events        []IncidentEvent `json:"events" bson:"events"`
}

// Clone returns a deep copy so callers cannot mutate service state
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	c := *i
	c.Events = append([]IncidentEvent(nil), i.Events...)
	return &c
}

// IncidentFilter narrows incident listings; zero fields match everything
type IncidentFilter struct {
	Status    IncidentStatus `form:"status"`
	VehicleID string         `form:"vehicleId"`
}

func (f IncidentFilter) Matches(i *Incident) bool {
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	if f.VehicleID != "" && i.VehicleID != f.VehicleID {
		return false
	}
	return true
}
