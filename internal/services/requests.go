package services

import "securestop-backend/internal/models"

type ReceiveAlertRequest struct {
	ID         string                `json:"id" validate:"required,max=128"`
	Title      string                `json:"title" validate:"required,max=120"`
	Body       string                `json:"body" validate:"max=1000"`
	Recipients models.RecipientGroup `json:"recipients" validate:"required,oneof=parents school driver both"`
	Severity   models.Severity       `json:"severity,omitempty" validate:"omitempty,oneof=green yellow orange red"`
	TemplateID models.TemplateID     `json:"templateId,omitempty"`
	VehicleID  string                `json:"vehicleId,omitempty" validate:"omitempty,max=64"`
	CreatedAt  int64                 `json:"createdAt,omitempty" validate:"gte=0"`
}

// Message converts the request into an inbox message sent by role
func (r ReceiveAlertRequest) Message(role models.Role) models.AlertMessage {
	return models.AlertMessage{
		ID:            r.ID,
		Title:         r.Title,
		Body:          r.Body,
		Recipients:    r.Recipients,
		Severity:      r.Severity,
		TemplateID:    r.TemplateID,
		VehicleID:     r.VehicleID,
		CreatedAt:     r.CreatedAt,
		CreatedByRole: role,
	}
}

type IncidentNoteRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
}

type ResolveIncidentRequest struct {
	Message string `json:"message,omitempty" validate:"max=1000"`
}

type SetTripStatusRequest struct {
	Status models.TripStatus `json:"status" validate:"required"`
}

type SetRouteRequest struct {
	RouteID    string        `json:"routeId,omitempty" validate:"max=64"`
	DriverName string        `json:"driverName,omitempty" validate:"max=120"`
	Stops      []models.Stop `json:"stops" validate:"required,min=1,max=200,dive"`
}

type LocationBatchRequest struct {
	Points []models.VehicleLocation `json:"points" validate:"required,min=1,max=100,dive"`
}

type AddScanRequest struct {
	ScannedID string              `json:"scannedId" validate:"required,max=128"`
	Category  models.ScanCategory `json:"category" validate:"required,oneof=public-transit-passengers school-student-ids private-misc"`
	StopIndex *int                `json:"stopIndex,omitempty" validate:"omitempty,gte=0"`
	Note      string              `json:"note,omitempty" validate:"max=500"`
}

// Event converts the request into a scan event
func (r AddScanRequest) Event() models.ScanEvent {
	return models.ScanEvent{
		ScannedID: r.ScannedID,
		Category:  r.Category,
		StopIndex: r.StopIndex,
		Note:      r.Note,
	}
}

type SetStopIndexRequest struct {
	Index int `json:"index" validate:"gte=0"`
}
