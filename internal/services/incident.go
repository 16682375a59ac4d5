package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"securestop-backend/internal/models"
	"securestop-backend/internal/websocket"
	"securestop-backend/pkg/kv"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/metrics"
)

const (
	IncidentsKey      = "securestop.incidents.v1"
	IncidentsCapacity = 200
)

type incidentsDocument struct {
	Incidents []*models.Incident `json:"incidents"`
}

// IncidentService owns the incident list. Newest incidents come first.
type IncidentService struct {
	mu        sync.RWMutex
	incidents []*models.Incident

	store     kv.Store
	writer    *kv.Writer
	wsManager websocket.WebSocketManager
	now       Clock
	logger    *slog.Logger
}

func NewIncidentService(writer *kv.Writer) *IncidentService {
	s := &IncidentService{
		writer: writer,
		now:    time.Now,
		logger: logging.Default(),
	}
	if writer != nil {
		s.store = writer.Store()
	}
	return s
}

// SetClock overrides the time source
func (s *IncidentService) SetClock(now Clock) {
	s.now = now
}

// SetWebSocketManager enables pushing incident changes to connected clients
func (s *IncidentService) SetWebSocketManager(wsManager websocket.WebSocketManager) {
	s.wsManager = wsManager
}

// Hydrate loads persisted incidents. Missing or malformed state yields an empty list.
func (s *IncidentService) Hydrate(ctx context.Context) {
	if s.store == nil {
		return
	}
	var doc incidentsDocument
	found, err := kv.GetJSON(ctx, s.store, IncidentsKey, &doc)
	if err != nil {
		s.logger.Warn("ignoring unreadable incidents", logging.ErrAttr(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = nil
	if !found || err != nil {
		return
	}
	for _, inc := range doc.Incidents {
		if inc == nil || inc.ID == "" {
			continue
		}
		s.incidents = append(s.incidents, inc)
		if len(s.incidents) == IncidentsCapacity {
			break
		}
	}
}

// UpsertFromAlert opens an incident for red and orange alerts. It returns the
// incident and true when a new one was created; alerts that do not escalate or
// that already have an incident leave the list unchanged.
func (s *IncidentService) UpsertFromAlert(alert models.AlertMessage) (*models.Incident, bool) {
	if !alert.Severity.Escalates() {
		return nil, false
	}

	s.mu.Lock()
	for _, inc := range s.incidents {
		if inc.AlertID == alert.ID {
			existing := inc.Clone()
			s.mu.Unlock()
			return existing, false
		}
	}

	nowMs := millis(s.now())
	createdAt := alert.CreatedAt
	if createdAt == 0 {
		createdAt = nowMs
	}

	inc := &models.Incident{
		ID:            "inc-" + alert.ID,
		AlertID:       alert.ID,
		Title:         alert.Title,
		Description:   alert.Body,
		Severity:      alert.Severity,
		VehicleID:     alert.VehicleID,
		CreatedByRole: alert.CreatedByRole,
		Status:        models.IncidentOpen,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
		Events: []models.IncidentEvent{{
			ID:      newID("evt", nowMs),
			At:      createdAt,
			ByRole:  alert.CreatedByRole,
			Type:    models.IncidentEventCreated,
			Message: fmt.Sprintf("Incident created from alert (%s).", strings.ToUpper(string(alert.Severity))),
		}},
	}

	s.incidents = append([]*models.Incident{inc}, s.incidents...)
	if len(s.incidents) > IncidentsCapacity {
		s.incidents = s.incidents[:IncidentsCapacity]
	}
	out := inc.Clone()
	s.persistLocked()
	s.mu.Unlock()

	metrics.IncIncidentOpened(string(alert.Severity))
	s.logger.Info("incident opened", slog.String("incident_id", inc.ID), slog.String("severity", string(inc.Severity)))
	s.publish(out)
	return out, true
}

// AddNote appends a note event. Notes are accepted in any status.
func (s *IncidentService) AddNote(id, message string, byRole models.Role) (*models.Incident, error) {
	s.mu.Lock()
	inc := s.findLocked(id)
	if inc == nil {
		s.mu.Unlock()
		return nil, ErrIncidentNotFound
	}

	nowMs := millis(s.now())
	inc.Events = append(inc.Events, models.IncidentEvent{
		ID:      newID("evt", nowMs),
		At:      nowMs,
		ByRole:  byRole,
		Type:    models.IncidentEventNote,
		Message: message,
	})
	inc.UpdatedAt = nowMs
	out := inc.Clone()
	s.persistLocked()
	s.mu.Unlock()

	s.publish(out)
	return out, nil
}

// Resolve marks the incident resolved. Resolving twice is a no-op.
// A blank message is recorded as "Resolved.".
func (s *IncidentService) Resolve(id, message string, byRole models.Role) (*models.Incident, error) {
	s.mu.Lock()
	inc := s.findLocked(id)
	if inc == nil {
		s.mu.Unlock()
		return nil, ErrIncidentNotFound
	}
	if inc.Status == models.IncidentResolved {
		out := inc.Clone()
		s.mu.Unlock()
		return out, nil
	}

	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "Resolved."
	}
	nowMs := millis(s.now())
	inc.Status = models.IncidentResolved
	inc.Events = append(inc.Events, models.IncidentEvent{
		ID:      newID("evt", nowMs),
		At:      nowMs,
		ByRole:  byRole,
		Type:    models.IncidentEventResolved,
		Message: msg,
	})
	inc.UpdatedAt = nowMs
	out := inc.Clone()
	s.persistLocked()
	s.mu.Unlock()

	metrics.IncIncidentResolved()
	s.logger.Info("incident resolved", slog.String("incident_id", id), slog.String("by_role", string(byRole)))
	s.publish(out)
	return out, nil
}

// ClearAll empties the list and removes the persisted copy
func (s *IncidentService) ClearAll() {
	s.mu.Lock()
	s.incidents = nil
	if s.writer != nil {
		s.writer.Set(IncidentsKey, nil)
	}
	s.mu.Unlock()
}

func (s *IncidentService) Get(id string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc := s.findLocked(id)
	if inc == nil {
		return nil, ErrIncidentNotFound
	}
	return inc.Clone(), nil
}

// List returns incidents matching filter, newest first
func (s *IncidentService) List(filter models.IncidentFilter) []*models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		if filter.Matches(inc) {
			out = append(out, inc.Clone())
		}
	}
	return out
}

// OpenCount returns the number of unresolved incidents
func (s *IncidentService) OpenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, inc := range s.incidents {
		if inc.Status == models.IncidentOpen {
			n++
		}
	}
	return n
}

func (s *IncidentService) findLocked(id string) *models.Incident {
	for _, inc := range s.incidents {
		if inc.ID == id {
			return inc
		}
	}
	return nil
}

func (s *IncidentService) persistLocked() {
	if s.writer == nil {
		return
	}
	doc := incidentsDocument{Incidents: s.incidents}
	s.writer.Set(IncidentsKey, doc)
}

func (s *IncidentService) publish(inc *models.Incident) {
	if s.wsManager == nil {
		return
	}
	if err := s.wsManager.BroadcastIncident(inc); err != nil {
		s.logger.Warn("failed to push incident", slog.String("incident_id", inc.ID), logging.ErrAttr(err))
	}
}
