package services

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"securestop-backend/internal/models"
	"securestop-backend/internal/websocket"
	"securestop-backend/pkg/kv"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/metrics"
	"securestop-backend/pkg/notify"
)

const (
	AlertsKey      = "securestop.alerts.v1"
	PrefsKeyPrefix = "securestop.prefs.v1:"

	roadConditionLimit = 3
)

var roadKeywords = regexp.MustCompile(`(?i)road|traffic|weather|accident|crash|closed|closure|detour`)

type alertsDocument struct {
	Alerts []models.AlertMessage `json:"alerts"`
}

type SendDriverAlertRequest struct {
	TemplateID models.TemplateID     `json:"templateId" validate:"required"`
	Recipients models.RecipientGroup `json:"recipients" validate:"required,oneof=parents school driver both"`
	Notes      []string              `json:"notes,omitempty" validate:"omitempty,max=10,dive,max=200"`
	VehicleID  string                `json:"vehicleId,omitempty" validate:"omitempty,max=64"`
}

type SendAdminBroadcastRequest struct {
	Title      string                `json:"title" validate:"required,min=1,max=120"`
	Body       string                `json:"body" validate:"required,min=1,max=1000"`
	Recipients models.RecipientGroup `json:"recipients" validate:"required,oneof=parents school driver both"`
	VehicleID  string                `json:"vehicleId,omitempty" validate:"omitempty,max=64"`
}

// AlertStatistics summarizes the inbox
type AlertStatistics struct {
	Total         int            `json:"total"`
	Urgent        int            `json:"urgent"`
	BySeverity    map[string]int `json:"bySeverity"`
	ByRecipients  map[string]int `json:"byRecipients"`
	OpenIncidents int            `json:"openIncidents"`
}

// NotificationService coordinates the alert inbox. Every received alert is
// offered to the incident service, pushed to viewers allowed to see it and
// handed to the notification sinks.
type NotificationService struct {
	mu    sync.RWMutex
	inbox []models.AlertMessage

	prefsMu sync.RWMutex
	prefs   map[string]models.NotificationPrefs

	incidents  *IncidentService
	trips      *TripService
	wsManager  websocket.WebSocketManager
	dispatcher *notify.Dispatcher
	store      kv.Store
	writer     *kv.Writer
	now        Clock
	logger     *slog.Logger
}

func NewNotificationService(incidents *IncidentService, writer *kv.Writer) *NotificationService {
	s := &NotificationService{
		prefs:     make(map[string]models.NotificationPrefs),
		incidents: incidents,
		writer:    writer,
		now:       time.Now,
		logger:    logging.Default(),
	}
	if writer != nil {
		s.store = writer.Store()
	}
	return s
}

func (s *NotificationService) SetClock(now Clock) {
	s.now = now
}

// SetTripService enables template side effects on the sender's trip
func (s *NotificationService) SetTripService(trips *TripService) {
	s.trips = trips
}

func (s *NotificationService) SetWebSocketManager(wsManager websocket.WebSocketManager) {
	s.wsManager = wsManager
}

func (s *NotificationService) SetDispatcher(dispatcher *notify.Dispatcher) {
	s.dispatcher = dispatcher
}

// Hydrate loads the persisted inbox. Missing or malformed state yields an empty inbox.
func (s *NotificationService) Hydrate(ctx context.Context) {
	if s.store == nil {
		return
	}
	var doc alertsDocument
	found, err := kv.GetJSON(ctx, s.store, AlertsKey, &doc)
	if err != nil {
		s.logger.Warn("ignoring unreadable inbox", logging.ErrAttr(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = nil
	if !found || err != nil {
		return
	}
	// replay oldest first so dedup and capacity rules hold
	for i := len(doc.Alerts) - 1; i >= 0; i-- {
		if doc.Alerts[i].ID == "" {
			continue
		}
		s.inbox = InboxReceive(s.inbox, doc.Alerts[i])
	}
}

// ReceiveAlert puts msg at the front of the inbox and fans it out
func (s *NotificationService) ReceiveAlert(ctx context.Context, msg models.AlertMessage) (models.AlertMessage, error) {
	if msg.ID == "" || !msg.Recipients.Valid() {
		return models.AlertMessage{}, ErrInvalidAlert
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = millis(s.now())
	}

	s.mu.Lock()
	s.inbox = InboxReceive(s.inbox, msg)
	if s.writer != nil {
		s.writer.Set(AlertsKey, alertsDocument{Alerts: s.inbox})
	}
	s.mu.Unlock()

	metrics.IncAlertReceived(string(msg.Severity), string(msg.CreatedByRole))
	s.logger.Info("alert received",
		slog.String("alert_id", msg.ID),
		slog.String("recipients", string(msg.Recipients)),
		slog.String("severity", string(msg.Severity)),
	)

	if s.incidents != nil {
		s.incidents.UpsertFromAlert(msg)
	}

	if s.wsManager != nil {
		err := s.wsManager.BroadcastAlert(msg, func(v websocket.Viewer) bool {
			return IsVisible(msg, v.Role, s.cachedPrefs(v.UserID))
		})
		if err != nil {
			s.logger.Warn("failed to push alert", slog.String("alert_id", msg.ID), logging.ErrAttr(err))
		}
	}

	return msg, nil
}

// RemoveAlert drops the alert with id. Unknown ids are ignored.
func (s *NotificationService) RemoveAlert(ctx context.Context, id string) bool {
	s.mu.Lock()
	before := len(s.inbox)
	s.inbox = InboxRemoveByID(s.inbox, id)
	removed := len(s.inbox) != before
	if removed && s.writer != nil {
		s.writer.Set(AlertsKey, alertsDocument{Alerts: s.inbox})
	}
	s.mu.Unlock()

	if removed && s.wsManager != nil {
		if err := s.wsManager.BroadcastAlertRemoved(id); err != nil {
			s.logger.Warn("failed to push alert removal", slog.String("alert_id", id), logging.ErrAttr(err))
		}
	}
	return removed
}

// SendDriverAlert builds an alert from a template and receives it.
// departed_* templates mark the trip Departed and route_started starts it.
func (s *NotificationService) SendDriverAlert(ctx context.Context, req SendDriverAlertRequest) (models.AlertMessage, error) {
	tpl, _ := models.LookupTemplate(req.TemplateID)

	body := tpl.Body
	if len(req.Notes) > 0 {
		body += "\n\nNotes: " + strings.Join(req.Notes, ", ")
	}

	nowMs := millis(s.now())
	msg := models.AlertMessage{
		ID:            newID("alert", nowMs),
		Title:         tpl.Title,
		Body:          body,
		Recipients:    req.Recipients,
		Severity:      tpl.Severity,
		TemplateID:    req.TemplateID,
		VehicleID:     req.VehicleID,
		CreatedAt:     nowMs,
		CreatedByRole: models.RoleDriver,
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(msg)
	}

	out, err := s.ReceiveAlert(ctx, msg)
	if err != nil {
		return models.AlertMessage{}, err
	}

	s.applyTemplateSideEffects(req.TemplateID, req.VehicleID)
	return out, nil
}

// SendAdminBroadcast sends a free-form orange alert from an admin
func (s *NotificationService) SendAdminBroadcast(ctx context.Context, req SendAdminBroadcastRequest) (models.AlertMessage, error) {
	nowMs := millis(s.now())
	msg := models.AlertMessage{
		ID:            newID("broadcast", nowMs),
		Title:         req.Title,
		Body:          req.Body,
		Recipients:    req.Recipients,
		Severity:      models.SeverityOrange,
		TemplateID:    models.TemplateAdminBroadcast,
		VehicleID:     req.VehicleID,
		CreatedAt:     nowMs,
		CreatedByRole: models.RoleAdmin,
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(msg)
	}
	return s.ReceiveAlert(ctx, msg)
}

func (s *NotificationService) applyTemplateSideEffects(id models.TemplateID, vehicleID string) {
	if s.trips == nil || vehicleID == "" {
		return
	}
	var err error
	switch id {
	case models.TemplateDepartedDepot, models.TemplateDepartedSchool:
		_, err = s.trips.SetStatus(vehicleID, models.TripDeparted)
	case models.TemplateRouteStarted:
		_, err = s.trips.StartTrip(vehicleID)
	default:
		return
	}
	if err != nil {
		s.logger.Warn("template side effect skipped",
			slog.String("template_id", string(id)),
			slog.String("vehicle_id", vehicleID),
			logging.ErrAttr(err),
		)
	}
}

// Inbox returns a copy of the full inbox, newest arrival first
func (s *NotificationService) Inbox() []models.AlertMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AlertMessage{}, s.inbox...)
}

// VisibleInbox returns the inbox entries a viewer with role and prefs may see
func (s *NotificationService) VisibleInbox(role models.Role, prefs models.NotificationPrefs) []models.AlertMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AlertMessage, 0, len(s.inbox))
	for _, m := range s.inbox {
		if IsVisible(m, role, prefs) {
			out = append(out, m)
		}
	}
	return out
}

// Prefs returns the user's preferences, loading them from the store on first use
func (s *NotificationService) Prefs(ctx context.Context, userID string) models.NotificationPrefs {
	s.prefsMu.RLock()
	p, ok := s.prefs[userID]
	s.prefsMu.RUnlock()
	if ok {
		return p
	}

	p = models.DefaultNotificationPrefs()
	if s.store != nil {
		var stored models.NotificationPrefs
		found, err := kv.GetJSON(ctx, s.store, PrefsKeyPrefix+userID, &stored)
		if err != nil {
			s.logger.Warn("ignoring unreadable prefs", slog.String("user_id", userID), logging.ErrAttr(err))
		} else if found {
			p = stored
		}
	}

	s.prefsMu.Lock()
	if cur, ok := s.prefs[userID]; ok {
		p = cur
	} else {
		s.prefs[userID] = p
	}
	s.prefsMu.Unlock()
	return p
}

// UpdatePrefs merges patch into the user's preferences and persists them
func (s *NotificationService) UpdatePrefs(ctx context.Context, userID string, patch models.NotificationPrefsPatch) models.NotificationPrefs {
	current := s.Prefs(ctx, userID)

	s.prefsMu.Lock()
	if cur, ok := s.prefs[userID]; ok {
		current = cur
	}
	updated := current.Apply(patch)
	s.prefs[userID] = updated
	if s.writer != nil {
		s.writer.Set(PrefsKeyPrefix+userID, updated)
	}
	s.prefsMu.Unlock()
	return updated
}

// cachedPrefs never touches the store; unknown users get defaults
func (s *NotificationService) cachedPrefs(userID string) models.NotificationPrefs {
	s.prefsMu.RLock()
	defer s.prefsMu.RUnlock()
	if p, ok := s.prefs[userID]; ok {
		return p
	}
	return models.DefaultNotificationPrefs()
}

// Statistics counts inbox alerts. Red alerts and emergency templates are urgent.
func (s *NotificationService) Statistics() AlertStatistics {
	s.mu.RLock()
	stats := AlertStatistics{
		Total:        len(s.inbox),
		BySeverity:   make(map[string]int),
		ByRecipients: make(map[string]int),
	}
	for _, m := range s.inbox {
		if m.Severity == models.SeverityRed || m.TemplateID == models.TemplateEmergency {
			stats.Urgent++
		}
		sev := string(m.Severity)
		if sev == "" {
			sev = "none"
		}
		stats.BySeverity[sev]++
		stats.ByRecipients[string(m.Recipients)]++
	}
	s.mu.RUnlock()

	if s.incidents != nil {
		stats.OpenIncidents = s.incidents.OpenCount()
	}
	return stats
}

// RoadConditionUpdates returns the newest driver alerts about road conditions
func (s *NotificationService) RoadConditionUpdates() []models.AlertMessage {
	s.mu.RLock()
	out := []models.AlertMessage{}
	for _, m := range s.inbox {
		if m.CreatedByRole != models.RoleDriver {
			continue
		}
		if models.IsRoadTemplate(m.TemplateID) || roadKeywords.MatchString(m.Title+" "+m.Body) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if len(out) > roadConditionLimit {
		out = out[:roadConditionLimit]
	}
	return out
}
