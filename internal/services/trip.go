package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"securestop-backend/internal/models"
	"securestop-backend/internal/websocket"
	"securestop-backend/pkg/geo"
	"securestop-backend/pkg/kv"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/metrics"
)

const TripsKey = "securestop.trips.v1"

// Trip events, keyed by transition
const (
	TripEventStarted  = "trip_started"
	TripEventDeparted = "trip_departed"
	TripEventArriving = "trip_arriving"
	TripEventPaused   = "trip_paused"
	TripEventEnded    = "trip_ended"
	TripEventReset    = "trip_reset"
)

// tripTransitions lists the moves allowed through StartTrip, PauseTrip and
// EndTrip. SetStatus overrides and ResetTrip bypass the table.
var tripTransitions = map[models.TripStatus]map[models.TripStatus]string{
	models.TripInDepot: {
		models.TripDeparted:  TripEventDeparted,
		models.TripOnRoute:   TripEventStarted,
		models.TripPaused:    TripEventPaused,
		models.TripCompleted: TripEventEnded,
	},
	models.TripDeparted: {
		models.TripOnRoute:   TripEventStarted,
		models.TripArriving:  TripEventArriving,
		models.TripPaused:    TripEventPaused,
		models.TripCompleted: TripEventEnded,
	},
	models.TripOnRoute: {
		models.TripArriving:  TripEventArriving,
		models.TripPaused:    TripEventPaused,
		models.TripCompleted: TripEventEnded,
	},
	models.TripArriving: {
		models.TripOnRoute:   TripEventStarted,
		models.TripPaused:    TripEventPaused,
		models.TripCompleted: TripEventEnded,
	},
	models.TripPaused: {
		models.TripOnRoute:   TripEventStarted,
		models.TripCompleted: TripEventEnded,
	},
	models.TripCompleted: {
		models.TripInDepot: TripEventReset,
	},
}

// CanTransition reports whether a trip may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to models.TripStatus) bool {
	if from == to {
		return true
	}
	_, ok := tripTransitions[from][to]
	return ok
}

// EventForTransition names the event for a move, or "" when there is none
func EventForTransition(from, to models.TripStatus) string {
	if from == to {
		return ""
	}
	return tripTransitions[from][to]
}

type tripEntry struct {
	trip  *models.Trip
	fence *Geofence
}

type tripsDocument struct {
	Trips []*models.Trip `json:"trips"`
}

// TripService owns one trip per vehicle together with its geofence
type TripService struct {
	mu    sync.Mutex
	trips map[string]*tripEntry

	radius    float64
	store     kv.Store
	writer    *kv.Writer
	wsManager websocket.WebSocketManager
	now       Clock
	logger    *slog.Logger
}

func NewTripService(writer *kv.Writer, radius float64) *TripService {
	if radius <= 0 {
		radius = DefaultGeofenceRadius
	}
	s := &TripService{
		trips:  make(map[string]*tripEntry),
		radius: radius,
		writer: writer,
		now:    time.Now,
		logger: logging.Default(),
	}
	if writer != nil {
		s.store = writer.Store()
	}
	return s
}

func (s *TripService) SetClock(now Clock) {
	s.now = now
}

// SetWebSocketManager enables pushing trip snapshots to connected clients
func (s *TripService) SetWebSocketManager(wsManager websocket.WebSocketManager) {
	s.wsManager = wsManager
}

// Hydrate loads persisted trips. Missing or malformed state yields no trips.
func (s *TripService) Hydrate(ctx context.Context) {
	if s.store == nil {
		return
	}
	var doc tripsDocument
	found, err := kv.GetJSON(ctx, s.store, TripsKey, &doc)
	if err != nil {
		s.logger.Warn("ignoring unreadable trips", logging.ErrAttr(err))
		return
	}
	if !found {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range doc.Trips {
		if t == nil || t.VehicleID == "" || !t.Status.Valid() {
			continue
		}
		s.trips[t.VehicleID] = &tripEntry{trip: t, fence: NewGeofence(s.radius)}
	}
}

// EnsureTrip creates an In Depot trip for vehicleID when none exists
func (s *TripService) EnsureTrip(vehicleID, routeID, driverName string, stops []models.Stop) models.TripSnapshot {
	s.mu.Lock()
	e, ok := s.trips[vehicleID]
	if !ok {
		e = &tripEntry{
			trip: &models.Trip{
				VehicleID:  vehicleID,
				RouteID:    routeID,
				DriverName: driverName,
				Status:     models.TripInDepot,
				Stops:      append([]models.Stop(nil), stops...),
				Scans:      []models.ScanEvent{},
			},
			fence: NewGeofence(s.radius),
		}
		s.trips[vehicleID] = e
		s.persistLocked()
	}
	snap := s.snapshotLocked(e)
	s.mu.Unlock()
	return snap
}

func (s *TripService) Get(vehicleID string) (models.TripSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.trips[vehicleID]
	if !ok {
		return models.TripSnapshot{}, ErrTripNotFound
	}
	return s.snapshotLocked(e), nil
}

// List returns snapshots of every trip ordered by vehicle id
func (s *TripService) List() []models.TripSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TripSnapshot, 0, len(s.trips))
	for _, e := range s.trips {
		out = append(out, s.snapshotLocked(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// StartTrip moves the trip On Route. startedAt is recorded only on the first start.
func (s *TripService) StartTrip(vehicleID string) (models.TripSnapshot, error) {
	return s.mutate(vehicleID, func(e *tripEntry) error {
		return s.startLocked(e)
	})
}

// PauseTrip moves the trip to Paused. Completed trips cannot be paused.
func (s *TripService) PauseTrip(vehicleID string) (models.TripSnapshot, error) {
	return s.mutate(vehicleID, func(e *tripEntry) error {
		if !CanTransition(e.trip.Status, models.TripPaused) {
			return ErrTripCompleted
		}
		s.applyStatusLocked(e, models.TripPaused)
		return nil
	})
}

// EndTrip completes the trip and stamps endedAt
func (s *TripService) EndTrip(vehicleID string) (models.TripSnapshot, error) {
	return s.mutate(vehicleID, func(e *tripEntry) error {
		s.endLocked(e)
		return nil
	})
}

// SetStatus overrides the status without consulting the transition table
func (s *TripService) SetStatus(vehicleID string, status models.TripStatus) (models.TripSnapshot, error) {
	if !status.Valid() {
		return models.TripSnapshot{}, ErrInvalidStatus
	}
	return s.mutate(vehicleID, func(e *tripEntry) error {
		s.applyStatusLocked(e, status)
		return nil
	})
}

// ResetTrip returns the trip to In Depot, clears its times and re-arms the geofence
func (s *TripService) ResetTrip(vehicleID string) (models.TripSnapshot, error) {
	return s.mutate(vehicleID, func(e *tripEntry) error {
		s.applyStatusLocked(e, models.TripInDepot)
		e.trip.StartedAt = nil
		e.trip.EndedAt = nil
		e.trip.CurrentStopIndex = 0
		e.fence.Reset()
		return nil
	})
}

// SetCurrentStopIndex sets the stop index, clamped to zero
func (s *TripService) SetCurrentStopIndex(vehicleID string, index int) (models.TripSnapshot, error) {
	return s.mutate(vehicleID, func(e *tripEntry) error {
		e.trip.CurrentStopIndex = max(0, index)
		return nil
	})
}

// SetRoute replaces the stop list, creating the trip when needed
func (s *TripService) SetRoute(vehicleID, routeID string, stops []models.Stop) models.TripSnapshot {
	s.EnsureTrip(vehicleID, routeID, "", stops)
	snap, _ := s.mutate(vehicleID, func(e *tripEntry) error {
		if routeID != "" {
			e.trip.RouteID = routeID
		}
		e.trip.Stops = append([]models.Stop(nil), stops...)
		if e.trip.CurrentStopIndex >= len(stops) {
			e.trip.CurrentStopIndex = max(0, len(stops)-1)
		}
		e.fence.Reset()
		return nil
	})
	return snap
}

// SetDriver records who is driving the vehicle
func (s *TripService) SetDriver(vehicleID, driverName string) (models.TripSnapshot, error) {
	return s.mutate(vehicleID, func(e *tripEntry) error {
		e.trip.DriverName = driverName
		return nil
	})
}

// UpdateLocation stores a position sample, recomputes the nearest stop and
// runs the geofence, applying any automatic start or end it triggers.
func (s *TripService) UpdateLocation(vehicleID string, loc models.VehicleLocation) (models.TripSnapshot, []GeofenceAction, error) {
	return s.UpdateLocations(vehicleID, []models.VehicleLocation{loc})
}

// UpdateLocations applies samples in order under one lock: either every
// sample is applied or, for an unknown vehicle, none is.
func (s *TripService) UpdateLocations(vehicleID string, points []models.VehicleLocation) (models.TripSnapshot, []GeofenceAction, error) {
	var fired []GeofenceAction
	snap, err := s.mutate(vehicleID, func(e *tripEntry) error {
		for _, loc := range points {
			fired = append(fired, s.observeLocked(e, vehicleID, loc)...)
		}
		return nil
	})
	return snap, fired, err
}

func (s *TripService) observeLocked(e *tripEntry, vehicleID string, loc models.VehicleLocation) []GeofenceAction {
	if loc.UpdatedAt == 0 {
		loc.UpdatedAt = millis(s.now())
	}
	e.trip.Location = &loc

	if idx := geo.NearestStopIndex(loc.LatLng(), e.trip.Stops); idx >= 0 {
		e.trip.CurrentStopIndex = idx
	}

	fired := e.fence.Observe(loc.LatLng(), e.trip.Stops, e.trip.Status)
	for _, action := range fired {
		metrics.IncGeofenceTrigger(string(action))
		s.logger.Info("geofence triggered", slog.String("vehicle_id", vehicleID), slog.String("action", string(action)))
		switch action {
		case GeofenceAutoStart:
			if err := s.startLocked(e); err != nil {
				s.logger.Warn("auto-start rejected", slog.String("vehicle_id", vehicleID), logging.ErrAttr(err))
			}
		case GeofenceAutoEnd:
			s.endLocked(e)
		}
	}
	return fired
}

// AddScan records a rider scan, newest first
func (s *TripService) AddScan(vehicleID string, scan models.ScanEvent) (models.TripSnapshot, error) {
	return s.mutate(vehicleID, func(e *tripEntry) error {
		nowMs := millis(s.now())
		if scan.ID == "" {
			scan.ID = newID("scan", nowMs)
		}
		if scan.ScannedAt == 0 {
			scan.ScannedAt = nowMs
		}
		if scan.DriverName == "" {
			scan.DriverName = e.trip.DriverName
		}
		e.trip.Scans = append([]models.ScanEvent{scan}, e.trip.Scans...)
		return nil
	})
}

func (s *TripService) mutate(vehicleID string, fn func(e *tripEntry) error) (models.TripSnapshot, error) {
	s.mu.Lock()
	e, ok := s.trips[vehicleID]
	if !ok {
		s.mu.Unlock()
		return models.TripSnapshot{}, ErrTripNotFound
	}
	if err := fn(e); err != nil {
		s.mu.Unlock()
		return models.TripSnapshot{}, err
	}
	snap := s.snapshotLocked(e)
	s.persistLocked()
	s.mu.Unlock()

	s.publish(snap)
	return snap, nil
}

func (s *TripService) startLocked(e *tripEntry) error {
	if !CanTransition(e.trip.Status, models.TripOnRoute) {
		return ErrTripCompleted
	}
	s.applyStatusLocked(e, models.TripOnRoute)
	if e.trip.StartedAt == nil {
		now := millis(s.now())
		e.trip.StartedAt = &now
	}
	e.trip.EndedAt = nil
	return nil
}

func (s *TripService) endLocked(e *tripEntry) {
	s.applyStatusLocked(e, models.TripCompleted)
	now := millis(s.now())
	e.trip.EndedAt = &now
}

func (s *TripService) applyStatusLocked(e *tripEntry, to models.TripStatus) {
	from := e.trip.Status
	e.trip.Status = to
	if from == to {
		return
	}
	metrics.IncTripTransition(string(from), string(to))
	event := EventForTransition(from, to)
	if event == "" {
		event = "status_override"
	}
	s.logger.Info("trip status changed",
		slog.String("vehicle_id", e.trip.VehicleID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("event", event),
	)
}

func (s *TripService) snapshotLocked(e *tripEntry) models.TripSnapshot {
	snap := models.TripSnapshot{Trip: e.trip.Clone()}
	stops := e.trip.Stops
	if len(stops) == 0 {
		return snap
	}
	next := stops[min(len(stops)-1, e.trip.CurrentStopIndex+1)]
	snap.NextStop = &next
	if e.trip.Location != nil {
		eta := geo.EtaMinutes(e.trip.Location.LatLng(), next.Location, e.trip.Location.SpeedKph)
		snap.EtaMinutes = &eta
	}
	return snap
}

func (s *TripService) persistLocked() {
	if s.writer == nil {
		return
	}
	doc := tripsDocument{Trips: make([]*models.Trip, 0, len(s.trips))}
	for _, e := range s.trips {
		doc.Trips = append(doc.Trips, e.trip)
	}
	sort.Slice(doc.Trips, func(i, j int) bool { return doc.Trips[i].VehicleID < doc.Trips[j].VehicleID })
	s.writer.Set(TripsKey, doc)
}

func (s *TripService) publish(snap models.TripSnapshot) {
	if s.wsManager == nil {
		return
	}
	if err := s.wsManager.BroadcastTrip(snap); err != nil {
		s.logger.Warn("failed to push trip", slog.String("vehicle_id", snap.VehicleID), logging.ErrAttr(err))
	}
}
