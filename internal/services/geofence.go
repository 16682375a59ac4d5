package services

import (
	"securestop-backend/internal/models"
	"securestop-backend/pkg/geo"
)

// DefaultGeofenceRadius applies to both terminals, in meters
const DefaultGeofenceRadius = 90.0

type Proximity string

const (
	ProximityUnknown Proximity = "unknown"
	ProximityNear    Proximity = "near"
	ProximityAway    Proximity = "away"
)

type DeparturePhase string

const (
	NotYetDeparted DeparturePhase = "not_yet_departed"
	Departed       DeparturePhase = "departed"
)

type ArrivalPhase string

const (
	NotYetArrived ArrivalPhase = "not_yet_arrived"
	Arrived       ArrivalPhase = "arrived"
)

type GeofenceAction string

const (
	GeofenceAutoStart GeofenceAction = "auto_start"
	GeofenceAutoEnd   GeofenceAction = "auto_end"
)

// Geofence tracks terminal proximity for one vehicle.
//
// Departure is one-shot: auto-start fires when the vehicle leaves the start
// radius while the trip is In Depot, and never again until Reset.
// Arrival re-arms: once fired it resets when the vehicle leaves the end
// radius before the trip is Completed, so re-entering fires auto-end again.
type Geofence struct {
	Radius         float64        `json:"radius"`
	StartProximity Proximity      `json:"startProximity"`
	Departure      DeparturePhase `json:"departure"`
	Arrival        ArrivalPhase   `json:"arrival"`
}

func NewGeofence(radius float64) *Geofence {
	if radius <= 0 {
		radius = DefaultGeofenceRadius
	}
	g := &Geofence{Radius: radius}
	g.Reset()
	return g
}

// Reset forgets proximity and re-arms both triggers
func (g *Geofence) Reset() {
	g.StartProximity = ProximityUnknown
	g.Departure = NotYetDeparted
	g.Arrival = NotYetArrived
}

// Observe feeds one position into the geofence and returns the triggers that fired
func (g *Geofence) Observe(p models.LatLng, stops []models.Stop, status models.TripStatus) []GeofenceAction {
	if len(stops) < 2 {
		return nil
	}
	var actions []GeofenceAction

	nearStart := geo.Within(p, stops[0].Location, g.Radius)
	switch {
	case g.StartProximity == ProximityUnknown:
		// first observation only establishes the baseline
	case g.StartProximity == ProximityNear && !nearStart:
		if g.Departure == NotYetDeparted && status == models.TripInDepot {
			g.Departure = Departed
			actions = append(actions, GeofenceAutoStart)
		}
	}
	if nearStart {
		g.StartProximity = ProximityNear
	} else {
		g.StartProximity = ProximityAway
	}

	nearEnd := geo.Within(p, stops[len(stops)-1].Location, g.Radius)
	if status != models.TripCompleted {
		switch {
		case nearEnd && g.Arrival == NotYetArrived:
			g.Arrival = Arrived
			actions = append(actions, GeofenceAutoEnd)
		case !nearEnd && g.Arrival == Arrived:
			g.Arrival = NotYetArrived
		}
	}

	return actions
}
