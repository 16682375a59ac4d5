package services

import (
	"sync"
	"time"

	"securestop-backend/internal/models"
	"securestop-backend/internal/websocket"

	gorillaws "github.com/gorilla/websocket"
)

// fakeHub records broadcasts and resolves alert filters against a fixed set of viewers
type fakeHub struct {
	mu        sync.Mutex
	viewers   []websocket.Viewer
	delivered map[string][]string // alert id -> user ids
	removed   []string
	incidents []*models.Incident
	trips     []models.TripSnapshot
}

func newFakeHub(viewers ...websocket.Viewer) *fakeHub {
	return &fakeHub{viewers: viewers, delivered: make(map[string][]string)}
}

func (f *fakeHub) RegisterClient(string, *gorillaws.Conn, websocket.Viewer, ...string) error { return nil }
func (f *fakeHub) UnregisterClient(string) error                                 { return nil }
func (f *fakeHub) GetConnectedClients() int                                      { return len(f.viewers) }
func (f *fakeHub) Start() error                                                  { return nil }
func (f *fakeHub) Stop() error                                                   { return nil }
func (f *fakeHub) GetClientStats() websocket.ClientStats                         { return websocket.ClientStats{} }

func (f *fakeHub) BroadcastAlert(alert models.AlertMessage, visible websocket.ViewerFilter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered[alert.ID] = []string{}
	for _, v := range f.viewers {
		if visible(v) {
			f.delivered[alert.ID] = append(f.delivered[alert.ID], v.UserID)
		}
	}
	return nil
}

func (f *fakeHub) BroadcastAlertRemoved(id string) error {
	f.mu.Lock()
	f.removed = append(f.removed, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeHub) BroadcastIncident(inc *models.Incident) error {
	f.mu.Lock()
	f.incidents = append(f.incidents, inc)
	f.mu.Unlock()
	return nil
}

func (f *fakeHub) BroadcastTrip(snap models.TripSnapshot) error {
	f.mu.Lock()
	f.trips = append(f.trips, snap)
	f.mu.Unlock()
	return nil
}

// fixedClock returns a clock that advances by step on every call
func fixedClock(start time.Time, step time.Duration) Clock {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := t
		t = t.Add(step)
		return now
	}
}

var testStops = []models.Stop{
	{ID: "stop-1", Name: "8th Ave", Location: models.LatLng{Lat: 40.758, Lng: -73.9855}},
	{ID: "stop-2", Name: "Broadway", Location: models.LatLng{Lat: 40.7572, Lng: -73.98}},
	{ID: "stop-3", Name: "5th Ave", Location: models.LatLng{Lat: 40.7545, Lng: -73.977}},
	{ID: "stop-4", Name: "Terminal", Location: models.LatLng{Lat: 40.7503, Lng: -73.975}},
}
