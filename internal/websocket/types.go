package websocket

import (
	"slices"
	"sync/atomic"
	"time"

	"securestop-backend/internal/models"

	"github.com/gorilla/websocket"
)

// Viewer identifies who is behind a connection
type Viewer struct {
	UserID     string      `json:"userId"`
	Role       models.Role `json:"role"`
	VehicleIDs []string    `json:"vehicleIds,omitempty"` // trip updates filter; empty means all
}

// Message is the envelope pushed to clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Allows reports whether the viewer may act on vehicleID. Admins and
// tokens without a vehicle scope cover every vehicle.
func (v Viewer) Allows(vehicleID string) bool {
	return v.Role == models.RoleAdmin || len(v.VehicleIDs) == 0 || slices.Contains(v.VehicleIDs, vehicleID)
}

// Narrow keeps the requested ids the viewer may follow. A scoped
// viewer asking for nothing in scope keeps its full scope.
func (v Viewer) Narrow(ids []string) []string {
	if v.Role == models.RoleAdmin || len(v.VehicleIDs) == 0 {
		return ids
	}
	var out []string
	for _, id := range ids {
		if slices.Contains(v.VehicleIDs, id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return slices.Clone(v.VehicleIDs)
	}
	return out
}

// Client represents a WebSocket client connection
type Client struct {
	ID   string
	Conn *websocket.Conn
	// Token is the viewer as authenticated; Viewer is what it follows now
	Token    Viewer
	Viewer   Viewer
	Send     chan Message
	IsActive bool // guarded by the manager mutex

	lastPing atomic.Int64
}

// Touch records a liveness signal from the client
func (c *Client) Touch() {
	c.lastPing.Store(time.Now().UnixNano())
}

func (c *Client) LastPing() time.Time {
	return time.Unix(0, c.lastPing.Load())
}

// ViewerFilter decides per viewer whether a message is delivered
type ViewerFilter func(v Viewer) bool

// WebSocketManager interface defines the contract for WebSocket management
type WebSocketManager interface {
	RegisterClient(clientID string, conn *websocket.Conn, viewer Viewer, vehicleIDs ...string) error
	UnregisterClient(clientID string) error
	BroadcastAlert(alert models.AlertMessage, visible ViewerFilter) error
	BroadcastAlertRemoved(alertID string) error
	BroadcastIncident(incident *models.Incident) error
	BroadcastTrip(snapshot models.TripSnapshot) error
	GetConnectedClients() int
	Start() error
	Stop() error
	GetClientStats() ClientStats
}

// ClientStats provides statistics about connected clients
type ClientStats struct {
	TotalClients    int            `json:"totalClients"`
	ActiveClients   int            `json:"activeClients"`
	InactiveClients int            `json:"inactiveClients"`
	ByRole          map[string]int `json:"byRole"`
}

// Message types for WebSocket communication
const (
	MessageTypeAlert         = "alert"
	MessageTypeAlertRemoved  = "alert_removed"
	MessageTypeIncident      = "incident"
	MessageTypeTrip          = "trip"
	MessageTypeUpdateVehicle = "update_vehicles"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)
