package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"securestop-backend/internal/models"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/metrics"

	"github.com/gorilla/websocket"
)

type outbound struct {
	msg    Message
	filter func(c *Client) bool
}

// Manager implements the WebSocketManager interface
type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	done       chan struct{}
	stopOnce   sync.Once
	logger     *slog.Logger
}

// NewManager creates a new WebSocket manager. allowedOrigins empty accepts any origin.
func NewManager(allowedOrigins []string) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 1000),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done:   make(chan struct{}),
		logger: logging.Default(),
	}
}

func (m *Manager) Start() error {
	go m.run()
	m.logger.Info("WebSocket manager started")
	return nil
}

// Stop closes every client connection and ends the main loop
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() {
		close(m.done)

		m.mutex.Lock()
		for id, client := range m.clients {
			close(client.Send)
			if client.Conn != nil {
				client.Conn.Close()
			}
			delete(m.clients, id)
		}
		m.mutex.Unlock()
		metrics.SetWebSocketClients(0)
		m.logger.Info("WebSocket manager stopped")
	})
	return nil
}

func (m *Manager) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			m.clients[client.ID] = client
			n := len(m.clients)
			m.mutex.Unlock()
			metrics.SetWebSocketClients(n)
			m.logger.Debug("client registered", slog.String("client_id", client.ID), slog.String("role", string(client.Viewer.Role)))
			if client.Conn != nil {
				go m.handleClient(client)
			}

		case client := <-m.unregister:
			m.removeClient(client)

		case out := <-m.broadcast:
			m.broadcastToClients(out)

		case <-ticker.C:
			m.healthCheck()

		case <-m.done:
			return
		}
	}
}

func (m *Manager) removeClient(client *Client) {
	m.mutex.Lock()
	if current, ok := m.clients[client.ID]; ok && current == client {
		delete(m.clients, client.ID)
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	n := len(m.clients)
	m.mutex.Unlock()
	metrics.SetWebSocketClients(n)
	m.logger.Debug("client unregistered", slog.String("client_id", client.ID))
}

// RegisterClient adds a connection for viewer. vehicleIDs, when given,
// narrow the trip updates it follows within the viewer's scope. A nil conn
// registers a detached client whose Send channel the caller drains.
func (m *Manager) RegisterClient(clientID string, conn *websocket.Conn, viewer Viewer, vehicleIDs ...string) error {
	client := &Client{
		ID:       clientID,
		Conn:     conn,
		Token:    viewer,
		Viewer:   viewer,
		Send:     make(chan Message, 256),
		IsActive: true,
	}
	if len(vehicleIDs) > 0 {
		client.Viewer.VehicleIDs = viewer.Narrow(vehicleIDs)
	}
	client.Touch()

	select {
	case m.register <- client:
		return nil
	case <-m.done:
		return fmt.Errorf("websocket manager stopped")
	}
}

func (m *Manager) UnregisterClient(clientID string) error {
	m.mutex.RLock()
	client, exists := m.clients[clientID]
	m.mutex.RUnlock()

	if exists {
		select {
		case m.unregister <- client:
		case <-m.done:
		}
	}
	return nil
}

// Client returns the registered client for id
func (m *Manager) Client(clientID string) (*Client, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	c, ok := m.clients[clientID]
	return c, ok
}

func (m *Manager) enqueue(out outbound) error {
	select {
	case m.broadcast <- out:
		return nil
	default:
		return fmt.Errorf("broadcast channel full, dropping %s message", out.msg.Type)
	}
}

// BroadcastAlert pushes alert to every client whose viewer passes visible
func (m *Manager) BroadcastAlert(alert models.AlertMessage, visible ViewerFilter) error {
	return m.enqueue(outbound{
		msg: Message{Type: MessageTypeAlert, Data: alert, Timestamp: time.Now().UnixMilli()},
		filter: func(c *Client) bool {
			return visible == nil || visible(c.Viewer)
		},
	})
}

func (m *Manager) BroadcastAlertRemoved(alertID string) error {
	return m.enqueue(outbound{
		msg: Message{Type: MessageTypeAlertRemoved, Data: map[string]string{"id": alertID}, Timestamp: time.Now().UnixMilli()},
	})
}

// BroadcastIncident sends incident changes to admins and drivers
func (m *Manager) BroadcastIncident(incident *models.Incident) error {
	return m.enqueue(outbound{
		msg: Message{Type: MessageTypeIncident, Data: incident, Timestamp: time.Now().UnixMilli()},
		filter: func(c *Client) bool {
			return c.Viewer.Role == models.RoleAdmin || c.Viewer.Role == models.RoleDriver
		},
	})
}

// BroadcastTrip sends a trip snapshot to viewers following that vehicle
func (m *Manager) BroadcastTrip(snapshot models.TripSnapshot) error {
	vehicleID := snapshot.VehicleID
	return m.enqueue(outbound{
		msg: Message{Type: MessageTypeTrip, Data: snapshot, Timestamp: time.Now().UnixMilli()},
		filter: func(c *Client) bool {
			return len(c.Viewer.VehicleIDs) == 0 || slices.Contains(c.Viewer.VehicleIDs, vehicleID)
		},
	})
}

func (m *Manager) GetConnectedClients() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

func (m *Manager) GetClientStats() ClientStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := ClientStats{
		TotalClients: len(m.clients),
		ByRole:       make(map[string]int),
	}
	for _, client := range m.clients {
		if client.IsActive {
			stats.ActiveClients++
		} else {
			stats.InactiveClients++
		}
		stats.ByRole[string(client.Viewer.Role)]++
	}
	return stats
}

// GetUpgrader returns the WebSocket upgrader for external use
func (m *Manager) GetUpgrader() *websocket.Upgrader {
	return &m.upgrader
}

func (m *Manager) broadcastToClients(out outbound) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, client := range m.clients {
		if out.filter != nil && !out.filter(client) {
			continue
		}
		select {
		case client.Send <- out.msg:
		default:
			client.IsActive = false
			m.logger.Warn("client send channel full, marking inactive", slog.String("client_id", client.ID))
		}
	}
}

// handleClient reads control messages until the connection drops
func (m *Manager) handleClient(client *Client) {
	defer func() {
		select {
		case m.unregister <- client:
		case <-m.done:
		}
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Touch()
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go m.writeMessages(client)

	for {
		var message map[string]interface{}
		if err := client.Conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket read error", slog.String("client_id", client.ID), logging.ErrAttr(err))
			}
			return
		}
		m.handleControl(client, message)
	}
}

// handleControl answers a message read from client
func (m *Manager) handleControl(client *Client, message map[string]interface{}) {
	switch message["type"] {
	case MessageTypePing:
		client.Touch()
		m.reply(client, MessageTypePong, nil)

	case MessageTypeUpdateVehicle:
		raw, _ := json.Marshal(message["vehicleIds"])
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			m.reply(client, MessageTypeError, map[string]string{"error": "vehicleIds must be a list of strings"})
			return
		}
		m.mutex.Lock()
		client.Viewer.VehicleIDs = client.Token.Narrow(ids)
		applied := slices.Clone(client.Viewer.VehicleIDs)
		m.mutex.Unlock()
		m.reply(client, MessageTypeUpdateVehicle, map[string][]string{"vehicleIds": applied})

	default:
		m.reply(client, MessageTypeError, map[string]string{"error": fmt.Sprintf("unknown message type %v", message["type"])})
	}
}

// reply queues msg for client unless it has already been removed
func (m *Manager) reply(client *Client, msgType string, data interface{}) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.clients[client.ID] != client {
		return
	}
	select {
	case client.Send <- Message{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}:
	default:
	}
}

func (m *Manager) writeMessages(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				m.logger.Warn("websocket write failed", slog.String("client_id", client.ID), logging.ErrAttr(err))
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// healthCheck drops connected clients that stopped answering pings
func (m *Manager) healthCheck() {
	m.mutex.Lock()
	now := time.Now()
	for clientID, client := range m.clients {
		if client.Conn != nil && now.Sub(client.LastPing()) > 90*time.Second {
			m.logger.Info("client timed out", slog.String("client_id", clientID))
			delete(m.clients, clientID)
			close(client.Send)
			client.Conn.Close()
		}
	}
	n := len(m.clients)
	m.mutex.Unlock()
	metrics.SetWebSocketClients(n)
}
