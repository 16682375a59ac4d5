package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"securestop-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startManager(t *testing.T) *Manager {
	t.Helper()
	manager := NewManager(nil)
	require.NoError(t, manager.Start())
	t.Cleanup(func() { manager.Stop() })
	return manager
}

func register(t *testing.T, m *Manager, id string, viewer Viewer) *Client {
	t.Helper()
	require.NoError(t, m.RegisterClient(id, nil, viewer))
	require.Eventually(t, func() bool {
		_, ok := m.Client(id)
		return ok
	}, time.Second, 5*time.Millisecond)
	c, _ := m.Client(id)
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID)
		return Message{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("client %s unexpectedly received %s", c.ID, msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManagerStartStop(t *testing.T) {
	manager := NewManager(nil)
	require.NoError(t, manager.Start())
	register(t, manager, "c1", Viewer{UserID: "u1", Role: models.RoleParent})

	assert.NoError(t, manager.Stop())
	assert.NoError(t, manager.Stop())
	assert.Equal(t, 0, manager.GetConnectedClients())
	assert.Error(t, manager.RegisterClient("c2", nil, Viewer{}))
}

func TestBroadcastAlertFiltersViewers(t *testing.T) {
	manager := startManager(t)
	parent := register(t, manager, "parent", Viewer{UserID: "p1", Role: models.RoleParent})
	admin := register(t, manager, "admin", Viewer{UserID: "a1", Role: models.RoleAdmin})

	alert := models.AlertMessage{ID: "a1", Recipients: models.RecipientsSchool}
	err := manager.BroadcastAlert(alert, func(v Viewer) bool { return v.Role != models.RoleParent })
	require.NoError(t, err)

	msg := receive(t, admin)
	assert.Equal(t, MessageTypeAlert, msg.Type)
	assert.Equal(t, alert, msg.Data)
	assertSilent(t, parent)
}

func TestBroadcastIncidentAndTrip(t *testing.T) {
	manager := startManager(t)
	parent := register(t, manager, "parent", Viewer{UserID: "p1", Role: models.RoleParent, VehicleIDs: []string{"bus-7"}})
	driver := register(t, manager, "driver", Viewer{UserID: "d1", Role: models.RoleDriver, VehicleIDs: []string{"bus-12"}})

	require.NoError(t, manager.BroadcastIncident(&models.Incident{ID: "inc-1"}))
	assert.Equal(t, MessageTypeIncident, receive(t, driver).Type)
	assertSilent(t, parent)

	require.NoError(t, manager.BroadcastTrip(models.TripSnapshot{Trip: &models.Trip{VehicleID: "bus-12"}}))
	assert.Equal(t, MessageTypeTrip, receive(t, driver).Type)
	assertSilent(t, parent)

	require.NoError(t, manager.BroadcastAlertRemoved("a1"))
	assert.Equal(t, MessageTypeAlertRemoved, receive(t, driver).Type)
	assert.Equal(t, MessageTypeAlertRemoved, receive(t, parent).Type)
}

func TestUnregisterClient(t *testing.T) {
	manager := startManager(t)
	register(t, manager, "c1", Viewer{Role: models.RoleAdmin})
	register(t, manager, "c2", Viewer{Role: models.RoleParent})

	stats := manager.GetClientStats()
	assert.Equal(t, 2, stats.TotalClients)
	assert.Equal(t, 1, stats.ByRole["admin"])

	require.NoError(t, manager.UnregisterClient("c1"))
	require.NoError(t, manager.UnregisterClient("missing"))
	assert.Eventually(t, func() bool { return manager.GetConnectedClients() == 1 }, time.Second, 5*time.Millisecond)
}

func TestConnectedClientReceivesAlerts(t *testing.T) {
	manager := startManager(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := manager.GetUpgrader().Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = manager.RegisterClient("ws-client", conn, Viewer{UserID: "d1", Role: models.RoleDriver})
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return manager.GetConnectedClients() == 1 }, time.Second, 5*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any

	require.NoError(t, conn.WriteJSON(map[string]any{"type": MessageTypePing}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypePong, msg["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": MessageTypeUpdateVehicle, "vehicleIds": []string{"bus-12"}}))
	msg = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeUpdateVehicle, msg["type"])

	require.NoError(t, manager.BroadcastAlert(models.AlertMessage{ID: "a1", Recipients: models.RecipientsDriver}, nil))

	msg = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeAlert, msg["type"])
	data, ok := msg["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a1", data["id"])
}

func TestViewerScope(t *testing.T) {
	driver := Viewer{Role: models.RoleDriver, VehicleIDs: []string{"bus-12", "bus-7"}}
	assert.True(t, driver.Allows("bus-12"))
	assert.False(t, driver.Allows("bus-99"))
	assert.True(t, Viewer{Role: models.RoleAdmin, VehicleIDs: []string{"bus-12"}}.Allows("bus-99"))
	assert.True(t, Viewer{Role: models.RoleParent}.Allows("bus-99"))

	assert.Equal(t, []string{"bus-7"}, driver.Narrow([]string{"bus-99", "bus-7", "bus-7"}))
	assert.Equal(t, []string{"bus-12", "bus-7"}, driver.Narrow([]string{"bus-99"}))
	assert.Equal(t, []string{"bus-12", "bus-7"}, driver.Narrow(nil))
	assert.Equal(t, []string{"bus-99"}, Viewer{Role: models.RoleAdmin}.Narrow([]string{"bus-99"}))
	assert.Empty(t, Viewer{Role: models.RoleParent}.Narrow(nil))
}

func TestRegisterClientNarrowsVehicles(t *testing.T) {
	manager := startManager(t)
	token := Viewer{UserID: "d1", Role: models.RoleDriver, VehicleIDs: []string{"bus-12"}}

	require.NoError(t, manager.RegisterClient("c1", nil, token, "bus-12", "bus-99"))
	require.NoError(t, manager.RegisterClient("c2", nil, token, "bus-99"))
	require.Eventually(t, func() bool { return manager.GetConnectedClients() == 2 }, time.Second, 5*time.Millisecond)

	c1, _ := manager.Client("c1")
	c2, _ := manager.Client("c2")
	assert.Equal(t, []string{"bus-12"}, c1.Viewer.VehicleIDs)
	assert.Equal(t, []string{"bus-12"}, c2.Viewer.VehicleIDs)

	require.NoError(t, manager.BroadcastTrip(models.TripSnapshot{Trip: &models.Trip{VehicleID: "bus-99"}}))
	assertSilent(t, c1)
	assertSilent(t, c2)
}

func TestHandleControl(t *testing.T) {
	manager := startManager(t)
	client := register(t, manager, "d1", Viewer{UserID: "d1", Role: models.RoleDriver, VehicleIDs: []string{"bus-12"}})

	manager.handleControl(client, map[string]interface{}{"type": MessageTypePing})
	assert.Equal(t, MessageTypePong, receive(t, client).Type)

	manager.handleControl(client, map[string]interface{}{"type": MessageTypeUpdateVehicle, "vehicleIds": []interface{}{"bus-99"}})
	msg := receive(t, client)
	assert.Equal(t, MessageTypeUpdateVehicle, msg.Type)
	assert.Equal(t, map[string][]string{"vehicleIds": {"bus-12"}}, msg.Data)

	manager.handleControl(client, map[string]interface{}{"type": MessageTypeUpdateVehicle, "vehicleIds": []interface{}{}})
	receive(t, client)
	manager.mutex.RLock()
	assert.Equal(t, []string{"bus-12"}, client.Viewer.VehicleIDs)
	manager.mutex.RUnlock()

	require.NoError(t, manager.BroadcastTrip(models.TripSnapshot{Trip: &models.Trip{VehicleID: "bus-99"}}))
	assertSilent(t, client)

	manager.handleControl(client, map[string]interface{}{"type": MessageTypeUpdateVehicle, "vehicleIds": "bus-99"})
	assert.Equal(t, MessageTypeError, receive(t, client).Type)

	manager.handleControl(client, map[string]interface{}{"type": "subscribe"})
	assert.Equal(t, MessageTypeError, receive(t, client).Type)
}

func TestClientTouch(t *testing.T) {
	c := &Client{}
	before := time.Now()
	c.Touch()
	assert.False(t, c.LastPing().Before(before))
}

func TestCheckOrigin(t *testing.T) {
	manager := NewManager([]string{"https://app.securestop.example"})
	upgrader := manager.GetUpgrader()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://app.securestop.example")
	assert.True(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, upgrader.CheckOrigin(req))
}
