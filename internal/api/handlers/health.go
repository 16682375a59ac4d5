package handlers

import (
	"context"
	"net/http"
	"time"

	"securestop-backend/internal/websocket"
	"securestop-backend/pkg/kv"
	"securestop-backend/pkg/notify"
	"securestop-backend/pkg/redis"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	store       kv.Store
	writer      *kv.Writer
	redisClient *redis.Client
	dispatcher  *notify.Dispatcher
	wsManager   *websocket.Manager
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

func NewHealthHandler(writer *kv.Writer, redisClient *redis.Client, dispatcher *notify.Dispatcher, wsManager *websocket.Manager) *HealthHandler {
	h := &HealthHandler{
		writer:      writer,
		redisClient: redisClient,
		dispatcher:  dispatcher,
		wsManager:   wsManager,
	}
	if writer != nil {
		h.store = writer.Store()
	}
	return h
}

// HealthCheck reports storage reachability; sinks and sockets are informational
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	overallHealthy := true

	kvStatus := h.checkStore(c.Request.Context())
	response.Services["kv"] = kvStatus
	if !kvStatus["healthy"].(bool) {
		overallHealthy = false
	}

	if h.redisClient != nil {
		redisStatus := h.checkRedis()
		response.Services["redis"] = redisStatus
		if !redisStatus["healthy"].(bool) {
			overallHealthy = false
		}
	}

	if h.dispatcher != nil {
		names := []string{}
		for _, s := range h.dispatcher.Sinks() {
			names = append(names, s.Name())
		}
		response.Services["notify"] = map[string]interface{}{"sinks": names}
	}

	if h.wsManager != nil {
		response.Services["websocket"] = h.wsManager.GetClientStats()
	}

	if overallHealthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

func (h *HealthHandler) checkStore(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "kv",
		"healthy": false,
	}

	if h.store == nil {
		status["error"] = "Store not initialized"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		status["error"] = err.Error()
	} else {
		status["healthy"] = true
		status["message"] = "Connected"
	}

	if h.writer != nil {
		status["writer"] = h.writer.Stats()
	}
	return status
}

func (h *HealthHandler) checkRedis() map[string]interface{} {
	status := map[string]interface{}{
		"service": "redis",
		"healthy": false,
	}

	healthStatus := h.redisClient.HealthCheck()
	status["healthy"] = healthStatus.IsConnected
	status["connectionInfo"] = healthStatus.ConnectionInfo
	status["responseTime"] = healthStatus.ResponseTime.String()
	status["lastPing"] = healthStatus.LastPing
	if healthStatus.Error != "" {
		status["error"] = healthStatus.Error
	}
	status["connectionStats"] = h.redisClient.GetConnectionStats()

	return status
}
