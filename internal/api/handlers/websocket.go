package handlers

import (
	"log/slog"
	"net/http"

	"securestop-backend/internal/api/middleware"
	"securestop-backend/internal/services"
	"securestop-backend/internal/websocket"
	"securestop-backend/pkg/jwt"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebSocketHandler upgrades authenticated callers onto the push hub
type WebSocketHandler struct {
	manager             *websocket.Manager
	notificationService *services.NotificationService
	jwtUtil             *jwt.JWTUtil
}

func NewWebSocketHandler(manager *websocket.Manager, notificationService *services.NotificationService, jwtUtil *jwt.JWTUtil) *WebSocketHandler {
	return &WebSocketHandler{
		manager:             manager,
		notificationService: notificationService,
		jwtUtil:             jwtUtil,
	}
}

// HandleWebSocket accepts the token from the query string since browsers
// cannot set headers on the upgrade request
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication token required", nil)
		return
	}

	claims, err := h.jwtUtil.ValidateToken(token)
	if err != nil {
		utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authentication token", nil)
		return
	}

	viewer := websocket.Viewer{
		UserID:     claims.UserID,
		Role:       claims.Role,
		VehicleIDs: claims.VehicleIDs,
	}

	// loads the viewer's prefs so push filtering never hits storage
	h.notificationService.Prefs(c.Request.Context(), viewer.UserID)

	conn, err := h.manager.GetUpgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Default().Warn("websocket upgrade failed", logging.ErrAttr(err))
		return
	}

	clientID := uuid.New().String()
	// vehicleIds may only narrow the token's scope
	if err := h.manager.RegisterClient(clientID, conn, viewer, c.QueryArray("vehicleIds")...); err != nil {
		logging.Default().Warn("websocket register failed", slog.String("client_id", clientID), logging.ErrAttr(err))
		conn.Close()
		return
	}

	logging.Default().Info("websocket client connected",
		slog.String("client_id", clientID),
		slog.String("user_id", viewer.UserID),
		slog.String("role", string(viewer.Role)),
	)
}

func (h *WebSocketHandler) GetConnectedClients(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "WebSocket stats retrieved successfully", gin.H{
		"connectedClients": h.manager.GetConnectedClients(),
		"stats":            h.manager.GetClientStats(),
	})
}
