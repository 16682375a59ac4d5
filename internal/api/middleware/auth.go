package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"securestop-backend/internal/models"
	"securestop-backend/internal/websocket"
	"securestop-backend/pkg/jwt"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID     = "user_id"
	ContextRole       = "role"
	ContextVehicleIDs = "vehicle_ids"
)

// BearerToken extracts the token from "Bearer <token>" or a bare header value
func BearerToken(authHeader string) string {
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func AuthMiddleware(jwtUtil *jwt.JWTUtil) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required", nil)
			c.Abort()
			return
		}

		claims, err := jwtUtil.ValidateToken(BearerToken(authHeader))
		if err != nil {
			logging.Default().Debug("token rejected", slog.String("path", c.FullPath()), logging.ErrAttr(err))
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token", nil)
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextVehicleIDs, claims.VehicleIDs)
		c.Next()
	}
}

// RequireRole rejects callers whose token role is not in roles
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, CallerRole(c)) {
			utils.ErrorResponse(c, http.StatusForbidden, "Insufficient permissions", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func CallerRole(c *gin.Context) models.Role {
	role, _ := c.Get(ContextRole)
	r, _ := role.(models.Role)
	return r
}

func CallerID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// Viewer describes the caller the way the websocket hub sees them
func Viewer(c *gin.Context) websocket.Viewer {
	ids, _ := c.Get(ContextVehicleIDs)
	vehicleIDs, _ := ids.([]string)
	return websocket.Viewer{
		UserID:     CallerID(c),
		Role:       CallerRole(c),
		VehicleIDs: vehicleIDs,
	}
}
