package routes

import (
	"securestop-backend/internal/api/handlers"
	"securestop-backend/internal/api/middleware"
	"securestop-backend/internal/models"
	"securestop-backend/internal/services"
	"securestop-backend/internal/websocket"
	"securestop-backend/pkg/jwt"
	"securestop-backend/pkg/kv"
	"securestop-backend/pkg/metrics"
	"securestop-backend/pkg/notify"
	"securestop-backend/pkg/redis"

	"github.com/gin-gonic/gin"
)

// Dependencies are the wired services the HTTP API serves
type Dependencies struct {
	JWT           *jwt.JWTUtil
	Notifications *services.NotificationService
	Incidents     *services.IncidentService
	Trips         *services.TripService
	WebSocket     *websocket.Manager
	Writer        *kv.Writer
	Redis         *redis.Client
	Dispatcher    *notify.Dispatcher
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	alertHandler := handlers.NewAlertHandler(deps.Notifications)
	incidentHandler := handlers.NewIncidentHandler(deps.Incidents)
	tripHandler := handlers.NewTripHandler(deps.Trips)
	authHandler := handlers.NewAuthHandler(deps.JWT)
	healthHandler := handlers.NewHealthHandler(deps.Writer, deps.Redis, deps.Dispatcher, deps.WebSocket)

	router.Use(metrics.GinMiddleware())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api/v1")

	// Public routes
	api.GET("/health", healthHandler.HealthCheck)

	if deps.WebSocket != nil {
		wsHandler := handlers.NewWebSocketHandler(deps.WebSocket, deps.Notifications, deps.JWT)
		api.GET("/ws", wsHandler.HandleWebSocket)
		api.GET("/ws/stats", middleware.AuthMiddleware(deps.JWT), middleware.RequireRole(models.RoleAdmin), wsHandler.GetConnectedClients)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(deps.JWT))

	admin := middleware.RequireRole(models.RoleAdmin)
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleDriver)

	protected.POST("/auth/refresh", authHandler.RefreshToken)

	alerts := protected.Group("/alerts")
	{
		alerts.GET("", alertHandler.GetAlerts)
		alerts.GET("/stats", alertHandler.GetStatistics)
		alerts.GET("/road-conditions", alertHandler.GetRoadConditions)
		alerts.GET("/templates", alertHandler.GetTemplates)
		alerts.POST("", admin, alertHandler.ReceiveAlert)
		alerts.POST("/driver", middleware.RequireRole(models.RoleDriver), alertHandler.SendDriverAlert)
		alerts.POST("/broadcast", admin, alertHandler.SendAdminBroadcast)
		alerts.DELETE("/:id", admin, alertHandler.RemoveAlert)
	}

	prefs := protected.Group("/prefs")
	{
		prefs.GET("", alertHandler.GetPrefs)
		prefs.PATCH("", alertHandler.UpdatePrefs)
	}

	incidents := protected.Group("/incidents")
	incidents.Use(staff)
	{
		incidents.GET("", incidentHandler.GetIncidents)
		incidents.GET("/:id", incidentHandler.GetIncident)
		incidents.POST("/:id/notes", incidentHandler.AddNote)
		incidents.POST("/:id/resolve", incidentHandler.ResolveIncident)
		incidents.DELETE("", admin, incidentHandler.ClearIncidents)
	}

	trips := protected.Group("/trips")
	{
		trips.GET("", tripHandler.GetTrips)
		trips.GET("/:vehicleId", tripHandler.GetTrip)
		trips.POST("/:vehicleId/start", staff, tripHandler.StartTrip)
		trips.POST("/:vehicleId/pause", staff, tripHandler.PauseTrip)
		trips.POST("/:vehicleId/end", staff, tripHandler.EndTrip)
		trips.POST("/:vehicleId/reset", staff, tripHandler.ResetTrip)
		trips.PUT("/:vehicleId/status", staff, tripHandler.SetStatus)
		trips.PUT("/:vehicleId/route", staff, tripHandler.SetRoute)
		trips.PUT("/:vehicleId/stop", staff, tripHandler.SetCurrentStop)
		trips.POST("/:vehicleId/location", staff, tripHandler.UpdateLocation)
		trips.POST("/:vehicleId/location/batch", staff, tripHandler.UpdateLocationBatch)
		trips.POST("/:vehicleId/scans", staff, tripHandler.AddScan)
	}
}
