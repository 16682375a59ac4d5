package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"securestop-backend/internal/api/routes"
	"securestop-backend/internal/config"
	"securestop-backend/internal/models"
	"securestop-backend/internal/services"
	"securestop-backend/internal/websocket"
	"securestop-backend/pkg/jwt"
	"securestop-backend/pkg/kv"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/metrics"
	"securestop-backend/pkg/notify"
	"securestop-backend/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// mockRoute seeds the default vehicle until a real route is pushed
var mockRoute = []models.Stop{
	{ID: "stop-1", Name: "8th Ave", Location: models.LatLng{Lat: 40.758, Lng: -73.9855}},
	{ID: "stop-2", Name: "Broadway", Location: models.LatLng{Lat: 40.7572, Lng: -73.98}},
	{ID: "stop-3", Name: "5th Ave", Location: models.LatLng{Lat: 40.7545, Lng: -73.977}},
	{ID: "stop-4", Name: "Terminal", Location: models.LatLng{Lat: 40.7503, Lng: -73.975}},
}

func main() {
	cfg := config.Load()

	logger := logging.New(os.Stdout, logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))
	logging.SetDefault(logger)
	slog.SetDefault(logger)

	metrics.Register()

	ctx := context.Background()

	// Redis serves the kv store and the pub/sub sink
	var redisClient *redis.Client
	if cfg.KVBackend == config.KVBackendRedis || cfg.Redis.URL != "" {
		redisClient = redis.NewClient(cfg.Redis)
		defer redisClient.Close()

		healthStatus := redisClient.HealthCheck()
		if healthStatus.IsConnected {
			logger.Info("redis connected", slog.String("addr", healthStatus.ConnectionInfo))
		} else {
			logger.Warn("redis connection failed, will retry automatically", slog.String("error", healthStatus.Error))
		}
	}

	var store kv.Store
	switch cfg.KVBackend {
	case config.KVBackendRedis:
		store = kv.NewRedisStore(redisClient, "")
	case config.KVBackendMongo:
		mongoStore, err := kv.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			logger.Error("failed to connect to database", logging.ErrAttr(err))
			os.Exit(1)
		}
		store = mongoStore
	default:
		store = kv.NewMemoryStore()
	}
	defer store.Close()

	writer := kv.NewWriter(store, cfg.PersistInterval)
	writer.SetLogger(logger)

	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if redisClient != nil {
		sinks = append(sinks, notify.NewRedisSinkFromSource(redisClient, cfg.NotifyRedisChannel))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAlertTopic)
		if err != nil {
			logger.Error("failed to create kafka sink", logging.ErrAttr(err))
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	dispatcher := notify.NewDispatcher(sinks...)
	dispatcher.SetLogger(logger)

	wsManager := websocket.NewManager(cfg.AllowedOrigins)
	if err := wsManager.Start(); err != nil {
		logger.Error("failed to start websocket manager", logging.ErrAttr(err))
		os.Exit(1)
	}

	incidentService := services.NewIncidentService(writer)
	incidentService.SetWebSocketManager(wsManager)

	tripService := services.NewTripService(writer, cfg.GeofenceRadiusMeters)
	tripService.SetWebSocketManager(wsManager)

	notificationService := services.NewNotificationService(incidentService, writer)
	notificationService.SetTripService(tripService)
	notificationService.SetWebSocketManager(wsManager)
	notificationService.SetDispatcher(dispatcher)

	hydrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	incidentService.Hydrate(hydrateCtx)
	tripService.Hydrate(hydrateCtx)
	notificationService.Hydrate(hydrateCtx)
	cancel()

	tripService.EnsureTrip(cfg.DefaultVehicleID, cfg.DefaultRouteID, "Driver (mock)", mockRoute)

	router := gin.Default()

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Upgrade", "Connection", "Sec-WebSocket-Key", "Sec-WebSocket-Version", "Sec-WebSocket-Protocol"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Dependencies{
		JWT:           jwt.NewJWTUtil(cfg.JWTSecret, cfg.JWTExpiry),
		Notifications: notificationService,
		Incidents:     incidentService,
		Trips:         tripService,
		WebSocket:     wsManager,
		Writer:        writer,
		Redis:         redisClient,
		Dispatcher:    dispatcher,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", slog.String("port", cfg.Port), slog.String("kv_backend", cfg.KVBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", logging.ErrAttr(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", logging.ErrAttr(err))
	}

	wsManager.Stop()
	dispatcher.Wait()
	if err := writer.Close(); err != nil {
		logger.Warn("final persistence flush failed", logging.ErrAttr(err))
	}
}
