package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"securestop-backend/internal/config"
	"securestop-backend/internal/models"
	"securestop-backend/pkg/kv"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/redis"
	"securestop-backend/pkg/tracking"
)

var fallbackRoute = []models.LatLng{
	{Lat: 40.758, Lng: -73.9855},
	{Lat: 40.7572, Lng: -73.98},
	{Lat: 40.7545, Lng: -73.977},
	{Lat: 40.7503, Lng: -73.975},
}

func main() {
	cfg := config.LoadSimulator()

	logger := logging.New(os.Stdout, logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the queue survives restarts only when backed by redis
	var store kv.Store = kv.NewMemoryStore()
	if cfg.QueueRedisURL != "" {
		redisClient := redis.NewClient(config.RedisConfig{URL: cfg.QueueRedisURL})
		defer redisClient.Close()
		store = kv.NewRedisStore(redisClient, "securestop:simulator:")
	}

	uploader := tracking.NewUploader(cfg.ServerURL, cfg.Token, cfg.VehicleID, tracking.NewQueue(store))

	route := fallbackRoute
	if stops, err := uploader.FetchStops(ctx); err != nil {
		logger.Warn("using built-in route", logging.ErrAttr(err))
	} else if len(stops) > 0 {
		route = tracking.RouteFromStops(stops)
	}

	logger.Info("simulator starting",
		slog.String("server", cfg.ServerURL),
		slog.String("vehicle_id", cfg.VehicleID),
		slog.Int("stops", len(route)),
		slog.Duration("interval", cfg.FeedInterval),
	)

	go uploader.RunFlushLoop(ctx, cfg.FlushInterval)

	feed := tracking.NewFeed(route, cfg.FeedInterval)
	feed.Run(ctx, func(loc models.VehicleLocation) {
		uploader.Report(ctx, loc)
	})

	uploader.Wait()
	logger.Info("simulator stopped")
}
