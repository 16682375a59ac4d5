package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "KV_BACKEND", "KAFKA_BROKERS", "GEOFENCE_RADIUS_METERS", "REDIS_DB", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, KVBackendMemory, cfg.KVBackend)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 90.0, cfg.GeofenceRadiusMeters)
	assert.Equal(t, "bus-12", cfg.DefaultVehicleID)
	assert.Equal(t, "route-21", cfg.DefaultRouteID)
	assert.Equal(t, []string{"http://localhost:8081"}, cfg.AllowedOrigins)
	assert.Equal(t, "6379", cfg.Redis.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KV_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("GEOFENCE_RADIUS_METERS", "120.5")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PERSIST_INTERVAL", "250ms")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, KVBackendRedis, cfg.KVBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 120.5, cfg.GeofenceRadiusMeters)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 250*time.Millisecond, cfg.PersistInterval)
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv("GEOFENCE_RADIUS_METERS", "-4")
	t.Setenv("REDIS_DB", "two")
	t.Setenv("PERSIST_INTERVAL", "soon")

	cfg := Load()
	assert.Equal(t, 90.0, cfg.GeofenceRadiusMeters)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 5*time.Second, cfg.PersistInterval)
}

func TestLoadSimulator(t *testing.T) {
	t.Setenv("SIMULATOR_SERVER_URL", "http://api.local/api/v1/")
	t.Setenv("SIMULATOR_FEED_INTERVAL", "")

	cfg := LoadSimulator()
	assert.Equal(t, "http://api.local/api/v1", cfg.ServerURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.FeedInterval)
	assert.Equal(t, 20*time.Second, cfg.FlushInterval)
}
