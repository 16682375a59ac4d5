package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// KV backends
const (
	KVBackendMemory = "memory"
	KVBackendRedis  = "redis"
	KVBackendMongo  = "mongo"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	JWTSecret      string
	JWTExpiry      string

	KVBackend string
	MongoURI  string
	Redis     RedisConfig

	KafkaBrokers       []string
	KafkaAlertTopic    string
	NotifyRedisChannel string

	LogLevel  string
	LogFormat string

	GeofenceRadiusMeters float64
	DefaultVehicleID     string
	DefaultRouteID       string
	PersistInterval      time.Duration
}

type RedisConfig struct {
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// SimulatorConfig drives cmd/simulator
type SimulatorConfig struct {
	ServerURL     string
	Token         string
	VehicleID     string
	FeedInterval  time.Duration
	FlushInterval time.Duration
	QueueRedisURL string
	LogLevel      string
	LogFormat     string
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env file: %v", err)
	}
}

// Load reads .env when present and then the process environment
func Load() *Config {
	loadDotEnv()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:8081")),
		JWTSecret:      getEnv("JWT_SECRET", "securestop-dev-secret"),
		JWTExpiry:      getEnv("JWT_EXPIRY", "24h"),

		KVBackend: strings.ToLower(getEnv("KV_BACKEND", KVBackendMemory)),
		MongoURI:  getEnv("MONGO_URI", "mongodb://localhost:27017/securestop"),
		Redis:     loadRedis(),

		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertTopic:    getEnv("KAFKA_ALERT_TOPIC", "securestop.alerts"),
		NotifyRedisChannel: getEnv("NOTIFY_REDIS_CHANNEL", "securestop:alerts"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		GeofenceRadiusMeters: getEnvFloat("GEOFENCE_RADIUS_METERS", 90),
		DefaultVehicleID:     getEnv("DEFAULT_VEHICLE_ID", "bus-12"),
		DefaultRouteID:       getEnv("DEFAULT_ROUTE_ID", "route-21"),
		PersistInterval:      getEnvDuration("PERSIST_INTERVAL", 5*time.Second),
	}
}

func LoadSimulator() *SimulatorConfig {
	loadDotEnv()

	return &SimulatorConfig{
		ServerURL:     strings.TrimRight(getEnv("SIMULATOR_SERVER_URL", "http://localhost:8080/api/v1"), "/"),
		Token:         os.Getenv("SIMULATOR_TOKEN"),
		VehicleID:     getEnv("DEFAULT_VEHICLE_ID", "bus-12"),
		FeedInterval:  getEnvDuration("SIMULATOR_FEED_INTERVAL", 1500*time.Millisecond),
		FlushInterval: getEnvDuration("SIMULATOR_FLUSH_INTERVAL", 20*time.Second),
		QueueRedisURL: os.Getenv("SIMULATOR_QUEUE_REDIS_URL"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
	}
}

func loadRedis() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		Host:         getEnv("REDIS_HOST", "localhost"),
		Port:         getEnv("REDIS_PORT", "6379"),
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           getEnvInt("REDIS_DB", 0),
		PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		MaxRetries:   getEnvInt("REDIS_MAX_RETRIES", 3),
		RetryDelay:   getEnvDuration("REDIS_RETRY_DELAY", 100*time.Millisecond),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		PoolTimeout:  getEnvDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
