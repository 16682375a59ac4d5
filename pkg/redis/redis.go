package redis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"securestop-backend/internal/config"
	"securestop-backend/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client with health tracking and automatic reconnection
type Client struct {
	client        *redis.Client
	config        config.RedisConfig
	mu            sync.RWMutex
	isConnected   bool
	reconnectChan chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
}

type HealthStatus struct {
	IsConnected    bool          `json:"isConnected"`
	LastPing       time.Time     `json:"lastPing"`
	ResponseTime   time.Duration `json:"responseTime"`
	ConnectionInfo string        `json:"connectionInfo"`
	Error          string        `json:"error,omitempty"`
}

// NewClient creates a pooled client and starts its health and reconnect loops
func NewClient(cfg config.RedisConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		config:        cfg,
		reconnectChan: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.connect()
	go c.healthCheckLoop()
	go c.reconnectLoop()

	return c
}

func (c *Client) options() *redis.Options {
	if c.config.URL != "" {
		opt, err := redis.ParseURL(c.config.URL)
		if err == nil {
			c.applyPool(opt)
			return opt
		}
		logging.Default().Warn("failed to parse Redis URL, falling back to host:port", logging.ErrAttr(err))
	}

	opt := &redis.Options{
		Addr:     c.addr(),
		Password: c.config.Password,
		DB:       c.config.DB,
	}
	c.applyPool(opt)
	return opt
}

func (c *Client) applyPool(opt *redis.Options) {
	opt.PoolSize = c.config.PoolSize
	opt.MinIdleConns = c.config.MinIdleConns
	opt.MaxRetries = c.config.MaxRetries
	opt.MinRetryBackoff = c.config.RetryDelay
	opt.DialTimeout = c.config.DialTimeout
	opt.ReadTimeout = c.config.ReadTimeout
	opt.WriteTimeout = c.config.WriteTimeout
	opt.PoolTimeout = c.config.PoolTimeout
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.config.Host, c.config.Port)
}

func (c *Client) connect() {
	client := redis.NewClient(c.options())

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	c.mu.Lock()
	c.isConnected = err == nil
	c.mu.Unlock()

	if err != nil {
		logging.Default().Warn("Redis connection test failed", logging.ErrAttr(err))
	} else {
		logging.Default().Info("Redis connected", slog.String("addr", client.Options().Addr))
	}
}

// GetClient returns the current go-redis client
func (c *Client) GetClient() *redis.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// HealthCheck pings the server and schedules a reconnect when it fails
func (c *Client) HealthCheck() HealthStatus {
	client := c.GetClient()

	status := HealthStatus{ConnectionInfo: c.addr()}
	if client == nil {
		status.Error = "Redis client not initialized"
		return status
	}
	status.ConnectionInfo = client.Options().Addr

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx).Err()
	status.ResponseTime = time.Since(start)
	status.LastPing = time.Now()

	c.mu.Lock()
	c.isConnected = err == nil
	c.mu.Unlock()

	if err != nil {
		status.Error = err.Error()
		c.triggerReconnect()
		return status
	}
	status.IsConnected = true
	return status
}

func (c *Client) triggerReconnect() {
	select {
	case c.reconnectChan <- struct{}{}:
	default:
		// already triggered
	}
}

func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if status := c.HealthCheck(); !status.IsConnected {
				logging.Default().Warn("Redis health check failed", slog.String("error", status.Error))
			}
		}
	}
}

// reconnectLoop reconnects with exponential backoff capped at 30s
func (c *Client) reconnectLoop() {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.reconnectChan:
			if c.IsConnected() {
				continue
			}

			c.mu.Lock()
			if c.client != nil {
				_ = c.client.Close()
			}
			c.mu.Unlock()

			c.connect()

			if c.IsConnected() {
				logging.Default().Info("reconnected to Redis")
				backoff = 1 * time.Second
				continue
			}

			logging.Default().Warn("Redis reconnection failed", slog.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-c.ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			c.triggerReconnect()
		}
	}
}

// Close stops the background loops and closes the pool
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// GetConnectionStats returns pool statistics for the health endpoint
func (c *Client) GetConnectionStats() map[string]interface{} {
	client := c.GetClient()
	if client == nil {
		return map[string]interface{}{
			"error": "Redis client not initialized",
		}
	}

	stats := client.PoolStats()
	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"totalConns":  stats.TotalConns,
		"idleConns":   stats.IdleConns,
		"staleConns":  stats.StaleConns,
		"isConnected": c.IsConnected(),
		"addr":        fmt.Sprint(client.Options().Addr),
	}
}
