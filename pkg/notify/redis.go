package notify

import (
	"context"
	"encoding/json"

	"securestop-backend/internal/models"

	"github.com/m-mizutani/goerr/v2"
	goredis "github.com/redis/go-redis/v9"
)

// RedisSink publishes alerts as JSON on a pub/sub channel. Alerts with a
// vehicle are also published on "<channel>:<vehicleId>".
type RedisSink struct {
	client  func() goredis.UniversalClient
	channel string
}

// ClientSource hands out the current client of a reconnecting pool
type ClientSource interface {
	GetClient() *goredis.Client
}

func NewRedisSink(client goredis.UniversalClient, channel string) *RedisSink {
	return &RedisSink{
		client:  func() goredis.UniversalClient { return client },
		channel: channel,
	}
}

// NewRedisSinkFromSource resolves the client on every publish so reconnects are picked up
func NewRedisSinkFromSource(source ClientSource, channel string) *RedisSink {
	return &RedisSink{
		client:  func() goredis.UniversalClient { return source.GetClient() },
		channel: channel,
	}
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Notify(ctx context.Context, alert models.AlertMessage) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal alert", goerr.V("alert_id", alert.ID))
	}

	pipe := r.client().Pipeline()
	pipe.Publish(ctx, r.channel, payload)
	if alert.VehicleID != "" {
		pipe.Publish(ctx, r.channel+":"+alert.VehicleID, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return goerr.Wrap(err, "redis publish failed", goerr.V("channel", r.channel))
	}
	return nil
}
