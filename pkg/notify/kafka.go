package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"securestop-backend/internal/models"

	"github.com/m-mizutani/goerr/v2"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink produces alerts to a topic keyed by vehicle id
type KafkaSink struct {
	writer messageWriter
	topic  string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaSink{writer: w, topic: topic}, nil
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Notify(ctx context.Context, alert models.AlertMessage) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal alert", goerr.V("alert_id", alert.ID))
	}

	key := alert.VehicleID
	if key == "" {
		key = alert.ID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "recipients", Value: []byte(alert.Recipients)},
			{Key: "severity", Value: []byte(alert.Severity)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return goerr.Wrap(err, "kafka produce failed", goerr.V("topic", k.topic))
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
