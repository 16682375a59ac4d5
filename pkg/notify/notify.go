package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"securestop-backend/internal/models"
	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/metrics"
)

// Sink delivers an alert outside the process. Delivery is best-effort.
type Sink interface {
	Name() string
	Notify(ctx context.Context, alert models.AlertMessage) error
}

// Dispatcher fans alerts out to every sink without blocking the caller
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		timeout: 5 * time.Second,
		logger:  logging.Default(),
	}
}

func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

func (d *Dispatcher) Sinks() []Sink {
	return d.sinks
}

// Dispatch schedules delivery to all sinks and returns immediately.
// Failures are logged and counted.
func (d *Dispatcher) Dispatch(alert models.AlertMessage) {
	for _, s := range d.sinks {
		d.wg.Add(1)
		go func(s Sink) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := s.Notify(ctx, alert); err != nil {
				metrics.IncNotifyFailure(s.Name())
				d.logger.Warn("notification delivery failed",
					slog.String("sink", s.Name()),
					slog.String("alert_id", alert.ID),
					logging.ErrAttr(err),
				)
			}
		}(s)
	}
}

// Wait blocks until in-flight deliveries finish
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogSink writes the alert to the process log. It stands in for a device
// notification in development.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) Notify(_ context.Context, alert models.AlertMessage) error {
	l.logger.Info("alert notification",
		slog.String("id", alert.ID),
		slog.String("title", alert.Title),
		slog.String("recipients", string(alert.Recipients)),
		slog.String("severity", string(alert.Severity)),
	)
	return nil
}
