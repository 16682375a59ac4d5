package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"securestop-backend/internal/models"
	"securestop-backend/pkg/logging"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testAlert = models.AlertMessage{
	ID:            "alert-1",
	Title:         "Emergency",
	Body:          "Emergency reported. Follow instructions.",
	Recipients:    models.RecipientsBoth,
	Severity:      models.SeverityRed,
	TemplateID:    models.TemplateEmergency,
	VehicleID:     "bus-12",
	CreatedAt:     1700000000000,
	CreatedByRole: models.RoleDriver,
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) Notify(ctx context.Context, alert models.AlertMessage) error {
	args := m.Called(alert.ID)
	return args.Error(0)
}

func TestDispatcher(t *testing.T) {
	logging.Quiet()

	ok := &mockSink{}
	ok.On("Notify", "alert-1").Return(nil).Once()
	failing := &mockSink{}
	failing.On("Notify", "alert-1").Return(errors.New("unreachable")).Once()

	d := NewDispatcher(ok, failing, NewLogSink(logging.Default()))
	d.Dispatch(testAlert)
	d.Wait()

	ok.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "securestop:alerts", "securestop:alerts:bus-12")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	sink := NewRedisSink(client, "securestop:alerts")
	require.NoError(t, sink.Notify(ctx, testAlert))

	channels := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-sub.Channel():
			var got models.AlertMessage
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
			assert.Equal(t, testAlert, got)
			channels[msg.Channel] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for published alert")
		}
	}
	assert.True(t, channels["securestop:alerts"])
	assert.True(t, channels["securestop:alerts:bus-12"])
}

type staticSource struct {
	client *goredis.Client
}

func (s staticSource) GetClient() *goredis.Client { return s.client }

func TestRedisSinkFromSource(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "alerts")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	alert := testAlert
	alert.VehicleID = ""
	sink := NewRedisSinkFromSource(staticSource{client: client}, "alerts")
	require.NoError(t, sink.Notify(ctx, alert))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "alerts", msg.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published alert")
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink(t *testing.T) {
	_, err := NewKafkaSink(nil, "topic")
	assert.Error(t, err)

	w := &fakeWriter{}
	sink := &KafkaSink{writer: w, topic: "securestop.alerts"}
	require.NoError(t, sink.Notify(context.Background(), testAlert))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "bus-12", string(w.msgs[0].Key))

	noVehicle := testAlert
	noVehicle.VehicleID = ""
	require.NoError(t, sink.Notify(context.Background(), noVehicle))
	assert.Equal(t, "alert-1", string(w.msgs[1].Key))

	w.err = errors.New("broker down")
	assert.Error(t, sink.Notify(context.Background(), testAlert))
}
