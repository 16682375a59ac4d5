package tracking

import (
	"context"
	"sync"

	"securestop-backend/internal/models"
	"securestop-backend/pkg/kv"

	"github.com/m-mizutani/goerr/v2"
)

const (
	QueueKey      = "securestop.locationQueue.v1"
	QueueCapacity = 500
)

type queueDocument struct {
	Queue []models.VehicleLocation `json:"queue"`
}

// Queue is a persisted FIFO of samples waiting for upload. Only the newest
// QueueCapacity samples are kept.
type Queue struct {
	mu    sync.Mutex
	store kv.Store
}

func NewQueue(store kv.Store) *Queue {
	return &Queue{store: store}
}

// read treats a missing or malformed document as an empty queue
func (q *Queue) read(ctx context.Context) []models.VehicleLocation {
	var doc queueDocument
	if found, err := kv.GetJSON(ctx, q.store, QueueKey, &doc); err != nil || !found {
		return nil
	}
	return doc.Queue
}

func (q *Queue) write(ctx context.Context, points []models.VehicleLocation) error {
	if err := kv.PutJSON(ctx, q.store, QueueKey, queueDocument{Queue: points}); err != nil {
		return goerr.Wrap(err, "failed to persist location queue", goerr.V("size", len(points)))
	}
	return nil
}

func (q *Queue) Enqueue(ctx context.Context, point models.VehicleLocation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	points := append(q.read(ctx), point)
	if len(points) > QueueCapacity {
		points = points[len(points)-QueueCapacity:]
	}
	return q.write(ctx, points)
}

// Peek returns up to n samples from the head of the queue
func (q *Queue) Peek(ctx context.Context, n int) []models.VehicleLocation {
	q.mu.Lock()
	defer q.mu.Unlock()

	points := q.read(ctx)
	if n < len(points) {
		points = points[:n]
	}
	return points
}

// Drop removes n samples from the head of the queue
func (q *Queue) Drop(ctx context.Context, n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	points := q.read(ctx)
	if n >= len(points) {
		points = []models.VehicleLocation{}
	} else {
		points = points[n:]
	}
	return q.write(ctx, points)
}

func (q *Queue) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.read(ctx))
}
