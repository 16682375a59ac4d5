package kv

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"securestop-backend/pkg/logging"
	"securestop-backend/pkg/metrics"
)

// WriterStats reports background persistence activity
type WriterStats struct {
	Written  int64     `json:"written"`
	Failed   int64     `json:"failed"`
	Pending  int       `json:"pending"`
	LastSync time.Time `json:"lastSync"`
}

// Writer persists values in the background. Only the latest value per key
// is written; failures are logged and counted, never returned to callers.
type Writer struct {
	store  Store
	logger *slog.Logger

	pending    map[string][]byte // nil value deletes the key
	pendingMux sync.Mutex

	// serializes drains so a later value for a key is never overwritten by an older one
	writeMux sync.Mutex

	stats    WriterStats
	statsMux sync.RWMutex

	kick     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	workerWg sync.WaitGroup
	interval time.Duration
}

// NewWriter starts a writer that drains on every Set and at least every interval
func NewWriter(store Store, interval time.Duration) *Writer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		store:    store,
		logger:   logging.Default(),
		pending:  make(map[string][]byte),
		kick:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
	}

	w.workerWg.Add(1)
	go w.loop()
	return w
}

func (w *Writer) SetLogger(logger *slog.Logger) {
	w.logger = logger
}

// Store returns the backend the writer drains into
func (w *Writer) Store() Store {
	return w.store
}

// Set schedules value to be written under key. A nil value deletes the key.
// The value is encoded immediately so later mutations by the caller are not observed.
func (w *Writer) Set(key string, value any) {
	var data []byte
	if value != nil {
		b, err := json.Marshal(value)
		if err != nil {
			w.logger.Warn("failed to encode value for persistence", slog.String("key", key), logging.ErrAttr(err))
			w.recordFailure()
			return
		}
		data = b
	}

	w.pendingMux.Lock()
	w.pending[key] = data
	w.pendingMux.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
		// drain already signalled
	}
}

// Flush writes everything pending and returns once it has been attempted
func (w *Writer) Flush(ctx context.Context) {
	w.drain(ctx)
}

// Close stops the background loop after a final flush
func (w *Writer) Close() error {
	w.cancel()
	w.workerWg.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	w.drain(ctx)
	return nil
}

func (w *Writer) Stats() WriterStats {
	w.statsMux.RLock()
	s := w.stats
	w.statsMux.RUnlock()

	w.pendingMux.Lock()
	s.Pending = len(w.pending)
	w.pendingMux.Unlock()
	return s
}

func (w *Writer) loop() {
	defer w.workerWg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.kick:
			w.drain(w.ctx)
		case <-ticker.C:
			w.drain(w.ctx)
		}
	}
}

func (w *Writer) drain(ctx context.Context) {
	w.writeMux.Lock()
	defer w.writeMux.Unlock()

	w.pendingMux.Lock()
	batch := w.pending
	w.pending = make(map[string][]byte)
	w.pendingMux.Unlock()

	if len(batch) == 0 {
		return
	}
	if ctx.Err() != nil {
		// shutting down; Close retries with a fresh context
		ctx = context.Background()
	}

	for key, data := range batch {
		var err error
		if data == nil {
			err = w.store.Delete(ctx, key)
		} else {
			err = w.store.Put(ctx, key, data)
		}
		if err != nil {
			w.logger.Warn("background persistence failed", slog.String("key", key), logging.ErrAttr(err))
			w.recordFailure()
			continue
		}
		w.statsMux.Lock()
		w.stats.Written++
		w.statsMux.Unlock()
	}

	w.statsMux.Lock()
	w.stats.LastSync = time.Now()
	w.statsMux.Unlock()
}

func (w *Writer) recordFailure() {
	metrics.IncKVWriteFailure()
	w.statsMux.Lock()
	w.stats.Failed++
	w.statsMux.Unlock()
}
