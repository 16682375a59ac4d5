package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"securestop-backend/internal/models"
	"securestop-backend/pkg/logging"

	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultBatchSize     = 25
	DefaultFlushInterval = 20 * time.Second
)

// Uploader posts samples for one vehicle. Failed samples are queued and
// retried in batches, falling back to single posts.
type Uploader struct {
	baseURL    string
	token      string
	vehicleID  string
	httpClient *http.Client
	queue      *Queue
	batchSize  int
	logger     *slog.Logger

	flushing atomic.Bool
	wg       sync.WaitGroup
}

func NewUploader(baseURL, token, vehicleID string, queue *Queue) *Uploader {
	return &Uploader{
		baseURL:    baseURL,
		token:      token,
		vehicleID:  vehicleID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		queue:      queue,
		batchSize:  DefaultBatchSize,
		logger:     logging.Default(),
	}
}

func (u *Uploader) SetHTTPClient(client *http.Client) {
	u.httpClient = client
}

func (u *Uploader) SetBatchSize(n int) {
	if n > 0 {
		u.batchSize = n
	}
}

func (u *Uploader) tripURL(suffix string) string {
	return u.baseURL + "/trips/" + url.PathEscape(u.vehicleID) + suffix
}

func (u *Uploader) post(ctx context.Context, target string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to encode payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to build request", goerr.V("url", target))
	}
	req.Header.Set("Content-Type", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "upload failed", goerr.V("url", target))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.New("upload rejected", goerr.V("url", target), goerr.V("status", resp.StatusCode))
	}
	return nil
}

func (u *Uploader) PostLocation(ctx context.Context, loc models.VehicleLocation) error {
	return u.post(ctx, u.tripURL("/location"), loc)
}

func (u *Uploader) PostBatch(ctx context.Context, points []models.VehicleLocation) error {
	return u.post(ctx, u.tripURL("/location/batch"), map[string]any{"points": points})
}

// Report sends loc immediately. On success any backlog is flushed in the
// background; on failure loc joins the queue.
func (u *Uploader) Report(ctx context.Context, loc models.VehicleLocation) {
	if err := u.PostLocation(ctx, loc); err != nil {
		u.logger.Debug("queueing location", logging.ErrAttr(err))
		if qerr := u.queue.Enqueue(ctx, loc); qerr != nil {
			u.logger.Warn("failed to queue location", logging.ErrAttr(qerr))
		}
		return
	}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if _, err := u.Flush(ctx); err != nil {
			u.logger.Debug("background flush stopped", logging.ErrAttr(err))
		}
	}()
}

// Flush drains the queue head first and stops at the first sample that
// cannot be delivered. Concurrent calls return immediately.
func (u *Uploader) Flush(ctx context.Context) (int, error) {
	if !u.flushing.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer u.flushing.Store(false)

	sent := 0
	for {
		batch := u.queue.Peek(ctx, u.batchSize)
		if len(batch) == 0 {
			return sent, nil
		}

		n := len(batch)
		if err := u.PostBatch(ctx, batch); err != nil {
			if err := u.PostLocation(ctx, batch[0]); err != nil {
				return sent, err
			}
			n = 1
		}
		if err := u.queue.Drop(ctx, n); err != nil {
			return sent, err
		}
		sent += n
	}
}

// RunFlushLoop flushes every interval until ctx is done
func (u *Uploader) RunFlushLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent, err := u.Flush(ctx)
			if sent > 0 {
				u.logger.Info("flushed queued locations", slog.Int("count", sent))
			}
			if err != nil {
				u.logger.Warn("location flush stopped", logging.ErrAttr(err))
			}
		}
	}
}

// Wait blocks until background flushes finish
func (u *Uploader) Wait() {
	u.wg.Wait()
}

// FetchStops reads the vehicle's current stop list from the server
func (u *Uploader) FetchStops(ctx context.Context) ([]models.Stop, error) {
	target := u.tripURL("")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request", goerr.V("url", target))
	}
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "trip lookup failed", goerr.V("url", target))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("trip lookup rejected", goerr.V("url", target), goerr.V("status", resp.StatusCode))
	}

	var envelope struct {
		Data models.Trip `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, goerr.Wrap(err, "failed to decode trip", goerr.V("url", target))
	}
	return envelope.Data.Stops, nil
}
