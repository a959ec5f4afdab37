package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Sink pushes one feedback record to the remote training backend.
type Sink interface {
	Push(ctx context.Context, r Record) error
}

// SyncResult reports one sync attempt. Count is the number of records pushed
// and marked synced during the attempt.
type SyncResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// Syncer pushes unsynced records one at a time. Each record is marked synced
// as its push succeeds, so a failure partway never re-pushes records the
// sink already accepted; the remainder retries on the next run. Runs
// serialize: the manual sync endpoint and the periodic task can overlap, and
// two concurrent loops would push the same records twice.
type Syncer struct {
	store  Store
	sink   Sink
	logger *slog.Logger
	mu     sync.Mutex
}

func NewSyncer(store Store, sink Sink, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{store: store, sink: sink, logger: logger}
}

// Sync pushes all currently-unsynced records. Failures are non-fatal:
// unsynced records stay unsynced and retry at the next scheduled run.
func (s *Syncer) Sync(ctx context.Context) SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.ListUnsynced()
	if err != nil {
		return SyncResult{Error: err.Error()}
	}
	if len(records) == 0 {
		return SyncResult{Success: true}
	}

	count := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return SyncResult{Count: count, Error: err.Error()}
		}
		if err := s.sink.Push(ctx, r); err != nil {
			s.logger.Warn("feedback push failed", "id", r.ID, "error", err)
			return SyncResult{Count: count, Error: err.Error()}
		}
		if err := s.store.MarkSynced([]uint{r.ID}); err != nil {
			return SyncResult{Count: count, Error: err.Error()}
		}
		count++
	}

	s.logger.Info("feedback synced", "count", count)
	return SyncResult{Success: true, Count: count}
}

// RunPeriodic syncs once immediately and then on every interval tick until
// the context is cancelled.
func (s *Syncer) RunPeriodic(ctx context.Context, interval time.Duration) {
	s.Sync(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}

// HTTPSink posts feedback records as JSON to the remote backend.
type HTTPSink struct {
	client  *http.Client
	baseURL string
}

func NewHTTPSink(baseURL string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (s *HTTPSink) Push(ctx context.Context, r Record) error {
	payload := map[string]any{
		"detected_as":  r.DetectedLabel,
		"corrected_to": r.CorrectedLabel,
		"confidence":   r.Confidence,
		"correct":      r.Correct,
		"timestamp":    r.Timestamp.Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/feedback", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build feedback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push feedback: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push feedback: unexpected status %d", resp.StatusCode)
	}
	return nil
}
