// Package feedback records user confirm/correct actions against scanned
// items and pushes them to the remote training sink.
package feedback

import (
	"log/slog"
	"time"
)

// Record is one correction-feedback row. Append-only: after creation only
// Synced mutates, false to true.
type Record struct {
	ID             uint      `json:"id"`
	DetectedLabel  string    `json:"detectedLabel"`
	CorrectedLabel string    `json:"correctedLabel"`
	Confidence     float64   `json:"confidence"`
	Correct        bool      `json:"correct"`
	Synced         bool      `json:"synced"`
	Timestamp      time.Time `json:"timestamp"`
}

// Store persists feedback records locally until they sync.
type Store interface {
	Append(Record) error
	ListUnsynced() ([]Record, error)
	MarkSynced(ids []uint) error
	MarkAllSynced() error
}

// Logger appends feedback records for user actions. It satisfies the
// reconciler's FeedbackRecorder contract.
type Logger struct {
	store  Store
	logger *slog.Logger
}

func NewLogger(store Store, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{store: store, logger: logger}
}

// Confirmed records that the user accepted a detection as-is.
func (l *Logger) Confirmed(detectedLabel, correctedLabel string, confidence float64) error {
	return l.append(Record{
		DetectedLabel:  detectedLabel,
		CorrectedLabel: correctedLabel,
		Confidence:     confidence,
		Correct:        true,
	})
}

// Corrected records that the user renamed a detection.
func (l *Logger) Corrected(detectedLabel, correctedLabel string, confidence float64) error {
	return l.append(Record{
		DetectedLabel:  detectedLabel,
		CorrectedLabel: correctedLabel,
		Confidence:     confidence,
		Correct:        false,
	})
}

func (l *Logger) append(r Record) error {
	r.Synced = false
	r.Timestamp = time.Now().UTC()
	if err := l.store.Append(r); err != nil {
		return err
	}
	l.logger.Debug("feedback recorded",
		"detected", r.DetectedLabel, "corrected", r.CorrectedLabel, "correct", r.Correct)
	return nil
}
