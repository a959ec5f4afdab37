package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fridgely/pantry-scan-service/internal/detect"
)

// ErrNotFound is returned for operations on an unknown entry id.
var ErrNotFound = errors.New("inventory entry not found")

// FeedbackRecorder receives confirm/correct events for entries with scan
// provenance. Implemented by the feedback logger.
type FeedbackRecorder interface {
	Confirmed(detectedLabel, correctedLabel string, confidence float64) error
	Corrected(detectedLabel, correctedLabel string, confidence float64) error
}

// Reconciler owns the authoritative entry list. Every mutation is one atomic
// read-modify-write behind the mutex, so concurrent scans and manual edits
// serialize and the no-duplicate-name invariant holds after each pass.
type Reconciler struct {
	mu       sync.Mutex
	entries  []Entry
	store    Store
	feedback FeedbackRecorder
	logger   *slog.Logger
}

// NewReconciler builds a reconciler. store and feedback may be nil; a nil
// store means memory-only operation.
func NewReconciler(store Store, feedback FeedbackRecorder, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, feedback: feedback, logger: logger}
}

// Load replaces the in-memory list with the persisted one. A store failure
// leaves the reconciler usable in memory-only mode.
func (r *Reconciler) Load() error {
	if r.store == nil {
		return nil
	}
	entries, err := r.store.LoadAll()
	if err != nil {
		r.logger.Warn("pantry load failed, continuing in memory", "error", err)
		return err
	}
	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
	return nil
}

// Entries returns a copy of the authoritative list.
func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Reconciler) findLocked(id string) int {
	for i := range r.entries {
		if r.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) findByNameLocked(name string) int {
	key := nameKey(name)
	for i := range r.entries {
		if nameKey(r.entries[i].Name) == key {
			return i
		}
	}
	return -1
}

// ApplyScan merges one merged scan result into the inventory and returns the
// updated list.
func (r *Reconciler) ApplyScan(candidates detect.Result) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range candidates {
		confidence := float64(c.Confidence)
		autoConfirm := confidence >= AutoConfirmThreshold

		if i := r.findByNameLocked(c.Name); i >= 0 {
			existing := &r.entries[i]
			existing.Confirmed = existing.Confirmed || autoConfirm
			prev := 0.0
			if existing.Confidence != nil {
				prev = *existing.Confidence
			}
			merged := prev
			if confidence > merged {
				merged = confidence
			}
			existing.Confidence = &merged
			if existing.Source == "" {
				existing.Source = SourceScan
			}
			if existing.OriginalLabel == "" {
				existing.OriginalLabel = c.Name
			}
			// user-edited name stays as-is
			continue
		}

		r.entries = append(r.entries, Entry{
			ID:            uuid.NewString(),
			Name:          c.Name,
			Glyph:         GlyphFor(c.Category),
			Confirmed:     autoConfirm,
			Source:        SourceScan,
			Confidence:    &confidence,
			OriginalLabel: c.Name,
		})
	}

	r.persistLocked()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// AddManual adds a user-entered item: confirmed, source manual, no detection
// provenance. Adding a name that already exists confirms the existing entry
// instead of creating a duplicate.
func (r *Reconciler) AddManual(name, glyph string) (Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, fmt.Errorf("item name must not be empty")
	}
	if glyph == "" {
		glyph = placeholderGlyph
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.findByNameLocked(name); i >= 0 {
		r.entries[i].Confirmed = true
		r.persistLocked()
		return r.entries[i], nil
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Name:      name,
		Glyph:     glyph,
		Confirmed: true,
		Source:    SourceManual,
	}
	r.entries = append(r.entries, entry)
	r.persistLocked()
	return entry, nil
}

// hasProvenance reports whether an entry carries detection provenance and
// therefore generates feedback.
func hasProvenance(e Entry) bool {
	return e.Source == SourceScan || e.OriginalLabel != ""
}

// Confirm marks an entry confirmed and, for entries with scan provenance,
// logs a positive feedback record.
func (r *Reconciler) Confirm(id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.findLocked(id)
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	entry := &r.entries[i]
	entry.Confirmed = true

	if r.feedback != nil && hasProvenance(*entry) {
		detected := entry.OriginalLabel
		if detected == "" {
			detected = entry.Name
		}
		confidence := 0.0
		if entry.Confidence != nil {
			confidence = *entry.Confidence
		}
		if err := r.feedback.Confirmed(detected, entry.Name, confidence); err != nil {
			r.logger.Warn("feedback append failed", "error", err)
		}
	}

	r.persistLocked()
	return *entry, nil
}

// Rename logs a correction when the new name differs from the originally
// detected label, then applies the rename.
func (r *Reconciler) Rename(id, newName string) (Entry, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Entry{}, fmt.Errorf("item name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.findLocked(id)
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	entry := &r.entries[i]

	if r.feedback != nil && hasProvenance(*entry) {
		detected := entry.OriginalLabel
		if detected == "" {
			detected = entry.Name
		}
		if newName != detected {
			confidence := 0.0
			if entry.Confidence != nil {
				confidence = *entry.Confidence
			}
			if err := r.feedback.Corrected(detected, newName, confidence); err != nil {
				r.logger.Warn("feedback append failed", "error", err)
			}
		}
	}

	entry.Name = newName
	r.persistLocked()
	return *entry, nil
}

// Delete removes an entry from the authoritative list and the backing store.
func (r *Reconciler) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.findLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)

	if r.store != nil {
		if err := r.store.Delete(id); err != nil {
			r.logger.Warn("pantry delete failed", "id", id, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) persistLocked() {
	if r.store == nil {
		return
	}
	snapshot := make([]Entry, len(r.entries))
	copy(snapshot, r.entries)
	if err := r.store.UpsertMany(snapshot); err != nil {
		r.logger.Warn("pantry persist failed", "error", err)
	}
}
