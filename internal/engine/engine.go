// Package engine wraps a single loaded detection model and executes forward
// passes on preprocessed tensors.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fridgely/pantry-scan-service/internal/preprocess"
)

var (
	// ErrModelLoad marks a missing, corrupt or incompatible model artifact.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference marks a runtime failure on an already loaded model.
	ErrInference = errors.New("inference failed")
)

// RawOutput is an opaque inference output buffer plus its shape. The layout
// is model-dependent and resolved by the detection decoder.
type RawOutput struct {
	Data  []float32
	Shape []int64
}

// Session is one loaded model instance.
type Session interface {
	Run(tensor *preprocess.ImageTensor) (RawOutput, error)
	Destroy() error
}

// LoadFunc opens a model artifact at the given path.
type LoadFunc func(path string) (Session, error)

// Engine owns at most one loaded Session. Loads are single-flight: concurrent
// callers share the in-flight load instead of issuing duplicates. Invalidate
// bumps a generation counter so a superseded load never serves new callers.
type Engine struct {
	load   LoadFunc
	pathFn func() string
	logger *slog.Logger
	group  singleflight.Group

	mu   sync.Mutex
	sess Session
	path string
	gen  uint64
}

// New builds an Engine. pathFn supplies the currently active artifact path
// (the model version manager's view, including the bundled default).
func New(load LoadFunc, pathFn func() string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{load: load, pathFn: pathFn, logger: logger}
}

// EnsureLoaded loads the artifact at path unless it is already the cached
// session. Idempotent; safe for concurrent use.
func (e *Engine) EnsureLoaded(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.sess != nil && e.path == path {
		e.mu.Unlock()
		return nil
	}
	gen := e.gen
	e.mu.Unlock()

	key := fmt.Sprintf("%s#%d", path, gen)
	_, err, _ := e.group.Do(key, func() (interface{}, error) {
		e.mu.Lock()
		if e.sess != nil && e.path == path && e.gen == gen {
			e.mu.Unlock()
			return nil, nil
		}
		e.mu.Unlock()

		sess, err := e.load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
		}

		e.mu.Lock()
		if e.gen != gen {
			// invalidated while loading; discard and let the next
			// caller reload under the new generation
			e.mu.Unlock()
			_ = sess.Destroy()
			return nil, nil
		}
		if e.sess != nil {
			_ = e.sess.Destroy()
		}
		e.sess = sess
		e.path = path
		e.mu.Unlock()

		e.logger.Info("model loaded", "path", path)
		return nil, nil
	})
	return err
}

// Run executes one forward pass, loading the active artifact first if
// needed. Each call is independent once the session is loaded.
func (e *Engine) Run(ctx context.Context, tensor *preprocess.ImageTensor) (RawOutput, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if err := e.EnsureLoaded(ctx, e.pathFn()); err != nil {
			return RawOutput{}, err
		}
		e.mu.Lock()
		sess := e.sess
		e.mu.Unlock()
		if sess == nil {
			// load superseded by Invalidate between EnsureLoaded and here
			continue
		}

		out, err := sess.Run(tensor)
		if err != nil {
			return RawOutput{}, fmt.Errorf("%w: %v", ErrInference, err)
		}
		return out, nil
	}
	return RawOutput{}, ErrModelLoad
}

// Invalidate drops the cached session so the next Run or EnsureLoaded
// reloads from the active artifact. Called by the model version manager
// after a successful artifact swap.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.gen++
	if e.sess != nil {
		_ = e.sess.Destroy()
		e.sess = nil
		e.path = ""
	}
	e.mu.Unlock()
	e.logger.Debug("engine cache invalidated")
}

// Close releases the cached session, if any.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil {
		_ = e.sess.Destroy()
		e.sess = nil
		e.path = ""
	}
}
