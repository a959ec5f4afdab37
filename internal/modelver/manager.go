// Package modelver tracks the active model artifact version and fetches
// newer artifacts from the remote source.
package modelver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// State is the persisted model version pointer. An empty LocalPath means the
// bundled default artifact, implicitly version 1. Version only advances
// atomically together with a successfully downloaded LocalPath.
type State struct {
	Version   int
	LocalPath string
}

// Descriptor is the remote's view of the newest available model.
type Descriptor struct {
	Version         int    `json:"version"`
	ArtifactLocator string `json:"storage_path"`
}

// VersionSource queries the remote for the highest available version.
type VersionSource interface {
	LatestVersion(ctx context.Context) (Descriptor, error)
}

// ArtifactResolver turns an artifact locator into a download URL.
type ArtifactResolver interface {
	ResolveURL(ctx context.Context, locator string) (string, error)
}

// Downloader streams an artifact to a local path. Implementations must leave
// no partial file at dest on failure.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Invalidator is the inference engine's cache-clearing hook.
type Invalidator interface {
	Invalidate()
}

// StateStore persists State across process lifetimes.
type StateStore interface {
	Load() (State, bool, error)
	Save(State) error
}

// UpdateResult reports one update check.
type UpdateResult struct {
	Updated bool   `json:"updated"`
	Version int    `json:"version,omitempty"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Manager owns the ModelVersionState exclusively. Checks serialize; any
// failure leaves the state completely unchanged.
type Manager struct {
	source      VersionSource
	resolver    ArtifactResolver
	downloader  Downloader
	store       StateStore
	invalidator Invalidator
	cacheDir    string
	bundledPath string
	logger      *slog.Logger

	// checkMu serializes update checks; mu guards state only, so
	// ActivePath and Version stay responsive during a download.
	checkMu sync.Mutex
	mu      sync.Mutex
	state   State
}

// Options wires the manager's collaborators. Store and Invalidator may be
// nil (memory-only state, no engine signal).
type Options struct {
	Source      VersionSource
	Resolver    ArtifactResolver
	Downloader  Downloader
	Store       StateStore
	Invalidator Invalidator
	CacheDir    string
	BundledPath string
	Logger      *slog.Logger
}

// NewManager builds a manager and restores persisted state. No persisted
// state means the bundled default at version 1.
func NewManager(opts Options) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		source:      opts.Source,
		resolver:    opts.Resolver,
		downloader:  opts.Downloader,
		store:       opts.Store,
		invalidator: opts.Invalidator,
		cacheDir:    opts.CacheDir,
		bundledPath: opts.BundledPath,
		logger:      logger,
		state:       State{Version: 1},
	}
	if opts.Store != nil {
		state, ok, err := opts.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("load model version state: %w", err)
		}
		if ok {
			if state.Version < 1 {
				state.Version = 1
			}
			m.state = state
		}
	}
	return m, nil
}

// ActivePath returns the path inference should load: the downloaded artifact
// or the bundled default.
func (m *Manager) ActivePath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.LocalPath != "" {
		return m.state.LocalPath
	}
	return m.bundledPath
}

// Version returns the active model version.
func (m *Manager) Version() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Version
}

// CheckForUpdate queries the remote and, when a newer version exists,
// downloads it to a deterministic versioned cache path, atomically updates
// the persisted state, and invalidates the engine's cached load. Failure at
// any step leaves the version pointer untouched.
func (m *Manager) CheckForUpdate(ctx context.Context) UpdateResult {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	desc, err := m.source.LatestVersion(ctx)
	if err != nil {
		return UpdateResult{Error: fmt.Sprintf("query latest version: %v", err)}
	}
	if desc.Version <= m.Version() {
		return UpdateResult{Version: desc.Version}
	}

	locator := desc.ArtifactLocator
	if locator == "" {
		locator = fmt.Sprintf("models/yolov8n_v%d.onnx", desc.Version)
	}
	url, err := m.resolver.ResolveURL(ctx, locator)
	if err != nil {
		return UpdateResult{Error: fmt.Sprintf("resolve artifact url: %v", err)}
	}

	dest := filepath.Join(m.cacheDir, fmt.Sprintf("yolov8n_v%d.onnx", desc.Version))
	if err := m.downloader.Download(ctx, url, dest); err != nil {
		return UpdateResult{Error: fmt.Sprintf("download artifact: %v", err)}
	}

	next := State{Version: desc.Version, LocalPath: dest}
	if m.store != nil {
		if err := m.store.Save(next); err != nil {
			return UpdateResult{Error: fmt.Sprintf("persist version state: %v", err)}
		}
	}

	m.mu.Lock()
	if next.Version <= m.state.Version {
		current := m.state.Version
		m.mu.Unlock()
		return UpdateResult{Version: current}
	}
	m.state = next
	m.mu.Unlock()

	if m.invalidator != nil {
		m.invalidator.Invalidate()
	}
	m.logger.Info("model updated", "version", next.Version, "path", next.LocalPath)
	return UpdateResult{Updated: true, Version: next.Version, Path: next.LocalPath}
}

// RunPeriodic checks once immediately and then on every interval tick until
// the context is cancelled.
func (m *Manager) RunPeriodic(ctx context.Context, interval time.Duration) {
	m.CheckForUpdate(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckForUpdate(ctx)
		}
	}
}
