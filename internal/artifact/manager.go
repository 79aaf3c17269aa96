// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ventidole/compass/internal/config"
	"github.com/ventidole/compass/internal/metrics"
	"github.com/ventidole/compass/internal/store"
)

var (
	// ErrNotLoaded is returned when no artifact has been loaded yet.
	ErrNotLoaded = errors.New("ranking artifact not loaded")

	// ErrReloadInProgress is returned when a reload is triggered while
	// another reload is still running.
	ErrReloadInProgress = errors.New("artifact reload already in progress")
)

// DataProvider is the slice of the data source the manager needs: item
// metadata for the snapshot cache and canonical ID lists for legacy
// bundles that ship without mappings.
type DataProvider interface {
	ItemMetadata(ctx context.Context, itemIDs []int64) (map[int64]store.ItemMetadata, error)
	AllUserIDs(ctx context.Context) ([]int64, error)
	AllItemIDs(ctx context.Context) ([]int64, error)
}

// ReloadResult describes the outcome of a reload attempt.
type ReloadResult struct {
	Reloaded       bool      `json:"reloaded"`
	Reason         string    `json:"reason"`
	PreviousReload time.Time `json:"previous_reload"`
	CurrentReload  time.Time `json:"current_reload"`
	NumUsers       int       `json:"num_users,omitempty"`
	NumItems       int       `json:"num_items,omitempty"`
}

// Health describes the manager's current state for status endpoints.
type Health struct {
	Loaded        bool      `json:"loaded"`
	NumUsers      int       `json:"num_users"`
	NumItems      int       `json:"num_items"`
	NumMetadata   int       `json:"num_metadata"`
	SchemaVersion int       `json:"schema_version"`
	Path          string    `json:"path"`
	TrainedAt     time.Time `json:"trained_at"`
	LastReload    time.Time `json:"last_reload"`
}

// Manager owns the artifact lifecycle. The active snapshot lives behind an
// atomic pointer so readers never block on a reload and always observe
// exactly one consistent handle. Reloads are serialized with a try-lock:
// a concurrent trigger reports ErrReloadInProgress instead of queueing.
type Manager struct {
	cfg      config.ArtifactConfig
	provider DataProvider
	logger   zerolog.Logger

	active   atomic.Pointer[Handle]
	reloadMu sync.Mutex

	// onPublish hooks run after a new snapshot becomes active, still under
	// the reload lock. Register before Load.
	onPublish []func(context.Context)

	// stateMu guards lastModTime and lastReload.
	stateMu     sync.Mutex
	lastModTime time.Time
	lastReload  time.Time
}

// NewManager creates an artifact manager. Call Load before serving.
func NewManager(cfg config.ArtifactConfig, provider DataProvider, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With().Str("component", "artifact").Logger(),
	}
}

// OnPublish registers a hook invoked each time a new snapshot becomes
// active, both on the initial Load and on every successful Reload. Hooks
// run synchronously on the loading goroutine.
func (m *Manager) OnPublish(fn func(context.Context)) {
	m.onPublish = append(m.onPublish, fn)
}

// Handle returns the active snapshot, or ErrNotLoaded before the first
// successful load.
func (m *Manager) Handle() (*Handle, error) {
	h := m.active.Load()
	if h == nil {
		return nil, ErrNotLoaded
	}
	return h, nil
}

// Load performs the initial artifact load. A failure here means the service
// cannot serve model-backed recommendations and should abort startup.
func (m *Manager) Load(ctx context.Context) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	modTime, err := m.statArtifact()
	if err != nil {
		return err
	}

	handle, err := m.buildHandle(ctx, modTime)
	if err != nil {
		return err
	}

	m.publish(ctx, handle, modTime)

	m.logger.Info().
		Int("users", handle.NumUsers()).
		Int("items", handle.NumItems()).
		Int("metadata_entries", handle.NumMetadata()).
		Time("trained_at", handle.trainedAt).
		Msg("ranking artifact loaded")

	return nil
}

// Reload checks the artifact file and swaps in a new snapshot when it has
// changed. With force set, the mtime check is skipped. The previous
// snapshot keeps serving if anything fails.
func (m *Manager) Reload(ctx context.Context, force bool) (ReloadResult, error) {
	if !m.reloadMu.TryLock() {
		metrics.RecordArtifactReload("in_progress", 0)
		return ReloadResult{Reloaded: false, Reason: "reload already in progress"}, ErrReloadInProgress
	}
	defer m.reloadMu.Unlock()

	start := time.Now()

	modTime, err := m.statArtifact()
	if err != nil {
		metrics.RecordArtifactReload("error", 0)
		return ReloadResult{}, err
	}

	m.stateMu.Lock()
	lastMod := m.lastModTime
	lastReload := m.lastReload
	m.stateMu.Unlock()

	if !force && !modTime.After(lastMod) {
		metrics.RecordArtifactReload("unchanged", 0)
		return ReloadResult{
			Reloaded:       false,
			Reason:         "artifact file not modified",
			PreviousReload: lastReload,
		}, nil
	}

	handle, err := m.buildHandle(ctx, modTime)
	if err != nil {
		metrics.RecordArtifactReload("error", 0)
		m.logger.Error().Err(err).Msg("artifact reload failed, previous snapshot stays active")
		return ReloadResult{}, err
	}

	m.publish(ctx, handle, modTime)
	metrics.RecordArtifactReload("reloaded", time.Since(start))

	m.logger.Info().
		Int("users", handle.NumUsers()).
		Int("items", handle.NumItems()).
		Dur("duration", time.Since(start)).
		Msg("ranking artifact reloaded")

	return ReloadResult{
		Reloaded:       true,
		Reason:         "artifact file modified",
		PreviousReload: lastReload,
		CurrentReload:  handle.loadedAt,
		NumUsers:       handle.NumUsers(),
		NumItems:       handle.NumItems(),
	}, nil
}

// Changed reports whether the artifact file's mtime is newer than the one
// backing the active snapshot. Used by the watch service to decide whether
// a reload is worth triggering.
func (m *Manager) Changed() (bool, error) {
	modTime, err := m.statArtifact()
	if err != nil {
		return false, err
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return modTime.After(m.lastModTime), nil
}

// Health reports the manager's current state.
func (m *Manager) Health() Health {
	h := m.active.Load()

	m.stateMu.Lock()
	lastReload := m.lastReload
	m.stateMu.Unlock()

	if h == nil {
		return Health{Loaded: false, Path: m.cfg.Path}
	}

	return Health{
		Loaded:        true,
		NumUsers:      h.NumUsers(),
		NumItems:      h.NumItems(),
		NumMetadata:   h.NumMetadata(),
		SchemaVersion: h.schemaVersion,
		Path:          m.cfg.Path,
		TrainedAt:     h.trainedAt,
		LastReload:    lastReload,
	}
}

// statArtifact returns the artifact file's mtime.
func (m *Manager) statArtifact() (time.Time, error) {
	info, err := os.Stat(m.cfg.Path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat artifact %s: %w", m.cfg.Path, err)
	}
	return info.ModTime(), nil
}

// publish atomically swaps the active snapshot, updates lifecycle state,
// and runs the registered publish hooks.
func (m *Manager) publish(ctx context.Context, handle *Handle, modTime time.Time) {
	m.active.Store(handle)

	m.stateMu.Lock()
	m.lastModTime = modTime
	m.lastReload = handle.loadedAt
	m.stateMu.Unlock()

	metrics.UpdateArtifactSnapshot(handle.NumUsers(), handle.NumItems(), handle.NumMetadata())

	for _, fn := range m.onPublish {
		fn(ctx)
	}
}

// buildHandle runs the full load pipeline into a fresh snapshot without
// touching the active one.
func (m *Manager) buildHandle(ctx context.Context, modTime time.Time) (*Handle, error) {
	bundle, err := ReadBundle(m.cfg.Path)
	if err != nil {
		return nil, err
	}

	mappings, err := m.resolveMappings(ctx, bundle)
	if err != nil {
		return nil, err
	}

	metadata, err := m.provider.ItemMetadata(ctx, mappings.ItemIDs)
	if err != nil {
		return nil, fmt.Errorf("load item metadata: %w", err)
	}

	userIndex := make(map[int64]int, len(mappings.UserIDs))
	for i, id := range mappings.UserIDs {
		userIndex[id] = i
	}
	itemIndex := make(map[int64]int, len(mappings.ItemIDs))
	for i, id := range mappings.ItemIDs {
		itemIndex[id] = i
	}

	return &Handle{
		model:         newModel(&bundle.Model),
		userIndex:     userIndex,
		itemIndex:     itemIndex,
		itemIDs:       mappings.ItemIDs,
		metadata:      metadata,
		schemaVersion: bundle.SchemaVersion,
		trainedAt:     bundle.TrainedAt,
		loadedAt:      time.Now(),
		sourceModTime: modTime,
	}, nil
}

// resolveMappings returns the bundle's ID mappings, rebuilding them from
// the data source for legacy bundles that ship without a mappings block.
// Rebuilt mappings use the canonical ascending-ID order the trainer used
// and must match the matrix cardinalities exactly.
func (m *Manager) resolveMappings(ctx context.Context, bundle *Bundle) (*Mappings, error) {
	if bundle.Mappings != nil {
		return bundle.Mappings, nil
	}

	m.logger.Warn().Msg("legacy bundle without mappings, rebuilding from data source")

	userIDs, err := m.provider.AllUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild user mapping: %w", err)
	}
	itemIDs, err := m.provider.AllItemIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild item mapping: %w", err)
	}

	if len(userIDs) != len(bundle.Model.UserFactors) {
		return nil, fmt.Errorf("rebuilt user mapping has %d IDs for %d user rows",
			len(userIDs), len(bundle.Model.UserFactors))
	}
	if len(itemIDs) != len(bundle.Model.ItemFactors) {
		return nil, fmt.Errorf("rebuilt item mapping has %d IDs for %d item rows",
			len(itemIDs), len(bundle.Model.ItemFactors))
	}

	return &Mappings{UserIDs: userIDs, ItemIDs: itemIDs}, nil
}
