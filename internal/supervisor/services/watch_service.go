// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package services

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ventidole/compass/internal/artifact"
)

// ArtifactReloader is the slice of the artifact manager the watch service
// drives.
type ArtifactReloader interface {
	Reload(ctx context.Context, force bool) (artifact.ReloadResult, error)
	Changed() (bool, error)
}

// WatchConfig holds artifact watch settings.
type WatchConfig struct {
	// Path is the artifact file to watch.
	Path string

	// PollInterval is the fallback polling cadence. Trainers that write via
	// atomic rename, and some filesystems, can defeat inotify; polling
	// guarantees the change is eventually noticed.
	PollInterval time.Duration

	// Debounce coalesces bursts of file events into a single reload.
	// Trainers write large bundles in many chunks.
	Debounce time.Duration
}

// WatchService watches the artifact file and triggers hot reloads. It
// combines filesystem notifications with a periodic mtime poll.
type WatchService struct {
	reloader ArtifactReloader
	config   WatchConfig
	logger   zerolog.Logger
	name     string
}

// NewWatchService creates an artifact watch service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWatchService(reloader ArtifactReloader, cfg WatchConfig, logger zerolog.Logger) *WatchService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	return &WatchService{
		reloader: reloader,
		config:   cfg,
		logger:   logger.With().Str("service", "artifact-watch").Logger(),
		name:     "artifact-watch",
	}
}

// Serve implements suture.Service.
func (s *WatchService) Serve(ctx context.Context) error {
	var events chan fsnotify.Event
	var watchErrs chan error

	// The directory is watched, not the file: atomic-rename writers replace
	// the inode, which would silently detach a file-level watch.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn().Err(err).Msg("filesystem watcher unavailable, falling back to polling only")
	} else {
		defer watcher.Close()
		dir := filepath.Dir(s.config.Path)
		if err := watcher.Add(dir); err != nil {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch artifact directory, falling back to polling only")
		} else {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	debounce := time.NewTimer(s.config.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	s.logger.Info().
		Str("path", s.config.Path).
		Dur("poll_interval", s.config.PollInterval).
		Dur("debounce", s.config.Debounce).
		Bool("fs_events", events != nil).
		Msg("artifact watch service running")

	base := filepath.Base(s.config.Path)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("artifact watch service shutting down")
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug().Str("op", ev.Op.String()).Msg("artifact file event, debouncing reload")
			debounce.Reset(s.config.Debounce)

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.logger.Warn().Err(err).Msg("filesystem watcher error")

		case <-debounce.C:
			s.reload(ctx)

		case <-ticker.C:
			changed, err := s.reloader.Changed()
			if err != nil {
				s.logger.Warn().Err(err).Msg("artifact poll failed")
				continue
			}
			if changed {
				s.logger.Debug().Msg("artifact change detected by poll")
				s.reload(ctx)
			}
		}
	}
}

// reload triggers one reload attempt. The manager's own mtime check makes a
// redundant trigger a cheap no-op.
func (s *WatchService) reload(ctx context.Context) {
	result, err := s.reloader.Reload(ctx, false)
	switch {
	case errors.Is(err, artifact.ErrReloadInProgress):
		s.logger.Debug().Msg("reload already in progress, skipping")

	case err != nil:
		s.logger.Warn().Err(err).Msg("artifact reload failed, previous snapshot stays active")

	case result.Reloaded:
		s.logger.Info().
			Int("users", result.NumUsers).
			Int("items", result.NumItems).
			Msg("artifact hot reload complete")

	default:
		s.logger.Debug().Str("reason", result.Reason).Msg("artifact reload skipped")
	}
}

// String returns the service name for logging.
func (s *WatchService) String() string {
	return s.name
}
