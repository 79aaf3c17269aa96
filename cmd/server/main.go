// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

// Package main is the entry point for the Compass recommendation server.
//
// Compass serves personalized content recommendations backed by a trained
// ranking artifact that an offline pipeline writes to disk, with a
// deterministic cold-start path for new users.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered loading from defaults, YAML file, and
//     environment variables (Koanf v2)
//  2. Data source: Postgres connection behind a circuit breaker
//  3. Ranking artifact: initial load of the trained model bundle; a
//     startup failure here is fatal
//  4. Recommendation pipeline: classifier, cold-start ranker, orchestrator
//  5. Supervision tree: artifact watcher (data layer) and HTTP server
//     (api layer) under Suture
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (HTTP_PORT, POSTGRES_HOST, ARTIFACT_PATH, ...)
//   - Config file (CONFIG_PATH or ./config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Stops the artifact watcher and closes the database pool
//
// # Example Usage
//
//	export POSTGRES_HOST=localhost
//	export POSTGRES_PASSWORD=secret
//	export ARTIFACT_PATH=/data/ranking_artifact.json.gz
//	./compass
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ventidole/compass/internal/api"
	"github.com/ventidole/compass/internal/artifact"
	"github.com/ventidole/compass/internal/coldstart"
	"github.com/ventidole/compass/internal/config"
	"github.com/ventidole/compass/internal/logging"
	"github.com/ventidole/compass/internal/recommend"
	"github.com/ventidole/compass/internal/store"
	"github.com/ventidole/compass/internal/supervisor"
	"github.com/ventidole/compass/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Config is not available yet; the default logger has to do.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("artifact_path", cfg.Artifact.Path).
		Str("database", fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)).
		Int("port", cfg.Server.Port).
		Msg("Starting Compass")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Data source. The pool connects lazily but the startup ping surfaces
	// misconfiguration immediately.
	provider, err := store.Open(ctx, cfg.Database, logging.WithComponent("store"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to data source")
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing data source")
		}
	}()
	logging.Info().Msg("Data source connected")

	// Ranking artifact manager. User profiles re-warm from bulk loads each
	// time a snapshot is published; a warm failure is not fatal because the
	// profile cache falls back to live point queries.
	manager := artifact.NewManager(cfg.Artifact, provider, logging.WithComponent("artifact"))
	profiles := recommend.NewProfiles(provider, logging.WithComponent("profiles"))
	manager.OnPublish(func(ctx context.Context) {
		if err := profiles.Warm(ctx); err != nil {
			logging.Warn().Err(err).Msg("Profile warm failed, serving from live queries")
		}
	})

	// Initial load. The service cannot start without a valid model.
	if err := manager.Load(ctx); err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Artifact.Path).Msg("Failed to load ranking artifact")
	}

	// Recommendation pipeline.
	classifier := coldstart.NewClassifier(cfg.ColdStart.ActivityThreshold)
	ranker := coldstart.NewRanker(coldstart.Config{
		CommunityWeight:  cfg.ColdStart.CommunityWeight,
		ContentWeight:    cfg.ColdStart.ContentWeight,
		RecencyWeight:    cfg.ColdStart.RecencyWeight,
		PopularityWeight: cfg.ColdStart.PopularityWeight,
		RecencyWindow:    cfg.ColdStart.RecencyWindow,
		TotalToGenerate:  cfg.Recommend.TotalToGenerate,
	}, logging.WithComponent("coldstart"))

	recommender := recommend.NewService(provider, profiles, manager, classifier, ranker, recommend.Config{
		TotalToGenerate: cfg.Recommend.TotalToGenerate,
		DefaultLimit:    cfg.API.DefaultPageLimit,
		MaxLimit:        cfg.API.MaxPageLimit,
	}, logging.WithComponent("recommend"))

	// HTTP boundary.
	handlers := api.NewHandlers(recommender, manager, provider)
	router := api.NewRouter(handlers, cfg.API)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	// Supervision tree. sutureslog wants slog, so the zerolog global is
	// bridged through the adapter.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if cfg.Artifact.WatchEnabled {
		tree.AddDataService(services.NewWatchService(manager, services.WatchConfig{
			Path:         cfg.Artifact.Path,
			PollInterval: cfg.Artifact.PollInterval,
			Debounce:     cfg.Artifact.ReloadDebounce,
		}, logging.WithComponent("watch")))
	} else {
		logging.Info().Msg("Artifact watch disabled, reloads are admin-triggered only")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, supervisor.DefaultTreeConfig().ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Compass stopped gracefully")
}
