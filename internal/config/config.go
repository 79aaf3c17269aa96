// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

// Package config provides layered configuration for Compass.
//
// Configuration is loaded in three layers with increasing priority:
//
//  1. Built-in defaults
//  2. Optional YAML config file (CONFIG_PATH or default search paths)
//  3. Environment variables
//
// See LoadWithKoanf for the loading entry point.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Compass service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Artifact  ArtifactConfig  `koanf:"artifact"`
	Recommend RecommendConfig `koanf:"recommend"`
	ColdStart ColdStartConfig `koanf:"coldstart"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`     // Read/write timeout for the HTTP server
	Environment string        `koanf:"environment"` // development or production
}

// DatabaseConfig holds Postgres connection settings for the data source.
type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	QueryTimeout    time.Duration `koanf:"query_timeout"` // Per-query deadline applied by the store
}

// DSN builds a lib/pq connection string from the settings.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// ArtifactConfig holds ranking artifact settings.
type ArtifactConfig struct {
	// Path is the location of the serialized ranking artifact bundle.
	Path string `koanf:"path"`

	// WatchEnabled turns on the filesystem watcher that triggers reloads
	// when the artifact file changes.
	WatchEnabled bool `koanf:"watch_enabled"`

	// PollInterval is the fallback polling cadence used when filesystem
	// events are missed (editors and atomic-rename writers can defeat
	// watchers).
	PollInterval time.Duration `koanf:"poll_interval"`

	// ReloadDebounce coalesces bursts of file events into one reload.
	ReloadDebounce time.Duration `koanf:"reload_debounce"`
}

// RecommendConfig holds orchestrator settings.
type RecommendConfig struct {
	// TotalToGenerate caps how many ranked items a single request pipeline
	// produces before pagination.
	TotalToGenerate int `koanf:"total_to_generate"`
}

// ColdStartConfig holds classification and cold-start ranking settings.
type ColdStartConfig struct {
	// ActivityThreshold is the interaction count below which a user is
	// classified as cold start.
	ActivityThreshold int `koanf:"activity_threshold"`

	// RecencyWindow is the age beyond which the recency signal is zero.
	RecencyWindow time.Duration `koanf:"recency_window"`

	// Signal weights for the cold-start final score.
	CommunityWeight  float64 `koanf:"community_weight"`
	ContentWeight    float64 `koanf:"content_weight"`
	RecencyWeight    float64 `koanf:"recency_weight"`
	PopularityWeight float64 `koanf:"popularity_weight"`
}

// APIConfig holds HTTP API settings.
type APIConfig struct {
	DefaultPageLimit  int           `koanf:"default_page_limit"`
	MaxPageLimit      int           `koanf:"max_page_limit"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
