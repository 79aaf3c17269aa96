// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/compass/config.yaml",
	"/etc/compass/config.yml",
}

// ConfigPathEnvVar is the environment variable that overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "compass",
			Password:        "",
			Name:            "compass",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Artifact: ArtifactConfig{
			Path:           "/data/ranking_artifact.json.gz",
			WatchEnabled:   true,
			PollInterval:   time.Minute,
			ReloadDebounce: 2 * time.Second,
		},
		Recommend: RecommendConfig{
			TotalToGenerate: 100,
		},
		ColdStart: ColdStartConfig{
			ActivityThreshold: 5,
			RecencyWindow:     7 * 24 * time.Hour,
			CommunityWeight:   0.45,
			ContentWeight:     0.25,
			RecencyWeight:     0.20,
			PopularityWeight:  0.10,
		},
		API: APIConfig{
			DefaultPageLimit:  20,
			MaxPageLimit:      100,
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if it exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - POSTGRES_HOST -> database.host
//   - ARTIFACT_PATH -> artifact.path
//   - COLDSTART_ACTIVITY_THRESHOLD -> coldstart.activity_threshold
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Database mappings
		"postgres_host":              "database.host",
		"postgres_port":              "database.port",
		"postgres_user":              "database.user",
		"postgres_password":          "database.password",
		"postgres_db":                "database.name",
		"postgres_ssl_mode":          "database.ssl_mode",
		"postgres_max_open_conns":    "database.max_open_conns",
		"postgres_max_idle_conns":    "database.max_idle_conns",
		"postgres_conn_max_lifetime": "database.conn_max_lifetime",
		"postgres_query_timeout":     "database.query_timeout",

		// Artifact mappings
		"artifact_path":            "artifact.path",
		"artifact_watch_enabled":   "artifact.watch_enabled",
		"artifact_poll_interval":   "artifact.poll_interval",
		"artifact_reload_debounce": "artifact.reload_debounce",

		// Recommendation mappings
		"recommend_total_to_generate": "recommend.total_to_generate",

		// Cold-start mappings
		"coldstart_activity_threshold": "coldstart.activity_threshold",
		"coldstart_recency_window":     "coldstart.recency_window",
		"coldstart_community_weight":   "coldstart.community_weight",
		"coldstart_content_weight":     "coldstart.content_weight",
		"coldstart_recency_weight":     "coldstart.recency_weight",
		"coldstart_popularity_weight":  "coldstart.popularity_weight",

		// API mappings
		"api_default_page_limit": "api.default_page_limit",
		"api_max_page_limit":     "api.max_page_limit",
		"cors_origins":           "api.cors_origins",
		"rate_limit_requests":    "api.rate_limit_reqs",
		"rate_limit_window":      "api.rate_limit_window",
		"disable_rate_limit":     "api.rate_limit_disabled",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables do not
	// pollute the config.
	return ""
}
