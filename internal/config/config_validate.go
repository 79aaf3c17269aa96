// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package config

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateArtifact(); err != nil {
		return err
	}

	if err := c.validateRecommend(); err != nil {
		return err
	}

	if err := c.validateColdStart(); err != nil {
		return err
	}

	if err := c.validateAPI(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	switch c.Server.Environment {
	case "development", "production":
		return nil
	default:
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("POSTGRES_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("POSTGRES_QUERY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateArtifact() error {
	if c.Artifact.Path == "" {
		return fmt.Errorf("ARTIFACT_PATH is required")
	}
	if c.Artifact.WatchEnabled && c.Artifact.PollInterval <= 0 {
		return fmt.Errorf("ARTIFACT_POLL_INTERVAL must be positive when watching is enabled")
	}
	return nil
}

func (c *Config) validateRecommend() error {
	if c.Recommend.TotalToGenerate < 1 {
		return fmt.Errorf("RECOMMEND_TOTAL_TO_GENERATE must be at least 1, got %d", c.Recommend.TotalToGenerate)
	}
	return nil
}

// validateColdStart checks threshold, window, and weight bounds. Weights are
// required to be non-negative but are not forced to sum to 1.0; the caller
// logs a warning when the sum drifts far from 1.0.
func (c *Config) validateColdStart() error {
	if c.ColdStart.ActivityThreshold < 0 {
		return fmt.Errorf("COLDSTART_ACTIVITY_THRESHOLD must be non-negative, got %d", c.ColdStart.ActivityThreshold)
	}
	if c.ColdStart.RecencyWindow <= 0 {
		return fmt.Errorf("COLDSTART_RECENCY_WINDOW must be positive")
	}

	weights := map[string]float64{
		"COLDSTART_COMMUNITY_WEIGHT":  c.ColdStart.CommunityWeight,
		"COLDSTART_CONTENT_WEIGHT":    c.ColdStart.ContentWeight,
		"COLDSTART_RECENCY_WEIGHT":    c.ColdStart.RecencyWeight,
		"COLDSTART_POPULARITY_WEIGHT": c.ColdStart.PopularityWeight,
	}
	for name, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%s must be a non-negative finite number, got %v", name, w)
		}
	}
	return nil
}

// WeightSum returns the sum of the cold-start signal weights.
func (c *ColdStartConfig) WeightSum() float64 {
	return c.CommunityWeight + c.ContentWeight + c.RecencyWeight + c.PopularityWeight
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageLimit < 1 {
		return fmt.Errorf("API_DEFAULT_PAGE_LIMIT must be at least 1, got %d", c.API.DefaultPageLimit)
	}
	if c.API.MaxPageLimit < c.API.DefaultPageLimit {
		return fmt.Errorf("API_MAX_PAGE_LIMIT (%d) must be >= API_DEFAULT_PAGE_LIMIT (%d)",
			c.API.MaxPageLimit, c.API.DefaultPageLimit)
	}
	if !c.API.RateLimitDisabled {
		if c.API.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.API.RateLimitReqs)
		}
		if c.API.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console", "":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
