// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package recommend

import "errors"

var (
	// ErrUserNotFound means the requested user does not exist in the
	// data source.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoRecommendations means the pipeline ran successfully but
	// produced nothing for the first page. The HTTP layer renders this
	// as a successful empty response, not a failure.
	ErrNoRecommendations = errors.New("no recommendations available")

	// ErrArtifactNotLoaded means the trained path was required but no
	// ranking artifact snapshot is available.
	ErrArtifactNotLoaded = errors.New("ranking artifact not loaded")

	// ErrDataSource wraps data source failures (including an open
	// circuit breaker).
	ErrDataSource = errors.New("data source error")
)
