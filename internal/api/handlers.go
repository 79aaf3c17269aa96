// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ventidole/compass/internal/artifact"
	"github.com/ventidole/compass/internal/logging"
	"github.com/ventidole/compass/internal/recommend"
	"github.com/ventidole/compass/internal/store"
	"github.com/ventidole/compass/internal/validation"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	recommender *recommend.Service
	artifacts   *artifact.Manager
	store       store.Provider
	startedAt   time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(recommender *recommend.Service, artifacts *artifact.Manager, provider store.Provider) *Handlers {
	return &Handlers{
		recommender: recommender,
		artifacts:   artifacts,
		store:       provider,
		startedAt:   time.Now(),
	}
}

// recommendationsParams carries the decoded query parameters for the
// recommendations endpoint.
type recommendationsParams struct {
	UserID int64 `validate:"required,gt=0"`
	Limit  int   `validate:"gte=0"`
	Offset int   `validate:"gte=0"`
}

// Recommendations handles GET /api/v1/recommendations/{userID}.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		rw.BadRequest("userID must be a positive integer")
		return
	}

	params := recommendationsParams{UserID: userID}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		params.Limit, err = strconv.Atoi(raw)
		if err != nil {
			rw.BadRequest("limit must be an integer")
			return
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		params.Offset, err = strconv.Atoi(raw)
		if err != nil {
			rw.BadRequest("offset must be an integer")
			return
		}
	}

	if verr := validation.ValidateStruct(&params); verr != nil {
		rw.ValidationError("invalid request parameters", verr.Fields)
		return
	}

	resp, err := h.recommender.Recommend(r.Context(), recommend.Request{
		UserID: params.UserID,
		Limit:  params.Limit,
		Offset: params.Offset,
	})

	switch {
	case err == nil:
		rw.Success(resp)

	case errors.Is(err, recommend.ErrNoRecommendations):
		// Nothing to recommend is not a failure. Serve an empty page with
		// the same effective window a populated page would report.
		limit, offset := h.recommender.PageWindow(params.Limit, params.Offset)
		rw.Success(&recommend.Response{
			UserID:     params.UserID,
			Items:      []recommend.Item{},
			Pagination: recommend.Page{Offset: offset, Limit: limit},
		})

	case errors.Is(err, recommend.ErrUserNotFound):
		rw.NotFound("user not found")

	case errors.Is(err, recommend.ErrArtifactNotLoaded):
		rw.ServiceUnavailable("ranking artifact not loaded")

	case errors.Is(err, recommend.ErrDataSource):
		logging.Ctx(r.Context()).Error().Err(err).Msg("data source failure during recommendation")
		rw.ServiceUnavailable("data source unavailable")

	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("recommendation request failed")
		rw.InternalError("failed to generate recommendations")
	}
}

// AdminReload handles POST /api/v1/admin/reload. The force query parameter
// skips the modification-time check.
func (h *Handlers) AdminReload(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	force := r.URL.Query().Get("force") == "true"

	result, err := h.artifacts.Reload(r.Context(), force)
	switch {
	case err == nil:
		rw.Success(result)

	case errors.Is(err, artifact.ErrReloadInProgress):
		rw.Conflict("artifact reload already in progress")

	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("artifact reload failed")
		rw.InternalError("artifact reload failed: " + err.Error())
	}
}

// serviceStatus is the admin status payload.
type serviceStatus struct {
	Artifact      artifact.Health `json:"artifact"`
	DataSource    string          `json:"data_source"`
	UptimeSeconds float64         `json:"uptime_seconds"`
}

// AdminStatus handles GET /api/v1/admin/status.
func (h *Handlers) AdminStatus(w http.ResponseWriter, r *http.Request) {
	status := serviceStatus{
		Artifact:      h.artifacts.Health(),
		DataSource:    "unknown",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}

	// The Postgres provider exposes its breaker state; test fakes may not.
	if cb, ok := h.store.(interface{ BreakerState() string }); ok {
		status.DataSource = cb.BreakerState()
	} else if err := h.store.Ping(r.Context()); err == nil {
		status.DataSource = "ok"
	}

	NewResponseWriter(w, r).Success(status)
}

// healthStatus is the liveness payload.
type healthStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Health handles GET /health. Liveness only: the process is up.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(healthStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	})
}

// readyStatus is the readiness payload.
type readyStatus struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Artifact artifact.Health   `json:"artifact"`
}

// HealthReady handles GET /health/ready. Ready means the data source
// answers and a ranking artifact is loaded.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	checks := make(map[string]string, 2)
	ready := true

	if err := h.store.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	health := h.artifacts.Health()
	if !health.Loaded {
		checks["artifact"] = "not loaded"
		ready = false
	} else {
		checks["artifact"] = "ok"
	}

	status := readyStatus{Status: "ready", Checks: checks, Artifact: health}
	if !ready {
		status.Status = "not ready"
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    status,
			Error: &APIError{
				Code:      ErrCodeServiceUnavailable,
				Message:   "service not ready",
				RequestID: logging.RequestIDFromContext(r.Context()),
			},
		})
		return
	}

	rw.Success(status)
}
