// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

// Package recommend orchestrates per-request recommendation serving:
// resolve the user, classify their activity level, route to the trained
// model or the cold-start ranker, and paginate the result.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ventidole/compass/internal/artifact"
	"github.com/ventidole/compass/internal/coldstart"
	"github.com/ventidole/compass/internal/metrics"
	"github.com/ventidole/compass/internal/store"
)

// Config holds orchestrator settings.
type Config struct {
	// TotalToGenerate caps how many ranked items one request pipeline
	// produces before pagination.
	TotalToGenerate int

	// DefaultLimit and MaxLimit bound the page size.
	DefaultLimit int
	MaxLimit     int
}

// Service is the recommendation orchestrator. All collaborators are
// injected; Service holds no global state.
type Service struct {
	store      store.Provider
	profiles   *Profiles
	artifacts  *artifact.Manager
	classifier *coldstart.Classifier
	ranker     *coldstart.Ranker
	cfg        Config
	logger     zerolog.Logger

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewService creates the orchestrator.
func NewService(
	provider store.Provider,
	profiles *Profiles,
	artifacts *artifact.Manager,
	classifier *coldstart.Classifier,
	ranker *coldstart.Ranker,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:      provider,
		profiles:   profiles,
		artifacts:  artifacts,
		classifier: classifier,
		ranker:     ranker,
		cfg:        cfg,
		logger:     logger.With().Str("component", "recommend").Logger(),
		now:        time.Now,
	}
}

// Recommend runs the full pipeline for one request.
//
// Routing: users at or above the activity threshold whose ID is present in
// the artifact mappings get the trained path; everyone else gets the
// cold-start path. A first page with no items surfaces as
// ErrNoRecommendations; later pages past the end are ordinary empty pages.
func (s *Service) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	limit, offset := s.clampWindow(req.Limit, req.Offset)

	exists, err := s.profiles.UserExists(ctx, req.UserID)
	if err != nil {
		metrics.RecordRecommendation("unknown", "error", time.Since(start))
		return nil, fmt.Errorf("%w: user lookup: %v", ErrDataSource, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %d", ErrUserNotFound, req.UserID)
	}

	count, err := s.profiles.InteractionCount(ctx, req.UserID)
	if err != nil {
		metrics.RecordRecommendation("unknown", "error", time.Since(start))
		return nil, fmt.Errorf("%w: interaction count: %v", ErrDataSource, err)
	}
	state := s.classifier.Classify(count)

	strategy, resp, err := s.route(ctx, req.UserID, state, limit, offset)
	if err != nil {
		outcome := "error"
		if err == ErrNoRecommendations {
			outcome = "empty"
		}
		metrics.RecordRecommendation(strategy.String(), outcome, time.Since(start))
		return nil, err
	}

	resp.UserState = state.String()
	metrics.RecordRecommendation(strategy.String(), "ok", time.Since(start))

	s.logger.Debug().
		Int64("user_id", req.UserID).
		Str("strategy", resp.Strategy).
		Str("user_state", resp.UserState).
		Int("count", resp.Pagination.Count).
		Int("total", resp.Pagination.Total).
		Msg("recommendations served")

	return resp, nil
}

// PageWindow returns the effective page window for a raw request: the
// limit defaulted and capped, the offset floored at zero. The HTTP layer
// uses it so empty pages report the same window a populated page would.
func (s *Service) PageWindow(limit, offset int) (int, int) {
	return s.clampWindow(limit, offset)
}

// clampWindow normalizes the requested page window against configured bounds.
func (s *Service) clampWindow(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// route picks the strategy and produces the response.
func (s *Service) route(ctx context.Context, userID int64, state coldstart.State, limit, offset int) (Strategy, *Response, error) {
	if state == coldstart.StateNormal {
		handle, err := s.artifacts.Handle()
		if err != nil {
			return StrategyModel, nil, ErrArtifactNotLoaded
		}

		if userIdx, ok := handle.UserIndex(userID); ok {
			resp, err := s.recommendModel(handle, userID, userIdx, limit, offset)
			return StrategyModel, resp, err
		}

		// Active user the trainer has not seen yet falls back to cold start.
		s.logger.Debug().Int64("user_id", userID).Msg("user not in artifact mappings, using cold start")
	}

	resp, err := s.recommendColdStart(ctx, userID, limit, offset)
	return StrategyColdStart, resp, err
}

// recommendModel serves the trained path from the artifact snapshot.
func (s *Service) recommendModel(handle *artifact.Handle, userID int64, userIdx, limit, offset int) (*Response, error) {
	scores := handle.Model().ScoreAll(userIdx)

	// Rank all item rows by descending score. Ties break by ascending row
	// index, which follows the trainer's ID-sorted mapping order.
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		return order[a] < order[b]
	})

	total := len(order)
	if total > s.cfg.TotalToGenerate {
		total = s.cfg.TotalToGenerate
		order = order[:total]
	}

	pageIdx := paginate(len(order), limit, offset)

	items := make([]Item, 0, len(pageIdx))
	for _, pos := range pageIdx {
		itemIdx := order[pos]
		itemID := handle.ItemID(itemIdx)

		// Metadata can lag behind the trained mapping. The item is still
		// served; the descriptive fields stay empty.
		meta, ok := handle.Metadata(itemID)
		if !ok {
			s.logger.Debug().Int64("item_id", itemID).Msg("serving item without metadata")
		}

		items = append(items, Item{
			ItemID:      itemID,
			Score:       scores[itemIdx],
			Rank:        offset + len(items) + 1,
			CommunityID: meta.CommunityID,
			Title:       meta.Title,
			Tags:        meta.Tags,
		})
	}

	return s.buildResponse(userID, StrategyModel, items, total, limit, offset)
}

// recommendColdStart serves the deterministic multi-signal path.
func (s *Service) recommendColdStart(ctx context.Context, userID int64, limit, offset int) (*Response, error) {
	communities, err := s.profiles.FollowedCommunities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: followed communities: %v", ErrDataSource, err)
	}

	tagWeights, err := s.store.CommunityTagWeights(ctx, communities)
	if err != nil {
		return nil, fmt.Errorf("%w: community tag weights: %v", ErrDataSource, err)
	}

	// Candidates are every item in a followed community. Age only lowers
	// the recency signal; old items still rank on the other signals.
	candidates, err := s.store.CommunityItems(ctx, communities)
	if err != nil {
		return nil, fmt.Errorf("%w: community items: %v", ErrDataSource, err)
	}

	maxEngagement, err := s.store.CommunityMaxEngagement(ctx, communities)
	if err != nil {
		return nil, fmt.Errorf("%w: community max engagement: %v", ErrDataSource, err)
	}

	profile := coldstart.NewProfile(communities, tagWeights)
	ranked, total := s.ranker.Rank(profile, candidates, maxEngagement, s.now())

	pageIdx := paginate(len(ranked), limit, offset)

	items := make([]Item, 0, len(pageIdx))
	for _, pos := range pageIdx {
		scored := ranked[pos]
		items = append(items, Item{
			ItemID:      scored.Item.ItemID,
			Score:       scored.FinalScore,
			Rank:        offset + len(items) + 1,
			CommunityID: scored.Item.CommunityID,
			Title:       scored.Item.Title,
			Tags:        scored.Item.Tags,
		})
	}

	return s.buildResponse(userID, StrategyColdStart, items, total, limit, offset)
}

// buildResponse assembles the paginated response and applies the
// empty-first-page rule.
func (s *Service) buildResponse(userID int64, strategy Strategy, items []Item, total, limit, offset int) (*Response, error) {
	if offset == 0 && len(items) == 0 {
		return nil, ErrNoRecommendations
	}

	return &Response{
		UserID: userID,
		Items:  items,
		Pagination: Page{
			Total:   total,
			Count:   len(items),
			Offset:  offset,
			Limit:   limit,
			HasMore: offset+limit < total,
		},
		Strategy: strategy.String(),
	}, nil
}

// paginate returns the positions of the window [offset, offset+limit)
// within a ranked list of the given length.
func paginate(length, limit, offset int) []int {
	if offset >= length {
		return nil
	}

	end := offset + limit
	if end > length {
		end = length
	}

	positions := make([]int, 0, end-offset)
	for i := offset; i < end; i++ {
		positions = append(positions, i)
	}
	return positions
}
