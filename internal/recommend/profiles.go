// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package recommend

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ventidole/compass/internal/store"
)

// Profiles caches the per-user signals the orchestrator reads on every
// request: the known-user set, interaction counts, and followed
// communities. Warm rebuilds the cache from bulk queries whenever a new
// artifact snapshot is published; a user missing from the cache falls
// back to a live point query whose positive result is written back.
type Profiles struct {
	store  store.Provider
	logger zerolog.Logger

	mu      sync.RWMutex
	known   map[int64]struct{}
	counts  map[int64]int
	follows map[int64][]int64
}

// NewProfiles creates an empty profile cache. Before the first Warm every
// lookup falls through to the data source.
func NewProfiles(provider store.Provider, logger zerolog.Logger) *Profiles {
	return &Profiles{
		store:   provider,
		logger:  logger.With().Str("component", "profiles").Logger(),
		known:   make(map[int64]struct{}),
		counts:  make(map[int64]int),
		follows: make(map[int64][]int64),
	}
}

// Warm rebuilds the cache from three bulk queries and swaps it in
// atomically. On failure the previous cache stays in place and lazy
// fallback keeps serving.
func (p *Profiles) Warm(ctx context.Context) error {
	userIDs, err := p.store.AllUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("warm profiles: user ids: %w", err)
	}
	counts, err := p.store.InteractionCounts(ctx)
	if err != nil {
		return fmt.Errorf("warm profiles: interaction counts: %w", err)
	}
	follows, err := p.store.FollowEdges(ctx)
	if err != nil {
		return fmt.Errorf("warm profiles: follow edges: %w", err)
	}

	known := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		known[id] = struct{}{}
		// Users absent from the bulk maps have zero interactions and no
		// follows; materialize those entries so lookups hit the cache.
		if _, ok := counts[id]; !ok {
			counts[id] = 0
		}
		if _, ok := follows[id]; !ok {
			follows[id] = nil
		}
	}

	p.mu.Lock()
	p.known = known
	p.counts = counts
	p.follows = follows
	p.mu.Unlock()

	p.logger.Info().
		Int("users", len(known)).
		Msg("user profiles warmed from bulk load")

	return nil
}

// UserExists answers from the known-user set, falling back to a live
// lookup for users created after the last warm. Existing users found by
// the fallback are added to the set.
func (p *Profiles) UserExists(ctx context.Context, userID int64) (bool, error) {
	p.mu.RLock()
	_, ok := p.known[userID]
	p.mu.RUnlock()
	if ok {
		return true, nil
	}

	exists, err := p.store.UserExists(ctx, userID)
	if err != nil {
		return false, err
	}
	if exists {
		p.mu.Lock()
		p.known[userID] = struct{}{}
		p.mu.Unlock()
	}
	return exists, nil
}

// InteractionCount answers from the cache, falling back to a live count
// that is written back. Cached counts refresh on the next Warm.
func (p *Profiles) InteractionCount(ctx context.Context, userID int64) (int, error) {
	p.mu.RLock()
	count, ok := p.counts[userID]
	p.mu.RUnlock()
	if ok {
		return count, nil
	}

	count, err := p.store.InteractionCount(ctx, userID)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.counts[userID] = count
	p.mu.Unlock()
	return count, nil
}

// FollowedCommunities answers from the cache, falling back to a live
// lookup that is written back.
func (p *Profiles) FollowedCommunities(ctx context.Context, userID int64) ([]int64, error) {
	p.mu.RLock()
	communities, ok := p.follows[userID]
	p.mu.RUnlock()
	if ok {
		return communities, nil
	}

	communities, err := p.store.FollowedCommunities(ctx, userID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.follows[userID] = communities
	p.mu.Unlock()
	return communities, nil
}
