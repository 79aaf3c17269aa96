// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

// Package store provides access to the relational data source backing
// Compass: users, communities, follow edges, posts, and interaction
// history. All queries run through a circuit breaker so a degraded
// database degrades recommendations instead of hanging them.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the data source cannot serve a query,
// either because the circuit breaker is open or the underlying database
// rejected the call.
var ErrUnavailable = errors.New("data source unavailable")

// ItemMetadata describes a single content item as stored in the data source.
type ItemMetadata struct {
	ItemID      int64     `json:"item_id"`
	CommunityID int64     `json:"community_id"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
	Comments    int64     `json:"comments"`
}

// EngagementScore computes the weighted engagement signal for an item:
// views plus 3x likes plus 5x comments.
func (m ItemMetadata) EngagementScore() float64 {
	return float64(m.Views) + 3*float64(m.Likes) + 5*float64(m.Comments)
}

// Provider is the read surface the recommendation pipeline consumes.
// Implementations must be safe for concurrent use.
type Provider interface {
	// UserExists reports whether the user is known to the data source.
	UserExists(ctx context.Context, userID int64) (bool, error)

	// InteractionCount returns the number of recorded interactions for a user.
	InteractionCount(ctx context.Context, userID int64) (int, error)

	// FollowedCommunities returns the IDs of communities the user follows.
	FollowedCommunities(ctx context.Context, userID int64) ([]int64, error)

	// CommunityTagWeights returns tag frequencies aggregated across the
	// given communities' items. Used to build cold-start taste profiles.
	CommunityTagWeights(ctx context.Context, communityIDs []int64) (map[string]float64, error)

	// CommunityItems returns every item belonging to the given communities,
	// with engagement counts populated. Item age influences scoring, not
	// candidacy, so there is no creation-time cutoff here.
	CommunityItems(ctx context.Context, communityIDs []int64) ([]ItemMetadata, error)

	// CommunityMaxEngagement returns the maximum engagement score across
	// all of each community's items. Communities with no items are absent
	// from the map.
	CommunityMaxEngagement(ctx context.Context, communityIDs []int64) (map[int64]float64, error)

	// ItemMetadata returns metadata for the given item IDs. Unknown IDs
	// are absent from the map.
	ItemMetadata(ctx context.Context, itemIDs []int64) (map[int64]ItemMetadata, error)

	// InteractionCounts returns interaction counts for every user that has
	// at least one recorded interaction. Used to warm the profile cache.
	InteractionCounts(ctx context.Context) (map[int64]int, error)

	// FollowEdges returns the followed-community IDs for every user with
	// at least one follow edge. Used to warm the profile cache.
	FollowEdges(ctx context.Context) (map[int64][]int64, error)

	// AllUserIDs returns every user ID in ascending order.
	AllUserIDs(ctx context.Context) ([]int64, error)

	// AllItemIDs returns every item ID in ascending order.
	AllItemIDs(ctx context.Context) ([]int64, error)

	// Ping verifies connectivity to the data source.
	Ping(ctx context.Context) error
}
