// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package coldstart

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ventidole/compass/internal/store"
)

// Config holds the ranking weights and windows for the cold-start strategy.
type Config struct {
	CommunityWeight  float64
	ContentWeight    float64
	RecencyWeight    float64
	PopularityWeight float64

	// RecencyWindow is the age beyond which the recency signal is zero.
	RecencyWindow time.Duration

	// TotalToGenerate caps the number of ranked items produced.
	TotalToGenerate int
}

// DefaultConfig returns the standard cold-start configuration.
func DefaultConfig() Config {
	return Config{
		CommunityWeight:  0.45,
		ContentWeight:    0.25,
		RecencyWeight:    0.20,
		PopularityWeight: 0.10,
		RecencyWindow:    7 * 24 * time.Hour,
		TotalToGenerate:  100,
	}
}

// Profile captures what is known about a low-activity user: the
// communities they follow and a tag taste profile aggregated from those
// communities' content.
type Profile struct {
	// FollowedCommunities is the membership set used to gate candidates.
	FollowedCommunities map[int64]bool

	// TagWeights maps tags to their frequency weight in the profile.
	TagWeights map[string]float64
}

// NewProfile builds a Profile from a community ID list and tag weights.
func NewProfile(communityIDs []int64, tagWeights map[string]float64) Profile {
	followed := make(map[int64]bool, len(communityIDs))
	for _, id := range communityIDs {
		followed[id] = true
	}
	return Profile{FollowedCommunities: followed, TagWeights: tagWeights}
}

// Scored is a candidate with its final score and per-signal breakdown.
type Scored struct {
	Item       store.ItemMetadata
	FinalScore float64

	CommunityScore  float64
	ContentScore    float64
	RecencyScore    float64
	PopularityScore float64
}

// Ranker produces deterministic multi-signal rankings.
type Ranker struct {
	cfg    Config
	logger zerolog.Logger
}

// NewRanker creates a cold-start ranker.
func NewRanker(cfg Config, logger zerolog.Logger) *Ranker {
	return &Ranker{
		cfg:    cfg,
		logger: logger.With().Str("component", "coldstart").Logger(),
	}
}

// Rank scores the candidates against the profile and returns the top
// TotalToGenerate items in descending score order, plus the effective
// total: min(eligible candidates, TotalToGenerate).
//
// Candidates from communities the user does not follow are dropped before
// scoring. Ties are broken by ascending item ID so rankings are stable
// across requests.
func (r *Ranker) Rank(profile Profile, candidates []store.ItemMetadata, maxEngagement map[int64]float64, now time.Time) ([]Scored, int) {
	scored := make([]Scored, 0, len(candidates))

	for _, item := range candidates {
		if !profile.FollowedCommunities[item.CommunityID] {
			continue
		}

		s := Scored{
			Item:            item,
			CommunityScore:  1.0, // gated to followed communities above
			ContentScore:    r.contentScore(profile, item),
			RecencyScore:    r.recencyScore(item.CreatedAt, now),
			PopularityScore: r.popularityScore(item, maxEngagement[item.CommunityID]),
		}
		s.FinalScore = r.cfg.CommunityWeight*s.CommunityScore +
			r.cfg.ContentWeight*s.ContentScore +
			r.cfg.RecencyWeight*s.RecencyScore +
			r.cfg.PopularityWeight*s.PopularityScore

		scored = append(scored, s)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return scored[i].Item.ItemID < scored[j].Item.ItemID
	})

	total := len(scored)
	if total > r.cfg.TotalToGenerate {
		total = r.cfg.TotalToGenerate
		scored = scored[:total]
	}

	r.logger.Debug().
		Int("candidates", len(candidates)).
		Int("ranked", total).
		Msg("cold start ranking complete")

	return scored, total
}

// contentScore measures tag overlap between the item and the profile:
// the summed weight of shared tags over the summed weight of all profile
// tags. An empty profile scores zero.
func (r *Ranker) contentScore(profile Profile, item store.ItemMetadata) float64 {
	var totalWeight float64
	for _, w := range profile.TagWeights {
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 0
	}

	var overlap float64
	for _, tag := range item.Tags {
		overlap += profile.TagWeights[tag]
	}
	return overlap / totalWeight
}

// recencyScore decays linearly from 1.0 at age zero to 0.0 at the window
// boundary. Items dated in the future score 1.0.
func (r *Ranker) recencyScore(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age < 0 {
		return 1.0
	}
	if age >= r.cfg.RecencyWindow {
		return 0.0
	}
	return 1.0 - float64(age)/float64(r.cfg.RecencyWindow)
}

// popularityScore normalizes the item's engagement by the community
// maximum, clamped to [0, 1]. When the community has no positive maximum
// every item scores 1.0, matching the neutral-popularity convention for
// communities without engagement signal.
func (r *Ranker) popularityScore(item store.ItemMetadata, communityMax float64) float64 {
	if communityMax <= 0 {
		return 1.0
	}

	score := item.EngagementScore() / communityMax
	if score > 1.0 {
		return 1.0
	}
	if score < 0 {
		return 0.0
	}
	return score
}
