// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package recommend

// Strategy identifies which ranking path produced a response.
type Strategy int

const (
	// StrategyModel is the trained-artifact path.
	StrategyModel Strategy = iota

	// StrategyColdStart is the deterministic multi-signal path.
	StrategyColdStart
)

// String returns the wire representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyColdStart:
		return "cold_start"
	default:
		return "model"
	}
}

// Request is a single recommendation request after HTTP-level decoding.
type Request struct {
	UserID int64
	Limit  int
	Offset int
}

// Item is one recommended content item.
type Item struct {
	ItemID      int64    `json:"item_id"`
	Score       float64  `json:"score"`
	Rank        int      `json:"rank"`
	CommunityID int64    `json:"community_id"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags,omitempty"`
}

// Page describes the pagination window of a response.
type Page struct {
	Total   int  `json:"total"`
	Count   int  `json:"count"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// Response is a complete recommendation response.
type Response struct {
	UserID     int64  `json:"user_id"`
	Items      []Item `json:"items"`
	Pagination Page   `json:"pagination"`
	Strategy   string `json:"strategy"`
	UserState  string `json:"user_state"`
}
