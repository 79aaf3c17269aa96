// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

// Package coldstart classifies users by activity level and produces
// deterministic multi-signal rankings for users with too little history
// for the trained model to score well.
package coldstart

// State describes a user's activity classification.
type State int

const (
	// StateNormal users have enough history for the trained model.
	StateNormal State = iota

	// StateColdStart users fall below the activity threshold and are
	// served the deterministic multi-signal ranking.
	StateColdStart
)

// String returns the wire representation of the state.
func (s State) String() string {
	switch s {
	case StateColdStart:
		return "cold_start"
	default:
		return "normal"
	}
}

// Classifier decides a user's state from their interaction count.
type Classifier struct {
	threshold int
}

// NewClassifier creates a classifier with the given activity threshold.
func NewClassifier(threshold int) *Classifier {
	return &Classifier{threshold: threshold}
}

// Classify returns StateColdStart when the interaction count is strictly
// below the threshold, StateNormal otherwise. A count equal to the
// threshold is normal.
func (c *Classifier) Classify(interactionCount int) State {
	if interactionCount < c.threshold {
		return StateColdStart
	}
	return StateNormal
}

// Threshold returns the configured activity threshold.
func (c *Classifier) Threshold() int { return c.threshold }
