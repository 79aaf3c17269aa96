// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package store

import (
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
)

func TestCastResult(t *testing.T) {
	got, err := castResult[int](42, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestCastResultPropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	_, err := castResult[int](nil, wantErr)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestCastResultTypeMismatch(t *testing.T) {
	_, err := castResult[int]("not an int", nil)
	if err == nil {
		t.Error("expected type mismatch error")
	}
}

func TestBreakerTripsAfterFailures(t *testing.T) {
	cb := newBreaker("test-trips")
	boom := errors.New("db down")

	// 10 consecutive failures exceed the 60% threshold at min request count
	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, boom })
	}

	if cb.State() != gobreaker.StateOpen {
		t.Errorf("expected open state after sustained failures, got %v", cb.State())
	}

	_, err := cb.Execute(func() (any, error) { return nil, nil })
	if !isBreakerRejection(err) {
		t.Errorf("expected breaker rejection, got %v", err)
	}
}

func TestBreakerStaysClosedUnderLowVolume(t *testing.T) {
	cb := newBreaker("test-low-volume")
	boom := errors.New("db down")

	// Below the 10-request minimum the breaker must not trip
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, boom })
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected closed state, got %v", cb.State())
	}
}

func TestStateConversions(t *testing.T) {
	if stateToFloat(gobreaker.StateClosed) != 0 || stateToFloat(gobreaker.StateOpen) != 2 {
		t.Error("unexpected state to float mapping")
	}
	if stateToString(gobreaker.StateHalfOpen) != "half-open" {
		t.Error("unexpected state to string mapping")
	}
}

func TestEngagementScore(t *testing.T) {
	m := ItemMetadata{Views: 10, Likes: 4, Comments: 2}
	// 10 + 3*4 + 5*2 = 32
	if got := m.EngagementScore(); got != 32 {
		t.Errorf("expected engagement 32, got %v", got)
	}
}
