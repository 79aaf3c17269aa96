// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ventidole/compass/internal/artifact"
)

// fakeReloader records reload triggers.
type fakeReloader struct {
	mu      sync.Mutex
	calls   int
	changed bool
	err     error
}

func (f *fakeReloader) Reload(context.Context, bool) (artifact.ReloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return artifact.ReloadResult{}, f.err
	}
	return artifact.ReloadResult{Reloaded: true}, nil
}

func (f *fakeReloader) Changed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed, nil
}

func (f *fakeReloader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitForCalls(t *testing.T, r *fakeReloader, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if r.callCount() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("reloader reached %d calls, want at least %d", r.callCount(), want)
}

func TestWatchServiceReloadsOnFileEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.json.gz")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloader := &fakeReloader{}
	svc := NewWatchService(reloader, WatchConfig{
		Path:         path,
		PollInterval: time.Hour, // events only
		Debounce:     30 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Give the watcher a moment to attach before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitForCalls(t, reloader, 1)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestWatchServiceDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.json.gz")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloader := &fakeReloader{}
	svc := NewWatchService(reloader, WatchConfig{
		Path:         path,
		PollInterval: time.Hour,
		Debounce:     150 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Serve(ctx) //nolint:errcheck // shutdown error is not under test

	time.Sleep(100 * time.Millisecond)

	// A burst of writes inside the debounce window coalesces to one reload.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte(i)}, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitForCalls(t, reloader, 1)
	time.Sleep(300 * time.Millisecond)

	if got := reloader.callCount(); got != 1 {
		t.Errorf("burst of writes triggered %d reloads, want 1", got)
	}
}

func TestWatchServicePollFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.json.gz")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloader := &fakeReloader{changed: true}
	svc := NewWatchService(reloader, WatchConfig{
		Path:         path,
		PollInterval: 30 * time.Millisecond,
		Debounce:     time.Hour, // polling only
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Serve(ctx) //nolint:errcheck // shutdown error is not under test

	waitForCalls(t, reloader, 1)
}

func TestWatchServiceSurvivesReloadErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.json.gz")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloader := &fakeReloader{changed: true, err: errors.New("corrupt bundle")}
	svc := NewWatchService(reloader, WatchConfig{
		Path:         path,
		PollInterval: 30 * time.Millisecond,
		Debounce:     time.Hour,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Several failed reloads must not stop the service.
	waitForCalls(t, reloader, 3)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestWatchServiceDefaults(t *testing.T) {
	svc := NewWatchService(&fakeReloader{}, WatchConfig{Path: "/tmp/x"}, zerolog.Nop())
	if svc.config.PollInterval != time.Minute {
		t.Errorf("PollInterval default = %v", svc.config.PollInterval)
	}
	if svc.config.Debounce != 2*time.Second {
		t.Errorf("Debounce default = %v", svc.config.Debounce)
	}
	if svc.String() != "artifact-watch" {
		t.Errorf("String() = %q", svc.String())
	}
}
