// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package recommend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ventidole/compass/internal/artifact"
	"github.com/ventidole/compass/internal/coldstart"
	"github.com/ventidole/compass/internal/config"
	"github.com/ventidole/compass/internal/store"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

// fakeProvider is an in-memory store.Provider. It counts point queries so
// cache tests can assert what hit the data source.
type fakeProvider struct {
	users         map[int64]bool
	counts        map[int64]int
	follows       map[int64][]int64
	tagWeights    map[string]float64
	items         []store.ItemMetadata
	maxEngagement map[int64]float64
	metadata      map[int64]store.ItemMetadata

	calls map[string]int

	// err, when set, fails every query.
	err error
}

func (f *fakeProvider) bump(query string) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[query]++
}

func (f *fakeProvider) UserExists(_ context.Context, userID int64) (bool, error) {
	f.bump("user_exists")
	if f.err != nil {
		return false, f.err
	}
	return f.users[userID], nil
}

func (f *fakeProvider) InteractionCount(_ context.Context, userID int64) (int, error) {
	f.bump("interaction_count")
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[userID], nil
}

func (f *fakeProvider) FollowedCommunities(_ context.Context, userID int64) ([]int64, error) {
	f.bump("followed_communities")
	if f.err != nil {
		return nil, f.err
	}
	return f.follows[userID], nil
}

func (f *fakeProvider) CommunityTagWeights(context.Context, []int64) (map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tagWeights, nil
}

func (f *fakeProvider) CommunityItems(context.Context, []int64) ([]store.ItemMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *fakeProvider) CommunityMaxEngagement(context.Context, []int64) (map[int64]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.maxEngagement, nil
}

func (f *fakeProvider) ItemMetadata(context.Context, []int64) (map[int64]store.ItemMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.metadata, nil
}

func (f *fakeProvider) InteractionCounts(context.Context) (map[int64]int, error) {
	f.bump("interaction_counts")
	if f.err != nil {
		return nil, f.err
	}
	return f.counts, nil
}

func (f *fakeProvider) FollowEdges(context.Context) (map[int64][]int64, error) {
	f.bump("follow_edges")
	if f.err != nil {
		return nil, f.err
	}
	return f.follows, nil
}

func (f *fakeProvider) AllUserIDs(_ context.Context) ([]int64, error) {
	f.bump("all_user_ids")
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]int64, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeProvider) AllItemIDs(context.Context) ([]int64, error) { return nil, f.err }
func (f *fakeProvider) Ping(context.Context) error                  { return f.err }

// newFixtureProvider returns a provider where user 1 is active and mapped in
// the artifact, user 7 is a cold-start user following community 1, and user 9
// is active but absent from the artifact mappings.
func newFixtureProvider() *fakeProvider {
	meta := func(id, community int64, tags []string, age time.Duration, views int64) store.ItemMetadata {
		return store.ItemMetadata{
			ItemID:      id,
			CommunityID: community,
			Title:       "post",
			Tags:        tags,
			CreatedAt:   testNow.Add(-age),
			Views:       views,
		}
	}

	return &fakeProvider{
		users:      map[int64]bool{1: true, 7: true, 9: true},
		counts:     map[int64]int{1: 20, 7: 2, 9: 20},
		follows:    map[int64][]int64{7: {1}, 9: {1}},
		tagWeights: map[string]float64{"rock": 2, "jazz": 1},
		items: []store.ItemMetadata{
			meta(201, 1, []string{"rock"}, time.Hour, 40),
			meta(202, 1, []string{"jazz"}, 26*time.Hour, 10),
			meta(203, 1, nil, 3*24*time.Hour, 5),
		},
		maxEngagement: map[int64]float64{1: 40},
		metadata: map[int64]store.ItemMetadata{
			101: meta(101, 1, []string{"rock"}, time.Hour, 30),
			102: meta(102, 1, []string{"jazz"}, 2*time.Hour, 20),
			103: meta(103, 2, nil, 3*time.Hour, 10),
		},
	}
}

// writeTestBundle writes a plain-JSON artifact for user 1 over items
// 101..103 with scores 0.9, 0.5, 0.7 respectively.
func writeTestBundle(t *testing.T) string {
	t.Helper()

	bundle := artifact.Bundle{
		SchemaVersion: artifact.CurrentSchemaVersion,
		TrainedAt:     testNow.Add(-time.Hour),
		Model: artifact.ModelData{
			Dim:         2,
			UserFactors: [][]float64{{1, 0}},
			ItemFactors: [][]float64{{0.9, 0}, {0.5, 0}, {0.7, 0}},
			UserBiases:  []float64{0},
			ItemBiases:  []float64{0, 0, 0},
		},
		Mappings: &artifact.Mappings{
			UserIDs: []int64{1},
			ItemIDs: []int64{101, 102, 103},
		},
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}

	path := filepath.Join(t.TempDir(), "artifact.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func newTestService(t *testing.T, provider *fakeProvider, loadArtifact bool) *Service {
	t.Helper()

	mgr := artifact.NewManager(config.ArtifactConfig{Path: writeTestBundle(t)}, provider, zerolog.Nop())
	if loadArtifact {
		if err := mgr.Load(context.Background()); err != nil {
			t.Fatalf("load artifact: %v", err)
		}
	}

	svc := NewService(
		provider,
		NewProfiles(provider, zerolog.Nop()),
		mgr,
		coldstart.NewClassifier(5),
		coldstart.NewRanker(coldstart.DefaultConfig(), zerolog.Nop()),
		Config{
			TotalToGenerate: 100,
			DefaultLimit:    20,
			MaxLimit:        100,
		},
		zerolog.Nop(),
	)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestRecommendModelPath(t *testing.T) {
	svc := newTestService(t, newFixtureProvider(), true)

	resp, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if resp.Strategy != "model" {
		t.Errorf("strategy = %q, want model", resp.Strategy)
	}
	if resp.UserState != "normal" {
		t.Errorf("user state = %q, want normal", resp.UserState)
	}

	// Score order: 101 (0.9), 103 (0.7), 102 (0.5).
	wantIDs := []int64{101, 103, 102}
	if len(resp.Items) != len(wantIDs) {
		t.Fatalf("got %d items, want %d", len(resp.Items), len(wantIDs))
	}
	for i, want := range wantIDs {
		if resp.Items[i].ItemID != want {
			t.Errorf("position %d: item %d, want %d", i, resp.Items[i].ItemID, want)
		}
		if resp.Items[i].Rank != i+1 {
			t.Errorf("position %d: rank %d, want %d", i, resp.Items[i].Rank, i+1)
		}
	}

	if resp.Pagination.Total != 3 || resp.Pagination.HasMore {
		t.Errorf("pagination = %+v, want total 3 without more", resp.Pagination)
	}
}

func TestRecommendColdStartPath(t *testing.T) {
	svc := newTestService(t, newFixtureProvider(), true)

	resp, err := svc.Recommend(context.Background(), Request{UserID: 7})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if resp.Strategy != "cold_start" {
		t.Errorf("strategy = %q, want cold_start", resp.Strategy)
	}
	if resp.UserState != "cold_start" {
		t.Errorf("user state = %q, want cold_start", resp.UserState)
	}

	if len(resp.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(resp.Items))
	}
	// The fresh, popular, tag-matching item wins.
	if resp.Items[0].ItemID != 201 {
		t.Errorf("top item = %d, want 201", resp.Items[0].ItemID)
	}
	for i := 1; i < len(resp.Items); i++ {
		if resp.Items[i].Score > resp.Items[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestRecommendActiveUserNotInArtifactFallsBack(t *testing.T) {
	svc := newTestService(t, newFixtureProvider(), true)

	resp, err := svc.Recommend(context.Background(), Request{UserID: 9})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if resp.Strategy != "cold_start" {
		t.Errorf("strategy = %q, want cold_start fallback", resp.Strategy)
	}
	// The classification is still based on activity, not the route taken.
	if resp.UserState != "normal" {
		t.Errorf("user state = %q, want normal", resp.UserState)
	}
}

func TestRecommendUserNotFound(t *testing.T) {
	svc := newTestService(t, newFixtureProvider(), true)

	_, err := svc.Recommend(context.Background(), Request{UserID: 404})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRecommendArtifactNotLoaded(t *testing.T) {
	svc := newTestService(t, newFixtureProvider(), false)

	_, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if !errors.Is(err, ErrArtifactNotLoaded) {
		t.Fatalf("expected ErrArtifactNotLoaded, got %v", err)
	}
}

func TestRecommendDataSourceError(t *testing.T) {
	provider := newFixtureProvider()
	provider.err = errors.New("connection refused")
	svc := newTestService(t, provider, false)

	_, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if !errors.Is(err, ErrDataSource) {
		t.Fatalf("expected ErrDataSource, got %v", err)
	}
}

func TestRecommendPagination(t *testing.T) {
	svc := newTestService(t, newFixtureProvider(), true)

	// Second page of size 2 holds only the last of three items.
	resp, err := svc.Recommend(context.Background(), Request{UserID: 1, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ItemID != 102 {
		t.Fatalf("page 2 items = %+v, want single item 102", resp.Items)
	}
	if resp.Items[0].Rank != 3 {
		t.Errorf("rank = %d, want 3", resp.Items[0].Rank)
	}
	if resp.Pagination.HasMore {
		t.Error("HasMore should be false on the last page")
	}

	first, err := svc.Recommend(context.Background(), Request{UserID: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !first.Pagination.HasMore {
		t.Error("HasMore should be true on the first page of three items")
	}
}

func TestRecommendOffsetPastEndIsEmptyPage(t *testing.T) {
	svc := newTestService(t, newFixtureProvider(), true)

	resp, err := svc.Recommend(context.Background(), Request{UserID: 1, Offset: 50})
	if err != nil {
		t.Fatalf("an empty later page is not an error: %v", err)
	}
	if len(resp.Items) != 0 || resp.Pagination.Count != 0 {
		t.Errorf("expected empty page, got %d items", len(resp.Items))
	}
	if resp.Pagination.HasMore {
		t.Error("HasMore should be false past the end")
	}
}

func TestRecommendEmptyFirstPage(t *testing.T) {
	provider := newFixtureProvider()
	provider.follows = map[int64][]int64{}
	provider.items = nil
	svc := newTestService(t, provider, true)

	_, err := svc.Recommend(context.Background(), Request{UserID: 7})
	if !errors.Is(err, ErrNoRecommendations) {
		t.Fatalf("expected ErrNoRecommendations, got %v", err)
	}
}

func TestRecommendLimitClamping(t *testing.T) {
	svc := newTestService(t, newFixtureProvider(), true)

	resp, err := svc.Recommend(context.Background(), Request{UserID: 1, Limit: 5000})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Pagination.Limit != svc.cfg.MaxLimit {
		t.Errorf("limit = %d, want clamp to %d", resp.Pagination.Limit, svc.cfg.MaxLimit)
	}

	resp, err = svc.Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Pagination.Limit != svc.cfg.DefaultLimit {
		t.Errorf("limit = %d, want default %d", resp.Pagination.Limit, svc.cfg.DefaultLimit)
	}
}

func TestRecommendModelServesItemsWithoutMetadata(t *testing.T) {
	provider := newFixtureProvider()
	delete(provider.metadata, 103)
	svc := newTestService(t, provider, true)

	resp, err := svc.Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	// A lagging metadata cache must not shorten the page: 103 keeps its
	// score-ordered slot with empty descriptive fields.
	wantIDs := []int64{101, 103, 102}
	if len(resp.Items) != len(wantIDs) {
		t.Fatalf("got %d items, want %d", len(resp.Items), len(wantIDs))
	}
	for i, want := range wantIDs {
		if resp.Items[i].ItemID != want {
			t.Errorf("position %d: item %d, want %d", i, resp.Items[i].ItemID, want)
		}
		if resp.Items[i].Rank != i+1 {
			t.Errorf("position %d: rank %d, want %d", i, resp.Items[i].Rank, i+1)
		}
	}

	bare := resp.Items[1]
	if bare.Title != "" || bare.CommunityID != 0 || len(bare.Tags) != 0 {
		t.Errorf("item without metadata should have empty fields, got %+v", bare)
	}
}

func TestRecommendColdStartKeepsItemsOlderThanRecencyWindow(t *testing.T) {
	provider := newFixtureProvider()
	// The only content in the followed community is well past the recency
	// window. It must still surface, scored without the recency signal.
	provider.items = []store.ItemMetadata{{
		ItemID:      301,
		CommunityID: 1,
		Title:       "archive",
		Tags:        []string{"rock"},
		CreatedAt:   testNow.Add(-30 * 24 * time.Hour),
		Views:       12,
	}}
	provider.maxEngagement = map[int64]float64{1: 12}
	svc := newTestService(t, provider, true)

	resp, err := svc.Recommend(context.Background(), Request{UserID: 7})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if len(resp.Items) != 1 || resp.Items[0].ItemID != 301 {
		t.Fatalf("items = %+v, want the 30-day-old item", resp.Items)
	}
	if resp.Items[0].Score <= 0 {
		t.Errorf("score = %v, want positive from the non-recency signals", resp.Items[0].Score)
	}
}

func TestRecommendDeterministicAcrossCalls(t *testing.T) {
	svc := newTestService(t, newFixtureProvider(), true)

	first, err := svc.Recommend(context.Background(), Request{UserID: 7})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	second, err := svc.Recommend(context.Background(), Request{UserID: 7})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if len(first.Items) != len(second.Items) {
		t.Fatal("item counts differ across identical calls")
	}
	for i := range first.Items {
		if first.Items[i].ItemID != second.Items[i].ItemID {
			t.Errorf("position %d differs across identical calls", i)
		}
	}
}
