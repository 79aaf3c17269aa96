// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ventidole/compass/internal/config"
	"github.com/ventidole/compass/internal/metrics"
)

// Postgres implements Provider on top of a PostgreSQL database using lib/pq.
// Every query runs with a bounded deadline and passes through a circuit
// breaker shared by all methods.
type Postgres struct {
	db           *sql.DB
	cb           *gobreaker.CircuitBreaker[any]
	queryTimeout time.Duration
	logger       zerolog.Logger
}

// Open connects to Postgres with the given settings and verifies
// connectivity before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Postgres{
		db:           db,
		cb:           newBreaker("postgres"),
		queryTimeout: cfg.QueryTimeout,
		logger:       logger.With().Str("component", "store").Logger(),
	}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// BreakerState reports the query circuit breaker's current state.
func (p *Postgres) BreakerState() string {
	return stateToString(p.cb.State())
}

// execute runs fn through the circuit breaker with a bounded deadline and
// records query metrics. Breaker rejections and query failures both surface
// as ErrUnavailable so callers see one failure mode.
func (p *Postgres) execute(ctx context.Context, query string, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()

	result, err := p.cb.Execute(func() (any, error) {
		qctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
		defer cancel()
		return fn(qctx)
	})

	metrics.RecordStoreQuery(query, time.Since(start), err)

	if err != nil {
		if isBreakerRejection(err) {
			p.logger.Warn().Str("query", query).Err(err).Msg("query rejected by circuit breaker")
		} else {
			p.logger.Error().Str("query", query).Err(err).Msg("query failed")
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, query, err)
	}

	return result, nil
}

// UserExists reports whether the user is known to the data source.
func (p *Postgres) UserExists(ctx context.Context, userID int64) (bool, error) {
	return castResult[bool](p.execute(ctx, "user_exists", func(ctx context.Context) (any, error) {
		var exists bool
		err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
		).Scan(&exists)
		return exists, err
	}))
}

// InteractionCount returns the number of recorded interactions for a user.
func (p *Postgres) InteractionCount(ctx context.Context, userID int64) (int, error) {
	return castResult[int](p.execute(ctx, "interaction_count", func(ctx context.Context) (any, error) {
		var count int
		err := p.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM interactions WHERE user_id = $1`, userID,
		).Scan(&count)
		return count, err
	}))
}

// FollowedCommunities returns the IDs of communities the user follows.
func (p *Postgres) FollowedCommunities(ctx context.Context, userID int64) ([]int64, error) {
	return castResult[[]int64](p.execute(ctx, "followed_communities", func(ctx context.Context) (any, error) {
		rows, err := p.db.QueryContext(ctx,
			`SELECT community_id FROM follows WHERE user_id = $1 ORDER BY community_id`, userID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		return scanInt64s(rows)
	}))
}

// CommunityTagWeights aggregates tag frequencies across the communities' items.
func (p *Postgres) CommunityTagWeights(ctx context.Context, communityIDs []int64) (map[string]float64, error) {
	if len(communityIDs) == 0 {
		return map[string]float64{}, nil
	}

	return castResult[map[string]float64](p.execute(ctx, "community_tag_weights", func(ctx context.Context) (any, error) {
		rows, err := p.db.QueryContext(ctx, `
			SELECT tag, COUNT(*)::float8
			FROM posts, unnest(tags) AS tag
			WHERE community_id = ANY($1)
			GROUP BY tag`,
			pq.Array(communityIDs))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		weights := make(map[string]float64)
		for rows.Next() {
			var tag string
			var count float64
			if err := rows.Scan(&tag, &count); err != nil {
				return nil, err
			}
			weights[tag] = count
		}
		return weights, rows.Err()
	}))
}

// CommunityItems returns every item belonging to the given communities.
// Age affects scoring, not candidacy, so there is no cutoff in the query.
func (p *Postgres) CommunityItems(ctx context.Context, communityIDs []int64) ([]ItemMetadata, error) {
	if len(communityIDs) == 0 {
		return nil, nil
	}

	return castResult[[]ItemMetadata](p.execute(ctx, "community_items", func(ctx context.Context) (any, error) {
		rows, err := p.db.QueryContext(ctx, `
			SELECT id, community_id, title, tags, created_at, views, likes, comments
			FROM posts
			WHERE community_id = ANY($1)
			ORDER BY id`,
			pq.Array(communityIDs))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		return scanItems(rows)
	}))
}

// CommunityMaxEngagement returns the maximum engagement score across all of
// each community's items.
func (p *Postgres) CommunityMaxEngagement(ctx context.Context, communityIDs []int64) (map[int64]float64, error) {
	if len(communityIDs) == 0 {
		return map[int64]float64{}, nil
	}

	return castResult[map[int64]float64](p.execute(ctx, "community_max_engagement", func(ctx context.Context) (any, error) {
		rows, err := p.db.QueryContext(ctx, `
			SELECT community_id, MAX(views + 3*likes + 5*comments)::float8
			FROM posts
			WHERE community_id = ANY($1)
			GROUP BY community_id`,
			pq.Array(communityIDs))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		maxima := make(map[int64]float64)
		for rows.Next() {
			var communityID int64
			var maxEngagement float64
			if err := rows.Scan(&communityID, &maxEngagement); err != nil {
				return nil, err
			}
			maxima[communityID] = maxEngagement
		}
		return maxima, rows.Err()
	}))
}

// ItemMetadata returns metadata for the given item IDs.
func (p *Postgres) ItemMetadata(ctx context.Context, itemIDs []int64) (map[int64]ItemMetadata, error) {
	if len(itemIDs) == 0 {
		return map[int64]ItemMetadata{}, nil
	}

	return castResult[map[int64]ItemMetadata](p.execute(ctx, "item_metadata", func(ctx context.Context) (any, error) {
		rows, err := p.db.QueryContext(ctx, `
			SELECT id, community_id, title, tags, created_at, views, likes, comments
			FROM posts
			WHERE id = ANY($1)`,
			pq.Array(itemIDs))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		items, err := scanItems(rows)
		if err != nil {
			return nil, err
		}

		byID := make(map[int64]ItemMetadata, len(items))
		for _, item := range items {
			byID[item.ItemID] = item
		}
		return byID, nil
	}))
}

// InteractionCounts returns per-user interaction counts for every user
// with recorded interactions.
func (p *Postgres) InteractionCounts(ctx context.Context) (map[int64]int, error) {
	return castResult[map[int64]int](p.execute(ctx, "interaction_counts", func(ctx context.Context) (any, error) {
		rows, err := p.db.QueryContext(ctx,
			`SELECT user_id, COUNT(*) FROM interactions GROUP BY user_id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		counts := make(map[int64]int)
		for rows.Next() {
			var userID int64
			var count int
			if err := rows.Scan(&userID, &count); err != nil {
				return nil, err
			}
			counts[userID] = count
		}
		return counts, rows.Err()
	}))
}

// FollowEdges returns the follow graph as user ID to followed community IDs.
func (p *Postgres) FollowEdges(ctx context.Context) (map[int64][]int64, error) {
	return castResult[map[int64][]int64](p.execute(ctx, "follow_edges", func(ctx context.Context) (any, error) {
		rows, err := p.db.QueryContext(ctx,
			`SELECT user_id, community_id FROM follows ORDER BY user_id, community_id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		edges := make(map[int64][]int64)
		for rows.Next() {
			var userID, communityID int64
			if err := rows.Scan(&userID, &communityID); err != nil {
				return nil, err
			}
			edges[userID] = append(edges[userID], communityID)
		}
		return edges, rows.Err()
	}))
}

// AllUserIDs returns every user ID in ascending order.
func (p *Postgres) AllUserIDs(ctx context.Context) ([]int64, error) {
	return castResult[[]int64](p.execute(ctx, "all_user_ids", func(ctx context.Context) (any, error) {
		rows, err := p.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		return scanInt64s(rows)
	}))
}

// AllItemIDs returns every item ID in ascending order.
func (p *Postgres) AllItemIDs(ctx context.Context) ([]int64, error) {
	return castResult[[]int64](p.execute(ctx, "all_item_ids", func(ctx context.Context) (any, error) {
		rows, err := p.db.QueryContext(ctx, `SELECT id FROM posts ORDER BY id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		return scanInt64s(rows)
	}))
}

// Ping verifies connectivity to the data source.
func (p *Postgres) Ping(ctx context.Context) error {
	_, err := p.execute(ctx, "ping", func(ctx context.Context) (any, error) {
		return nil, p.db.PingContext(ctx)
	})
	return err
}

// scanInt64s drains a single-column int64 result set.
func scanInt64s(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanItems drains a posts result set into ItemMetadata values.
func scanItems(rows *sql.Rows) ([]ItemMetadata, error) {
	var items []ItemMetadata
	for rows.Next() {
		var item ItemMetadata
		var tags pq.StringArray
		if err := rows.Scan(
			&item.ItemID, &item.CommunityID, &item.Title, &tags,
			&item.CreatedAt, &item.Views, &item.Likes, &item.Comments,
		); err != nil {
			return nil, err
		}
		item.Tags = tags
		items = append(items, item)
	}
	return items, rows.Err()
}
