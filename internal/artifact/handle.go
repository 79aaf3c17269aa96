// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package artifact

import (
	"time"

	"github.com/ventidole/compass/internal/store"
)

// Handle is a consistent, immutable snapshot of one loaded artifact: the
// model, its ID mappings, and the item metadata cache. Readers obtain a
// Handle once per request and never observe a partially loaded state.
// Nothing in a Handle is mutated after it is published.
type Handle struct {
	model *Model

	userIndex map[int64]int
	itemIndex map[int64]int
	itemIDs   []int64 // row index -> item ID, in mapping order

	metadata map[int64]store.ItemMetadata

	schemaVersion int
	trainedAt     time.Time
	loadedAt      time.Time
	sourceModTime time.Time
}

// Model returns the snapshot's predictor.
func (h *Handle) Model() *Model { return h.model }

// UserIndex returns the model row for a user ID.
func (h *Handle) UserIndex(userID int64) (int, bool) {
	idx, ok := h.userIndex[userID]
	return idx, ok
}

// ItemIndex returns the model row for an item ID.
func (h *Handle) ItemIndex(itemID int64) (int, bool) {
	idx, ok := h.itemIndex[itemID]
	return idx, ok
}

// ItemID returns the item ID occupying the given model row.
func (h *Handle) ItemID(idx int) int64 { return h.itemIDs[idx] }

// Metadata returns the cached metadata for an item.
func (h *Handle) Metadata(itemID int64) (store.ItemMetadata, bool) {
	m, ok := h.metadata[itemID]
	return m, ok
}

// NumUsers returns the number of users in the snapshot.
func (h *Handle) NumUsers() int { return len(h.userIndex) }

// NumItems returns the number of items in the snapshot.
func (h *Handle) NumItems() int { return len(h.itemIDs) }

// NumMetadata returns the number of cached metadata entries.
func (h *Handle) NumMetadata() int { return len(h.metadata) }

// SchemaVersion returns the bundle schema version of the snapshot.
func (h *Handle) SchemaVersion() int { return h.schemaVersion }

// TrainedAt returns when the artifact was trained.
func (h *Handle) TrainedAt() time.Time { return h.trainedAt }

// LoadedAt returns when this snapshot was published.
func (h *Handle) LoadedAt() time.Time { return h.loadedAt }
