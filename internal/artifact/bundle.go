// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

// Package artifact owns the trained ranking artifact lifecycle: decoding
// the on-disk bundle, validating its shape, and serving an immutable
// snapshot to concurrent readers with atomic hot-reload.
package artifact

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

// CurrentSchemaVersion is the bundle schema this build reads and understands.
const CurrentSchemaVersion = 1

// Bundle is the decoded on-disk ranking artifact.
type Bundle struct {
	SchemaVersion int       `json:"schema_version"`
	TrainedAt     time.Time `json:"trained_at"`
	Model         ModelData `json:"model"`

	// Mappings may be absent in legacy bundles; the manager then rebuilds
	// them from the data source's canonical ID ordering.
	Mappings *Mappings `json:"mappings,omitempty"`
}

// ModelData holds the factorized model parameters.
type ModelData struct {
	Dim         int         `json:"dim"`
	UserFactors [][]float64 `json:"user_factors"`
	ItemFactors [][]float64 `json:"item_factors"`
	UserBiases  []float64   `json:"user_biases"`
	ItemBiases  []float64   `json:"item_biases"`
}

// Mappings pair matrix row indices with external IDs. Index i of UserIDs is
// the user occupying row i of the user factor matrix, and likewise for items.
type Mappings struct {
	UserIDs []int64 `json:"user_ids"`
	ItemIDs []int64 `json:"item_ids"`
}

// gzip magic bytes
var gzipMagic = []byte{0x1f, 0x8b}

// ReadBundle reads and decodes a bundle file. Both gzip-framed and plain
// JSON files are accepted; framing is detected from the leading bytes.
func ReadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)

	var reader io.Reader = br
	if head, err := br.Peek(2); err == nil && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	bundle := &Bundle{}
	if err := json.NewDecoder(reader).Decode(bundle); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	if err := bundle.validate(); err != nil {
		return nil, fmt.Errorf("invalid artifact: %w", err)
	}

	return bundle, nil
}

// validate checks internal shape consistency: factor matrices must be
// rectangular with the declared dimension, bias vectors must match matrix
// row counts, and mappings (when present) must match cardinalities.
func (b *Bundle) validate() error {
	if b.SchemaVersion != CurrentSchemaVersion {
		return fmt.Errorf("unsupported schema version %d (supported: %d)", b.SchemaVersion, CurrentSchemaVersion)
	}

	m := &b.Model
	if m.Dim <= 0 {
		return fmt.Errorf("model dim must be positive, got %d", m.Dim)
	}
	if len(m.UserFactors) == 0 || len(m.ItemFactors) == 0 {
		return fmt.Errorf("model has no factors (users=%d, items=%d)", len(m.UserFactors), len(m.ItemFactors))
	}

	for i, row := range m.UserFactors {
		if len(row) != m.Dim {
			return fmt.Errorf("user factor row %d has %d components, want %d", i, len(row), m.Dim)
		}
	}
	for i, row := range m.ItemFactors {
		if len(row) != m.Dim {
			return fmt.Errorf("item factor row %d has %d components, want %d", i, len(row), m.Dim)
		}
	}

	if len(m.UserBiases) != len(m.UserFactors) {
		return fmt.Errorf("user biases length %d does not match %d user rows", len(m.UserBiases), len(m.UserFactors))
	}
	if len(m.ItemBiases) != len(m.ItemFactors) {
		return fmt.Errorf("item biases length %d does not match %d item rows", len(m.ItemBiases), len(m.ItemFactors))
	}

	if b.Mappings != nil {
		if len(b.Mappings.UserIDs) != len(m.UserFactors) {
			return fmt.Errorf("user mapping has %d IDs for %d user rows", len(b.Mappings.UserIDs), len(m.UserFactors))
		}
		if len(b.Mappings.ItemIDs) != len(m.ItemFactors) {
			return fmt.Errorf("item mapping has %d IDs for %d item rows", len(b.Mappings.ItemIDs), len(m.ItemFactors))
		}
	}

	return nil
}
