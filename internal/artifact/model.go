// Compass - Personalized Content Recommendation Service
// Copyright 2026 Ventidole
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ventidole/compass

package artifact

// Model is an immutable latent-factor predictor. A relevance score is the
// dot product of the user and item factor vectors plus both bias terms.
type Model struct {
	dim         int
	userFactors [][]float64
	itemFactors [][]float64
	userBiases  []float64
	itemBiases  []float64
}

// newModel builds a Model from validated bundle data. The slices are
// referenced, not copied; the bundle must not be mutated afterwards.
func newModel(data *ModelData) *Model {
	return &Model{
		dim:         data.Dim,
		userFactors: data.UserFactors,
		itemFactors: data.ItemFactors,
		userBiases:  data.UserBiases,
		itemBiases:  data.ItemBiases,
	}
}

// NumUsers returns the number of user rows in the model.
func (m *Model) NumUsers() int { return len(m.userFactors) }

// NumItems returns the number of item rows in the model.
func (m *Model) NumItems() int { return len(m.itemFactors) }

// Score computes the predicted relevance of item itemIdx for user userIdx.
func (m *Model) Score(userIdx, itemIdx int) float64 {
	uf := m.userFactors[userIdx]
	itf := m.itemFactors[itemIdx]

	score := m.userBiases[userIdx] + m.itemBiases[itemIdx]
	for d := 0; d < m.dim; d++ {
		score += uf[d] * itf[d]
	}
	return score
}

// ScoreAll computes scores for every item for the given user.
// The result slice is indexed by item row.
func (m *Model) ScoreAll(userIdx int) []float64 {
	uf := m.userFactors[userIdx]
	userBias := m.userBiases[userIdx]

	scores := make([]float64, len(m.itemFactors))
	for i, itf := range m.itemFactors {
		s := userBias + m.itemBiases[i]
		for d := 0; d < m.dim; d++ {
			s += uf[d] * itf[d]
		}
		scores[i] = s
	}
	return scores
}
