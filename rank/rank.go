// Package rank orders candidate exogenous features by importance against a
// target series and truncates to the retained top set.
package rank

import (
	"errors"
	"sort"

	"github.com/cropforge/cropcast/timeseries"
)

var (
	ErrEmptyFeatureSet = errors.New("no feature columns after alignment with target")
	ErrInvalidTopK     = errors.New("top k must be positive")
)

// Score pairs a feature column name with its importance score.
type Score struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Ranker orders feature columns by importance. The panel and target are
// expected to be aligned to the same rows. Higher scores rank first; ties
// break by column name ascending.
type Ranker interface {
	Rank(panel *timeseries.Panel, target *timeseries.Series) ([]Score, error)
}

func sortScores(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})
}
