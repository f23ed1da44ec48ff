package rank

import (
	"math"

	"github.com/cropforge/cropcast/timeseries"
	"gonum.org/v1/gonum/stat"
)

// CorrelationRanker scores each feature column by the absolute value of its
// Pearson correlation with the target. Columns with undefined correlation,
// such as constant columns, score zero.
type CorrelationRanker struct{}

func (c CorrelationRanker) Rank(panel *timeseries.Panel, target *timeseries.Series) ([]Score, error) {
	if panel.NumColumns() == 0 {
		return nil, ErrEmptyFeatureSet
	}
	if panel.Len() != target.Len() {
		return nil, timeseries.ErrIndexMismatch
	}

	scores := make([]Score, 0, panel.NumColumns())
	for _, name := range panel.Names() {
		col, _ := panel.Column(name)
		corr := stat.Correlation(col, target.Y, nil)
		if math.IsNaN(corr) {
			corr = 0.0
		}
		scores = append(scores, Score{
			Name:  name,
			Score: math.Abs(corr),
		})
	}
	sortScores(scores)
	return scores, nil
}
