// Package evaluate summarizes forecast accuracy from aligned actual and
// forecast pairs and benchmarks a model against naive alternatives. A model
// that cannot beat the naive forecasts is not worth its complexity, so the
// comparison is the primary readout of a validation run.
package evaluate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/cropforge/cropcast/walkforward"
)

var (
	ErrLenMismatch = errors.New("actual and forecast lengths differ")
	ErrNoPairs     = errors.New("no pairs to evaluate")
)

// Summary holds accuracy metrics over one set of pairs. MAPE skips pairs
// whose actual is zero and reports how many were skipped; R2 is reported as
// zero when the actuals are constant.
type Summary struct {
	N           int     `json:"n"`
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
	Bias        float64 `json:"bias"`
	MAPE        float64 `json:"mape"`
	MAPESkipped int     `json:"mape_skipped"`
	SMAPE       float64 `json:"smape"`
	R2          float64 `json:"r2"`
}

// Summarize computes accuracy metrics for aligned pairs. Bias is signed as
// forecast minus actual, so a positive bias means the forecasts run high.
func Summarize(actual, forecast []float64) (*Summary, error) {
	if len(actual) != len(forecast) {
		return nil, fmt.Errorf(
			"%d actuals with %d forecasts, %w",
			len(actual), len(forecast), ErrLenMismatch,
		)
	}
	if len(actual) == 0 {
		return nil, ErrNoPairs
	}

	n := len(actual)
	s := &Summary{N: n}

	var absSum, sqSum, biasSum float64
	var mapeSum, smapeSum float64
	mapeCount := 0
	for i := range actual {
		err := forecast[i] - actual[i]
		absSum += math.Abs(err)
		sqSum += err * err
		biasSum += err

		if actual[i] != 0 {
			mapeSum += math.Abs(err / actual[i])
			mapeCount++
		}
		if denom := math.Abs(actual[i]) + math.Abs(forecast[i]); denom != 0 {
			smapeSum += 2 * math.Abs(err) / denom
		}
	}

	s.MAE = absSum / float64(n)
	s.RMSE = math.Sqrt(sqSum / float64(n))
	s.Bias = biasSum / float64(n)
	s.SMAPE = 100 * smapeSum / float64(n)
	s.MAPESkipped = n - mapeCount
	if mapeCount > 0 {
		s.MAPE = 100 * mapeSum / float64(mapeCount)
	}

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, a := range actual {
		ssTot += (a - mean) * (a - mean)
	}
	if ssTot > 0 {
		s.R2 = 1 - sqSum/ssTot
	}
	return s, nil
}

// Comparison lines a model summary up against naive benchmarks run over the
// same validation origins.
type Comparison struct {
	Model          *Summary `json:"model"`
	Naive          *Summary `json:"naive"`
	SeasonalNaive  *Summary `json:"seasonal_naive,omitempty"`
	SkippedOrigins int      `json:"skipped_origins"`
}

// Compare summarizes a model validation result next to naive benchmark
// results. The seasonal result may be nil when no seasonal benchmark was
// run. Skipped origins are carried from the model run so a strong looking
// summary over few surviving origins is visible for what it is.
func Compare(model, naive, seasonal *walkforward.Result) (*Comparison, error) {
	modelSummary, err := Summarize(model.Pairs())
	if err != nil {
		return nil, fmt.Errorf("model records, %w", err)
	}
	naiveSummary, err := Summarize(naive.Pairs())
	if err != nil {
		return nil, fmt.Errorf("naive records, %w", err)
	}

	cmp := &Comparison{
		Model:          modelSummary,
		Naive:          naiveSummary,
		SkippedOrigins: model.Skipped(),
	}
	if seasonal != nil {
		seasonalSummary, err := Summarize(seasonal.Pairs())
		if err != nil {
			return nil, fmt.Errorf("seasonal naive records, %w", err)
		}
		cmp.SeasonalNaive = seasonalSummary
	}
	return cmp, nil
}
