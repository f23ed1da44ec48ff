package cropcast

import (
	"github.com/cropforge/cropcast/evaluate"
	"github.com/cropforge/cropcast/modelspec"
	"github.com/cropforge/cropcast/scenario"
	"github.com/cropforge/cropcast/walkforward"
)

// Validation holds the walk-forward outcomes of the model and its naive
// benchmarks over the same origins, with their summarized scores.
type Validation struct {
	Model         *walkforward.Result  `json:"model"`
	Naive         *walkforward.Result  `json:"naive"`
	SeasonalNaive *walkforward.Result  `json:"seasonal_naive,omitempty"`
	Comparison    *evaluate.Comparison `json:"comparison"`
}

// Results collects the outcome of a full pipeline run.
type Results struct {
	Spec       *modelspec.Spec  `json:"spec"`
	Validation *Validation      `json:"validation"`
	Scenarios  *scenario.Result `json:"scenarios,omitempty"`
}
