package cropcast

import (
	"github.com/cropforge/cropcast/feature"
	"github.com/cropforge/cropcast/ordersearch"
	"github.com/cropforge/cropcast/rank"
	"github.com/cropforge/cropcast/sarimax"
	"github.com/cropforge/cropcast/scenario"
	"github.com/cropforge/cropcast/walkforward"
)

// Options collects the options of every pipeline stage. Nil sub-options fall
// back to that stage's defaults.
type Options struct {
	Features   *feature.Options      `json:"features"`
	Selection  *rank.SelectorOptions `json:"selection"`
	Fit        *sarimax.Options      `json:"fit"`
	Search     *ordersearch.Options  `json:"search"`
	Validation *walkforward.Options  `json:"validation"`
	Projection *scenario.Options     `json:"projection"`

	// Ranker scores candidate features for selection. Nil falls back to the
	// correlation ranker.
	Ranker rank.Ranker `json:"-"`
}

// NewDefaultOptions returns a default set of options for all stages.
func NewDefaultOptions() *Options {
	return &Options{
		Features:   feature.NewDefaultOptions(),
		Selection:  rank.NewDefaultSelectorOptions(),
		Fit:        sarimax.NewDefaultOptions(),
		Search:     ordersearch.NewDefaultOptions(),
		Validation: walkforward.NewDefaultOptions(),
		Projection: scenario.NewDefaultOptions(),
	}
}

// Validate runs basic validation on all stage options, replacing nil
// sections with their defaults.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}

	var err error
	if o.Features, err = o.Features.Validate(); err != nil {
		return nil, err
	}
	if o.Selection, err = o.Selection.Validate(); err != nil {
		return nil, err
	}
	if o.Fit, err = o.Fit.Validate(); err != nil {
		return nil, err
	}
	if o.Search, err = o.Search.Validate(); err != nil {
		return nil, err
	}
	if o.Validation, err = o.Validation.Validate(); err != nil {
		return nil, err
	}
	if o.Projection, err = o.Projection.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}
