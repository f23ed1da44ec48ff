package rank

import (
	"errors"
	"fmt"

	"github.com/cropforge/cropcast/timeseries"
)

const DefaultTopK = 10

// SelectorOptions represents input options for top-K feature selection.
type SelectorOptions struct {
	// TopK is the number of ranked feature columns to retain.
	TopK int
}

// NewDefaultSelectorOptions returns a default set of selection options.
func NewDefaultSelectorOptions() *SelectorOptions {
	return &SelectorOptions{
		TopK: DefaultTopK,
	}
}

// Validate runs basic validation on selector options.
func (o *SelectorOptions) Validate() (*SelectorOptions, error) {
	if o == nil {
		o = NewDefaultSelectorOptions()
	}
	if o.TopK < 1 {
		return nil, fmt.Errorf("top k of %d, %w", o.TopK, ErrInvalidTopK)
	}
	return o, nil
}

// Selection is the outcome of ranking and truncating a feature panel. The
// panel is aligned to the target's valid rows and restricted to the retained
// columns in rank order.
type Selection struct {
	Scores []Score
	Panel  *timeseries.Panel
	Target *timeseries.Series
}

// Names returns the retained column names in rank order.
func (s *Selection) Names() []string {
	names := make([]string, 0, len(s.Scores))
	for _, score := range s.Scores {
		names = append(names, score.Name)
	}
	return names
}

// Selector aligns a feature panel with its target, delegates importance
// scoring to a Ranker, and truncates to the top-K columns.
type Selector struct {
	opt    *SelectorOptions
	ranker Ranker
}

// NewSelector initializes a Selector. A nil ranker falls back to the
// correlation ranker.
func NewSelector(ranker Ranker, opt *SelectorOptions) (*Selector, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if ranker == nil {
		ranker = CorrelationRanker{}
	}
	return &Selector{
		opt:    opt,
		ranker: ranker,
	}, nil
}

// TopK aligns, ranks, and truncates the feature panel. Retaining fewer than
// K columns is not an error when the panel is narrower than K.
func (s *Selector) TopK(panel *timeseries.Panel, target *timeseries.Series) (*Selection, error) {
	aligned, trimmed, err := panel.Align(target)
	if err != nil {
		if errors.Is(err, timeseries.ErrNoColumns) || errors.Is(err, timeseries.ErrNoObservations) {
			return nil, fmt.Errorf("%v, %w", err, ErrEmptyFeatureSet)
		}
		return nil, err
	}

	scores, err := s.ranker.Rank(aligned, trimmed)
	if err != nil {
		return nil, err
	}

	k := s.opt.TopK
	if k > len(scores) {
		k = len(scores)
	}
	kept := scores[:k]

	names := make([]string, 0, k)
	for _, score := range kept {
		names = append(names, score.Name)
	}
	reduced, err := aligned.Select(names)
	if err != nil {
		return nil, err
	}

	return &Selection{
		Scores: kept,
		Panel:  reduced,
		Target: trimmed,
	}, nil
}
