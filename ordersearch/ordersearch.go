// Package ordersearch selects a model specification by exhaustive search
// over a bounded order grid, scored by in-sample AIC. Candidates that fail
// to fit are skipped rather than escalated, and ties resolve to the earliest
// candidate in enumeration order so a search is reproducible run to run.
package ordersearch

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cropforge/cropcast/sarimax"
)

var (
	ErrNoFitter          = errors.New("no fitter provided")
	ErrInvalidConstraint = errors.New("negative order bound")
	ErrInvalidPeriod     = errors.New("seasonal bounds require a period of at least 2")
	ErrNoConvergence     = errors.New("no candidate order converged")
)

// Constraints bounds the search grid. Every order combination from zero up
// to each bound inclusive is enumerated.
type Constraints struct {
	MaxP         int `json:"max_p"`
	MaxD         int `json:"max_d"`
	MaxQ         int `json:"max_q"`
	MaxSeasonalP int `json:"max_seasonal_p"`
	MaxSeasonalD int `json:"max_seasonal_d"`
	MaxSeasonalQ int `json:"max_seasonal_q"`

	// Period is the seasonal cycle length in observations, e.g. 12 for
	// monthly data with an annual cycle.
	Period int `json:"period"`
}

// Validate runs basic validation on the search constraints.
func (c Constraints) Validate() error {
	if c.MaxP < 0 || c.MaxD < 0 || c.MaxQ < 0 ||
		c.MaxSeasonalP < 0 || c.MaxSeasonalD < 0 || c.MaxSeasonalQ < 0 {
		return ErrInvalidConstraint
	}
	if (c.MaxSeasonalP > 0 || c.MaxSeasonalD > 0 || c.MaxSeasonalQ > 0) && c.Period < 2 {
		return fmt.Errorf("period of %d, %w", c.Period, ErrInvalidPeriod)
	}
	return nil
}

// enumerate expands the grid in a fixed order. The first candidate is always
// the all-zero order, and later loops vary faster than earlier ones.
func (c Constraints) enumerate() []Candidate {
	candidates := make([]Candidate, 0,
		(c.MaxP+1)*(c.MaxD+1)*(c.MaxQ+1)*(c.MaxSeasonalP+1)*(c.MaxSeasonalD+1)*(c.MaxSeasonalQ+1))
	for p := 0; p <= c.MaxP; p++ {
		for d := 0; d <= c.MaxD; d++ {
			for q := 0; q <= c.MaxQ; q++ {
				for sp := 0; sp <= c.MaxSeasonalP; sp++ {
					for sd := 0; sd <= c.MaxSeasonalD; sd++ {
						for sq := 0; sq <= c.MaxSeasonalQ; sq++ {
							candidates = append(candidates, Candidate{
								Order:    sarimax.Order{P: p, D: d, Q: q},
								Seasonal: sarimax.Seasonal{P: sp, D: sd, Q: sq, M: c.Period},
							})
						}
					}
				}
			}
		}
	}
	return candidates
}

// Candidate is one specification drawn from the grid.
type Candidate struct {
	Order    sarimax.Order    `json:"order"`
	Seasonal sarimax.Seasonal `json:"seasonal"`
}

// Options represents input options for running an order search.
type Options struct {
	Constraints Constraints `json:"constraints"`

	// Parallelization sets how many candidate fits run concurrently. More
	// will increase memory and compute usage.
	Parallelization int `json:"parallelization"`
}

// NewDefaultOptions returns a default set of search options for monthly data
// with an annual cycle.
func NewDefaultOptions() *Options {
	return &Options{
		Constraints: Constraints{
			MaxP:         2,
			MaxD:         1,
			MaxQ:         2,
			MaxSeasonalP: 1,
			MaxSeasonalD: 1,
			MaxSeasonalQ: 1,
			Period:       12,
		},
		Parallelization: 1,
	}
}

// Validate runs basic validation on search options.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	if err := o.Constraints.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Result is the winning specification with its score and fitted handle.
type Result struct {
	Order    sarimax.Order    `json:"order"`
	Seasonal sarimax.Seasonal `json:"seasonal"`
	AIC      float64          `json:"aic"`

	// Evaluated counts enumerated candidates and Failures counts the subset
	// that failed to fit or produced an unusable score.
	Evaluated int `json:"evaluated"`
	Failures  int `json:"failures"`

	Model sarimax.Model `json:"-"`
}

// Searcher runs grid searches against a fitter.
type Searcher struct {
	fitter sarimax.Fitter
	opt    *Options
}

// NewSearcher initializes a grid searcher with the given fitter.
func NewSearcher(fitter sarimax.Fitter, opt *Options) (*Searcher, error) {
	if fitter == nil {
		return nil, ErrNoFitter
	}
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &Searcher{
		fitter: fitter,
		opt:    opt,
	}, nil
}

type outcome struct {
	model sarimax.Model
	aic   float64
	err   error
}

// Search fits every candidate in the grid against the training slice and
// returns the specification with the lowest AIC. Fits run concurrently but
// the winner is chosen in enumeration order, so results are deterministic
// for a given input regardless of parallelization.
func (s *Searcher) Search(y []float64, exog [][]float64) (*Result, error) {
	candidates := s.opt.Constraints.enumerate()
	outcomes := make([]outcome, len(candidates))

	parallelization := s.opt.Parallelization
	if parallelization <= 0 || parallelization > len(candidates) {
		parallelization = len(candidates)
	}

	sem := make(chan struct{}, parallelization)
	var wg sync.WaitGroup
	for i, cand := range candidates {
		sem <- struct{}{}
		wg.Add(1)

		go s.runFit(i, cand, y, exog, outcomes, &wg, sem)
	}
	wg.Wait()

	best := -1
	failures := 0
	for i := range outcomes {
		if outcomes[i].err != nil || math.IsNaN(outcomes[i].aic) {
			failures++
			continue
		}
		if best < 0 || outcomes[i].aic < outcomes[best].aic {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("all %d candidate orders failed, %w", len(candidates), ErrNoConvergence)
	}

	return &Result{
		Order:     candidates[best].Order,
		Seasonal:  candidates[best].Seasonal,
		AIC:       outcomes[best].aic,
		Evaluated: len(candidates),
		Failures:  failures,
		Model:     outcomes[best].model,
	}, nil
}

func (s *Searcher) runFit(i int, cand Candidate, y []float64, exog [][]float64, outcomes []outcome, wg *sync.WaitGroup, sem chan struct{}) {
	defer func() {
		wg.Done()
		<-sem
	}()

	model, err := s.fitter.Fit(cand.Order, cand.Seasonal, y, exog)
	if err != nil {
		outcomes[i] = outcome{err: err}
		return
	}
	outcomes[i] = outcome{model: model, aic: model.AIC()}
}
