// Package walkforward validates a model specification by refitting it at a
// sliding sequence of origins and forecasting each origin's unseen months.
// Training data at every origin is strictly earlier than the origin month,
// so recorded errors are out of sample by construction. A fit failure at one
// origin is recorded and skipped without disturbing the others.
package walkforward

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cropforge/cropcast/sarimax"
	"github.com/cropforge/cropcast/timeseries"
)

var (
	ErrNoFitter       = errors.New("no fitter provided")
	ErrNoSeries       = errors.New("no target series")
	ErrInvalidWindow  = errors.New("validation window must be positive")
	ErrInvalidHorizon = errors.New("forecast horizon must be positive")
	ErrWindowTooWide  = errors.New("validation window leaves no training observations")
	ErrPanelMismatch  = errors.New("panel does not align with the target series")
)

// Options represents input options for a walk-forward run.
type Options struct {
	// Window is the number of validation origins taken from the end of the
	// recorded history.
	Window int `json:"window"`

	// Horizon is the number of steps forecast at each origin. Steps that
	// run past recorded history are not emitted.
	Horizon int `json:"horizon"`

	// Parallelization sets how many origins refit concurrently. More will
	// increase memory and compute usage.
	Parallelization int `json:"parallelization"`
}

// NewDefaultOptions returns a default set of walk-forward options covering
// one year of monthly origins.
func NewDefaultOptions() *Options {
	return &Options{
		Window:          12,
		Horizon:         1,
		Parallelization: 1,
	}
}

// Validate runs basic validation on walk-forward options.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	if o.Window < 1 {
		return nil, fmt.Errorf("window of %d, %w", o.Window, ErrInvalidWindow)
	}
	if o.Horizon < 1 {
		return nil, fmt.Errorf("horizon of %d, %w", o.Horizon, ErrInvalidHorizon)
	}
	return o, nil
}

// Record is one out-of-sample comparison. Step is 1-based: step 1 forecasts
// the origin month itself, step h the month h-1 past it.
type Record struct {
	Origin   time.Time `json:"origin"`
	Step     int       `json:"step"`
	T        time.Time `json:"t"`
	Actual   float64   `json:"actual"`
	Forecast float64   `json:"forecast"`
	Lower    float64   `json:"lower"`
	Upper    float64   `json:"upper"`
}

// Failure marks an origin whose refit or forecast did not complete.
type Failure struct {
	Origin time.Time `json:"origin"`
	Reason string    `json:"reason"`
	Err    error     `json:"-"`
}

// Result collects the out-of-sample records in chronological order along
// with the origins that were skipped.
type Result struct {
	Records  []Record  `json:"records"`
	Failures []Failure `json:"failures"`
}

// Skipped reports how many origins were dropped by fit or forecast
// failures.
func (r *Result) Skipped() int {
	return len(r.Failures)
}

// Pairs splits the records into aligned actual and forecast slices.
func (r *Result) Pairs() ([]float64, []float64) {
	actual := make([]float64, len(r.Records))
	forecast := make([]float64, len(r.Records))
	for i, rec := range r.Records {
		actual[i] = rec.Actual
		forecast[i] = rec.Forecast
	}
	return actual, forecast
}

// StepRecords filters the records down to one forecast step so accuracy can
// be summarized per lead time.
func (r *Result) StepRecords(step int) []Record {
	records := make([]Record, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.Step == step {
			records = append(records, rec)
		}
	}
	return records
}

// Validator runs walk-forward passes with a fixed fitter.
type Validator struct {
	fitter sarimax.Fitter
	opt    *Options
}

// NewValidator initializes a walk-forward validator.
func NewValidator(fitter sarimax.Fitter, opt *Options) (*Validator, error) {
	if fitter == nil {
		return nil, ErrNoFitter
	}
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &Validator{
		fitter: fitter,
		opt:    opt,
	}, nil
}

type originOutcome struct {
	records []Record
	failure *Failure
}

// Run refits the given specification at each origin and forecasts forward.
// The panel may be nil for an endogenous-only validation, otherwise it must
// share the series time index. Origins refit concurrently, but the returned
// records are always in chronological order.
func (v *Validator) Run(series *timeseries.Series, panel *timeseries.Panel, order sarimax.Order, seasonal sarimax.Seasonal) (*Result, error) {
	if series == nil || len(series.Y) == 0 {
		return nil, ErrNoSeries
	}
	n := len(series.Y)

	var rows [][]float64
	if panel != nil {
		if panel.Len() != n {
			return nil, fmt.Errorf(
				"panel has %d observations, series has %d, %w",
				panel.Len(), n, ErrPanelMismatch,
			)
		}
		rows = panel.Rows()
	}

	if v.opt.Window >= n {
		return nil, fmt.Errorf(
			"window of %d origins over %d observations, %w",
			v.opt.Window, n, ErrWindowTooWide,
		)
	}
	firstOrigin := n - v.opt.Window

	parallelization := v.opt.Parallelization
	if parallelization <= 0 || parallelization > v.opt.Window {
		parallelization = v.opt.Window
	}

	outcomes := make([]originOutcome, v.opt.Window)

	var g errgroup.Group
	g.SetLimit(parallelization)
	for i := 0; i < v.opt.Window; i++ {
		origin := firstOrigin + i
		slot := &outcomes[i]
		g.Go(func() error {
			*slot = v.runOrigin(series, rows, order, seasonal, origin)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, outcome := range outcomes {
		if outcome.failure != nil {
			res.Failures = append(res.Failures, *outcome.failure)
			continue
		}
		res.Records = append(res.Records, outcome.records...)
	}
	return res, nil
}

func (v *Validator) runOrigin(series *timeseries.Series, rows [][]float64, order sarimax.Order, seasonal sarimax.Seasonal, origin int) originOutcome {
	n := len(series.Y)
	steps := v.opt.Horizon
	if origin+steps > n {
		steps = n - origin
	}

	var trainX [][]float64
	var futureX [][]float64
	if rows != nil {
		trainX = rows[:origin]
		futureX = rows[origin : origin+steps]
	}

	model, err := v.fitter.Fit(order, seasonal, series.Y[:origin], trainX)
	if err != nil {
		return originOutcome{failure: &Failure{
			Origin: series.T[origin],
			Reason: err.Error(),
			Err:    err,
		}}
	}

	fc, err := model.Forecast(steps, futureX)
	if err != nil {
		return originOutcome{failure: &Failure{
			Origin: series.T[origin],
			Reason: err.Error(),
			Err:    err,
		}}
	}

	records := make([]Record, steps)
	for j := 0; j < steps; j++ {
		records[j] = Record{
			Origin:   series.T[origin],
			Step:     j + 1,
			T:        series.T[origin+j],
			Actual:   series.Y[origin+j],
			Forecast: fc.Point[j],
			Lower:    fc.Lower[j],
			Upper:    fc.Upper[j],
		}
	}
	return originOutcome{records: records}
}
