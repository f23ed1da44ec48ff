// Package scenario projects a fitted model forward under named what-if
// paths for its exogenous drivers. Each scenario synthesizes future driver
// values from a percentage trend, regenerates the derived regressors step by
// step so lags and interactions stay internally consistent, and queries the
// model once across the full horizon.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cropforge/cropcast/feature"
	"github.com/cropforge/cropcast/sarimax"
	"github.com/cropforge/cropcast/timeseries"
)

var (
	ErrNoModel           = errors.New("no fitted model")
	ErrNoScenarios       = errors.New("no scenarios defined")
	ErrUnnamedScenario   = errors.New("scenario has no name")
	ErrDuplicateScenario = errors.New("duplicate scenario name")
	ErrUnknownVariable   = errors.New("adjustment references an unknown driver")
	ErrDuplicateVariable = errors.New("multiple adjustments for one driver")
	ErrInvalidHorizon    = errors.New("projection horizon must be positive")
	ErrNoHistory         = errors.New("no driver history")
)

// Adjustment shifts one raw driver by a percentage trend. The default is
// compound growth, last*(1+p)^t at step t; Flat switches to a linear ramp,
// last*(1+p*t).
type Adjustment struct {
	Variable string  `json:"variable"`
	PerStep  float64 `json:"per_step"`
	Flat     bool    `json:"flat,omitempty"`
}

func (a Adjustment) value(last float64, step int) float64 {
	if a.Flat {
		return last * (1 + a.PerStep*float64(step))
	}
	return last * math.Pow(1+a.PerStep, float64(step))
}

// TotalOverHorizon converts a total percentage change across h steps into
// the compound per-step rate that reaches it.
func TotalOverHorizon(total float64, h int) float64 {
	if h < 1 {
		return 0
	}
	return math.Pow(1+total, 1/float64(h)) - 1
}

// Definition is a named scenario. Drivers without an adjustment are held at
// their last observed value.
type Definition struct {
	Name        string       `json:"name"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
}

// Validate checks a definition against the known driver names.
func (d Definition) Validate(variables []string) error {
	if d.Name == "" {
		return ErrUnnamedScenario
	}
	known := make(map[string]struct{}, len(variables))
	for _, name := range variables {
		known[name] = struct{}{}
	}
	seen := make(map[string]struct{}, len(d.Adjustments))
	for _, adj := range d.Adjustments {
		if _, exists := known[adj.Variable]; !exists {
			return fmt.Errorf("scenario %q references %q, %w", d.Name, adj.Variable, ErrUnknownVariable)
		}
		if _, exists := seen[adj.Variable]; exists {
			return fmt.Errorf("scenario %q adjusts %q twice, %w", d.Name, adj.Variable, ErrDuplicateVariable)
		}
		seen[adj.Variable] = struct{}{}
	}
	return nil
}

// Path is one projected scenario: the forecast band plus the synthesized
// driver values it was conditioned on.
type Path struct {
	Name    string               `json:"name"`
	T       []time.Time          `json:"t"`
	Point   []float64            `json:"point"`
	Lower   []float64            `json:"lower"`
	Upper   []float64            `json:"upper"`
	Drivers map[string][]float64 `json:"drivers"`
}

// Failure marks a scenario whose projection did not complete.
type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Result collects the projected paths in definition order along with the
// scenarios that were skipped.
type Result struct {
	Paths    []Path    `json:"paths"`
	Failures []Failure `json:"failures,omitempty"`
}

// Skipped reports how many scenarios were dropped by projection failures.
func (r *Result) Skipped() int {
	return len(r.Failures)
}

// Options represents input options for scenario projection.
type Options struct {
	// Horizon is the number of months to project forward.
	Horizon int `json:"horizon"`

	// Parallelization sets how many scenarios project concurrently. More
	// will increase memory and compute usage.
	Parallelization int `json:"parallelization"`
}

// NewDefaultOptions returns a default set of projection options.
func NewDefaultOptions() *Options {
	return &Options{
		Horizon:         6,
		Parallelization: 1,
	}
}

// Validate runs basic validation on projection options.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	if o.Horizon < 1 {
		return nil, fmt.Errorf("horizon of %d, %w", o.Horizon, ErrInvalidHorizon)
	}
	return o, nil
}

// Forecaster projects scenarios through a fitted model. The labels pin the
// regressor columns the model was trained on, in training order, and the
// feature options must be the same plan those columns were generated with.
type Forecaster struct {
	model   sarimax.Model
	labels  *feature.Labels
	featOpt *feature.Options
	opt     *Options
}

// NewForecaster initializes a scenario forecaster around a fitted model.
func NewForecaster(model sarimax.Model, labels *feature.Labels, featOpt *feature.Options, opt *Options) (*Forecaster, error) {
	if model == nil {
		return nil, ErrNoModel
	}
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	featOpt, err = featOpt.Validate()
	if err != nil {
		return nil, err
	}
	return &Forecaster{
		model:   model,
		labels:  labels,
		featOpt: featOpt,
		opt:     opt,
	}, nil
}

type pathOutcome struct {
	path *Path
	err  error
}

// Project runs every scenario against the trailing driver history and
// returns paths in definition order. Scenarios project concurrently and
// independently; a fresh feature stepper per scenario keeps one scenario's
// synthesized values out of another's lags. A scenario whose projection
// fails is recorded and skipped without disturbing the others; only
// configuration problems shared by every scenario abort the projection.
func (f *Forecaster) Project(raw *timeseries.Panel, defs []Definition) (*Result, error) {
	if len(defs) == 0 {
		return nil, ErrNoScenarios
	}
	if raw == nil || raw.Len() == 0 {
		return nil, ErrNoHistory
	}

	variables := raw.Names()
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if err := def.Validate(variables); err != nil {
			return nil, err
		}
		if _, exists := seen[def.Name]; exists {
			return nil, fmt.Errorf("scenario %q, %w", def.Name, ErrDuplicateScenario)
		}
		seen[def.Name] = struct{}{}
	}

	cols, err := f.resolveColumns(raw.Names())
	if err != nil {
		return nil, err
	}

	last := make(map[string]float64, len(variables))
	for _, name := range variables {
		col, _ := raw.Column(name)
		last[name] = col[len(col)-1]
	}
	future := timeseries.FutureMonths(raw.T[raw.Len()-1], f.opt.Horizon)

	outcomes := make([]pathOutcome, len(defs))

	parallelization := f.opt.Parallelization
	if parallelization <= 0 || parallelization > len(defs) {
		parallelization = len(defs)
	}

	sem := make(chan struct{}, parallelization)
	var wg sync.WaitGroup
	for i, def := range defs {
		sem <- struct{}{}
		wg.Add(1)

		go func(i int, def Definition) {
			defer func() {
				wg.Done()
				<-sem
			}()
			path, err := f.project(raw, def, cols, variables, last, future)
			outcomes[i] = pathOutcome{path: path, err: err}
		}(i, def)
	}
	wg.Wait()

	res := &Result{}
	for i, outcome := range outcomes {
		if outcome.err != nil {
			res.Failures = append(res.Failures, Failure{
				Name:   defs[i].Name,
				Reason: outcome.err.Error(),
				Err:    outcome.err,
			})
			continue
		}
		res.Paths = append(res.Paths, *outcome.path)
	}
	return res, nil
}

// resolveColumns locates the model's regressor columns within the feature
// plan's vector. A label outside the plan is a configuration error common to
// every scenario, so it is surfaced before any projection starts.
func (f *Forecaster) resolveColumns(rawNames []string) ([]int, error) {
	if f.labels == nil {
		return nil, nil
	}

	builder, err := feature.NewBuilder(f.featOpt)
	if err != nil {
		return nil, err
	}
	planLabels, err := builder.Labels(rawNames)
	if err != nil {
		return nil, err
	}

	cols := make([]int, 0, f.labels.Len())
	for _, label := range f.labels.Labels() {
		idx, exists := planLabels.Index(label)
		if !exists {
			return nil, fmt.Errorf("column %q, %w", label.String(), feature.ErrUnknownColumn)
		}
		cols = append(cols, idx)
	}
	return cols, nil
}

func (f *Forecaster) project(raw *timeseries.Panel, def Definition, cols []int, variables []string, last map[string]float64, future []time.Time) (*Path, error) {
	stepper, err := feature.NewStepper(raw, f.featOpt)
	if err != nil {
		return nil, err
	}

	adjust := make(map[string]Adjustment, len(def.Adjustments))
	for _, adj := range def.Adjustments {
		adjust[adj.Variable] = adj
	}

	h := f.opt.Horizon
	drivers := make(map[string][]float64, len(variables))
	for _, name := range variables {
		drivers[name] = make([]float64, 0, h)
	}

	var exog [][]float64
	if len(cols) > 0 {
		exog = make([][]float64, 0, h)
	}
	for step := 1; step <= h; step++ {
		vals := make(map[string]float64, len(variables))
		for _, name := range variables {
			val := last[name]
			if adj, exists := adjust[name]; exists {
				val = adj.value(last[name], step)
			}
			vals[name] = val
			drivers[name] = append(drivers[name], val)
		}

		vec, err := stepper.Step(vals)
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			row := make([]float64, len(cols))
			for j, idx := range cols {
				row[j] = vec[idx]
			}
			exog = append(exog, row)
		}
	}

	fc, err := f.model.Forecast(h, exog)
	if err != nil {
		return nil, err
	}

	return &Path{
		Name:    def.Name,
		T:       future,
		Point:   fc.Point,
		Lower:   fc.Lower,
		Upper:   fc.Upper,
		Drivers: drivers,
	}, nil
}
