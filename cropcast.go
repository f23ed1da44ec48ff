// Package cropcast forecasts monthly commodity prices from exogenous market
// drivers. A pipeline generates lag and interaction features from a driver
// panel, ranks and selects the most informative columns, grid searches a
// seasonal autoregressive specification, validates it walk-forward against
// naive benchmarks, and projects price paths under percentage-trend driver
// scenarios.
package cropcast

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cropforge/cropcast/evaluate"
	"github.com/cropforge/cropcast/feature"
	"github.com/cropforge/cropcast/modelspec"
	"github.com/cropforge/cropcast/ordersearch"
	"github.com/cropforge/cropcast/rank"
	"github.com/cropforge/cropcast/sarimax"
	"github.com/cropforge/cropcast/scenario"
	"github.com/cropforge/cropcast/timeseries"
	"github.com/cropforge/cropcast/walkforward"
)

var (
	ErrNotPrepared = errors.New("no prepared features, call Prepare first")
	ErrNoSpec      = errors.New("no model specification, call BestSpec or UseSpec first")
)

// Pipeline runs the forecasting stages against one target series and its
/// driver panel. Stages build on each other: Prepare, then BestSpec or
// UseSpec, then Validate, FitFinal, and Project.
type Pipeline struct {
	opt    *Options
	fitter *sarimax.HannanRissanen

	target  *timeseries.Series
	drivers *timeseries.Panel

	features    *timeseries.Panel
	catalog     *feature.Labels
	fingerprint string

	trainY *timeseries.Series
	exog   *timeseries.Panel
	labels *feature.Labels
	scores []rank.Score

	spec       *modelspec.Spec
	search     *ordersearch.Result
	validation *Validation
	model      sarimax.Model
}

// New creates a new instance of a Pipeline using the provided options. If no
// options are provided a default is used.
func New(opt *Options) (*Pipeline, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}

	fitter, err := sarimax.NewHannanRissanen(opt.Fit)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize fitter, %w", err)
	}

	return &Pipeline{
		opt:    opt,
		fitter: fitter,
	}, nil
}

// Prepare generates the feature panel from the driver columns, ranks the
// columns against the target, and retains the top set for modeling. The
// input fingerprint computed here ties any persisted specification back to
// this exact data.
func (p *Pipeline) Prepare(target *timeseries.Series, drivers *timeseries.Panel) error {
	if target == nil || target.Len() == 0 {
		return timeseries.ErrNoObservations
	}
	if drivers == nil || drivers.NumColumns() == 0 {
		return timeseries.ErrNoColumns
	}

	builder, err := feature.NewBuilder(p.opt.Features)
	if err != nil {
		return err
	}
	features, catalog, err := builder.Build(drivers)
	if err != nil {
		return fmt.Errorf("unable to generate features, %w", err)
	}

	selector, err := rank.NewSelector(p.opt.Ranker, p.opt.Selection)
	if err != nil {
		return err
	}
	sel, err := selector.TopK(features, target)
	if err != nil {
		return fmt.Errorf("unable to select features, %w", err)
	}

	labels, err := selectedLabels(catalog, sel.Panel.Names())
	if err != nil {
		return err
	}

	p.target = target
	p.drivers = drivers
	p.features = features
	p.catalog = catalog
	p.fingerprint = modelspec.Fingerprint(target, drivers, p.opt.Features)

	p.trainY = sel.Target
	p.exog = sel.Panel
	p.labels = labels
	p.scores = sel.Scores

	p.spec = nil
	p.search = nil
	p.validation = nil
	p.model = nil

	log.Info().
		Int("candidates", features.NumColumns()).
		Int("selected", p.exog.NumColumns()).
		Int("rows", p.trainY.Len()).
		Msg("feature panel prepared")
	return nil
}

// BestSpec grid searches the order constraints and records the winning
// specification. The search withholds the walk-forward window from its
// training slice so validation stays out of sample, unless too little
// history would remain.
func (p *Pipeline) BestSpec() (*modelspec.Spec, error) {
	if p.exog == nil {
		return nil, ErrNotPrepared
	}

	n := p.trainY.Len()
	trainN := n - p.opt.Validation.Window
	if trainN <= 0 || trainN < 2*p.opt.Search.Constraints.Period {
		log.Warn().
			Int("rows", n).
			Int("window", p.opt.Validation.Window).
			Msg("short history, order search uses the full series")
		trainN = n
	}

	searcher, err := ordersearch.NewSearcher(p.fitter, p.opt.Search)
	if err != nil {
		return nil, err
	}
	res, err := searcher.Search(p.trainY.Y[:trainN], p.exog.Prefix(trainN).Rows())
	if err != nil {
		return nil, fmt.Errorf("unable to search orders, %w", err)
	}

	feats := p.labels.Labels()
	scores := make([]float64, 0, len(p.scores))
	for _, score := range p.scores {
		scores = append(scores, score.Score)
	}
	spec, err := modelspec.New(res.Order, res.Seasonal, res.AIC, feats, scores, p.fingerprint)
	if err != nil {
		return nil, err
	}

	p.search = res
	p.spec = spec
	p.validation = nil
	p.model = nil

	evt := log.Info()
	if res.Failures > 0 {
		evt = log.Warn()
	}
	evt.
		Str("order", res.Order.String()).
		Str("seasonal", res.Seasonal.String()).
		Float64("aic", res.AIC).
		Int("evaluated", res.Evaluated).
		Int("failures", res.Failures).
		Msg("order search complete")
	return spec, nil
}

// UseSpec adopts a previously selected specification instead of searching,
// after verifying its fingerprint still matches the prepared inputs. The
// feature columns revert to the ones named by the specification.
func (p *Pipeline) UseSpec(spec *modelspec.Spec) error {
	if p.features == nil {
		return ErrNotPrepared
	}
	if err := spec.Verify(p.fingerprint); err != nil {
		return err
	}

	labels, err := spec.FeatureLabels()
	if err != nil {
		return err
	}

	aligned, trimmed, err := p.features.Align(p.target)
	if err != nil {
		return err
	}
	exog, err := aligned.Select(labels.Names())
	if err != nil {
		return err
	}

	scores := make([]rank.Score, 0, len(spec.Features))
	for i, rec := range spec.Features {
		scores = append(scores, rank.Score{
			Name:  labels.Names()[i],
			Score: rec.Score,
		})
	}

	p.trainY = trimmed
	p.exog = exog
	p.labels = labels
	p.scores = scores

	p.spec = spec
	p.search = nil
	p.validation = nil
	p.model = nil

	log.Info().
		Str("order", spec.Order.String()).
		Str("seasonal", spec.Seasonal.String()).
		Str("fingerprint", spec.Fingerprint[:12]).
		Msg("reusing stored model specification")
	return nil
}

// Validate walk-forward validates the selected specification and benchmarks
// it against the last-value and seasonal naive forecasters over the same
// origins.
func (p *Pipeline) Validate() (*Validation, error) {
	if p.spec == nil {
		return nil, ErrNoSpec
	}

	modelRes, err := p.runValidator(p.fitter)
	if err != nil {
		return nil, fmt.Errorf("unable to validate model, %w", err)
	}
	naiveRes, err := p.runValidator(evaluate.NaiveFitter{})
	if err != nil {
		return nil, fmt.Errorf("unable to validate naive benchmark, %w", err)
	}

	var seasonalRes *walkforward.Result
	period := p.spec.Seasonal.M
	if period < 2 {
		period = p.opt.Search.Constraints.Period
	}
	if period >= 2 {
		seasonalRes, err = p.runValidator(evaluate.SeasonalNaiveFitter{Period: period})
		if err != nil {
			return nil, fmt.Errorf("unable to validate seasonal naive benchmark, %w", err)
		}
	}

	cmp, err := evaluate.Compare(modelRes, naiveRes, seasonalRes)
	if err != nil {
		return nil, err
	}

	if skipped := modelRes.Skipped(); skipped > 0 {
		log.Warn().Int("origins", skipped).Msg("walk-forward origins skipped")
	}
	if cmp.Model.MAPESkipped > 0 {
		log.Warn().Int("observations", cmp.Model.MAPESkipped).Msg("zero actuals excluded from MAPE")
	}
	log.Info().
		Int("records", cmp.Model.N).
		Float64("mae", cmp.Model.MAE).
		Float64("naive_mae", cmp.Naive.MAE).
		Msg("walk-forward validation complete")

	p.validation = &Validation{
		Model:         modelRes,
		Naive:         naiveRes,
		SeasonalNaive: seasonalRes,
		Comparison:    cmp,
	}
	return p.validation, nil
}

func (p *Pipeline) runValidator(fitter sarimax.Fitter) (*walkforward.Result, error) {
	v, err := walkforward.NewValidator(fitter, p.opt.Validation)
	if err != nil {
		return nil, err
	}
	return v.Run(p.trainY, p.exog, p.spec.Order, p.spec.Seasonal)
}

// FitFinal fits the selected specification on the full aligned history. The
// returned model backs scenario projections.
func (p *Pipeline) FitFinal() (sarimax.Model, error) {
	if p.spec == nil {
		return nil, ErrNoSpec
	}

	model, err := p.fitter.Fit(p.spec.Order, p.spec.Seasonal, p.trainY.Y, p.exog.Rows())
	if err != nil {
		return nil, fmt.Errorf("unable to fit final model, %w", err)
	}
	p.model = model

	log.Info().
		Str("order", p.spec.Order.String()).
		Str("seasonal", p.spec.Seasonal.String()).
		Float64("aic", model.AIC()).
		Int("rows", p.trainY.Len()).
		Msg("final model fit")
	return model, nil
}

// Project projects price paths for the given scenario definitions off the
// end of the driver history. A final model is fit first when none exists
// yet.
func (p *Pipeline) Project(defs []scenario.Definition) (*scenario.Result, error) {
	if p.spec == nil {
		return nil, ErrNoSpec
	}
	if p.model == nil {
		if _, err := p.FitFinal(); err != nil {
			return nil, err
		}
	}

	forecaster, err := scenario.NewForecaster(p.model, p.labels, p.opt.Features, p.opt.Projection)
	if err != nil {
		return nil, err
	}
	res, err := forecaster.Project(p.drivers, defs)
	if err != nil {
		return nil, err
	}

	if skipped := res.Skipped(); skipped > 0 {
		log.Warn().Int("scenarios", skipped).Msg("scenario projections skipped")
	}
	log.Info().
		Int("scenarios", len(res.Paths)).
		Int("horizon", p.opt.Projection.Horizon).
		Msg("scenario projection complete")
	return res, nil
}

// Run executes every stage in order and collects the outcome. Scenario
// definitions may be empty, in which case projection is skipped.
func (p *Pipeline) Run(target *timeseries.Series, drivers *timeseries.Panel, defs []scenario.Definition) (*Results, error) {
	if err := p.Prepare(target, drivers); err != nil {
		return nil, err
	}
	spec, err := p.BestSpec()
	if err != nil {
		return nil, err
	}
	validation, err := p.Validate()
	if err != nil {
		return nil, err
	}
	if _, err := p.FitFinal(); err != nil {
		return nil, err
	}

	var scenarios *scenario.Result
	if len(defs) > 0 {
		if scenarios, err = p.Project(defs); err != nil {
			return nil, err
		}
	}

	return &Results{
		Spec:       spec,
		Validation: validation,
		Scenarios:  scenarios,
	}, nil
}

// Spec returns the selected model specification, or nil before selection.
func (p *Pipeline) Spec() *modelspec.Spec {
	return p.spec
}

// SearchResult returns the order search outcome, or nil when the
// specification was adopted with UseSpec.
func (p *Pipeline) SearchResult() *ordersearch.Result {
	return p.search
}

// Validation returns the latest walk-forward outcome, or nil before
// Validate.
func (p *Pipeline) Validation() *Validation {
	return p.validation
}

// Model returns the final fitted model, or nil before FitFinal.
func (p *Pipeline) Model() sarimax.Model {
	return p.model
}

// Fingerprint returns the prepared input fingerprint, or an empty string
// before Prepare.
func (p *Pipeline) Fingerprint() string {
	return p.fingerprint
}

// TrainingData returns the aligned target rows the model stages fit
// against.
func (p *Pipeline) TrainingData() *timeseries.Series {
	return p.trainY
}

func selectedLabels(catalog *feature.Labels, names []string) (*feature.Labels, error) {
	feats := catalog.Labels()
	byName := make(map[string]feature.Feature, catalog.Len())
	for i, name := range catalog.Names() {
		byName[name] = feats[i]
	}

	picked := make([]feature.Feature, 0, len(names))
	for _, name := range names {
		feat, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("feature %q, %w", name, feature.ErrUnknownColumn)
		}
		picked = append(picked, feat)
	}
	return feature.NewLabels(picked), nil
}
