package cropcast

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropforge/cropcast/feature"
	"github.com/cropforge/cropcast/modelspec"
	"github.com/cropforge/cropcast/ordersearch"
	"github.com/cropforge/cropcast/rank"
	"github.com/cropforge/cropcast/scenario"
	"github.com/cropforge/cropcast/timeseries"
	"github.com/cropforge/cropcast/walkforward"
)

// generateMarketData builds six years of monthly prices driven by a trending
// seasonal corn settle and an ethanol margin, with fixed noise.
func generateMarketData() (*timeseries.Series, *timeseries.Panel) {
	n := 72
	months := make([]time.Time, 0, n)
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		months = append(months, start.AddDate(0, i, 0))
	}

	rnd := rand.New(rand.NewPCG(7, 11))
	corn := make([]float64, n)
	margin := make([]float64, n)
	y := make([]float64, n)
	for i := range n {
		corn[i] = 420 + 1.5*float64(i) + 25*math.Sin(2*math.Pi*float64(i)/12) + 4*rnd.NormFloat64()
		margin[i] = 1.1 + 0.01*float64(i) + 0.2*rnd.NormFloat64()
	}
	for i := range n {
		y[i] = 120 + 0.35*corn[i] + 18*margin[i] + 2*rnd.NormFloat64()
	}

	target, err := timeseries.New(months, y)
	if err != nil {
		panic(err)
	}
	drivers, err := timeseries.NewPanel(months)
	if err != nil {
		panic(err)
	}
	if err := drivers.AddColumn("corn_settle", corn); err != nil {
		panic(err)
	}
	if err := drivers.AddColumn("ethanol_margin", margin); err != nil {
		panic(err)
	}
	return target, drivers
}

// marketOptions keeps the search space small so full runs stay fast.
func marketOptions() *Options {
	return &Options{
		Features:  &feature.Options{Lags: []int{1}},
		Selection: &rank.SelectorOptions{TopK: 3},
		Search: &ordersearch.Options{
			Constraints: ordersearch.Constraints{
				MaxP:   1,
				MaxD:   1,
				Period: 12,
			},
			Parallelization: 2,
		},
		Validation: &walkforward.Options{
			Window:          12,
			Horizon:         1,
			Parallelization: 2,
		},
		Projection: &scenario.Options{
			Horizon:         4,
			Parallelization: 1,
		},
	}
}

func marketScenarios() []scenario.Definition {
	return []scenario.Definition{
		{Name: "base"},
		{
			Name: "bull_corn",
			Adjustments: []scenario.Adjustment{
				{Variable: "corn_settle", PerStep: 0.05},
			},
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("nil options fall back to defaults", func(t *testing.T) {
		p, err := New(nil)
		require.NoError(t, err)
		assert.NotNil(t, p.opt.Features)
		assert.NotNil(t, p.opt.Search)
	})
	t.Run("invalid stage options propagate", func(t *testing.T) {
		opt := NewDefaultOptions()
		opt.Selection = &rank.SelectorOptions{TopK: -1}

		p, err := New(opt)
		require.Error(t, err)
		target := rank.ErrInvalidTopK
		assert.ErrorAs(t, err, &target)
		assert.Nil(t, p)
	})
}

func TestPipelineStageGuards(t *testing.T) {
	p, err := New(marketOptions())
	require.NoError(t, err)

	_, err = p.BestSpec()
	target := ErrNotPrepared
	assert.ErrorAs(t, err, &target)

	err = p.UseSpec(&modelspec.Spec{})
	target = ErrNotPrepared
	assert.ErrorAs(t, err, &target)

	_, err = p.Validate()
	target = ErrNoSpec
	assert.ErrorAs(t, err, &target)

	_, err = p.FitFinal()
	target = ErrNoSpec
	assert.ErrorAs(t, err, &target)

	_, err = p.Project(marketScenarios())
	target = ErrNoSpec
	assert.ErrorAs(t, err, &target)
}

func TestPipelinePrepare(t *testing.T) {
	targetSeries, drivers := generateMarketData()

	p, err := New(marketOptions())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(targetSeries, drivers))

	// one lag drops the first row during alignment
	assert.Equal(t, 71, p.TrainingData().Len())
	assert.Equal(t, 3, p.exog.NumColumns())
	assert.Len(t, p.scores, 3)
	assert.NotEmpty(t, p.Fingerprint())
	assert.Equal(t, p.exog.Names(), p.labels.Names())

	t.Run("nil target", func(t *testing.T) {
		err := p.Prepare(nil, drivers)
		target := timeseries.ErrNoObservations
		assert.ErrorAs(t, err, &target)
	})
	t.Run("nil drivers", func(t *testing.T) {
		err := p.Prepare(targetSeries, nil)
		target := timeseries.ErrNoColumns
		assert.ErrorAs(t, err, &target)
	})
}

func TestPipelineRun(t *testing.T) {
	targetSeries, drivers := generateMarketData()

	p, err := New(marketOptions())
	require.NoError(t, err)

	res, err := p.Run(targetSeries, drivers, marketScenarios())
	require.NoError(t, err)

	require.NotNil(t, res.Spec)
	assert.Equal(t, p.Fingerprint(), res.Spec.Fingerprint)
	assert.Len(t, res.Spec.Features, 3)
	require.NotNil(t, p.SearchResult())
	assert.Equal(t, 4, p.SearchResult().Evaluated)

	require.NotNil(t, res.Validation)
	cmp := res.Validation.Comparison
	require.NotNil(t, cmp)
	assert.Equal(t, 12, cmp.Model.N)
	assert.Equal(t, 12, cmp.Naive.N)
	require.NotNil(t, cmp.SeasonalNaive)

	// the model sees true future drivers so it should beat the last-value
	// benchmark comfortably on this exogenous-driven series
	assert.Less(t, cmp.Model.MAE, cmp.Naive.MAE)

	require.NotNil(t, p.Model())
	require.NotNil(t, res.Scenarios)
	assert.Equal(t, 0, res.Scenarios.Skipped())
	require.Len(t, res.Scenarios.Paths, 2)
	assert.Equal(t, "base", res.Scenarios.Paths[0].Name)
	assert.Equal(t, "bull_corn", res.Scenarios.Paths[1].Name)
	for _, path := range res.Scenarios.Paths {
		require.Len(t, path.Point, 4)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), path.T[0])
		for _, v := range path.Point {
			assert.False(t, math.IsNaN(v))
		}
	}

	// raising corn raises the composite price
	assert.Greater(t, res.Scenarios.Paths[1].Point[3], res.Scenarios.Paths[0].Point[3])
}

func TestPipelineRunPessimisticScenario(t *testing.T) {
	targetSeries, drivers := generateMarketData()

	var runs []*Results
	for i := 0; i < 2; i++ {
		p, err := New(marketOptions())
		require.NoError(t, err)

		res, err := p.Run(targetSeries, drivers, []scenario.Definition{
			{Name: "base"},
			{
				Name: "pessimistic",
				Adjustments: []scenario.Adjustment{
					{Variable: "corn_settle", PerStep: -0.01},
				},
			},
		})
		require.NoError(t, err)
		runs = append(runs, res)
	}

	res := runs[0]
	require.NotNil(t, res.Scenarios)
	require.Equal(t, 0, res.Scenarios.Skipped())
	require.Len(t, res.Scenarios.Paths, 2)

	cmp := res.Validation.Comparison
	assert.Less(t, cmp.Model.MAE, cmp.Naive.MAE)

	// a steadily declining corn settle pulls every projected month below the
	// flat base path, with the band bracketing the point forecast
	base, pessimistic := res.Scenarios.Paths[0], res.Scenarios.Paths[1]
	for j := range pessimistic.Point {
		assert.Less(t, pessimistic.Point[j], base.Point[j])
		assert.Less(t, pessimistic.Lower[j], pessimistic.Point[j])
		assert.Greater(t, pessimistic.Upper[j], pessimistic.Point[j])
	}

	assert.Equal(t, runs[0].Scenarios, runs[1].Scenarios)
	assert.Equal(t, runs[0].Validation.Comparison, runs[1].Validation.Comparison)
}

func TestPipelineRunNoScenarios(t *testing.T) {
	targetSeries, drivers := generateMarketData()

	p, err := New(marketOptions())
	require.NoError(t, err)

	res, err := p.Run(targetSeries, drivers, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Scenarios)
	assert.NotNil(t, res.Spec)
	assert.NotNil(t, p.Model())
}

func TestPipelineProjectFitsWhenNeeded(t *testing.T) {
	targetSeries, drivers := generateMarketData()

	p, err := New(marketOptions())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(targetSeries, drivers))
	_, err = p.BestSpec()
	require.NoError(t, err)
	require.Nil(t, p.Model())

	scenarios, err := p.Project(marketScenarios())
	require.NoError(t, err)
	assert.Len(t, scenarios.Paths, 2)
	assert.NotNil(t, p.Model())
}

func TestPipelineUseSpec(t *testing.T) {
	targetSeries, drivers := generateMarketData()

	first, err := New(marketOptions())
	require.NoError(t, err)
	require.NoError(t, first.Prepare(targetSeries, drivers))
	spec, err := first.BestSpec()
	require.NoError(t, err)

	t.Run("same inputs adopt the spec", func(t *testing.T) {
		second, err := New(marketOptions())
		require.NoError(t, err)
		require.NoError(t, second.Prepare(targetSeries, drivers))
		require.NoError(t, second.UseSpec(spec))

		assert.Nil(t, second.SearchResult())
		assert.Equal(t, spec, second.Spec())
		assert.Equal(t, first.exog.Names(), second.exog.Names())

		model, err := second.FitFinal()
		require.NoError(t, err)
		assert.NotNil(t, model)

		validation, err := second.Validate()
		require.NoError(t, err)
		assert.Equal(t, 12, validation.Comparison.Model.N)
	})

	t.Run("changed inputs are rejected", func(t *testing.T) {
		_, changed := generateMarketData()
		corn, _ := changed.Column("corn_settle")
		corn[len(corn)-1] += 1

		third, err := New(marketOptions())
		require.NoError(t, err)
		require.NoError(t, third.Prepare(targetSeries, changed))

		err = third.UseSpec(spec)
		target := modelspec.ErrStaleSpec
		assert.ErrorAs(t, err, &target)
	})
}

func TestSelectedLabels(t *testing.T) {
	catalog := feature.NewLabels([]feature.Feature{
		feature.NewRaw("corn_settle"),
		feature.NewLag("corn_settle", 1),
		feature.NewRaw("ethanol_margin"),
	})

	labels, err := selectedLabels(catalog, []string{"lag_corn_settle_01", "corn_settle"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lag_corn_settle_01", "corn_settle"}, labels.Names())

	_, err = selectedLabels(catalog, []string{"soy_settle"})
	target := feature.ErrUnknownColumn
	assert.ErrorAs(t, err, &target)
}
