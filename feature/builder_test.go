package feature

import (
	"math"
	"testing"
	"time"

	"github.com/cropforge/cropcast/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRawPanel(t *testing.T, cols map[string][]float64, order []string) *timeseries.Panel {
	n := len(cols[order[0]])
	months := timeseries.GenerateMonths(n, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	p, err := timeseries.NewPanel(months)
	require.Nil(t, err)
	for _, name := range order {
		require.Nil(t, p.AddColumn(name, cols[name]))
	}
	return p
}

func TestOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt      *Options
		expected *Options
		err      error
	}{
		"nil defaults": {
			expected: NewDefaultOptions(),
		},
		"nonpositive lag": {
			opt: &Options{Lags: []int{0}},
			err: ErrInvalidLag,
		},
		"duplicate lag": {
			opt: &Options{Lags: []int{2, 2}},
			err: ErrDuplicateLag,
		},
		"empty interaction name": {
			opt: &Options{Interactions: [][2]string{{"corn", ""}}},
			err: ErrInvalidInteraction,
		},
		"lags normalized ascending": {
			opt:      &Options{Lags: []int{3, 1, 2}},
			expected: &Options{Lags: []int{1, 2, 3}},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			opt, err := td.opt.Validate()
			if td.err != nil {
				assert.ErrorAs(t, err, &td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, opt)
		})
	}
}

func TestBuildLagCorrectness(t *testing.T) {
	raw := testRawPanel(t, map[string][]float64{
		"corn": {10, 20, 30, 40, 50},
	}, []string{"corn"})

	b, err := NewBuilder(&Options{Lags: []int{1, 3}})
	require.Nil(t, err)

	panel, labels, err := b.Build(raw)
	require.Nil(t, err)

	assert.Equal(t, []string{"corn", "lag_corn_01", "lag_corn_03"}, labels.Names())
	assert.Equal(t, labels.Names(), panel.Names())

	lag1, exists := panel.Column("lag_corn_01")
	require.True(t, exists)
	lag3, exists := panel.Column("lag_corn_03")
	require.True(t, exists)

	rawCol, _ := panel.Column("corn")
	for i := range rawCol {
		if i < 1 {
			assert.True(t, math.IsNaN(lag1[i]), "lag 1 head at %d", i)
		} else {
			assert.Equal(t, rawCol[i-1], lag1[i], "lag 1 at %d", i)
		}
		if i < 3 {
			assert.True(t, math.IsNaN(lag3[i]), "lag 3 head at %d", i)
		} else {
			assert.Equal(t, rawCol[i-3], lag3[i], "lag 3 at %d", i)
		}
	}
}

func TestBuildInteractions(t *testing.T) {
	raw := testRawPanel(t, map[string][]float64{
		"corn": {1, 2, 3, 4},
		"soy":  {5, 6, 7, 8},
	}, []string{"corn", "soy"})

	b, err := NewBuilder(&Options{
		Lags:         []int{1},
		Interactions: [][2]string{{"corn", "soy"}},
	})
	require.Nil(t, err)

	panel, labels, err := b.Build(raw)
	require.Nil(t, err)

	expected := []string{
		"corn", "lag_corn_01",
		"soy", "lag_soy_01",
		"inter_corn_soy", "lag_inter_corn_soy_01",
	}
	assert.Equal(t, expected, labels.Names())

	inter, exists := panel.Column("inter_corn_soy")
	require.True(t, exists)
	assert.Equal(t, []float64{5, 12, 21, 32}, inter)

	interLag, exists := panel.Column("lag_inter_corn_soy_01")
	require.True(t, exists)
	assert.True(t, math.IsNaN(interLag[0]))
	assert.Equal(t, []float64{5, 12, 21}, interLag[1:])
}

func TestBuildInteractionOfLaggedColumn(t *testing.T) {
	raw := testRawPanel(t, map[string][]float64{
		"corn": {1, 2, 3, 4, 5},
		"soy":  {2, 2, 2, 2, 2},
	}, []string{"corn", "soy"})

	b, err := NewBuilder(&Options{
		Lags:         []int{2},
		Interactions: [][2]string{{"lag_corn_02", "soy"}},
	})
	require.Nil(t, err)

	panel, _, err := b.Build(raw)
	require.Nil(t, err)

	inter, exists := panel.Column("inter_lag_corn_02_soy")
	require.True(t, exists)
	assert.True(t, math.IsNaN(inter[0]))
	assert.True(t, math.IsNaN(inter[1]))
	assert.Equal(t, []float64{2, 4, 6}, inter[2:])
}

func TestBuildDeterministic(t *testing.T) {
	raw := testRawPanel(t, map[string][]float64{
		"corn": {1, 2, 3, 4, 5, 6},
		"soy":  {6, 5, 4, 3, 2, 1},
	}, []string{"corn", "soy"})

	b, err := NewBuilder(&Options{
		Lags:         []int{1, 2},
		Interactions: [][2]string{{"corn", "soy"}},
	})
	require.Nil(t, err)

	first, firstLabels, err := b.Build(raw)
	require.Nil(t, err)
	second, secondLabels, err := b.Build(raw)
	require.Nil(t, err)

	assert.Equal(t, firstLabels.Names(), secondLabels.Names())
	for _, name := range firstLabels.Names() {
		colA, _ := first.Column(name)
		colB, _ := second.Column(name)
		for i := range colA {
			if math.IsNaN(colA[i]) {
				assert.True(t, math.IsNaN(colB[i]))
				continue
			}
			assert.Equal(t, colA[i], colB[i])
		}
	}
}

func TestBuildErrors(t *testing.T) {
	testData := map[string]struct {
		cols  map[string][]float64
		order []string
		opt   *Options
		err   error
	}{
		"insufficient history": {
			cols:  map[string][]float64{"corn": {1, 2, 3}},
			order: []string{"corn"},
			opt:   &Options{Lags: []int{3}},
			err:   ErrInsufficientHistory,
		},
		"interaction lag exceeds history": {
			cols: map[string][]float64{
				"corn": {1, 2, 3, 4},
				"soy":  {1, 2, 3, 4},
			},
			order: []string{"corn", "soy"},
			opt: &Options{
				Lags:         []int{2},
				Interactions: [][2]string{{"lag_corn_02", "soy"}},
			},
			err: ErrInsufficientHistory,
		},
		"unknown interaction reference": {
			cols:  map[string][]float64{"corn": {1, 2, 3, 4}},
			order: []string{"corn"},
			opt: &Options{
				Lags:         []int{1},
				Interactions: [][2]string{{"corn", "rice"}},
			},
			err: ErrUnknownColumn,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			raw := testRawPanel(t, td.cols, td.order)
			b, err := NewBuilder(td.opt)
			require.Nil(t, err)

			_, _, err = b.Build(raw)
			assert.ErrorAs(t, err, &td.err)
		})
	}
}
