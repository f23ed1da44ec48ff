package rank

import (
	"math"
	"testing"
	"time"

	"github.com/cropforge/cropcast/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorOptions(t *testing.T) {
	opt, err := (*SelectorOptions)(nil).Validate()
	require.Nil(t, err)
	assert.Equal(t, DefaultTopK, opt.TopK)

	_, err = (&SelectorOptions{TopK: 0}).Validate()
	expected := ErrInvalidTopK
	assert.ErrorAs(t, err, &expected)
}

func TestSelectorTopK(t *testing.T) {
	nan := math.NaN()
	months := timeseries.GenerateMonths(6, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	p, err := timeseries.NewPanel(months)
	require.Nil(t, err)
	require.Nil(t, p.AddColumn("strong", []float64{nan, 2, 3, 4, 5, 6}))
	require.Nil(t, p.AddColumn("medium", []float64{nan, 4, 5, 7, 9, 14}))
	require.Nil(t, p.AddColumn("flat", []float64{nan, 1, 1, 1, 1, 1}))

	target, err := timeseries.New(months, []float64{0, 2, 3, 4, 5, 6})
	require.Nil(t, err)

	s, err := NewSelector(nil, &SelectorOptions{TopK: 2})
	require.Nil(t, err)

	sel, err := s.TopK(p, target)
	require.Nil(t, err)

	// NaN head row dropped before ranking
	require.Equal(t, 5, sel.Panel.Len())
	assert.Equal(t, 5, sel.Target.Len())
	assert.Equal(t, 2.0, sel.Target.Y[0])

	require.Len(t, sel.Scores, 2)
	assert.Equal(t, "strong", sel.Scores[0].Name)
	assert.Equal(t, []string{"strong", "medium"}, sel.Names())
	assert.Equal(t, sel.Names(), sel.Panel.Names())
}

func TestSelectorTopKWiderThanPanel(t *testing.T) {
	months := timeseries.GenerateMonths(4, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	p, err := timeseries.NewPanel(months)
	require.Nil(t, err)
	require.Nil(t, p.AddColumn("only", []float64{1, 2, 3, 4}))

	target, err := timeseries.New(months, []float64{1, 2, 3, 4})
	require.Nil(t, err)

	s, err := NewSelector(CorrelationRanker{}, &SelectorOptions{TopK: 10})
	require.Nil(t, err)

	sel, err := s.TopK(p, target)
	require.Nil(t, err)
	assert.Equal(t, []string{"only"}, sel.Names())
}

func TestSelectorEmptyFeatureSet(t *testing.T) {
	nan := math.NaN()
	months := timeseries.GenerateMonths(3, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	target, err := timeseries.New(months, []float64{1, 2, 3})
	require.Nil(t, err)

	s, err := NewSelector(nil, nil)
	require.Nil(t, err)

	testData := map[string]struct {
		cols map[string][]float64
	}{
		"no columns": {},
		"all rows nan": {
			cols: map[string][]float64{"lagged": {nan, nan, nan}},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			p, err := timeseries.NewPanel(months)
			require.Nil(t, err)
			for colName, vals := range td.cols {
				require.Nil(t, p.AddColumn(colName, vals))
			}

			_, err = s.TopK(p, target)
			expected := ErrEmptyFeatureSet
			assert.ErrorAs(t, err, &expected)
		})
	}
}
