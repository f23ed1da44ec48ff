package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPanel(t *testing.T, n int) *Panel {
	tSeries := GenerateMonths(n, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	p, err := NewPanel(tSeries)
	require.Nil(t, err)
	return p
}

func TestPanelAddColumn(t *testing.T) {
	p := testPanel(t, 3)
	require.Nil(t, p.AddColumn("corn", []float64{1, 2, 3}))

	testData := map[string]struct {
		name string
		vals []float64
		err  error
	}{
		"duplicate column": {
			name: "corn",
			vals: []float64{4, 5, 6},
			err:  ErrDuplicateColumn,
		},
		"length mismatch": {
			name: "soy",
			vals: []float64{4, 5},
			err:  ErrLenMismatch,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			err := p.AddColumn(td.name, td.vals)
			assert.ErrorAs(t, err, &td.err)
		})
	}

	require.Nil(t, p.AddColumn("soy", []float64{4, 5, 6}))
	assert.Equal(t, []string{"corn", "soy"}, p.Names())
	assert.Equal(t, 2, p.NumColumns())
}

func TestPanelRow(t *testing.T) {
	p := testPanel(t, 3)
	require.Nil(t, p.AddColumn("corn", []float64{1, 2, 3}))
	require.Nil(t, p.AddColumn("soy", []float64{4, 5, 6}))

	assert.Equal(t, []float64{2, 5}, p.Row(1))
	assert.Equal(t, [][]float64{{1, 4}, {2, 5}, {3, 6}}, p.Rows())
}

func TestPanelSelect(t *testing.T) {
	p := testPanel(t, 3)
	require.Nil(t, p.AddColumn("corn", []float64{1, 2, 3}))
	require.Nil(t, p.AddColumn("soy", []float64{4, 5, 6}))
	require.Nil(t, p.AddColumn("wheat", []float64{7, 8, 9}))

	testData := map[string]struct {
		names    []string
		expected []string
		err      error
	}{
		"no columns": {
			err: ErrNoColumns,
		},
		"unknown column": {
			names: []string{"corn", "rice"},
			err:   ErrUnknownColumn,
		},
		"requested order preserved": {
			names:    []string{"wheat", "corn"},
			expected: []string{"wheat", "corn"},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			sel, err := p.Select(td.names)
			if td.err != nil {
				assert.ErrorAs(t, err, &td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, sel.Names())
			assert.Equal(t, []float64{7, 1}, sel.Row(0))
		})
	}
}

func TestPanelBefore(t *testing.T) {
	p := testPanel(t, 4)
	require.Nil(t, p.AddColumn("corn", []float64{1, 2, 3, 4}))

	before := p.Before(time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, before.Len())
	col, exists := before.Column("corn")
	require.True(t, exists)
	assert.Equal(t, []float64{1, 2}, col)

	col[0] = 99
	orig, _ := p.Column("corn")
	assert.Equal(t, 1.0, orig[0])
}

func TestPanelAlign(t *testing.T) {
	nan := math.NaN()
	tSeries := GenerateMonths(5, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	target, err := New(tSeries, []float64{10, 11, 12, 13, 14})
	require.Nil(t, err)

	testData := map[string]struct {
		cols       map[string][]float64
		order      []string
		expectedN  int
		expectedY  []float64
		err        error
	}{
		"no columns": {
			err: ErrNoColumns,
		},
		"nan head dropped": {
			cols: map[string][]float64{
				"corn":        {1, 2, 3, 4, 5},
				"lag_corn_02": {nan, nan, 1, 2, 3},
			},
			order:     []string{"corn", "lag_corn_02"},
			expectedN: 3,
			expectedY: []float64{12, 13, 14},
		},
		"all rows nan": {
			cols: map[string][]float64{
				"lag_corn_05": {nan, nan, nan, nan, nan},
			},
			order: []string{"lag_corn_05"},
			err:   ErrNoObservations,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			p, err := NewPanel(tSeries)
			require.Nil(t, err)
			for _, colName := range td.order {
				require.Nil(t, p.AddColumn(colName, td.cols[colName]))
			}

			aligned, trimmed, err := p.Align(target)
			if td.err != nil {
				assert.ErrorAs(t, err, &td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expectedN, aligned.Len())
			assert.Equal(t, td.expectedY, trimmed.Y)
			assert.Equal(t, aligned.T, trimmed.T)
		})
	}
}

func TestPanelAlignIndexMismatch(t *testing.T) {
	p := testPanel(t, 3)
	require.Nil(t, p.AddColumn("corn", []float64{1, 2, 3}))

	otherT := GenerateMonths(3, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	target, err := New(otherT, []float64{1, 2, 3})
	require.Nil(t, err)

	_, _, err = p.Align(target)
	expected := ErrIndexMismatch
	assert.ErrorAs(t, err, &expected)
}
