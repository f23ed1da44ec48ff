package dataprep

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropforge/cropcast/timeseries"
)

func TestCompositePrice(t *testing.T) {
	assert.InDelta(t, 367.454, CompositePrice(1000, 0), 1e-9)
	assert.InDelta(t, 385.8267, CompositePrice(1000, 50), 1e-4)

	// a negative basis discounts the settle
	assert.InDelta(t, 349.0813, CompositePrice(1000, -50), 1e-4)
}

func TestCompositeSeries(t *testing.T) {
	quotes := []DailyQuote{
		{Date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), Settle: 1000, Premium: 50},
		{Date: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), Settle: 990, Premium: 60},
	}

	days := CompositeSeries(quotes)
	require.Len(t, days, 2)
	assert.Equal(t, quotes[0].Date, days[0].Date)
	assert.InDelta(t, CompositePrice(1000, 50), days[0].Value, 1e-12)
	assert.InDelta(t, CompositePrice(990, 60), days[1].Value, 1e-12)
}

func TestAggregateMonthly(t *testing.T) {
	day := func(y int, m time.Month, d int, v float64) DailyValue {
		return DailyValue{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Value: v}
	}

	t.Run("means with a gap month", func(t *testing.T) {
		// deliberately unsorted, with nothing recorded in February
		days := []DailyValue{
			day(2025, 3, 14, 30),
			day(2025, 1, 6, 10),
			day(2025, 1, 21, 20),
		}

		series, gaps, err := AggregateMonthly(days)
		require.NoError(t, err)

		require.Len(t, series.Y, 3)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), series.T[0])
		assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), series.T[2])
		assert.InDelta(t, 15, series.Y[0], 1e-12)
		assert.True(t, math.IsNaN(series.Y[1]))
		assert.InDelta(t, 30, series.Y[2], 1e-12)

		require.Len(t, gaps, 1)
		assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), gaps[0])
	})

	t.Run("single month", func(t *testing.T) {
		series, gaps, err := AggregateMonthly([]DailyValue{day(2025, 6, 2, 7), day(2025, 6, 3, 9)})
		require.NoError(t, err)
		require.Len(t, series.Y, 1)
		assert.InDelta(t, 8, series.Y[0], 1e-12)
		assert.Empty(t, gaps)
	})

	t.Run("year boundary", func(t *testing.T) {
		series, gaps, err := AggregateMonthly([]DailyValue{day(2024, 12, 30, 4), day(2025, 1, 2, 6)})
		require.NoError(t, err)
		require.Len(t, series.Y, 2)
		assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), series.T[0])
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), series.T[1])
		assert.Empty(t, gaps)
	})

	t.Run("no records", func(t *testing.T) {
		_, _, err := AggregateMonthly(nil)
		target := ErrNoDailyRecords
		assert.ErrorAs(t, err, &target)
	})
}

func TestIntersect(t *testing.T) {
	monthly := func(y int, m time.Month, vals []float64) []time.Time {
		months := make([]time.Time, len(vals))
		for i := range vals {
			months[i] = time.Date(y, m+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		}
		return months
	}

	targetVals := []float64{10, 11, 12, 13, 14, 15}
	target, err := timeseries.New(monthly(2025, 1, targetVals), targetVals)
	require.NoError(t, err)

	driverVals := []float64{1, 2, 3, 4, 5, 6}
	drivers, err := timeseries.NewPanel(monthly(2025, 4, driverVals))
	require.NoError(t, err)
	require.NoError(t, drivers.AddColumn("corn_settle", driverVals))

	t.Run("partial overlap", func(t *testing.T) {
		clippedTarget, clippedDrivers, err := Intersect(target, drivers)
		require.NoError(t, err)

		// target runs Jan-Jun, drivers Apr-Sep, so Apr-Jun survives
		require.Equal(t, 3, clippedTarget.Len())
		require.Equal(t, 3, clippedDrivers.Len())
		assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), clippedTarget.T[0])
		assert.Equal(t, clippedTarget.T, clippedDrivers.T)
		assert.Equal(t, []float64{13, 14, 15}, clippedTarget.Y)

		col, exists := clippedDrivers.Column("corn_settle")
		require.True(t, exists)
		assert.Equal(t, []float64{1, 2, 3}, col)
	})

	t.Run("clipping copies", func(t *testing.T) {
		clippedTarget, _, err := Intersect(target, drivers)
		require.NoError(t, err)

		clippedTarget.Y[0] = -1
		assert.InDelta(t, 13, target.Y[3], 1e-12)
	})

	t.Run("no overlap", func(t *testing.T) {
		lateVals := []float64{7, 8}
		late, err := timeseries.NewPanel(monthly(2026, 1, lateVals))
		require.NoError(t, err)
		require.NoError(t, late.AddColumn("corn_settle", lateVals))

		_, _, err = Intersect(target, late)
		expected := ErrNoOverlap
		assert.ErrorAs(t, err, &expected)
	})

	t.Run("nil inputs", func(t *testing.T) {
		_, _, err := Intersect(nil, drivers)
		expected := timeseries.ErrNoObservations
		assert.ErrorAs(t, err, &expected)

		_, _, err = Intersect(target, nil)
		assert.ErrorAs(t, err, &expected)
	})
}

func TestWindowMean(t *testing.T) {
	months := make([]time.Time, 6)
	vals := make([]float64, 6)
	for i := range months {
		months[i] = time.Date(2025, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC)
		vals[i] = float64(i + 1)
	}

	t.Run("interior window", func(t *testing.T) {
		mean, n, err := WindowMean(months, vals, Window{
			Name:  "spring",
			Start: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.InDelta(t, 3, mean, 1e-12)
	})

	t.Run("window past the data", func(t *testing.T) {
		mean, n, err := WindowMean(months, vals, Window{
			Name:  "next year",
			Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.True(t, math.IsNaN(mean))
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, _, err := WindowMean(months, vals[:3], Window{Name: "bad"})
		target := ErrLenMismatch
		assert.ErrorAs(t, err, &target)
	})
}
