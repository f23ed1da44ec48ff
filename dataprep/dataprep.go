// Package dataprep turns raw daily price records into the monthly series
// and driver panels the modeling layers consume. Daily settles carry a
// local basis premium on top of the exchange quote; the composite of the
// two, converted to dollars per tonne, is the price being forecast.
package dataprep

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cropforge/cropcast/timeseries"
)

var (
	ErrNoDailyRecords = errors.New("no daily records")
	ErrLenMismatch    = errors.New("timestamps and values have different lengths")
	ErrNoOverlap      = errors.New("target and drivers share no months")
)

// A 60 pound bushel holds 1/36.7454 of a metric tonne, so a quote in cents
// per bushel converts to dollars per tonne by this factor after the cents
// are scaled away.
const bushelsPerTonne = 36.7454

// DailyQuote is one exchange session: the futures settle and the local
// basis premium, both in cents per bushel.
type DailyQuote struct {
	Date    time.Time `json:"date"`
	Settle  float64   `json:"settle"`
	Premium float64   `json:"premium"`
}

// DailyValue is one dated observation.
type DailyValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// CompositePrice converts a settle and premium in cents per bushel to a
// delivered price in dollars per tonne.
func CompositePrice(settle, premium float64) float64 {
	return (settle + premium) / 100 * bushelsPerTonne
}

// CompositeSeries applies the composite conversion across a day slice.
func CompositeSeries(quotes []DailyQuote) []DailyValue {
	days := make([]DailyValue, len(quotes))
	for i, q := range quotes {
		days[i] = DailyValue{
			Date:  q.Date,
			Value: CompositePrice(q.Settle, q.Premium),
		}
	}
	return days
}

// AggregateMonthly averages daily values into a monthly series spanning the
// first through last observed month. Months inside the span with no
// observations carry NaN and are returned separately so the caller can
// decide whether to warn or abort.
func AggregateMonthly(days []DailyValue) (*timeseries.Series, []time.Time, error) {
	if len(days) == 0 {
		return nil, nil, ErrNoDailyRecords
	}

	sorted := make([]DailyValue, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	monthOf := func(t time.Time) int {
		return t.Year()*12 + int(t.Month()) - 1
	}
	first := monthOf(sorted[0].Date)
	last := monthOf(sorted[len(sorted)-1].Date)

	buckets := make(map[int][]float64, last-first+1)
	for _, day := range sorted {
		m := monthOf(day.Date)
		buckets[m] = append(buckets[m], day.Value)
	}

	months := make([]time.Time, 0, last-first+1)
	values := make([]float64, 0, last-first+1)
	var gaps []time.Time
	for m := first; m <= last; m++ {
		month := time.Date(m/12, time.Month(m%12+1), 1, 0, 0, 0, 0, time.UTC)
		months = append(months, month)

		vals, exists := buckets[m]
		if !exists {
			values = append(values, math.NaN())
			gaps = append(gaps, month)
			continue
		}
		values = append(values, stat.Mean(vals, nil))
	}

	series, err := timeseries.New(months, values)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregated months, %w", err)
	}
	return series, gaps, nil
}

// Intersect clips a target series and a driver panel to the months both
// cover. Prices and drivers usually come from different files with
// different spans, and the fit only uses months present in both.
func Intersect(target *timeseries.Series, drivers *timeseries.Panel) (*timeseries.Series, *timeseries.Panel, error) {
	if target == nil || target.Len() == 0 || drivers == nil || drivers.Len() == 0 {
		return nil, nil, timeseries.ErrNoObservations
	}

	monthOf := func(ts time.Time) int {
		return ts.Year()*12 + int(ts.Month()) - 1
	}
	start := monthOf(target.T[0])
	if m := monthOf(drivers.T[0]); m > start {
		start = m
	}
	end := monthOf(target.T[target.Len()-1])
	if m := monthOf(drivers.T[drivers.Len()-1]); m < end {
		end = m
	}
	if start > end {
		return nil, nil, ErrNoOverlap
	}

	ti := start - monthOf(target.T[0])
	tj := ti + end - start + 1
	clippedTarget, err := timeseries.New(target.T[ti:tj], target.Y[ti:tj])
	if err != nil {
		return nil, nil, fmt.Errorf("clipped target, %w", err)
	}

	di := start - monthOf(drivers.T[0])
	dj := di + end - start + 1
	clippedDrivers, err := timeseries.NewPanel(drivers.T[di:dj])
	if err != nil {
		return nil, nil, fmt.Errorf("clipped drivers, %w", err)
	}
	for _, name := range drivers.Names() {
		col, _ := drivers.Column(name)
		if err := clippedDrivers.AddColumn(name, col[di:dj]); err != nil {
			return nil, nil, fmt.Errorf("clipped drivers, %w", err)
		}
	}
	return clippedTarget, clippedDrivers, nil
}

// Window is a labeled span of months, both ends inclusive, used for
// reporting averages over a projection.
type Window struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowMean averages the values whose timestamps fall inside the window
// and reports how many months contributed. No contributing months yields
// NaN so a silent zero never reads like a price.
func WindowMean(t []time.Time, vals []float64, w Window) (float64, int, error) {
	if len(t) != len(vals) {
		return 0, 0, fmt.Errorf(
			"%d timestamps with %d values, %w",
			len(t), len(vals), ErrLenMismatch,
		)
	}

	monthOf := func(ts time.Time) int {
		return ts.Year()*12 + int(ts.Month()) - 1
	}
	start := monthOf(w.Start)
	end := monthOf(w.End)

	var picked []float64
	for i, ts := range t {
		m := monthOf(ts)
		if m >= start && m <= end {
			picked = append(picked, vals[i])
		}
	}
	if len(picked) == 0 {
		return math.NaN(), 0, nil
	}
	return stat.Mean(picked, nil), len(picked), nil
}
