package timeseries

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoObservations = errors.New("no observations")
	ErrLenMismatch    = errors.New("time index has a different length than observations")
	ErrNotMonthly     = errors.New("time index is not on a consecutive monthly grid")
)

// Series represents a monthly time series storing a slice of time points and
// observed values. Timestamps must advance by exactly one calendar month with
// no duplicates and no gaps.
type Series struct {
	T []time.Time
	Y []float64
}

// New returns a Series given a time and value slice after validating the
// monthly grid.
func New(t []time.Time, y []float64) (*Series, error) {
	if len(y) == 0 {
		return nil, ErrNoObservations
	}
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"time index has length of %d, but values has a length of %d, %w",
			len(t), len(y), ErrLenMismatch,
		)
	}
	if err := validateMonthly(t); err != nil {
		return nil, err
	}

	tSeries := make([]time.Time, len(t))
	ySeries := make([]float64, len(t))
	copy(tSeries, t)
	copy(ySeries, y)
	return &Series{
		T: tSeries,
		Y: ySeries,
	}, nil
}

func validateMonthly(t []time.Time) error {
	for i := 1; i < len(t); i++ {
		if monthIndex(t[i]) != monthIndex(t[i-1])+1 {
			return fmt.Errorf("at index %d, %w", i, ErrNotMonthly)
		}
	}
	return nil
}

// monthIndex collapses a timestamp onto a linear month count so grid checks
// ignore the day of month.
func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func (s *Series) Len() int {
	return len(s.Y)
}

func (s *Series) Copy() *Series {
	tSeries := make([]time.Time, len(s.T))
	ySeries := make([]float64, len(s.T))
	copy(tSeries, s.T)
	copy(ySeries, s.Y)
	return &Series{
		T: tSeries,
		Y: ySeries,
	}
}

// Prefix returns a copy of the first n observations.
func (s *Series) Prefix(n int) *Series {
	if n > len(s.Y) {
		n = len(s.Y)
	}
	tSeries := make([]time.Time, n)
	ySeries := make([]float64, n)
	copy(tSeries, s.T[:n])
	copy(ySeries, s.Y[:n])
	return &Series{
		T: tSeries,
		Y: ySeries,
	}
}

// Before returns a copy of all observations strictly before cutoff.
func (s *Series) Before(cutoff time.Time) *Series {
	n := 0
	for n < len(s.T) && s.T[n].Before(cutoff) {
		n++
	}
	return s.Prefix(n)
}

// Last returns the final observation of the series.
func (s *Series) Last() (time.Time, float64) {
	n := len(s.Y)
	return s.T[n-1], s.Y[n-1]
}

// FutureMonths generates h consecutive month timestamps following last. The
// day of month is clamped to 28 so stepping never rolls over short months.
func FutureMonths(last time.Time, h int) []time.Time {
	day := last.Day()
	if day > 28 {
		day = 28
	}
	t := make([]time.Time, 0, h)
	for i := 1; i <= h; i++ {
		t = append(t, time.Date(last.Year(), last.Month()+time.Month(i), day, 0, 0, 0, 0, last.Location()))
	}
	return t
}
