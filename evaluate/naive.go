package evaluate

import (
	"fmt"

	"github.com/cropforge/cropcast/sarimax"
)

// NaiveFitter repeats the last observed value at every forecast step. It
// satisfies sarimax.Fitter so a benchmark run reuses the same walk-forward
// machinery as the model under test.
type NaiveFitter struct{}

func (NaiveFitter) Fit(order sarimax.Order, seasonal sarimax.Seasonal, y []float64, exog [][]float64) (sarimax.Model, error) {
	if len(y) == 0 {
		return nil, sarimax.ErrNoTrainingData
	}
	return naiveModel{last: y[len(y)-1]}, nil
}

type naiveModel struct {
	last float64
}

func (n naiveModel) Forecast(h int, exog [][]float64) (*sarimax.Forecast, error) {
	if h < 1 {
		return nil, sarimax.ErrInvalidHorizon
	}
	fc := &sarimax.Forecast{
		Point: make([]float64, h),
		Lower: make([]float64, h),
		Upper: make([]float64, h),
	}
	for i := 0; i < h; i++ {
		fc.Point[i] = n.last
		fc.Lower[i] = n.last
		fc.Upper[i] = n.last
	}
	return fc, nil
}

func (n naiveModel) AIC() float64 {
	return 0
}

// SeasonalNaiveFitter repeats the value observed one full season earlier,
// cycling its trailing season when the horizon runs past one period.
type SeasonalNaiveFitter struct {
	Period int
}

func (s SeasonalNaiveFitter) Fit(order sarimax.Order, seasonal sarimax.Seasonal, y []float64, exog [][]float64) (sarimax.Model, error) {
	period := s.Period
	if period < 1 {
		period = 12
	}
	if len(y) < period {
		return nil, fmt.Errorf(
			"%d observations for a period of %d, %w",
			len(y), period, sarimax.ErrTooFewObservations,
		)
	}
	tail := make([]float64, period)
	copy(tail, y[len(y)-period:])
	return seasonalNaiveModel{tail: tail}, nil
}

type seasonalNaiveModel struct {
	tail []float64
}

func (s seasonalNaiveModel) Forecast(h int, exog [][]float64) (*sarimax.Forecast, error) {
	if h < 1 {
		return nil, sarimax.ErrInvalidHorizon
	}
	fc := &sarimax.Forecast{
		Point: make([]float64, h),
		Lower: make([]float64, h),
		Upper: make([]float64, h),
	}
	for i := 0; i < h; i++ {
		val := s.tail[i%len(s.tail)]
		fc.Point[i] = val
		fc.Lower[i] = val
		fc.Upper[i] = val
	}
	return fc, nil
}

func (s seasonalNaiveModel) AIC() float64 {
	return 0
}
