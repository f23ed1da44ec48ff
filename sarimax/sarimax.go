// Package sarimax fits seasonal autoregressive models with exogenous
// regressors and serves point forecasts with confidence intervals. The
// fitting routine is substitutable behind the Fitter interface so callers
// never depend on the estimation internals.
package sarimax

import (
	"errors"
	"fmt"
)

var (
	ErrNoTrainingData        = errors.New("no training data")
	ErrInvalidOrder          = errors.New("negative order term")
	ErrInvalidSeasonalPeriod = errors.New("seasonal period must be at least 2")
	ErrExogLenMismatch       = errors.New("exogenous rows do not match observations")
	ErrExogWidthMismatch     = errors.New("exogenous row width does not match")
	ErrTooFewObservations    = errors.New("not enough observations for the requested orders")
	ErrDegenerateDesign      = errors.New("design matrix is rank deficient")
	ErrNonFiniteCoefficients = errors.New("fit produced non-finite coefficients")
	ErrInvalidHorizon        = errors.New("forecast horizon must be positive")
	ErrInvalidConfidence     = errors.New("confidence level must be between 0 and 1")
)

// Order is the non-seasonal (p,d,q) specification: autoregressive depth,
// differencing degree, and moving average depth.
type Order struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

func (o Order) Validate() error {
	if o.P < 0 || o.D < 0 || o.Q < 0 {
		return fmt.Errorf("order %s, %w", o, ErrInvalidOrder)
	}
	return nil
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// Seasonal is the seasonal (P,D,Q,m) specification at period M.
type Seasonal struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
	M int `json:"m"`
}

func (s Seasonal) Validate() error {
	if s.P < 0 || s.D < 0 || s.Q < 0 {
		return fmt.Errorf("seasonal order %s, %w", s, ErrInvalidOrder)
	}
	if (s.P > 0 || s.D > 0 || s.Q > 0) && s.M < 2 {
		return fmt.Errorf("seasonal order %s, %w", s, ErrInvalidSeasonalPeriod)
	}
	return nil
}

func (s Seasonal) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", s.P, s.D, s.Q, s.M)
}

// Forecast holds point forecasts and confidence bounds per horizon step.
type Forecast struct {
	Point []float64 `json:"point"`
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// Model is a fitted handle exposing forecast queries. Forecast consumes one
// raw exogenous row per horizon step when the model was fit with regressors.
type Model interface {
	Forecast(h int, exog [][]float64) (*Forecast, error)
	AIC() float64
}

// Fitter fits a model specification against a training slice. Fit errors are
// recoverable at the call site: a failed origin or candidate is recorded and
// skipped, never escalated.
type Fitter interface {
	Fit(order Order, seasonal Seasonal, y []float64, exog [][]float64) (Model, error)
}
