package sarimax

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const DefaultConfidence = 0.95

// Options represents input options for the Hannan-Rissanen fitter.
type Options struct {
	// Confidence is the coverage of the forecast intervals.
	Confidence float64
}

// NewDefaultOptions returns a default set of fitter options.
func NewDefaultOptions() *Options {
	return &Options{
		Confidence: DefaultConfidence,
	}
}

// Validate runs basic validation on fitter options.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	if o.Confidence <= 0 || o.Confidence >= 1 {
		return nil, fmt.Errorf("confidence of %f, %w", o.Confidence, ErrInvalidConfidence)
	}
	return o, nil
}

// HannanRissanen estimates the seasonal exogenous regression form in two
// least squares stages: a long autoregression proxies the innovations, then
// the full specification is re-estimated with lagged residual regressors.
// Stationarity and invertibility are not enforced.
type HannanRissanen struct {
	opt *Options
}

// NewHannanRissanen initializes a fitter ready for training.
func NewHannanRissanen(opt *Options) (*HannanRissanen, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &HannanRissanen{
		opt: opt,
	}, nil
}

// Fit trains the specification against the training slice. The exogenous
// rows must pair one to one with the observations.
func (hr *HannanRissanen) Fit(order Order, seasonal Seasonal, y []float64, exog [][]float64) (Model, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := seasonal.Validate(); err != nil {
		return nil, err
	}
	n := len(y)
	if n == 0 {
		return nil, ErrNoTrainingData
	}

	k := 0
	if len(exog) > 0 {
		if len(exog) != n {
			return nil, fmt.Errorf("%d exogenous rows for %d observations, %w", len(exog), n, ErrExogLenMismatch)
		}
		k = len(exog[0])
		for i, row := range exog {
			if len(row) != k {
				return nil, fmt.Errorf("row %d has %d values, expected %d, %w", i, len(row), k, ErrExogWidthMismatch)
			}
		}
	}

	p, q := order.P, order.Q
	sp, sq := seasonal.P, seasonal.Q
	m := seasonal.M

	c := diffPoly(order.D, seasonal.D, m)
	r := len(c) - 1
	if n <= r {
		return nil, fmt.Errorf("differencing consumes %d of %d observations, %w", r, n, ErrTooFewObservations)
	}

	w := difference(y, c)
	nw := len(w)

	var wx [][]float64
	if k > 0 {
		wx = make([][]float64, nw)
		for t := r; t < n; t++ {
			row := make([]float64, k)
			for j := 0; j < k; j++ {
				var sum float64
				for i, ci := range c {
					sum += ci * exog[t-i][j]
				}
				row[j] = sum
			}
			wx[t-r] = row
		}
	}

	// innovations proxied by a long autoregression when MA terms are present
	e := make([]float64, nw)
	longAR := 0
	if q+sq > 0 {
		longAR = p + q + (sp+sq)*m + 1
		ncols := 1 + longAR + k
		if nw-longAR <= ncols {
			return nil, fmt.Errorf(
				"%d differenced observations for a depth %d autoregression, %w",
				nw, longAR, ErrTooFewObservations,
			)
		}

		rows := make([][]float64, 0, nw-longAR)
		targets := make([]float64, 0, nw-longAR)
		for t := longAR; t < nw; t++ {
			row := make([]float64, 0, ncols)
			row = append(row, 1)
			for i := 1; i <= longAR; i++ {
				row = append(row, w[t-i])
			}
			if k > 0 {
				row = append(row, wx[t]...)
			}
			rows = append(rows, row)
			targets = append(targets, w[t])
		}
		coef, err := solveOLS(rows, targets)
		if err != nil {
			return nil, err
		}
		res, _ := residuals(rows, targets, coef)
		for i, t := 0, longAR; t < nw; i, t = i+1, t+1 {
			e[t] = res[i]
		}
	}

	t0 := max(p, sp*m)
	if q > 0 {
		t0 = max(t0, longAR+q)
	}
	if sq > 0 {
		t0 = max(t0, longAR+sq*m)
	}

	ncols := 1 + p + sp + q + sq + k
	if nw-t0 <= ncols {
		return nil, fmt.Errorf(
			"%d differenced observations for %d regressors, %w",
			nw, ncols, ErrTooFewObservations,
		)
	}

	rows := make([][]float64, 0, nw-t0)
	targets := make([]float64, 0, nw-t0)
	for t := t0; t < nw; t++ {
		row := make([]float64, 0, ncols)
		row = append(row, 1)
		for i := 1; i <= p; i++ {
			row = append(row, w[t-i])
		}
		for i := 1; i <= sp; i++ {
			row = append(row, w[t-i*m])
		}
		for i := 1; i <= q; i++ {
			row = append(row, e[t-i])
		}
		for i := 1; i <= sq; i++ {
			row = append(row, e[t-i*m])
		}
		if k > 0 {
			row = append(row, wx[t]...)
		}
		rows = append(rows, row)
		targets = append(targets, w[t])
	}

	coef, err := solveOLS(rows, targets)
	if err != nil {
		return nil, err
	}
	_, ssr := residuals(rows, targets, coef)

	nObs := nw - t0
	dof := nObs - ncols
	sigma2 := ssr / float64(dof)
	aic := float64(nObs)*math.Log(ssr/float64(nObs)) + 2.0*float64(ncols)

	for _, val := range coef {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, ErrNonFiniteCoefficients
		}
	}
	if math.IsNaN(sigma2) || math.IsInf(sigma2, 0) {
		return nil, ErrNonFiniteCoefficients
	}

	fm := &fittedModel{
		order:    order,
		seasonal: seasonal,
		k:        k,
		c:        c,
		constant: coef[0],
		phi:      coef[1 : 1+p],
		sphi:     coef[1+p : 1+p+sp],
		theta:    coef[1+p+sp : 1+p+sp+q],
		stheta:   coef[1+p+sp+q : 1+p+sp+q+sq],
		beta:     coef[1+p+sp+q+sq:],
		sigma2:   sigma2,
		aic:      aic,
		w:        w,
		wx:       wx,
		z:        distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - (1-hr.opt.Confidence)/2),
	}

	fm.e = fm.innovations()

	fm.tailY = make([]float64, r)
	copy(fm.tailY, y[n-r:])
	if k > 0 {
		fm.tailX = make([][]float64, r)
		for i, row := range exog[n-r:] {
			cp := make([]float64, k)
			copy(cp, row)
			fm.tailX[i] = cp
		}
	}
	return fm, nil
}

// fittedModel is an immutable fitted handle. Forecasting never mutates it,
// so one handle may serve concurrent queries.
type fittedModel struct {
	order    Order
	seasonal Seasonal
	k        int

	c        []float64
	constant float64
	phi      []float64
	sphi     []float64
	theta    []float64
	stheta   []float64
	beta     []float64
	sigma2   float64
	aic      float64

	w     []float64
	wx    [][]float64
	e     []float64
	tailY []float64
	tailX [][]float64
	z     float64
}

// innovations runs the fitted equation forward over the training window to
// produce the residual sequence the forecast recursion continues from.
func (f *fittedModel) innovations() []float64 {
	m := f.seasonal.M
	nw := len(f.w)
	e := make([]float64, nw)
	start := max(len(f.phi), len(f.sphi)*m)
	for t := start; t < nw; t++ {
		val := f.constant
		for i, coef := range f.phi {
			val += coef * f.w[t-i-1]
		}
		for i, coef := range f.sphi {
			val += coef * f.w[t-(i+1)*m]
		}
		for i, coef := range f.theta {
			if idx := t - i - 1; idx >= 0 {
				val += coef * e[idx]
			}
		}
		for i, coef := range f.stheta {
			if idx := t - (i+1)*m; idx >= 0 {
				val += coef * e[idx]
			}
		}
		if f.k > 0 {
			for j, coef := range f.beta {
				val += coef * f.wx[t][j]
			}
		}
		e[t] = f.w[t] - val
	}
	return e
}

func (f *fittedModel) AIC() float64 {
	return f.aic
}

// Forecast recurses the fitted equation h steps forward with future shocks
// at zero, integrates back through the differencing polynomial, and scales
// interval widths by the accumulated psi weights.
func (f *fittedModel) Forecast(h int, exog [][]float64) (*Forecast, error) {
	if h < 1 {
		return nil, ErrInvalidHorizon
	}
	if f.k > 0 {
		if len(exog) != h {
			return nil, fmt.Errorf("%d exogenous rows for horizon %d, %w", len(exog), h, ErrExogLenMismatch)
		}
		for i, row := range exog {
			if len(row) != f.k {
				return nil, fmt.Errorf("row %d has %d values, expected %d, %w", i, len(row), f.k, ErrExogWidthMismatch)
			}
		}
	}

	r := len(f.c) - 1
	m := f.seasonal.M

	// difference the future exogenous rows across the training boundary
	var wxF [][]float64
	if f.k > 0 {
		combined := make([][]float64, 0, r+h)
		combined = append(combined, f.tailX...)
		combined = append(combined, exog...)
		wxF = make([][]float64, h)
		for s := 0; s < h; s++ {
			row := make([]float64, f.k)
			for j := 0; j < f.k; j++ {
				var sum float64
				for i, ci := range f.c {
					sum += ci * combined[r+s-i][j]
				}
				row[j] = sum
			}
			wxF[s] = row
		}
	}

	nw := len(f.w)
	wAll := make([]float64, nw, nw+h)
	copy(wAll, f.w)
	eAll := make([]float64, nw, nw+h)
	copy(eAll, f.e)

	for s := 0; s < h; s++ {
		t := nw + s
		val := f.constant
		for i, coef := range f.phi {
			val += coef * at(wAll, t-i-1)
		}
		for i, coef := range f.sphi {
			val += coef * at(wAll, t-(i+1)*m)
		}
		for i, coef := range f.theta {
			val += coef * at(eAll, t-i-1)
		}
		for i, coef := range f.stheta {
			val += coef * at(eAll, t-(i+1)*m)
		}
		if f.k > 0 {
			for j, coef := range f.beta {
				val += coef * wxF[s][j]
			}
		}
		wAll = append(wAll, val)
		eAll = append(eAll, 0)
	}

	// integrate back to the raw scale
	point := make([]float64, h)
	yAll := make([]float64, r, r+h)
	copy(yAll, f.tailY)
	for s := 0; s < h; s++ {
		t := r + s
		val := wAll[nw+s]
		for j := 1; j < len(f.c); j++ {
			val -= f.c[j] * yAll[t-j]
		}
		yAll = append(yAll, val)
		point[s] = val
	}

	psi := f.psiWeights(h)
	lower := make([]float64, h)
	upper := make([]float64, h)
	var acc float64
	for s := 0; s < h; s++ {
		acc += psi[s] * psi[s]
		se := math.Sqrt(f.sigma2 * acc)
		lower[s] = point[s] - f.z*se
		upper[s] = point[s] + f.z*se
	}

	return &Forecast{
		Point: point,
		Lower: lower,
		Upper: upper,
	}, nil
}

// psiWeights expands the model into its moving average representation on the
// raw scale, folding the AR, seasonal AR, and differencing polynomials
// against the MA side.
func (f *fittedModel) psiWeights(h int) []float64 {
	m := f.seasonal.M

	ar := f.c
	if len(f.phi) > 0 {
		poly := make([]float64, len(f.phi)+1)
		poly[0] = 1
		for i, coef := range f.phi {
			poly[i+1] = -coef
		}
		ar = conv(ar, poly)
	}
	if len(f.sphi) > 0 {
		poly := make([]float64, len(f.sphi)*m+1)
		poly[0] = 1
		for i, coef := range f.sphi {
			poly[(i+1)*m] = -coef
		}
		ar = conv(ar, poly)
	}

	ma := []float64{1}
	if len(f.theta) > 0 {
		poly := make([]float64, len(f.theta)+1)
		poly[0] = 1
		for i, coef := range f.theta {
			poly[i+1] = coef
		}
		ma = conv(ma, poly)
	}
	if len(f.stheta) > 0 {
		poly := make([]float64, len(f.stheta)*m+1)
		poly[0] = 1
		for i, coef := range f.stheta {
			poly[(i+1)*m] = coef
		}
		ma = conv(ma, poly)
	}

	psi := make([]float64, h)
	psi[0] = 1
	for j := 1; j < h; j++ {
		var val float64
		if j < len(ma) {
			val = ma[j]
		}
		for i := 1; i <= j && i < len(ar); i++ {
			val -= ar[i] * psi[j-i]
		}
		psi[j] = val
	}
	return psi
}

func at(arr []float64, i int) float64 {
	if i < 0 {
		return 0
	}
	return arr[i]
}
