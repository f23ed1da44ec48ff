package sarimax

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// solveOLS computes least squares coefficients of y on the design rows using
// QR factorization with back substitution. Rows are observations, columns
// regressors; the caller supplies any constant column itself.
func solveOLS(rows [][]float64, y []float64) ([]float64, error) {
	m := len(rows)
	if m == 0 {
		return nil, ErrNoTrainingData
	}
	n := len(rows[0])
	if m < n {
		return nil, ErrTooFewObservations
	}

	flat := make([]float64, 0, m*n)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	x := mat.NewDense(m, n, flat)
	yT := mat.NewDense(1, m, y)

	qr := new(mat.QR)
	qr.Factorize(x)

	q := new(mat.Dense)
	r := new(mat.Dense)
	qr.QTo(q)
	qr.RTo(r)

	yq := new(mat.Dense)
	yq.Mul(yT, q)

	coef := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		rii := r.At(i, i)
		if math.Abs(rii) < 1e-12 {
			return nil, ErrDegenerateDesign
		}
		coef[i] = yq.At(0, i)
		for j := i + 1; j < n; j++ {
			coef[i] -= coef[j] * r.At(i, j)
		}
		coef[i] /= rii
	}
	return coef, nil
}

// residuals returns y minus the fitted values along with the residual sum of
// squares.
func residuals(rows [][]float64, y, coef []float64) ([]float64, float64) {
	res := make([]float64, len(y))
	var ssr float64
	for i, row := range rows {
		var fit float64
		for j, c := range coef {
			fit += c * row[j]
		}
		res[i] = y[i] - fit
		ssr += res[i] * res[i]
	}
	return res, ssr
}
