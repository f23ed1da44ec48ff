package rank

import (
	"errors"
	"math"

	"github.com/cropforge/cropcast/timeseries"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultLassoLambda     = 0.1
	DefaultLassoIterations = 1000
	DefaultLassoTolerance  = 1e-4
)

var (
	ErrNegativeLambda     = errors.New("negative lambda")
	ErrNegativeIterations = errors.New("negative iterations")
	ErrNegativeTolerance  = errors.New("negative tolerance")
)

// LassoOptions represents input options to run the lasso importance scan.
type LassoOptions struct {
	// Lambda is the L1 multiplier controlling how aggressively small
	// contributors are zeroed out.
	Lambda float64

	// Iterations is the maximum number of passes through all coefficients.
	Iterations int

	// Tolerance is the smallest coefficient change per pass before stopping.
	Tolerance float64
}

// NewDefaultLassoOptions returns a default set of lasso ranking options.
func NewDefaultLassoOptions() *LassoOptions {
	return &LassoOptions{
		Lambda:     DefaultLassoLambda,
		Iterations: DefaultLassoIterations,
		Tolerance:  DefaultLassoTolerance,
	}
}

// Validate runs basic validation on lasso options.
func (o *LassoOptions) Validate() (*LassoOptions, error) {
	if o == nil {
		o = NewDefaultLassoOptions()
	}
	if o.Lambda < 0 {
		return nil, ErrNegativeLambda
	}
	if o.Iterations < 0 {
		return nil, ErrNegativeIterations
	}
	if o.Tolerance < 0 {
		return nil, ErrNegativeTolerance
	}
	return o, nil
}

// LassoRanker scores features by coefficient magnitude in an L1 regularized
// regression of the target on standardized columns. Coordinate descent with
// soft thresholding; columns zeroed out by the penalty score zero.
type LassoRanker struct {
	opt *LassoOptions
}

// NewLassoRanker initializes a lasso ranker ready for scoring.
func NewLassoRanker(opt *LassoOptions) (*LassoRanker, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &LassoRanker{
		opt: opt,
	}, nil
}

func (l *LassoRanker) Rank(panel *timeseries.Panel, target *timeseries.Series) ([]Score, error) {
	names := panel.Names()
	if len(names) == 0 {
		return nil, ErrEmptyFeatureSet
	}
	if panel.Len() != target.Len() {
		return nil, timeseries.ErrIndexMismatch
	}

	m := panel.Len()
	n := len(names)

	xcols := make([][]float64, n)
	xdot := make([]float64, n)
	for j, name := range names {
		src, _ := panel.Column(name)
		col := make([]float64, m)
		mean, sd := stat.MeanStdDev(src, nil)
		if sd > 0 {
			for i, val := range src {
				col[i] = (val - mean) / sd
			}
		}
		xcols[j] = col
		xdot[j] = floats.Dot(col, col)
	}

	yMean := stat.Mean(target.Y, nil)
	residual := make([]float64, m)
	for i, val := range target.Y {
		residual[i] = val - yMean
	}

	beta := make([]float64, n)
	for i := 0; i < l.opt.Iterations; i++ {
		maxCoef := 0.0
		maxUpdate := 0.0

		for j := 0; j < n; j++ {
			if xdot[j] == 0 {
				continue
			}
			betaCurr := beta[j]

			num := floats.Dot(xcols[j], residual)
			betaNext := num/xdot[j] + betaCurr
			betaNext = softThreshold(betaNext, l.opt.Lambda/xdot[j])

			delta := betaNext - betaCurr
			if delta != 0 {
				floats.AddScaled(residual, -delta, xcols[j])
			}
			beta[j] = betaNext

			maxCoef = math.Max(maxCoef, math.Abs(betaNext))
			maxUpdate = math.Max(maxUpdate, math.Abs(delta))
		}

		if maxUpdate < l.opt.Tolerance*maxCoef {
			break
		}
	}

	scores := make([]Score, 0, n)
	for j, name := range names {
		scores = append(scores, Score{
			Name:  name,
			Score: math.Abs(beta[j]),
		})
	}
	sortScores(scores)
	return scores, nil
}

// softThreshold shrinks x toward zero by gamma, clamping to zero when the
// magnitude falls below it.
func softThreshold(x, gamma float64) float64 {
	res := math.Max(0, math.Abs(x)-gamma)
	if math.Signbit(x) {
		return -res
	}
	return res
}
