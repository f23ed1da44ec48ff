package timeseries

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// GenerateMonths produces n consecutive month-start timestamps beginning at
// start.
func GenerateMonths(n int, start time.Time) []time.Time {
	t := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		t = append(t, time.Date(start.Year(), start.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC))
	}
	return t
}

type Values []float64

func (v Values) Add(src Values) Values {
	floats.Add(v, src)
	return v
}

func GenerateConstY(n int, val float64) Values {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, val)
	}
	return Values(y)
}

func GenerateTrendY(n int, base, slope float64) Values {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, base+slope*float64(i))
	}
	return Values(y)
}

// GenerateSeasonalY produces an annual sine cycle sampled at each timestamp's
// month.
func GenerateSeasonalY(t []time.Time, amp float64) Values {
	y := make([]float64, 0, len(t))
	for i := 0; i < len(t); i++ {
		rad := 2.0 * math.Pi * float64(int(t[i].Month())-1) / 12.0
		y = append(y, amp*math.Sin(rad))
	}
	return Values(y)
}

func GenerateNoiseY(n int, scale float64) Values {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, rand.NormFloat64()*scale)
	}
	return Values(y)
}
