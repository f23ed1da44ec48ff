package sarimax

// conv multiplies two polynomials in the backshift operator given as
// coefficient slices indexed by power.
func conv(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i := range a {
		for j := range b {
			out[i+j] += a[i] * b[j]
		}
	}
	return out
}

// diffPoly expands (1-B)^d (1-B^m)^D into backshift coefficients. The zero
// power coefficient is always 1 and the slice length is d + D*m + 1.
func diffPoly(d, bigD, m int) []float64 {
	c := []float64{1}
	for i := 0; i < d; i++ {
		c = conv(c, []float64{1, -1})
	}
	if bigD > 0 {
		seas := make([]float64, m+1)
		seas[0] = 1
		seas[m] = -1
		for i := 0; i < bigD; i++ {
			c = conv(c, seas)
		}
	}
	return c
}

// difference applies the expanded differencing polynomial to a series,
// dropping the first len(c)-1 observations.
func difference(y []float64, c []float64) []float64 {
	r := len(c) - 1
	out := make([]float64, len(y)-r)
	for t := r; t < len(y); t++ {
		var sum float64
		for j, cj := range c {
			sum += cj * y[t-j]
		}
		out[t-r] = sum
	}
	return out
}

// applyPolyAt evaluates the differencing polynomial against series at
// position t, reading the t-j trailing values.
func applyPolyAt(c []float64, series []float64, t int) float64 {
	var sum float64
	for j, cj := range c {
		sum += cj * series[t-j]
	}
	return sum
}
