package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PolynomialFeatures maps every x to the row [x^0, x^1, ..., x^degree].
//
// The result has len(x) rows and degree+1 columns. Column 0 is exactly 1 for
// every input, NaN and ±Inf included; other columns propagate non-finite
// values. PolynomialFeatures panics if x is empty or degree is negative.
func PolynomialFeatures(x []float64, degree int) *mat.Dense {
	if degree < 0 {
		panic("kernel: negative polynomial degree")
	}
	p := degree + 1
	data := make([]float64, len(x)*p)
	for i, v := range x {
		polynomialRow(data[i*p:(i+1)*p], v)
	}
	return mat.NewDense(len(x), p, data)
}

// polynomialRow fills dst with increasing powers of v, starting at v^0.
func polynomialRow(dst []float64, v float64) {
	for j := range dst {
		// math.Pow(v, 0) is 1 for every v.
		dst[j] = math.Pow(v, float64(j))
	}
}
