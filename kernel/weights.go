package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"

	kerrors "github.com/ezoic/kernreg/pkg/errors"
)

// SqEuclidean returns the len(a)×len(b) matrix of pairwise squared distances
// (a[i] - b[j])². It panics if a or b is empty.
func SqEuclidean(a, b []float64) *mat.Dense {
	d := mat.NewDense(len(a), len(b), nil)
	for i, ai := range a {
		row := d.RawRowView(i)
		for j, bj := range b {
			diff := ai - bj
			row[j] = diff * diff
		}
	}
	return d
}

// GaussianWeights returns the m×n kernel weight matrix between m query points
// and n training points:
//
//	W[i,j] = exp(-(queries[i] - train[j])² / (2h²))
//
// A query coinciding with a training point gets weight exactly 1, and weights
// never increase with distance. h must be positive and finite.
func GaussianWeights(queries, train []float64, h float64) (*mat.Dense, error) {
	if err := validateBandwidth(h); err != nil {
		return nil, err
	}
	if len(queries) == 0 || len(train) == 0 {
		return nil, kerrors.NewValueError("kernel.GaussianWeights", "queries and training points must not be empty")
	}

	w := SqEuclidean(queries, train)
	denom := 2 * h * h
	if denom == 0 {
		// h² underflowed: all weight sits on exact matches.
		w.Apply(func(_, _ int, d float64) float64 {
			if d == 0 {
				return 1
			}
			return 0
		}, w)
		return w, nil
	}
	w.Apply(func(_, _ int, d float64) float64 {
		return math.Exp(-d / denom)
	}, w)
	return w, nil
}

func validateBandwidth(h float64) error {
	if !(h > 0) || math.IsInf(h, 0) {
		return kerrors.NewValidationError("bandwidth", "must be positive and finite", h)
	}
	return nil
}
