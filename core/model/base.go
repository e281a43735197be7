// Package model provides the core abstractions shared by kernreg estimators.
//
// This package defines:
//
//   - UnivariatePredictor: the Fit/Predict contract for models of one scalar input
//   - Cloner: models that can hand out unfitted copies for cross-validation
//   - StateManager: thread-safe fitted-state tracking
//   - Shape normalization helpers turning gonum matrices into scalar sequences
//
// Concrete models keep their own numeric behavior and delegate input
// validation and shape normalization here:
//
//	func (m *MyModel) Fit(X, y mat.Matrix) error {
//		x, yy, err := model.ValidateXY("MyModel.Fit", X, y, 2)
//		if err != nil {
//			return err
//		}
//		// training logic
//		m.State.SetFitted(len(x))
//		return nil
//	}
package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	kerrors "github.com/ezoic/kernreg/pkg/errors"
)

// Fitter is implemented by models that learn from training data.
type Fitter interface {
	// Fit trains the model. X holds n scalar inputs as an n×1 or 1×n matrix,
	// y the n aligned targets in the same layout.
	Fit(X, y mat.Matrix) error
}

// Predictor is implemented by models that predict from inputs.
type Predictor interface {
	// Predict returns an m×1 matrix with one prediction per query, in input order.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// UnivariatePredictor is the contract for single-input regression models.
type UnivariatePredictor interface {
	Fitter
	Predictor
}

// Cloner is implemented by models that can return an unfitted copy of
// themselves carrying identical hyperparameters.
type Cloner interface {
	CloneUnfitted() UnivariatePredictor
}

// Clone returns an unfitted copy of m, or a ValueError if m cannot be cloned.
func Clone(m UnivariatePredictor) (UnivariatePredictor, error) {
	c, ok := m.(Cloner)
	if !ok {
		return nil, kerrors.NewValueError("model.Clone", "model does not implement Cloner")
	}
	return c.CloneUnfitted(), nil
}

// ToSlice flattens a column (n×1) or row (1×n) matrix into a new slice.
// Any other shape is a DimensionError; an empty matrix is ErrEmptyData.
func ToSlice(op string, m mat.Matrix) ([]float64, error) {
	if m == nil {
		return nil, kerrors.NewModelError(op, "nil input", kerrors.ErrEmptyData)
	}
	if v, ok := m.(mat.Vector); ok {
		n := v.Len()
		if n == 0 {
			return nil, kerrors.NewModelError(op, "empty data", kerrors.ErrEmptyData)
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = v.AtVec(i)
		}
		return out, nil
	}

	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, kerrors.NewModelError(op, "empty data", kerrors.ErrEmptyData)
	}
	switch {
	case c == 1:
		out := make([]float64, r)
		for i := range out {
			out[i] = m.At(i, 0)
		}
		return out, nil
	case r == 1:
		out := make([]float64, c)
		for j := range out {
			out[j] = m.At(0, j)
		}
		return out, nil
	default:
		return nil, kerrors.NewDimensionError(op, 1, c, 1)
	}
}

// ValidateXY normalizes X and y into aligned slices and checks that they
// hold the same number of samples and at least minSamples of them.
func ValidateXY(op string, X, y mat.Matrix, minSamples int) ([]float64, []float64, error) {
	x, err := ToSlice(op, X)
	if err != nil {
		return nil, nil, err
	}
	yy, err := ToSlice(op, y)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateSlices(op, x, yy, minSamples); err != nil {
		return nil, nil, err
	}
	return x, yy, nil
}

// ValidateSlices checks that x and y are aligned and hold at least minSamples values.
func ValidateSlices(op string, x, y []float64, minSamples int) error {
	if len(x) == 0 || len(y) == 0 {
		return kerrors.NewModelError(op, "empty data", kerrors.ErrEmptyData)
	}
	if len(x) != len(y) {
		return kerrors.NewDimensionError(op, len(x), len(y), 0)
	}
	if len(x) < minSamples {
		return kerrors.NewModelError(op, fmt.Sprintf("need at least %d samples, got %d", minSamples, len(x)), kerrors.ErrTooFewSamples)
	}
	return nil
}

// ToColumn wraps values as an n×1 matrix. values must not be empty.
func ToColumn(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, values)
}
