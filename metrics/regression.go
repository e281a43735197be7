// Package metrics provides regression error metrics.
//
//   - MSE / RMSE: mean squared error and its square root
//   - MAE: mean absolute error
//   - R2Score: coefficient of determination
//
// The vector forms take gonum vectors; the slice forms (MeanSquaredError,
// MeanAbsoluteError) satisfy the LossFunc signature used as cross-validation
// scores, where lower is better.
//
// Example usage:
//
//	mse, err := metrics.MSE(yTrue, yPred)
//	r2, err := metrics.R2Score(yTrue, yPred)
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	kerrors "github.com/ezoic/kernreg/pkg/errors"
)

// LossFunc scores predictions against held-out targets. Lower is better.
type LossFunc func(yTrue, yPred []float64) (float64, error)

// MSE calculates the Mean Squared Error between true and predicted values.
//
// Errors:
//   - ValueError: if input vectors are empty
//   - DimensionError: if yTrue and yPred have different lengths
//
// Example:
//
//	mse, err := metrics.MSE(yTrue, yPred)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("MSE: %.4f\n", mse)
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	t, p, err := vectorsToSlices("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return meanSquared(t, p), nil
}

// RMSE calculates the Root Mean Squared Error, in the units of the target.
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE calculates the Mean Absolute Error between true and predicted values.
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	t, p, err := vectorsToSlices("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return meanAbsolute(t, p), nil
}

// R2Score calculates the coefficient of determination (R²).
//
// 1 is a perfect fit, 0 matches predicting the mean, negative values are
// worse than the mean. A constant yTrue has no variance and is a ValueError.
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	t, p, err := vectorsToSlices("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := stat.Mean(t, nil)
	var tss, rss float64
	for i := range t {
		tss += (t[i] - yMean) * (t[i] - yMean)
		rss += (t[i] - p[i]) * (t[i] - p[i])
	}

	if tss == 0 {
		return 0, kerrors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}

	return 1 - rss/tss, nil
}

// MeanSquaredError is the slice form of MSE and a LossFunc.
func MeanSquaredError(yTrue, yPred []float64) (float64, error) {
	if err := checkSlices("MeanSquaredError", yTrue, yPred); err != nil {
		return 0, err
	}
	return meanSquared(yTrue, yPred), nil
}

// MeanAbsoluteError is the slice form of MAE and a LossFunc.
func MeanAbsoluteError(yTrue, yPred []float64) (float64, error) {
	if err := checkSlices("MeanAbsoluteError", yTrue, yPred); err != nil {
		return 0, err
	}
	return meanAbsolute(yTrue, yPred), nil
}

func meanSquared(t, p []float64) float64 {
	d := make([]float64, len(t))
	floats.SubTo(d, t, p)
	return floats.Dot(d, d) / float64(len(d))
}

func meanAbsolute(t, p []float64) float64 {
	return floats.Distance(t, p, 1) / float64(len(t))
}

func checkSlices(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return kerrors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return kerrors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

func vectorsToSlices(op string, yTrue, yPred mat.Vector) ([]float64, []float64, error) {
	if yTrue == nil || yTrue.Len() == 0 {
		return nil, nil, kerrors.NewValueError(op, "empty vector")
	}
	if yPred == nil || yPred.Len() != yTrue.Len() {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return nil, nil, kerrors.NewDimensionError(op, yTrue.Len(), got, 0)
	}
	t := make([]float64, yTrue.Len())
	p := make([]float64, yPred.Len())
	for i := range t {
		t[i] = yTrue.AtVec(i)
		p[i] = yPred.AtVec(i)
	}
	return t, p, nil
}
