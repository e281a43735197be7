package model_selection

import (
	"fmt"

	"github.com/ezoic/kernreg/core/model"
	"github.com/ezoic/kernreg/core/parallel"
	"github.com/ezoic/kernreg/metrics"
	kerrors "github.com/ezoic/kernreg/pkg/errors"
)

// CVScore evaluates every model on every fold of splitter and returns
// scores[model][fold].
//
// For each pair an unfitted clone of the model is fitted on the training
// indices and scored against the test targets with scorer (lower is
// better). The passed models are never fitted or otherwise mutated, so they
// must implement model.Cloner. A nil scorer defaults to
// metrics.MeanSquaredError. Models are evaluated concurrently; the result
// does not depend on scheduling. A panic while scoring a model is returned
// as a PanicError. The first failure in model order is returned.
func CVScore(models []model.UnivariatePredictor, splitter Splitter, scorer metrics.LossFunc) ([][]float64, error) {
	const op = "CVScore"
	if len(models) == 0 {
		return nil, kerrors.NewValueError(op, "no models to score")
	}
	if splitter == nil {
		return nil, kerrors.NewValueError(op, "splitter is nil")
	}
	if scorer == nil {
		scorer = metrics.MeanSquaredError
	}

	folds := splitter.Split()
	if len(folds) == 0 {
		return nil, kerrors.NewValueError(op, "splitter produced no folds")
	}
	x, y := splitter.Data()

	scores := make([][]float64, len(models))
	errs := make([]error, len(models))
	parallel.Parallelize(len(models), 0, func(start, end int) {
		for i := start; i < end; i++ {
			errs[i] = kerrors.SafeExecute(op, func() (err error) {
				scores[i], err = scoreModel(models[i], folds, x, y, scorer)
				return err
			})
		}
	})

	for i, err := range errs {
		if err != nil {
			return nil, kerrors.Wrapf(err, "%s: model %d", op, i)
		}
	}
	return scores, nil
}

func scoreModel(m model.UnivariatePredictor, folds []Fold, x, y []float64, scorer metrics.LossFunc) ([]float64, error) {
	out := make([]float64, len(folds))
	for k, fold := range folds {
		if len(fold.TrainIndices) == 0 || len(fold.TestIndices) == 0 {
			return nil, kerrors.NewValueError("CVScore", fmt.Sprintf("fold %d is empty", k))
		}

		est, err := model.Clone(m)
		if err != nil {
			return nil, err
		}
		xTrain, yTrain := take(x, fold.TrainIndices), take(y, fold.TrainIndices)
		if err := est.Fit(model.ToColumn(xTrain), model.ToColumn(yTrain)); err != nil {
			return nil, kerrors.Wrapf(err, "fold %d: fit", k)
		}

		pred, err := est.Predict(model.ToColumn(take(x, fold.TestIndices)))
		if err != nil {
			return nil, kerrors.Wrapf(err, "fold %d: predict", k)
		}
		yPred, err := model.ToSlice("CVScore", pred)
		if err != nil {
			return nil, err
		}

		out[k], err = scorer(take(y, fold.TestIndices), yPred)
		if err != nil {
			return nil, kerrors.Wrapf(err, "fold %d: score", k)
		}
	}
	return out, nil
}
