// Package kernel implements univariate local polynomial kernel regression.
//
// A KernelRegression predicts y at a query x0 by fitting a polynomial of a
// fixed degree to the training data, weighting every training pair with a
// Gaussian kernel of bandwidth h centred on x0:
//
//	w_j = exp(-(x0 - x_j)² / (2h²))
//	c   = (XᵀWX + tol·I)⁻¹ XᵀWy
//	ŷ   = [1, x0, ..., x0^d]·c
//
// Each query gets its own weighted solve. When the regularized system is
// singular, the coefficients come from the Moore–Penrose pseudo-inverse and a
// SingularMatrixWarning is raised through pkg/errors.Warn.
//
// When no bandwidth is given, Fit selects one by cross-validation over a grid
// of 100 candidates evenly spaced in [1, 100]:
//
//	kr := kernel.NewKernelRegression(kernel.WithDegree(1))
//	if err := kr.FitSlices(x, y); err != nil {
//		log.Fatal(err)
//	}
//	preds, err := kr.PredictSlice([]float64{2.5, 3.5})
package kernel

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/kernreg/core/model"
	"github.com/ezoic/kernreg/core/parallel"
	"github.com/ezoic/kernreg/metrics"
	kerrors "github.com/ezoic/kernreg/pkg/errors"
	"github.com/ezoic/kernreg/pkg/log"
)

// minFitSamples is the smallest training set Fit accepts.
const minFitSamples = 2

// Prediction batches above this size run on all CPUs when NJobs is 0.
const parallelThreshold = 1000

// KernelRegression is a Gaussian-kernel local polynomial regressor.
//
// Predict is safe for concurrent use once Fit has returned. Fit must not run
// concurrently with any other method.
type KernelRegression struct {
	State  *model.StateManager
	config Config

	x, y      []float64
	bandwidth float64
	selection *Selection

	logger log.Logger
}

// NewKernelRegression creates an unfitted model. Without WithBandwidth the
// bandwidth is selected during Fit. Options are validated by Fit.
//
// Example:
//
//	kr := kernel.NewKernelRegression(
//		kernel.WithBandwidth(10),
//		kernel.WithDegree(1),
//	)
func NewKernelRegression(opts ...Option) *KernelRegression {
	kr := &KernelRegression{
		State:  model.NewStateManager(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(kr)
	}

	if kr.logger == nil {
		kr.logger = log.GetLoggerWithName("kernel").With(
			log.ModelNameKey, "KernelRegression",
			log.ComponentKey, "kernel",
		)
	}

	return kr
}

// Fit binds the training data and, unless a bandwidth was fixed, selects one
// by cross-validation.
//
// X and y hold n scalars each, as n×1 or 1×n matrices or vectors, with
// n >= 2. Calling Fit again re-runs the whole pipeline on the new data; if
// it fails, the previous fit is kept.
//
// Errors:
//   - ValidationError: invalid hyperparameters
//   - ErrEmptyData, DimensionError, ErrTooFewSamples: malformed training data
//   - errors from the splitter or cross-validation harness, wrapped
func (kr *KernelRegression) Fit(X, y mat.Matrix) (err error) {
	defer kerrors.Recover(&err, "KernelRegression.Fit")

	x, yy, err := model.ValidateXY("KernelRegression.Fit", X, y, minFitSamples)
	if err != nil {
		return err
	}
	return kr.fit(x, yy)
}

// FitSlices is Fit for plain slices. The slices are copied.
func (kr *KernelRegression) FitSlices(x, y []float64) (err error) {
	defer kerrors.Recover(&err, "KernelRegression.FitSlices")

	if err := model.ValidateSlices("KernelRegression.FitSlices", x, y, minFitSamples); err != nil {
		return err
	}
	return kr.fit(slices.Clone(x), slices.Clone(y))
}

// fit takes ownership of x and y.
func (kr *KernelRegression) fit(x, y []float64) error {
	if err := kr.config.Validate(); err != nil {
		return err
	}

	startTime := time.Now()
	kr.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, len(x),
		log.DegreeKey, kr.config.Degree,
		log.ToleranceKey, kr.config.Tolerance,
	)

	h, source := kr.config.Bandwidth, log.BandwidthFixed
	var selection *Selection
	if !kr.config.FixedBandwidth {
		sel, err := SelectBandwidth(x, y, kr.candidate, kr.config.Selector)
		if err != nil {
			kr.logger.Error("Bandwidth selection failed", err,
				log.OperationKey, log.OperationSelectBandwidth,
			)
			return kerrors.Wrap(err, "KernelRegression.Fit")
		}
		h, source, selection = sel.Bandwidth, log.BandwidthSelected, &sel

		kr.logger.Info("Bandwidth selected",
			log.OperationKey, log.OperationSelectBandwidth,
			log.BandwidthKey, h,
			log.ScoreKey, sel.Score,
			log.CandidatesKey, len(sel.Grid),
			log.SplitsKey, sel.NSplits,
		)
	}

	kr.x, kr.y = x, y
	kr.bandwidth, kr.selection = h, selection
	kr.State.SetFitted(len(x))

	kr.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		log.SamplesKey, len(x),
		log.BandwidthKey, h,
		log.BandwidthSourceKey, source,
	)
	return nil
}

// candidate returns an unfitted copy bound to bandwidth h. Only the
// bandwidth differs from the receiver's configuration. Candidates are fitted
// once per fold and per grid point, so they do not log.
func (kr *KernelRegression) candidate(h float64) model.UnivariatePredictor {
	cfg := kr.config
	cfg.Bandwidth, cfg.FixedBandwidth = h, true
	return &KernelRegression{
		State:  model.NewStateManager(),
		config: cfg,
		logger: log.NewNopLogger(),
	}
}

// Predict returns an m×1 matrix holding one prediction per query, in order.
//
// Errors:
//   - NotFittedError: Fit has not succeeded yet
//   - ErrEmptyData, DimensionError: malformed queries
func (kr *KernelRegression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer kerrors.Recover(&err, "KernelRegression.Predict")

	if err := kr.State.RequireFitted("KernelRegression", "Predict"); err != nil {
		return nil, err
	}
	xs, err := model.ToSlice("KernelRegression.Predict", X)
	if err != nil {
		return nil, err
	}
	preds, err := kr.predict(xs)
	if err != nil {
		return nil, err
	}
	return model.ToColumn(preds), nil
}

// PredictSlice is Predict for plain slices.
func (kr *KernelRegression) PredictSlice(xs []float64) (_ []float64, err error) {
	defer kerrors.Recover(&err, "KernelRegression.PredictSlice")

	if err := kr.State.RequireFitted("KernelRegression", "PredictSlice"); err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return nil, kerrors.NewModelError("KernelRegression.PredictSlice", "empty query", kerrors.ErrEmptyData)
	}
	return kr.predict(xs)
}

func (kr *KernelRegression) predict(xs []float64) ([]float64, error) {
	startTime := time.Now()
	kr.logger.Debug("Prediction started",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.QueriesKey, len(xs),
	)

	W, err := GaussianWeights(xs, kr.x, kr.bandwidth)
	if err != nil {
		return nil, err
	}
	X := PolynomialFeatures(kr.x, kr.config.Degree)
	X0 := PolynomialFeatures(xs, kr.config.Degree)
	y := mat.NewVecDense(len(kr.y), kr.y)

	preds := make([]float64, len(xs))
	errs := make([]error, len(xs))
	fellBack := make([]bool, len(xs))
	kr.runQueries(len(xs), func(start, end int) {
		for i := start; i < end; i++ {
			yhat, warning, err := solveLocal(X, y, X0.RawRowView(i), W.RawRowView(i), kr.config.Tolerance)
			if err != nil {
				errs[i] = err
				continue
			}
			if warning != nil {
				kerrors.Warn(kerrors.Wrapf(warning, "KernelRegression.Predict: query %d", i))
				fellBack[i] = true
			}
			preds[i] = yhat
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	fallbacks := 0
	for _, f := range fellBack {
		if f {
			fallbacks++
		}
	}
	kr.logger.Debug("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		log.PredsKey, len(preds),
		log.FallbacksKey, fallbacks,
	)
	return preds, nil
}

func (kr *KernelRegression) runQueries(n int, fn func(start, end int)) {
	switch jobs := kr.config.NJobs; jobs {
	case 0:
		parallel.ParallelizeWithThreshold(n, parallelThreshold, 0, fn)
	case 1:
		fn(0, n)
	default:
		parallel.Parallelize(n, jobs, fn)
	}
}

// Score returns the R² of the predictions for X against y.
func (kr *KernelRegression) Score(X, y mat.Matrix) (_ float64, err error) {
	defer kerrors.Recover(&err, "KernelRegression.Score")

	if err := kr.State.RequireFitted("KernelRegression", "Score"); err != nil {
		return 0, err
	}
	xs, ys, err := model.ValidateXY("KernelRegression.Score", X, y, 1)
	if err != nil {
		return 0, err
	}
	preds, err := kr.predict(xs)
	if err != nil {
		return 0, err
	}

	r2, err := metrics.R2Score(mat.NewVecDense(len(ys), ys), mat.NewVecDense(len(preds), preds))
	if err != nil {
		return 0, err
	}
	kr.logger.Info("Score computed",
		log.OperationKey, log.OperationScore,
		log.SamplesKey, len(xs),
		log.R2ScoreKey, r2,
	)
	return r2, nil
}

// Bandwidth returns the effective bandwidth of a fitted model.
func (kr *KernelRegression) Bandwidth() (float64, error) {
	if err := kr.State.RequireFitted("KernelRegression", "Bandwidth"); err != nil {
		return 0, err
	}
	return kr.bandwidth, nil
}

// Selection returns the outcome of bandwidth selection, or nil when the
// bandwidth was fixed or the model is not fitted.
func (kr *KernelRegression) Selection() *Selection {
	if !kr.State.IsFitted() {
		return nil
	}
	return kr.selection
}

// Config returns a copy of the model configuration.
func (kr *KernelRegression) Config() Config {
	return kr.config
}

// GetParams returns the hyperparameters. "bandwidth" is nil when it is
// selected automatically.
func (kr *KernelRegression) GetParams() map[string]interface{} {
	var bw interface{}
	if kr.config.FixedBandwidth {
		bw = kr.config.Bandwidth
	}
	return map[string]interface{}{
		"bandwidth": bw,
		"degree":    kr.config.Degree,
		"tol":       kr.config.Tolerance,
		"n_jobs":    kr.config.NJobs,
	}
}

// SetParams updates hyperparameters by name and resets the model to the
// unfitted state. A nil "bandwidth" switches to automatic selection. The
// model is left unchanged if any parameter is unknown, mistyped or invalid.
func (kr *KernelRegression) SetParams(params map[string]interface{}) error {
	cfg := kr.config
	for key, value := range params {
		switch key {
		case "bandwidth":
			if value == nil {
				cfg.Bandwidth, cfg.FixedBandwidth = 0, false
				continue
			}
			h, ok := value.(float64)
			if !ok {
				return kerrors.NewValidationError(key, "must be float64 or nil", value)
			}
			cfg.Bandwidth, cfg.FixedBandwidth = h, true
		case "degree":
			d, ok := value.(int)
			if !ok {
				return kerrors.NewValidationError(key, "must be int", value)
			}
			cfg.Degree = d
		case "tol":
			tol, ok := value.(float64)
			if !ok {
				return kerrors.NewValidationError(key, "must be float64", value)
			}
			cfg.Tolerance = tol
		case "n_jobs":
			n, ok := value.(int)
			if !ok {
				return kerrors.NewValidationError(key, "must be int", value)
			}
			cfg.NJobs = n
		default:
			return kerrors.NewValueError("KernelRegression.SetParams", fmt.Sprintf("unknown parameter %q", key))
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	kr.config = cfg
	kr.x, kr.y, kr.selection = nil, nil, nil
	kr.bandwidth = 0
	kr.State.Reset()
	return nil
}

// CloneUnfitted returns an unfitted model with the same configuration and logger.
func (kr *KernelRegression) CloneUnfitted() model.UnivariatePredictor {
	return &KernelRegression{
		State:  model.NewStateManager(),
		config: kr.config,
		logger: kr.logger,
	}
}

// String returns a short description of the model.
func (kr *KernelRegression) String() string {
	bw := "auto"
	if kr.State.IsFitted() {
		bw = strconv.FormatFloat(kr.bandwidth, 'g', -1, 64)
	} else if kr.config.FixedBandwidth {
		bw = strconv.FormatFloat(kr.config.Bandwidth, 'g', -1, 64)
	}
	return fmt.Sprintf("KernelRegression(bandwidth=%s, degree=%d, tol=%g)", bw, kr.config.Degree, kr.config.Tolerance)
}
