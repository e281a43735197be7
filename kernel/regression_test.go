package kernel

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/kernreg/core/model"
	"github.com/ezoic/kernreg/metrics"
	"github.com/ezoic/kernreg/model_selection"
	kerrors "github.com/ezoic/kernreg/pkg/errors"
	"github.com/ezoic/kernreg/pkg/log"
)

// countingSelector wraps the default harness and counts its invocations.
func countingSelector(calls *int32) SelectorConfig {
	cfg := DefaultSelectorConfig()
	cfg.CrossValidate = func(models []model.UnivariatePredictor, s model_selection.Splitter, scorer metrics.LossFunc) ([][]float64, error) {
		atomic.AddInt32(calls, 1)
		return model_selection.CVScore(models, s, scorer)
	}
	return cfg
}

func sineData(n int) ([]float64, []float64) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i) * 0.5
		y[i] = math.Sin(x[i]) + 0.05*math.Cos(float64(7*i))
	}
	return x, y
}

func TestKernelRegression_ExactLine(t *testing.T) {
	kr := NewKernelRegression(WithBandwidth(10), WithDegree(1))

	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{2, 4, 6, 8, 10})
	require.NoError(t, kr.Fit(X, y))

	pred, err := kr.Predict(mat.NewDense(1, 1, []float64{3}))
	require.NoError(t, err)

	r, c := pred.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 1, c)
	assert.InDelta(t, 6.0, pred.At(0, 0), 1e-6)
}

func TestKernelRegression_PredictBeforeFit(t *testing.T) {
	kr := NewKernelRegression(WithBandwidth(1))

	_, err := kr.Predict(mat.NewDense(1, 1, []float64{3}))
	var nf *kerrors.NotFittedError
	require.True(t, kerrors.As(err, &nf))
	assert.Equal(t, "KernelRegression", nf.ModelName)

	_, err = kr.PredictSlice([]float64{3})
	assert.True(t, kerrors.As(err, &nf))

	_, err = kr.Bandwidth()
	assert.True(t, kerrors.As(err, &nf))

	assert.False(t, kr.State.IsFitted())
	assert.Equal(t, 0, kr.State.Samples())
	assert.Nil(t, kr.Selection())
}

func TestKernelRegression_ConstantTargetsReproduced(t *testing.T) {
	x := []float64{-2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2}
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 7
	}
	queries := []float64{-1.5, -0.3, 0, 0.7, 1.25}

	for degree := 0; degree <= 3; degree++ {
		for _, h := range []float64{0.5, 1, 10} {
			kr := NewKernelRegression(WithBandwidth(h), WithDegree(degree))
			require.NoError(t, kr.FitSlices(x, y))

			preds, err := kr.PredictSlice(queries)
			require.NoError(t, err)
			for i, p := range preds {
				assert.InDelta(t, 7.0, p, 1e-6, "degree=%d h=%g query=%g", degree, h, queries[i])
			}
		}
	}
}

// Far from the data the ridge term outweighs the kernel mass, so a constant
// target is no longer reproduced. Once every weight underflows the local
// system is tol·I against a zero right-hand side.
func TestKernelRegression_ConstantTargetFarFromData(t *testing.T) {
	x := []float64{-2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2}
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 7
	}

	kr := NewKernelRegression(WithBandwidth(1), WithDegree(3))
	require.NoError(t, kr.FitSlices(x, y))

	preds, err := kr.PredictSlice([]float64{1, 60, -60})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, preds[0], 1e-6)
	assert.Equal(t, 0.0, preds[1])
	assert.Equal(t, 0.0, preds[2])
}

func TestKernelRegression_FixedBandwidthSkipsSelection(t *testing.T) {
	var calls int32
	kr := NewKernelRegression(WithBandwidth(2), WithSelector(countingSelector(&calls)))

	x, y := sineData(20)
	require.NoError(t, kr.FitSlices(x, y))
	_, err := kr.PredictSlice([]float64{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, int32(0), calls)
	h, err := kr.Bandwidth()
	require.NoError(t, err)
	assert.Equal(t, 2.0, h)
	assert.Nil(t, kr.Selection())
}

func TestKernelRegression_AutoBandwidth(t *testing.T) {
	var calls int32
	kr := NewKernelRegression(WithSelector(countingSelector(&calls)))

	x, y := sineData(20)
	require.NoError(t, kr.FitSlices(x, y))

	assert.Equal(t, int32(1), calls)
	h, err := kr.Bandwidth()
	require.NoError(t, err)
	assert.Contains(t, DefaultSelectorConfig().Grid(), h)

	sel := kr.Selection()
	require.NotNil(t, sel)
	assert.Equal(t, h, sel.Bandwidth)
	assert.Equal(t, 18, sel.NSplits)
}

func TestKernelRegression_RefitIsDeterministic(t *testing.T) {
	x, y := sineData(16)
	queries := []float64{0.25, 3.3, 7.1}

	kr := NewKernelRegression()
	require.NoError(t, kr.FitSlices(x, y))
	h1, _ := kr.Bandwidth()
	p1, err := kr.PredictSlice(queries)
	require.NoError(t, err)

	require.NoError(t, kr.FitSlices(x, y))
	h2, _ := kr.Bandwidth()
	p2, err := kr.PredictSlice(queries)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, p1, p2)
}

func TestKernelRegression_FailedRefitKeepsPreviousFit(t *testing.T) {
	kr := NewKernelRegression()
	x, y := sineData(10)
	require.NoError(t, kr.FitSlices(x, y))
	h, _ := kr.Bandwidth()

	// Two points cannot be split for interpolation.
	err := kr.FitSlices([]float64{0, 1}, []float64{0, 1})
	require.Error(t, err)
	assert.True(t, kerrors.Is(err, kerrors.ErrTooFewSamples))

	assert.True(t, kr.State.IsFitted())
	assert.Equal(t, 10, kr.State.Samples())
	got, _ := kr.Bandwidth()
	assert.Equal(t, h, got)
}

func TestKernelRegression_HarnessErrorPropagates(t *testing.T) {
	boom := kerrors.New("cv unavailable")
	cfg := DefaultSelectorConfig()
	cfg.CrossValidate = func([]model.UnivariatePredictor, model_selection.Splitter, metrics.LossFunc) ([][]float64, error) {
		return nil, boom
	}
	kr := NewKernelRegression(WithSelector(cfg))

	err := kr.FitSlices(lineX, lineY)

	assert.True(t, kerrors.Is(err, boom))
	assert.False(t, kr.State.IsFitted())
}

func TestKernelRegression_DuplicateInputs(t *testing.T) {
	var mu sync.Mutex
	var warnings []error
	prev := kerrors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	})
	defer kerrors.SetWarningHandler(prev)

	logger, _ := log.NewTestLogger(log.LevelDebug)
	kr := NewKernelRegression(WithBandwidth(1), WithDegree(1), WithLogger(logger))
	require.NoError(t, kr.FitSlices([]float64{3, 3}, []float64{1, 5}))

	preds, err := kr.PredictSlice([]float64{3})

	require.NoError(t, err)
	assert.False(t, math.IsNaN(preds[0]) || math.IsInf(preds[0], 0))
	assert.InDelta(t, 3.0, preds[0], 1e-9)

	require.Len(t, warnings, 1)
	var sw *kerrors.SingularMatrixWarning
	assert.True(t, kerrors.As(warnings[0], &sw))
	assert.Contains(t, warnings[0].Error(), "query 0")

	// The warning is not repeated on the model logger.
	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "WARN", e["level"])
	}
	assert.True(t, logger.ContainsField(log.FallbacksKey, 1.0))
}

func TestKernelRegression_ParallelMatchesSequential(t *testing.T) {
	x, y := sineData(40)
	queries := make([]float64, 1500)
	for i := range queries {
		queries[i] = float64(i) * 19.5 / 1500
	}

	seq := NewKernelRegression(WithBandwidth(1.5), WithDegree(2), WithNJobs(1))
	auto := NewKernelRegression(WithBandwidth(1.5), WithDegree(2))
	forced := NewKernelRegression(WithBandwidth(1.5), WithDegree(2), WithNJobs(3))

	var results [][]float64
	for _, kr := range []*KernelRegression{seq, auto, forced} {
		require.NoError(t, kr.FitSlices(x, y))
		preds, err := kr.PredictSlice(queries)
		require.NoError(t, err)
		results = append(results, preds)
	}

	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[0], results[2])
}

func TestKernelRegression_InputValidation(t *testing.T) {
	kr := NewKernelRegression(WithBandwidth(1))

	err := kr.FitSlices([]float64{1}, []float64{1})
	assert.True(t, kerrors.Is(err, kerrors.ErrTooFewSamples))

	err = kr.FitSlices([]float64{1, 2, 3}, []float64{1, 2})
	var dimErr *kerrors.DimensionError
	assert.True(t, kerrors.As(err, &dimErr))

	err = kr.Fit(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	assert.True(t, kerrors.As(err, &dimErr))

	require.NoError(t, kr.FitSlices(lineX, lineY))
	_, err = kr.PredictSlice(nil)
	assert.True(t, kerrors.Is(err, kerrors.ErrEmptyData))
	_, err = kr.Predict(&mat.Dense{})
	assert.True(t, kerrors.Is(err, kerrors.ErrEmptyData))
}

func TestKernelRegression_InvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		param string
	}{
		{"zero bandwidth", []Option{WithBandwidth(0)}, "bandwidth"},
		{"negative bandwidth", []Option{WithBandwidth(-2)}, "bandwidth"},
		{"NaN bandwidth", []Option{WithBandwidth(math.NaN())}, "bandwidth"},
		{"negative degree", []Option{WithBandwidth(1), WithDegree(-1)}, "degree"},
		{"zero tolerance", []Option{WithBandwidth(1), WithTolerance(0)}, "tol"},
		{"bad n_jobs", []Option{WithBandwidth(1), WithNJobs(-2)}, "n_jobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kr := NewKernelRegression(tt.opts...)
			err := kr.FitSlices(lineX, lineY)

			var valErr *kerrors.ValidationError
			require.True(t, kerrors.As(err, &valErr))
			assert.Equal(t, tt.param, valErr.ParamName)
			assert.False(t, kr.State.IsFitted())
		})
	}
}

func TestKernelRegression_FitCopiesInput(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	kr := NewKernelRegression(WithBandwidth(10))
	require.NoError(t, kr.FitSlices(x, y))

	y[2] = 1000
	preds, err := kr.PredictSlice([]float64{3})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, preds[0], 1e-6)
}

func TestKernelRegression_Score(t *testing.T) {
	kr := NewKernelRegression(WithBandwidth(10))
	require.NoError(t, kr.FitSlices(lineX, lineY))

	r2, err := kr.Score(mat.NewDense(3, 1, []float64{1.5, 2.5, 3.5}), mat.NewDense(3, 1, []float64{3, 5, 7}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-9)
}

func TestKernelRegression_Params(t *testing.T) {
	kr := NewKernelRegression(WithDegree(2))

	params := kr.GetParams()
	assert.Nil(t, params["bandwidth"])
	assert.Equal(t, 2, params["degree"])
	assert.Equal(t, DefaultTolerance, params["tol"])

	require.NoError(t, kr.SetParams(map[string]interface{}{"bandwidth": 4.0, "degree": 0}))
	assert.Equal(t, 4.0, kr.GetParams()["bandwidth"])
	assert.Equal(t, 0, kr.GetParams()["degree"])

	require.NoError(t, kr.FitSlices(lineX, lineY))
	require.NoError(t, kr.SetParams(map[string]interface{}{"bandwidth": nil}))
	assert.False(t, kr.State.IsFitted())
	assert.Nil(t, kr.GetParams()["bandwidth"])

	var valueErr *kerrors.ValueError
	assert.True(t, kerrors.As(kr.SetParams(map[string]interface{}{"kernel": "tophat"}), &valueErr))

	var valErr *kerrors.ValidationError
	assert.True(t, kerrors.As(kr.SetParams(map[string]interface{}{"degree": 1.5}), &valErr))
	assert.True(t, kerrors.As(kr.SetParams(map[string]interface{}{"bandwidth": -1.0}), &valErr))
	assert.Equal(t, 0, kr.GetParams()["degree"])
}

func TestKernelRegression_CloneUnfitted(t *testing.T) {
	kr := NewKernelRegression(WithBandwidth(3), WithDegree(2))
	require.NoError(t, kr.FitSlices(lineX, lineY))

	clone, err := model.Clone(kr)
	require.NoError(t, err)

	c := clone.(*KernelRegression)
	assert.False(t, c.State.IsFitted())
	assert.Equal(t, kr.GetParams(), c.GetParams())
	assert.True(t, kr.State.IsFitted())
}

func TestKernelRegression_String(t *testing.T) {
	assert.Equal(t, "KernelRegression(bandwidth=auto, degree=1, tol=2.220446049250313e-16)", NewKernelRegression().String())
	assert.Equal(t, "KernelRegression(bandwidth=2.5, degree=0, tol=2.220446049250313e-16)",
		NewKernelRegression(WithBandwidth(2.5), WithDegree(0)).String())
}

func TestKernelRegression_Logging(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	kr := NewKernelRegression(WithBandwidth(10), WithLogger(logger))

	require.NoError(t, kr.FitSlices(lineX, lineY))

	assert.Equal(t, 1, logger.CountMessages("Training started"))
	assert.Equal(t, 1, logger.CountMessages("Training completed"))
	assert.True(t, logger.ContainsField(log.BandwidthKey, 10.0))
	assert.True(t, logger.ContainsField(log.BandwidthSourceKey, log.BandwidthFixed))
	assert.True(t, logger.ContainsField(log.SamplesKey, 5.0))
}

func TestKernelRegression_AutoBandwidthLogsOnce(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	kr := NewKernelRegression(WithLogger(logger))

	require.NoError(t, kr.FitSlices(lineX, lineY))

	assert.Equal(t, 1, logger.CountMessages("Training started"))
	assert.Equal(t, 1, logger.CountMessages("Training completed"))
	assert.Equal(t, 1, logger.CountMessages("Bandwidth selected"))
	assert.Zero(t, logger.CountMessages("Prediction started"))
	assert.True(t, logger.ContainsField(log.BandwidthSourceKey, log.BandwidthSelected))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
