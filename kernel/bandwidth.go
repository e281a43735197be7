package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/kernreg/core/model"
	"github.com/ezoic/kernreg/metrics"
	"github.com/ezoic/kernreg/model_selection"
	kerrors "github.com/ezoic/kernreg/pkg/errors"
)

// CVFunc scores candidate models over the folds of a splitter and returns
// scores[candidate][fold]. model_selection.CVScore is the default.
type CVFunc func(models []model.UnivariatePredictor, splitter model_selection.Splitter, scorer metrics.LossFunc) ([][]float64, error)

// SplitterFactory builds a splitter from the full training data.
type SplitterFactory func(x, y []float64) (model_selection.Splitter, error)

// SelectorConfig controls cross-validated bandwidth selection.
type SelectorConfig struct {
	// GridMin and GridMax bound the candidate grid, both inclusive.
	GridMin, GridMax float64
	// GridSize is the number of evenly spaced candidates.
	GridSize int

	CrossValidate CVFunc
	NewSplitter   SplitterFactory
	Scorer        metrics.LossFunc
}

// DefaultSelectorConfig returns 100 candidates evenly spaced over [1, 100],
// scored by mean squared error over interpolation splits.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		GridMin:       1,
		GridMax:       100,
		GridSize:      100,
		CrossValidate: model_selection.CVScore,
		NewSplitter:   newInterpolationSplitter,
		Scorer:        metrics.MeanSquaredError,
	}
}

func newInterpolationSplitter(x, y []float64) (model_selection.Splitter, error) {
	s, err := model_selection.NewInterpolationSplits(x, y)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the grid bounds and that every collaborator is set.
func (c SelectorConfig) Validate() error {
	if c.GridSize < 1 {
		return kerrors.NewValidationError("GridSize", "must be at least 1", c.GridSize)
	}
	if !(c.GridMin > 0) || math.IsInf(c.GridMin, 0) {
		return kerrors.NewValidationError("GridMin", "must be positive and finite", c.GridMin)
	}
	if !(c.GridMax >= c.GridMin) || math.IsInf(c.GridMax, 0) {
		return kerrors.NewValidationError("GridMax", "must be finite and not below GridMin", c.GridMax)
	}
	if c.CrossValidate == nil || c.NewSplitter == nil || c.Scorer == nil {
		return kerrors.NewValidationError("Selector", "CrossValidate, NewSplitter and Scorer must be set", nil)
	}
	return nil
}

// Grid returns the candidate bandwidths in ascending order.
func (c SelectorConfig) Grid() []float64 {
	if c.GridSize == 1 {
		return []float64{c.GridMin}
	}
	return floats.Span(make([]float64, c.GridSize), c.GridMin, c.GridMax)
}

// Selection is the outcome of SelectBandwidth.
type Selection struct {
	Bandwidth float64
	// Score is the mean cross-validation score of the chosen bandwidth.
	Score float64
	// Grid holds the candidates and MeanScores their mean scores, aligned.
	Grid       []float64
	MeanScores []float64
	NSplits    int
}

// SelectBandwidth picks the grid bandwidth with the lowest mean
// cross-validation score.
//
// newCandidate must return an unfitted model bound to the given bandwidth.
// The splitter is built once from (x, y) and shared by every candidate.
// Ties go to the earliest grid point; NaN means are never chosen unless
// every mean is NaN, in which case the first candidate wins. Failures of
// the splitter or the harness are returned wrapped.
func SelectBandwidth(x, y []float64, newCandidate func(h float64) model.UnivariatePredictor, cfg SelectorConfig) (Selection, error) {
	const op = "kernel.SelectBandwidth"
	if err := cfg.Validate(); err != nil {
		return Selection{}, err
	}

	grid := cfg.Grid()
	candidates := make([]model.UnivariatePredictor, len(grid))
	for i, h := range grid {
		candidates[i] = newCandidate(h)
	}

	splitter, err := cfg.NewSplitter(x, y)
	if err != nil {
		return Selection{}, kerrors.Wrapf(err, "%s: build splitter", op)
	}

	scores, err := cfg.CrossValidate(candidates, splitter, cfg.Scorer)
	if err != nil {
		return Selection{}, kerrors.Wrapf(err, "%s: cross-validate", op)
	}
	if len(scores) != len(grid) {
		return Selection{}, kerrors.NewDimensionError(op, len(grid), len(scores), 0)
	}

	means := make([]float64, len(grid))
	for i, row := range scores {
		if len(row) == 0 {
			return Selection{}, kerrors.NewValueError(op, fmt.Sprintf("no scores for bandwidth %g", grid[i]))
		}
		means[i] = stat.Mean(row, nil)
	}
	best := floats.MinIdx(means)

	return Selection{
		Bandwidth:  grid[best],
		Score:      means[best],
		Grid:       grid,
		MeanScores: means,
		NSplits:    len(scores[0]),
	}, nil
}
