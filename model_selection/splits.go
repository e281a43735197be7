// Package model_selection provides splitting strategies and the
// cross-validation harness used to score candidate models.
package model_selection

import (
	"fmt"
	"slices"

	"github.com/ezoic/kernreg/core/model"
	kerrors "github.com/ezoic/kernreg/pkg/errors"
)

// Fold represents a single train/test partition of a dataset
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter defines the interface for cross-validation splitters.
// A Splitter is bound to the dataset it was built from.
type Splitter interface {
	// Data returns the dataset the fold indices refer to.
	Data() (x, y []float64)
	// Split returns every fold in a fixed order.
	Split() []Fold
	// GetNSplits returns the number of folds.
	GetNSplits() int
}

// InterpolationSplits is a leave-one-out splitter restricted to interior
// points. Points are visited in ascending x order and only those strictly
// between the smallest and largest x are held out, so every test point lies
// inside the range of its training fold.
type InterpolationSplits struct {
	x, y  []float64
	folds []Fold
}

// NewInterpolationSplits builds the interior leave-one-out folds for (x, y).
// The slices are copied. At least three distinct, finite x values are
// required, otherwise a ValueError is returned.
func NewInterpolationSplits(x, y []float64) (*InterpolationSplits, error) {
	const op = "NewInterpolationSplits"
	if err := model.ValidateSlices(op, x, y, 3); err != nil {
		return nil, err
	}
	for i, v := range x {
		if !kerrors.IsFinite(v) {
			return nil, kerrors.NewValueError(op, fmt.Sprintf("x[%d] is not finite", i))
		}
	}

	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case x[a] < x[b]:
			return -1
		case x[a] > x[b]:
			return 1
		}
		return 0
	})

	lo, hi := x[order[0]], x[order[len(order)-1]]
	var folds []Fold
	for pos, idx := range order {
		if x[idx] <= lo || x[idx] >= hi {
			continue
		}
		train := make([]int, 0, len(order)-1)
		train = append(train, order[:pos]...)
		train = append(train, order[pos+1:]...)
		folds = append(folds, Fold{TrainIndices: train, TestIndices: []int{idx}})
	}
	if len(folds) == 0 {
		return nil, kerrors.NewValueError(op, "need at least three distinct x values")
	}

	return &InterpolationSplits{
		x:     slices.Clone(x),
		y:     slices.Clone(y),
		folds: folds,
	}, nil
}

// Data returns the dataset the folds index into.
func (s *InterpolationSplits) Data() (x, y []float64) {
	return s.x, s.y
}

// Split returns the folds in ascending order of the held-out x.
func (s *InterpolationSplits) Split() []Fold {
	return s.folds
}

// GetNSplits returns the number of folds.
func (s *InterpolationSplits) GetNSplits() int {
	return len(s.folds)
}

// take gathers values at indices.
func take(values []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = values[idx]
	}
	return out
}
