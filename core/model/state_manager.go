package model

import (
	"sync"

	kerrors "github.com/ezoic/kernreg/pkg/errors"
)

// StateManager tracks whether a model is Unfit or Fit in a thread-safe manner.
// Models hold it by composition instead of embedding a base struct.
type StateManager struct {
	Fitted   bool // Public for inspection in tests
	NSamples int
	mu       sync.RWMutex
}

// NewStateManager creates a StateManager in the Unfit state.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted on nSamples training points.
func (s *StateManager) SetFitted(nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NSamples = nSamples
}

// Reset returns the model to the Unfit state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NSamples = 0
}

// Samples returns the number of training samples seen during fitting.
func (s *StateManager) Samples() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NSamples
}

// RequireFitted returns a NotFittedError naming modelName and method if the
// model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return kerrors.NewNotFittedError(modelName, method)
	}
	return nil
}
