package kernel

import (
	"math"

	kerrors "github.com/ezoic/kernreg/pkg/errors"
	"github.com/ezoic/kernreg/pkg/log"
)

// DefaultTolerance is float64 machine epsilon, 2⁻⁵².
const DefaultTolerance = 0x1p-52

// DefaultDegree fits local lines.
const DefaultDegree = 1

// Config holds the hyperparameters of a KernelRegression.
type Config struct {
	// Bandwidth is used when FixedBandwidth is set; otherwise it is chosen
	// by cross-validation during Fit.
	Bandwidth      float64
	FixedBandwidth bool

	Degree    int
	Tolerance float64

	// NJobs controls the predict loop: 0 parallelizes large batches only,
	// 1 is sequential, n > 1 uses n workers and -1 uses every CPU.
	NJobs int

	Selector SelectorConfig
}

// DefaultConfig returns an automatic-bandwidth, degree-1 configuration.
func DefaultConfig() Config {
	return Config{
		Degree:    DefaultDegree,
		Tolerance: DefaultTolerance,
		Selector:  DefaultSelectorConfig(),
	}
}

// Validate reports the first invalid hyperparameter as a ValidationError.
func (c Config) Validate() error {
	if c.FixedBandwidth {
		if err := validateBandwidth(c.Bandwidth); err != nil {
			return err
		}
	} else if err := c.Selector.Validate(); err != nil {
		return err
	}
	if c.Degree < 0 {
		return kerrors.NewValidationError("degree", "must be non-negative", c.Degree)
	}
	if !(c.Tolerance > 0) || math.IsInf(c.Tolerance, 0) {
		return kerrors.NewValidationError("tol", "must be positive and finite", c.Tolerance)
	}
	if c.NJobs < -1 {
		return kerrors.NewValidationError("n_jobs", "must be -1 or greater", c.NJobs)
	}
	return nil
}

// Option is a function that configures KernelRegression
type Option func(*KernelRegression)

// WithBandwidth fixes the kernel bandwidth and disables selection.
func WithBandwidth(h float64) Option {
	return func(kr *KernelRegression) {
		kr.config.Bandwidth = h
		kr.config.FixedBandwidth = true
	}
}

// WithDegree sets the local polynomial degree.
func WithDegree(d int) Option {
	return func(kr *KernelRegression) {
		kr.config.Degree = d
	}
}

// WithTolerance sets the ridge term added to the normal equations.
func WithTolerance(tol float64) Option {
	return func(kr *KernelRegression) {
		kr.config.Tolerance = tol
	}
}

// WithSelector replaces the bandwidth selection settings.
func WithSelector(cfg SelectorConfig) Option {
	return func(kr *KernelRegression) {
		kr.config.Selector = cfg
	}
}

// WithNJobs sets the number of parallel jobs
func WithNJobs(n int) Option {
	return func(kr *KernelRegression) {
		kr.config.NJobs = n
	}
}

// WithLogger replaces the model logger.
func WithLogger(l log.Logger) Option {
	return func(kr *KernelRegression) {
		kr.logger = l
	}
}
