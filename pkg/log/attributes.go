// Standard attribute keys for structured logging.
//
// Keys follow a hierarchical naming convention ("model.name",
// "data.samples") so that log pipelines can filter on a prefix.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "KernelRegression"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "select_bandwidth"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "kernel", "model_selection"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	// Examples: "training", "inference", "validation"
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of training samples.
	SamplesKey = "data.samples"

	// QueriesKey indicates the number of query points passed to Predict.
	QueriesKey = "data.queries"

	// QueryIndexKey identifies a single query point within a Predict call.
	QueryIndexKey = "data.query_index"
)

// Performance and Evaluation
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// ScoreKey records a cross-validation score (lower is better).
	ScoreKey = "metrics.score"

	// R2ScoreKey records the R² coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Cross-validation
const (
	// CandidatesKey records the number of candidate models in a grid search.
	CandidatesKey = "cv.candidates"

	// SplitsKey records the number of train/validation splits.
	SplitsKey = "cv.splits"
)

// Hyperparameters
const (
	// BandwidthKey records the kernel bandwidth.
	BandwidthKey = "hyperparams.bandwidth"

	// BandwidthSourceKey records whether the bandwidth was fixed or selected.
	BandwidthSourceKey = "hyperparams.bandwidth_source"

	// DegreeKey records the local polynomial degree.
	DegreeKey = "hyperparams.degree"

	// ToleranceKey records the ridge term added to the normal equations.
	ToleranceKey = "hyperparams.tolerance"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"

	// FallbacksKey counts local systems solved with the pseudo-inverse.
	FallbacksKey = "linalg.fallbacks"
)

// Standard attribute values.
const (
	OperationFit             = "fit"
	OperationPredict         = "predict"
	OperationScore           = "score"
	OperationSelectBandwidth = "select_bandwidth"
	OperationCrossValidate   = "cross_validate"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	BandwidthFixed    = "fixed"
	BandwidthSelected = "cross_validated"

	ErrorNotFitted      = "NOT_FITTED"
	ErrorSingularMatrix = "SINGULAR_MATRIX"
)
