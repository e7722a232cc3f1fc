// Standard attribute keys. The hierarchical names ("model.name",
// "data.samples") keep benchmark logs filterable across model families.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the model family, e.g. "GBT", "BRATD".
	ModelNameKey = "model.name"

	// EstimatorKey is the configured estimator as printed by its String method.
	EstimatorKey = "model.estimator"

	// OperationKey is the operation being performed, see Operation* values.
	OperationKey = "ml.operation"

	// ComponentKey is the emitting package, set by GetLoggerWithName.
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase, see Phase* values.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	DatasetKey  = "data.dataset"
	FunctionKey = "data.function"
)

// Training progress and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	IterationKey  = "training.iteration"
	StagesKey     = "training.stages"
	RunKey        = "experiment.run"
	MSEKey        = "metrics.mse"
	RMSEKey       = "metrics.rmse"
	R2Key         = "metrics.r2"
	LossKey       = "metrics.loss"
	CoverageKey   = "metrics.coverage"
)

// Tuning.
const (
	TrialsKey      = "tuning.trials"
	BestValueKey   = "tuning.best_value"
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationTune      = "tune"
	OperationStaged    = "staged_predict"
	OperationCalibrate = "calibrate"

	PhaseTraining      = "training"
	PhaseTuning        = "tuning"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorUnsupportedModel  = "UNSUPPORTED_MODEL"
)
