// Package log defines standard attribute keys for Gaussian Process
// regression operations.
//
// Using these keys keeps log records consistent across the library and
// makes fit/optimize/predict runs easy to filter and analyze. The keys
// follow a hierarchical naming convention ("model.name", "data.samples",
// "gp.lengthscale") to enable structured log analysis.
package log

// Model and Operation Context
// These attributes identify the model type and the operation being performed.
const (
	// ModelNameKey identifies the type of model.
	// Examples: "GPRegressor", "StandardScaler"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "optimize", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "gp", "preprocessing", "metrics"
	ComponentKey = "ml.component"
)

// Data Shape
// These attributes describe the structure of the data being processed.
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// TargetsKey indicates the number of target columns for multi-output
	// regression. Usually 1.
	TargetsKey = "data.targets"
)

// Gaussian Process State
// These attributes capture the hyperparameters and fit quality of a model.
const (
	// KernelKey names the kernel in use, e.g. "RBF", "Sum(RBF,RBF)".
	KernelKey = "gp.kernel"

	// RegularizationKey records the noise variance added to the
	// covariance diagonal.
	RegularizationKey = "gp.regularization"

	// LogMarginalLikelihoodKey records the log marginal likelihood of the
	// fitted model, the objective of hyperparameter optimization.
	LogMarginalLikelihoodKey = "gp.log_marginal_likelihood"

	// OptIterationsKey records how many objective evaluations the
	// hyperparameter optimizer performed.
	OptIterationsKey = "gp.opt_iterations"

	// OptRestartsKey records how many multi-start restarts were run.
	OptRestartsKey = "gp.opt_restarts"
)

// Performance
const (
	// DurationMsKey records the execution time of an operation in
	// milliseconds.
	DurationMsKey = "perf.duration_ms"
)
