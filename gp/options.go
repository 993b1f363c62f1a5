package gp

// Option is a function that configures GPRegressor
type Option func(*GPRegressor)

// WithKernel sets the covariance kernel
func WithKernel(k Kernel) Option {
	return func(g *GPRegressor) {
		g.kernel = k
	}
}

// WithRegularization sets the noise variance added to the covariance diagonal
func WithRegularization(reg float64) Option {
	return func(g *GPRegressor) {
		g.reg = reg
		g.regVec = nil
	}
}

// WithRegularizationVector sets a per-point noise variance for the
// covariance diagonal. The vector length must match the number of
// training points passed to Fit.
func WithRegularizationVector(reg []float64) Option {
	return func(g *GPRegressor) {
		g.regVec = reg
	}
}

// WithScaleData toggles per-feature standardization of the inputs and
// standardization of the targets, computed from training data only
func WithScaleData(scale bool) Option {
	return func(g *GPRegressor) {
		g.scaleData = scale
	}
}

// WithOptimizeHyperparameters toggles log-marginal-likelihood optimization
// of the kernel parameters during Fit
func WithOptimizeHyperparameters(optimize bool) Option {
	return func(g *GPRegressor) {
		g.optimizeHyper = optimize
	}
}

// WithOptimizeRegularization includes the regularization in the
// hyperparameter search (only meaningful together with
// WithOptimizeHyperparameters)
func WithOptimizeRegularization(optimize bool) Option {
	return func(g *GPRegressor) {
		g.optimizeReg = optimize
	}
}

// WithRestarts sets the number of multi-start restarts for the
// hyperparameter search
func WithRestarts(n int) Option {
	return func(g *GPRegressor) {
		g.restarts = n
	}
}

// WithMaxIterations caps the iteration count of each hyperparameter
// search run
func WithMaxIterations(n int) Option {
	return func(g *GPRegressor) {
		g.maxIter = n
	}
}

// WithTolerance sets the convergence tolerance of the hyperparameter search
func WithTolerance(tol float64) Option {
	return func(g *GPRegressor) {
		g.tol = tol
	}
}

// WithParallelThreshold sets the matrix size above which covariance
// assembly is parallelized
func WithParallelThreshold(n int) Option {
	return func(g *GPRegressor) {
		g.parallelThreshold = n
	}
}

// WithSeed seeds the random perturbations used for multi-start restarts,
// keeping repeated fits reproducible
func WithSeed(seed int64) Option {
	return func(g *GPRegressor) {
		g.seed = seed
	}
}
