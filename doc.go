// Package gpgo provides Gaussian Process regression for Go with a
// scikit-learn-like API.
//
// GPGo fits a kernel-based regression model to noisy scalar (or vector)
// observations and exposes calibrated predictive means and variances.
// The covariance matrix is factorized with a Cholesky decomposition and
// all solves go through the factorization; hyperparameters can be tuned
// by maximizing the log marginal likelihood.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/gpgo/gp"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
//	    y := mat.NewDense(5, 1, []float64{1.1, 1.9, 3.2, 3.9, 5.1})
//
//	    model := gp.NewGPRegressor(
//	        gp.WithKernel(gp.NewRBF(1.0, 0.5)),
//	        gp.WithRegularization(1e-3),
//	        gp.WithScaleData(true),
//	    )
//	    if err := model.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    XTest := mat.NewDense(2, 1, []float64{2.5, 3.5})
//	    mean, variance, err := model.PredictWithVariance(XTest)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(mat.Formatted(mean), mat.Formatted(variance))
//	}
//
// # Packages
//
//   - gp: the Gaussian Process core (kernels, fit, hyperparameter
//     optimization, prediction)
//   - preprocessing: data standardization used by the scale_data path
//   - metrics: regression error metrics (MSE, RMSE, MAE, R²)
//   - core/model: shared estimator interfaces and fitted-state tracking
//   - core/parallel: parallel processing utilities
//
// # Concurrency
//
// A fitted model is read-only during prediction and safe to share across
// goroutines for concurrent Predict calls. Fit and Predict on the same
// instance must be serialized by the caller.
package gpgo
