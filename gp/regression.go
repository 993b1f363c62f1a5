// Package gp はガウス過程回帰（Gaussian Process regression）を提供します。
//
// GPRegressorは二乗指数カーネル等のカーネル関数で訓練共分散行列を構築し、
// コレスキー分解による線形ソルブで重みを求め、新しい入力に対して
// 較正された予測平均と予測分散を返すscikit-learn風の推定器です。
// 対数周辺尤度を目的関数とするハイパーパラメータ最適化を内蔵しています。
package gp

import (
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/gpgo/core/model"
	"github.com/YuminosukeSato/gpgo/pkg/errors"
	mllog "github.com/YuminosukeSato/gpgo/pkg/log"
	"github.com/YuminosukeSato/gpgo/preprocessing"
)

// 負の予測分散をゼロに丸める際の許容量。これを超えて負の場合は
// UndefinedMetricWarningを発生させる。
const varianceTolerance = 1e-8

// GPRegressor はガウス過程回帰モデル。
//
// モデル状態はFit時に生成され、ハイパーパラメータ最適化中にのみ更新され、
// Predict呼び出しでは読み取り専用で消費される。同一インスタンスへの
// 並行なFit/Predict呼び出しはサポートされない（呼び出し側で直列化すること）。
type GPRegressor struct {
	model.BaseEstimator

	// 構成（コンストラクタで固定）
	kernel            Kernel
	reg               float64
	regVec            []float64
	scaleData         bool
	optimizeHyper     bool
	optimizeReg       bool
	restarts          int
	maxIter           int
	tol               float64
	parallelThreshold int
	seed              int64

	// 学習済み状態（Fitでのみ書き込まれる）
	xScaler   *preprocessing.StandardScaler
	yMean     []float64
	yStd      []float64
	xTrain    *mat.Dense // スケール済み訓練特徴量
	yTrain    *mat.Dense // 標準化済み訓練ターゲット (N×K)
	chol      *mat.Cholesky
	alpha     *mat.Dense // K⁻¹y (N×K)
	logML     float64
	nSamples  int
	nFeatures int
	nOutputs  int
	optSum    OptimizationSummary
}

// OptimizationSummary はハイパーパラメータ最適化の診断情報。
// Convergedがfalseでも最適化は失敗ではなく、見つかった最良の候補が
// 採用されている（ベストエフォート）。
type OptimizationSummary struct {
	Ran             bool
	Converged       bool
	FuncEvaluations int
	Restarts        int
}

// NewGPRegressor は新しいガウス過程回帰モデルを作成する
//
// 使用例:
//
//	model := gp.NewGPRegressor(
//	    gp.WithKernel(gp.NewRBF(1.0, 0.5)),
//	    gp.WithRegularization(1e-3),
//	    gp.WithScaleData(true),
//	)
//	err := model.Fit(X, y)
//	mean, variance, err := model.PredictWithVariance(XTest)
func NewGPRegressor(opts ...Option) *GPRegressor {
	g := &GPRegressor{
		kernel:            NewRBF(1.0, 1.0),
		reg:               1e-6,
		restarts:          2,
		maxIter:           200,
		tol:               1e-6,
		parallelThreshold: 256,
		seed:              1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// fitState は1回の因子分解の結果。最適化の試行は共有状態を変更せず、
// この不変なスナップショットを生成する。
type fitState struct {
	chol  *mat.Cholesky
	alpha *mat.Dense
	logML float64
}

// Fit はモデルを訓練データで学習させる。
// WithOptimizeHyperparameters(true)の場合は学習前に対数周辺尤度を
// 最大化するハイパーパラメータ探索を実行する。
//
// パラメータ:
//   - X: 訓練特徴量 (n_samples × n_features)
//   - y: 訓練ターゲット (n_samples × 1、多出力の場合は n_samples × k)
func (g *GPRegressor) Fit(X, y mat.Matrix) error {
	started := time.Now()

	r, c := X.Dims()
	ry, ky := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("GPRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("GPRegressor.Fit", r, ry, 0)
	}
	if ky < 1 {
		return errors.NewValueError("GPRegressor.Fit", "y must have at least one column")
	}
	if err := g.kernel.Validate(c); err != nil {
		return err
	}
	if g.regVec != nil {
		if len(g.regVec) != r {
			return errors.NewDimensionError("GPRegressor.Fit", r, len(g.regVec), 0)
		}
		for _, v := range g.regVec {
			if v < 0 || math.IsNaN(v) {
				return errors.NewInvalidHyperparameterError("", "regularization", "must be non-negative", v)
			}
		}
	} else if g.reg < 0 || math.IsNaN(g.reg) {
		return errors.NewInvalidHyperparameterError("", "regularization", "must be non-negative", g.reg)
	}

	g.nSamples = r
	g.nFeatures = c
	g.nOutputs = ky
	g.optSum = OptimizationSummary{}

	// 特徴量の標準化。統計量は訓練データからのみ計算され、以後凍結される。
	if g.scaleData {
		g.xScaler = preprocessing.NewStandardScaler()
		scaled, err := g.xScaler.FitTransform(X)
		if err != nil {
			return err
		}
		g.xTrain = mat.DenseCopyOf(scaled)
	} else {
		g.xScaler = nil
		g.xTrain = mat.DenseCopyOf(X)
	}

	// ターゲットの標準化（列ごと）
	g.yMean = make([]float64, ky)
	g.yStd = make([]float64, ky)
	col := make([]float64, r)
	for j := 0; j < ky; j++ {
		for i := 0; i < r; i++ {
			col[i] = y.At(i, j)
		}
		if g.scaleData {
			g.yMean[j] = stat.Mean(col, nil)
			g.yStd[j] = stat.PopStdDev(col, nil)
			if g.yStd[j] < 1e-8 {
				g.yStd[j] = 1.0
			}
		} else {
			g.yMean[j] = 0.0
			g.yStd[j] = 1.0
		}
	}
	g.yTrain = mat.NewDense(r, ky, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < ky; j++ {
			g.yTrain.Set(i, j, (y.At(i, j)-g.yMean[j])/g.yStd[j])
		}
	}

	// ハイパーパラメータ最適化（有効な場合）。
	// 最適化中の特異な試行は内部で棄却され、ここにはエラーとして現れない。
	if g.optimizeHyper {
		if err := g.runOptimizer(); err != nil {
			return err
		}
	}

	// 最終的な因子分解。直接のFitにおける特異性は致命的で、
	// 正則化を増やして再試行するかどうかは呼び出し側が判断する。
	state, err := g.factorize(g.kernel, g.noiseVector())
	if err != nil {
		return err
	}
	g.chol = state.chol
	g.alpha = state.alpha
	g.logML = state.logML

	g.SetFitted()

	slog.Debug("gaussian process fitted",
		mllog.ModelNameKey, "GPRegressor",
		mllog.OperationKey, "fit",
		mllog.SamplesKey, r,
		mllog.FeaturesKey, c,
		mllog.TargetsKey, ky,
		mllog.KernelKey, g.kernel.String(),
		mllog.RegularizationKey, g.reg,
		mllog.LogMarginalLikelihoodKey, g.logML,
		mllog.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return nil
}

// noiseVector は共分散行列の対角に加える正則化ベクトルを返す
func (g *GPRegressor) noiseVector() []float64 {
	noise := make([]float64, g.nSamples)
	if g.regVec != nil {
		copy(noise, g.regVec)
		return noise
	}
	for i := range noise {
		noise[i] = g.reg
	}
	return noise
}

// factorize は K = K(X,X) + diag(noise) を構築してコレスキー分解し、
// 重み α = K⁻¹y と対数周辺尤度を計算する。
//
//	log p(y|X,θ) = -½ yᵗα - Σ log diag(L) - (N/2) log 2π
//
// 行列の明示的な逆行列は計算しない（常に分解に対するソルブを使う）。
func (g *GPRegressor) factorize(kern Kernel, noise []float64) (*fitState, error) {
	n := g.nSamples
	K := covarianceSym(kern, g.xTrain, noise, g.parallelThreshold)

	var chol mat.Cholesky
	if !chol.Factorize(K) {
		return nil, errors.NewSingularCovarianceError("GPRegressor.Fit", n, noise[0])
	}

	alpha := mat.NewDense(n, g.nOutputs, nil)
	if err := chol.SolveTo(alpha, g.yTrain); err != nil {
		if _, soft := err.(mat.Condition); !soft {
			return nil, errors.NewSingularCovarianceError("GPRegressor.Fit", n, noise[0])
		}
	}

	halfLogDet := 0.5 * chol.LogDet()
	var logML float64
	for j := 0; j < g.nOutputs; j++ {
		var dataFit float64
		for i := 0; i < n; i++ {
			dataFit += g.yTrain.At(i, j) * alpha.At(i, j)
		}
		logML += -0.5*dataFit - halfLogDet - 0.5*float64(n)*math.Log(2*math.Pi)
	}

	return &fitState{chol: &chol, alpha: alpha, logML: logML}, nil
}

// transformInput は凍結済みのスケーラーでテスト入力を変換する
func (g *GPRegressor) transformInput(X mat.Matrix) (*mat.Dense, error) {
	if g.xScaler == nil {
		return mat.DenseCopyOf(X), nil
	}
	scaled, err := g.xScaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(scaled), nil
}

// Predict は入力データに対する予測平均を返す。
// 学習済み状態の純粋な読み取りであり、モデルを変更しない。
//
// パラメータ:
//   - X: テスト特徴量 (m × n_features)
//
// 戻り値:
//   - mat.Matrix: 予測平均 (m × n_outputs)、入力と同じ順序
func (g *GPRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !g.IsFitted() {
		return nil, errors.NewNotFittedError("GPRegressor", "Predict")
	}

	m, c := X.Dims()
	if c != g.nFeatures {
		return nil, errors.NewDimensionError("GPRegressor.Predict", g.nFeatures, c, 1)
	}

	xs, err := g.transformInput(X)
	if err != nil {
		return nil, err
	}

	// mean = K* · α
	kstar := covarianceMatrix(g.kernel, xs, g.xTrain, g.parallelThreshold)
	mean := mat.NewDense(m, g.nOutputs, nil)
	mean.Mul(kstar, g.alpha)

	// 標準化を元に戻す
	for i := 0; i < m; i++ {
		for j := 0; j < g.nOutputs; j++ {
			mean.Set(i, j, mean.At(i, j)*g.yStd[j]+g.yMean[j])
		}
	}
	return mean, nil
}

// PredictWithVariance は予測平均と予測分散を返す。
//
// 分散は各テスト点について variance = k(x*,x*) − k*ᵗ K⁻¹ k* を
// 保存された分解に対するソルブで計算する。数値誤差による微小な負の値は
// 0に丸められ、許容量を超えて負の場合はUndefinedMetricWarningが発生する。
func (g *GPRegressor) PredictWithVariance(X mat.Matrix) (mean, variance mat.Matrix, err error) {
	if !g.IsFitted() {
		return nil, nil, errors.NewNotFittedError("GPRegressor", "PredictWithVariance")
	}

	m, c := X.Dims()
	if c != g.nFeatures {
		return nil, nil, errors.NewDimensionError("GPRegressor.PredictWithVariance", g.nFeatures, c, 1)
	}

	xs, err := g.transformInput(X)
	if err != nil {
		return nil, nil, err
	}

	kstar := covarianceMatrix(g.kernel, xs, g.xTrain, g.parallelThreshold) // m×n
	meanDense := mat.NewDense(m, g.nOutputs, nil)
	meanDense.Mul(kstar, g.alpha)

	// K⁻¹ K*ᵗ を分解に対するソルブで計算する（逆行列は作らない）
	solved := mat.NewDense(g.nSamples, m, nil)
	if err := g.chol.SolveTo(solved, kstar.T()); err != nil {
		if _, soft := err.(mat.Condition); !soft {
			return nil, nil, errors.NewSingularCovarianceError("GPRegressor.PredictWithVariance", g.nSamples, g.reg)
		}
	}

	varDense := mat.NewDense(m, g.nOutputs, nil)
	for i := 0; i < m; i++ {
		xi := xs.RawRowView(i)
		v := g.kernel.Eval(xi, xi)
		for j := 0; j < g.nSamples; j++ {
			v -= kstar.At(i, j) * solved.At(j, i)
		}
		if v < 0 {
			if v < -varianceTolerance {
				errors.Warn(errors.NewUndefinedMetricWarning(
					"predictive_variance", "negative variance beyond numerical tolerance", 0))
			}
			v = 0
		}
		for j := 0; j < g.nOutputs; j++ {
			varDense.Set(i, j, v*g.yStd[j]*g.yStd[j])
		}
	}

	for i := 0; i < m; i++ {
		for j := 0; j < g.nOutputs; j++ {
			meanDense.Set(i, j, meanDense.At(i, j)*g.yStd[j]+g.yMean[j])
		}
	}
	return meanDense, varDense, nil
}

// Score はモデルの決定係数（R²）を計算する。
// 多出力の場合は各出力列のR²の平均を返す。
func (g *GPRegressor) Score(X, y mat.Matrix) (float64, error) {
	if !g.IsFitted() {
		return 0, errors.NewNotFittedError("GPRegressor", "Score")
	}

	yPred, err := g.Predict(X)
	if err != nil {
		return 0, err
	}

	r, k := y.Dims()
	rp, kp := yPred.Dims()
	if r != rp || k != kp {
		return 0, errors.NewDimensionError("GPRegressor.Score", r, rp, 0)
	}

	var total float64
	for j := 0; j < k; j++ {
		var yMean float64
		for i := 0; i < r; i++ {
			yMean += y.At(i, j)
		}
		yMean /= float64(r)

		var tss, rss float64
		for i := 0; i < r; i++ {
			d := y.At(i, j) - yMean
			e := y.At(i, j) - yPred.At(i, j)
			tss += d * d
			rss += e * e
		}
		if tss == 0 {
			return 0, errors.Newf("GPRegressor.Score: total sum of squares is zero in column %d", j)
		}
		total += 1 - rss/tss
	}
	return total / float64(k), nil
}

// Kernel は現在のカーネルのコピーを返す。
// 最適化が有効な場合、Fit後は最適化で選ばれたパラメータが反映されている。
func (g *GPRegressor) Kernel() Kernel {
	return g.kernel.Clone()
}

// Regularization は現在の正則化値を返す。
// WithOptimizeRegularizationが有効な場合、Fit後は最適化で選ばれた値になる。
func (g *GPRegressor) Regularization() float64 {
	return g.reg
}

// LogMarginalLikelihood は学習済みモデルの対数周辺尤度を返す
func (g *GPRegressor) LogMarginalLikelihood() (float64, error) {
	if !g.IsFitted() {
		return 0, errors.NewNotFittedError("GPRegressor", "LogMarginalLikelihood")
	}
	return g.logML, nil
}

// OptimizationResult は直近のFitにおけるハイパーパラメータ最適化の
// 診断情報を返す
func (g *GPRegressor) OptimizationResult() OptimizationSummary {
	return g.optSum
}

// インターフェースの実装確認
var (
	_ model.Regressor         = (*GPRegressor)(nil)
	_ model.VariancePredictor = (*GPRegressor)(nil)
)
