package gp

import (
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/gpgo/core/parallel"
	"github.com/YuminosukeSato/gpgo/pkg/errors"
	mllog "github.com/YuminosukeSato/gpgo/pkg/log"
)

// optRun は1つの初期値から始めた探索の結果
type optRun struct {
	theta     []float64
	obj       float64 // 負の対数周辺尤度（最小化対象）
	evals     int
	converged bool
}

// runOptimizer は対数周辺尤度を最大化するハイパーパラメータ探索を実行する。
//
// 探索は対数空間のパラメータベクトル θ = [log カーネルパラメータ...,
// (log 正則化)] に対するNelder–Mead法で行われ、反復は常に正の値に対応する。
// 複数の初期値（マルチスタート）から独立に探索し、最終目的値が最良の結果を
// 採用する。同値の場合は最も小さい開始インデックスが勝つため、結果は
// 各探索の完了順序に依存しない。
//
// 探索中に共分散行列が特異になった試行は+Infの目的値として棄却され、
// エラーとしては伝播しない。全試行が棄却された場合や収束しなかった場合も
// エラーにはならず、見つかった最良の（あるいは元の）θが維持されて
// ConvergenceWarningが発生する。
func (g *GPRegressor) runOptimizer() error {
	nk := g.kernel.NumParams()
	dim := nk
	if g.optimizeReg && g.regVec == nil {
		dim++
	}

	theta0 := make([]float64, dim)
	g.kernel.Theta(theta0[:nk])
	if dim > nk {
		reg := g.reg
		if reg <= 0 {
			reg = 1e-6
		}
		theta0[nk] = math.Log(reg)
	}

	nStarts := 1 + g.restarts
	if nStarts < 1 {
		nStarts = 1
	}

	// 全初期値を1つの乱数列から先に生成しておく（完了順序に依らず再現可能）
	rng := rand.New(rand.NewSource(g.seed))
	starts := make([][]float64, nStarts)
	starts[0] = append([]float64(nil), theta0...)
	for i := 1; i < nStarts; i++ {
		s := make([]float64, dim)
		for j := range s {
			s[j] = theta0[j] + (rng.Float64()*2 - 1)
		}
		starts[i] = s
	}

	// 各スタートは独立な目的評価の列であり、ワーカープールで並列評価できる
	results := make([]optRun, nStarts)
	parallel.Parallelize(nStarts, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			results[i] = g.searchFrom(starts[i], nk)
		}
	})

	totalEvals := 0
	best := -1
	for i := range results {
		totalEvals += results[i].evals
		if math.IsInf(results[i].obj, 0) || math.IsNaN(results[i].obj) {
			continue
		}
		// 最良の目的値で集約し、同値なら小さいインデックスを採る
		if best == -1 || results[i].obj < results[best].obj {
			best = i
		}
	}

	g.optSum = OptimizationSummary{Ran: true, Restarts: nStarts, FuncEvaluations: totalEvals}

	if best == -1 {
		// 全スタートが悪条件な領域で棄却された。
		// 元のハイパーパラメータを維持する（ベストエフォート）。
		errors.Warn(errors.NewConvergenceWarning("GPRegressor.Optimize", totalEvals,
			"all restarts were rejected; keeping initial hyperparameters"))
		return nil
	}

	g.optSum.Converged = results[best].converged
	if !results[best].converged {
		errors.Warn(errors.NewConvergenceWarning("GPRegressor.Optimize", totalEvals,
			"returning the best hyperparameters found so far"))
	}

	// 採用した場合のみ新しいカーネルクローンに書き戻す。
	// 試行中の評価はモデルのカーネルを一切変更していない。
	kern := g.kernel.Clone()
	if err := kern.SetTheta(results[best].theta[:nk]); err != nil {
		return err
	}
	g.kernel = kern
	if dim > nk {
		g.reg = math.Exp(results[best].theta[nk])
	}

	slog.Debug("hyperparameter optimization finished",
		mllog.ModelNameKey, "GPRegressor",
		mllog.OperationKey, "optimize",
		mllog.KernelKey, g.kernel.String(),
		mllog.RegularizationKey, g.reg,
		mllog.LogMarginalLikelihoodKey, -results[best].obj,
		mllog.OptIterationsKey, totalEvals,
		mllog.OptRestartsKey, nStarts,
	)
	return nil
}

// searchFrom は1つの初期値からNelder–Mead探索を実行する
func (g *GPRegressor) searchFrom(start []float64, nk int) optRun {
	kern := g.kernel.Clone()

	objective := func(theta []float64) float64 {
		if err := kern.SetTheta(theta[:nk]); err != nil {
			return math.Inf(1)
		}
		reg := g.reg
		if len(theta) > nk {
			reg = math.Exp(theta[nk])
		}
		nll, err := g.negLogML(kern, reg)
		if err != nil || math.IsNaN(nll) {
			// 局所的に悪条件な領域。試行を棄却して探索は続行する。
			return math.Inf(1)
		}
		return nll
	}

	settings := &optimize.Settings{
		MajorIterations: g.maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   g.tol,
			Iterations: 25,
		},
	}

	initX := append([]float64(nil), start...)
	res, err := optimize.Minimize(optimize.Problem{Func: objective}, initX, settings, &optimize.NelderMead{})
	if res == nil {
		return optRun{obj: math.Inf(1)}
	}

	run := optRun{
		theta: append([]float64(nil), res.X...),
		obj:   res.F,
		evals: res.Stats.FuncEvaluations,
	}
	run.converged = err == nil &&
		res.Status != optimize.NotTerminated &&
		res.Status != optimize.IterationLimit &&
		res.Status != optimize.FunctionEvaluationLimit &&
		res.Status != optimize.Failure
	return run
}

// negLogML は候補のカーネルと正則化に対する負の対数周辺尤度を計算する。
// 評価のたびに因子分解を再実行する（これが最適化の支配的コスト）。
func (g *GPRegressor) negLogML(kern Kernel, reg float64) (float64, error) {
	noise := make([]float64, g.nSamples)
	if g.regVec != nil {
		copy(noise, g.regVec)
	} else {
		for i := range noise {
			noise[i] = reg
		}
	}
	state, err := g.factorize(kern, noise)
	if err != nil {
		return 0, err
	}
	return -state.logML, nil
}
