package gp

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gpgo/core/parallel"
	"github.com/YuminosukeSato/gpgo/pkg/errors"
)

// Kernel は2つの特徴量ベクトル間の共分散（類似度）を計算するインターフェース。
// 複数のカーネルをSumで合成でき、それぞれが独立したパラメータを持つ。
type Kernel interface {
	// Eval は2点間のカーネル値を返す。
	// パラメータの検証はFit時にValidateで行われるため、Evalは検証済みの
	// パラメータに対してのみ呼ばれる。
	Eval(x, z []float64) float64

	// Validate はハイパーパラメータが正であること、および長さスケールの
	// 次元が入力次元と整合することを検証する
	Validate(dims int) error

	// NumParams は自由パラメータの数を返す
	NumParams() int

	// Theta は自由パラメータを対数空間で返す。
	// dstがnilの場合は新しいスライスを割り当てる。
	// 対数空間での再パラメータ化により、最適化の反復が常に正の値に保たれる。
	Theta(dst []float64) []float64

	// SetTheta は対数空間の自由パラメータを設定する
	SetTheta(theta []float64) error

	// Clone はカーネルの深いコピーを返す。
	// ハイパーパラメータ最適化の試行は共有状態を変更せず、クローンに対して行われる。
	Clone() Kernel

	fmt.Stringer
}

// RBF は二乗指数（squared-exponential / Gaussian）カーネル。
//
//	k(x, z) = σ² · exp(-½ Σ_d (x_d - z_d)² / ℓ_d²)
//
// Lengthscalesが長さ1の場合は等方（全次元で共有）、入力次元と同じ長さの
// 場合は次元ごとの異方スケーリングとなる。
type RBF struct {
	// Scaling は信号分散σ²
	Scaling float64

	// Lengthscales は長さスケールℓ（長さ1または入力次元Dのベクトル）
	Lengthscales []float64
}

// NewRBF は新しいRBFカーネルを作成する。
// lengthscalesを1つだけ渡すと等方カーネル、複数渡すと異方カーネルになる。
func NewRBF(scaling float64, lengthscales ...float64) *RBF {
	ls := make([]float64, len(lengthscales))
	copy(ls, lengthscales)
	return &RBF{Scaling: scaling, Lengthscales: ls}
}

// Eval は2点間のRBFカーネル値を返す
func (k *RBF) Eval(x, z []float64) float64 {
	var sum float64
	if len(k.Lengthscales) == 1 {
		d := floats.Distance(x, z, 2) / k.Lengthscales[0]
		sum = d * d
	} else {
		for d := range x {
			diff := (x[d] - z[d]) / k.Lengthscales[d]
			sum += diff * diff
		}
	}
	return k.Scaling * math.Exp(-0.5*sum)
}

// Validate はハイパーパラメータを検証する
func (k *RBF) Validate(dims int) error {
	if !(k.Scaling > 0) || math.IsInf(k.Scaling, 1) {
		return errors.NewInvalidHyperparameterError("RBF", "scaling", "must be a positive finite number", k.Scaling)
	}
	if len(k.Lengthscales) == 0 {
		return errors.NewInvalidHyperparameterError("RBF", "lengthscales", "must not be empty", k.Lengthscales)
	}
	if len(k.Lengthscales) != 1 && len(k.Lengthscales) != dims {
		return errors.NewInvalidHyperparameterError("RBF", "lengthscales",
			fmt.Sprintf("must have length 1 or match the input dimension %d", dims), len(k.Lengthscales))
	}
	for _, l := range k.Lengthscales {
		if !(l > 0) || math.IsInf(l, 1) {
			return errors.NewInvalidHyperparameterError("RBF", "lengthscale", "must be a positive finite number", l)
		}
	}
	return nil
}

// NumParams は自由パラメータの数（σ² + 各長さスケール）を返す
func (k *RBF) NumParams() int {
	return 1 + len(k.Lengthscales)
}

// Theta は [log σ², log ℓ...] を返す
func (k *RBF) Theta(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, k.NumParams())
	}
	dst[0] = math.Log(k.Scaling)
	for i, l := range k.Lengthscales {
		dst[1+i] = math.Log(l)
	}
	return dst
}

// SetTheta は対数空間のパラメータを設定する
func (k *RBF) SetTheta(theta []float64) error {
	if len(theta) != k.NumParams() {
		return errors.NewInvalidHyperparameterError("RBF", "theta",
			fmt.Sprintf("expected %d parameters", k.NumParams()), len(theta))
	}
	k.Scaling = math.Exp(theta[0])
	for i := range k.Lengthscales {
		k.Lengthscales[i] = math.Exp(theta[1+i])
	}
	return nil
}

// Clone はカーネルの深いコピーを返す
func (k *RBF) Clone() Kernel {
	return NewRBF(k.Scaling, k.Lengthscales...)
}

// String はカーネルの文字列表現を返す
func (k *RBF) String() string {
	if len(k.Lengthscales) == 1 {
		return fmt.Sprintf("RBF(scaling=%g, lengthscale=%g)", k.Scaling, k.Lengthscales[0])
	}
	return fmt.Sprintf("RBF(scaling=%g, lengthscales=%v)", k.Scaling, k.Lengthscales)
}

// Sum は複数のカーネル成分の要素ごとの和。
// 各成分は独立にパラメータ化され、順序が保存される。
type Sum struct {
	Terms []Kernel
}

// NewSum は成分カーネルの和を作成する
func NewSum(terms ...Kernel) *Sum {
	return &Sum{Terms: terms}
}

// Eval は全成分のカーネル値の和を返す
func (k *Sum) Eval(x, z []float64) float64 {
	var sum float64
	for _, t := range k.Terms {
		sum += t.Eval(x, z)
	}
	return sum
}

// Validate は全成分のハイパーパラメータを検証する
func (k *Sum) Validate(dims int) error {
	if len(k.Terms) == 0 {
		return errors.NewInvalidHyperparameterError("Sum", "terms", "must contain at least one kernel", 0)
	}
	for _, t := range k.Terms {
		if err := t.Validate(dims); err != nil {
			return err
		}
	}
	return nil
}

// NumParams は全成分の自由パラメータ数の合計を返す
func (k *Sum) NumParams() int {
	n := 0
	for _, t := range k.Terms {
		n += t.NumParams()
	}
	return n
}

// Theta は全成分の対数空間パラメータを順に連結して返す
func (k *Sum) Theta(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, k.NumParams())
	}
	off := 0
	for _, t := range k.Terms {
		t.Theta(dst[off : off+t.NumParams()])
		off += t.NumParams()
	}
	return dst
}

// SetTheta は連結されたパラメータを各成分に分配して設定する
func (k *Sum) SetTheta(theta []float64) error {
	if len(theta) != k.NumParams() {
		return errors.NewInvalidHyperparameterError("Sum", "theta",
			fmt.Sprintf("expected %d parameters", k.NumParams()), len(theta))
	}
	off := 0
	for _, t := range k.Terms {
		n := t.NumParams()
		if err := t.SetTheta(theta[off : off+n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// Clone は全成分をクローンした新しいSumを返す
func (k *Sum) Clone() Kernel {
	terms := make([]Kernel, len(k.Terms))
	for i, t := range k.Terms {
		terms[i] = t.Clone()
	}
	return &Sum{Terms: terms}
}

// String はカーネルの文字列表現を返す
func (k *Sum) String() string {
	parts := make([]string, len(k.Terms))
	for i, t := range k.Terms {
		parts[i] = t.String()
	}
	return "Sum(" + strings.Join(parts, ", ") + ")"
}

// covarianceMatrix はX1の各行とX2の各行の間のカーネル値を並べた
// len(X1)×len(X2) の共分散行列を計算する。行単位で並列化される。
func covarianceMatrix(k Kernel, X1, X2 *mat.Dense, threshold int) *mat.Dense {
	r1, _ := X1.Dims()
	r2, _ := X2.Dims()
	K := mat.NewDense(r1, r2, nil)

	parallel.ParallelizeWithThreshold(r1, threshold, func(start, end int) {
		for i := start; i < end; i++ {
			xi := X1.RawRowView(i)
			for j := 0; j < r2; j++ {
				K.Set(i, j, k.Eval(xi, X2.RawRowView(j)))
			}
		}
	})
	return K
}

// covarianceSym は訓練データの自己共分散行列 K(X,X) + diag(noise) を計算する。
// noiseは各訓練点に対応する長さNのベクトル。対称性から上三角のみを計算する。
func covarianceSym(k Kernel, X *mat.Dense, noise []float64, threshold int) *mat.SymDense {
	n, _ := X.Dims()
	K := mat.NewSymDense(n, nil)

	// 上三角の行ごとに書き込み先が重ならないため、行単位の並列化は安全。
	parallel.ParallelizeWithThreshold(n, threshold, func(start, end int) {
		for i := start; i < end; i++ {
			xi := X.RawRowView(i)
			K.SetSym(i, i, k.Eval(xi, xi)+noise[i])
			for j := i + 1; j < n; j++ {
				K.SetSym(i, j, k.Eval(xi, X.RawRowView(j)))
			}
		}
	})
	return K
}
