package gp

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gpgo/pkg/errors"
)

func TestRBFEval(t *testing.T) {
	tests := []struct {
		name      string
		kernel    Kernel
		x         []float64
		z         []float64
		want      float64
		tolerance float64
	}{
		{
			name:      "identical points return scaling",
			kernel:    NewRBF(2.5, 1.0),
			x:         []float64{1.0, 2.0},
			z:         []float64{1.0, 2.0},
			want:      2.5,
			tolerance: 1e-12,
		},
		{
			name:      "isotropic unit lengthscale",
			kernel:    NewRBF(1.0, 1.0),
			x:         []float64{0.0},
			z:         []float64{1.0},
			want:      math.Exp(-0.5),
			tolerance: 1e-12,
		},
		{
			name:      "isotropic narrow lengthscale decays faster",
			kernel:    NewRBF(1.0, 0.5),
			x:         []float64{0.0},
			z:         []float64{1.0},
			want:      math.Exp(-2.0),
			tolerance: 1e-12,
		},
		{
			name:      "anisotropic per-dimension lengthscales",
			kernel:    NewRBF(1.0, 1.0, 2.0),
			x:         []float64{0.0, 0.0},
			z:         []float64{1.0, 2.0},
			want:      math.Exp(-0.5 * (1.0 + 1.0)),
			tolerance: 1e-12,
		},
		{
			name:      "sum of two kernels",
			kernel:    NewSum(NewRBF(1.0, 1.0), NewRBF(0.5, 2.0)),
			x:         []float64{0.0},
			z:         []float64{0.0},
			want:      1.5,
			tolerance: 1e-12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.kernel.Eval(tt.x, tt.z)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Eval() = %v, want %v (tolerance: %v)", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestKernelValidate(t *testing.T) {
	tests := []struct {
		name    string
		kernel  Kernel
		dims    int
		wantErr bool
	}{
		{
			name:    "valid isotropic",
			kernel:  NewRBF(1.0, 0.5),
			dims:    3,
			wantErr: false,
		},
		{
			name:    "valid anisotropic",
			kernel:  NewRBF(1.0, 0.5, 1.0, 2.0),
			dims:    3,
			wantErr: false,
		},
		{
			name:    "zero lengthscale",
			kernel:  NewRBF(1.0, 0.0),
			dims:    1,
			wantErr: true,
		},
		{
			name:    "negative lengthscale",
			kernel:  NewRBF(1.0, -0.5),
			dims:    1,
			wantErr: true,
		},
		{
			name:    "negative scaling",
			kernel:  NewRBF(-1.0, 0.5),
			dims:    1,
			wantErr: true,
		},
		{
			name:    "NaN scaling",
			kernel:  NewRBF(math.NaN(), 0.5),
			dims:    1,
			wantErr: true,
		},
		{
			name:    "lengthscale count mismatch",
			kernel:  NewRBF(1.0, 0.5, 1.0),
			dims:    3,
			wantErr: true,
		},
		{
			name:    "empty sum",
			kernel:  NewSum(),
			dims:    1,
			wantErr: true,
		},
		{
			name:    "sum propagates invalid component",
			kernel:  NewSum(NewRBF(1.0, 0.5), NewRBF(1.0, -1.0)),
			dims:    1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.kernel.Validate(tt.dims)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil {
				var hyperErr *errors.InvalidHyperparameterError
				if !errors.As(err, &hyperErr) {
					t.Errorf("Validate() error type = %T, want InvalidHyperparameterError", err)
				}
			}
		})
	}
}

func TestThetaRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		kernel Kernel
	}{
		{name: "isotropic RBF", kernel: NewRBF(2.0, 0.7)},
		{name: "anisotropic RBF", kernel: NewRBF(1.5, 0.5, 1.0, 2.0)},
		{name: "sum kernel", kernel: NewSum(NewRBF(1.0, 0.5), NewRBF(2.0, 1.5))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theta := tt.kernel.Theta(nil)
			if len(theta) != tt.kernel.NumParams() {
				t.Fatalf("Theta() length = %d, want %d", len(theta), tt.kernel.NumParams())
			}

			clone := tt.kernel.Clone()
			if err := clone.SetTheta(theta); err != nil {
				t.Fatalf("SetTheta() error = %v", err)
			}

			x := []float64{0.3, -0.2, 1.1}[:dimsOf(tt.kernel)]
			z := []float64{-0.5, 0.8, 0.1}[:dimsOf(tt.kernel)]
			if got, want := clone.Eval(x, z), tt.kernel.Eval(x, z); math.Abs(got-want) > 1e-12 {
				t.Errorf("Eval after round trip = %v, want %v", got, want)
			}
		})
	}
}

// dimsOf returns an input dimension compatible with the kernel's lengthscales.
func dimsOf(k Kernel) int {
	switch kk := k.(type) {
	case *RBF:
		if len(kk.Lengthscales) > 1 {
			return len(kk.Lengthscales)
		}
		return 1
	default:
		return 1
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := NewRBF(1.0, 0.5)
	clone := orig.Clone()
	if err := clone.SetTheta([]float64{math.Log(3.0), math.Log(2.0)}); err != nil {
		t.Fatalf("SetTheta() error = %v", err)
	}

	if orig.Scaling != 1.0 || orig.Lengthscales[0] != 0.5 {
		t.Errorf("mutating a clone changed the original: %v", orig)
	}
}

func TestCovarianceSymmetryAndDiagonal(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const (
		n       = 30
		d       = 4
		scaling = 1.7
	)

	X := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
	}

	kern := NewRBF(scaling, 0.8)
	noise := make([]float64, n)
	K := covarianceSym(kern, X, noise, 0)

	for i := 0; i < n; i++ {
		// 自己類似度は信号分散に等しい
		if math.Abs(K.At(i, i)-scaling) > 1e-12 {
			t.Errorf("diagonal K[%d][%d] = %v, want %v", i, i, K.At(i, i), scaling)
		}
		for j := 0; j < n; j++ {
			if math.Abs(K.At(i, j)-K.At(j, i)) > 1e-12 {
				t.Errorf("K[%d][%d] = %v differs from K[%d][%d] = %v", i, j, K.At(i, j), j, i, K.At(j, i))
			}
			if K.At(i, j) <= 0 {
				t.Errorf("K[%d][%d] = %v, want positive", i, j, K.At(i, j))
			}
		}
	}

	// 一般の共分散行列も自己共分散では対称になる
	full := covarianceMatrix(kern, X, X, 0)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.Abs(full.At(i, j)-full.At(j, i)) > 1e-12 {
				t.Errorf("full[%d][%d] not symmetric", i, j)
			}
		}
	}
}

func TestCovarianceParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const n = 64

	X := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, rng.NormFloat64())
		X.Set(i, 1, rng.NormFloat64())
	}

	kern := NewRBF(1.0, 1.0)
	noise := make([]float64, n)
	for i := range noise {
		noise[i] = 1e-3
	}

	seq := covarianceSym(kern, X, noise, n+1) // 閾値を超えないため逐次
	par := covarianceSym(kern, X, noise, 0)   // 常に並列

	if !mat.EqualApprox(seq, par, 1e-14) {
		t.Error("parallel covariance assembly differs from sequential")
	}
}
