// Package model は回帰モデルと変換器が共有する基本インターフェースを提供します。
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測（平均）を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// VariancePredictor は予測の不確かさを返せるモデルのインターフェース。
// ガウス過程回帰のようなベイズ的モデルが実装する。
type VariancePredictor interface {
	Predictor

	// PredictWithVariance は予測平均と予測分散を返す
	PredictWithVariance(X mat.Matrix) (mean, variance mat.Matrix, err error)
}

// Scorer はモデルの適合度を評価できるモデルのインターフェース
type Scorer interface {
	// Score は決定係数R²を返す
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor は回帰モデルの基本インターフェース
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
