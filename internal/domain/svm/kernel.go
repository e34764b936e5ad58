package svm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Kernel は2つの特徴ベクトルの類似度を計算する
type Kernel interface {
	Eval(a, b []float64) float64
	Name() string
}

// RBFKernel は exp(-gamma * ||a-b||^2)
type RBFKernel struct {
	Gamma float64
}

func (k RBFKernel) Eval(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return math.Exp(-k.Gamma * d * d)
}

func (k RBFKernel) Name() string {
	return "rbf"
}

// LinearKernel は内積
type LinearKernel struct{}

func (LinearKernel) Eval(a, b []float64) float64 {
	return floats.Dot(a, b)
}

func (LinearKernel) Name() string {
	return "linear"
}

// GammaScale は gamma="scale" 相当の値 1 / (n_features * Var(X)) を返す
// 分散が0の場合は 1.0
func GammaScale(X [][]float64) float64 {
	if len(X) == 0 || len(X[0]) == 0 {
		return 1.0
	}
	flat := make([]float64, 0, len(X)*len(X[0]))
	for _, row := range X {
		flat = append(flat, row...)
	}
	variance := stat.PopVariance(flat, nil)
	if variance == 0 || math.IsNaN(variance) {
		return 1.0
	}
	return 1.0 / (float64(len(X[0])) * variance)
}
