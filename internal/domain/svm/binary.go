package svm

import (
	"context"
	"fmt"
	"math"
)

const (
	defaultC       = 1.0
	defaultTol     = 1e-3
	defaultMaxIter = 100000

	// tau は二次係数が非正になった場合の下限
	tau = 1e-12

	// ctxCheckInterval 回の反復ごとにキャンセルを確認する
	ctxCheckInterval = 1000
)

// BinaryParams は2クラスSVMの学習パラメータ
type BinaryParams struct {
	C       float64
	Tol     float64
	MaxIter int
	Kernel  Kernel
}

func (p BinaryParams) withDefaults() BinaryParams {
	if p.C <= 0 {
		p.C = defaultC
	}
	if p.Tol <= 0 {
		p.Tol = defaultTol
	}
	if p.MaxIter <= 0 {
		p.MaxIter = defaultMaxIter
	}
	if p.Kernel == nil {
		p.Kernel = LinearKernel{}
	}
	return p
}

// BinaryClassifier は学習済みの2クラスSVM
// 決定関数は f(x) = Σ coef_i K(sv_i, x) - rho
type BinaryClassifier struct {
	kernel         Kernel
	supportVectors [][]float64
	coef           []float64
	rho            float64
	iterations     int
}

// TrainBinary は SMO でC-SVCの双対問題を解く
// y は +1 / -1 のラベル。作業集合は二次情報を使った最大違反ペアで選ぶ
func TrainBinary(ctx context.Context, X [][]float64, y []float64, params BinaryParams) (*BinaryClassifier, error) {
	if _, err := dimensionOf(X); err != nil {
		return nil, err
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d samples but %d labels", ErrDimensionMismatch, len(X), len(y))
	}
	for i, label := range y {
		if label != 1 && label != -1 {
			return nil, fmt.Errorf("label %d must be +1 or -1, got %v", i, label)
		}
	}
	p := params.withDefaults()

	n := len(X)
	K := gramMatrix(X, p.Kernel)

	alpha := make([]float64, n)
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}

	iter := 0
	for ; iter < p.MaxIter; iter++ {
		if iter%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		i, j, ok := selectWorkingSet(K, y, alpha, grad, p.C, p.Tol)
		if !ok {
			break
		}

		oldAi, oldAj := alpha[i], alpha[j]
		updatePair(K, y, alpha, grad, i, j, p.C)

		dAi := alpha[i] - oldAi
		dAj := alpha[j] - oldAj
		for k := 0; k < n; k++ {
			grad[k] += y[i]*y[k]*K[i][k]*dAi + y[j]*y[k]*K[j][k]*dAj
		}
	}

	clf := &BinaryClassifier{
		kernel:     p.Kernel,
		rho:        computeRho(y, alpha, grad, p.C),
		iterations: iter,
	}
	for i, a := range alpha {
		if a > 0 {
			clf.supportVectors = append(clf.supportVectors, X[i])
			clf.coef = append(clf.coef, a*y[i])
		}
	}
	return clf, nil
}

// Decision は決定関数の値を返す（正なら +1 クラス）
func (b *BinaryClassifier) Decision(x []float64) float64 {
	sum := -b.rho
	for i, sv := range b.supportVectors {
		sum += b.coef[i] * b.kernel.Eval(sv, x)
	}
	return sum
}

// SupportVectors はサポートベクトル数を返す
func (b *BinaryClassifier) SupportVectors() int {
	return len(b.supportVectors)
}

// Iterations はSMOの反復回数を返す
func (b *BinaryClassifier) Iterations() int {
	return b.iterations
}

func gramMatrix(X [][]float64, kernel Kernel) [][]float64 {
	n := len(X)
	K := make([][]float64, n)
	for i := range K {
		K[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := kernel.Eval(X[i], X[j])
			K[i][j] = v
			K[j][i] = v
		}
	}
	return K
}

func selectWorkingSet(K [][]float64, y, alpha, grad []float64, C, tol float64) (int, int, bool) {
	gmax := math.Inf(-1)
	gmax2 := math.Inf(-1)
	i := -1

	for t := range alpha {
		if y[t] == 1 {
			if alpha[t] < C && -grad[t] >= gmax {
				gmax = -grad[t]
				i = t
			}
		} else if alpha[t] > 0 && grad[t] >= gmax {
			gmax = grad[t]
			i = t
		}
	}
	if i < 0 {
		return 0, 0, false
	}

	j := -1
	objDiffMin := math.Inf(1)
	for t := range alpha {
		var gradDiff float64
		if y[t] == 1 {
			if alpha[t] <= 0 {
				continue
			}
			if grad[t] >= gmax2 {
				gmax2 = grad[t]
			}
			gradDiff = gmax + grad[t]
		} else {
			if alpha[t] >= C {
				continue
			}
			if -grad[t] >= gmax2 {
				gmax2 = -grad[t]
			}
			gradDiff = gmax - grad[t]
		}
		if gradDiff <= 0 {
			continue
		}
		quad := K[i][i] + K[t][t] - 2*K[i][t]
		if quad <= 0 {
			quad = tau
		}
		if objDiff := -(gradDiff * gradDiff) / quad; objDiff <= objDiffMin {
			objDiffMin = objDiff
			j = t
		}
	}

	if gmax+gmax2 < tol || j < 0 {
		return 0, 0, false
	}
	return i, j, true
}

func updatePair(K [][]float64, y, alpha, grad []float64, i, j int, C float64) {
	qij := y[i] * y[j] * K[i][j]

	if y[i] != y[j] {
		quad := K[i][i] + K[j][j] + 2*qij
		if quad <= 0 {
			quad = tau
		}
		delta := (-grad[i] - grad[j]) / quad
		diff := alpha[i] - alpha[j]
		alpha[i] += delta
		alpha[j] += delta

		if diff > 0 {
			if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = diff
			}
		} else if alpha[i] < 0 {
			alpha[i] = 0
			alpha[j] = -diff
		}
		if diff > 0 {
			if alpha[i] > C {
				alpha[i] = C
				alpha[j] = C - diff
			}
		} else if alpha[j] > C {
			alpha[j] = C
			alpha[i] = C + diff
		}
		return
	}

	quad := K[i][i] + K[j][j] - 2*qij
	if quad <= 0 {
		quad = tau
	}
	delta := (grad[i] - grad[j]) / quad
	sum := alpha[i] + alpha[j]
	alpha[i] -= delta
	alpha[j] += delta

	if sum > C {
		if alpha[i] > C {
			alpha[i] = C
			alpha[j] = sum - C
		}
	} else if alpha[j] < 0 {
		alpha[j] = 0
		alpha[i] = sum
	}
	if sum > C {
		if alpha[j] > C {
			alpha[j] = C
			alpha[i] = sum - C
		}
	} else if alpha[i] < 0 {
		alpha[i] = 0
		alpha[j] = sum
	}
}

func computeRho(y, alpha, grad []float64, C float64) float64 {
	ub := math.Inf(1)
	lb := math.Inf(-1)
	var sumFree float64
	var nFree int

	for i := range alpha {
		yg := y[i] * grad[i]
		switch {
		case alpha[i] >= C:
			if y[i] == -1 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case alpha[i] <= 0:
			if y[i] == 1 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			nFree++
			sumFree += yg
		}
	}

	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}
