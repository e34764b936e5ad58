package svm

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// SVC は one-vs-one 方式の多クラスサポートベクター分類器
// Kernel が nil の場合は gamma="scale" のRBFカーネルを使う
type SVC struct {
	C       float64
	Kernel  Kernel
	Tol     float64
	MaxIter int

	classes  []string
	machines []pairMachine
	kernel   Kernel
	dim      int
}

type pairMachine struct {
	pos, neg int // classes のインデックス（pos が +1 側）
	clf      *BinaryClassifier
}

// NewSVC はデフォルト設定（C=1.0, rbf, gamma=scale）のSVCを返す
func NewSVC() *SVC {
	return &SVC{C: defaultC, Tol: defaultTol, MaxIter: defaultMaxIter}
}

// Fit はクラスの全ペアについて2クラスSVMを並行に学習する
func (s *SVC) Fit(ctx context.Context, X [][]float64, y []string) error {
	dim, err := dimensionOf(X)
	if err != nil {
		return err
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d samples but %d labels", ErrDimensionMismatch, len(X), len(y))
	}

	s.kernel = s.Kernel
	if s.kernel == nil {
		s.kernel = RBFKernel{Gamma: GammaScale(X)}
	}
	s.classes = uniqueSorted(y)
	s.machines = nil
	s.dim = dim

	byClass := make([][]int, len(s.classes))
	index := make(map[string]int, len(s.classes))
	for i, c := range s.classes {
		index[c] = i
	}
	for i, label := range y {
		c := index[label]
		byClass[c] = append(byClass[c], i)
	}

	machines := make([]pairMachine, 0, len(s.classes)*(len(s.classes)-1)/2)
	for a := 0; a < len(s.classes); a++ {
		for b := a + 1; b < len(s.classes); b++ {
			machines = append(machines, pairMachine{pos: a, neg: b})
		}
	}

	params := BinaryParams{C: s.C, Tol: s.Tol, MaxIter: s.MaxIter, Kernel: s.kernel}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k := range machines {
		m := &machines[k]
		g.Go(func() error {
			subX := make([][]float64, 0, len(byClass[m.pos])+len(byClass[m.neg]))
			subY := make([]float64, 0, cap(subX))
			for _, i := range byClass[m.pos] {
				subX = append(subX, X[i])
				subY = append(subY, 1)
			}
			for _, i := range byClass[m.neg] {
				subX = append(subX, X[i])
				subY = append(subY, -1)
			}

			clf, err := TrainBinary(gctx, subX, subY, params)
			if err != nil {
				return fmt.Errorf("failed to train %s vs %s: %w", s.classes[m.pos], s.classes[m.neg], err)
			}
			m.clf = clf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.classes = nil
		return err
	}

	s.machines = machines
	return nil
}

// Predict は各ペアの投票で最多得票のクラスを返す
// 同数の場合はソート順で先のクラスを選ぶ
func (s *SVC) Predict(X [][]float64) ([]string, error) {
	if len(s.classes) == 0 {
		return nil, ErrNotFitted
	}

	out := make([]string, len(X))
	if len(s.classes) == 1 {
		for i := range out {
			out[i] = s.classes[0]
		}
		return out, nil
	}

	votes := make([]int, len(s.classes))
	for i, x := range X {
		if len(x) != s.dim {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrDimensionMismatch, i, len(x), s.dim)
		}
		for c := range votes {
			votes[c] = 0
		}
		for _, m := range s.machines {
			if m.clf.Decision(x) > 0 {
				votes[m.pos]++
			} else {
				votes[m.neg]++
			}
		}
		best := 0
		for c := 1; c < len(votes); c++ {
			if votes[c] > votes[best] {
				best = c
			}
		}
		out[i] = s.classes[best]
	}
	return out, nil
}

// Classes は学習済みクラス（ソート済み）を返す
func (s *SVC) Classes() []string {
	return append([]string(nil), s.classes...)
}

// KernelName は学習に使ったカーネル名を返す
func (s *SVC) KernelName() string {
	if s.kernel == nil {
		return ""
	}
	return s.kernel.Name()
}

// SupportVectors は全ペアのサポートベクトル数の合計を返す
func (s *SVC) SupportVectors() int {
	total := 0
	for _, m := range s.machines {
		total += m.clf.SupportVectors()
	}
	return total
}

// Iterations は全ペアのSMO反復回数の合計を返す
func (s *SVC) Iterations() int {
	total := 0
	for _, m := range s.machines {
		total += m.clf.Iterations()
	}
	return total
}

func uniqueSorted(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
