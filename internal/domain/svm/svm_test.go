package svm

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScaler(t *testing.T) {
	var s StandardScaler
	out, err := s.FitTransform([][]float64{{1, 10}, {3, 10}})
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 10}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale)
	assert.Equal(t, [][]float64{{-1, 0}, {1, 0}}, out)
}

func TestStandardScaler_Errors(t *testing.T) {
	var s StandardScaler
	_, err := s.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.ErrorIs(t, s.Fit(nil), ErrEmptyTrainingSet)
	assert.ErrorIs(t, s.Fit([][]float64{{1, 2}, {3}}), ErrDimensionMismatch)

	require.NoError(t, s.Fit([][]float64{{1, 2}}))
	_, err = s.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestGammaScale(t *testing.T) {
	assert.InDelta(t, 0.5, GammaScale([][]float64{{0, 2}, {2, 0}}), 1e-12)
	assert.Equal(t, 1.0, GammaScale([][]float64{{3, 3}, {3, 3}}))
	assert.Equal(t, 1.0, GammaScale(nil))
}

func TestKernels(t *testing.T) {
	rbf := RBFKernel{Gamma: 0.5}
	assert.InDelta(t, math.Exp(-1), rbf.Eval([]float64{0, 0}, []float64{1, 1}), 1e-12)
	assert.Equal(t, 1.0, rbf.Eval([]float64{2, 3}, []float64{2, 3}))
	assert.Equal(t, "rbf", rbf.Name())

	assert.Equal(t, 11.0, LinearKernel{}.Eval([]float64{1, 2}, []float64{3, 4}))
	assert.Equal(t, "linear", LinearKernel{}.Name())
}

func TestTrainBinary_Separable(t *testing.T) {
	X := [][]float64{
		{-2, -2}, {-1, -1.5}, {-1.5, -1},
		{2, 2}, {1, 1.5}, {1.5, 1},
	}
	y := []float64{-1, -1, -1, 1, 1, 1}

	clf, err := TrainBinary(context.Background(), X, y, BinaryParams{C: 1, Kernel: LinearKernel{}})
	require.NoError(t, err)
	assert.Greater(t, clf.SupportVectors(), 0)

	for i, x := range X {
		assert.Equal(t, y[i] > 0, clf.Decision(x) > 0, "sample %d", i)
	}
	assert.Greater(t, clf.Decision([]float64{3, 3}), 0.0)
	assert.Less(t, clf.Decision([]float64{-3, -3}), 0.0)
}

func TestTrainBinary_TwoPointDual(t *testing.T) {
	// 2点の線形SVMは解析解 alpha=0.5, w=1, b=0 を持つ
	tests := []struct {
		name     string
		X        [][]float64
		y        []float64
		wantCoef []float64
	}{
		{"negative first", [][]float64{{-1}, {1}}, []float64{-1, 1}, []float64{-0.5, 0.5}},
		{"positive first", [][]float64{{1}, {-1}}, []float64{1, -1}, []float64{0.5, -0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf, err := TrainBinary(context.Background(), tt.X, tt.y, BinaryParams{C: 1, Kernel: LinearKernel{}})
			require.NoError(t, err)

			require.Len(t, clf.coef, 2)
			assert.InDeltaSlice(t, tt.wantCoef, clf.coef, 1e-9)
			assert.InDelta(t, 0.0, clf.rho, 1e-9)
			assert.Equal(t, 2, clf.SupportVectors())
			assert.Greater(t, clf.Iterations(), 0)

			for _, x := range []float64{-2, -1, 0, 0.5, 1, 3} {
				assert.InDelta(t, x, clf.Decision([]float64{x}), 1e-9, "x=%v", x)
			}
		})
	}
}

func TestTrainBinary_InvalidInput(t *testing.T) {
	ctx := context.Background()

	_, err := TrainBinary(ctx, nil, nil, BinaryParams{})
	assert.ErrorIs(t, err, ErrEmptyTrainingSet)

	_, err = TrainBinary(ctx, [][]float64{{1}}, []float64{1, -1}, BinaryParams{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = TrainBinary(ctx, [][]float64{{1}, {2}}, []float64{1, 0}, BinaryParams{})
	assert.Error(t, err)
}

func clusters() ([][]float64, []string) {
	centers := map[string][2]float64{"PG": {0, 0}, "C": {6, 6}, "SF": {12, 0}}
	offsets := [][2]float64{{0, 0}, {0.3, 0.1}, {-0.2, 0.3}, {0.1, -0.3}, {-0.3, -0.1}}

	var X [][]float64
	var y []string
	for _, label := range []string{"PG", "C", "SF"} {
		c := centers[label]
		for _, o := range offsets {
			X = append(X, []float64{c[0] + o[0], c[1] + o[1]})
			y = append(y, label)
		}
	}
	return X, y
}

func TestSVC_FitPredict(t *testing.T) {
	X, y := clusters()

	var scaler StandardScaler
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	clf := NewSVC()
	require.NoError(t, clf.Fit(context.Background(), scaled, y))
	assert.Equal(t, []string{"C", "PG", "SF"}, clf.Classes())
	assert.Equal(t, "rbf", clf.KernelName())
	assert.Greater(t, clf.SupportVectors(), 0)

	queries, err := scaler.Transform([][]float64{{0.1, 0.1}, {6.1, 5.9}, {11.9, 0.2}})
	require.NoError(t, err)

	got, err := clf.Predict(queries)
	require.NoError(t, err)
	assert.Equal(t, []string{"PG", "C", "SF"}, got)

	train, err := clf.Predict(scaled)
	require.NoError(t, err)
	assert.Equal(t, 1.0, Accuracy(y, train))
}

// fixedMachine は Decision(x) = sign の定数を返す1次元の2クラス分類器
func fixedMachine(sign float64) *BinaryClassifier {
	return &BinaryClassifier{
		kernel:         LinearKernel{},
		supportVectors: [][]float64{{1}},
		coef:           []float64{sign},
	}
}

func TestSVC_PredictTieBreak(t *testing.T) {
	// machines は (A,B) (A,C) (B,C) の順で、正なら pos 側に投票
	tests := []struct {
		name  string
		signs [3]float64
		want  string
	}{
		{"three way tie picks first class", [3]float64{1, -1, 1}, "A"},
		{"reverse three way tie picks first class", [3]float64{-1, 1, -1}, "A"},
		{"clear winner", [3]float64{-1, 1, 1}, "B"},
		{"last class wins outright", [3]float64{1, -1, -1}, "C"},
		{"zero decision votes negative side", [3]float64{0, 0, 0}, "C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &SVC{
				classes: []string{"A", "B", "C"},
				dim:     1,
				machines: []pairMachine{
					{pos: 0, neg: 1, clf: fixedMachine(tt.signs[0])},
					{pos: 0, neg: 2, clf: fixedMachine(tt.signs[1])},
					{pos: 1, neg: 2, clf: fixedMachine(tt.signs[2])},
				},
			}
			got, err := s.Predict([][]float64{{1}})
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, got)
		})
	}
}

func TestSVC_SingleClass(t *testing.T) {
	clf := NewSVC()
	require.NoError(t, clf.Fit(context.Background(), [][]float64{{1}, {2}}, []string{"C", "C"}))

	got, err := clf.Predict([][]float64{{5}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, got)
}

func TestSVC_Errors(t *testing.T) {
	clf := NewSVC()

	_, err := clf.Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.ErrorIs(t, clf.Fit(context.Background(), nil, nil), ErrEmptyTrainingSet)
	assert.ErrorIs(t, clf.Fit(context.Background(), [][]float64{{1}}, []string{"PG", "C"}), ErrDimensionMismatch)

	X, y := clusters()
	require.NoError(t, clf.Fit(context.Background(), X, y))
	_, err = clf.Predict([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSVC_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	X, y := clusters()
	err := NewSVC().Fit(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassificationReport(t *testing.T) {
	actual := []string{"A", "A", "B", "B"}
	predicted := []string{"A", "B", "B", "B"}

	r, err := ClassificationReport(actual, predicted)
	require.NoError(t, err)
	require.Len(t, r.Classes, 2)

	a := r.Classes[0]
	assert.Equal(t, "A", a.Label)
	assert.InDelta(t, 1.0, a.Precision, 1e-9)
	assert.InDelta(t, 0.5, a.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, a.F1, 1e-9)
	assert.Equal(t, 2, a.Support)

	assert.InDelta(t, 0.75, r.Accuracy, 1e-9)
	assert.InDelta(t, 5.0/6.0, r.MacroAvg.Precision, 1e-9)
	assert.InDelta(t, 5.0/6.0, r.WeightedAvg.Precision, 1e-9)

	text := r.String()
	assert.Contains(t, text, "precision")
	assert.Contains(t, text, "accuracy")
	assert.Contains(t, text, "weighted avg")
	assert.True(t, strings.Contains(text, "0.75"))
}

func TestClassificationReport_ZeroDivision(t *testing.T) {
	r, err := ClassificationReport([]string{"A"}, []string{"B"})
	require.NoError(t, err)

	for _, c := range r.Classes {
		assert.Equal(t, 0.0, c.Precision)
		assert.Equal(t, 0.0, c.Recall)
		assert.Equal(t, 0.0, c.F1)
	}

	_, err = ClassificationReport([]string{"A"}, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, Accuracy(nil, nil))
	assert.Equal(t, 0.5, Accuracy([]string{"PG", "C"}, []string{"PG", "SF"}))
}
