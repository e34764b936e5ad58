package svm

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrEmptyTrainingSet は学習データが空の場合のエラー
	ErrEmptyTrainingSet = errors.New("training set is empty")
	// ErrDimensionMismatch は行数や特徴量次元が揃っていない場合のエラー
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotFitted は Fit 前に Transform/Predict を呼んだ場合のエラー
	ErrNotFitted = errors.New("model is not fitted")
)

// StandardScaler は特徴量ごとに平均0・分散1へ標準化する
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Fit は特徴量ごとの平均と母標準偏差を計算する
func (s *StandardScaler) Fit(X [][]float64) error {
	dim, err := dimensionOf(X)
	if err != nil {
		return err
	}

	s.Mean = make([]float64, dim)
	s.Scale = make([]float64, dim)
	column := make([]float64, len(X))
	for j := 0; j < dim; j++ {
		for i, row := range X {
			column[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return nil
}

// Transform は標準化した新しい行列を返す
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}

	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrDimensionMismatch, i, len(row), len(s.Mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform は Fit と Transform をまとめて行う
func (s *StandardScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func dimensionOf(X [][]float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	dim := len(X[0])
	for i, row := range X {
		if len(row) != dim {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrDimensionMismatch, i, len(row), dim)
		}
	}
	return dim, nil
}
