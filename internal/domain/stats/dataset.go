package stats

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNoNumericColumns は数値特徴量が1つもない場合のエラー
var ErrNoNumericColumns = errors.New("csv has no numeric feature columns")

// Dataset は学習用に整形済みの特徴量とラベル
type Dataset struct {
	Players      []string
	Labels       []string
	FeatureNames []string
	Features     [][]float64
	TotalRows    int
}

// Len はサンプル数を返す
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// Slice は [from, to) の範囲を共有するDatasetを返す
func (d *Dataset) Slice(from, to int) *Dataset {
	return &Dataset{
		Players:      d.Players[from:to],
		Labels:       d.Labels[from:to],
		FeatureNames: d.FeatureNames,
		Features:     d.Features[from:to],
		TotalRows:    to - from,
	}
}

// BuildDataset はCleanされたTableから特徴量行列を作る
// Player と Pos 以外で、空でないセルがすべて数値として解釈できるカラムを特徴量とする
func BuildDataset(t *Table) (*Dataset, error) {
	playerIdx := t.ColumnIndex(ColumnPlayer)
	posIdx := t.ColumnIndex(ColumnPosition)
	if playerIdx < 0 || posIdx < 0 {
		return nil, fmt.Errorf("%w. Found columns: %s", ErrMissingColumns, FormatColumns(t.Columns))
	}

	type column struct {
		name   string
		values []float64 // 欠損は NaN
	}

	var numeric []column
	for ci, name := range t.Columns {
		if ci == playerIdx || ci == posIdx {
			continue
		}
		values, ok := parseNumericColumn(t.Rows, ci)
		if !ok {
			continue
		}
		numeric = append(numeric, column{name: name, values: values})
	}
	if len(numeric) == 0 {
		return nil, ErrNoNumericColumns
	}

	// 欠損値はカラム平均で補完（全欠損なら 0）
	for _, col := range numeric {
		fill := columnMean(col.values)
		for i, v := range col.values {
			if math.IsNaN(v) {
				col.values[i] = fill
			}
		}
	}

	ds := &Dataset{
		Players:      make([]string, len(t.Rows)),
		Labels:       make([]string, len(t.Rows)),
		FeatureNames: make([]string, len(numeric)),
		Features:     make([][]float64, len(t.Rows)),
		TotalRows:    len(t.Rows),
	}
	for j, col := range numeric {
		ds.FeatureNames[j] = col.name
	}
	for i, row := range t.Rows {
		ds.Players[i] = strings.TrimSpace(row[playerIdx])
		ds.Labels[i] = NormalizeLabel(row[posIdx])
		features := make([]float64, len(numeric))
		for j, col := range numeric {
			features[j] = col.values[i]
		}
		ds.Features[i] = features
	}

	return ds, nil
}

// IsMissing は欠損値として扱うセルか判定する
func IsMissing(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "na", "nan", "n/a", "null", "none":
		return true
	}
	return false
}

func parseNumericColumn(rows [][]string, ci int) ([]float64, bool) {
	values := make([]float64, len(rows))
	for i, row := range rows {
		cell := row[ci]
		if IsMissing(cell) {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil || math.IsInf(v, 0) {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func columnMean(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
