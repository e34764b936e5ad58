package svm

import (
	"fmt"
	"strings"
)

// Accuracy は正解率を返す（空の場合は 0）
func Accuracy(actual, predicted []string) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return 0
	}
	correct := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual))
}

// ClassMetrics はクラスごとの評価値
type ClassMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report は分類レポート
type Report struct {
	Classes     []ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
	Total       int
}

// ClassificationReport は precision / recall / f1-score / support を計算する
// ラベルは実測と予測の和集合をソートしたもの。分母が0の指標は0とする
func ClassificationReport(actual, predicted []string) (Report, error) {
	if len(actual) != len(predicted) {
		return Report{}, fmt.Errorf("%w: %d actual but %d predicted", ErrDimensionMismatch, len(actual), len(predicted))
	}

	labels := uniqueSorted(append(append([]string(nil), actual...), predicted...))
	tp := make(map[string]int, len(labels))
	predCount := make(map[string]int, len(labels))
	support := make(map[string]int, len(labels))
	for i := range actual {
		support[actual[i]]++
		predCount[predicted[i]]++
		if actual[i] == predicted[i] {
			tp[actual[i]]++
		}
	}

	r := Report{
		Accuracy: Accuracy(actual, predicted),
		Total:    len(actual),
		MacroAvg: ClassMetrics{Label: "macro avg", Support: len(actual)},
		WeightedAvg: ClassMetrics{
			Label:   "weighted avg",
			Support: len(actual),
		},
	}

	for _, label := range labels {
		m := ClassMetrics{
			Label:     label,
			Precision: safeDiv(float64(tp[label]), float64(predCount[label])),
			Recall:    safeDiv(float64(tp[label]), float64(support[label])),
			Support:   support[label],
		}
		m.F1 = safeDiv(2*m.Precision*m.Recall, m.Precision+m.Recall)
		r.Classes = append(r.Classes, m)

		r.MacroAvg.Precision += m.Precision
		r.MacroAvg.Recall += m.Recall
		r.MacroAvg.F1 += m.F1

		w := float64(m.Support)
		r.WeightedAvg.Precision += m.Precision * w
		r.WeightedAvg.Recall += m.Recall * w
		r.WeightedAvg.F1 += m.F1 * w
	}

	if k := float64(len(labels)); k > 0 {
		r.MacroAvg.Precision /= k
		r.MacroAvg.Recall /= k
		r.MacroAvg.F1 /= k
	}
	total := float64(len(actual))
	r.WeightedAvg.Precision = safeDiv(r.WeightedAvg.Precision, total)
	r.WeightedAvg.Recall = safeDiv(r.WeightedAvg.Recall, total)
	r.WeightedAvg.F1 = safeDiv(r.WeightedAvg.F1, total)

	return r, nil
}

// String はテキスト表形式のレポートを返す
func (r Report) String() string {
	width := len(r.WeightedAvg.Label)
	if width == 0 {
		width = len("weighted avg")
	}
	for _, c := range r.Classes {
		if len(c.Label) > width {
			width = len(c.Label)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		writeRow(&b, width, c)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.Total)
	writeRow(&b, width, r.MacroAvg)
	writeRow(&b, width, r.WeightedAvg)
	return b.String()
}

func writeRow(b *strings.Builder, width int, c ClassMetrics) {
	fmt.Fprintf(b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, c.Label, c.Precision, c.Recall, c.F1, c.Support)
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
