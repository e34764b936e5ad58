package grading

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/Nyukimin/nbagent/internal/domain/stats"
)

// 採点項目
const (
	SubscoreTestSize = "test_size_correct"
	SubscoreSplit    = "correct_test_split"
	SubscoreAccuracy = "classification_accuracy"
)

const (
	testRatio     = 0.2
	trainRatio    = 0.8
	sizeTolerance = 2
	bonusCutoff   = 0.95
)

// DefaultWeights は採点項目ごとの重み
var DefaultWeights = map[string]float64{
	SubscoreTestSize: 0.2,
	SubscoreSplit:    0.3,
	SubscoreAccuracy: 0.5,
}

// Result は採点結果
type Result struct {
	Score     float64                `json:"score"`
	Subscores map[string]float64     `json:"subscores,omitempty"`
	Weights   map[string]float64     `json:"weights,omitempty"`
	Feedback  string                 `json:"feedback"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Grade は予測CSVを元データと照合して採点する
func Grade(predictionsPath, datasetPath string) Result {
	if _, err := os.Stat(predictionsPath); errors.Is(err, os.ErrNotExist) {
		return Result{
			Feedback: "sol.csv file not found. Please save your predictions to sol.csv",
			Details:  map[string]interface{}{"error": "missing_predictions_file"},
		}
	}

	predictions, err := stats.ReadTable(predictionsPath)
	if err != nil {
		return processingError(err)
	}

	actualCol, predictedCol := findColumns(predictions.Columns)
	if actualCol < 0 || predictedCol < 0 {
		return Result{
			Feedback: fmt.Sprintf("sol.csv must contain columns with 'actual' and 'predicted' in their names. Found columns: %s",
				stats.FormatColumns(predictions.Columns)),
			Details: map[string]interface{}{
				"error":   "missing_required_columns",
				"columns": predictions.Columns,
			},
		}
	}

	dataset, err := stats.ReadTable(datasetPath)
	if err != nil {
		return processingError(err)
	}
	positions, ok := dataset.Column(stats.ColumnPosition)
	if !ok {
		return processingError(fmt.Errorf("dataset has no %q column", stats.ColumnPosition))
	}

	subscores := make(map[string]float64, len(DefaultWeights))
	details := make(map[string]interface{})
	var feedback []string

	// 1. テストセットのサイズ
	totalRows := len(dataset.Rows)
	expectedSize := int(testRatio * float64(totalRows))
	actualSize := len(predictions.Rows)
	subscores[SubscoreTestSize] = 1.0
	if abs(actualSize-expectedSize) > sizeTolerance {
		subscores[SubscoreTestSize] = 0.5
		feedback = append(feedback, fmt.Sprintf("Test set size: %d, expected: ~%d", actualSize, expectedSize))
	}

	// 2. テストセットが元データ末尾の20%か
	actual := make([]string, actualSize)
	predicted := make([]string, actualSize)
	for i, row := range predictions.Rows {
		actual[i] = stats.NormalizeLabel(row[actualCol])
		predicted[i] = stats.NormalizeLabel(row[predictedCol])
	}

	testStart := int(trainRatio * float64(totalRows))
	expected := make([]string, 0, totalRows-testStart)
	for _, pos := range positions[testStart:] {
		expected = append(expected, stats.NormalizeLabel(pos))
	}
	subscores[SubscoreSplit] = 0.0
	if slices.Equal(actual, expected) {
		subscores[SubscoreSplit] = 1.0
	} else {
		feedback = append(feedback, "The 'actual' values don't match the expected test set (last 20% of rows)")
	}

	// 3. 正解率
	accuracy := 0.0
	if actualSize > 0 {
		correct := 0
		for i := range actual {
			if actual[i] == predicted[i] {
				correct++
			}
		}
		accuracy = float64(correct) / float64(actualSize)
		details["accuracy"] = accuracy
		details["classification_error"] = 1.0 - accuracy
		details["correct_predictions"] = correct
		details["total_predictions"] = actualSize
		feedback = append(feedback,
			fmt.Sprintf("Classification accuracy: %.3f", accuracy),
			fmt.Sprintf("Classification error: %.3f", 1.0-accuracy))
	} else {
		feedback = append(feedback, "Could not calculate accuracy due to mismatched array lengths")
	}
	subscores[SubscoreAccuracy] = accuracy

	// 重み付き合計。全項目が満点に近ければ正解率を下限にする
	weights := make(map[string]float64, len(DefaultWeights))
	score := 0.0
	allHigh := true
	for _, key := range slices.Sorted(maps.Keys(DefaultWeights)) {
		w := DefaultWeights[key]
		weights[key] = w
		score += subscores[key] * w
		if subscores[key] < bonusCutoff {
			allHigh = false
		}
	}
	if allHigh && accuracy > score {
		score = accuracy
	}

	details["test_set_size"] = actualSize
	details["expected_test_size"] = expectedSize

	result := Result{
		Score:     score,
		Subscores: subscores,
		Weights:   weights,
		Feedback:  "Task completed successfully!",
		Details:   details,
	}
	if len(feedback) > 0 {
		result.Feedback = strings.Join(feedback, " | ")
	}
	return result
}

// findColumns は 'actual' / 'predicted' を含むカラムを探す（大文字小文字を無視）
func findColumns(columns []string) (int, int) {
	actual, predicted := -1, -1
	for i, col := range columns {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "actual") {
			actual = i
		} else if strings.Contains(lower, "predicted") {
			predicted = i
		}
	}
	return actual, predicted
}

func processingError(err error) Result {
	return Result{
		Feedback: fmt.Sprintf("Error processing predictions: %v", err),
		Details: map[string]interface{}{
			"error":     "processing_error",
			"exception": err.Error(),
		},
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
