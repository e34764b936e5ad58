package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// 予測CSVのカラム名
const (
	HeaderPlayerName = "Player name"
	HeaderActual     = "player's actual position"
	HeaderPredicted  = "predicted position"
)

// Prediction はテストセット1行分の予測結果
type Prediction struct {
	Player    string
	Actual    string
	Predicted string
}

// Correct は予測が正解か返す
func (p Prediction) Correct() bool {
	return p.Actual == p.Predicted
}

// WritePredictions は予測結果をCSVに書き込み、絶対パスとファイルサイズを返す
func WritePredictions(path string, predictions []Prediction) (string, int64, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(absPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create predictions file: %w", err)
	}

	w := csv.NewWriter(f)
	records := make([][]string, 0, len(predictions)+1)
	records = append(records, []string{HeaderPlayerName, HeaderActual, HeaderPredicted})
	for _, p := range predictions {
		records = append(records, []string{p.Player, p.Actual, p.Predicted})
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return "", 0, fmt.Errorf("failed to write predictions: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close predictions file: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", 0, fmt.Errorf("predictions file was not created: %w", err)
	}
	return absPath, info.Size(), nil
}
