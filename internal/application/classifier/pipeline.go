package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Nyukimin/nbagent/internal/domain/stats"
	"github.com/Nyukimin/nbagent/internal/domain/svm"
	"github.com/Nyukimin/nbagent/pkg/jobid"
	"github.com/Nyukimin/nbagent/pkg/logger"
	"github.com/Nyukimin/nbagent/pkg/metrics"
)

const component = "classifier"

// DefaultOutputPath は予測CSVの既定の出力先
const DefaultOutputPath = "sol.csv"

// Config はパイプラインの設定
type Config struct {
	OutputPath string
	TrainRatio float64
	MinSamples int
	C          float64
}

func (c Config) withDefaults() Config {
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.TrainRatio <= 0 || c.TrainRatio >= 1 {
		c.TrainRatio = 0.8
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
	if c.C <= 0 {
		c.C = 1.0
	}
	return c
}

// InputError は入力データが学習に使えない場合のエラー
// Message はユーザー（LLM）向けの文言
type InputError struct {
	Message string
	Err     error
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Unwrap() error {
	return e.Err
}

var (
	ErrFileNotFound  = errors.New("file not found")
	ErrNotEnoughData = errors.New("not enough data for training")
	ErrNoTestData    = errors.New("no test data available after split")
)

// ErrorMessage はパイプラインのエラーをツール出力用の文言に変換する
func ErrorMessage(err error) string {
	var ie *InputError
	if errors.As(err, &ie) {
		return "Error: " + ie.Message
	}
	return fmt.Sprintf("Error in create_classifier: %v", err)
}

// Result は1回の分類実行の結果
type Result struct {
	RunID        string
	TotalSamples int
	TrainSamples int
	TestSamples  int
	FeatureNames []string
	Accuracy     float64
	Correct      int
	Iterations   int
	Report       svm.Report
	OutputPath   string
	FileSize     int64
	Predictions  []stats.Prediction
	Elapsed      time.Duration
}

// Summary はツール出力用の結果テキストを返す
func (r Result) Summary() string {
	var b strings.Builder
	b.WriteString("✅ SVM Classification Complete!\n\n")
	b.WriteString("Data Summary:\n")
	fmt.Fprintf(&b, "- Total samples: %d\n", r.TotalSamples)
	fmt.Fprintf(&b, "- Training samples: %d\n", r.TrainSamples)
	fmt.Fprintf(&b, "- Test samples: %d\n", r.TestSamples)
	fmt.Fprintf(&b, "- Features used: %d\n", len(r.FeatureNames))
	fmt.Fprintf(&b, "- Feature columns: %s\n\n", stats.FormatColumns(r.FeatureNames))
	b.WriteString("Results:\n")
	fmt.Fprintf(&b, "- Accuracy: %.3f\n", r.Accuracy)
	fmt.Fprintf(&b, "- Output file: %s\n", r.OutputPath)
	fmt.Fprintf(&b, "- File size: %d bytes\n", r.FileSize)
	fmt.Fprintf(&b, "- Predictions count: %d\n\n", len(r.Predictions))
	b.WriteString("Classification Report:\n")
	b.WriteString(r.Report.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "SUCCESS: sol.csv has been created with %d predictions.\n", len(r.Predictions))
	fmt.Fprintf(&b, "File location: %s\n", r.OutputPath)
	return b.String()
}

// Pipeline はCSVの読み込みから予測CSVの出力までを行う
type Pipeline struct {
	config  Config
	metrics *metrics.Manager
	runIDs  *jobid.Generator
}

// NewPipeline は新しいPipelineを作成
func NewPipeline(cfg Config, m *metrics.Manager, runIDs *jobid.Generator) *Pipeline {
	if m == nil {
		m = metrics.Default()
	}
	if runIDs == nil {
		runIDs = jobid.NewGenerator(jobid.DefaultPrefix)
	}
	return &Pipeline{
		config:  cfg.withDefaults(),
		metrics: m,
		runIDs:  runIDs,
	}
}

// Config は有効な設定を返す
func (p *Pipeline) Config() Config {
	return p.config
}

// Run は csvPath の選手データでSVMを学習し、テストセットの予測を設定の出力先に書き出す
func (p *Pipeline) Run(ctx context.Context, csvPath string) (Result, error) {
	return p.RunTo(ctx, csvPath, p.config.OutputPath)
}

// RunTo は Run と同じだが予測CSVを outputPath に書き出す
func (p *Pipeline) RunTo(ctx context.Context, csvPath, outputPath string) (Result, error) {
	if outputPath == "" {
		outputPath = p.config.OutputPath
	}
	start := time.Now()
	runID := p.runIDs.Next()

	logger.InfoCF(component, "classifier run started", map[string]interface{}{
		"run_id": runID,
		"csv":    csvPath,
		"output": outputPath,
	})

	result, err := p.run(ctx, csvPath, outputPath)
	result.RunID = runID
	result.Elapsed = time.Since(start)

	p.metrics.RecordClassifierRun(err, result.Accuracy, result.TrainSamples, result.TestSamples)
	if err != nil {
		logger.WarnCF(component, "classifier run failed", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
		return result, err
	}

	logger.InfoCF(component, "classifier run completed", map[string]interface{}{
		"run_id":   runID,
		"accuracy":   result.Accuracy,
		"correct":    result.Correct,
		"train":      result.TrainSamples,
		"test":       result.TestSamples,
		"iterations": result.Iterations,
		"output":     result.OutputPath,
		"elapsed":    result.Elapsed.String(),
	})
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, csvPath, outputPath string) (Result, error) {
	// 1. ファイル存在確認
	if _, err := os.Stat(csvPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, &InputError{
				Message: fmt.Sprintf("File %s not found.", csvPath),
				Err:     ErrFileNotFound,
			}
		}
		return Result{}, fmt.Errorf("failed to stat csv: %w", err)
	}

	// 2. 読み込み・整形・特徴量化
	table, err := stats.ReadTable(csvPath)
	if err != nil {
		return Result{}, err
	}
	cleaned, err := stats.Clean(table)
	if err != nil {
		if errors.Is(err, stats.ErrMissingColumns) {
			return Result{}, &InputError{
				Message: fmt.Sprintf("CSV must contain 'Player' and 'Pos' columns. Found columns: %s", stats.FormatColumns(table.Columns)),
				Err:     err,
			}
		}
		return Result{}, err
	}
	ds, err := stats.BuildDataset(cleaned)
	if err != nil {
		if errors.Is(err, stats.ErrNoNumericColumns) {
			return Result{}, &InputError{
				Message: fmt.Sprintf("No numeric columns found for training. Available columns: %s", stats.FormatColumns(cleaned.Columns)),
				Err:     err,
			}
		}
		return Result{}, err
	}

	// 3. サンプル数チェック
	n := ds.Len()
	if n < p.config.MinSamples {
		return Result{}, &InputError{
			Message: fmt.Sprintf("Not enough data for training. Only %d samples found.", n),
			Err:     ErrNotEnoughData,
		}
	}

	// 4. 標準化（全データで fit）と先頭からの順次分割
	var scaler svm.StandardScaler
	scaled, err := scaler.FitTransform(ds.Features)
	if err != nil {
		return Result{}, fmt.Errorf("failed to standardize features: %w", err)
	}
	ds.Features = scaled

	split := SplitIndex(n, p.config.TrainRatio)
	train := ds.Slice(0, split)
	test := ds.Slice(split, n)
	if test.Len() == 0 {
		return Result{}, &InputError{
			Message: "No test data available after split. Dataset too small.",
			Err:     ErrNoTestData,
		}
	}

	// 5. 学習と予測
	model := svm.NewSVC()
	model.C = p.config.C
	if err := model.Fit(ctx, train.Features, train.Labels); err != nil {
		return Result{}, fmt.Errorf("failed to train svm: %w", err)
	}
	predicted, err := model.Predict(test.Features)
	if err != nil {
		return Result{}, fmt.Errorf("failed to predict: %w", err)
	}

	predictions := make([]stats.Prediction, test.Len())
	correct := 0
	for i := range predictions {
		predictions[i] = stats.Prediction{
			Player:    test.Players[i],
			Actual:    test.Labels[i],
			Predicted: predicted[i],
		}
		if predictions[i].Correct() {
			correct++
		}
	}

	// 6. 予測CSVの書き出し
	absOutput, size, err := stats.WritePredictions(outputPath, predictions)
	if err != nil {
		return Result{}, &InputError{
			Message: fmt.Sprintf("Failed to create output file at %s", outputPath),
			Err:     err,
		}
	}

	// 7. 評価
	report, err := svm.ClassificationReport(test.Labels, predicted)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build classification report: %w", err)
	}

	return Result{
		TotalSamples: n,
		TrainSamples: train.Len(),
		TestSamples:  test.Len(),
		FeatureNames: ds.FeatureNames,
		Accuracy:     report.Accuracy,
		Correct:      correct,
		Iterations:   model.Iterations(),
		Report:       report,
		OutputPath:   absOutput,
		FileSize:     size,
		Predictions:  predictions,
	}, nil
}

// SplitIndex は学習データの件数 max(1, int(ratio*n)) を返す
func SplitIndex(n int, ratio float64) int {
	split := int(ratio * float64(n))
	if split < 1 {
		split = 1
	}
	if split > n {
		split = n
	}
	return split
}
