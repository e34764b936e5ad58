package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/Nyukimin/nbagent/internal/application/classifier"
	"github.com/Nyukimin/nbagent/internal/domain/llm"
	"github.com/Nyukimin/nbagent/internal/domain/stats"
)

// 組み込みツール名
const (
	ToolReadCSV          = "read_csv"
	ToolWriteOutput      = "write_output"
	ToolCreateClassifier = "create_classifier"
	ToolExecuteCommand   = "execute_command"
	ToolFileList         = "file_list"
)

const (
	previewRows     = 5
	maxListEntries  = 1000
	maxOutputLength = 16 * 1024
)

// Classifier はSVM分類パイプラインの抽象化
type Classifier interface {
	Config() classifier.Config
	RunTo(ctx context.Context, csvPath, outputPath string) (classifier.Result, error)
}

// registerTools は利用可能なツールを登録
func (r *ToolRunner) registerTools() {
	builtins := []Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        ToolReadCSV,
				Description: "Reads a CSV file and returns information about its structure and first few rows.",
				Parameters: objectSchema([]string{"filepath"}, map[string]*jsonschema.Schema{
					"filepath": stringProp("Path to the CSV file"),
				}),
			},
			Func: r.executeReadCSV,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        ToolWriteOutput,
				Description: "Writes text to a file.",
				Parameters: objectSchema([]string{"filepath", "contents"}, map[string]*jsonschema.Schema{
					"filepath": stringProp("Destination file path"),
					"contents": stringProp("Text to write"),
				}),
			},
			Func: r.executeWriteOutput,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        ToolFileList,
				Description: "Lists the files in a directory.",
				Parameters: objectSchema([]string{"path"}, map[string]*jsonschema.Schema{
					"path": stringProp("Directory to list"),
				}),
			},
			Func: r.executeFileList,
		},
	}

	if r.classifier != nil {
		builtins = append(builtins, Tool{
			Definition: llm.ToolDefinition{
				Name: ToolCreateClassifier,
				Description: "Trains an SVM classifier to predict NBA player positions from stats. " +
					"Outputs predictions to sol.csv with columns: player, actual position, predicted position.",
				Parameters: objectSchema([]string{"filepath"}, map[string]*jsonschema.Schema{
					"filepath": stringProp("Path to the NBA player statistics CSV"),
				}),
			},
			Func: r.executeCreateClassifier,
		})
	}

	if r.config.AllowExec {
		builtins = append(builtins, Tool{
			Definition: llm.ToolDefinition{
				Name:        ToolExecuteCommand,
				Description: "Executes a shell command in the workspace and returns its output.",
				Parameters: objectSchema([]string{"command"}, map[string]*jsonschema.Schema{
					"command": stringProp("Shell command to run"),
				}),
			},
			Func: r.executeCommand,
		})
	}

	for _, t := range builtins {
		// 組み込みツール名は重複しない
		_ = r.Register(t)
	}
}

// executeReadCSV はCSVの構造と先頭行を返す
func (r *ToolRunner) executeReadCSV(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	path, err := stringArg(args, "filepath")
	if err != nil {
		return ToolResult{}, err
	}

	table, err := stats.ReadTable(r.resolvePath(path))
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error reading CSV: %v", err)), nil
	}

	return NewResult(table.Describe(previewRows)), nil
}

// executeWriteOutput はファイルに書き込む
func (r *ToolRunner) executeWriteOutput(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	path, err := stringArg(args, "filepath")
	if err != nil {
		return ToolResult{}, err
	}
	contents, err := stringArg(args, "contents")
	if err != nil {
		return ToolResult{}, err
	}

	target := r.resolvePath(path)

	// ディレクトリが存在しない場合は作成
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return ErrorResult(fmt.Sprintf("Error writing to file: %v", err)), nil
	}
	if err := os.WriteFile(target, []byte(contents), 0644); err != nil {
		return ErrorResult(fmt.Sprintf("Error writing to file: %v", err)), nil
	}

	return NewResult(fmt.Sprintf("Successfully written to %s", path)), nil
}

// executeCreateClassifier はSVM分類パイプラインを実行
func (r *ToolRunner) executeCreateClassifier(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	path, err := stringArg(args, "filepath")
	if err != nil {
		return ToolResult{}, err
	}

	// 入力と同じくワークスペース基準で書き出す
	output := r.resolvePath(r.classifier.Config().OutputPath)
	result, err := r.classifier.RunTo(ctx, r.resolvePath(path), output)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ToolResult{}, err
		}
		return ErrorResult(classifier.ErrorMessage(err)), nil
	}

	return NewResult(result.Summary()), nil
}

// executeCommand はシェルコマンドを実行
func (r *ToolRunner) executeCommand(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return ToolResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.ExecTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.config.Workspace
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	text := truncate(string(output))

	if ctx.Err() == context.DeadlineExceeded {
		return ErrorResult(fmt.Sprintf("Error executing command: timed out after %s\n%s", r.config.ExecTimeout, text)), nil
	}
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error executing command: %v\n%s", err, text)), nil
	}
	if strings.TrimSpace(text) == "" {
		return NewResult("Command executed successfully (no output)"), nil
	}

	return NewResult(text), nil
}

// executeFileList はディレクトリ内のファイル一覧を取得
func (r *ToolRunner) executeFileList(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return ToolResult{}, err
	}

	entries, err := os.ReadDir(r.resolvePath(path))
	if err != nil {
		return ErrorResult(fmt.Sprintf("Error listing directory: %v", err)), nil
	}

	var result strings.Builder
	for i, entry := range entries {
		if i >= maxListEntries {
			result.WriteString("... (truncated, too many entries)\n")
			break
		}
		if entry.IsDir() {
			result.WriteString(fmt.Sprintf("%s/\n", entry.Name()))
		} else {
			result.WriteString(fmt.Sprintf("%s\n", entry.Name()))
		}
	}

	return NewResult(result.String()), nil
}

// truncate は maxOutputLength バイトを超える出力を切り詰める
// マルチバイト文字の途中では切らない
func truncate(s string) string {
	if len(s) <= maxOutputLength {
		return s
	}
	cut := maxOutputLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (output truncated)"
}
