package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
	"github.com/Nyukimin/nbagent/internal/domain/tool"
	"github.com/Nyukimin/nbagent/pkg/logger"
	"github.com/Nyukimin/nbagent/pkg/metrics"
)

const component = "tools"

var (
	// ErrToolNotFound は未登録のツール名が指定された場合のエラー
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolExists は同名ツールが登録済みの場合のエラー
	ErrToolExists = errors.New("tool already registered")
	// ErrInvalidArgument はツール引数が不正な場合のエラー
	ErrInvalidArgument = errors.New("invalid argument")
)

// ToolResult はツール実行結果
type ToolResult = tool.Result

// NewResult は表示とLLM向けが同じ結果を作る
func NewResult(text string) ToolResult {
	return ToolResult{ForLLM: text, ForUser: text}
}

// ErrorResult はエラー結果を作る
func ErrorResult(text string) ToolResult {
	return ToolResult{ForLLM: text, ForUser: text, IsError: true}
}

// ToolFunc はツール実行関数の型
type ToolFunc func(ctx context.Context, args map[string]interface{}) (ToolResult, error)

// Tool はツール定義と実装の組
type Tool struct {
	Definition llm.ToolDefinition
	Func       ToolFunc
}

// Config はツール実行環境の設定
type Config struct {
	Workspace   string        // 相対パスの基準ディレクトリ
	AllowExec   bool          // execute_command を登録するか
	ExecTimeout time.Duration // execute_command のタイムアウト
}

func (c Config) withDefaults() Config {
	if c.Workspace == "" {
		c.Workspace = "."
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 30 * time.Second
	}
	return c
}

// ToolRunner はツール実行の実装
type ToolRunner struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	config     Config
	classifier Classifier
	metrics    *metrics.Manager
}

// NewToolRunner は組み込みツールを登録したToolRunnerを作成
// classifier が nil の場合 create_classifier は登録しない
func NewToolRunner(cfg Config, classifier Classifier, m *metrics.Manager) *ToolRunner {
	if m == nil {
		m = metrics.Default()
	}
	runner := &ToolRunner{
		tools:      make(map[string]Tool),
		config:     cfg.withDefaults(),
		classifier: classifier,
		metrics:    m,
	}

	// ツール登録
	runner.registerTools()

	return runner
}

// Register はツールを追加する
func (r *ToolRunner) Register(t Tool) error {
	name := t.Definition.Name
	if name == "" {
		return fmt.Errorf("%w: tool name is empty", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, name)
	}
	r.tools[name] = t
	return nil
}

// Execute はツールを実行
// ハンドラのエラーは IsError の結果とともに返す
func (r *ToolRunner) Execute(ctx context.Context, toolName string, args map[string]interface{}) (ToolResult, error) {
	r.mu.RLock()
	entry, exists := r.tools[toolName]
	r.mu.RUnlock()

	if !exists {
		r.metrics.RecordToolCall(toolName, true)
		return ErrorResult(fmt.Sprintf("Error: unknown tool %q", toolName)), fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	start := time.Now()
	result, err := entry.Func(ctx, args)
	if err != nil {
		if result.ForLLM == "" {
			result = ErrorResult("Error: " + err.Error())
		}
		result.IsError = true
		err = fmt.Errorf("tool %s execution failed: %w", toolName, err)
	}

	r.metrics.RecordToolCall(toolName, result.IsError)
	logger.InfoCF(component, "tool executed", map[string]interface{}{
		"tool":     toolName,
		"is_error": result.IsError,
		"elapsed":  time.Since(start).String(),
		"bytes":    len(result.ForLLM),
	})

	return result, err
}

// List は利用可能なツール一覧を名前順で返す
func (r *ToolRunner) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]string, 0, len(r.tools))
	for name := range r.tools {
		tools = append(tools, name)
	}
	sort.Strings(tools)
	return tools, nil
}

// Definitions はLLMに提示するツール定義を名前順で返す
func (r *ToolRunner) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// resolvePath は相対パスをワークスペース基準に解決する
func (r *ToolRunner) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.config.Workspace, path)
}

func stringArg(args map[string]interface{}, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("%w: '%s' argument is required and must be a string", ErrInvalidArgument, name)
	}
	return v, nil
}

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func stringProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}
