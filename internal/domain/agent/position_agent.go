package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
	"github.com/Nyukimin/nbagent/pkg/logger"
)

const (
	component          = "agent"
	classifierToolName = "create_classifier"

	DefaultMaxIterations = 10
	DefaultMaxTokens     = 4096
)

// Config はエージェントループの設定
type Config struct {
	MaxIterations int
	MaxTokens     int
	Temperature   float64
	SystemPrompt  string
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	return c
}

// Turn は1ターン分の実行結果
type Turn struct {
	Messages     []llm.Message // このターンで追加されたメッセージ（user含む）
	Response     string
	ToolsUsed    []string
	Iterations   int
	FallbackUsed bool
	FallbackPath string // フォールバックで分類したCSV
}

// PositionAgent はツール呼び出しでNBAポジション分類を進める会話エージェント
type PositionAgent struct {
	provider llm.LLMProvider
	tools    ToolRunner
	config   Config
}

// NewPositionAgent は新しいPositionAgentを作成
func NewPositionAgent(provider llm.LLMProvider, tools ToolRunner, cfg Config) *PositionAgent {
	return &PositionAgent{
		provider: provider,
		tools:    tools,
		config:   cfg.withDefaults(),
	}
}

// ProviderName は使用中のLLMプロバイダ名を返す
func (a *PositionAgent) ProviderName() string {
	return a.provider.Name()
}

// Run は履歴とユーザー入力から1ターンを実行する
// ツール呼び出しがなくなるまで LLM → ツール実行 → LLM を繰り返す
func (a *PositionAgent) Run(ctx context.Context, history []llm.Message, userText string, observer Observer) (Turn, error) {
	if observer == nil {
		observer = nopObserver{}
	}

	userMsg := llm.Message{Role: llm.RoleUser, Content: userText}
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, userMsg)

	turn := Turn{Messages: []llm.Message{userMsg}}
	definitions := a.tools.Definitions()

	for turn.Iterations < a.config.MaxIterations {
		turn.Iterations++

		logger.DebugCF(component, "LLM iteration", map[string]interface{}{
			"iteration": turn.Iterations,
			"max":       a.config.MaxIterations,
			"messages":  len(messages),
			"provider":  a.provider.Name(),
		})

		resp, err := a.provider.Generate(ctx, llm.GenerateRequest{
			Messages:     messages,
			Tools:        definitions,
			MaxTokens:    a.config.MaxTokens,
			Temperature:  a.config.Temperature,
			SystemPrompt: a.config.SystemPrompt,
		})
		if err != nil {
			return turn, fmt.Errorf("LLM call failed: %w", err)
		}

		// ツール呼び出しなし → 最終応答
		if !resp.HasToolCalls() {
			assistant := llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
			turn.Messages = append(turn.Messages, assistant)

			if path, ok := a.needsFallback(turn, resp.Content); ok {
				turn.FallbackUsed = true
				turn.FallbackPath = path
				result, _ := a.executeTool(ctx, &turn, classifierToolName, map[string]interface{}{"filepath": path}, observer)
				turn.Messages[len(turn.Messages)-1].Content = joinNonEmpty(resp.Content, result)
				turn.Response = result
				return turn, ctx.Err()
			}

			turn.Response = resp.Content
			observer.OnEvent(ctx, Event{Kind: EventAssistant, Content: resp.Content, Time: time.Now()})
			return turn, nil
		}

		assistant := llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		messages = append(messages, assistant)
		turn.Messages = append(turn.Messages, assistant)

		if resp.Content != "" {
			observer.OnEvent(ctx, Event{Kind: EventAssistant, Content: resp.Content, Time: time.Now()})
		}

		for _, tc := range resp.ToolCalls {
			content, failed := a.executeTool(ctx, &turn, tc.Name, tc.Arguments, observer)
			if err := ctx.Err(); err != nil {
				return turn, err
			}
			toolMsg := llm.Message{
				Role:       llm.RoleTool,
				Content:    content,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				IsError:    failed,
			}
			messages = append(messages, toolMsg)
			turn.Messages = append(turn.Messages, toolMsg)
		}
	}

	logger.WarnCF(component, "Max iterations reached", map[string]interface{}{
		"iterations": turn.Iterations,
	})
	return turn, ErrMaxIterations
}

// needsFallback はモデルが create_classifier を文章で示しただけの場合を検出する
// 同じターンで既に実行済みなら再実行しない
func (a *PositionAgent) needsFallback(turn Turn, content string) (string, bool) {
	for _, name := range turn.ToolsUsed {
		if name == classifierToolName {
			return "", false
		}
	}
	path, ok := fallbackCSVPath(content)
	if !ok {
		return "", false
	}
	logger.InfoCF(component, "Fallback tool execution", map[string]interface{}{
		"tool":     classifierToolName,
		"csv_path": path,
	})
	return path, true
}

// executeTool はツールを実行し、LLMへ返す内容と失敗したかを返す
func (a *PositionAgent) executeTool(ctx context.Context, turn *Turn, name string, args map[string]interface{}, observer Observer) (string, bool) {
	turn.ToolsUsed = append(turn.ToolsUsed, name)

	result, err := a.tools.Execute(ctx, name, args)
	content := result.ForLLM
	if content == "" && err != nil {
		content = err.Error()
	}
	if err != nil {
		logger.WarnCF(component, "Tool execution failed", map[string]interface{}{
			"tool":  name,
			"error": err.Error(),
		})
	}

	failed := result.IsError || err != nil
	display := result.Display()
	if display == "" {
		display = content
	}
	observer.OnEvent(ctx, Event{
		Kind:    EventTool,
		Tool:    name,
		Content: display,
		IsError: failed,
		Time:    time.Now(),
	})
	return content, failed
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "\n\n" + b
}
