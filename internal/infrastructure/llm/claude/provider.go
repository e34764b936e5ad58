package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/"
	defaultMaxTokens = 4096
)

// ClaudeProvider はClaude Messages APIプロバイダーの実装
type ClaudeProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  anthropic.Client
}

// NewClaudeProvider は新しいClaudeProviderを作成
func NewClaudeProvider(apiKey, model string) *ClaudeProvider {
	p := &ClaudeProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
	}
	p.client = p.newClient()
	return p
}

// SetBaseURL はベースURLを設定（テスト用）
func (p *ClaudeProvider) SetBaseURL(url string) {
	p.baseURL = url
	p.client = p.newClient()
}

func (p *ClaudeProvider) newClient() anthropic.Client {
	return anthropic.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithMaxRetries(1),
	)
}

// Generate はLLM生成を実行
func (p *ClaudeProvider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	system, messages := p.convertMessages(req)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
		Tools:     convertTools(req.Tools),
	}

	// システムプロンプト
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	// Temperature（0.0-1.0の範囲）
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return llm.GenerateResponse{}, fmt.Errorf("claude API error: status=%d: %w", apiErr.StatusCode, err)
		}
		return llm.GenerateResponse{}, fmt.Errorf("failed to execute request: %w", err)
	}

	out := llm.GenerateResponse{
		TokensUsed:   int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		FinishReason: string(msg.StopReason),
	}

	var text []string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			args := map[string]interface{}{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return llm.GenerateResponse{}, fmt.Errorf("failed to decode tool input: %w", err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	out.Content = strings.Join(text, "\n")

	return out, nil
}

// Name はプロバイダー名を返す
func (p *ClaudeProvider) Name() string {
	return fmt.Sprintf("claude-%s", p.model)
}

// convertMessages はメッセージをClaude形式に変換
// 連続する tool メッセージは1つの user メッセージの tool_result ブロックにまとめる
func (p *ClaudeProvider) convertMessages(req llm.GenerateRequest) (string, []anthropic.MessageParam) {
	systemParts := []string{}
	if req.SystemPrompt != "" {
		systemParts = append(systemParts, req.SystemPrompt)
	}

	var messages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	// Messages API は user から始まる必要があるので、最初の user より前の会話は捨てる
	start := slices.IndexFunc(req.Messages, func(m llm.Message) bool { return m.Role == llm.RoleUser })
	if start < 0 {
		start = len(req.Messages)
	}
	for _, msg := range req.Messages[:start] {
		if msg.Role == llm.RoleSystem {
			systemParts = append(systemParts, msg.Content)
		}
	}

	for _, msg := range req.Messages[start:] {
		if msg.Role == llm.RoleTool {
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
			continue
		}
		flushResults()

		switch msg.Role {
		case llm.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case llm.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case llm.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Arguments
				if input == nil {
					input = map[string]interface{}{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flushResults()

	return strings.Join(systemParts, "\n\n"), messages
}

func convertTools(defs []llm.ToolDefinition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		params := d.ParametersMap()
		schema := anthropic.ToolInputSchemaParam{Properties: params["properties"]}
		if required, ok := params["required"].([]interface{}); ok {
			for _, r := range required {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: schema,
			},
		})
	}
	return tools
}
