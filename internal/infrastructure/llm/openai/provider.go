package openai

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
)

const defaultBaseURL = "https://api.openai.com/v1/"

// OpenAIProvider はOpenAI Chat Completions APIプロバイダーの実装
// OpenAI互換API（DeepSeekなど）にもベースURLを変えて利用する
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	prefix  string
	client  sdk.Client
}

// NewOpenAIProvider は新しいOpenAIProviderを作成
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return NewCompatibleProvider("openai", apiKey, model, defaultBaseURL)
}

// NewCompatibleProvider はOpenAI互換エンドポイント向けのプロバイダーを作成
// name は Name() の接頭辞になる
func NewCompatibleProvider(name, apiKey, model, baseURL string) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		prefix:  name,
		baseURL: baseURL,
	}
	p.client = p.newClient()
	return p
}

// SetBaseURL はベースURLを設定（テスト用）
func (p *OpenAIProvider) SetBaseURL(url string) {
	p.baseURL = url
	p.client = p.newClient()
}

func (p *OpenAIProvider) newClient() sdk.Client {
	return sdk.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithMaxRetries(1),
	)
}

// Generate はLLM生成を実行
func (p *OpenAIProvider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: p.convertMessages(req),
		Tools:    convertTools(req.Tools),
	}

	// MaxTokens
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(req.MaxTokens))
	}

	// Temperature
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return llm.GenerateResponse{}, fmt.Errorf("%s API error: status=%d: %w", p.prefix, apiErr.StatusCode, err)
		}
		return llm.GenerateResponse{}, fmt.Errorf("failed to execute request: %w", err)
	}

	if len(completion.Choices) == 0 {
		return llm.GenerateResponse{}, fmt.Errorf("no choices in response")
	}

	choice := completion.Choices[0]
	out := llm.GenerateResponse{
		Content:      choice.Message.Content,
		TokensUsed:   int(completion.Usage.TotalTokens),
		FinishReason: string(choice.FinishReason),
	}

	for _, tc := range choice.Message.ToolCalls {
		args, err := llm.ParseArguments(tc.Function.Arguments)
		if err != nil {
			// 壊れた引数はそのまま渡し、ツール側でエラーにする
			args = map[string]interface{}{"raw": tc.Function.Arguments}
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return out, nil
}

// Name はプロバイダー名を返す
func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("%s-%s", p.prefix, p.model)
}

// convertMessages はメッセージをOpenAI形式に変換
func (p *OpenAIProvider) convertMessages(req llm.GenerateRequest) []sdk.ChatCompletionMessageParamUnion {
	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)

	// システムプロンプト
	if req.SystemPrompt != "" {
		messages = append(messages, sdk.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, sdk.SystemMessage(msg.Content))
		case llm.RoleUser:
			messages = append(messages, sdk.UserMessage(msg.Content))
		case llm.RoleTool:
			messages = append(messages, sdk.ToolMessage(msg.Content, msg.ToolCallID))
		case llm.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				messages = append(messages, sdk.AssistantMessage(msg.Content))
				continue
			}
			assistant := sdk.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = sdk.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, sdk.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.ArgumentsJSON(),
						},
					},
				})
			}
			messages = append(messages, sdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}

	return messages
}

func convertTools(defs []llm.ToolDefinition) []sdk.ChatCompletionToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]sdk.ChatCompletionToolUnionParam, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, sdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        d.Name,
			Description: sdk.String(d.Description),
			Parameters:  shared.FunctionParameters(d.ParametersMap()),
		}))
	}
	return tools
}
