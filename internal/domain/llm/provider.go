package llm

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// メッセージのロール
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message はLLMメッセージを表す
type Message struct {
	Role       string     `json:"role"` // "user", "assistant", "system", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // role=tool のときの呼び出し元ID
	Name       string     `json:"name,omitempty"`         // role=tool のときのツール名
	IsError    bool       `json:"is_error,omitempty"`     // role=tool のときツールが失敗したか
}

// ToolCall はLLMが要求したツール呼び出し
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ArgumentsJSON は引数をJSON文字列で返す
func (c ToolCall) ArgumentsJSON() string {
	if len(c.Arguments) == 0 {
		return "{}"
	}
	data, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ParseArguments はJSON文字列の引数をmapに変換する（空文字は空map）
func ParseArguments(raw string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ToolDefinition はLLMに提示するツールの定義
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// ParametersMap はパラメータスキーマを汎用mapで返す（プロバイダーSDK向け）
func (d ToolDefinition) ParametersMap() map[string]interface{} {
	out := map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	if d.Parameters == nil {
		return out
	}
	data, err := json.Marshal(d.Parameters)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out
	}
	return out
}

// GenerateRequest はLLM生成リクエスト
type GenerateRequest struct {
	Messages     []Message
	Tools        []ToolDefinition
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// GenerateResponse はLLM生成レスポンス
type GenerateResponse struct {
	Content      string
	ToolCalls    []ToolCall
	TokensUsed   int
	FinishReason string
}

// HasToolCalls はツール呼び出しを含むか返す
func (r GenerateResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// LLMProvider はLLMプロバイダーの抽象化
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	Name() string
}
