package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
)

// DefaultBaseURL はローカルOllamaのURL
const DefaultBaseURL = "http://localhost:11434"

// OllamaProvider はOllama /api/chat プロバイダーの実装
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
	callSeq atomic.Int64
}

// NewOllamaProvider は新しいOllamaProviderを作成
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 300 * time.Second, // ローカルモデルのツール呼び出しは遅い場合があるため長めに設定
		},
	}
}

// SetTimeout はHTTPタイムアウトを設定
func (p *OllamaProvider) SetTimeout(d time.Duration) {
	if d > 0 {
		p.client.Timeout = d
	}
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id,omitempty"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function toolSpecFunc `json:"function"`
}

type toolSpecFunc struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Tools    []toolSpec             `json:"tools,omitempty"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Generate はLLM生成を実行
func (p *OllamaProvider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	options := map[string]interface{}{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:    p.model,
		Messages: p.convertMessages(req),
		Tools:    convertTools(req.Tools),
		Stream:   false,
		Options:  options,
	})
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	// HTTPリクエスト作成
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// リクエスト実行
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return llm.GenerateResponse{}, fmt.Errorf("ollama API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	// レスポンスパース
	var ollamaResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	out := llm.GenerateResponse{
		Content:      ollamaResp.Message.Content,
		TokensUsed:   ollamaResp.PromptEvalCount + ollamaResp.EvalCount,
		FinishReason: ollamaResp.DoneReason,
	}
	if out.FinishReason == "" {
		out.FinishReason = "stop"
	}

	// OllamaはツールIDを返さない場合があるため採番する
	for _, tc := range ollamaResp.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", p.callSeq.Add(1))
		}
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]interface{}{}
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = "tool_calls"
	}

	return out, nil
}

// Name はプロバイダー名を返す
func (p *OllamaProvider) Name() string {
	return fmt.Sprintf("ollama-%s", p.model)
}

// Model はモデル名を返す
func (p *OllamaProvider) Model() string {
	return p.model
}

// convertMessages はメッセージリストをOllama形式に変換
func (p *OllamaProvider) convertMessages(req llm.GenerateRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Messages)+1)

	// システムプロンプト
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}

	for _, msg := range req.Messages {
		m := chatMessage{Role: msg.Role, Content: msg.Content}
		switch msg.Role {
		case llm.RoleAssistant:
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, toolCall{
					ID:       tc.ID,
					Function: toolFunction{Name: tc.Name, Arguments: tc.Arguments},
				})
			}
		case llm.RoleTool:
			m.ToolName = msg.Name
		}
		messages = append(messages, m)
	}

	return messages
}

func convertTools(defs []llm.ToolDefinition) []toolSpec {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]toolSpec, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, toolSpec{
			Type: "function",
			Function: toolSpecFunc{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.ParametersMap(),
			},
		})
	}
	return tools
}
