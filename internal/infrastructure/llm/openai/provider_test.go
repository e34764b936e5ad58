package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
	"github.com/google/jsonschema-go/jsonschema"
)

func completion(message map[string]interface{}, finish string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": 1677652288,
		"model":   "gpt-4o",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       message,
				"finish_reason": finish,
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

func TestNewOpenAIProvider(t *testing.T) {
	provider := NewOpenAIProvider("test-api-key", "gpt-4o")

	if provider == nil {
		t.Fatal("NewOpenAIProvider should not return nil")
	}

	if provider.Name() != "openai-gpt-4o" {
		t.Errorf("Expected name 'openai-gpt-4o', got '%s'", provider.Name())
	}
}

func TestOpenAIProviderGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected path '/v1/chat/completions', got '%s'", r.URL.Path)
		}

		// Authorizationヘッダー確認
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-api-key" {
			t.Errorf("Expected 'Bearer test-api-key', got '%s'", auth)
		}

		// リクエストボディ検証
		var reqBody map[string]interface{}
		json.NewDecoder(r.Body).Decode(&reqBody)

		if reqBody["model"] != "gpt-4o" {
			t.Errorf("Expected model 'gpt-4o', got '%v'", reqBody["model"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion(map[string]interface{}{
			"role":    "assistant",
			"content": "The classifier reached 0.72 accuracy.",
		}, "stop"))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-api-key", "gpt-4o")
	provider.SetBaseURL(server.URL + "/v1/")

	resp, err := provider.Generate(context.Background(), llm.GenerateRequest{
		Messages:    []llm.Message{{Role: "user", Content: "how did it go?"}},
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Content != "The classifier reached 0.72 accuracy." {
		t.Errorf("Expected response content, got '%s'", resp.Content)
	}
	if resp.TokensUsed != 30 {
		t.Errorf("Expected 30 tokens used, got %d", resp.TokensUsed)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Expected finish reason 'stop', got '%s'", resp.FinishReason)
	}
}

func TestOpenAIProviderGenerate_ToolRoundTrip(t *testing.T) {
	var reqBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&reqBody)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion(map[string]interface{}{
			"role":    "assistant",
			"content": "",
			"tool_calls": []map[string]interface{}{
				{
					"id":   "call_abc",
					"type": "function",
					"function": map[string]interface{}{
						"name":      "create_classifier",
						"arguments": `{"filepath":"nba_player_stats.csv"}`,
					},
				},
			},
		}, "tool_calls"))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-api-key", "gpt-4o")
	provider.SetBaseURL(server.URL + "/v1/")

	resp, err := provider.Generate(context.Background(), llm.GenerateRequest{
		SystemPrompt: "You are an NBA data science agent.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "read it"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "read_csv", Arguments: map[string]interface{}{"filepath": "nba.csv"}}}},
			{Role: llm.RoleTool, Content: "CSV loaded successfully!", ToolCallID: "call_1", Name: "read_csv"},
		},
		Tools: []llm.ToolDefinition{{
			Name:        "create_classifier",
			Description: "Train the position classifier",
			Parameters: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{"filepath": {Type: "string"}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// リクエスト検証
	messages, _ := reqBody["messages"].([]interface{})
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages (system + 3), got %d", len(messages))
	}
	assistant, _ := messages[2].(map[string]interface{})
	if calls, _ := assistant["tool_calls"].([]interface{}); len(calls) != 1 {
		t.Errorf("assistant tool_calls not forwarded: %v", assistant)
	}
	tool, _ := messages[3].(map[string]interface{})
	if tool["role"] != "tool" || tool["tool_call_id"] != "call_1" {
		t.Errorf("unexpected tool message: %v", tool)
	}
	if tools, _ := reqBody["tools"].([]interface{}); len(tools) != 1 {
		t.Errorf("expected 1 tool definition, got %v", reqBody["tools"])
	}

	// レスポンス検証
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_abc" || call.Name != "create_classifier" || call.Arguments["filepath"] != "nba_player_stats.csv" {
		t.Errorf("unexpected tool call: %+v", call)
	}
}

func TestOpenAIProviderGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "Invalid request",
				"type":    "invalid_request_error",
			},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-api-key", "gpt-4o")
	provider.SetBaseURL(server.URL + "/v1/")

	_, err := provider.Generate(context.Background(), llm.GenerateRequest{
		Messages: []llm.Message{{Role: "user", Content: "test"}},
	})
	if err == nil {
		t.Fatal("Expected error when API returns 400")
	}
	if !strings.Contains(err.Error(), "openai API error: status=400") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenAIProviderGenerate_InvalidAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "Incorrect API key provided",
				"type":    "invalid_request_error",
			},
		})
	}))
	defer server.Close()

	provider := NewOpenAIProvider("invalid-key", "gpt-4o")
	provider.SetBaseURL(server.URL + "/v1/")

	_, err := provider.Generate(context.Background(), llm.GenerateRequest{
		Messages: []llm.Message{{Role: "user", Content: "test"}},
	})
	if err == nil {
		t.Error("Expected error for invalid API key")
	}
}

func TestCompatibleProviderName(t *testing.T) {
	p := NewCompatibleProvider("deepseek", "k", "deepseek-chat", "https://api.deepseek.com/v1/")
	if p.Name() != "deepseek-deepseek-chat" {
		t.Errorf("unexpected name %s", p.Name())
	}
}
