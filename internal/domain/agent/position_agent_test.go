package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
	"github.com/Nyukimin/nbagent/internal/domain/tool"
)

// mockProvider はテスト用のLLMプロバイダ（応答を順に返す）
type mockProvider struct {
	responses []llm.GenerateResponse
	requests  []llm.GenerateRequest
	err       error
}

func (m *mockProvider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return llm.GenerateResponse{}, m.err
	}
	if len(m.requests) > len(m.responses) {
		return m.responses[len(m.responses)-1], nil
	}
	return m.responses[len(m.requests)-1], nil
}

func (m *mockProvider) Name() string {
	return "mock"
}

// mockToolRunner はテスト用のツール実行
type mockToolRunner struct {
	executeFunc func(ctx context.Context, name string, args map[string]interface{}) (tool.Result, error)
	calls       []string
}

func (m *mockToolRunner) Execute(ctx context.Context, name string, args map[string]interface{}) (tool.Result, error) {
	m.calls = append(m.calls, name)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, name, args)
	}
	return tool.Result{ForLLM: "ok"}, nil
}

func (m *mockToolRunner) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{{Name: "read_csv"}, {Name: "create_classifier"}}
}

func collect(events *[]Event) Observer {
	return ObserverFunc(func(ctx context.Context, ev Event) {
		*events = append(*events, ev)
	})
}

func TestPositionAgent_DirectAnswer(t *testing.T) {
	provider := &mockProvider{responses: []llm.GenerateResponse{{Content: "Hello!"}}}
	tools := &mockToolRunner{}
	a := NewPositionAgent(provider, tools, Config{})

	var events []Event
	turn, err := a.Run(context.Background(), nil, "hi", collect(&events))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if turn.Response != "Hello!" {
		t.Errorf("Expected 'Hello!', got '%s'", turn.Response)
	}
	if turn.Iterations != 1 {
		t.Errorf("Expected 1 iteration, got %d", turn.Iterations)
	}
	if len(turn.Messages) != 2 {
		t.Fatalf("Expected user+assistant messages, got %d", len(turn.Messages))
	}
	if len(events) != 1 || events[0].Kind != EventAssistant {
		t.Errorf("Expected one assistant event, got %+v", events)
	}
	if len(tools.calls) != 0 {
		t.Errorf("Expected no tool calls, got %v", tools.calls)
	}

	req := provider.requests[0]
	if req.SystemPrompt != DefaultSystemPrompt {
		t.Error("Expected default system prompt")
	}
	if len(req.Tools) != 2 {
		t.Errorf("Expected 2 tool definitions, got %d", len(req.Tools))
	}
}

func TestPositionAgent_ToolLoop(t *testing.T) {
	provider := &mockProvider{responses: []llm.GenerateResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "read_csv", Arguments: map[string]interface{}{"filepath": "nba.csv"}}}},
		{Content: "The file has 5 columns."},
	}}
	tools := &mockToolRunner{
		executeFunc: func(ctx context.Context, name string, args map[string]interface{}) (tool.Result, error) {
			if args["filepath"] != "nba.csv" {
				t.Errorf("Unexpected args: %v", args)
			}
			return tool.Result{ForLLM: "CSV loaded successfully!"}, nil
		},
	}
	a := NewPositionAgent(provider, tools, Config{})

	history := []llm.Message{{Role: llm.RoleUser, Content: "earlier"}, {Role: llm.RoleAssistant, Content: "reply"}}
	var events []Event
	turn, err := a.Run(context.Background(), history, "describe nba.csv", collect(&events))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if turn.Iterations != 2 {
		t.Errorf("Expected 2 iterations, got %d", turn.Iterations)
	}
	if len(turn.ToolsUsed) != 1 || turn.ToolsUsed[0] != "read_csv" {
		t.Errorf("Unexpected tools used: %v", turn.ToolsUsed)
	}

	// user, assistant(tool_calls), tool, assistant
	if len(turn.Messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(turn.Messages))
	}
	toolMsg := turn.Messages[2]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "call_1" || toolMsg.Name != "read_csv" {
		t.Errorf("Unexpected tool message: %+v", toolMsg)
	}
	if toolMsg.IsError {
		t.Error("Successful tool message should not be marked as error")
	}

	// 2回目のリクエストは履歴 + user + assistant + tool
	second := provider.requests[1]
	if len(second.Messages) != 5 {
		t.Errorf("Expected 5 messages in second request, got %d", len(second.Messages))
	}

	if len(events) != 2 || events[0].Kind != EventTool || events[0].Tool != "read_csv" {
		t.Errorf("Unexpected events: %+v", events)
	}
}

func TestPositionAgent_ToolErrorIsFedBack(t *testing.T) {
	provider := &mockProvider{responses: []llm.GenerateResponse{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "bogus"}}},
		{Content: "sorry"},
	}}
	tools := &mockToolRunner{
		executeFunc: func(ctx context.Context, name string, args map[string]interface{}) (tool.Result, error) {
			return tool.Result{ForLLM: "Error: unknown tool \"bogus\"", IsError: true}, errors.New("tool not found")
		},
	}
	a := NewPositionAgent(provider, tools, Config{})

	var events []Event
	turn, err := a.Run(context.Background(), nil, "go", collect(&events))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(turn.Messages[2].Content, "unknown tool") {
		t.Errorf("Expected error fed back to LLM, got %q", turn.Messages[2].Content)
	}
	if !events[0].IsError {
		t.Error("Expected tool event to be marked as error")
	}
	if !turn.Messages[2].IsError {
		t.Error("Expected tool message to carry IsError")
	}
}

func TestPositionAgent_Fallback(t *testing.T) {
	provider := &mockProvider{responses: []llm.GenerateResponse{
		{Content: `I will call create_classifier("nba_player_stats.csv") now.`},
	}}
	var gotPath interface{}
	tools := &mockToolRunner{
		executeFunc: func(ctx context.Context, name string, args map[string]interface{}) (tool.Result, error) {
			gotPath = args["filepath"]
			return tool.Result{ForLLM: "SVM Classification Complete!"}, nil
		},
	}
	a := NewPositionAgent(provider, tools, Config{})

	var events []Event
	turn, err := a.Run(context.Background(), nil, "classify", collect(&events))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !turn.FallbackUsed {
		t.Error("Expected fallback to be used")
	}
	if gotPath != "nba_player_stats.csv" {
		t.Errorf("Expected fallback path nba_player_stats.csv, got %v", gotPath)
	}
	if turn.FallbackPath != "nba_player_stats.csv" {
		t.Errorf("Expected FallbackPath nba_player_stats.csv, got %q", turn.FallbackPath)
	}
	if turn.Response != "SVM Classification Complete!" {
		t.Errorf("Unexpected response: %q", turn.Response)
	}
	if len(events) != 1 || events[0].Kind != EventTool {
		t.Errorf("Expected a single tool event, got %+v", events)
	}
}

func TestPositionAgent_NoFallbackAfterClassifierRan(t *testing.T) {
	provider := &mockProvider{responses: []llm.GenerateResponse{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "create_classifier", Arguments: map[string]interface{}{"filepath": "a.csv"}}}},
		{Content: "create_classifier on a.csv finished."},
	}}
	tools := &mockToolRunner{}
	a := NewPositionAgent(provider, tools, Config{})

	turn, err := a.Run(context.Background(), nil, "classify a.csv", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if turn.FallbackUsed {
		t.Error("Fallback should not run twice in one turn")
	}
	if len(tools.calls) != 1 {
		t.Errorf("Expected one tool call, got %v", tools.calls)
	}
}

func TestPositionAgent_MaxIterations(t *testing.T) {
	provider := &mockProvider{responses: []llm.GenerateResponse{
		{ToolCalls: []llm.ToolCall{{ID: "c", Name: "read_csv"}}},
	}}
	a := NewPositionAgent(provider, &mockToolRunner{}, Config{MaxIterations: 3})

	turn, err := a.Run(context.Background(), nil, "loop", nil)
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("Expected ErrMaxIterations, got %v", err)
	}
	if turn.Iterations != 3 {
		t.Errorf("Expected 3 iterations, got %d", turn.Iterations)
	}
}

func TestPositionAgent_ProviderError(t *testing.T) {
	provider := &mockProvider{err: errors.New("connection refused")}
	a := NewPositionAgent(provider, &mockToolRunner{}, Config{})

	_, err := a.Run(context.Background(), nil, "hi", nil)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("Expected provider error, got %v", err)
	}
}

func TestFallbackCSVPath(t *testing.T) {
	tests := []struct {
		content string
		want    string
		ok      bool
	}{
		{`create_classifier("data/nba.csv")`, "data/nba.csv", true},
		{"Use create_classifier with `stats.csv`", "stats.csv", true},
		{"create_classifier wrote sol.csv", "", false},
		{"read nba.csv first", "", false},
		{"create_classifier please", "", false},
	}
	for _, tt := range tests {
		got, ok := fallbackCSVPath(tt.content)
		if got != tt.want || ok != tt.ok {
			t.Errorf("fallbackCSVPath(%q) = (%q, %v), want (%q, %v)", tt.content, got, ok, tt.want, tt.ok)
		}
	}
}
