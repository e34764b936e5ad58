package agent

import (
	"context"
	"time"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
	"github.com/Nyukimin/nbagent/internal/domain/tool"
)

// ToolRunner はツール実行のインターフェース
type ToolRunner interface {
	Execute(ctx context.Context, toolName string, args map[string]interface{}) (tool.Result, error)
	Definitions() []llm.ToolDefinition
}

// EventKind はエージェントが発行するイベントの種類
type EventKind string

const (
	EventAssistant EventKind = "agent"
	EventTool      EventKind = "tool"
)

// Event はターン中の出力1件
type Event struct {
	Kind    EventKind
	Tool    string // EventTool のときのツール名
	Content string
	IsError bool
	Time    time.Time
}

// Observer はターン中のイベントを受け取る
type Observer interface {
	OnEvent(ctx context.Context, ev Event)
}

// ObserverFunc は関数をObserverとして扱う
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

type nopObserver struct{}

func (nopObserver) OnEvent(context.Context, Event) {}
