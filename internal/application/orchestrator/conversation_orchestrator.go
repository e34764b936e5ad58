package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nyukimin/nbagent/internal/domain/agent"
	"github.com/Nyukimin/nbagent/internal/domain/llm"
	"github.com/Nyukimin/nbagent/internal/domain/session"
	"github.com/Nyukimin/nbagent/internal/domain/task"
	"github.com/Nyukimin/nbagent/pkg/logger"
)

const (
	component = "orchestrator"

	// DefaultHistoryWindow はLLMに渡す直近履歴の件数
	DefaultHistoryWindow = 40

	// MemoryLastCSV は最後に分類したCSVパスのメモリキー
	MemoryLastCSV = "last_csv"
	// MemoryTurns は処理したターン数のメモリキー
	MemoryTurns = "turns"
)

// ProcessMessageRequest はメッセージ処理リクエスト
type ProcessMessageRequest struct {
	SessionID   string
	UserMessage string
}

// ProcessMessageResponse はメッセージ処理レスポンス
type ProcessMessageResponse struct {
	Response     string
	JobID        string
	ToolsUsed    []string
	Iterations   int
	FallbackUsed bool
	Checkpointed bool
}

// SessionRepository はセッション永続化のインターフェース
type SessionRepository interface {
	Save(ctx context.Context, sess *session.Session) error
	Load(ctx context.Context, id string) (*session.Session, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Agent は1ターンを実行する会話エージェント
type Agent interface {
	Run(ctx context.Context, history []llm.Message, userText string, observer agent.Observer) (agent.Turn, error)
}

// ConversationOrchestrator はセッションとエージェントを結び付けて会話を進める
type ConversationOrchestrator struct {
	sessionRepo   SessionRepository
	agent         Agent
	historyWindow int
}

// NewConversationOrchestrator は新しいConversationOrchestratorを作成
func NewConversationOrchestrator(sessionRepo SessionRepository, a Agent, historyWindow int) *ConversationOrchestrator {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &ConversationOrchestrator{
		sessionRepo:   sessionRepo,
		agent:         a,
		historyWindow: historyWindow,
	}
}

// ProcessMessage はメッセージを処理
func (o *ConversationOrchestrator) ProcessMessage(ctx context.Context, req ProcessMessageRequest, observer agent.Observer) (ProcessMessageResponse, error) {
	if req.SessionID == "" {
		req.SessionID = session.DefaultID
	}

	// 1. セッションをロードまたは作成
	sess, err := o.loadOrCreateSession(ctx, req.SessionID)
	if err != nil {
		return ProcessMessageResponse{}, fmt.Errorf("failed to load or create session: %w", err)
	}

	// 2. タスクを作成
	t := task.NewTask(task.NewJobID(), req.UserMessage, sess.ID())

	logger.InfoCF(component, "Processing message", map[string]interface{}{
		"job_id":     t.JobID().String(),
		"session_id": t.SessionID(),
		"history":    sess.HistoryCount(),
	})

	// 3. エージェントループを実行
	turn, err := o.agent.Run(ctx, sess.RecentMessages(o.historyWindow), t.UserMessage(), observer)
	if err != nil {
		logger.WarnCF(component, "Agent turn failed", map[string]interface{}{
			"job_id":     t.JobID().String(),
			"iterations": turn.Iterations,
			"error":      err.Error(),
		})
		return ProcessMessageResponse{JobID: t.JobID().String(), ToolsUsed: turn.ToolsUsed, Iterations: turn.Iterations},
			fmt.Errorf("agent turn failed: %w", err)
	}

	// 4. ターンを履歴とメモリに反映
	sess.AddMessages(turn.Messages...)
	if path, ok := lastClassifiedCSV(turn); ok {
		sess.SetMemory(MemoryLastCSV, path)
	}
	sess.SetMemory(MemoryTurns, turnCount(sess)+1)

	// 5. チェックポイント保存（失敗しても応答は返す）
	checkpointed := true
	if err := o.sessionRepo.Save(ctx, sess); err != nil {
		checkpointed = false
		logger.WarnCF(component, "Failed to save session", map[string]interface{}{
			"session_id": sess.ID(),
			"error":      err.Error(),
		})
	}

	return ProcessMessageResponse{
		Response:     turn.Response,
		JobID:        t.JobID().String(),
		ToolsUsed:    turn.ToolsUsed,
		Iterations:   turn.Iterations,
		FallbackUsed: turn.FallbackUsed,
		Checkpointed: checkpointed,
	}, nil
}

// Reset はセッションの会話履歴とメモリを破棄
func (o *ConversationOrchestrator) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = session.DefaultID
	}
	if err := o.sessionRepo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	logger.InfoCF(component, "Session reset", map[string]interface{}{"session_id": sessionID})
	return nil
}

// Memory はセッションメモリのコピーを返す（セッションがなければ空）
func (o *ConversationOrchestrator) Memory(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	if sessionID == "" {
		sessionID = session.DefaultID
	}
	sess, err := o.loadOrCreateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.GetAllMemory(), nil
}

// loadOrCreateSession はセッションをロードまたは作成
func (o *ConversationOrchestrator) loadOrCreateSession(ctx context.Context, id string) (*session.Session, error) {
	sess, err := o.sessionRepo.Load(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			// 新規セッション作成
			return session.NewSession(id), nil
		}
		return nil, err
	}
	return sess, nil
}

// lastClassifiedCSV はターン中の最後の create_classifier 呼び出しのパスを返す
// フォールバックはターンの最後に実行されるので優先する
func lastClassifiedCSV(turn agent.Turn) (string, bool) {
	if turn.FallbackUsed && turn.FallbackPath != "" {
		return turn.FallbackPath, true
	}
	msgs := turn.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		calls := msgs[i].ToolCalls
		for j := len(calls) - 1; j >= 0; j-- {
			if calls[j].Name != "create_classifier" {
				continue
			}
			if path, ok := calls[j].Arguments["filepath"].(string); ok && path != "" {
				return path, true
			}
		}
	}
	return "", false
}

// turnCount はメモリ上のターン数を返す（JSON復元後は float64）
func turnCount(sess *session.Session) int {
	v, ok := sess.GetMemory(MemoryTurns)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
