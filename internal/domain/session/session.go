package session

import (
	"errors"
	"time"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
)

// DefaultID はCLIが使う既定のセッションID
const DefaultID = "thread-1"

// ErrSessionNotFound はセッションが見つからない場合のエラー
var ErrSessionNotFound = errors.New("session not found")

// Session は会話スレッドを表すエンティティ
// 会話履歴（LLMメッセージ列）とメモリを保持する
type Session struct {
	id        string
	history   []llm.Message
	memory    map[string]interface{}
	createdAt time.Time
	updatedAt time.Time
}

// NewSession は新しいセッションを作成
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		history:   make([]llm.Message, 0),
		memory:    make(map[string]interface{}),
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructSession は永続化層から復元する際に使用（タイムスタンプを保持）
func ReconstructSession(id string, history []llm.Message, memory map[string]interface{}, createdAt, updatedAt time.Time) *Session {
	if history == nil {
		history = make([]llm.Message, 0)
	}
	if memory == nil {
		memory = make(map[string]interface{})
	}
	return &Session{
		id:        id,
		history:   history,
		memory:    memory,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID はセッションIDを返す
func (s *Session) ID() string {
	return s.id
}

// CreatedAt は作成時刻を返す
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt は最終更新時刻を返す
func (s *Session) UpdatedAt() time.Time {
	return s.updatedAt
}

// AddMessages はメッセージを履歴に追加
func (s *Session) AddMessages(msgs ...llm.Message) {
	if len(msgs) == 0 {
		return
	}
	s.history = append(s.history, msgs...)
	s.updatedAt = time.Now()
}

// Messages は会話履歴のコピーを返す
func (s *Session) Messages() []llm.Message {
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// RecentMessages は最近N件の履歴を返す
// 先頭が tool メッセージにならないよう、対応する assistant まで遡らずに切り捨てる
func (s *Session) RecentMessages(n int) []llm.Message {
	if n <= 0 || len(s.history) <= n {
		return s.Messages()
	}
	start := len(s.history) - n
	for start < len(s.history) && s.history[start].Role == llm.RoleTool {
		start++
	}
	out := make([]llm.Message, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// ClearHistory は会話履歴を消去
func (s *Session) ClearHistory() {
	s.history = make([]llm.Message, 0)
	s.updatedAt = time.Now()
}

// SetMemory はメモリに値を設定
func (s *Session) SetMemory(key string, value interface{}) {
	s.memory[key] = value
	s.updatedAt = time.Now()
}

// GetMemory はメモリから値を取得
func (s *Session) GetMemory(key string) (interface{}, bool) {
	value, ok := s.memory[key]
	return value, ok
}

// GetAllMemory はメモリのコピーを返す
func (s *Session) GetAllMemory() map[string]interface{} {
	result := make(map[string]interface{}, len(s.memory))
	for k, v := range s.memory {
		result[k] = v
	}
	return result
}

// ClearMemory はメモリをクリア
func (s *Session) ClearMemory() {
	s.memory = make(map[string]interface{})
	s.updatedAt = time.Now()
}

// HistoryCount は履歴の件数を返す
func (s *Session) HistoryCount() int {
	return len(s.history)
}
