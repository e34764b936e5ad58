package task

// Task はユーザーからの1回の指示を表す値オブジェクト
type Task struct {
	jobID       JobID
	userMessage string
	sessionID   string
}

// NewTask は新しいTaskを作成
func NewTask(jobID JobID, userMessage, sessionID string) Task {
	return Task{
		jobID:       jobID,
		userMessage: userMessage,
		sessionID:   sessionID,
	}
}

// JobID はジョブIDを返す
func (t Task) JobID() JobID {
	return t.jobID
}

// UserMessage はユーザーメッセージを返す
func (t Task) UserMessage() string {
	return t.userMessage
}

// SessionID はセッションIDを返す
func (t Task) SessionID() string {
	return t.sessionID
}

// IsCommand はスラッシュコマンドかを判定
func (t Task) IsCommand() bool {
	return len(t.userMessage) > 0 && t.userMessage[0] == '/'
}
