package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	jobIDPrefix     = "turn"
	jobIDTimeLayout = "20060102-150405"
)

// JobID は会話ターンの一意識別子
// フォーマット: turn-YYYYMMDD-HHMMSS-{UUID先頭8文字}
type JobID struct {
	value string
}

// NewJobID は新しいJobIDを生成
func NewJobID() JobID {
	return newJobIDAt(time.Now())
}

func newJobIDAt(now time.Time) JobID {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return JobID{value: jobIDPrefix + "-" + now.Format(jobIDTimeLayout) + "-" + short}
}

// JobIDFromString は文字列からJobIDを復元
func JobIDFromString(s string) JobID {
	return JobID{value: s}
}

// String はJobIDの文字列表現を返す
func (j JobID) String() string {
	return j.value
}

// Equals は2つのJobIDが等しいかを判定
func (j JobID) Equals(other JobID) bool {
	return j.value == other.value
}

// IsZero はJobIDがゼロ値かを判定
func (j JobID) IsZero() bool {
	return j.value == ""
}

// timestamp はJobIDに埋め込まれた生成時刻を返す（ローカル時刻として解釈）
func (j JobID) timestamp() (time.Time, bool) {
	rest, ok := strings.CutPrefix(j.value, jobIDPrefix+"-")
	if !ok || len(rest) < len(jobIDTimeLayout) {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(jobIDTimeLayout, rest[:len(jobIDTimeLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
