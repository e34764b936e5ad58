package stats

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownPosition はポジションラベルが5種類のいずれでもない場合のエラー
var ErrUnknownPosition = errors.New("unknown position")

// Position はバスケットボールのポジションを表す値オブジェクト
type Position string

const (
	PointGuard    Position = "PG"
	ShootingGuard Position = "SG"
	SmallForward  Position = "SF"
	PowerForward  Position = "PF"
	Center        Position = "C"
)

// AllPositions は分類対象のポジション一覧
var AllPositions = []Position{PointGuard, ShootingGuard, SmallForward, PowerForward, Center}

// ParsePosition はラベル文字列をPositionに変換
// "SF-PF" のような複合ラベルは先頭のポジションを採用する
func ParsePosition(s string) (Position, error) {
	label := strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexAny(label, "-/"); i >= 0 {
		label = label[:i]
	}

	if p := Position(label); slices.Contains(AllPositions, p) {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPosition, strings.TrimSpace(s))
}

// NormalizeLabel はラベルを正規化する（未知のラベルは大文字化のみ）
func NormalizeLabel(s string) string {
	if p, err := ParsePosition(s); err == nil {
		return string(p)
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// String はポジション名を返す
func (p Position) String() string {
	return string(p)
}
