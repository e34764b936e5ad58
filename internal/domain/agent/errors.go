package agent

import "errors"

// ErrMaxIterations はツール呼び出しが上限回数に達した場合のエラー
var ErrMaxIterations = errors.New("max iterations reached")
