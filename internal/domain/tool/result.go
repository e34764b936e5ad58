package tool

// Result はツール実行結果
// ForLLM は次のLLMターンに渡す文字列、ForUser は画面表示用
type Result struct {
	ForLLM  string
	ForUser string
	IsError bool
}

// Display は表示用の文字列を返す（ForUser が空なら ForLLM）
func (r Result) Display() string {
	if r.ForUser != "" {
		return r.ForUser
	}
	return r.ForLLM
}
