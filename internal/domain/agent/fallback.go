package agent

import (
	"regexp"
	"strings"
)

// csvPathPattern はテキスト中のCSVパス（引用符あり・なし）を検出する
var csvPathPattern = regexp.MustCompile(`["'` + "`" + `]?([\w./\\~-]+\.csv)["'` + "`" + `]?`)

// fallbackCSVPath はモデルがツールを呼ばずに create_classifier の呼び出しを
// 文章で書いた場合に、実行すべきCSVパスを抽出する
func fallbackCSVPath(content string) (string, bool) {
	if !strings.Contains(content, classifierToolName) {
		return "", false
	}
	for _, m := range csvPathPattern.FindAllStringSubmatch(content, -1) {
		path := m[1]
		// 出力ファイルは入力にならない
		if path == "sol.csv" || strings.HasSuffix(path, "/sol.csv") {
			continue
		}
		return path, true
	}
	return "", false
}
