package cli

import (
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/mattn/go-runewidth"
)

const (
	DefaultWidth = 100
	minWidth     = 20

	bannerFont      = "standard"
	timestampLayout = "2006-01-02 15:04:05"
)

// Banner は起動時に表示する "<provider> agent" のFIGletバナー
// ASCII外の文字は '?' に置き換わる
func Banner(provider string) string {
	text := strings.TrimSpace(provider + " agent")
	rows := figure.NewFigure(text, bannerFont, false).Slicify()
	return strings.Join(rows, "\n")
}

// Panel は本文をタイトル付きの枠で囲む
// 幅は端末上の表示幅で数え、超える行は折り返す
func Panel(title, body string, width int) string {
	if width < minWidth {
		width = minWidth
	}
	inner := width - 4

	var b strings.Builder

	// 上辺: ╭─ title ───╮
	head := runewidth.Truncate("─ "+title+" ", width-2, "")
	b.WriteString("╭" + head + strings.Repeat("─", width-2-runewidth.StringWidth(head)) + "╮\n")

	for _, line := range wrapLines(body, inner) {
		pad := inner - runewidth.StringWidth(line)
		b.WriteString("│ " + line + strings.Repeat(" ", pad) + " │\n")
	}

	b.WriteString("╰" + strings.Repeat("─", width-2) + "╯")
	return b.String()
}

// wrapLines は本文を行に分け、表示幅 width を超える行を分割する
// 全角文字や絵文字は2桁として数える
func wrapLines(body string, width int) []string {
	body = strings.ReplaceAll(body, "\t", "    ")
	body = strings.TrimRight(body, "\n")

	var out []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			out = append(out, "")
			continue
		}

		var cur strings.Builder
		curWidth := 0
		for _, r := range line {
			w := runewidth.RuneWidth(r)
			if curWidth+w > width && curWidth > 0 {
				out = append(out, cur.String())
				cur.Reset()
				curWidth = 0
			}
			cur.WriteRune(r)
			curWidth += w
		}
		out = append(out, cur.String())
	}
	return out
}
