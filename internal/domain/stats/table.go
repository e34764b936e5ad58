package stats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

var (
	// ErrEmptyTable はCSVにヘッダ行がない場合のエラー
	ErrEmptyTable = errors.New("csv has no header row")
	// ErrMissingColumns は必須カラム（Player, Pos）がない場合のエラー
	ErrMissingColumns = errors.New("csv must contain 'Player' and 'Pos' columns")
)

const (
	ColumnPlayer   = "Player"
	ColumnPosition = "Pos"

	leagueAverageRow = "League Average"
)

// droppedColumns は学習前に除外する非統計カラム
var droppedColumns = []string{"Rk", "Team", "Awards"}

// Table はヘッダ付きCSVの生データ
type Table struct {
	Columns []string
	Rows    [][]string
}

// ReadTable はCSVファイルを読み込む
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	return ParseTable(f)
}

// ParseTable はReaderからCSVを読み込む
// 列数が揃っていない行はヘッダ幅に合わせて補完・切り詰める
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrEmptyTable
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF"))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)
	}

	return &Table{Columns: header, Rows: rows}, nil
}

// ColumnIndex はカラム名の位置を返す（存在しなければ -1）
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Shape は (行数, 列数) を返す
func (t *Table) Shape() (int, int) {
	return len(t.Rows), len(t.Columns)
}

// Column は指定カラムの値一覧を返す
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Describe はテーブル構造と先頭n行のプレビューを返す
func (t *Table) Describe(n int) string {
	rows, cols := t.Shape()

	var b strings.Builder
	b.WriteString("CSV loaded successfully!\n")
	fmt.Fprintf(&b, "Shape: (%d, %d)\n", rows, cols)
	fmt.Fprintf(&b, "Columns: %s\n\n", FormatColumns(t.Columns))
	fmt.Fprintf(&b, "First %d rows:\n", n)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(t.Columns, "\t"))
	for i, row := range t.Rows {
		if i >= n {
			break
		}
		fmt.Fprintf(tw, "%d\t%s\t\n", i, strings.Join(row, "\t"))
	}
	tw.Flush()

	return strings.TrimRight(b.String(), "\n")
}

// Clean は学習用にテーブルを整形した新しいTableを返す
//   - Player が "League Average" の行を除外
//   - Rk, Team, Awards カラムを除外
//   - Player の重複は最後の行を残す（残った行の元の順序を保持）
func Clean(t *Table) (*Table, error) {
	playerIdx := t.ColumnIndex(ColumnPlayer)
	posIdx := t.ColumnIndex(ColumnPosition)
	if playerIdx < 0 || posIdx < 0 {
		return nil, fmt.Errorf("%w. Found columns: %s", ErrMissingColumns, FormatColumns(t.Columns))
	}

	keep := make([]int, 0, len(t.Columns))
	columns := make([]string, 0, len(t.Columns))
	for i, col := range t.Columns {
		if isDroppedColumn(col) {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, col)
	}

	// 最後に出現した行のインデックス
	lastSeen := make(map[string]int, len(t.Rows))
	for i, row := range t.Rows {
		player := strings.TrimSpace(row[playerIdx])
		if player == leagueAverageRow {
			continue
		}
		lastSeen[player] = i
	}

	rows := make([][]string, 0, len(lastSeen))
	for i, row := range t.Rows {
		player := strings.TrimSpace(row[playerIdx])
		if player == leagueAverageRow || lastSeen[player] != i {
			continue
		}
		out := make([]string, len(keep))
		for j, idx := range keep {
			out[j] = row[idx]
		}
		rows = append(rows, out)
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

func isDroppedColumn(name string) bool {
	for _, d := range droppedColumns {
		if name == d {
			return true
		}
	}
	return false
}

// FormatColumns はカラム名一覧を ['a', 'b'] 形式で返す
func FormatColumns(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
