package grading

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 10行のデータセット。末尾2行（index 8, 9）がテストセット
const dataset = `Player,Pos,PTS
P0,PG,1
P1,SG,2
P2,SF,3
P3,PF,4
P4,C,5
P5,PG,6
P6,SG,7
P7,SF,8
P8,C,9
P9,PF-C,10
`

func setup(t *testing.T, predictions string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	ds := filepath.Join(dir, "nba_player_stats.csv")
	require.NoError(t, os.WriteFile(ds, []byte(dataset), 0644))

	sol := filepath.Join(dir, "sol.csv")
	if predictions != "" {
		require.NoError(t, os.WriteFile(sol, []byte(predictions), 0644))
	}
	return sol, ds
}

func TestGrade_Perfect(t *testing.T) {
	sol, ds := setup(t, "Player name,player's actual position,predicted position\nP8,C,C\nP9,PF,PF\n")

	r := Grade(sol, ds)

	assert.InDelta(t, 1.0, r.Score, 1e-9)
	assert.Equal(t, 1.0, r.Subscores[SubscoreTestSize])
	assert.Equal(t, 1.0, r.Subscores[SubscoreSplit])
	assert.Equal(t, 1.0, r.Subscores[SubscoreAccuracy])
	assert.Equal(t, 0.5, r.Weights[SubscoreAccuracy])
	assert.Equal(t, "Classification accuracy: 1.000 | Classification error: 0.000", r.Feedback)
	assert.Equal(t, 2, r.Details["correct_predictions"])
	assert.Equal(t, 2, r.Details["expected_test_size"])
}

func TestGrade_PartialAccuracy(t *testing.T) {
	sol, ds := setup(t, "Player name,player's actual position,predicted position\nP8,C,C\nP9,PF,SF\n")

	r := Grade(sol, ds)

	// 0.2*1 + 0.3*1 + 0.5*0.5
	assert.InDelta(t, 0.75, r.Score, 1e-9)
	assert.Equal(t, 0.5, r.Subscores[SubscoreAccuracy])
	assert.Contains(t, r.Feedback, "Classification accuracy: 0.500")
}

func TestGrade_WrongSplit(t *testing.T) {
	preds := "actual,predicted\nPG,PG\nSG,SG\nSF,SF\nPF,PF\nC,C\nPG,PG\n"
	sol, ds := setup(t, preds)

	r := Grade(sol, ds)

	assert.Equal(t, 0.5, r.Subscores[SubscoreTestSize])
	assert.Equal(t, 0.0, r.Subscores[SubscoreSplit])
	assert.Equal(t, 1.0, r.Subscores[SubscoreAccuracy])
	// 0.2*0.5 + 0 + 0.5*1.0
	assert.InDelta(t, 0.6, r.Score, 1e-9)

	parts := strings.Split(r.Feedback, " | ")
	assert.Equal(t, "Test set size: 6, expected: ~2", parts[0])
	assert.Equal(t, "The 'actual' values don't match the expected test set (last 20% of rows)", parts[1])
}

func TestGrade_DeterministicScore(t *testing.T) {
	// 3行中1行正解。split は一致しない
	sol, ds := setup(t, "Player name,player's actual position,predicted position\nP7,SF,SF\nP8,C,PG\nP9,PF,PG\n")

	accuracy := 1.0 / 3.0
	// キーのソート順: classification_accuracy, correct_test_split, test_size_correct
	want := 0.0
	want += accuracy * DefaultWeights[SubscoreAccuracy]
	want += 0.0 * DefaultWeights[SubscoreSplit]
	want += 1.0 * DefaultWeights[SubscoreTestSize]

	for i := 0; i < 20; i++ {
		r := Grade(sol, ds)
		require.Equal(t, want, r.Score, "run %d", i)
	}
}

func TestGrade_MissingPredictions(t *testing.T) {
	sol, ds := setup(t, "")

	r := Grade(sol, ds)

	assert.Equal(t, 0.0, r.Score)
	assert.Equal(t, "sol.csv file not found. Please save your predictions to sol.csv", r.Feedback)
	assert.Equal(t, "missing_predictions_file", r.Details["error"])
}

func TestGrade_MissingColumns(t *testing.T) {
	sol, ds := setup(t, "Player,Pos\nP8,C\n")

	r := Grade(sol, ds)

	assert.Equal(t, 0.0, r.Score)
	assert.Equal(t, "sol.csv must contain columns with 'actual' and 'predicted' in their names. Found columns: ['Player', 'Pos']", r.Feedback)
}

func TestGrade_MissingDataset(t *testing.T) {
	sol, _ := setup(t, "actual,predicted\nC,C\n")

	r := Grade(sol, filepath.Join(t.TempDir(), "none.csv"))

	assert.Equal(t, 0.0, r.Score)
	assert.True(t, strings.HasPrefix(r.Feedback, "Error processing predictions:"))
	assert.Equal(t, "processing_error", r.Details["error"])
}

func TestFindColumns(t *testing.T) {
	a, p := findColumns([]string{"Player name", "Actual Pos", "PREDICTED pos"})
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, p)

	// 両方を含む場合は actual が優先される
	a, p = findColumns([]string{"actual_vs_predicted"})
	assert.Equal(t, 0, a)
	assert.Equal(t, -1, p)
}
