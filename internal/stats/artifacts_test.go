package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evonas/internal/model"
)

func TestWriteRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:          "run-123",
			Topology:       "branched",
			Mutation:       "mutate_one_layer",
			Selector:       "tournament",
			Seed:           7,
			PopulationSize: 4,
			Iterations:     6,
			SampleSize:     2,
			Folds:          2,
			Epochs:         3,
		},
		ScoreHistory: []float64{0.2, 0.4, 0.3},
		Summary:      Summarize([]float64{0.2, 0.4, 0.3}),
		Top:          []TopCandidate{{Rank: 1, CandidateID: "c1", Name: "gen_1", Ordinal: 1, Score: 0.4}},
		Lineage: []model.LineageRecord{
			{CandidateID: "c0", Ordinal: 0, Name: "gen_0", Phase: "seed", Operation: "seed"},
		},
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(baseDir, "run-123"), runDir)
	for _, file := range []string{"config.json", "score_history.json", "top_candidates.json", "lineage.json"} {
		_, err := os.Stat(filepath.Join(runDir, file))
		require.NoErrorf(t, err, "expected file %s", file)
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Config, cfg)

	top, ok, err := ReadTopCandidates(baseDir, "run-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifacts.Top, top)

	_, ok, err = ReadRunConfig(baseDir, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	_, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{})
	require.ErrorIs(t, err, errRunIDRequired)
}

func TestRunIndexOrderingAndReplace(t *testing.T) {
	baseDir := t.TempDir()

	entries, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "old", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "new", CreatedAtUTC: "2026-02-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "tie", CreatedAtUTC: "2026-02-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "old", BestScore: 0.8, CreatedAtUTC: "2026-01-01T00:00:00Z"}))

	entries, err = ListRunIndex(baseDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"tie", "new", "old"}, []string{entries[0].RunID, entries[1].RunID, entries[2].RunID})
	assert.Equal(t, 0.8, entries[2].BestScore)

	require.ErrorIs(t, AppendRunIndex(baseDir, RunIndexEntry{}), errRunIDRequired)
}

func TestAppendRunIndexKeepsAppendOrderAcrossRewrites(t *testing.T) {
	baseDir := t.TempDir()
	const ts = "2026-03-01T00:00:00Z"
	for _, id := range []string{"first", "second"} {
		require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: id, CreatedAtUTC: ts}))
	}
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "older", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "first", BestScore: 0.5, CreatedAtUTC: ts}))
	require.NoError(t, AppendRunIndex(baseDir, RunIndexEntry{RunID: "oldest", CreatedAtUTC: "2025-12-01T00:00:00Z"}))

	raw, err := readRunIndex(baseDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "older", "oldest"}, runIDs(raw))

	listed, err := ListRunIndex(baseDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first", "older", "oldest"}, runIDs(listed))
	assert.Equal(t, 0.5, listed[1].BestScore)
}

func runIDs(entries []RunIndexEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.RunID)
	}
	return out
}
