package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evonas/internal/model"
)

func sampleRun(id string, started time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: Versioned(),
		ID:              id,
		Topology:        "stacked",
		Mutation:        "mutate_one_layer",
		Selector:        "tournament",
		Seed:            7,
		PopulationSize:  4,
		Iterations:      6,
		SampleSize:      2,
		Folds:           3,
		Epochs:          5,
		StartedAt:       started,
		FinishedAt:      started.Add(time.Minute),
		Evaluations:     6,
		BestCandidateID: id + "-c4",
		BestName:        "gen_4",
		BestScore:       0.9,
		Progress:        1,
	}
}

func sampleCandidates(runID string) []model.CandidateRecord {
	return []model.CandidateRecord{
		{
			VersionedRecord: Versioned(),
			ID:              runID + "-c0",
			RunID:           runID,
			Ordinal:         0,
			Name:            "gen_0",
			Phase:           "seed",
			Score:           0.4,
			Mutations:       []string{"mutate_one_layer:insert", "mutate_one_layer:swap"},
			Fingerprint:     "00000000000000aa",
			Summary:         model.TopologySummary{Vertices: 4, Edges: 3, MutableEdges: 2, Operations: 3, OperationDistribution: map[string]int{"relu": 3}},
		},
		{
			VersionedRecord: Versioned(),
			ID:              runID + "-c1",
			RunID:           runID,
			Ordinal:         1,
			Name:            "gen_1",
			ParentID:        runID + "-c0",
			Phase:           "improve",
			Score:           0.6,
			Mutations:       []string{"mutate_one_layer:remove"},
			Fingerprint:     "00000000000000bb",
		},
	}
}

// exerciseStore runs the behaviour every Store implementation must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := sampleRun("run-a", base)
	newer := sampleRun("run-b", base.Add(time.Hour))
	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, newer))

	got, ok, err := store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.StartedAt.Equal(older.StartedAt))
	got.StartedAt, got.FinishedAt = older.StartedAt, older.FinishedAt
	if diff := cmp.Diff(older, got); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}

	_, ok, err = store.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)

	candidates := sampleCandidates("run-a")
	require.NoError(t, store.SaveCandidates(ctx, "run-a", candidates))
	candidates[0].Mutations[0] = "changed"
	loaded, ok, err := store.GetCandidates(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded, 2)
	assert.Equal(t, "mutate_one_layer:insert", loaded[0].Mutations[0])
	assert.Equal(t, 3, loaded[0].Summary.OperationDistribution["relu"])
	assert.Equal(t, "run-a-c0", loaded[1].ParentID)

	lineage := []model.LineageRecord{
		{VersionedRecord: Versioned(), CandidateID: "run-a-c0", Ordinal: 0, Name: "gen_0", Phase: "seed", Operation: "mutate_one_layer:insert"},
		{VersionedRecord: Versioned(), CandidateID: "run-a-c1", ParentID: "run-a-c0", Ordinal: 1, Name: "gen_1", Phase: "improve"},
	}
	require.NoError(t, store.SaveLineage(ctx, "run-a", lineage))
	loadedLineage, ok, err := store.GetLineage(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(lineage, loadedLineage); diff != "" {
		t.Fatalf("lineage mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, store.SaveScoreHistory(ctx, "run-a", []float64{0.4, 0.6}))
	history, ok, err := store.GetScoreHistory(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0.4, 0.6}, history)

	_, ok, err = store.GetLineage(ctx, "run-b")
	require.NoError(t, err)
	assert.False(t, ok)

	newer.BestScore = 0.95
	require.NoError(t, store.SaveRun(ctx, newer))
	got, _, err = store.GetRun(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, 0.95, got.BestScore)
}
