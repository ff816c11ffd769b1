package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}

type runJSON struct {
	RunID            string    `json:"run_id"`
	ArtifactsDir     string    `json:"artifacts_dir"`
	BestName         string    `json:"best_name"`
	BestScore        float64   `json:"best_score"`
	BestArchitecture string    `json:"best_architecture"`
	ScoreHistory     []float64 `json:"score_history"`
}

func quickRunArgs(benchmarksDir string, extra ...string) []string {
	args := []string{
		"run",
		"--benchmarks-dir", benchmarksDir,
		"--pop", "3",
		"--iterations", "4",
		"--samples", "32",
		"--folds", "2",
		"--epochs", "1",
		"--log-level", "error",
		"--json",
	}
	return append(args, extra...)
}

func TestRunCommandWritesArtifactsAndIndex(t *testing.T) {
	benchmarksDir := filepath.Join(t.TempDir(), "benchmarks")
	ctx := context.Background()

	out, err := captureStdout(func() error {
		return run(ctx, quickRunArgs(benchmarksDir, "--show-best"))
	})
	require.NoError(t, err)

	var summary runJSON
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.NotEmpty(t, summary.RunID)
	assert.Len(t, summary.ScoreHistory, 4)
	assert.True(t, strings.HasPrefix(summary.BestArchitecture, "fixed branched {"))
	for _, file := range []string{"config.json", "score_history.json", "top_candidates.json", "lineage.json"} {
		_, err := os.Stat(filepath.Join(benchmarksDir, summary.RunID, file))
		require.NoErrorf(t, err, "expected artifact %s", file)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"runs", "--benchmarks-dir", benchmarksDir, "--json"})
	})
	require.NoError(t, err)
	var runs []struct {
		RunID       string `json:"run_id"`
		Evaluations int    `json:"evaluations"`
		BestName    string `json:"best_name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, 4, runs[0].Evaluations)
	assert.Equal(t, summary.BestName, runs[0].BestName)

	// A fresh process has an empty memory store, so top reads the artifacts.
	out, err = captureStdout(func() error {
		return run(ctx, []string{"top", "--latest", "--limit", "2", "--benchmarks-dir", benchmarksDir})
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "rank=1 name="+summary.BestName)

	_, err = captureStdout(func() error {
		return run(ctx, []string{"history", "--latest", "--benchmarks-dir", benchmarksDir})
	})
	require.ErrorContains(t, err, "score history not found")
}

func TestRunCommandConfigFileWithFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	benchmarksDir := filepath.Join(dir, "benchmarks")
	configPath := filepath.Join(dir, "search.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
search:
  population_size: 2
  iterations: 3
  seed: 9
topology:
  candidates: ["relu", "tanh", "identity"]
trainer:
  samples: 24
  epochs: 1
`), 0o644))
	logPath := filepath.Join(dir, "logs", "evonas.log")

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"run",
			"--config", configPath,
			"--iterations", "5",
			"--benchmarks-dir", benchmarksDir,
			"--log-file", logPath,
			"--log-format", "json",
			"--json",
		})
	})
	require.NoError(t, err)

	var summary runJSON
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Len(t, summary.ScoreHistory, 5)
	assert.Empty(t, summary.BestArchitecture)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"finished generating population"`)
}

func TestRunCommandLoadsCSVDataset(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.csv")
	var b strings.Builder
	b.WriteString("x0,x1,x2,y\n")
	for i := 0; i < 24; i++ {
		x0, x1, x2 := float64(i%5), float64(i%3), float64(i%7)
		fmt.Fprintf(&b, "%g,%g,%g,%g\n", x0, x1, x2, 0.5*x0-x1+0.1*x2)
	}
	require.NoError(t, os.WriteFile(dataPath, []byte(b.String()), 0o644))

	out, err := captureStdout(func() error {
		return run(context.Background(), quickRunArgs(filepath.Join(dir, "benchmarks"), "--data", dataPath, "--data-header"))
	})
	require.NoError(t, err)
	var summary runJSON
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Len(t, summary.ScoreHistory, 4)

	err = run(context.Background(), quickRunArgs(filepath.Join(dir, "benchmarks"), "--data", filepath.Join(dir, "missing.csv")))
	require.ErrorContains(t, err, "open dataset")
}

func TestRunCommandTextOutput(t *testing.T) {
	benchmarksDir := filepath.Join(t.TempDir(), "benchmarks")
	args := quickRunArgs(benchmarksDir)
	args = args[:len(args)-1] // drop --json

	out, err := captureStdout(func() error {
		return run(context.Background(), args)
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "run_id="))
	assert.Contains(t, out, "evaluations=4")
}

func TestRunCommandRejectsInvalidFlags(t *testing.T) {
	benchmarksDir := filepath.Join(t.TempDir(), "benchmarks")
	err := run(context.Background(), quickRunArgs(benchmarksDir, "--sample-size", "0"))
	require.ErrorContains(t, err, "search.sample_size")

	err = run(context.Background(), quickRunArgs(benchmarksDir, "--candidates", "dense:x"))
	require.ErrorContains(t, err, "topology.candidates")
}

func TestRunsWithoutIndex(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"runs", "--benchmarks-dir", t.TempDir()})
	})
	require.NoError(t, err)
	assert.Equal(t, "no runs found\n", out)
}

func TestUsageErrors(t *testing.T) {
	err := run(context.Background(), nil)
	require.ErrorContains(t, err, "missing command")

	err = run(context.Background(), []string{"train"})
	require.ErrorContains(t, err, "unknown command: train")
	assert.Contains(t, err.Error(), "usage: evonasctl")

	err = run(context.Background(), []string{"lineage", "--benchmarks-dir", t.TempDir()})
	require.ErrorContains(t, err, "lineage requires run id or latest")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"relu", "dense:16"}, splitList(" relu, ,dense:16 "))
	assert.Nil(t, splitList(""))
}
