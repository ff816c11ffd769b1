package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"evonas/internal/model"
)

const runIndexFile = "run_index.json"

var errRunIDRequired = errors.New("run id is required")

type RunConfig struct {
	RunID          string  `json:"run_id"`
	Topology       string  `json:"topology"`
	Mutation       string  `json:"mutation"`
	Selector       string  `json:"selector"`
	Seed           int64   `json:"seed"`
	PopulationSize int     `json:"population_size"`
	Iterations     int     `json:"iterations"`
	SampleSize     int     `json:"sample_size"`
	Folds          int     `json:"folds"`
	Epochs         int     `json:"epochs"`
	Workers        int     `json:"workers"`
	InsertWeight   float64 `json:"insert_weight"`
	RemoveWeight   float64 `json:"remove_weight"`
	SwapWeight     float64 `json:"swap_weight"`
}

type RunArtifacts struct {
	Config       RunConfig             `json:"config"`
	ScoreHistory []float64             `json:"score_history"`
	Summary      ScoreSummary          `json:"summary"`
	Top          []TopCandidate        `json:"top"`
	Lineage      []model.LineageRecord `json:"lineage"`
}

type scoreHistoryFile struct {
	Scores    []float64    `json:"scores"`
	BestSoFar []float64    `json:"best_so_far"`
	Summary   ScoreSummary `json:"summary"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Topology     string  `json:"topology"`
	Seed         int64   `json:"seed"`
	Evaluations  int     `json:"evaluations"`
	BestName     string  `json:"best_name"`
	BestScore    float64 `json:"best_score"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes one directory per run under baseDir and returns
// its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if strings.TrimSpace(artifacts.Config.RunID) == "" {
		return "", errRunIDRequired
	}
	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	history := scoreHistoryFile{
		Scores:    artifacts.ScoreHistory,
		BestSoFar: BestSoFar(artifacts.ScoreHistory),
		Summary:   artifacts.Summary,
	}
	if err := writeJSON(filepath.Join(runDir, "score_history.json"), history); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_candidates.json"), artifacts.Top); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "lineage.json"), artifacts.Lineage); err != nil {
		return "", err
	}
	return runDir, nil
}

// AppendRunIndex adds entry to the run index, replacing any entry with the
// same run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return errRunIDRequired
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. A missing index is empty.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}
	// Later appended entries win ties on timestamp.
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := entries[order[i]], entries[order[j]]
		if a.CreatedAtUTC == b.CreatedAtUTC {
			return order[i] > order[j]
		}
		return a.CreatedAtUTC > b.CreatedAtUTC
	})
	sorted := make([]RunIndexEntry, len(entries))
	for i, idx := range order {
		sorted[i] = entries[idx]
	}
	return sorted, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadTopCandidates(baseDir, runID string) ([]TopCandidate, bool, error) {
	var top []TopCandidate
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_candidates.json"), &top)
	return top, ok, err
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// readRunIndex returns entries in file order, which is append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", runIndexFile, err)
	}
	return entries, nil
}
