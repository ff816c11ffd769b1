// Package evonas is the programmatic entry point for running aging-evolution
// searches and reading back their results.
package evonas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"evonas/internal/config"
	"evonas/internal/ctxlog"
	"evonas/internal/encoding"
	"evonas/internal/evo"
	"evonas/internal/metrics"
	"evonas/internal/model"
	"evonas/internal/ops"
	"evonas/internal/stats"
	"evonas/internal/storage"
	"evonas/internal/topology"
	"evonas/internal/trainer"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultDBPath        = "evonas.db"
	defaultTopK          = 10
)

// Config is the full search configuration, loadable from YAML or TOML.
type Config = config.Config

// ScoreSummary describes the score distribution of one run.
type ScoreSummary = stats.ScoreSummary

func DefaultConfig() Config {
	return config.Default()
}

func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	// Logger is attached to every run context. Nil uses slog.Default.
	Logger *slog.Logger
	// Registerer receives the search collectors. Nil keeps them on a private
	// registry. Clients sharing a Registerer share its collectors.
	Registerer prometheus.Registerer
}

type Client struct {
	store   storage.Store
	metrics *metrics.Search
	logger  *slog.Logger

	benchmarksDir string

	initMu      sync.Mutex
	initialized bool
}

type RunRequest struct {
	Config Config
	// Progress receives the accumulated search progress after every epoch.
	Progress func(candidate string, fraction float64)
	// OnCandidate is called for every evaluated candidate in order.
	OnCandidate func(CandidateItem)
}

type CandidateItem struct {
	ID          string
	Ordinal     int
	Name        string
	ParentID    string
	Phase       string
	Score       float64
	Mutations   []string
	Fingerprint string
	Summary     model.TopologySummary
	Elapsed     time.Duration
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Best         CandidateItem
	// BestArchitecture is the canonical description of the best model.
	BestArchitecture string
	ScoreHistory     []float64
	Summary          ScoreSummary
	Progress         float64
	Duration         time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Topology     string
	Seed         int64
	Evaluations  int
	BestName     string
	BestScore    float64
}

type TopRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TopItem = stats.TopCandidate

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type LineageRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type LineageItem struct {
	CandidateID string
	ParentID    string
	Ordinal     int
	Name        string
	Phase       string
	Operation   string
	Fingerprint string
	Summary     model.TopologySummary
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		metrics:       metrics.NewSearch(reg),
		logger:        logger,
		benchmarksDir: benchmarksDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) ensureInit(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// Run executes one search described by req.Config, persists its candidates
// and lineage, and writes run artifacts under the benchmarks directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}
	ctx = ctxlog.WithLogger(ctx, c.logger)

	initial, err := buildInitialModel(cfg)
	if err != nil {
		return RunSummary{}, err
	}
	kfold, err := buildTrainer(cfg)
	if err != nil {
		return RunSummary{}, err
	}

	rng := rand.New(rand.NewSource(cfg.Search.Seed))
	mutation, err := evo.ResolveMutation(cfg.Search.Mutation, evo.MutationOptions{Rand: rng, Weights: cfg.Search.Weights})
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := evo.ResolveSelector(cfg.Search.Selector)
	if err != nil {
		return RunSummary{}, err
	}

	var onCandidate func(evo.Candidate)
	if req.OnCandidate != nil {
		onCandidate = func(cand evo.Candidate) { req.OnCandidate(candidateItem(cand)) }
	}
	search, err := evo.NewAgingEvolution(evo.AgingConfig{
		PopulationSize: cfg.Search.PopulationSize,
		Iterations:     cfg.Search.Iterations,
		SampleSize:     cfg.Search.SampleSize,
		InitialModel:   initial,
		Mutation:       mutation,
		Trainer:        kfold,
		Rand:           rng,
		SeedMutations:  evo.UniformMutationCount{Min: cfg.Search.SeedMinMutations, Max: cfg.Search.SeedMaxMutations},
		Selector:       selector,
		Observers:      []evo.ProgressObserver{c.metrics},
		ProgressSink:   req.Progress,
		OnCandidate:    onCandidate,
		Metrics:        c.metrics,
	})
	if err != nil {
		return RunSummary{}, err
	}

	started := time.Now().UTC()
	result, err := search.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	finished := time.Now().UTC()

	candidates := make([]model.CandidateRecord, 0, len(result.History))
	scores := make([]float64, 0, len(result.History))
	for _, cand := range result.History {
		candidates = append(candidates, candidateRecord(result.RunID, cand))
		scores = append(scores, cand.Score)
	}
	lineage := make([]model.LineageRecord, 0, len(result.Lineage))
	for _, rec := range result.Lineage {
		lineage = append(lineage, lineageRecord(rec))
	}

	run := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              result.RunID,
		Topology:        cfg.Topology.Name,
		Mutation:        cfg.Search.Mutation,
		Selector:        selector.Name(),
		Seed:            cfg.Search.Seed,
		PopulationSize:  cfg.Search.PopulationSize,
		Iterations:      cfg.Search.Iterations,
		SampleSize:      cfg.Search.SampleSize,
		Folds:           cfg.Trainer.Folds,
		Epochs:          cfg.Trainer.Epochs,
		StartedAt:       started,
		FinishedAt:      finished,
		Evaluations:     len(result.History),
		BestCandidateID: result.Best.ID,
		BestName:        result.Best.Name,
		BestScore:       result.Best.Score,
		BestFingerprint: result.Best.Signature.Fingerprint,
		Progress:        result.Progress,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveCandidates(ctx, run.ID, candidates); err != nil {
		return RunSummary{}, fmt.Errorf("save candidates: %w", err)
	}
	if err := c.store.SaveLineage(ctx, run.ID, lineage); err != nil {
		return RunSummary{}, fmt.Errorf("save lineage: %w", err)
	}
	if err := c.store.SaveScoreHistory(ctx, run.ID, scores); err != nil {
		return RunSummary{}, fmt.Errorf("save score history: %w", err)
	}

	summary := stats.Summarize(scores)
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          run.ID,
			Topology:       run.Topology,
			Mutation:       run.Mutation,
			Selector:       run.Selector,
			Seed:           run.Seed,
			PopulationSize: run.PopulationSize,
			Iterations:     run.Iterations,
			SampleSize:     run.SampleSize,
			Folds:          run.Folds,
			Epochs:         run.Epochs,
			Workers:        cfg.Trainer.Workers,
			InsertWeight:   cfg.Search.Weights.Insert,
			RemoveWeight:   cfg.Search.Weights.Remove,
			SwapWeight:     cfg.Search.Weights.Swap,
		},
		ScoreHistory: scores,
		Summary:      summary,
		Top:          stats.NewLeaderboard(candidates...).Top(defaultTopK),
		Lineage:      lineage,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:        run.ID,
		Topology:     run.Topology,
		Seed:         run.Seed,
		Evaluations:  run.Evaluations,
		BestName:     run.BestName,
		BestScore:    run.BestScore,
		CreatedAtUTC: started.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            run.ID,
		ArtifactsDir:     filepath.Clean(runDir),
		Best:             candidateItem(result.Best),
		BestArchitecture: result.Best.Model.String(),
		ScoreHistory:     scores,
		Summary:          summary,
		Progress:         result.Progress,
		Duration:         finished.Sub(started),
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Topology:     e.Topology,
			Seed:         e.Seed,
			Evaluations:  e.Evaluations,
			BestName:     e.BestName,
			BestScore:    e.BestScore,
		})
	}
	return out, nil
}

// Top ranks the candidates of one run by score. Runs persisted in another
// process fall back to the top candidates written with the run artifacts.
func (c *Client) Top(ctx context.Context, req TopRequest) ([]TopItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "top")
	if err != nil {
		return nil, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	candidates, ok, err := c.store.GetCandidates(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		return stats.NewLeaderboard(candidates...).Top(req.Limit), nil
	}
	top, ok, err := stats.ReadTopCandidates(c.benchmarksDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("candidates not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	return top, nil
}

func (c *Client) History(ctx context.Context, req HistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "score history")
	if err != nil {
		return nil, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetScoreHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("score history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Lineage(ctx context.Context, req LineageRequest) ([]LineageItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "lineage")
	if err != nil {
		return nil, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}

	out := make([]LineageItem, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, LineageItem{
			CandidateID: rec.CandidateID,
			ParentID:    rec.ParentID,
			Ordinal:     rec.Ordinal,
			Name:        rec.Name,
			Phase:       rec.Phase,
			Operation:   rec.Operation,
			Fingerprint: rec.Fingerprint,
			Summary:     rec.Summary,
		})
	}
	return out, nil
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.benchmarksDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func buildInitialModel(cfg Config) (*encoding.FixedEdge, error) {
	candidates, err := ops.ParseAll(cfg.Topology.Candidates)
	if err != nil {
		return nil, err
	}
	return topology.Resolve(cfg.Topology.Name, topology.Options{
		Candidates:             candidates,
		MaxVertices:            cfg.Topology.MaxVertices,
		InitializeWithIdentity: cfg.Topology.InitializeWithIdentity,
		Hidden:                 cfg.Topology.Hidden,
		Outputs:                cfg.Topology.Outputs,
		PoolSize:               cfg.Topology.PoolSize,
		DropoutRate:            cfg.Topology.DropoutRate,
		Softmax:                cfg.Topology.Softmax,
		Seed:                   cfg.Search.Seed,
	})
}

func buildTrainer(cfg Config) (*trainer.KFold, error) {
	data, err := loadDataset(cfg.Trainer, cfg.Search.Seed)
	if err != nil {
		return nil, err
	}
	return trainer.NewKFold(trainer.KFoldConfig{
		Folds:   cfg.Trainer.Folds,
		Epochs:  cfg.Trainer.Epochs,
		Workers: cfg.Trainer.Workers,
		Data:    data,
		Evaluator: trainer.ReadoutEvaluator{
			LearningRate: cfg.Trainer.LearningRate,
			Ridge:        cfg.Trainer.Ridge,
		},
	})
}

func loadDataset(cfg config.TrainerConfig, seed int64) (trainer.Dataset, error) {
	if cfg.DataPath == "" {
		return trainer.SyntheticRegression(cfg.Samples, cfg.Features, 1, cfg.Noise, seed)
	}
	return trainer.LoadCSVFile(cfg.DataPath, trainer.CSVOptions{
		HasHeader:         cfg.DataHeader,
		TargetColumnNames: cfg.TargetColumns,
	})
}

func topologySummary(s encoding.Summary) model.TopologySummary {
	return model.TopologySummary{
		Vertices:              s.Vertices,
		Edges:                 s.Edges,
		FixedEdges:            s.FixedEdges,
		MutableEdges:          s.MutableEdges,
		Operations:            s.Operations,
		OperationDistribution: s.OperationDistribution,
	}
}

func candidateItem(c evo.Candidate) CandidateItem {
	return CandidateItem{
		ID:          c.ID,
		Ordinal:     c.Ordinal,
		Name:        c.Name,
		ParentID:    c.ParentID,
		Phase:       string(c.Phase),
		Score:       c.Score,
		Mutations:   append([]string(nil), c.Mutations...),
		Fingerprint: c.Signature.Fingerprint,
		Summary:     topologySummary(c.Signature.Summary),
		Elapsed:     c.Elapsed,
	}
}

func candidateRecord(runID string, c evo.Candidate) model.CandidateRecord {
	return model.CandidateRecord{
		VersionedRecord: storage.Versioned(),
		ID:              c.ID,
		RunID:           runID,
		Ordinal:         c.Ordinal,
		Name:            c.Name,
		ParentID:        c.ParentID,
		Phase:           string(c.Phase),
		Score:           c.Score,
		Mutations:       append([]string(nil), c.Mutations...),
		Fingerprint:     c.Signature.Fingerprint,
		Summary:         topologySummary(c.Signature.Summary),
		ElapsedSeconds:  c.Elapsed.Seconds(),
	}
}

func lineageRecord(rec evo.LineageRecord) model.LineageRecord {
	return model.LineageRecord{
		VersionedRecord: storage.Versioned(),
		CandidateID:     rec.CandidateID,
		ParentID:        rec.ParentID,
		Ordinal:         rec.Ordinal,
		Name:            rec.Name,
		Phase:           string(rec.Phase),
		Operation:       rec.Operation,
		Fingerprint:     rec.Fingerprint,
		Summary:         topologySummary(rec.Summary),
	}
}
