package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evonas/internal/config"
	"evonas/internal/storage"
	"evonas/pkg/evonas"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config file (.yaml, .yml or .toml)")
	topologyName := fs.String("topology", "branched", "initial topology: branched|stacked")
	candidates := fs.String("candidates", "", "comma-separated candidate operations, e.g. relu,dense:16,dropout:0.25")
	maxVertices := fs.Int("max-vertices", 6, "maximum operations per mutable edge")
	population := fs.Int("pop", 4, "population size")
	iterations := fs.Int("iterations", 6, "total number of evaluated candidates")
	sampleSize := fs.Int("sample-size", 2, "tournament sample size")
	seed := fs.Int64("seed", 1, "rng seed")
	selector := fs.String("selector", "tournament", "parent selector: tournament|random")
	mutation := fs.String("mutation", "mutate_one_layer", "mutation strategy")
	wInsert := fs.Float64("w-insert", 0, "weight for inserting an operation (all zero picks uniformly)")
	wRemove := fs.Float64("w-remove", 0, "weight for removing an operation")
	wSwap := fs.Float64("w-swap", 0, "weight for swapping an operation")
	folds := fs.Int("folds", 2, "cross-validation folds")
	epochs := fs.Int("epochs", 3, "training epochs per fold")
	workers := fs.Int("workers", 2, "folds trained concurrently")
	samples := fs.Int("samples", 128, "synthetic dataset rows")
	features := fs.Int("features", 4, "synthetic dataset columns")
	dataPath := fs.String("data", "", "CSV dataset; the last column is the target unless the config names target columns")
	dataHeader := fs.Bool("data-header", false, "CSV dataset starts with a header row")
	storeKind := fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "evonas.db", "sqlite database path")
	benchmarksDir := fs.String("benchmarks-dir", "benchmarks", "directory for run artifacts")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	logFormat := fs.String("log-format", "text", "log format: text|json")
	logFile := fs.String("log-file", "", "write logs to a rotating file instead of stderr")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	showBest := fs.Bool("show-best", false, "print the best architecture")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "topology":
			cfg.Topology.Name = *topologyName
		case "candidates":
			cfg.Topology.Candidates = splitList(*candidates)
		case "max-vertices":
			cfg.Topology.MaxVertices = *maxVertices
		case "pop":
			cfg.Search.PopulationSize = *population
		case "iterations":
			cfg.Search.Iterations = *iterations
		case "sample-size":
			cfg.Search.SampleSize = *sampleSize
		case "seed":
			cfg.Search.Seed = *seed
		case "selector":
			cfg.Search.Selector = *selector
		case "mutation":
			cfg.Search.Mutation = *mutation
		case "w-insert":
			cfg.Search.Weights.Insert = *wInsert
		case "w-remove":
			cfg.Search.Weights.Remove = *wRemove
		case "w-swap":
			cfg.Search.Weights.Swap = *wSwap
		case "folds":
			cfg.Trainer.Folds = *folds
		case "epochs":
			cfg.Trainer.Epochs = *epochs
		case "workers":
			cfg.Trainer.Workers = *workers
		case "samples":
			cfg.Trainer.Samples = *samples
		case "features":
			cfg.Trainer.Features = *features
		case "data":
			cfg.Trainer.DataPath = *dataPath
		case "data-header":
			cfg.Trainer.DataHeader = *dataHeader
		case "store":
			cfg.Storage.Kind = *storeKind
		case "db-path":
			cfg.Storage.Path = *dbPath
		case "benchmarks-dir":
			cfg.Storage.BenchmarksDir = *benchmarksDir
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-format":
			cfg.Logging.Format = *logFormat
		case "log-file":
			cfg.Logging.File = *logFile
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logOut := logOutput(cfg.Logging)
	defer func() {
		_ = logOut.Close()
	}()
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format, logOut)

	reg := prometheus.NewRegistry()
	if cfg.Metrics.Addr != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Addr, reg)
		if err != nil {
			return err
		}
		defer shutdown()
		logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
	}

	client, err := evonas.New(evonas.Options{
		StoreKind:     cfg.Storage.Kind,
		DBPath:        cfg.Storage.Path,
		BenchmarksDir: cfg.Storage.BenchmarksDir,
		Logger:        logger,
		Registerer:    reg,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	reporter := newProgressReporter(os.Stderr)
	summary, err := client.Run(ctx, evonas.RunRequest{
		Config:      cfg,
		Progress:    reporter.progress,
		OnCandidate: reporter.candidate,
	})
	reporter.finish()
	if err != nil {
		return err
	}

	if *jsonOut {
		type runOutput struct {
			RunID            string              `json:"run_id"`
			ArtifactsDir     string              `json:"artifacts_dir"`
			BestID           string              `json:"best_id"`
			BestName         string              `json:"best_name"`
			BestScore        float64             `json:"best_score"`
			BestFingerprint  string              `json:"best_fingerprint"`
			BestArchitecture string              `json:"best_architecture,omitempty"`
			ScoreHistory     []float64           `json:"score_history"`
			Summary          evonas.ScoreSummary `json:"summary"`
			Progress         float64             `json:"progress"`
			DurationSeconds  float64             `json:"duration_seconds"`
		}
		out := runOutput{
			RunID:           summary.RunID,
			ArtifactsDir:    summary.ArtifactsDir,
			BestID:          summary.Best.ID,
			BestName:        summary.Best.Name,
			BestScore:       summary.Best.Score,
			BestFingerprint: summary.Best.Fingerprint,
			ScoreHistory:    summary.ScoreHistory,
			Summary:         summary.Summary,
			Progress:        summary.Progress,
			DurationSeconds: summary.Duration.Seconds(),
		}
		if *showBest {
			out.BestArchitecture = summary.BestArchitecture
		}
		return writeJSON(out)
	}

	fmt.Printf("run_id=%s best=%s score=%.6f evaluations=%s mean=%.6f std=%.6f progress=%.3f took=%s artifacts=%s\n",
		summary.RunID,
		summary.Best.Name,
		summary.Best.Score,
		humanize.Comma(int64(summary.Summary.Count)),
		summary.Summary.Mean,
		summary.Summary.StdDev,
		summary.Progress,
		summary.Duration.Round(time.Millisecond),
		summary.ArtifactsDir,
	)
	if *showBest {
		fmt.Print(summary.BestArchitecture)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	benchmarksDir := fs.String("benchmarks-dir", "benchmarks", "directory for run artifacts")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := evonas.New(evonas.Options{BenchmarksDir: *benchmarksDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, evonas.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		type runsItem struct {
			RunID        string  `json:"run_id"`
			CreatedAtUTC string  `json:"created_at_utc"`
			Topology     string  `json:"topology"`
			Seed         int64   `json:"seed"`
			Evaluations  int     `json:"evaluations"`
			BestName     string  `json:"best_name"`
			BestScore    float64 `json:"best_score"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem(r))
		}
		return writeJSON(items)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created=%s topology=%s seed=%d evaluations=%s best=%s best_score=%.6f\n",
			r.RunID,
			relativeTime(r.CreatedAtUTC),
			r.Topology,
			r.Seed,
			humanize.Comma(int64(r.Evaluations)),
			r.BestName,
			r.BestScore,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	limit := fs.Int("limit", 10, "max candidates to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit top candidates as JSON")
	client, err := clientFromFlags(fs, args)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if *limit < 0 {
		*limit = 0
	}

	top, err := client.Top(ctx, evonas.TopRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(top)
	}
	if len(top) == 0 {
		fmt.Println("no candidates")
		return nil
	}
	for _, item := range top {
		fmt.Printf("rank=%d name=%s score=%.6f phase=%s fingerprint=%s id=%s\n",
			item.Rank, item.Name, item.Score, item.Phase, item.Fingerprint, item.CandidateID)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	limit := fs.Int("limit", 0, "max scores to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit score history as JSON")
	client, err := clientFromFlags(fs, args)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if *limit < 0 {
		*limit = 0
	}

	history, err := client.History(ctx, evonas.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(history)
	}
	best := 0.0
	for i, score := range history {
		if i == 0 || score > best {
			best = score
		}
		fmt.Printf("ordinal=%d score=%.6f best_so_far=%.6f\n", i, score, best)
	}
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	limit := fs.Int("limit", 50, "max lineage rows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit lineage rows as JSON")
	client, err := clientFromFlags(fs, args)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if *limit < 0 {
		*limit = 0
	}

	lineage, err := client.Lineage(ctx, evonas.LineageRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(lineage)
	}
	if len(lineage) == 0 {
		fmt.Println("no lineage records")
		return nil
	}
	for _, rec := range lineage {
		parent := rec.ParentID
		if parent == "" {
			parent = "-"
		}
		fmt.Printf("ordinal=%d name=%s phase=%s parent_id=%s op=%s fingerprint=%s operations=%d\n",
			rec.Ordinal, rec.Name, rec.Phase, parent, rec.Operation, rec.Fingerprint, rec.Summary.Operations)
	}
	return nil
}

// clientFromFlags adds the store flags shared by read commands, parses args
// and opens a client.
func clientFromFlags(fs *flag.FlagSet, args []string) (*evonas.Client, error) {
	storeKind := fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "evonas.db", "sqlite database path")
	benchmarksDir := fs.String("benchmarks-dir", "benchmarks", "directory for run artifacts")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return evonas.New(evonas.Options{
		StoreKind:     *storeKind,
		DBPath:        *dbPath,
		BenchmarksDir: *benchmarksDir,
	})
}

// serveMetrics starts a /metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, gatherer prometheus.Gatherer) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func relativeTime(rfc3339 string) string {
	ts, err := time.Parse(time.RFC3339Nano, rfc3339)
	if err != nil {
		return rfc3339
	}
	return humanize.Time(ts)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evonasctl <run|runs|top|history|lineage> [flags]", msg)
}
