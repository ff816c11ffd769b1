package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"evonas/internal/ctxlog"
	"evonas/internal/encoding"
)

type AgingConfig struct {
	RunID          string
	PopulationSize int
	Iterations     int
	SampleSize     int
	InitialModel   *encoding.FixedEdge
	Mutation       MutationStrategy
	MutationPolicy []WeightedMutation
	Trainer        Trainer
	Rand           *rand.Rand
	Seed           int64
	SeedMutations  MutationCountPolicy
	Selector       ParentSelector
	Observers      []ProgressObserver
	// ProgressSink receives the accumulated progress after every epoch.
	ProgressSink func(name string, fraction float64)
	// OnCandidate is called once for every candidate entering the history.
	OnCandidate func(Candidate)
	Metrics     MetricsRecorder
}

// AgingEvolution runs regularized (aging) evolution: a fixed-size population
// where every new child evicts the oldest member rather than the worst.
type AgingEvolution struct {
	cfg    AgingConfig
	rng    *rand.Rand
	logger *slog.Logger

	mu       sync.Mutex
	progress float64
}

func NewAgingEvolution(cfg AgingConfig) (*AgingEvolution, error) {
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be > 0")
	}
	if cfg.SampleSize <= 0 {
		return nil, fmt.Errorf("sample size must be > 0")
	}
	if cfg.InitialModel == nil {
		return nil, fmt.Errorf("initial model is required")
	}
	if cfg.Trainer == nil {
		return nil, fmt.Errorf("trainer is required")
	}
	if cfg.Mutation == nil && len(cfg.MutationPolicy) == 0 {
		return nil, fmt.Errorf("mutation strategy or policy is required")
	}
	positivePolicyWeight := false
	for i, item := range cfg.MutationPolicy {
		if item.Strategy == nil {
			return nil, fmt.Errorf("mutation policy strategy is required at index %d", i)
		}
		if item.Weight < 0 {
			return nil, fmt.Errorf("mutation policy weight must be >= 0 at index %d", i)
		}
		if item.Weight > 0 {
			positivePolicyWeight = true
		}
	}
	if len(cfg.MutationPolicy) > 0 && !positivePolicyWeight {
		return nil, fmt.Errorf("mutation policy requires at least one positive weight")
	}
	if cfg.SeedMutations == nil {
		cfg.SeedMutations = DefaultSeedMutations()
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	return &AgingEvolution{
		cfg:    cfg,
		rng:    rng,
		logger: slog.Default(),
	}, nil
}

func (a *AgingEvolution) RunID() string {
	return a.cfg.RunID
}

// Run seeds the population and then evolves it until the history holds
// Iterations candidates. The best candidate over the whole history is
// returned; ties keep the earliest.
func (a *AgingEvolution) Run(ctx context.Context) (RunResult, error) {
	a.logger = ctxlog.FromContext(ctx).With("run_id", a.cfg.RunID)
	a.setProgress(0)

	population := make([]Candidate, 0, a.cfg.PopulationSize+1)
	history := make([]Candidate, 0, max(a.cfg.Iterations, a.cfg.PopulationSize))
	lineage := make([]LineageRecord, 0, cap(history))
	best := -1

	record := func(c Candidate) {
		history = append(history, c)
		lineage = append(lineage, lineageOf(c))
		if best < 0 || c.Score > history[best].Score {
			best = len(history) - 1
			a.cfg.Metrics.SetBest(c.Score)
		}
		if a.cfg.OnCandidate != nil {
			a.cfg.OnCandidate(c)
		}
	}

	a.logger.Info("seeding population", "population_size", a.cfg.PopulationSize, "iterations", a.cfg.Iterations)
	for len(population) < a.cfg.PopulationSize {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		count, err := a.cfg.SeedMutations.MutationCount(a.rng)
		if err != nil {
			return RunResult{}, err
		}
		if count <= 0 {
			return RunResult{}, fmt.Errorf("invalid mutation count from policy: %d", count)
		}

		model := a.cfg.InitialModel.Clone()
		applied, err := a.mutate(ctx, model, count)
		if err != nil {
			return RunResult{}, err
		}
		c, err := a.evaluate(ctx, model, fmt.Sprintf("gen_%d", len(population)), len(history), PhaseSeed, "", applied)
		if err != nil {
			return RunResult{}, err
		}
		population = append(population, c)
		record(c)
		a.cfg.Metrics.SetPopulation(len(population))
	}
	a.logger.Info("finished generating population", "evaluated", len(history))

	for len(history) < a.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		parent, err := a.cfg.Selector.PickParent(a.rng, population, a.cfg.SampleSize)
		if err != nil {
			return RunResult{}, fmt.Errorf("select parent: %w", err)
		}

		model := parent.Model.Clone()
		applied, err := a.mutate(ctx, model, 1)
		if err != nil {
			return RunResult{}, err
		}
		c, err := a.evaluate(ctx, model, fmt.Sprintf("gen_%d", len(history)), len(history), PhaseImprove, parent.ID, applied)
		if err != nil {
			return RunResult{}, err
		}
		population = append(population, c)
		record(c)
		population = population[1:]
		a.cfg.Metrics.SetPopulation(len(population))
	}

	result := RunResult{
		RunID:      a.cfg.RunID,
		Best:       history[best],
		History:    history,
		Population: append([]Candidate(nil), population...),
		Lineage:    lineage,
		Progress:   a.Progress(),
	}
	a.logger.Info("search finished",
		"best", result.Best.Name,
		"best_score", result.Best.Score,
		"evaluated", len(history),
	)
	return result, nil
}

// OnProgress advances the run progress by one epoch of one fold. The
// denominator counts Iterations evaluations, so a run whose seeding phase
// exceeds Iterations reports more than 1.
func (a *AgingEvolution) OnProgress(name string, cvIdx, epochIdx, totalCV, totalEpoch int) {
	if totalCV <= 0 || totalEpoch <= 0 {
		return
	}
	a.mu.Lock()
	a.progress += 1.0 / float64(a.cfg.Iterations*totalCV*totalEpoch)
	progress := a.progress
	a.mu.Unlock()

	a.logger.Debug("epoch finished",
		"candidate", name,
		"fold", fmt.Sprintf("%d/%d", cvIdx+1, totalCV),
		"epoch", fmt.Sprintf("%d/%d", epochIdx+1, totalEpoch),
		"progress", progress,
	)
	a.cfg.Metrics.SetProgress(progress)
	if a.cfg.ProgressSink != nil {
		a.cfg.ProgressSink(name, progress)
	}
}

func (a *AgingEvolution) Progress() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

func (a *AgingEvolution) setProgress(v float64) {
	a.mu.Lock()
	a.progress = v
	a.mu.Unlock()
}

func (a *AgingEvolution) mutate(ctx context.Context, model *encoding.FixedEdge, count int) ([]string, error) {
	applied := make([]string, 0, count)
	for step := 0; step < count; step++ {
		strategy := a.chooseMutation()
		if err := strategy.Apply(ctx, model); err != nil {
			return nil, fmt.Errorf("mutation %s: %w", strategy.Name(), err)
		}
		name := strategy.Name()
		if d, ok := strategy.(interface{ LastAction() LayerAction }); ok {
			name += ":" + string(d.LastAction())
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func (a *AgingEvolution) chooseMutation() MutationStrategy {
	if len(a.cfg.MutationPolicy) == 0 {
		return a.cfg.Mutation
	}

	total := 0.0
	for _, item := range a.cfg.MutationPolicy {
		total += item.Weight
	}
	pick := a.rng.Float64() * total
	acc := 0.0
	for _, item := range a.cfg.MutationPolicy {
		acc += item.Weight
		if pick < acc {
			return item.Strategy
		}
	}
	return a.cfg.MutationPolicy[len(a.cfg.MutationPolicy)-1].Strategy
}

func (a *AgingEvolution) evaluate(ctx context.Context, model *encoding.FixedEdge, name string, ordinal int, phase Phase, parentID string, mutations []string) (Candidate, error) {
	observers := make([]ProgressObserver, 0, len(a.cfg.Observers)+1)
	observers = append(observers, a)
	observers = append(observers, a.cfg.Observers...)

	start := time.Now()
	score, err := a.cfg.Trainer.TrainAndEval(ctx, model, name, observers)
	if err != nil {
		return Candidate{}, fmt.Errorf("evaluate %s: %w", name, err)
	}
	elapsed := time.Since(start)
	a.cfg.Metrics.ObserveEvaluation(phase, score, elapsed)

	c := Candidate{
		ID:        CandidateID(a.cfg.RunID, name),
		Ordinal:   ordinal,
		Name:      name,
		Model:     model,
		Score:     score,
		ParentID:  parentID,
		Phase:     phase,
		Mutations: mutations,
		Signature: encoding.ComputeSignature(model),
		Elapsed:   elapsed,
	}
	a.logger.Debug("candidate evaluated",
		"candidate", name,
		"phase", phase,
		"score", score,
		"mutations", strings.Join(mutations, "+"),
		"fingerprint", c.Signature.Fingerprint,
		"elapsed", elapsed,
	)
	return c, nil
}

// CandidateID derives a stable identifier from the run and candidate name.
func CandidateID(runID, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(runID+"/"+name)).String()
}

func lineageOf(c Candidate) LineageRecord {
	return LineageRecord{
		CandidateID: c.ID,
		ParentID:    c.ParentID,
		Ordinal:     c.Ordinal,
		Name:        c.Name,
		Phase:       c.Phase,
		Operation:   strings.Join(c.Mutations, "+"),
		Fingerprint: c.Signature.Fingerprint,
		Summary:     c.Signature.Summary,
	}
}

var _ ProgressObserver = (*AgingEvolution)(nil)
