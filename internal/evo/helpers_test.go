package evo

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"evonas/internal/encoding"
	"evonas/internal/ops"
	"evonas/internal/topology"
)

// scriptedTrainer returns scores in call order and reports folds*epochs
// progress callbacks per evaluation.
type scriptedTrainer struct {
	scores []float64
	folds  int
	epochs int
	failAt int
	err    error

	calls  []string
	models []*encoding.FixedEdge
}

func (s *scriptedTrainer) TrainAndEval(_ context.Context, model *encoding.FixedEdge, name string, observers []ProgressObserver) (float64, error) {
	s.calls = append(s.calls, name)
	s.models = append(s.models, model)
	if s.failAt > 0 && len(s.calls) == s.failAt {
		return 0, s.err
	}
	for cv := 0; cv < s.folds; cv++ {
		for epoch := 0; epoch < s.epochs; epoch++ {
			for _, o := range observers {
				o.OnProgress(name, cv, epoch, s.folds, s.epochs)
			}
		}
	}
	if len(s.scores) == 0 {
		return float64(len(s.calls)), nil
	}
	return s.scores[(len(s.calls)-1)%len(s.scores)], nil
}

type countingStrategy struct {
	inner MutationStrategy
	calls int
}

func (s *countingStrategy) Name() string { return "counting" }

func (s *countingStrategy) Apply(ctx context.Context, model *encoding.FixedEdge) error {
	s.calls++
	return s.inner.Apply(ctx, model)
}

type fixedOnlyTopology struct{}

func (fixedOnlyTopology) Name() string { return "fixed_only" }

func (fixedOnlyTopology) BuildGraph(g *encoding.Graph) error {
	_, err := g.AddEdge(g.Input(), g.Output(), encoding.Op(ops.ReLU))
	return err
}

func newBranchedModel(t *testing.T, maxVertices int, identity bool, candidates ...encoding.Operation) *encoding.FixedEdge {
	t.Helper()
	if len(candidates) == 0 {
		candidates = []encoding.Operation{ops.ReLU, ops.Tanh, ops.Sigmoid}
	}
	root, err := topology.Resolve(topology.BranchedName, topology.Options{
		Candidates:             candidates,
		MaxVertices:            maxVertices,
		InitializeWithIdentity: identity,
	})
	require.NoError(t, err)
	return root
}

func newTestEvolution(t *testing.T, cfg AgingConfig) *AgingEvolution {
	t.Helper()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	if cfg.InitialModel == nil {
		cfg.InitialModel = newBranchedModel(t, 4, false)
	}
	if cfg.Mutation == nil && len(cfg.MutationPolicy) == 0 {
		cfg.Mutation = &MutateOneLayer{Rand: cfg.Rand}
	}
	if cfg.RunID == "" {
		cfg.RunID = "run-test"
	}
	a, err := NewAgingEvolution(cfg)
	require.NoError(t, err)
	return a
}

func candidateNames(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func ordinalsByID(cs []Candidate) map[string]int {
	out := make(map[string]int, len(cs))
	for _, c := range cs {
		out[c.ID] = c.Ordinal
	}
	return out
}

func mustFixedOnly(t *testing.T) *encoding.FixedEdge {
	t.Helper()
	root, err := encoding.NewFixedEdge(fixedOnlyTopology{})
	require.NoError(t, err)
	return root
}
