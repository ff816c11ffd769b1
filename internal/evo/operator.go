package evo

import (
	"context"

	"evonas/internal/encoding"
)

// MutationStrategy performs one structural edit on a model, in place.
// Callers own the model exclusively; the scheduler always hands over a
// fresh copy.
type MutationStrategy interface {
	Name() string
	Apply(ctx context.Context, model *encoding.FixedEdge) error
}

// WeightedMutation pairs a strategy with its selection weight in a mutation
// policy.
type WeightedMutation struct {
	Strategy MutationStrategy
	Weight   float64
}
