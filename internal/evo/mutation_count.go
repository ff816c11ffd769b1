package evo

import (
	"fmt"
	"math/rand"
)

// MutationCountPolicy decides how many mutations are applied to a freshly
// seeded candidate.
type MutationCountPolicy interface {
	Name() string
	MutationCount(rng *rand.Rand) (int, error)
}

// UniformMutationCount draws uniformly from [Min, Max).
type UniformMutationCount struct {
	Min int
	Max int
}

func (UniformMutationCount) Name() string {
	return "uniform"
}

func (p UniformMutationCount) MutationCount(rng *rand.Rand) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if p.Min <= 0 || p.Max <= p.Min {
		return 0, fmt.Errorf("uniform mutation count requires 0 < min < max, got [%d, %d)", p.Min, p.Max)
	}
	return p.Min + rng.Intn(p.Max-p.Min), nil
}

type ConstMutationCount struct {
	Count int
}

func (ConstMutationCount) Name() string {
	return "const"
}

func (p ConstMutationCount) MutationCount(_ *rand.Rand) (int, error) {
	if p.Count <= 0 {
		return 0, fmt.Errorf("const mutation count must be > 0")
	}
	return p.Count, nil
}

// DefaultSeedMutations draws 1 to 4 mutations per seeded candidate.
func DefaultSeedMutations() MutationCountPolicy {
	return UniformMutationCount{Min: 1, Max: 5}
}
