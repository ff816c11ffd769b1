package evo

import (
	"fmt"
	"math/rand"
)

// ParentSelector chooses the parent of the next candidate from the current
// population.
type ParentSelector interface {
	Name() string
	PickParent(rng *rand.Rand, population []Candidate, sampleSize int) (Candidate, error)
}

// TournamentSelector samples sampleSize members with replacement and picks
// the highest score among them. Ties keep the earliest sample.
type TournamentSelector struct{}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (TournamentSelector) PickParent(rng *rand.Rand, population []Candidate, sampleSize int) (Candidate, error) {
	if rng == nil {
		return Candidate{}, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return Candidate{}, fmt.Errorf("population is empty")
	}
	if sampleSize <= 0 {
		return Candidate{}, fmt.Errorf("invalid sample size: %d", sampleSize)
	}

	sample := sampleIndices(rng, len(population), sampleSize)
	best := population[sample[0]]
	for _, idx := range sample[1:] {
		if population[idx].Score > best.Score {
			best = population[idx]
		}
	}
	return best, nil
}

// sampleIndices draws k indices in [0, n) uniformly with replacement.
func sampleIndices(rng *rand.Rand, n, k int) []int {
	out := make([]int, k)
	for i := range out {
		out[i] = rng.Intn(n)
	}
	return out
}

// RandomSelector ignores scores and picks a uniform member. Useful as a
// baseline against tournament selection.
type RandomSelector struct{}

func (RandomSelector) Name() string {
	return "random"
}

func (RandomSelector) PickParent(rng *rand.Rand, population []Candidate, _ int) (Candidate, error) {
	if rng == nil {
		return Candidate{}, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return Candidate{}, fmt.Errorf("population is empty")
	}
	return population[rng.Intn(len(population))], nil
}
