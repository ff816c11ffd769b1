package evo

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredPopulation(scores ...float64) []Candidate {
	out := make([]Candidate, len(scores))
	for i, s := range scores {
		out[i] = Candidate{ID: fmt.Sprintf("c%d", i), Ordinal: i, Score: s}
	}
	return out
}

func TestTournamentSelectorPicksStableMaxOfSample(t *testing.T) {
	population := scoredPopulation(0.3, 0.9, 0.1, 0.9, 0.5)
	for seed := int64(0); seed < 50; seed++ {
		sample := sampleIndices(rand.New(rand.NewSource(seed)), len(population), 3)
		want := population[sample[0]]
		for _, idx := range sample[1:] {
			if population[idx].Score > want.Score {
				want = population[idx]
			}
		}

		got, err := TournamentSelector{}.PickParent(rand.New(rand.NewSource(seed)), population, 3)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID, "seed %d sample %v", seed, sample)
	}
}

func TestTournamentSelectorTiesKeepFirstSampled(t *testing.T) {
	population := scoredPopulation(0.5, 0.5, 0.5, 0.5)
	for seed := int64(0); seed < 20; seed++ {
		first := rand.New(rand.NewSource(seed)).Intn(len(population))
		got, err := TournamentSelector{}.PickParent(rand.New(rand.NewSource(seed)), population, 4)
		require.NoError(t, err)
		assert.Equal(t, population[first].ID, got.ID)
	}
}

func TestSampleIndicesStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	seen := map[int]bool{}
	for _, idx := range sampleIndices(rng, 4, 1000) {
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 4)
		seen[idx] = true
	}
	assert.Len(t, seen, 4, "sampling is with replacement over every index")
}

func TestSelectorsRejectInvalidInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	population := scoredPopulation(0.1)

	for _, s := range []ParentSelector{TournamentSelector{}, RandomSelector{}} {
		_, err := s.PickParent(nil, population, 1)
		require.Error(t, err, s.Name())
		_, err = s.PickParent(rng, nil, 1)
		require.Error(t, err, s.Name())
	}
	_, err := TournamentSelector{}.PickParent(rng, population, 0)
	require.Error(t, err)
}

func TestRandomSelectorCoversPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	population := scoredPopulation(0.1, 0.2, 0.3)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		c, err := RandomSelector{}.PickParent(rng, population, 1)
		require.NoError(t, err)
		seen[c.ID] = true
	}
	assert.Len(t, seen, 3)
}
