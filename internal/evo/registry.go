package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

var (
	ErrStrategyExists   = errors.New("mutation strategy already registered")
	ErrStrategyNotFound = errors.New("mutation strategy not found")
	ErrSelectorNotFound = errors.New("selector not found")
)

type MutationOptions struct {
	Rand    *rand.Rand
	Weights LayerMutationWeights
}

type MutationFactory func(MutationOptions) (MutationStrategy, error)

var strategyRegistry = struct {
	mu sync.RWMutex
	m  map[string]MutationFactory
}{
	m: make(map[string]MutationFactory),
}

func init() {
	initializeBuiltInStrategies()
}

func initializeBuiltInStrategies() {
	MustRegisterMutation("mutate_one_layer", func(o MutationOptions) (MutationStrategy, error) {
		if o.Rand == nil {
			return nil, fmt.Errorf("random source is required")
		}
		if err := o.Weights.Validate(); err != nil {
			return nil, err
		}
		return &MutateOneLayer{Rand: o.Rand, Weights: o.Weights}, nil
	})
}

func RegisterMutation(name string, f MutationFactory) error {
	if name == "" {
		return errors.New("mutation strategy name is required")
	}
	if f == nil {
		return errors.New("mutation strategy factory is required")
	}

	strategyRegistry.mu.Lock()
	defer strategyRegistry.mu.Unlock()

	if _, exists := strategyRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	strategyRegistry.m[name] = f
	return nil
}

func MustRegisterMutation(name string, f MutationFactory) {
	if err := RegisterMutation(name, f); err != nil {
		panic(err)
	}
}

func ResolveMutation(name string, o MutationOptions) (MutationStrategy, error) {
	strategyRegistry.mu.RLock()
	f, ok := strategyRegistry.m[name]
	strategyRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	return f(o)
}

func ListMutations() []string {
	strategyRegistry.mu.RLock()
	defer strategyRegistry.mu.RUnlock()

	names := make([]string, 0, len(strategyRegistry.m))
	for name := range strategyRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ResolveSelector(name string) (ParentSelector, error) {
	switch name {
	case "", "tournament":
		return TournamentSelector{}, nil
	case "random":
		return RandomSelector{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, name)
	}
}

func resetStrategyRegistryForTests() {
	strategyRegistry.mu.Lock()
	strategyRegistry.m = make(map[string]MutationFactory)
	strategyRegistry.mu.Unlock()
	initializeBuiltInStrategies()
}
