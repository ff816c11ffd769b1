// Package topology provides the fixed outer structures that host mutable
// edges during a search, resolved by name from configuration.
package topology

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"evonas/internal/encoding"
	"evonas/internal/ops"
)

var (
	ErrTopologyExists   = errors.New("topology already registered")
	ErrTopologyNotFound = errors.New("topology not found")
)

// Options parameterize a topology. Zero values fall back to the defaults
// of the chosen topology.
type Options struct {
	Candidates             []encoding.Operation
	MaxVertices            int
	InitializeWithIdentity bool
	Hidden                 int
	Outputs                int
	PoolSize               int
	DropoutRate            float64
	Softmax                bool
	Seed                   int64
}

// Factory builds a topology from options.
type Factory func(Options) (encoding.Topology, error)

var topologyRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: make(map[string]Factory),
}

func init() {
	initializeBuiltInTopologies()
}

func initializeBuiltInTopologies() {
	MustRegister(StackedName, func(o Options) (encoding.Topology, error) { return NewStacked(o) })
	MustRegister(BranchedName, func(o Options) (encoding.Topology, error) { return NewBranched(o) })
}

func Register(name string, f Factory) error {
	if name == "" {
		return errors.New("topology name is required")
	}
	if f == nil {
		return errors.New("topology factory is required")
	}

	topologyRegistry.mu.Lock()
	defer topologyRegistry.mu.Unlock()

	if _, exists := topologyRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrTopologyExists, name)
	}
	topologyRegistry.m[name] = f
	return nil
}

func MustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

// Resolve builds the named topology and wraps it as the root fixed edge of
// a search.
func Resolve(name string, o Options) (*encoding.FixedEdge, error) {
	topologyRegistry.mu.RLock()
	f, ok := topologyRegistry.m[name]
	topologyRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTopologyNotFound, name)
	}
	t, err := f(o)
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", name, err)
	}
	return encoding.NewFixedEdge(t)
}

func List() []string {
	topologyRegistry.mu.RLock()
	defer topologyRegistry.mu.RUnlock()

	names := make([]string, 0, len(topologyRegistry.m))
	for name := range topologyRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultCandidates is the candidate set used when none is configured.
func DefaultCandidates() []encoding.Operation {
	return []encoding.Operation{
		ops.BatchNorm{},
		ops.Dense{Units: 16},
		ops.Tanh,
		encoding.Identity{},
		ops.Sigmoid,
		ops.Dropout{Rate: 0.25},
		ops.ReLU,
	}
}

func resetTopologyRegistryForTests() {
	topologyRegistry.mu.Lock()
	topologyRegistry.m = make(map[string]Factory)
	topologyRegistry.mu.Unlock()
	initializeBuiltInTopologies()
}
