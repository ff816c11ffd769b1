package ops

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"evonas/internal/encoding"
)

var (
	ErrOperationExists   = errors.New("operation already registered")
	ErrOperationNotFound = errors.New("operation not found")
)

// Factory builds an operation from the optional parameter that follows the
// colon in a spec such as "dense:32".
type Factory func(param string) (encoding.Operation, error)

var operationRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: make(map[string]Factory),
}

func init() {
	initializeBuiltInOperations()
}

func initializeBuiltInOperations() {
	MustRegister("identity", constant(encoding.Identity{}))
	MustRegister("relu", constant(ReLU))
	MustRegister("tanh", constant(Tanh))
	MustRegister("sigmoid", constant(Sigmoid))
	MustRegister("softmax", constant(Softmax{}))
	MustRegister("batchnorm", constant(BatchNorm{}))
	MustRegister("dense", func(param string) (encoding.Operation, error) {
		units, err := intParam(param, 0)
		if err != nil {
			return nil, err
		}
		if units <= 0 {
			return nil, errors.New("dense requires a positive unit count, e.g. dense:32")
		}
		return Dense{Units: units}, nil
	})
	MustRegister("dropout", func(param string) (encoding.Operation, error) {
		rate := 0.5
		if param != "" {
			v, err := strconv.ParseFloat(param, 64)
			if err != nil {
				return nil, fmt.Errorf("dropout rate %q: %w", param, err)
			}
			rate = v
		}
		if rate < 0 || rate >= 1 {
			return nil, fmt.Errorf("dropout rate must be in [0, 1), got %g", rate)
		}
		return Dropout{Rate: rate}, nil
	})
	MustRegister("maxpool", func(param string) (encoding.Operation, error) {
		size, err := intParam(param, 2)
		if err != nil {
			return nil, err
		}
		if size <= 0 {
			return nil, fmt.Errorf("pool size must be > 0, got %d", size)
		}
		return MaxPool{Size: size}, nil
	})
}

func Register(name string, f Factory) error {
	if name == "" {
		return errors.New("operation name is required")
	}
	if f == nil {
		return errors.New("operation factory is required")
	}

	operationRegistry.mu.Lock()
	defer operationRegistry.mu.Unlock()

	if _, exists := operationRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperationExists, name)
	}
	operationRegistry.m[name] = f
	return nil
}

func MustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

// Parse resolves a spec of the form "name" or "name:param".
func Parse(spec string) (encoding.Operation, error) {
	name, param, _ := strings.Cut(strings.TrimSpace(spec), ":")

	operationRegistry.mu.RLock()
	f, ok := operationRegistry.m[name]
	operationRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, name)
	}
	op, err := f(param)
	if err != nil {
		return nil, fmt.Errorf("operation %s: %w", spec, err)
	}
	return op, nil
}

func ParseAll(specs []string) ([]encoding.Operation, error) {
	out := make([]encoding.Operation, 0, len(specs))
	for _, spec := range specs {
		op, err := Parse(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func List() []string {
	operationRegistry.mu.RLock()
	defer operationRegistry.mu.RUnlock()

	names := make([]string, 0, len(operationRegistry.m))
	for name := range operationRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func constant(op encoding.Operation) Factory {
	return func(string) (encoding.Operation, error) { return op, nil }
}

func intParam(param string, fallback int) (int, error) {
	if param == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(param)
	if err != nil {
		return 0, fmt.Errorf("integer parameter %q: %w", param, err)
	}
	return v, nil
}

func resetOperationRegistryForTests() {
	operationRegistry.mu.Lock()
	operationRegistry.m = make(map[string]Factory)
	operationRegistry.mu.Unlock()
	initializeBuiltInOperations()
}
