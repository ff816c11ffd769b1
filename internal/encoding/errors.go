package encoding

import (
	"errors"
	"fmt"
)

// ErrStructuralInvariant is wrapped by every error that rejects a change
// which would break the graph or edge invariants. Callers can test for the
// whole class with errors.Is.
var ErrStructuralInvariant = errors.New("structural invariant violated")

var (
	ErrCycle         = fmt.Errorf("%w: edge would introduce a cycle", ErrStructuralInvariant)
	ErrUnknownVertex = fmt.Errorf("%w: unknown vertex", ErrStructuralInvariant)
	ErrNilEdge       = fmt.Errorf("%w: edge is required", ErrStructuralInvariant)
	ErrDisconnected  = fmt.Errorf("%w: graph is not connected from input to output", ErrStructuralInvariant)
	ErrMaxVertices   = fmt.Errorf("%w: operation sequence is at max vertices", ErrStructuralInvariant)
	ErrEmptyEdge     = fmt.Errorf("%w: operation sequence cannot shrink further", ErrStructuralInvariant)
	ErrPosition      = fmt.Errorf("%w: position out of range", ErrStructuralInvariant)
	ErrNilOperation  = fmt.Errorf("%w: operation is required", ErrStructuralInvariant)
)

var ErrShapeMismatch = errors.New("tensor shape mismatch")
