package encoding

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Topology describes how to populate the body of a fixed edge. BuildGraph
// runs once, when the edge is created; copies of the edge re-derive their
// body by copying, never by calling BuildGraph again. Topology values are
// shared between copies and must be immutable.
type Topology interface {
	Name() string
	BuildGraph(g *Graph) error
}

// Head is implemented by topologies that post-process the output of their
// body, e.g. a softmax over logits.
type Head interface {
	Head(x *mat.Dense) (*mat.Dense, error)
}

// FixedEdge is a structurally static edge: either a single operation or a
// named subgraph built from a Topology.
type FixedEdge struct {
	name     string
	op       Operation
	topology Topology
	body     *Graph
}

// Op wraps one operation as a fixed edge.
func Op(op Operation) *FixedEdge {
	if op == nil {
		return nil
	}
	return &FixedEdge{name: op.Name(), op: op}
}

func NewFixedEdge(t Topology) (*FixedEdge, error) {
	if t == nil {
		return nil, errors.New("topology is required")
	}
	body := NewGraph(t.Name())
	if err := t.BuildGraph(body); err != nil {
		return nil, fmt.Errorf("build %s: %w", t.Name(), err)
	}
	if err := body.Validate(); err != nil {
		return nil, fmt.Errorf("build %s: %w", t.Name(), err)
	}
	return &FixedEdge{name: t.Name(), topology: t, body: body}, nil
}

func (e *FixedEdge) Kind() EdgeKind {
	return KindFixed
}

func (e *FixedEdge) Name() string {
	return e.name
}

// Operation returns the wrapped operation, or nil for a subgraph edge.
func (e *FixedEdge) Operation() Operation {
	return e.op
}

// Body returns the subgraph, or nil for a single-operation edge.
func (e *FixedEdge) Body() *Graph {
	return e.body
}

func (e *FixedEdge) Build(x *mat.Dense) (*mat.Dense, error) {
	if e.op != nil {
		return e.op.Build(x)
	}
	if e.body == nil {
		return nil, fmt.Errorf("fixed edge %s has no body", e.name)
	}
	out, err := e.body.Build(x)
	if err != nil {
		return nil, err
	}
	if head, ok := e.topology.(Head); ok {
		return head.Head(out)
	}
	return out, nil
}

func (e *FixedEdge) DeepCopy() Edge {
	return e.Clone()
}

// Clone is DeepCopy with the concrete type preserved.
func (e *FixedEdge) Clone() *FixedEdge {
	out := &FixedEdge{name: e.name, op: e.op, topology: e.topology}
	if e.body != nil {
		out.body = e.body.DeepCopy()
	}
	return out
}

func (e *FixedEdge) MutableEdges() []*MutableEdge {
	if e.body == nil {
		return nil
	}
	return e.body.MutableEdges()
}

func (e *FixedEdge) Validate() error {
	if e.body == nil {
		return nil
	}
	return e.body.Validate()
}
