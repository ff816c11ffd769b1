package encoding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type scaleOp struct {
	k float64
}

func (o scaleOp) Name() string { return fmt.Sprintf("scale(%g)", o.k) }

func (o scaleOp) Build(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Scale(o.k, x)
	return out, nil
}

type addOp struct {
	v float64
}

func (o addOp) Name() string { return fmt.Sprintf("add(%g)", o.v) }

func (o addOp) Build(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return v + o.v }, x)
	return out, nil
}

// chainTopology mirrors the shape of a stacked conv block: a mutable edge, a
// fixed op, then an independent copy of the first mutable edge.
type chainTopology struct {
	candidates []Operation
	builds     *int
}

func (chainTopology) Name() string { return "chain" }

func (t chainTopology) BuildGraph(g *Graph) error {
	if t.builds != nil {
		*t.builds++
	}
	first, err := NewMutableEdge(t.candidates, 4, false)
	if err != nil {
		return err
	}
	v1 := g.AddVertex("v1")
	if _, err := g.AddEdge(g.Input(), v1, first); err != nil {
		return err
	}
	v2 := g.AddVertex("v2")
	if _, err := g.AddEdge(v1, v2, Op(scaleOp{k: 0.5})); err != nil {
		return err
	}
	_, err = g.AddEdge(v2, g.Output(), first.Clone())
	return err
}

type softmaxLikeHead struct {
	chainTopology
}

func (softmaxLikeHead) Head(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return -v }, x)
	return out, nil
}

func defaultCandidates() []Operation {
	return []Operation{scaleOp{k: 2}, addOp{v: 1}, scaleOp{k: -1}}
}

func newChain(t *testing.T) *FixedEdge {
	t.Helper()
	root, err := NewFixedEdge(chainTopology{candidates: defaultCandidates()})
	require.NoError(t, err)
	return root
}

func row(values ...float64) *mat.Dense {
	return mat.NewDense(1, len(values), values)
}
