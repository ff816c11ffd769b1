package topology

import (
	"fmt"
	"slices"

	"evonas/internal/encoding"
	"evonas/internal/ops"
)

const BranchedName = "branched"

// Branched runs two independent mutable edges side by side from the input
// and concatenates them before a dense projection.
type Branched struct {
	candidates   []encoding.Operation
	maxVertices  int
	withIdentity bool
	outputs      int
	seed         int64
}

func NewBranched(o Options) (Branched, error) {
	b := Branched{
		candidates:   slices.Clone(o.Candidates),
		maxVertices:  o.MaxVertices,
		withIdentity: o.InitializeWithIdentity,
		outputs:      o.Outputs,
		seed:         o.Seed,
	}
	if len(b.candidates) == 0 {
		b.candidates = DefaultCandidates()
	}
	if b.maxVertices == 0 {
		b.maxVertices = 6
	}
	if b.outputs == 0 {
		b.outputs = 1
	}
	if b.maxVertices < 0 || b.outputs < 0 {
		return Branched{}, fmt.Errorf("branched: sizes must be positive")
	}
	return b, nil
}

func (Branched) Name() string {
	return BranchedName
}

func (b Branched) BuildGraph(g *encoding.Graph) error {
	merge := g.AddVertex("merge")
	for _, name := range []string{"left", "right"} {
		branch, err := encoding.NewMutableEdge(b.candidates, b.maxVertices, b.withIdentity)
		if err != nil {
			return err
		}
		if _, err := g.AddEdge(g.Input(), merge, branch); err != nil {
			return fmt.Errorf("%s branch: %w", name, err)
		}
	}
	_, err := g.AddEdge(merge, g.Output(), encoding.Op(ops.Dense{Units: b.outputs, Seed: b.seed}))
	return err
}

var _ encoding.Topology = Branched{}
