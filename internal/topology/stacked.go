package topology

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"evonas/internal/encoding"
	"evonas/internal/ops"
)

const StackedName = "stacked"

// Stacked is a classifier body: a mutable block, a max pool, an independent
// copy of the mutable block, then a dense/relu/dropout/dense head.
//
//	input -> block -> pool -> block' -> dense(hidden) -> relu -> dropout -> dense(outputs)
type Stacked struct {
	candidates   []encoding.Operation
	maxVertices  int
	withIdentity bool
	hidden       int
	outputs      int
	poolSize     int
	dropout      float64
	softmax      bool
	seed         int64
}

func NewStacked(o Options) (Stacked, error) {
	s := Stacked{
		candidates:   slices.Clone(o.Candidates),
		maxVertices:  o.MaxVertices,
		withIdentity: o.InitializeWithIdentity,
		hidden:       o.Hidden,
		outputs:      o.Outputs,
		poolSize:     o.PoolSize,
		dropout:      o.DropoutRate,
		softmax:      o.Softmax,
		seed:         o.Seed,
	}
	if len(s.candidates) == 0 {
		s.candidates = DefaultCandidates()
	}
	if s.maxVertices == 0 {
		s.maxVertices = 10
	}
	if s.hidden == 0 {
		s.hidden = 512
	}
	if s.outputs == 0 {
		s.outputs = 10
	}
	if s.poolSize == 0 {
		s.poolSize = 2
	}
	if s.dropout == 0 {
		s.dropout = 0.5
	}
	if s.maxVertices < 0 || s.hidden < 0 || s.outputs < 0 || s.poolSize < 0 {
		return Stacked{}, fmt.Errorf("stacked: sizes must be positive")
	}
	if s.dropout < 0 || s.dropout >= 1 {
		return Stacked{}, fmt.Errorf("stacked: dropout rate must be in [0, 1), got %g", s.dropout)
	}
	return s, nil
}

func (Stacked) Name() string {
	return StackedName
}

func (s Stacked) BuildGraph(g *encoding.Graph) error {
	block, err := encoding.NewMutableEdge(s.candidates, s.maxVertices, s.withIdentity)
	if err != nil {
		return err
	}

	chain := []encoding.Edge{
		block,
		encoding.Op(ops.MaxPool{Size: s.poolSize}),
		block.Clone(),
		encoding.Op(ops.Dense{Units: s.hidden, Seed: s.seed}),
		encoding.Op(ops.ReLU),
		encoding.Op(ops.Dropout{Rate: s.dropout}),
		encoding.Op(ops.Dense{Units: s.outputs, Seed: s.seed + 1}),
	}
	names := []string{"block1", "pool", "block2", "hidden", "activation", "dropout"}

	from := g.Input()
	for i, e := range chain {
		to := g.Output()
		if i < len(names) {
			to = g.AddVertex(names[i])
		}
		if _, err := g.AddEdge(from, to, e); err != nil {
			return err
		}
		from = to
	}
	return nil
}

// Head applies a row-wise softmax when the topology was built with Softmax.
func (s Stacked) Head(x *mat.Dense) (*mat.Dense, error) {
	if !s.softmax {
		return x, nil
	}
	return ops.Softmax{}.Build(x)
}

var (
	_ encoding.Topology = Stacked{}
	_ encoding.Head     = Stacked{}
)
