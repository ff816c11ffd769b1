package encoding

import (
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type Summary struct {
	Vertices              int            `json:"vertices"`
	Edges                 int            `json:"edges"`
	FixedEdges            int            `json:"fixed_edges"`
	MutableEdges          int            `json:"mutable_edges"`
	Operations            int            `json:"operations"`
	OperationDistribution map[string]int `json:"operation_distribution"`
}

type Signature struct {
	Fingerprint string  `json:"fingerprint"`
	Summary     Summary `json:"summary"`
}

// ComputeSignature summarizes the topology under e and fingerprints its
// canonical description. Structurally identical encodings share a
// fingerprint.
func ComputeSignature(e *FixedEdge) Signature {
	summary := Summary{OperationDistribution: map[string]int{}}
	summarizeFixed(e, &summary)
	return Signature{
		Fingerprint: fmt.Sprintf("%016x", xxhash.Sum64String(e.String())),
		Summary:     summary,
	}
}

func summarizeFixed(e *FixedEdge, s *Summary) {
	if e.op != nil {
		s.Operations++
		s.OperationDistribution[e.op.Name()]++
		return
	}
	if e.body == nil {
		return
	}
	s.Vertices += len(e.body.vertices)
	for _, rec := range e.body.edges {
		s.Edges++
		switch edge := rec.edge.(type) {
		case *FixedEdge:
			s.FixedEdges++
			summarizeFixed(edge, s)
		case *MutableEdge:
			s.MutableEdges++
			for _, op := range edge.ops {
				s.Operations++
				s.OperationDistribution[op.Name()]++
			}
		}
	}
}

// String renders the canonical, line-oriented description of the edge.
func (e *FixedEdge) String() string {
	var b strings.Builder
	writeFixed(&b, e, 0)
	return b.String()
}

func (e *FixedEdge) Describe(w io.Writer) error {
	_, err := io.WriteString(w, e.String())
	return err
}

func (e *MutableEdge) String() string {
	names := make([]string, len(e.ops))
	for i, op := range e.ops {
		names[i] = op.Name()
	}
	return fmt.Sprintf("mutable[%d/%d] %s", len(e.ops), e.maxVertices, strings.Join(names, " | "))
}

func writeFixed(b *strings.Builder, e *FixedEdge, depth int) {
	if e.op != nil {
		fmt.Fprintf(b, "fixed %s\n", e.op.Name())
		return
	}
	fmt.Fprintf(b, "fixed %s {\n", e.name)
	if e.body != nil {
		writeGraph(b, e.body, depth+1)
	}
	fmt.Fprintf(b, "%s}\n", indent(depth))
}

func writeGraph(b *strings.Builder, g *Graph, depth int) {
	for i, v := range g.vertices {
		fmt.Fprintf(b, "%s%s#%d\n", indent(depth), v.name, i)
		for _, eid := range v.out {
			rec := g.edges[eid]
			fmt.Fprintf(b, "%s-> %s#%d ", indent(depth+1), g.vertices[rec.to].name, rec.to)
			switch edge := rec.edge.(type) {
			case *FixedEdge:
				writeFixed(b, edge, depth+1)
			case *MutableEdge:
				fmt.Fprintf(b, "%s\n", edge.String())
			default:
				fmt.Fprintf(b, "%s\n", rec.edge.Kind())
			}
		}
	}
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
