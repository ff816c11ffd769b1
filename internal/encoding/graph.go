// Package encoding holds the architecture encoding evolved by the search: an
// arena of vertices and edges addressed by index. Copying a graph allocates a
// fresh arena, so an original and its copy never share mutable state.
package encoding

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"
)

type VertexID int

type EdgeID int

type Vertex struct {
	ID   VertexID
	Name string
	Out  []EdgeID
}

type EdgeInfo struct {
	ID   EdgeID
	From VertexID
	To   VertexID
	Edge Edge
}

type vertexRecord struct {
	name string
	out  []EdgeID
}

type edgeRecord struct {
	from VertexID
	to   VertexID
	edge Edge
}

type Graph struct {
	name     string
	vertices []vertexRecord
	edges    []edgeRecord
	input    VertexID
	output   VertexID
}

// NewGraph returns a graph holding only its designated input and output
// vertices.
func NewGraph(name string) *Graph {
	g := &Graph{name: name}
	g.input = g.AddVertex("input")
	g.output = g.AddVertex("output")
	return g
}

func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) Input() VertexID {
	return g.input
}

func (g *Graph) Output() VertexID {
	return g.output
}

func (g *Graph) NumVertices() int {
	return len(g.vertices)
}

func (g *Graph) NumEdges() int {
	return len(g.edges)
}

func (g *Graph) AddVertex(name string) VertexID {
	g.vertices = append(g.vertices, vertexRecord{name: name})
	return VertexID(len(g.vertices) - 1)
}

func (g *Graph) Vertex(id VertexID) (Vertex, bool) {
	if !g.hasVertex(id) {
		return Vertex{}, false
	}
	v := g.vertices[id]
	return Vertex{ID: id, Name: v.name, Out: append([]EdgeID(nil), v.out...)}, true
}

func (g *Graph) Edges() []EdgeInfo {
	out := make([]EdgeInfo, 0, len(g.edges))
	for i, rec := range g.edges {
		out = append(out, EdgeInfo{ID: EdgeID(i), From: rec.from, To: rec.to, Edge: rec.edge})
	}
	return out
}

// AddEdge attaches e from one vertex to another. The edge is rejected when
// either vertex is unknown or when to already reaches from, so the graph
// stays acyclic. On error the graph is unchanged.
func (g *Graph) AddEdge(from, to VertexID, e Edge) (EdgeID, error) {
	if isNilEdge(e) {
		return 0, ErrNilEdge
	}
	if !g.hasVertex(from) || !g.hasVertex(to) {
		return 0, fmt.Errorf("add edge %d -> %d in %s: %w", from, to, g.name, ErrUnknownVertex)
	}
	if from == to || g.reaches(to, from) {
		return 0, fmt.Errorf("add edge %s -> %s in %s: %w", g.vertices[from].name, g.vertices[to].name, g.name, ErrCycle)
	}

	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, edgeRecord{from: from, to: to, edge: e})
	g.vertices[from].out = append(g.vertices[from].out, id)
	return id, nil
}

// DeepCopy allocates a new arena with the same vertex and edge layout.
// Every edge is deep-copied; operations are shared.
func (g *Graph) DeepCopy() *Graph {
	out := &Graph{
		name:     g.name,
		input:    g.input,
		output:   g.output,
		vertices: make([]vertexRecord, len(g.vertices)),
		edges:    make([]edgeRecord, len(g.edges)),
	}
	for i, v := range g.vertices {
		out.vertices[i] = vertexRecord{name: v.name, out: append([]EdgeID(nil), v.out...)}
	}
	for i, rec := range g.edges {
		out.edges[i] = edgeRecord{from: rec.from, to: rec.to, edge: rec.edge.DeepCopy()}
	}
	return out
}

// Validate checks that the graph, and every nested fixed body, is a single
// acyclic graph in which each vertex is reachable from the input and reaches
// the output.
func (g *Graph) Validate() error {
	dg := g.directed()
	if _, err := g.order(dg); err != nil {
		return fmt.Errorf("%s: %w", g.name, ErrCycle)
	}
	in := simple.Node(g.input)
	out := simple.Node(g.output)
	for i, v := range g.vertices {
		id := VertexID(i)
		if id != g.input && !topo.PathExistsIn(dg, in, simple.Node(i)) {
			return fmt.Errorf("%s: vertex %q unreachable from input: %w", g.name, v.name, ErrDisconnected)
		}
		if id != g.output && !topo.PathExistsIn(dg, simple.Node(i), out) {
			return fmt.Errorf("%s: vertex %q does not reach output: %w", g.name, v.name, ErrDisconnected)
		}
	}
	for _, rec := range g.edges {
		if fixed, ok := rec.edge.(*FixedEdge); ok && fixed.body != nil {
			if err := fixed.body.Validate(); err != nil {
				return fmt.Errorf("%s: %w", g.name, err)
			}
		}
	}
	return nil
}

// Build evaluates the graph on x. Vertices are visited in topological order;
// a vertex fed by several edges concatenates their outputs column-wise in
// edge order.
func (g *Graph) Build(x *mat.Dense) (*mat.Dense, error) {
	if x == nil {
		return nil, errors.New("input tensor is required")
	}
	order, err := g.order(g.directed())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.name, ErrCycle)
	}

	incoming := make([][]EdgeID, len(g.vertices))
	for i, rec := range g.edges {
		incoming[rec.to] = append(incoming[rec.to], EdgeID(i))
	}

	values := make([]*mat.Dense, len(g.vertices))
	values[g.input] = x
	for _, v := range order {
		if v == g.input || len(incoming[v]) == 0 {
			continue
		}
		parts := make([]*mat.Dense, 0, len(incoming[v]))
		for _, eid := range incoming[v] {
			rec := g.edges[eid]
			in := values[rec.from]
			if in == nil {
				return nil, fmt.Errorf("%s: vertex %q has no value: %w", g.name, g.vertices[rec.from].name, ErrDisconnected)
			}
			out, err := rec.edge.Build(in)
			if err != nil {
				return nil, fmt.Errorf("%s: edge %s -> %s: %w", g.name, g.vertices[rec.from].name, g.vertices[rec.to].name, err)
			}
			parts = append(parts, out)
		}
		merged, err := concatColumns(parts)
		if err != nil {
			return nil, fmt.Errorf("%s: merge at %q: %w", g.name, g.vertices[v].name, err)
		}
		values[v] = merged
	}

	if values[g.output] == nil {
		return nil, fmt.Errorf("%s: output has no value: %w", g.name, ErrDisconnected)
	}
	return values[g.output], nil
}

// MutableEdges lists every mutable edge of the graph, descending into fixed
// bodies, in edge order.
func (g *Graph) MutableEdges() []*MutableEdge {
	var out []*MutableEdge
	for _, rec := range g.edges {
		switch e := rec.edge.(type) {
		case *MutableEdge:
			out = append(out, e)
		case *FixedEdge:
			out = append(out, e.MutableEdges()...)
		}
	}
	return out
}

func (g *Graph) hasVertex(id VertexID) bool {
	return id >= 0 && int(id) < len(g.vertices)
}

func (g *Graph) reaches(from, to VertexID) bool {
	if from == to {
		return true
	}
	return topo.PathExistsIn(g.directed(), simple.Node(from), simple.Node(to))
}

func (g *Graph) directed() *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for i := range g.vertices {
		dg.AddNode(simple.Node(i))
	}
	for _, rec := range g.edges {
		if rec.from == rec.to {
			continue
		}
		dg.SetEdge(dg.NewEdge(simple.Node(rec.from), simple.Node(rec.to)))
	}
	return dg
}

func (g *Graph) order(dg *simple.DirectedGraph) ([]VertexID, error) {
	nodes, err := topo.SortStabilized(dg, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		return nil, err
	}
	ids := make([]VertexID, len(nodes))
	for i, n := range nodes {
		ids[i] = VertexID(n.ID())
	}
	return ids, nil
}

func concatColumns(parts []*mat.Dense) (*mat.Dense, error) {
	if len(parts) == 1 {
		return parts[0], nil
	}
	rows, _ := parts[0].Dims()
	total := 0
	for _, p := range parts {
		r, c := p.Dims()
		if r != rows {
			return nil, fmt.Errorf("%w: rows %d vs %d", ErrShapeMismatch, r, rows)
		}
		total += c
	}
	out := mat.NewDense(rows, total, nil)
	offset := 0
	for _, p := range parts {
		_, c := p.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(p)
		offset += c
	}
	return out, nil
}
