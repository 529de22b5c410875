package flow

import (
	"fmt"
	"math"
	"strconv"
)

// Graph holds the nodes and edges of one flow. It is not safe for
// concurrent use; editor sessions serialise access to it.
type Graph struct {
	nodes []Node
	index map[string]int
	edges []Edge
	seq   int64
}

func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// NewSeedGraph returns the graph every new flow starts with.
func NewSeedGraph() *Graph {
	g, _ := Restore(
		[]Node{
			{ID: "1", Type: NodeTypeStart, Position: Point{X: 100, Y: 100}, Label: "Inicio"},
			{ID: "2", Type: NodeTypeText, Position: Point{X: 300, Y: 200}, Label: "Mensaje de Bienvenida"},
			{ID: "3", Type: NodeTypeAIResponse, Position: Point{X: 500, Y: 300}, Label: "Respuesta IA"},
		},
		[]Edge{
			{From: "1", To: "2"},
			{From: "2", To: "3"},
		},
	)
	return g
}

// Restore rebuilds a graph from stored nodes and edges. Node ids must be
// unique and positions finite; edges are kept as-is even when an endpoint
// is missing.
func Restore(nodes []Node, edges []Edge) (*Graph, error) {
	g := NewGraph()
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if _, dup := g.index[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		if !n.Position.finite() {
			return nil, fmt.Errorf("node %q has a non-finite position", n.ID)
		}
		if !n.Type.Known() {
			n.Type = NodeTypeUnknown
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)

		if v, err := strconv.ParseInt(n.ID, 10, 64); err == nil && v > g.seq {
			g.seq = v
		}
	}
	g.edges = append(g.edges, edges...)
	return g, nil
}

// AddNode places a new node of type t at pos and returns it. Types outside
// the catalog are stored as NodeTypeUnknown.
func (g *Graph) AddNode(t NodeType, pos Point) Node {
	if !t.Known() {
		t = NodeTypeUnknown
	}
	n := Node{
		ID:       g.nextID(),
		Type:     t,
		Position: pos,
		Label:    DefaultLabel(t),
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return n
}

func (g *Graph) nextID() string {
	for {
		g.seq++
		id := strconv.FormatInt(g.seq, 10)
		if _, taken := g.index[id]; !taken {
			return id
		}
	}
}

func (g *Graph) FindNode(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// ListEdgesResolved pairs up the endpoints of every edge, in edge order.
// Edges with a missing endpoint are skipped.
func (g *Graph) ListEdgesResolved() []ResolvedEdge {
	resolved := make([]ResolvedEdge, 0, len(g.edges))
	for _, e := range g.edges {
		from, ok := g.FindNode(e.From)
		if !ok {
			continue
		}
		to, ok := g.FindNode(e.To)
		if !ok {
			continue
		}
		resolved = append(resolved, ResolvedEdge{From: from, To: to})
	}
	return resolved
}

func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

func (p Point) finite() bool {
	return !math.IsInf(p.X, 0) && !math.IsNaN(p.X) && !math.IsInf(p.Y, 0) && !math.IsNaN(p.Y)
}
