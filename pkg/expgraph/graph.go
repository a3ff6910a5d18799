package expgraph

import "fmt"

// VertexID and EdgeID are stable integer identities; Graph never
// reuses one after Delete (spec.md §3 "Experiment Graph" invariant,
// spec.md §8 "Entity-id stability").
type VertexID int
type EdgeID int

// NoSuchVertexError reports a reference to a vertex id the graph does
// not (or no longer) know about. Grounded on the original's
// NoSuchVertexError in test_experiment_graph.py.
type NoSuchVertexError struct{ ID VertexID }

func (e *NoSuchVertexError) Error() string {
	return fmt.Sprintf("no such vertex: %d", e.ID)
}

// Vertex is a host, router, or switch in the experiment graph.
type Vertex struct {
	Decorable
	id    VertexID
	Name  string
	graph *Graph
}

// ID returns the vertex's stable identity.
func (v *Vertex) ID() VertexID { return v.id }

// Delete removes the vertex (and any incident edges) from its graph.
func (v *Vertex) Delete() { v.graph.DeleteVertex(v.id) }

// Edge is a link between two vertices.
type Edge struct {
	Decorable
	id    EdgeID
	A, B  VertexID
	graph *Graph
}

// ID returns the edge's stable identity.
func (e *Edge) ID() EdgeID { return e.id }

// Delete removes the edge from its graph.
func (e *Edge) Delete() { e.graph.DeleteEdge(e.id) }

// Graph is the Experiment Graph: a registry of vertices and edges with
// monotonically increasing ids.
type Graph struct {
	vertices map[VertexID]*Vertex
	edges    map[EdgeID]*Edge
	byName   map[string]VertexID
	nextV    VertexID
	nextE    EdgeID
}

// New returns an empty Experiment Graph.
func New() *Graph {
	return &Graph{
		vertices: make(map[VertexID]*Vertex),
		edges:    make(map[EdgeID]*Edge),
		byName:   make(map[string]VertexID),
	}
}

// NewVertex creates and registers a new vertex named name (may be
// empty). Only a non-empty name given here is indexed for FindVertex;
// assigning v.Name later does not register it.
func (g *Graph) NewVertex(name string) *Vertex {
	g.nextV++
	v := &Vertex{Decorable: newDecorable(), id: g.nextV, Name: name, graph: g}
	g.vertices[v.id] = v
	if name != "" {
		g.byName[name] = v.id
	}
	return v
}

// NewEdge creates and registers a new edge between a and b, which must
// already belong to this graph.
func (g *Graph) NewEdge(a, b *Vertex) (*Edge, error) {
	if v, ok := g.vertices[a.id]; !ok || v != a {
		return nil, &NoSuchVertexError{ID: a.id}
	}
	if v, ok := g.vertices[b.id]; !ok || v != b {
		return nil, &NoSuchVertexError{ID: b.id}
	}
	g.nextE++
	e := &Edge{Decorable: newDecorable(), id: g.nextE, A: a.id, B: b.id, graph: g}
	g.edges[e.id] = e
	return e, nil
}

// DeleteVertex removes a vertex and every edge incident to it. The
// freed id is never reused.
func (g *Graph) DeleteVertex(id VertexID) {
	v, ok := g.vertices[id]
	if !ok {
		return
	}
	if v.Name != "" && g.byName[v.Name] == id {
		delete(g.byName, v.Name)
	}
	delete(g.vertices, id)
	for eid, e := range g.edges {
		if e.A == id || e.B == id {
			delete(g.edges, eid)
		}
	}
}

// DeleteEdge removes an edge. The freed id is never reused.
func (g *Graph) DeleteEdge(id EdgeID) {
	delete(g.edges, id)
}

// Vertices returns every live vertex, in ascending id order.
func (g *Graph) Vertices() []*Vertex {
	out := make([]*Vertex, 0, len(g.vertices))
	for id := VertexID(1); id <= g.nextV; id++ {
		if v, ok := g.vertices[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Edges returns every live edge, in ascending id order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for id := EdgeID(1); id <= g.nextE; id++ {
		if e, ok := g.edges[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// FindVertex returns the vertex registered under name, if any.
func (g *Graph) FindVertex(name string) (*Vertex, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.vertices[id], true
}

// FindVertexByID returns the vertex with the given id, if it is still
// live.
func (g *Graph) FindVertexByID(id VertexID) (*Vertex, bool) {
	v, ok := g.vertices[id]
	return v, ok
}
