// Package depgraph implements the generic dependency graph that backs
// the Model-Component Dependency Resolver (spec.md §3 "Dependency Graph",
// §4.1). It is grounded on FIREWHEEL's control/dependency_graph.py,
// translated per the DESIGN NOTES guidance "cyclic graph references →
// arena + integer ids": vertices live in a single arena and are addressed
// by a NodeID, never reused after Delete.
//
// The graph has two vertex kinds: Entity (a component instance) and
// Constraint (a capability tag). Edges run constraint->entity (an entity
// consumes a constraint), entity->constraint (an entity provides a
// constraint), and entity->entity (an explicit ordering association).
package depgraph

import (
	"fmt"
	"sort"

	"github.com/sandialabs/firewheel-core/pkg/ferrors"
)

// Kind distinguishes the two vertex types the graph supports.
type Kind int

const (
	KindEntity Kind = iota
	KindConstraint
)

func (k Kind) String() string {
	if k == KindEntity {
		return "entity"
	}
	return "constraint"
}

// NodeID addresses a vertex. Entity ids are synthesized sequential
// strings ("1", "2", ...); constraint ids are the constraint's own name.
// Both share one id space, mirroring networkx's mixed int/string node
// keys.
type NodeID string

type node struct {
	id       NodeID
	kind     Kind
	grouping int
}

// Graph is a directed graph over Entity and Constraint vertices.
type Graph struct {
	nodes      map[NodeID]*node
	out        map[NodeID]map[NodeID]struct{}
	in         map[NodeID]map[NodeID]struct{}
	nextEntity int
	namer      NamerFunc
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*node),
		out:   make(map[NodeID]map[NodeID]struct{}),
		in:    make(map[NodeID]map[NodeID]struct{}),
	}
}

func (g *Graph) ensureNode(id NodeID, kind Kind, grouping int) {
	n, ok := g.nodes[id]
	if !ok {
		g.nodes[id] = &node{id: id, kind: kind, grouping: grouping}
		g.out[id] = make(map[NodeID]struct{})
		g.in[id] = make(map[NodeID]struct{})
		return
	}
	// Constraint vertices may be touched by several entities; the last
	// writer's kind/grouping wins, matching the Python implementation.
	n.kind = kind
	n.grouping = grouping
}

func (g *Graph) addEdge(from, to NodeID) {
	g.out[from][to] = struct{}{}
	g.in[to][from] = struct{}{}
}

// InsertEntity adds a new entity vertex with the given depended and
// provided constraint names and grouping, wiring constraint<->entity
// edges, and returns the new entity's id.
func (g *Graph) InsertEntity(depends, provides []string, grouping int) NodeID {
	g.nextEntity++
	id := NodeID(fmt.Sprintf("%d", g.nextEntity))
	g.ensureNode(id, KindEntity, grouping)

	for _, dep := range depends {
		cid := NodeID(dep)
		g.ensureNode(cid, KindConstraint, grouping)
		g.addEdge(cid, id)
	}
	for _, prov := range provides {
		cid := NodeID(prov)
		g.ensureNode(cid, KindConstraint, grouping)
		g.addEdge(id, cid)
	}
	return id
}

// AssociateEntities adds a directed ordering edge source->dest. Both
// vertices must already exist and be entities.
func (g *Graph) AssociateEntities(source, dest NodeID) error {
	if err := g.requireEntity(source); err != nil {
		return err
	}
	if err := g.requireEntity(dest); err != nil {
		return err
	}
	g.addEdge(source, dest)
	return nil
}

func (g *Graph) requireEntity(id NodeID) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("identifier %q does not exist", id)
	}
	if n.kind != KindEntity {
		return fmt.Errorf("identifier %q is not an entity", id)
	}
	return nil
}

// InDegree returns the number of in-edges for id.
func (g *Graph) InDegree(id NodeID) int {
	return len(g.in[id])
}

// Grouping returns the grouping integer recorded for id.
func (g *Graph) Grouping(id NodeID) int {
	if n, ok := g.nodes[id]; ok {
		return n.grouping
	}
	return 0
}

// Kind returns the vertex kind recorded for id.
func (g *Graph) Kind(id NodeID) Kind {
	if n, ok := g.nodes[id]; ok {
		return n.kind
	}
	return KindConstraint
}

// ZeroInDegreeConstraints returns every constraint vertex with no
// producing entity, i.e. an unsatisfied dependency (spec.md §4.1 step 3).
func (g *Graph) ZeroInDegreeConstraints() []NodeID {
	var out []NodeID
	for id, n := range g.nodes {
		if n.kind == KindConstraint && len(g.in[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// lessKey implements the lexicographic tie-break used throughout: lower
// grouping first, then lower stringified id.
func (g *Graph) lessKey(a, b NodeID) bool {
	ga, gb := g.Grouping(a), g.Grouping(b)
	if ga != gb {
		return ga < gb
	}
	return string(a) < string(b)
}

// OrderedEntityIDs performs a lexicographic topological sort (Kahn's
// algorithm with a (grouping, id) tie-break among ready vertices) and
// returns the entity ids in canonical, dependency-satisfying order.
// Returns a *ferrors.DependencyError wrapping ErrUnsatisfiableDependencies
// if the graph has a cycle.
func (g *Graph) OrderedEntityIDs() ([]NodeID, error) {
	inDeg := make(map[NodeID]int, len(g.nodes))
	for id := range g.nodes {
		inDeg[id] = len(g.in[id])
	}

	ready := make([]NodeID, 0)
	for id, d := range inDeg {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return g.lessKey(ready[i], ready[j]) })

	var entities []NodeID
	visited := 0
	for len(ready) > 0 {
		// pop smallest
		cur := ready[0]
		ready = ready[1:]
		visited++

		if g.nodes[cur].kind == KindEntity {
			entities = append(entities, cur)
		}

		// Collect newly-ready neighbors, insert keeping ready sorted.
		neighbors := make([]NodeID, 0, len(g.out[cur]))
		for next := range g.out[cur] {
			neighbors = append(neighbors, next)
		}
		sort.Slice(neighbors, func(i, j int) bool { return g.lessKey(neighbors[i], neighbors[j]) })

		for _, next := range neighbors {
			inDeg[next]--
			if inDeg[next] == 0 {
				ready = insertSorted(ready, next, g.lessKey)
			}
		}
	}

	if visited != len(g.nodes) {
		cycles := g.Cycles()
		return nil, ferrors.NewCycleError(cycles)
	}
	return entities, nil
}

func insertSorted(ready []NodeID, id NodeID, less func(a, b NodeID) bool) []NodeID {
	i := sort.Search(len(ready), func(i int) bool { return less(id, ready[i]) })
	ready = append(ready, "")
	copy(ready[i+1:], ready[i:])
	ready[i] = id
	return ready
}

// HasCycles reports whether the graph contains a cycle.
func (g *Graph) HasCycles() bool {
	_, err := g.OrderedEntityIDs()
	return err != nil
}

// Cycles enumerates simple cycles in the graph via DFS backtracking,
// returning each as a slice of human-readable node labels in the order
// they'd be traversed. Suitable for the modest-sized manifest graphs
// FIREWHEEL builds; not Johnson's-algorithm efficient, but exhaustive.
func (g *Graph) Cycles() [][]string {
	var all [][]string
	seen := make(map[string]bool)

	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var path []NodeID
	onPath := make(map[NodeID]bool)

	var dfs func(start, cur NodeID)
	dfs = func(start, cur NodeID) {
		path = append(path, cur)
		onPath[cur] = true
		defer func() {
			onPath[cur] = false
			path = path[:len(path)-1]
		}()

		neighbors := make([]NodeID, 0, len(g.out[cur]))
		for n := range g.out[cur] {
			neighbors = append(neighbors, n)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		for _, next := range neighbors {
			if next == start && len(path) > 0 {
				cycle := append(append([]NodeID{}, path...))
				key := canonicalCycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					all = append(all, g.renderCycle(cycle))
				}
				continue
			}
			if onPath[next] {
				continue
			}
			// Only continue the search through nodes with id >= start
			// to avoid re-discovering the same cycle from every vertex
			// on it.
			if next < start {
				continue
			}
			dfs(start, next)
		}
	}

	for _, start := range ids {
		dfs(start, start)
	}
	return all
}

func canonicalCycleKey(cycle []NodeID) string {
	// Rotate to start at the lexicographically smallest id so the same
	// cycle found from different starting points dedupes.
	minIdx := 0
	for i, id := range cycle {
		if id < cycle[minIdx] {
			minIdx = i
		}
	}
	var key string
	for i := 0; i < len(cycle); i++ {
		key += string(cycle[(minIdx+i)%len(cycle)]) + ","
	}
	return key
}

// NamerFunc resolves an entity's NodeID to a human-readable name (e.g.
// a component's dotted name). Constraint vertices are rendered using
// their own id (the attribute name) directly.
type NamerFunc func(NodeID) string

// renderCycle is overridden via SetNamer before the resolver calls
// Cycles in anger; by default it falls back to raw ids.
func (g *Graph) renderCycle(cycle []NodeID) []string {
	out := make([]string, 0, len(cycle))
	for _, id := range cycle {
		if g.Kind(id) == KindConstraint {
			out = append(out, fmt.Sprintf("%s (Attribute)", id))
			continue
		}
		name := string(id)
		if g.namer != nil {
			name = g.namer(id)
		}
		out = append(out, fmt.Sprintf("%s (Model Component)", name))
	}
	return out
}

// SetNamer installs the function used to render entity ids as
// human-readable names in Cycles' output.
func (g *Graph) SetNamer(namer NamerFunc) {
	g.namer = namer
}
