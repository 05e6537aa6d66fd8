package dag

import "fmt"

// Graph is a collection of nodes and their dependency edges. It is built
// single-threaded during stack assembly and never mutated afterwards, so no
// locking is required.
type Graph struct {
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
	// order records node insertion order for deterministic traversal.
	order []string
}

// node represents a single vertex. It is un-exported to enforce interaction
// with the graph via string IDs rather than direct struct manipulation.
type node struct {
	id string
	// deps holds the IDs of nodes this node depends on (predecessors).
	deps map[string]struct{}
	// dependents holds the IDs of nodes that depend on this node (successors).
	dependents map[string]struct{}
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a new node with the given ID. Adding an ID that already
// exists is a no-op, which keeps repeated assembly idempotent.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]struct{}),
		dependents: make(map[string]struct{}),
	}
	g.order = append(g.order, id)
}

// HasNode reports whether a node with the given ID exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// AddEdge creates a directed edge from fromID to toID, meaning toID depends
// on fromID. An error is returned if either node does not exist or if the
// edge would be self-referential.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = struct{}{}
	fromNode.dependents[toID] = struct{}{}
	return nil
}

// Dependencies returns the IDs of the nodes the given node depends on, in
// graph insertion order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.ordered(n.deps), nil
}

// Dependents returns the IDs of the nodes that depend on the given node, in
// graph insertion order.
func (g *Graph) Dependents(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.ordered(n.dependents), nil
}

// ordered filters the insertion-order list down to the members of set.
func (g *Graph) ordered(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, id := range g.order {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// DetectCycles checks the graph for cycles. It returns a non-nil error if a
// cycle is found, naming the first node involved in the detected cycle.
func (g *Graph) DetectCycles() error {
	// Classic depth-first search with three node states: permanently visited,
	// in the current recursion stack (temporary), and unvisited.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("cycle detected involving node '%s'", n.id)
		}
		temporary[n.id] = true

		for _, depID := range g.ordered(n.dependents) {
			if err := visit(g.nodes[depID]); err != nil {
				return err
			}
		}

		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, id := range g.order {
		if !permanent[id] {
			if err := visit(g.nodes[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopologicalSort returns all node IDs ordered so that every node appears
// after all of its dependencies. Ties are broken by insertion order, making
// the result deterministic for a given assembly sequence. An error is
// returned if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	// Kahn's algorithm over the insertion-ordered node list.
	inDegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		inDegree[id] = len(g.nodes[id].deps)
	}

	sorted := make([]string, 0, len(g.nodes))
	done := make(map[string]bool, len(g.nodes))

	for len(sorted) < len(g.nodes) {
		progressed := false
		for _, id := range g.order {
			if done[id] || inDegree[id] != 0 {
				continue
			}
			done[id] = true
			sorted = append(sorted, id)
			for dep := range g.nodes[id].dependents {
				inDegree[dep]--
			}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("cycle detected: %d of %d nodes unsortable", len(g.nodes)-len(sorted), len(g.nodes))
		}
	}
	return sorted, nil
}
