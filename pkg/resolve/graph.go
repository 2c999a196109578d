package resolve

import (
	"github.com/luqui/recipe-engine/pkg/descriptor"
)

// Edge records that one project requested another, with the exact spec
// it used. Incoming edges are the raw material for conflict diagnostics.
type Edge struct {
	From descriptor.ProjectID
	Spec descriptor.DepSpec
}

// Node is one project in the dependency graph under construction.
// Package is nil until the node's descriptor has been fetched (and stays
// nil for nodes whose fetch failed). Incoming lists every edge pointing
// at this node in discovery order; the root has none.
type Node struct {
	ID       descriptor.ProjectID
	Package  *descriptor.Package
	Incoming []Edge
}

// Graph is the directed dependency graph assembled by the Builder.
// Nodes are indexed by project id and remembered in first-discovered
// order so downstream phases are deterministic. The graph is owned by
// the Builder during construction and handed to finalization whole; it
// is not safe for concurrent mutation.
type Graph struct {
	Root descriptor.ProjectID

	nodes map[descriptor.ProjectID]*Node
	order []descriptor.ProjectID
}

func newGraph(root *descriptor.Package) *Graph {
	g := &Graph{
		Root:  root.ProjectID,
		nodes: make(map[descriptor.ProjectID]*Node),
	}
	n := g.add(root.ProjectID)
	n.Package = root
	return g
}

// add returns the node for id, creating it on first sight.
func (g *Graph) add(id descriptor.ProjectID) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id}
	g.nodes[id] = n
	g.order = append(g.order, id)
	return n
}

// Node returns the node with the given project id, or nil.
func (g *Graph) Node(id descriptor.ProjectID) *Node { return g.nodes[id] }

// Order returns project ids in first-discovered order, root first.
func (g *Graph) Order() []descriptor.ProjectID { return g.order }

// Len returns the number of projects in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// AncestorChain reconstructs the request path root → ... → id by
// following each node's first-discovered incoming edge. The chain makes
// conflict reports actionable when the offending edge sits many levels
// deep in the transitive graph.
func (g *Graph) AncestorChain(id descriptor.ProjectID) []descriptor.ProjectID {
	var rev []descriptor.ProjectID
	seen := make(map[descriptor.ProjectID]bool)
	for cur := id; ; {
		rev = append(rev, cur)
		n := g.nodes[cur]
		if n == nil || len(n.Incoming) == 0 || seen[cur] {
			break
		}
		seen[cur] = true
		cur = n.Incoming[0].From
	}

	chain := make([]descriptor.ProjectID, len(rev))
	for i, p := range rev {
		chain[len(rev)-1-i] = p
	}
	return chain
}

// chainVia is AncestorChain for a specific incoming edge: the path to
// the requester, extended with the requested id.
func (g *Graph) chainVia(e Edge, id descriptor.ProjectID) []descriptor.ProjectID {
	return append(g.AncestorChain(e.From), id)
}
