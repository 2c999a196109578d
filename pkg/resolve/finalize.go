package resolve

import (
	"encoding/json"
	"fmt"

	"github.com/luqui/recipe-engine/pkg/descriptor"
	apperrors "github.com/luqui/recipe-engine/pkg/errors"
)

// Cycle reports a dependency cycle, with the complete path including the
// repeated project, e.g. [a b a].
type Cycle struct {
	Path []descriptor.ProjectID
}

func (c *Cycle) Error() string {
	return fmt.Sprintf("dependency cycle: %s", chainString(c.Path))
}

// Code returns the error code for this error type.
func (c *Cycle) Code() apperrors.Code { return apperrors.ErrCodeDependencyCycle }

// ClosureEntry is one resolved project: its winning spec (zero-valued
// for the root, which nobody depends on), its descriptor, and whether
// the spec left it floating on a branch head instead of a pinned
// revision.
type ClosureEntry struct {
	Project  descriptor.ProjectID `json:"project_id"`
	Spec     descriptor.DepSpec   `json:"spec,omitempty"`
	Package  *descriptor.Package  `json:"package"`
	Unpinned bool                 `json:"unpinned,omitempty"`
}

// Closure is the final, immutable resolution output: exactly one entry
// per project id reachable from the root, cycle-free, in topological
// order (dependencies before dependents, root last). Every dependency
// named by any entry's descriptor is itself present in the closure.
type Closure struct {
	root    descriptor.ProjectID
	entries map[descriptor.ProjectID]ClosureEntry
	order   []descriptor.ProjectID
}

// Root returns the root project id.
func (c *Closure) Root() descriptor.ProjectID { return c.root }

// Entry returns the resolved entry for a project id.
func (c *Closure) Entry(id descriptor.ProjectID) (ClosureEntry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Order returns a copy of the topological order, dependencies first.
func (c *Closure) Order() []descriptor.ProjectID {
	out := make([]descriptor.ProjectID, len(c.order))
	copy(out, c.order)
	return out
}

// Entries returns all entries in topological order.
func (c *Closure) Entries() []ClosureEntry {
	out := make([]ClosureEntry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// Unstable returns the ids of unpinned entries, in topological order.
// An unpinned dependency resolves against a branch head at fetch time
// and is therefore not a stable input; policy on rejecting unstable
// closures belongs to the caller.
func (c *Closure) Unstable() []descriptor.ProjectID {
	var out []descriptor.ProjectID
	for _, id := range c.order {
		if c.entries[id].Unpinned {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of resolved projects, root included.
func (c *Closure) Len() int { return len(c.order) }

// MarshalJSON renders the closure deterministically: entries as an array
// in topological order. Identical inputs produce bit-identical output.
func (c *Closure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Root     descriptor.ProjectID `json:"root"`
		Packages []ClosureEntry       `json:"packages"`
	}{Root: c.root, Packages: c.Entries()})
}

// finalize runs cycle detection over the winning edges and freezes the
// topological order. Any back-edge to a project still on the traversal
// stack is a cycle; the first one found fails the run with its full
// path, since a cycle invalidates the order every later phase depends on.
func finalize(g *Graph, winners map[descriptor.ProjectID]descriptor.DepSpec) (*Closure, error) {
	const (
		white = iota
		gray
		black
	)

	color := make(map[descriptor.ProjectID]int, g.Len())
	var stack []descriptor.ProjectID
	var topo []descriptor.ProjectID

	var dfs func(id descriptor.ProjectID) *Cycle
	dfs = func(id descriptor.ProjectID) *Cycle {
		color[id] = gray
		stack = append(stack, id)

		for _, dep := range g.Node(id).Package.Deps {
			child := dep.ProjectID
			switch color[child] {
			case white:
				if cyc := dfs(child); cyc != nil {
					return cyc
				}
			case gray:
				// Slice the stack from the repeated node and close the loop.
				for i, p := range stack {
					if p == child {
						path := append(append([]descriptor.ProjectID{}, stack[i:]...), child)
						return &Cycle{Path: path}
					}
				}
			}
		}

		color[id] = black
		stack = stack[:len(stack)-1]
		topo = append(topo, id)
		return nil
	}

	if cyc := dfs(g.Root); cyc != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDependencyCycle, cyc, "dependency cycle detected")
	}

	entries := make(map[descriptor.ProjectID]ClosureEntry, len(topo))
	for _, id := range topo {
		n := g.Node(id)
		e := ClosureEntry{Project: id, Package: n.Package}
		if id != g.Root {
			e.Spec = winners[id]
			e.Unpinned = !e.Spec.Pinned()
		}
		entries[id] = e
	}

	return &Closure{root: g.Root, entries: entries, order: topo}, nil
}
