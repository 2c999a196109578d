package resolve

import (
	"fmt"
	"strings"

	"github.com/luqui/recipe-engine/pkg/descriptor"
	apperrors "github.com/luqui/recipe-engine/pkg/errors"
)

// ConflictingSpec is one side of a dependency conflict: the spec an
// ancestor requested, plus the full chain of requests that introduced it.
type ConflictingSpec struct {
	Spec  descriptor.DepSpec
	Chain []descriptor.ProjectID
}

// Conflict reports irreconcilably divergent specs for one project id.
// Silently picking a side would risk materializing an unintended
// revision, so genuine conflicts always fail the run.
type Conflict struct {
	Project descriptor.ProjectID
	Specs   []ConflictingSpec
}

// Error renders the conflict with every requested spec and its ancestor
// chain, e.g.:
//
//	conflicting requirements for "build":
//	  build@rev1 (https://...) via root -> build
//	  build@rev2 (https://...) via root -> tools -> build
func (c *Conflict) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "conflicting requirements for %q:", c.Project)
	for _, s := range c.Specs {
		fmt.Fprintf(&b, "\n  %s via %s", s.Spec, chainString(s.Chain))
	}
	return b.String()
}

// Code returns the error code for this error type.
func (c *Conflict) Code() apperrors.Code { return apperrors.ErrCodeDependencyConflict }

// reconcile applies the reconciliation policy to one node and returns
// its winning spec:
//
//  1. All incoming specs name the same (url, revision, path_override):
//     no conflict, adopt the first-discovered spec.
//  2. They differ only by branch while a pinned revision and url/path
//     agree: the revision wins, branch is informational.
//  3. Anything else is a genuine conflict. Two unpinned specs on
//     different branches also conflict: with no authoritative pin there
//     is nothing deterministic to prefer.
//
// The node must have at least one incoming edge (i.e. not the root).
func reconcile(g *Graph, n *Node) (descriptor.DepSpec, *Conflict) {
	base := n.Incoming[0].Spec

	conflicted := false
	for _, e := range n.Incoming[1:] {
		if !base.SameTarget(e.Spec) {
			conflicted = true
			break
		}
		if !base.Pinned() && e.Spec.Branch != base.Branch {
			conflicted = true
			break
		}
	}
	if !conflicted {
		return base, nil
	}

	c := &Conflict{Project: n.ID}
	for _, e := range n.Incoming {
		c.Specs = append(c.Specs, ConflictingSpec{
			Spec:  e.Spec,
			Chain: g.chainVia(e, n.ID),
		})
	}
	return descriptor.DepSpec{}, c
}

// reconcileAll computes winning specs for every non-root node, gathering
// every conflict in the graph so they are reported together rather than
// failing fast on the first.
func reconcileAll(g *Graph) (map[descriptor.ProjectID]descriptor.DepSpec, []error) {
	winners := make(map[descriptor.ProjectID]descriptor.DepSpec, g.Len())
	var errs []error

	for _, id := range g.Order() {
		n := g.Node(id)
		if id == g.Root || len(n.Incoming) == 0 {
			continue
		}
		spec, conflict := reconcile(g, n)
		if conflict != nil {
			errs = append(errs, apperrors.Wrap(apperrors.ErrCodeDependencyConflict, conflict,
				"dependency conflict for %q", n.ID))
			continue
		}
		winners[id] = spec
	}
	return winners, errs
}
