package resolve

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/luqui/recipe-engine/pkg/descriptor"
)

// builder assembles the dependency graph with a stable breadth-first
// traversal. Each BFS layer fans out its descriptor fetches with bounded
// concurrency and joins before the next layer begins, so nodes are
// always discovered and processed in the same order for identical
// inputs. That order stability is what makes conflict tie-breaking and
// the final topological order deterministic across runs.
type builder struct {
	store *Store
	opts  Options

	g    *Graph
	errs []error
}

// fetchJob is one scheduled descriptor fetch: the node to populate and
// the spec of the edge that first discovered it.
type fetchJob struct {
	node *Node
	spec descriptor.DepSpec
}

// build runs the traversal from the root package. Fetch failures do not
// abort the walk: unreachable subtrees are skipped and their errors
// collected, so a single run reports everything that is wrong.
func (b *builder) build(ctx context.Context, root *descriptor.Package) (*Graph, []error) {
	b.g = newGraph(root)

	layer := []*Node{b.g.Node(root.ProjectID)}
	for len(layer) > 0 {
		jobs := b.discover(layer)
		b.fetchLayer(ctx, jobs)
		if ctx.Err() != nil {
			b.errs = append(b.errs, ctx.Err())
			break
		}

		layer = layer[:0]
		for _, j := range jobs {
			if j.node.Package != nil {
				layer = append(layer, j.node)
			}
		}
	}

	return b.g, b.errs
}

// discover walks the deps of every node in the layer in declaration
// order, recording incoming edges and scheduling a fetch for each
// project seen for the first time. Edges to already-known nodes (shared
// dependencies, self-loops, back-edges) are recorded without a fetch;
// cycle classification belongs to finalization, not here.
func (b *builder) discover(layer []*Node) []fetchJob {
	var jobs []fetchJob
	scheduled := make(map[descriptor.ProjectID]bool)

	for _, n := range layer {
		for _, dep := range n.Package.Deps {
			target := b.g.add(dep.ProjectID)
			target.Incoming = append(target.Incoming, Edge{From: n.ID, Spec: dep})

			if target.Package == nil && !scheduled[dep.ProjectID] {
				scheduled[dep.ProjectID] = true
				jobs = append(jobs, fetchJob{node: target, spec: dep})
			}
		}
	}
	return jobs
}

// fetchLayer fans the layer's fetches out across opts.Parallelism
// goroutines and joins. Results are applied in job order regardless of
// completion order; the store deduplicates identical (url, revision,
// path override) keys underneath.
func (b *builder) fetchLayer(ctx context.Context, jobs []fetchJob) {
	if len(jobs) == 0 {
		return
	}

	type result struct {
		pkg *descriptor.Package
		err error
	}
	results := make([]result, len(jobs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, b.opts.Parallelism)
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j fetchJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pkg, err := b.store.FetchDescriptor(ctx, j.spec.URL, j.spec.Ref(), j.spec.PathOverride)
			results[i] = result{pkg: pkg, err: err}
		}(i, j)
	}
	wg.Wait()

	for i, j := range jobs {
		r := results[i]
		if r.err != nil {
			chain := b.g.chainVia(j.node.Incoming[0], j.node.ID)
			b.errs = append(b.errs, fmt.Errorf("%w (requested via %s)", r.err, chainString(chain)))
			continue
		}
		if r.pkg.ProjectID != j.node.ID {
			b.errs = append(b.errs, fmt.Errorf(
				"descriptor at %s identifies itself as %q, expected %q (requested via %s)",
				j.spec.URL, r.pkg.ProjectID, j.node.ID, chainString(b.g.chainVia(j.node.Incoming[0], j.node.ID))))
			continue
		}
		j.node.Package = r.pkg
		b.opts.Logger("fetched %s", j.spec)
	}
}

// chainString renders an ancestor chain as "root -> a -> b".
func chainString(chain []descriptor.ProjectID) string {
	parts := make([]string, len(chain))
	for i, id := range chain {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
