// Package pkg provides the core libraries of the recipe dependency engine.
//
// # Overview
//
// A recipe package declares its dependencies in a descriptor file
// (infra/config/recipes.cfg). The engine resolves the transitive closure
// of those declarations into a deterministic, conflict-free set of
// pinned repositories, then plans and executes the checkouts that
// materialize it on disk.
//
// The pkg directory is organized around that flow:
//
//   - [descriptor] - descriptor schema, validation, and wire codecs
//   - [source] - descriptor retrieval (HTTP hosts, local checkouts)
//   - [resolve] - the resolution core: store, graph builder,
//     conflict reconciliation, cycle detection, closure
//   - [plan] - fetch-plan derivation from a closure
//   - [vcs] - plan execution via git checkouts
//   - [render] - Graphviz rendering of closures
//   - [history] - resolution run records
//   - [cache], [httputil], [errors], [observability] - shared
//     infrastructure
//
// # Data flow
//
//	root descriptor
//	       ↓
//	resolve.Engine ── source.Source ── cache.Cache
//	       ↓
//	resolve.Closure
//	       ↓
//	plan.Build → []plan.Action
//	       ↓
//	vcs.Apply (git checkouts under .recipe_deps/)
package pkg
