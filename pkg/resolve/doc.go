// Package resolve implements the dependency resolution engine for recipe
// package descriptors.
//
// Given a root descriptor, the engine recursively discovers all
// transitive dependencies, reconciles version and location divergence
// when the same project is requested by multiple ancestors, rejects
// cycles, and produces a deterministic, fully-pinned closure: one winning
// dependency spec per project id plus the root, in topological order.
//
// The flow is strictly downstream:
//
//	Store → Builder → conflict reconciliation → finalize → Closure
//
// The Store fetches and caches descriptors per run; the Builder performs
// a stable breadth-first traversal recording every incoming edge; the
// reconciliation policy picks a single winning spec per project (or
// collects a Conflict); finalization detects cycles and freezes the
// topological order. Descriptor fetches are the only blocking I/O and
// fan out with bounded concurrency inside each traversal layer, joining
// before the next layer so discovery order stays deterministic.
//
// Resolution errors are collected and surfaced together as one terminal
// failure with full ancestor-chain context. Partial closures are never
// returned.
package resolve
