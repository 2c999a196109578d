package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/luqui/recipe-engine/pkg/descriptor"
	apperrors "github.com/luqui/recipe-engine/pkg/errors"
	"github.com/luqui/recipe-engine/pkg/observability"
	"github.com/luqui/recipe-engine/pkg/source"
)

// DefaultParallelism bounds concurrent descriptor fetches within one
// traversal layer.
const DefaultParallelism = 8

// Options configures a resolution run.
type Options struct {
	Parallelism int                  // Concurrent fetches per layer (default: 8)
	Logger      func(string, ...any) // Progress callback (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	return opts
}

// Engine resolves root package descriptors into closures. Each Resolve
// call is an independent run with its own descriptor store; no mutable
// state survives between runs.
type Engine struct {
	source source.Source
}

// New creates an Engine that fetches descriptors through src.
func New(src source.Source) *Engine {
	return &Engine{source: src}
}

// Resolve computes the full dependency closure of root.
//
// It builds the transitive graph (stable BFS with per-layer parallel
// fetches), reconciles divergent requirements, rejects cycles, and
// returns the immutable closure. All failures found during the run
// (unavailable descriptors, conflicts, cycles) are collected and
// returned together as a single terminal error; a partial closure is
// never returned.
//
// Cancellation is cooperative: cancelling ctx abandons in-flight fetches
// and discards all partial state.
func (e *Engine) Resolve(ctx context.Context, root *descriptor.Package, opts Options) (*Closure, error) {
	opts = opts.WithDefaults()

	runID := uuid.NewString()
	start := time.Now()
	observability.Resolve().OnResolveStart(ctx, runID, string(root.ProjectID))

	closure, err := e.resolve(ctx, root, opts)

	count := 0
	if closure != nil {
		count = closure.Len()
	}
	observability.Resolve().OnResolveComplete(ctx, runID, string(root.ProjectID), count, time.Since(start), err)
	return closure, err
}

func (e *Engine) resolve(ctx context.Context, root *descriptor.Package, opts Options) (*Closure, error) {
	if err := root.Validate(); err != nil {
		if errors.Is(err, descriptor.ErrUnsupportedAPIVersion) {
			return nil, apperrors.Wrap(apperrors.ErrCodeUnsupportedAPIVersion, err, "root descriptor")
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidDescriptor, err, "root descriptor")
	}

	b := &builder{store: NewStore(e.source), opts: opts}
	g, errs := b.build(ctx, root)

	// Conflicts are still worth reporting alongside fetch failures, but
	// only over nodes whose edges were fully discovered.
	winners, conflictErrs := reconcileAll(g)
	errs = append(errs, conflictErrs...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return finalize(g, winners)
}
