// Package vcs is the materialization collaborator boundary: it executes
// fetch plans by checking repositories out on disk.
//
// The resolution core never imports this package; it only produces the
// plan. Failures are reported as MATERIALIZATION_FAILED and are not
// retried here; retry policy, if any, belongs to the caller.
package vcs

import (
	"context"

	apperrors "github.com/luqui/recipe-engine/pkg/errors"
	"github.com/luqui/recipe-engine/pkg/plan"
)

// Materializer checks out one repository revision into a local path.
type Materializer interface {
	// Materialize executes a single action.
	Materialize(ctx context.Context, a plan.Action) error
}

// Apply executes the plan's actions in order, stopping at the first
// failure: later actions may depend on files inside earlier checkouts,
// so continuing past a failure would materialize a broken tree.
func Apply(ctx context.Context, m Materializer, actions []plan.Action) error {
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Materialize(ctx, a); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeMaterializationFailed, err,
				"materialize %s@%s into %s", a.Project, a.Ref, a.Path)
		}
	}
	return nil
}
