// Package plan translates a resolved closure into an ordered list of
// materialization actions for the VCS collaborator to execute.
//
// Planning is a pure transformation with no I/O: each action names the
// repository, the revision to check out, and the local path to check it
// out into. Actions are emitted in the closure's topological order so a
// dependency is always materialized before any dependent that might
// reference files within it.
package plan

import (
	"path/filepath"

	"github.com/luqui/recipe-engine/pkg/descriptor"
	"github.com/luqui/recipe-engine/pkg/resolve"
)

// DefaultBaseDir is the conventional checkout directory for resolved
// dependencies, relative to the root checkout.
const DefaultBaseDir = ".recipe_deps"

// Action is one materialization step: check out URL at Ref into Path.
type Action struct {
	Project descriptor.ProjectID `json:"project_id"`
	URL     string               `json:"url"`

	// Ref is the revision to check out, or the branch head for unpinned
	// dependencies (in which case Unpinned is set).
	Ref      string `json:"ref"`
	Unpinned bool   `json:"unpinned,omitempty"`

	// Subdir, when non-empty, roots the dependency at this subtree of
	// the repository rather than its top level.
	Subdir string `json:"subdir,omitempty"`

	// Path is the local directory to materialize into.
	Path string `json:"path"`

	// RecipesPath locates the recipe sources inside the checkout,
	// relative to Subdir if set.
	RecipesPath string `json:"recipes_path"`
}

// Build derives the fetch plan for a closure. Dependencies appear in
// topological order; the root produces no action, it is the checkout the
// engine already runs from. baseDir defaults to [DefaultBaseDir].
func Build(c *resolve.Closure, baseDir string) []Action {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}

	var actions []Action
	for _, e := range c.Entries() {
		if e.Project == c.Root() {
			continue
		}
		actions = append(actions, Action{
			Project:     e.Project,
			URL:         e.Spec.URL,
			Ref:         e.Spec.Ref(),
			Unpinned:    e.Unpinned,
			Subdir:      e.Spec.PathOverride,
			Path:        filepath.Join(baseDir, string(e.Project)),
			RecipesPath: e.Package.RecipesPath,
		})
	}
	return actions
}
