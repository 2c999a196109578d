package descriptor

import (
	"errors"
	"fmt"
)

// ErrUnsupportedAPIVersion is wrapped by [Package.Validate] when a
// descriptor declares an api_version other than [APIVersion]. Use
// errors.Is to detect it.
var ErrUnsupportedAPIVersion = errors.New("unsupported api_version")

// APIVersion is the single descriptor schema version this engine implements.
// Descriptors declaring any other value are rejected at decode time.
const APIVersion = 1

// ConfigFile is the conventional location of a package descriptor inside
// a repository checkout.
const ConfigFile = "infra/config/recipes.cfg"

// ProjectID is an opaque identifier for a logical project. It is the
// resolution key: within a resolved closure every ProjectID appears at
// most once.
type ProjectID string

// DepSpec describes one dependency edge: which project is required, where
// its repository lives, and which revision of it must be present.
type DepSpec struct {
	ProjectID ProjectID `json:"project_id" toml:"project_id"`
	URL       string    `json:"url" toml:"url"`

	// Branch is informational. When Revision is set it is authoritative
	// and Branch plays no role in resolution.
	Branch string `json:"branch,omitempty" toml:"branch,omitempty"`

	// Revision pins the dependency to a fixed commit. An empty Revision
	// leaves the dependency floating on Branch head; such specs resolve
	// but are flagged unstable in the closure.
	Revision string `json:"revision,omitempty" toml:"revision,omitempty"`

	// PathOverride roots the dependency at a subtree of URL instead of
	// the repository top level. It changes the fetch cache key but two
	// specs for the same project id with different overrides are still a
	// conflict, not distinct projects.
	PathOverride string `json:"path_override,omitempty" toml:"path_override,omitempty"`
}

// Pinned reports whether the spec names a fixed revision.
func (d DepSpec) Pinned() bool { return d.Revision != "" }

// Ref returns the VCS reference to fetch: the pinned revision when
// present, otherwise the branch (defaulting to "master", the original
// engine's convention).
func (d DepSpec) Ref() string {
	if d.Revision != "" {
		return d.Revision
	}
	if d.Branch != "" {
		return d.Branch
	}
	return "master"
}

// SameTarget reports whether two specs name the same fetch target:
// identical URL, revision and path override. Branch is deliberately
// excluded; it is informational once a revision is pinned.
func (d DepSpec) SameTarget(o DepSpec) bool {
	return d.URL == o.URL && d.Revision == o.Revision && d.PathOverride == o.PathOverride
}

// String renders the spec for diagnostics, e.g. "build@abc123 (https://...)".
func (d DepSpec) String() string {
	rev := d.Revision
	if rev == "" {
		rev = "<unpinned:" + d.Ref() + ">"
	}
	s := fmt.Sprintf("%s@%s (%s)", d.ProjectID, rev, d.URL)
	if d.PathOverride != "" {
		s += "/" + d.PathOverride
	}
	return s
}

// Package is a decoded package descriptor: the self-identity of a recipe
// repository plus the dependencies it declares. The order of Deps is
// meaningful; it is the discovery order during graph building and the
// tie-break priority at this node.
type Package struct {
	APIVersion     int       `json:"api_version" toml:"api_version"`
	EngineRevision string    `json:"engine_revision,omitempty" toml:"engine_revision,omitempty"`
	ProjectID      ProjectID `json:"project_id" toml:"project_id"`
	RecipesPath    string    `json:"recipes_path" toml:"recipes_path"`
	Deps           []DepSpec `json:"deps,omitempty" toml:"deps,omitempty"`
}

// Validate checks the required fields. All fields are optional at the
// wire level, but api_version, project_id and recipes_path are required
// in practice; absence is an error, not a default.
func (p *Package) Validate() error {
	if p.APIVersion != APIVersion {
		return fmt.Errorf("%w: %d (engine implements %d)", ErrUnsupportedAPIVersion, p.APIVersion, APIVersion)
	}
	if p.ProjectID == "" {
		return fmt.Errorf("descriptor missing project_id")
	}
	if p.RecipesPath == "" {
		return fmt.Errorf("descriptor for %q missing recipes_path", p.ProjectID)
	}
	for i, d := range p.Deps {
		if d.ProjectID == "" {
			return fmt.Errorf("dep %d of %q missing project_id", i, p.ProjectID)
		}
		if d.URL == "" {
			return fmt.Errorf("dep %q of %q missing url", d.ProjectID, p.ProjectID)
		}
	}
	return nil
}

// Dep returns the declared dependency on the given project, if any.
func (p *Package) Dep(id ProjectID) (DepSpec, bool) {
	for _, d := range p.Deps {
		if d.ProjectID == id {
			return d, true
		}
	}
	return DepSpec{}, false
}
