// Package descriptor defines the recipe package descriptor schema.
//
// A descriptor is the decoded form of a repository's recipes.cfg: the
// project's self-identity (project_id), the location of its recipe
// sources (recipes_path), and the dependencies it declares (deps). Each
// dependency names another project, its repository URL, and a pinned
// revision, optionally rooted at a subtree of the repository via
// path_override.
//
// Descriptors are consumed by the resolution engine in pkg/resolve; this
// package only models and decodes them. Two wire formats are supported,
// JSON (recipes.cfg) and TOML (recipes.toml), selected by filename via
// DetectCodec.
package descriptor
