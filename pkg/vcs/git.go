package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/luqui/recipe-engine/pkg/plan"
)

// Git materializes actions by shelling out to the git binary: clone on
// first sight, fetch+checkout on repeat runs. Detached checkouts are
// used for pinned revisions; unpinned actions track the branch head.
type Git struct {
	// run executes git with the given args in dir. Overridable in tests.
	run func(ctx context.Context, dir string, args ...string) error
}

// NewGit creates a git-backed materializer.
func NewGit() *Git {
	return &Git{run: runGit}
}

// Materialize checks out a.URL at a.Ref into a.Path.
func (g *Git) Materialize(ctx context.Context, a plan.Action) error {
	if _, err := os.Stat(a.Path); os.IsNotExist(err) {
		if err := g.run(ctx, "", "clone", "--no-checkout", a.URL, a.Path); err != nil {
			return err
		}
		if a.Subdir != "" {
			// Path overrides only need the subtree on disk.
			if err := g.run(ctx, a.Path, "sparse-checkout", "set", a.Subdir); err != nil {
				return err
			}
		}
	} else if err := g.run(ctx, a.Path, "fetch", "origin"); err != nil {
		return err
	}

	ref := a.Ref
	if a.Unpinned {
		// Branch heads move; check out the remote-tracking tip.
		ref = "origin/" + a.Ref
	}
	return g.run(ctx, a.Path, "checkout", "--detach", ref)
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %v: %w: %s", args, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
