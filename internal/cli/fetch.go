package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luqui/recipe-engine/pkg/plan"
	"github.com/luqui/recipe-engine/pkg/vcs"
)

// newFetchCmd creates the fetch command. It resolves the closure, derives
// the fetch plan, and materializes every dependency with git.
func newFetchCmd() *cobra.Command {
	var opts resolveOpts
	var baseDir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "fetch <checkout-dir|descriptor-file|repo-url>",
		Short: "Materialize the dependency closure on disk",
		Long: `Resolve the dependency closure and check out every dependency into the
target directory (.recipe_deps/<project_id> by default).

Pinned dependencies are checked out detached at their revision. Unpinned
dependencies track their branch head and produce a warning.

Examples:
  recipedeps fetch .
  recipedeps fetch . --base-dir /tmp/deps
  recipedeps fetch . --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			logger := loggerFromContext(ctx)

			closure, err := runResolve(ctx, args[0], &opts)
			if err != nil {
				return err
			}
			actions := plan.Build(closure, baseDir)
			if len(actions) == 0 {
				printInfo("Nothing to fetch: the closure has no dependencies")
				return nil
			}
			if dryRun {
				printPlan(actions)
				return nil
			}

			prog := newProgress(logger)
			sp := newSpinner(ctx, "Checking out dependencies")
			sp.Start()
			for i := range actions {
				sp.SetMessage(fmt.Sprintf("Checking out %s (%d/%d)", actions[i].Project, i+1, len(actions)))
				if err := vcs.Apply(ctx, vcs.NewGit(), actions[i:i+1]); err != nil {
					sp.Stop()
					return err
				}
			}
			sp.Stop()
			prog.done(fmt.Sprintf("Checked out %d dependencies", len(actions)))

			for _, a := range actions {
				if a.Unpinned {
					printWarning("%s tracks branch %s; the checkout will drift as the branch moves", a.Project, a.Ref)
				}
			}
			printSuccess("Dependencies materialized under %s", baseDir)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&baseDir, "base-dir", plan.DefaultBaseDir, "directory to materialize dependencies into")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without executing it")
	return cmd
}
