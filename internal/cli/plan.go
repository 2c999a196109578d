package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luqui/recipe-engine/pkg/plan"
)

// newPlanCmd creates the plan command. It resolves the closure and prints
// the derived fetch plan without touching the filesystem.
func newPlanCmd() *cobra.Command {
	var opts resolveOpts
	var baseDir string

	cmd := &cobra.Command{
		Use:   "plan <checkout-dir|descriptor-file|repo-url>",
		Short: "Print the fetch plan for a dependency closure",
		Long: `Resolve the dependency closure and print the ordered list of checkout
actions that fetch would execute, without running any of them.

Examples:
  recipedeps plan .
  recipedeps plan . --base-dir /tmp/deps --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			closure, err := runResolve(c.Context(), args[0], &opts)
			if err != nil {
				return err
			}
			actions := plan.Build(closure, baseDir)
			if opts.asJSON {
				return writeJSON(actions, opts.output)
			}
			printPlan(actions)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&baseDir, "base-dir", plan.DefaultBaseDir, "directory to materialize dependencies into")
	return cmd
}

// printPlan renders the actions as a numbered human-readable listing.
func printPlan(actions []plan.Action) {
	if len(actions) == 0 {
		printInfo("Nothing to fetch: the closure has no dependencies")
		return
	}
	fmt.Println(StyleTitle.Render(fmt.Sprintf("Fetch plan (%d actions)", len(actions))))
	for i, a := range actions {
		ref := StyleDim.Render("@" + short(a.Ref))
		if a.Unpinned {
			ref = StyleWarning.Render(fmt.Sprintf("@%s (unpinned)", a.Ref))
		}
		fmt.Printf("  %s %s %s %s\n",
			StyleDim.Render(fmt.Sprintf("%d.", i+1)),
			StyleValue.Render(string(a.Project)),
			StyleDim.Render(a.URL),
			ref)
		printDetail("→ %s", a.Path)
	}
}
