package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luqui/recipe-engine/pkg/render"
)

// newGraphCmd creates the graph command, which renders the dependency
// closure as Graphviz DOT or SVG.
func newGraphCmd() *cobra.Command {
	var opts resolveOpts
	var format string
	var detailed bool

	cmd := &cobra.Command{
		Use:   "graph <checkout-dir|descriptor-file|repo-url>",
		Short: "Render the dependency closure as DOT or SVG",
		Long: `Resolve the dependency closure and render it as a Graphviz graph.

The root package is drawn with a double border; unpinned dependencies are
dashed.

Examples:
  recipedeps graph .                          # DOT to stdout
  recipedeps graph . -o deps.dot              # DOT to file
  recipedeps graph . --format svg -o deps.svg # Rendered SVG`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			closure, err := runResolve(c.Context(), args[0], &opts)
			if err != nil {
				return err
			}

			dot := render.ToDOT(closure, render.Options{Detailed: detailed})
			var data []byte
			switch strings.ToLower(format) {
			case "dot":
				data = []byte(dot)
			case "svg":
				data, err = render.RenderSVG(c.Context(), dot)
				if err != nil {
					return fmt.Errorf("render svg: %w", err)
				}
			default:
				return fmt.Errorf("unknown format: %s (available: dot, svg)", format)
			}

			out, err := openOutput(opts.output)
			if err != nil {
				return err
			}
			defer out.Close()
			if _, err := out.Write(data); err != nil {
				return err
			}
			if opts.output != "" {
				printFile(opts.output)
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&format, "format", "dot", "output format (dot or svg)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include revisions and urls in node labels")
	return cmd
}
