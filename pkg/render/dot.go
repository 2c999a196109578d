// Package render draws resolved dependency closures as node-link
// diagrams via Graphviz.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/luqui/recipe-engine/pkg/resolve"
)

// Options configures closure rendering.
type Options struct {
	// Detailed includes revision and repository information in node
	// labels. When false, only the project id is shown.
	Detailed bool
}

// ToDOT converts a resolved closure to Graphviz DOT format. The root is
// drawn with a double border; unpinned dependencies are dashed. The
// resulting DOT string can be rendered with [RenderSVG].
func ToDOT(c *resolve.Closure, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph deps {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, e := range c.Entries() {
		label := fmtLabel(e, opts.Detailed)
		attrs := fmtAttrs(c, e, label)
		fmt.Fprintf(&buf, "  %q [%s];\n", string(e.Project), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range c.Entries() {
		for _, dep := range e.Package.Deps {
			fmt.Fprintf(&buf, "  %q -> %q;\n", string(e.Project), string(dep.ProjectID))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(e resolve.ClosureEntry, detailed bool) string {
	if !detailed || e.Spec.URL == "" {
		return string(e.Project)
	}

	rev := e.Spec.Revision
	if len(rev) > 10 {
		rev = rev[:10]
	}
	if rev == "" {
		rev = "unpinned:" + e.Spec.Ref()
	}
	return fmt.Sprintf("%s\n%s\n%s", e.Project, rev, e.Spec.URL)
}

func fmtAttrs(c *resolve.Closure, e resolve.ClosureEntry, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case e.Project == c.Root():
		attrs = append(attrs, "peripheries=2")
	case e.Unpinned:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
