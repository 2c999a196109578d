package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/luqui/recipe-engine/pkg/cache"
	"github.com/luqui/recipe-engine/pkg/descriptor"
	"github.com/luqui/recipe-engine/pkg/history"
	"github.com/luqui/recipe-engine/pkg/observability"
	"github.com/luqui/recipe-engine/pkg/resolve"
	"github.com/luqui/recipe-engine/pkg/source"
)

// defaultCacheTTL controls how long fetched descriptors stay valid in the
// local cache. Pinned revisions are immutable, but branch heads move, so the
// TTL stays short.
const defaultCacheTTL = 15 * time.Minute

// resolveOpts holds the flags shared by every command that needs a closure
// (resolve, plan, fetch, graph).
type resolveOpts struct {
	noCache     bool   // bypass the descriptor cache entirely
	parallelism int    // concurrent fetches per traversal layer
	output      string // output file path (stdout if empty)
	asJSON      bool   // machine-readable output
}

func (o *resolveOpts) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "bypass the descriptor cache")
	cmd.Flags().IntVar(&o.parallelism, "parallelism", resolve.DefaultParallelism, "concurrent descriptor fetches")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "emit JSON instead of human-readable output")
}

// newResolveCmd creates the resolve command.
//
// It loads a root descriptor (from a checkout directory, a descriptor file,
// or a repository URL), resolves the transitive dependency closure, and
// prints it.
func newResolveCmd() *cobra.Command {
	var opts resolveOpts
	var interactive bool

	cmd := &cobra.Command{
		Use:   "resolve <checkout-dir|descriptor-file|repo-url>",
		Short: "Resolve a root descriptor into its dependency closure",
		Long: `Resolve the transitive dependency closure of a recipe package.

The argument may be a local checkout directory (the descriptor is read from
infra/config/recipes.cfg inside it), a descriptor file directly, or a remote
repository URL.

Examples:
  recipedeps resolve .                                  # Current checkout
  recipedeps resolve infra/config/recipes.cfg           # Descriptor file
  recipedeps resolve https://example.com/repos/build    # Remote repository
  recipedeps resolve . --json -o closure.json           # Machine-readable`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			closure, err := runResolve(c.Context(), args[0], &opts)
			if err != nil {
				return err
			}
			if interactive {
				return browseClosure(closure)
			}
			if opts.asJSON {
				return writeJSON(closure, opts.output)
			}
			printClosure(closure)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse the closure in a terminal UI")
	return cmd
}

// runResolve is the shared resolution pipeline behind resolve, plan, fetch
// and graph: load the root descriptor, build a source, resolve, and record
// the run in history when a backend is configured.
func runResolve(ctx context.Context, input string, opts *resolveOpts) (*resolve.Closure, error) {
	logger := loggerFromContext(ctx)

	root, err := loadRoot(ctx, input, opts)
	if err != nil {
		return nil, err
	}

	src, cleanup, err := newSource(opts)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	sp := newSpinner(ctx, fmt.Sprintf("Resolving %s", root.ProjectID))
	observability.SetResolveHooks(&spinnerHooks{spinner: sp})
	defer observability.Reset()
	sp.Start()

	rec := history.NewRecord(string(root.ProjectID))
	prog := newProgress(logger)

	closure, err := resolve.New(src).Resolve(ctx, root, resolve.Options{
		Parallelism: opts.parallelism,
		Logger:      logger.Debugf,
	})
	sp.Stop()

	rec.Duration = time.Since(rec.CreatedAt).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Packages = closure.Len()
		rec.Unstable = len(closure.Unstable())
	}
	saveRecord(ctx, rec, logger)

	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Resolved %d packages", closure.Len()))
	return closure, nil
}

// loadRoot reads the root descriptor from a checkout directory, a descriptor
// file, or a remote repository URL.
func loadRoot(ctx context.Context, input string, opts *resolveOpts) (*descriptor.Package, error) {
	if strings.Contains(input, "://") && !strings.HasPrefix(input, "file://") {
		src, cleanup, err := newSource(opts)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		data, err := src.Fetch(ctx, input, "", "")
		if err != nil {
			return nil, fmt.Errorf("fetch root descriptor: %w", err)
		}
		return decodeRoot(descriptor.ConfigFile, data)
	}

	path := strings.TrimPrefix(input, "file://")
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read root descriptor: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, filepath.FromSlash(descriptor.ConfigFile))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read root descriptor: %w", err)
	}
	return decodeRoot(path, data)
}

func decodeRoot(path string, data []byte) (*descriptor.Package, error) {
	pkg, err := descriptor.Decode(path, data)
	if err != nil {
		return nil, err
	}
	if err := pkg.Validate(); err != nil {
		return nil, err
	}
	return pkg, nil
}

// newSource builds the descriptor source used during resolution. Remote
// repositories go through the HTTP fetcher with a file-backed cache unless
// --no-cache is set; file:// URLs and plain paths read straight from disk.
func newSource(opts *resolveOpts) (source.Source, func(), error) {
	backend := cache.NewNullCache()
	if !opts.noCache {
		dir, err := cacheDir()
		if err != nil {
			return nil, nil, fmt.Errorf("get cache dir: %w", err)
		}
		backend, err = cache.NewFileCache(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
	}
	src := &autoSource{
		local:  source.NewLocal(),
		remote: source.NewRemote(backend, defaultCacheTTL, nil),
	}
	return src, func() { _ = backend.Close() }, nil
}

// autoSource routes fetches by URL scheme: file:// URLs and plain paths to
// the filesystem source, everything else to the HTTP source.
type autoSource struct {
	local  *source.Local
	remote *source.Remote
}

func (s *autoSource) Fetch(ctx context.Context, repoURL, ref, pathOverride string) ([]byte, error) {
	if strings.HasPrefix(repoURL, "file://") || !strings.Contains(repoURL, "://") {
		return s.local.Fetch(ctx, repoURL, ref, pathOverride)
	}
	return s.remote.Fetch(ctx, repoURL, ref, pathOverride)
}

// spinnerHooks surfaces per-repository fetch progress on the spinner.
type spinnerHooks struct {
	observability.NoopResolveHooks
	spinner *spinner
}

func (h *spinnerHooks) OnFetchStart(_ context.Context, _, url string) {
	h.spinner.SetMessage(fmt.Sprintf("Fetching %s", url))
}

// saveRecord persists rec to the run-history backend configured via
// RECIPEDEPS_MONGO_URI. History is best effort and never fails the run.
func saveRecord(ctx context.Context, rec *history.Record, logger interface{ Warnf(string, ...any) }) {
	uri := os.Getenv("RECIPEDEPS_MONGO_URI")
	if uri == "" {
		return
	}
	store, err := history.NewMongoStore(ctx, uri, "")
	if err != nil {
		logger.Warnf("Run history disabled: %v", err)
		return
	}
	defer store.Close(ctx)
	if err := store.Save(ctx, rec); err != nil {
		logger.Warnf("Run history save failed: %v", err)
	}
}

// printClosure renders the closure as a human-readable listing in
// topological order, root last.
func printClosure(c *resolve.Closure) {
	fmt.Println(StyleTitle.Render(fmt.Sprintf("Closure of %s", c.Root())))
	for _, e := range c.Entries() {
		switch {
		case e.Project == c.Root():
			fmt.Printf("  %s %s\n", StyleHighlight.Render(string(e.Project)), StyleDim.Render("(root)"))
		case e.Unpinned:
			fmt.Printf("  %s %s %s\n",
				StyleValue.Render(string(e.Project)),
				StyleDim.Render(e.Spec.URL),
				StyleWarning.Render(fmt.Sprintf("@%s (unpinned)", e.Spec.Ref())))
		default:
			fmt.Printf("  %s %s %s\n",
				StyleValue.Render(string(e.Project)),
				StyleDim.Render(e.Spec.URL),
				StyleDim.Render("@"+short(e.Spec.Revision)))
		}
	}
	printStats(c.Len(), len(c.Unstable()))
	for _, id := range c.Unstable() {
		printWarning("%s floats on a branch head; pin a revision for reproducible runs", id)
	}
}

// short truncates a revision hash for display.
func short(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// writeJSON serializes v as indented JSON to path (or stdout if empty).
func writeJSON(v any, path string) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if path != "" {
		printFile(path)
	}
	return nil
}

// nopCloser wraps an io.Writer with a no-op Close method.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for path, or stdout if path is empty.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

// cacheDir returns the descriptor cache directory, honoring
// RECIPEDEPS_CACHE_DIR and XDG_CACHE_HOME before falling back to
// ~/.cache/recipedeps.
func cacheDir() (string, error) {
	if dir := os.Getenv("RECIPEDEPS_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "recipedeps"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "recipedeps"), nil
}
