package source

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/luqui/recipe-engine/pkg/descriptor"
)

// Local reads descriptors from repository checkouts on disk. It serves
// local development (file:// dependency URLs) and tests.
//
// The ref argument is ignored: a checkout on disk is whatever revision
// it is. Callers that need revision fidelity should use Remote.
type Local struct{}

// NewLocal creates a filesystem-backed descriptor source.
func NewLocal() *Local { return &Local{} }

// Fetch reads the descriptor from the checkout rooted at repoURL, which
// may be a plain path or a file:// URL.
func (l *Local) Fetch(ctx context.Context, repoURL, ref, pathOverride string) ([]byte, error) {
	root := strings.TrimPrefix(repoURL, "file://")
	if u, err := url.Parse(repoURL); err == nil && u.Scheme == "file" {
		root = u.Path
	}

	path := filepath.Join(root, filepath.FromSlash(pathOverride), filepath.FromSlash(descriptor.ConfigFile))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}
