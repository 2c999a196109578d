// Package source provides descriptor sources: the external collaborators
// that retrieve raw recipes.cfg payloads for the resolution engine.
//
// The engine in pkg/resolve only ever sees the Source interface. Two
// implementations are provided:
//   - Remote: fetches descriptors over HTTP from repository hosts
//     (gitiles and raw.githubusercontent URL shapes), with response
//     caching and retry
//   - Local: reads descriptors from checkouts on disk
package source

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a repository, revision, or descriptor
	// file doesn't exist at the source.
	ErrNotFound = errors.New("descriptor not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection
	// errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// Source retrieves the raw descriptor payload for a repository at a
// given VCS reference. pathOverride, when non-empty, roots the lookup at
// a subtree of the repository instead of its top level.
type Source interface {
	// Fetch returns the descriptor bytes for (url, ref, pathOverride).
	// Returns ErrNotFound if the descriptor does not exist there.
	Fetch(ctx context.Context, url, ref, pathOverride string) ([]byte, error)
}

// NewHTTPClient creates an HTTP client with a standard timeout for
// descriptor requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}
