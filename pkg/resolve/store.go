package resolve

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/luqui/recipe-engine/pkg/descriptor"
	apperrors "github.com/luqui/recipe-engine/pkg/errors"
	"github.com/luqui/recipe-engine/pkg/observability"
	"github.com/luqui/recipe-engine/pkg/source"
)

// storeKey identifies a descriptor fetch. A path override changes the
// key: a subtree of a repository is an independently addressable
// dependency root.
type storeKey struct {
	url          string
	revision     string
	pathOverride string
}

// storeEntry is a single-assignment future for one descriptor fetch.
// done is closed exactly once, after pkg/err are set; concurrent
// requesters for the same key await it instead of issuing duplicates.
type storeEntry struct {
	done chan struct{}
	pkg  *descriptor.Package
	err  error
}

// Store loads and caches parsed package descriptors for one resolution
// run, keyed by (repository URL, revision, path override). Descriptors
// are treated as immutable once fetched; there is no invalidation
// mid-run. The cache is scoped to the run and discarded afterward.
//
// Store is safe for concurrent use.
type Store struct {
	source source.Source

	mu      sync.Mutex
	entries map[storeKey]*storeEntry
}

// NewStore creates a run-scoped descriptor store backed by src.
func NewStore(src source.Source) *Store {
	return &Store{
		source:  src,
		entries: make(map[storeKey]*storeEntry),
	}
}

// FetchDescriptor returns the descriptor for the repository at url,
// checked out at ref (a pinned revision, or a branch for unpinned deps),
// rooted at pathOverride if non-empty.
//
// Repeat requests for the same triple return the cached value; each key
// is fetched at most once per run. Failures are classified as
// DESCRIPTOR_UNAVAILABLE (fetch or decode failure) or
// UNSUPPORTED_API_VERSION.
func (s *Store) FetchDescriptor(ctx context.Context, url, ref, pathOverride string) (*descriptor.Package, error) {
	key := storeKey{url: url, revision: ref, pathOverride: pathOverride}

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		entry = &storeEntry{done: make(chan struct{})}
		s.entries[key] = entry
	}
	s.mu.Unlock()

	if ok {
		select {
		case <-entry.done:
			return entry.pkg, entry.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	entry.pkg, entry.err = s.fetch(ctx, url, ref, pathOverride)
	close(entry.done)
	return entry.pkg, entry.err
}

func (s *Store) fetch(ctx context.Context, url, ref, pathOverride string) (*descriptor.Package, error) {
	start := time.Now()
	observability.Resolve().OnFetchStart(ctx, url, ref)

	data, err := s.source.Fetch(ctx, url, ref, pathOverride)
	if err != nil {
		observability.Resolve().OnFetchComplete(ctx, url, ref, time.Since(start), err)
		return nil, apperrors.Wrap(apperrors.ErrCodeDescriptorUnavailable, err,
			"fetch descriptor %s@%s", url, ref)
	}

	pkg, err := descriptor.Decode(descriptor.ConfigFile, data)
	observability.Resolve().OnFetchComplete(ctx, url, ref, time.Since(start), err)
	if err != nil {
		if errors.Is(err, descriptor.ErrUnsupportedAPIVersion) {
			return nil, apperrors.Wrap(apperrors.ErrCodeUnsupportedAPIVersion, err,
				"descriptor %s@%s", url, ref)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDescriptorUnavailable, err,
			"descriptor %s@%s", url, ref)
	}
	return pkg, nil
}
