package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/luqui/recipe-engine/pkg/cache"
	"github.com/luqui/recipe-engine/pkg/descriptor"
	"github.com/luqui/recipe-engine/pkg/httputil"
	"github.com/luqui/recipe-engine/pkg/observability"
)

// Remote fetches descriptors over HTTP from repository hosts. It handles
// response caching, retry logic, and common request headers.
//
// Two raw-file URL shapes are understood:
//   - gitiles hosts (*.googlesource.com):
//     <url>/+/<ref>/<path>?format=TEXT (base64-encoded body)
//   - github.com repositories:
//     https://raw.githubusercontent.com/<owner>/<repo>/<ref>/<path>
//
// All methods are safe for concurrent use by multiple goroutines.
type Remote struct {
	http    *http.Client
	cache   cache.Cache
	ttl     time.Duration
	headers map[string]string
}

// NewRemote creates a Remote source with the given cache backend.
//
// Parameters:
//   - backend: cache for raw descriptor payloads (use cache.NewNullCache()
//     for no caching)
//   - ttl: how long payloads are cached; pinned-revision payloads are
//     immutable so long TTLs are safe
//   - headers: optional default headers (e.g. auth tokens), applied to
//     every request
func NewRemote(backend cache.Cache, ttl time.Duration, headers map[string]string) *Remote {
	return &Remote{
		http:    NewHTTPClient(),
		cache:   backend,
		ttl:     ttl,
		headers: headers,
	}
}

// Fetch retrieves the descriptor payload for the repository at repoURL
// checked out at ref. The descriptor is looked up under
// pathOverride/infra/config/recipes.cfg within the repository.
func (r *Remote) Fetch(ctx context.Context, repoURL, ref, pathOverride string) ([]byte, error) {
	rawURL, err := rawFileURL(repoURL, ref, descriptorPath(pathOverride))
	if err != nil {
		return nil, err
	}

	key := cache.Key("descriptor", repoURL, ref, pathOverride)
	if data, ok, _ := r.cache.Get(ctx, key); ok {
		observability.Cache().OnCacheHit(ctx, "descriptor")
		return data, nil
	}
	observability.Cache().OnCacheMiss(ctx, "descriptor")

	var data []byte
	err = httputil.RetryWithBackoff(ctx, func() error {
		var ferr error
		data, ferr = r.get(ctx, rawURL)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	if isGitiles(repoURL) {
		if decoded, derr := base64.StdEncoding.DecodeString(string(data)); derr == nil {
			data = decoded
		}
	}

	if err := r.cache.Set(ctx, key, data, r.ttl); err == nil {
		observability.Cache().OnCacheSet(ctx, "descriptor", len(data))
	}
	return data, nil
}

func (r *Remote) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	observability.HTTP().OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)

	resp, err := r.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// descriptorPath returns the in-repository path of the descriptor file,
// honoring a subtree override.
func descriptorPath(pathOverride string) string {
	if pathOverride == "" {
		return descriptor.ConfigFile
	}
	return path.Join(pathOverride, descriptor.ConfigFile)
}

func isGitiles(repoURL string) bool {
	u, err := url.Parse(repoURL)
	return err == nil && strings.HasSuffix(u.Host, ".googlesource.com")
}

// rawFileURL maps a repository URL plus (ref, file path) to the host's
// raw-file endpoint.
func rawFileURL(repoURL, ref, filePath string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(repoURL, ".git"))
	if err != nil {
		return "", fmt.Errorf("invalid repository url %q: %w", repoURL, err)
	}

	switch {
	case strings.HasSuffix(u.Host, ".googlesource.com"):
		return fmt.Sprintf("%s/+/%s/%s?format=TEXT", u.String(), ref, filePath), nil
	case u.Host == "github.com":
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 {
			return "", fmt.Errorf("invalid github repository url %q", repoURL)
		}
		return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s",
			parts[0], parts[1], ref, filePath), nil
	default:
		// Generic fallback: treat the host as serving raw files directly.
		return fmt.Sprintf("%s/raw/%s/%s", u.String(), ref, filePath), nil
	}
}
