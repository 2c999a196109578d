package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luqui/recipe-engine/pkg/cache"
	"github.com/luqui/recipe-engine/pkg/descriptor"
)

const testDescriptor = `{"api_version": 1, "project_id": "build", "recipes_path": "recipes"}`

func TestLocalFetch(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, filepath.FromSlash(descriptor.ConfigFile))
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgPath, []byte(testDescriptor), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewLocal()
	ctx := context.Background()

	for _, repoURL := range []string{dir, "file://" + dir} {
		data, err := src.Fetch(ctx, repoURL, "ignored-ref", "")
		if err != nil {
			t.Fatalf("Fetch(%q) error: %v", repoURL, err)
		}
		if string(data) != testDescriptor {
			t.Errorf("Fetch(%q) = %q", repoURL, data)
		}
	}
}

func TestLocalFetchPathOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "tree", filepath.FromSlash(descriptor.ConfigFile))
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgPath, []byte(testDescriptor), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := NewLocal().Fetch(context.Background(), dir, "", "sub/tree")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(data) != testDescriptor {
		t.Errorf("Fetch = %q", data)
	}
}

func TestLocalFetchNotFound(t *testing.T) {
	_, err := NewLocal().Fetch(context.Background(), t.TempDir(), "", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoteFetch(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		want := "/repo/raw/rev_a/" + descriptor.ConfigFile
		if r.URL.Path != want {
			t.Errorf("request path = %q, want %q", r.URL.Path, want)
		}
		w.Write([]byte(testDescriptor))
	}))
	defer srv.Close()

	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	src := NewRemote(backend, time.Hour, nil)
	ctx := context.Background()

	data, err := src.Fetch(ctx, srv.URL+"/repo", "rev_a", "")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(data) != testDescriptor {
		t.Errorf("Fetch = %q", data)
	}

	// Second fetch for the same key is served from cache.
	if _, err := src.Fetch(ctx, srv.URL+"/repo", "rev_a", ""); err != nil {
		t.Fatalf("cached Fetch error: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestRemoteFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src := NewRemote(cache.NewNullCache(), 0, nil)
	_, err := src.Fetch(context.Background(), srv.URL+"/repo", "rev_a", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoteFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(testDescriptor))
	}))
	defer srv.Close()

	src := NewRemote(cache.NewNullCache(), 0, nil)
	data, err := src.Fetch(context.Background(), srv.URL+"/repo", "rev_a", "")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(data) != testDescriptor {
		t.Errorf("Fetch = %q", data)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("server hit %d times, want 3", n)
	}
}

func TestRemoteFetchHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("Authorization header = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(testDescriptor))
	}))
	defer srv.Close()

	src := NewRemote(cache.NewNullCache(), 0, map[string]string{"Authorization": "Bearer token"})
	if _, err := src.Fetch(context.Background(), srv.URL+"/repo", "rev_a", ""); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
}

func TestRawFileURL(t *testing.T) {
	tests := []struct {
		repoURL string
		ref     string
		path    string
		want    string
	}{
		{
			"https://chromium.googlesource.com/chromium/tools/build",
			"abc123",
			"infra/config/recipes.cfg",
			"https://chromium.googlesource.com/chromium/tools/build/+/abc123/infra/config/recipes.cfg?format=TEXT",
		},
		{
			"https://github.com/luci/recipes-py.git",
			"main",
			"infra/config/recipes.cfg",
			"https://raw.githubusercontent.com/luci/recipes-py/main/infra/config/recipes.cfg",
		},
		{
			"https://git.example.com/build",
			"rev1",
			"infra/config/recipes.cfg",
			"https://git.example.com/build/raw/rev1/infra/config/recipes.cfg",
		},
	}
	for _, tt := range tests {
		got, err := rawFileURL(tt.repoURL, tt.ref, tt.path)
		if err != nil {
			t.Errorf("rawFileURL(%q) error: %v", tt.repoURL, err)
			continue
		}
		if got != tt.want {
			t.Errorf("rawFileURL(%q) = %q, want %q", tt.repoURL, got, tt.want)
		}
	}

	if _, err := rawFileURL("https://github.com/incomplete", "main", "x"); err == nil {
		t.Error("github url without owner/repo accepted")
	}
}

func TestIsGitiles(t *testing.T) {
	if !isGitiles("https://chromium.googlesource.com/chromium/tools/build") {
		t.Error("googlesource.com host should be gitiles")
	}
	if isGitiles("https://github.com/luci/recipes-py") {
		t.Error("github.com host should not be gitiles")
	}
}

func TestDescriptorPath(t *testing.T) {
	if got := descriptorPath(""); got != descriptor.ConfigFile {
		t.Errorf("descriptorPath(\"\") = %q", got)
	}
	if got := descriptorPath("sub/tree"); got != "sub/tree/"+descriptor.ConfigFile {
		t.Errorf("descriptorPath(sub/tree) = %q", got)
	}
}

func TestCheckStatus(t *testing.T) {
	if err := checkStatus(http.StatusOK); err != nil {
		t.Errorf("200: %v", err)
	}
	if err := checkStatus(http.StatusNotFound); !errors.Is(err, ErrNotFound) {
		t.Errorf("404: %v, want ErrNotFound", err)
	}
	if err := checkStatus(http.StatusForbidden); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("403: %v, want non-retryable network error", err)
	}
	err := checkStatus(http.StatusServiceUnavailable)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("503: %v", err)
	}
}
