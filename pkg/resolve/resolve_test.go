package resolve

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/luqui/recipe-engine/pkg/descriptor"
	apperrors "github.com/luqui/recipe-engine/pkg/errors"
	"github.com/luqui/recipe-engine/pkg/source"
)

// fakeSource serves descriptors from memory, keyed by repository URL,
// and counts fetches per (url, ref).
type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int
	repos map[string]*descriptor.Package
}

func newFakeSource(repos map[string]*descriptor.Package) *fakeSource {
	return &fakeSource{calls: make(map[string]int), repos: repos}
}

func (s *fakeSource) Fetch(ctx context.Context, url, ref, pathOverride string) ([]byte, error) {
	s.mu.Lock()
	s.calls[url+"@"+ref]++
	s.mu.Unlock()

	pkg, ok := s.repos[url]
	if !ok {
		return nil, source.ErrNotFound
	}
	return descriptor.Encode(pkg)
}

func (s *fakeSource) callCount(url, ref string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url+"@"+ref]
}

func pkgOf(id string, deps ...descriptor.DepSpec) *descriptor.Package {
	return &descriptor.Package{
		APIVersion:  descriptor.APIVersion,
		ProjectID:   descriptor.ProjectID(id),
		RecipesPath: "recipes",
		Deps:        deps,
	}
}

func pinned(id, url, rev string) descriptor.DepSpec {
	return descriptor.DepSpec{ProjectID: descriptor.ProjectID(id), URL: url, Revision: rev}
}

func floating(id, url, branch string) descriptor.DepSpec {
	return descriptor.DepSpec{ProjectID: descriptor.ProjectID(id), URL: url, Branch: branch}
}

func TestResolveSimple(t *testing.T) {
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a"),
		"https://x/b": pkgOf("b"),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"), pinned("b", "https://x/b", "rev_b"))

	c, err := New(src).Resolve(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if c.Len() != 3 {
		t.Errorf("closure size = %d, want 3", c.Len())
	}
	order := c.Order()
	if order[len(order)-1] != "root" {
		t.Errorf("root should be last in order, got %v", order)
	}
	if len(c.Unstable()) != 0 {
		t.Errorf("fully pinned closure reported unstable: %v", c.Unstable())
	}
	for _, id := range []descriptor.ProjectID{"a", "b"} {
		e, ok := c.Entry(id)
		if !ok {
			t.Fatalf("missing entry %s", id)
		}
		if e.Package == nil {
			t.Errorf("entry %s has no descriptor", id)
		}
		if e.Unpinned {
			t.Errorf("entry %s marked unpinned", id)
		}
	}
}

func TestResolveSharedDependencyFetchedOnce(t *testing.T) {
	shared := pinned("c", "https://x/c", "rev_c")
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a", shared),
		"https://x/b": pkgOf("b", shared),
		"https://x/c": pkgOf("c"),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"), pinned("b", "https://x/b", "rev_b"))

	c, err := New(src).Resolve(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if c.Len() != 4 {
		t.Errorf("closure size = %d, want 4", c.Len())
	}
	if n := src.callCount("https://x/c", "rev_c"); n != 1 {
		t.Errorf("shared dependency fetched %d times, want 1", n)
	}
}

func TestResolveConflict(t *testing.T) {
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a", pinned("c", "https://x/c", "rev_1")),
		"https://x/b": pkgOf("b", pinned("c", "https://x/c", "rev_2")),
		"https://x/c": pkgOf("c"),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"), pinned("b", "https://x/b", "rev_b"))

	_, err := New(src).Resolve(context.Background(), root, Options{})
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !apperrors.Is(err, apperrors.ErrCodeDependencyConflict) {
		t.Errorf("error code = %v, want DEPENDENCY_CONFLICT", apperrors.GetCode(err))
	}
	msg := err.Error()
	for _, chain := range []string{"root -> a -> c", "root -> b -> c"} {
		if !strings.Contains(msg, chain) {
			t.Errorf("conflict message missing chain %q:\n%s", chain, msg)
		}
	}
}

func TestResolveBranchOnlyDivergenceMerges(t *testing.T) {
	// Same pinned revision requested via different branches: the
	// revision is authoritative, the branches are informational.
	specMain := descriptor.DepSpec{ProjectID: "c", URL: "https://x/c", Branch: "main", Revision: "rev_c"}
	specRel := descriptor.DepSpec{ProjectID: "c", URL: "https://x/c", Branch: "release", Revision: "rev_c"}
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a", specMain),
		"https://x/b": pkgOf("b", specRel),
		"https://x/c": pkgOf("c"),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"), pinned("b", "https://x/b", "rev_b"))

	c, err := New(src).Resolve(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	e, ok := c.Entry("c")
	if !ok {
		t.Fatal("missing entry c")
	}
	// First-discovered spec wins.
	if e.Spec.Branch != "main" || e.Spec.Revision != "rev_c" {
		t.Errorf("winning spec = %+v, want branch main at rev_c", e.Spec)
	}
}

func TestResolveUnpinnedBranchDivergenceConflicts(t *testing.T) {
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a", floating("c", "https://x/c", "main")),
		"https://x/b": pkgOf("b", floating("c", "https://x/c", "experimental")),
		"https://x/c": pkgOf("c"),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"), pinned("b", "https://x/b", "rev_b"))

	_, err := New(src).Resolve(context.Background(), root, Options{})
	if err == nil {
		t.Fatal("expected conflict for diverging unpinned branches")
	}
	if !apperrors.Is(err, apperrors.ErrCodeDependencyConflict) {
		t.Errorf("error code = %v, want DEPENDENCY_CONFLICT", apperrors.GetCode(err))
	}
}

func TestResolveUnpinnedFlagged(t *testing.T) {
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a"),
	})
	root := pkgOf("root", floating("a", "https://x/a", "main"))

	c, err := New(src).Resolve(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	unstable := c.Unstable()
	if len(unstable) != 1 || unstable[0] != "a" {
		t.Errorf("Unstable = %v, want [a]", unstable)
	}
	e, _ := c.Entry("a")
	if !e.Unpinned {
		t.Error("entry a should be unpinned")
	}
	if e.Spec.Ref() != "main" {
		t.Errorf("Ref = %q, want main", e.Spec.Ref())
	}
}

func TestResolveCycle(t *testing.T) {
	specA := pinned("a", "https://x/a", "rev_a")
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a", pinned("b", "https://x/b", "rev_b")),
		"https://x/b": pkgOf("b", specA),
	})
	root := pkgOf("root", specA)

	_, err := New(src).Resolve(context.Background(), root, Options{})
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !apperrors.Is(err, apperrors.ErrCodeDependencyCycle) {
		t.Errorf("error code = %v, want DEPENDENCY_CYCLE", apperrors.GetCode(err))
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("cycle message should contain the full path, got: %v", err)
	}
}

func TestResolveMissingDescriptor(t *testing.T) {
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a", pinned("b", "https://x/gone", "rev_b")),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"))

	_, err := New(src).Resolve(context.Background(), root, Options{})
	if err == nil {
		t.Fatal("expected error for missing descriptor")
	}
	if !apperrors.Is(err, apperrors.ErrCodeDescriptorUnavailable) {
		t.Errorf("error code = %v, want DESCRIPTOR_UNAVAILABLE", apperrors.GetCode(err))
	}
	if !strings.Contains(err.Error(), "root -> a -> b") {
		t.Errorf("error should name the request chain, got: %v", err)
	}
}

func TestResolveUnsupportedAPIVersion(t *testing.T) {
	bad := pkgOf("a")
	bad.APIVersion = 99
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": bad,
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"))

	_, err := New(src).Resolve(context.Background(), root, Options{})
	if err == nil {
		t.Fatal("expected error for unsupported api_version")
	}
	if !apperrors.Is(err, apperrors.ErrCodeUnsupportedAPIVersion) {
		t.Errorf("error code = %v, want UNSUPPORTED_API_VERSION", apperrors.GetCode(err))
	}
}

func TestResolveMismatchedIdentity(t *testing.T) {
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("imposter"),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"))

	_, err := New(src).Resolve(context.Background(), root, Options{})
	if err == nil {
		t.Fatal("expected error for mismatched project id")
	}
	if !strings.Contains(err.Error(), "identifies itself") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResolveCollectsAllErrors(t *testing.T) {
	src := newFakeSource(map[string]*descriptor.Package{})
	root := pkgOf("root",
		pinned("a", "https://x/gone_a", "rev_a"),
		pinned("b", "https://x/gone_b", "rev_b"))

	_, err := New(src).Resolve(context.Background(), root, Options{})
	if err == nil {
		t.Fatal("expected errors for both missing descriptors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "gone_a") || !strings.Contains(msg, "gone_b") {
		t.Errorf("both failures should be reported together, got:\n%s", msg)
	}
}

func TestResolveTopologicalOrder(t *testing.T) {
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a", pinned("b", "https://x/b", "rev_b")),
		"https://x/b": pkgOf("b", pinned("c", "https://x/c", "rev_c")),
		"https://x/c": pkgOf("c"),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"))

	c, err := New(src).Resolve(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := []descriptor.ProjectID{"c", "b", "a", "root"}
	got := c.Order()
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	repos := map[string]*descriptor.Package{
		"https://x/a": pkgOf("a", pinned("d", "https://x/d", "rev_d")),
		"https://x/b": pkgOf("b", pinned("d", "https://x/d", "rev_d"), pinned("e", "https://x/e", "rev_e")),
		"https://x/c": pkgOf("c"),
		"https://x/d": pkgOf("d"),
		"https://x/e": pkgOf("e"),
	}
	root := pkgOf("root",
		pinned("a", "https://x/a", "rev_a"),
		pinned("b", "https://x/b", "rev_b"),
		pinned("c", "https://x/c", "rev_c"))

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		c, err := New(newFakeSource(repos)).Resolve(context.Background(), root, Options{Parallelism: 4})
		if err != nil {
			t.Fatalf("Resolve error on run %d: %v", i, err)
		}
		data, err := c.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON error: %v", err)
		}
		outputs = append(outputs, data)
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("identical inputs produced different serialized closures")
	}
}

func TestClosureComplete(t *testing.T) {
	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a", pinned("d", "https://x/d", "rev_d")),
		"https://x/b": pkgOf("b", pinned("d", "https://x/d", "rev_d")),
		"https://x/d": pkgOf("d"),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"), pinned("b", "https://x/b", "rev_b"))

	c, err := New(src).Resolve(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	// Every dependency named by any entry's descriptor is itself present.
	seen := map[descriptor.ProjectID]int{}
	for _, e := range c.Entries() {
		seen[e.Project]++
		for _, d := range e.Package.Deps {
			if _, ok := c.Entry(d.ProjectID); !ok {
				t.Errorf("dependency %s of %s missing from closure", d.ProjectID, e.Project)
			}
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("project %s appears %d times", id, n)
		}
	}
}

func TestResolveInvalidRoot(t *testing.T) {
	root := pkgOf("root")
	root.APIVersion = 0

	_, err := New(newFakeSource(nil)).Resolve(context.Background(), root, Options{})
	if !apperrors.Is(err, apperrors.ErrCodeUnsupportedAPIVersion) {
		t.Errorf("err = %v, want UNSUPPORTED_API_VERSION", err)
	}

	root = pkgOf("root")
	root.RecipesPath = ""

	_, err = New(newFakeSource(nil)).Resolve(context.Background(), root, Options{})
	if !apperrors.Is(err, apperrors.ErrCodeInvalidDescriptor) {
		t.Errorf("err = %v, want INVALID_DESCRIPTOR", err)
	}
}

func TestResolveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := newFakeSource(map[string]*descriptor.Package{
		"https://x/a": pkgOf("a"),
	})
	root := pkgOf("root", pinned("a", "https://x/a", "rev_a"))

	_, err := New(src).Resolve(ctx, root, Options{})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
