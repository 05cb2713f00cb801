package browser

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ppiankov/scanfix/internal/models"
)

type fakeLister struct {
	mu    sync.Mutex
	trees map[string][]models.DirEntry
	fail  map[string]error
	calls []string
}

func (f *fakeLister) ListContents(ctx context.Context, repoID, path string) ([]models.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	if err := f.fail[path]; err != nil {
		return nil, err
	}
	return f.trees[path], nil
}

func dir(name, path string) models.DirEntry {
	return models.DirEntry{Name: name, Path: path, Type: models.EntryDir}
}

func file(name, path string) models.DirEntry {
	return models.DirEntry{Name: name, Path: path, Type: models.EntryFile}
}

func newFake() *fakeLister {
	return &fakeLister{
		trees: map[string][]models.DirEntry{
			"":        {file("README.md", "README.md"), dir("src", "src"), file("Makefile", "Makefile")},
			"src":     {dir("lib", "src/lib"), file("main.py", "src/main.py")},
			"src/lib": {file("util.py", "src/lib/util.py")},
		},
		fail: map[string]error{},
	}
}

func TestNavigateIntoPushesHistory(t *testing.T) {
	b := New(newFake(), "42")
	ctx := context.Background()

	if err := b.NavigateInto(ctx, "src"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.NavigateInto(ctx, "src/lib"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.CurrentPath() != "src/lib" {
		t.Errorf("expected src/lib, got %q", b.CurrentPath())
	}
	hist := b.History()
	if len(hist) != 3 || hist[0] != "" || hist[2] != "src/lib" {
		t.Errorf("unexpected history %v", hist)
	}
	if got := b.Visible(); len(got) != 1 || got[0].Name != "util.py" {
		t.Errorf("unexpected listing %+v", got)
	}
}

func TestBreadcrumbZeroResetsToRoot(t *testing.T) {
	f := newFake()
	b := New(f, "42")
	ctx := context.Background()
	_ = b.NavigateInto(ctx, "src")
	_ = b.NavigateInto(ctx, "src/lib")

	if err := b.NavigateToBreadcrumb(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.CurrentPath() != "" {
		t.Errorf("expected root, got %q", b.CurrentPath())
	}
	if len(b.History()) != 1 {
		t.Errorf("expected history length 1, got %d", len(b.History()))
	}
	if last := f.calls[len(f.calls)-1]; last != "" {
		t.Errorf("expected refetch of root, got %q", last)
	}
}

func TestBreadcrumbClamps(t *testing.T) {
	b := New(newFake(), "42")
	ctx := context.Background()
	_ = b.NavigateInto(ctx, "src")

	_ = b.NavigateToBreadcrumb(ctx, 10)
	if b.CurrentPath() != "src" {
		t.Errorf("expected src, got %q", b.CurrentPath())
	}
	_ = b.NavigateToBreadcrumb(ctx, -3)
	if b.CurrentPath() != "" {
		t.Errorf("expected root, got %q", b.CurrentPath())
	}
}

func TestStickyErrorClearsOnSuccess(t *testing.T) {
	f := newFake()
	f.fail["src"] = errors.New("bad gateway")
	b := New(f, "42")
	ctx := context.Background()

	_ = b.Refresh(ctx)
	before := b.Visible()

	if err := b.NavigateInto(ctx, "src"); err == nil {
		t.Fatal("expected error")
	}
	if b.Err() == nil {
		t.Fatal("expected sticky error")
	}
	if len(b.Visible()) != len(before) {
		t.Error("failed fetch must keep the previous listing")
	}

	b.Search("read")
	if b.Err() == nil {
		t.Error("search must not clear the error")
	}

	delete(f.fail, "src")
	if err := b.Refresh(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Err() != nil {
		t.Errorf("expected error cleared, got %v", b.Err())
	}
}

func TestStaleCompletionDiscarded(t *testing.T) {
	b := New(newFake(), "42")

	first := b.BeginNavigateInto("src")
	second := b.BeginNavigateToBreadcrumb(0)

	if !b.Complete(second, []models.DirEntry{file("root.txt", "root.txt")}, nil) {
		t.Fatal("latest completion should apply")
	}
	if b.Complete(first, []models.DirEntry{file("stale.py", "src/stale.py")}, nil) {
		t.Error("stale completion should be discarded")
	}
	if got := b.Visible(); len(got) != 1 || got[0].Name != "root.txt" {
		t.Errorf("unexpected listing %+v", got)
	}
	if b.Loading() {
		t.Error("expected loading cleared")
	}
}

func TestSearchIsClientSide(t *testing.T) {
	f := newFake()
	b := New(f, "42")
	_ = b.Refresh(context.Background())
	calls := len(f.calls)

	b.Search("MAKE")
	got := b.Visible()
	if len(got) != 1 || got[0].Name != "Makefile" {
		t.Errorf("unexpected search result %+v", got)
	}
	if len(f.calls) != calls {
		t.Error("search must not hit the server")
	}

	b.Search("")
	if len(b.Visible()) != 3 {
		t.Errorf("expected full listing after clearing search, got %d", len(b.Visible()))
	}
}

func TestSortDirsFirstThenName(t *testing.T) {
	entries := []models.DirEntry{
		file("b.py", "b.py"),
		dir("zeta", "zeta"),
		file("a.py", "a.py"),
		dir("alpha", "alpha"),
	}
	got := SortEntries(entries)
	want := []string{"alpha", "zeta", "a.py", "b.py"}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("position %d: got %s, want %s", i, got[i].Name, name)
		}
	}
}

func TestNavigateChangesClearSearch(t *testing.T) {
	b := New(newFake(), "42")
	b.Search("x")
	_ = b.NavigateInto(context.Background(), "src")
	if b.Query() != "" {
		t.Errorf("expected search cleared on navigation, got %q", b.Query())
	}
}

func TestBackAndBreadcrumbs(t *testing.T) {
	b := New(newFake(), "42")
	ctx := context.Background()
	_ = b.NavigateInto(ctx, "src")
	_ = b.NavigateInto(ctx, "src/lib")

	crumbs := b.Breadcrumbs()
	if len(crumbs) != 3 || crumbs[0] != "root" || crumbs[2] != "lib" {
		t.Errorf("unexpected breadcrumbs %v", crumbs)
	}

	seq := b.BeginBack()
	entries, err := b.Fetch(ctx)
	b.Complete(seq, entries, err)
	if b.CurrentPath() != "src" {
		t.Errorf("expected src after back, got %q", b.CurrentPath())
	}
}
