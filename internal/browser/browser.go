// Package browser holds the navigation state of the repository file browser.
package browser

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/scanfix/internal/models"
)

// Lister fetches a directory listing. The root is "".
type Lister interface {
	ListContents(ctx context.Context, repoID, path string) ([]models.DirEntry, error)
}

// Browser tracks the current path, the breadcrumb history and the loaded
// listing of one repository. Fetches are tagged with a sequence number and
// only the most recent one may update the listing.
type Browser struct {
	lister Lister
	repoID string

	mu          sync.Mutex
	currentPath string
	history     []string
	entries     []models.DirEntry
	query       string
	err         error
	loading     bool
	seq         uint64
}

// New creates a Browser positioned at the repository root.
func New(lister Lister, repoID string) *Browser {
	return &Browser{
		lister:  lister,
		repoID:  repoID,
		history: []string{""},
	}
}

// RepositoryID returns the repository being browsed.
func (b *Browser) RepositoryID() string {
	return b.repoID
}

// CurrentPath returns the directory being shown.
func (b *Browser) CurrentPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentPath
}

// History returns a copy of the path history. History[0] is always the root.
func (b *Browser) History() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.history...)
}

// Err returns the sticky fetch error, if any.
func (b *Browser) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Loading reports whether a fetch is outstanding.
func (b *Browser) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Query returns the active search filter.
func (b *Browser) Query() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.query
}

// BeginNavigateInto pushes path onto the history and returns the sequence
// number the caller must pass to Complete once the listing arrives.
func (b *Browser) BeginNavigateInto(path string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	path = strings.Trim(path, "/")
	b.currentPath = path
	b.history = append(b.history, path)
	b.query = ""
	return b.beginLocked()
}

// BeginNavigateToBreadcrumb truncates the history to index and shows that
// path. Out-of-range indexes clamp to the nearest valid entry.
func (b *Browser) BeginNavigateToBreadcrumb(index int) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index >= len(b.history) {
		index = len(b.history) - 1
	}
	b.history = b.history[:index+1]
	b.currentPath = b.history[index]
	b.query = ""
	return b.beginLocked()
}

// BeginBack moves one level up the history. At the root it refreshes.
func (b *Browser) BeginBack() uint64 {
	b.mu.Lock()
	n := len(b.history)
	b.mu.Unlock()
	if n <= 1 {
		return b.BeginRefresh()
	}
	return b.BeginNavigateToBreadcrumb(n - 2)
}

// BeginRefresh refetches the current path without touching history.
func (b *Browser) BeginRefresh() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.beginLocked()
}

func (b *Browser) beginLocked() uint64 {
	b.seq++
	b.loading = true
	return b.seq
}

// Complete applies the outcome of fetch seq. A stale sequence is discarded
// and Complete returns false. An error keeps the previous listing and sets
// the sticky error; a successful listing clears it.
func (b *Browser) Complete(seq uint64, entries []models.DirEntry, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.seq {
		return false
	}
	b.loading = false
	if err != nil {
		b.err = err
		return true
	}
	b.err = nil
	b.entries = entries
	return true
}

// Fetch performs the listing request for the current path. It does not
// mutate state; pair it with Complete.
func (b *Browser) Fetch(ctx context.Context) ([]models.DirEntry, error) {
	return b.lister.ListContents(ctx, b.repoID, b.CurrentPath())
}

// NavigateInto enters path and loads its listing.
func (b *Browser) NavigateInto(ctx context.Context, path string) error {
	return b.run(ctx, b.BeginNavigateInto(path))
}

// NavigateToBreadcrumb jumps to history index and loads its listing.
func (b *Browser) NavigateToBreadcrumb(ctx context.Context, index int) error {
	return b.run(ctx, b.BeginNavigateToBreadcrumb(index))
}

// Refresh reloads the current listing.
func (b *Browser) Refresh(ctx context.Context) error {
	return b.run(ctx, b.BeginRefresh())
}

func (b *Browser) run(ctx context.Context, seq uint64) error {
	entries, err := b.Fetch(ctx)
	b.Complete(seq, entries, err)
	return err
}

// Search sets the client-side name filter. It never requests the server.
func (b *Browser) Search(query string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.query = query
}

// Entries returns the loaded listing unfiltered, in server order.
func (b *Browser) Entries() []models.DirEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.DirEntry(nil), b.entries...)
}

// Visible returns the loaded entries matching the search filter,
// directories first, then by name.
func (b *Browser) Visible() []models.DirEntry {
	b.mu.Lock()
	entries := append([]models.DirEntry(nil), b.entries...)
	query := b.query
	b.mu.Unlock()

	return SortEntries(FilterEntries(entries, query))
}

// FilterEntries keeps the entries whose name contains query, ignoring case.
func FilterEntries(entries []models.DirEntry, query string) []models.DirEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	out := make([]models.DirEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
		}
	}
	return out
}

// SortEntries orders directories before files, then by name, then by path.
func SortEntries(entries []models.DirEntry) []models.DirEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].IsDir(), entries[j].IsDir()
		if di != dj {
			return di
		}
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Path < entries[j].Path
	})
	return entries
}

// Breadcrumbs returns display labels for each history entry: "root"
// followed by the last segment of every deeper path.
func (b *Browser) Breadcrumbs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.history))
	for i, p := range b.history {
		if p == "" {
			out[i] = "root"
			continue
		}
		out[i] = p[strings.LastIndex(p, "/")+1:]
	}
	return out
}
