package tui

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ppiankov/scanfix/internal/content"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/storage"
	"github.com/ppiankov/scanfix/internal/vulnindex"
	"github.com/ppiankov/scanfix/internal/workflow"
)

type fakeBackend struct {
	mu       sync.Mutex
	repo     models.Repository
	dirs     map[string][]models.DirEntry
	files    map[string][]byte
	scan     models.ScanRecord
	vulns    []models.Vulnerability
	details  models.ScanDetails
	token    models.TokenStatus
	fixes    []models.FixInput
	prs      []models.PullRequestInput
	listings []string
}

func (f *fakeBackend) GetRepository(ctx context.Context, id string) (*models.Repository, error) {
	r := f.repo
	return &r, nil
}

func (f *fakeBackend) ListContents(ctx context.Context, repoID, path string) ([]models.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings = append(f.listings, path)
	entries, ok := f.dirs[path]
	if !ok {
		return nil, fmt.Errorf("no such directory %q", path)
	}
	return entries, nil
}

func (f *fakeBackend) GetFile(ctx context.Context, repoID, path string) ([]byte, error) {
	raw, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file %q", path)
	}
	return raw, nil
}

func (f *fakeBackend) GetScan(ctx context.Context, id string) (*models.ScanRecord, error) {
	s := f.scan
	return &s, nil
}

func (f *fakeBackend) ListVulnerabilities(ctx context.Context, scanID string) ([]models.Vulnerability, error) {
	return f.vulns, nil
}

func (f *fakeBackend) GetScanDetails(ctx context.Context, scanID string) (*models.ScanDetails, error) {
	d := f.details
	return &d, nil
}

func (f *fakeBackend) TokenStatus(ctx context.Context) (*models.TokenStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.token
	return &t, nil
}

func (f *fakeBackend) SaveToken(ctx context.Context, token string) (*models.TokenStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = models.TokenStatus{HasToken: true, Valid: true}
	t := f.token
	return &t, nil
}

func (f *fakeBackend) SaveFix(ctx context.Context, in models.FixInput) (*models.FixRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixes = append(f.fixes, in)
	return &models.FixRecord{ID: "fix-1", VulnerabilityID: in.VulnerabilityID, FilePath: in.FilePath}, nil
}

func (f *fakeBackend) CreatePullRequest(ctx context.Context, in models.PullRequestInput) (*models.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs = append(f.prs, in)
	return &models.PullRequest{URL: "https://github.com/acme/api/pull/9", Number: 9}, nil
}

func line(n int) *int { return &n }

func testBackend() *fakeBackend {
	source := "import os\nquery = input()\ncursor.execute(query)\nprint('done')\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(source))
	return &fakeBackend{
		repo: models.Repository{ID: "r1", FullName: "acme/api", DefaultBranch: "main"},
		dirs: map[string][]models.DirEntry{
			"": {
				{Name: "main.py", Path: "main.py", Type: models.EntryFile},
				{Name: "src", Path: "src", Type: models.EntryDir},
				{Name: "README.md", Path: "README.md", Type: models.EntryFile},
			},
			"src": {
				{Name: "app.py", Path: "src/app.py", Type: models.EntryFile},
			},
		},
		files: map[string][]byte{
			"src/app.py": []byte(fmt.Sprintf(`{"content":%q,"encoding":"base64"}`, encoded)),
		},
		scan: models.ScanRecord{ID: "s1", Status: models.ScanCompleted},
		vulns: []models.Vulnerability{
			{ID: "v1", FilePath: "src/app.py", Severity: models.SeverityCritical, LineNumber: line(3), Title: "SQL injection"},
			{ID: "v2", FilePath: "src/app.py", Severity: models.SeverityLow, LineNumber: line(1), Title: "Unused import"},
			{ID: "v3", FilePath: "main.py", Severity: models.SeverityMedium, Title: "Debug enabled"},
		},
		details: models.ScanDetails{Files: []models.FileScanResult{
			{FilePath: "src/app.py", Status: models.FileVulnerable, VulnerabilityCount: 2},
			{FilePath: "main.py", Status: models.FileVulnerable, VulnerabilityCount: 1},
			{FilePath: "README.md", Status: models.FileScanned},
		}},
	}
}

func testModel(t *testing.T, fb *fakeBackend) Model {
	t.Helper()
	m := New(fb, Options{
		RepositoryID:  "r1",
		PollInterval:  10 * time.Millisecond,
		PROpenDelay:   time.Millisecond,
		CopyIndicator: time.Millisecond,
		Clipboard:     content.NewClipboard(&bytes.Buffer{}, nil),
	})
	t.Cleanup(m.shutdown)
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", next)
	}
	return nm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEscape}
	keyBack  = tea.KeyMsg{Type: tea.KeyBackspace}
	keySave  = tea.KeyMsg{Type: tea.KeyCtrlS}
)

// loaded returns a model with the root listing and completed scan results applied.
func loaded(t *testing.T, fb *fakeBackend) Model {
	t.Helper()
	m := testModel(t, fb)

	seq := m.browser.BeginRefresh()
	m, _ = update(t, m, m.loadListing(seq)())

	m, cmd := update(t, m, repoLoadedMsg{repo: &models.Repository{ID: "r1", FullName: "acme/api", LatestScan: &fb.scan}})
	if cmd == nil {
		t.Fatal("expected completed scan to load results")
	}
	m, _ = update(t, m, cmd())
	if !m.loaded {
		t.Fatal("expected results to be loaded")
	}
	return m
}

func selectEntry(t *testing.T, m Model, name string) Model {
	t.Helper()
	for i, e := range m.entries {
		if e.Name == name {
			m.table.SetCursor(i)
			return m
		}
	}
	t.Fatalf("entry %q not listed", name)
	return m
}

// openAppFile navigates into src and opens app.py.
func openAppFile(t *testing.T, m Model) Model {
	t.Helper()
	m = selectEntry(t, m, "src")
	m, cmd := update(t, m, keyEnter)
	m, _ = update(t, m, cmd())
	m = selectEntry(t, m, "app.py")
	m, cmd = update(t, m, keyEnter)
	if cmd == nil {
		t.Fatal("expected file load command")
	}
	m, _ = update(t, m, cmd())
	if m.screen != screenViewer {
		t.Fatalf("expected viewer, got screen %d", m.screen)
	}
	return m
}

// --- Filter tests ---

func TestApplyFiltersNoFilter(t *testing.T) {
	vulns := testBackend().vulns
	result := applyFilters(vulns, filterState{})
	if len(result) != len(vulns) {
		t.Errorf("expected %d vulnerabilities, got %d", len(vulns), len(result))
	}
}

func TestApplyFiltersSeverity(t *testing.T) {
	result := applyFilters(testBackend().vulns, filterState{Severity: models.SeverityLow})
	if len(result) != 1 || result[0].ID != "v2" {
		t.Errorf("expected only v2, got %+v", result)
	}
}

func TestApplyFiltersSearchText(t *testing.T) {
	result := applyFilters(testBackend().vulns, filterState{SearchText: "MAIN"})
	if len(result) != 1 || result[0].ID != "v3" {
		t.Errorf("expected only v3, got %+v", result)
	}
}

func TestSortVulns(t *testing.T) {
	vulns := testBackend().vulns

	sortVulns(vulns, sortBySeverity)
	if vulns[0].Severity != models.SeverityCritical || vulns[2].Severity != models.SeverityLow {
		t.Errorf("unexpected severity order: %s, %s, %s", vulns[0].Severity, vulns[1].Severity, vulns[2].Severity)
	}

	sortVulns(vulns, sortByFile)
	if vulns[0].FilePath != "main.py" || vulns[1].ID != "v2" || vulns[2].ID != "v1" {
		t.Errorf("unexpected file order: %s, %s, %s", vulns[0].ID, vulns[1].ID, vulns[2].ID)
	}

	sortVulns(vulns, sortByTitle)
	if vulns[0].Title != "Debug enabled" {
		t.Errorf("expected Debug enabled first, got %s", vulns[0].Title)
	}
}

func TestNextSeverityCycles(t *testing.T) {
	var s models.Severity
	var seen []models.Severity
	for i := 0; i < 5; i++ {
		s = nextSeverity(s)
		seen = append(seen, s)
	}
	want := []models.Severity{"critical", "high", "medium", "low", ""}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("step %d: expected %q, got %q", i, want[i], seen[i])
		}
	}
}

func TestSortFieldName(t *testing.T) {
	if sortFieldName(sortBySeverity) != "severity" || sortFieldName(sortByFile) != "file" || sortFieldName(sortByTitle) != "title" {
		t.Error("unexpected sort field names")
	}
	if sortFieldName(sortField(99)) != "unknown" {
		t.Error("expected unknown for out-of-range field")
	}
}

// --- Table tests ---

func TestBuildEntryRowsBadges(t *testing.T) {
	fb := testBackend()
	idx := vulnindex.Build(fb.vulns)
	status := fb.details.StatusByPath()

	rows := buildEntryRows(fb.dirs[""], idx, status)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	byName := map[string][]string{}
	for _, r := range rows {
		byName[r[1]] = r
	}
	if r := byName["src/"]; r[0] != "▸" || r[2] != "CRITICAL" || r[3] != "2" {
		t.Errorf("unexpected directory row: %v", r)
	}
	if r := byName["main.py"]; r[2] != "MEDIUM" || r[3] != "1" {
		t.Errorf("unexpected file row: %v", r)
	}
	if r := byName["README.md"]; r[2] != "clean" || r[3] != "" {
		t.Errorf("expected clean badge, got %v", r)
	}
}

func TestBuildVulnRows(t *testing.T) {
	rows := buildVulnRows([]models.Vulnerability{
		{Severity: models.SeverityHigh, FilePath: "a.go", LineNumber: line(7), Title: "x"},
		{Severity: models.SeverityLow, Title: "repo-wide"},
	})
	if rows[0][0] != "HIGH" || rows[0][2] != "7" {
		t.Errorf("unexpected row: %v", rows[0])
	}
	if rows[1][1] != "-" || rows[1][2] != "" {
		t.Errorf("expected placeholder file and empty line, got %v", rows[1])
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected short, got %s", got)
	}
	if got := truncate("a very long resource name", 10); got != "a very ..." {
		t.Errorf("expected 'a very ...', got %q", got)
	}
	if got := truncate("abcdef", 2); got != "ab" {
		t.Errorf("expected ab, got %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

// --- Scan tests ---

func TestCompletedScanLoadsAndCaches(t *testing.T) {
	fb := testBackend()
	store := storage.NewLocal(t.TempDir())
	m := New(fb, Options{RepositoryID: "r1", Store: store})
	t.Cleanup(m.shutdown)

	m, cmd := update(t, m, repoLoadedMsg{repo: &models.Repository{ID: "r1", LatestScan: &fb.scan}})
	if cmd == nil {
		t.Fatal("expected results command")
	}
	m, _ = update(t, m, cmd())

	if m.index.Total() != 3 {
		t.Errorf("expected 3 indexed vulnerabilities, got %d", m.index.Total())
	}
	if m.fileStatus["README.md"] != models.FileScanned {
		t.Errorf("expected README.md scanned, got %q", m.fileStatus["README.md"])
	}

	snap, err := store.LoadSnapshot("s1")
	if err != nil {
		t.Fatalf("expected cached snapshot: %v", err)
	}
	if len(snap.Vulnerabilities) != 3 || len(snap.Files) != 3 {
		t.Errorf("unexpected snapshot: %d vulns, %d files", len(snap.Vulnerabilities), len(snap.Files))
	}
}

func TestActiveScanPollsUntilResults(t *testing.T) {
	fb := testBackend()
	m := testModel(t, fb)

	running := models.ScanRecord{ID: "s1", Status: models.ScanRunning}
	m, cmd := update(t, m, repoLoadedMsg{repo: &models.Repository{ID: "r1", LatestScan: &running}})
	if cmd == nil {
		t.Fatal("expected polling commands")
	}
	if m.poller.Active() != "s1" {
		t.Fatalf("expected poller on s1, got %q", m.poller.Active())
	}

	receive := func() tea.Msg {
		select {
		case msg := <-m.pollCh:
			return msg
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for poll message")
			return nil
		}
	}

	msg := receive()
	upd, ok := msg.(scanUpdatedMsg)
	if !ok || upd.scan.Status != models.ScanCompleted {
		t.Fatalf("expected completed update, got %#v", msg)
	}
	m, _ = update(t, m, upd)
	if m.scan.Status != models.ScanCompleted {
		t.Errorf("expected completed scan, got %s", m.scan.Status)
	}

	m, _ = update(t, m, receive())
	if !m.loaded || m.index.Total() != 3 {
		t.Errorf("expected results after completion, loaded=%v total=%d", m.loaded, m.index.Total())
	}
}

func TestUpdatesAfterTerminalIgnored(t *testing.T) {
	m := testModel(t, testBackend())
	failed := models.ScanRecord{ID: "s1", Status: models.ScanFailed, ErrorMessage: "boom"}
	m, _ = update(t, m, scanLoadedMsg{scan: &failed})

	m, cmd := update(t, m, scanUpdatedMsg{scan: models.ScanRecord{ID: "s1", Status: models.ScanRunning}})
	if cmd != nil {
		t.Error("expected no command after terminal status")
	}
	if m.scan.Status != models.ScanFailed {
		t.Errorf("expected status to stay failed, got %s", m.scan.Status)
	}
	if !strings.Contains(m.View(), "boom") {
		t.Error("expected failure message in header")
	}
}

// --- Browser tests ---

func TestNavigateIntoAndBreadcrumb(t *testing.T) {
	fb := testBackend()
	m := loaded(t, fb)

	if m.entries[0].Name != "src" {
		t.Fatalf("expected directories first, got %s", m.entries[0].Name)
	}
	m = selectEntry(t, m, "src")
	m, cmd := update(t, m, keyEnter)
	m, _ = update(t, m, cmd())

	if m.browser.CurrentPath() != "src" {
		t.Errorf("expected src, got %q", m.browser.CurrentPath())
	}
	if len(m.entries) != 1 || m.entries[0].Name != "app.py" {
		t.Errorf("unexpected listing: %+v", m.entries)
	}
	if !strings.Contains(m.View(), "0:root / 1:src") {
		t.Errorf("expected breadcrumbs in view:\n%s", m.View())
	}

	m, cmd = update(t, m, runes("0"))
	m, _ = update(t, m, cmd())
	if m.browser.CurrentPath() != "" || len(m.entries) != 3 {
		t.Errorf("expected root listing, path=%q entries=%d", m.browser.CurrentPath(), len(m.entries))
	}
}

func TestBackspaceGoesUp(t *testing.T) {
	m := loaded(t, testBackend())
	m = selectEntry(t, m, "src")
	m, cmd := update(t, m, keyEnter)
	m, _ = update(t, m, cmd())

	m, cmd = update(t, m, keyBack)
	m, _ = update(t, m, cmd())
	if m.browser.CurrentPath() != "" {
		t.Errorf("expected root after backspace, got %q", m.browser.CurrentPath())
	}
}

func TestStaleListingDiscarded(t *testing.T) {
	fb := testBackend()
	m := loaded(t, fb)

	old := m.browser.BeginNavigateInto("src")
	m, _ = update(t, m, listingMsg{seq: old, entries: fb.dirs["src"]})
	latest := m.browser.BeginNavigateToBreadcrumb(0)

	m, _ = update(t, m, listingMsg{seq: old, entries: []models.DirEntry{{Name: "stale", Path: "stale"}}})
	for _, e := range m.entries {
		if e.Name == "stale" {
			t.Fatal("stale listing should be discarded")
		}
	}

	m, _ = update(t, m, listingMsg{seq: latest, entries: fb.dirs[""]})
	if len(m.entries) != 3 {
		t.Errorf("expected root listing, got %d entries", len(m.entries))
	}
}

func TestListingErrorKeepsEntries(t *testing.T) {
	m := loaded(t, testBackend())
	seq := m.browser.BeginRefresh()
	m, _ = update(t, m, listingMsg{seq: seq, err: fmt.Errorf("server down")})

	if len(m.entries) != 3 {
		t.Errorf("expected previous entries kept, got %d", len(m.entries))
	}
	if !strings.Contains(m.View(), "server down") {
		t.Error("expected error in view")
	}
}

func TestSearchFiltersEntries(t *testing.T) {
	m := loaded(t, testBackend())

	m, _ = update(t, m, runes("/"))
	if m.mode != modeSearch {
		t.Fatal("expected search mode")
	}
	for _, r := range "py" {
		m, _ = update(t, m, runes(string(r)))
	}
	if len(m.entries) != 1 || m.entries[0].Name != "main.py" {
		t.Errorf("expected only main.py, got %+v", m.entries)
	}

	m, _ = update(t, m, keyEnter)
	if m.mode != modeNormal || len(m.entries) != 1 {
		t.Error("expected filter to stay applied after enter")
	}

	m, _ = update(t, m, keyEsc)
	if len(m.entries) != 3 {
		t.Errorf("expected esc to clear search, got %d entries", len(m.entries))
	}
}

func TestSearchClearedOnNavigate(t *testing.T) {
	m := loaded(t, testBackend())
	m.browser.Search("src")
	m.rebuildEntries()

	m = selectEntry(t, m, "src")
	m, cmd := update(t, m, keyEnter)
	m, _ = update(t, m, cmd())
	if m.browser.Query() != "" {
		t.Errorf("expected query cleared, got %q", m.browser.Query())
	}
}

// --- Viewer tests ---

func TestOpenFileAnnotatesAndJumps(t *testing.T) {
	m := openAppFile(t, loaded(t, testBackend()))

	if m.cursorLine != 1 {
		t.Errorf("expected cursor on first finding, got %d", m.cursorLine)
	}
	if m.doc.Lines[2].Highest != models.SeverityCritical {
		t.Errorf("expected line 3 critical, got %q", m.doc.Lines[2].Highest)
	}
	if m.coord.State() != workflow.ViewingFile {
		t.Errorf("expected viewing_file, got %s", m.coord.State())
	}

	m, _ = update(t, m, runes("n"))
	if m.cursorLine != 3 {
		t.Errorf("expected next finding on line 3, got %d", m.cursorLine)
	}
	m, _ = update(t, m, runes("n"))
	if m.cursorLine != 1 {
		t.Errorf("expected wrap to line 1, got %d", m.cursorLine)
	}
	m, _ = update(t, m, runes("p"))
	if m.cursorLine != 3 {
		t.Errorf("expected prev wrap to line 3, got %d", m.cursorLine)
	}

	if !strings.Contains(m.View(), "cursor.execute(query)") {
		t.Error("expected decoded source in view")
	}

	m, _ = update(t, m, keyEsc)
	if m.screen != screenBrowser || m.coord.State() != workflow.Idle {
		t.Errorf("expected browser and idle, got screen %d state %s", m.screen, m.coord.State())
	}
}

func TestOpenFileErrorStaysInBrowser(t *testing.T) {
	m := loaded(t, testBackend())
	m = selectEntry(t, m, "main.py")
	m, cmd := update(t, m, keyEnter)
	m, _ = update(t, m, cmd())

	if m.screen != screenBrowser {
		t.Error("expected to stay in browser")
	}
	if !strings.Contains(m.statusMsg, "main.py") {
		t.Errorf("expected error status, got %q", m.statusMsg)
	}
}

func TestCopyShowsIndicator(t *testing.T) {
	m := openAppFile(t, loaded(t, testBackend()))

	m, cmd := update(t, m, runes("c"))
	if !m.copied || cmd == nil {
		t.Fatal("expected copy indicator and clear command")
	}
	if !strings.Contains(m.View(), "Copied!") {
		t.Error("expected Copied! in footer")
	}

	m, _ = update(t, m, clearCopyMsg{seq: m.copySeq - 1})
	if !m.copied {
		t.Error("stale clear should not hide the indicator")
	}
	m, _ = update(t, m, clearCopyMsg{seq: m.copySeq})
	if m.copied {
		t.Error("expected indicator cleared")
	}
}

// --- Workflow tests ---

func TestFixFlowRequestsCredential(t *testing.T) {
	fb := testBackend()
	var hooked []string
	m := loaded(t, fb)
	m.coord = workflow.NewCoordinator(fb, "r1", "main",
		workflow.WithPROpenDelay(time.Millisecond),
		workflow.WithOnPullRequest(func(ctx context.Context, v models.Vulnerability, pr models.PullRequest) {
			hooked = append(hooked, v.ID+" "+pr.URL)
		}),
	)
	m = openAppFile(t, m)
	m, _ = update(t, m, runes("n"))

	m, cmd := update(t, m, runes("f"))
	m, _ = update(t, m, cmd())
	if m.modal != modalCredential {
		t.Fatalf("expected credential dialog, got modal %d", m.modal)
	}
	if m.screen == screenViewer {
		t.Error("expected file view closed for credential entry")
	}

	m, _ = update(t, m, keyEnter)
	if m.modalErr == "" {
		t.Error("expected empty token to be rejected")
	}
	for _, r := range "ghp_secret" {
		m, _ = update(t, m, runes(string(r)))
	}
	m, cmd = update(t, m, keyEnter)
	m, _ = update(t, m, cmd())
	if m.modal != modalEditor {
		t.Fatalf("expected editor after credential, got modal %d", m.modal)
	}
	if !strings.Contains(m.editor.Value(), "cursor.execute(query)") {
		t.Errorf("expected editor prefilled with file content, got %q", m.editor.Value())
	}

	m, cmd = update(t, m, keySave)
	m, cmd = update(t, m, cmd())
	if m.modal != modalNone || m.statusMsg != "Fix saved" {
		t.Fatalf("expected editor closed after save, modal %d status %q", m.modal, m.statusMsg)
	}
	m, _ = update(t, m, cmd())
	if m.modal != modalPullRequest {
		t.Fatalf("expected pull request dialog, got modal %d", m.modal)
	}
	if m.prTitle.Value() != "Fix: SQL injection" {
		t.Errorf("expected default title, got %q", m.prTitle.Value())
	}

	m, cmd = update(t, m, keyEnter)
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.statusMsg, "pull/9") {
		t.Errorf("expected PR URL in status, got %q", m.statusMsg)
	}
	if m.coord.State() != workflow.Idle {
		t.Errorf("expected idle after PR, got %s", m.coord.State())
	}
	if len(fb.fixes) != 1 || fb.fixes[0].VulnerabilityID != "v1" {
		t.Errorf("unexpected fixes: %+v", fb.fixes)
	}
	if len(fb.prs) != 1 || fb.prs[0].FixIDs[0] != "fix-1" || fb.prs[0].BaseBranch != "main" {
		t.Errorf("unexpected pull requests: %+v", fb.prs)
	}
	if len(hooked) != 1 || hooked[0] != "v1 https://github.com/acme/api/pull/9" {
		t.Errorf("unexpected hook calls: %v", hooked)
	}
}

func TestFixFlowWithCredentialOpensEditor(t *testing.T) {
	fb := testBackend()
	fb.token = models.TokenStatus{HasToken: true, Valid: true}
	m := openAppFile(t, loaded(t, fb))

	m, cmd := update(t, m, runes("f"))
	m, _ = update(t, m, cmd())
	if m.modal != modalEditor {
		t.Fatalf("expected editor, got modal %d", m.modal)
	}
	if m.screen != screenViewer {
		t.Error("expected file view to stay open")
	}
}

func TestFixFromVulnerabilityList(t *testing.T) {
	fb := testBackend()
	fb.token = models.TokenStatus{HasToken: true, Valid: true}
	m := loaded(t, fb)

	m, _ = update(t, m, runes("v"))
	if m.screen != screenVulns || len(m.filteredVulns) != 3 {
		t.Fatalf("expected vulnerability list with 3 rows, got screen %d rows %d", m.screen, len(m.filteredVulns))
	}
	if m.filteredVulns[0].ID != "v1" {
		t.Errorf("expected critical first, got %s", m.filteredVulns[0].ID)
	}

	m, cmd := update(t, m, runes("f"))
	m, cmd = update(t, m, cmd())
	if m.modal != modalEditor || cmd == nil {
		t.Fatalf("expected editor waiting on source, modal %d", m.modal)
	}
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.editor.Value(), "import os") {
		t.Errorf("expected fetched source in editor, got %q", m.editor.Value())
	}
}

func TestVulnerabilityListSeverityFilter(t *testing.T) {
	m := loaded(t, testBackend())
	m, _ = update(t, m, runes("v"))

	m, _ = update(t, m, runes("t"))
	if m.filters.Severity != models.SeverityCritical || len(m.filteredVulns) != 1 {
		t.Errorf("expected critical filter, got %q with %d rows", m.filters.Severity, len(m.filteredVulns))
	}

	m, cmd := update(t, m, keyEnter)
	m, _ = update(t, m, cmd())
	if m.screen != screenViewer || m.cursorLine != 3 {
		t.Errorf("expected viewer at line 3, got screen %d line %d", m.screen, m.cursorLine)
	}
	m, _ = update(t, m, keyEsc)
	if m.screen != screenVulns {
		t.Errorf("expected return to list, got screen %d", m.screen)
	}
}

func TestCancelDropsInFlightResult(t *testing.T) {
	fb := testBackend()
	fb.token = models.TokenStatus{HasToken: true, Valid: true}
	m := openAppFile(t, loaded(t, fb))

	m, cmd := update(t, m, runes("f"))
	m, _ = update(t, m, cmd())
	m, pending := update(t, m, keySave)

	m, _ = update(t, m, keyEsc)
	if m.modal != modalNone {
		t.Fatal("expected dialog closed")
	}
	if m.coord.State() != workflow.ViewingFile {
		t.Errorf("expected viewing_file after cancel, got %s", m.coord.State())
	}

	m, _ = update(t, m, pending())
	if m.statusMsg == "Fix saved" {
		t.Error("result of cancelled flow should be dropped")
	}
	if m.coord.State() != workflow.ViewingFile {
		t.Errorf("expected state unchanged, got %s", m.coord.State())
	}
}

// --- Lifecycle tests ---

func TestQuitKey(t *testing.T) {
	m := loaded(t, testBackend())
	_, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg")
	}
}

func TestWindowResize(t *testing.T) {
	m := testModel(t, testBackend())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.height != 40 {
		t.Errorf("expected 120x40, got %dx%d", m.width, m.height)
	}
	if m.viewer.Width != 120 {
		t.Errorf("expected viewer width 120, got %d", m.viewer.Width)
	}
}

func TestViewHeader(t *testing.T) {
	m := loaded(t, testBackend())
	m.repo = &models.Repository{FullName: "acme/api", DefaultBranch: "main"}
	view := m.View()
	for _, want := range []string{"acme/api", "(main)", "Findings: 3", "completed"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestTerminalUpdateWaitsForFullBuffer(t *testing.T) {
	ch := make(chan tea.Msg, 2)
	ctx := context.Background()
	running := models.ScanRecord{ID: "s1", Status: models.ScanRunning}

	forwardScanUpdate(ctx, ch, running)
	forwardScanUpdate(ctx, ch, running)
	forwardScanUpdate(ctx, ch, running) // dropped, buffer full

	done := make(chan struct{})
	go func() {
		forwardScanUpdate(ctx, ch, models.ScanRecord{ID: "s1", Status: models.ScanFailed})
		close(done)
	}()

	<-ch
	<-ch
	select {
	case msg := <-ch:
		upd, ok := msg.(scanUpdatedMsg)
		if !ok || upd.scan.Status != models.ScanFailed {
			t.Fatalf("expected failed update, got %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("terminal update was dropped")
	}
	<-done
}

func TestTerminalUpdateGivesUpOnCancel(t *testing.T) {
	ch := make(chan tea.Msg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		forwardScanUpdate(ctx, ch, models.ScanRecord{ID: "s1", Status: models.ScanCompleted})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send should stop once the context is cancelled")
	}
}
