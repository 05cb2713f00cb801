package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ppiankov/scanfix/internal/browser"
	"github.com/ppiankov/scanfix/internal/content"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/poller"
	"github.com/ppiankov/scanfix/internal/storage"
	"github.com/ppiankov/scanfix/internal/vulnindex"
	"github.com/ppiankov/scanfix/internal/workflow"
)

// Backend is the subset of the API client the TUI drives.
type Backend interface {
	browser.Lister
	workflow.Backend
	GetRepository(ctx context.Context, id string) (*models.Repository, error)
	GetFile(ctx context.Context, repoID, path string) ([]byte, error)
	GetScan(ctx context.Context, id string) (*models.ScanRecord, error)
	ListVulnerabilities(ctx context.Context, scanID string) ([]models.Vulnerability, error)
	GetScanDetails(ctx context.Context, scanID string) (*models.ScanDetails, error)
}

// Options configures the TUI.
type Options struct {
	RepositoryID string

	// ScanID pins a scan; empty follows the repository's latest scan.
	ScanID string

	BaseBranch    string
	PollInterval  time.Duration
	PROpenDelay   time.Duration
	CopyIndicator time.Duration
	Clipboard     *content.Clipboard
	Credential    *workflow.CredentialFlag
	OnPullRequest func(ctx context.Context, vuln models.Vulnerability, pr models.PullRequest)

	// Store caches completed scan results when set.
	Store storage.Storage

	// LogFile receives debug logs while the alt screen is active.
	LogFile string
	Logf    func(format string, args ...interface{})
}

// screen is the main view being shown.
type screen int

const (
	screenBrowser screen = iota
	screenViewer
	screenVulns
)

// mode represents the current UI interaction mode.
type mode int

const (
	modeNormal mode = iota
	modeSearch
)

// modal is the workflow dialog drawn over the screen.
type modal int

const (
	modalNone modal = iota
	modalCredential
	modalEditor
	modalPullRequest
)

const (
	defaultTableHeight   = 15
	defaultCopyIndicator = 2 * time.Second
	pollBuffer           = 16
)

// Model is the top-level Bubble Tea model for the repository browser.
type Model struct {
	backend Backend
	opts    Options
	ctx     context.Context
	cancel  context.CancelFunc

	browser *browser.Browser
	coord   *workflow.Coordinator
	poller  *poller.Poller
	pollCh  chan tea.Msg

	// Data
	repo       *models.Repository
	scan       *models.ScanRecord
	index      *vulnindex.Index
	loaded     bool
	fileStatus map[string]models.FileStatus
	entries    []models.DirEntry
	vulns      []models.Vulnerability

	// UI state
	screen        screen
	returnTo      screen
	mode          mode
	modal         modal
	table         table.Model
	vulnTable     table.Model
	searchInput   textinput.Model
	filteredVulns []models.Vulnerability
	filters       filterState
	sortBy        sortField

	// File viewer
	viewer      viewport.Model
	doc         content.Document
	docText     string
	cursorLine  int
	pendingPath string

	// Workflow dialogs
	credInput textinput.Model
	editor    textarea.Model
	prTitle   textinput.Model
	flow      int
	busy      bool
	modalErr  string

	spinner   spinner.Model
	copied    bool
	copySeq   int
	width     int
	height    int
	statusMsg string
}

// New creates a TUI model for one repository.
func New(backend Backend, opts Options) Model {
	if opts.CopyIndicator <= 0 {
		opts.CopyIndicator = defaultCopyIndicator
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = poller.DefaultInterval
	}
	if opts.PROpenDelay <= 0 {
		opts.PROpenDelay = workflow.DefaultPROpenDelay
	}
	if opts.Credential == nil {
		opts.Credential = &workflow.CredentialFlag{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	pollCh := make(chan tea.Msg, pollBuffer)

	m := Model{
		backend:    backend,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		browser:    browser.New(backend, opts.RepositoryID),
		pollCh:     pollCh,
		index:      vulnindex.Build(nil),
		fileStatus: map[string]models.FileStatus{},
		sortBy:     sortBySeverity,
		width:      80,
		height:     24,
	}

	m.poller = poller.New(backend,
		poller.WithInterval(opts.PollInterval),
		poller.WithOnUpdate(func(scan models.ScanRecord) {
			forwardScanUpdate(ctx, pollCh, scan)
		}),
		poller.WithOnCompleted(func(ctx context.Context, scan models.ScanRecord) {
			msg := fetchResults(ctx, backend, scan)
			select {
			case pollCh <- msg:
			case <-ctx.Done():
			}
		}),
		poller.WithLogf(m.logf),
	)

	m.coord = workflow.NewCoordinator(backend, opts.RepositoryID, opts.BaseBranch,
		workflow.WithPROpenDelay(opts.PROpenDelay),
		workflow.WithCredentialFlag(opts.Credential),
		workflow.WithOnPullRequest(opts.OnPullRequest),
		workflow.WithLogf(m.logf),
	)

	m.table = newTable(entryColumns, nil, defaultTableHeight)
	m.vulnTable = newTable(vulnColumns, nil, defaultTableHeight)
	m.viewer = viewport.New(80, defaultTableHeight)

	ti := textinput.New()
	ti.Placeholder = "search..."
	ti.CharLimit = 64
	m.searchInput = ti

	ci := textinput.New()
	ci.Placeholder = "ghp_..."
	ci.EchoMode = textinput.EchoPassword
	ci.EchoCharacter = '•'
	ci.CharLimit = 255
	m.credInput = ci

	ed := textarea.New()
	ed.ShowLineNumbers = true
	ed.CharLimit = 0
	ed.MaxHeight = 0
	m.editor = ed

	pt := textinput.New()
	pt.Placeholder = "pull request title"
	pt.CharLimit = 200
	m.prTitle = pt

	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))
	return m
}

func (m Model) logf(format string, args ...interface{}) {
	if m.opts.Logf != nil {
		m.opts.Logf(format, args...)
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	seq := m.browser.BeginRefresh()
	cmds := []tea.Cmd{m.loadRepository(), m.loadListing(seq)}
	if m.opts.ScanID != "" {
		cmds = append(cmds, m.loadScan(m.opts.ScanID))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case repoLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Repository: %v", msg.err)
			return m, nil
		}
		m.repo = msg.repo
		if m.opts.ScanID == "" && msg.repo.LatestScan != nil {
			return m.followScan(*msg.repo.LatestScan)
		}
		return m, nil

	case scanLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Scan: %v", msg.err)
			return m, nil
		}
		return m.followScan(*msg.scan)

	case scanUpdatedMsg:
		return m.handleScanUpdate(msg.scan)

	case resultsMsg:
		return m.handleResults(msg)

	case listingMsg:
		if m.browser.Complete(msg.seq, msg.entries, msg.err) {
			if msg.err != nil {
				m.logf("list %q: %v", m.browser.CurrentPath(), msg.err)
			}
			m.rebuildEntries()
		}
		return m, nil

	case fileLoadedMsg:
		return m.handleFileLoaded(msg)

	case fixRequestedMsg, fixSourceMsg, credentialSavedMsg, fixSavedMsg, prOpenMsg, prCreatedMsg:
		return m.handleWorkflowMsg(msg)

	case clearCopyMsg:
		if msg.seq == m.copySeq {
			m.copied = false
		}
		return m, nil

	case spinner.TickMsg:
		if m.scan == nil || !m.scan.Status.IsActive() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.modal == modalCredential:
		m.credInput, cmd = m.credInput.Update(msg)
	case m.modal == modalEditor:
		m.editor, cmd = m.editor.Update(msg)
	case m.modal == modalPullRequest:
		m.prTitle, cmd = m.prTitle.Update(msg)
	case m.mode == modeSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
	case m.screen == screenViewer:
		m.viewer, cmd = m.viewer.Update(msg)
	case m.screen == screenVulns:
		m.vulnTable, cmd = m.vulnTable.Update(msg)
	default:
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	bodyH := height - headerHeight - detailHeight - 4
	if bodyH < 3 {
		bodyH = 3
	}
	m.table.SetWidth(width)
	m.table.SetHeight(bodyH)
	m.vulnTable.SetWidth(width)
	m.vulnTable.SetHeight(bodyH)
	m.viewer.Width = width
	m.viewer.Height = bodyH
	m.editor.SetWidth(width - 8)
	m.editor.SetHeight(height / 2)
	m.refreshViewer()
}

// followScan records scan and starts polling while it is active. A scan
// already completed loads its results once.
func (m Model) followScan(scan models.ScanRecord) (tea.Model, tea.Cmd) {
	if m.poller.Active() == scan.ID {
		return m, nil
	}
	if m.loaded && m.scan != nil && m.scan.ID == scan.ID {
		return m, nil
	}
	m.scan = &scan
	if m.poller.Start(m.ctx, scan.ID, scan.Status) {
		return m, tea.Batch(waitForPoll(m.pollCh), m.spinner.Tick)
	}
	if scan.Status == models.ScanCompleted {
		return m, m.loadResults(scan)
	}
	return m, nil
}

func (m Model) handleScanUpdate(scan models.ScanRecord) (tea.Model, tea.Cmd) {
	if m.scan != nil && m.scan.ID == scan.ID && m.scan.Status.IsTerminal() {
		return m, nil
	}
	m.scan = &scan
	if scan.Status == models.ScanFailed {
		m.statusMsg = "Scan failed"
		return m, nil
	}
	// A completed scan is followed by its results.
	return m, waitForPoll(m.pollCh)
}

func (m Model) handleResults(msg resultsMsg) (tea.Model, tea.Cmd) {
	if m.scan != nil && m.scan.ID != msg.scan.ID {
		return m, nil
	}
	scan := msg.scan
	m.scan = &scan
	if msg.err != nil {
		m.statusMsg = fmt.Sprintf("Results: %v", msg.err)
		return m, nil
	}

	m.vulns = msg.vulns
	m.index = vulnindex.Build(msg.vulns)
	m.fileStatus = msg.details.StatusByPath()
	m.loaded = true
	m.rebuildEntries()
	m.rebuildVulns()
	if m.screen == screenViewer {
		m.doc = content.Annotate(m.doc.Path, m.docText, m.index)
		m.refreshViewer()
	}

	if m.opts.Store != nil {
		snap := &models.ScanSnapshot{Scan: scan, Vulnerabilities: msg.vulns}
		if msg.details != nil {
			snap.Files = msg.details.Files
		}
		if err := m.opts.Store.SaveSnapshot(snap); err != nil {
			m.logf("cache scan %s: %v", scan.ID, err)
		}
	}
	return m, nil
}

func (m Model) handleFileLoaded(msg fileLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.path != m.pendingPath {
		return m, nil
	}
	m.pendingPath = ""
	if msg.err != nil {
		m.statusMsg = fmt.Sprintf("Open %s: %v", msg.path, msg.err)
		return m, nil
	}
	if err := m.coord.OpenFile(msg.path); err != nil {
		m.logf("open %s: %v", msg.path, err)
	}

	m.docText = content.Text(msg.raw)
	m.doc = content.Annotate(msg.path, m.docText, m.index)
	m.cursorLine = msg.line
	if m.cursorLine <= 0 {
		m.cursorLine = m.doc.NextVulnerable(0)
	}
	if m.cursorLine <= 0 {
		m.cursorLine = 1
	}
	m.screen = screenViewer
	m.mode = modeNormal
	m.refreshViewer()
	m.scrollToCursor()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.shutdown()
		return m, tea.Quit
	}
	if m.modal != modalNone {
		return m.handleModalKey(msg)
	}
	if m.mode == modeSearch {
		return m.handleSearchKey(msg)
	}
	switch m.screen {
	case screenViewer:
		return m.handleViewerKey(msg)
	case screenVulns:
		return m.handleVulnsKey(msg)
	default:
		return m.handleBrowserKey(msg)
	}
}

func (m Model) handleBrowserKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.shutdown()
		return m, tea.Quit
	case key.Matches(msg, keys.Search):
		m.mode = modeSearch
		m.searchInput.SetValue(m.browser.Query())
		m.searchInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, keys.Open):
		entry := m.selectedEntry()
		if entry == nil {
			return m, nil
		}
		if entry.IsDir() {
			return m, m.loadListing(m.browser.BeginNavigateInto(entry.Path))
		}
		return m.openFile(entry.Path, 0, screenBrowser)
	case key.Matches(msg, keys.Back):
		return m, m.loadListing(m.browser.BeginBack())
	case key.Matches(msg, keys.Refresh):
		cmds := []tea.Cmd{m.loadListing(m.browser.BeginRefresh())}
		if m.opts.ScanID == "" {
			cmds = append(cmds, m.loadRepository())
		}
		return m, tea.Batch(cmds...)
	case key.Matches(msg, keys.Breadcrumbs):
		index := int(msg.Runes[0] - '0')
		return m, m.loadListing(m.browser.BeginNavigateToBreadcrumb(index))
	case key.Matches(msg, keys.Vulns):
		m.screen = screenVulns
		m.rebuildVulns()
		return m, nil
	case key.Matches(msg, keys.Close):
		if m.browser.Query() != "" {
			m.browser.Search("")
			m.rebuildEntries()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeNormal
		m.searchInput.Blur()
		return m, nil
	case "esc":
		m.mode = modeNormal
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.applySearch("")
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applySearch(m.searchInput.Value())
	return m, cmd
}

func (m *Model) applySearch(query string) {
	if m.screen == screenVulns {
		m.filters.SearchText = query
		m.rebuildVulns()
		return
	}
	m.browser.Search(query)
	m.rebuildEntries()
}

func (m Model) handleVulnsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.shutdown()
		return m, tea.Quit
	case key.Matches(msg, keys.Close), key.Matches(msg, keys.Vulns):
		m.screen = screenBrowser
		return m, nil
	case key.Matches(msg, keys.Search):
		m.mode = modeSearch
		m.searchInput.SetValue(m.filters.SearchText)
		m.searchInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, keys.Sort):
		m.sortBy = (m.sortBy + 1) % sortField(sortFieldCount)
		m.rebuildVulns()
		m.statusMsg = fmt.Sprintf("Sort: %s", sortFieldName(m.sortBy))
		return m, nil
	case key.Matches(msg, keys.Severity):
		m.filters.Severity = nextSeverity(m.filters.Severity)
		m.rebuildVulns()
		if m.filters.Severity != "" {
			m.statusMsg = fmt.Sprintf("Severity: %s", m.filters.Severity)
		} else {
			m.statusMsg = ""
		}
		return m, nil
	case key.Matches(msg, keys.Open):
		v := m.selectedVuln()
		if v == nil || v.FilePath == "" {
			return m, nil
		}
		line, _ := v.Line()
		return m.openFile(v.FilePath, line, screenVulns)
	case key.Matches(msg, keys.Fix):
		v := m.selectedVuln()
		if v == nil {
			return m, nil
		}
		return m.startFix(*v)
	}

	var cmd tea.Cmd
	m.vulnTable, cmd = m.vulnTable.Update(msg)
	return m, cmd
}

func (m Model) handleViewerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit), key.Matches(msg, keys.Close):
		m.closeViewer()
		return m, nil
	case key.Matches(msg, keys.NextVuln):
		if n := m.doc.NextVulnerable(m.cursorLine); n > 0 {
			m.cursorLine = n
			m.refreshViewer()
			m.scrollToCursor()
		}
		return m, nil
	case key.Matches(msg, keys.PrevVuln):
		if n := m.doc.PrevVulnerable(m.cursorLine); n > 0 {
			m.cursorLine = n
			m.refreshViewer()
			m.scrollToCursor()
		}
		return m, nil
	case key.Matches(msg, keys.Copy):
		return m.copyDocument()
	case key.Matches(msg, keys.Fix):
		v := m.fixTarget()
		if v == nil {
			m.statusMsg = "No findings in this file"
			return m, nil
		}
		return m.startFix(*v)
	}

	var cmd tea.Cmd
	m.viewer, cmd = m.viewer.Update(msg)
	return m, cmd
}

func (m Model) openFile(path string, line int, from screen) (tea.Model, tea.Cmd) {
	m.pendingPath = path
	m.returnTo = from
	m.statusMsg = ""
	return m, m.loadFile(path, line)
}

func (m *Model) closeViewer() {
	if err := m.coord.CloseFile(); err != nil {
		m.logf("close file: %v", err)
	}
	m.screen = m.returnTo
	m.doc = content.Document{}
	m.docText = ""
	m.cursorLine = 0
}

// copyDocument copies the shown file and flags the indicator until the
// next clearCopyMsg. Clipboard failures are logged by the clipboard.
func (m Model) copyDocument() (tea.Model, tea.Cmd) {
	if m.opts.Clipboard == nil || !m.opts.Clipboard.Copy(m.doc.Plain()) {
		return m, nil
	}
	m.copySeq++
	m.copied = true
	return m, clearCopyAfter(m.opts.CopyIndicator, m.copySeq)
}

// fixTarget picks the vulnerability under the cursor, else the first
// finding of the file.
func (m *Model) fixTarget() *models.Vulnerability {
	if m.cursorLine > 0 && m.cursorLine <= len(m.doc.Lines) {
		if l := m.doc.Lines[m.cursorLine-1]; l.Vulnerable() {
			return &l.Vulns[0]
		}
	}
	if fs, ok := m.index.ForFile(m.doc.Path); ok && len(fs.Vulnerabilities) > 0 {
		return &fs.Vulnerabilities[0]
	}
	return nil
}

func (m *Model) rebuildEntries() {
	m.entries = m.browser.Visible()
	m.table.SetRows(buildEntryRows(m.entries, m.index, m.fileStatus))
	if m.table.Cursor() >= len(m.entries) {
		m.table.SetCursor(0)
	}
}

func (m *Model) rebuildVulns() {
	filtered := applyFilters(m.vulns, m.filters)
	sortVulns(filtered, m.sortBy)
	m.filteredVulns = filtered
	m.vulnTable.SetRows(buildVulnRows(filtered))
	if m.vulnTable.Cursor() >= len(filtered) {
		m.vulnTable.SetCursor(0)
	}
}

func (m *Model) selectedEntry() *models.DirEntry {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.entries) {
		return nil
	}
	return &m.entries[cursor]
}

func (m *Model) selectedVuln() *models.Vulnerability {
	cursor := m.vulnTable.Cursor()
	if cursor < 0 || cursor >= len(m.filteredVulns) {
		return nil
	}
	return &m.filteredVulns[cursor]
}

func (m *Model) refreshViewer() {
	if m.doc.Path == "" {
		return
	}
	m.viewer.SetContent(content.Render(m.doc, content.RenderOptions{
		Highlight: m.cursorLine,
		Color:     true,
	}))
}

func (m *Model) scrollToCursor() {
	offset := m.cursorLine - 1 - m.viewer.Height/2
	if offset < 0 {
		offset = 0
	}
	m.viewer.SetYOffset(offset)
}

// shutdown stops background polling. The root context is cancelled first
// so a poll blocked on delivery can exit.
func (m *Model) shutdown() {
	m.cancel()
	m.poller.Stop()
}

// forwardScanUpdate hands a poll result to the UI. Active updates are
// superseded by the next tick and are dropped when the UI lags; a terminal
// update is the last one for the scan and waits for room.
func forwardScanUpdate(ctx context.Context, ch chan<- tea.Msg, scan models.ScanRecord) {
	msg := scanUpdatedMsg{scan: scan}
	if !scan.Status.IsTerminal() {
		select {
		case ch <- msg:
		default:
		}
		return
	}
	select {
	case ch <- msg:
	case <-ctx.Done():
	}
}

// Run starts the Bubble Tea program for one repository.
func Run(backend Backend, opts Options) error {
	if opts.LogFile != "" {
		f, err := tea.LogToFile(opts.LogFile, "scanfix")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		if opts.Logf == nil {
			opts.Logf = log.Printf
		}
	}

	m := New(backend, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.shutdown()
	} else {
		m.shutdown()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
