package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ppiankov/scanfix/internal/content"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/workflow"
)

type repoLoadedMsg struct {
	repo *models.Repository
	err  error
}

type scanLoadedMsg struct {
	scan *models.ScanRecord
	err  error
}

type listingMsg struct {
	seq     uint64
	entries []models.DirEntry
	err     error
}

type fileLoadedMsg struct {
	path string
	line int
	raw  []byte
	err  error
}

type scanUpdatedMsg struct {
	scan models.ScanRecord
}

type resultsMsg struct {
	scan    models.ScanRecord
	vulns   []models.Vulnerability
	details *models.ScanDetails
	err     error
}

// Workflow messages carry the flow they belong to; a cancelled flow's
// results are dropped.
type fixRequestedMsg struct {
	flow  int
	state workflow.State
	err   error
}

type fixSourceMsg struct {
	flow int
	path string
	text string
	err  error
}

type credentialSavedMsg struct {
	flow int
	err  error
}

type fixSavedMsg struct {
	flow int
	err  error
}

type prOpenMsg struct {
	flow int
	err  error
}

type prCreatedMsg struct {
	flow int
	pr   *models.PullRequest
	err  error
}

type clearCopyMsg struct {
	seq int
}

// waitForPoll blocks on the poller channel and delivers its next message.
func waitForPoll(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func clearCopyAfter(d time.Duration, seq int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearCopyMsg{seq: seq}
	})
}

func (m Model) loadRepository() tea.Cmd {
	backend, ctx, id := m.backend, m.ctx, m.opts.RepositoryID
	return func() tea.Msg {
		repo, err := backend.GetRepository(ctx, id)
		return repoLoadedMsg{repo: repo, err: err}
	}
}

func (m Model) loadScan(id string) tea.Cmd {
	backend, ctx := m.backend, m.ctx
	return func() tea.Msg {
		scan, err := backend.GetScan(ctx, id)
		return scanLoadedMsg{scan: scan, err: err}
	}
}

func (m Model) loadListing(seq uint64) tea.Cmd {
	backend, ctx := m.backend, m.ctx
	repoID, path := m.browser.RepositoryID(), m.browser.CurrentPath()
	return func() tea.Msg {
		entries, err := backend.ListContents(ctx, repoID, path)
		return listingMsg{seq: seq, entries: entries, err: err}
	}
}

func (m Model) loadFile(path string, line int) tea.Cmd {
	backend, ctx, repoID := m.backend, m.ctx, m.opts.RepositoryID
	return func() tea.Msg {
		raw, err := backend.GetFile(ctx, repoID, path)
		return fileLoadedMsg{path: path, line: line, raw: raw, err: err}
	}
}

func (m Model) loadResults(scan models.ScanRecord) tea.Cmd {
	backend, ctx := m.backend, m.ctx
	return func() tea.Msg {
		return fetchResults(ctx, backend, scan)
	}
}

func fetchResults(ctx context.Context, backend Backend, scan models.ScanRecord) resultsMsg {
	vulns, err := backend.ListVulnerabilities(ctx, scan.ID)
	if err != nil {
		return resultsMsg{scan: scan, err: err}
	}
	details, err := backend.GetScanDetails(ctx, scan.ID)
	if err != nil {
		return resultsMsg{scan: scan, err: err}
	}
	return resultsMsg{scan: scan, vulns: vulns, details: details}
}

func (m Model) requestFix(v models.Vulnerability) tea.Cmd {
	coord, ctx, flow := m.coord, m.ctx, m.flow
	return func() tea.Msg {
		state, err := coord.RequestFix(ctx, v)
		return fixRequestedMsg{flow: flow, state: state, err: err}
	}
}

func (m Model) loadFixSource(path string) tea.Cmd {
	backend, ctx, repoID, flow := m.backend, m.ctx, m.opts.RepositoryID, m.flow
	return func() tea.Msg {
		raw, err := backend.GetFile(ctx, repoID, path)
		if err != nil {
			return fixSourceMsg{flow: flow, path: path, err: err}
		}
		return fixSourceMsg{flow: flow, path: path, text: content.Text(raw)}
	}
}

func (m Model) submitCredential(token string) tea.Cmd {
	coord, ctx, flow := m.coord, m.ctx, m.flow
	return func() tea.Msg {
		return credentialSavedMsg{flow: flow, err: coord.SubmitCredential(ctx, token)}
	}
}

func (m Model) saveFix(text string) tea.Cmd {
	coord, ctx, flow := m.coord, m.ctx, m.flow
	return func() tea.Msg {
		_, err := coord.SaveFix(ctx, text)
		return fixSavedMsg{flow: flow, err: err}
	}
}

func (m Model) openPullRequest() tea.Cmd {
	coord, ctx, flow := m.coord, m.ctx, m.flow
	return func() tea.Msg {
		return prOpenMsg{flow: flow, err: coord.OpenPullRequest(ctx)}
	}
}

func (m Model) createPullRequest(title string) tea.Cmd {
	coord, ctx, flow := m.coord, m.ctx, m.flow
	return func() tea.Msg {
		pr, err := coord.CreatePullRequest(ctx, title, "")
		return prCreatedMsg{flow: flow, pr: pr, err: err}
	}
}
