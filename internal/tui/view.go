package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/vulnindex"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	var idx *vulnindex.Index
	if m.loaded {
		idx = m.index
	}
	b.WriteString(renderHeader(m.repo, m.scan, idx, m.spinner.View(), m.width))
	b.WriteString("\n")

	if m.modal != modalNone {
		b.WriteString(m.renderModal())
		b.WriteString("\n")
		b.WriteString(m.renderFooter())
		return b.String()
	}

	if m.mode == modeSearch {
		b.WriteString(styleSearchPrompt.Render("/ "))
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	}

	switch m.screen {
	case screenViewer:
		b.WriteString(styleBreadcrumb.Render(m.doc.Path))
		b.WriteString("\n")
		b.WriteString(m.viewer.View())
		b.WriteString("\n")
		b.WriteString(renderLineDetail(m.cursorVulns(), m.width))
	case screenVulns:
		b.WriteString(styleBreadcrumb.Render("vulnerabilities"))
		b.WriteString("\n")
		b.WriteString(m.vulnTable.View())
		b.WriteString("\n")
		b.WriteString(renderDetail(m.selectedVuln(), m.width))
	default:
		b.WriteString(m.renderBreadcrumbs())
		b.WriteString("\n")
		b.WriteString(m.table.View())
		b.WriteString("\n")
		b.WriteString(m.renderBrowserDetail())
	}
	b.WriteString("\n")

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) cursorVulns() []models.Vulnerability {
	if m.cursorLine <= 0 || m.cursorLine > len(m.doc.Lines) {
		return nil
	}
	return m.doc.Lines[m.cursorLine-1].Vulns
}

func (m *Model) renderBreadcrumbs() string {
	crumbs := m.browser.Breadcrumbs()
	parts := make([]string, len(crumbs))
	for i, c := range crumbs {
		parts[i] = fmt.Sprintf("%d:%s", i, c)
	}
	line := strings.Join(parts, " / ")
	if m.browser.Loading() {
		line += "  loading..."
	}
	return styleBreadcrumb.Render(line)
}

func (m *Model) renderBrowserDetail() string {
	if err := m.browser.Err(); err != nil {
		return styleDetailPanel.Width(m.width).Render(styleError.Render(err.Error()))
	}
	entry := m.selectedEntry()
	if entry == nil {
		if len(m.entries) == 0 && !m.browser.Loading() {
			return styleDetailPanel.Width(m.width).Render("Empty directory")
		}
		return styleDetailPanel.Width(m.width).Render("")
	}

	var fs vulnindex.FileSummary
	var ok bool
	if entry.IsDir() {
		fs, ok = m.index.ForDirectory(entry.Path)
	} else {
		fs, ok = m.index.ForFile(entry.Path)
	}
	if !ok {
		return styleDetailPanel.Width(m.width).Render(entry.Path)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s  %d findings\n", entry.Path, fs.Count))
	for i, v := range fs.Vulnerabilities {
		if i == detailHeight-2 {
			b.WriteString(fmt.Sprintf("... %d more", len(fs.Vulnerabilities)-i))
			break
		}
		sev := severityStyle(v.Severity).Render(severityLabel(v.Severity))
		b.WriteString(fmt.Sprintf("%s  %s\n", sev, truncate(v.Title, m.width-14)))
	}
	return styleDetailPanel.Width(m.width).Render(strings.TrimSuffix(b.String(), "\n"))
}

func (m *Model) renderFooter() string {
	var left, right string
	switch {
	case m.modal == modalCredential:
		left = "enter:save token  esc:cancel"
	case m.modal == modalEditor:
		left = "ctrl+s:save fix  esc:cancel"
	case m.modal == modalPullRequest:
		left = "enter:create pull request  esc:cancel"
	case m.screen == screenViewer:
		left = "esc:close  n/p:findings  c:copy  f:fix"
		right = fmt.Sprintf("line %d/%d", m.cursorLine, len(m.doc.Lines))
	case m.screen == screenVulns:
		left = "esc:back  enter:open  f:fix  /:search  t:severity  s:sort"
		right = fmt.Sprintf("%d/%d findings", len(m.filteredVulns), len(m.vulns))
	default:
		left = "q:quit  enter:open  ⌫:up  0-9:jump  /:search  r:refresh  v:findings"
		right = fmt.Sprintf("%d entries", len(m.entries))
	}

	if m.statusMsg != "" {
		right = m.statusMsg + "  " + right
	}
	if m.copied {
		right = styleCopied.Render("Copied!") + "  " + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return styleFooter.Render(left + strings.Repeat(" ", gap) + right)
}
