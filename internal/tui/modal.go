package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/workflow"
)

// renderModal draws the active workflow dialog.
func (m *Model) renderModal() string {
	var b strings.Builder
	snap := m.coord.Snapshot()

	switch m.modal {
	case modalCredential:
		b.WriteString(styleModalTitle.Render("GitHub token required"))
		b.WriteString("\n\n")
		b.WriteString("A personal access token with repo scope is needed to open pull requests.\n\n")
		b.WriteString(m.credInput.View())
	case modalEditor:
		title := "Edit fix"
		if snap.Vulnerability != nil {
			title = fmt.Sprintf("Fix %s in %s", snap.Vulnerability.Title, snap.Vulnerability.FilePath)
		}
		b.WriteString(styleModalTitle.Render(truncate(title, m.width-8)))
		b.WriteString("\n")
		if snap.Vulnerability != nil {
			if advice := snap.Vulnerability.Advice(); advice != "" {
				b.WriteString(styleBreadcrumb.Render(truncate(advice, m.width-8)))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(m.editor.View())
	case modalPullRequest:
		b.WriteString(styleModalTitle.Render("Create pull request"))
		b.WriteString("\n\n")
		b.WriteString(m.prTitle.View())
	}

	switch {
	case m.busy:
		b.WriteString("\n\n")
		b.WriteString(styleBreadcrumb.Render(snap.State.String() + "..."))
	case m.modalErr != "":
		b.WriteString("\n\n")
		b.WriteString(styleError.Render(m.modalErr))
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return styleModal.Width(width).Render(b.String())
}

func (m Model) startFix(v models.Vulnerability) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.busy = true
	m.modalErr = ""
	m.statusMsg = ""
	return m, m.requestFix(v)
}

func (m Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Close) {
		m.cancelFlow()
		return m, nil
	}
	if m.busy {
		return m, nil
	}

	switch m.modal {
	case modalCredential:
		if key.Matches(msg, keys.Submit) {
			token := strings.TrimSpace(m.credInput.Value())
			if token == "" {
				m.modalErr = "token is required"
				return m, nil
			}
			m.busy = true
			m.modalErr = ""
			return m, m.submitCredential(token)
		}
	case modalEditor:
		if key.Matches(msg, keys.SaveFix) {
			m.busy = true
			m.modalErr = ""
			return m, m.saveFix(m.editor.Value())
		}
	case modalPullRequest:
		if key.Matches(msg, keys.Submit) {
			m.busy = true
			m.modalErr = ""
			return m, m.createPullRequest(m.prTitle.Value())
		}
	}
	return m.updateFocused(msg)
}

// cancelFlow abandons the workflow from any dialog. Results of calls
// still in flight are dropped.
func (m *Model) cancelFlow() {
	m.coord.Cancel()
	m.flow++
	m.busy = false
	m.modal = modalNone
	m.modalErr = ""
	m.credInput.Reset()
	m.credInput.Blur()
	m.editor.Blur()
	m.prTitle.Blur()
	if m.screen == screenViewer {
		if err := m.coord.OpenFile(m.doc.Path); err != nil {
			m.logf("reopen %s: %v", m.doc.Path, err)
		}
	}
}

func (m Model) handleWorkflowMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fixRequestedMsg:
		if msg.flow != m.flow {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Fix: %v", msg.err)
			return m, nil
		}
		if msg.state == workflow.PATRequired {
			if m.screen == screenViewer {
				m.screen = m.returnTo
			}
			m.modal = modalCredential
			m.credInput.Reset()
			cmd := m.credInput.Focus()
			return m, cmd
		}
		return m.beginEditing()

	case credentialSavedMsg:
		if msg.flow != m.flow {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			m.modalErr = msg.err.Error()
			return m, nil
		}
		m.credInput.Reset()
		m.credInput.Blur()
		return m.beginEditing()

	case fixSourceMsg:
		if msg.flow != m.flow {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			m.modalErr = fmt.Sprintf("load %s: %v", msg.path, msg.err)
		}
		m.editor.SetValue(msg.text)
		cmd := m.editor.Focus()
		return m, cmd

	case fixSavedMsg:
		if msg.flow != m.flow {
			return m, nil
		}
		if msg.err != nil {
			m.busy = false
			m.modalErr = msg.err.Error()
			return m, nil
		}
		m.modal = modalNone
		m.editor.Blur()
		m.statusMsg = "Fix saved"
		return m, m.openPullRequest()

	case prOpenMsg:
		if msg.flow != m.flow {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Pull request: %v", msg.err)
			return m, nil
		}
		m.modal = modalPullRequest
		if v := m.coord.Snapshot().Vulnerability; v != nil {
			m.prTitle.SetValue(workflow.DefaultTitle(*v))
		}
		cmd := m.prTitle.Focus()
		return m, cmd

	case prCreatedMsg:
		if msg.flow != m.flow {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			m.modalErr = msg.err.Error()
			return m, nil
		}
		m.modal = modalNone
		m.prTitle.Blur()
		m.prTitle.Reset()
		m.statusMsg = fmt.Sprintf("Pull request created: %s", msg.pr.URL)
		if m.screen == screenViewer {
			m.screen = m.returnTo
		}
	}
	return m, nil
}

// beginEditing opens the fix editor on the selected vulnerability's file.
func (m Model) beginEditing() (tea.Model, tea.Cmd) {
	v := m.coord.Snapshot().Vulnerability
	if v == nil || m.coord.State() != workflow.Editing {
		return m, nil
	}
	m.modal = modalEditor
	m.modalErr = ""
	if m.docText != "" && m.doc.Path == v.FilePath {
		m.editor.SetValue(m.docText)
		cmd := m.editor.Focus()
		return m, cmd
	}
	if v.FilePath == "" {
		m.editor.SetValue("")
		cmd := m.editor.Focus()
		return m, cmd
	}
	m.busy = true
	return m, m.loadFixSource(v.FilePath)
}
