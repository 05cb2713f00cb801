package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/scanfix/internal/content"
	"github.com/ppiankov/scanfix/internal/models"
)

// Palette
var (
	colorOK     = lipgloss.Color("#00FF00")
	colorWarn   = lipgloss.Color("#FFFF00")
	colorError  = lipgloss.Color("#FF0000")
	colorMuted  = lipgloss.Color("#888888")
	colorAccent = lipgloss.Color("#7B68EE")
	colorBorder = lipgloss.Color("#444444")
)

// Panel styles
var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	styleDetailPanel = lipgloss.NewStyle().
				Padding(0, 1).
				BorderStyle(lipgloss.NormalBorder()).
				BorderTop(true).
				BorderForeground(colorBorder)

	styleFooter = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	styleSearchPrompt = lipgloss.NewStyle().
				Foreground(colorAccent).Bold(true)

	styleBreadcrumb = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleModal = lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent)

	styleModalTitle = lipgloss.NewStyle().
			Foreground(colorAccent).Bold(true)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)

	styleCopied = lipgloss.NewStyle().
			Foreground(colorOK).Bold(true)
)

// severityStyle returns the lipgloss style for a severity level.
func severityStyle(severity models.Severity) lipgloss.Style {
	return content.SeverityStyle(severity)
}

// scanStatusStyle returns the lipgloss style for a scan status.
func scanStatusStyle(status models.ScanStatus) lipgloss.Style {
	switch status {
	case models.ScanCompleted:
		return lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	case models.ScanRunning, models.ScanPending:
		return lipgloss.NewStyle().Foreground(colorWarn)
	case models.ScanFailed:
		return lipgloss.NewStyle().Foreground(colorError).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorMuted)
	}
}
