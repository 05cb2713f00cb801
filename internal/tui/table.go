package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/vulnindex"
)

var entryColumns = []table.Column{
	{Title: "", Width: 2},
	{Title: "Name", Width: 40},
	{Title: "Status", Width: 12},
	{Title: "Findings", Width: 9},
}

var vulnColumns = []table.Column{
	{Title: "Severity", Width: 10},
	{Title: "File", Width: 36},
	{Title: "Line", Width: 6},
	{Title: "Title", Width: 40},
}

// buildEntryRows converts a directory listing to table rows. File badges
// come from the per-file scan results, falling back to the index; directory
// badges roll up every finding below them.
func buildEntryRows(entries []models.DirEntry, idx *vulnindex.Index, fileStatus map[string]models.FileStatus) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		icon := " "
		name := e.Name
		if e.IsDir() {
			icon = "▸"
			name += "/"
		}
		badge, count := entryBadge(e, idx, fileStatus)
		findings := ""
		if count > 0 {
			findings = fmt.Sprintf("%d", count)
		}
		rows = append(rows, table.Row{
			icon,
			truncate(name, entryColumns[1].Width),
			badge,
			findings,
		})
	}
	return rows
}

func entryBadge(e models.DirEntry, idx *vulnindex.Index, fileStatus map[string]models.FileStatus) (string, int) {
	if e.IsDir() {
		if fs, ok := idx.ForDirectory(e.Path); ok {
			return severityLabel(fs.Highest), fs.Count
		}
		return "", 0
	}

	fs, found := idx.ForFile(e.Path)
	if found {
		return severityLabel(fs.Highest), fs.Count
	}
	switch fileStatus[e.Path] {
	case models.FileScanned:
		return "clean", 0
	case models.FileSkipped:
		return "skipped", 0
	case models.FileError:
		return "error", 0
	case models.FileVulnerable:
		return "vulnerable", 0
	}
	return "", 0
}

// buildVulnRows converts vulnerabilities to table rows.
func buildVulnRows(vulns []models.Vulnerability) []table.Row {
	rows := make([]table.Row, 0, len(vulns))
	for _, v := range vulns {
		line := ""
		if n, ok := v.Line(); ok {
			line = fmt.Sprintf("%d", n)
		}
		file := v.FilePath
		if file == "" {
			file = "-"
		}
		rows = append(rows, table.Row{
			severityLabel(v.Severity),
			truncate(file, vulnColumns[1].Width),
			line,
			truncate(v.Title, vulnColumns[3].Width),
		})
	}
	return rows
}

func severityLabel(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "CRITICAL"
	case models.SeverityHigh:
		return "HIGH"
	case models.SeverityMedium:
		return "MEDIUM"
	case models.SeverityLow:
		return "LOW"
	default:
		return string(s)
	}
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	const ellipsis = "..."
	if maxLen <= len(ellipsis) {
		return s[:maxLen]
	}
	return s[:maxLen-len(ellipsis)] + ellipsis
}

// newTable creates a bubbles table with the given columns and standard styling.
func newTable(columns []table.Column, rows []table.Row, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorAccent).
		Bold(false)
	t.SetStyles(s)

	return t
}
