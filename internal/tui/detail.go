package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/scanfix/internal/models"
)

// detailHeight is the fixed number of lines for the detail panel.
const detailHeight = 5

// renderDetail produces the detail view for a selected vulnerability.
func renderDetail(v *models.Vulnerability, width int) string {
	if v == nil {
		return styleDetailPanel.Width(width).Render("No vulnerability selected")
	}

	var b strings.Builder

	sevStyled := severityStyle(v.Severity).Render(severityLabel(v.Severity))
	b.WriteString(fmt.Sprintf("%s  %s", sevStyled, v.Title))
	if v.RuleID != "" {
		b.WriteString(fmt.Sprintf("  [%s]", v.RuleID))
	}
	b.WriteString("\n")

	loc := v.FilePath
	if loc == "" {
		loc = "(no file)"
	}
	if line, ok := v.Line(); ok {
		loc = fmt.Sprintf("%s:%d", loc, line)
	}
	b.WriteString(fmt.Sprintf("Location: %s\n", loc))

	if v.Description != "" {
		b.WriteString(truncate(v.Description, width-4) + "\n")
	}
	if advice := v.Advice(); advice != "" {
		b.WriteString("Fix: " + truncate(advice, width-9))
	}

	return styleDetailPanel.Width(width).Render(b.String())
}

// renderLineDetail lists the vulnerabilities reported on one viewer line.
func renderLineDetail(vulns []models.Vulnerability, width int) string {
	if len(vulns) == 0 {
		return styleDetailPanel.Width(width).Render("n/p: jump between findings")
	}
	if len(vulns) == 1 {
		return renderDetail(&vulns[0], width)
	}

	var b strings.Builder
	for i, v := range vulns {
		if i == detailHeight-1 {
			b.WriteString(fmt.Sprintf("... %d more", len(vulns)-i))
			break
		}
		sev := severityStyle(v.Severity).Render(severityLabel(v.Severity))
		b.WriteString(fmt.Sprintf("%s  %s\n", sev, truncate(v.Title, width-14)))
	}
	return styleDetailPanel.Width(width).Render(strings.TrimSuffix(b.String(), "\n"))
}
