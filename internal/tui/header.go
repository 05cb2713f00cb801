package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/vulnindex"
)

// headerHeight is the number of terminal lines the header occupies.
const headerHeight = 5

// renderHeader produces the header from the repository, the scan and the
// vulnerability index. spin is drawn next to an active scan.
func renderHeader(repo *models.Repository, scan *models.ScanRecord, idx *vulnindex.Index, spin string, width int) string {
	var b strings.Builder

	// Line 1: repository
	name := "loading repository..."
	if repo != nil {
		name = repo.FullName
		if repo.DefaultBranch != "" {
			name += "  (" + repo.DefaultBranch + ")"
		}
	}
	b.WriteString(fmt.Sprintf("scanfix  %s", name))
	b.WriteString("\n")

	// Line 2: scan status
	switch {
	case scan == nil:
		b.WriteString("Scan: none")
	case scan.Status.IsActive():
		b.WriteString(fmt.Sprintf("Scan %s: %s %s", scan.ID, spin, scanStatusStyle(scan.Status).Render(string(scan.Status))))
	default:
		b.WriteString(fmt.Sprintf("Scan %s: %s", scan.ID, scanStatusStyle(scan.Status).Render(string(scan.Status))))
		if scan.Status == models.ScanFailed && scan.ErrorMessage != "" {
			b.WriteString("  " + styleError.Render(scan.ErrorMessage))
		}
	}
	b.WriteString("\n")

	// Line 3: severity breakdown
	if idx != nil {
		counts := idx.CountsBySeverity()
		sevParts := make([]string, 0, len(models.Severities))
		for _, sev := range models.Severities {
			if count := counts[sev]; count > 0 {
				label := fmt.Sprintf("%s:%d", strings.ToUpper(string(sev)[:1]), count)
				sevParts = append(sevParts, severityStyle(sev).Render(label))
			}
		}
		b.WriteString(fmt.Sprintf("Findings: %d  ", idx.Total()))
		b.WriteString(strings.Join(sevParts, "  "))
	}

	return styleHeader.Width(width).Render(b.String())
}
