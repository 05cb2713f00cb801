package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/vulnindex"
)

// TextReporter generates human-readable text reports
type TextReporter struct {
	writer io.Writer
}

// NewTextReporter creates a new text reporter
func NewTextReporter(writer io.Writer) *TextReporter {
	return &TextReporter{
		writer: writer,
	}
}

// Generate writes a text report of the scan and its vulnerability index
func (r *TextReporter) Generate(report *Report) error {
	r.printHeader()
	r.printScan(report)
	r.printSummary(report)

	files := report.files()
	if report.FileFilter != "" && len(files) == 0 {
		r.printf("No vulnerabilities in %s\n", report.FileFilter)
	}
	if len(files) > 0 {
		r.printFiles(files, report.FileStatus)
	}

	if report.FileFilter == "" && report.Index != nil && len(report.Index.Unassigned()) > 0 {
		r.printUnassigned(report.Index.Unassigned())
	}

	if report.FileFilter == "" {
		r.printCleanFiles(report)
	}

	if report.Policy != nil {
		r.printPolicy(report)
	}

	return nil
}

// printHeader prints the report header
func (r *TextReporter) printHeader() {
	r.printf("╔════════════════════════════════════════════╗\n")
	r.printf("║          scanfix Vulnerability Report      ║\n")
	r.printf("╚════════════════════════════════════════════╝\n\n")
}

// printScan prints scan identity and timing
func (r *TextReporter) printScan(report *Report) {
	scan := report.Scan
	r.printf("Scan: %s  Status: %s\n", scan.ID, strings.ToUpper(string(scan.Status)))
	if scan.RepositoryID != "" {
		r.printf("Repository: %s\n", scan.RepositoryID)
	}
	if scan.CompletedAt != nil {
		r.printf("Completed: %s", formatTimestamp(*scan.CompletedAt))
		if scan.StartedAt != nil {
			r.printf(" (took %s)", scan.CompletedAt.Sub(*scan.StartedAt).Round(time.Second))
		}
		r.printf("\n")
	}
	if scan.ErrorMessage != "" {
		r.printf("Error: %s\n", scan.ErrorMessage)
	}
	if !report.FetchedAt.IsZero() {
		r.printf("Cached: %s\n", formatTimestamp(report.FetchedAt))
	}
	r.printf("\n")
}

// printSummary prints totals by severity
func (r *TextReporter) printSummary(report *Report) {
	r.printf("Summary:\n")
	r.printf("--------------------------------------------------\n")
	if report.Index == nil {
		r.printf("  No vulnerability data\n\n")
		return
	}

	r.printf("  Total Vulnerabilities: %d\n", report.Index.Total())
	r.printf("  Affected Files: %d\n", len(report.Index.Files()))

	counts := report.Index.CountsBySeverity()
	for _, sev := range models.Severities {
		if counts[sev] > 0 {
			r.printf("  %s: %d\n", severityTitle(sev), counts[sev])
		}
	}
	r.printf("\n")
}

// printFiles prints every affected file with its vulnerabilities
func (r *TextReporter) printFiles(files []vulnindex.FileSummary, statuses map[string]models.FileStatus) {
	r.printf("Files:\n")
	r.printf("--------------------------------------------------\n")
	for _, fs := range files {
		r.printf("  [%s] %s (%d)", strings.ToUpper(string(fs.Highest)), fs.Path, fs.Count)
		if status, ok := statuses[fs.Path]; ok && status != models.FileVulnerable {
			r.printf(" status=%s", status)
		}
		r.printf("\n")

		for _, v := range fs.Vulnerabilities {
			loc := "-"
			if line, ok := v.Line(); ok {
				loc = fmt.Sprintf("L%d", line)
			}
			r.printf("    %-6s %-8s %s (%s)\n", loc, v.Severity, v.Title, v.ID)
			if advice := v.Advice(); advice != "" {
				r.printf("           Fix: %s\n", advice)
			}
		}
	}
	r.printf("\n")
}

// printUnassigned prints vulnerabilities without a file path
func (r *TextReporter) printUnassigned(vulns []models.Vulnerability) {
	r.printf("Not mapped to a file:\n")
	r.printf("--------------------------------------------------\n")
	for _, v := range vulns {
		r.printf("  %-8s %s (%s)\n", v.Severity, v.Title, v.ID)
	}
	r.printf("\n")
}

// printCleanFiles prints per-file outcomes that carry no vulnerabilities
func (r *TextReporter) printCleanFiles(report *Report) {
	counts := make(map[models.FileStatus]int)
	var errored []string
	for path, status := range report.FileStatus {
		if report.Index != nil {
			if _, ok := report.Index.ForFile(path); ok {
				continue
			}
		}
		counts[status]++
		if status == models.FileError {
			errored = append(errored, path)
		}
	}
	if len(counts) == 0 {
		return
	}

	r.printf("Other Files:\n")
	r.printf("--------------------------------------------------\n")
	for _, status := range []models.FileStatus{models.FileScanned, models.FileSkipped, models.FileError, models.FileVulnerable} {
		if counts[status] > 0 {
			r.printf("  %s: %d\n", severityTitle(models.Severity(status)), counts[status])
		}
	}
	sort.Strings(errored)
	for _, path := range errored {
		r.printf("    error: %s\n", path)
	}
	r.printf("\n")
}

// printPolicy prints the policy outcome
func (r *TextReporter) printPolicy(report *Report) {
	r.printf("Policy:\n")
	r.printf("--------------------------------------------------\n")
	if report.Policy.Pass {
		r.printf("  PASS\n")
		return
	}
	r.printf("  FAIL (%d violations)\n", len(report.Policy.Violations))
	for _, v := range report.Policy.Violations {
		r.printf("  - [%s] %s\n", v.Rule, v.Message)
	}
}

// printf is a helper to write formatted output
func (r *TextReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}

func severityTitle(s models.Severity) string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// formatTimestamp formats a timestamp for display
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
