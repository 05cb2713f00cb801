package content

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/vulnindex"
)

// Line is one line of a document with the vulnerabilities reported on it.
type Line struct {
	Number  int
	Text    string
	Vulns   []models.Vulnerability
	Highest models.Severity
}

// Vulnerable reports whether any vulnerability sits on the line.
func (l Line) Vulnerable() bool {
	return len(l.Vulns) > 0
}

// Document is normalized file text split into annotated lines.
type Document struct {
	Path  string
	Lines []Line
	// Unplaced holds vulnerabilities without a line or past the end of the file.
	Unplaced []models.Vulnerability
}

// Annotate splits text into lines and attaches the vulnerabilities idx
// reports for path.
func Annotate(path, text string, idx *vulnindex.Index) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	doc := Document{Path: path, Lines: make([]Line, len(raw))}
	for i, t := range raw {
		doc.Lines[i] = Line{Number: i + 1, Text: t}
	}
	if idx == nil {
		return doc
	}

	for _, lg := range idx.Lines(path) {
		if lg.Line > len(doc.Lines) {
			doc.Unplaced = append(doc.Unplaced, lg.Vulnerabilities...)
			continue
		}
		l := &doc.Lines[lg.Line-1]
		l.Vulns = lg.Vulnerabilities
		l.Highest = lg.Highest
	}
	if fs, ok := idx.ForFile(path); ok {
		for _, v := range fs.Vulnerabilities {
			if _, ok := v.Line(); !ok {
				doc.Unplaced = append(doc.Unplaced, v)
			}
		}
	}
	return doc
}

// VulnerableLines returns the numbers of annotated lines in ascending order.
func (d Document) VulnerableLines() []int {
	var out []int
	for _, l := range d.Lines {
		if l.Vulnerable() {
			out = append(out, l.Number)
		}
	}
	return out
}

// NextVulnerable returns the first vulnerable line after from, wrapping.
// It returns 0 when the document has none.
func (d Document) NextVulnerable(from int) int {
	lines := d.VulnerableLines()
	if len(lines) == 0 {
		return 0
	}
	for _, n := range lines {
		if n > from {
			return n
		}
	}
	return lines[0]
}

// PrevVulnerable returns the last vulnerable line before from, wrapping.
func (d Document) PrevVulnerable(from int) int {
	lines := d.VulnerableLines()
	if len(lines) == 0 {
		return 0
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] < from {
			return lines[i]
		}
	}
	return lines[len(lines)-1]
}

// Plain returns the document text without annotations.
func (d Document) Plain() string {
	parts := make([]string, len(d.Lines))
	for i, l := range d.Lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n")
}

// RenderOptions controls Render.
type RenderOptions struct {
	// Highlight is the line drawn as the cursor, 0 for none.
	Highlight int
	// Color disables lipgloss styling when false.
	Color bool
}

var (
	styleGutter    = lipgloss.NewStyle().Foreground(colorMuted)
	styleHighlight = lipgloss.NewStyle().Reverse(true)
)

// Render draws the document with a line-number gutter and a severity marker
// on every vulnerable line.
func Render(d Document, opts RenderOptions) string {
	width := len(fmt.Sprint(len(d.Lines)))
	if width < 3 {
		width = 3
	}

	var b strings.Builder
	for i, l := range d.Lines {
		num := fmt.Sprintf("%*d", width, l.Number)
		marker := " "
		if l.Vulnerable() {
			marker = SeverityMarker(l.Highest)
		}
		text := l.Text
		if opts.Color {
			num = styleGutter.Render(num)
			if l.Vulnerable() {
				marker = SeverityStyle(l.Highest).Render(marker)
			}
			if l.Number == opts.Highlight {
				text = styleHighlight.Render(text)
			}
		}
		fmt.Fprintf(&b, "%s %s │ %s", num, marker, text)
		if i < len(d.Lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// SeverityMarker is the one-character gutter mark for a severity.
func SeverityMarker(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "C"
	case models.SeverityHigh:
		return "H"
	case models.SeverityMedium:
		return "M"
	case models.SeverityLow:
		return "L"
	default:
		return "?"
	}
}
