// Package vulnindex derives per-file and per-line groupings from a flat
// vulnerability list. The index is rebuilt, never mutated.
package vulnindex

import (
	"sort"
	"strings"

	"github.com/ppiankov/scanfix/internal/models"
)

// FileSummary aggregates the vulnerabilities of one file.
type FileSummary struct {
	Path            string                 `json:"path"`
	Highest         models.Severity        `json:"highest_severity"`
	Count           int                    `json:"count"`
	Vulnerabilities []models.Vulnerability `json:"vulnerabilities"`
}

// LineGroup is the set of vulnerabilities reported on one line.
type LineGroup struct {
	Line            int
	Highest         models.Severity
	Vulnerabilities []models.Vulnerability
}

// Index is an immutable grouping of vulnerabilities by file and line.
type Index struct {
	total      int
	unassigned []models.Vulnerability
	files      map[string]*FileSummary
	lines      map[string]map[int]*LineGroup
	sorted     []FileSummary
}

// Build groups vulnerabilities by file_path and, within a file, by line.
// When two vulnerabilities share the highest severity, the first one seen
// keeps the position; input order is otherwise preserved.
func Build(vulns []models.Vulnerability) *Index {
	idx := &Index{
		total: len(vulns),
		files: make(map[string]*FileSummary),
		lines: make(map[string]map[int]*LineGroup),
	}

	for _, v := range vulns {
		if v.FilePath == "" {
			idx.unassigned = append(idx.unassigned, v)
			continue
		}

		fs, ok := idx.files[v.FilePath]
		if !ok {
			fs = &FileSummary{Path: v.FilePath, Highest: v.Severity}
			idx.files[v.FilePath] = fs
		} else if v.Severity.Higher(fs.Highest) {
			fs.Highest = v.Severity
		}
		fs.Count++
		fs.Vulnerabilities = append(fs.Vulnerabilities, v)

		line, ok := v.Line()
		if !ok {
			continue
		}
		byLine, ok := idx.lines[v.FilePath]
		if !ok {
			byLine = make(map[int]*LineGroup)
			idx.lines[v.FilePath] = byLine
		}
		lg, ok := byLine[line]
		if !ok {
			lg = &LineGroup{Line: line, Highest: v.Severity}
			byLine[line] = lg
		} else if v.Severity.Higher(lg.Highest) {
			lg.Highest = v.Severity
		}
		lg.Vulnerabilities = append(lg.Vulnerabilities, v)
	}

	idx.sorted = make([]FileSummary, 0, len(idx.files))
	for _, fs := range idx.files {
		idx.sorted = append(idx.sorted, *fs)
	}
	SortSummaries(idx.sorted)

	return idx
}

// SortSummaries orders by highest severity desc, then count desc, then path.
func SortSummaries(files []FileSummary) {
	sort.SliceStable(files, func(i, j int) bool {
		ri, rj := files[i].Highest.Rank(), files[j].Highest.Rank()
		if ri != rj {
			return ri > rj
		}
		if files[i].Count != files[j].Count {
			return files[i].Count > files[j].Count
		}
		return files[i].Path < files[j].Path
	})
}

// Total returns the number of vulnerabilities indexed, including unassigned ones.
func (idx *Index) Total() int {
	return idx.total
}

// Unassigned returns vulnerabilities without a file path.
func (idx *Index) Unassigned() []models.Vulnerability {
	return idx.unassigned
}

// Files returns per-file summaries in display order.
func (idx *Index) Files() []FileSummary {
	return idx.sorted
}

// ForFile returns the summary for path.
func (idx *Index) ForFile(path string) (FileSummary, bool) {
	fs, ok := idx.files[path]
	if !ok {
		return FileSummary{}, false
	}
	return *fs, true
}

// ForLine returns the group of vulnerabilities on a line of path.
func (idx *Index) ForLine(path string, line int) (LineGroup, bool) {
	lg, ok := idx.lines[path][line]
	if !ok {
		return LineGroup{}, false
	}
	return *lg, true
}

// Lines returns the line groups of path in ascending line order.
func (idx *Index) Lines(path string) []LineGroup {
	byLine := idx.lines[path]
	out := make([]LineGroup, 0, len(byLine))
	for _, lg := range byLine {
		out = append(out, *lg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// HighestOnLine returns the highest severity reported on a line.
func (idx *Index) HighestOnLine(path string, line int) (models.Severity, bool) {
	lg, ok := idx.lines[path][line]
	if !ok {
		return "", false
	}
	return lg.Highest, true
}

// CountsBySeverity tallies every indexed vulnerability by severity.
func (idx *Index) CountsBySeverity() map[models.Severity]int {
	counts := make(map[models.Severity]int)
	for _, fs := range idx.files {
		for _, v := range fs.Vulnerabilities {
			counts[v.Severity]++
		}
	}
	for _, v := range idx.unassigned {
		counts[v.Severity]++
	}
	return counts
}

// ForDirectory rolls up every file under dir ("" is the repository root).
// The returned summary has Path set to dir.
func (idx *Index) ForDirectory(dir string) (FileSummary, bool) {
	prefix := strings.TrimSuffix(dir, "/")
	if prefix != "" {
		prefix += "/"
	}

	out := FileSummary{Path: dir}
	for _, fs := range idx.sorted {
		if !strings.HasPrefix(fs.Path, prefix) {
			continue
		}
		if out.Count == 0 || fs.Highest.Higher(out.Highest) {
			out.Highest = fs.Highest
		}
		out.Count += fs.Count
	}
	return out, out.Count > 0
}

// Filter returns the file summaries whose path contains query (case-insensitive)
// and whose highest severity is at least minSeverity ("" disables the bound).
func (idx *Index) Filter(query string, minSeverity models.Severity) []FileSummary {
	q := strings.ToLower(query)
	out := make([]FileSummary, 0, len(idx.sorted))
	for _, fs := range idx.sorted {
		if q != "" && !strings.Contains(strings.ToLower(fs.Path), q) {
			continue
		}
		if minSeverity != "" && fs.Highest.Rank() < minSeverity.Rank() {
			continue
		}
		out = append(out, fs)
	}
	return out
}
