// Package trend compares the findings of two scans of a repository.
package trend

import (
	"sort"

	"github.com/ppiankov/scanfix/internal/models"
)

// Direction values of a comparison.
const (
	Improving = "improving"
	Degrading = "degrading"
	Stable    = "stable"
)

// Comparison holds the findings that appeared or disappeared between a
// baseline scan and a later one.
type Comparison struct {
	Baseline string                 `json:"baseline"`
	Current  string                 `json:"current"`
	New      []models.Vulnerability `json:"new"`
	Resolved []models.Vulnerability `json:"resolved"`
	Summary  Summary                `json:"summary"`
}

// Summary holds aggregate counts for a comparison.
type Summary struct {
	BaselineTotal int                     `json:"baseline_total"`
	CurrentTotal  int                     `json:"current_total"`
	NewCount      int                     `json:"new_count"`
	ResolvedCount int                     `json:"resolved_count"`
	Delta         int                     `json:"delta"` // positive = more findings
	ChangePercent float64                 `json:"change_percent"`
	Direction     string                  `json:"direction"`
	NewBySeverity map[models.Severity]int `json:"new_by_severity"`
}

// findingKey identifies a finding across scans. Vulnerability IDs are per
// scan and line numbers move with edits, so neither is part of the key.
func findingKey(v models.Vulnerability) string {
	rule := v.RuleID
	if rule == "" {
		rule = v.Title
	}
	return rule + "|" + v.FilePath
}

// Compare calculates new and resolved findings between baseline and
// current. Repeated findings with the same key are matched by count.
func Compare(baseline, current *models.ScanSnapshot) *Comparison {
	baseSet := make(map[string][]models.Vulnerability, len(baseline.Vulnerabilities))
	for _, v := range baseline.Vulnerabilities {
		k := findingKey(v)
		baseSet[k] = append(baseSet[k], v)
	}
	currSet := make(map[string][]models.Vulnerability, len(current.Vulnerabilities))
	for _, v := range current.Vulnerabilities {
		k := findingKey(v)
		currSet[k] = append(currSet[k], v)
	}

	var newFindings, resolved []models.Vulnerability
	for k, vs := range currSet {
		if n := len(baseSet[k]); len(vs) > n {
			newFindings = append(newFindings, vs[n:]...)
		}
	}
	for k, vs := range baseSet {
		if n := len(currSet[k]); len(vs) > n {
			resolved = append(resolved, vs[n:]...)
		}
	}
	sortFindings(newFindings)
	sortFindings(resolved)

	newBySeverity := map[models.Severity]int{}
	for _, v := range newFindings {
		newBySeverity[v.Severity]++
	}

	baseTotal := len(baseline.Vulnerabilities)
	currTotal := len(current.Vulnerabilities)
	summary := Summary{
		BaselineTotal: baseTotal,
		CurrentTotal:  currTotal,
		NewCount:      len(newFindings),
		ResolvedCount: len(resolved),
		Delta:         currTotal - baseTotal,
		NewBySeverity: newBySeverity,
	}

	// Determine direction and percentage
	if baseTotal > 0 {
		summary.ChangePercent = float64(summary.Delta) / float64(baseTotal) * 100.0
	} else if currTotal > 0 {
		summary.ChangePercent = 100.0
	}
	switch {
	case summary.Delta < 0:
		summary.Direction = Improving
	case summary.Delta > 0:
		summary.Direction = Degrading
	default:
		summary.Direction = Stable
	}

	return &Comparison{
		Baseline: baseline.Scan.ID,
		Current:  current.Scan.ID,
		New:      newFindings,
		Resolved: resolved,
		Summary:  summary,
	}
}

// sortFindings orders findings by severity, then path, then title.
func sortFindings(vs []models.Vulnerability) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Severity != vs[j].Severity {
			return vs[i].Severity.Higher(vs[j].Severity)
		}
		if vs[i].FilePath != vs[j].FilePath {
			return vs[i].FilePath < vs[j].FilePath
		}
		return vs[i].Title < vs[j].Title
	})
}

// Indicator returns a visual indicator for a trend direction.
func Indicator(direction string) string {
	switch direction {
	case Improving:
		return "↓"
	case Degrading:
		return "↑"
	case Stable:
		return "→"
	default:
		return "?"
	}
}
