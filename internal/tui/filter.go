package tui

import (
	"sort"
	"strings"

	"github.com/ppiankov/scanfix/internal/models"
)

// filterState holds the active vulnerability list filters.
type filterState struct {
	Severity   models.Severity
	SearchText string
}

// sortField enumerates vulnerability list orderings.
type sortField int

const (
	sortBySeverity sortField = iota
	sortByFile
	sortByTitle
)

// sortFieldCount is the total number of orderings.
const sortFieldCount = 3

// applyFilters returns vulnerabilities matching all active filters.
func applyFilters(vulns []models.Vulnerability, f filterState) []models.Vulnerability {
	result := make([]models.Vulnerability, 0, len(vulns))
	searchLower := strings.ToLower(f.SearchText)

	for _, v := range vulns {
		if f.Severity != "" && v.Severity != f.Severity {
			continue
		}
		if searchLower != "" && !matchesSearch(v, searchLower) {
			continue
		}
		result = append(result, v)
	}
	return result
}

func matchesSearch(v models.Vulnerability, searchLower string) bool {
	return strings.Contains(strings.ToLower(v.FilePath), searchLower) ||
		strings.Contains(strings.ToLower(v.Title), searchLower) ||
		strings.Contains(strings.ToLower(v.ID), searchLower) ||
		strings.Contains(strings.ToLower(v.RuleID), searchLower) ||
		strings.Contains(strings.ToLower(v.Description), searchLower)
}

// sortVulns sorts vulnerabilities in place by the given field.
func sortVulns(vulns []models.Vulnerability, field sortField) {
	sort.SliceStable(vulns, func(i, j int) bool {
		switch field {
		case sortBySeverity:
			return vulns[i].Severity.Higher(vulns[j].Severity)
		case sortByFile:
			if vulns[i].FilePath != vulns[j].FilePath {
				return vulns[i].FilePath < vulns[j].FilePath
			}
			li, _ := vulns[i].Line()
			lj, _ := vulns[j].Line()
			return li < lj
		case sortByTitle:
			return vulns[i].Title < vulns[j].Title
		default:
			return false
		}
	})
}

// nextSeverity cycles the severity filter: all, critical, high, medium, low.
func nextSeverity(current models.Severity) models.Severity {
	if current == "" {
		return models.Severities[0]
	}
	for i, s := range models.Severities {
		if s == current && i+1 < len(models.Severities) {
			return models.Severities[i+1]
		}
	}
	return ""
}

// sortFieldName returns a human-readable name for the sort field.
func sortFieldName(f sortField) string {
	switch f {
	case sortBySeverity:
		return "severity"
	case sortByFile:
		return "file"
	case sortByTitle:
		return "title"
	default:
		return "unknown"
	}
}
