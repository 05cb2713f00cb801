package models

import (
	"strings"
	"time"
)

// Severity is the vulnerability severity reported by the scanner.
type Severity string

// Severity levels, highest first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists known severity levels from highest to lowest.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Rank returns the ordering weight of a severity. Unknown severities rank 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Higher reports whether s outranks other.
func (s Severity) Higher(other Severity) bool {
	return s.Rank() > other.Rank()
}

// ParseSeverity maps a free-form severity string onto a known level.
// Matching is case-insensitive; unknown values are returned lowercased.
func ParseSeverity(s string) Severity {
	return Severity(strings.ToLower(strings.TrimSpace(s)))
}

// ScanStatus is the lifecycle state of a backend scan.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// IsTerminal reports whether no further status changes are expected.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

// IsActive reports whether the scan still needs polling.
func (s ScanStatus) IsActive() bool {
	return s == ScanPending || s == ScanRunning
}

// ScanRecord is a snapshot of a scan as returned by GET /api/v1/scans/{id}.
type ScanRecord struct {
	ID           string     `json:"id"`
	RepositoryID string     `json:"repository_id,omitempty"`
	Status       ScanStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Repository identifies a source repository known to the backend.
// It is replaced wholesale whenever it is refetched.
type Repository struct {
	ID            string      `json:"id"`
	FullName      string      `json:"full_name"`
	URL           string      `json:"url"`
	DefaultBranch string      `json:"default_branch"`
	LatestScan    *ScanRecord `json:"latest_scan,omitempty"`
	Description   string      `json:"description,omitempty"`
	Language      string      `json:"language,omitempty"`
	Private       bool        `json:"private,omitempty"`
}
