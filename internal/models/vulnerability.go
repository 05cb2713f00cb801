package models

import "time"

// Vulnerability is a single finding produced by a scan. Read-only to the client.
type Vulnerability struct {
	ID             string   `json:"id"`
	ScanID         string   `json:"scan_id,omitempty"`
	FilePath       string   `json:"file_path"`
	Severity       Severity `json:"severity"`
	LineNumber     *int     `json:"line_number,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	FixSuggestion  string   `json:"fix_suggestion,omitempty"`
	RuleID         string   `json:"rule_id,omitempty"`
}

// Line returns the line number and whether one was reported.
func (v Vulnerability) Line() (int, bool) {
	if v.LineNumber == nil || *v.LineNumber <= 0 {
		return 0, false
	}
	return *v.LineNumber, true
}

// Advice returns the fix suggestion, falling back to the recommendation.
func (v Vulnerability) Advice() string {
	if v.FixSuggestion != "" {
		return v.FixSuggestion
	}
	return v.Recommendation
}

// FileStatus is the per-path scan outcome, independent of findings.
type FileStatus string

const (
	FileVulnerable FileStatus = "vulnerable"
	FileScanned    FileStatus = "scanned"
	FileSkipped    FileStatus = "skipped"
	FileError      FileStatus = "error"
)

// FileScanResult is one entry of GET /api/v1/scans/{id}/detailed.
type FileScanResult struct {
	FilePath           string     `json:"file_path"`
	Status             FileStatus `json:"status"`
	VulnerabilityCount int        `json:"vulnerability_count,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// ScanDetails is the detailed scan view with per-file outcomes.
type ScanDetails struct {
	Scan  ScanRecord       `json:"scan"`
	Files []FileScanResult `json:"files"`
}

// StatusByPath indexes file outcomes by path.
func (d *ScanDetails) StatusByPath() map[string]FileStatus {
	if d == nil {
		return map[string]FileStatus{}
	}
	out := make(map[string]FileStatus, len(d.Files))
	for _, f := range d.Files {
		out[f.FilePath] = f.Status
	}
	return out
}

// FixRecord is a fix persisted server-side, consumed once by PR creation.
type FixRecord struct {
	ID              string    `json:"id"`
	VulnerabilityID string    `json:"vulnerability_id"`
	FilePath        string    `json:"file_path"`
	Content         string    `json:"content,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// FixInput is the body for POST /api/v1/fixes.
type FixInput struct {
	VulnerabilityID string `json:"vulnerability_id"`
	FilePath        string `json:"file_path"`
	Content         string `json:"content"`
}

// PullRequestInput is the body for POST /api/v1/pull-requests.
type PullRequestInput struct {
	RepositoryID string   `json:"repository_id"`
	FixIDs       []string `json:"fix_ids"`
	Title        string   `json:"title"`
	Body         string   `json:"body,omitempty"`
	BaseBranch   string   `json:"base_branch,omitempty"`
}

// PullRequest is the result of a successful PR creation.
type PullRequest struct {
	URL    string `json:"url"`
	Number int    `json:"number,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// TokenStatus is the credential service view of the stored PAT.
type TokenStatus struct {
	HasToken bool   `json:"has_token"`
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
}

// Usable reports whether the stored credential can authorize PR creation.
func (t TokenStatus) Usable() bool {
	return t.HasToken && t.Valid
}
