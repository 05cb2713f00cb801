package models

import (
	"encoding/json"
	"time"
)

// EntryType distinguishes files from directories in a listing.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// DirEntry is one item of GET /api/v1/repositories/{id}/content.
type DirEntry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Type        EntryType `json:"type"`
	Size        *int64    `json:"size,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// IsDir reports whether the entry is a directory.
func (e DirEntry) IsDir() bool {
	return e.Type == EntryDir
}

// FileContent is the raw payload of GET /api/v1/repositories/{id}/file.
// The backend may return a plain string, an object with base64 content,
// or arbitrary JSON; normalization happens in the content package.
type FileContent struct {
	Path string          `json:"path"`
	Raw  json.RawMessage `json:"raw"`
}

// ScanSnapshot is a locally cached copy of a finished scan.
type ScanSnapshot struct {
	Scan            ScanRecord       `json:"scan"`
	Vulnerabilities []Vulnerability  `json:"vulnerabilities"`
	Files           []FileScanResult `json:"files"`
	FetchedAt       time.Time        `json:"fetched_at"`
}
