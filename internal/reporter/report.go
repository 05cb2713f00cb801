package reporter

import (
	"time"

	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/policy"
	"github.com/ppiankov/scanfix/internal/vulnindex"
)

// Report is the input shared by the text and JSON reporters.
type Report struct {
	Scan       models.ScanRecord
	Index      *vulnindex.Index
	FileStatus map[string]models.FileStatus
	Policy     *policy.Result
	// FileFilter restricts output to one file when set.
	FileFilter string
	// FetchedAt is set when the report comes from the local cache.
	FetchedAt time.Time
}

// NewReport builds a Report from a scan snapshot.
func NewReport(snapshot *models.ScanSnapshot) *Report {
	details := &models.ScanDetails{Scan: snapshot.Scan, Files: snapshot.Files}
	return &Report{
		Scan:       snapshot.Scan,
		Index:      vulnindex.Build(snapshot.Vulnerabilities),
		FileStatus: details.StatusByPath(),
	}
}

// files returns the summaries the report covers.
func (r *Report) files() []vulnindex.FileSummary {
	if r.Index == nil {
		return nil
	}
	if r.FileFilter == "" {
		return r.Index.Files()
	}
	fs, ok := r.Index.ForFile(r.FileFilter)
	if !ok {
		return nil
	}
	return []vulnindex.FileSummary{fs}
}
