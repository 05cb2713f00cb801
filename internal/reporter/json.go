package reporter

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/policy"
	"github.com/ppiankov/scanfix/internal/vulnindex"
)

// JSONReporter generates machine-readable JSON reports
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(writer io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		pretty: pretty,
	}
}

// jsonFile is one affected file in the JSON output.
type jsonFile struct {
	vulnindex.FileSummary
	Status models.FileStatus `json:"status,omitempty"`
}

type jsonReport struct {
	Scan       models.ScanRecord            `json:"scan"`
	Total      int                          `json:"total"`
	BySeverity map[string]int               `json:"by_severity"`
	Files      []jsonFile                   `json:"files"`
	Unassigned []models.Vulnerability       `json:"unassigned,omitempty"`
	FileStatus map[string]models.FileStatus `json:"file_status,omitempty"`
	Policy     *policy.Result               `json:"policy,omitempty"`
	CachedAt   *time.Time                   `json:"cached_at,omitempty"`
}

// Generate writes the report as JSON
func (r *JSONReporter) Generate(report *Report) error {
	out := jsonReport{
		Scan:       report.Scan,
		BySeverity: map[string]int{},
		Files:      []jsonFile{},
		Policy:     report.Policy,
	}
	if report.Index != nil {
		out.Total = report.Index.Total()
		for sev, n := range report.Index.CountsBySeverity() {
			out.BySeverity[string(sev)] = n
		}
		if report.FileFilter == "" {
			out.Unassigned = report.Index.Unassigned()
			out.FileStatus = report.FileStatus
		}
	}
	for _, fs := range report.files() {
		out.Files = append(out.Files, jsonFile{FileSummary: fs, Status: report.FileStatus[fs.Path]})
	}
	if !report.FetchedAt.IsZero() {
		t := report.FetchedAt
		out.CachedAt = &t
	}

	return r.write(out)
}

func (r *JSONReporter) write(v interface{}) error {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return err
	}

	_, err = r.writer.Write(data)
	if err != nil {
		return err
	}

	// Add trailing newline for terminal output
	_, err = r.writer.Write([]byte("\n"))
	return err
}
