package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/scanfix/internal/policy"
)

func TestJSONReporterGenerate(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(&buf, true)

	if err := r.Generate(NewReport(sampleSnapshot())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Scan struct {
			ID string `json:"id"`
		} `json:"scan"`
		Total      int            `json:"total"`
		BySeverity map[string]int `json:"by_severity"`
		Files      []struct {
			Path    string `json:"path"`
			Highest string `json:"highest_severity"`
			Count   int    `json:"count"`
			Status  string `json:"status"`
		} `json:"files"`
		Unassigned []json.RawMessage `json:"unassigned"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if decoded.Scan.ID != "scan-1" {
		t.Errorf("expected scan-1, got %s", decoded.Scan.ID)
	}
	if decoded.Total != 4 {
		t.Errorf("expected total 4, got %d", decoded.Total)
	}
	if decoded.BySeverity["critical"] != 1 {
		t.Errorf("expected 1 critical, got %d", decoded.BySeverity["critical"])
	}
	if len(decoded.Files) != 2 || decoded.Files[0].Path != "a.py" || decoded.Files[0].Highest != "critical" {
		t.Errorf("unexpected files %+v", decoded.Files)
	}
	if decoded.Files[0].Status != "vulnerable" {
		t.Errorf("expected status vulnerable, got %s", decoded.Files[0].Status)
	}
	if len(decoded.Unassigned) != 1 {
		t.Errorf("expected 1 unassigned, got %d", len(decoded.Unassigned))
	}
}

func TestJSONReporterCompact(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONReporter(&buf, false).Generate(NewReport(sampleSnapshot())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := strings.TrimSuffix(buf.String(), "\n")
	if strings.Contains(out, "\n") {
		t.Error("compact output should be a single line")
	}
}

func TestJSONReporterPolicyAndCache(t *testing.T) {
	var buf bytes.Buffer
	report := NewReport(sampleSnapshot())
	report.Policy = &policy.Result{Pass: true}
	report.FetchedAt = time.Date(2026, 2, 16, 8, 0, 0, 0, time.UTC)

	if err := NewJSONReporter(&buf, false).Generate(report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := decoded["policy"]; !ok {
		t.Error("expected policy in output")
	}
	if _, ok := decoded["cached_at"]; !ok {
		t.Error("expected cached_at in output")
	}
}

func TestJSONReporterEmptyFilesIsArray(t *testing.T) {
	var buf bytes.Buffer
	report := NewReport(sampleSnapshot())
	report.FileFilter = "nothing.py"

	_ = NewJSONReporter(&buf, false).Generate(report)
	if !strings.Contains(buf.String(), `"files":[]`) {
		t.Errorf("expected empty files array, got %s", buf.String())
	}
}
