package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/vulnindex"
)

func intPtr(v int) *int { return &v }

func baseIndex() *vulnindex.Index {
	return vulnindex.Build([]models.Vulnerability{
		{ID: "v1", FilePath: "src/db.py", Severity: models.SeverityCritical, Title: "SQL injection"},
		{ID: "v2", FilePath: "config/secrets.yaml", Severity: models.SeverityMedium, Title: "Hardcoded key"},
		{ID: "v3", FilePath: "src/app.py", Severity: models.SeverityLow, Title: "Debug enabled"},
	})
}

func TestEvaluateNilPolicy(t *testing.T) {
	var p *Policy
	result := p.Evaluate(baseIndex())
	if !result.Pass {
		t.Error("nil policy should pass")
	}
}

func TestMaxTotalPass(t *testing.T) {
	p := &Policy{Rules: Rules{MaxTotal: intPtr(5)}}
	result := p.Evaluate(baseIndex())
	if !result.Pass {
		t.Errorf("expected pass, got violations: %v", result.Violations)
	}
}

func TestMaxTotalFail(t *testing.T) {
	p := &Policy{Rules: Rules{MaxTotal: intPtr(2)}}
	result := p.Evaluate(baseIndex())
	if result.Pass {
		t.Error("expected fail: 3 vulnerabilities exceeds limit 2")
	}
	if len(result.Violations) != 1 || result.Violations[0].Rule != "max_total" {
		t.Errorf("expected max_total violation, got %v", result.Violations)
	}
}

func TestMaxCriticalPass(t *testing.T) {
	p := &Policy{Rules: Rules{MaxCritical: intPtr(1)}}
	result := p.Evaluate(baseIndex())
	if !result.Pass {
		t.Errorf("expected pass, got violations: %v", result.Violations)
	}
}

func TestMaxCriticalFail(t *testing.T) {
	p := &Policy{Rules: Rules{MaxCritical: intPtr(0)}}
	result := p.Evaluate(baseIndex())
	if result.Pass {
		t.Error("expected fail: 1 critical exceeds limit 0")
	}
	if result.Violations[0].Rule != "max_critical" {
		t.Errorf("expected max_critical, got %s", result.Violations[0].Rule)
	}
}

func TestMaxHighPass(t *testing.T) {
	p := &Policy{Rules: Rules{MaxHigh: intPtr(0)}}
	result := p.Evaluate(baseIndex())
	if !result.Pass {
		t.Errorf("expected pass (0 high), got violations: %v", result.Violations)
	}
}

func TestMaxMediumFail(t *testing.T) {
	p := &Policy{Rules: Rules{MaxMedium: intPtr(0)}}
	result := p.Evaluate(baseIndex())
	if result.Pass || result.Violations[0].Rule != "max_medium" {
		t.Errorf("expected max_medium violation, got %v", result.Violations)
	}
}

func TestForbidPathsGlob(t *testing.T) {
	p := &Policy{Rules: Rules{ForbidPaths: []string{"config/*.yaml"}}}
	result := p.Evaluate(baseIndex())
	if result.Pass {
		t.Fatal("expected fail: config/secrets.yaml is forbidden")
	}
	if !strings.Contains(result.Violations[0].Message, "config/secrets.yaml") {
		t.Errorf("expected path in message, got %s", result.Violations[0].Message)
	}
}

func TestForbidPathsPrefix(t *testing.T) {
	p := &Policy{Rules: Rules{ForbidPaths: []string{"src/"}}}
	result := p.Evaluate(baseIndex())
	if result.Pass {
		t.Fatal("expected fail: src/ has vulnerabilities")
	}
	if !strings.Contains(result.Violations[0].Message, "src/app.py, src/db.py") {
		t.Errorf("expected sorted paths in message, got %s", result.Violations[0].Message)
	}
}

func TestForbidPathsPass(t *testing.T) {
	p := &Policy{Rules: Rules{ForbidPaths: []string{"vendor/", "*.go"}}}
	result := p.Evaluate(baseIndex())
	if !result.Pass {
		t.Errorf("expected pass, got violations: %v", result.Violations)
	}
}

func TestMultipleViolations(t *testing.T) {
	p := &Policy{
		Rules: Rules{
			MaxTotal:    intPtr(0),
			MaxCritical: intPtr(0),
			ForbidPaths: []string{"src/"},
		},
	}
	result := p.Evaluate(baseIndex())
	if result.Pass {
		t.Error("expected fail")
	}
	if len(result.Violations) != 3 {
		t.Errorf("expected 3 violations, got %d: %v", len(result.Violations), result.Violations)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".scanfix-policy.yaml")

	content := `version: "1"
rules:
  max_total: 10
  max_critical: 0
  max_medium: 4
  forbid_paths:
    - secrets/
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if p == nil {
		t.Fatal("expected policy, got nil")
	}
	if p.Version != "1" {
		t.Errorf("expected version 1, got %s", p.Version)
	}
	if p.Rules.MaxTotal == nil || *p.Rules.MaxTotal != 10 {
		t.Errorf("expected max_total 10, got %v", p.Rules.MaxTotal)
	}
	if p.Rules.MaxMedium == nil || *p.Rules.MaxMedium != 4 {
		t.Errorf("expected max_medium 4, got %v", p.Rules.MaxMedium)
	}
	if p.Rules.MaxHigh != nil {
		t.Errorf("expected max_high unset, got %v", *p.Rules.MaxHigh)
	}
	if len(p.Rules.ForbidPaths) != 1 || p.Rules.ForbidPaths[0] != "secrets/" {
		t.Errorf("expected forbid secrets/, got %v", p.Rules.ForbidPaths)
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("rules: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	p, err := LoadFromFile("/nonexistent/path")
	if err != nil {
		t.Errorf("expected nil error for missing file, got %v", err)
	}
	if p != nil {
		t.Error("expected nil policy for missing file")
	}
}

func TestFindPolicyFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, ".scanfix-policy.yml")
	if err := os.WriteFile(want, []byte("version: \"1\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	defer func() { _ = os.Chdir(wd) }()
	if err := os.Chdir(nested); err != nil {
		t.Fatal(err)
	}

	got := FindPolicyFile()
	// Resolve symlinks (macOS /var -> /private/var)
	gotReal, _ := filepath.EvalSymlinks(got)
	wantReal, _ := filepath.EvalSymlinks(want)
	if gotReal != wantReal {
		t.Errorf("expected %s, got %s", wantReal, gotReal)
	}
}
