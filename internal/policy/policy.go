package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/vulnindex"
	"gopkg.in/yaml.v3"
)

// Policy defines gating rules for scan results.
type Policy struct {
	Version string `yaml:"version"`
	Rules   Rules  `yaml:"rules"`
}

// Rules contains all configurable policy rules.
type Rules struct {
	MaxTotal    *int     `yaml:"max_total,omitempty"`
	MaxCritical *int     `yaml:"max_critical,omitempty"`
	MaxHigh     *int     `yaml:"max_high,omitempty"`
	MaxMedium   *int     `yaml:"max_medium,omitempty"`
	ForbidPaths []string `yaml:"forbid_paths,omitempty"`
}

// Violation is a single policy failure.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result holds the outcome of a policy check.
type Result struct {
	Pass       bool        `json:"pass"`
	Violations []Violation `json:"violations"`
}

// LoadFromFile reads a policy file. A missing file yields a nil policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	return &p, nil
}

// FindPolicyFile searches for a policy file in the current directory
// and parent directories up to the filesystem root.
func FindPolicyFile() string {
	names := []string{".scanfix-policy.yaml", ".scanfix-policy.yml"}

	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Evaluate checks a vulnerability index against the policy rules.
func (p *Policy) Evaluate(idx *vulnindex.Index) *Result {
	if p == nil || idx == nil {
		return &Result{Pass: true}
	}

	var violations []Violation
	counts := idx.CountsBySeverity()

	// max_total
	if p.Rules.MaxTotal != nil && idx.Total() > *p.Rules.MaxTotal {
		violations = append(violations, Violation{
			Rule:    "max_total",
			Message: fmt.Sprintf("total vulnerabilities %d exceeds limit %d", idx.Total(), *p.Rules.MaxTotal),
		})
	}

	limits := []struct {
		rule     string
		limit    *int
		severity models.Severity
	}{
		{"max_critical", p.Rules.MaxCritical, models.SeverityCritical},
		{"max_high", p.Rules.MaxHigh, models.SeverityHigh},
		{"max_medium", p.Rules.MaxMedium, models.SeverityMedium},
	}
	for _, l := range limits {
		if l.limit == nil {
			continue
		}
		if count := counts[l.severity]; count > *l.limit {
			violations = append(violations, Violation{
				Rule:    l.rule,
				Message: fmt.Sprintf("%s vulnerabilities %d exceeds limit %d", l.severity, count, *l.limit),
			})
		}
	}

	// forbid_paths
	for _, pattern := range p.Rules.ForbidPaths {
		matched := matchingFiles(idx, pattern)
		if len(matched) == 0 {
			continue
		}
		violations = append(violations, Violation{
			Rule:    "forbid_paths",
			Message: fmt.Sprintf("forbidden path %q has vulnerabilities in %s", pattern, strings.Join(matched, ", ")),
		})
	}

	return &Result{
		Pass:       len(violations) == 0,
		Violations: violations,
	}
}

// matchingFiles returns indexed files matched by pattern. A pattern is a
// filepath.Match glob against the full path, or a directory prefix when it
// ends in "/".
func matchingFiles(idx *vulnindex.Index, pattern string) []string {
	var out []string
	for _, fs := range idx.Files() {
		if strings.HasSuffix(pattern, "/") {
			if strings.HasPrefix(fs.Path, pattern) {
				out = append(out, fs.Path)
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, fs.Path); ok {
			out = append(out, fs.Path)
		}
	}
	sort.Strings(out)
	return out
}
