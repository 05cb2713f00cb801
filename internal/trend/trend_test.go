package trend

import (
	"math"
	"testing"

	"github.com/ppiankov/scanfix/internal/models"
)

func snapshot(id string, vulns ...models.Vulnerability) *models.ScanSnapshot {
	return &models.ScanSnapshot{
		Scan:            models.ScanRecord{ID: id, Status: models.ScanCompleted},
		Vulnerabilities: vulns,
	}
}

func vuln(id, rule, path string, sev models.Severity) models.Vulnerability {
	return models.Vulnerability{ID: id, RuleID: rule, FilePath: path, Severity: sev, Title: rule}
}

func TestCompareDirection(t *testing.T) {
	a := vuln("a1", "sqli", "app.py", models.SeverityHigh)
	b := vuln("b1", "xss", "web.js", models.SeverityMedium)
	c := vuln("c1", "secret", "config.py", models.SeverityCritical)

	tests := []struct {
		name          string
		baseline      *models.ScanSnapshot
		current       *models.ScanSnapshot
		direction     string
		changePercent float64
		newCount      int
		resolved      int
	}{
		{"improving", snapshot("s1", a, b), snapshot("s2", a), Improving, -50.0, 0, 1},
		{"degrading", snapshot("s1", a), snapshot("s2", a, b, c), Degrading, 200.0, 2, 0},
		{"stable swap", snapshot("s1", a, b), snapshot("s2", a, c), Stable, 0.0, 1, 1},
		{"from clean", snapshot("s1"), snapshot("s2", c), Degrading, 100.0, 1, 0},
		{"both clean", snapshot("s1"), snapshot("s2"), Stable, 0.0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := Compare(tt.baseline, tt.current)
			if cmp.Summary.Direction != tt.direction {
				t.Errorf("Direction = %q, want %q", cmp.Summary.Direction, tt.direction)
			}
			if math.Abs(cmp.Summary.ChangePercent-tt.changePercent) > 0.01 {
				t.Errorf("ChangePercent = %.2f, want %.2f", cmp.Summary.ChangePercent, tt.changePercent)
			}
			if cmp.Summary.NewCount != tt.newCount || cmp.Summary.ResolvedCount != tt.resolved {
				t.Errorf("new/resolved = %d/%d, want %d/%d",
					cmp.Summary.NewCount, cmp.Summary.ResolvedCount, tt.newCount, tt.resolved)
			}
			if cmp.Baseline != "s1" || cmp.Current != "s2" {
				t.Errorf("scan ids = %s/%s", cmp.Baseline, cmp.Current)
			}
		})
	}
}

func TestCompareIgnoresIDsAndLines(t *testing.T) {
	line3, line9 := 3, 9
	before := vuln("old-id", "sqli", "app.py", models.SeverityHigh)
	before.LineNumber = &line3
	after := vuln("new-id", "sqli", "app.py", models.SeverityHigh)
	after.LineNumber = &line9

	cmp := Compare(snapshot("s1", before), snapshot("s2", after))
	if cmp.Summary.NewCount != 0 || cmp.Summary.ResolvedCount != 0 {
		t.Errorf("moved finding should match, got new=%d resolved=%d", cmp.Summary.NewCount, cmp.Summary.ResolvedCount)
	}
}

func TestCompareCountsDuplicates(t *testing.T) {
	a1 := vuln("a1", "sqli", "app.py", models.SeverityHigh)
	a2 := vuln("a2", "sqli", "app.py", models.SeverityHigh)
	a3 := vuln("a3", "sqli", "app.py", models.SeverityHigh)

	cmp := Compare(snapshot("s1", a1), snapshot("s2", a2, a3))
	if cmp.Summary.NewCount != 1 {
		t.Errorf("NewCount = %d, want 1", cmp.Summary.NewCount)
	}
	if cmp.Summary.NewBySeverity[models.SeverityHigh] != 1 {
		t.Errorf("NewBySeverity = %v", cmp.Summary.NewBySeverity)
	}
}

func TestCompareSortsBySeverity(t *testing.T) {
	low := vuln("l", "style", "a.py", models.SeverityLow)
	crit := vuln("c", "secret", "z.py", models.SeverityCritical)
	high := vuln("h", "sqli", "b.py", models.SeverityHigh)

	cmp := Compare(snapshot("s1"), snapshot("s2", low, crit, high))
	got := []string{cmp.New[0].ID, cmp.New[1].ID, cmp.New[2].ID}
	want := []string{"c", "h", "l"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestIndicator(t *testing.T) {
	cases := map[string]string{Improving: "↓", Degrading: "↑", Stable: "→", "": "?"}
	for dir, want := range cases {
		if got := Indicator(dir); got != want {
			t.Errorf("Indicator(%q) = %q, want %q", dir, got, want)
		}
	}
}
