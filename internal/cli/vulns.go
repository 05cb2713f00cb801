package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/policy"
	"github.com/ppiankov/scanfix/internal/reporter"
	"github.com/spf13/cobra"
)

var (
	vulnsFormat   string
	vulnsFile     string
	vulnsPolicy   string
	vulnsNoPolicy bool
	vulnsNoCache  bool
	vulnsPretty   bool
)

var vulnsCmd = &cobra.Command{
	Use:   "vulns [scan-id]",
	Short: "Report the vulnerabilities of a scan",
	Long: `Report the vulnerabilities of a scan grouped by file, highest severity
first (the repository's latest scan by default).

A policy file (.scanfix-policy.yaml, searched upward from the working
directory, or --policy) turns the report into a CI gate: any violation
exits with code 1.`,
	Example: `  scanfix vulns
  scanfix vulns 3f2a... --file src/app.py
  scanfix vulns --format json --policy ci/policy.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVulns,
}

func init() {
	vulnsCmd.Flags().StringVar(&vulnsFormat, "format", "",
		"output format: text or json (default from config)")
	vulnsCmd.Flags().StringVar(&vulnsFile, "file", "",
		"only report vulnerabilities of this file")
	vulnsCmd.Flags().StringVar(&vulnsPolicy, "policy", "",
		"policy file (default: nearest .scanfix-policy.yaml)")
	vulnsCmd.Flags().BoolVar(&vulnsNoPolicy, "no-policy", false,
		"skip policy evaluation")
	vulnsCmd.Flags().BoolVar(&vulnsNoCache, "no-cache", false,
		"always fetch results from the backend")
	vulnsCmd.Flags().BoolVar(&vulnsPretty, "pretty", true,
		"indent JSON output")
}

func runVulns(cmd *cobra.Command, args []string) error {
	format := vulnsFormat
	if format == "" {
		format = cfg.Format
	}
	if format != "text" && format != "json" {
		return &ValidationError{Message: fmt.Sprintf("invalid format %q (use text or json)", format)}
	}
	if vulnsFile != "" {
		vulnsFile = strings.Trim(vulnsFile, "/")
		if err := api.ValidatePath(vulnsFile); err != nil {
			return &ValidationError{Message: err.Error()}
		}
	}

	ctx := commandContext(cmd)
	client := newClient()

	var requested string
	if len(args) > 0 {
		requested = args[0]
	}
	scanID, err := resolveScanID(ctx, client, requested)
	if err != nil {
		return err
	}
	if scanID == "" {
		return &ValidationError{Message: "repository has no scans yet"}
	}

	snap, cached, err := fetchSnapshot(ctx, client, openStore(), scanID, !vulnsNoCache)
	if err != nil {
		return err
	}
	if snap.Scan.Status.IsActive() {
		logVerbose("Scan %s is still %s; no results yet", scanID, snap.Scan.Status)
	}

	report := reporter.NewReport(snap)
	report.FileFilter = vulnsFile
	if cached {
		report.FetchedAt = snap.FetchedAt
	}

	pol, err := loadPolicy()
	if err != nil {
		return err
	}
	if pol != nil && snap.Scan.Status == models.ScanCompleted {
		report.Policy = pol.Evaluate(report.Index)
	}

	var rep interface {
		Generate(*reporter.Report) error
	}
	if format == "json" {
		rep = reporter.NewJSONReporter(os.Stdout, vulnsPretty)
	} else {
		rep = reporter.NewTextReporter(os.Stdout)
	}
	if err := rep.Generate(report); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if report.Policy != nil && !report.Policy.Pass {
		return &PolicyViolationError{Violations: len(report.Policy.Violations)}
	}
	return nil
}

// loadPolicy returns the policy named by --policy or found on disk.
func loadPolicy() (*policy.Policy, error) {
	if vulnsNoPolicy {
		return nil, nil
	}
	path := vulnsPolicy
	if path == "" {
		path = policy.FindPolicyFile()
		if path == "" {
			return nil, nil
		}
	}
	pol, err := policy.LoadFromFile(path)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid policy %s: %v", path, err)}
	}
	if vulnsPolicy != "" && pol == nil {
		return nil, &ValidationError{Message: fmt.Sprintf("policy file %s not found", path)}
	}
	logVerbose("Using policy %s", path)
	return pol, nil
}
