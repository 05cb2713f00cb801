package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/apiclient"
	"github.com/ppiankov/scanfix/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// MinAPIVersion is the oldest backend API this client talks to.
const MinAPIVersion = "v1.0.0"

const doctorTimeout = 5 * time.Second

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment readiness and diagnose common problems",
	Long: `Doctor validates your scanfix setup end-to-end:

  1. Config file: found and readable?
  2. API connectivity: reachable and a supported version?
  3. Session token: accepted by the backend?
  4. GitHub credential: stored for pull requests?
  5. Repository: configured and known to the backend?
  6. Storage: scan cache directory writable?

Fix the issues it reports, then run 'scanfix browse' with confidence.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text",
		"output format: text or json")
}

type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

type doctorResult struct {
	Checks  []doctorCheck `json:"checks"`
	Summary string        `json:"summary"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), 4*doctorTimeout)
	defer cancel()

	client := apiclient.New(cfg.APIURL, cfg.Token, apiclient.WithTimeout(doctorTimeout))

	var checks []doctorCheck

	// 1. Config file
	checks = append(checks, checkConfig())

	// 2. API connectivity and version
	apiCheck, reachable := checkAPI(ctx, client)
	checks = append(checks, apiCheck)

	// 3-5 need the backend
	if reachable {
		checks = append(checks, checkSession(ctx, client))
		checks = append(checks, checkCredential(ctx, client))
		checks = append(checks, checkRepository(ctx, client))
	}

	// 6. Storage directory
	checks = append(checks, checkStorage())

	// Build summary
	fails, warns := 0, 0
	for _, c := range checks {
		switch c.Status {
		case "fail":
			fails++
		case "warn":
			warns++
		}
	}

	summary := "all checks passed"
	if fails > 0 {
		summary = fmt.Sprintf("%d issue(s) found", fails)
	} else if warns > 0 {
		summary = fmt.Sprintf("ok with %d warning(s)", warns)
	}

	result := doctorResult{Checks: checks, Summary: summary}

	if doctorFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	return writeDoctorText(result)
}

func writeDoctorText(result doctorResult) error {
	icons := map[string]string{
		"ok":   "✓",
		"warn": "△",
		"fail": "✗",
	}

	for _, c := range result.Checks {
		icon := icons[c.Status]
		if c.Detail != "" {
			fmt.Printf("  %s %-20s %s\n", icon, c.Name, c.Detail)
		} else {
			fmt.Printf("  %s %s\n", icon, c.Name)
		}
	}

	fmt.Printf("\n%s\n", result.Summary)
	return nil
}

func checkConfig() doctorCheck {
	path := config.ConfigPath()
	if configFile != "" {
		path = configFile
	}

	if _, err := os.Stat(path); err != nil {
		return doctorCheck{
			Name:   "config",
			Status: "warn",
			Detail: "no config file found (using defaults). Run: scanfix use <repository-id>",
		}
	}

	return doctorCheck{
		Name:   "config",
		Status: "ok",
		Detail: path,
	}
}

// checkAPI reports whether the backend answers and speaks a supported version.
func checkAPI(ctx context.Context, client *apiclient.Client) (doctorCheck, bool) {
	info, err := client.Version(ctx)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return doctorCheck{
				Name:   "api",
				Status: "warn",
				Detail: fmt.Sprintf("%s (version endpoint missing)", cfg.APIURL),
			}, true
		}
		return doctorCheck{
			Name:   "api",
			Status: "fail",
			Detail: fmt.Sprintf("unreachable (%v)", err),
		}, false
	}

	v := canonicalVersion(info.Version)
	if !semver.IsValid(v) {
		return doctorCheck{
			Name:   "api",
			Status: "warn",
			Detail: fmt.Sprintf("%s (unrecognized version %q)", cfg.APIURL, info.Version),
		}, true
	}
	if semver.Compare(v, MinAPIVersion) < 0 {
		return doctorCheck{
			Name:   "api",
			Status: "fail",
			Detail: fmt.Sprintf("backend %s is older than %s", v, MinAPIVersion),
		}, true
	}

	return doctorCheck{
		Name:   "api",
		Status: "ok",
		Detail: fmt.Sprintf("%s (%s)", cfg.APIURL, v),
	}, true
}

// canonicalVersion accepts versions with or without the leading "v".
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

func checkSession(ctx context.Context, client *apiclient.Client) doctorCheck {
	if cfg.Token == "" {
		return doctorCheck{
			Name:   "session",
			Status: "warn",
			Detail: "no session token. Set SCANFIX_TOKEN or token: in config",
		}
	}
	if _, err := client.TokenStatus(ctx); err != nil && apiclient.IsUnauthorized(err) {
		return doctorCheck{
			Name:   "session",
			Status: "fail",
			Detail: "session token rejected by the backend",
		}
	}
	return doctorCheck{
		Name:   "session",
		Status: "ok",
		Detail: "accepted",
	}
}

func checkCredential(ctx context.Context, client *apiclient.Client) doctorCheck {
	status, err := client.TokenStatus(ctx)
	if err != nil {
		return doctorCheck{
			Name:   "github token",
			Status: "warn",
			Detail: fmt.Sprintf("status unavailable (%v)", err),
		}
	}
	if !status.HasToken {
		return doctorCheck{
			Name:   "github token",
			Status: "warn",
			Detail: "not stored. Pull requests will prompt for one. Run: scanfix token set",
		}
	}
	if !status.Valid {
		return doctorCheck{
			Name:   "github token",
			Status: "fail",
			Detail: "stored but invalid. Run: scanfix token set",
		}
	}

	detail := "valid"
	if status.Username != "" {
		detail = fmt.Sprintf("valid (%s)", status.Username)
	}
	return doctorCheck{
		Name:   "github token",
		Status: "ok",
		Detail: detail,
	}
}

func checkRepository(ctx context.Context, client *apiclient.Client) doctorCheck {
	if cfg.RepositoryID == "" {
		return doctorCheck{
			Name:   "repository",
			Status: "warn",
			Detail: "not set. Use --repo, repository_id:, or run: scanfix use <id>",
		}
	}
	if err := api.ValidateID("repository", cfg.RepositoryID); err != nil {
		return doctorCheck{
			Name:   "repository",
			Status: "fail",
			Detail: fmt.Sprintf("invalid repository: %v", err),
		}
	}

	repo, err := client.GetRepository(ctx, cfg.RepositoryID)
	if err != nil {
		return doctorCheck{
			Name:   "repository",
			Status: "fail",
			Detail: fmt.Sprintf("%s: %v", cfg.RepositoryID, err),
		}
	}

	detail := repo.FullName
	if repo.LatestScan != nil {
		detail = fmt.Sprintf("%s (latest scan %s: %s)", repo.FullName, repo.LatestScan.ID, repo.LatestScan.Status)
	}
	return doctorCheck{
		Name:   "repository",
		Status: "ok",
		Detail: detail,
	}
}

func checkStorage() doctorCheck {
	storagePath := cfg.StorageDir
	if storagePath == "" {
		storagePath = ".scanfix"
	}

	// Check if directory exists and is writable
	info, err := os.Stat(storagePath)
	if err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "ok",
			Detail: fmt.Sprintf("%s (will be created on first cached scan)", storagePath),
		}
	}

	if !info.IsDir() {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s exists but is not a directory", storagePath),
		}
	}

	// Try writing a temp file to check write access
	tmpFile := filepath.Join(storagePath, ".doctor-check")
	if err := os.WriteFile(tmpFile, []byte("ok"), 0600); err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s not writable: %v", storagePath, err),
		}
	}
	_ = os.Remove(tmpFile)

	return doctorCheck{
		Name:   "storage",
		Status: "ok",
		Detail: storagePath,
	}
}

// joinMax joins up to n strings with ", ".
func joinMax(s []string, n int) string {
	if len(s) <= n {
		return strings.Join(s, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(s[:n], ", "), len(s)-n)
}
