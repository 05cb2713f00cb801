package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/apiclient"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/poller"
	"github.com/ppiankov/scanfix/internal/trend"
	"github.com/ppiankov/scanfix/internal/vulnindex"
	"github.com/spf13/cobra"
)

var (
	scanWatch    bool
	scanFormat   string
	cachedDelete string

	compareFormat  string
	compareFailNew bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Inspect scans and the local scan cache",
}

var scanStatusCmd = &cobra.Command{
	Use:   "status [scan-id]",
	Short: "Show the status of a scan",
	Long: `Show the status of a scan (the repository's latest scan by default).

With --watch, the scan is polled until it completes or fails. Results of
a completed scan are fetched once and cached locally.`,
	Example: `  scanfix scan status
  scanfix scan status 3f2a... --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScanStatus,
}

var scanCachedCmd = &cobra.Command{
	Use:   "cached",
	Short: "List or delete locally cached scan results",
	Args:  cobra.NoArgs,
	RunE:  runScanCached,
}

var scanCompareCmd = &cobra.Command{
	Use:   "compare <baseline-scan> [current-scan]",
	Short: "Show findings that appeared or were resolved between two scans",
	Long: `Compare the findings of two completed scans. The current scan defaults
to the repository's latest scan. Findings are matched by rule and file,
so moved lines do not count as new findings.`,
	Example: `  scanfix scan compare 3f2a...
  scanfix scan compare 3f2a... 9b1c... --fail-new`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runScanCompare,
}

func init() {
	scanStatusCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false,
		"poll until the scan finishes")
	scanStatusCmd.Flags().StringVar(&scanFormat, "format", "text",
		"output format: text or json")
	scanCachedCmd.Flags().StringVar(&cachedDelete, "delete", "",
		"delete the cached results of this scan")

	scanCompareCmd.Flags().StringVar(&compareFormat, "format", "text",
		"output format: text or json")
	scanCompareCmd.Flags().BoolVar(&compareFailNew, "fail-new", false,
		"exit with the policy code when new findings appeared")

	scanCmd.AddCommand(scanStatusCmd)
	scanCmd.AddCommand(scanCachedCmd)
	scanCmd.AddCommand(scanCompareCmd)
}

func runScanStatus(cmd *cobra.Command, args []string) error {
	if scanFormat != "text" && scanFormat != "json" {
		return &ValidationError{Message: fmt.Sprintf("invalid format %q (use text or json)", scanFormat)}
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

	scan, err := client.GetScan(ctx, scanID)
	if err != nil {
		return fmt.Errorf("failed to load scan %s: %w", scanID, err)
	}

	if !scanWatch || scan.Status.IsTerminal() {
		return printScan(*scan, nil)
	}

	final, snap, err := watchScan(ctx, client, *scan)
	if err != nil {
		return err
	}
	return printScan(final, snap)
}

// watchScan polls an active scan until it reaches a terminal status. The
// snapshot is non-nil when the scan completed and its results were fetched.
func watchScan(ctx context.Context, client *apiclient.Client, scan models.ScanRecord) (models.ScanRecord, *models.ScanSnapshot, error) {
	store := openStore()

	final := scan
	var snap *models.ScanSnapshot
	var fetchErr error

	p := poller.New(client,
		poller.WithInterval(cfg.PollInterval),
		poller.WithLogf(logDebug),
		poller.WithOnUpdate(func(s models.ScanRecord) {
			if s.Status != final.Status && scanFormat == "text" {
				fmt.Printf("%s  %s -> %s\n", time.Now().Format("15:04:05"), final.Status, s.Status)
			}
			final = s
		}),
		poller.WithOnCompleted(func(ctx context.Context, s models.ScanRecord) {
			out := &models.ScanSnapshot{Scan: s}
			if err := fillResults(ctx, client, out); err != nil {
				fetchErr = err
				return
			}
			snap = out
			if store != nil {
				if err := store.SaveSnapshot(out); err != nil {
					logVerbose("Failed to cache scan %s: %v", s.ID, err)
				}
			}
		}),
	)

	if scanFormat == "text" {
		fmt.Printf("Watching scan %s (%s), polling every %s\n", scan.ID, scan.Status, cfg.PollInterval)
	}
	p.Start(ctx, scan.ID, scan.Status)
	<-p.Done()

	if !final.Status.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return final, nil, fmt.Errorf("stopped watching scan %s: %w", scan.ID, err)
		}
	}
	if fetchErr != nil {
		return final, nil, fetchErr
	}
	return final, snap, nil
}

func printScan(scan models.ScanRecord, snap *models.ScanSnapshot) error {
	if scanFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if snap != nil {
			return enc.Encode(snap)
		}
		return enc.Encode(scan)
	}

	fmt.Printf("Scan:      %s\n", scan.ID)
	fmt.Printf("Status:    %s\n", scan.Status)
	if !scan.CreatedAt.IsZero() {
		fmt.Printf("Created:   %s\n", scan.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if scan.StartedAt != nil {
		fmt.Printf("Started:   %s\n", scan.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if scan.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", scan.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if scan.ErrorMessage != "" {
		fmt.Printf("Error:     %s\n", scan.ErrorMessage)
	}

	if snap != nil {
		idx := vulnindex.Build(snap.Vulnerabilities)
		counts := idx.CountsBySeverity()
		var parts []string
		for _, s := range models.Severities {
			if counts[s] > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", s, counts[s]))
			}
		}
		fmt.Printf("Findings:  %d", idx.Total())
		if len(parts) > 0 {
			fmt.Printf(" (%s)", strings.Join(parts, ", "))
		}
		fmt.Println()
	}

	if scan.Status == models.ScanFailed {
		return fmt.Errorf("scan %s failed", scan.ID)
	}
	return nil
}

func runScanCached(cmd *cobra.Command, args []string) error {
	store, err := newStore()
	if err != nil {
		return fmt.Errorf("failed to resolve storage: %w", err)
	}

	if cachedDelete != "" {
		if err := api.ValidateID("scan", cachedDelete); err != nil {
			return &ValidationError{Message: err.Error()}
		}
		if err := store.DeleteSnapshot(cachedDelete); err != nil {
			return err
		}
		fmt.Printf("Deleted cached scan %s\n", cachedDelete)
		return nil
	}

	infos, err := store.ListSnapshots()
	if err != nil {
		return fmt.Errorf("failed to list cached scans: %w", err)
	}
	if len(infos) == 0 {
		fmt.Printf("No cached scans in %s\n", store.GetStoragePath())
		return nil
	}

	fmt.Printf("Cached scans (%s):\n", store.GetStoragePath())
	for _, info := range infos {
		fmt.Printf("  %s  %s\n", info.FetchedAt.Local().Format("2006-01-02 15:04"), info.ScanID)
	}
	return nil
}

func runScanCompare(cmd *cobra.Command, args []string) error {
	if compareFormat != "text" && compareFormat != "json" {
		return &ValidationError{Message: fmt.Sprintf("invalid format %q (use text or json)", compareFormat)}
	}
	if err := api.ValidateID("scan", args[0]); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	ctx := commandContext(cmd)
	client := newClient()
	store := openStore()

	var requested string
	if len(args) > 1 {
		requested = args[1]
	}
	currentID, err := resolveScanID(ctx, client, requested)
	if err != nil {
		return err
	}
	if currentID == "" {
		return &ValidationError{Message: "repository has no scans yet"}
	}
	if currentID == args[0] {
		return &ValidationError{Message: "baseline and current scan are the same"}
	}

	var snaps [2]*models.ScanSnapshot
	for i, id := range []string{args[0], currentID} {
		snap, _, err := fetchSnapshot(ctx, client, store, id, true)
		if err != nil {
			return err
		}
		if snap.Scan.Status != models.ScanCompleted {
			return &ValidationError{Message: fmt.Sprintf("scan %s is %s, only completed scans can be compared", id, snap.Scan.Status)}
		}
		snaps[i] = snap
	}

	result := trend.Compare(snaps[0], snaps[1])
	logVerbose("Compared %s with %s: %d new, %d resolved", result.Baseline, result.Current,
		result.Summary.NewCount, result.Summary.ResolvedCount)

	if compareFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printComparison(os.Stdout, result)
	}

	if compareFailNew && result.Summary.NewCount > 0 {
		return &PolicyViolationError{Violations: result.Summary.NewCount}
	}
	return nil
}

func printComparison(w io.Writer, r *trend.Comparison) {
	p := func(format string, args ...interface{}) {
		_, _ = fmt.Fprintf(w, format, args...)
	}

	p("Baseline: %s\n", r.Baseline)
	p("Current:  %s\n\n", r.Current)

	deltaSign := "+"
	if r.Summary.Delta < 0 {
		deltaSign = ""
	}
	p("Findings: %d → %d (%s%d) %s\n", r.Summary.BaselineTotal, r.Summary.CurrentTotal,
		deltaSign, r.Summary.Delta, trend.Indicator(r.Summary.Direction))
	p("New: %d   Resolved: %d\n\n", r.Summary.NewCount, r.Summary.ResolvedCount)

	if len(r.New) > 0 {
		p("New Findings:\n")
		p("--------------------------------------------------\n")
		for _, v := range r.New {
			p("  [%s] %s: %s\n", strings.ToUpper(string(v.Severity)), v.FilePath, v.Title)
		}
		p("\n")
	}

	if len(r.Resolved) > 0 {
		p("Resolved Findings:\n")
		p("--------------------------------------------------\n")
		for _, v := range r.Resolved {
			p("  ✓ %s: %s\n", v.FilePath, v.Title)
		}
		p("\n")
	}

	switch {
	case r.Summary.NewCount == 0 && r.Summary.ResolvedCount == 0:
		p("No drift detected.\n")
	case r.Summary.NewCount == 0:
		p("No new findings, only improvements.\n")
	}
}
