package cli

import (
	"fmt"
	"strings"

	"github.com/ppiankov/scanfix/internal/browser"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/vulnindex"
	"github.com/spf13/cobra"
)

var (
	lsSearch string
	lsScan   string
	lsStatus bool
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory of the repository",
	Long: `List files and directories at a repository path, directories first.

With --status, each entry is annotated with its scan outcome and findings
from the selected scan (the repository's latest scan by default).`,
	Example: `  scanfix ls
  scanfix ls src/api --search handler
  scanfix ls src --status --scan 3f2a...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringVar(&lsSearch, "search", "",
		"filter entries by name (case-insensitive)")
	lsCmd.Flags().BoolVar(&lsStatus, "status", false,
		"annotate entries with scan status and findings")
	lsCmd.Flags().StringVar(&lsScan, "scan", "",
		"scan ID for --status (default: latest scan)")
}

func runLs(cmd *cobra.Command, args []string) error {
	repoID, err := requireRepository()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	client := newClient()

	path := ""
	if len(args) > 0 {
		path = strings.Trim(args[0], "/")
	}

	b := browser.New(client, repoID)
	if path == "" {
		err = b.Refresh(ctx)
	} else {
		err = b.NavigateInto(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("failed to list %q: %w", "/"+path, err)
	}
	b.Search(lsSearch)

	var idx *vulnindex.Index
	var statuses map[string]models.FileStatus
	if lsStatus {
		scanID, err := resolveScanID(ctx, client, lsScan)
		if err != nil {
			return err
		}
		if scanID != "" {
			snap, _, err := fetchSnapshot(ctx, client, openStore(), scanID, true)
			if err != nil {
				return err
			}
			idx = vulnindex.Build(snap.Vulnerabilities)
			statuses = (&models.ScanDetails{Files: snap.Files}).StatusByPath()
		}
	}

	entries := b.Visible()
	if len(entries) == 0 {
		if lsSearch != "" {
			fmt.Printf("No entries matching %q in /%s\n", lsSearch, b.CurrentPath())
		} else {
			fmt.Printf("/%s is empty\n", b.CurrentPath())
		}
		return nil
	}

	for _, e := range entries {
		name := e.Name
		if e.IsDir() {
			name += "/"
		}
		if !lsStatus {
			fmt.Println(name)
			continue
		}
		fmt.Printf("%-40s %s\n", name, entryStatus(e, idx, statuses))
	}
	return nil
}

// entryStatus summarizes the scan outcome of one listing entry.
func entryStatus(e models.DirEntry, idx *vulnindex.Index, statuses map[string]models.FileStatus) string {
	if idx == nil {
		return "-"
	}
	if e.IsDir() {
		if fs, ok := idx.ForDirectory(e.Path); ok {
			return fmt.Sprintf("%d finding(s), highest %s", fs.Count, fs.Highest)
		}
		return ""
	}
	if fs, ok := idx.ForFile(e.Path); ok {
		return fmt.Sprintf("%d finding(s), highest %s", fs.Count, fs.Highest)
	}
	switch statuses[e.Path] {
	case models.FileScanned:
		return "clean"
	case "":
		return "not scanned"
	default:
		return string(statuses[e.Path])
	}
}
