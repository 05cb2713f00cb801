package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ppiankov/scanfix/internal/content"
	"github.com/ppiankov/scanfix/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	browseScan string
	browseBase string
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the repository and its vulnerabilities interactively",
	Long: `Open the interactive browser: walk the repository tree, follow the
latest scan while it runs, view files with vulnerable lines marked, and
fix vulnerabilities through a pull request.

Keys: enter open, backspace back, 0-9 breadcrumbs, / search, v findings,
n/p next/previous finding, c copy file, f fix, r refresh, q quit.

When stdout is not a terminal, the root listing is printed instead.`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().StringVar(&browseScan, "scan", "",
		"pin a scan instead of following the latest one")
	browseCmd.Flags().StringVar(&browseBase, "base", "",
		"base branch for pull requests (default: the repository default branch)")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	repoID, err := requireRepository()
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		logVerbose("stdout is not a terminal; printing listing")
		lsStatus = true
		lsScan = browseScan
		return runLs(cmd, nil)
	}

	ctx := commandContext(cmd)
	client := newClient()

	repo, err := client.GetRepository(ctx, repoID)
	if err != nil {
		return fmt.Errorf("failed to load repository %s: %w", repoID, err)
	}
	base := browseBase
	if base == "" {
		base = repo.DefaultBranch
	}

	opts := tui.Options{
		RepositoryID:  repoID,
		ScanID:        browseScan,
		BaseBranch:    base,
		PollInterval:  cfg.PollInterval,
		PROpenDelay:   cfg.PROpenDelay,
		CopyIndicator: cfg.CopyIndicator,
	}

	if store, err := newStore(); err == nil {
		opts.Store = store
		if cfg.Debug {
			if err := store.EnsureDirectoryExists(); err == nil {
				opts.LogFile = filepath.Join(store.GetStoragePath(), "debug.log")
			}
		}
	} else {
		logVerbose("Scan cache disabled: %v", err)
	}

	// The alt screen owns stderr; logs go to the debug file or nowhere.
	logf := func(format string, args ...interface{}) {}
	if opts.LogFile != "" {
		logf = log.Printf
		opts.Logf = log.Printf
	}
	opts.Clipboard = content.NewClipboard(os.Stdout, logf)
	opts.OnPullRequest = pullRequestHook(repo.FullName, logf)

	return tui.Run(guardedClient{client}, opts)
}
