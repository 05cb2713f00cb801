package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	fixScan        string
	fixContentFile string
	fixTitle       string
	fixBody        string
	fixBase        string
	fixTokenStdin  bool
)

var fixCmd = &cobra.Command{
	Use:   "fix <vulnerability-id>",
	Short: "Save a fix for a vulnerability and open a pull request",
	Long: `Save the fixed content of a vulnerable file and open a pull request
with it. The vulnerability is looked up in the selected scan (latest by
default).

When the backend has no usable GitHub token, one is requested first:
from the terminal without echo, or from stdin with --token-stdin.`,
	Example: `  scanfix fix 9c1e... --content-file fixed/app.py
  scanfix fix 9c1e... --scan 3f2a... --content-file - --title "Fix SQL injection" < app.py`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

func init() {
	fixCmd.Flags().StringVar(&fixScan, "scan", "",
		"scan ID containing the vulnerability (default: latest scan)")
	fixCmd.Flags().StringVarP(&fixContentFile, "content-file", "f", "",
		"file with the complete fixed content ('-' for stdin)")
	fixCmd.Flags().StringVar(&fixTitle, "title", "",
		"pull request title (default derived from the vulnerability)")
	fixCmd.Flags().StringVar(&fixBody, "body", "",
		"pull request body (default derived from the vulnerability)")
	fixCmd.Flags().StringVar(&fixBase, "base", "",
		"base branch (default: the repository default branch)")
	fixCmd.Flags().BoolVar(&fixTokenStdin, "token-stdin", false,
		"read a GitHub token from stdin if one is needed")
	_ = fixCmd.MarkFlagRequired("content-file")
}

func runFix(cmd *cobra.Command, args []string) error {
	vulnID := args[0]
	if err := api.ValidateID("vulnerability", vulnID); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if fixContentFile == "-" && fixTokenStdin {
		return &ValidationError{Message: "--content-file - and --token-stdin cannot both read stdin"}
	}
	repoID, err := requireRepository()
	if err != nil {
		return err
	}

	fixed, err := readContent(fixContentFile)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	client := newClient()

	repo, err := client.GetRepository(ctx, repoID)
	if err != nil {
		return fmt.Errorf("failed to load repository %s: %w", repoID, err)
	}

	scanID, err := resolveScanID(ctx, client, fixScan)
	if err != nil {
		return err
	}
	if scanID == "" {
		return &ValidationError{Message: "repository has no scans yet"}
	}
	snap, _, err := fetchSnapshot(ctx, client, openStore(), scanID, true)
	if err != nil {
		return err
	}
	vuln, ok := findVulnerability(snap.Vulnerabilities, vulnID)
	if !ok {
		return &ValidationError{Message: fmt.Sprintf("vulnerability %s not found in scan %s", vulnID, scanID)}
	}
	if vuln.FilePath == "" {
		return &ValidationError{Message: fmt.Sprintf("vulnerability %s is not attached to a file", vulnID)}
	}

	base := fixBase
	if base == "" {
		base = repo.DefaultBranch
	}

	coord := workflow.NewCoordinator(guardedClient{client}, repoID, base,
		workflow.WithPROpenDelay(0),
		workflow.WithLogf(logDebug),
		workflow.WithOnPullRequest(pullRequestHook(repo.FullName, logVerbose)),
	)

	state, err := coord.RequestFix(ctx, vuln)
	if err != nil {
		return err
	}
	if state == workflow.PATRequired {
		logVerbose("No usable GitHub token stored; requesting one")
		token, err := readToken(os.Stdin, fixTokenStdin)
		if err != nil {
			return err
		}
		if err := api.ValidatePAT(token); err != nil {
			return &ValidationError{Message: err.Error()}
		}
		if err := coord.SubmitCredential(ctx, token); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}
	}

	fix, err := coord.SaveFix(ctx, fixed)
	if err != nil {
		return fmt.Errorf("failed to save fix: %w", err)
	}
	logVerbose("Saved fix %s for %s", fix.ID, vuln.FilePath)

	if err := coord.OpenPullRequest(ctx); err != nil {
		return err
	}
	pr, err := coord.CreatePullRequest(ctx, fixTitle, fixBody)
	if err != nil {
		return fmt.Errorf("failed to create pull request: %w", err)
	}

	fmt.Printf("Fix saved:            %s\n", fix.ID)
	fmt.Printf("Pull request created: %s\n", pr.URL)
	return nil
}

// readContent reads the fixed file content from path, or stdin for "-".
func readContent(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read fix content: %w", err)
	}
	if len(data) == 0 {
		return "", &ValidationError{Message: "fix content is empty"}
	}
	return string(data), nil
}

func findVulnerability(vulns []models.Vulnerability, id string) (models.Vulnerability, bool) {
	for _, v := range vulns {
		if v.ID == id {
			return v, true
		}
	}
	return models.Vulnerability{}, false
}
