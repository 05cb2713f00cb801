package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/ghcheck"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var tokenStdin bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the GitHub token used to open pull requests",
	Long: `The backend stores one personal access token and uses it to push fix
branches and open pull requests. The token itself is never shown again
once saved.`,
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a usable token is stored",
	Args:  cobra.NoArgs,
	RunE:  runTokenStatus,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a personal access token",
	Long: `Store a personal access token. The token is read from the terminal
without echo, or from stdin with --stdin.

With validate_pat enabled, GitHub tokens are checked against the GitHub
API before they are sent to the backend.`,
	Example: `  scanfix token set
  echo "$GITHUB_TOKEN" | scanfix token set --stdin`,
	Args: cobra.NoArgs,
	RunE: runTokenSet,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE:  runTokenDelete,
}

func init() {
	tokenSetCmd.Flags().BoolVar(&tokenStdin, "stdin", false,
		"read the token from stdin")

	tokenCmd.AddCommand(tokenStatusCmd)
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenDeleteCmd)
}

func runTokenStatus(cmd *cobra.Command, args []string) error {
	status, err := newClient().TokenStatus(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to get token status: %w", err)
	}

	switch {
	case !status.HasToken:
		fmt.Println("No token stored. Run: scanfix token set")
	case !status.Valid:
		fmt.Println("Stored token is invalid. Run: scanfix token set")
	case status.Username != "":
		fmt.Printf("Token valid (%s)\n", status.Username)
	default:
		fmt.Println("Token valid")
	}
	return nil
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	token, err := readToken(os.Stdin, tokenStdin)
	if err != nil {
		return err
	}
	if err := api.ValidatePAT(token); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	ctx := commandContext(cmd)
	if err := verifyPAT(ctx, token); err != nil {
		return err
	}

	status, err := newClient().SaveToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if status.Username != "" {
		fmt.Printf("Token saved (%s)\n", status.Username)
	} else {
		fmt.Println("Token saved")
	}
	return nil
}

func runTokenDelete(cmd *cobra.Command, args []string) error {
	if err := newClient().DeleteToken(commandContext(cmd)); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	fmt.Println("Token deleted")
	return nil
}

// readToken reads one token from r, prompting without echo when r is a
// terminal and fromStdin is unset.
func readToken(r io.Reader, fromStdin bool) (string, error) {
	if f, ok := r.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "GitHub token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", &ValidationError{Message: "no token provided on stdin"}
	}
	return token, nil
}

// verifyPAT checks a GitHub token against the GitHub API when validate_pat
// is enabled. GitLab tokens are passed through.
func verifyPAT(ctx context.Context, token string) error {
	if !cfg.ValidatePAT || strings.HasPrefix(token, "glpat-") {
		return nil
	}

	id, err := ghcheck.New(cfg.GitHubAPIURL, cfg.RequestTimeout).Check(ctx, token)
	if err != nil {
		if errors.Is(err, ghcheck.ErrBadCredentials) {
			return &ValidationError{Message: err.Error()}
		}
		return fmt.Errorf("failed to verify token with GitHub: %w", err)
	}
	if !id.CanOpenPullRequests() {
		return &ValidationError{Message: fmt.Sprintf("token of %s lacks the repo scope (has: %s)", id.Login, joinMax(id.Scopes, 5))}
	}
	logVerbose("GitHub token belongs to %s", id.Login)
	return nil
}
