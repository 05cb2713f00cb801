package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/scanfix/internal/apiclient"
	"github.com/ppiankov/scanfix/internal/config"
	"github.com/ppiankov/scanfix/internal/storage"
	"github.com/spf13/cobra"
)

const (
	ExitOK           = 0 // Success
	ExitPolicyFail   = 1 // Vulnerabilities violate the policy
	ExitInvalidInput = 2 // Bad arguments or identifiers
	ExitRuntimeError = 3 // API, I/O, or runtime error
)

var (
	// Global config instance
	cfg *config.Config

	// Set from main via ldflags
	version = "dev"

	// Global flags
	configFile string
	verbose    bool
	debug      bool
	apiURLFlag string
	repoFlag   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scanfix",
	Short: "scanfix - browse scan results and fix vulnerabilities from the terminal",
	Long: `scanfix is a terminal client for the security scanning backend.

It provides:
- Repository browsing with per-file scan status
- Vulnerabilities mapped onto files and lines
- A fix workflow that saves fixes and opens pull requests
- CI/CD gating with policy files and exit codes

Quick start:
  scanfix use <repository-id>
  scanfix doctor
  scanfix browse

Other commands:
  scanfix ls src/ --search handler
  scanfix cat src/app.py
  scanfix scan status <scan-id> --watch
  scanfix vulns <scan-id> --policy .scanfix-policy.yaml
  scanfix token set
  scanfix fix <vulnerability-id> --scan <scan-id> --content-file fixed.py`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags if provided
		if verbose {
			cfg.Verbose = true
		}
		if debug {
			cfg.Debug = true
		}
		if apiURLFlag != "" {
			cfg.APIURL = apiURLFlag
		}
		if repoFlag != "" {
			cfg.RepositoryID = repoFlag
		}

		logDebug("config: api_url=%s repository_id=%s storage_dir=%s", cfg.APIURL, cfg.RepositoryID, cfg.StorageDir)
		return nil
	},
}

// SetVersion records the build version shown by `scanfix version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command and exits with the mapped exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Cobra already prints the error
		os.Exit(HandleError(err))
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./scanfix.yaml or ~/scanfix.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"debug mode (very verbose)")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "",
		"backend API URL (overrides api_url)")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "",
		"repository ID (overrides repository_id)")

	// Add subcommands
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(vulnsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(useCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scanfix %s\n", version)
		fmt.Println("Terminal client for security scan results and fixes")
	},
}

// HandleError determines the appropriate exit code for an error
func HandleError(err error) int {
	if err == nil {
		return ExitOK
	}

	switch err.(type) {
	case *ValidationError:
		return ExitInvalidInput
	case *PolicyViolationError:
		return ExitPolicyFail
	default:
		return ExitRuntimeError
	}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PolicyViolationError represents a failed policy gate
type PolicyViolationError struct {
	Violations int
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy check failed with %d violation(s)", e.Violations)
}

// newClient builds an API client from the loaded config.
func newClient() *apiclient.Client {
	return apiclient.New(cfg.APIURL, cfg.Token, apiclient.WithTimeout(cfg.RequestTimeout))
}

// newStore opens the snapshot cache under storage_dir.
func newStore() (*storage.LocalStorage, error) {
	path, err := cfg.GetStoragePath()
	if err != nil {
		return nil, err
	}
	return storage.NewLocal(path), nil
}

// requireRepository returns the configured repository or a ValidationError.
func requireRepository() (string, error) {
	if cfg.RepositoryID == "" {
		return "", &ValidationError{Message: "no repository selected: pass --repo, set repository_id, or run 'scanfix use <id>'"}
	}
	return cfg.RepositoryID, nil
}

// commandContext returns the command context, tolerating direct runX calls.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// logVerbose prints a message if verbose mode is enabled
func logVerbose(format string, args ...interface{}) {
	if cfg != nil && cfg.Verbose {
		fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", args...)
	}
}

// logDebug prints a message if debug mode is enabled
func logDebug(format string, args ...interface{}) {
	if cfg != nil && cfg.Debug {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// logError prints an error message
func logError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
}
