package cli

import (
	"fmt"

	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/apiclient"
	"github.com/ppiankov/scanfix/internal/config"
	"github.com/spf13/cobra"
)

var (
	useNoVerify bool
	useSample   bool
)

var useCmd = &cobra.Command{
	Use:   "use <repository-id>",
	Short: "Select the default repository",
	Long: `Verify a repository with the backend and save it as repository_id in
the user config file. Other keys in the file are kept.`,
	Example: `  scanfix use 7d4b...
  scanfix use 7d4b... --api-url https://scanner.internal
  scanfix use --sample > scanfix.yaml`,
	Args: func(cmd *cobra.Command, args []string) error {
		if useSample {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runUse,
}

func init() {
	useCmd.Flags().BoolVar(&useNoVerify, "no-verify", false,
		"save without checking the repository with the backend")
	useCmd.Flags().BoolVar(&useSample, "sample", false,
		"print a sample config file instead")
}

func runUse(cmd *cobra.Command, args []string) error {
	if useSample {
		fmt.Print(config.GenerateSampleConfig())
		return nil
	}

	repoID := args[0]
	if err := api.ValidateID("repository", repoID); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	name := repoID
	if !useNoVerify {
		repo, err := newClient().GetRepository(commandContext(cmd), repoID)
		if err != nil {
			if apiclient.IsNotFound(err) {
				return &ValidationError{Message: fmt.Sprintf("repository %s not found", repoID)}
			}
			return fmt.Errorf("failed to verify repository: %w", err)
		}
		name = repo.FullName
	}

	path := configFile
	if path == "" {
		path = config.ConfigPath()
	}
	if err := config.WriteRepository(repoID, apiURLFlag, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Using %s\n", name)
	fmt.Printf("Config: %s\n", path)
	return nil
}
