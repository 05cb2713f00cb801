package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is the backend used when nothing else is configured.
const DefaultAPIURL = "http://localhost:8000"

// Config holds all configuration for scanfix
type Config struct {
	// Backend API base URL
	APIURL string `mapstructure:"api_url"`

	// Bearer session token for the backend (from config or SCANFIX_TOKEN)
	Token string `mapstructure:"token"`

	// Default repository to browse
	RepositoryID string `mapstructure:"repository_id"`

	// Scan status polling interval
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Pause between saving a fix and opening the PR form
	PROpenDelay time.Duration `mapstructure:"pr_open_delay"`

	// How long the "Copied!" indicator stays visible
	CopyIndicator time.Duration `mapstructure:"copy_indicator"`

	// Per-request HTTP timeout
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Directory for cached scan snapshots
	StorageDir string `mapstructure:"storage_dir"`

	// Output format (text, json)
	Format string `mapstructure:"format"`

	// Verbose output
	Verbose bool `mapstructure:"verbose"`

	// Debug mode
	Debug bool `mapstructure:"debug"`

	// GitHub API used for optional local PAT validation
	GitHubAPIURL string `mapstructure:"github_api_url"`

	// Validate PATs against GitHub before handing them to the backend
	ValidatePAT bool `mapstructure:"validate_pat"`

	// Slack announcement of created pull requests (optional)
	SlackToken   string `mapstructure:"slack_token"`
	SlackChannel string `mapstructure:"slack_channel"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		APIURL:         DefaultAPIURL,
		PollInterval:   5 * time.Second,
		PROpenDelay:    500 * time.Millisecond,
		CopyIndicator:  2 * time.Second,
		RequestTimeout: 15 * time.Second,
		StorageDir:     ".scanfix",
		Format:         "text",
		GitHubAPIURL:   "https://api.github.com/",
	}
}

// Load loads configuration with the following precedence (lowest to highest):
// 1. Default values
// 2. Config file (./scanfix.yaml, ~/scanfix.yaml, $XDG_CONFIG_HOME/scanfix/scanfix.yaml)
// 3. Environment variables (SCANFIX_*)
// 4. CLI flags (handled by caller)
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from a specific file path
// If path is empty, it searches for config in standard locations
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("api_url", defaults.APIURL)
	v.SetDefault("token", "")
	v.SetDefault("repository_id", "")
	v.SetDefault("poll_interval", defaults.PollInterval)
	v.SetDefault("pr_open_delay", defaults.PROpenDelay)
	v.SetDefault("copy_indicator", defaults.CopyIndicator)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("storage_dir", defaults.StorageDir)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("verbose", false)
	v.SetDefault("debug", false)
	v.SetDefault("github_api_url", defaults.GitHubAPIURL)
	v.SetDefault("validate_pat", false)
	v.SetDefault("slack_token", "")
	v.SetDefault("slack_channel", "")

	v.SetConfigName("scanfix")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}

		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			v.AddConfigPath(filepath.Join(xdgConfig, "scanfix"))
		}
	}

	v.SetEnvPrefix("SCANFIX")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults and env still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid format: %s (must be text or json)", c.Format)
	}

	if c.APIURL == "" {
		return fmt.Errorf("api_url cannot be empty")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.PROpenDelay < 0 {
		return fmt.Errorf("pr_open_delay cannot be negative")
	}
	if c.CopyIndicator <= 0 {
		return fmt.Errorf("copy_indicator must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir cannot be empty")
	}

	return nil
}

// GetStoragePath returns the absolute path to the storage directory
func (c *Config) GetStoragePath() (string, error) {
	if len(c.StorageDir) >= 2 && c.StorageDir[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, c.StorageDir[2:]), nil
	}

	absPath, err := filepath.Abs(c.StorageDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// SlackEnabled reports whether PR announcements are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackToken != "" && c.SlackChannel != ""
}

// ConfigPath returns the file that `scanfix use` writes to.
func ConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "scanfix", "scanfix.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "scanfix.yaml")
	}
	return "scanfix.yaml"
}

// WriteRepository records the default repository and API URL in the config
// file at path, keeping any other keys already present.
func WriteRepository(repositoryID, apiURL, path string) error {
	values := map[string]interface{}{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("parse existing config: %w", err)
		}
		if values == nil {
			values = map[string]interface{}{}
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("read existing config: %w", err)
	}

	values["repository_id"] = repositoryID
	if apiURL != "" {
		values["api_url"] = apiURL
	}

	out, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// The file may also hold the session token.
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// GenerateSampleConfig generates a sample configuration file content
func GenerateSampleConfig() string {
	return `# scanfix configuration
# Save this file as ~/scanfix.yaml or ./scanfix.yaml

# Backend API
api_url: http://localhost:8000

# Bearer session token (or SCANFIX_TOKEN)
# token: your-session-token

# Repository opened by 'scanfix browse' when --repo is not given
# repository_id: "42"

# Scan status polling interval
poll_interval: 5s

# Pause between saving a fix and opening the pull request form
pr_open_delay: 500ms

# Directory for cached scan snapshots
storage_dir: .scanfix

# Output format: text or json
format: text

# Validate personal access tokens against GitHub before saving them
validate_pat: false

# Announce created pull requests in Slack
# slack_token: xoxb-...
# slack_channel: C0123456789
`
}
