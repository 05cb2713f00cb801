package api

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/scanfix/internal/models"
)

const (
	// MaxIDLength bounds backend identifiers accepted in URL paths.
	MaxIDLength = 128

	// MaxPathLength bounds repository-relative file paths.
	MaxPathLength = 4096

	// MaxFixContentBytes bounds the fix body uploaded to the backend.
	MaxFixContentBytes = 1024 * 1024 // 1 MiB

	maxTitleLength = 256
)

var (
	idPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

	// Accepted personal access token shapes: classic and fine-grained GitHub
	// tokens, GitHub OAuth tokens and GitLab PATs.
	patPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^ghp_[A-Za-z0-9]{36}$`),
		regexp.MustCompile(`^gho_[A-Za-z0-9]{36}$`),
		regexp.MustCompile(`^github_pat_[A-Za-z0-9_]{22,255}$`),
		regexp.MustCompile(`^glpat-[A-Za-z0-9_-]{20,}$`),
	}
)

// ValidateID verifies a repository, scan, vulnerability or fix identifier.
func ValidateID(kind, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s id exceeds %d characters", kind, MaxIDLength)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s id contains invalid characters", kind)
	}
	return nil
}

// ValidatePath checks a repository-relative path. The empty path is the root.
func ValidatePath(path string) error {
	if len(path) > MaxPathLength {
		return fmt.Errorf("path exceeds %d characters", MaxPathLength)
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must be relative to the repository root")
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return fmt.Errorf("path must not contain '..'")
		}
	}
	return nil
}

// ValidatePAT enforces a known personal access token shape.
func ValidatePAT(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is required")
	}
	for _, p := range patPatterns {
		if p.MatchString(token) {
			return nil
		}
	}
	return fmt.Errorf("token must be a GitHub (ghp_, gho_, github_pat_) or GitLab (glpat-) personal access token")
}

// ValidateFixInput checks a fix before it is saved.
func ValidateFixInput(input models.FixInput) error {
	if err := ValidateID("vulnerability", input.VulnerabilityID); err != nil {
		return err
	}
	if strings.TrimSpace(input.FilePath) == "" {
		return fmt.Errorf("file_path is required")
	}
	if err := ValidatePath(input.FilePath); err != nil {
		return err
	}
	if strings.TrimSpace(input.Content) == "" {
		return fmt.Errorf("fix content is empty")
	}
	if len(input.Content) > MaxFixContentBytes {
		return fmt.Errorf("fix content exceeds %d bytes", MaxFixContentBytes)
	}
	return nil
}

// ValidatePullRequestInput checks PR fields before submission.
func ValidatePullRequestInput(input models.PullRequestInput) error {
	if err := ValidateID("repository", input.RepositoryID); err != nil {
		return err
	}
	if len(input.FixIDs) == 0 {
		return fmt.Errorf("at least one fix id is required")
	}
	for _, id := range input.FixIDs {
		if err := ValidateID("fix", id); err != nil {
			return err
		}
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("title exceeds %d characters", maxTitleLength)
	}
	return nil
}
