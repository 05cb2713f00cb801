// Package ghcheck validates a personal access token against GitHub before it
// is handed to the credential service.
package ghcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v55/github"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com/"

// ErrBadCredentials is returned when GitHub rejects the token.
var ErrBadCredentials = errors.New("GitHub rejected the token")

// Identity is what GitHub reports for a token.
type Identity struct {
	Login string
	// Scopes is empty for fine-grained tokens, which do not report scopes.
	Scopes []string
}

// CanOpenPullRequests reports whether a classic token carries a scope that
// allows pushing branches and opening pull requests.
func (id Identity) CanOpenPullRequests() bool {
	if len(id.Scopes) == 0 {
		return true
	}
	for _, s := range id.Scopes {
		if s == "repo" || s == "public_repo" {
			return true
		}
	}
	return false
}

// Checker calls the GitHub users API with a candidate token.
type Checker struct {
	baseURL string
	timeout time.Duration
}

// New creates a Checker. An empty baseURL means api.github.com. Any other
// root is treated as GitHub Enterprise; /api/v3/ is appended when missing.
func New(baseURL string, timeout time.Duration) *Checker {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Checker{baseURL: baseURL, timeout: timeout}
}

// Check returns the identity behind token.
func (c *Checker) Check(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	client, err := c.client(token)
	if err != nil {
		return nil, err
	}

	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("GitHub user lookup: %w", err)
	}

	id := &Identity{Login: user.GetLogin()}
	if resp != nil {
		id.Scopes = parseScopes(resp.Header.Get("X-OAuth-Scopes"))
	}
	return id, nil
}

func (c *Checker) client(token string) (*github.Client, error) {
	client := github.NewClient(&http.Client{Timeout: c.timeout}).WithAuthToken(token)
	if c.baseURL == DefaultBaseURL {
		return client, nil
	}
	client, err := client.WithEnterpriseURLs(c.baseURL, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
	}
	return client, nil
}

func parseScopes(header string) []string {
	var scopes []string
	for _, s := range strings.Split(header, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
