package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/models"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 15 * time.Second

// maxFileBytes caps file content downloads.
const maxFileBytes = 10 * 1024 * 1024

// ErrFileTooLarge is returned when a file exceeds the download cap.
var ErrFileTooLarge = errors.New("file too large")

// Client talks to the scanning backend REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	requestID  func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates an API client. Every request carries "Authorization: Bearer <token>".
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		requestID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401/403 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

// GetRepository returns repository metadata including its latest scan.
func (c *Client) GetRepository(ctx context.Context, repoID string) (*models.Repository, error) {
	if err := api.ValidateID("repository", repoID); err != nil {
		return nil, err
	}
	var repo models.Repository
	if err := c.getJSON(ctx, "/api/v1/repositories/"+url.PathEscape(repoID), nil, &repo); err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return &repo, nil
}

// ListContents returns the directory listing at path ("" is the root).
func (c *Client) ListContents(ctx context.Context, repoID, path string) ([]models.DirEntry, error) {
	if err := api.ValidateID("repository", repoID); err != nil {
		return nil, err
	}
	if err := api.ValidatePath(path); err != nil {
		return nil, err
	}
	var entries []models.DirEntry
	q := url.Values{"path": {path}}
	if err := c.getJSON(ctx, "/api/v1/repositories/"+url.PathEscape(repoID)+"/content", q, &entries); err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	return entries, nil
}

// GetFile returns the raw response body for a file. The body may be a JSON
// string, an object carrying base64 content, arbitrary JSON or plain text.
func (c *Client) GetFile(ctx context.Context, repoID, filePath string) ([]byte, error) {
	if err := api.ValidateID("repository", repoID); err != nil {
		return nil, err
	}
	if err := api.ValidatePath(filePath); err != nil {
		return nil, err
	}
	q := url.Values{"file_path": {filePath}}
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/repositories/"+url.PathEscape(repoID)+"/file", q, nil)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	if len(data) > maxFileBytes {
		return nil, fmt.Errorf("get file: %s exceeds %d bytes: %w", filePath, maxFileBytes, ErrFileTooLarge)
	}
	return data, nil
}

// GetScan returns the current scan status snapshot.
func (c *Client) GetScan(ctx context.Context, scanID string) (*models.ScanRecord, error) {
	if err := api.ValidateID("scan", scanID); err != nil {
		return nil, err
	}
	var scan models.ScanRecord
	if err := c.getJSON(ctx, "/api/v1/scans/"+url.PathEscape(scanID), nil, &scan); err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return &scan, nil
}

// ListVulnerabilities returns the flat vulnerability list of a scan.
// Both a bare array and {"vulnerabilities": [...]} bodies are accepted.
func (c *Client) ListVulnerabilities(ctx context.Context, scanID string) ([]models.Vulnerability, error) {
	if err := api.ValidateID("scan", scanID); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/v1/scans/"+url.PathEscape(scanID)+"/vulnerabilities", nil, &raw); err != nil {
		return nil, fmt.Errorf("list vulnerabilities: %w", err)
	}

	var vulns []models.Vulnerability
	if err := json.Unmarshal(raw, &vulns); err == nil {
		return vulns, nil
	}
	var wrapped struct {
		Vulnerabilities []models.Vulnerability `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode vulnerabilities: %w", err)
	}
	return wrapped.Vulnerabilities, nil
}

// GetScanDetails returns per-file scan outcomes.
func (c *Client) GetScanDetails(ctx context.Context, scanID string) (*models.ScanDetails, error) {
	if err := api.ValidateID("scan", scanID); err != nil {
		return nil, err
	}
	var details models.ScanDetails
	if err := c.getJSON(ctx, "/api/v1/scans/"+url.PathEscape(scanID)+"/detailed", nil, &details); err != nil {
		return nil, fmt.Errorf("get scan details: %w", err)
	}
	return &details, nil
}

// TokenStatus reports whether a personal access token is stored and valid.
func (c *Client) TokenStatus(ctx context.Context) (*models.TokenStatus, error) {
	var status models.TokenStatus
	if err := c.getJSON(ctx, "/api/v1/github/token", nil, &status); err != nil {
		return nil, fmt.Errorf("token status: %w", err)
	}
	return &status, nil
}

// SaveToken stores a personal access token with the credential service.
func (c *Client) SaveToken(ctx context.Context, token string) (*models.TokenStatus, error) {
	if err := api.ValidatePAT(token); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	var status models.TokenStatus
	body := map[string]string{"token": strings.TrimSpace(token)}
	decoded, err := c.sendJSON(ctx, http.MethodPost, "/api/v1/github/token", body, &status)
	if err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	// An empty 2xx reply means the token was accepted.
	if !decoded {
		status.HasToken = true
		status.Valid = true
	}
	return &status, nil
}

// DeleteToken removes the stored personal access token.
func (c *Client) DeleteToken(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/v1/github/token", nil, nil)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// SaveFix persists a fix for a vulnerability and returns its record.
func (c *Client) SaveFix(ctx context.Context, input models.FixInput) (*models.FixRecord, error) {
	if err := api.ValidateFixInput(input); err != nil {
		return nil, fmt.Errorf("invalid fix: %w", err)
	}
	var fix models.FixRecord
	if _, err := c.sendJSON(ctx, http.MethodPost, "/api/v1/fixes", input, &fix); err != nil {
		return nil, fmt.Errorf("save fix: %w", err)
	}
	if fix.ID == "" {
		return nil, fmt.Errorf("save fix: response carried no fix id")
	}
	return &fix, nil
}

// CreatePullRequest opens a pull request from saved fixes.
func (c *Client) CreatePullRequest(ctx context.Context, input models.PullRequestInput) (*models.PullRequest, error) {
	if err := api.ValidatePullRequestInput(input); err != nil {
		return nil, fmt.Errorf("invalid pull request: %w", err)
	}
	var pr models.PullRequest
	if _, err := c.sendJSON(ctx, http.MethodPost, "/api/v1/pull-requests", input, &pr); err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	if pr.URL == "" {
		return nil, fmt.Errorf("create pull request: response carried no URL")
	}
	return &pr, nil
}

// VersionInfo is the response from GET /api/v1/version.
type VersionInfo struct {
	Version string `json:"version"`
}

// Version returns the backend API version.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	if err := c.getJSON(ctx, "/api/v1/version", nil, &info); err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &info, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sendJSON posts in and decodes the reply into out. It reports whether a
// response body was decoded; 204 and empty bodies leave out untouched.
func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) (bool, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return false, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent || out == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

// do issues a request and returns the response for 2xx statuses only.
// The caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", c.requestID())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}
	return resp, nil
}

// errorMessage extracts {"error": ...} or {"detail": ...} from an error body.
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var errResp map[string]interface{}
	if json.Unmarshal(data, &errResp) == nil {
		for _, k := range []string{"error", "detail", "message"} {
			if s, ok := errResp[k].(string); ok && s != "" {
				return s
			}
		}
	}
	if msg := strings.TrimSpace(string(data)); msg != "" && len(msg) < 200 {
		return msg
	}
	return resp.Status
}
