package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// githubAPIVersion pins the REST API version
const githubAPIVersion = "2022-11-28"

const (
	defaultBaseURL = "https://api.github.com"
	maxBodySize    = 4 << 20
)

// GitHubConfig configures the REST client
type GitHubConfig struct {
	// BaseURL defaults to https://api.github.com and must use HTTPS
	BaseURL string
	// Repository is the owner/repo slug
	Repository string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// GitHub is a token-authenticated client for the issue endpoints
type GitHub struct {
	baseURL    string
	owner      string
	repo       string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError is a non-2xx response from the GitHub REST API
type APIError struct {
	StatusCode       int
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewGitHub validates cfg and returns a client
func NewGitHub(cfg GitHubConfig) (*GitHub, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("github: no token configured")
	}
	owner, repo, ok := strings.Cut(cfg.Repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("github: repository must be owner/repo (got %q)", cfg.Repository)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GitHub{
		baseURL:    baseURL,
		owner:      owner,
		repo:       repo,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type issueResponse struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

// Issue fetches one issue by number
func (g *GitHub) Issue(ctx context.Context, number int) (*Issue, error) {
	var resp issueResponse
	if err := g.do(ctx, http.MethodGet, g.issuePath(number), nil, &resp); err != nil {
		return nil, fmt.Errorf("getting issue %s/%s#%d: %w", g.owner, g.repo, number, err)
	}
	issue := &Issue{
		Number: resp.Number,
		Title:  resp.Title,
		Author: resp.User.Login,
		State:  resp.State,
	}
	for _, l := range resp.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	return issue, nil
}

// Comment posts a comment on the issue
func (g *GitHub) Comment(ctx context.Context, number int, body string) error {
	req := map[string]string{"body": body}
	if err := g.do(ctx, http.MethodPost, g.issuePath(number)+"/comments", req, nil); err != nil {
		return fmt.Errorf("commenting on %s/%s#%d: %w", g.owner, g.repo, number, err)
	}
	return nil
}

type updateIssueRequest struct {
	State  string   `json:"state"`
	Labels []string `json:"labels,omitempty"`
}

// Close closes the issue. Labels are added, not replaced, so labels set by
// the author survive.
func (g *GitHub) Close(ctx context.Context, number int, labels []string) error {
	if len(labels) > 0 {
		if err := g.AddLabels(ctx, number, labels); err != nil {
			return err
		}
	}
	if err := g.do(ctx, http.MethodPatch, g.issuePath(number), updateIssueRequest{State: "closed"}, nil); err != nil {
		return fmt.Errorf("closing %s/%s#%d: %w", g.owner, g.repo, number, err)
	}
	return nil
}

// AddLabels attaches labels to the issue
func (g *GitHub) AddLabels(ctx context.Context, number int, labels []string) error {
	req := map[string][]string{"labels": labels}
	if err := g.do(ctx, http.MethodPost, g.issuePath(number)+"/labels", req, nil); err != nil {
		return fmt.Errorf("labelling %s/%s#%d: %w", g.owner, g.repo, number, err)
	}
	return nil
}

func (g *GitHub) issuePath(number int) string {
	return fmt.Sprintf("/repos/%s/%s/issues/%d", g.owner, g.repo, number)
}

// do sends an authenticated request and decodes a JSON response into
// result when result is non-nil
func (g *GitHub) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("github: encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("github: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("github: reading response body: %w", err)
	}

	g.logger.Debug("github request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("github: decoding response: %w", err)
		}
	}
	return nil
}
