// Package client delivers signed issue events to a running webhook server.
// It lets `chessbot send` rehearse serve mode without GitHub in the loop.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chessbot/internal/core"
	chttp "chessbot/internal/http"
)

// Terminal color codes
const (
	Reset = "\033[0m"
	Red   = "\033[31m"
	Green = "\033[32m"
	Blue  = "\033[34m"
	Cyan  = "\033[36m"
)

type Client struct {
	BaseURL    string
	Secret     string
	HTTPClient *http.Client
	Verbose    bool
	Out        io.Writer
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Time   int64  `json:"time"`
}

func New(baseURL, secret string, out io.Writer) *Client {
	if out == nil {
		out = io.Discard
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Secret:  secret,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Out: out,
	}
}

func (c *Client) SetVerbose(v bool) {
	c.Verbose = v
}

// Health checks that the server is up
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest(ctx, http.MethodGet, "/health", "", nil, &resp)
	return &resp, err
}

// Ping sends a ping event, as GitHub does when a hook is created
func (c *Client) Ping(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/webhook/", "ping", map[string]string{"zen": "Keep it logically awesome."}, nil)
}

// OpenIssue delivers an "issues/opened" event for a new issue
func (c *Client) OpenIssue(ctx context.Context, number int, title, login string) (*chttp.InvocationResponse, error) {
	event := map[string]any{
		"action": "opened",
		"issue": map[string]any{
			"number": number,
			"title":  title,
			"state":  "open",
			"user":   map[string]any{"login": strings.TrimPrefix(login, "@")},
		},
	}
	var resp chttp.InvocationResponse
	err := c.doRequest(ctx, http.MethodPost, "/webhook/", "issues", event, &resp)
	return &resp, err
}

func (c *Client) doRequest(ctx context.Context, method, path, event string, body, result any) error {
	var bodyData []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyData = data
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(bodyData))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	if c.Secret != "" && body != nil {
		req.Header.Set("X-Hub-Signature-256", chttp.Sign(c.Secret, bodyData))
	}

	fmt.Fprintf(c.Out, "%s[HOOK] %s %s %s%s\n", Blue, method, path, event, Reset)
	if c.Verbose && len(bodyData) > 0 {
		c.printJSON("Request Body:", bodyData)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		fmt.Fprintf(c.Out, "%s[ERROR] %s%s\n", Red, err.Error(), Reset)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	statusColor := Green
	if resp.StatusCode >= 400 {
		statusColor = Red
	}
	fmt.Fprintf(c.Out, "%s[%d %s]%s\n", statusColor, resp.StatusCode, http.StatusText(resp.StatusCode), Reset)
	if c.Verbose && len(respBody) > 0 {
		c.printJSON("Response Body:", respBody)
	}

	if resp.StatusCode >= 400 {
		var errResp core.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Code != "" {
			return &DeliveryError{StatusCode: resp.StatusCode, Response: errResp}
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) printJSON(title string, data []byte) {
	var pretty any
	if err := json.Unmarshal(data, &pretty); err != nil {
		fmt.Fprintf(c.Out, "%s%s%s\n%s\n", Cyan, title, Reset, data)
		return
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Fprintf(c.Out, "%s%s%s\n%s\n", Cyan, title, Reset, out)
}

// DeliveryError is a rejected delivery with the server's error body
type DeliveryError struct {
	StatusCode int
	Response   core.ErrorResponse
}

func (e *DeliveryError) Error() string {
	if e.Response.Details != "" {
		return fmt.Sprintf("%d %s: %s (%s)", e.StatusCode, e.Response.Code, e.Response.Error, e.Response.Details)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Response.Code, e.Response.Error)
}
