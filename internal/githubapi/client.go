package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL targets the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// ErrPullNotFound indicates the referenced pull request does not exist.
var ErrPullNotFound = errors.New("pull request not found")

// Client is a minimal GitHub REST client covering the two operations the
// pipeline needs: reading a pull request head and writing a commit status.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Config configures a Client. Token may be empty for anonymous reads.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New creates a Client from cfg, applying defaults for unset fields.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(base, "/"),
		token:   cfg.Token,
		client:  client,
	}
}

// PullRequestHead returns the current head SHA of the referenced pull
// request. This is a point-in-time read: later pushes to the branch do not
// retroactively change what a run resolved.
func (c *Client) PullRequestHead(ctx context.Context, owner, repo string, number int) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build pull request: %w", err)
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch pull %s/%s#%d: %w", owner, repo, number, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("%s/%s#%d: %w", owner, repo, number, ErrPullNotFound)
	default:
		return "", fmt.Errorf("fetch pull %s/%s#%d: unexpected status %s: %s",
			owner, repo, number, resp.Status, snippet(resp.Body))
	}

	var payload struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode pull %s/%s#%d: %w", owner, repo, number, err)
	}
	if payload.Head.SHA == "" {
		return "", fmt.Errorf("pull %s/%s#%d has no head sha", owner, repo, number)
	}
	return payload.Head.SHA, nil
}

// CommitStatus is the commit-status write payload. GitHub keys statuses on
// (sha, context) with last-write-wins, which is what makes re-runs safe.
type CommitStatus struct {
	State       string `json:"state"`
	Context     string `json:"context"`
	Description string `json:"description,omitempty"`
	TargetURL   string `json:"target_url,omitempty"`
}

// CreateCommitStatus records a status against the given revision.
func (c *Client) CreateCommitStatus(ctx context.Context, owner, repo, sha string, status CommitStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal commit status: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/statuses/%s", c.baseURL, owner, repo, sha)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("write status for %s: %w", sha, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("write status for %s: unexpected status %s: %s",
			sha, resp.Status, snippet(resp.Body))
	}
	return nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func snippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 200))
	return strings.TrimSpace(string(data))
}
