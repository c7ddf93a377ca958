// Package redmine is a minimal client for the slice of the Redmine REST API
// the onboarding pipeline consumes: projects, users, attachment uploads, and
// issue creation with parent links.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// pageSize is the Redmine pagination limit used for list endpoints.
const pageSize = 100

// Project is a Redmine project as returned by GET /projects.json.
type Project struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

// User is a Redmine user as returned by GET /users.json.
type User struct {
	ID        int    `json:"id"`
	Login     string `json:"login"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// Upload references a previously uploaded attachment by token.
type Upload struct {
	Token       string `json:"token"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
	ContentType string `json:"content_type"`
}

// IssueRequest is the payload for creating one issue.
type IssueRequest struct {
	ProjectID     int      `json:"project_id"`
	Subject       string   `json:"subject"`
	Description   string   `json:"description"`
	AssignedToID  int      `json:"assigned_to_id"`
	DueDate       string   `json:"due_date"`
	ParentIssueID int      `json:"parent_issue_id,omitempty"`
	Uploads       []Upload `json:"uploads,omitempty"`
}

// APIError carries a non-2xx Redmine response. The response body is kept
// verbatim so operators see the tracker's own message.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("redmine returned status %d", e.StatusCode)
}

// Client talks to a single Redmine server using API-key authentication. The
// key must belong to an administrator, since listing users requires it.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a new Redmine client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ServerURI returns the base URI of the Redmine server.
func (c *Client) ServerURI() string {
	return c.baseURL
}

// Projects lists every project on the server.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	for offset := 0; ; offset += pageSize {
		var page struct {
			Projects   []Project `json:"projects"`
			TotalCount int       `json:"total_count"`
		}
		url := fmt.Sprintf("%s/projects.json?limit=%d&offset=%d", c.baseURL, pageSize, offset)
		if err := c.get(ctx, url, &page); err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
		projects = append(projects, page.Projects...)
		if offset+pageSize >= page.TotalCount {
			return projects, nil
		}
	}
}

// Users lists every user on the server.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	for offset := 0; ; offset += pageSize {
		var page struct {
			Users      []User `json:"users"`
			TotalCount int    `json:"total_count"`
		}
		url := fmt.Sprintf("%s/users.json?limit=%d&offset=%d", c.baseURL, pageSize, offset)
		if err := c.get(ctx, url, &page); err != nil {
			return nil, fmt.Errorf("listing users: %w", err)
		}
		users = append(users, page.Users...)
		if offset+pageSize >= page.TotalCount {
			return users, nil
		}
	}
}

// PostAttachment uploads raw file bytes and returns the upload token to
// reference in a subsequent issue creation.
func (c *Client) PostAttachment(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/uploads.json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Redmine-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", readAPIError(resp)
	}

	var result struct {
		Upload struct {
			Token string `json:"token"`
		} `json:"upload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if result.Upload.Token == "" {
		return "", fmt.Errorf("upload response carried no token")
	}
	return result.Upload.Token, nil
}

// PostIssue creates one issue and returns its numeric id.
func (c *Client) PostIssue(ctx context.Context, issue IssueRequest) (int, error) {
	payload, err := json.Marshal(map[string]IssueRequest{"issue": issue})
	if err != nil {
		return 0, fmt.Errorf("encoding issue: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/issues.json", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("creating issue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Redmine-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("posting issue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, readAPIError(resp)
	}

	var result struct {
		Issue struct {
			ID int `json:"id"`
		} `json:"issue"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decoding issue response: %w", err)
	}

	c.logger.Debug("created issue",
		zap.Int("issue_id", result.Issue.ID),
		zap.String("subject", issue.Subject),
	)
	return result.Issue.ID, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Redmine-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
}
