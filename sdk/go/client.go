package civicdesksdk

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
)

// Client is a minimal civicdesk HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base path, e.g. http://host:8080/v0.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Grievance is the API grievance model. RaisedBy is nil when the grievance is anonymous to the caller.
type Grievance struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	DepartmentID    string  `json:"department_id"`
	RaisedBy        *string `json:"raised_by,omitempty"`
	AddressedTo     *string `json:"addressed_to,omitempty"`
	Status          string  `json:"status"`
	ResolutionNotes *string `json:"resolution_notes,omitempty"`
	IsAnonymous     bool    `json:"is_anonymous"`
	ReopenedCount   int     `json:"reopened_count"`
	CanReopen       bool    `json:"can_reopen"`
	ClosedAt        *string `json:"closed_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	Version         int64   `json:"version"`
}

// NewGrievance is the body of CreateGrievance.
type NewGrievance struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	DepartmentID string  `json:"department_id"`
	RaisedBy     string  `json:"raised_by,omitempty"`
	AddressedTo  *string `json:"addressed_to,omitempty"`
	IsAnonymous  bool    `json:"is_anonymous,omitempty"`
}

// File is an e-Office file with its movement history.
type File struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	ReferenceNumber string         `json:"reference_number"`
	DepartmentID    string         `json:"department_id"`
	Status          string         `json:"status"`
	Priority        string         `json:"priority"`
	AssignedTo      string         `json:"assigned_to,omitempty"`
	Description     string         `json:"description,omitempty"`
	History         []HistoryEntry `json:"history"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
	Version         int64          `json:"version"`
}

type HistoryEntry struct {
	Stage     string `json:"stage"`
	Timestamp string `json:"timestamp"`
	Notes     string `json:"notes"`
	UpdatedBy string `json:"updated_by"`
}

// NewFile is the body of CreateFile.
type NewFile struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Priority        string `json:"priority,omitempty"`
	DepartmentID    string `json:"department_id"`
	AssignedTo      string `json:"assigned_to,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
}

// FileUpdate carries the fields of UpdateFile; nil fields are left unchanged.
type FileUpdate struct {
	Status          *string `json:"status,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	AssignedTo      *string `json:"assigned_to,omitempty"`
	Priority        *string `json:"priority,omitempty"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}

// Event represents an audit log entry.
type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts"`
	Type         string `json:"type"`
	DepartmentID string `json:"department_id,omitempty"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id,omitempty"`
	ActorID      string `json:"actor_id"`
	PayloadJSON  string `json:"payload_json"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code and Message come from the error envelope when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsConflict reports whether err is a 409 from the API, e.g. a stale expected version.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// CreateGrievance files a grievance.
func (c *Client) CreateGrievance(ctx context.Context, g NewGrievance) (Grievance, error) {
	var resp Grievance
	err := c.do(ctx, http.MethodPost, "grievances", g, &resp)
	return resp, err
}

// GetGrievance fetches a grievance by id.
func (c *Client) GetGrievance(ctx context.Context, id string) (Grievance, error) {
	var resp Grievance
	err := c.do(ctx, http.MethodGet, "grievances/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SetGrievanceStatus moves a grievance to Resolved, Rejected or back to Pending.
func (c *Client) SetGrievanceStatus(ctx context.Context, id, status string, notes *string, expectedVersion *int64) (Grievance, error) {
	body := map[string]any{"status": status}
	if notes != nil {
		body["resolution_notes"] = *notes
	}
	if expectedVersion != nil {
		body["expected_version"] = *expectedVersion
	}
	var resp Grievance
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("grievances/%s/status", url.PathEscape(id)), body, &resp)
	return resp, err
}

// ReopenGrievance returns a closed grievance to Pending.
func (c *Client) ReopenGrievance(ctx context.Context, id string, expectedVersion *int64) (Grievance, error) {
	body := map[string]any{}
	if expectedVersion != nil {
		body["expected_version"] = *expectedVersion
	}
	var resp Grievance
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("grievances/%s/reopen", url.PathEscape(id)), body, &resp)
	return resp, err
}

// DepartmentGrievances lists grievances of a department, newest first.
func (c *Client) DepartmentGrievances(ctx context.Context, departmentID string) ([]Grievance, error) {
	var resp []Grievance
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("departments/%s/grievances", url.PathEscape(departmentID)), nil, &resp)
	return resp, err
}

// CreateFile creates an e-Office file in Draft.
func (c *Client) CreateFile(ctx context.Context, f NewFile) (File, error) {
	var resp File
	err := c.do(ctx, http.MethodPost, "files", f, &resp)
	return resp, err
}

// GetFile fetches a file with its history.
func (c *Client) GetFile(ctx context.Context, id string) (File, error) {
	var resp File
	err := c.do(ctx, http.MethodGet, "files/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateFile moves a file and/or changes its assignee or priority.
func (c *Client) UpdateFile(ctx context.Context, id string, u FileUpdate) (File, error) {
	var resp File
	err := c.do(ctx, http.MethodPatch, "files/"+url.PathEscape(id), u, &resp)
	return resp, err
}

// ListFiles lists files of a department, most recently updated first.
func (c *Client) ListFiles(ctx context.Context, departmentID string) ([]File, error) {
	var resp []File
	err := c.do(ctx, http.MethodGet, "files?department_id="+url.QueryEscape(departmentID), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
