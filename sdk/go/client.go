package pagewrightsdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Client is a minimal Pagewright HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client for the API served at baseURL under /v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Localized maps a locale code to text.
type Localized map[string]string

type Block struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Props       map[string]any `json:"props,omitempty"`
	Children    []Block        `json:"children,omitempty"`
	IsTemplated bool           `json:"is_templated,omitempty"`
}

type Content struct {
	Blocks     []Block                   `json:"blocks"`
	Properties map[string]map[string]any `json:"properties"`
}

type Page struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Type        string      `json:"type"`
	Title       Localized   `json:"title"`
	Description Localized   `json:"description,omitempty"`
	Tags        []Localized `json:"tags"`
	AuthorIDs   []string    `json:"author_ids"`
	Content     Content     `json:"content"`
	PostedAt    *time.Time  `json:"posted_at"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Version struct {
	ID          string      `json:"id"`
	PageID      string      `json:"page_id"`
	Seq         int64       `json:"seq"`
	Status      string      `json:"status"`
	Slug        string      `json:"slug"`
	Type        string      `json:"type"`
	Title       Localized   `json:"title"`
	Description Localized   `json:"description,omitempty"`
	Tags        []Localized `json:"tags"`
	AuthorIDs   []string    `json:"author_ids"`
	Content     Content     `json:"content"`
	PostedAt    *time.Time  `json:"posted_at"`
	CreatedBy   string      `json:"created_by"`
	ApprovedBy  *string     `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time  `json:"approved_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// VersionResult is returned by approve and revert.
type VersionResult struct {
	Page       Page     `json:"page"`
	Version    Version  `json:"version"`
	Superseded []string `json:"superseded"`
}

type CreatePageRequest struct {
	Type        string                    `json:"type"`
	Slug        string                    `json:"slug"`
	Title       Localized                 `json:"title"`
	Description Localized                 `json:"description,omitempty"`
	Tags        []Localized               `json:"tags,omitempty"`
	AuthorIDs   []string                  `json:"author_ids,omitempty"`
	Blocks      []Block                   `json:"blocks,omitempty"`
	Properties  map[string]map[string]any `json:"properties,omitempty"`
}

// ProposeVersionRequest holds a change; unset fields keep the live value.
type ProposeVersionRequest struct {
	Slug        *string                   `json:"slug,omitempty"`
	Title       Localized                 `json:"title,omitempty"`
	Description Localized                 `json:"description,omitempty"`
	Tags        []Localized               `json:"tags,omitempty"`
	AuthorIDs   []string                  `json:"author_ids,omitempty"`
	Blocks      []Block                   `json:"blocks,omitempty"`
	Properties  map[string]map[string]any `json:"properties,omitempty"`
	PostedAt    *time.Time                `json:"posted_at,omitempty"`
}

type ListPagesOptions struct {
	Type    string
	Status  string
	OrderBy string
	Asc     bool
	Page    int
	Limit   int
}

type PageList struct {
	Items []Page `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// APIError wraps non-2xx responses.
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

// CreatePage creates a draft page.
func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (Page, error) {
	var resp Page
	err := c.do(ctx, http.MethodPost, "pages", req, &resp)
	return resp, err
}

// GetPage fetches a page by type and slug.
func (c *Client) GetPage(ctx context.Context, pageType, slug string) (Page, error) {
	var resp Page
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("pages/%s/%s", url.PathEscape(pageType), url.PathEscape(slug)), nil, &resp)
	return resp, err
}

func (c *Client) ListPages(ctx context.Context, opts ListPagesOptions) (PageList, error) {
	q := url.Values{}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.OrderBy != "" {
		q.Set("order_by", opts.OrderBy)
	}
	if opts.Asc {
		q.Set("order", "asc")
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	endpoint := "pages"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PageList
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ProposeVersion stores a pending change of a page.
func (c *Client) ProposeVersion(ctx context.Context, pageID string, req ProposeVersionRequest) (Version, error) {
	var resp Version
	err := c.do(ctx, http.MethodPut, "pages/id/"+url.PathEscape(pageID), req, &resp)
	return resp, err
}

func (c *Client) ListVersions(ctx context.Context, pageID string) ([]Version, error) {
	var resp struct {
		Items []Version `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "pages/id/"+url.PathEscape(pageID)+"/versions", nil, &resp)
	return resp.Items, err
}

// ApproveVersion applies a pending version to its page. A non-nil
// expectedUpdatedAt makes the call fail if the page changed meanwhile.
func (c *Client) ApproveVersion(ctx context.Context, versionID string, expectedUpdatedAt *time.Time) (VersionResult, error) {
	return c.promote(ctx, versionID, "approve", expectedUpdatedAt)
}

// RevertToVersion restores a version and rejects every later one.
func (c *Client) RevertToVersion(ctx context.Context, versionID string, expectedUpdatedAt *time.Time) (VersionResult, error) {
	return c.promote(ctx, versionID, "revert", expectedUpdatedAt)
}

func (c *Client) promote(ctx context.Context, versionID, action string, expectedUpdatedAt *time.Time) (VersionResult, error) {
	endpoint := fmt.Sprintf("versions/%s/%s", url.PathEscape(versionID), action)
	if expectedUpdatedAt != nil {
		endpoint += "?expected_updated_at=" + url.QueryEscape(expectedUpdatedAt.UTC().Format(time.RFC3339Nano))
	}
	var resp VersionResult
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) PublishPage(ctx context.Context, pageID string) (Page, error) {
	var resp Page
	err := c.do(ctx, http.MethodPost, "pages/id/"+url.PathEscape(pageID)+"/publish", nil, &resp)
	return resp, err
}

// DeletePage soft deletes a page, or removes it with its versions when hard
// is set.
func (c *Client) DeletePage(ctx context.Context, pageID string, hard bool) error {
	endpoint := "pages/id/" + url.PathEscape(pageID)
	if hard {
		endpoint += "?hard=true"
	}
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
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
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
