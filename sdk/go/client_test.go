package pagewrightsdk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	APIKey string
	Body   string
}

func newRecordingServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			APIKey: r.Header.Get("X-Api-Key"),
			Body:   string(body),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestCreatePageSendsBearerToken(t *testing.T) {
	srv, calls := newRecordingServer(t, http.StatusOK, `{"id":"p1","slug":"hello","type":"BlogPost","title":{"en":"Hello"}}`)
	c := New(srv.URL)
	c.BearerToken = "tok"

	p, err := c.CreatePage(context.Background(), CreatePageRequest{Type: "BlogPost", Slug: "hello", Title: Localized{"en": "Hello"}})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "/v1/pages", call.Path)
	assert.Equal(t, "Bearer tok", call.Auth)
	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(call.Body), &sent))
	assert.Equal(t, "hello", sent["slug"])
	assert.NotContains(t, sent, "blocks")
}

func TestPromoteRoutes(t *testing.T) {
	srv, calls := newRecordingServer(t, http.StatusOK, `{"page":{"id":"p1"},"version":{"id":"v1","status":"approved"},"superseded":[]}`)
	c := New(srv.URL)
	c.APIKey = "pw_key"
	ctx := context.Background()

	expected := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	res, err := c.ApproveVersion(ctx, "v1", &expected)
	require.NoError(t, err)
	assert.Equal(t, "approved", res.Version.Status)
	_, err = c.RevertToVersion(ctx, "v0", nil)
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.Equal(t, "/v1/versions/v1/approve", (*calls)[0].Path)
	assert.Equal(t, "expected_updated_at=2024-05-01T12%3A00%3A00Z", (*calls)[0].Query)
	assert.Equal(t, "pw_key", (*calls)[0].APIKey)
	assert.Equal(t, "/v1/versions/v0/revert", (*calls)[1].Path)
	assert.Empty(t, (*calls)[1].Query)
}

func TestListPagesQuery(t *testing.T) {
	srv, calls := newRecordingServer(t, http.StatusOK, `{"items":[{"id":"p1"}],"total":1,"page":2,"limit":5}`)
	c := New(srv.URL)
	list, err := c.ListPages(context.Background(), ListPagesOptions{Type: "BlogPost", OrderBy: "title", Asc: true, Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "limit=5&order=asc&order_by=title&page=2&type=BlogPost", (*calls)[0].Query)
}

func TestDeletePageHard(t *testing.T) {
	srv, calls := newRecordingServer(t, http.StatusOK, `{"success":true}`)
	c := New(srv.URL)
	require.NoError(t, c.DeletePage(context.Background(), "p1", true))
	assert.Equal(t, http.MethodDelete, (*calls)[0].Method)
	assert.Equal(t, "hard=true", (*calls)[0].Query)
}

func TestErrorEnvelopeDecoded(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusConflict, `{"error":{"code":"invalid_state","message":"cannot approve"}}`)
	c := New(srv.URL)
	_, err := c.ApproveVersion(context.Background(), "v1", nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invalid_state", apiErr.Code)
	assert.Equal(t, "cannot approve", apiErr.Message)
}
