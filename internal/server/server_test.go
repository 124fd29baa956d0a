package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagewright/internal/config"
	"pagewright/internal/db"
	"pagewright/internal/definitions"
	"pagewright/internal/domain"
	"pagewright/internal/engine"
	"pagewright/internal/engine/auth"
	"pagewright/internal/metrics"
	"pagewright/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
}

func newTestServer(t *testing.T, configure func(*Config)) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	defs := definitions.NewRegistry()
	require.NoError(t, defs.Register(definitions.Builtin()))
	e := engine.New(conn, defs)
	e.Metrics = metrics.New()
	for id, role := range testActors {
		_, err := e.SetActorRole(context.Background(), id, role)
		require.NoError(t, err)
	}

	cfg := Config{
		Engine:  e,
		Auth:    AuthConfig{JWTSecret: testSecret, AllowLegacyActorHeader: true},
		Metrics: e.Metrics,
	}
	if configure != nil {
		configure(&cfg)
	}
	handler, err := New(cfg)
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String(), Engine: e, client: &http.Client{}}
}

// testActors are seeded into every test server; the legacy header only
// names the actor and the role comes from the actors table.
var testActors = map[string]auth.Role{
	"u1": auth.RoleUser,
	"m1": auth.RoleMember,
	"a1": auth.RoleAdmin,
	"o1": auth.RoleOwner,
}

func as(actorID string) map[string]string {
	return map[string]string{"X-Actor-Id": actorID}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func requireError(t *testing.T, res *http.Response, data []byte, status int, code string) {
	t.Helper()
	require.Equal(t, status, res.StatusCode, string(data))
	env := decode[errorEnvelope](t, data)
	assert.Equal(t, code, env.Error.Code, string(data))
}

func (s *testServer) createPost(t *testing.T, slug string) domain.Page {
	t.Helper()
	res, data := s.do(t, http.MethodPost, "/v1/pages", map[string]any{
		"type":  "BlogPost",
		"slug":  slug,
		"title": map[string]string{"en": "Hello " + slug},
	}, as("m1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	return decode[domain.Page](t, data)
}

func TestPageReviewFlow(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.createPost(t, "hello")
	assert.Nil(t, p.PostedAt)

	res, data := s.do(t, http.MethodGet, "/v1/pages/id/"+p.ID, nil, as("m1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	raw := decode[map[string]any](t, data)
	postedAt, ok := raw["posted_at"]
	assert.True(t, ok, "drafts carry posted_at")
	assert.Nil(t, postedAt)

	res, data = s.do(t, http.MethodGet, "/v1/pages/BlogPost/hello", nil, nil)
	requireError(t, res, data, http.StatusNotFound, "not_found")

	res, data = s.do(t, http.MethodPost, "/v1/pages/id/"+p.ID+"/publish", nil, as("m1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = s.do(t, http.MethodGet, "/v1/pages/BlogPost/hello", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "Hello hello", decode[domain.Page](t, data).Title["en"])

	res, data = s.do(t, http.MethodGet, "/v1/pages/find/hello", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = s.do(t, http.MethodPut, "/v1/pages/id/"+p.ID, map[string]any{
		"title": map[string]string{"en": "Edited"},
	}, as("m1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	v := decode[domain.PageVersion](t, data)
	assert.Equal(t, domain.VersionPending, v.Status)

	res, data = s.do(t, http.MethodGet, "/v1/pages/BlogPost/hello", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Hello hello", decode[domain.Page](t, data).Title["en"], "proposal leaves the live page alone")

	res, data = s.do(t, http.MethodPost, "/v1/versions/"+v.ID+"/approve", nil, as("m1"))
	requireError(t, res, data, http.StatusForbidden, "forbidden")

	res, data = s.do(t, http.MethodPost, "/v1/versions/"+v.ID+"/approve", nil, as("a1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	result := decode[engine.VersionResult](t, data)
	assert.Equal(t, "Edited", result.Page.Title["en"])
	assert.Equal(t, domain.VersionApproved, result.Version.Status)

	res, data = s.do(t, http.MethodPost, "/v1/versions/"+v.ID+"/approve", nil, as("a1"))
	requireError(t, res, data, http.StatusConflict, "invalid_state")

	res, data = s.do(t, http.MethodGet, "/v1/pages/id/"+p.ID+"/versions", nil, as("u1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Len(t, decode[versionList](t, data).Items, 1)

	res, data = s.do(t, http.MethodDelete, "/v1/pages/id/"+p.ID, nil, as("o1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.True(t, decode[DeleteResponse](t, data).Success)

	res, data = s.do(t, http.MethodGet, "/v1/pages/BlogPost/hello", nil, nil)
	requireError(t, res, data, http.StatusNotFound, "not_found")
	res, data = s.do(t, http.MethodGet, "/v1/pages/id/"+p.ID, nil, as("a1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.NotNil(t, decode[domain.Page](t, data).DeletedAt)
}

func TestStaleExpectedUpdatedAt(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.createPost(t, "stale")
	res, data := s.do(t, http.MethodPut, "/v1/pages/id/"+p.ID, map[string]any{
		"title": map[string]string{"en": "Next"},
	}, as("m1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	v := decode[domain.PageVersion](t, data)

	stale := p.UpdatedAt.Add(-time.Hour).Format(time.RFC3339Nano)
	res, data = s.do(t, http.MethodPost, "/v1/versions/"+v.ID+"/approve?expected_updated_at="+stale, nil, as("a1"))
	requireError(t, res, data, http.StatusConflict, "conflict")

	res, data = s.do(t, http.MethodPost, "/v1/versions/"+v.ID+"/approve?expected_updated_at=yesterday", nil, as("a1"))
	requireError(t, res, data, http.StatusBadRequest, "validation_failed")
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t, nil)
	post := map[string]any{"type": "BlogPost", "slug": "x", "title": map[string]string{"en": "X"}}

	cases := []struct {
		name    string
		method  string
		path    string
		body    any
		headers map[string]string
		status  int
		code    string
	}{
		{"anonymous create", http.MethodPost, "/v1/pages", post, nil, http.StatusUnauthorized, "unauthorized"},
		{"user create", http.MethodPost, "/v1/pages", post, as("u1"), http.StatusForbidden, "forbidden"},
		{"unknown type", http.MethodPost, "/v1/pages", map[string]any{"type": "Nope", "slug": "x", "title": map[string]string{"en": "X"}}, as("m1"), http.StatusBadRequest, "validation_failed"},
		{"missing title", http.MethodPost, "/v1/pages", map[string]any{"type": "BlogPost", "slug": "x"}, as("m1"), http.StatusBadRequest, "validation_failed"},
		{"bad slug", http.MethodPost, "/v1/pages", map[string]any{"type": "BlogPost", "slug": "Not A Slug", "title": map[string]string{"en": "X"}}, as("m1"), http.StatusBadRequest, "validation_failed"},
		{"missing page", http.MethodGet, "/v1/pages/BlogPost/missing", nil, nil, http.StatusNotFound, "not_found"},
		{"missing definition", http.MethodGet, "/v1/definitions/Nope", nil, nil, http.StatusNotFound, "not_found"},
		{"drafts anonymously", http.MethodGet, "/v1/pages?status=draft", nil, nil, http.StatusUnauthorized, "unauthorized"},
		{"bad status", http.MethodGet, "/v1/pages?status=gone", nil, as("m1"), http.StatusBadRequest, "validation_failed"},
		{"events as member", http.MethodGet, "/v1/events", nil, as("m1"), http.StatusForbidden, "forbidden"},
		{"bad cursor", http.MethodGet, "/v1/events?cursor=abc", nil, as("a1"), http.StatusBadRequest, "bad_request"},
		{"empty proposal", http.MethodPut, "/v1/pages/id/any", nil, as("m1"), http.StatusBadRequest, "bad_request"},
		{"bad bearer", http.MethodGet, "/v1/me", nil, map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, "unauthorized"},
		{"bad api key", http.MethodGet, "/v1/me", nil, map[string]string{"X-Api-Key": "pw_nope"}, http.StatusUnauthorized, "unauthorized"},
		{"me anonymously", http.MethodGet, "/v1/me", nil, nil, http.StatusUnauthorized, "unauthorized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := s.do(t, tc.method, tc.path, tc.body, tc.headers)
			requireError(t, res, data, tc.status, tc.code)
		})
	}
}

func TestListPagesAndSlugs(t *testing.T) {
	s := newTestServer(t, nil)
	for _, slug := range []string{"a", "b", "c"} {
		s.createPost(t, slug)
	}
	res, data := s.do(t, http.MethodGet, "/v1/pages?type=BlogPost&order_by=title&order=asc&limit=2", nil, as("m1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	list := decode[engine.PageList](t, data)
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "a", list.Items[0].Slug)

	res, data = s.do(t, http.MethodGet, "/v1/pages", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Empty(t, decode[engine.PageList](t, data).Items, "drafts are hidden from anonymous callers")

	res, data = s.do(t, http.MethodGet, "/v1/pages/slugs?type=BlogPost", nil, as("m1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Len(t, decode[slugList](t, data).Items, 3)
}

func TestDefinitionsArePublic(t *testing.T) {
	s := newTestServer(t, nil)
	res, data := s.do(t, http.MethodGet, "/v1/definitions", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	types := []string{}
	for _, def := range decode[definitionList](t, data).Items {
		types = append(types, def.Type)
	}
	assert.Contains(t, types, "BlogPost")

	res, data = s.do(t, http.MethodGet, "/v1/definitions/BlogPost", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "BlogPost", decode[engine.DefinitionInfo](t, data).Type)
}

func TestBearerAndAPIKeyAuth(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.DevLogin = true
		c.Auth.AllowLegacyActorHeader = false
	})

	res, data := s.do(t, http.MethodPost, "/v1/auth/dev/login", map[string]any{"actor_id": "ed", "role": "admin"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	token := decode[DevLoginResponse](t, data).Token
	require.NotEmpty(t, token)

	res, data = s.do(t, http.MethodGet, "/v1/me", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, WhoAmIResponse{ActorID: "ed", Role: "admin", Source: "jwt"}, decode[WhoAmIResponse](t, data))

	ctx := context.Background()
	_, err := s.Engine.SetActorRole(ctx, "bot", auth.RoleMember)
	require.NoError(t, err)
	_, plain, err := s.Engine.CreateAPIKey(ctx, "bot", "ci")
	require.NoError(t, err)
	res, data = s.do(t, http.MethodGet, "/v1/me", nil, map[string]string{"X-Api-Key": plain})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, WhoAmIResponse{ActorID: "bot", Role: "member", Source: "api_key"}, decode[WhoAmIResponse](t, data))

	// stored role applies when the token has none
	unscoped, err := SignToken(testSecret, "bot", "", time.Minute)
	require.NoError(t, err)
	res, data = s.do(t, http.MethodGet, "/v1/me", nil, map[string]string{"Authorization": "Bearer " + unscoped})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "member", decode[WhoAmIResponse](t, data).Role)

	expired, err := SignToken(testSecret, "bot", auth.RoleOwner, -time.Minute)
	require.NoError(t, err)
	res, data = s.do(t, http.MethodGet, "/v1/me", nil, map[string]string{"Authorization": "Bearer " + expired})
	requireError(t, res, data, http.StatusUnauthorized, "unauthorized")

	res, data = s.do(t, http.MethodGet, "/v1/me", nil, as("a1"))
	requireError(t, res, data, http.StatusUnauthorized, "unauthorized")
}

func TestLegacyHeaderUsesStoredRole(t *testing.T) {
	s := newTestServer(t, nil)
	claim := map[string]string{"X-Actor-Id": "u1", "X-Actor-Role": string(auth.RoleOwner)}

	res, data := s.do(t, http.MethodGet, "/v1/me", nil, claim)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, WhoAmIResponse{ActorID: "u1", Role: "user", Source: "legacy_header"}, decode[WhoAmIResponse](t, data))

	res, data = s.do(t, http.MethodGet, "/v1/events", nil, claim)
	requireError(t, res, data, http.StatusForbidden, "forbidden")

	res, data = s.do(t, http.MethodGet, "/v1/me", nil, as("stranger"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, "user", decode[WhoAmIResponse](t, data).Role)
}

func TestDevLoginDisabledByDefault(t *testing.T) {
	s := newTestServer(t, nil)
	res, _ := s.do(t, http.MethodPost, "/v1/auth/dev/login", map[string]any{"actor_id": "ed"}, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestEventsPagination(t *testing.T) {
	s := newTestServer(t, nil)
	for _, slug := range []string{"e1", "e2", "e3"} {
		s.createPost(t, slug)
	}
	res, data := s.do(t, http.MethodGet, "/v1/events?limit=2", nil, as("a1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	first := decode[paginatedEvents](t, data)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, "page.created", first.Items[0].Type)
	assert.Greater(t, first.Items[0].ID, first.Items[1].ID)
	payload, ok := first.Items[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "e3", payload["slug"])

	res, data = s.do(t, http.MethodGet, "/v1/events?limit=2&cursor="+first.NextCursor, nil, as("a1"))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	second := decode[paginatedEvents](t, data)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)
}

func TestOpenAPIAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodGet, "/v1/health", nil, nil)

	res, data := s.do(t, http.MethodGet, "/v1/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var oas struct {
		Paths      map[string]any `json:"paths"`
		Components struct {
			SecuritySchemes map[string]any `json:"securitySchemes"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(data, &oas))
	assert.Contains(t, oas.Paths, "/v1/pages/{type}/{slug}")
	assert.Contains(t, oas.Paths, "/v1/versions/{version_id}/revert")
	assert.Contains(t, oas.Components.SecuritySchemes, "bearerAuth")

	res, data = s.do(t, http.MethodGet, "/docs", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "/v1/openapi.json")

	res, data = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), `pagewright_http_requests_total{code="200",method="GET"}`)
}

func TestWebhookDelivery(t *testing.T) {
	webhookInterval = 10 * time.Millisecond
	t.Cleanup(func() { webhookInterval = 2 * time.Second })

	var (
		mu       sync.Mutex
		received []webhookEvent
		headers  []http.Header
	)
	failures := 1
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var evt webhookEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err == nil {
			received = append(received, evt)
			headers = append(headers, r.Header.Clone())
		}
	}))
	defer hook.Close()

	s := newTestServer(t, nil)
	s.createPost(t, "before-start")

	ctx, cancel := context.WithCancel(context.Background())
	done := StartWebhookDispatcher(ctx, s.Engine, []config.WebhookConfig{
		{URL: hook.URL, Events: []string{"page.created"}, Secret: "shh"},
	}, nil)

	p := s.createPost(t, "after-start")
	s.do(t, http.MethodPost, "/v1/pages/id/"+p.ID+"/publish", nil, as("m1"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "page.created", received[0].Type)
	assert.Equal(t, p.ID, received[0].PageID)
	assert.True(t, strings.Contains(string(received[0].Payload), "after-start"))
	assert.Equal(t, "page.created", headers[0].Get("X-Pagewright-Event"))
	assert.Equal(t, "shh", headers[0].Get("X-Pagewright-Secret"))
}

func TestWebhookDispatcherWithoutActiveHooks(t *testing.T) {
	off := false
	done := StartWebhookDispatcher(context.Background(), engine.Engine{}, []config.WebhookConfig{{URL: "http://x.test", Enabled: &off}}, nil)
	select {
	case <-done:
	default:
		t.Fatal("dispatcher should not start without active hooks")
	}
}
