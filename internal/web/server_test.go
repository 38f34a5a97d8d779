// SPDX-License-Identifier: MIT

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minipress/minipress/internal/cache"
	"github.com/minipress/minipress/internal/config"
	"github.com/minipress/minipress/internal/health"
	"github.com/minipress/minipress/internal/post"
	"github.com/minipress/minipress/internal/publish"
	"github.com/minipress/minipress/internal/session"
	"github.com/minipress/minipress/internal/storage"
	"github.com/minipress/minipress/internal/storage/sqlite"
	"github.com/minipress/minipress/internal/trending"
)

const (
	testPassword = "hunter2"
	testAPIToken = "test-api-token"
)

// countingStore wraps a store and counts GetPost calls, so tests can
// observe whether a request was served from the cache.
type countingStore struct {
	storage.Store
	gets atomic.Int64
}

func (c *countingStore) GetPost(ctx context.Context, id int64) (*post.Post, error) {
	c.gets.Add(1)
	return c.Store.GetPost(ctx, id)
}

type testEnv struct {
	server *Server
	store  *countingStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dataDir := t.TempDir()

	raw, err := sqlite.Open(dataDir+"/posts.db", sqlite.DefaultConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = raw.Close() })
	store := &countingStore{Store: raw}

	sessions, err := session.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open sessions: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	hash, err := session.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	cfg := config.AppConfig{
		Version:           "test",
		DataDir:           dataDir,
		BaseURL:           "http://localhost:8080",
		SiteTitle:         "minipress",
		SiteDescription:   "test site",
		AuthorName:        "alice",
		AdminPasswordHash: hash,
		APIToken:          testAPIToken,
		SessionTTL:        time.Hour,
		CacheBackend:      config.CacheMemory,
		CacheTTL:          time.Minute,
		TrendingEnabled:   true,
		PublishInterval:   time.Minute,
	}
	holder := config.NewHolder(cfg, config.NewLoader("", "test"), "")

	pub := publish.New(store, publish.Config{
		DataDir:         dataDir,
		BaseURL:         cfg.BaseURL,
		SiteTitle:       cfg.SiteTitle,
		SiteDescription: cfg.SiteDescription,
		Interval:        cfg.PublishInterval,
	})

	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewPingChecker("sqlite", raw.Ping))

	srv, err := New(Options{
		Holder:    holder,
		Store:     store,
		Cache:     cache.NewMemory(0),
		Trending:  trending.NewMemory(),
		Sessions:  sessions,
		Publisher: pub,
		Health:    hm,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	return &testEnv{server: srv, store: store}
}

func (e *testEnv) createPost(t *testing.T, title, description string, published bool) *post.Post {
	t.Helper()
	p, err := e.store.CreatePost(context.Background(), post.Draft{
		Title:       title,
		Description: description,
		Published:   published,
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// login performs the login flow and returns the session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()

	form := url.Values{"password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := e.do(req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, want 303", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func TestRouting(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "Routed", "a post for routing tests", true)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "unknown path", method: http.MethodGet, path: "/no/such/page", want: http.StatusNotFound},
		{name: "show route", method: http.MethodGet, path: "/posts/1", want: http.StatusOK},
		{name: "method mismatch", method: http.MethodDelete, path: "/posts/1", want: http.StatusMethodNotAllowed},
		{name: "non-numeric id", method: http.MethodGet, path: "/posts/abc", want: http.StatusBadRequest},
		{name: "negative id", method: http.MethodGet, path: "/posts/-3", want: http.StatusBadRequest},
		{name: "home", method: http.MethodGet, path: "/", want: http.StatusOK},
		{name: "index", method: http.MethodGet, path: "/posts", want: http.StatusOK},
		{name: "healthz", method: http.MethodGet, path: "/healthz", want: http.StatusOK},
		{name: "readyz", method: http.MethodGet, path: "/readyz", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestShowRendersTitleAndDescription(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "Hello World", "The very first post.", true)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Hello World</h1>") {
		t.Error("title missing from rendered page")
	}
	if !strings.Contains(body, "The very first post.") {
		t.Error("description missing from rendered page")
	}
}

func TestShowEscapesDescription(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "XSS", `<script>alert("pwn")</script>`, true)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	if strings.Contains(rec.Body.String(), "<script>alert") {
		t.Error("description HTML was not escaped")
	}
}

func TestShowUnknownPost(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/posts/999", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestShowDraftHiddenFromReaders(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "Secret", "not yet public", false)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("anonymous draft view = %d, want 404", rec.Code)
	}

	cookie := env.login(t)
	req := httptest.NewRequest(http.MethodGet, "/posts/1", nil)
	req.AddCookie(cookie)
	rec = env.do(req)
	if rec.Code != http.StatusOK {
		t.Errorf("author draft view = %d, want 200", rec.Code)
	}
}

func TestShowServedFromCache(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "Cached", "served twice", true)

	env.do(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	first := env.store.gets.Load()

	env.do(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	second := env.store.gets.Load()

	if second != first {
		t.Errorf("GetPost calls went from %d to %d; second request should hit the cache", first, second)
	}
}

func TestCreateRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"title": {"t"}, "description": {"d"}}
	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("redirect = %q, want /login", loc)
	}
}

func TestCreateUpdateDeleteFlow(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	// Create.
	form := url.Values{
		"title":       {"Flow Post"},
		"description": {"created through the form"},
		"published":   {"true"},
	}
	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := env.do(req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create status = %d, want 303", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc != "/posts/1" {
		t.Fatalf("create redirect = %q, want /posts/1", loc)
	}

	// Update.
	form.Set("title", "Flow Post v2")
	req = httptest.NewRequest(http.MethodPost, "/posts/1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec = env.do(req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("update status = %d, want 303", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	if !strings.Contains(rec.Body.String(), "Flow Post v2") {
		t.Error("updated title not visible")
	}

	// Delete.
	req = httptest.NewRequest(http.MethodPost, "/posts/1/delete", nil)
	req.AddCookie(cookie)
	rec = env.do(req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete status = %d, want 303", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted post status = %d, want 404", rec.Code)
	}
}

func TestCreateValidationRerendersForm(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	form := url.Values{"title": {""}, "description": {"body without a title"}}
	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := env.do(req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "title is required") {
		t.Error("field error not rendered")
	}
	if !strings.Contains(body, "body without a title") {
		t.Error("submitted description not preserved in form")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "wrong password") {
		t.Error("login error not shown")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	if rec := env.do(req); rec.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d, want 303", rec.Code)
	}

	// The old cookie no longer grants access.
	req = httptest.NewRequest(http.MethodGet, "/posts/new", nil)
	req.AddCookie(cookie)
	rec := env.do(req)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status after logout = %d, want 303 redirect to login", rec.Code)
	}
}

func TestAPIGetPost(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "API Post", "fetched as JSON", true)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/posts/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Post     post.Post      `json:"post"`
		Comments []post.Comment `json:"comments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Post.Title != "API Post" {
		t.Errorf("title = %q", body.Post.Title)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/posts/99", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/posts/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestAPIWriteRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	draft := `{"title":"t","description":"d","published":true}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(draft))
	rec := env.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(draft))
	req.Header.Set("Authorization", "Bearer wrong-token")
	if rec := env.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(draft))
	req.Header.Set("Authorization", "Bearer "+testAPIToken)
	rec = env.do(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid token status = %d, want 201", rec.Code)
	}

	var created post.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Slug == "" {
		t.Error("created post has no slug")
	}
}

func TestAPIValidation(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{"title":"","description":""}`))
	req.Header.Set("Authorization", "Bearer "+testAPIToken)
	rec := env.do(req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var body struct {
		Error  string            `json:"error"`
		Fields []post.FieldError `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Fields) != 2 {
		t.Errorf("got %d field errors, want 2", len(body.Fields))
	}

	// Malformed JSON is a 400, not a 422.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{not json`))
	req.Header.Set("Authorization", "Bearer "+testAPIToken)
	if rec := env.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestAPICommentsAndRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "Commented", "has comments", true)

	comment := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/posts/1/comments",
			bytes.NewBufferString(body))
		req.RemoteAddr = "203.0.113.7:4711"
		return env.do(req)
	}

	rec := comment(`{"author":"bob","body":"nice post"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment status = %d, want 201", rec.Code)
	}

	// The per-IP bucket allows a small burst, then rejects.
	var limited bool
	for i := 0; i < 10; i++ {
		rec = comment(`{"author":"bob","body":"again"}`)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("comment flood was never rate limited")
	}
	if got := rec.Header().Get("Retry-After"); got == "" {
		t.Error("429 response missing Retry-After")
	}
}

func TestAPITrending(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "Popular", "gets views", true)
	env.createPost(t, "Ignored", "no views", true)

	// Three views of post 1.
	for i := 0; i < 3; i++ {
		env.do(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/trending", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Posts []post.Post `json:"posts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Posts) == 0 || body.Posts[0].Title != "Popular" {
		t.Errorf("trending = %+v, want Popular first", body.Posts)
	}
}

func TestAPIStatusAndRebuild(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "Status", "counted", true)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d, want 200", rec.Code)
	}
	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["posts"] != float64(1) {
		t.Errorf("posts = %v, want 1", status["posts"])
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rebuild", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIToken)
	rec = env.do(req)
	if rec.Code != http.StatusAccepted {
		t.Errorf("rebuild status = %d, want 202", rec.Code)
	}
}

func TestOpenAPIServed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("spec is not JSON: %v", err)
	}
	if doc["openapi"] == nil {
		t.Error("served document has no openapi version field")
	}
}

func TestStoreErrorIs500(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "Fine", "ok", true)

	// Closing the database makes every store call fail.
	if err := env.store.Store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestFeedNotPublishedYet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/feed.xml", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unpublished feed status = %d, want 404", rec.Code)
	}
}

func TestFeedServedAfterRebuild(t *testing.T) {
	env := newTestEnv(t)
	env.createPost(t, "Fed", "in the feed", true)

	if err := env.server.publisher.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/feed.xml", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("feed status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "rss") {
		t.Errorf("feed content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Fed") {
		t.Error("feed does not contain the published post")
	}
}

func TestMediaTraversalBlocked(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/media/..%2f..%2fposts.db",
		"/media/%2e%2e/secret",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := env.do(req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("GET %s = %d, want 403", path, rec.Code)
		}
	}
}

func TestRenderFailureIs500(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/posts/1", nil)
	rec := httptest.NewRecorder()
	env.server.renderPage(rec, req, http.StatusOK, "no-such-template", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("render failure status = %d, want 500", rec.Code)
	}
	if got := rec.Body.String(); got != "internal server error" {
		t.Errorf("render failure body = %q", got)
	}
}
