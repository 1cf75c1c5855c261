package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/gistblog/internal/index"
	"github.com/starford/gistblog/internal/models"
	"github.com/starford/gistblog/internal/postservice"
	"github.com/starford/gistblog/internal/storage"
	"github.com/starford/gistblog/internal/testutil"
)

// testEnv sets up a temp dist dir, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*index.DB, *storage.FS, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*index.DB, *storage.FS, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	dist := testutil.TestStore(t)
	svc := postservice.NewService(db, dist)
	return db, dist, NewRouter(svc, authEnabled, token, sseHandler)
}

func seed(t *testing.T, db *index.DB) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	posts := []models.Post{
		{ID: "a1", Title: "Kubernetes notes", Content: "pods and kubernetes", Tags: []string{"k8s"}, CreatedAt: base},
		{ID: "b2", Title: "Go tips", Content: "channels everywhere", Tags: []string{"go"}, CreatedAt: base.Add(time.Hour)},
		{ID: "c3", Title: "More Go", Content: "generics", Tags: []string{"go", "k8s"}, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, p := range posts {
		if err := db.UpsertPost(p, index.PostChecksum(p)); err != nil {
			t.Fatalf("UpsertPost: %v", err)
		}
	}
}

func get(t *testing.T, router http.Handler, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListPosts(t *testing.T) {
	db, _, router := testEnv(t, "")
	seed(t, db)

	w := get(t, router, "/posts?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp PostListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if len(resp.Posts) != 2 || resp.Posts[0].ID != "c3" {
		t.Errorf("posts = %+v, want newest first page of 2", resp.Posts)
	}
}

func TestListPosts_TagFilter(t *testing.T) {
	db, _, router := testEnv(t, "")
	seed(t, db)

	w := get(t, router, "/posts?tag=k8s", "")
	var resp PostListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
	for _, p := range resp.Posts {
		if p.ID == "b2" {
			t.Errorf("untagged post %s in k8s listing", p.ID)
		}
	}
}

func TestGetPost(t *testing.T) {
	db, _, router := testEnv(t, "")
	seed(t, db)

	w := get(t, router, "/posts/b2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var p PostDetail
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Title != "Go tips" {
		t.Errorf("title = %q", p.Title)
	}
}

func TestGetPost_NotFound(t *testing.T) {
	_, _, router := testEnv(t, "")

	w := get(t, router, "/posts/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing post = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	db, _, router := testEnv(t, "")
	seed(t, db)

	w := get(t, router, "/search?q=kubernetes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "a1" {
		t.Errorf("results = %+v, want a1", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, _, router := testEnv(t, "")

	w := get(t, router, "/search", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, dist, router := testEnv(t, "")

	if w := get(t, router, "/graph", ""); w.Code != http.StatusNotFound {
		t.Errorf("graph before build = %d, want 404", w.Code)
	}

	if err := dist.Write(postservice.GraphFile, []byte(`{"nodes":[{"id":"go","count":2},{"id":"k8s","count":2}],"edges":[{"source":"go","target":"k8s","weight":1}]}`)); err != nil {
		t.Fatal(err)
	}
	w := get(t, router, "/graph", "")
	if w.Code != http.StatusOK {
		t.Fatalf("graph status = %d", w.Code)
	}
	var g GraphResponse
	if err := json.NewDecoder(w.Body).Decode(&g); err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph = %+v", g)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	if w := get(t, router, "/posts", "secret123"); w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	if w := get(t, router, "/posts", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	if w := get(t, router, "/posts", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, _, router := testEnv(t, "")

	if w := get(t, router, "/posts", ""); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, _, router := testEnvWithSSE(t, true, "secret", sseStub())

	if w := get(t, router, "/events", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, _, router := testEnvWithSSE(t, true, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}
