package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/gistblog/internal/index"
	"github.com/starford/gistblog/internal/models"
	"github.com/starford/gistblog/internal/postservice"
	"github.com/starford/gistblog/internal/storage"
	"github.com/starford/gistblog/internal/testutil"
)

func testServer(t *testing.T) (*Server, *index.DB, storage.Provider) {
	t.Helper()
	db := testutil.TestDB(t)
	dist := testutil.TestStore(t)
	return New(postservice.NewService(db, dist), "test"), db, dist
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper, so handlers are invoked directly.
	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "search_posts":
		result, err = srv.searchPosts(ctx, req)
	case "get_post":
		result, err = srv.getPost(ctx, req)
	case "list_posts":
		result, err = srv.listPosts(ctx, req)
	case "get_tag_graph":
		result, err = srv.getTagGraph(ctx, req)
	case "get_post_format":
		result, err = srv.getPostFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func indexPost(t *testing.T, db *index.DB, p models.Post) {
	t.Helper()
	if err := db.UpsertPost(p, index.PostChecksum(p)); err != nil {
		t.Fatal(err)
	}
}

func TestGetPost(t *testing.T) {
	srv, db, _ := testServer(t)
	indexPost(t, db, models.Post{ID: "abc", Title: "Hello", Content: "Body text", Tags: []string{"go"}})

	r := callTool(t, srv, "get_post", map[string]any{"id": "abc"})
	var p models.Post
	if err := json.Unmarshal([]byte(resultText(r)), &p); err != nil {
		t.Fatalf("decode: %v (%q)", err, resultText(r))
	}
	if p.Title != "Hello" || p.Content != "Body text" {
		t.Errorf("post = %+v", p)
	}
}

func TestGetPostMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_post", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing post")
	}
}

func TestListPosts(t *testing.T) {
	srv, db, _ := testServer(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	indexPost(t, db, models.Post{ID: "a", Title: "A", Tags: []string{"go"}, CreatedAt: base})
	indexPost(t, db, models.Post{ID: "b", Title: "B", CreatedAt: base.Add(time.Hour)})

	r := callTool(t, srv, "list_posts", map[string]any{"tag": "go"})
	text := resultText(r)
	if !strings.Contains(text, `"total": 1`) || !strings.Contains(text, `"id": "a"`) {
		t.Errorf("list = %s", text)
	}
}

func TestSearchPosts(t *testing.T) {
	srv, db, _ := testServer(t)
	indexPost(t, db, models.Post{ID: "k", Title: "Cluster", Content: "kubernetes operators"})

	r := callTool(t, srv, "search_posts", map[string]any{"query": "kubernetes"})
	if r.IsError || !strings.Contains(resultText(r), `"id": "k"`) {
		t.Errorf("search = %s", resultText(r))
	}

	r = callTool(t, srv, "search_posts", map[string]any{})
	if !r.IsError {
		t.Error("expected error without query")
	}
}

func TestGetTagGraph(t *testing.T) {
	srv, _, dist := testServer(t)

	if r := callTool(t, srv, "get_tag_graph", nil); !r.IsError {
		t.Error("expected error before first build")
	}

	if err := dist.Write(postservice.GraphFile, []byte(`{"nodes":[{"id":"go","count":1}],"edges":[]}`)); err != nil {
		t.Fatal(err)
	}
	r := callTool(t, srv, "get_tag_graph", nil)
	if r.IsError || !strings.Contains(resultText(r), `"go"`) {
		t.Errorf("graph = %s", resultText(r))
	}
}

func TestPostFormat(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_post_format", nil)
	if resultText(r) != PostFormatContract {
		t.Error("format tool should return the contract")
	}

	contents, err := srv.readPostFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != PostFormatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
