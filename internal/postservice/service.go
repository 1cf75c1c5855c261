// Package postservice answers read queries about the built site for the
// preview API and the MCP server.
package postservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/starford/gistblog/internal/apperr"
	"github.com/starford/gistblog/internal/index"
	"github.com/starford/gistblog/internal/models"
	"github.com/starford/gistblog/internal/storage"
)

// GraphFile is the graph artifact inside the dist directory.
const GraphFile = "graph.json"

// PostListItem is a lightweight item in a list response.
type PostListItem = index.PostRow

// Service coordinates index and dist-directory reads.
type Service struct {
	db   index.PostIndex
	dist storage.Provider
}

// NewService creates a new post service.
func NewService(db index.PostIndex, dist storage.Provider) *Service {
	return &Service{db: db, dist: dist}
}

// ListPosts returns paginated posts with optional tag filter.
func (s *Service) ListPosts(_ context.Context, limit, offset int, tag string) ([]PostListItem, int, error) {
	rows, total, err := s.db.ListPosts(limit, offset, tag)
	if err != nil {
		return nil, 0, err
	}
	for i := range rows {
		rows[i].Tags = nonNilSlice(rows[i].Tags)
	}
	return rows, total, nil
}

// GetPost returns one post by gist id.
func (s *Service) GetPost(_ context.Context, id string) (*models.Post, error) {
	p, err := s.db.GetPost(id)
	if err != nil {
		return nil, err
	}
	p.Tags = nonNilSlice(p.Tags)
	p.TOC = nonNilSlice(p.TOC)
	return p, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns the tag graph of the last build.
func (s *Service) Graph(_ context.Context) (*models.Graph, error) {
	data, err := s.dist.Read(GraphFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	var g models.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("postservice: decode graph: %w", err)
	}
	g.Nodes = nonNilSlice(g.Nodes)
	g.Edges = nonNilSlice(g.Edges)
	return &g, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
