package api

import (
	"github.com/starford/gistblog/internal/index"
	"github.com/starford/gistblog/internal/models"
	"github.com/starford/gistblog/internal/postservice"
)

// PostDetail is the full post response type (aliased from the domain layer).
type PostDetail = models.Post

// PostListItem is a lightweight item in a list response (aliased from the domain layer).
type PostListItem = postservice.PostListItem

// PostListResponse wraps paginated post listings.
type PostListResponse struct {
	Posts []PostListItem `json:"posts" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphResponse is the tag co-occurrence graph of the last build.
type GraphResponse = models.Graph
