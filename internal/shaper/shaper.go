// Package shaper derives template view models from posts.
//
// Shapers never read the wall clock or the locale themselves; all formatting
// goes through the functions in Options.
package shaper

import (
	"slices"
	"strings"
	"time"

	"github.com/starford/gistblog/internal/dates"
	"github.com/starford/gistblog/internal/models"
)

const (
	DefaultPostsPerPage = 6
	ExcerptLength       = 150
	ShortIDLength       = 7
)

// Options holds the injected formatting collaborators.
type Options struct {
	// FormatDate renders a timestamp with a Go time layout.
	FormatDate func(t time.Time, layout string) string
	// Now renders the build time with a Go time layout.
	Now func(layout string) string
	// Clock returns the build time for machine-readable stamps.
	Clock func() time.Time
	// PostsPerPage sets the pagination threshold.
	PostsPerPage int
}

// Shaper builds view models.
type Shaper struct {
	opts Options
}

// New creates a Shaper. PostsPerPage below 1 uses DefaultPostsPerPage.
func New(opts Options) *Shaper {
	if opts.PostsPerPage < 1 {
		opts.PostsPerPage = DefaultPostsPerPage
	}
	return &Shaper{opts: opts}
}

// IndexPost is one entry of the index page.
type IndexPost struct {
	models.Post
	FormattedDate string
	Excerpt       string
	ShortID       string
	LastUpdate    string
	HasTags       bool
}

// Pagination describes a multi-page index.
type Pagination struct {
	TotalPages   int `json:"total_pages"`
	PostsPerPage int `json:"posts_per_page"`
}

// IndexView is the index page view model.
type IndexView struct {
	Posts       []IndexPost
	PostsLength int
	// LastUpdate is the build time in RFC 3339.
	LastUpdate string
	AllTags    []string
	HasAnyTags bool
	Timestamp  int64
	// Pagination is nil when every post fits on one page.
	Pagination *Pagination
}

// PostView is the post page view model.
type PostView struct {
	models.Post
	FormattedDate string
	// FormattedUpdateDate is empty when the post was never edited.
	FormattedUpdateDate string
	ShortID             string
	CurrentTopic        string
	TagsCSV             string
	Timestamp           int64
}

// IndexData shapes posts, which must already be in display order.
func (s *Shaper) IndexData(sorted []models.Post) IndexView {
	lastUpdate := s.opts.Now(dates.ClockLayout)

	shaped := make([]IndexPost, 0, len(sorted))
	tagSet := make(map[string]struct{})
	for _, p := range sorted {
		shaped = append(shaped, IndexPost{
			Post:          p,
			FormattedDate: s.opts.FormatDate(p.CreatedAt, dates.DateLayout),
			Excerpt:       Excerpt(p.Content, ExcerptLength),
			ShortID:       ShortID(p.ID),
			LastUpdate:    lastUpdate,
			HasTags:       len(p.Tags) > 0,
		})
		for _, t := range p.Tags {
			tagSet[t] = struct{}{}
		}
	}

	allTags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		allTags = append(allTags, t)
	}
	slices.Sort(allTags)

	now := s.opts.Clock()
	view := IndexView{
		Posts:       shaped,
		PostsLength: len(shaped),
		LastUpdate:  now.UTC().Format(time.RFC3339),
		AllTags:     allTags,
		HasAnyTags:  len(allTags) > 0,
		Timestamp:   now.UnixMilli(),
	}
	if pages := (len(shaped) + s.opts.PostsPerPage - 1) / s.opts.PostsPerPage; pages > 1 {
		view.Pagination = &Pagination{TotalPages: pages, PostsPerPage: s.opts.PostsPerPage}
	}
	return view
}

// PostData shapes one post.
func (s *Shaper) PostData(p models.Post) PostView {
	v := PostView{
		Post:          p,
		FormattedDate: s.opts.FormatDate(p.CreatedAt, dates.DateLayout),
		ShortID:       ShortID(p.ID),
		TagsCSV:       strings.Join(p.Tags, ","),
		Timestamp:     s.opts.Clock().UnixMilli(),
	}
	if len(p.Tags) > 0 {
		v.CurrentTopic = p.Tags[0]
	}
	if !p.UpdatedAt.Equal(p.CreatedAt) {
		v.FormattedUpdateDate = s.opts.FormatDate(p.UpdatedAt, dates.DateLayout)
	}
	return v
}

// Excerpt cuts s to n runes, adding "..." when something was cut.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// ShortID returns the first ShortIDLength characters of id.
func ShortID(id string) string {
	if len(id) <= ShortIDLength {
		return id
	}
	return id[:ShortIDLength]
}
