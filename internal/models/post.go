// Package models defines the domain types shared across the build pipeline.
package models

import "time"

// GistFile is one file of a gist as returned by the GitHub API.
type GistFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content,omitempty"`
	Language string `json:"language,omitempty"`
	RawURL   string `json:"raw_url,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Gist is a remote document as fetched from the GitHub gists API.
// The list endpoint returns files without content; the single gist
// endpoint fills Content in.
type Gist struct {
	ID          string              `json:"id"`
	URL         string              `json:"url"`
	HTMLURL     string              `json:"html_url"`
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Files       map[string]GistFile `json:"files"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TOCEntry is one table-of-contents line for a post.
// Index is the 1-based position of the heading among all ToC headings.
type TOCEntry struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
	Index  int    `json:"index"`
}

// Post is the parsed, render-ready form of a gist.
type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	HTMLContent string     `json:"html_content"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	URL         string     `json:"url"`
	Files       []string   `json:"files"`
	Filename    string     `json:"filename"`
	Tags        []string   `json:"tags"`
	WordCount   int        `json:"word_count"`
	ReadingTime string     `json:"reading_time"`
	TOC         []TOCEntry `json:"toc"`
	HasTOC      bool       `json:"has_toc"`
}
