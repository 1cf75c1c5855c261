// Package parser turns fetched gists into posts: title, body, tags, table of
// contents, word count and rendered HTML.
package parser

import (
	"fmt"
	"log/slog"
	"math"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/starford/gistblog/internal/markdown"
	"github.com/starford/gistblog/internal/models"
)

// WordsPerMinute is the reading speed used for reading-time labels.
const WordsPerMinute = 225

var (
	mdExtRe       = regexp.MustCompile(`(?i)\.(md|markdown)$`)
	titleHashesRe = regexp.MustCompile(`^#+\s*`)
	headingRe     = regexp.MustCompile(`^(#{2,6})[ \t]+(.+)$`)
	headingAttrRe = regexp.MustCompile(`^(.*?)\s*\{#([^}]+)\}$`)
	fencedBlockRe = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe  = regexp.MustCompile("`[^`]*`")
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdPunctRe     = regexp.MustCompile("[#*_~`]")
	fenceLineRe   = regexp.MustCompile("^\\s*(```|~~~)")
)

// Renderer converts markdown to HTML, memoised by key.
type Renderer interface {
	Render(src, key string) (string, error)
}

// Parser converts gists to posts. It is safe for concurrent use.
type Parser struct {
	username string
	gistLink *regexp.Regexp
	tags     *TagCache
	renderer Renderer
	logger   *slog.Logger
}

// New creates a Parser. Links to username's own gists are rewritten to local
// post pages; an empty username disables the rewrite.
func New(username string, tags *TagCache, renderer Renderer, logger *slog.Logger) *Parser {
	if tags == nil {
		tags = NewTagCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{username: username, tags: tags, renderer: renderer, logger: logger}
	if username != "" {
		p.gistLink = regexp.MustCompile(`https://gist\.github\.com/` + regexp.QuoteMeta(username) + `/([a-f0-9]+)(?:#[^)\s]*)?`)
	}
	return p
}

// Parse converts g into a post. It returns nil when g has no usable markdown
// file or when anything goes wrong; the cause is logged.
func (p *Parser) Parse(g *models.Gist) (post *models.Post) {
	id := ""
	if g != nil {
		id = g.ID
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("parser: panic", slog.String("id", id), slog.String("error", fmt.Sprint(r)))
			post = nil
		}
	}()

	post, err := p.parse(g)
	if err != nil {
		p.logger.Warn("parser: skipped gist", slog.String("id", id), slog.String("error", err.Error()))
		return nil
	}
	return post
}

func (p *Parser) parse(g *models.Gist) (*models.Post, error) {
	if g == nil || g.Files == nil {
		return nil, fmt.Errorf("no files")
	}
	if g.ID == "" {
		return nil, fmt.Errorf("missing id")
	}

	names := make([]string, 0, len(g.Files))
	for name := range g.Files {
		names = append(names, name)
	}
	slices.Sort(names)

	file, ok := firstMarkdown(g.Files, names)
	if !ok {
		return nil, fmt.Errorf("no markdown file with content")
	}

	title, body := splitTitle(file)
	if title == "" {
		title = "Untitled"
	}

	tags := p.tags.Extract(g.Description)
	desc := CleanDescription(g.Description)
	if desc == "" {
		desc = title
	}

	linked := p.RewriteLinks(body)
	toc := TableOfContents(linked)
	anchored := AddAnchors(linked)

	html, err := p.renderer.Render(anchored, renderKey(g.ID, g.UpdatedAt))
	if err != nil {
		return nil, err
	}

	words := WordCount(body)
	return &models.Post{
		ID:          g.ID,
		Title:       title,
		Description: desc,
		Content:     body,
		HTMLContent: html,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
		URL:         g.HTMLURL,
		Files:       names,
		Filename:    file.Filename,
		Tags:        tags,
		WordCount:   words,
		ReadingTime: ReadingTime(words),
		TOC:         toc,
		HasTOC:      len(toc) > 0,
	}, nil
}

func firstMarkdown(files map[string]models.GistFile, names []string) (models.GistFile, bool) {
	for _, name := range names {
		f := files[name]
		if f.Filename == "" {
			f.Filename = name
		}
		if !strings.HasSuffix(f.Filename, ".md") && !strings.HasSuffix(f.Filename, ".markdown") {
			continue
		}
		if f.Content == "" {
			continue
		}
		return f, true
	}
	return models.GistFile{}, false
}

// splitTitle takes the title from a leading heading line, or from the file
// name without its extension. The remaining body is trimmed.
func splitTitle(f models.GistFile) (title, body string) {
	first, rest, _ := strings.Cut(f.Content, "\n")
	if strings.HasPrefix(first, "#") {
		return strings.TrimSpace(titleHashesRe.ReplaceAllString(first, "")), strings.TrimSpace(rest)
	}
	return mdExtRe.ReplaceAllString(path.Base(f.Filename), ""), strings.TrimSpace(f.Content)
}

func renderKey(id string, updated time.Time) string {
	return id + "_" + updated.UTC().Format(time.RFC3339)
}

// RewriteLinks points links to the author's own gists at local post pages.
func (p *Parser) RewriteLinks(content string) string {
	if p.gistLink == nil {
		return content
	}
	return p.gistLink.ReplaceAllString(content, "/posts/$1.html")
}

// headingLine reports whether line is a level 2-6 heading and returns its
// level, title and anchor. An explicit {#id} suffix wins over the slug.
func headingLine(line string) (level int, title, anchor string, ok bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return 0, "", "", false
	}
	title = strings.TrimSpace(m[2])
	if am := headingAttrRe.FindStringSubmatch(title); am != nil {
		return len(m[1]), strings.TrimSpace(am[1]), am[2], true
	}
	return len(m[1]), title, markdown.Slugify(title), true
}

// scanHeadings calls fn for every heading line outside fenced code blocks.
func scanHeadings(lines []string, fn func(i, level int, title, anchor string)) {
	inFence := false
	for i, line := range lines {
		if fenceLineRe.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if level, title, anchor, ok := headingLine(line); ok {
			fn(i, level, title, anchor)
		}
	}
}

// TableOfContents lists the level 2-6 headings of content in order.
func TableOfContents(content string) []models.TOCEntry {
	toc := []models.TOCEntry{}
	scanHeadings(strings.Split(content, "\n"), func(_ int, level int, title, anchor string) {
		toc = append(toc, models.TOCEntry{Level: level, Title: title, Anchor: anchor, Index: len(toc) + 1})
	})
	return toc
}

// AddAnchors appends a {#anchor} attribute to every level 2-6 heading that
// lacks one, matching the anchors of TableOfContents.
func AddAnchors(content string) string {
	lines := strings.Split(content, "\n")
	scanHeadings(lines, func(i, _ int, _, anchor string) {
		if headingAttrRe.MatchString(strings.TrimSpace(lines[i])) || anchor == "" {
			return
		}
		lines[i] = strings.TrimRight(lines[i], " \t") + " {#" + anchor + "}"
	})
	return strings.Join(lines, "\n")
}

// WordCount counts prose words, ignoring code and markdown syntax.
func WordCount(content string) int {
	s := fencedBlockRe.ReplaceAllString(content, "")
	s = inlineCodeRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllString(s, "$1")
	s = mdPunctRe.ReplaceAllString(s, "")
	return len(strings.Fields(s))
}

// ReadingTime renders a reading-time label for words.
func ReadingTime(words int) string {
	minutes := int(math.Ceil(float64(words) / WordsPerMinute))
	switch {
	case minutes < 1:
		return "< 1 min"
	case minutes == 1:
		return "1 min"
	default:
		return fmt.Sprintf("%d min", minutes)
	}
}
