// Package markdown renders post bodies to HTML with heading permalinks and
// syntax highlighting.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/sync/singleflight"
)

var (
	slugStripRe = regexp.MustCompile(`[^\w\s-]`)
	slugSpaceRe = regexp.MustCompile(`\s+`)
	slugDashRe  = regexp.MustCompile(`-+`)
)

// Slugify turns a heading title into an anchor id.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugStripRe.ReplaceAllString(s, "")
	s = slugSpaceRe.ReplaceAllString(s, "-")
	s = slugDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Cache memoises rendered HTML by key.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, html string)
}

// Renderer converts markdown to HTML.
type Renderer struct {
	md    goldmark.Markdown
	cache Cache
	group singleflight.Group
}

// New creates a Renderer. A nil cache disables memoisation.
func New(cache Cache) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithParserOptions(parser.WithAttribute()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return &Renderer{md: md, cache: cache}
}

// Render converts src to HTML. When key is non-empty the result is memoised
// and concurrent renders of the same key share one conversion.
func (r *Renderer) Render(src, key string) (string, error) {
	if key == "" || r.cache == nil {
		return r.render(src)
	}
	if out, ok := r.cache.Get(key); ok {
		return out, nil
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		if out, ok := r.cache.Get(key); ok {
			return out, nil
		}
		out, err := r.render(src)
		if err != nil {
			return "", err
		}
		r.cache.Set(key, out)
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Renderer) render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown: convert: %w", err)
	}
	return addPermalinks(buf.String())
}

// addPermalinks gives every heading an id and appends a permalink anchor.
func addPermalinks(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("markdown: parse html: %w", err)
	}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		if !ok || id == "" {
			id = Slugify(s.Text())
			if id == "" {
				return
			}
			s.SetAttr("id", id)
		}
		s.AppendHtml(fmt.Sprintf(`<a href="#%s" class="permalink" aria-label="Permalink">#</a>`, html.EscapeString(id)))
	})
	return doc.Find("body").Html()
}

// StripPermalinks removes permalink anchors, for feeds and excerpts.
func StripPermalinks(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("markdown: parse html: %w", err)
	}
	doc.Find("a.permalink").Remove()
	return doc.Find("body").Html()
}
