package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//go:embed templates
var embedded embed.FS

// Page templates, each rendered inside layout.html.
const (
	IndexTemplate = "index.html"
	PostTemplate  = "post.html"
	GraphTemplate = "graph.html"

	layoutTemplate = "layout.html"
)

// StaticFiles are copied verbatim into the dist directory.
var StaticFiles = []string{"styles.css", "favicon.svg", "assets/main.js", "assets/graph.js"}

var funcs = template.FuncMap{
	"safe":    func(s string) template.HTML { return template.HTML(s) }, //nolint:gosec // rendered by goldmark
	"join":    strings.Join,
	"rfc3339": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}

// Info is the site identity shown in pages and the feed.
type Info struct {
	URL         string
	Title       string
	Description string
}

// Page is the data passed to layout.html; Data goes to the page template.
type Page struct {
	Title      string
	Site       Info
	Timestamp  int64
	LiveReload bool
	Data       any
}

// Theme holds parsed templates and static assets.
type Theme struct {
	pages  map[string]*template.Template
	static map[string][]byte
}

// LoadTheme parses the embedded theme. Files present in overrideDir replace
// their embedded counterparts; an empty overrideDir uses the embedded theme only.
func LoadTheme(overrideDir string) (*Theme, error) {
	read := func(name string) ([]byte, error) {
		if overrideDir != "" {
			data, err := os.ReadFile(filepath.Join(overrideDir, filepath.FromSlash(name)))
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("site: read %s: %w", name, err)
			}
		}
		return fs.ReadFile(embedded, "templates/"+name)
	}

	layout, err := read(layoutTemplate)
	if err != nil {
		return nil, err
	}

	t := &Theme{pages: make(map[string]*template.Template), static: make(map[string][]byte)}
	for _, name := range []string{IndexTemplate, PostTemplate, GraphTemplate} {
		body, err := read(name)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(name).Funcs(funcs).Parse(string(layout))
		if err != nil {
			return nil, fmt.Errorf("site: parse %s: %w", layoutTemplate, err)
		}
		if _, err := tmpl.Parse(string(body)); err != nil {
			return nil, fmt.Errorf("site: parse %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}
	for _, name := range StaticFiles {
		data, err := read(name)
		if err != nil {
			return nil, err
		}
		t.static[name] = data
	}
	return t, nil
}

// Render executes the named page template inside the layout.
func (t *Theme) Render(name string, p Page) ([]byte, error) {
	tmpl, ok := t.pages[name]
	if !ok {
		return nil, fmt.Errorf("site: unknown template %s", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", p); err != nil {
		return nil, fmt.Errorf("site: render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Static returns the contents of a static file.
func (t *Theme) Static(name string) []byte {
	return t.static[name]
}
