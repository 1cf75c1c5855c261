package site

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/starford/gistblog/internal/markdown"
	"github.com/starford/gistblog/internal/models"
)

const feedGenerator = "gist-blog-generator"

type cdata struct {
	Text string `xml:",cdata"`
}

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	PubDate       string    `xml:"pubDate"`
	TTL           int       `xml:"ttl"`
	AtomLink      atomLink  `xml:"atom:link"`
	Generator     string    `xml:"generator"`
	Image         rssImage  `xml:"image"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssImage struct {
	URL    string `xml:"url"`
	Title  string `xml:"title"`
	Link   string `xml:"link"`
	Width  int    `xml:"width"`
	Height int    `xml:"height"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type rssItem struct {
	Title       cdata    `xml:"title"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Description cdata    `xml:"description"`
	Categories  []string `xml:"category"`
}

func rssDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// Feed renders posts, already in display order, as an RSS 2.0 document.
func Feed(site Info, posts []models.Post, now time.Time) ([]byte, error) {
	base := strings.TrimSuffix(site.URL, "/")
	ch := rssChannel{
		Title:         site.Title,
		Link:          base,
		Description:   site.Description,
		Language:      "en-us",
		LastBuildDate: rssDate(now),
		PubDate:       rssDate(now),
		TTL:           60,
		AtomLink:      atomLink{Href: base + "/feed.xml", Rel: "self", Type: "application/rss+xml"},
		Generator:     feedGenerator,
		Image:         rssImage{URL: base + "/favicon.svg", Title: site.Title, Link: base, Width: 32, Height: 32},
		Items:         make([]rssItem, 0, len(posts)),
	}
	for _, p := range posts {
		link := base + "/posts/" + p.ID + ".html"
		body, err := markdown.StripPermalinks(p.HTMLContent)
		if err != nil {
			body = p.HTMLContent
		}
		ch.Items = append(ch.Items, rssItem{
			Title:       cdata{p.Title},
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			PubDate:     rssDate(p.CreatedAt),
			Description: cdata{body},
			Categories:  p.Tags,
		})
	}

	out, err := xml.MarshalIndent(rssFeed{Version: "2.0", Atom: "http://www.w3.org/2005/Atom", Channel: ch}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
