package parser

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

var (
	hashtagRe      = regexp.MustCompile(`#(\w+)`)
	hashtagStripRe = regexp.MustCompile(`#\w+\b`)
	spaceRunRe     = regexp.MustCompile(`\s+`)
)

// TagCache memoises tag extraction per description.
type TagCache struct {
	mu sync.Mutex
	m  map[string][]string
}

// NewTagCache creates an empty TagCache.
func NewTagCache() *TagCache {
	return &TagCache{m: make(map[string][]string)}
}

// Extract returns the sorted, lowercased, deduplicated hashtags of
// description. Callers get their own copy.
func (c *TagCache) Extract(description string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tags, ok := c.m[description]; ok {
		return slices.Clone(tags)
	}
	tags := ExtractTags(description)
	c.m[description] = tags
	return slices.Clone(tags)
}

// ExtractTags scans description for #word tokens.
func ExtractTags(description string) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, m := range hashtagRe.FindAllStringSubmatch(description, -1) {
		t := strings.ToLower(m[1])
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// CleanDescription removes hashtags and collapses whitespace.
func CleanDescription(description string) string {
	s := hashtagStripRe.ReplaceAllString(description, "")
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}
