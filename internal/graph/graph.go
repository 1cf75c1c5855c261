// Package graph builds the tag co-occurrence graph of a post collection.
package graph

import (
	"cmp"
	"slices"

	"github.com/starford/gistblog/internal/models"
)

// DefaultMaxNodes is the node cap used when none is configured.
const DefaultMaxNodes = 20

type pair struct{ a, b string }

func orderedPair(x, y string) pair {
	if x > y {
		x, y = y, x
	}
	return pair{x, y}
}

// BuildFromPosts counts tags per post and tag pairs per post, keeps the
// maxNodes most frequent tags (ties by tag name) and the edges between them.
// Edge sources always sort before targets.
func BuildFromPosts(posts []models.Post, maxNodes int) models.Graph {
	counts := make(map[string]int)
	weights := make(map[pair]int)

	for _, p := range posts {
		tags := distinct(p.Tags)
		for i, t := range tags {
			counts[t]++
			for _, u := range tags[i+1:] {
				weights[orderedPair(t, u)]++
			}
		}
	}

	nodes := make([]models.GraphNode, 0, len(counts))
	for id, n := range counts {
		nodes = append(nodes, models.GraphNode{ID: id, Count: n})
	}
	slices.SortFunc(nodes, func(a, b models.GraphNode) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if maxNodes >= 0 && len(nodes) > maxNodes {
		nodes = nodes[:maxNodes]
	}

	kept := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		kept[n.ID] = struct{}{}
	}

	edges := make([]models.GraphEdge, 0, len(weights))
	for k, w := range weights {
		_, okA := kept[k.a]
		_, okB := kept[k.b]
		if okA && okB {
			edges = append(edges, models.GraphEdge{Source: k.a, Target: k.b, Weight: w})
		}
	}
	slices.SortFunc(edges, func(x, y models.GraphEdge) int {
		if c := cmp.Compare(x.Source, y.Source); c != 0 {
			return c
		}
		return cmp.Compare(x.Target, y.Target)
	})

	return models.Graph{Nodes: nodes, Edges: edges}
}

// distinct drops empty and repeated tags, keeping first occurrences.
func distinct(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
