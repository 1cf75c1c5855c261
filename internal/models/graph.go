package models

// GraphNode is a tag with the number of posts carrying it.
type GraphNode struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// GraphEdge links two tags that appear together on Weight posts.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// Graph is the tag co-occurrence graph written to graph.json.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
