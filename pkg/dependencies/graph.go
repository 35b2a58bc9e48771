package dependencies

import (
	"sort"
	"strings"

	"github.com/platinummonkey/blastradius/pkg/metadata"
)

// Graph is an adjacency view of an edge list, keyed by lowercased component id.
// Edges point from ReferencedBy to the edge target in both walk directions.
type Graph struct {
	root  string
	nodes map[string]metadata.Ref
	order []string
	edges map[string][]string
}

// NewGraph indexes the edges of a result. Dynamic references become nodes but
// never origins.
func NewGraph(entry metadata.EntryPoint, edges []metadata.Edge) *Graph {
	g := &Graph{
		root:  idKey(entry.ID),
		nodes: make(map[string]metadata.Ref),
		edges: make(map[string][]string),
	}
	g.addNode(entry.Ref())
	for _, e := range edges {
		from := g.addNode(e.ReferencedBy)
		to := g.addNode(e.Ref())
		if !containsKey(g.edges[from], to) {
			g.edges[from] = append(g.edges[from], to)
		}
	}
	return g
}

func (g *Graph) addNode(ref metadata.Ref) string {
	key := idKey(ref.ID)
	if _, ok := g.nodes[key]; !ok {
		g.nodes[key] = ref
		g.order = append(g.order, key)
	}
	return key
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Nodes returns every component in discovery order, the entry point first
func (g *Graph) Nodes() []metadata.Ref {
	out := make([]metadata.Ref, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, g.nodes[key])
	}
	return out
}

// Direct returns the components one edge away from id
func (g *Graph) Direct(id string) []metadata.Ref {
	keys := g.edges[idKey(id)]
	out := make([]metadata.Ref, 0, len(keys))
	for _, key := range keys {
		out = append(out, g.nodes[key])
	}
	return out
}

// Depth returns the number of edges on the shortest path from the entry point to
// every reachable component
func (g *Graph) Depth() map[string]int {
	depth := map[string]int{g.root: 0}
	queue := []string{g.root}
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		for _, next := range g.edges[key] {
			if _, ok := depth[next]; ok {
				continue
			}
			depth[next] = depth[key] + 1
			queue = append(queue, next)
		}
	}
	return depth
}

// FindCycle returns a path that leaves the entry point and comes back to a
// component already on it, or nil when the reachable graph is acyclic
func (g *Graph) FindCycle() []metadata.Ref {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string
	var cycle []string

	var visit func(key string) bool
	visit = func(key string) bool {
		visited[key] = true
		onStack[key] = true
		path = append(path, key)

		for _, next := range g.edges[key] {
			if onStack[next] {
				start := 0
				for i, k := range path {
					if k == next {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), next)
				return true
			}
			if !visited[next] && visit(next) {
				return true
			}
		}

		onStack[key] = false
		path = path[:len(path)-1]
		return false
	}

	if !visit(g.root) {
		return nil
	}
	out := make([]metadata.Ref, 0, len(cycle))
	for _, key := range cycle {
		out = append(out, g.nodes[key])
	}
	return out
}

// Impact summarizes how far a change to the entry point reaches
type Impact struct {
	EntryPoint metadata.Ref          `json:"entryPoint"`
	Direct     []metadata.Ref        `json:"direct"`
	Transitive []metadata.Ref        `json:"transitive"`
	ByKind     map[metadata.Kind]int `json:"byKind"`
	Total      int                   `json:"total"`
	Cycle      []metadata.Ref        `json:"cycle,omitempty"`
}

// Impact splits the reachable components into those one edge away and the rest
func (g *Graph) Impact() *Impact {
	depth := g.Depth()
	impact := &Impact{
		EntryPoint: g.nodes[g.root],
		Direct:     make([]metadata.Ref, 0),
		Transitive: make([]metadata.Ref, 0),
		ByKind:     make(map[metadata.Kind]int),
		Cycle:      g.FindCycle(),
	}
	for _, key := range g.order {
		d, ok := depth[key]
		if !ok || d == 0 {
			continue
		}
		ref := g.nodes[key]
		if d == 1 {
			impact.Direct = append(impact.Direct, ref)
		} else {
			impact.Transitive = append(impact.Transitive, ref)
		}
		impact.ByKind[ref.Type]++
	}
	sortRefs(impact.Direct)
	sortRefs(impact.Transitive)
	impact.Total = len(impact.Direct) + len(impact.Transitive)
	return impact
}

func sortRefs(refs []metadata.Ref) {
	sort.SliceStable(refs, func(i, j int) bool {
		a, b := strings.ToLower(refs[i].Name), strings.ToLower(refs[j].Name)
		if a != b {
			return a < b
		}
		return refs[i].ID < refs[j].ID
	})
}
