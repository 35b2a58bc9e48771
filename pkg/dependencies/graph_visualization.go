package dependencies

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/blastradius/pkg/httputil"
	"github.com/platinummonkey/blastradius/pkg/metadata"
)

// CytoscapeNode represents a node in Cytoscape.js format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData contains node data for Cytoscape.js
type CytoscapeNodeData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Type  string `json:"type"` // "current", "dependency", "dependent", "dynamic"
	URL   string `json:"url,omitempty"`
	Depth int    `json:"depth"`
}

// CytoscapeEdge represents an edge in Cytoscape.js format
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains edge data for Cytoscape.js
type CytoscapeEdgeData struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   string   `json:"type,omitempty"` // "direct", "transitive", "repeated"
	Pills  []string `json:"pills,omitempty"`
}

// CytoscapeGraph represents the complete graph in Cytoscape.js format
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
	Cycle []string        `json:"cycle,omitempty"`
}

// BuildCytoscapeGraph projects a result onto Cytoscape.js elements. In the usage
// direction edges are reversed so that they always point from the component that
// holds the reference to the one referenced.
func BuildCytoscapeGraph(result *Result) CytoscapeGraph {
	cytoGraph := CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0),
		Edges: make([]CytoscapeEdge, 0),
	}

	graph := NewGraph(result.EntryPoint, result.Edges)
	depth := graph.Depth()
	urls := make(map[string]string, len(result.Edges))
	dynamic := make(map[string]bool)
	for _, e := range result.Edges {
		if e.URL != "" {
			urls[idKey(e.ID)] = e.URL
		}
		if e.Dynamic {
			dynamic[idKey(e.ID)] = true
		}
	}

	related := "dependency"
	if result.Direction == DirectionUsage {
		related = "dependent"
	}

	for _, ref := range graph.Nodes() {
		key := idKey(ref.ID)
		nodeType := related
		switch {
		case key == idKey(result.EntryPoint.ID):
			nodeType = "current"
		case dynamic[key]:
			nodeType = "dynamic"
		}
		cytoGraph.Nodes = append(cytoGraph.Nodes, CytoscapeNode{
			Data: CytoscapeNodeData{
				ID:    key,
				Name:  ref.Name,
				Kind:  string(ref.Type),
				Type:  nodeType,
				URL:   urls[key],
				Depth: depth[key],
			},
		})
	}

	seen := make(map[string]bool)
	for _, e := range result.Edges {
		from, to := idKey(e.ReferencedBy.ID), idKey(e.ID)
		if result.Direction == DirectionUsage {
			from, to = to, from
		}
		edgeID := from + "->" + to
		if seen[edgeID] {
			continue
		}
		seen[edgeID] = true

		edgeType := "direct"
		switch {
		case e.Repeated:
			edgeType = "repeated"
		case idKey(e.ReferencedBy.ID) != idKey(result.EntryPoint.ID):
			edgeType = "transitive"
		}
		cytoGraph.Edges = append(cytoGraph.Edges, CytoscapeEdge{
			Data: CytoscapeEdgeData{
				ID:     edgeID,
				Source: from,
				Target: to,
				Type:   edgeType,
				Pills:  pillLabels(e.Pills),
			},
		})
	}

	for _, ref := range graph.FindCycle() {
		cytoGraph.Cycle = append(cytoGraph.Cycle, idKey(ref.ID))
	}
	return cytoGraph
}

func pillLabels(pills []metadata.Pill) []string {
	if len(pills) == 0 {
		return nil
	}
	out := make([]string, 0, len(pills))
	for _, p := range pills {
		out = append(out, p.Label)
	}
	return out
}

// GraphVisualizationHandlers provides HTTP handlers for graph visualization
type GraphVisualizationHandlers struct {
	handlers *Handlers
}

// NewGraphVisualizationHandlers creates new graph visualization handlers
func NewGraphVisualizationHandlers(handlers *Handlers) *GraphVisualizationHandlers {
	return &GraphVisualizationHandlers{handlers: handlers}
}

// RegisterRoutes registers graph visualization routes
func (h *GraphVisualizationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/components/{type}/{id}/graph", h.getCytoscapeGraph).Methods("GET")
}

// getCytoscapeGraph handles GET /api/v1/components/{type}/{id}/graph
// Query parameters:
//   - direction: "dependencies" or "usage" (default: "dependencies")
//   - name, depth, reports, metadataTypes: as for the analysis endpoints
func (h *GraphVisualizationHandlers) getCytoscapeGraph(w http.ResponseWriter, r *http.Request) {
	direction, err := ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, ok := h.handlers.analyze(w, r, direction)
	if !ok {
		return
	}

	httputil.WriteSuccess(w, BuildCytoscapeGraph(result))
}
