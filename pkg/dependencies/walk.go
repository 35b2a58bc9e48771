package dependencies

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/blastradius/pkg/metadata"
)

// expandFunc returns the edges found one level below the frontier
type expandFunc func(ctx context.Context, level int, frontier []metadata.Ref) ([]metadata.Edge, error)

// collector accumulates edges in discovery order, dropping structurally identical
// duplicates
type collector struct {
	edges []metadata.Edge
	seen  map[string]struct{}
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

func (c *collector) add(e metadata.Edge) bool {
	key := e.DedupKey()
	if _, ok := c.seen[key]; ok {
		return false
	}
	c.seen[key] = struct{}{}
	c.edges = append(c.edges, e)
	return true
}

func idKey(id string) string {
	return strings.ToLower(id)
}

// names tracks the display name of every component reached so far, so that the
// origin of an edge carries the same name as the edge that discovered it
type names map[string]string

func (n names) of(ref metadata.Ref) metadata.Ref {
	if name, ok := n[idKey(ref.ID)]; ok {
		ref.Name = name
	}
	return ref
}

func (n names) learn(e metadata.Edge) {
	if _, ok := n[idKey(e.ID)]; !ok {
		n[idKey(e.ID)] = e.Name
	}
}

// walk runs a breadth-first traversal from entry. Every edge returned by expand
// is kept; targets already visited mark the edge repeated, dynamic targets are
// flagged, and only the remaining targets form the next frontier.
func (s *Session) walk(ctx context.Context, dir Direction, entry metadata.EntryPoint, logger logrus.FieldLogger, expand expandFunc) (*collector, error) {
	out := newCollector()
	visited := map[string]struct{}{idKey(entry.ID): {}}
	frontier := []metadata.Ref{entry.Ref()}

	for level := 1; len(frontier) > 0; level++ {
		levelCtx, span := tracer.Start(ctx, "walk.level",
			trace.WithAttributes(
				attribute.String("walk.direction", string(dir)),
				attribute.Int("walk.level", level),
				attribute.Int("walk.frontier", len(frontier)),
			),
		)
		found, err := expand(levelCtx, level, frontier)
		span.End()
		if err != nil {
			return nil, err
		}

		atLimit := entry.Options.MaxDepth > 0 && level >= entry.Options.MaxDepth
		var next []metadata.Ref
		for _, e := range found {
			e.URL = metadata.ComponentURL(s.analyzer.baseURL, e.ID, e.Name)
			switch {
			case metadata.IsDynamicReference(e.ID, e.Name):
				e.Dynamic = true
			case hasKey(visited, e.ID):
				e.Repeated = true
			}
			if !out.add(e) {
				continue
			}
			if e.Dynamic || e.Repeated || atLimit || e.ID == "" {
				continue
			}
			visited[idKey(e.ID)] = struct{}{}
			next = append(next, e.Ref())
		}

		logger.WithFields(logrus.Fields{
			"level":    level,
			"frontier": len(frontier),
			"found":    len(found),
			"next":     len(next),
		}).Debug("walk level complete")
		frontier = next
	}
	return out, nil
}

func hasKey(set map[string]struct{}, id string) bool {
	_, ok := set[idKey(id)]
	return ok
}

// primaryIDs returns the frontier ids the data source can be queried with
func primaryIDs(frontier []metadata.Ref) []string {
	ids := make([]string, 0, len(frontier))
	for _, r := range frontier {
		if r.ID == "" || metadata.IsDynamicReference(r.ID, r.Name) {
			continue
		}
		ids = append(ids, r.ID)
	}
	return ids
}
