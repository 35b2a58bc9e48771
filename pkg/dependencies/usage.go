package dependencies

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/blastradius/pkg/enrich"
	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/references"
)

// StageReferences prefixes the warning stage of a failed registry resolver
const StageReferences = "references"

type resolved struct {
	edges []metadata.Edge
	err   error
}

func (s *Session) usage(ctx context.Context, entry metadata.EntryPoint, logger logrus.FieldLogger) ([]metadata.Edge, []metadata.Warning, error) {
	known := names{idKey(entry.ID): entry.Name}
	var warnings []metadata.Warning

	expand := func(ctx context.Context, level int, frontier []metadata.Ref) ([]metadata.Edge, error) {
		var edges []metadata.Edge

		if ids := primaryIDs(frontier); len(ids) > 0 {
			deps, err := references.QueryDependencies(ctx, s.analyzer.services.Query, ids, true, s.analyzer.batchSize)
			s.analyzer.recorder.RecordPrimaryQuery(string(DirectionUsage), err)
			if err != nil {
				return nil, &QueryError{Direction: DirectionUsage, Level: level, Err: err}
			}
			for _, d := range deps {
				e := metadata.Edge{
					Name:         d.From.Name,
					Type:         d.From.Type,
					ID:           d.From.ID,
					Namespace:    d.FromNamespace,
					ReferencedBy: known.of(d.To),
				}
				known.learn(e)
				edges = append(edges, e)
			}
		}

		results, err := s.resolveFrontier(ctx, entry.Options, frontier)
		if err != nil {
			return nil, err
		}
		for i, r := range results {
			if r.err != nil {
				warnings = append(warnings, s.degrade(
					logger.WithField("component", frontier[i].Name),
					StageReferences+"."+string(frontier[i].Type),
					r.err,
				))
			}
			for _, e := range r.edges {
				known.learn(e)
				edges = append(edges, e)
			}
		}
		return edges, nil
	}

	out, err := s.walk(ctx, DirectionUsage, entry, logger, expand)
	if err != nil {
		return nil, nil, err
	}

	for _, w := range enrich.Usage(ctx, s.env, entry, out.edges) {
		s.analyzer.recorder.RecordDegraded(w.Stage)
		warnings = append(warnings, w)
	}
	return out.edges, warnings, nil
}

// resolveFrontier runs the registry resolver of every frontier component whose
// kind has one. Results are indexed like the frontier. Resolver failures are
// kept per result; only cancellation of ctx fails the whole frontier.
func (s *Session) resolveFrontier(ctx context.Context, opts metadata.Options, frontier []metadata.Ref) ([]resolved, error) {
	results := make([]resolved, len(frontier))

	var g errgroup.Group
	g.SetLimit(s.analyzer.concurrency)
	for i, ref := range frontier {
		if !references.Supports(ref.Type) {
			continue
		}
		target := metadata.EntryPoint{ID: ref.ID, Name: ref.Name, Type: ref.Type, Options: opts}
		g.Go(func() error {
			edges, err := references.Resolve(ctx, s.env, target)
			results[i] = resolved{edges: edges, err: err}
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func sortUsage(edges []metadata.Edge) {
	enrich.Sort(edges)
}
