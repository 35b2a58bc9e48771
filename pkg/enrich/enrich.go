// Package enrich annotates usage edges with how the target is used: read or
// written by code, filtered or grouped on by reports, referenced by which flow
// version. Enrichment never adds or removes edges.
package enrich

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/references"
)

// Stage names reported in warnings
const (
	StageCode    = "enrich.code"
	StageReports = "enrich.reports"
	StageFlows   = "enrich.flows"
)

type enricher struct {
	stage   string
	applies func(target metadata.EntryPoint) bool
	run     func(ctx context.Context, env *references.Env, target metadata.EntryPoint, edges []metadata.Edge) error
}

func isField(target metadata.EntryPoint) bool {
	return target.Type == metadata.KindStandardField || target.Type == metadata.KindCustomField
}

var enrichers = []enricher{
	{stage: StageCode, applies: isField, run: enrichCode},
	{
		stage: StageReports,
		applies: func(target metadata.EntryPoint) bool {
			return isField(target) && target.Options.EnhanceReportData
		},
		run: enrichReports,
	},
	{stage: StageFlows, applies: func(metadata.EntryPoint) bool { return true }, run: enrichFlows},
}

// Usage enriches usage edges in place. Each enricher fetches everything it needs
// before touching an edge, so a failing enricher leaves its edges unenhanced; the
// failure is logged and returned as a warning.
func Usage(ctx context.Context, env *references.Env, target metadata.EntryPoint, edges []metadata.Edge) []metadata.Warning {
	var warnings []metadata.Warning
	for _, e := range enrichers {
		if !e.applies(target) {
			continue
		}
		if err := e.run(ctx, env, target, edges); err != nil {
			env.Log().WithFields(logrus.Fields{
				"entry_point": target.Name,
				"stage":       e.stage,
			}).WithError(err).Warn("enrichment failed, returning unenhanced edges")
			warnings = append(warnings, metadata.Warning{Stage: e.stage, Message: err.Error()})
		}
	}
	return warnings
}

// Sort orders usage edges: edges pinned by enrichment first by sort order, then
// every other edge alphabetically by name
func Sort(edges []metadata.Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		switch {
		case a.SortOrder != nil && b.SortOrder == nil:
			return true
		case a.SortOrder == nil && b.SortOrder != nil:
			return false
		case a.SortOrder != nil && *a.SortOrder != *b.SortOrder:
			return *a.SortOrder < *b.SortOrder
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID < b.ID
	})
}

func id15(id string) string {
	if len(id) > 15 {
		return id[:15]
	}
	return id
}

// indexesOf returns the positions of edges of the given kinds
func indexesOf(edges []metadata.Edge, kinds ...metadata.Kind) map[metadata.Kind][]int {
	out := make(map[metadata.Kind][]int)
	for i := range edges {
		for _, k := range kinds {
			if edges[i].Type == k && !edges[i].Dynamic {
				out[k] = append(out[k], i)
			}
		}
	}
	return out
}
