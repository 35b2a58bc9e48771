package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/references"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

var (
	pillFilter = metadata.Pill{
		Label:       "filter",
		Type:        metadata.PillWarning,
		Description: "The report filters on this field",
	}
	pillGrouping = metadata.Pill{
		Label:       "grouping",
		Type:        metadata.PillWarning,
		Description: "The report groups by this field",
	}
	pillViewOnly = metadata.Pill{
		Label:       "view only",
		Type:        metadata.PillStandard,
		Description: "The field is only displayed as a column",
	}
)

const privateReportNote = "This report is in a private folder and could not be analyzed"

// ReportUsage is how a report uses a field
type ReportUsage struct {
	Filter   bool
	Grouping bool
	Column   bool
}

// Pills returns the annotations describing the usage
func (u ReportUsage) Pills() []metadata.Pill {
	var pills []metadata.Pill
	if u.Filter {
		pills = append(pills, pillFilter)
	}
	if u.Grouping {
		pills = append(pills, pillGrouping)
	}
	if !u.Filter && !u.Grouping && u.Column {
		pills = append(pills, pillViewOnly)
	}
	return pills
}

// columnMatches compares a report column to a field. Columns are either qualified
// ("Account.Rating") or upper-case tokens ("ACCOUNT.RATING", "RATING").
func columnMatches(column, object, field string) bool {
	if column == "" {
		return false
	}
	if strings.EqualFold(column, object+"."+field) {
		return true
	}
	last := column
	if idx := strings.LastIndex(column, "."); idx != -1 {
		last = column[idx+1:]
	}
	return strings.EqualFold(last, field)
}

func anyColumn(values any, key, object, field string) bool {
	list, _ := values.([]any)
	for _, item := range list {
		switch v := item.(type) {
		case string:
			if columnMatches(v, object, field) {
				return true
			}
		case map[string]any:
			s, _ := v[key].(string)
			if columnMatches(s, object, field) {
				return true
			}
		}
	}
	return false
}

// ClassifyReport inspects report metadata for uses of object.field
func ClassifyReport(body map[string]any, object, field string) ReportUsage {
	return ReportUsage{
		Filter: anyColumn(body["reportFilters"], "column", object, field),
		Grouping: anyColumn(body["groupingsDown"], "name", object, field) ||
			anyColumn(body["groupingsAcross"], "name", object, field),
		Column: anyColumn(body["detailColumns"], "name", object, field),
	}
}

func enrichReports(ctx context.Context, env *references.Env, target metadata.EntryPoint, edges []metadata.Edge) error {
	object, field := metadata.SplitQualifiedName(target.Name)
	if object == "" {
		return nil
	}
	idx := indexesOf(edges, metadata.KindReport)[metadata.KindReport]
	if len(idx) == 0 {
		return nil
	}

	var mu sync.Mutex
	bodies := make(map[string]sfapi.MetadataBody, len(idx))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(env.Limit())
	for _, i := range idx {
		id := edges[i].ID
		g.Go(func() error {
			read, err := env.Services.Read.Read(gctx, string(metadata.KindReport), []string{id})
			if err != nil {
				return fmt.Errorf("failed to read report %s: %w", id, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, b := range read {
				bodies[id15(b.FullName)] = b
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, i := range idx {
		body, ok := bodies[id15(edges[i].ID)]
		if !ok {
			continue
		}
		if body.AccessDenied {
			edges[i].AppendNote(privateReportNote)
			continue
		}
		for _, p := range ClassifyReport(body.Body, object, field).Pills() {
			edges[i].AddPill(p)
		}
	}
	return nil
}
