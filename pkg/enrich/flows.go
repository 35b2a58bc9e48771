package enrich

import (
	"context"
	"strconv"
	"strings"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/references"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

var pillActive = metadata.Pill{
	Label:       "Active",
	Type:        metadata.PillStandard,
	Description: "This is the active version of the flow",
}

// activeSortOrder pins active flow versions ahead of every other edge
const activeSortOrder = 0

func enrichFlows(ctx context.Context, env *references.Env, _ metadata.EntryPoint, edges []metadata.Edge) error {
	idx := indexesOf(edges, metadata.KindFlow)[metadata.KindFlow]
	if len(idx) == 0 {
		return nil
	}

	ids := make([]string, 0, len(idx))
	for _, i := range idx {
		ids = append(ids, edges[i].ID)
	}

	versions := make(map[string]sfapi.Record, len(ids))
	for _, batch := range sfapi.Chunk(ids, references.DefaultBatchSize) {
		records, err := env.Services.Query.Query(ctx, sfapi.Query{
			Object:  "Flow",
			Fields:  []string{"Id", "VersionNumber", "Status"},
			Filter:  sfapi.Filter{sfapi.In("Id", batch...)},
			Tooling: true,
		})
		if err != nil {
			return err
		}
		for _, r := range records {
			versions[id15(r.String("Id"))] = r
		}
	}

	for _, i := range idx {
		v, ok := versions[id15(edges[i].ID)]
		if !ok {
			continue
		}
		if n := v.Int("VersionNumber"); n > 0 {
			edges[i].AddPill(metadata.Pill{
				Label:       "Version " + strconv.Itoa(n),
				Type:        metadata.PillStandard,
				Description: "Flow version " + strconv.Itoa(n),
			})
		}
		if strings.EqualFold(v.String("Status"), "Active") {
			edges[i].AddPill(pillActive)
			order := activeSortOrder
			edges[i].SortOrder = &order
		}
	}
	return nil
}
