package references

import (
	"context"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

// DependencyObject is the queryable view of the component dependency data source
const DependencyObject = "MetadataComponentDependency"

// DefaultBatchSize is the number of ids sent per dependency query
const DefaultBatchSize = 200

var dependencyFields = []string{
	"MetadataComponentId",
	"MetadataComponentName",
	"MetadataComponentType",
	"MetadataComponentNamespace",
	"RefMetadataComponentId",
	"RefMetadataComponentName",
	"RefMetadataComponentType",
	"RefMetadataComponentNamespace",
}

// ComponentDependency is one row of the dependency data source: From refers to To
type ComponentDependency struct {
	From          metadata.Ref
	FromNamespace string
	To            metadata.Ref
	ToNamespace   string
}

// QueryDependencies fetches the rows whose source (or, when reverse is set, whose
// target) id is one of ids. Ids are sent in batches of batchSize; rows come back
// in batch order.
func QueryDependencies(ctx context.Context, svc sfapi.QueryService, ids []string, reverse bool, batchSize int) ([]ComponentDependency, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	field := "MetadataComponentId"
	if reverse {
		field = "RefMetadataComponentId"
	}

	var out []ComponentDependency
	for _, batch := range sfapi.Chunk(ids, batchSize) {
		records, err := svc.Query(ctx, sfapi.Query{
			Object:  DependencyObject,
			Fields:  dependencyFields,
			Filter:  sfapi.Filter{sfapi.In(field, batch...)},
			Tooling: true,
		})
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			out = append(out, ComponentDependency{
				From: metadata.Ref{
					ID:   r.String("MetadataComponentId"),
					Name: r.String("MetadataComponentName"),
					Type: metadata.Kind(r.String("MetadataComponentType")),
				},
				FromNamespace: r.String("MetadataComponentNamespace"),
				To: metadata.Ref{
					ID:   r.String("RefMetadataComponentId"),
					Name: r.String("RefMetadataComponentName"),
					Type: metadata.Kind(r.String("RefMetadataComponentType")),
				},
				ToNamespace: r.String("RefMetadataComponentNamespace"),
			})
		}
	}
	return out, nil
}
