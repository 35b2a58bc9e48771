// Package sfapi defines the external collaborators the analysis engine consumes and
// ships adapters for them.
//
// # Contracts
//
//   - QueryService: tabular queries described by a Query (object, fields, filter
//     predicate, elevated "tooling" mode, API version override) returning flat records.
//   - DescribeService: object inventory and per-object field descriptions.
//   - ReadService: full metadata bodies for a kind and a list of full names.
//
// The engine depends only on record shape: record keys are the requested field
// names, relationship fields use dotted keys ("EntityDefinition.QualifiedApiName").
//
// # Adapters
//
//   - SQLStore: all three contracts over a database/sql mirror of org metadata
//     (PostgreSQL via lib/pq, SQLite via go-sqlite3).
//   - RESTClient: all three contracts over the platform REST API with OAuth2.
//   - RedisReadCache: read-through cache of metadata bodies.
//   - CachingDescriber: expirable LRU in front of a DescribeService.
//   - S3ReadService: metadata bodies from a retrieved snapshot in S3.
//   - Trace: OpenTelemetry spans around any Services bundle.
//
// # Usage Example
//
//	store, err := sfapi.OpenSQLStore("postgres", dsn)
//	if err != nil {
//		return err
//	}
//	services := sfapi.Trace(store.Services())
//	records, err := services.Query.Query(ctx, sfapi.Query{
//		Object: "MetadataComponentDependency",
//		Fields: []string{"MetadataComponentId", "RefMetadataComponentId"},
//		Filter: sfapi.Filter{sfapi.In("MetadataComponentId", ids...)},
//		Tooling: true,
//	})
package sfapi
