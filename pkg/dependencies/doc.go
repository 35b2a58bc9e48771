// Package dependencies resolves what a component depends on and what depends on it.
//
// # Overview
//
// An Analyzer walks the component dependency data source breadth first, level by
// level, starting from an entry point. The forward walk follows references from a
// component; the usage walk follows them backwards and asks the reference
// registry about kinds the data source does not cover. Every edge found is kept
// in level order; an edge to a component already expanded is marked repeated and
// an edge whose id equals its name is flagged dynamic. Neither is expanded again,
// so walks terminate on cycles.
//
// The flat edge list is then turned into one rooted Tree and summarized into
// Stats.
//
// # Usage Example
//
//	analyzer, err := dependencies.NewAnalyzer(dependencies.Config{
//		Services: store.Services(),
//		Logger:   logger,
//		BaseURL:  "https://example.my.salesforce.com",
//	})
//	if err != nil {
//		return err
//	}
//
//	session := analyzer.NewSession(dependencies.SessionOptions{})
//	result, err := session.Usage(ctx, metadata.EntryPoint{
//		ID:   "Account.Rating",
//		Name: "Account.Rating",
//		Type: metadata.KindStandardField,
//	})
//	if err != nil {
//		return err
//	}
//
//	for kind, count := range result.Stats {
//		fmt.Printf("%s: %d\n", kind, count)
//	}
//
// A Session shares its cache across analyses, so walking the same entry point
// twice costs one walk.
//
// # Errors
//
// A failing primary query aborts the walk with a *QueryError. Every other step
// (registry resolvers, enrichment, post-processing) degrades: it is logged, listed
// in Result.Warnings, and the edges are returned without its contribution.
//
// # Related Packages
//
//   - pkg/references: heuristic resolvers for the usage walk
//   - pkg/enrich: usage annotations and ordering
//   - pkg/export: projections of a result
package dependencies
