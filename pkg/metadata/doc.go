// Package metadata defines the value types shared by every stage of an impact
// analysis: the entry point under analysis, the edges discovered while walking the
// component graph, and the advisory annotations attached to them.
//
// # Edges
//
// An Edge is a directed reference from the component in ReferencedBy to the
// component named by the edge itself. Both the forward (dependencies) and the
// reverse (usage) walk emit edges in this shape, so the tree builder, stats and
// projections never need to know which direction produced them.
//
// # Dynamic references
//
// Some references are only resolvable at runtime, for example a class looked up by
// a string in code. The dependency data source reports those with an id equal to
// the component name. IsDynamicReference detects them; walks flag such edges and
// never expand them.
package metadata
