// Package cli implements the blastradius command-line interface.
//
// # Commands
//
// dependencies: list what a component depends on
//
//	blastradius dependencies \
//		--driver sqlite3 --dsn ./org.db \
//		--type ApexClass --id 01p000000000001 --name ClassA \
//		--format tree
//
// usage: list where a component is used
//
//	blastradius usage \
//		--driver postgres --dsn "$BLASTRADIUS_SQL_DSN" \
//		--type StandardField --id Account.Rating \
//		--reports --format csv > usage.csv
//
// kinds: list the component types with extra usage heuristics
//
//	blastradius kinds
//
// # Output Formats
//
//   - tree: indented dependency tree followed by per-kind counts (default)
//   - json: the full result including edges, tree, stats and warnings
//   - csv, yaml, table: edge listings
//   - manifest: a package.xml of every component found
package cli
