package dependencies

import (
	"sort"
	"strings"

	"github.com/platinummonkey/blastradius/pkg/metadata"
)

// Stats counts the distinct components reached per kind
type Stats map[metadata.Kind]int

// ComputeStats counts unique names per kind. Dynamic references are left out.
func ComputeStats(edges []metadata.Edge) Stats {
	seen := make(map[metadata.Kind]map[string]struct{})
	for _, e := range edges {
		if e.Dynamic {
			continue
		}
		names, ok := seen[e.Type]
		if !ok {
			names = make(map[string]struct{})
			seen[e.Type] = names
		}
		names[strings.ToLower(e.Name)] = struct{}{}
	}

	stats := make(Stats, len(seen))
	for kind, names := range seen {
		stats[kind] = len(names)
	}
	return stats
}

// Kinds returns the counted kinds in name order
func (s Stats) Kinds() []metadata.Kind {
	kinds := make([]metadata.Kind, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Total returns the number of distinct components across kinds
func (s Stats) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}
