package dependencies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/blastradius/pkg/metadata"
)

func refNames(refs []metadata.Ref) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

func TestGraph_Acyclic(t *testing.T) {
	a := classA.Ref()
	b := ref("ClassB", "01p000000000002")
	edges := []metadata.Edge{
		edge(a, "ClassB", "01p000000000002"),
		edge(a, "ClassC", "01p000000000003"),
		edge(b, "Util", "01p000000000004"),
		edge(b, "Util", "01p000000000004"),
	}

	g := NewGraph(classA, edges)
	assert.Equal(t, []string{"ClassA", "ClassB", "ClassC", "Util"}, refNames(g.Nodes()))
	assert.Equal(t, []string{"Util"}, refNames(g.Direct("01P000000000002")))
	assert.Nil(t, g.FindCycle())

	depth := g.Depth()
	assert.Equal(t, 0, depth["01p000000000001"])
	assert.Equal(t, 2, depth["01p000000000004"])

	impact := g.Impact()
	assert.Equal(t, "ClassA", impact.EntryPoint.Name)
	assert.Equal(t, []string{"ClassB", "ClassC"}, refNames(impact.Direct))
	assert.Equal(t, []string{"Util"}, refNames(impact.Transitive))
	assert.Equal(t, 3, impact.Total)
	assert.Equal(t, 3, impact.ByKind[metadata.KindApexClass])
	assert.Empty(t, impact.Cycle)
}

func TestGraph_FindCycle(t *testing.T) {
	a := classA.Ref()
	b := ref("ClassB", "01p000000000002")
	c := ref("ClassC", "01p000000000003")
	back := edge(c, "ClassB", "01p000000000002")
	back.Repeated = true
	edges := []metadata.Edge{
		edge(a, "ClassB", "01p000000000002"),
		edge(b, "ClassC", "01p000000000003"),
		back,
	}

	cycle := NewGraph(classA, edges).FindCycle()
	require.NotNil(t, cycle)
	assert.Equal(t, []string{"ClassB", "ClassC", "ClassB"}, refNames(cycle))
}
