package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

func TestCache_MissesReturnZeroValues(t *testing.T) {
	c := New()

	body, ok := c.GetField("Account.Rating__c")
	assert.False(t, ok)
	assert.Empty(t, body.FullName)

	objects, ok := c.GetCustomObjects()
	assert.False(t, ok)
	assert.Nil(t, objects)

	rules, ok := c.GetWorkflowRules("Account")
	assert.False(t, ok)
	assert.Nil(t, rules.MappedData)

	walk, ok := c.GetDependencies("missing")
	assert.False(t, ok)
	assert.Nil(t, walk.Edges)

	_, ok = c.GetUsage("missing")
	assert.False(t, ok)

	_, ok = c.GetMetadataList("ApexClass")
	assert.False(t, ok)

	_, ok = c.ObjectName("01I000000000001")
	assert.False(t, ok)
}

func TestCache_Fields(t *testing.T) {
	c := New()

	c.SetField("Account.Rating__c", sfapi.MetadataBody{FullName: "Account.Rating__c"})

	body, ok := c.GetField("account.rating__c")
	assert.True(t, ok)
	assert.Equal(t, "Account.Rating__c", body.FullName)
	assert.True(t, c.HasFieldName("ACCOUNT.RATING__C"))

	c.AddFieldNames("Contact.Missing__c")
	assert.True(t, c.HasFieldName("Contact.Missing__c"))
	_, ok = c.GetField("Contact.Missing__c")
	assert.False(t, ok)
}

func TestCache_CustomObjects(t *testing.T) {
	c := New()
	c.SetCustomObjects([]CustomObject{
		{ID: "01I000000000001AAA", FullName: "Invoice__c"},
	})

	objects, ok := c.GetCustomObjects()
	assert.True(t, ok)
	assert.Len(t, objects, 1)

	name, ok := c.ObjectName("01I000000000001")
	assert.True(t, ok)
	assert.Equal(t, "Invoice__c", name)

	id, ok := c.ObjectID("invoice__c")
	assert.True(t, ok)
	assert.Equal(t, "01I000000000001AAA", id)
}

func TestCache_Walks(t *testing.T) {
	c := New()
	walk := Analysis{
		Edges:    []metadata.Edge{{Name: "ClassA", ID: "C1", Type: metadata.KindApexClass}},
		Warnings: []metadata.Warning{{Stage: "ApexPage", Message: "query failed"}},
	}

	c.SetDependencies("k", walk)
	got, ok := c.GetDependencies("k")
	assert.True(t, ok)
	assert.Equal(t, walk, got)

	c.SetUsage("k", walk)
	got, ok = c.GetUsage("k")
	assert.True(t, ok)
	assert.Equal(t, walk, got)
}

func TestCache_WalksAreCopied(t *testing.T) {
	c := New()
	walk := Analysis{
		Edges: []metadata.Edge{{
			Name:  "Onboard",
			ID:    "301000000000001",
			Type:  metadata.KindFlow,
			Pills: []metadata.Pill{{Label: "Active", Type: metadata.PillStandard}},
		}},
	}

	c.SetUsage("k", walk)
	walk.Edges[0].Pills[0].Label = "changed before read"

	got, ok := c.GetUsage("k")
	assert.True(t, ok)
	assert.Equal(t, "Active", got.Edges[0].Pills[0].Label)

	got.Edges[0].Pills[0].Label = "changed after read"
	got.Warnings = append(got.Warnings, metadata.Warning{Stage: "x"})

	again, _ := c.GetUsage("k")
	assert.Equal(t, "Active", again.Edges[0].Pills[0].Label)
	assert.Empty(t, again.Warnings)
}

func TestCache_Observer(t *testing.T) {
	c := New()
	calls := make(map[string][]bool)
	c.SetObserver(func(kind string, hit bool) {
		calls[kind] = append(calls[kind], hit)
	})

	c.GetWorkflowRules("Account")
	c.SetWorkflowRules("Account", WorkflowRules{CachedWorkflows: []sfapi.Record{{"Id": "W1"}}})
	rules, ok := c.GetWorkflowRules("account")

	assert.True(t, ok)
	assert.Len(t, rules.CachedWorkflows, 1)
	assert.Equal(t, []bool{false, true}, calls[KindWorkflowRules])
}
