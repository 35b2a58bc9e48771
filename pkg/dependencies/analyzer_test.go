package dependencies

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/references"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
	"github.com/platinummonkey/blastradius/pkg/sfapi/sfapitest"
)

const testBaseURL = "https://example.my.salesforce.com"

var (
	classA = metadata.EntryPoint{ID: "01p000000000001", Name: "ClassA", Type: metadata.KindApexClass}
	rating = metadata.EntryPoint{ID: "Account.Rating", Name: "Account.Rating", Type: metadata.KindStandardField}
)

func newTestAnalyzer(t *testing.T, m *sfapitest.Memory) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(Config{Services: m.Services(), BaseURL: testBaseURL})
	require.NoError(t, err)
	return a
}

func edgeByName(edges []metadata.Edge, name string) *metadata.Edge {
	for i := range edges {
		if edges[i].Name == name {
			return &edges[i]
		}
	}
	return nil
}

// recorder counts what the analyzer reports
type recorder struct {
	analyses []string
	degraded []string
	primary  int
	lookups  int
}

func (r *recorder) RecordAnalysis(direction, kind, status string, _ time.Duration, _ int) {
	r.analyses = append(r.analyses, direction+":"+status)
}
func (r *recorder) RecordPrimaryQuery(string, error) { r.primary++ }
func (r *recorder) RecordDegraded(stage string)      { r.degraded = append(r.degraded, stage) }
func (r *recorder) RecordCacheLookup(string, bool)   { r.lookups++ }

func TestNewAnalyzer_RequiresServices(t *testing.T) {
	_, err := NewAnalyzer(Config{})
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, DirectionDependencies, d)

	d, err = ParseDirection("usage")
	require.NoError(t, err)
	assert.Equal(t, DirectionUsage, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestAnalyze_InvalidEntryPoint(t *testing.T) {
	a := newTestAnalyzer(t, sfapitest.New())
	_, err := a.Dependencies(context.Background(), metadata.EntryPoint{ID: "x", Type: metadata.KindApexClass})
	assert.ErrorIs(t, err, metadata.ErrInvalidEntryPoint)
}

func TestDependencies_CycleTerminates(t *testing.T) {
	m := sfapitest.New()
	m.AddDependency("01p000000000001", "ClassA", "ApexClass", "01p000000000002", "ClassB", "ApexClass")
	m.AddDependency("01p000000000002", "ClassB", "ApexClass", "01p000000000001", "ClassA", "ApexClass")

	result, err := newTestAnalyzer(t, m).Dependencies(context.Background(), classA)
	require.NoError(t, err)

	require.Len(t, result.Edges, 2)
	assert.Equal(t, "ClassB", result.Edges[0].Name)
	assert.False(t, result.Edges[0].Repeated)
	assert.Equal(t, testBaseURL+"/01p000000000002", result.Edges[0].URL)

	back := result.Edges[1]
	assert.Equal(t, "ClassA", back.Name)
	assert.Equal(t, "ClassB", back.ReferencedBy.Name)
	assert.True(t, back.Repeated)

	assert.Equal(t, 2, m.QueriesOn(references.DependencyObject))
	assert.Equal(t, 2, result.Tree.Len())

	root := result.Tree.Root()
	require.NotNil(t, root)
	assert.Equal(t, "ClassA", root.Name)
	b := root.References[metadata.KindApexClass][0]
	assert.Equal(t, "ClassB", b.Name)
	a := b.References[metadata.KindApexClass][0]
	assert.True(t, a.Repeated)
	assert.Empty(t, a.References)
}

func TestDependencies_DynamicReferencesAreNotExpanded(t *testing.T) {
	m := sfapitest.New()
	m.AddDependency("01p000000000001", "ClassA", "ApexClass", "Account.Industry", "account.industry", "StandardField")
	m.AddDependency("Account.Industry", "Account.Industry", "StandardField", "01p000000000009", "Other", "ApexClass")

	result, err := newTestAnalyzer(t, m).Dependencies(context.Background(), classA)
	require.NoError(t, err)

	require.Len(t, result.Edges, 1)
	assert.True(t, result.Edges[0].Dynamic)
	assert.Empty(t, result.Edges[0].URL)
	assert.Equal(t, 1, m.QueriesOn(references.DependencyObject))
	assert.Empty(t, result.Stats)
}

func TestDependencies_MaxDepth(t *testing.T) {
	m := sfapitest.New()
	m.AddDependency("01p000000000001", "ClassA", "ApexClass", "01p000000000002", "ClassB", "ApexClass")
	m.AddDependency("01p000000000002", "ClassB", "ApexClass", "01p000000000003", "ClassC", "ApexClass")

	entry := classA
	entry.Options.MaxDepth = 1
	result, err := newTestAnalyzer(t, m).Dependencies(context.Background(), entry)
	require.NoError(t, err)

	require.Len(t, result.Edges, 1)
	assert.Equal(t, "ClassB", result.Edges[0].Name)
	assert.Equal(t, 1, m.QueriesOn(references.DependencyObject))
}

func TestDependencies_SameTargetTwiceInOneLevel(t *testing.T) {
	m := sfapitest.New()
	m.AddDependency("01p000000000001", "ClassA", "ApexClass", "01p000000000002", "ClassB", "ApexClass")
	m.AddDependency("01p000000000001", "ClassA", "ApexClass", "01p000000000003", "ClassC", "ApexClass")
	m.AddDependency("01p000000000002", "ClassB", "ApexClass", "01p000000000004", "Util", "ApexClass")
	m.AddDependency("01p000000000003", "ClassC", "ApexClass", "01p000000000004", "Util", "ApexClass")

	result, err := newTestAnalyzer(t, m).Dependencies(context.Background(), classA)
	require.NoError(t, err)

	require.Len(t, result.Edges, 4)
	assert.False(t, result.Edges[2].Repeated)
	assert.Equal(t, "ClassB", result.Edges[2].ReferencedBy.Name)
	assert.True(t, result.Edges[3].Repeated)
	assert.Equal(t, "ClassC", result.Edges[3].ReferencedBy.Name)
	assert.Equal(t, Stats{metadata.KindApexClass: 3}, result.Stats)
}

func TestDependencies_PrimaryQueryFailureIsFatal(t *testing.T) {
	m := sfapitest.New()
	m.FailQuery(references.DependencyObject, errors.New("connection reset"))
	rec := &recorder{}
	a, err := NewAnalyzer(Config{Services: m.Services(), Recorder: rec})
	require.NoError(t, err)

	_, err = a.Dependencies(context.Background(), classA)
	require.Error(t, err)

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, DirectionDependencies, qe.Direction)
	assert.Equal(t, 1, qe.Level)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, []string{"dependencies:error"}, rec.analyses)
}

func TestDependencies_CustomFieldsAndFieldMetadata(t *testing.T) {
	m := sfapitest.New()
	svc := metadata.EntryPoint{ID: "01p000000000009", Name: "Svc", Type: metadata.KindApexClass}
	m.AddDependency("01p000000000009", "Svc", "ApexClass", "00N000000000001AAA", "Tier", "CustomField")
	m.AddRecords("CustomField", sfapi.Record{
		"Id": "00N000000000001AAA", "DeveloperName": "Tier", "NamespacePrefix": "", "TableEnumOrId": "Account",
	})
	m.AddBody("CustomField", "Account.Tier__c", map[string]any{
		"referenceTo": "Region__c",
		"valueSet": map[string]any{
			"valueSetName":     "Tiers",
			"controllingField": "Industry",
		},
	})
	m.AddRecords("CustomObject", sfapi.Record{"Id": "01I000000000001AAA", "DeveloperName": "Region", "NamespacePrefix": ""})
	m.AddRecords("GlobalValueSet", sfapi.Record{"Id": "0Nt000000000001", "DeveloperName": "Tiers"})

	session := newTestAnalyzer(t, m).NewSession(SessionOptions{})
	result, err := session.Dependencies(context.Background(), svc)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	field := edgeByName(result.Edges, "Account.Tier__c")
	require.NotNil(t, field)
	assert.Equal(t, metadata.KindCustomField, field.Type)

	region := edgeByName(result.Edges, "Region__c")
	require.NotNil(t, region)
	assert.Equal(t, metadata.KindCustomObject, region.Type)
	assert.Equal(t, "01I000000000001AAA", region.ID)
	assert.Equal(t, "Account.Tier__c", region.ReferencedBy.Name)

	tiers := edgeByName(result.Edges, "Tiers")
	require.NotNil(t, tiers)
	assert.Equal(t, metadata.KindGlobalValueSet, tiers.Type)
	assert.Equal(t, "0Nt000000000001", tiers.ID)

	industry := edgeByName(result.Edges, "Account.Industry")
	require.NotNil(t, industry)
	assert.True(t, industry.Dynamic)

	_, cached := session.Cache().GetField("Account.Tier__c")
	assert.True(t, cached)

	root := result.Tree.Root()
	require.NotNil(t, root)
	tier := root.References[metadata.KindCustomField][0]
	assert.Len(t, tier.References[metadata.KindCustomObject], 1)
	assert.Len(t, tier.References[metadata.KindGlobalValueSet], 1)
}

func TestDependencies_FieldMetadataFailureDegrades(t *testing.T) {
	m := sfapitest.New()
	m.AddDependency("01p000000000009", "Svc", "ApexClass", "00N000000000001AAA", "Account.Tier__c", "CustomField")
	m.FailRead("CustomField", errors.New("read timeout"))
	rec := &recorder{}
	a, err := NewAnalyzer(Config{Services: m.Services(), Recorder: rec})
	require.NoError(t, err)

	result, err := a.Dependencies(context.Background(), metadata.EntryPoint{ID: "01p000000000009", Name: "Svc", Type: metadata.KindApexClass})
	require.NoError(t, err)

	require.Len(t, result.Edges, 1)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, StageFieldDetails, result.Warnings[0].Stage)
	assert.Equal(t, []string{StageFieldDetails}, rec.degraded)
	assert.Equal(t, []string{"dependencies:degraded"}, rec.analyses)
}

func TestDependencies_InstalledPackages(t *testing.T) {
	m := sfapitest.New()
	m.AddRecords(references.DependencyObject, sfapi.Record{
		"MetadataComponentId":           "01p000000000001",
		"MetadataComponentName":         "ClassA",
		"MetadataComponentType":         "ApexClass",
		"RefMetadataComponentId":        "01p000000000005",
		"RefMetadataComponentName":      "InvoiceService",
		"RefMetadataComponentType":      "ApexClass",
		"RefMetadataComponentNamespace": "billing",
	})
	m.AddRecords("InstalledSubscriberPackage",
		sfapi.Record{"Id": "0A3000000000001", "SubscriberPackage.Name": "Billing", "SubscriberPackage.NamespacePrefix": "billing"},
		sfapi.Record{"Id": "0A3000000000002", "SubscriberPackage.Name": "Unrelated", "SubscriberPackage.NamespacePrefix": "other"},
	)

	result, err := newTestAnalyzer(t, m).Dependencies(context.Background(), classA)
	require.NoError(t, err)

	require.Len(t, result.Edges, 2)
	pkg := edgeByName(result.Edges, "Billing")
	require.NotNil(t, pkg)
	assert.Equal(t, metadata.KindInstalledPackage, pkg.Type)
	assert.Equal(t, "billing", pkg.Namespace)
	assert.Equal(t, "ClassA", pkg.ReferencedBy.Name)
}

func TestDependencies_InstalledPackageFailureIsLoggedOnly(t *testing.T) {
	m := sfapitest.New()
	m.AddRecords(references.DependencyObject, sfapi.Record{
		"MetadataComponentId":           "01p000000000001",
		"MetadataComponentName":         "ClassA",
		"MetadataComponentType":         "ApexClass",
		"RefMetadataComponentId":        "01p000000000005",
		"RefMetadataComponentName":      "InvoiceService",
		"RefMetadataComponentType":      "ApexClass",
		"RefMetadataComponentNamespace": "billing",
	})
	m.FailQuery("InstalledSubscriberPackage", errors.New("not allowed"))

	result, err := newTestAnalyzer(t, m).Dependencies(context.Background(), classA)
	require.NoError(t, err)
	assert.Len(t, result.Edges, 1)
	assert.Empty(t, result.Warnings)
}

func TestDependencies_EmailTemplateMergeFields(t *testing.T) {
	m := sfapitest.New()
	m.AddBody("EmailTemplate", "Welcome", map[string]any{
		"subject": "Welcome {!Contact.FirstName}",
		"content": "Your tier is {!Account.Tier__c}. {!Contact.FirstName}",
	})
	entry := metadata.EntryPoint{ID: "00X000000000001", Name: "Welcome", Type: metadata.KindEmailTemplate}

	result, err := newTestAnalyzer(t, m).Dependencies(context.Background(), entry)
	require.NoError(t, err)

	require.Len(t, result.Edges, 2)
	assert.Equal(t, "Account.Tier__c", result.Edges[0].Name)
	assert.Equal(t, metadata.KindCustomField, result.Edges[0].Type)
	assert.Equal(t, "Contact.FirstName", result.Edges[1].Name)
	assert.Equal(t, metadata.KindStandardField, result.Edges[1].Type)
	for _, e := range result.Edges {
		assert.True(t, e.Dynamic)
		assert.Equal(t, entry.Ref(), e.ReferencedBy)
	}
}

func TestUsage_FieldExample(t *testing.T) {
	m := sfapitest.New()
	m.AddRecords("ApexClass", sfapi.Record{
		"Id": "01p000000000001", "Name": "ClassA", "Body": "public class ClassA { void f(Account a) { a.Rating = 'Hot'; } }",
	})

	result, err := newTestAnalyzer(t, m).Usage(context.Background(), rating)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	assert.Equal(t, Stats{metadata.KindApexClass: 1}, result.Stats)
	require.Len(t, result.Edges, 1)
	assert.True(t, result.Edges[0].HasPill("write"))

	root := result.Tree.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Account.Rating", root.Name)
	children := root.References[metadata.KindApexClass]
	require.Len(t, children, 1)
	assert.Equal(t, "ClassA", children[0].Name)
}

func TestUsage_FailingHeuristicKeepsOtherEdges(t *testing.T) {
	m := sfapitest.New()
	m.AddRecords("ApexClass", sfapi.Record{
		"Id": "01p000000000001", "Name": "ClassA", "Body": "public class ClassA { void f(Account a) { a.Rating = 'Hot'; } }",
	})
	m.FailQuery("Layout", errors.New("layouts unavailable"))

	result, err := newTestAnalyzer(t, m).Usage(context.Background(), rating)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, StageReferences+"."+string(metadata.KindStandardField), result.Warnings[0].Stage)
	assert.Contains(t, result.Warnings[0].Message, "layouts unavailable")
	assert.Equal(t, Stats{metadata.KindApexClass: 1}, result.Stats)
	assert.NotNil(t, edgeByName(result.Edges, "ClassA"))
}

func TestUsage_CanceledContext(t *testing.T) {
	m := sfapitest.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAnalyzer(t, m).Usage(ctx, rating)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUsage_DuplicateValidationRulesCollapseInStats(t *testing.T) {
	m := sfapitest.New()
	m.AddRecords("ValidationRule",
		sfapi.Record{"Id": "03d000000000001", "ValidationName": "Rating_Required", "EntityDefinition.QualifiedApiName": "Account"},
		sfapi.Record{"Id": "03d000000000003", "ValidationName": "Rating_Required", "EntityDefinition.QualifiedApiName": "Account"},
	)
	m.AddBody("ValidationRule", "Account.Rating_Required", map[string]any{"errorConditionFormula": "ISBLANK(TEXT(Rating))"})

	result, err := newTestAnalyzer(t, m).Usage(context.Background(), rating)
	require.NoError(t, err)

	assert.Len(t, result.Edges, 2)
	assert.Equal(t, Stats{metadata.KindValidationRule: 1}, result.Stats)
}

func TestUsage_DynamicReferencesAreNotExpanded(t *testing.T) {
	m := sfapitest.New()
	m.AddDependency("Dyn", "dyn", "ApexClass", "01p000000000001", "ClassA", "ApexClass")

	result, err := newTestAnalyzer(t, m).Usage(context.Background(), classA)
	require.NoError(t, err)

	require.Len(t, result.Edges, 1)
	assert.True(t, result.Edges[0].Dynamic)
	assert.Equal(t, 1, m.QueriesOn(references.DependencyObject))
}

func seedTemplateUsage(m *sfapitest.Memory) metadata.EntryPoint {
	m.AddDependency("01p000000000001", "Mailer", "ApexClass", "00X000000000001", "Welcome", "EmailTemplate")
	m.AddDependency("301000000000001", "Onboard", "Flow", "00X000000000001", "Welcome", "EmailTemplate")
	m.AddRecords("Flow",
		sfapi.Record{"Id": "301000000000001", "VersionNumber": 1, "Status": "Obsolete", "Definition.DeveloperName": "Onboard"},
		sfapi.Record{"Id": "301000000000002", "VersionNumber": 2, "Status": "Active", "Definition.DeveloperName": "Onboard"},
	)
	m.AddDependency("0Af000000000001", "Onboard_Action", "QuickAction", "301000000000002", "Onboard", "Flow")
	return metadata.EntryPoint{ID: "00X000000000001", Name: "Welcome", Type: metadata.KindEmailTemplate}
}

func TestUsage_RegistryFailureIsIsolated(t *testing.T) {
	m := sfapitest.New()
	entry := seedTemplateUsage(m)
	m.FailQuery("ApexPage", errors.New("page query failed"))

	result, err := newTestAnalyzer(t, m).Usage(context.Background(), entry)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "references.ApexClass", result.Warnings[0].Stage)
	assert.Contains(t, result.Warnings[0].Message, "page query failed")

	action := edgeByName(result.Edges, "Onboard_Action")
	require.NotNil(t, action)
	assert.True(t, action.HasPill("Version 2"))
	assert.Equal(t, "Onboard", action.ReferencedBy.Name)

	assert.Equal(t, Stats{
		metadata.KindApexClass: 1,
		metadata.KindFlow:      1,
		"QuickAction":          1,
	}, result.Stats)
}

func TestUsage_Deterministic(t *testing.T) {
	m := sfapitest.New()
	entry := seedTemplateUsage(m)
	a := newTestAnalyzer(t, m)

	first, err := a.Usage(context.Background(), entry)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := a.Usage(context.Background(), entry)
		require.NoError(t, err)
		assert.Equal(t, first.Edges, again.Edges)
		assert.Equal(t, first.Tree.Root(), again.Tree.Root())
		assert.NotEqual(t, first.SessionID, again.SessionID)
	}
}

func TestUsage_SortsPinnedFlowsFirst(t *testing.T) {
	m := sfapitest.New()
	m.AddDependency("01p000000000001", "Zeta", "ApexClass", "00X000000000001", "Welcome", "EmailTemplate")
	m.AddDependency("301000000000002", "Onboard", "Flow", "00X000000000001", "Welcome", "EmailTemplate")
	m.AddRecords("Flow", sfapi.Record{"Id": "301000000000002", "VersionNumber": 2, "Status": "Active", "Definition.DeveloperName": "Onboard"})
	entry := metadata.EntryPoint{ID: "00X000000000001", Name: "Welcome", Type: metadata.KindEmailTemplate}

	result, err := newTestAnalyzer(t, m).Usage(context.Background(), entry)
	require.NoError(t, err)

	require.Len(t, result.Edges, 2)
	assert.Equal(t, "Onboard", result.Edges[0].Name)
	assert.True(t, result.Edges[0].HasPill("Active"))
	assert.Equal(t, "Zeta", result.Edges[1].Name)
}

func TestSession_MemoizesAnalyses(t *testing.T) {
	m := sfapitest.New()
	m.AddRecords("ApexClass", sfapi.Record{
		"Id": "01p000000000001", "Name": "ClassA", "Body": "public class ClassA { void f(Account a) { a.Rating = 'Hot'; } }",
	})
	rec := &recorder{}
	a, err := NewAnalyzer(Config{Services: m.Services(), Recorder: rec})
	require.NoError(t, err)
	session := a.NewSession(SessionOptions{})

	first, err := session.Usage(context.Background(), rating)
	require.NoError(t, err)
	queries := len(m.Queries())

	second, err := session.Usage(context.Background(), rating)
	require.NoError(t, err)
	assert.Equal(t, queries, len(m.Queries()))
	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, session.ID(), second.SessionID)
	assert.Positive(t, rec.lookups)

	second.Edges[0].Name = "changed"
	third, err := session.Usage(context.Background(), rating)
	require.NoError(t, err)
	assert.Equal(t, "ClassA", third.Edges[0].Name)

	withReports := rating
	withReports.Options.EnhanceReportData = true
	_, err = session.Usage(context.Background(), withReports)
	require.NoError(t, err)
	assert.Greater(t, len(m.Queries()), queries)
}

func TestSession_MemoizedAnalysisKeepsWarnings(t *testing.T) {
	m := sfapitest.New()
	entry := seedTemplateUsage(m)
	m.FailQuery("ApexPage", errors.New("page query failed"))
	rec := &recorder{}
	a, err := NewAnalyzer(Config{Services: m.Services(), Recorder: rec})
	require.NoError(t, err)
	session := a.NewSession(SessionOptions{})

	first, err := session.Usage(context.Background(), entry)
	require.NoError(t, err)
	require.Len(t, first.Warnings, 1)

	second, err := session.Usage(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, first.Warnings, second.Warnings)
	assert.Equal(t, []string{"usage:degraded", "usage:degraded"}, rec.analyses)
	assert.Len(t, rec.degraded, 1)
}

func TestSession_MemoizedEdgesAreIsolated(t *testing.T) {
	m := sfapitest.New()
	entry := seedTemplateUsage(m)
	session := newTestAnalyzer(t, m).NewSession(SessionOptions{})

	first, err := session.Usage(context.Background(), entry)
	require.NoError(t, err)
	action := edgeByName(first.Edges, "Onboard_Action")
	require.NotNil(t, action)
	require.NotEmpty(t, action.Pills)
	want := action.Pills[0].Label
	action.Pills[0].Label = "changed"
	action.Pills = append(action.Pills, metadata.Pill{Label: "extra"})

	second, err := session.Usage(context.Background(), entry)
	require.NoError(t, err)
	again := edgeByName(second.Edges, "Onboard_Action")
	require.NotNil(t, again)
	assert.Equal(t, want, again.Pills[0].Label)
	assert.False(t, again.HasPill("extra"))

	for i := range second.Edges {
		if second.Edges[i].SortOrder != nil {
			*second.Edges[i].SortOrder = 99
		}
	}
	third, err := session.Usage(context.Background(), entry)
	require.NoError(t, err)
	for _, e := range third.Edges {
		if e.SortOrder != nil {
			assert.NotEqual(t, 99, *e.SortOrder)
		}
	}
}

func TestSession_Defaults(t *testing.T) {
	m := sfapitest.New()
	m.AddDependency("01p000000000001", "ClassA", "ApexClass", "01p000000000002", "ClassB", "ApexClass")
	m.AddDependency("01p000000000002", "ClassB", "ApexClass", "01p000000000003", "ClassC", "ApexClass")

	session := newTestAnalyzer(t, m).NewSession(SessionOptions{Defaults: metadata.Options{MaxDepth: 1}})
	result, err := session.Dependencies(context.Background(), classA)
	require.NoError(t, err)

	assert.Len(t, result.Edges, 1)
	assert.Equal(t, 1, result.EntryPoint.Options.MaxDepth)
}
