package references

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

type emailTemplateResolver struct{}

func (emailTemplateResolver) Kind() metadata.Kind { return metadata.KindEmailTemplate }

// Resolve finds workflow email alerts sending the template
func (emailTemplateResolver) Resolve(ctx context.Context, env *Env, target metadata.EntryPoint) ([]metadata.Edge, error) {
	ids := []string{target.ID}
	if short := id15(target.ID); short != target.ID {
		ids = append(ids, short)
	}
	records, err := env.query(ctx, "", sfapi.Query{
		Object:  "WorkflowAlert",
		Fields:  []string{"Id", "DeveloperName", "TemplateId", "EntityDefinition.QualifiedApiName"},
		Filter:  sfapi.Filter{sfapi.In("TemplateId", ids...)},
		Tooling: true,
	})
	if err != nil {
		return nil, err
	}

	edges := make([]metadata.Edge, 0, len(records))
	for _, r := range records {
		name := r.String("DeveloperName")
		if object := r.String("EntityDefinition.QualifiedApiName"); object != "" {
			name = object + "." + name
		}
		edges = append(edges, env.NewEdge(name, metadata.KindWorkflowAlert, r.String("Id"), target.Ref()))
	}
	return edges, nil
}

type flowResolver struct{}

func (flowResolver) Kind() metadata.Kind { return metadata.KindFlow }

// Resolve runs the reverse dependency query over every version of the flow
// definition, since the data source reports usages against versions
func (flowResolver) Resolve(ctx context.Context, env *Env, target metadata.EntryPoint) ([]metadata.Edge, error) {
	versions, err := env.query(ctx, "", sfapi.Query{
		Object:  "Flow",
		Fields:  []string{"Id", "VersionNumber", "Status", "Definition.DeveloperName"},
		Filter:  sfapi.Filter{sfapi.Eq("Definition.DeveloperName", target.Name)},
		Tooling: true,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(versions))
	numbers := make(map[string]int, len(versions))
	for _, v := range versions {
		id := v.String("Id")
		if strings.EqualFold(id, target.ID) {
			continue
		}
		ids = append(ids, id)
		numbers[id15(id)] = v.Int("VersionNumber")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	deps, err := QueryDependencies(ctx, env.Services.Query, ids, true, DefaultBatchSize)
	if err != nil {
		return nil, err
	}

	edges := make([]metadata.Edge, 0, len(deps))
	for _, d := range deps {
		e := env.NewEdge(d.From.Name, d.From.Type, d.From.ID, target.Ref())
		e.Namespace = d.FromNamespace
		if n, ok := numbers[id15(d.To.ID)]; ok {
			e.AddPill(metadata.Pill{
				Label:       "Version " + strconv.Itoa(n),
				Type:        metadata.PillStandard,
				Description: "Uses version " + strconv.Itoa(n) + " of the flow",
			})
		}
		edges = append(edges, e)
	}
	return edges, nil
}

type apexClassResolver struct{}

func (apexClassResolver) Kind() metadata.Kind { return metadata.KindApexClass }

var pageControllerAttr = regexp.MustCompile(`(?i)\b(controller|extensions)\s*=\s*["']([^"']*)["']`)

// Resolve finds classes instantiated by name through string literals and pages
// bound to the class as controller or extension
func (apexClassResolver) Resolve(ctx context.Context, env *Env, target metadata.EntryPoint) ([]metadata.Edge, error) {
	var edges []metadata.Edge

	for _, kind := range []metadata.Kind{metadata.KindApexClass, metadata.KindApexTrigger} {
		bodies, err := CodeBodies(ctx, env, kind)
		if err != nil {
			return nil, err
		}
		for _, b := range bodies {
			if id15(b.ID) == id15(target.ID) || strings.EqualFold(b.Name, target.Name) {
				continue
			}
			if !ContainsStringLiteral(b.Stripped(), target.Name) {
				continue
			}
			e := env.NewEdge(b.Name, kind, b.ID, target.Ref())
			e.AddPill(metadata.Pill{
				Label:       "dynamic",
				Type:        metadata.PillWarning,
				Description: "Refers to the class by name in a string literal",
			})
			edges = append(edges, e)
		}
	}

	for _, kind := range []metadata.Kind{metadata.KindApexPage, metadata.KindApexComponent} {
		bodies, err := CodeBodies(ctx, env, kind)
		if err != nil {
			return nil, err
		}
		for _, b := range bodies {
			if pageUsesClass(b.Stripped(), target.Name) {
				edges = append(edges, env.NewEdge(b.Name, kind, b.ID, target.Ref()))
			}
		}
	}
	return edges, nil
}

func pageUsesClass(markup, class string) bool {
	for _, m := range pageControllerAttr.FindAllStringSubmatch(markup, -1) {
		for _, name := range strings.Split(m[2], ",") {
			if strings.EqualFold(strings.TrimSpace(name), class) {
				return true
			}
		}
	}
	return false
}

type customObjectResolver struct{}

func (customObjectResolver) Kind() metadata.Kind { return metadata.KindCustomObject }

// Resolve reports the lookup and master-detail fields pointing at the object
func (customObjectResolver) Resolve(ctx context.Context, env *Env, target metadata.EntryPoint) ([]metadata.Edge, error) {
	desc, err := env.Services.Describe.DescribeObject(ctx, target.Name)
	if err != nil {
		return nil, err
	}

	rels := make([]sfapi.ChildRelationship, 0, len(desc.ChildRelationships))
	seen := make(map[string]struct{}, len(desc.ChildRelationships))
	var developerNames []string
	for _, rel := range desc.ChildRelationships {
		key := lower(rel.ChildObject + "." + rel.Field)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		rels = append(rels, rel)
		if isCustomField(rel.Field) {
			developerNames = append(developerNames, developerName(rel.Field))
		}
	}

	ids, err := childFieldIDs(ctx, env, developerNames)
	if err != nil {
		env.Log().WithFields(logrus.Fields{
			"entry_point": target.Name,
			"kind":        target.Type,
		}).WithError(err).Warn("could not resolve child relationship field ids")
		ids = nil
	}

	edges := make([]metadata.Edge, 0, len(rels))
	for _, rel := range rels {
		name := rel.ChildObject + "." + rel.Field
		kind := metadata.KindStandardField
		id := name
		if isCustomField(rel.Field) {
			kind = metadata.KindCustomField
			if resolved, ok := ids[lower(name)]; ok {
				id = resolved
			}
		}
		e := env.NewEdge(name, kind, id, target.Ref())
		if rel.RelationshipName != "" {
			e.AppendNote("Relationship " + rel.RelationshipName)
		}
		edges = append(edges, e)
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Name < edges[j].Name })
	return edges, nil
}

func isCustomField(name string) bool {
	return strings.HasSuffix(lower(name), "__c")
}

// developerName strips the namespace prefix and custom suffix from a field name
func developerName(field string) string {
	name := field[:len(field)-len("__c")]
	if idx := strings.Index(name, "__"); idx != -1 {
		name = name[idx+2:]
	}
	return name
}

// childFieldIDs resolves custom field ids keyed by lowercase Object.Field
func childFieldIDs(ctx context.Context, env *Env, developerNames []string) (map[string]string, error) {
	ids := make(map[string]string)
	for _, batch := range sfapi.Chunk(developerNames, DefaultBatchSize) {
		records, err := env.Services.Query.Query(ctx, sfapi.Query{
			Object:  "CustomField",
			Fields:  []string{"Id", "DeveloperName", "NamespacePrefix", "TableEnumOrId"},
			Filter:  sfapi.Filter{sfapi.In("DeveloperName", batch...)},
			Tooling: true,
		})
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			object, err := ObjectName(ctx, env, r.String("TableEnumOrId"))
			if err != nil {
				return nil, err
			}
			field := customName(r.String("NamespacePrefix"), r.String("DeveloperName"), "__c")
			ids[lower(object+"."+field)] = r.String("Id")
		}
	}
	return ids, nil
}
