package references

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/blastradius/pkg/cache"
	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

type step struct {
	name string
	run  func(ctx context.Context) ([]metadata.Edge, error)
}

// runSteps runs every step in order. A failing step contributes no edges; the
// edges of the other steps are returned with the joined step errors.
func runSteps(ctx context.Context, steps ...step) ([]metadata.Edge, error) {
	var (
		edges []metadata.Edge
		errs  []error
	)
	for _, s := range steps {
		found, err := s.run(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		edges = append(edges, found...)
	}
	return edges, errors.Join(errs...)
}

type standardFieldResolver struct{}

func (standardFieldResolver) Kind() metadata.Kind { return metadata.KindStandardField }

func (standardFieldResolver) Resolve(ctx context.Context, env *Env, target metadata.EntryPoint) ([]metadata.Edge, error) {
	s, err := newFieldSearch(env, target)
	if err != nil {
		return nil, err
	}
	steps := []step{
		{"validation rules", s.validationRules},
		{"workflow rules", s.workflowRules},
		{"field updates", s.fieldUpdates},
		{"layouts", s.layouts},
		{"visibility rules", s.visibilityRules},
		{"code", s.code},
	}
	if target.Options.FieldInMetadataTypes {
		steps = append(steps, step{"custom metadata", s.metadataTypes})
	}
	return runSteps(ctx, steps...)
}

type customFieldResolver struct{}

func (customFieldResolver) Kind() metadata.Kind { return metadata.KindCustomField }

func (customFieldResolver) Resolve(ctx context.Context, env *Env, target metadata.EntryPoint) ([]metadata.Edge, error) {
	s, err := newFieldSearch(env, target)
	if err != nil {
		return nil, err
	}
	steps := []step{
		{"workflow rules", s.workflowRules},
		{"field updates", s.fieldUpdates},
		{"layouts", s.layouts},
		{"visibility rules", s.visibilityRules},
	}
	if target.Options.FieldInMetadataTypes {
		steps = append(steps, step{"custom metadata", s.metadataTypes})
	}
	return runSteps(ctx, steps...)
}

// fieldSearch holds the heuristics shared by standard and custom fields
type fieldSearch struct {
	env    *Env
	target metadata.EntryPoint
	field  fieldTarget
}

func newFieldSearch(env *Env, target metadata.EntryPoint) (*fieldSearch, error) {
	f, err := parseFieldTarget(target)
	if err != nil {
		return nil, err
	}
	return &fieldSearch{env: env, target: target, field: f}, nil
}

func (s *fieldSearch) edge(name string, kind metadata.Kind, id string) metadata.Edge {
	return s.env.NewEdge(name, kind, id, s.target.Ref())
}

// tableKeys lists the values TableEnumOrId can take for the field's object
func (s *fieldSearch) tableKeys(ctx context.Context) ([]string, error) {
	keys := []string{s.field.object}
	if !strings.HasSuffix(lower(s.field.object), "__c") {
		return keys, nil
	}
	if _, err := LoadCustomObjects(ctx, s.env); err != nil {
		return nil, err
	}
	if id, ok := s.env.Cache.ObjectID(s.field.object); ok {
		keys = append(keys, id, id15(id))
	}
	return keys, nil
}

// compositeKeys lists the durable identifiers a field can be stored under
func (s *fieldSearch) compositeKeys(ctx context.Context) ([]string, error) {
	keys := []string{s.field.qualified()}
	if s.field.id == "" || metadata.IsDynamicReference(s.field.id, s.target.Name) {
		return keys, nil
	}
	tables, err := s.tableKeys(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		keys = append(keys, id15(t)+"."+id15(s.field.id))
	}
	keys = append(keys, s.field.id, id15(s.field.id))
	return keys, nil
}

func matchesAny(value string, keys []string) bool {
	for _, k := range keys {
		if strings.EqualFold(value, k) {
			return true
		}
	}
	return false
}

func (s *fieldSearch) validationRules(ctx context.Context) ([]metadata.Edge, error) {
	records, err := s.env.query(ctx, "ValidationRule:"+lower(s.field.object), sfapi.Query{
		Object:  "ValidationRule",
		Fields:  []string{"Id", "ValidationName", "EntityDefinition.QualifiedApiName"},
		Filter:  sfapi.Filter{sfapi.Eq("EntityDefinition.QualifiedApiName", s.field.object)},
		Tooling: true,
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, s.field.object+"."+r.String("ValidationName"))
	}
	bodies, err := s.env.read(ctx, "ValidationRule", names)
	if err != nil {
		return nil, err
	}

	var edges []metadata.Edge
	for i, r := range records {
		body, ok := bodies[lower(names[i])]
		if !ok {
			continue
		}
		formula := stringValue(body.Body["errorConditionFormula"])
		if FormulaReferences(formula, s.field.object, s.field.field) {
			edges = append(edges, s.edge(names[i], metadata.KindValidationRule, r.String("Id")))
		}
	}
	return edges, nil
}

// LoadWorkflowRules returns the workflow rules of an object with their bodies,
// querying them once per session
func LoadWorkflowRules(ctx context.Context, env *Env, object string, tableKeys []string) (cache.WorkflowRules, error) {
	if rules, ok := env.Cache.GetWorkflowRules(object); ok {
		return rules, nil
	}

	records, err := env.Services.Query.Query(ctx, sfapi.Query{
		Object:  "WorkflowRule",
		Fields:  []string{"Id", "Name", "TableEnumOrId"},
		Filter:  sfapi.Filter{sfapi.In("TableEnumOrId", tableKeys...)},
		Tooling: true,
	})
	if err != nil {
		return cache.WorkflowRules{}, err
	}

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, object+"."+r.String("Name"))
	}
	bodies, err := env.read(ctx, "WorkflowRule", names)
	if err != nil {
		return cache.WorkflowRules{}, err
	}

	rules := cache.WorkflowRules{CachedWorkflows: records, MappedData: bodies}
	env.Cache.SetWorkflowRules(object, rules)
	return rules, nil
}

func (s *fieldSearch) workflowRules(ctx context.Context) ([]metadata.Edge, error) {
	tables, err := s.tableKeys(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := LoadWorkflowRules(ctx, s.env, s.field.object, tables)
	if err != nil {
		return nil, err
	}

	qualified := s.field.qualified()
	var edges []metadata.Edge
	for _, r := range rules.CachedWorkflows {
		name := s.field.object + "." + r.String("Name")
		body, ok := rules.MappedData[lower(name)]
		if !ok {
			continue
		}
		matched := FormulaReferences(stringValue(body.Body["formula"]), s.field.object, s.field.field) ||
			walk(body.Body, func(key string, val any) bool {
				return key == "field" && strings.EqualFold(stringValue(val), qualified)
			})
		if matched {
			edges = append(edges, s.edge(name, metadata.KindWorkflowRule, r.String("Id")))
		}
	}
	return edges, nil
}

func (s *fieldSearch) fieldUpdates(ctx context.Context) ([]metadata.Edge, error) {
	tables, err := s.tableKeys(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.env.query(ctx, "WorkflowFieldUpdate:"+lower(s.field.object), sfapi.Query{
		Object:  "WorkflowFieldUpdate",
		Fields:  []string{"Id", "Name", "FieldDefinitionId", "SourceTableEnumOrId"},
		Filter:  sfapi.Filter{sfapi.In("SourceTableEnumOrId", tables...)},
		Tooling: true,
	})
	if err != nil {
		return nil, err
	}
	keys, err := s.compositeKeys(ctx)
	if err != nil {
		return nil, err
	}

	var edges []metadata.Edge
	for _, r := range records {
		if !matchesAny(r.String("FieldDefinitionId"), keys) {
			continue
		}
		e := s.edge(s.field.object+"."+r.String("Name"), metadata.KindWorkflowFieldUpdate, r.String("Id"))
		e.AddPill(metadata.Pill{Label: "write", Type: metadata.PillWarning, Description: "This field update writes the field"})
		edges = append(edges, e)
	}
	return edges, nil
}

func (s *fieldSearch) layouts(ctx context.Context) ([]metadata.Edge, error) {
	tables, err := s.tableKeys(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.env.query(ctx, "Layout:"+lower(s.field.object), sfapi.Query{
		Object:  "Layout",
		Fields:  []string{"Id", "Name", "TableEnumOrId"},
		Filter:  sfapi.Filter{sfapi.In("TableEnumOrId", tables...)},
		Tooling: true,
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, s.field.object+"-"+r.String("Name"))
	}
	bodies, err := s.env.read(ctx, "Layout", names)
	if err != nil {
		return nil, err
	}

	var edges []metadata.Edge
	for i, r := range records {
		body, ok := bodies[lower(names[i])]
		if !ok {
			continue
		}
		found := walk(body.Body, func(key string, val any) bool {
			return key == "field" && strings.EqualFold(stringValue(val), s.field.field)
		})
		if found {
			edges = append(edges, s.edge(names[i], metadata.KindLayout, r.String("Id")))
		}
	}
	return edges, nil
}

func (s *fieldSearch) visibilityRules(ctx context.Context) ([]metadata.Edge, error) {
	tables, err := s.tableKeys(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.env.query(ctx, "FlexiPage:"+lower(s.field.object), sfapi.Query{
		Object:  "FlexiPage",
		Fields:  []string{"Id", "DeveloperName", "EntityDefinitionId"},
		Filter:  sfapi.Filter{sfapi.In("EntityDefinitionId", tables...)},
		Tooling: true,
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.String("DeveloperName"))
	}
	bodies, err := s.env.read(ctx, "FlexiPage", names)
	if err != nil {
		return nil, err
	}

	merge := lower("{!Record." + s.field.field + "}")
	var edges []metadata.Edge
	for i, r := range records {
		body, ok := bodies[lower(names[i])]
		if !ok {
			continue
		}
		found := walk(body.Body, func(key string, val any) bool {
			if key != "visibilityRule" {
				return false
			}
			return walk(val, func(k string, v any) bool {
				return k == "leftValue" && strings.Contains(lower(stringValue(v)), merge)
			})
		})
		if found {
			e := s.edge(names[i], metadata.KindFlexiPage, r.String("Id"))
			e.AddPill(metadata.Pill{Label: "visibility rule", Type: metadata.PillStandard, Description: "Used in a component visibility rule"})
			edges = append(edges, e)
		}
	}
	return edges, nil
}

func (s *fieldSearch) code(ctx context.Context) ([]metadata.Edge, error) {
	var edges []metadata.Edge
	for _, kind := range []metadata.Kind{metadata.KindApexClass, metadata.KindApexTrigger, metadata.KindApexPage} {
		bodies, err := CodeBodies(ctx, s.env, kind)
		if err != nil {
			return nil, err
		}
		for _, b := range bodies {
			if ReferencesField(b.Normalized(), s.field.object, s.field.field) {
				edges = append(edges, s.edge(b.Name, kind, b.ID))
			}
		}
	}
	return edges, nil
}

func (s *fieldSearch) metadataTypes(ctx context.Context) ([]metadata.Edge, error) {
	objects, err := s.env.Services.Describe.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	var types []string
	for _, o := range objects {
		if strings.HasSuffix(lower(o.Name), "__mdt") {
			types = append(types, o.Name)
		}
	}

	describes := make([]*sfapi.ObjectDescribe, len(types))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.env.Limit())
	for i, name := range types {
		g.Go(func() error {
			desc, err := s.env.Services.Describe.DescribeObject(gctx, name)
			if err != nil {
				return err
			}
			describes[i] = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keys, err := s.compositeKeys(ctx)
	if err != nil {
		return nil, err
	}

	var edges []metadata.Edge
	for _, desc := range describes {
		for _, f := range desc.Fields {
			if !f.References("FieldDefinition") && !f.References("EntityParticle") {
				continue
			}
			records, err := s.env.Services.Query.Query(ctx, sfapi.Query{
				Object: desc.Name,
				Fields: []string{"Id", "DeveloperName", f.Name},
				Filter: sfapi.Filter{sfapi.In(f.Name, keys...)},
			})
			if err != nil {
				return nil, err
			}
			typeName := desc.Name[:len(desc.Name)-len("__mdt")]
			for _, r := range records {
				e := s.edge(typeName+"."+r.String("DeveloperName"), metadata.KindCustomMetadataRecord, r.String("Id"))
				e.AppendNote("References the field through " + f.Name)
				edges = append(edges, e)
			}
		}
	}
	return edges, nil
}
