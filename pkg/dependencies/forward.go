package dependencies

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/references"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

// Post-processing stages reported in warnings
const (
	StageMergeFields  = "dependencies.merge_fields"
	StageFieldNames   = "dependencies.field_names"
	StageFieldDetails = "dependencies.field_metadata"
)

// fieldReadBatch is the number of field bodies requested per read
const fieldReadBatch = 10

var mergeField = regexp.MustCompile(`\{!\s*([A-Za-z][A-Za-z0-9_]*)\.([A-Za-z][A-Za-z0-9_]*)\s*\}`)

func (s *Session) dependencies(ctx context.Context, entry metadata.EntryPoint, logger logrus.FieldLogger) ([]metadata.Edge, []metadata.Warning, error) {
	known := names{idKey(entry.ID): entry.Name}

	expand := func(ctx context.Context, level int, frontier []metadata.Ref) ([]metadata.Edge, error) {
		ids := primaryIDs(frontier)
		if len(ids) == 0 {
			return nil, nil
		}
		deps, err := references.QueryDependencies(ctx, s.analyzer.services.Query, ids, false, s.analyzer.batchSize)
		s.analyzer.recorder.RecordPrimaryQuery(string(DirectionDependencies), err)
		if err != nil {
			return nil, &QueryError{Direction: DirectionDependencies, Level: level, Err: err}
		}

		edges := make([]metadata.Edge, 0, len(deps))
		for _, d := range deps {
			e := metadata.Edge{
				Name:         d.To.Name,
				Type:         d.To.Type,
				ID:           d.To.ID,
				Namespace:    d.ToNamespace,
				ReferencedBy: known.of(d.From),
			}
			known.learn(e)
			edges = append(edges, e)
		}
		return edges, nil
	}

	out, err := s.walk(ctx, DirectionDependencies, entry, logger, expand)
	if err != nil {
		return nil, nil, err
	}

	var warnings []metadata.Warning
	if entry.Type == metadata.KindEmailTemplate {
		if err := s.mergeFieldEdges(ctx, entry, out); err != nil {
			warnings = append(warnings, s.degrade(logger, StageMergeFields, err))
		}
	}
	if err := s.qualifyCustomFields(ctx, entry, out); err != nil {
		warnings = append(warnings, s.degrade(logger, StageFieldNames, err))
	}
	if err := s.fieldMetadataEdges(ctx, out); err != nil {
		warnings = append(warnings, s.degrade(logger, StageFieldDetails, err))
	}
	if err := s.installedPackageEdges(ctx, entry, out); err != nil {
		logger.WithError(err).Warn("could not infer installed packages")
	}

	return out.edges, warnings, nil
}

// mergeFieldEdges turns {!Object.Field} merge fields of an email template into
// field edges
func (s *Session) mergeFieldEdges(ctx context.Context, entry metadata.EntryPoint, out *collector) error {
	bodies, err := s.analyzer.services.Read.Read(ctx, string(metadata.KindEmailTemplate), []string{entry.Name})
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	var fields []string
	for _, b := range bodies {
		if b.AccessDenied {
			continue
		}
		collectStrings(b.Body, func(text string) {
			for _, m := range mergeField.FindAllStringSubmatch(text, -1) {
				name := m[1] + "." + m[2]
				if _, ok := seen[strings.ToLower(name)]; ok {
					continue
				}
				seen[strings.ToLower(name)] = struct{}{}
				fields = append(fields, name)
			}
		})
	}
	sort.Strings(fields)

	for _, f := range fields {
		_, member := metadata.SplitQualifiedName(f)
		kind := metadata.KindStandardField
		if strings.HasSuffix(strings.ToLower(member), "__c") {
			kind = metadata.KindCustomField
		}
		e := metadata.Edge{Name: f, Type: kind, ID: f, ReferencedBy: entry.Ref(), Dynamic: true}
		e.AppendNote("Merge field in the template body")
		out.add(e)
	}
	return nil
}

func collectStrings(v any, fn func(string)) {
	switch node := v.(type) {
	case string:
		fn(node)
	case map[string]any:
		for _, child := range node {
			collectStrings(child, fn)
		}
	case []any:
		for _, child := range node {
			collectStrings(child, fn)
		}
	}
}

// qualifyCustomFields renames custom fields to Object.Field, both as edge targets
// and as edge origins
func (s *Session) qualifyCustomFields(ctx context.Context, entry metadata.EntryPoint, out *collector) error {
	var ids []string
	seen := make(map[string]struct{})
	for _, e := range out.edges {
		if e.Type != metadata.KindCustomField || e.Dynamic || strings.Contains(e.Name, ".") {
			continue
		}
		if _, ok := seen[idKey(e.ID)]; ok {
			continue
		}
		seen[idKey(e.ID)] = struct{}{}
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	qualified, err := references.FieldNames(ctx, s.env, ids)
	if err != nil {
		return err
	}

	for i := range out.edges {
		e := &out.edges[i]
		if e.Type == metadata.KindCustomField {
			if name, ok := qualified[e.ID]; ok {
				e.Name = name
				e.URL = metadata.ComponentURL(s.analyzer.baseURL, e.ID, e.Name)
			}
		}
		if e.ReferencedBy.Type == metadata.KindCustomField && !strings.EqualFold(e.ReferencedBy.ID, entry.ID) {
			if name, ok := qualified[e.ReferencedBy.ID]; ok {
				e.ReferencedBy.Name = name
			}
		}
	}
	return nil
}

// fieldMetadataEdges reads the metadata of every custom field found and adds the
// lookup target, global value set and controlling field each one references
func (s *Session) fieldMetadataEdges(ctx context.Context, out *collector) error {
	var fields []metadata.Edge
	var pending []string
	for _, e := range out.edges {
		if e.Type != metadata.KindCustomField || e.Dynamic || e.Repeated || !strings.Contains(e.Name, ".") {
			continue
		}
		fields = append(fields, e)
		if !s.cache.HasFieldName(e.Name) {
			pending = append(pending, e.Name)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.readFields(ctx, pending); err != nil {
		return err
	}

	var lookups, valueSets []string
	type synth struct {
		edge  metadata.Edge
		field metadata.Edge
	}
	var found []synth
	for _, f := range fields {
		body, ok := s.cache.GetField(f.Name)
		if !ok || body.AccessDenied {
			continue
		}
		object, _ := metadata.SplitQualifiedName(f.Name)

		for _, target := range referenceTargets(body.Body["referenceTo"]) {
			kind := metadata.KindStandardEntity
			if strings.HasSuffix(strings.ToLower(target), "__c") {
				kind = metadata.KindCustomObject
				lookups = append(lookups, target)
			}
			e := metadata.Edge{Name: target, Type: kind, ID: target}
			e.AppendNote("Lookup target")
			found = append(found, synth{edge: e, field: f})
		}

		valueSet, _ := body.Body["valueSet"].(map[string]any)
		if name, _ := valueSet["valueSetName"].(string); name != "" {
			valueSets = append(valueSets, name)
			e := metadata.Edge{Name: name, Type: metadata.KindGlobalValueSet, ID: name}
			e.AppendNote("Picklist values come from this global value set")
			found = append(found, synth{edge: e, field: f})
		}
		if controlling, _ := valueSet["controllingField"].(string); controlling != "" {
			name := object + "." + controlling
			kind := metadata.KindStandardField
			if strings.HasSuffix(strings.ToLower(controlling), "__c") {
				kind = metadata.KindCustomField
			}
			e := metadata.Edge{Name: name, Type: kind, ID: fieldID(out, name)}
			e.AppendNote("Controlling field of this dependent picklist")
			found = append(found, synth{edge: e, field: f})
		}
	}
	if len(found) == 0 {
		return nil
	}

	objectIDs := make(map[string]string)
	if len(lookups) > 0 {
		if _, err := references.LoadCustomObjects(ctx, s.env); err != nil {
			return err
		}
		for _, name := range lookups {
			if id, ok := s.cache.ObjectID(name); ok {
				objectIDs[strings.ToLower(name)] = id
			}
		}
	}
	valueSetIDs, err := s.globalValueSetIDs(ctx, valueSets)
	if err != nil {
		return err
	}

	for _, f := range found {
		e := f.edge
		switch e.Type {
		case metadata.KindCustomObject:
			if id, ok := objectIDs[strings.ToLower(e.Name)]; ok {
				e.ID = id
			}
		case metadata.KindGlobalValueSet:
			if id, ok := valueSetIDs[strings.ToLower(e.Name)]; ok {
				e.ID = id
			}
		}
		e.ReferencedBy = f.field.Ref()
		e.URL = metadata.ComponentURL(s.analyzer.baseURL, e.ID, e.Name)
		e.Dynamic = metadata.IsDynamicReference(e.ID, e.Name)
		if !e.Dynamic && hasEdgeTo(out, e.ID) {
			e.Repeated = true
		}
		out.add(e)
	}
	return nil
}

// readFields reads field bodies into the session cache, several batches at a time
func (s *Session) readFields(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	var mu sync.Mutex
	results := make(map[string]sfapi.MetadataBody, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.analyzer.concurrency)
	for _, batch := range sfapi.Chunk(names, fieldReadBatch) {
		g.Go(func() error {
			bodies, err := s.analyzer.services.Read.Read(gctx, string(metadata.KindCustomField), batch)
			if err != nil {
				return fmt.Errorf("failed to read field metadata: %w", err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, b := range bodies {
				results[strings.ToLower(b.FullName)] = b
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.cache.AddFieldNames(names...)
	for _, n := range names {
		if b, ok := results[strings.ToLower(n)]; ok {
			s.cache.SetField(n, b)
		}
	}
	return nil
}

func (s *Session) globalValueSetIDs(ctx context.Context, names []string) (map[string]string, error) {
	ids := make(map[string]string)
	if len(names) == 0 {
		return ids, nil
	}
	records, err := s.analyzer.services.Query.Query(ctx, sfapi.Query{
		Object:  "GlobalValueSet",
		Fields:  []string{"Id", "DeveloperName"},
		Filter:  sfapi.Filter{sfapi.In("DeveloperName", names...)},
		Tooling: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query global value sets: %w", err)
	}
	for _, r := range records {
		ids[strings.ToLower(r.String("DeveloperName"))] = r.String("Id")
	}
	return ids, nil
}

func referenceTargets(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// fieldID returns the id of a field already reached under the given name
func fieldID(out *collector, name string) string {
	for _, e := range out.edges {
		if strings.EqualFold(e.Name, name) {
			return e.ID
		}
	}
	return name
}

func hasEdgeTo(out *collector, id string) bool {
	for _, e := range out.edges {
		if strings.EqualFold(e.ID, id) {
			return true
		}
	}
	return false
}

// installedPackageEdges adds the installed packages whose namespace appears among
// the components reached
func (s *Session) installedPackageEdges(ctx context.Context, entry metadata.EntryPoint, out *collector) error {
	namespaces := make(map[string]struct{})
	for _, e := range out.edges {
		if e.Namespace != "" {
			namespaces[strings.ToLower(e.Namespace)] = struct{}{}
		}
	}
	if len(namespaces) == 0 {
		return nil
	}

	records, err := s.analyzer.services.Query.Query(ctx, sfapi.Query{
		Object:  "InstalledSubscriberPackage",
		Fields:  []string{"Id", "SubscriberPackage.Name", "SubscriberPackage.NamespacePrefix"},
		Tooling: true,
	})
	if err != nil {
		return err
	}

	for _, r := range records {
		ns := r.String("SubscriberPackage.NamespacePrefix")
		if _, ok := namespaces[strings.ToLower(ns)]; !ok || ns == "" {
			continue
		}
		e := metadata.Edge{
			Name:         r.String("SubscriberPackage.Name"),
			Type:         metadata.KindInstalledPackage,
			ID:           r.String("Id"),
			Namespace:    ns,
			ReferencedBy: entry.Ref(),
		}
		e.URL = metadata.ComponentURL(s.analyzer.baseURL, e.ID, e.Name)
		e.AppendNote("Inferred from components in the " + ns + " namespace")
		out.add(e)
	}
	return nil
}
