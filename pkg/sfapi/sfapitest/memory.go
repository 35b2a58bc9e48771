// Package sfapitest provides an in-memory implementation of the sfapi collaborator
// contracts for tests.
package sfapitest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

// Memory serves queries, describes and reads from in-memory tables. Filters are
// evaluated the way the platform does: string comparisons ignore case.
type Memory struct {
	mu sync.Mutex

	tables    map[string][]sfapi.Record
	objects   []sfapi.ObjectSummary
	describes map[string]*sfapi.ObjectDescribe
	bodies    map[string]map[string]sfapi.MetadataBody

	queryErrors    map[string]error
	readErrors     map[string]error
	describeErrors map[string]error

	// QueryHook, when set, runs before every query; a non-nil error fails it
	QueryHook func(q sfapi.Query) error

	queries []sfapi.Query
	reads   []string
}

// New creates an empty store
func New() *Memory {
	return &Memory{
		tables:         make(map[string][]sfapi.Record),
		describes:      make(map[string]*sfapi.ObjectDescribe),
		bodies:         make(map[string]map[string]sfapi.MetadataBody),
		queryErrors:    make(map[string]error),
		readErrors:     make(map[string]error),
		describeErrors: make(map[string]error),
	}
}

// Services returns the store as a collaborator bundle
func (m *Memory) Services() sfapi.Services {
	return sfapi.Services{Query: m, Describe: m, Read: m}
}

// AddRecords appends rows to an object table
func (m *Memory) AddRecords(object string, records ...sfapi.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[object] = append(m.tables[object], records...)
}

// AddDependency appends one row to MetadataComponentDependency
func (m *Memory) AddDependency(fromID, fromName, fromType, toID, toName, toType string) {
	m.AddRecords("MetadataComponentDependency", sfapi.Record{
		"MetadataComponentId":           fromID,
		"MetadataComponentName":         fromName,
		"MetadataComponentType":         fromType,
		"MetadataComponentNamespace":    nil,
		"RefMetadataComponentId":        toID,
		"RefMetadataComponentName":      toName,
		"RefMetadataComponentType":      toType,
		"RefMetadataComponentNamespace": nil,
	})
}

// AddObject registers an object in the inventory with its describe
func (m *Memory) AddObject(desc *sfapi.ObjectDescribe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = append(m.objects, sfapi.ObjectSummary{Name: desc.Name, Label: desc.Label, Custom: desc.Custom})
	m.describes[strings.ToLower(desc.Name)] = desc
}

// AddBody registers a metadata body
func (m *Memory) AddBody(kind, fullName string, body map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bodies[kind] == nil {
		m.bodies[kind] = make(map[string]sfapi.MetadataBody)
	}
	m.bodies[kind][strings.ToLower(fullName)] = sfapi.MetadataBody{Kind: kind, FullName: fullName, Body: body}
}

// DenyRead marks a component as existing but unreadable
func (m *Memory) DenyRead(kind, fullName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bodies[kind] == nil {
		m.bodies[kind] = make(map[string]sfapi.MetadataBody)
	}
	m.bodies[kind][strings.ToLower(fullName)] = sfapi.MetadataBody{Kind: kind, FullName: fullName, AccessDenied: true}
}

// FailQuery makes every query on object fail with err
func (m *Memory) FailQuery(object string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErrors[object] = err
}

// FailRead makes every read of kind fail with err
func (m *Memory) FailRead(kind string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrors[kind] = err
}

// FailDescribe makes describing the object fail with err
func (m *Memory) FailDescribe(object string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describeErrors[strings.ToLower(object)] = err
}

// Queries returns every query issued so far
func (m *Memory) Queries() []sfapi.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sfapi.Query, len(m.queries))
	copy(out, m.queries)
	return out
}

// QueriesOn counts the queries issued against object
func (m *Memory) QueriesOn(object string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.queries {
		if q.Object == object {
			n++
		}
	}
	return n
}

// Reads returns "kind:name" for every name read so far
func (m *Memory) Reads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.reads))
	copy(out, m.reads)
	return out
}

// Query evaluates q against the in-memory table
func (m *Memory) Query(ctx context.Context, q sfapi.Query) ([]sfapi.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.queries = append(m.queries, q)
	hook := m.QueryHook
	err := m.queryErrors[q.Object]
	rows := m.tables[q.Object]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(q); err != nil {
			return nil, err
		}
	}
	if q.Filter.Empty() {
		return nil, nil
	}

	out := make([]sfapi.Record, 0)
	for _, row := range rows {
		ok, err := matches(row, q.Filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rec := make(sfapi.Record, len(q.Fields))
		for _, f := range q.Fields {
			rec[f] = row[f]
		}
		out = append(out, rec)
	}
	return out, nil
}

func matches(row sfapi.Record, filter sfapi.Filter) (bool, error) {
	for _, c := range filter {
		value := row.String(c.Field)
		switch c.Op {
		case sfapi.OpEq:
			if !strings.EqualFold(value, c.Values[0]) {
				return false, nil
			}
		case sfapi.OpIn:
			found := false
			for _, v := range c.Values {
				if strings.EqualFold(value, v) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		case sfapi.OpLike:
			pattern := "(?i)^" + strings.ReplaceAll(regexp.QuoteMeta(c.Values[0]), "%", ".*") + "$"
			re, err := regexp.Compile(pattern)
			if err != nil {
				return false, err
			}
			if !re.MatchString(value) {
				return false, nil
			}
		case sfapi.OpIsNull:
			if value != "" {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	return true, nil
}

// ListObjects returns the registered objects sorted by name
func (m *Memory) ListObjects(ctx context.Context) ([]sfapi.ObjectSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.describeErrors["*"]; err != nil {
		return nil, err
	}
	out := make([]sfapi.ObjectSummary, len(m.objects))
	copy(out, m.objects)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DescribeObject returns a registered describe
func (m *Memory) DescribeObject(ctx context.Context, name string) (*sfapi.ObjectDescribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.describeErrors[strings.ToLower(name)]; err != nil {
		return nil, err
	}
	desc, ok := m.describes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", name, sfapi.ErrNotFound)
	}
	return desc, nil
}

// Read returns registered bodies in the order of names, skipping unknown names
func (m *Memory) Read(ctx context.Context, kind string, names []string) ([]sfapi.MetadataBody, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		m.reads = append(m.reads, kind+":"+n)
	}
	if err := m.readErrors[kind]; err != nil {
		return nil, err
	}
	out := make([]sfapi.MetadataBody, 0, len(names))
	for _, n := range names {
		if body, ok := m.bodies[kind][strings.ToLower(n)]; ok {
			out = append(out, body)
		}
	}
	return out, nil
}
