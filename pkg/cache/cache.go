// Package cache provides the session-scoped memoization store shared by every
// resolver, heuristic and enricher taking part in one analysis session.
//
// A Cache is created when a session starts and dropped when it ends; it is never
// persisted. Every getter returns the zero value and false on a miss and never
// fails. Enrichment batches may touch the cache from several goroutines, so access
// is guarded by a mutex.
package cache

import (
	"strings"
	"sync"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

// Lookup kinds, used as metric labels
const (
	KindFields        = "fields"
	KindFieldNames    = "field_names"
	KindCustomObjects = "custom_objects"
	KindWorkflowRules = "workflow_rules"
	KindDependencies  = "dependencies"
	KindUsage         = "usage"
	KindMetadataList  = "metadata_list"
)

// CustomObject maps an object id to its full name
type CustomObject struct {
	ID       string
	FullName string
}

// WorkflowRules holds the workflow rule records of one object and their bodies
type WorkflowRules struct {
	CachedWorkflows []sfapi.Record
	MappedData      map[string]sfapi.MetadataBody
}

// Analysis is a memoized walk together with the steps that degraded it
type Analysis struct {
	Edges    []metadata.Edge
	Warnings []metadata.Warning
}

func (a Analysis) clone() Analysis {
	return Analysis{
		Edges:    metadata.CloneEdges(a.Edges),
		Warnings: append([]metadata.Warning(nil), a.Warnings...),
	}
}

// Observer is notified of every lookup
type Observer func(kind string, hit bool)

// Cache is the per-session store
type Cache struct {
	mu sync.RWMutex

	fields        map[string]sfapi.MetadataBody
	fieldNames    map[string]struct{}
	customObjects []CustomObject
	objectsLoaded bool
	workflowRules map[string]WorkflowRules
	dependencies  map[string]Analysis
	usage         map[string]Analysis
	metadataList  map[string][]sfapi.Record

	observer Observer
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		fields:        make(map[string]sfapi.MetadataBody),
		fieldNames:    make(map[string]struct{}),
		workflowRules: make(map[string]WorkflowRules),
		dependencies:  make(map[string]Analysis),
		usage:         make(map[string]Analysis),
		metadataList:  make(map[string][]sfapi.Record),
	}
}

// SetObserver installs a lookup observer, typically a metrics recorder
func (c *Cache) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

func (c *Cache) observe(kind string, hit bool) {
	if c.observer != nil {
		c.observer(kind, hit)
	}
}

func normalize(name string) string {
	return strings.ToLower(name)
}

// GetField returns the metadata body read back for a field
func (c *Cache) GetField(name string) (sfapi.MetadataBody, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.fields[normalize(name)]
	c.observe(KindFields, ok)
	return body, ok
}

// SetField stores a field body and records the name as known
func (c *Cache) SetField(name string, body sfapi.MetadataBody) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[normalize(name)] = body
	c.fieldNames[normalize(name)] = struct{}{}
}

// HasFieldName reports whether metadata for the field was already requested,
// whether or not a body came back
func (c *Cache) HasFieldName(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.fieldNames[normalize(name)]
	c.observe(KindFieldNames, ok)
	return ok
}

// AddFieldNames records field names as requested
func (c *Cache) AddFieldNames(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range names {
		c.fieldNames[normalize(n)] = struct{}{}
	}
}

// GetCustomObjects returns the object inventory once loaded
func (c *Cache) GetCustomObjects() ([]CustomObject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.observe(KindCustomObjects, c.objectsLoaded)
	if !c.objectsLoaded {
		return nil, false
	}
	return c.customObjects, true
}

// SetCustomObjects stores the object inventory
func (c *Cache) SetCustomObjects(objects []CustomObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customObjects = objects
	c.objectsLoaded = true
}

// ObjectName resolves an object id to its full name. Ids are compared on their
// first 15 characters so both id forms match.
func (c *Cache) ObjectName(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, o := range c.customObjects {
		if sameID(o.ID, id) {
			return o.FullName, true
		}
	}
	return "", false
}

// ObjectID resolves an object full name to its id
func (c *Cache) ObjectID(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, o := range c.customObjects {
		if strings.EqualFold(o.FullName, name) {
			return o.ID, true
		}
	}
	return "", false
}

// GetWorkflowRules returns the cached workflow rules of an object
func (c *Cache) GetWorkflowRules(object string) (WorkflowRules, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rules, ok := c.workflowRules[normalize(object)]
	c.observe(KindWorkflowRules, ok)
	return rules, ok
}

// SetWorkflowRules stores the workflow rules of an object
func (c *Cache) SetWorkflowRules(object string, rules WorkflowRules) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workflowRules[normalize(object)] = rules
}

// GetDependencies returns a copy of a memoized dependency walk
func (c *Cache) GetDependencies(key string) (Analysis, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.dependencies[key]
	c.observe(KindDependencies, ok)
	if !ok {
		return Analysis{}, false
	}
	return a.clone(), true
}

// SetDependencies memoizes a copy of a dependency walk
func (c *Cache) SetDependencies(key string, a Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dependencies[key] = a.clone()
}

// GetUsage returns a copy of a memoized usage walk
func (c *Cache) GetUsage(key string) (Analysis, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.usage[key]
	c.observe(KindUsage, ok)
	if !ok {
		return Analysis{}, false
	}
	return a.clone(), true
}

// SetUsage memoizes a copy of a usage walk
func (c *Cache) SetUsage(key string, a Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage[key] = a.clone()
}

// GetMetadataList returns a memoized record list, e.g. every class body
func (c *Cache) GetMetadataList(key string) ([]sfapi.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	records, ok := c.metadataList[key]
	c.observe(KindMetadataList, ok)
	return records, ok
}

// SetMetadataList memoizes a record list
func (c *Cache) SetMetadataList(key string, records []sfapi.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadataList[key] = records
}

func sameID(a, b string) bool {
	if len(a) >= 15 && len(b) >= 15 {
		return strings.EqualFold(a[:15], b[:15])
	}
	return a == b
}
