package references

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/blastradius/pkg/cache"
	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

// DefaultConcurrency bounds concurrent collaborator calls within one step
const DefaultConcurrency = 5

// Env carries the collaborators and session state handed to every resolver
type Env struct {
	Services sfapi.Services
	Cache    *cache.Cache
	Logger   logrus.FieldLogger

	// BaseURL prefixes component links
	BaseURL string

	// Concurrency bounds concurrent reads and describes
	Concurrency int
}

// Validate checks that the environment is usable
func (e *Env) Validate() error {
	if e == nil {
		return fmt.Errorf("environment is required")
	}
	if err := e.Services.Validate(); err != nil {
		return err
	}
	if e.Cache == nil {
		return fmt.Errorf("session cache is required")
	}
	return nil
}

// Limit returns the concurrency bound for collaborator calls
func (e *Env) Limit() int {
	if e.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return e.Concurrency
}

// Log returns the environment logger, or a discarding one when none is set
func (e *Env) Log() logrus.FieldLogger {
	if e.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		return l
	}
	return e.Logger
}

// NewEdge builds an edge to the named component originating at ref
func (e *Env) NewEdge(name string, kind metadata.Kind, id string, ref metadata.Ref) metadata.Edge {
	return metadata.Edge{
		Name:         name,
		Type:         kind,
		ID:           id,
		ReferencedBy: ref,
		URL:          metadata.ComponentURL(e.BaseURL, id, name),
	}
}

// query runs a tooling query, optionally memoized in the metadata list cache
func (e *Env) query(ctx context.Context, cacheKey string, q sfapi.Query) ([]sfapi.Record, error) {
	if cacheKey != "" {
		if records, ok := e.Cache.GetMetadataList(cacheKey); ok {
			return records, nil
		}
	}
	records, err := e.Services.Query.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Object, err)
	}
	if cacheKey != "" {
		e.Cache.SetMetadataList(cacheKey, records)
	}
	return records, nil
}

// read fetches metadata bodies keyed by lowercase full name
func (e *Env) read(ctx context.Context, kind string, names []string) (map[string]sfapi.MetadataBody, error) {
	out := make(map[string]sfapi.MetadataBody, len(names))
	if len(names) == 0 {
		return out, nil
	}
	bodies, err := e.Services.Read.Read(ctx, kind, names)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s metadata: %w", kind, err)
	}
	for _, b := range bodies {
		out[lower(b.FullName)] = b
	}
	return out, nil
}
