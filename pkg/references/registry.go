package references

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/blastradius/pkg/metadata"
)

// ErrUnsupportedKind is returned when no resolver exists for a kind
var ErrUnsupportedKind = errors.New("unsupported component kind")

// Resolver finds components that use a target of one kind
type Resolver interface {
	Kind() metadata.Kind
	Resolve(ctx context.Context, env *Env, target metadata.EntryPoint) ([]metadata.Edge, error)
}

var kinds = []metadata.Kind{
	metadata.KindStandardField,
	metadata.KindCustomField,
	metadata.KindEmailTemplate,
	metadata.KindFlow,
	metadata.KindApexClass,
	metadata.KindCustomObject,
}

// Kinds lists the registry kinds in dispatch order
func Kinds() []metadata.Kind {
	out := make([]metadata.Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Lookup returns the resolver for kind
func Lookup(kind metadata.Kind) (Resolver, bool) {
	switch kind {
	case metadata.KindStandardField:
		return standardFieldResolver{}, true
	case metadata.KindCustomField:
		return customFieldResolver{}, true
	case metadata.KindEmailTemplate:
		return emailTemplateResolver{}, true
	case metadata.KindFlow:
		return flowResolver{}, true
	case metadata.KindApexClass:
		return apexClassResolver{}, true
	case metadata.KindCustomObject:
		return customObjectResolver{}, true
	}
	return nil, false
}

// Supports reports whether kind has a resolver
func Supports(kind metadata.Kind) bool {
	_, ok := Lookup(kind)
	return ok
}

// Resolve dispatches target to its resolver. Returned edges are deduplicated and
// carry the target as their origin. A resolver may fail part way and still
// return the edges it found, alongside the error.
func Resolve(ctx context.Context, env *Env, target metadata.EntryPoint) ([]metadata.Edge, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	r, ok := Lookup(target.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, target.Type)
	}
	edges, err := r.Resolve(ctx, env, target)
	if err != nil {
		err = fmt.Errorf("%s resolver: %w", r.Kind(), err)
	}
	return dedupe(edges), err
}

func dedupe(edges []metadata.Edge) []metadata.Edge {
	seen := make(map[string]struct{}, len(edges))
	out := make([]metadata.Edge, 0, len(edges))
	for _, e := range edges {
		key := e.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
