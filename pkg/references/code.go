package references

import (
	"context"
	"fmt"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

// CodeBody is the source of one local code component
type CodeBody struct {
	ID   string
	Name string
	Kind metadata.Kind
	Code string
}

// Stripped returns the code without comments
func (b CodeBody) Stripped() string {
	if b.Kind == metadata.KindApexPage || b.Kind == metadata.KindApexComponent {
		return StripMarkupComments(b.Code)
	}
	return StripCodeComments(b.Code)
}

// Normalized returns the code without comments or whitespace, lowercased
func (b CodeBody) Normalized() string {
	return Normalize(b.Stripped())
}

func codeField(kind metadata.Kind) (string, error) {
	switch kind {
	case metadata.KindApexClass, metadata.KindApexTrigger:
		return "Body", nil
	case metadata.KindApexPage, metadata.KindApexComponent:
		return "Markup", nil
	}
	return "", fmt.Errorf("%w: %s has no code body", ErrUnsupportedKind, kind)
}

// CodeBodies returns every local (non-managed) code component of a kind. The
// list is loaded once per session.
func CodeBodies(ctx context.Context, env *Env, kind metadata.Kind) ([]CodeBody, error) {
	field, err := codeField(kind)
	if err != nil {
		return nil, err
	}
	records, err := env.query(ctx, string(kind)+":bodies", sfapi.Query{
		Object:  string(kind),
		Fields:  []string{"Id", "Name", field},
		Filter:  sfapi.Filter{sfapi.IsNull("NamespacePrefix")},
		Tooling: true,
	})
	if err != nil {
		return nil, err
	}
	return toCodeBodies(kind, field, records), nil
}

// CodeBodiesByID returns the code of the given components
func CodeBodiesByID(ctx context.Context, env *Env, kind metadata.Kind, ids []string) ([]CodeBody, error) {
	field, err := codeField(kind)
	if err != nil {
		return nil, err
	}
	var out []CodeBody
	for _, batch := range sfapi.Chunk(ids, DefaultBatchSize) {
		records, err := env.query(ctx, "", sfapi.Query{
			Object:  string(kind),
			Fields:  []string{"Id", "Name", field},
			Filter:  sfapi.Filter{sfapi.In("Id", batch...)},
			Tooling: true,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, toCodeBodies(kind, field, records)...)
	}
	return out, nil
}

func toCodeBodies(kind metadata.Kind, field string, records []sfapi.Record) []CodeBody {
	out := make([]CodeBody, 0, len(records))
	for _, r := range records {
		out = append(out, CodeBody{
			ID:   r.String("Id"),
			Name: r.String("Name"),
			Kind: kind,
			Code: r.String(field),
		})
	}
	return out
}
