package enrich

import (
	"context"
	"regexp"

	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/references"
)

var (
	pillRead = metadata.Pill{
		Label:       "read",
		Type:        metadata.PillStandard,
		Description: "The field is read by this code",
	}
	pillWrite = metadata.Pill{
		Label:       "write",
		Type:        metadata.PillWarning,
		Description: "The field is assigned by this code",
	}
)

// writePattern matches an assignment to field, as a member or as a constructor
// argument, but not an equality comparison
func writePattern(field string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(field)
	return regexp.MustCompile(`(?i)(\.|[(,]\s*)` + quoted + `\s*[-+*/]?=([^=]|$)`)
}

// Access classifies how code uses a field: "write", "read" or "" when unused
func Access(code, object, field string) string {
	stripped := references.StripCodeComments(code)
	if writePattern(field).MatchString(stripped) {
		return "write"
	}
	if references.ReferencesField(references.Normalize(stripped), object, field) {
		return "read"
	}
	return ""
}

func enrichCode(ctx context.Context, env *references.Env, target metadata.EntryPoint, edges []metadata.Edge) error {
	object, field := metadata.SplitQualifiedName(target.Name)
	if object == "" {
		return nil
	}

	kinds := []metadata.Kind{metadata.KindApexClass, metadata.KindApexTrigger}
	positions := indexesOf(edges, kinds...)

	access := make(map[int]string)
	for _, kind := range kinds {
		idx := positions[kind]
		if len(idx) == 0 {
			continue
		}
		ids := make([]string, 0, len(idx))
		for _, i := range idx {
			ids = append(ids, edges[i].ID)
		}

		bodies, err := references.CodeBodiesByID(ctx, env, kind, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]string, len(bodies))
		for _, b := range bodies {
			byID[id15(b.ID)] = b.Code
		}

		for _, i := range idx {
			code, ok := byID[id15(edges[i].ID)]
			if !ok {
				continue
			}
			access[i] = Access(code, object, field)
		}
	}

	for i, a := range access {
		switch a {
		case "write":
			edges[i].AddPill(pillWrite)
		case "read":
			edges[i].AddPill(pillRead)
		}
	}
	return nil
}
