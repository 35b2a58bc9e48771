package references

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/blastradius/pkg/cache"
	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

// customObjectPrefix is the key prefix of custom object ids
const customObjectPrefix = "01I"

var customSuffixes = []string{"__c", "__mdt", "__e", "__x", "__b", "__kav"}

// LoadCustomObjects returns the custom object inventory, querying it once per session
func LoadCustomObjects(ctx context.Context, env *Env) ([]cache.CustomObject, error) {
	if objects, ok := env.Cache.GetCustomObjects(); ok {
		return objects, nil
	}

	records, err := env.Services.Query.Query(ctx, sfapi.Query{
		Object:  "CustomObject",
		Fields:  []string{"Id", "DeveloperName", "NamespacePrefix"},
		Tooling: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query custom objects: %w", err)
	}

	objects := make([]cache.CustomObject, 0, len(records))
	for _, r := range records {
		objects = append(objects, cache.CustomObject{
			ID:       r.String("Id"),
			FullName: customName(r.String("NamespacePrefix"), r.String("DeveloperName"), "__c"),
		})
	}
	env.Cache.SetCustomObjects(objects)
	return objects, nil
}

func customName(namespace, developerName, suffix string) string {
	name := developerName
	if namespace != "" {
		name = namespace + "__" + name
	}
	for _, s := range customSuffixes {
		if strings.HasSuffix(lower(name), s) {
			return name
		}
	}
	return name + suffix
}

// IsCustomObjectID reports whether s looks like a custom object id
func IsCustomObjectID(s string) bool {
	if len(s) != 15 && len(s) != 18 {
		return false
	}
	if !strings.HasPrefix(s, customObjectPrefix) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdent(s[i]) || s[i] == '_' {
			return false
		}
	}
	return true
}

// ObjectName resolves a TableEnumOrId value: standard objects are reported by
// name, custom objects by id
func ObjectName(ctx context.Context, env *Env, tableEnumOrID string) (string, error) {
	if !IsCustomObjectID(tableEnumOrID) {
		return tableEnumOrID, nil
	}
	if _, err := LoadCustomObjects(ctx, env); err != nil {
		return "", err
	}
	if name, ok := env.Cache.ObjectName(tableEnumOrID); ok {
		return name, nil
	}
	return tableEnumOrID, nil
}

// FieldNames resolves custom field ids to qualified Object.Field names. Both the
// 15 and 18 character forms of every resolved id are keys of the result.
func FieldNames(ctx context.Context, env *Env, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	for _, batch := range sfapi.Chunk(ids, DefaultBatchSize) {
		records, err := env.Services.Query.Query(ctx, sfapi.Query{
			Object:  "CustomField",
			Fields:  []string{"Id", "DeveloperName", "NamespacePrefix", "TableEnumOrId"},
			Filter:  sfapi.Filter{sfapi.In("Id", batch...)},
			Tooling: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query custom fields: %w", err)
		}
		for _, r := range records {
			object, err := ObjectName(ctx, env, r.String("TableEnumOrId"))
			if err != nil {
				return nil, err
			}
			id := r.String("Id")
			name := object + "." + customName(r.String("NamespacePrefix"), r.String("DeveloperName"), "__c")
			names[id] = name
			if len(id) > 15 {
				names[id[:15]] = name
			}
		}
	}
	return names, nil
}

// fieldTarget is a field entry point split into its parts
type fieldTarget struct {
	object string
	field  string
	id     string
}

func (f fieldTarget) qualified() string {
	return f.object + "." + f.field
}

func parseFieldTarget(target metadata.EntryPoint) (fieldTarget, error) {
	object, field := metadata.SplitQualifiedName(target.Name)
	if object == "" || field == "" {
		return fieldTarget{}, fmt.Errorf("field %q is not qualified with its object", target.Name)
	}
	return fieldTarget{object: object, field: field, id: target.ID}, nil
}

func id15(id string) string {
	if len(id) > 15 {
		return id[:15]
	}
	return id
}
