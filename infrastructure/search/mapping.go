// Package search implements the secondary index tier on OpenSearch:
// per-schema index provisioning, filter translation to the query DSL
// and bulk upserts carrying the retention timestamp.
package search

import (
	"fmt"

	"uerp-backend/domain/schema"
)

// expireField is the internal retention timestamp. It is indexed for
// the eviction job but excluded from every response source.
const expireField = "_expireAt"

// buildMappings renders the index mapping properties for a schema's
// field list. Registration fails on a field with no mapping.
func buildMappings(fields []schema.Field) (map[string]any, error) {
	properties := map[string]any{}
	for _, field := range fields {
		prop, err := buildProperty(field, false)
		if err != nil {
			return nil, err
		}
		properties[field.Name] = prop
	}
	properties[expireField] = map[string]any{"type": "long"}
	return properties, nil
}

func buildProperty(field schema.Field, inList bool) (map[string]any, error) {
	switch field.Kind {
	case schema.KindString:
		// Scalar lists index their elements as keywords.
		if field.Keyword || inList {
			return map[string]any{"type": "keyword"}, nil
		}
		return map[string]any{"type": "text"}, nil
	case schema.KindInt:
		return map[string]any{"type": "long"}, nil
	case schema.KindFloat:
		return map[string]any{"type": "double"}, nil
	case schema.KindBool:
		return map[string]any{"type": "boolean"}, nil
	case schema.KindUUID:
		return map[string]any{"type": "keyword"}, nil
	case schema.KindTime:
		return map[string]any{"type": "date"}, nil
	case schema.KindObject:
		// Open shapes (no declared properties) are stored, not indexed,
		// so arbitrary keys cannot explode the mapping.
		if len(field.Nested) == 0 {
			return map[string]any{"type": "object", "enabled": false}, nil
		}
		properties := map[string]any{}
		for _, nested := range field.Nested {
			prop, err := buildProperty(nested, false)
			if err != nil {
				return nil, err
			}
			properties[nested.Name] = prop
		}
		if inList {
			return map[string]any{"type": "nested", "properties": properties}, nil
		}
		return map[string]any{"properties": properties}, nil
	case schema.KindList:
		if field.Elem == nil {
			return nil, fmt.Errorf("list field %q has no element shape", field.Name)
		}
		return buildProperty(*field.Elem, true)
	default:
		return nil, fmt.Errorf("field %q has no search mapping", field.Name)
	}
}
