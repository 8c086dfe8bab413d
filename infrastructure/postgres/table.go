// Package postgres implements the durable tier on PostgreSQL. Each
// schema maps to one table named by its dref; compound fields are
// stored as JSON text columns.
package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"uerp-backend/domain/schema"
	"uerp-backend/pkg/strcase"
)

// column is one table column derived from a schema field.
type column struct {
	field schema.Field
	name  string
}

// tableState is the per-schema precomputed state stashed in the
// database option bag.
type tableState struct {
	table   string
	columns []column
	byName  map[string]column
}

// buildTable derives the column layout of a schema. Column order
// follows the deterministic field order, id first.
func buildTable(info *schema.Info) (*tableState, error) {
	state := &tableState{
		table:  info.DRef,
		byName: map[string]column{},
	}
	for _, field := range info.Fields {
		col := column{field: field, name: strcase.Snake(field.Name)}
		if _, err := columnType(field); err != nil {
			return nil, err
		}
		state.columns = append(state.columns, col)
		state.byName[field.Name] = col
		state.byName[col.name] = col
	}
	return state, nil
}

// createDDL renders the CREATE TABLE statement.
func (s *tableState) createDDL() string {
	defs := make([]string, 0, len(s.columns))
	for _, col := range s.columns {
		typ, _ := columnType(col.field)
		defs = append(defs, col.name+" "+typ)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", s.table, strings.Join(defs, ","))
}

func (s *tableState) columnNames() []string {
	names := make([]string, 0, len(s.columns))
	for _, col := range s.columns {
		names = append(names, col.name)
	}
	return names
}

func columnType(field schema.Field) (string, error) {
	switch field.Kind {
	case schema.KindUUID:
		if field.IsID {
			return "TEXT PRIMARY KEY", nil
		}
		return "TEXT", nil
	case schema.KindString, schema.KindTime, schema.KindObject, schema.KindList:
		return "TEXT", nil
	case schema.KindInt:
		return "INTEGER", nil
	case schema.KindFloat:
		return "DOUBLE PRECISION", nil
	case schema.KindBool:
		return "BOOL", nil
	default:
		return "", fmt.Errorf("field %q has no database column type", field.Name)
	}
}

// dump converts a document value into its column argument.
func dump(field schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch field.Kind {
	case schema.KindObject, schema.KindList:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("field %q is not serializable: %w", field.Name, err)
		}
		return string(raw), nil
	case schema.KindString, schema.KindUUID, schema.KindTime:
		return fmt.Sprintf("%v", value), nil
	default:
		return value, nil
	}
}

// load converts a scanned column back into its document value.
func load(field schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch field.Kind {
	case schema.KindObject, schema.KindList:
		var text string
		switch v := value.(type) {
		case string:
			text = v
		case []byte:
			text = string(v)
		default:
			return nil, fmt.Errorf("field %q holds unexpected column type %T", field.Name, value)
		}
		var out any
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return nil, fmt.Errorf("field %q holds corrupt JSON: %w", field.Name, err)
		}
		return out, nil
	case schema.KindString, schema.KindUUID, schema.KindTime:
		if raw, ok := value.([]byte); ok {
			return string(raw), nil
		}
		return value, nil
	default:
		return value, nil
	}
}
