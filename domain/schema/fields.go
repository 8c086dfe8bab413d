package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a field for the tier shape builders.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindUUID
	KindTime
	KindObject
	KindList
)

// Field is one flattened field of an entity type. Objects carry their
// properties in Nested; lists carry their element shape in Elem.
type Field struct {
	Name    string
	Kind    Kind
	Keyword bool
	IsID    bool
	Elem    *Field
	Nested  []Field
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// FieldsOf flattens a struct type into its field list: embedded structs
// are inlined, names come from the json tag, and the `uerp` tag marks
// keyword and uuid fields. The result is sorted by name with "id"
// pinned first so derived column orders are stable. An unmappable field
// fails the build.
func FieldsOf(t reflect.Type) ([]Field, error) {
	fields, err := collectFields(t)
	if err != nil {
		return nil, err
	}
	sort.Slice(fields, func(a, b int) bool {
		if fields[a].IsID != fields[b].IsID {
			return fields[a].IsID
		}
		return fields[a].Name < fields[b].Name
	})
	return fields, nil
}

func collectFields(t reflect.Type) ([]Field, error) {
	var fields []Field
	for n := 0; n < t.NumField(); n++ {
		sf := t.Field(n)
		if sf.Anonymous {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				inner, err := collectFields(ft)
				if err != nil {
					return nil, err
				}
				fields = append(fields, inner...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		name := jsonName(sf)
		if name == "" {
			continue
		}
		field, err := buildField(name, sf.Type, sf.Tag.Get("uerp"))
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func buildField(name string, t reflect.Type, tag string) (Field, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	field := Field{Name: name, Keyword: tag == "keyword"}

	switch {
	case t == uuidType || tag == "uuid":
		field.Kind = KindUUID
		field.Keyword = true
		field.IsID = name == "id"
		return field, nil
	case t == timeType:
		field.Kind = KindTime
		return field, nil
	}

	switch t.Kind() {
	case reflect.String:
		field.Kind = KindString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.Kind = KindInt
	case reflect.Float32, reflect.Float64:
		field.Kind = KindFloat
	case reflect.Bool:
		field.Kind = KindBool
	case reflect.Struct:
		nested, err := collectFields(t)
		if err != nil {
			return Field{}, err
		}
		field.Kind = KindObject
		field.Nested = nested
	case reflect.Slice, reflect.Array:
		elem, err := buildField(name, t.Elem(), "")
		if err != nil {
			return Field{}, err
		}
		field.Kind = KindList
		field.Elem = &elem
	case reflect.Map:
		// String-keyed maps become free-form objects: stored whole, not
		// indexed per key. Nested stays nil to mark the open shape.
		if t.Key().Kind() != reflect.String {
			return Field{}, fmt.Errorf("field %q has non-string map keys", name)
		}
		if _, err := buildField(name, t.Elem(), ""); err != nil {
			return Field{}, err
		}
		field.Kind = KindObject
	default:
		return Field{}, fmt.Errorf("field %q has no backend mapping for type %s", name, t)
	}
	return field, nil
}

func jsonName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return sf.Name
}
