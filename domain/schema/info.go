package schema

import (
	"fmt"
	"reflect"
	"strings"

	"uerp-backend/pkg/strcase"
)

// Option is the per-tier option bag of a schema. Expire is a TTL in
// seconds, Shards and Replicas size the search index. State holds the
// driver's precomputed per-schema artifacts (column lists, mappings,
// translators); each driver stores and casts its own type there.
type Option struct {
	Expire   int
	Shards   int
	Replicas int
	State    any
}

// Config is the registration-time configuration of an entity type.
type Config struct {
	Minor    int
	CRUD     CRUD
	Layer    Layer
	AAA      AuthLevel
	Cache    *Option
	Search   *Option
	Database *Option
}

// Info is the registry record of an entity type. It is created once at
// registration and never mutated afterwards.
type Info struct {
	Provider string
	Service  string
	Major    int
	Minor    int
	Name     string
	Module   string
	SRef     string
	DRef     string
	Path     string
	Tags     []string

	CRUD  CRUD
	Layer Layer
	AAA   AuthLevel

	Cache    *Option
	Search   *Option
	Database *Option

	// Fields is the flattened field list of the entity type, in
	// deterministic order, built once so the tier drivers can derive
	// their shapes without re-reflecting.
	Fields []Field

	rtype reflect.Type
}

// NewInfo inspects the given model and builds its registry record.
// module is the dotted schema module path ("metric.alarm"); together
// with the type name it forms the sref. The model must be a struct
// pointer embedding Base.
func NewInfo(model Model, module string, cfg Config) (*Info, error) {
	rt := reflect.TypeOf(model)
	if rt == nil || rt.Kind() != reflect.Pointer || rt.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: %T is not a struct pointer", model)
	}
	elem := rt.Elem()
	if !embedsBase(elem) {
		return nil, fmt.Errorf("schema: %s does not embed schema.Base", elem)
	}
	fields, err := FieldsOf(elem)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", elem, err)
	}
	if cfg.Minor < 1 {
		cfg.Minor = 1
	}
	if cfg.CRUD == 0 {
		cfg.CRUD = CRUDAll
	}
	name := elem.Name()
	info := &Info{
		Minor:    cfg.Minor,
		Name:     name,
		Module:   module,
		SRef:     module + "." + name,
		Tags:     []string{moduleTag(module)},
		CRUD:     cfg.CRUD,
		Layer:    cfg.Layer,
		AAA:      cfg.AAA,
		Cache:    orEmpty(cfg.Cache),
		Search:   orEmpty(cfg.Search),
		Database: orEmpty(cfg.Database),
		Fields:   fields,
		rtype:    elem,
	}
	return info, nil
}

// Bind attaches the service identity, deriving the backend namespace
// id and the HTTP path prefix. Called once by the registry.
func (i *Info) Bind(provider, service string, major int) {
	i.Provider = provider
	i.Service = service
	i.Major = major
	lower := strings.ToLower(i.SRef)
	i.DRef = strcase.Snake(fmt.Sprintf("%s.%d.%d", lower, major, i.Minor))
	i.Path = fmt.Sprintf("/%s/%s", service, strcase.Path(fmt.Sprintf("v%d.%s", major, lower)))
}

// NewModel allocates a fresh zero instance of the entity type.
func (i *Info) NewModel() Model {
	return reflect.New(i.rtype).Interface().(Model)
}

// Type returns the entity struct type.
func (i *Info) Type() reflect.Type { return i.rtype }

func orEmpty(o *Option) *Option {
	if o == nil {
		return &Option{}
	}
	return o
}

// moduleTag turns "metric.alarm" into the UI grouping tag "Alarm Metric".
func moduleTag(module string) string {
	parts := strings.Split(strings.ToLower(module), ".")
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	return strcase.Title(strings.Join(parts, "."))
}

func embedsBase(t reflect.Type) bool {
	baseType := reflect.TypeOf(Base{})
	for n := 0; n < t.NumField(); n++ {
		f := t.Field(n)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft == baseType {
			return true
		}
		if ft.Kind() == reflect.Struct && embedsBase(ft) {
			return true
		}
	}
	return false
}
