package rest

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"uerp-backend/domain/filter"
	"uerp-backend/domain/schema"
	apperrors "uerp-backend/pkg/errors"
)

// Reserved query parameters carry the '$' prefix; anything else is an
// equality filter on the named field.
const (
	paramFields  = "$f"
	paramFilter  = "$filter"
	paramOrderBy = "$orderby"
	paramOrder   = "$order"
	paramSize    = "$size"
	paramSkip    = "$skip"
	paramArchive = "$archive"
	paramForce   = "$force"
)

// parseQuery builds the tier query descriptor from the request
// parameters. Malformed values reject the request before any tier is
// touched.
func parseQuery(values url.Values) (*schema.Query, error) {
	query := &schema.Query{
		Fields:  values[paramFields],
		OrderBy: values.Get(paramOrderBy),
		Order:   values.Get(paramOrder),
	}

	switch query.Order {
	case "", "asc", "desc":
	default:
		return nil, apperrors.NewBadRequest("order must be asc or desc")
	}
	if query.OrderBy != "" && query.Order == "" {
		query.Order = "desc"
	}

	var err error
	if query.Size, err = intParam(values, paramSize); err != nil {
		return nil, err
	}
	if query.Skip, err = intParam(values, paramSkip); err != nil {
		return nil, err
	}

	if raw := values.Get(paramFilter); raw != "" {
		node, err := filter.Parse(raw)
		if err != nil {
			return nil, err
		}
		query.Filter = node
	}

	// Plain parameters become equality clauses, in a stable order.
	names := make([]string, 0, len(values))
	for name := range values {
		if !strings.HasPrefix(name, "$") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range values[name] {
			query = query.WithFilter(filter.FieldEquals(name, value))
		}
	}
	return query, nil
}

func intParam(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewBadRequest(name + " must be a non-negative integer")
	}
	return n, nil
}

// flagParam reads a boolean reserved parameter where presence with an
// empty value means true.
func flagParam(values url.Values, name string) bool {
	raw, ok := values[name]
	if !ok {
		return false
	}
	if len(raw) == 0 || raw[0] == "" {
		return true
	}
	return raw[0] != "false"
}
