package schema

import "uerp-backend/domain/filter"

// Query is the tier-agnostic query descriptor built from the reserved
// request parameters and handed to the search and database drivers.
type Query struct {
	Fields  []string
	Filter  filter.Node
	OrderBy string
	Order   string
	Size    int
	Skip    int
}

// Projected reports whether the caller requested a field projection.
// Projected results never feed tier backfills.
func (q *Query) Projected() bool { return len(q.Fields) > 0 }

// Projection returns the effective field list with the identity fields
// re-included, or nil when no projection was requested.
func (q *Query) Projection() []string {
	if len(q.Fields) == 0 {
		return nil
	}
	fields := make([]string, 0, len(q.Fields)+3)
	have := map[string]bool{}
	for _, f := range append([]string{"id", "sref", "uref"}, q.Fields...) {
		if !have[f] {
			have[f] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// WithFilter returns a shallow copy with the given clause AND-combined
// onto the existing filter. Used for tenant scoping injection.
func (q *Query) WithFilter(clause filter.Node) *Query {
	out := *q
	out.Filter = filter.NewAnd(q.Filter, clause)
	return &out
}
