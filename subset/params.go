package subset

import (
	"maps"
	"slices"
	"strings"

	"github.com/syssam/relkit"
	"github.com/syssam/relkit/dialect/sql"
	"github.com/syssam/relkit/query"
)

// ListParams are the request parameters of a resolve call. Zero values are
// replaced by the entity defaults.
type ListParams struct {
	Num     int    `json:"num,omitempty"`
	Page    int    `json:"page,omitempty"`
	Search  string `json:"search,omitempty"`
	Keyword string `json:"keyword,omitempty"`
	// OrderBy is "<field>-<direction>", e.g. "created_at-desc".
	OrderBy string `json:"orderBy,omitempty"`
	// ID restricts the result to one id, or to several when it is a slice.
	ID           any  `json:"id,omitempty"`
	WithoutCount bool `json:"withoutCount,omitempty"`
	// Filters are equality filters on the columns the entity allows.
	Filters map[string]any `json:"filters,omitempty"`
}

func (p ListParams) merge(e *Entity) ListParams {
	if p.Num <= 0 {
		p.Num = e.DefaultNum
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Search == "" {
		p.Search = e.DefaultSearch
	}
	if p.OrderBy == "" {
		p.OrderBy = e.DefaultOrder
	}
	return p
}

func (p ListParams) validate(e *Entity, s *Spec) error {
	if p.Search != "" && !slices.Contains(e.Search, p.Search) {
		return relkit.NewBadRequestError("search", p.Search, "not an allowed search field")
	}
	if p.Keyword != "" && p.Search == "" {
		return relkit.NewBadRequestError("search", "", "keyword given without a search field")
	}
	if p.OrderBy != "" {
		field, _, err := parseOrder(p.OrderBy)
		if err != nil {
			return relkit.NewBadRequestError("orderBy", p.OrderBy, err.Error())
		}
		if !sortable(e, s, field) {
			return relkit.NewBadRequestError("orderBy", p.OrderBy, "not a sortable field")
		}
	}
	return nil
}

// sortable reports whether field is a column of the entity table a subset
// may be ordered by: the id, the search and filter columns, the field of the
// default order and the plain columns the subset selects.
func sortable(e *Entity, s *Spec, field string) bool {
	if field == e.ID || slices.Contains(e.Search, field) || slices.Contains(e.Filters, field) {
		return true
	}
	if def, _, _ := strings.Cut(e.DefaultOrder, "-"); def == field {
		return true
	}
	return slices.ContainsFunc(s.Select, func(c Column) bool {
		return c.Expr == "" && c.Name == field
	})
}

// FilterContext is passed to filter callbacks.
type FilterContext struct {
	Entity *Entity
	Subset string
	// Params are the merged and validated request parameters.
	Params ListParams
}

// Column qualifies a base column with the entity table.
func (fc FilterContext) Column(name string) string {
	return fc.Entity.Table + "." + name
}

// FilterFunc narrows the base query of a resolve call. It runs once per call,
// before counting and pagination, and may fail with a *relkit.BadRequestError.
type FilterFunc func(q query.Builder, fc FilterContext) (query.Builder, error)

// StandardFilter applies the id restriction, the keyword search on the
// requested search column and the allowed equality filters. It is used when
// Resolve is given a nil filter.
func StandardFilter(q query.Builder, fc FilterContext) (query.Builder, error) {
	p := fc.Params
	if p.ID != nil {
		q = q.Where(match(fc.Column(fc.Entity.ID), p.ID))
	}
	if p.Keyword != "" && p.Search != "" {
		q = q.Where(sql.ContainsFold(fc.Column(p.Search), p.Keyword))
	}
	for _, name := range slices.Sorted(maps.Keys(p.Filters)) {
		if !slices.Contains(fc.Entity.Filters, name) {
			return q, relkit.NewBadRequestError("filter", name, "not an allowed filter")
		}
		q = q.Where(match(fc.Column(name), p.Filters[name]))
	}
	return q, nil
}

// Chain runs filters in order. Nil filters are skipped.
func Chain(filters ...FilterFunc) FilterFunc {
	return func(q query.Builder, fc FilterContext) (query.Builder, error) {
		var err error
		for _, f := range filters {
			if f == nil {
				continue
			}
			if q, err = f(q, fc); err != nil {
				return q, err
			}
		}
		return q, nil
	}
}

func match(column string, v any) *sql.Predicate {
	switch v := v.(type) {
	case nil:
		return sql.IsNull(column)
	case []any:
		return sql.In(column, v...)
	case []string:
		return sql.In(column, anySlice(v)...)
	case []int:
		return sql.In(column, anySlice(v)...)
	case []int64:
		return sql.In(column, anySlice(v)...)
	default:
		return sql.EQ(column, v)
	}
}

func anySlice[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
