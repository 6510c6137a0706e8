package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/syssam/relkit/query"
	"github.com/syssam/relkit/subset"
)

// listFlags are the ListParams flags of explain and resolve.
type listFlags struct {
	num          int
	page         int
	search       string
	keyword      string
	orderBy      string
	id           string
	withoutCount bool
	filters      map[string]string
}

func (f *listFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.num, "num", 0, "page size (default: entity default_num)")
	fs.IntVar(&f.page, "page", 1, "page number, starting at 1")
	fs.StringVar(&f.search, "search", "", "column searched by --keyword")
	fs.StringVar(&f.keyword, "keyword", "", "case-insensitive substring to search")
	fs.StringVar(&f.orderBy, "order-by", "", "order as <field>-<asc|desc>")
	fs.StringVar(&f.id, "id", "", "restrict to one id, or several separated by commas")
	fs.BoolVar(&f.withoutCount, "without-count", false, "skip the total count")
	fs.StringToStringVar(&f.filters, "filter", nil, "equality filter as column=value, repeatable")
}

func (f *listFlags) params() subset.ListParams {
	p := subset.ListParams{
		Num:          f.num,
		Page:         f.page,
		Search:       f.search,
		Keyword:      f.keyword,
		OrderBy:      f.orderBy,
		WithoutCount: f.withoutCount,
	}
	if f.id != "" {
		if ids := strings.Split(f.id, ","); len(ids) > 1 {
			vs := make([]any, len(ids))
			for i, id := range ids {
				vs[i] = parseValue(strings.TrimSpace(id))
			}
			p.ID = vs
		} else {
			p.ID = parseValue(f.id)
		}
	}
	if len(f.filters) > 0 {
		p.Filters = make(map[string]any, len(f.filters))
		for k, v := range f.filters {
			p.Filters[k] = parseValue(v)
		}
	}
	return p
}

// parseValue turns integer literals into int64 and leaves other values as
// strings.
func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// virtualStubs registers a hook leaving the field unset for every virtual
// field of cfg. Hooks are Go code, so the command line cannot run them.
func virtualStubs(cfg *subset.Config) subset.Virtuals {
	v := subset.Virtuals{}
	noop := func(context.Context, []query.Row) error { return nil }
	for en, e := range cfg.Entities {
		for sn, s := range e.Subsets {
			for _, field := range s.Virtual {
				v.Register(en, sn, field, noop)
			}
		}
	}
	return v
}
