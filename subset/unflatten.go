package subset

import (
	"strings"

	"github.com/syssam/relkit/query"
)

// aliasNode is the join-alias tree of a select list. "department" and
// "department__company" produce {department: {company: {}}}.
type aliasNode map[string]aliasNode

func aliasTree(joins []Join) aliasNode {
	root := aliasNode{}
	for _, j := range joins {
		n := root
		for _, seg := range strings.Split(j.As, Sep) {
			child, ok := n[seg]
			if !ok {
				child = aliasNode{}
				n[seg] = child
			}
			n = child
		}
	}
	return root
}

// unflatten nests the alias-prefixed keys of row along tree. Only prefixes
// declared in tree are split, so plain columns containing the separator are
// kept as is. A nested object whose values are all NULL, as produced by an
// outer join that matched nothing, becomes nil.
func unflatten(row query.Row, tree aliasNode) query.Row {
	if len(tree) == 0 {
		return row
	}
	out := make(query.Row, len(row))
	var nested map[string]query.Row
	for k, v := range row {
		head, rest, ok := strings.Cut(k, Sep)
		if _, alias := tree[head]; !ok || !alias || rest == "" {
			out[k] = v
			continue
		}
		if nested == nil {
			nested = make(map[string]query.Row)
		}
		g := nested[head]
		if g == nil {
			g = make(query.Row)
			nested[head] = g
		}
		g[rest] = v
	}
	for alias, g := range nested {
		g = unflatten(g, tree[alias])
		if allNil(g) {
			out[alias] = nil
		} else {
			out[alias] = g
		}
	}
	return out
}

func allNil(r query.Row) bool {
	for _, v := range r {
		if v != nil {
			return false
		}
	}
	return true
}
