package subset

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/relkit/contrib/dataloader"
	"github.com/syssam/relkit/dialect/sql"
	"github.com/syssam/relkit/query"
)

// parentKey is the hidden column carrying the parent key of a loaded row. It
// is removed once the rows are grouped.
const parentKey = "relkit_parent_key"

// loadTask is one loader applied to every parent row of one depth.
type loadTask struct {
	path    string
	loader  *Loader
	parents []query.Row
	keys    []any
}

func newTask(prefix string, l *Loader, parents []query.Row) loadTask {
	from := l.ManyJoin.From
	keys := dataloader.UniqueKeys(parents, func(r query.Row) any {
		return normalizeKey(r[from])
	}, func(k any) bool { return k != nil })
	return loadTask{path: prefix + l.As, loader: l, parents: parents, keys: keys}
}

// load attaches the rows of loaders to parents, breadth first. Every loader
// costs at most one query per depth regardless of the number of parents, and
// none when the parents carry no keys.
func (r *Resolver) load(ctx context.Context, loaders []Loader, parents []query.Row) error {
	tasks := make([]loadTask, 0, len(loaders))
	for i := range loaders {
		tasks = append(tasks, newTask("", &loaders[i], parents))
	}
	for depth := 0; len(tasks) > 0; depth++ {
		children, err := r.runDepth(ctx, tasks)
		if err != nil {
			return err
		}
		var next []loadTask
		for i, t := range tasks {
			for j := range t.loader.Loaders {
				next = append(next, newTask(t.path+".", &t.loader.Loaders[j], children[i]))
			}
		}
		r.logger.DebugContext(ctx, "subset loaders done", "depth", depth, "loaders", len(tasks))
		tasks = next
	}
	return nil
}

// runDepth fetches the rows of every task and attaches them to the parents.
// Fetches may run concurrently outside transactions; attaching is sequential
// and driven by parent keys only.
func (r *Resolver) runDepth(ctx context.Context, tasks []loadTask) ([][]query.Row, error) {
	children := make([][]query.Row, len(tasks))
	if r.concurrency <= 1 || len(tasks) == 1 || r.db.InTx() {
		for i, t := range tasks {
			rows, err := r.fetch(ctx, t)
			if err != nil {
				return nil, err
			}
			children[i] = rows
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for i, t := range tasks {
			g.Go(func() error {
				rows, err := r.fetch(gctx, t)
				children[i] = rows
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	for i, t := range tasks {
		attach(t, children[i])
	}
	return children, nil
}

func (r *Resolver) fetch(ctx context.Context, t loadTask) ([]query.Row, error) {
	if len(t.keys) == 0 {
		return nil, nil
	}
	rows, err := r.loaderQuery(t.loader, t.keys).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("subset: loader %q: %w", t.path, err)
	}
	for i, row := range rows {
		rows[i] = unflatten(row, t.loader.tree)
	}
	return rows, nil
}

// loaderQuery selects the rows of l belonging to keys. The parent key is
// projected as parentKey: the foreign key column for direct relations, the
// join table column for relations through a join table.
func (r *Resolver) loaderQuery(l *Loader, keys []any) query.Builder {
	q := r.db.Table(l.Table).Select(selections(l.Table, l.ID, l.Select)...)
	mj := l.ManyJoin
	var fk string
	if th := mj.Through; th != nil {
		to := mj.To
		if to == "" {
			to = l.ID
		}
		fk = th.Table + "." + th.From
		q = q.Join(sql.Table(th.Table), th.Table+"."+th.To, l.Table+"."+to)
	} else {
		fk = l.Table + "." + mj.To
	}
	q = applyJoins(q, l.Table, l.OneJoins).
		Select(query.ColAs(fk, parentKey)).
		Where(sql.In(fk, keys...))
	field, dir := l.ID, query.Asc
	if l.OrderBy != "" {
		field, dir, _ = parseOrder(l.OrderBy)
	}
	return q.OrderBy(l.Table+"."+field, dir)
}

func attach(t loadTask, children []query.Row) {
	groups := dataloader.GroupByKey(children, func(r query.Row) any {
		return normalizeKey(r[parentKey])
	})
	for _, row := range children {
		delete(row, parentKey)
	}
	byKey := make(map[any][]query.Row, len(t.keys))
	for i, set := range dataloader.OrderGroupsByKeys(t.keys, groups) {
		byKey[t.keys[i]] = set
	}
	from := t.loader.ManyJoin.From
	for _, p := range t.parents {
		set, ok := byKey[normalizeKey(p[from])]
		if !ok {
			set = []query.Row{}
		}
		p[t.loader.As] = set
	}
}

// normalizeKey maps key values of different driver types to one comparable
// representation, so that an int64 id and an int32 foreign key group together.
func normalizeKey(v any) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	default:
		return v
	}
}
