package subset

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/syssam/relkit"
	"github.com/syssam/relkit/dialect/sql"
	"github.com/syssam/relkit/query"
)

// VirtualFunc computes a virtual field on the rows of a page. It runs after
// joins are nested and loaders are attached, and sets the field on each row.
type VirtualFunc func(ctx context.Context, rows []query.Row) error

// VirtualKey identifies a virtual field hook.
type VirtualKey struct {
	Entity, Subset, Field string
}

// Virtuals is the registry of virtual field hooks.
type Virtuals map[VirtualKey]VirtualFunc

// Register adds a hook and returns the registry.
func (v Virtuals) Register(entity, subset, field string, fn VirtualFunc) Virtuals {
	v[VirtualKey{Entity: entity, Subset: subset, Field: field}] = fn
	return v
}

// Result is the envelope returned by Resolve.
type Result struct {
	Rows []query.Row `json:"rows"`
	// Total is nil when the count was skipped.
	Total *int `json:"total,omitempty"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithConcurrency sets how many loaders of the same depth may run at once.
// Loaders always run one at a time inside a transaction.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithVirtuals registers virtual field hooks.
func WithVirtuals(v Virtuals) Option {
	return func(r *Resolver) {
		for k, fn := range v {
			r.virtuals[k] = fn
		}
	}
}

// Resolver executes subsets against a database.
type Resolver struct {
	db          *query.DB
	cfg         *Config
	logger      *slog.Logger
	concurrency int
	virtuals    Virtuals
}

// NewResolver validates cfg and returns a resolver reading through db. Every
// declared virtual field must have a hook, and every hook must belong to a
// declared virtual field.
func NewResolver(db *query.DB, cfg *Config, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		db:          db,
		cfg:         cfg,
		logger:      slog.Default(),
		concurrency: 1,
		virtuals:    Virtuals{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	declared := make(map[VirtualKey]bool)
	for _, en := range sortedKeys(cfg.Entities) {
		e := cfg.Entities[en]
		for _, sn := range sortedKeys(e.Subsets) {
			for _, f := range e.Subsets[sn].Virtual {
				k := VirtualKey{Entity: en, Subset: sn, Field: f}
				if r.virtuals[k] == nil {
					return nil, relkit.NewConfigError(en, sn, "virtual field %q has no registered hook", f)
				}
				declared[k] = true
			}
		}
	}
	for k := range r.virtuals {
		if !declared[k] {
			return nil, relkit.NewConfigError(k.Entity, k.Subset, "hook registered for undeclared virtual field %q", k.Field)
		}
	}
	return r, nil
}

// Config returns the resolver configuration.
func (r *Resolver) Config() *Config { return r.cfg }

// WithDB returns a copy of the resolver reading through db, typically a
// transaction-bound DB.
func (r *Resolver) WithDB(db *query.DB) *Resolver {
	c := *r
	c.db = db
	return &c
}

// Resolve reads one page of entity through the named subset. A nil filter
// means StandardFilter.
func (r *Resolver) Resolve(ctx context.Context, entity, subset string, params ListParams, filter FilterFunc) (*Result, error) {
	e, s, err := r.cfg.Spec(entity, subset)
	if err != nil {
		return nil, err
	}
	p := params.merge(e)
	q, err := r.base(e, subset, s, p, filter)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	if !p.WithoutCount {
		n, err := q.Count(ctx)
		if err != nil {
			return nil, err
		}
		res.Total = &n
	}
	rows, err := paginate(q, p).All(ctx)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		rows[i] = unflatten(row, s.tree)
	}
	if err := r.load(ctx, s.Loaders, rows); err != nil {
		return nil, err
	}
	for _, f := range s.Virtual {
		fn := r.virtuals[VirtualKey{Entity: entity, Subset: subset, Field: f}]
		if err := fn(ctx, rows); err != nil {
			return nil, err
		}
	}
	if rows == nil {
		rows = []query.Row{}
	}
	res.Rows = rows
	r.logger.DebugContext(ctx, "subset resolved",
		"entity", entity, "subset", subset, "rows", len(rows), "page", p.Page)
	return res, nil
}

// Find returns the row with the given id, or a *relkit.NotFoundError.
func (r *Resolver) Find(ctx context.Context, entity, subset string, id any) (query.Row, error) {
	res, err := r.Resolve(ctx, entity, subset, ListParams{ID: id, Num: 1, WithoutCount: true}, nil)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, relkit.NewNotFoundErrorWithID(entity, id)
	}
	return res.Rows[0], nil
}

// base builds the filtered and ordered, but not paginated, base query.
func (r *Resolver) base(e *Entity, subset string, s *Spec, p ListParams, filter FilterFunc) (query.Builder, error) {
	if err := p.validate(e, s); err != nil {
		return query.Builder{}, err
	}
	q := r.db.Table(e.Table).Select(selections(e.Table, e.ID, s.Select)...)
	q = applyJoins(q, e.Table, s.Joins)
	if filter == nil {
		filter = StandardFilter
	}
	q, err := filter(q, FilterContext{Entity: e, Subset: subset, Params: p})
	if err != nil {
		return query.Builder{}, err
	}
	if p.OrderBy != "" {
		field, dir, _ := parseOrder(p.OrderBy)
		q = q.OrderBy(e.Table+"."+field, dir)
	} else {
		q = q.OrderBy(e.Table+"."+e.ID, query.Asc)
	}
	return q, q.Err()
}

func paginate(q query.Builder, p ListParams) query.Builder {
	return q.Limit(p.Num).Offset((p.Page - 1) * p.Num)
}

// selections returns the projection of a select list on table, led by the id.
func selections(table, id string, cols []Column) []query.Selection {
	items := []query.Selection{query.ColAs(table+"."+id, id)}
	for _, c := range cols {
		switch {
		case c.Expr != "":
			k, _ := query.ParseKind(c.Type)
			items = append(items, query.Raw(c.Expr, k).As(c.As))
		case strings.Contains(c.Name, "."):
			items = append(items, query.ColAs(c.Name, c.Key()))
		case c.Name == id && c.As == "":
			// Already selected.
		default:
			items = append(items, query.ColAs(table+"."+c.Name, c.Key()))
		}
	}
	return items
}

func applyJoins(q query.Builder, table string, joins []Join) query.Builder {
	for _, j := range joins {
		from, to := j.From, j.To
		if !strings.Contains(from, ".") {
			from = table + "." + from
		}
		if !strings.Contains(to, ".") {
			to = j.As + "." + to
		}
		t := sql.Table(j.Table).As(j.As)
		if j.Kind == Outer {
			q = q.LeftJoin(t, from, to)
		} else {
			q = q.Join(t, from, to)
		}
	}
	return q
}

// Statement is a rendered statement.
type Statement struct {
	Label string `json:"label"`
	Query string `json:"query"`
	Args  []any  `json:"args,omitempty"`
	// Debug is the statement with its arguments inlined.
	Debug string `json:"debug"`
}

// Plan lists the statements a resolve call would run. Loader statements are
// templates in which ":keys" stands for the batched parent keys.
type Plan struct {
	Count   *Statement  `json:"count,omitempty"`
	Select  Statement   `json:"select"`
	Loaders []Statement `json:"loaders,omitempty"`
}

// Explain renders the statements of a resolve call without executing them.
func (r *Resolver) Explain(entity, subset string, params ListParams, filter FilterFunc) (*Plan, error) {
	e, s, err := r.cfg.Spec(entity, subset)
	if err != nil {
		return nil, err
	}
	p := params.merge(e)
	q, err := r.base(e, subset, s, p, filter)
	if err != nil {
		return nil, err
	}
	plan := &Plan{}
	if !p.WithoutCount {
		cq, args := q.CountSelector().Query()
		plan.Count = r.statement("count", cq, args)
	}
	sq, args := paginate(q, p).Query()
	plan.Select = *r.statement("select", sq, args)
	keys := []any{sql.Raw(":keys")}
	var walk func(prefix string, loaders []Loader)
	walk = func(prefix string, loaders []Loader) {
		for i := range loaders {
			l := &loaders[i]
			lq, args := r.loaderQuery(l, keys).Query()
			plan.Loaders = append(plan.Loaders, *r.statement(prefix+l.As, lq, args))
			walk(prefix+l.As+".", l.Loaders)
		}
	}
	walk("", s.Loaders)
	return plan, nil
}

func (r *Resolver) statement(label, q string, args []any) *Statement {
	return &Statement{
		Label: label,
		Query: q,
		Args:  slices.Clip(args),
		Debug: query.Interpolate(r.db.Dialect(), q, args),
	}
}
