package subset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"

	"github.com/syssam/relkit"
	"github.com/syssam/relkit/query"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("subset: reading config: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Load decodes and validates a YAML configuration. Unknown keys are rejected.
func Load(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("subset: decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills in defaults and checks every entity and subset. Errors are
// reported as *relkit.ConfigError.
func (c *Config) Validate() error {
	if len(c.Entities) == 0 {
		return relkit.NewConfigError("", "", "no entities declared")
	}
	for _, name := range sortedKeys(c.Entities) {
		e := c.Entities[name]
		if e == nil {
			return relkit.NewConfigError(name, "", "empty entity")
		}
		e.Name = name
		if err := e.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Entity) validate() error {
	if e.Table == "" {
		e.Table = inflect.Pluralize(e.Name)
	}
	if e.ID == "" {
		e.ID = "id"
	}
	if e.DefaultNum <= 0 {
		e.DefaultNum = DefaultNum
	}
	for _, f := range append(slices.Clone(e.Search), e.Filters...) {
		if !identRe.MatchString(f) {
			return relkit.NewConfigError(e.Name, "", "invalid column name %q", f)
		}
	}
	if e.DefaultSearch != "" && !slices.Contains(e.Search, e.DefaultSearch) {
		return relkit.NewConfigError(e.Name, "", "default_search %q is not listed in search", e.DefaultSearch)
	}
	if e.DefaultOrder != "" {
		if _, _, err := parseOrder(e.DefaultOrder); err != nil {
			return relkit.NewConfigError(e.Name, "", "default_order: %v", err)
		}
	}
	if len(e.Subsets) == 0 {
		return relkit.NewConfigError(e.Name, "", "no subsets declared")
	}
	for _, name := range sortedKeys(e.Subsets) {
		s := e.Subsets[name]
		if s == nil {
			return relkit.NewConfigError(e.Name, name, "empty subset")
		}
		v := &validator{entity: e.Name, subset: name}
		if err := v.spec(e, s); err != nil {
			return err
		}
	}
	return nil
}

type validator struct {
	entity, subset string
}

func (v *validator) errorf(format string, args ...any) error {
	return relkit.NewConfigError(v.entity, v.subset, format, args...)
}

// scope holds the names visible while validating one select list: the source
// table, the declared join aliases and the result keys.
type scope struct {
	table   string
	id      string
	aliases map[string]bool
	keys    map[string]bool
}

func newScope(table, id string) *scope {
	return &scope{table: table, id: id, aliases: map[string]bool{}, keys: map[string]bool{id: true}}
}

// aliasOf returns the join alias whose nested object holds key, or "" when
// key stays at the top level of a result row.
func (sc *scope) aliasOf(key string) string {
	head, _, ok := strings.Cut(key, Sep)
	if !ok || !sc.aliases[head] {
		return ""
	}
	return head
}

func (v *validator) spec(e *Entity, s *Spec) error {
	sc := newScope(e.Table, e.ID)
	if err := v.joins(sc, s.Joins, ""); err != nil {
		return err
	}
	if err := v.columns(sc, s.Select, ""); err != nil {
		return err
	}
	for _, name := range s.Virtual {
		if name == "" || sc.keys[name] || sc.aliases[name] {
			return v.errorf("virtual field %q collides with a selected field", name)
		}
		sc.keys[name] = true
	}
	s.tree = aliasTree(s.Joins)
	return v.loaders(sc, s.Loaders, "")
}

func (v *validator) joins(sc *scope, joins []Join, where string) error {
	for i := range joins {
		j := &joins[i]
		if j.As == "" {
			return v.errorf("%sjoin on %q: missing alias", where, j.Table)
		}
		segs := strings.Split(j.As, Sep)
		for _, seg := range segs {
			if !identRe.MatchString(seg) {
				return v.errorf("%sjoin %q: invalid alias", where, j.As)
			}
		}
		if sc.aliases[j.As] || j.As == sc.table {
			return v.errorf("%sduplicate alias %q", where, j.As)
		}
		if parent := strings.Join(segs[:len(segs)-1], Sep); parent != "" && !sc.aliases[parent] {
			return v.errorf("%sjoin %q: parent alias %q must be declared before it", where, j.As, parent)
		}
		if j.Table == "" {
			return v.errorf("%sjoin %q: missing table", where, j.As)
		}
		switch j.Kind {
		case "":
			j.Kind = Inner
		case Inner, Outer:
		default:
			return v.errorf("%sjoin %q: unknown kind %q", where, j.As, j.Kind)
		}
		if j.From == "" || j.To == "" {
			return v.errorf("%sjoin %q: from and to are required", where, j.As)
		}
		if alias, _, ok := strings.Cut(j.From, "."); ok && alias != sc.table && !sc.aliases[alias] {
			return v.errorf("%sjoin %q: from references unknown alias %q", where, j.As, alias)
		}
		sc.aliases[j.As] = true
		if alias, _, ok := strings.Cut(j.To, "."); ok && alias != j.As && alias != sc.table && !sc.aliases[alias] {
			return v.errorf("%sjoin %q: to references unknown alias %q", where, j.As, alias)
		}
	}
	return nil
}

func (v *validator) columns(sc *scope, cols []Column, where string) error {
	for _, c := range cols {
		switch {
		case c.Expr != "":
			if c.As == "" {
				return v.errorf("%sexpression %q: missing alias", where, c.Expr)
			}
			if _, err := query.ParseKind(c.Type); err != nil {
				return v.errorf("%sexpression %q: %v", where, c.As, err)
			}
		case c.Name == "":
			return v.errorf("%sempty select item", where)
		case c.Type != "":
			return v.errorf("%scolumn %q: type is only allowed on expressions", where, c.Name)
		default:
			if alias, _, ok := strings.Cut(c.Name, "."); ok && !sc.aliases[alias] {
				return v.errorf("%scolumn %q references unknown alias %q", where, c.Name, alias)
			}
		}
		key := c.Key()
		if sc.aliases[key] {
			return v.errorf("%sselected field %q collides with a join alias", where, key)
		}
		if sc.keys[key] {
			// The id is always selected, so listing it again is allowed.
			if c.Name == sc.id && c.As == "" {
				continue
			}
			return v.errorf("%sduplicate selected field %q", where, key)
		}
		sc.keys[key] = true
	}
	return nil
}

func (v *validator) loaders(parent *scope, loaders []Loader, path string) error {
	for i := range loaders {
		l := &loaders[i]
		if !identRe.MatchString(l.As) || strings.Contains(l.As, Sep) {
			return v.errorf("%sloader %q: invalid alias", path, l.As)
		}
		if parent.keys[l.As] || parent.aliases[l.As] {
			return v.errorf("%sduplicate alias %q", path, l.As)
		}
		parent.keys[l.As] = true
		where := fmt.Sprintf("%sloader %q: ", path, l.As)
		if l.Table == "" {
			return v.errorf("%smissing table", where)
		}
		if l.ID == "" {
			l.ID = "id"
		}
		mj := &l.ManyJoin
		if mj.From == "" {
			mj.From = parent.id
		}
		if !parent.keys[mj.From] {
			return v.errorf("%sparent key %q is not selected by the parent", where, mj.From)
		}
		if alias := parent.aliasOf(mj.From); alias != "" {
			return v.errorf("%sparent key %q is nested under join alias %q; loaders key on top-level fields", where, mj.From, alias)
		}
		if th := mj.Through; th != nil {
			if th.Table == "" || th.From == "" || th.To == "" {
				return v.errorf("%smalformed through: table, from and to are required", where)
			}
		} else if mj.To == "" {
			return v.errorf("%smany_join.to is required without through", where)
		}
		if l.OrderBy != "" {
			if _, _, err := parseOrder(l.OrderBy); err != nil {
				return v.errorf("%sorder_by: %v", where, err)
			}
		}
		sc := newScope(l.Table, l.ID)
		if th := mj.Through; th != nil {
			sc.aliases[th.Table] = true
		}
		if err := v.joins(sc, l.OneJoins, where); err != nil {
			return err
		}
		if err := v.columns(sc, l.Select, where); err != nil {
			return err
		}
		l.tree = aliasTree(l.OneJoins)
		if err := v.loaders(sc, l.Loaders, path+l.As+"."); err != nil {
			return err
		}
	}
	return nil
}

// parseOrder parses "<field>-<direction>", splitting on the first hyphen. A
// missing direction means ascending.
func parseOrder(s string) (string, query.Direction, error) {
	field, dir, _ := strings.Cut(s, "-")
	if !identRe.MatchString(field) {
		return "", "", fmt.Errorf("invalid order field %q", field)
	}
	if dir == "" {
		return field, query.Asc, nil
	}
	d, err := query.ParseDirection(dir)
	if err != nil {
		return "", "", fmt.Errorf("invalid order direction %q", dir)
	}
	return field, d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
