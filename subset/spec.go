package subset

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sep separates alias segments in namespaced aliases and result keys, as in
// "department__company" or "department__company__name".
const Sep = "__"

// DefaultNum is the page size used when neither the request nor the entity
// sets one.
const DefaultNum = 24

// Entity describes a table and the subsets (views) it can be read through.
type Entity struct {
	// Name is the entity key in the configuration.
	Name string `yaml:"-"`
	// Table defaults to the pluralized entity name.
	Table string `yaml:"table"`
	// ID is the primary key column. Defaults to "id".
	ID string `yaml:"id"`
	// Search lists the columns keyword search may run on.
	Search []string `yaml:"search"`
	// DefaultSearch is used when the request names no search column.
	DefaultSearch string `yaml:"default_search"`
	// DefaultOrder is a "<field>-<direction>" order used when the request has none.
	DefaultOrder string `yaml:"default_order"`
	// DefaultNum is the page size. Defaults to DefaultNum.
	DefaultNum int `yaml:"default_num"`
	// Filters lists the columns accepted in ListParams.Filters.
	Filters []string `yaml:"filters"`
	// Subsets maps subset names to specifications.
	Subsets map[string]*Spec `yaml:"subsets"`
}

// Spec is the declarative description of one subset.
type Spec struct {
	// Select lists the projected columns. The entity id is always selected.
	Select []Column `yaml:"select"`
	// Virtual lists fields computed by registered hooks after loading.
	Virtual []string `yaml:"virtual"`
	// Joins are single-row relations, applied in order.
	Joins []Join `yaml:"joins"`
	// Loaders are eager-loaded to-many relations.
	Loaders []Loader `yaml:"loaders"`

	tree aliasNode
}

// Column is a select item. In YAML it is either a scalar, "name" for a base
// column or "alias.name" for a joined one, or a mapping with an expression:
//
//	- name
//	- department.name
//	- {as: employee_count, expr: "(SELECT COUNT(*) FROM employees e WHERE e.company_id = companies.id)", type: int}
type Column struct {
	Name string `yaml:"name"`
	As   string `yaml:"as"`
	Expr string `yaml:"expr"`
	Type string `yaml:"type"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Column) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		c.Name = n.Value
		return nil
	}
	type plain Column
	return n.Decode((*plain)(c))
}

// Key returns the result key of the column.
func (c Column) Key() string {
	switch {
	case c.As != "":
		return c.As
	case strings.Contains(c.Name, "."):
		alias, col, _ := strings.Cut(c.Name, ".")
		return alias + Sep + col
	default:
		return c.Name
	}
}

// JoinKind is the kind of a single-row join.
type JoinKind string

// Join kinds.
const (
	Inner JoinKind = "inner"
	Outer JoinKind = "outer"
)

// Join is a single-row (belongs-to or one-to-one) join. From references the
// base table ("column") or an earlier alias ("alias.column"); To references
// the joined table ("column") or an earlier alias.
type Join struct {
	As    string   `yaml:"as"`
	Kind  JoinKind `yaml:"kind"`
	Table string   `yaml:"table"`
	From  string   `yaml:"from"`
	To    string   `yaml:"to"`
}

// Loader is an eager-loaded one-to-many or many-to-many relation. Its rows
// are attached to each parent under As.
type Loader struct {
	As    string `yaml:"as"`
	Table string `yaml:"table"`
	// ID is the loaded table primary key. Defaults to "id".
	ID       string   `yaml:"id"`
	ManyJoin ManyJoin `yaml:"many_join"`
	OneJoins []Join   `yaml:"one_joins"`
	Select   []Column `yaml:"select"`
	// OrderBy is a "<field>-<direction>" order on the loaded table. Defaults to
	// the loaded table id.
	OrderBy string   `yaml:"order_by"`
	Loaders []Loader `yaml:"loaders"`

	tree aliasNode
}

// ManyJoin links loaded rows to parent rows.
//
// Direct: the loaded table column To holds the parent key From.
//
// Through: the join table column Through.From holds the parent key From and
// Through.To holds the loaded table column To.
type ManyJoin struct {
	// From is the parent key field. Defaults to the parent id.
	From    string   `yaml:"from"`
	To      string   `yaml:"to"`
	Through *Through `yaml:"through"`
}

// Through is the intermediate table of a many-to-many relation.
type Through struct {
	Table string `yaml:"table"`
	From  string `yaml:"from"`
	To    string `yaml:"to"`
}

// Config is the root of a subset configuration file.
type Config struct {
	Entities map[string]*Entity `yaml:"entities"`
}

// Entity returns the named entity.
func (c *Config) Entity(name string) (*Entity, bool) {
	e, ok := c.Entities[name]
	return e, ok
}

// Spec returns the named subset of the named entity.
func (c *Config) Spec(entity, subset string) (*Entity, *Spec, error) {
	e, ok := c.Entities[entity]
	if !ok {
		return nil, nil, fmt.Errorf("subset: unknown entity %q", entity)
	}
	s, ok := e.Subsets[subset]
	if !ok {
		return nil, nil, fmt.Errorf("subset: unknown subset %q of entity %q", subset, entity)
	}
	return e, s, nil
}
