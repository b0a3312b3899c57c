// Package metadata describes the tables, columns and option sets a formula
// can reference.
//
// The compiler consumes metadata through the Provider interface; Catalog is
// the in-memory implementation, usually filled from CUE schema files by
// LoadDir or CompileString.
package metadata

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/fxsql/internal/ir"
)

// Provider looks up schema metadata by logical name.
type Provider interface {
	Table(name string) (*Table, bool)
	OptionSet(name string) (*OptionSet, bool)
}

// Table is a row-bearing data source.
type Table struct {
	Name       string // Logical name, e.g. "account"
	Physical   string // Physical table name, e.g. "AccountBase"
	PrimaryKey string // Logical name of the key column
	Columns    map[string]*Column
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.Columns[name]
	return c, ok
}

// ColumnNames returns the logical column names in sorted order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for n := range t.Columns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Column is a single typed column.
//
// Lookup columns have Type RecordType(Target). Min and Max are the declared
// numeric bounds and are nil when the column is unbounded or not numeric.
type Column struct {
	Name     string
	Physical string
	Table    string
	Type     ir.FormulaType
	Target   string
	Min      *apd.Decimal
	Max      *apd.Decimal
}

// IsLookup reports whether the column navigates to another table.
func (c *Column) IsLookup() bool {
	return c.Target != ""
}

// WithinRange reports whether the column's declared bounds lie inside
// [lo, hi]. Unbounded columns never do.
func (c *Column) WithinRange(lo, hi *apd.Decimal) bool {
	if c.Min == nil || c.Max == nil {
		return false
	}
	return c.Min.Cmp(lo) >= 0 && c.Max.Cmp(hi) <= 0
}

// OptionSet is a closed set of named integer choices.
type OptionSet struct {
	Name    string
	Options map[string]int64
}

// Lookup returns the value of the named option.
func (o *OptionSet) Lookup(name string) (int64, bool) {
	v, ok := o.Options[name]
	return v, ok
}

// Catalog is an in-memory Provider.
type Catalog struct {
	tables     map[string]*Table
	optionSets map[string]*OptionSet
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tables:     make(map[string]*Table),
		optionSets: make(map[string]*OptionSet),
	}
}

// AddTable registers t, filling defaulted physical names.
func (c *Catalog) AddTable(t *Table) error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if _, dup := c.tables[t.Name]; dup {
		return fmt.Errorf("duplicate table %q", t.Name)
	}
	if t.Physical == "" {
		t.Physical = t.Name
	}
	if t.Columns == nil {
		t.Columns = make(map[string]*Column)
	}
	for name, col := range t.Columns {
		col.Name = name
		col.Table = t.Name
		if col.Physical == "" {
			col.Physical = name
		}
	}
	if t.PrimaryKey != "" {
		if _, ok := t.Columns[t.PrimaryKey]; !ok {
			return fmt.Errorf("table %q: primary key %q is not a column", t.Name, t.PrimaryKey)
		}
	}
	c.tables[t.Name] = t
	return nil
}

// AddOptionSet registers o.
func (c *Catalog) AddOptionSet(o *OptionSet) error {
	if o.Name == "" {
		return fmt.Errorf("option set name is required")
	}
	if _, dup := c.optionSets[o.Name]; dup {
		return fmt.Errorf("duplicate option set %q", o.Name)
	}
	c.optionSets[o.Name] = o
	return nil
}

// Table implements Provider.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// OptionSet implements Provider.
func (c *Catalog) OptionSet(name string) (*OptionSet, bool) {
	o, ok := c.optionSets[name]
	return o, ok
}

// Tables returns the logical names of all tables in sorted order.
func (c *Catalog) Tables() []string {
	names := make([]string, 0, len(c.tables))
	for n := range c.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks cross references: lookup targets and option sets must
// exist.
func (c *Catalog) Validate() error {
	for _, tname := range c.Tables() {
		t := c.tables[tname]
		for _, cname := range t.ColumnNames() {
			col := t.Columns[cname]
			if col.IsLookup() {
				if _, ok := c.tables[col.Target]; !ok {
					return fmt.Errorf("%s.%s: lookup target %q is not a table", tname, cname, col.Target)
				}
			}
			if col.Type.Kind == ir.KindOptionSet {
				if _, ok := c.optionSets[col.Type.OptionSet]; !ok {
					return fmt.Errorf("%s.%s: option set %q is not defined", tname, cname, col.Type.OptionSet)
				}
			}
		}
	}
	return nil
}
