package metadata

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/fxsql/internal/ir"
)

// Schema files declare tables and option sets at the top level:
//
//	table: account: {
//		physical:    "AccountBase"
//		primary_key: "accountid"
//		columns: {
//			accountid: type: "guid"
//			revenue: {type: "decimal", min: -1000000, max: 1000000}
//			industrycode: {type: "optionset", option_set: "industry"}
//			primarycontactid: {type: "lookup", target: "contact"}
//		}
//	}
//	option_set: industry: {Accounting: 1, Consulting: 2}

// columnTypes maps schema type names to formula kinds.
var columnTypes = map[string]ir.Kind{
	"decimal":      ir.KindDecimal,
	"number":       ir.KindNumber,
	"string":       ir.KindString,
	"boolean":      ir.KindBoolean,
	"date":         ir.KindDate,
	"datetime":     ir.KindDateTime,
	"datetime_tzi": ir.KindDateTimeNoTimeZone,
	"guid":         ir.KindGuid,
	"optionset":    ir.KindOptionSet,
	"lookup":       ir.KindRecord,
}

// LoadError represents a schema error with source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadDir loads every CUE file of the package in dir into a catalog.
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("metadata directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("metadata path is not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	return Compile(value)
}

// CompileString compiles CUE source text into a catalog.
func CompileString(src string) (*Catalog, error) {
	value := cuecontext.New().CompileString(src, cue.Filename("schema.cue"))
	return Compile(value)
}

// Compile builds a catalog from a CUE value holding table and option_set
// structs, then validates cross references.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cat := NewCatalog()

	if sets := v.LookupPath(cue.ParsePath("option_set")); sets.Exists() {
		iter, err := sets.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			set, err := parseOptionSet(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			if err := cat.AddOptionSet(set); err != nil {
				return nil, &LoadError{Field: "option_set", Message: err.Error(), Pos: iter.Value().Pos()}
			}
		}
	}

	if tables := v.LookupPath(cue.ParsePath("table")); tables.Exists() {
		iter, err := tables.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			t, err := parseTable(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			if err := cat.AddTable(t); err != nil {
				return nil, &LoadError{Field: "table." + t.Name, Message: err.Error(), Pos: iter.Value().Pos()}
			}
		}
	}

	if err := cat.Validate(); err != nil {
		return nil, &LoadError{Field: "metadata", Message: err.Error(), Pos: v.Pos()}
	}
	return cat, nil
}

func parseOptionSet(name string, v cue.Value) (*OptionSet, error) {
	set := &OptionSet{Name: name, Options: make(map[string]int64)}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		set.Options[iter.Label()] = n
	}
	return set, nil
}

func parseTable(name string, v cue.Value) (*Table, error) {
	t := &Table{Name: name, Columns: make(map[string]*Column)}

	var err error
	if t.Physical, err = optionalString(v, "physical"); err != nil {
		return nil, err
	}
	if t.PrimaryKey, err = optionalString(v, "primary_key"); err != nil {
		return nil, err
	}

	cols := v.LookupPath(cue.ParsePath("columns"))
	if !cols.Exists() {
		return nil, &LoadError{
			Field:   "table." + name + ".columns",
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := cols.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		colName := iter.Label()
		col, err := parseColumn(name, colName, iter.Value())
		if err != nil {
			return nil, err
		}
		t.Columns[colName] = col
	}
	return t, nil
}

func parseColumn(table, name string, v cue.Value) (*Column, error) {
	field := fmt.Sprintf("table.%s.columns.%s", table, name)

	typeName, err := v.LookupPath(cue.ParsePath("type")).String()
	if err != nil {
		return nil, &LoadError{Field: field + ".type", Message: "type is required", Pos: v.Pos()}
	}
	kind, ok := columnTypes[typeName]
	if !ok {
		return nil, &LoadError{
			Field:   field + ".type",
			Message: fmt.Sprintf("unsupported column type %q", typeName),
			Pos:     v.Pos(),
		}
	}

	col := &Column{Type: ir.FormulaType{Kind: kind}}
	if col.Physical, err = optionalString(v, "physical"); err != nil {
		return nil, err
	}

	switch kind {
	case ir.KindOptionSet:
		set, err := optionalString(v, "option_set")
		if err != nil {
			return nil, err
		}
		if set == "" {
			return nil, &LoadError{Field: field + ".option_set", Message: "option set columns need option_set", Pos: v.Pos()}
		}
		col.Type = ir.OptionSetType(set)
	case ir.KindRecord:
		target, err := optionalString(v, "target")
		if err != nil {
			return nil, err
		}
		if target == "" {
			return nil, &LoadError{Field: field + ".target", Message: "lookup columns need target", Pos: v.Pos()}
		}
		col.Target = target
		col.Type = ir.RecordType(target)
	case ir.KindDecimal, ir.KindNumber:
		if col.Min, err = optionalDecimal(v, "min"); err != nil {
			return nil, err
		}
		if col.Max, err = optionalDecimal(v, "max"); err != nil {
			return nil, err
		}
	}
	return col, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// optionalDecimal reads a numeric field without passing through float64.
func optionalDecimal(v cue.Value, path string) (*apd.Decimal, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, nil
	}
	raw, err := f.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	d, _, err := apd.NewFromString(string(raw))
	if err != nil {
		return nil, &LoadError{Field: path, Message: fmt.Sprintf("not a number: %s", raw), Pos: f.Pos()}
	}
	return d, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
