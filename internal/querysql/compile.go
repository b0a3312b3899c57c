package querysql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
	"github.com/roach88/fxsql/internal/queryir"
)

// Dialect selects placeholder syntax and column types.
type Dialect int

const (
	// SQLite uses ? placeholders. Both the cgo and the pure-Go drivers
	// accept this dialect.
	SQLite Dialect = iota
	// Postgres uses $n placeholders.
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectFor returns the dialect of a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "pgx", "postgres":
		return Postgres, nil
	}
	return SQLite, fmt.Errorf("unsupported driver %q", driver)
}

// Statement is a compiled, parameterised query.
type Statement struct {
	SQL    string
	Params []any

	// Table and Columns describe the result set of a SELECT: one column
	// per entry, in order. Both are empty for other statements.
	Table   *metadata.Table
	Columns []*metadata.Column
}

// Compiler turns retrieval requests into SQL over the physical schema
// named by the metadata.
//
// Every SELECT orders by the primary key so results are deterministic.
// Values are always bound as parameters, never interpolated.
type Compiler struct {
	md      metadata.Provider
	dialect Dialect
}

// NewCompiler creates a Compiler.
func NewCompiler(md metadata.Provider, dialect Dialect) *Compiler {
	return &Compiler{md: md, dialect: dialect}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// Compile converts a retrieval request to a SELECT statement.
//
// The request is validated against the metadata first.
func (c *Compiler) Compile(req queryir.Request) (*Statement, error) {
	if c.md == nil {
		return nil, fmt.Errorf("cannot compile without metadata")
	}
	if err := queryir.Validate(req, c.md).Err(); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case *queryir.RetrieveMultiple:
		return c.compileSelect(r.Table, r.Filter, r.Top)
	case *queryir.RetrieveByID:
		t, _ := c.md.Table(r.Table)
		key := &queryir.Condition{
			Attribute: t.PrimaryKey,
			Op:        queryir.OpEq,
			Values:    []ir.Value{ir.Guid(r.ID)},
		}
		return c.compileSelect(r.Table, key, 1)
	default:
		return nil, fmt.Errorf("unsupported request type: %T", req)
	}
}

func (c *Compiler) compileSelect(table string, filter queryir.Filter, top int) (*Statement, error) {
	t, _ := c.md.Table(table)
	b := &builder{dialect: c.dialect}

	stmt := &Statement{Table: t}
	cols := make([]string, 0, len(t.Columns))
	for _, name := range t.ColumnNames() {
		col := t.Columns[name]
		stmt.Columns = append(stmt.Columns, col)
		cols = append(cols, quoteIdent(col.Physical))
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q has no columns", table)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdent(t.Physical))

	if filter != nil {
		where, err := b.filter(t, filter)
		if err != nil {
			return nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderKey(t, cols))
	if c.dialect == SQLite {
		sb.WriteString(" COLLATE BINARY")
	}
	sb.WriteString(" ASC")

	if top > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.bind(int64(top)))
	}

	stmt.SQL = sb.String()
	stmt.Params = b.params
	return stmt, nil
}

// orderKey is the primary key, or the first column when the table has
// none.
func orderKey(t *metadata.Table, cols []string) string {
	if pk, ok := t.Column(t.PrimaryKey); ok {
		return quoteIdent(pk.Physical)
	}
	return cols[0]
}

// builder accumulates bound parameters while rendering a statement.
type builder struct {
	dialect Dialect
	params  []any
}

// bind appends a parameter and returns its placeholder.
func (b *builder) bind(v any) string {
	b.params = append(b.params, v)
	if b.dialect == Postgres {
		return "$" + strconv.Itoa(len(b.params))
	}
	return "?"
}

func (b *builder) filter(t *metadata.Table, f queryir.Filter) (string, error) {
	switch fl := f.(type) {
	case *queryir.Condition:
		return b.condition(t, fl)
	case *queryir.Logical:
		if len(fl.Children) == 0 {
			if fl.Op == queryir.OpAnd {
				return "1 = 1", nil
			}
			return "1 = 0", nil
		}
		parts := make([]string, 0, len(fl.Children))
		for _, child := range fl.Children {
			sql, err := b.filter(t, child)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		sep := " AND "
		if fl.Op == queryir.OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	default:
		return "", fmt.Errorf("unsupported filter type: %T", f)
	}
}

func (b *builder) condition(t *metadata.Table, cond *queryir.Condition) (string, error) {
	col, ok := t.Column(cond.Attribute)
	if !ok {
		return "", fmt.Errorf("unknown attribute %q", cond.Attribute)
	}
	ident := quoteIdent(col.Physical)

	if len(cond.Values) == 1 && ir.IsBlank(cond.Values[0]) {
		switch cond.Op {
		case queryir.OpEq:
			return ident + " IS NULL", nil
		case queryir.OpNe:
			return ident + " IS NOT NULL", nil
		}
	}

	text := col.Type.Kind == ir.KindString
	lhs := ident

	// Blank operands compare as NULL and match nothing; IN keeps its
	// other values.
	values := make([]ir.Value, 0, len(cond.Values))
	for _, v := range cond.Values {
		if !ir.IsBlank(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return "1 = 0", nil
	}
	if text {
		lhs = "LOWER(" + ident + ")"
	}

	switch cond.Op {
	case queryir.OpStartsWith, queryir.OpEndsWith:
		affix, ok := values[0].(ir.String)
		if !ok {
			return "", fmt.Errorf("%s %s: operand must be text", cond.Attribute, cond.Op)
		}
		pattern := escapeLike(strings.ToLower(string(affix)))
		if cond.Op == queryir.OpStartsWith {
			pattern += "%"
		} else {
			pattern = "%" + pattern
		}
		return fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, lhs, b.bind(pattern)), nil

	case queryir.OpIn:
		holders := make([]string, len(values))
		for i, v := range values {
			h, err := b.operand(v, text)
			if err != nil {
				return "", fmt.Errorf("%s %s: %w", cond.Attribute, cond.Op, err)
			}
			holders[i] = h
		}
		return fmt.Sprintf("%s IN (%s)", lhs, strings.Join(holders, ", ")), nil
	}

	op, ok := comparisonOps[cond.Op]
	if !ok {
		return "", fmt.Errorf("%s: unknown operator %q", cond.Attribute, cond.Op)
	}
	rhs, err := b.operand(values[0], text)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", cond.Attribute, cond.Op, err)
	}
	return fmt.Sprintf("%s %s %s", lhs, op, rhs), nil
}

var comparisonOps = map[queryir.Operator]string{
	queryir.OpEq: "=",
	queryir.OpNe: "<>",
	queryir.OpLt: "<",
	queryir.OpLe: "<=",
	queryir.OpGt: ">",
	queryir.OpGe: ">=",
}

func (b *builder) operand(v ir.Value, lower bool) (string, error) {
	p, err := ToParam(v, b.dialect)
	if err != nil {
		return "", err
	}
	h := b.bind(p)
	if lower {
		return "LOWER(" + h + ")", nil
	}
	return h, nil
}

// Date layouts used for DateTime storage. All are text and sort in time
// order.
const (
	LayoutDate               = "2006-01-02"
	LayoutDateTime           = "2006-01-02T15:04:05Z"
	LayoutDateTimeNoTimeZone = "2006-01-02T15:04:05"
)

// ToParam converts a formula value to a driver parameter.
func ToParam(v ir.Value, d Dialect) (any, error) {
	switch val := v.(type) {
	case nil, ir.Blank:
		return nil, nil
	case ir.Boolean:
		return bool(val), nil
	case ir.String:
		return string(val), nil
	case ir.Number:
		return float64(val), nil
	case ir.Decimal:
		if d == Postgres {
			return val.String(), nil
		}
		return val.Float64(), nil
	case ir.DateTime:
		return FormatDateTime(val), nil
	case ir.Guid:
		return val.String(), nil
	case ir.OptionValue:
		return val.Value, nil
	case ir.Record, ir.Table:
		return nil, fmt.Errorf("%s value cannot be used as a parameter", ir.TypeOf(v))
	default:
		return nil, fmt.Errorf("unsupported value type for parameter: %T", v)
	}
}

// FormatDateTime renders a date value in its storage layout.
func FormatDateTime(v ir.DateTime) string {
	switch v.Kind {
	case ir.KindDate:
		return v.Time.Format(LayoutDate)
	case ir.KindDateTimeNoTimeZone:
		return v.Time.Format(LayoutDateTimeNoTimeZone)
	default:
		return v.Time.UTC().Format(LayoutDateTime)
	}
}

// ParseDateTime is the inverse of FormatDateTime.
func ParseDateTime(s string, kind ir.Kind) (ir.DateTime, error) {
	layout := LayoutDateTime
	switch kind {
	case ir.KindDate:
		layout = LayoutDate
	case ir.KindDateTimeNoTimeZone:
		layout = LayoutDateTimeNoTimeZone
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return ir.DateTime{}, err
	}
	return ir.DateTime{Time: t, Kind: kind}, nil
}

// CreateTable returns the DDL for the named table.
func (c *Compiler) CreateTable(name string) (string, error) {
	if c.md == nil {
		return "", fmt.Errorf("cannot compile without metadata")
	}
	t, ok := c.md.Table(name)
	if !ok {
		return "", fmt.Errorf("unknown table %q", name)
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, n := range t.ColumnNames() {
		col := t.Columns[n]
		defs = append(defs, quoteIdent(col.Physical)+" "+c.columnType(col))
	}
	pk, ok := t.Column(t.PrimaryKey)
	if !ok {
		return "", fmt.Errorf("table %q has no primary key", name)
	}
	defs = append(defs, "PRIMARY KEY ("+quoteIdent(pk.Physical)+")")

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(t.Physical), strings.Join(defs, ", ")), nil
}

func (c *Compiler) columnType(col *metadata.Column) string {
	pg := c.dialect == Postgres
	switch col.Type.Kind {
	case ir.KindDecimal:
		return "NUMERIC"
	case ir.KindNumber:
		if pg {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case ir.KindBoolean:
		if pg {
			return "BOOLEAN"
		}
		return "INTEGER"
	case ir.KindOptionSet:
		if pg {
			return "BIGINT"
		}
		return "INTEGER"
	}
	// Strings, dates, GUIDs and lookup keys are stored as text.
	return "TEXT"
}

// Insert returns an INSERT for one row. Fields are written in sorted
// order; fields the table does not declare are an error.
func (c *Compiler) Insert(table string, row ir.Record) (*Statement, error) {
	if c.md == nil {
		return nil, fmt.Errorf("cannot compile without metadata")
	}
	t, ok := c.md.Table(table)
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	b := &builder{dialect: c.dialect}
	var cols, holders []string
	for _, name := range row.SortedKeys() {
		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q of table %q", name, table)
		}
		p, err := ToParam(row.Fields[name], c.dialect)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		cols = append(cols, quoteIdent(col.Physical))
		holders = append(holders, b.bind(p))
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("empty row for table %q", table)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.Physical), strings.Join(cols, ", "), strings.Join(holders, ", "))
	return &Statement{SQL: sql, Params: b.params}, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
