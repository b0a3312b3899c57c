package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/fxsql/internal/ir"
)

// SQL type names used for declarations and casts.
const (
	sqlDecimal  = "decimal(23,10)"
	sqlFloat    = "float"
	sqlBit      = "bit"
	sqlDate     = "date"
	sqlDateTime = "datetime"
	sqlGuid     = "uniqueidentifier"
	sqlInt      = "int"
)

// sqlType maps a formula type to its column type. Blank is stored in the
// numeric flow type. The second result is false for records, tables and
// times, which no variable can hold.
func (c *Context) sqlType(t ir.FormulaType) (string, bool) {
	switch t.Kind {
	case ir.KindDecimal:
		return sqlDecimal, true
	case ir.KindNumber:
		return sqlFloat, true
	case ir.KindBlank:
		return c.sqlType(c.flow)
	case ir.KindString:
		return fmt.Sprintf("nvarchar(%d)", c.opts.maxLength), true
	case ir.KindBoolean:
		return sqlBit, true
	case ir.KindDate:
		return sqlDate, true
	case ir.KindDateTime, ir.KindDateTimeNoTimeZone:
		return sqlDateTime, true
	case ir.KindGuid:
		return sqlGuid, true
	case ir.KindOptionSet:
		return sqlInt, true
	default:
		return "", false
	}
}

// quoteString renders s as a unicode string literal.
func quoteString(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent renders name as a bracketed identifier.
func quoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// tableRef renders the schema-qualified physical table name.
func tableRef(physical string) string {
	return "[dbo]." + quoteIdent(physical)
}

// literalText renders a constant as SQL.
func literalText(v ir.Value) (string, error) {
	switch val := v.(type) {
	case ir.Blank, nil:
		return "NULL", nil
	case ir.Boolean:
		if val {
			return "1", nil
		}
		return "0", nil
	case ir.String:
		return quoteString(string(val)), nil
	case ir.Decimal:
		s := val.String()
		if strings.HasPrefix(s, "-") {
			return "(" + s + ")", nil
		}
		return s, nil
	case ir.Number:
		s := strconv.FormatFloat(float64(val), 'E', -1, 64)
		if strings.HasPrefix(s, "-") {
			return "(" + s + ")", nil
		}
		return s, nil
	case ir.DateTime:
		switch val.Kind {
		case ir.KindDate:
			return fmt.Sprintf("CAST('%s' AS date)", val.Time.Format("2006-01-02")), nil
		default:
			return fmt.Sprintf("CAST('%s' AS datetime)", val.Time.Format("2006-01-02T15:04:05.000")), nil
		}
	case ir.Guid:
		return fmt.Sprintf("CAST('%s' AS uniqueidentifier)", val.String()), nil
	case ir.OptionValue:
		return strconv.FormatInt(val.Value, 10), nil
	default:
		return "", fmt.Errorf("literal of type %s", ir.TypeOf(v))
	}
}
