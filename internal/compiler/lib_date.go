package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/fxsql/internal/ir"
)

// timeUnits maps formula time units to DATEADD/DATEDIFF date parts.
var timeUnits = map[string]string{
	"milliseconds": "millisecond",
	"seconds":      "second",
	"minutes":      "minute",
	"hours":        "hour",
	"days":         "day",
	"months":       "month",
	"quarters":     "quarter",
	"years":        "year",
}

// weekdayEpoch is a Sunday; day offsets from it give a weekday that does
// not depend on the session's DATEFIRST setting.
const weekdayEpoch = "'19000107'"

func init() {
	register(ir.FuncNow, 0, 0, clock("GETUTCDATE()", ir.TypeDateTime))
	register(ir.FuncUTCNow, 0, 0, clock("GETUTCDATE()", ir.TypeDateTimeNoTimeZone))
	register(ir.FuncToday, 0, 0, clock("CAST(GETUTCDATE() AS date)", ir.TypeDate))
	register(ir.FuncUTCToday, 0, 0, clock("CAST(GETUTCDATE() AS date)", ir.TypeDate))
	register(ir.FuncYear, 1, 1, datePart("YEAR(%s)"))
	register(ir.FuncMonth, 1, 1, datePart("MONTH(%s)"))
	register(ir.FuncDay, 1, 1, datePart("DAY(%s)"))
	register(ir.FuncHour, 1, 1, datePart("DATEPART(hour, %s)"))
	register(ir.FuncMinute, 1, 1, datePart("DATEPART(minute, %s)"))
	register(ir.FuncSecond, 1, 1, datePart("DATEPART(second, %s)"))
	register(ir.FuncWeekday, 1, 1, datePart("(DATEDIFF(day, "+weekdayEpoch+", %s) %% 7 + 7) %% 7 + 1"))
	register(ir.FuncDate, 3, 3, genDate)
	register(ir.FuncDateAdd, 2, 3, genDateAdd)
	register(ir.FuncDateDiff, 2, 3, genDateDiff)
}

func clock(expr string, t ir.FormulaType) GeneratorFunc {
	return func(c *Context, _ *ir.Call) (RetVal, error) {
		return exprVal(expr, t), nil
	}
}

// datePart extracts a numeric component; a blank date yields blank.
func datePart(pattern string) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		d, err := c.dateArg(call, 0)
		if err != nil {
			return RetVal{}, err
		}
		if d.IsBlank() {
			return blankVal, nil
		}
		return c.Assign(c.flow, fmt.Sprintf(pattern, d)), nil
	}
}

// genDate builds a date from year, month and day, rolling over months
// and days outside their usual range. Years below 1900 are offset by 1900.
func genDate(c *Context, call *ir.Call) (RetVal, error) {
	args, err := c.numericArgs(call)
	if err != nil {
		return RetVal{}, err
	}
	y := c.intArg(args[0])
	m := c.intArg(args[1])
	d := c.intArg(args[2])
	c.Guard(fmt.Sprintf("%s < 0 OR %s > 9999", y, y))
	c.Emit("SET %s = IIF(%s < 1900, %s + 1900, %s)", y, y, y, y)
	c.Guard(fmt.Sprintf("ABS(%s) > 120000 OR ABS(%s) > 3650000", m, d))
	return c.Assign(ir.TypeDate, fmt.Sprintf("DATEADD(day, %s - 1, DATEADD(month, %s - 1, DATEFROMPARTS(%s, 1, 1)))", d, m, y)), nil
}

// unitArg reads the optional literal time unit at argument i.
func unitArg(call *ir.Call, i int) (string, error) {
	if len(call.Args) <= i {
		return "day", nil
	}
	lit, err := literalArg(call, i)
	if err != nil {
		return "", err
	}
	var name string
	switch u := lit.(type) {
	case ir.String:
		name = string(u)
	case ir.OptionValue:
		name = u.Name
	default:
		return "", argTypeError(call, i, ir.TypeOf(lit))
	}
	part, ok := timeUnits[strings.ToLower(name)]
	if !ok {
		return "", newError(ErrArgumentPosition, call.Args[i].SourceSpan(), string(call.Func), i+1, fmt.Sprintf("unknown time unit %q", name))
	}
	return part, nil
}

func genDateAdd(c *Context, call *ir.Call) (RetVal, error) {
	d, err := c.dateArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	n, err := c.numericArg(call, 1)
	if err != nil {
		return RetVal{}, err
	}
	unit, err := unitArg(call, 2)
	if err != nil {
		return RetVal{}, err
	}
	if d.IsBlank() {
		return blankVal, nil
	}
	count := c.intArg(n)
	return c.Assign(d.typ, fmt.Sprintf("DATEADD(%s, %s, %s)", unit, count, d)), nil
}

func genDateDiff(c *Context, call *ir.Call) (RetVal, error) {
	a, err := c.dateArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	b, err := c.dateArg(call, 1)
	if err != nil {
		return RetVal{}, err
	}
	unit, err := unitArg(call, 2)
	if err != nil {
		return RetVal{}, err
	}
	if a.IsBlank() || b.IsBlank() {
		return blankVal, nil
	}
	return c.Assign(c.flow, fmt.Sprintf("DATEDIFF(%s, %s, %s)", unit, a, b)), nil
}
