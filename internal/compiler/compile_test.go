package compiler

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/roach88/fxsql/internal/ir"
)

// TestCompile_ModSignFix tests that the remainder takes the divisor's sign.
func TestCompile_ModSignFix(t *testing.T) {
	res, err := Compile(call(ir.FuncMod, ir.TypeDecimal, dec("7"), dec("3")), nil, WithFunctionName("fn_mod"))
	require.NoError(t, err)

	assert.Equal(t, []string{"DECLARE @v0 decimal(23,10)"}, res.Declarations)
	assert.Equal(t, []string{
		"IF(3 = 0) BEGIN RETURN NULL END",
		"SET @v0 = 7 % 3",
		"IF(@v0 <> 0 AND SIGN(@v0) <> SIGN(3)) BEGIN",
		"    SET @v0 = @v0 + 3",
		"END",
		"IF(@v0 IS NULL) BEGIN RETURN NULL END",
		"IF(@v0 < (-100000000000) OR @v0 > 100000000000) BEGIN RETURN NULL END",
	}, res.Statements)
	assert.Equal(t, "@v0", res.ReturnExpr)
}

// TestCompile_ModFloatFlow tests the floating-point remainder formula.
func TestCompile_ModFloatFlow(t *testing.T) {
	res, err := Compile(call(ir.FuncMod, ir.TypeNumber, num(7), num(3)), nil, WithFloatingPoint(true))
	require.NoError(t, err)

	assert.Equal(t, []string{"DECLARE @v0 float"}, res.Declarations)
	assert.Contains(t, res.Statements, "SET @v0 = 7E+00 - 3E+00 * ROUND(7E+00 / 3E+00, 0, 1)")
	assert.Contains(t, res.Statements, "IF(@v0 <> 0 AND SIGN(@v0) <> SIGN(3E+00)) BEGIN")
	assert.Equal(t, "float", res.SQLType)
}

// TestCompile_RoundUp tests scaling by a folded power of ten.
func TestCompile_RoundUp(t *testing.T) {
	res := compileAccount(t, call(ir.FuncRoundUp, ir.TypeDecimal, field("price", ir.TypeDecimal), dec("2")))

	require.Len(t, res.Parameters, 1)
	assert.Equal(t, "@v0", res.Parameters[0].Name)
	assert.Equal(t, "decimal(23,10)", res.Parameters[0].SQLType)

	assert.Contains(t, res.Statements, "SET @v1 = TRY_CAST(100 AS decimal(23,10))")
	assert.Contains(t, res.Statements, "IF(@v1 = 0) BEGIN RETURN NULL END")
	assert.Contains(t, res.Statements,
		"SET @v2 = TRY_CAST(IIF(ISNULL(@v0, 0) > 0, CEILING(ISNULL(@v0, 0) * @v1) / @v1, FLOOR(ISNULL(@v0, 0) * @v1) / @v1) AS decimal(23,10))")
	assert.Equal(t, "@v2", res.ReturnExpr)
}

// TestCompile_RoundUpComputedDigits tests the runtime scale factor.
func TestCompile_RoundUpComputedDigits(t *testing.T) {
	digits := call(ir.FuncAbs, ir.TypeDecimal, field("quantity", ir.TypeDecimal))
	res := compileAccount(t, call(ir.FuncRoundUp, ir.TypeDecimal, field("price", ir.TypeDecimal), digits))

	assert.Contains(t, body(res), "POWER(CAST(10 AS float), ")
}

// TestCompile_RoundDown tests truncating rounding.
func TestCompile_RoundDown(t *testing.T) {
	res := compileAccount(t, call(ir.FuncRoundDown, ir.TypeDecimal, field("price", ir.TypeDecimal), dec("2")))

	assert.Contains(t, res.Statements, "SET @v1 = TRY_CAST(2 AS int)")
	assert.Contains(t, res.Statements, "SET @v2 = TRY_CAST(ROUND(ISNULL(@v0, 0), @v1, 1) AS decimal(23,10))")
}

// TestCompile_DivideGuard tests that division checks its divisor first.
func TestCompile_DivideGuard(t *testing.T) {
	res := compileAccount(t, call(ir.FuncDiv, ir.TypeDecimal, dec("1"), field("price", ir.TypeDecimal)))

	require.GreaterOrEqual(t, len(res.Statements), 2)
	assert.Equal(t, "IF(ISNULL(@v0, 0) = 0) BEGIN RETURN NULL END", res.Statements[0])
	assert.Equal(t, "SET @v1 = TRY_CAST((1 / ISNULL(@v0, 0)) AS decimal(23,10))", res.Statements[1])
}

// TestCompile_MixedFlowsCoerce tests that a float operand in decimal flow
// is converted with an overflow check.
func TestCompile_MixedFlowsCoerce(t *testing.T) {
	res := compileAccount(t, call(ir.FuncAdd, ir.TypeDecimal,
		field("price", ir.TypeDecimal), field("weight", ir.TypeNumber)))

	b := body(res)
	assert.Contains(t, b, "TRY_CAST(@v1 AS decimal(23,10))")
	assert.Contains(t, b, "IS NULL AND @v1 IS NOT NULL")
}

// TestCompile_LookupField tests reading a column of a related row.
func TestCompile_LookupField(t *testing.T) {
	expr := &ir.FieldAccess{
		From:       field("primarycontactid", ir.RecordType("contact")),
		Field:      "fullname",
		ResultType: ir.TypeString,
	}
	res := compileAccount(t, expr)

	require.Len(t, res.Parameters, 1)
	assert.Equal(t, "uniqueidentifier", res.Parameters[0].SQLType)
	assert.Equal(t, []string{
		"SELECT TOP(1) @v1 = [FullName] FROM [dbo].[ContactBase] WHERE [ContactId] = @v0",
	}, res.Prologue)
	assert.Equal(t, "@v1", res.ReturnExpr)
	assert.Contains(t, res.Script(), "@v0 uniqueidentifier -- primarycontactid")
}

// TestCompile_UnknownColumn tests that unknown columns are compile errors.
func TestCompile_UnknownColumn(t *testing.T) {
	_, err := Compile(field("missing", ir.TypeDecimal), testCatalog(t), WithTable("account"))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUnknownColumn))

	_, err = Compile(field("price", ir.TypeDecimal), nil)
	assert.True(t, IsKind(err, ErrUnknownColumn))
}

// TestCompile_UnknownTable tests that a bad row scope is an invocation error.
func TestCompile_UnknownTable(t *testing.T) {
	_, err := Compile(dec("1"), testCatalog(t), WithTable("nope"))
	require.Error(t, err)

	var ce *CompileError
	assert.NotErrorAs(t, err, &ce)
}

// TestCompile_NotSupported tests the suggestion for unknown functions.
func TestCompile_NotSupported(t *testing.T) {
	_, err := Compile(call("Sum", ir.TypeDecimal, dec("1"), dec("2")), nil)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrFunctionNotSupported, ce.Kind)
	assert.Equal(t, ir.FuncAdd, ce.Suggestion)
	assert.Contains(t, err.Error(), "function Sum is not supported; use Add instead")

	german := ce.Localize(language.German)
	assert.Contains(t, german, "Funktion Sum wird nicht unterstützt")
	assert.Contains(t, german, "verwenden Sie stattdessen Add")
}

// TestCompile_NotSupportedNoSuggestion tests that functions without an
// equivalent get no suggestion.
func TestCompile_NotSupportedNoSuggestion(t *testing.T) {
	for _, fn := range []ir.Func{"Rand", "Proper", "Char", "EncodeUrl", "TimeValue", "IsToday"} {
		_, err := Compile(call(fn, ir.TypeString, str("x")), nil)
		require.Error(t, err)
		assert.True(t, IsKind(err, ErrFunctionNotSupported), "%s: %v", fn, err)
		assert.NotContains(t, err.Error(), "instead", fn)

		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Empty(t, ce.Suggestion, fn)
	}
}

// TestCompile_Disabled tests the disabled-function option.
func TestCompile_Disabled(t *testing.T) {
	expr := call(ir.FuncMod, ir.TypeDecimal, dec("7"), dec("3"))
	_, err := Compile(expr, nil, WithDisabledFunctions(ir.FuncMod))
	assert.True(t, IsKind(err, ErrFunctionDisabled))

	_, err = Compile(expr, nil, WithDisabledFunctions(ir.FuncDiv))
	assert.NoError(t, err)
}

// TestCompile_ArgumentErrors tests arity and type validation.
func TestCompile_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		expr ir.Node
		kind ErrorKind
	}{
		{"too few", call(ir.FuncMod, ir.TypeDecimal, dec("1")), ErrArgumentCount},
		{"too many", call(ir.FuncAbs, ir.TypeDecimal, dec("1"), dec("2")), ErrArgumentCount},
		{"text in arithmetic", call(ir.FuncAdd, ir.TypeDecimal, str("a"), dec("2")), ErrArgumentType},
		{"number in concatenate", call(ir.FuncConcatenate, ir.TypeString, str("a"), dec("2")), ErrArgumentType},
		{"text in order", call(ir.FuncLt, ir.TypeBoolean, str("a"), str("b")), ErrArgumentType},
		{"unit not literal", call(ir.FuncDateAdd, ir.TypeDateTime, call(ir.FuncNow, ir.TypeDateTime), dec("1"), call(ir.FuncUpper, ir.TypeString, str("days"))), ErrLiteralRequired},
		{"unknown unit", call(ir.FuncDateAdd, ir.TypeDateTime, call(ir.FuncNow, ir.TypeDateTime), dec("1"), str("fortnights")), ErrArgumentPosition},
		{"record", &ir.Record{ResultType: ir.RecordType("")}, ErrUnsupportedResultType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr, nil)
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
		})
	}
}

// TestCompile_ArgumentCountMessage tests the arity wording.
func TestCompile_ArgumentCountMessage(t *testing.T) {
	_, err := Compile(call(ir.FuncMod, ir.TypeDecimal, dec("1")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function Mod expects 2 arguments, got 1")

	_, err = Compile(call(ir.FuncMid, ir.TypeString, str("a")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 2 to 3 arguments")
}

// TestCompile_TextFormat tests number formats and their rejection.
func TestCompile_TextFormat(t *testing.T) {
	res, err := Compile(call(ir.FuncText, ir.TypeString, dec("1.5"), str(`0.00 "units"`)), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{`SET @v0 = FORMAT(1.5, N'0.00 \u\n\i\t\s', 'en-US')`}, res.Statements)

	res, err = Compile(call(ir.FuncText, ir.TypeString, dec("1.5"), str("")), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Statements)
	assert.Equal(t, "N''", res.ReturnExpr)

	res, err = Compile(call(ir.FuncText, ir.TypeString, dec("1.5")), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"SET @v0 = FORMAT(1.5, N'0.##########', 'en-US')"}, res.Statements)

	res, err = Compile(call(ir.FuncText, ir.TypeString, str("abc")), nil)
	require.NoError(t, err)
	assert.Equal(t, "N'abc'", res.ReturnExpr)

	for _, format := range []string{"[$-en-US]0.00", "#,##0", "dd/mm/yyyy", "0;(0)"} {
		_, err := Compile(call(ir.FuncText, ir.TypeString, dec("1"), str(format)), nil)
		assert.True(t, IsKind(err, ErrUnsupportedFormat), "format %q: %v", format, err)
	}

	// A blank value does not excuse an unsupported format.
	_, err = Compile(call(ir.FuncText, ir.TypeString, blank(), str("#,##0")), nil)
	assert.True(t, IsKind(err, ErrUnsupportedFormat), "%v", err)

	res, err = Compile(call(ir.FuncText, ir.TypeString, blank(), str("0.00")), nil)
	require.NoError(t, err)
	assert.Equal(t, "NULL", res.ReturnExpr)

	_, err = Compile(call(ir.FuncText, ir.TypeString, dec("1"), field("name", ir.TypeString)),
		testCatalog(t), WithTable("account"))
	assert.True(t, IsKind(err, ErrLiteralRequired))
}

// TestCompile_BranchDateNarrowing tests narrowing the result of If to a
// date subtype.
func TestCompile_BranchDateNarrowing(t *testing.T) {
	day := func(d int) *ir.Literal {
		return ir.NewLiteral(ir.DateTime{Time: time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC), Kind: ir.KindDate})
	}
	noTZ := ir.NewLiteral(ir.DateTime{Time: time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), Kind: ir.KindDateTimeNoTimeZone})

	res, err := Compile(call(ir.FuncIf, ir.TypeDateTime, boolean(true), day(1), day(2)), nil)
	require.NoError(t, err)
	assert.Equal(t, "DECLARE @v0 date", res.Declarations[0])
	assert.Equal(t, ir.TypeDate, res.ReturnType)
	assert.Equal(t, "date", res.SQLType)

	_, err = Compile(call(ir.FuncIf, ir.TypeDateTime, boolean(true), day(1), noTZ), nil)
	assert.True(t, IsKind(err, ErrIncompatibleBranchTypes))

	_, err = Compile(call(ir.FuncIf, ir.TypeDecimal, boolean(true), dec("1"), str("x")), nil)
	assert.True(t, IsKind(err, ErrIncompatibleBranchTypes))
}

// TestCompile_BranchOptionSets tests that option-set branches must agree.
func TestCompile_BranchOptionSets(t *testing.T) {
	retail := ir.NewLiteral(ir.OptionValue{OptionSet: "industry", Name: "Retail", Value: 3})
	active := ir.NewLiteral(ir.OptionValue{OptionSet: "status", Name: "Active", Value: 0})

	_, err := Compile(call(ir.FuncIf, ir.OptionSetType("industry"), boolean(true), retail, active), nil)
	assert.True(t, IsKind(err, ErrConflictingOptionSets))

	_, err = Compile(call(ir.FuncIf, ir.OptionSetType("industry"), boolean(true),
		field("industrycode", ir.OptionSetType("industry")),
		field("statuscode", ir.OptionSetType("status"))),
		testCatalog(t), WithTable("account"))
	assert.True(t, IsKind(err, ErrConflictingOptionSets))

	res := compileAccount(t, call(ir.FuncIf, ir.OptionSetType("industry"), boolean(false),
		field("industrycode", ir.OptionSetType("industry")), retail))
	assert.Equal(t, "int", res.SQLType)
}

// TestCompile_IfElseIf tests that inline conditions chain with ELSE IF.
func TestCompile_IfElseIf(t *testing.T) {
	price := field("price", ir.TypeDecimal)
	expr := call(ir.FuncIf, ir.TypeString,
		call(ir.FuncGt, ir.TypeBoolean, price, dec("100")), str("high"),
		boolean(false), str("never"),
		str("low"))
	res := compileAccount(t, expr)

	b := body(res)
	assert.Contains(t, b, "END ELSE IF(0 = 1) BEGIN")
	assert.Contains(t, b, "END ELSE BEGIN")
	assert.Contains(t, b, "    SET @v0 = N'low'")
}

// TestCompile_Switch tests matching a subject against literal values.
func TestCompile_Switch(t *testing.T) {
	expr := call(ir.FuncSwitch, ir.TypeString,
		field("name", ir.TypeString),
		str("a"), str("first"),
		str("b"), str("second"),
		str("other"))
	res := compileAccount(t, expr)

	b := body(res)
	assert.Contains(t, b, "IF((@v1 COLLATE Latin1_General_CS_AS = N'a' OR (@v1 IS NULL AND N'a' IS NULL))) BEGIN")
	assert.Contains(t, b, "END ELSE IF((@v1 COLLATE Latin1_General_CS_AS = N'b'")
	assert.Contains(t, b, "    SET @v0 = N'other'")
}

// TestCompile_IfErrorScope tests that a failed check selects the fallback.
func TestCompile_IfErrorScope(t *testing.T) {
	value := call(ir.FuncDiv, ir.TypeDecimal, dec("1"), field("price", ir.TypeDecimal))
	res := compileAccount(t, call(ir.FuncIfError, ir.TypeDecimal, value, dec("-1")))

	assert.Contains(t, res.Declarations, "DECLARE @e1 int = 0")
	b := body(res)
	assert.Contains(t, b, "IF(ISNULL(@v2, 0) = 0) BEGIN SET @e1 = 11 END ELSE BEGIN")
	assert.Contains(t, b, "IF(@e1 <> 0) BEGIN\n    SET @v0 = (-1)\nEND ELSE BEGIN\n    SET @v0 = @v3\nEND")
	assert.NotContains(t, b, "RETURN NULL")
	assert.Equal(t, "@v0", res.ReturnExpr)
}

// TestCompile_IsError tests that IsError reports the scope's code.
func TestCompile_IsError(t *testing.T) {
	value := call(ir.FuncSqrt, ir.TypeDecimal, field("price", ir.TypeDecimal))
	res := compileAccount(t, call(ir.FuncIsError, ir.TypeBoolean, value))

	assert.Equal(t, "IIF(@e0 <> 0, 1, 0)", res.ReturnExpr)
	assert.Contains(t, body(res), "IF(ISNULL(@v1, 0) < 0) BEGIN SET @e0 = 11 END ELSE BEGIN")
}

// TestCompile_AndShortCircuits tests that later operands are only
// evaluated when they can change the result.
func TestCompile_AndShortCircuits(t *testing.T) {
	price := field("price", ir.TypeDecimal)
	expr := call(ir.FuncAnd, ir.TypeBoolean,
		call(ir.FuncGt, ir.TypeBoolean, price, dec("0")),
		call(ir.FuncLt, ir.TypeBoolean, call(ir.FuncDiv, ir.TypeDecimal, dec("10"), price), dec("1")))
	res := compileAccount(t, expr)

	b := body(res)
	guard := strings.Index(b, "IF(@v1 = 1) BEGIN")
	div := strings.Index(b, "IF(ISNULL(@v0, 0) = 0)")
	require.GreaterOrEqual(t, guard, 0)
	require.GreaterOrEqual(t, div, 0)
	assert.Less(t, guard, div, "division must be inside the short-circuit region")
}

// TestCompile_Substitute tests both forms of Substitute.
func TestCompile_Substitute(t *testing.T) {
	name := field("name", ir.TypeString)

	res := compileAccount(t, call(ir.FuncSubstitute, ir.TypeString, name, str("a"), str("b")))
	assert.Equal(t, []string{
		"SET @v1 = REPLACE(ISNULL(@v0, N'') COLLATE Latin1_General_CS_AS, N'a', N'b')",
	}, res.Statements)

	res = compileAccount(t, call(ir.FuncSubstitute, ir.TypeString, name, str("a"), str("b"), dec("2")))
	b := body(res)
	assert.Contains(t, b, "IF(@v1 <= 0) BEGIN RETURN NULL END")
	assert.Contains(t, b, "WHILE(")
	assert.Contains(t, b, "CHARINDEX(@v3, @v2 COLLATE Latin1_General_CS_AS, ")
	assert.Contains(t, b, "BEGIN BREAK END")
	assert.Contains(t, b, "STUFF(@v2, ")
	assert.Equal(t, "@v2", res.ReturnExpr)
}

// TestCompile_StringGuards tests argument checks of the text functions.
func TestCompile_StringGuards(t *testing.T) {
	name := field("name", ir.TypeString)

	res := compileAccount(t, call(ir.FuncLeft, ir.TypeString, name, field("price", ir.TypeDecimal)))
	assert.Contains(t, body(res), "IF(@v2 < 0) BEGIN RETURN NULL END")
	assert.Contains(t, body(res), "LEFT(ISNULL(@v0, N''), @v2)")

	res = compileAccount(t, call(ir.FuncMid, ir.TypeString, name, dec("2")))
	assert.Contains(t, body(res), "IF(@v1 <= 0) BEGIN RETURN NULL END")
	assert.Contains(t, body(res), "SUBSTRING(ISNULL(@v0, N''), @v1, 4000)")

	res = compileAccount(t, call(ir.FuncReplace, ir.TypeString, name, dec("5"), dec("1"), str("x")))
	assert.Contains(t, body(res), "STUFF(")
	assert.Contains(t, body(res), "+ N'x'")

	res = compileAccount(t, call(ir.FuncLen, ir.TypeDecimal, name))
	assert.Equal(t, []string{"SET @v1 = (LEN(ISNULL(@v0, N'') + N'x') - 1)"}, res.Statements)
}

// TestCompile_Value tests text to number conversion.
func TestCompile_Value(t *testing.T) {
	res := compileAccount(t, call(ir.FuncValue, ir.TypeDecimal, field("name", ir.TypeString)))

	b := body(res)
	assert.Contains(t, b, "SET @v1 = TRIM(ISNULL(@v0, N''))")
	assert.Contains(t, b, "IF(LEN(@v1) = 0) BEGIN")
	assert.Contains(t, b, "LIKE N'%[^0-9.eE+-]%'")
	assert.Contains(t, b, "COALESCE(TRY_CAST(@v1 AS decimal(23,10))")
}

// TestCompile_ConversionRangeChecked tests that a float column converted
// into the decimal flow is range checked like other numeric results.
func TestCompile_ConversionRangeChecked(t *testing.T) {
	weight := field("weight", ir.TypeNumber)
	rangeGuard := "IF(@v1 < (-100000000000) OR @v1 > 100000000000) BEGIN RETURN NULL END"

	for _, fn := range []ir.Func{ir.FuncDecimal, ir.FuncValue} {
		t.Run(string(fn), func(t *testing.T) {
			res := compileAccount(t, call(fn, ir.TypeDecimal, weight))

			assert.Equal(t, []string{
				"SET @v1 = TRY_CAST(@v0 AS decimal(23,10))",
				"IF(@v1 IS NULL AND @v0 IS NOT NULL) BEGIN RETURN NULL END",
				rangeGuard,
			}, res.Statements)
			assert.Equal(t, "@v1", res.ReturnExpr)
		})
	}

	// A decimal column needs no conversion and keeps its parameter.
	res := compileAccount(t, call(ir.FuncDecimal, ir.TypeDecimal, field("price", ir.TypeDecimal)))
	assert.Empty(t, res.Statements)
	assert.Equal(t, "@v0", res.ReturnExpr)
}

// TestCompile_Dates tests date construction and extraction.
func TestCompile_Dates(t *testing.T) {
	res, err := Compile(call(ir.FuncDate, ir.TypeDate, dec("2024"), dec("13"), dec("1")), nil)
	require.NoError(t, err)
	assert.Contains(t, body(res), "DATEADD(day, @v2 - 1, DATEADD(month, @v1 - 1, DATEFROMPARTS(@v0, 1, 1)))")
	assert.Equal(t, "date", res.SQLType)

	res = compileAccount(t, call(ir.FuncWeekday, ir.TypeDecimal, field("createdon", ir.TypeDateTime)))
	assert.Equal(t, []string{"SET @v1 = (DATEDIFF(day, '19000107', @v0) % 7 + 7) % 7 + 1"}, res.Statements)

	res = compileAccount(t, call(ir.FuncDateAdd, ir.TypeDateTime, field("createdon", ir.TypeDateTime), dec("3"), str("Months")))
	assert.Contains(t, body(res), "DATEADD(month, @v1, @v0)")
}

// TestCompile_IntermediateReuse tests that a shared node is translated once,
// but not reused across branches.
func TestCompile_IntermediateReuse(t *testing.T) {
	shared := call(ir.FuncDiv, ir.TypeDecimal, field("price", ir.TypeDecimal), dec("2"))

	res := compileAccount(t, call(ir.FuncAdd, ir.TypeDecimal, shared, shared))
	assert.Equal(t, 1, strings.Count(body(res), "/ 2)"))

	res = compileAccount(t, call(ir.FuncIf, ir.TypeDecimal,
		call(ir.FuncGt, ir.TypeBoolean, field("price", ir.TypeDecimal), dec("0")),
		shared,
		call(ir.FuncAdd, ir.TypeDecimal, shared, dec("1"))))
	assert.Equal(t, 2, strings.Count(body(res), "/ 2)"))
}

// TestCompile_BeginEndBalanced tests that every emitted region is closed.
func TestCompile_BeginEndBalanced(t *testing.T) {
	price := field("price", ir.TypeDecimal)
	name := field("name", ir.TypeString)
	exprs := map[string]ir.Node{
		"iferror in if": call(ir.FuncIf, ir.TypeDecimal,
			call(ir.FuncGt, ir.TypeBoolean, price, dec("0")),
			call(ir.FuncIfError, ir.TypeDecimal, call(ir.FuncDiv, ir.TypeDecimal, dec("1"), price), dec("0"))),
		"if in iferror": call(ir.FuncIfError, ir.TypeDecimal,
			call(ir.FuncIf, ir.TypeDecimal, call(ir.FuncGt, ir.TypeBoolean, price, dec("0")),
				call(ir.FuncSqrt, ir.TypeDecimal, price)),
			dec("-1")),
		"iferror chain": call(ir.FuncIfError, ir.TypeDecimal,
			call(ir.FuncLn, ir.TypeDecimal, price), dec("1"),
			call(ir.FuncSqrt, ir.TypeDecimal, price), dec("2"),
			dec("3")),
		"substitute": call(ir.FuncSubstitute, ir.TypeString, name, str("a"), str("b"), dec("1")),
		"coalesce": call(ir.FuncCoalesce, ir.TypeString, name, call(ir.FuncUpper, ir.TypeString, name), str("x")),
		"or": call(ir.FuncOr, ir.TypeBoolean, boolean(false), call(ir.FuncIsBlank, ir.TypeBoolean, name), boolean(true)),
		"value": call(ir.FuncValue, ir.TypeDecimal, name),
		"mod": call(ir.FuncMod, ir.TypeDecimal, price, dec("-3")),
	}

	begin := regexp.MustCompile(`\bBEGIN\b`)
	end := regexp.MustCompile(`\bEND\b`)
	for name, expr := range exprs {
		t.Run(name, func(t *testing.T) {
			res := compileAccount(t, expr)
			b := body(res)
			assert.Equal(t, len(begin.FindAllString(b, -1)), len(end.FindAllString(b, -1)), b)
		})
	}
}

// TestCompile_Script tests the CREATE FUNCTION wrapper.
func TestCompile_Script(t *testing.T) {
	res, err := Compile(call(ir.FuncAdd, ir.TypeDecimal, dec("1"), dec("2")), nil, WithFunctionName("fn_add"))
	require.NoError(t, err)

	script := res.Script()
	assert.True(t, strings.HasPrefix(script, "CREATE FUNCTION [dbo].[fn_add]() RETURNS decimal(23,10)\nAS\nBEGIN\n"))
	assert.Contains(t, script, "    DECLARE @v0 decimal(23,10)\n")
	assert.Contains(t, script, "    SET @v0 = TRY_CAST((1 + 2) AS decimal(23,10))\n")
	assert.True(t, strings.HasSuffix(script, "    RETURN @v0\nEND\n"))
}

// TestCompile_DefaultName tests content-addressed function names.
func TestCompile_DefaultName(t *testing.T) {
	build := func() ir.Node { return call(ir.FuncAdd, ir.TypeDecimal, dec("1"), dec("2")) }

	a, err := Compile(build(), nil)
	require.NoError(t, err)
	b, err := Compile(build(), nil)
	require.NoError(t, err)
	f, err := Compile(build(), nil, WithFloatingPoint(true))
	require.NoError(t, err)

	assert.Equal(t, a.Name, b.Name)
	assert.NotEqual(t, a.Name, f.Name)
	assert.Regexp(t, `^fn_[0-9a-f]{16}$`, a.Name)
}

// TestSupported tests that the library covers the core functions.
func TestSupported(t *testing.T) {
	fns := Supported()
	for _, fn := range []ir.Func{ir.FuncMod, ir.FuncRoundUp, ir.FuncSubstitute, ir.FuncIfError, ir.FuncText} {
		assert.Contains(t, fns, fn)
	}
	for _, fn := range fns {
		assert.False(t, fn.IsInternal(), "delegation operators are not compiled: %s", fn)
	}
}
