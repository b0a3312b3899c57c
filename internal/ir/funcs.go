package ir

import "strings"

// Func identifies a builtin function.
//
// The set of identities the binder can produce is open-ended, so Func is a
// string; the constants below are the identities this module knows about.
// Consumers map known identities to implementations and treat everything
// else as unsupported.
type Func string

// Operators and arithmetic.
const (
	FuncAdd       Func = "Add"
	FuncSub       Func = "Sub"
	FuncMul       Func = "Mul"
	FuncDiv       Func = "Div"
	FuncNegate    Func = "Negate"
	FuncAbs       Func = "Abs"
	FuncMod       Func = "Mod"
	FuncInt       Func = "Int"
	FuncTrunc     Func = "Trunc"
	FuncRound     Func = "Round"
	FuncRoundUp   Func = "RoundUp"
	FuncRoundDown Func = "RoundDown"
	FuncPower     Func = "Power"
	FuncSqrt      Func = "Sqrt"
	FuncLn        Func = "Ln"
	FuncExp       Func = "Exp"
	FuncMin       Func = "Min"
	FuncMax       Func = "Max"
	FuncFloat     Func = "Float"
	FuncDecimal   Func = "Decimal"
	FuncValue     Func = "Value"
)

// Strings.
const (
	FuncText        Func = "Text"
	FuncConcatenate Func = "Concatenate"
	FuncLen         Func = "Len"
	FuncLeft        Func = "Left"
	FuncRight       Func = "Right"
	FuncMid         Func = "Mid"
	FuncUpper       Func = "Upper"
	FuncLower       Func = "Lower"
	FuncTrim        Func = "Trim"
	FuncTrimEnds    Func = "TrimEnds"
	FuncSubstitute  Func = "Substitute"
	FuncReplace     Func = "Replace"
	FuncFind        Func = "Find"
	FuncStartsWith  Func = "StartsWith"
	FuncEndsWith    Func = "EndsWith"
)

// Comparison, logic and control flow.
const (
	FuncEq       Func = "Eq"
	FuncNe       Func = "Ne"
	FuncLt       Func = "Lt"
	FuncLe       Func = "Le"
	FuncGt       Func = "Gt"
	FuncGe       Func = "Ge"
	FuncAnd      Func = "And"
	FuncOr       Func = "Or"
	FuncNot      Func = "Not"
	FuncIf       Func = "If"
	FuncSwitch   Func = "Switch"
	FuncIfError  Func = "IfError"
	FuncIsError  Func = "IsError"
	FuncIsBlank  Func = "IsBlank"
	FuncCoalesce Func = "Coalesce"
	FuncBlank    Func = "Blank"
)

// Dates.
const (
	FuncNow      Func = "Now"
	FuncUTCNow   Func = "UTCNow"
	FuncToday    Func = "Today"
	FuncUTCToday Func = "UTCToday"
	FuncYear     Func = "Year"
	FuncMonth    Func = "Month"
	FuncDay      Func = "Day"
	FuncHour     Func = "Hour"
	FuncMinute   Func = "Minute"
	FuncSecond   Func = "Second"
	FuncWeekday  Func = "Weekday"
	FuncDate     Func = "Date"
	FuncDateAdd  Func = "DateAdd"
	FuncDateDiff Func = "DateDiff"
)

// Delegation operators, inserted by the rewrite pass in place of
// sub-expressions a data service can evaluate.
const (
	FuncDelegEq         Func = "__eq"
	FuncDelegNe         Func = "__ne"
	FuncDelegLt         Func = "__lt"
	FuncDelegLe         Func = "__le"
	FuncDelegGt         Func = "__gt"
	FuncDelegGe         Func = "__ge"
	FuncDelegIn         Func = "__in"
	FuncDelegStartsWith Func = "__startsWith"
	FuncDelegEndsWith   Func = "__endsWith"
	FuncDelegAnd        Func = "__and"
	FuncDelegOr         Func = "__or"

	FuncRetrieveMultiple Func = "__retrieveMultiple"
	FuncRetrieveSingle   Func = "__retrieveSingle"
	FuncRetrieveGUID     Func = "__retrieveGUID"
)

// IsInternal reports whether fn is a rewrite-pass operator rather than a
// user-visible function.
func (fn Func) IsInternal() bool {
	return strings.HasPrefix(string(fn), "__")
}

func (fn Func) String() string {
	return string(fn)
}
