package compiler

import (
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
)

func testCatalog(t *testing.T) *metadata.Catalog {
	t.Helper()
	cat := metadata.NewCatalog()
	require.NoError(t, cat.AddOptionSet(&metadata.OptionSet{
		Name:    "industry",
		Options: map[string]int64{"Accounting": 1, "Retail": 3},
	}))
	require.NoError(t, cat.AddOptionSet(&metadata.OptionSet{
		Name:    "status",
		Options: map[string]int64{"Active": 0, "Inactive": 1},
	}))
	require.NoError(t, cat.AddTable(&metadata.Table{
		Name:       "contact",
		Physical:   "ContactBase",
		PrimaryKey: "contactid",
		Columns: map[string]*metadata.Column{
			"contactid": {Type: ir.TypeGuid, Physical: "ContactId"},
			"fullname":  {Type: ir.TypeString, Physical: "FullName"},
		},
	}))
	require.NoError(t, cat.AddTable(&metadata.Table{
		Name:       "account",
		Physical:   "AccountBase",
		PrimaryKey: "accountid",
		Columns: map[string]*metadata.Column{
			"accountid":        {Type: ir.TypeGuid, Physical: "AccountId"},
			"name":             {Type: ir.TypeString, Physical: "Name"},
			"price":            {Type: ir.TypeDecimal, Physical: "Price"},
			"quantity":         {Type: ir.TypeDecimal, Physical: "Quantity", Min: apd.New(0, 0), Max: apd.New(1000, 0)},
			"weight":           {Type: ir.TypeNumber, Physical: "Weight"},
			"industrycode":     {Type: ir.OptionSetType("industry"), Physical: "IndustryCode"},
			"statuscode":       {Type: ir.OptionSetType("status"), Physical: "StatusCode"},
			"createdon":        {Type: ir.TypeDateTime, Physical: "CreatedOn"},
			"primarycontactid": {Type: ir.RecordType("contact"), Target: "contact", Physical: "PrimaryContactId"},
		},
	}))
	require.NoError(t, cat.Validate())
	return cat
}

func dec(s string) *ir.Literal {
	return ir.NewLiteral(ir.MustDecimal(s))
}

func num(f float64) *ir.Literal {
	return ir.NewLiteral(ir.Number(f))
}

func str(s string) *ir.Literal {
	return ir.NewLiteral(ir.String(s))
}

func boolean(b bool) *ir.Literal {
	return ir.NewLiteral(ir.Boolean(b))
}

func blank() *ir.Literal {
	return ir.NewLiteral(ir.Blank{})
}

func call(fn ir.Func, t ir.FormulaType, args ...ir.Node) *ir.Call {
	return ir.NewCall(fn, t, args...)
}

func field(name string, t ir.FormulaType) *ir.FieldAccess {
	return ir.NewField(name, t)
}

// compileAccount compiles expr with the account table as row scope.
func compileAccount(t *testing.T, expr ir.Node, opts ...Option) *Result {
	t.Helper()
	opts = append([]Option{WithTable("account"), WithFunctionName("fn_test")}, opts...)
	res, err := Compile(expr, testCatalog(t), opts...)
	require.NoError(t, err)
	return res
}

func body(r *Result) string {
	return strings.Join(r.Statements, "\n")
}
