package ir

import "fmt"

// Kind is the semantic type tag of a formula value.
type Kind int

const (
	KindBlank Kind = iota
	KindBoolean
	KindDecimal
	KindNumber
	KindString
	KindDate
	KindDateTime
	KindDateTimeNoTimeZone
	KindTime
	KindGuid
	KindOptionSet
	KindRecord
	KindTable
)

var kindNames = map[Kind]string{
	KindBlank:              "Blank",
	KindBoolean:            "Boolean",
	KindDecimal:            "Decimal",
	KindNumber:             "Number",
	KindString:             "String",
	KindDate:               "Date",
	KindDateTime:           "DateTime",
	KindDateTimeNoTimeZone: "DateTimeNoTimeZone",
	KindTime:               "Time",
	KindGuid:               "Guid",
	KindOptionSet:          "OptionSet",
	KindRecord:             "Record",
	KindTable:              "Table",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a kind by its display name.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindBlank, false
}

// FormulaType is the resolved type of a node or value.
//
// OptionSet is set only for KindOptionSet; Table names the backing table
// for KindRecord and KindTable.
type FormulaType struct {
	Kind      Kind   `json:"kind"`
	OptionSet string `json:"option_set,omitempty"`
	Table     string `json:"table,omitempty"`
}

// Convenience constructors for the scalar types.
var (
	TypeBlank              = FormulaType{Kind: KindBlank}
	TypeBoolean            = FormulaType{Kind: KindBoolean}
	TypeDecimal            = FormulaType{Kind: KindDecimal}
	TypeNumber             = FormulaType{Kind: KindNumber}
	TypeString             = FormulaType{Kind: KindString}
	TypeDate               = FormulaType{Kind: KindDate}
	TypeDateTime           = FormulaType{Kind: KindDateTime}
	TypeDateTimeNoTimeZone = FormulaType{Kind: KindDateTimeNoTimeZone}
	TypeTime               = FormulaType{Kind: KindTime}
	TypeGuid               = FormulaType{Kind: KindGuid}
)

// OptionSetType returns the type of values drawn from the named option set.
func OptionSetType(name string) FormulaType {
	return FormulaType{Kind: KindOptionSet, OptionSet: name}
}

// RecordType returns the type of a single row of table.
func RecordType(table string) FormulaType {
	return FormulaType{Kind: KindRecord, Table: table}
}

// TableType returns the type of a set of rows of table.
func TableType(table string) FormulaType {
	return FormulaType{Kind: KindTable, Table: table}
}

// IsNumeric reports whether t is either numeric flow.
func (t FormulaType) IsNumeric() bool {
	return t.Kind == KindDecimal || t.Kind == KindNumber
}

// IsDateTime reports whether t is DateTime or one of its specialisations.
func (t FormulaType) IsDateTime() bool {
	return t.Kind == KindDate || t.Kind == KindDateTime || t.Kind == KindDateTimeNoTimeZone
}

// IsSpecializedDate reports whether t is a specialisation of DateTime.
func (t FormulaType) IsSpecializedDate() bool {
	return t.Kind == KindDate || t.Kind == KindDateTimeNoTimeZone
}

func (t FormulaType) String() string {
	switch t.Kind {
	case KindOptionSet:
		return fmt.Sprintf("OptionSet(%s)", t.OptionSet)
	case KindRecord, KindTable:
		if t.Table != "" {
			return fmt.Sprintf("%s(%s)", t.Kind, t.Table)
		}
	}
	return t.Kind.String()
}
