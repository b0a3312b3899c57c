package ir

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DecodeYAML builds an expression tree from its YAML fixture form.
//
// Every node is a mapping with exactly one of the keys call, lit, field,
// record or lazy, plus optional type and span:
//
//	call: Mod
//	type: Decimal
//	span: [0, 9]
//	args:
//	  - {lit: 7, type: Decimal}
//	  - {field: price, type: Decimal}
//
// Types use FormulaType.String() syntax, e.g. "OptionSet(industry)".
func DecodeYAML(data []byte) (Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty expression document")
	}
	return decodeNode(doc.Content[0])
}

// DecodeYAMLNode builds an expression tree from an already parsed YAML node,
// for callers that embed trees in larger documents.
func DecodeYAMLNode(y *yaml.Node) (Node, error) {
	return decodeNode(y)
}

// DecodeValue decodes a scalar YAML node as a value of type t, using the
// literal rules of DecodeYAML. TypeBlank infers the type from the tag.
func DecodeValue(y *yaml.Node, t FormulaType) (Value, error) {
	if t == TypeBlank {
		t = inferLiteralType(y)
	}
	return decodeLiteral(y, t)
}

// ParseType parses the FormulaType.String() form.
func ParseType(s string) (FormulaType, error) {
	s = strings.TrimSpace(s)
	name, arg := s, ""
	if open := strings.IndexByte(s, '('); open >= 0 && strings.HasSuffix(s, ")") {
		name, arg = s[:open], s[open+1:len(s)-1]
	}
	kind, ok := ParseKind(name)
	if !ok {
		return FormulaType{}, fmt.Errorf("unknown type %q", s)
	}
	t := FormulaType{Kind: kind}
	switch kind {
	case KindOptionSet:
		if arg == "" {
			return FormulaType{}, fmt.Errorf("option set type %q needs a name", s)
		}
		t.OptionSet = arg
	case KindRecord, KindTable:
		t.Table = arg
	default:
		if arg != "" {
			return FormulaType{}, fmt.Errorf("type %q takes no argument", s)
		}
	}
	return t, nil
}

func decodeNode(y *yaml.Node) (Node, error) {
	if y.Kind != yaml.MappingNode {
		return nil, yamlErrorf(y, "expression node must be a mapping")
	}

	fields := make(map[string]*yaml.Node, len(y.Content)/2)
	for i := 0; i+1 < len(y.Content); i += 2 {
		fields[y.Content[i].Value] = y.Content[i+1]
	}

	var (
		typ    FormulaType
		hasTyp bool
		span   Span
	)
	if t, ok := fields["type"]; ok {
		parsed, err := ParseType(t.Value)
		if err != nil {
			return nil, yamlErrorf(t, "%v", err)
		}
		typ, hasTyp = parsed, true
	}
	if s, ok := fields["span"]; ok {
		parsed, err := decodeSpan(s)
		if err != nil {
			return nil, err
		}
		span = parsed
	}

	switch {
	case fields["call"] != nil:
		call := &Call{Func: Func(fields["call"].Value), ResultType: typ, Source: span}
		if args, ok := fields["args"]; ok {
			if args.Kind != yaml.SequenceNode {
				return nil, yamlErrorf(args, "args must be a sequence")
			}
			for _, a := range args.Content {
				arg, err := decodeNode(a)
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
			}
		}
		return call, nil

	case fields["lit"] != nil:
		lit := fields["lit"]
		if !hasTyp {
			typ = inferLiteralType(lit)
		}
		v, err := decodeLiteral(lit, typ)
		if err != nil {
			return nil, err
		}
		return &Literal{Value: v, ResultType: typ, Source: span}, nil

	case fields["field"] != nil:
		if !hasTyp {
			return nil, yamlErrorf(y, "field %q needs a type", fields["field"].Value)
		}
		fa := &FieldAccess{Field: fields["field"].Value, ResultType: typ, Source: span}
		if from, ok := fields["from"]; ok {
			parent, err := decodeNode(from)
			if err != nil {
				return nil, err
			}
			fa.From = parent
		}
		return fa, nil

	case fields["record"] != nil:
		rec := &Record{ResultType: typ, Source: span}
		r := fields["record"]
		if r.Kind != yaml.MappingNode {
			return nil, yamlErrorf(r, "record must be a mapping")
		}
		for i := 0; i+1 < len(r.Content); i += 2 {
			v, err := decodeNode(r.Content[i+1])
			if err != nil {
				return nil, err
			}
			rec.Fields = append(rec.Fields, RecordField{Name: r.Content[i].Value, Value: v})
		}
		if !hasTyp {
			rec.ResultType = RecordType("")
		}
		return rec, nil

	case fields["lazy"] != nil:
		child, err := decodeNode(fields["lazy"])
		if err != nil {
			return nil, err
		}
		return &Lazy{Child: child}, nil
	}

	return nil, yamlErrorf(y, "expression node needs one of call, lit, field, record, lazy")
}

func decodeSpan(y *yaml.Node) (Span, error) {
	if y.Kind != yaml.SequenceNode || len(y.Content) != 2 {
		return Span{}, yamlErrorf(y, "span must be [min, lim]")
	}
	lo, err := strconv.Atoi(y.Content[0].Value)
	if err != nil {
		return Span{}, yamlErrorf(y, "span min: %v", err)
	}
	hi, err := strconv.Atoi(y.Content[1].Value)
	if err != nil {
		return Span{}, yamlErrorf(y, "span lim: %v", err)
	}
	return Span{Min: lo, Lim: hi}, nil
}

func inferLiteralType(y *yaml.Node) FormulaType {
	switch y.Tag {
	case "!!null":
		return TypeBlank
	case "!!bool":
		return TypeBoolean
	case "!!int", "!!float":
		return TypeDecimal
	default:
		return TypeString
	}
}

func decodeLiteral(y *yaml.Node, t FormulaType) (Value, error) {
	if y.Tag == "!!null" {
		return Blank{}, nil
	}

	switch t.Kind {
	case KindBlank:
		return Blank{}, nil
	case KindString:
		return String(y.Value), nil
	case KindBoolean:
		b, err := strconv.ParseBool(y.Value)
		if err != nil {
			return nil, yamlErrorf(y, "invalid boolean %q", y.Value)
		}
		return Boolean(b), nil
	case KindDecimal:
		d, err := NewDecimal(y.Value)
		if err != nil {
			return nil, yamlErrorf(y, "%v", err)
		}
		return d, nil
	case KindNumber:
		f, err := strconv.ParseFloat(y.Value, 64)
		if err != nil {
			return nil, yamlErrorf(y, "invalid number %q", y.Value)
		}
		return Number(f), nil
	case KindDate, KindDateTime, KindDateTimeNoTimeZone:
		ts, err := parseDateTime(y.Value, t.Kind)
		if err != nil {
			return nil, yamlErrorf(y, "%v", err)
		}
		return DateTime{Time: ts, Kind: t.Kind}, nil
	case KindGuid:
		id, err := uuid.Parse(y.Value)
		if err != nil {
			return nil, yamlErrorf(y, "invalid guid %q: %v", y.Value, err)
		}
		return Guid(id), nil
	case KindOptionSet:
		var ov struct {
			Name  string `yaml:"name"`
			Value int64  `yaml:"value"`
		}
		if err := y.Decode(&ov); err != nil {
			return nil, yamlErrorf(y, "option value: %v", err)
		}
		return OptionValue{OptionSet: t.OptionSet, Name: ov.Name, Value: ov.Value}, nil
	default:
		return nil, yamlErrorf(y, "literals of type %s are not supported", t)
	}
}

func parseDateTime(s string, kind Kind) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	if kind == KindDate {
		layouts = []string{"2006-01-02"}
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q", kind, s)
}

func yamlErrorf(y *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d col %d: %s", y.Line, y.Column, fmt.Sprintf(format, args...))
}
