package harness

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
)

// DecodeRow turns a YAML row into a record of table. Column types come
// from md when the table is known; otherwise they are inferred from the
// YAML tags.
func DecodeRow(md metadata.Provider, table string, raw map[string]yaml.Node) (ir.Record, error) {
	var t *metadata.Table
	if md != nil && table != "" {
		t, _ = md.Table(table)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	rec := ir.Record{Table: table, Fields: make(map[string]ir.Value, len(raw))}
	for _, name := range names {
		node := raw[name]
		var col *metadata.Column
		if t != nil {
			c, ok := t.Column(name)
			if !ok {
				return ir.Record{}, fmt.Errorf("column %q is not defined on table %q", name, table)
			}
			col = c
		}
		v, err := decodeColumnValue(md, col, &node)
		if err != nil {
			return ir.Record{}, fmt.Errorf("%s.%s: %w", table, name, err)
		}
		rec.Fields[name] = v
	}
	return rec, nil
}

func decodeColumnValue(md metadata.Provider, col *metadata.Column, node *yaml.Node) (ir.Value, error) {
	if col == nil {
		return ir.DecodeValue(node, ir.TypeBlank)
	}
	switch {
	case col.IsLookup():
		return ir.DecodeValue(node, ir.TypeGuid)
	case col.Type.Kind == ir.KindOptionSet && node.Kind == yaml.ScalarNode && node.Tag != "!!null":
		// Option values may be written by name alone.
		set, ok := md.OptionSet(col.Type.OptionSet)
		if !ok {
			return nil, fmt.Errorf("unknown option set %q", col.Type.OptionSet)
		}
		v, ok := set.Lookup(node.Value)
		if !ok {
			return nil, fmt.Errorf("%q is not an option of %s", node.Value, set.Name)
		}
		return ir.OptionValue{OptionSet: set.Name, Name: node.Value, Value: v}, nil
	}
	return ir.DecodeValue(node, col.Type)
}
