package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainExpression = "fxsql/expression/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ExpressionID computes a content-addressed ID for a tree compiled under
// the given variant (for example the numeric flow and row-scope table).
// The ID is stable across runs given the same inputs and compiler version.
func ExpressionID(n Node, variant string) (string, error) {
	tree, err := canonicalNode(n)
	if err != nil {
		return "", fmt.Errorf("ExpressionID: %w", err)
	}

	canonical, err := MarshalCanonical(map[string]any{
		"compiler":     CompilerVersion,
		"tree":         tree,
		"tree_version": TreeVersion,
		"variant":      variant,
	})
	if err != nil {
		return "", fmt.Errorf("ExpressionID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainExpression, canonical), nil
}

// MustExpressionID is like ExpressionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustExpressionID(n Node, variant string) string {
	id, err := ExpressionID(n, variant)
	if err != nil {
		panic(err)
	}
	return id
}

// canonicalNode converts a node into plain maps for canonical JSON.
// Spans are excluded: moving a formula within its source must not change
// its identity.
func canonicalNode(n Node) (any, error) {
	switch node := n.(type) {
	case nil:
		return nil, nil
	case *Call:
		args := make([]any, len(node.Args))
		for i, arg := range node.Args {
			a, err := canonicalNode(arg)
			if err != nil {
				return nil, fmt.Errorf("%s arg %d: %w", node.Func, i, err)
			}
			args[i] = a
		}
		return map[string]any{"call": string(node.Func), "type": node.ResultType.String(), "args": args}, nil
	case *Literal:
		return map[string]any{"literal": node.Value, "type": node.ResultType.String()}, nil
	case *FieldAccess:
		from, err := canonicalNode(node.From)
		if err != nil {
			return nil, err
		}
		return map[string]any{"field": node.Field, "from": from, "type": node.ResultType.String()}, nil
	case *Record:
		fields := make([]any, len(node.Fields))
		for i, f := range node.Fields {
			v, err := canonicalNode(f.Value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			fields[i] = map[string]any{"name": f.Name, "value": v}
		}
		return map[string]any{"record": fields, "type": node.ResultType.String()}, nil
	case *Lazy:
		child, err := canonicalNode(node.Child)
		if err != nil {
			return nil, err
		}
		return map[string]any{"lazy": child}, nil
	default:
		return nil, fmt.Errorf("unsupported node type: %T", n)
	}
}
