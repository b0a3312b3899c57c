// Package queryir provides the filter fragments and retrieval requests that
// the delegation interpreter hands to a data service.
//
// Filters are built bottom-up from comparison operators folded by AND/OR
// and consumed immediately by one retrieval; they are never a formula
// result.
//
//	[delegated tree] → [queryir.Request] → [querysql] → sqlite / postgres
//	                                     → [Match]    → in-memory rows
//
// SEALED INTERFACES:
//
// Filter and Request are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch
// exhaustively:
//
//	switch f := filter.(type) {
//	case *Condition:
//	    // attribute op value(s)
//	case *Logical:
//	    // AND / OR of children
//	}
//
// Literal operands are ir.Value; attributes are logical column names that
// backends resolve through metadata.
package queryir
