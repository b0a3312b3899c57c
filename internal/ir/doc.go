// Package ir provides the bound expression tree and value types shared by
// the SQL compiler and the delegation interpreter.
//
// This package contains type definitions and their codecs only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// tree the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Node and Value are sealed interfaces; consumers switch exhaustively
//   - Nodes are immutable once built and may outlive a single compile
//   - Decimal values use apd, never float64
//   - Canonical JSON is the only serialization used for content hashing
package ir
