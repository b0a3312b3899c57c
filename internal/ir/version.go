package ir

// Version constants for the tree schema and the compiler.
const (
	// TreeVersion is the expression tree schema version.
	TreeVersion = "1"

	// CompilerVersion is embedded in content hashes so generated function
	// names change when emission changes.
	CompilerVersion = "0.3.0"
)
