// Package harness runs formula scenarios: YAML files that pair one bound
// expression with the SQL it must compile to and the values it must
// evaluate to.
//
// # Scenario Format
//
//	name: mod_sign
//	description: "Mod takes the sign of the divisor"
//	schema: |
//	  table: item: {
//	    primary_key: "itemid"
//	    columns: {
//	      itemid: {type: "guid"}
//	      price: {type: "decimal"}
//	    }
//	  }
//	table: item
//	function_name: fn_mod
//	expression:
//	  call: Mod
//	  type: Decimal
//	  args:
//	    - {field: price, type: Decimal}
//	    - {lit: -3}
//	data:
//	  item:
//	    rows:
//	      - {itemid: "00000000-0000-7000-8000-000000000001", price: 7}
//	evaluate:
//	  - row: {price: 7}
//	assertions:
//	  - type: compiles
//	  - type: parameters
//	    parameters: [price]
//	  - type: evaluates
//	    step: 0
//	    expect: "-2"
//
// The expression uses the ir.DecodeYAML form. Metadata is inline CUE
// (schema) or a directory of CUE files (schema_dir, relative to the
// scenario file).
//
// # Assertion Types
//
//   - compiles: compilation succeeds
//   - compile_error: compilation fails with the given kind (e.g. E204)
//   - sql_contains, sql_excludes: substring checks on the script
//   - returns: the function's formula type
//   - parameters: the columns read, in parameter order
//   - evaluates: canonical JSON of an evaluate step's value
//   - eval_error: substring of an evaluate step's error
//   - retrieval_count, retrieval_sql: requests an evaluate step issued
//
// # Determinism
//
// Each scenario runs against a fresh in-memory SQLite database with fixed
// evaluation ids, and retrievals are rendered as the SQL the store runs.
// Snapshot output is therefore stable across runs and suitable for golden
// file comparison (RunWithGolden, RunSuite with a golden directory).
package harness
