// Package engine interprets delegated formula trees.
//
// A rewrite pass upstream has replaced the sub-expressions a data service
// can evaluate with retrieval operators. The Evaluator walks the rest of
// the tree depth-first, left to right, and hands each retrieval to a
// delegation.Builder, which issues it to the data service.
//
// Retrievals are issued one at a time in evaluation order, each stamped
// with a sequence number from the Evaluator's Clock. The context passed
// to Run is checked before every call; nothing is retried.
//
// Errors come in three kinds:
//   - *RuntimeError: data-dependent failures (divide by zero, type
//     mismatch). IfError and IsError observe these.
//   - *InternalError: a tree the rewrite pass should never produce, such
//     as a filter operator outside a retrieval's filter argument.
//   - collaborator errors, wrapped with %w and never swallowed.
package engine
