// Package delegation builds data-service queries from delegated formula
// subtrees.
//
// A rewrite pass upstream replaces sub-expressions a data service can
// evaluate with internal operators: comparisons (__eq, __gt, __in, ...),
// logical folds (__and, __or) and retrievals (__retrieveMultiple,
// __retrieveSingle, __retrieveGUID). The interpreter hands retrieval calls
// to a Builder, which folds the filter argument into a queryir.Filter and
// issues the request to a Retriever.
//
// Filter fragments live only for the duration of one retrieval. They are
// never returned as values.
package delegation
