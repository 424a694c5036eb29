// Package intent implements the rule-based multi-intent slot-filling parser.
//
// A command is tokenized once, intent keywords split the token stream into
// clauses, and every clause is matched against a shared, immutable pattern
// table to fill a parameter set. Clauses that carry enough information are
// normalized and aggregated into a Result that is either empty, a single
// intent, or a Multi intent listing every admitted clause in document order.
//
// Parser values hold no per-call state and may be used concurrently.
package intent
