// Package rewrite builds a new program from a resolved one plus a set of
// recorded structural edits.
//
// A Context never mutates its source program. Passes record replacements,
// insertions and removals against source nodes, then Commit clones the whole
// tree honoring those edits and resolves the result again. Every node of the
// output is new: source nodes must reach the output through the clone
// functions, never by reference.
package rewrite
