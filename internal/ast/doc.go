// Package ast holds the program tree the lowering pipeline rewrites.
//
// Nodes follow a Kind + Data layout: Expr and Stmt carry a kind tag and a
// kind-specific payload. Children are owned by their parent and identified
// by pointer; a node pointer appears at most once in a Program. Names live
// in symbols.Table and types in types.Interner, so the tree itself only
// stores IDs.
//
// The tree is treated as immutable once resolved. Passes never edit it in
// place; they describe edits to a rewrite.Context which clones the tree.
package ast
