// Package sema resolves an ast.Program into a sema.Program: the tree plus
// the side-table every pass reads (expression types, variable users, call
// sites, the call graph and parent links).
//
// Resolve is also the validity gate for rewritten programs: a committed
// rewrite is fed back through Resolve and any diagnostic it produces is
// treated as an internal error.
package sema
