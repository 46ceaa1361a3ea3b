// Package transform holds the lowering passes and the manager that runs
// them in order over a resolved program.
//
// Every pass is a Program to Program step built on internal/rewrite: it
// reads the side-table of its input, records edits and commits them, which
// re-resolves the output. A pass that finds nothing to do returns
// Unchanged. A fatal error from any pass stops the run with no partial
// program.
package transform
