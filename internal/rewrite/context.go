package rewrite

import (
	"fmt"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
)

// Options are the global rewriting options shared by every pass.
type Options struct {
	// SymbolPrefix is prepended to the names of synthesized symbols.
	SymbolPrefix string
	// AllowDisablingAnalysis lets Commit switch the uniformity lint off when
	// it is the only check rejecting the rewritten tree.
	AllowDisablingAnalysis bool
}

type exprEdit struct {
	with    *ast.Expr
	build   func() *ast.Expr
	reached int
}

type stmtEdit struct {
	with    *ast.Stmt
	reached int
}

type declEdit struct {
	with    ast.Decl
	reached int
}

// Context collects the edits of one pass against one source program.
type Context struct {
	src  *sema.Program
	opts Options

	exprs map[*ast.Expr]*exprEdit
	stmts map[*ast.Stmt]*stmtEdit
	decls map[ast.Decl]*declEdit

	blockLists map[*ast.Block]*edits[*ast.Stmt]
	paramLists map[*ast.Func]*edits[*ast.Param]
	argLists   map[*ast.Expr]*edits[*ast.Expr]
	declList   *edits[ast.Decl]

	remap     map[symbols.SymbolID]symbols.SymbolID
	misuse    []diag.Diagnostic
	changed   bool
	committed bool
}

// New starts a rewrite of src.
func New(src *sema.Program, opts Options) *Context {
	return &Context{
		src:        src,
		opts:       opts,
		exprs:      make(map[*ast.Expr]*exprEdit),
		stmts:      make(map[*ast.Stmt]*stmtEdit),
		decls:      make(map[ast.Decl]*declEdit),
		blockLists: make(map[*ast.Block]*edits[*ast.Stmt]),
		paramLists: make(map[*ast.Func]*edits[*ast.Param]),
		argLists:   make(map[*ast.Expr]*edits[*ast.Expr]),
	}
}

// Source returns the program being rewritten. It is read-only; symbols are
// minted through Fresh and FreshFlagged.
func (c *Context) Source() *sema.Program { return c.src }

func (c *Context) Options() Options { return c.opts }

// Changed reports whether any edit has been recorded.
func (c *Context) Changed() bool { return c.changed }

// Fresh mints a synthetic symbol named SymbolPrefix+name. The name is made
// unique across the compilation unit.
func (c *Context) Fresh(kind symbols.SymbolKind, name string) symbols.SymbolID {
	return c.src.Symbols.Fresh(kind, c.opts.SymbolPrefix+name)
}

// FreshFlagged is Fresh with flags set on the new symbol.
func (c *Context) FreshFlagged(kind symbols.SymbolKind, name string, flags symbols.SymbolFlags) symbols.SymbolID {
	sym := c.Fresh(kind, name)
	c.src.Symbols.Mark(sym, flags)
	return sym
}

// ReplaceExpr substitutes with for old in the output. If old is cloned more
// than once, later copies get a deep copy of with.
func (c *Context) ReplaceExpr(old, with *ast.Expr) {
	c.changed = true
	c.exprs[old] = &exprEdit{with: with}
}

// ReplaceExprFunc substitutes old with the result of build, called each time
// old is cloned. build may clone other source nodes, honoring their edits.
func (c *Context) ReplaceExprFunc(old *ast.Expr, build func() *ast.Expr) {
	c.changed = true
	c.exprs[old] = &exprEdit{build: build}
}

// ReplaceStmt substitutes with for old in the output.
func (c *Context) ReplaceStmt(old, with *ast.Stmt) {
	if with == nil {
		c.RemoveStmt(old)
		return
	}
	c.changed = true
	c.stmts[old] = &stmtEdit{with: with}
}

// RemoveStmt drops old from its block, or from its for-loop slot.
func (c *Context) RemoveStmt(old *ast.Stmt) {
	if b := c.src.EnclosingBlock(old); b != nil {
		c.Stmts(b).Remove(old)
		return
	}
	c.changed = true
	c.stmts[old] = &stmtEdit{}
}

// InsertStmtBefore inserts n before anchor in anchor's block.
func (c *Context) InsertStmtBefore(anchor, n *ast.Stmt) {
	b := c.src.EnclosingBlock(anchor)
	if b == nil {
		c.misuse = append(c.misuse, diag.NewError(diag.InternalInvalidRewrite, anchor.Span,
			fmt.Sprintf("cannot insert before a %s statement that is not in a block", anchor.Kind)))
		return
	}
	c.Stmts(b).InsertBefore(anchor, n)
}

// ReplaceDecl substitutes with for old in the output.
func (c *Context) ReplaceDecl(old, with ast.Decl) {
	c.changed = true
	c.decls[old] = &declEdit{with: with}
}

// RemoveDecl drops old from the program.
func (c *Context) RemoveDecl(old ast.Decl) {
	c.Decls().Remove(old)
}

// Stmts returns the statement list of the source block b.
func (c *Context) Stmts(b *ast.Block) List[*ast.Stmt] {
	ed := c.blockLists[b]
	if ed == nil {
		ed = newEdits[*ast.Stmt]()
		c.blockLists[b] = ed
	}
	return List[*ast.Stmt]{c: c, ed: ed}
}

// Params returns the parameter list of the source function fn.
func (c *Context) Params(fn *ast.Func) List[*ast.Param] {
	ed := c.paramLists[fn]
	if ed == nil {
		ed = newEdits[*ast.Param]()
		c.paramLists[fn] = ed
	}
	return List[*ast.Param]{c: c, ed: ed}
}

// Args returns the argument list of the source call expression call.
func (c *Context) Args(call *ast.Expr) List[*ast.Expr] {
	ed := c.argLists[call]
	if ed == nil {
		ed = newEdits[*ast.Expr]()
		c.argLists[call] = ed
	}
	return List[*ast.Expr]{c: c, ed: ed}
}

// Decls returns the declaration list of the program.
func (c *Context) Decls() List[ast.Decl] {
	if c.declList == nil {
		c.declList = newEdits[ast.Decl]()
	}
	return List[ast.Decl]{c: c, ed: c.declList}
}
