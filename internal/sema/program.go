package sema

import (
	"shaderpipe/internal/ast"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// Program is a resolved compilation unit. It must be treated as read-only;
// passes build a successor through the rewrite package.
type Program struct {
	AST     *ast.Program
	Symbols *symbols.Table
	Types   *types.Interner

	exprTypes  map[*ast.Expr]types.TypeID
	exprStmt   map[*ast.Expr]*ast.Stmt
	exprParent map[*ast.Expr]*ast.Expr
	stmtBlock  map[*ast.Stmt]*ast.Block
	stmtOwner  map[*ast.Stmt]*ast.Stmt // for-loop init and continuing statements
	stmtFunc   map[*ast.Stmt]*ast.Func
	blockOwner map[*ast.Block]*ast.Stmt
	blockFunc  map[*ast.Block]*ast.Func

	decls       map[symbols.SymbolID]ast.Decl
	vars        map[symbols.SymbolID]*Variable
	funcs       map[symbols.SymbolID]*FuncInfo
	constValues map[symbols.SymbolID]int64
	entryPoints []*ast.Func
}

// Variable describes a value symbol: a module-scope variable, override,
// constant, parameter or local binding.
type Variable struct {
	Sym   symbols.SymbolID
	Kind  symbols.SymbolKind
	Type  types.TypeID
	Space types.AddressSpace // SpaceFunction for params and locals

	Global *ast.GlobalVar
	Param  *ast.Param
	Stmt   *ast.Stmt // declaring let or var
	Func   *ast.Func // owner of params and locals

	Users []Use
}

// IsLocal reports params, lets and vars.
func (v *Variable) IsLocal() bool {
	return v != nil && v.Func != nil
}

// Use is one identifier expression referencing a variable.
type Use struct {
	Expr  *ast.Expr
	Stmt  *ast.Stmt // nil for uses outside a function body
	Func  *ast.Func // nil at module scope
	Read  bool
	Write bool
}

// CallSite is one call of a user function.
type CallSite struct {
	Call   *ast.Expr
	Stmt   *ast.Stmt
	Caller *ast.Func
}

// FuncInfo is the call-graph node of a function.
type FuncInfo struct {
	Decl      *ast.Func
	CallSites []CallSite
	// Callees lists directly called functions in first-call order.
	Callees []symbols.SymbolID
	// Globals lists module-scope variables referenced directly, in first-use order.
	Globals []symbols.SymbolID
	// Writes lists module-scope variables written directly.
	Writes     []symbols.SymbolID
	HasBarrier bool

	transGlobals map[symbols.SymbolID]bool
	transWrites  map[symbols.SymbolID]bool
	transBarrier bool
}

// TypeOf returns the resolved type of e; NoTypeID for void calls.
func (p *Program) TypeOf(e *ast.Expr) types.TypeID {
	return p.exprTypes[e]
}

// Decl returns the module-scope declaration of sym.
func (p *Program) Decl(sym symbols.SymbolID) ast.Decl {
	return p.decls[sym]
}

// Var returns the variable info of a value symbol.
func (p *Program) Var(sym symbols.SymbolID) *Variable {
	return p.vars[sym]
}

// Func returns the call-graph node of a function symbol.
func (p *Program) Func(sym symbols.SymbolID) *FuncInfo {
	return p.funcs[sym]
}

// EntryPoints returns the entry points in declaration order.
func (p *Program) EntryPoints() []*ast.Func {
	return p.entryPoints
}

// EntryPoint returns the entry point with the given name.
func (p *Program) EntryPoint(name string) (*ast.Func, bool) {
	for _, fn := range p.entryPoints {
		if p.Symbols.Name(fn.Sym) == name {
			return fn, true
		}
	}
	return nil, false
}

// EnclosingStmt returns the statement that owns e, or nil for expressions
// outside function bodies.
func (p *Program) EnclosingStmt(e *ast.Expr) *ast.Stmt {
	return p.exprStmt[e]
}

// ParentExpr returns the expression e is a direct operand of.
func (p *Program) ParentExpr(e *ast.Expr) *ast.Expr {
	return p.exprParent[e]
}

// EnclosingBlock returns the block listing s. For-loop init and continuing
// statements have none; see ParentStmt.
func (p *Program) EnclosingBlock(s *ast.Stmt) *ast.Block {
	return p.stmtBlock[s]
}

// ParentStmt returns the compound statement that contains s, or nil when s
// sits directly in a function body.
func (p *Program) ParentStmt(s *ast.Stmt) *ast.Stmt {
	if owner, ok := p.stmtOwner[s]; ok {
		return owner
	}
	if b := p.stmtBlock[s]; b != nil {
		return p.blockOwner[b]
	}
	return nil
}

// BlockOwner returns the statement owning b, or nil for function bodies.
func (p *Program) BlockOwner(b *ast.Block) *ast.Stmt {
	return p.blockOwner[b]
}

// EnclosingFunc returns the function containing s.
func (p *Program) EnclosingFunc(s *ast.Stmt) *ast.Func {
	return p.stmtFunc[s]
}

// BlockFunc returns the function containing b.
func (p *Program) BlockFunc(b *ast.Block) *ast.Func {
	return p.blockFunc[b]
}

// IsTopLevel reports whether s sits directly in its function body.
func (p *Program) IsTopLevel(s *ast.Stmt) bool {
	fn := p.stmtFunc[s]
	return fn != nil && p.stmtBlock[s] == fn.Body
}

// InLoop reports whether s is nested inside a for statement.
func (p *Program) InLoop(s *ast.Stmt) bool {
	for cur := p.ParentStmt(s); cur != nil; cur = p.ParentStmt(cur) {
		if cur.Kind == ast.StmtFor {
			return true
		}
	}
	return false
}

// ConstValue returns the integer value of a const declaration.
func (p *Program) ConstValue(sym symbols.SymbolID) (int64, bool) {
	v, ok := p.constValues[sym]
	return v, ok
}

// IsReachable reports whether the program still contains n as a resolved node.
func (p *Program) IsReachable(e *ast.Expr) bool {
	_, ok := p.exprTypes[e]
	return ok
}

// HasStmt reports whether s belongs to this program.
func (p *Program) HasStmt(s *ast.Stmt) bool {
	_, ok := p.stmtFunc[s]
	return ok
}

// HasBlock reports whether b belongs to this program.
func (p *Program) HasBlock(b *ast.Block) bool {
	_, ok := p.blockFunc[b]
	return ok
}
