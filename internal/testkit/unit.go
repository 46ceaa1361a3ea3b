// Package testkit builds compilation units in code for tests and checks
// side-table invariants of resolved programs.
package testkit

import (
	"testing"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/source"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// Unit accumulates the declarations of one compilation unit.
type Unit struct {
	Syms  *symbols.Table
	Types *types.Interner
	B     types.Builtins
	Decls []ast.Decl
}

func NewUnit() *Unit {
	tys := types.NewInterner()
	return &Unit{Syms: symbols.NewTable(), Types: tys, B: tys.Builtins()}
}

// Sym declares a symbol without adding a declaration.
func (u *Unit) Sym(kind symbols.SymbolKind, name string) symbols.SymbolID {
	return u.Syms.Declare(kind, name, source.Span{})
}

func (u *Unit) Array(elem types.TypeID, n uint32) types.TypeID {
	return u.Types.Intern(types.MakeArray(elem, n))
}

func (u *Unit) Atomic(elem types.TypeID) types.TypeID {
	return u.Types.Intern(types.MakeAtomic(elem))
}

// Struct registers a struct type and appends its declaration.
func (u *Unit) Struct(name string, members ...*ast.Member) types.TypeID {
	id := u.Types.RegisterStruct(name)
	fields := make([]types.StructField, len(members))
	for i, m := range members {
		fields[i] = types.StructField{Name: m.Name, Type: m.Type}
	}
	u.Types.SetStructFields(id, fields)
	u.Decls = append(u.Decls, &ast.StructDecl{Sym: u.Sym(symbols.SymbolStruct, name), Type: id, Members: members})
	return id
}

// Global appends a module-scope variable.
func (u *Unit) Global(space types.AddressSpace, name string, ty types.TypeID) symbols.SymbolID {
	sym := u.Sym(symbols.SymbolGlobal, name)
	u.Decls = append(u.Decls, &ast.GlobalVar{Sym: sym, Space: space, Type: ty, ReadWrite: space == types.SpaceStorage})
	return sym
}

// Override appends an override with an optional default.
func (u *Unit) Override(name string, ty types.TypeID, def *ast.Expr) symbols.SymbolID {
	sym := u.Sym(symbols.SymbolOverride, name)
	u.Decls = append(u.Decls, &ast.Override{Sym: sym, Type: ty, Default: def})
	return sym
}

// Const appends a const declaration.
func (u *Unit) Const(name string, ty types.TypeID, value *ast.Expr) symbols.SymbolID {
	sym := u.Sym(symbols.SymbolConst, name)
	u.Decls = append(u.Decls, &ast.Const{Sym: sym, Type: ty, Value: value})
	return sym
}

// Param builds a parameter with a fresh symbol.
func (u *Unit) Param(name string, ty types.TypeID, builtin ast.BuiltinValue) *ast.Param {
	return &ast.Param{Sym: u.Sym(symbols.SymbolParam, name), Type: ty, Builtin: builtin}
}

// LocalIndex builds a @builtin(local_invocation_index) parameter.
func (u *Unit) LocalIndex(name string) *ast.Param {
	return u.Param(name, u.B.U32, ast.BuiltinLocalInvocationIndex)
}

// Func appends a helper function. sym may be NoSymbolID to declare a new one.
func (u *Unit) Func(sym symbols.SymbolID, name string, result types.TypeID, params []*ast.Param, stmts ...*ast.Stmt) *ast.Func {
	if !sym.IsValid() {
		sym = u.Sym(symbols.SymbolFunc, name)
	}
	fn := &ast.Func{Sym: sym, Params: params, Result: result, Body: ast.NewBlock(stmts...)}
	u.Decls = append(u.Decls, fn)
	return fn
}

// Compute appends a compute entry point with workgroup size (x, y, z);
// nil y or z mean 1.
func (u *Unit) Compute(name string, size [3]*ast.Expr, params []*ast.Param, stmts ...*ast.Stmt) *ast.Func {
	fn := &ast.Func{
		Sym:       u.Sym(symbols.SymbolFunc, name),
		Params:    params,
		Body:      ast.NewBlock(stmts...),
		Stage:     ast.StageCompute,
		Workgroup: size,
	}
	u.Decls = append(u.Decls, fn)
	return fn
}

// Size builds a workgroup size from literal dimensions.
func Size(dims ...int64) [3]*ast.Expr {
	var out [3]*ast.Expr
	for i, d := range dims {
		out[i] = ast.NewI32(d)
	}
	return out
}

func (u *Unit) Program() *ast.Program {
	return &ast.Program{Decls: u.Decls}
}

// Resolve resolves the unit as it stands.
func (u *Unit) Resolve() (*sema.Program, error) {
	return sema.Resolve(u.Program(), u.Syms, u.Types, sema.Options{})
}

// MustResolve resolves the unit and fails the test on error.
func (u *Unit) MustResolve(t testing.TB) *sema.Program {
	t.Helper()
	p, err := u.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return p
}

// Dump prints a resolved program.
func Dump(p *sema.Program) string {
	return ast.Format(p.AST, p.Symbols, p.Types)
}

// Ident shortens ast.NewIdent in fixtures.
func Ident(sym symbols.SymbolID) *ast.Expr { return ast.NewIdent(sym) }
