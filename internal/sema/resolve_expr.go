package sema

import (
	"strings"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/source"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// enter registers e once and links its children back to it.
func (r *resolver) enter(e *ast.Expr) bool {
	if _, seen := r.out.exprTypes[e]; seen {
		r.errorf(diag.SemaSharedNode, e.Span, "%s expression appears more than once in the program", e.Kind)
		return false
	}
	r.out.exprTypes[e] = types.NoTypeID
	if r.stmt != nil {
		r.out.exprStmt[e] = r.stmt
	}
	for _, c := range ast.ExprChildren(e) {
		if c != nil {
			r.out.exprParent[c] = e
		}
	}
	return true
}

// value resolves e in a context that loads its value.
func (r *resolver) value(e *ast.Expr) (types.TypeID, bool) {
	ty, ok := r.expr(e)
	if !ok {
		return ty, false
	}
	if ty == types.NoTypeID {
		r.errorf(diag.SemaTypeMismatch, e.Span, "%s expression does not produce a value", e.Kind)
		return ty, false
	}
	if r.tys.KindOf(ty) == types.KindPointer {
		r.errorf(diag.SemaTypeMismatch, e.Span, "pointers are only valid as atomic builtin arguments")
		return ty, false
	}
	if r.tys.Contains(ty, types.KindAtomic) {
		r.errorf(diag.SemaTypeMismatch, e.Span, "value of type %s can only be accessed with atomic builtins", r.label(ty))
		return ty, false
	}
	return ty, true
}

func (r *resolver) expr(e *ast.Expr) (types.TypeID, bool) {
	if e == nil {
		r.errorf(diag.InternalError, r.spanOfStmt(), "missing expression")
		return types.NoTypeID, false
	}
	switch e.Kind {
	case ast.ExprIdent, ast.ExprIndex, ast.ExprMember:
		return r.reference(e, accessRead)
	}
	if !r.enter(e) {
		return types.NoTypeID, false
	}
	ty, ok := r.exprType(e)
	r.out.exprTypes[e] = ty
	return ty, ok
}

// reference resolves an identifier, index or member chain, recording mode
// on the root variable's use.
func (r *resolver) reference(e *ast.Expr, mode access) (types.TypeID, bool) {
	if e == nil {
		r.errorf(diag.InternalError, r.spanOfStmt(), "missing expression")
		return types.NoTypeID, false
	}
	switch e.Kind {
	case ast.ExprIdent, ast.ExprIndex, ast.ExprMember:
	default:
		return r.expr(e)
	}
	if !r.enter(e) {
		return types.NoTypeID, false
	}
	var (
		ty types.TypeID
		ok bool
	)
	switch d := e.Data.(type) {
	case ast.IdentData:
		ty, ok = r.ident(e, d.Sym, mode)
	case ast.IndexData:
		ty, ok = r.indexExpr(e, d, mode)
	case ast.MemberData:
		ty, ok = r.memberExpr(e, d, mode)
	default:
		r.errorf(diag.InternalError, e.Span, "%s expression carries %T", e.Kind, e.Data)
	}
	r.out.exprTypes[e] = ty
	return ty, ok
}

func (r *resolver) ident(e *ast.Expr, sym symbols.SymbolID, mode access) (types.TypeID, bool) {
	s := r.syms.Get(sym)
	if s == nil {
		r.errorf(diag.SemaUnresolvedSymbol, e.Span, "unknown symbol #%d", sym)
		return types.NoTypeID, false
	}
	if !s.Kind.IsValue() {
		r.errorf(diag.SemaWrongSymbolKind, e.Span, "%s %s is not a value", s.Kind, s.Name)
		return types.NoTypeID, false
	}
	v := r.out.vars[sym]
	if v == nil {
		r.errorf(diag.SemaUnresolvedSymbol, e.Span, "%s is not declared", s.Name)
		return types.NoTypeID, false
	}
	if v.IsLocal() && !r.live[sym] {
		r.errorf(diag.SemaUnresolvedSymbol, e.Span, "%s is not in scope", s.Name)
		return types.NoTypeID, false
	}
	if v.Kind == symbols.SymbolConst && r.constState[sym] == constStateUnvisited {
		if c, ok := r.out.decls[sym].(*ast.Const); ok {
			r.checkConst(c)
		}
	}
	v.Users = append(v.Users, Use{
		Expr:  e,
		Stmt:  r.stmt,
		Func:  r.fn,
		Read:  mode&accessRead != 0,
		Write: mode&accessWrite != 0,
	})
	if v.Global != nil && r.info != nil {
		r.info.Globals = appendUnique(r.info.Globals, sym)
		if mode&accessWrite != 0 {
			r.info.Writes = appendUnique(r.info.Writes, sym)
		}
	}
	return v.Type, v.Type != types.NoTypeID
}

func (r *resolver) indexExpr(e *ast.Expr, d ast.IndexData, mode access) (types.TypeID, bool) {
	bt, bok := r.reference(d.Base, mode)
	it, iok := r.value(d.Index)
	if !bok || !iok {
		return types.NoTypeID, false
	}
	if !r.isIntegerScalar(it) {
		r.errorf(diag.SemaInvalidIndex, d.Index.Span, "index must be i32 or u32, not %s", r.label(it))
		return types.NoTypeID, false
	}
	tt, _ := r.tys.Lookup(bt)
	if tt.Kind != types.KindArray && tt.Kind != types.KindVector {
		r.errorf(diag.SemaInvalidIndex, e.Span, "cannot index a value of type %s", r.label(bt))
		return types.NoTypeID, false
	}
	if v, ok := r.out.EvalInt(d.Index); ok {
		bounded := tt.Kind == types.KindVector || tt.Length == types.ArrayConst
		if v < 0 || (bounded && v >= int64(tt.Count)) {
			r.errorf(diag.SemaInvalidIndex, d.Index.Span, "index %d is out of bounds for %s", v, r.label(bt))
			return types.NoTypeID, false
		}
	}
	return tt.Elem, true
}

func (r *resolver) memberExpr(e *ast.Expr, d ast.MemberData, mode access) (types.TypeID, bool) {
	bt, ok := r.reference(d.Base, mode)
	if !ok {
		return types.NoTypeID, false
	}
	tt, _ := r.tys.Lookup(bt)
	switch tt.Kind {
	case types.KindStruct:
		if _, ft, found := r.tys.Field(bt, d.Field); found {
			return ft, true
		}
	case types.KindVector:
		if len(d.Field) == 1 {
			if i := strings.IndexByte("xyzw", d.Field[0]); i >= 0 && uint32(i) < tt.Count {
				return tt.Elem, true
			}
		}
	}
	r.errorf(diag.SemaUnknownMember, e.Span, "%s has no member %s", r.label(bt), d.Field)
	return types.NoTypeID, false
}

func (r *resolver) exprType(e *ast.Expr) (types.TypeID, bool) {
	switch d := e.Data.(type) {
	case ast.LiteralData:
		switch d.Kind {
		case ast.LiteralBool:
			return r.b.Bool, true
		case ast.LiteralI32:
			return r.b.I32, true
		case ast.LiteralU32:
			if d.Int < 0 || d.Int > 0xFFFFFFFF {
				r.errorf(diag.SemaTypeMismatch, e.Span, "literal %d does not fit in u32", d.Int)
				return r.b.U32, false
			}
			return r.b.U32, true
		case ast.LiteralF32:
			return r.b.F32, true
		}
	case ast.UnaryData:
		return r.unaryExpr(e, d)
	case ast.BinaryData:
		lt, lok := r.value(d.Left)
		rt, rok := r.value(d.Right)
		if !lok || !rok {
			return types.NoTypeID, false
		}
		return r.binaryResult(d.Op, lt, rt, e)
	case ast.CallData:
		return r.callExpr(e, d)
	case ast.BuiltinCallData:
		return r.builtinExpr(e, d)
	case ast.BitcastData:
		return r.bitcastExpr(e, d)
	case ast.ConstructData:
		return r.constructExpr(e, d)
	}
	r.errorf(diag.InternalError, e.Span, "%s expression carries %T", e.Kind, e.Data)
	return types.NoTypeID, false
}

func (r *resolver) unaryExpr(e *ast.Expr, d ast.UnaryData) (types.TypeID, bool) {
	if d.Op == ast.UnaryAddrOf {
		return r.addrOf(e, d, accessRead)
	}
	ty, ok := r.value(d.Operand)
	if !ok {
		return types.NoTypeID, false
	}
	switch d.Op {
	case ast.UnaryNeg:
		if r.isNumeric(ty) && r.scalarOf(ty) != r.b.U32 {
			return ty, true
		}
	case ast.UnaryNot:
		if ty == r.b.Bool {
			return ty, true
		}
	case ast.UnaryBitNot:
		if r.isIntegral(ty) {
			return ty, true
		}
	}
	r.errorf(diag.SemaTypeMismatch, e.Span, "operator %s cannot be applied to %s", d.Op, r.label(ty))
	return types.NoTypeID, false
}

// addrOf resolves &operand. The operand must be a reference.
func (r *resolver) addrOf(e *ast.Expr, d ast.UnaryData, mode access) (types.TypeID, bool) {
	if d.Operand == nil {
		r.errorf(diag.InternalError, e.Span, "missing operand")
		return types.NoTypeID, false
	}
	switch d.Operand.Kind {
	case ast.ExprIdent, ast.ExprIndex, ast.ExprMember:
	default:
		r.errorf(diag.SemaTypeMismatch, e.Span, "cannot take the address of a %s expression", d.Operand.Kind)
		r.expr(d.Operand)
		return types.NoTypeID, false
	}
	ty, ok := r.reference(d.Operand, mode)
	if !ok {
		return types.NoTypeID, false
	}
	root, _ := ast.RootIdent(d.Operand)
	sym, _ := root.Ident()
	v := r.out.vars[sym]
	if v == nil || !v.Kind.IsMutable() {
		r.errorf(diag.SemaTypeMismatch, e.Span, "cannot take the address of %s", r.name(sym))
		return types.NoTypeID, false
	}
	return r.tys.Intern(types.MakePointer(v.Space, ty)), true
}

func (r *resolver) binaryResult(op ast.BinaryOp, lt, rt types.TypeID, at *ast.Expr) (types.TypeID, bool) {
	switch {
	case op >= ast.BinaryAdd && op <= ast.BinaryMod:
		if lt == rt && r.isNumeric(lt) {
			return lt, true
		}
	case op == ast.BinaryAnd || op == ast.BinaryOr || op == ast.BinaryXor:
		if lt == rt && (r.isIntegral(lt) || (lt == r.b.Bool && op != ast.BinaryXor)) {
			return lt, true
		}
	case op == ast.BinaryShl || op == ast.BinaryShr:
		if r.isIntegral(lt) && r.scalarOf(rt) == r.b.U32 && r.widthOf(lt) == r.widthOf(rt) {
			return lt, true
		}
	case op == ast.BinaryEq || op == ast.BinaryNe:
		if lt == rt && r.tys.MustLookup(lt).IsScalar() {
			return r.b.Bool, true
		}
	case op.IsComparison():
		if lt == rt && r.tys.MustLookup(lt).IsNumeric() {
			return r.b.Bool, true
		}
	case op.IsLogical():
		if lt == r.b.Bool && rt == r.b.Bool {
			return r.b.Bool, true
		}
	}
	r.errorf(diag.SemaTypeMismatch, at.Span, "operator %s cannot be applied to %s and %s", op, r.label(lt), r.label(rt))
	return types.NoTypeID, false
}

func (r *resolver) callExpr(e *ast.Expr, d ast.CallData) (types.TypeID, bool) {
	argsOK := true
	argTypes := make([]types.TypeID, len(d.Args))
	for i, a := range d.Args {
		ty, ok := r.value(a)
		argTypes[i] = ty
		argsOK = argsOK && ok
	}
	s := r.syms.Get(d.Func)
	if s == nil {
		r.errorf(diag.SemaUnresolvedSymbol, e.Span, "call of unknown symbol #%d", d.Func)
		return types.NoTypeID, false
	}
	callee := r.out.funcs[d.Func]
	if s.Kind != symbols.SymbolFunc {
		r.errorf(diag.SemaWrongSymbolKind, e.Span, "%s %s is not a function", s.Kind, s.Name)
		return types.NoTypeID, false
	}
	if callee == nil {
		r.errorf(diag.SemaUnresolvedSymbol, e.Span, "function %s is not declared", s.Name)
		return types.NoTypeID, false
	}
	fn := callee.Decl
	if fn.IsEntryPoint() {
		r.errorf(diag.SemaWrongSymbolKind, e.Span, "entry point %s cannot be called", s.Name)
		return types.NoTypeID, false
	}
	if r.fn == nil {
		r.errorf(diag.SemaMisplacedStatement, e.Span, "call of %s outside a function body", s.Name)
		return types.NoTypeID, false
	}
	callee.CallSites = append(callee.CallSites, CallSite{Call: e, Stmt: r.stmt, Caller: r.fn})
	r.info.Callees = appendUnique(r.info.Callees, d.Func)
	if len(d.Args) != len(fn.Params) {
		r.errorf(diag.SemaArgumentCount, e.Span, "%s expects %d arguments, got %d", s.Name, len(fn.Params), len(d.Args))
		return fn.Result, false
	}
	if argsOK {
		for i, p := range fn.Params {
			if argTypes[i] != p.Type {
				r.errorf(diag.SemaTypeMismatch, d.Args[i].Span, "argument %d of %s must be %s, not %s",
					i+1, s.Name, r.label(p.Type), r.label(argTypes[i]))
			}
		}
	}
	return fn.Result, true
}

func (r *resolver) builtinExpr(e *ast.Expr, d ast.BuiltinCallData) (types.TypeID, bool) {
	want := map[ast.BuiltinFunc]int{
		ast.BuiltinWorkgroupBarrier: 0,
		ast.BuiltinAtomicLoad:       1,
		ast.BuiltinAtomicStore:      2,
		ast.BuiltinAtomicAdd:        2,
		ast.BuiltinMin:              2,
		ast.BuiltinMax:              2,
	}[d.Func]
	if len(d.Args) != want {
		r.errorf(diag.SemaArgumentCount, e.Span, "%s expects %d arguments, got %d", d.Func, want, len(d.Args))
		for _, a := range d.Args {
			if a != nil {
				r.expr(a)
			}
		}
		return types.NoTypeID, false
	}
	if r.fn == nil {
		r.errorf(diag.SemaMisplacedStatement, e.Span, "call of %s outside a function body", d.Func)
		return types.NoTypeID, false
	}
	switch d.Func {
	case ast.BuiltinWorkgroupBarrier:
		r.info.HasBarrier = true
		return types.NoTypeID, true
	case ast.BuiltinAtomicLoad:
		return r.atomicArg(d.Args[0], accessRead)
	case ast.BuiltinAtomicStore, ast.BuiltinAtomicAdd:
		mode := accessWrite
		if d.Func == ast.BuiltinAtomicAdd {
			mode |= accessRead
		}
		elem, ok := r.atomicArg(d.Args[0], mode)
		vt, vok := r.value(d.Args[1])
		if !ok || !vok {
			return types.NoTypeID, false
		}
		if vt != elem {
			r.errorf(diag.SemaTypeMismatch, d.Args[1].Span, "%s value must be %s, not %s", d.Func, r.label(elem), r.label(vt))
			return types.NoTypeID, false
		}
		if d.Func == ast.BuiltinAtomicStore {
			return types.NoTypeID, true
		}
		return elem, true
	default:
		lt, lok := r.value(d.Args[0])
		rt, rok := r.value(d.Args[1])
		if !lok || !rok {
			return types.NoTypeID, false
		}
		if lt != rt || !r.isNumeric(lt) {
			r.errorf(diag.SemaTypeMismatch, e.Span, "%s cannot be applied to %s and %s", d.Func, r.label(lt), r.label(rt))
			return types.NoTypeID, false
		}
		return lt, true
	}
}

// atomicArg resolves the &x argument of an atomic builtin and returns the
// atomic's element type.
func (r *resolver) atomicArg(arg *ast.Expr, mode access) (types.TypeID, bool) {
	if arg == nil {
		return types.NoTypeID, false
	}
	d, isAddr := arg.Data.(ast.UnaryData)
	if !isAddr || d.Op != ast.UnaryAddrOf {
		r.errorf(diag.SemaTypeMismatch, arg.Span, "atomic builtins take a pointer argument")
		r.expr(arg)
		return types.NoTypeID, false
	}
	if !r.enter(arg) {
		return types.NoTypeID, false
	}
	pt, ok := r.addrOf(arg, d, mode)
	r.out.exprTypes[arg] = pt
	if !ok {
		return types.NoTypeID, false
	}
	ptr := r.tys.MustLookup(pt)
	at, _ := r.tys.Lookup(ptr.Elem)
	if at.Kind != types.KindAtomic {
		r.errorf(diag.SemaTypeMismatch, arg.Span, "atomic builtins need a pointer to an atomic, not %s", r.label(pt))
		return types.NoTypeID, false
	}
	if ptr.Space != types.SpaceWorkgroup && ptr.Space != types.SpaceStorage {
		r.errorf(diag.SemaTypeMismatch, arg.Span, "atomics must live in workgroup or storage memory")
		return types.NoTypeID, false
	}
	if mode&accessWrite != 0 && !r.checkMutableRoot(d.Operand) {
		return types.NoTypeID, false
	}
	return at.Elem, true
}

func (r *resolver) bitcastExpr(e *ast.Expr, d ast.BitcastData) (types.TypeID, bool) {
	vt, ok := r.value(d.Value)
	if !ok {
		return types.NoTypeID, false
	}
	target, tok := r.tys.Lookup(d.Type)
	src := r.tys.MustLookup(vt)
	if tok && r.is32BitShape(target) && r.is32BitShape(src) && r.widthOf(d.Type) == r.widthOf(vt) {
		return d.Type, true
	}
	r.errorf(diag.SemaTypeMismatch, e.Span, "cannot bitcast %s to %s", r.label(vt), r.label(d.Type))
	return types.NoTypeID, false
}

func (r *resolver) constructExpr(e *ast.Expr, d ast.ConstructData) (types.TypeID, bool) {
	argTypes := make([]types.TypeID, len(d.Args))
	argsOK := true
	for i, a := range d.Args {
		ty, ok := r.value(a)
		argTypes[i] = ty
		argsOK = argsOK && ok
	}
	tt, ok := r.tys.Lookup(d.Type)
	if !ok || !r.tys.IsConstructible(d.Type) {
		r.errorf(diag.SemaInvalidType, e.Span, "cannot construct a value of type %s", r.label(d.Type))
		return types.NoTypeID, false
	}
	if !argsOK {
		return d.Type, false
	}
	n := len(d.Args)
	if n == 0 {
		return d.Type, true
	}
	all := func(want types.TypeID) bool {
		for _, at := range argTypes {
			if at != want {
				return false
			}
		}
		return true
	}
	switch tt.Kind {
	case types.KindBool, types.KindI32, types.KindU32, types.KindF32:
		if n == 1 && r.tys.MustLookup(argTypes[0]).IsScalar() {
			return d.Type, true
		}
	case types.KindVector:
		if n == 1 {
			at := r.tys.MustLookup(argTypes[0])
			if argTypes[0] == tt.Elem || (at.Kind == types.KindVector && at.Count == tt.Count) {
				return d.Type, true
			}
		}
		if uint32(n) == tt.Count && all(tt.Elem) {
			return d.Type, true
		}
	case types.KindArray:
		if uint32(n) == tt.Count && all(tt.Elem) {
			return d.Type, true
		}
	case types.KindStruct:
		info, _ := r.tys.StructInfo(d.Type)
		if n == len(info.Fields) {
			match := true
			for i, f := range info.Fields {
				if argTypes[i] != f.Type {
					match = false
				}
			}
			if match {
				return d.Type, true
			}
		}
	}
	r.errorf(diag.SemaArgumentCount, e.Span, "invalid arguments to construct %s", r.label(d.Type))
	return types.NoTypeID, false
}

// Type helpers ----------------------------------------------------------------

func (r *resolver) scalarOf(id types.TypeID) types.TypeID {
	tt, ok := r.tys.Lookup(id)
	if !ok {
		return types.NoTypeID
	}
	if tt.Kind == types.KindVector {
		return tt.Elem
	}
	return id
}

func (r *resolver) widthOf(id types.TypeID) uint32 {
	tt, ok := r.tys.Lookup(id)
	if ok && tt.Kind == types.KindVector {
		return tt.Count
	}
	return 1
}

func (r *resolver) isNumeric(id types.TypeID) bool {
	s := r.scalarOf(id)
	return s == r.b.I32 || s == r.b.U32 || s == r.b.F32
}

func (r *resolver) isIntegral(id types.TypeID) bool {
	return r.isIntegerScalar(r.scalarOf(id))
}

func (r *resolver) is32BitShape(tt types.Type) bool {
	switch tt.Kind {
	case types.KindI32, types.KindU32, types.KindF32:
		return true
	case types.KindVector:
		e := r.tys.KindOf(tt.Elem)
		return e == types.KindI32 || e == types.KindU32 || e == types.KindF32
	}
	return false
}

func (r *resolver) spanOfStmt() (sp source.Span) {
	if r.stmt != nil {
		return r.stmt.Span
	}
	if r.fn != nil {
		return r.fn.Span
	}
	return sp
}

func appendUnique(list []symbols.SymbolID, sym symbols.SymbolID) []symbols.SymbolID {
	for _, s := range list {
		if s == sym {
			return list
		}
	}
	return append(list, sym)
}
