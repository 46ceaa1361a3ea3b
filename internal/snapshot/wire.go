package snapshot

import (
	"fmt"

	"fortio.org/safecast"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/source"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

type declKind uint8

const (
	declFunc declKind = iota + 1
	declGlobal
	declOverride
	declConst
	declStruct
	declAlias
)

// wireDecl is the flat form of every declaration kind. Value holds a global
// initializer, an override default or a const value.
type wireDecl struct {
	Kind      declKind
	Sym       symbols.SymbolID
	Span      source.Span
	Type      types.TypeID       `msgpack:",omitempty"`
	Space     types.AddressSpace `msgpack:",omitempty"`
	Group     uint32             `msgpack:",omitempty"`
	Binding   uint32             `msgpack:",omitempty"`
	ReadWrite bool               `msgpack:",omitempty"`
	Value     *wireExpr          `msgpack:",omitempty"`
	Params    []*ast.Param       `msgpack:",omitempty"`
	Body      *wireBlock         `msgpack:",omitempty"`
	Stage     ast.Stage          `msgpack:",omitempty"`
	Workgroup []*wireExpr        `msgpack:",omitempty"`
	Members   []*ast.Member      `msgpack:",omitempty"`
}

// wireExpr is the flat form of an expression. Operands are positional:
// unary [x], binary [l r], index [base i], member [base], bitcast [v],
// call and construct their arguments.
type wireExpr struct {
	Kind  ast.ExprKind
	Span  source.Span
	Lit   *ast.LiteralData `msgpack:",omitempty"`
	Sym   symbols.SymbolID `msgpack:",omitempty"`
	Op    uint8            `msgpack:",omitempty"`
	Type  types.TypeID     `msgpack:",omitempty"`
	Field string           `msgpack:",omitempty"`
	Args  []*wireExpr      `msgpack:",omitempty"`
}

type wireStmt struct {
	Kind   ast.StmtKind
	Span   source.Span
	Sym    symbols.SymbolID `msgpack:",omitempty"`
	Type   types.TypeID     `msgpack:",omitempty"`
	Op     ast.BinaryOp     `msgpack:",omitempty"`
	Inc    bool             `msgpack:",omitempty"`
	Target *wireExpr        `msgpack:",omitempty"`
	Value  *wireExpr        `msgpack:",omitempty"`
	Init   *wireStmt        `msgpack:",omitempty"`
	Cont   *wireStmt        `msgpack:",omitempty"`
	Then   *wireBlock       `msgpack:",omitempty"`
	Else   *wireBlock       `msgpack:",omitempty"`
}

type wireBlock struct {
	Span  source.Span
	Stmts []*wireStmt
}

// Encoding -------------------------------------------------------------------

func encodeDecl(d ast.Decl) (*wireDecl, error) {
	switch d := d.(type) {
	case *ast.Func:
		wd := &wireDecl{Kind: declFunc, Sym: d.Sym, Span: d.Span, Type: d.Result, Params: d.Params, Body: encodeBlock(d.Body), Stage: d.Stage}
		if d.Stage == ast.StageCompute {
			wd.Workgroup = make([]*wireExpr, len(d.Workgroup))
			for i, e := range d.Workgroup {
				wd.Workgroup[i] = encodeExpr(e)
			}
		}
		return wd, nil
	case *ast.GlobalVar:
		return &wireDecl{Kind: declGlobal, Sym: d.Sym, Span: d.Span, Type: d.Type, Space: d.Space, Group: d.Group, Binding: d.Binding, ReadWrite: d.ReadWrite, Value: encodeExpr(d.Init)}, nil
	case *ast.Override:
		return &wireDecl{Kind: declOverride, Sym: d.Sym, Span: d.Span, Type: d.Type, Value: encodeExpr(d.Default)}, nil
	case *ast.Const:
		return &wireDecl{Kind: declConst, Sym: d.Sym, Span: d.Span, Type: d.Type, Value: encodeExpr(d.Value)}, nil
	case *ast.StructDecl:
		return &wireDecl{Kind: declStruct, Sym: d.Sym, Span: d.Span, Type: d.Type, Members: d.Members}, nil
	case *ast.Alias:
		return &wireDecl{Kind: declAlias, Sym: d.Sym, Span: d.Span, Type: d.Target}, nil
	}
	return nil, fmt.Errorf("snapshot: unsupported declaration %T", d)
}

func encodeBlock(b *ast.Block) *wireBlock {
	if b == nil {
		return nil
	}
	wb := &wireBlock{Span: b.Span, Stmts: make([]*wireStmt, len(b.Stmts))}
	for i, s := range b.Stmts {
		wb.Stmts[i] = encodeStmt(s)
	}
	return wb
}

func encodeStmt(s *ast.Stmt) *wireStmt {
	if s == nil {
		return nil
	}
	ws := &wireStmt{Kind: s.Kind, Span: s.Span}
	switch d := s.Data.(type) {
	case ast.LetData:
		ws.Sym, ws.Type, ws.Value = d.Sym, d.Type, encodeExpr(d.Value)
	case ast.VarData:
		ws.Sym, ws.Type, ws.Value = d.Sym, d.Type, encodeExpr(d.Value)
	case ast.AssignData:
		ws.Op, ws.Target, ws.Value = d.Op, encodeExpr(d.Target), encodeExpr(d.Value)
	case ast.IncDecData:
		ws.Target, ws.Inc = encodeExpr(d.Target), d.Inc
	case ast.ExprStmtData:
		ws.Value = encodeExpr(d.Expr)
	case ast.ReturnData:
		ws.Value = encodeExpr(d.Value)
	case ast.IfData:
		ws.Value, ws.Then, ws.Else = encodeExpr(d.Cond), encodeBlock(d.Then), encodeBlock(d.Else)
	case ast.ForData:
		ws.Init, ws.Value, ws.Cont, ws.Then = encodeStmt(d.Init), encodeExpr(d.Cond), encodeStmt(d.Cont), encodeBlock(d.Body)
	case ast.BlockStmtData:
		ws.Then = encodeBlock(d.Block)
	}
	return ws
}

func encodeExpr(e *ast.Expr) *wireExpr {
	if e == nil {
		return nil
	}
	we := &wireExpr{Kind: e.Kind, Span: e.Span}
	switch d := e.Data.(type) {
	case ast.LiteralData:
		lit := d
		we.Lit = &lit
	case ast.IdentData:
		we.Sym = d.Sym
	case ast.UnaryData:
		we.Op, we.Args = uint8(d.Op), encodeExprs(d.Operand)
	case ast.BinaryData:
		we.Op, we.Args = uint8(d.Op), encodeExprs(d.Left, d.Right)
	case ast.CallData:
		we.Sym, we.Args = d.Func, encodeExprs(d.Args...)
	case ast.BuiltinCallData:
		we.Op, we.Args = uint8(d.Func), encodeExprs(d.Args...)
	case ast.IndexData:
		we.Args = encodeExprs(d.Base, d.Index)
	case ast.MemberData:
		we.Field, we.Args = d.Field, encodeExprs(d.Base)
	case ast.BitcastData:
		we.Type, we.Args = d.Type, encodeExprs(d.Value)
	case ast.ConstructData:
		we.Type, we.Args = d.Type, encodeExprs(d.Args...)
	}
	return we
}

func encodeExprs(es ...*ast.Expr) []*wireExpr {
	if len(es) == 0 {
		return nil
	}
	out := make([]*wireExpr, len(es))
	for i, e := range es {
		out[i] = encodeExpr(e)
	}
	return out
}

// Decoding -------------------------------------------------------------------

// decoder rebuilds tree nodes and rejects IDs outside the unit's tables.
type decoder struct {
	maxSym  symbols.SymbolID
	maxType types.TypeID
}

func newDecoder(syms *symbols.Table, tys *types.Interner) (*decoder, error) {
	ns, err := safecast.Conv[uint32](syms.Len())
	if err != nil {
		return nil, err
	}
	nt, err := safecast.Conv[uint32](tys.Len())
	if err != nil {
		return nil, err
	}
	return &decoder{maxSym: symbols.SymbolID(ns), maxType: types.TypeID(nt)}, nil
}

func (dc *decoder) sym(id symbols.SymbolID) (symbols.SymbolID, error) {
	if !id.IsValid() || id > dc.maxSym {
		return id, fmt.Errorf("symbol #%d out of range (table has %d)", id, dc.maxSym)
	}
	return id, nil
}

// typ accepts NoTypeID; callers that need a type check for it themselves.
func (dc *decoder) typ(id types.TypeID) (types.TypeID, error) {
	if id > dc.maxType {
		return id, fmt.Errorf("type %d out of range (interner has %d)", id, dc.maxType)
	}
	return id, nil
}

func (dc *decoder) decl(wd *wireDecl) (ast.Decl, error) {
	if wd == nil {
		return nil, fmt.Errorf("missing declaration")
	}
	sym, err := dc.sym(wd.Sym)
	if err != nil {
		return nil, err
	}
	ty, err := dc.typ(wd.Type)
	if err != nil {
		return nil, err
	}
	switch wd.Kind {
	case declFunc:
		fn := &ast.Func{Sym: sym, Span: wd.Span, Result: ty, Stage: wd.Stage}
		for _, p := range wd.Params {
			if p == nil {
				return nil, fmt.Errorf("missing parameter")
			}
			if _, err := dc.sym(p.Sym); err != nil {
				return nil, err
			}
			if _, err := dc.typ(p.Type); err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, p)
		}
		if fn.Body, err = dc.block(wd.Body); err != nil {
			return nil, err
		}
		if fn.Body == nil {
			return nil, fmt.Errorf("function %d has no body", sym)
		}
		if len(wd.Workgroup) > len(fn.Workgroup) {
			return nil, fmt.Errorf("function %d has %d workgroup dimensions", sym, len(wd.Workgroup))
		}
		for i, we := range wd.Workgroup {
			if fn.Workgroup[i], err = dc.expr(we); err != nil {
				return nil, err
			}
		}
		return fn, nil
	case declGlobal:
		g := &ast.GlobalVar{Sym: sym, Span: wd.Span, Space: wd.Space, Type: ty, Group: wd.Group, Binding: wd.Binding, ReadWrite: wd.ReadWrite}
		g.Init, err = dc.expr(wd.Value)
		return g, err
	case declOverride:
		o := &ast.Override{Sym: sym, Span: wd.Span, Type: ty}
		o.Default, err = dc.expr(wd.Value)
		return o, err
	case declConst:
		c := &ast.Const{Sym: sym, Span: wd.Span, Type: ty}
		c.Value, err = dc.expr(wd.Value)
		return c, err
	case declStruct:
		for _, m := range wd.Members {
			if m == nil {
				return nil, fmt.Errorf("struct %d: missing member", sym)
			}
			if _, err := dc.typ(m.Type); err != nil {
				return nil, err
			}
		}
		return &ast.StructDecl{Sym: sym, Span: wd.Span, Type: ty, Members: wd.Members}, nil
	case declAlias:
		return &ast.Alias{Sym: sym, Span: wd.Span, Target: ty}, nil
	}
	return nil, fmt.Errorf("unknown declaration kind %d", wd.Kind)
}

func (dc *decoder) block(wb *wireBlock) (*ast.Block, error) {
	if wb == nil {
		return nil, nil
	}
	b := &ast.Block{Span: wb.Span, Stmts: make([]*ast.Stmt, 0, len(wb.Stmts))}
	for _, ws := range wb.Stmts {
		if ws == nil {
			return nil, fmt.Errorf("missing statement")
		}
		s, err := dc.stmt(ws)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, nil
}

func (dc *decoder) stmt(ws *wireStmt) (*ast.Stmt, error) {
	if ws == nil {
		return nil, nil
	}
	var (
		data ast.StmtData
		err  error
	)
	// Each branch reads only the fields its kind encodes.
	switch ws.Kind {
	case ast.StmtLet, ast.StmtVar:
		var sym symbols.SymbolID
		var ty types.TypeID
		var value *ast.Expr
		if sym, err = dc.sym(ws.Sym); err != nil {
			return nil, err
		}
		if ty, err = dc.typ(ws.Type); err != nil {
			return nil, err
		}
		if value, err = dc.expr(ws.Value); err != nil {
			return nil, err
		}
		if ws.Kind == ast.StmtLet {
			if value == nil {
				return nil, fmt.Errorf("let without a value")
			}
			data = ast.LetData{Sym: sym, Type: ty, Value: value}
		} else {
			data = ast.VarData{Sym: sym, Type: ty, Value: value}
		}
	case ast.StmtAssign:
		d := ast.AssignData{Op: ws.Op}
		if d.Target, err = dc.required(ws.Target); err != nil {
			return nil, err
		}
		if d.Value, err = dc.required(ws.Value); err != nil {
			return nil, err
		}
		data = d
	case ast.StmtIncDec:
		d := ast.IncDecData{Inc: ws.Inc}
		if d.Target, err = dc.required(ws.Target); err != nil {
			return nil, err
		}
		data = d
	case ast.StmtExpr:
		d := ast.ExprStmtData{}
		if d.Expr, err = dc.required(ws.Value); err != nil {
			return nil, err
		}
		data = d
	case ast.StmtReturn:
		d := ast.ReturnData{}
		if d.Value, err = dc.expr(ws.Value); err != nil {
			return nil, err
		}
		data = d
	case ast.StmtIf:
		d := ast.IfData{}
		if d.Cond, err = dc.required(ws.Value); err != nil {
			return nil, err
		}
		if d.Then, err = dc.block(ws.Then); err != nil {
			return nil, err
		}
		if d.Then == nil {
			d.Then = &ast.Block{}
		}
		if d.Else, err = dc.block(ws.Else); err != nil {
			return nil, err
		}
		data = d
	case ast.StmtFor:
		d := ast.ForData{}
		if d.Init, err = dc.stmt(ws.Init); err != nil {
			return nil, err
		}
		if d.Cond, err = dc.expr(ws.Value); err != nil {
			return nil, err
		}
		if d.Cont, err = dc.stmt(ws.Cont); err != nil {
			return nil, err
		}
		if d.Body, err = dc.block(ws.Then); err != nil {
			return nil, err
		}
		if d.Body == nil {
			d.Body = &ast.Block{}
		}
		data = d
	case ast.StmtBreak:
		data = ast.BreakData{}
	case ast.StmtContinue:
		data = ast.ContinueData{}
	case ast.StmtBlock:
		d := ast.BlockStmtData{}
		if d.Block, err = dc.block(ws.Then); err != nil {
			return nil, err
		}
		if d.Block == nil {
			d.Block = &ast.Block{}
		}
		data = d
	default:
		return nil, fmt.Errorf("unknown statement kind %d", ws.Kind)
	}
	return &ast.Stmt{Kind: ws.Kind, Span: ws.Span, Data: data}, nil
}

func (dc *decoder) required(we *wireExpr) (*ast.Expr, error) {
	if we == nil {
		return nil, fmt.Errorf("missing expression")
	}
	return dc.expr(we)
}

func (dc *decoder) args(we *wireExpr, n int) ([]*ast.Expr, error) {
	if n >= 0 && len(we.Args) != n {
		return nil, fmt.Errorf("%s expression has %d operands, want %d", we.Kind, len(we.Args), n)
	}
	out := make([]*ast.Expr, len(we.Args))
	for i, a := range we.Args {
		e, err := dc.required(a)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (dc *decoder) expr(we *wireExpr) (*ast.Expr, error) {
	if we == nil {
		return nil, nil
	}
	var data ast.ExprData
	switch we.Kind {
	case ast.ExprLiteral:
		if we.Lit == nil {
			return nil, fmt.Errorf("literal without a value")
		}
		data = *we.Lit
	case ast.ExprIdent:
		sym, err := dc.sym(we.Sym)
		if err != nil {
			return nil, err
		}
		data = ast.IdentData{Sym: sym}
	case ast.ExprUnary:
		ops, err := dc.args(we, 1)
		if err != nil {
			return nil, err
		}
		data = ast.UnaryData{Op: ast.UnaryOp(we.Op), Operand: ops[0]}
	case ast.ExprBinary:
		ops, err := dc.args(we, 2)
		if err != nil {
			return nil, err
		}
		data = ast.BinaryData{Op: ast.BinaryOp(we.Op), Left: ops[0], Right: ops[1]}
	case ast.ExprCall:
		sym, err := dc.sym(we.Sym)
		if err != nil {
			return nil, err
		}
		args, err := dc.args(we, -1)
		if err != nil {
			return nil, err
		}
		data = ast.CallData{Func: sym, Args: args}
	case ast.ExprBuiltin:
		args, err := dc.args(we, -1)
		if err != nil {
			return nil, err
		}
		data = ast.BuiltinCallData{Func: ast.BuiltinFunc(we.Op), Args: args}
	case ast.ExprIndex:
		ops, err := dc.args(we, 2)
		if err != nil {
			return nil, err
		}
		data = ast.IndexData{Base: ops[0], Index: ops[1]}
	case ast.ExprMember:
		ops, err := dc.args(we, 1)
		if err != nil {
			return nil, err
		}
		data = ast.MemberData{Base: ops[0], Field: we.Field}
	case ast.ExprBitcast, ast.ExprConstruct:
		ty, err := dc.typ(we.Type)
		if err != nil {
			return nil, err
		}
		if ty == types.NoTypeID {
			return nil, fmt.Errorf("%s expression without a type", we.Kind)
		}
		n := -1
		if we.Kind == ast.ExprBitcast {
			n = 1
		}
		args, err := dc.args(we, n)
		if err != nil {
			return nil, err
		}
		if we.Kind == ast.ExprBitcast {
			data = ast.BitcastData{Type: ty, Value: args[0]}
		} else {
			data = ast.ConstructData{Type: ty, Args: args}
		}
	default:
		return nil, fmt.Errorf("unknown expression kind %d", we.Kind)
	}
	return &ast.Expr{Kind: we.Kind, Span: we.Span, Data: data}, nil
}
