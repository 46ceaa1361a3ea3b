package rewrite

import (
	"shaderpipe/internal/ast"
	"shaderpipe/internal/symbols"
)

func (c *Context) sym(id symbols.SymbolID) symbols.SymbolID {
	if to, ok := c.remap[id]; ok {
		return to
	}
	return id
}

// detach deep-copies a node built by a pass without applying any edit.
func detach(e *ast.Expr) *ast.Expr {
	return (&Context{}).CloneExpr(e)
}

func (ed *exprEdit) produce() *ast.Expr {
	ed.reached++
	if ed.build != nil {
		return ed.build()
	}
	if ed.reached > 1 {
		return detach(ed.with)
	}
	return ed.with
}

// CloneExpr deep-copies e, applying recorded edits inside it. Symbols keep
// their identity.
func (c *Context) CloneExpr(e *ast.Expr) *ast.Expr {
	if e == nil {
		return nil
	}
	if ed, ok := c.exprs[e]; ok {
		return ed.produce()
	}
	out := &ast.Expr{Kind: e.Kind, Span: e.Span}
	switch d := e.Data.(type) {
	case ast.IdentData:
		out.Data = ast.IdentData{Sym: c.sym(d.Sym)}
	case ast.UnaryData:
		out.Data = ast.UnaryData{Op: d.Op, Operand: c.CloneExpr(d.Operand)}
	case ast.BinaryData:
		out.Data = ast.BinaryData{Op: d.Op, Left: c.CloneExpr(d.Left), Right: c.CloneExpr(d.Right)}
	case ast.CallData:
		var args []*ast.Expr
		if ed := c.argLists[e]; ed != nil {
			args = ed.apply(d.Args, c.CloneExpr)
		} else {
			args = cloneEach(d.Args, c.CloneExpr)
		}
		out.Data = ast.CallData{Func: c.sym(d.Func), Args: args}
	case ast.BuiltinCallData:
		out.Data = ast.BuiltinCallData{Func: d.Func, Args: cloneEach(d.Args, c.CloneExpr)}
	case ast.IndexData:
		out.Data = ast.IndexData{Base: c.CloneExpr(d.Base), Index: c.CloneExpr(d.Index)}
	case ast.MemberData:
		out.Data = ast.MemberData{Base: c.CloneExpr(d.Base), Field: d.Field}
	case ast.BitcastData:
		out.Data = ast.BitcastData{Type: d.Type, Value: c.CloneExpr(d.Value)}
	case ast.ConstructData:
		out.Data = ast.ConstructData{Type: d.Type, Args: cloneEach(d.Args, c.CloneExpr)}
	default:
		out.Data = e.Data
	}
	return out
}

// CloneStmt deep-copies s, applying recorded edits inside it. A removed
// statement clones to nil.
func (c *Context) CloneStmt(s *ast.Stmt) *ast.Stmt {
	if s == nil {
		return nil
	}
	if ed, ok := c.stmts[s]; ok {
		ed.reached++
		return ed.with
	}
	out := &ast.Stmt{Kind: s.Kind, Span: s.Span}
	switch d := s.Data.(type) {
	case ast.LetData:
		out.Data = ast.LetData{Sym: c.sym(d.Sym), Type: d.Type, Value: c.CloneExpr(d.Value)}
	case ast.VarData:
		out.Data = ast.VarData{Sym: c.sym(d.Sym), Type: d.Type, Value: c.CloneExpr(d.Value)}
	case ast.AssignData:
		out.Data = ast.AssignData{Op: d.Op, Target: c.CloneExpr(d.Target), Value: c.CloneExpr(d.Value)}
	case ast.IncDecData:
		out.Data = ast.IncDecData{Target: c.CloneExpr(d.Target), Inc: d.Inc}
	case ast.ExprStmtData:
		out.Data = ast.ExprStmtData{Expr: c.CloneExpr(d.Expr)}
	case ast.ReturnData:
		out.Data = ast.ReturnData{Value: c.CloneExpr(d.Value)}
	case ast.IfData:
		out.Data = ast.IfData{Cond: c.CloneExpr(d.Cond), Then: c.CloneBlock(d.Then), Else: c.CloneBlock(d.Else)}
	case ast.ForData:
		out.Data = ast.ForData{
			Init: c.CloneStmt(d.Init),
			Cond: c.CloneExpr(d.Cond),
			Cont: c.CloneStmt(d.Cont),
			Body: c.CloneBlock(d.Body),
		}
	case ast.BlockStmtData:
		out.Data = ast.BlockStmtData{Block: c.CloneBlock(d.Block)}
	default:
		out.Data = s.Data
	}
	return out
}

// CloneBlock deep-copies b, applying recorded edits inside it.
func (c *Context) CloneBlock(b *ast.Block) *ast.Block {
	if b == nil {
		return nil
	}
	var stmts []*ast.Stmt
	if ed := c.blockLists[b]; ed != nil {
		stmts = ed.apply(b.Stmts, c.CloneStmt)
	} else {
		stmts = cloneEach(b.Stmts, c.CloneStmt)
	}
	if stmts == nil {
		stmts = []*ast.Stmt{}
	}
	return &ast.Block{Stmts: stmts, Span: b.Span}
}

// CloneFreshStmt clones s minting a fresh symbol for every let and var it
// declares; references inside s follow the new symbols.
func (c *Context) CloneFreshStmt(s *ast.Stmt) *ast.Stmt {
	defer c.freshen(func(in ast.Inspector) { in.WalkStmt(s) })()
	return c.CloneStmt(s)
}

// CloneFreshBlock is CloneFreshStmt for a block.
func (c *Context) CloneFreshBlock(b *ast.Block) *ast.Block {
	defer c.freshen(func(in ast.Inspector) { in.WalkBlock(b) })()
	return c.CloneBlock(b)
}

func (c *Context) freshen(walk func(ast.Inspector)) (restore func()) {
	if c.remap == nil {
		c.remap = make(map[symbols.SymbolID]symbols.SymbolID)
	}
	var added []symbols.SymbolID
	walk(ast.Inspector{Stmt: func(s *ast.Stmt) bool {
		if sym, ok := s.Binding(); ok {
			if _, dup := c.remap[sym]; !dup {
				c.remap[sym] = c.src.Symbols.Fresh(c.src.Symbols.Kind(sym), c.src.Symbols.Name(sym))
				added = append(added, sym)
			}
		}
		return true
	}})
	return func() {
		for _, sym := range added {
			delete(c.remap, sym)
		}
	}
}

func (c *Context) cloneParam(p *ast.Param) *ast.Param {
	return &ast.Param{Sym: c.sym(p.Sym), Type: p.Type, Builtin: p.Builtin, Span: p.Span}
}

func (c *Context) cloneDecl(d ast.Decl) ast.Decl {
	if ed, ok := c.decls[d]; ok {
		ed.reached++
		return ed.with
	}
	switch d := d.(type) {
	case *ast.Func:
		fn := &ast.Func{Sym: d.Sym, Span: d.Span, Result: d.Result, Stage: d.Stage}
		for i, e := range d.Workgroup {
			fn.Workgroup[i] = c.CloneExpr(e)
		}
		if ed := c.paramLists[d]; ed != nil {
			fn.Params = ed.apply(d.Params, c.cloneParam)
		} else {
			fn.Params = cloneEach(d.Params, c.cloneParam)
		}
		fn.Body = c.CloneBlock(d.Body)
		return fn
	case *ast.GlobalVar:
		g := *d
		g.Init = c.CloneExpr(d.Init)
		return &g
	case *ast.Override:
		o := *d
		o.Default = c.CloneExpr(d.Default)
		return &o
	case *ast.Const:
		k := *d
		k.Value = c.CloneExpr(d.Value)
		return &k
	case *ast.StructDecl:
		s := *d
		s.Members = make([]*ast.Member, len(d.Members))
		for i, m := range d.Members {
			mc := *m
			s.Members[i] = &mc
		}
		return &s
	case *ast.Alias:
		a := *d
		return &a
	}
	return d
}
