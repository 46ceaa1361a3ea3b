package ast

// Inspector walks a tree in source order. A callback returning false skips
// the children of that node; nil callbacks always descend.
type Inspector struct {
	Block func(*Block) bool
	Stmt  func(*Stmt) bool
	Expr  func(*Expr) bool
}

// WalkDecl walks the expressions and bodies owned by d.
func (in Inspector) WalkDecl(d Decl) {
	switch d := d.(type) {
	case *Func:
		for _, e := range d.Workgroup {
			in.WalkExpr(e)
		}
		in.WalkBlock(d.Body)
	case *GlobalVar:
		in.WalkExpr(d.Init)
	case *Override:
		in.WalkExpr(d.Default)
	case *Const:
		in.WalkExpr(d.Value)
	}
}

func (in Inspector) WalkBlock(b *Block) {
	if b == nil {
		return
	}
	if in.Block != nil && !in.Block(b) {
		return
	}
	for _, s := range b.Stmts {
		in.WalkStmt(s)
	}
}

func (in Inspector) WalkStmt(s *Stmt) {
	if s == nil {
		return
	}
	if in.Stmt != nil && !in.Stmt(s) {
		return
	}
	switch d := s.Data.(type) {
	case ForData:
		in.WalkStmt(d.Init)
		in.WalkExpr(d.Cond)
		in.WalkStmt(d.Cont)
		in.WalkBlock(d.Body)
		return
	case IfData:
		in.WalkExpr(d.Cond)
		in.WalkBlock(d.Then)
		in.WalkBlock(d.Else)
		return
	case BlockStmtData:
		in.WalkBlock(d.Block)
		return
	}
	for _, e := range StmtExprs(s) {
		in.WalkExpr(e)
	}
}

func (in Inspector) WalkExpr(e *Expr) {
	if e == nil {
		return
	}
	if in.Expr != nil && !in.Expr(e) {
		return
	}
	for _, c := range ExprChildren(e) {
		in.WalkExpr(c)
	}
}

// InspectExpr calls f for e and every expression below it.
func InspectExpr(e *Expr, f func(*Expr) bool) {
	Inspector{Expr: f}.WalkExpr(e)
}

// ExprChildren returns the direct sub-expressions of e in source order.
func ExprChildren(e *Expr) []*Expr {
	if e == nil {
		return nil
	}
	switch d := e.Data.(type) {
	case UnaryData:
		return []*Expr{d.Operand}
	case BinaryData:
		return []*Expr{d.Left, d.Right}
	case CallData:
		return d.Args
	case BuiltinCallData:
		return d.Args
	case IndexData:
		return []*Expr{d.Base, d.Index}
	case MemberData:
		return []*Expr{d.Base}
	case BitcastData:
		return []*Expr{d.Value}
	case ConstructData:
		return d.Args
	}
	return nil
}

// StmtExprs returns the expressions directly owned by s (not those of
// nested statements or blocks). Nil slots are omitted.
func StmtExprs(s *Stmt) []*Expr {
	if s == nil {
		return nil
	}
	var out []*Expr
	add := func(es ...*Expr) {
		for _, e := range es {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	switch d := s.Data.(type) {
	case LetData:
		add(d.Value)
	case VarData:
		add(d.Value)
	case AssignData:
		add(d.Target, d.Value)
	case IncDecData:
		add(d.Target)
	case ExprStmtData:
		add(d.Expr)
	case ReturnData:
		add(d.Value)
	case IfData:
		add(d.Cond)
	case ForData:
		add(d.Cond)
	}
	return out
}

// RootIdent returns the variable an lvalue-like expression (ident, index,
// member, address-of chain) is rooted at.
func RootIdent(e *Expr) (*Expr, bool) {
	for e != nil {
		switch d := e.Data.(type) {
		case IdentData:
			return e, true
		case IndexData:
			e = d.Base
		case MemberData:
			e = d.Base
		case UnaryData:
			if d.Op != UnaryAddrOf {
				return nil, false
			}
			e = d.Operand
		default:
			return nil, false
		}
	}
	return nil, false
}
