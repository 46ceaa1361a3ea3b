package ast

import (
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// Expression builders ------------------------------------------------------

func NewBool(v bool) *Expr {
	return &Expr{Kind: ExprLiteral, Data: LiteralData{Kind: LiteralBool, Bool: v}}
}

func NewI32(v int64) *Expr {
	return &Expr{Kind: ExprLiteral, Data: LiteralData{Kind: LiteralI32, Int: v}}
}

func NewU32(v uint32) *Expr {
	return &Expr{Kind: ExprLiteral, Data: LiteralData{Kind: LiteralU32, Int: int64(v)}}
}

func NewF32(v float64) *Expr {
	return &Expr{Kind: ExprLiteral, Data: LiteralData{Kind: LiteralF32, Float: v}}
}

func NewIdent(sym symbols.SymbolID) *Expr {
	return &Expr{Kind: ExprIdent, Data: IdentData{Sym: sym}}
}

func NewUnary(op UnaryOp, operand *Expr) *Expr {
	return &Expr{Kind: ExprUnary, Data: UnaryData{Op: op, Operand: operand}}
}

// NewAddrOf builds &operand.
func NewAddrOf(operand *Expr) *Expr {
	return NewUnary(UnaryAddrOf, operand)
}

func NewBinary(op BinaryOp, left, right *Expr) *Expr {
	return &Expr{Kind: ExprBinary, Data: BinaryData{Op: op, Left: left, Right: right}}
}

func NewCall(fn symbols.SymbolID, args ...*Expr) *Expr {
	return &Expr{Kind: ExprCall, Data: CallData{Func: fn, Args: args}}
}

func NewBuiltinCall(fn BuiltinFunc, args ...*Expr) *Expr {
	return &Expr{Kind: ExprBuiltin, Data: BuiltinCallData{Func: fn, Args: args}}
}

func NewIndex(base, index *Expr) *Expr {
	return &Expr{Kind: ExprIndex, Data: IndexData{Base: base, Index: index}}
}

func NewMember(base *Expr, field string) *Expr {
	return &Expr{Kind: ExprMember, Data: MemberData{Base: base, Field: field}}
}

func NewBitcast(ty types.TypeID, value *Expr) *Expr {
	return &Expr{Kind: ExprBitcast, Data: BitcastData{Type: ty, Value: value}}
}

// NewConstruct builds ty(args...); with no args it is the zero value of ty.
func NewConstruct(ty types.TypeID, args ...*Expr) *Expr {
	return &Expr{Kind: ExprConstruct, Data: ConstructData{Type: ty, Args: args}}
}

// Statement builders -------------------------------------------------------

func NewLet(sym symbols.SymbolID, ty types.TypeID, value *Expr) *Stmt {
	return &Stmt{Kind: StmtLet, Data: LetData{Sym: sym, Type: ty, Value: value}}
}

func NewVar(sym symbols.SymbolID, ty types.TypeID, value *Expr) *Stmt {
	return &Stmt{Kind: StmtVar, Data: VarData{Sym: sym, Type: ty, Value: value}}
}

func NewAssign(target, value *Expr) *Stmt {
	return &Stmt{Kind: StmtAssign, Data: AssignData{Target: target, Value: value}}
}

// NewCompoundAssign builds target op= value.
func NewCompoundAssign(op BinaryOp, target, value *Expr) *Stmt {
	return &Stmt{Kind: StmtAssign, Data: AssignData{Op: op, Target: target, Value: value}}
}

func NewIncDec(target *Expr, inc bool) *Stmt {
	return &Stmt{Kind: StmtIncDec, Data: IncDecData{Target: target, Inc: inc}}
}

func NewExprStmt(e *Expr) *Stmt {
	return &Stmt{Kind: StmtExpr, Data: ExprStmtData{Expr: e}}
}

func NewReturn(value *Expr) *Stmt {
	return &Stmt{Kind: StmtReturn, Data: ReturnData{Value: value}}
}

func NewIf(cond *Expr, then, els *Block) *Stmt {
	return &Stmt{Kind: StmtIf, Data: IfData{Cond: cond, Then: then, Else: els}}
}

func NewFor(init *Stmt, cond *Expr, cont *Stmt, body *Block) *Stmt {
	return &Stmt{Kind: StmtFor, Data: ForData{Init: init, Cond: cond, Cont: cont, Body: body}}
}

func NewBreak() *Stmt {
	return &Stmt{Kind: StmtBreak, Data: BreakData{}}
}

func NewContinue() *Stmt {
	return &Stmt{Kind: StmtContinue, Data: ContinueData{}}
}

func NewBlockStmt(b *Block) *Stmt {
	return &Stmt{Kind: StmtBlock, Data: BlockStmtData{Block: b}}
}

func NewBlock(stmts ...*Stmt) *Block {
	return &Block{Stmts: stmts}
}
