package ast

import (
	"shaderpipe/internal/source"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// StmtKind enumerates statement kinds.
type StmtKind uint8

const (
	StmtLet StmtKind = iota
	StmtVar
	StmtAssign
	StmtIncDec
	// StmtExpr is a call statement.
	StmtExpr
	StmtReturn
	StmtIf
	StmtFor
	StmtBreak
	StmtContinue
	StmtBlock
)

func (k StmtKind) String() string {
	switch k {
	case StmtLet:
		return "Let"
	case StmtVar:
		return "Var"
	case StmtAssign:
		return "Assign"
	case StmtIncDec:
		return "IncDec"
	case StmtExpr:
		return "Expr"
	case StmtReturn:
		return "Return"
	case StmtIf:
		return "If"
	case StmtFor:
		return "For"
	case StmtBreak:
		return "Break"
	case StmtContinue:
		return "Continue"
	case StmtBlock:
		return "Block"
	default:
		return "Unknown"
	}
}

// Stmt is a statement node.
type Stmt struct {
	Kind StmtKind
	Span source.Span
	Data StmtData
}

// StmtData is the interface for statement-specific data.
type StmtData interface {
	stmtData()
}

// LetData holds data for StmtLet. Type is NoTypeID when inferred.
type LetData struct {
	Sym   symbols.SymbolID
	Type  types.TypeID
	Value *Expr
}

func (LetData) stmtData() {}

// VarData holds data for StmtVar. Value may be nil (zero initialized).
type VarData struct {
	Sym   symbols.SymbolID
	Type  types.TypeID
	Value *Expr
}

func (VarData) stmtData() {}

// AssignData holds data for StmtAssign. Op is BinaryNone for `=` and the
// operator of a compound assignment otherwise.
type AssignData struct {
	Op     BinaryOp
	Target *Expr
	Value  *Expr
}

func (AssignData) stmtData() {}

// IncDecData holds data for StmtIncDec.
type IncDecData struct {
	Target *Expr
	Inc    bool
}

func (IncDecData) stmtData() {}

// ExprStmtData holds data for StmtExpr.
type ExprStmtData struct {
	Expr *Expr
}

func (ExprStmtData) stmtData() {}

// ReturnData holds data for StmtReturn.
type ReturnData struct {
	Value *Expr // nil for bare return
}

func (ReturnData) stmtData() {}

// IfData holds data for StmtIf.
type IfData struct {
	Cond *Expr
	Then *Block
	Else *Block // nil if no else branch
}

func (IfData) stmtData() {}

// ForData holds data for StmtFor.
type ForData struct {
	Init *Stmt // nil if none
	Cond *Expr // nil if none
	Cont *Stmt // nil if none
	Body *Block
}

func (ForData) stmtData() {}

type BreakData struct{}

func (BreakData) stmtData() {}

type ContinueData struct{}

func (ContinueData) stmtData() {}

// BlockStmtData holds data for StmtBlock.
type BlockStmtData struct {
	Block *Block
}

func (BlockStmtData) stmtData() {}

// Block is an ordered statement list.
type Block struct {
	Stmts []*Stmt
	Span  source.Span
}

// Binding returns the symbol declared by a let or var statement.
func (s *Stmt) Binding() (symbols.SymbolID, bool) {
	if s == nil {
		return symbols.NoSymbolID, false
	}
	switch d := s.Data.(type) {
	case LetData:
		return d.Sym, true
	case VarData:
		return d.Sym, true
	}
	return symbols.NoSymbolID, false
}
