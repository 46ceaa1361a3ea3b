package ast

import (
	"shaderpipe/internal/source"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// ExprKind enumerates expression kinds.
type ExprKind uint8

const (
	ExprLiteral ExprKind = iota
	// ExprIdent references a value symbol.
	ExprIdent
	ExprUnary
	ExprBinary
	// ExprCall calls a user function.
	ExprCall
	// ExprBuiltin calls a builtin function such as workgroupBarrier.
	ExprBuiltin
	ExprIndex
	ExprMember
	ExprBitcast
	// ExprConstruct builds a value of a type; no arguments means the zero value.
	ExprConstruct
)

func (k ExprKind) String() string {
	switch k {
	case ExprLiteral:
		return "Literal"
	case ExprIdent:
		return "Ident"
	case ExprUnary:
		return "Unary"
	case ExprBinary:
		return "Binary"
	case ExprCall:
		return "Call"
	case ExprBuiltin:
		return "Builtin"
	case ExprIndex:
		return "Index"
	case ExprMember:
		return "Member"
	case ExprBitcast:
		return "Bitcast"
	case ExprConstruct:
		return "Construct"
	default:
		return "Unknown"
	}
}

// Expr is an expression node.
type Expr struct {
	Kind ExprKind
	Span source.Span
	Data ExprData
}

// ExprData is the interface for expression-specific data.
type ExprData interface {
	exprData()
}

// LiteralKind enumerates literal value kinds.
type LiteralKind uint8

const (
	LiteralBool LiteralKind = iota
	LiteralI32
	LiteralU32
	LiteralF32
)

// LiteralData holds data for ExprLiteral. Integer literals of both
// signednesses use Int.
type LiteralData struct {
	Kind  LiteralKind
	Bool  bool
	Int   int64
	Float float64
}

func (LiteralData) exprData() {}

// IsZero reports whether the literal is false, 0 or 0.0.
func (d LiteralData) IsZero() bool {
	switch d.Kind {
	case LiteralBool:
		return !d.Bool
	case LiteralF32:
		return d.Float == 0
	default:
		return d.Int == 0
	}
}

// IdentData holds data for ExprIdent.
type IdentData struct {
	Sym symbols.SymbolID
}

func (IdentData) exprData() {}

// UnaryOp enumerates unary operators.
type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryBitNot
	UnaryAddrOf
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryNeg:
		return "-"
	case UnaryNot:
		return "!"
	case UnaryBitNot:
		return "~"
	case UnaryAddrOf:
		return "&"
	}
	return "?"
}

// UnaryData holds data for ExprUnary.
type UnaryData struct {
	Op      UnaryOp
	Operand *Expr
}

func (UnaryData) exprData() {}

// BinaryOp enumerates binary operators. BinaryNone is only meaningful as
// the operator of a plain assignment.
type BinaryOp uint8

const (
	BinaryNone BinaryOp = iota
	BinaryAdd
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMod
	BinaryAnd
	BinaryOr
	BinaryXor
	BinaryShl
	BinaryShr
	BinaryEq
	BinaryNe
	BinaryLt
	BinaryLe
	BinaryGt
	BinaryGe
	BinaryLogicalAnd
	BinaryLogicalOr
)

var binaryOpText = [...]string{
	BinaryNone:       "",
	BinaryAdd:        "+",
	BinarySub:        "-",
	BinaryMul:        "*",
	BinaryDiv:        "/",
	BinaryMod:        "%",
	BinaryAnd:        "&",
	BinaryOr:         "|",
	BinaryXor:        "^",
	BinaryShl:        "<<",
	BinaryShr:        ">>",
	BinaryEq:         "==",
	BinaryNe:         "!=",
	BinaryLt:         "<",
	BinaryLe:         "<=",
	BinaryGt:         ">",
	BinaryGe:         ">=",
	BinaryLogicalAnd: "&&",
	BinaryLogicalOr:  "||",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return "?"
}

// IsComparison reports ==, !=, <, <=, > and >=.
func (op BinaryOp) IsComparison() bool {
	return op >= BinaryEq && op <= BinaryGe
}

// IsLogical reports && and ||.
func (op BinaryOp) IsLogical() bool {
	return op == BinaryLogicalAnd || op == BinaryLogicalOr
}

// BinaryData holds data for ExprBinary.
type BinaryData struct {
	Op    BinaryOp
	Left  *Expr
	Right *Expr
}

func (BinaryData) exprData() {}

// CallData holds data for ExprCall.
type CallData struct {
	Func symbols.SymbolID
	Args []*Expr
}

func (CallData) exprData() {}

// BuiltinFunc enumerates the builtin functions the pipeline knows about.
type BuiltinFunc uint8

const (
	BuiltinWorkgroupBarrier BuiltinFunc = iota
	BuiltinAtomicLoad
	BuiltinAtomicStore
	BuiltinAtomicAdd
	BuiltinMin
	BuiltinMax
)

func (f BuiltinFunc) String() string {
	switch f {
	case BuiltinWorkgroupBarrier:
		return "workgroupBarrier"
	case BuiltinAtomicLoad:
		return "atomicLoad"
	case BuiltinAtomicStore:
		return "atomicStore"
	case BuiltinAtomicAdd:
		return "atomicAdd"
	case BuiltinMin:
		return "min"
	case BuiltinMax:
		return "max"
	}
	return "unknown"
}

// HasSideEffects reports builtins that write memory or synchronize.
func (f BuiltinFunc) HasSideEffects() bool {
	switch f {
	case BuiltinWorkgroupBarrier, BuiltinAtomicStore, BuiltinAtomicAdd:
		return true
	}
	return false
}

// BuiltinCallData holds data for ExprBuiltin.
type BuiltinCallData struct {
	Func BuiltinFunc
	Args []*Expr
}

func (BuiltinCallData) exprData() {}

// IndexData holds data for ExprIndex.
type IndexData struct {
	Base  *Expr
	Index *Expr
}

func (IndexData) exprData() {}

// MemberData holds data for ExprMember: struct members and single vector
// components (x, y, z, w).
type MemberData struct {
	Base  *Expr
	Field string
}

func (MemberData) exprData() {}

// BitcastData holds data for ExprBitcast.
type BitcastData struct {
	Type  types.TypeID
	Value *Expr
}

func (BitcastData) exprData() {}

// ConstructData holds data for ExprConstruct.
type ConstructData struct {
	Type types.TypeID
	Args []*Expr
}

func (ConstructData) exprData() {}

// Ident returns the symbol of an identifier expression.
func (e *Expr) Ident() (symbols.SymbolID, bool) {
	if e == nil || e.Kind != ExprIdent {
		return symbols.NoSymbolID, false
	}
	d, ok := e.Data.(IdentData)
	return d.Sym, ok
}
