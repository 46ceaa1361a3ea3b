package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// Printer renders a Program as WGSL-like text. The output is meant for
// humans and golden tests; nothing parses it back.
type Printer struct {
	w      io.Writer
	syms   *symbols.Table
	types  *types.Interner
	indent int
	err    error
}

// NewPrinter creates a printer resolving names through syms and types.
func NewPrinter(w io.Writer, syms *symbols.Table, tys *types.Interner) *Printer {
	return &Printer{w: w, syms: syms, types: tys}
}

// Dump writes the program to w.
func Dump(w io.Writer, p *Program, syms *symbols.Table, tys *types.Interner) error {
	return NewPrinter(w, syms, tys).PrintProgram(p)
}

// Format renders the program as a string.
func Format(p *Program, syms *symbols.Table, tys *types.Interner) string {
	var sb strings.Builder
	_ = Dump(&sb, p, syms, tys) //nolint:errcheck // strings.Builder never fails
	return sb.String()
}

// ExprString renders a single expression.
func ExprString(e *Expr, syms *symbols.Table, tys *types.Interner) string {
	var sb strings.Builder
	NewPrinter(&sb, syms, tys).printExpr(e)
	return sb.String()
}

// BlockString renders the statements of a block without braces.
func BlockString(b *Block, syms *symbols.Table, tys *types.Interner) string {
	var sb strings.Builder
	p := NewPrinter(&sb, syms, tys)
	if b != nil {
		for _, s := range b.Stmts {
			p.printStmt(s)
		}
	}
	return sb.String()
}

// PrintProgram prints every declaration, separated by blank lines between
// functions.
func (p *Printer) PrintProgram(prog *Program) error {
	if prog.DisableUniformity {
		p.printf("diagnostic(off, derivative_uniformity);\n\n")
	}
	for i, d := range prog.Decls {
		if _, ok := d.(*Func); ok && i > 0 {
			p.printf("\n")
		}
		p.printDecl(d)
	}
	return p.err
}

func (p *Printer) printDecl(d Decl) {
	switch d := d.(type) {
	case *StructDecl:
		p.printf("struct %s {\n", p.name(d.Sym))
		for _, m := range d.Members {
			p.printf("  ")
			if m.Builtin != BuiltinNone {
				p.printf("@builtin(%s) ", m.Builtin)
			}
			p.printf("%s : %s,\n", m.Name, p.typ(m.Type))
		}
		p.printf("}\n")
	case *Alias:
		p.printf("alias %s = %s;\n", p.name(d.Sym), p.typ(d.Target))
	case *Const:
		p.printf("const %s : %s = ", p.name(d.Sym), p.typ(d.Type))
		p.printExpr(d.Value)
		p.printf(";\n")
	case *Override:
		p.printf("override %s : %s", p.name(d.Sym), p.typ(d.Type))
		if d.Default != nil {
			p.printf(" = ")
			p.printExpr(d.Default)
		}
		p.printf(";\n")
	case *GlobalVar:
		switch d.Space {
		case types.SpaceUniform:
			p.printf("@group(%d) @binding(%d) var<uniform>", d.Group, d.Binding)
		case types.SpaceStorage:
			access := "read"
			if d.ReadWrite {
				access = "read_write"
			}
			p.printf("@group(%d) @binding(%d) var<storage, %s>", d.Group, d.Binding, access)
		default:
			p.printf("var<%s>", d.Space)
		}
		p.printf(" %s : %s", p.name(d.Sym), p.typ(d.Type))
		if d.Init != nil {
			p.printf(" = ")
			p.printExpr(d.Init)
		}
		p.printf(";\n")
	case *Func:
		p.printFunc(d)
	}
}

func (p *Printer) printFunc(fn *Func) {
	if fn.Stage != StageNone {
		p.printf("@%s", fn.Stage)
		if fn.Stage == StageCompute {
			p.printf(" @workgroup_size(")
			for i, e := range fn.Workgroup {
				if e == nil {
					continue
				}
				if i > 0 {
					p.printf(", ")
				}
				p.printExpr(e)
			}
			p.printf(")")
		}
		p.printf("\n")
	}
	p.printf("fn %s(", p.name(fn.Sym))
	for i, prm := range fn.Params {
		if i > 0 {
			p.printf(", ")
		}
		if prm.Builtin != BuiltinNone {
			p.printf("@builtin(%s) ", prm.Builtin)
		}
		p.printf("%s : %s", p.name(prm.Sym), p.typ(prm.Type))
	}
	p.printf(")")
	if fn.Result != types.NoTypeID {
		p.printf(" -> %s", p.typ(fn.Result))
	}
	p.printf(" ")
	p.printBlock(fn.Body)
	p.printf("\n")
}

// printBlock prints "{ ... }" without a trailing newline.
func (p *Printer) printBlock(b *Block) {
	p.printf("{\n")
	p.indent++
	if b != nil {
		for _, s := range b.Stmts {
			p.printStmt(s)
		}
	}
	p.indent--
	p.pad()
	p.printf("}")
}

func (p *Printer) printStmt(s *Stmt) {
	p.pad()
	switch d := s.Data.(type) {
	case IfData:
		p.printIf(d)
		p.printf("\n")
	case ForData:
		p.printf("for (")
		if d.Init != nil {
			p.printSimple(d.Init)
		}
		p.printf("; ")
		if d.Cond != nil {
			p.printExpr(d.Cond)
		}
		p.printf("; ")
		if d.Cont != nil {
			p.printSimple(d.Cont)
		}
		p.printf(") ")
		p.printBlock(d.Body)
		p.printf("\n")
	case BlockStmtData:
		p.printBlock(d.Block)
		p.printf("\n")
	default:
		p.printSimple(s)
		p.printf(";\n")
	}
}

func (p *Printer) printIf(d IfData) {
	p.printf("if (")
	p.printExpr(d.Cond)
	p.printf(") ")
	p.printBlock(d.Then)
	if d.Else == nil {
		return
	}
	p.printf(" else ")
	if len(d.Else.Stmts) == 1 && d.Else.Stmts[0].Kind == StmtIf {
		p.printIf(d.Else.Stmts[0].Data.(IfData))
		return
	}
	p.printBlock(d.Else)
}

// printSimple prints a statement that fits on one line, without ';'.
func (p *Printer) printSimple(s *Stmt) {
	switch d := s.Data.(type) {
	case LetData:
		p.printf("let %s", p.name(d.Sym))
		if d.Type != types.NoTypeID {
			p.printf(" : %s", p.typ(d.Type))
		}
		p.printf(" = ")
		p.printExpr(d.Value)
	case VarData:
		p.printf("var %s", p.name(d.Sym))
		if d.Type != types.NoTypeID {
			p.printf(" : %s", p.typ(d.Type))
		}
		if d.Value != nil {
			p.printf(" = ")
			p.printExpr(d.Value)
		}
	case AssignData:
		p.printExpr(d.Target)
		p.printf(" %s= ", d.Op)
		p.printExpr(d.Value)
	case IncDecData:
		p.printExpr(d.Target)
		if d.Inc {
			p.printf("++")
		} else {
			p.printf("--")
		}
	case ExprStmtData:
		p.printExpr(d.Expr)
	case ReturnData:
		p.printf("return")
		if d.Value != nil {
			p.printf(" ")
			p.printExpr(d.Value)
		}
	case BreakData:
		p.printf("break")
	case ContinueData:
		p.printf("continue")
	default:
		p.printf("<%s>", s.Kind)
	}
}

func (p *Printer) printExpr(e *Expr) {
	if e == nil {
		p.printf("<nil>")
		return
	}
	switch d := e.Data.(type) {
	case LiteralData:
		p.printf("%s", literalText(d))
	case IdentData:
		p.printf("%s", p.name(d.Sym))
	case UnaryData:
		p.printf("%s", d.Op)
		p.printOperand(d.Operand)
	case BinaryData:
		p.printOperand(d.Left)
		p.printf(" %s ", d.Op)
		p.printOperand(d.Right)
	case CallData:
		p.printf("%s", p.name(d.Func))
		p.printArgs(d.Args)
	case BuiltinCallData:
		p.printf("%s", d.Func)
		p.printArgs(d.Args)
	case IndexData:
		p.printOperand(d.Base)
		p.printf("[")
		p.printExpr(d.Index)
		p.printf("]")
	case MemberData:
		p.printOperand(d.Base)
		p.printf(".%s", d.Field)
	case BitcastData:
		p.printf("bitcast<%s>(", p.typ(d.Type))
		p.printExpr(d.Value)
		p.printf(")")
	case ConstructData:
		p.printf("%s", p.typ(d.Type))
		p.printArgs(d.Args)
	default:
		p.printf("<%s>", e.Kind)
	}
}

// printOperand parenthesizes binary expressions nested in other operators.
func (p *Printer) printOperand(e *Expr) {
	if e != nil && e.Kind == ExprBinary {
		p.printf("(")
		p.printExpr(e)
		p.printf(")")
		return
	}
	p.printExpr(e)
}

func (p *Printer) printArgs(args []*Expr) {
	p.printf("(")
	for i, a := range args {
		if i > 0 {
			p.printf(", ")
		}
		p.printExpr(a)
	}
	p.printf(")")
}

func literalText(d LiteralData) string {
	switch d.Kind {
	case LiteralBool:
		return strconv.FormatBool(d.Bool)
	case LiteralI32:
		return strconv.FormatInt(d.Int, 10) + "i"
	case LiteralU32:
		return strconv.FormatInt(d.Int, 10) + "u"
	case LiteralF32:
		s := strconv.FormatFloat(d.Float, 'f', -1, 32)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s + "f"
	}
	return "?"
}

func (p *Printer) name(sym symbols.SymbolID) string {
	return p.syms.Name(sym)
}

func (p *Printer) typ(id types.TypeID) string {
	if p.types == nil {
		return fmt.Sprintf("type#%d", id)
	}
	return p.types.Label(id, p.syms)
}

func (p *Printer) pad() {
	p.printf("%s", strings.Repeat("  ", p.indent))
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
