package transform

import (
	"context"
	"slices"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/rewrite"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
)

const maxFoldRounds = 32

// FoldTrivialLets inlines let bindings into their uses. A binding whose
// initializer is a bare identifier is folded into every use that no
// intervening write can observe; any other binding is folded only when it
// has a single such use. Initializers with calls or effectful builtins move
// only within their block, past code without calls or module-scope access.
// Folded bindings with no remaining use are removed.
//
// Rounds repeat until nothing folds, so a second run is a no-op.
type FoldTrivialLets struct{}

func (FoldTrivialLets) isPass() {}

func (FoldTrivialLets) Name() string { return "fold_trivial_lets" }

func (FoldTrivialLets) ShouldRun(p *sema.Program) bool {
	for _, fn := range p.AST.Funcs() {
		if len(lets(fn.Body)) > 0 {
			return true
		}
	}
	return false
}

func (FoldTrivialLets) Apply(ctx context.Context, p *sema.Program, env Env) (Outcome, error) {
	cur, rewritten := p, false
	for round := 0; round < maxFoldRounds; round++ {
		c := rewrite.New(cur, env.Options)
		f := &folder{p: cur, c: c, moved: make(map[*ast.Stmt]bool)}
		for _, fn := range cur.AST.Funcs() {
			ls := lets(fn.Body)
			for i := len(ls) - 1; i >= 0; i-- {
				f.fold(ls[i])
			}
		}
		if !c.Changed() {
			break
		}
		next, err := c.Commit(ctx)
		if err != nil {
			return Outcome{}, err
		}
		cur, rewritten = next, true
	}
	if !rewritten {
		return Unchanged(), nil
	}
	return Rewritten(cur), nil
}

func lets(b *ast.Block) []*ast.Stmt {
	var out []*ast.Stmt
	ast.Inspector{Stmt: func(s *ast.Stmt) bool {
		if s.Kind == ast.StmtLet {
			out = append(out, s)
		}
		return true
	}}.WalkBlock(b)
	return out
}

type folder struct {
	p *sema.Program
	c *rewrite.Context
	// moved holds lets whose initializer is cloned to other places this
	// round; uses inside them are judged again next round.
	moved map[*ast.Stmt]bool
}

func (f *folder) fold(let *ast.Stmt) {
	d := let.Data.(ast.LetData)
	v := f.p.Var(d.Sym)
	if v == nil || len(v.Users) == 0 || f.p.EnclosingBlock(let) == nil {
		return
	}
	bare := d.Value.Kind == ast.ExprIdent
	if !bare && len(v.Users) != 1 {
		return
	}
	site := foldSite{effectful: hasEffects(d.Value)}
	site.reads, site.shared = readSet(f.p, d.Value)

	var eligible []*ast.Expr
	for _, u := range v.Users {
		if f.moved[u.Stmt] {
			continue
		}
		if f.canFold(let, u, site) {
			eligible = append(eligible, u.Expr)
		}
	}
	if len(eligible) == 0 {
		return
	}
	for _, use := range eligible {
		f.c.ReplaceExprFunc(use, func() *ast.Expr { return f.c.CloneExpr(d.Value) })
	}
	f.moved[let] = true
	if len(eligible) == len(v.Users) {
		f.c.RemoveStmt(let)
	}
}

type foldSite struct {
	reads     map[symbols.SymbolID]bool
	shared    bool
	effectful bool
}

// canFold reports whether the initializer of let may be evaluated at use
// instead of at let.
func (f *folder) canFold(let *ast.Stmt, use sema.Use, site foldSite) bool {
	p := f.p
	b := p.EnclosingBlock(let)
	if use.Stmt == nil {
		return false
	}
	chain := []*ast.Stmt{use.Stmt}
	for p.EnclosingBlock(chain[0]) != b {
		parent := p.ParentStmt(chain[0])
		if parent == nil {
			return false
		}
		chain = append([]*ast.Stmt{parent}, chain...)
	}
	li, ti := slices.Index(b.Stmts, let), slices.Index(b.Stmts, chain[0])
	if li < 0 || ti <= li {
		return false
	}
	if site.effectful && (len(chain) > 1 || use.Stmt.Kind == ast.StmtFor || shortCircuited(p, use.Expr)) {
		return false
	}

	ef := newEffects(p)
	for _, s := range b.Stmts[li+1 : ti] {
		ef.stmt(s)
	}
walk:
	for i, s := range chain {
		last := i == len(chain)-1
		switch d := s.Data.(type) {
		case ast.ForData:
			ef.stmt(s)
			break walk
		case ast.IfData:
			if last {
				ef.callsBefore(d.Cond, use.Expr)
				break walk
			}
			ef.expr(d.Cond)
			f.prefix(ef, chain[i+1])
		case ast.BlockStmtData:
			f.prefix(ef, chain[i+1])
		default:
			for _, e := range ast.StmtExprs(s) {
				ef.callsBefore(e, use.Expr)
			}
		}
	}

	for sym := range ef.writes {
		if site.reads[sym] {
			return false
		}
	}
	if ef.barrier && site.shared {
		return false
	}
	if site.effectful && (ef.calls || ef.globals) {
		return false
	}
	return true
}

// shortCircuited reports whether e sits in the right operand of && or ||,
// where it may not be evaluated at all.
func shortCircuited(p *sema.Program, e *ast.Expr) bool {
	for child, parent := e, p.ParentExpr(e); parent != nil; child, parent = parent, p.ParentExpr(parent) {
		if d, ok := parent.Data.(ast.BinaryData); ok && d.Op.IsLogical() && d.Right == child {
			return true
		}
	}
	return false
}

// prefix adds the statements that run before next in its block.
func (f *folder) prefix(ef *effects, next *ast.Stmt) {
	b := f.p.EnclosingBlock(next)
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		if s == next {
			return
		}
		ef.stmt(s)
	}
}
