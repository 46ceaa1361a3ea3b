package rewrite

import (
	"context"
	"fmt"
	"sort"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/source"
	"shaderpipe/internal/trace"
)

// Commit clones the source program honoring every recorded edit and
// resolves the result. It fails with an internal-error diagnostic when an
// edit targets a node that is not part of the source tree, when a source
// node reaches the output without being cloned, or when the output does not
// resolve. A Context can be committed once.
func (c *Context) Commit(ctx context.Context) (out *sema.Program, err error) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeNode, "rewrite.commit", trace.CurrentSpan(ctx))
	defer func() {
		detail := "ok"
		if err != nil {
			detail = "failed"
		}
		span.End(detail)
	}()

	if c.committed {
		return nil, diag.Errorf(diag.InternalInvalidRewrite, source.Span{}, "rewrite context committed twice")
	}
	c.committed = true
	if len(c.misuse) > 0 {
		return nil, diag.AsError(c.misuse...)
	}

	prog := c.build()
	if err := c.checkReached(); err != nil {
		return nil, err
	}
	if err := c.checkDetached(prog); err != nil {
		return nil, err
	}

	out, err = sema.Resolve(prog, c.src.Symbols, c.src.Types, sema.Options{})
	if err != nil && c.opts.AllowDisablingAnalysis && !prog.DisableUniformity {
		if de, ok := diag.FromError(err); ok && de.OnlyCodes(diag.SemaNonUniformBarrier) {
			prog.DisableUniformity = true
			span.WithExtra("uniformity", "disabled")
			out, err = sema.Resolve(prog, c.src.Symbols, c.src.Types, sema.Options{})
		}
	}
	if err != nil {
		d := diag.NewError(diag.InternalInvalidRewrite, source.Span{}, "rewritten program does not resolve")
		if de, ok := diag.FromError(err); ok {
			for _, cause := range de.Diags {
				d = d.WithNote(cause.Primary, cause.Code.ID()+": "+cause.Message)
			}
		}
		return nil, diag.AsError(d).Wrap(err)
	}
	return out, nil
}

func (c *Context) build() *ast.Program {
	src := c.src.AST
	out := &ast.Program{DisableUniformity: src.DisableUniformity}
	if c.declList != nil {
		out.Decls = c.declList.apply(src.Decls, c.cloneDecl)
	} else {
		out.Decls = cloneEach(src.Decls, c.cloneDecl)
	}
	return out
}

type missedEdit struct {
	span source.Span
	msg  string
}

func (c *Context) checkReached() error {
	var missed []missedEdit
	add := func(sp source.Span, format string, args ...any) {
		missed = append(missed, missedEdit{span: sp, msg: fmt.Sprintf(format, args...)})
	}
	for e, ed := range c.exprs {
		if ed.reached == 0 {
			add(e.Span, "replaced %s expression is not in the program", e.Kind)
		}
	}
	for s, ed := range c.stmts {
		if ed.reached == 0 {
			add(s.Span, "edited %s statement is not in the program", s.Kind)
		}
	}
	for d, ed := range c.decls {
		if ed.reached == 0 {
			add(d.DeclSpan(), "replaced declaration is not in the program")
		}
	}
	for b, ed := range c.blockLists {
		if !ed.reached {
			add(b.Span, "edited block is not in the program")
		}
		for _, s := range ed.missed() {
			add(s.Span, "%s statement anchor is not in its block", s.Kind)
		}
	}
	for fn, ed := range c.paramLists {
		if !ed.reached {
			add(fn.Span, "edited function is not in the program")
		}
		for _, p := range ed.missed() {
			add(p.Span, "parameter anchor is not in its function")
		}
	}
	for call, ed := range c.argLists {
		if !ed.reached {
			add(call.Span, "edited call is not in the program")
		}
		for _, a := range ed.missed() {
			add(a.Span, "argument anchor is not in its call")
		}
	}
	if c.declList != nil {
		for _, d := range c.declList.missed() {
			add(d.DeclSpan(), "declaration anchor is not in the program")
		}
	}
	if len(missed) == 0 {
		return nil
	}
	sort.Slice(missed, func(i, j int) bool {
		if missed[i].span != missed[j].span {
			return missed[i].span.Start < missed[j].span.Start
		}
		return missed[i].msg < missed[j].msg
	})
	d := diag.NewError(diag.InternalUnreachableEdit, missed[0].span, missed[0].msg)
	for _, m := range missed[1:] {
		d = d.WithNote(m.span, m.msg)
	}
	return diag.AsError(d)
}

// checkDetached rejects outputs that share nodes with the source tree.
func (c *Context) checkDetached(prog *ast.Program) error {
	var bad *diag.Error
	fail := func(sp source.Span, format string, args ...any) {
		if bad == nil {
			bad = diag.Errorf(diag.InternalInvalidRewrite, sp, format, args...)
		}
	}
	for _, d := range prog.Decls {
		ast.Inspector{
			Block: func(b *ast.Block) bool {
				if c.src.HasBlock(b) {
					fail(b.Span, "source block reused without cloning")
					return false
				}
				return true
			},
			Stmt: func(s *ast.Stmt) bool {
				if c.src.HasStmt(s) {
					fail(s.Span, "source %s statement reused without cloning", s.Kind)
					return false
				}
				return true
			},
			Expr: func(e *ast.Expr) bool {
				if c.src.IsReachable(e) {
					fail(e.Span, "source %s expression reused without cloning", e.Kind)
					return false
				}
				return true
			},
		}.WalkDecl(d)
	}
	if bad == nil {
		return nil
	}
	return bad
}
