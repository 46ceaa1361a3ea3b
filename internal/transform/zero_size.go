package transform

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
)

// size is a monomial: a constant times zero or more named overrides whose
// values are only known at pipeline creation.
type size struct {
	k         uint32
	overrides []symbols.SymbolID // sorted
}

func constSize(k uint32) size { return size{k: k} }

func overrideSize(sym symbols.SymbolID) size {
	return size{k: 1, overrides: []symbols.SymbolID{sym}}
}

func (s size) isConst() bool { return len(s.overrides) == 0 }

func (s size) isOne() bool { return s.isConst() && s.k == 1 }

func (s size) equal(o size) bool {
	return s.k == o.k && slices.Equal(s.overrides, o.overrides)
}

func (s size) key() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(s.k), 10))
	for _, o := range s.overrides {
		fmt.Fprintf(&b, "*#%d", o)
	}
	return b.String()
}

func (s size) mul(o size) (size, error) {
	k, err := safecast.Conv[uint32](uint64(s.k) * uint64(o.k))
	if err != nil {
		return size{}, fmt.Errorf("size %d * %d overflows u32: %w", s.k, o.k, err)
	}
	ovs := append(slices.Clone(s.overrides), o.overrides...)
	slices.Sort(ovs)
	return size{k: k, overrides: ovs}, nil
}

// expr builds the u32 value of s. Overrides of type i32 are converted.
func (s size) expr(p *sema.Program) *ast.Expr {
	var out *ast.Expr
	if s.k != 1 || len(s.overrides) == 0 {
		out = ast.NewU32(s.k)
	}
	u32 := p.Types.Builtins().U32
	for _, o := range s.overrides {
		var factor *ast.Expr = ast.NewIdent(o)
		if v := p.Var(o); v == nil || v.Type != u32 {
			factor = ast.NewConstruct(u32, factor)
		}
		if out == nil {
			out = factor
		} else {
			out = ast.NewBinary(ast.BinaryMul, out, factor)
		}
	}
	return out
}
