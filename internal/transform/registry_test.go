package transform_test

import (
	"context"
	"slices"
	"testing"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/testkit"
	"shaderpipe/internal/transform"
	"shaderpipe/internal/types"
)

func passNames(passes []transform.Pass) []string {
	out := make([]string, len(passes))
	for i, p := range passes {
		out[i] = p.Name()
	}
	return out
}

func TestRegistry(t *testing.T) {
	for _, name := range transform.Names() {
		p, err := transform.Lookup(name, transform.PassConfig{})
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if p.Name() != name {
			t.Fatalf("Lookup(%q) built %q", name, p.Name())
		}
	}
	_, err := transform.Lookup("inline_everything", transform.PassConfig{})
	wantCode(t, err, diag.CfgUnknownPass)
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		cfg   transform.PassConfig
		want  []string
		code  diag.Code
	}{
		{
			name: "defaults",
			want: []string{"fold_trivial_lets", "promote_module_state_to_params", "zero_init_workgroup_memory"},
		},
		{
			name: "defaults with entry point",
			cfg:  transform.PassConfig{EntryPoint: "main"},
			want: []string{"single_entry_point", "fold_trivial_lets", "promote_module_state_to_params", "zero_init_workgroup_memory"},
		},
		{
			name:  "explicit order",
			names: []string{"zero_init_workgroup_memory", "fold_trivial_lets"},
			want:  []string{"zero_init_workgroup_memory", "fold_trivial_lets"},
		},
		{
			name:  "duplicate",
			names: []string{"fold_trivial_lets", "fold_trivial_lets"},
			code:  diag.CfgInvalid,
		},
		{
			name:  "unknown",
			names: []string{"fold_trivial_lets", "nope"},
			code:  diag.CfgUnknownPass,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passes, err := transform.Build(tt.names, tt.cfg)
			if tt.want == nil {
				wantCode(t, err, tt.code)
				return
			}
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if got := passNames(passes); !slices.Equal(got, tt.want) {
				t.Fatalf("passes = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestDefaultPipeline runs the standard pass list over a small kernel.
func TestDefaultPipeline(t *testing.T) {
	u := testkit.NewUnit()
	id := u.Global(types.SpacePrivate, "id", u.B.U32)
	tile := u.Global(types.SpaceWorkgroup, "tile", u.Array(u.B.U32, 64))
	store := u.Func(symbols.NoSymbolID, "store", types.NoTypeID, nil,
		ast.NewAssign(ast.NewIndex(testkit.Ident(tile), testkit.Ident(id)), testkit.Ident(id)))
	idx := u.LocalIndex("idx")
	u.Compute("main", testkit.Size(8, 8), []*ast.Param{idx},
		ast.NewAssign(testkit.Ident(id), testkit.Ident(idx.Sym)),
		ast.NewExprStmt(ast.NewCall(store.Sym)),
	)
	m := transform.NewManager(transform.DefaultPasses(transform.PassConfig{})...)
	out, report, err := m.Run(context.Background(), u.MustResolve(t), env)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := report.Rewritten(); !slices.Equal(got, []string{"promote_module_state_to_params", "zero_init_workgroup_memory"}) {
		t.Fatalf("rewritten = %v", got)
	}
	if err := testkit.CheckInvariants(out); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	checkDump(t, out, lines(
		"var<workgroup> tile : array<u32, 64>;",
		"",
		"fn store(tint_id : u32) {",
		"  tile[tint_id] = tint_id;",
		"}",
		"",
		"fn tint_zero_workgroup_memory(tint_local_idx : u32) {",
		"  if (tint_local_idx < 64u) {",
		"    tile[tint_local_idx] = 0u;",
		"  }",
		"}",
		"",
		"@compute @workgroup_size(8i, 8i)",
		"fn main(@builtin(local_invocation_index) idx : u32) {",
		"  tint_zero_workgroup_memory(idx);",
		"  workgroupBarrier();",
		"  store(idx);",
		"}",
	))
}
