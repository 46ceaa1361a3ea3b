package transform

import (
	"slices"

	"shaderpipe/internal/diag"
	"shaderpipe/internal/source"
)

// PassConfig holds the per-pass settings a registry constructor may read.
type PassConfig struct {
	EntryPoint      string
	ZeroInitRoutine string
}

var registry = map[string]func(PassConfig) Pass{
	SingleEntryPoint{}.Name():        func(c PassConfig) Pass { return SingleEntryPoint{EntryPoint: c.EntryPoint} },
	FoldTrivialLets{}.Name():         func(PassConfig) Pass { return FoldTrivialLets{} },
	PromoteModuleState{}.Name():      func(PassConfig) Pass { return PromoteModuleState{} },
	ZeroInitWorkgroupMemory{}.Name(): func(c PassConfig) Pass { return ZeroInitWorkgroupMemory{RoutineName: c.ZeroInitRoutine} },
}

// Names lists the registered pass names in default order.
func Names() []string {
	return []string{
		SingleEntryPoint{}.Name(),
		FoldTrivialLets{}.Name(),
		PromoteModuleState{}.Name(),
		ZeroInitWorkgroupMemory{}.Name(),
	}
}

// Lookup builds the pass registered under name.
func Lookup(name string, cfg PassConfig) (Pass, error) {
	mk, ok := registry[name]
	if !ok {
		return nil, diag.Errorf(diag.CfgUnknownPass, source.Span{}, "unknown pass %q (known: %v)", name, Names())
	}
	return mk(cfg), nil
}

// Build resolves names in order. An empty list selects DefaultPasses.
func Build(names []string, cfg PassConfig) ([]Pass, error) {
	if len(names) == 0 {
		return DefaultPasses(cfg), nil
	}
	out := make([]Pass, 0, len(names))
	for i, name := range names {
		if slices.Contains(names[:i], name) {
			return nil, diag.Errorf(diag.CfgInvalid, source.Span{}, "pass %q listed twice", name)
		}
		p, err := Lookup(name, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// DefaultPasses is the standard lowering order. single_entry_point is
// included only when an entry point is configured.
func DefaultPasses(cfg PassConfig) []Pass {
	var out []Pass
	if cfg.EntryPoint != "" {
		out = append(out, SingleEntryPoint{EntryPoint: cfg.EntryPoint})
	}
	return append(out,
		FoldTrivialLets{},
		PromoteModuleState{},
		ZeroInitWorkgroupMemory{RoutineName: cfg.ZeroInitRoutine},
	)
}
