// Package config loads shaderpipe.toml, the per-project pipeline settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"shaderpipe/internal/diag"
	"shaderpipe/internal/pipeline"
	"shaderpipe/internal/rewrite"
	"shaderpipe/internal/source"
	"shaderpipe/internal/transform"
)

// FileName is the manifest looked up from the working directory upwards.
const FileName = "shaderpipe.toml"

// DefaultSymbolPrefix is prepended to synthesized names unless configured.
const DefaultSymbolPrefix = "tint_"

// Config mirrors shaderpipe.toml.
type Config struct {
	Pipeline         PipelineConfig `toml:"pipeline"`
	SingleEntryPoint EntryConfig    `toml:"single_entry_point"`
	ZeroInit         ZeroInitConfig `toml:"zero_init_workgroup_memory"`
	Cache            CacheConfig    `toml:"cache"`
}

type PipelineConfig struct {
	// Passes in run order; empty runs the default list.
	Passes                 []string `toml:"passes"`
	SymbolPrefix           string   `toml:"symbol_prefix"`
	AllowDisablingAnalysis bool     `toml:"allow_disabling_analysis"`
	MaxDiagnostics         int      `toml:"max_diagnostics"`
	// Jobs bounds parallel lowering; 0 means one job per CPU.
	Jobs int `toml:"jobs"`
}

type EntryConfig struct {
	Name string `toml:"name"`
}

type ZeroInitConfig struct {
	RoutineName string `toml:"routine_name"`
}

type CacheConfig struct {
	Enabled bool `toml:"enabled"`
	// Dir overrides the per-user cache directory; relative paths are
	// relative to the manifest.
	Dir string `toml:"dir"`
}

// Manifest is a loaded shaderpipe.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Default returns the settings used without a manifest.
func Default() Config {
	return Config{
		Pipeline: PipelineConfig{SymbolPrefix: DefaultSymbolPrefix, MaxDiagnostics: 100},
		ZeroInit: ZeroInitConfig{RoutineName: transform.DefaultZeroRoutine},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest manifest above startDir. ok is false when
// there is none; the returned manifest then carries Default settings.
func Discover(startDir string) (*Manifest, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return &Manifest{Config: Default()}, false, nil
	}
	m, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// Load reads and validates the manifest at path. Unset keys keep their
// Default values; unknown keys are rejected.
func Load(path string) (*Manifest, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, cfgErr("%s: failed to parse TOML: %v", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, cfgErr("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	root := filepath.Dir(path)
	if cfg.Cache.Dir != "" && !filepath.IsAbs(cfg.Cache.Dir) {
		cfg.Cache.Dir = filepath.Join(root, filepath.FromSlash(cfg.Cache.Dir))
	}
	return &Manifest{Path: path, Root: root, Config: cfg}, nil
}

// Validate checks values a decoder cannot.
func (c Config) Validate() error {
	if c.Pipeline.Jobs < 0 {
		return cfgErr("[pipeline].jobs must not be negative, got %d", c.Pipeline.Jobs)
	}
	if c.Pipeline.MaxDiagnostics < 0 {
		return cfgErr("[pipeline].max_diagnostics must not be negative, got %d", c.Pipeline.MaxDiagnostics)
	}
	if !isIdent(c.Pipeline.SymbolPrefix, true) {
		return cfgErr("[pipeline].symbol_prefix %q is not an identifier prefix", c.Pipeline.SymbolPrefix)
	}
	if c.SingleEntryPoint.Name != "" && !isIdent(c.SingleEntryPoint.Name, false) {
		return cfgErr("[single_entry_point].name %q is not an identifier", c.SingleEntryPoint.Name)
	}
	if !isIdent(c.ZeroInit.RoutineName, false) {
		return cfgErr("[zero_init_workgroup_memory].routine_name %q is not an identifier", c.ZeroInit.RoutineName)
	}
	_, err := transform.Build(c.Pipeline.Passes, c.PassConfig())
	return err
}

// PassConfig extracts the per-pass settings.
func (c Config) PassConfig() transform.PassConfig {
	return transform.PassConfig{
		EntryPoint:      c.SingleEntryPoint.Name,
		ZeroInitRoutine: c.ZeroInit.RoutineName,
	}
}

// Options builds the pipeline options for one request.
func (c Config) Options() pipeline.Options {
	return pipeline.Options{
		Passes: append([]string(nil), c.Pipeline.Passes...),
		Pass:   c.PassConfig(),
		Rewrite: rewrite.Options{
			SymbolPrefix:           c.Pipeline.SymbolPrefix,
			AllowDisablingAnalysis: c.Pipeline.AllowDisablingAnalysis,
		},
		MaxDiagnostics: c.Pipeline.MaxDiagnostics,
	}
}

func cfgErr(format string, args ...any) error {
	return diag.Errorf(diag.CfgInvalid, source.Span{}, format, args...)
}

// isIdent accepts [A-Za-z_][A-Za-z0-9_]*. A prefix may be empty and may
// not start a name with a digit either.
func isIdent(s string, prefix bool) bool {
	if s == "" {
		return prefix
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
