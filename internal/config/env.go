package config

import (
	"strings"

	"github.com/xyproto/env/v2"
)

// Environment overrides, applied on top of the manifest and below flags.
const (
	EnvPasses       = "SHADERPIPE_PASSES" // comma separated
	EnvSymbolPrefix = "SHADERPIPE_SYMBOL_PREFIX"
	EnvJobs         = "SHADERPIPE_JOBS"
	EnvCache        = "SHADERPIPE_CACHE"
	EnvCacheDir     = "SHADERPIPE_CACHE_DIR"
)

// ApplyEnv overrides c with the SHADERPIPE_* variables that are set. An
// unparsable SHADERPIPE_JOBS leaves the configured value alone.
func (c *Config) ApplyEnv() {
	if env.Has(EnvPasses) {
		c.Pipeline.Passes = nil
		for _, name := range strings.Split(env.Str(EnvPasses), ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Pipeline.Passes = append(c.Pipeline.Passes, name)
			}
		}
	}
	if env.Has(EnvSymbolPrefix) {
		c.Pipeline.SymbolPrefix = env.Str(EnvSymbolPrefix)
	}
	if env.Has(EnvJobs) {
		c.Pipeline.Jobs = env.Int(EnvJobs, c.Pipeline.Jobs)
	}
	if env.Has(EnvCache) {
		c.Cache.Enabled = env.Bool(EnvCache)
	}
	if dir := env.Str(EnvCacheDir); dir != "" {
		c.Cache.Dir = dir
	}
}
