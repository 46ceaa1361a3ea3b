package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/cache"
	"shaderpipe/internal/config"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/pipeline"
	"shaderpipe/internal/snapshot"
	"shaderpipe/internal/source"
	"shaderpipe/internal/transform"
	"shaderpipe/internal/version"
)

func newLowerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lower [flags] <unit.snap>...",
		Short: "Run the lowering passes over compilation unit snapshots",
		Long: `Lower resolves each snapshot, runs the configured passes and writes the
lowered unit next to its input (or into --out-dir) as <unit>.lowered.snap.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runLower,
	}
	flags := cmd.Flags()
	flags.StringSlice("passes", nil, "passes in run order (overrides [pipeline].passes)")
	flags.String("entry-point", "", "keep only this entry point")
	flags.Bool("split", false, "lower every entry point as its own unit")
	flags.String("symbol-prefix", "", "prefix for synthesized names")
	flags.String("routine-name", "", "name of the synthesized zero-init routine")
	flags.Bool("allow-disabling-analysis", false, "let passes switch the uniformity lint off")
	flags.Int("jobs", 0, "units lowered in parallel (0 = one per CPU)")
	flags.StringP("out-dir", "o", "", "directory for lowered snapshots")
	flags.String("emit", "snapshot", "output kind (snapshot|dump)")
	flags.Bool("cache", false, "reuse lowering results from the disk cache")
	flags.String("ui", "auto", "progress UI (auto|on|off)")
	return cmd
}

// input is one snapshot read from disk.
type input struct {
	path string
	data []byte
	unit *snapshot.Unit
}

// job is one unit to lower, possibly satisfied from the cache.
type job struct {
	in     *input
	req    *pipeline.Request
	key    cache.Digest
	cached *cache.Entry
	result *pipeline.Result
}

// cacheKey is everything besides the input bytes that changes the output.
type cacheKey struct {
	Tool    string
	Unit    string
	Options pipeline.Options
}

func runLower(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyLowerFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	emit, _ := cmd.Flags().GetString("emit")
	if emit != "snapshot" && emit != "dump" {
		return usageErr("invalid --emit value %q (expected snapshot|dump)", emit)
	}
	split, _ := cmd.Flags().GetBool("split")
	if split && cfg.SingleEntryPoint.Name != "" {
		return usageErr("--split and --entry-point are mutually exclusive")
	}
	uiFlag, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	showTimings, _ := cmd.Root().PersistentFlags().GetBool("timings")
	outDir, _ := cmd.Flags().GetString("out-dir")
	printer, err := newDiagPrinter(cmd)
	if err != nil {
		return err
	}

	var disk *cache.Disk
	if cfg.Cache.Enabled {
		if disk, err = openCache(cfg.Cache, root); err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
	}

	var jobs []*job
	for _, path := range args {
		in, err := readInput(path)
		if err != nil {
			return err
		}
		req := &pipeline.Request{
			Name:    unitName(in),
			Program: in.unit.Program,
			Symbols: in.unit.Symbols,
			Types:   in.unit.Types,
			Options: cfg.Options(),
		}
		reqs := []*pipeline.Request{req}
		if split {
			if reqs, err = pipeline.SplitEntryPoints(req); err != nil {
				printer.failure(req.Name, in.unit.Files, err)
				return fmt.Errorf("%s: cannot split entry points", path)
			}
		}
		for _, r := range reqs {
			jobs = append(jobs, &job{in: in, req: r})
		}
	}

	var pending []*job
	for _, j := range jobs {
		if disk != nil {
			if j.key, err = cache.Key(j.in.data, cacheKey{Tool: version.Version, Unit: j.req.Name, Options: j.req.Options}); err != nil {
				return err
			}
			entry, ok, err := disk.Get(j.key)
			if err != nil && !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "cache: %v\n", err)
			}
			if ok {
				j.cached = entry
				continue
			}
		}
		pending = append(pending, j)
	}

	if err := lowerPending(cmd, pending, cfg, mode, quiet); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	failed := 0
	for _, j := range jobs {
		files := j.in.unit.Files
		switch {
		case j.cached != nil:
			printer.diagnostics(j.req.Name, files, j.cached.Notes)
			lowered, err := snapshot.Unmarshal(j.cached.Snapshot)
			if err != nil {
				return fmt.Errorf("cache entry for %s: %w", j.req.Name, err)
			}
			lowered.Files = files
			dest, err := writeLowered(out, emit, outDir, j.in.path, lowered)
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(stderr, "%s %s%s\n", cacheLabel.Sprint("cached"), j.req.Name, dest)
			}
		case j.result == nil || j.result.Err != nil:
			failed++
			unitErr := fmt.Errorf("%s: not lowered", j.req.Name)
			if j.result != nil {
				printer.diagnostics(j.req.Name, files, j.result.Notes)
				unitErr = j.result.Err
			}
			printer.failure(j.req.Name, files, unitErr)
		default:
			res := j.result
			printer.diagnostics(j.req.Name, files, res.Notes)
			lowered := snapshot.FromProgram(j.req.Name, files, res.Program)
			dest, err := writeLowered(out, emit, outDir, j.in.path, lowered)
			if err != nil {
				return err
			}
			if disk != nil {
				if err := storeEntry(disk, j.key, lowered, res); err != nil && !quiet {
					fmt.Fprintf(stderr, "cache: %v\n", err)
				}
			}
			if !quiet {
				fmt.Fprintf(stderr, "%s %s%s%s\n", okLabel.Sprint("lowered"), j.req.Name, dest, rewrittenSuffix(res.Report))
			}
			if showTimings {
				printStageTimings(stderr, j.req.Name, res.Timings, res.Report)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d units failed to lower", failed, len(jobs))
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	var (
		m   *config.Manifest
		err error
	)
	if path != "" {
		m, err = config.Load(path)
	} else {
		m, _, err = config.Discover(".")
	}
	if err != nil {
		return config.Config{}, "", err
	}
	cfg := m.Config
	cfg.ApplyEnv()
	return cfg, m.Root, nil
}

func applyLowerFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("passes") {
		cfg.Pipeline.Passes, _ = flags.GetStringSlice("passes")
	}
	if flags.Changed("entry-point") {
		cfg.SingleEntryPoint.Name, _ = flags.GetString("entry-point")
	}
	if flags.Changed("symbol-prefix") {
		cfg.Pipeline.SymbolPrefix, _ = flags.GetString("symbol-prefix")
	}
	if flags.Changed("routine-name") {
		cfg.ZeroInit.RoutineName, _ = flags.GetString("routine-name")
	}
	if flags.Changed("allow-disabling-analysis") {
		cfg.Pipeline.AllowDisablingAnalysis, _ = flags.GetBool("allow-disabling-analysis")
	}
	if flags.Changed("jobs") {
		cfg.Pipeline.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("cache") {
		cfg.Cache.Enabled, _ = flags.GetBool("cache")
	}
	if root := cmd.Root().PersistentFlags(); root.Changed("max-diagnostics") {
		cfg.Pipeline.MaxDiagnostics, _ = root.GetInt("max-diagnostics")
	}
}

func lowerPending(cmd *cobra.Command, pending []*job, cfg config.Config, mode uiMode, quiet bool) error {
	if len(pending) == 0 {
		return nil
	}
	reqs := make([]*pipeline.Request, len(pending))
	for i, j := range pending {
		reqs[i] = j.req
	}
	ctx := cmd.Context()
	var (
		results []*pipeline.Result
		err     error
	)
	if !quiet && shouldUseTUI(mode, len(reqs)) {
		title := fmt.Sprintf("lowering %d unit(s)", len(reqs))
		results, err = runAllWithUI(ctx, title, reqs, passCount(cfg), cfg.Pipeline.Jobs)
	} else {
		results, err = pipeline.RunAll(ctx, reqs, cfg.Pipeline.Jobs)
	}
	if err != nil {
		return err
	}
	for i, j := range pending {
		j.result = results[i]
	}
	return nil
}

func passCount(cfg config.Config) int {
	passes, err := transform.Build(cfg.Pipeline.Passes, cfg.PassConfig())
	if err != nil {
		return 0
	}
	return len(passes)
}

func openCache(c config.CacheConfig, root string) (*cache.Disk, error) {
	if c.Dir == "" {
		return cache.OpenDefault("shaderpipe")
	}
	dir := c.Dir
	if !filepath.IsAbs(dir) && root != "" {
		dir = filepath.Join(root, dir)
	}
	return cache.Open(dir)
}

func storeEntry(disk *cache.Disk, key cache.Digest, lowered *snapshot.Unit, res *pipeline.Result) error {
	// Files are restored from the input on a hit.
	bare := *lowered
	bare.Files = nil
	data, err := snapshot.Marshal(&bare)
	if err != nil {
		return err
	}
	e := &cache.Entry{Name: res.Name, Snapshot: data, Notes: res.Notes}
	if res.Report != nil {
		for _, p := range res.Report.Passes {
			e.Passes = append(e.Passes, cache.PassRecord{Name: p.Name, Status: string(p.Status)})
		}
	}
	return disk.Put(key, e)
}

func readInput(path string) (*input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.Errorf(diag.IOReadFailure, source.Span{}, "read %s", path).Wrap(err)
	}
	u, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &input{path: path, data: data, unit: u}, nil
}

func unitName(in *input) string {
	if in.unit.Name != "" {
		return in.unit.Name
	}
	base := filepath.Base(in.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loweredPath names the output file for unit. Entry point suffixes from
// --split ("unit:main") become part of the file name.
func loweredPath(outDir, inputPath, unit string) string {
	if outDir == "" {
		outDir = filepath.Dir(inputPath)
	}
	name := strings.NewReplacer(":", ".", "/", "_", string(filepath.Separator), "_").Replace(unit)
	return filepath.Join(outDir, name+".lowered.snap")
}

// writeLowered emits u and returns a " -> path" suffix for the summary line.
func writeLowered(out io.Writer, emit, outDir, inputPath string, u *snapshot.Unit) (string, error) {
	if emit == "dump" {
		fmt.Fprintf(out, "// %s\n%s", u.Name, ast.Format(u.Program, u.Symbols, u.Types))
		return "", nil
	}
	dest := loweredPath(outDir, inputPath, u.Name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	if err := snapshot.WriteFile(dest, u); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	return " -> " + dest, nil
}

func rewrittenSuffix(r *transform.Report) string {
	if r == nil {
		return ""
	}
	names := r.Rewritten()
	if len(names) == 0 {
		return " (unchanged)"
	}
	return " (rewritten by " + strings.Join(names, ", ") + ")"
}
