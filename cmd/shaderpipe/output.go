package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shaderpipe/internal/diag"
	"shaderpipe/internal/diagfmt"
	"shaderpipe/internal/source"
)

var (
	errorLabel = color.New(color.FgRed, color.Bold)
	okLabel    = color.New(color.FgGreen, color.Bold)
	cacheLabel = color.New(color.FgBlue)
)

func usageErr(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// printError is the last-resort renderer used once the command tree has
// returned.
func printError(w io.Writer, err error) {
	if de, ok := diag.FromError(err); ok && len(de.Diags) > 0 {
		fmt.Fprintln(w, diag.FormatShort(de.Diags, nil, true))
		if de.Err != nil {
			fmt.Fprintf(w, "  caused by: %v\n", de.Err)
		}
		return
	}
	fmt.Fprintf(w, "%s %v\n", errorLabel.Sprint("error:"), err)
}

// diagPrinter renders diagnostics in the format picked by --diag-format.
type diagPrinter struct {
	w      io.Writer
	format string
	pretty diagfmt.PrettyOpts
	json   diagfmt.JSONOpts
}

func newDiagPrinter(cmd *cobra.Command) (*diagPrinter, error) {
	flags := cmd.Root().PersistentFlags()
	format, err := flags.GetString("diag-format")
	if err != nil {
		return nil, err
	}
	maxDiags, err := flags.GetInt("max-diagnostics")
	if err != nil {
		return nil, err
	}
	switch format {
	case "short", "pretty", "json":
	default:
		return nil, usageErr("invalid --diag-format value %q (expected short|pretty|json)", format)
	}
	return &diagPrinter{
		w:      cmd.ErrOrStderr(),
		format: format,
		pretty: diagfmt.PrettyOpts{Color: !color.NoColor, Context: 1, ShowNotes: true},
		json:   diagfmt.JSONOpts{IncludePositions: true, IncludeNotes: true, Max: maxDiags},
	}, nil
}

func (p *diagPrinter) diagnostics(unit string, fs *source.FileSet, diags []diag.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	switch p.format {
	case "json":
		if err := diagfmt.JSON(p.w, unit, diags, fs, p.json); err != nil {
			fmt.Fprintf(p.w, "%s %v\n", errorLabel.Sprint("error:"), err)
		}
	case "pretty":
		diagfmt.Pretty(p.w, diags, fs, p.pretty)
	default:
		fmt.Fprintln(p.w, diag.FormatShort(diags, fs, true))
	}
}

// failure renders err for unit. Diagnostic errors keep the context the caller
// wrapped around them.
func (p *diagPrinter) failure(unit string, fs *source.FileSet, err error) {
	if err == nil {
		return
	}
	de, ok := diag.FromError(err)
	if !ok || len(de.Diags) == 0 {
		fmt.Fprintf(p.w, "%s %v\n", errorLabel.Sprint("error:"), err)
		return
	}
	if p.format != "json" {
		outer := err.Error()
		if i := strings.Index(outer, de.Error()); i > 0 {
			fmt.Fprintf(p.w, "%s %s\n", errorLabel.Sprint("error:"), strings.TrimSuffix(outer[:i], ": "))
		}
	}
	p.diagnostics(unit, fs, de.Diags)
	if de.Err != nil && p.format != "json" {
		fmt.Fprintf(p.w, "  caused by: %v\n", de.Err)
	}
}
