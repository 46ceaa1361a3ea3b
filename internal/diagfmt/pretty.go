package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"shaderpipe/internal/diag"
	"shaderpipe/internal/source"
)

const tabWidth = 4

// Pretty renders diagnostics for humans, one block per diagnostic:
//
//	error[LOW4003]: entry point "third" not found
//	  --> shaders/a.wgsl:3:5
//	   |
//	 3 | fn main() {
//	   |    ^~~~
//	   = note: ...
//
// Diagnostics whose span points into a file without content get the
// header and location only.
func Pretty(w io.Writer, diags []diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for i := range diags {
		if i > 0 {
			fmt.Fprintln(w)
		}
		prettyOne(w, &diags[i], fs, opts, p)
	}
}

type palette struct {
	err, warn, info, gutter, marker, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan, color.Bold),
		gutter: color.New(color.FgBlue, color.Bold),
		marker: color.New(color.FgRed),
		bold:   color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.gutter, p.marker, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

func prettyOne(w io.Writer, d *diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, p palette) {
	sev := strings.ToLower(d.Severity.String())
	fmt.Fprintf(w, "%s%s\n",
		p.severity(d.Severity).Sprintf("%s[%s]", sev, d.Code.ID()),
		p.bold.Sprintf(": %s", d.Message))

	f := fs.Get(d.Primary.File)
	if f == nil {
		fmt.Fprintf(w, "  %s <unknown>\n", p.gutter.Sprint("-->"))
		printNotes(w, d, fs, opts, p, 2)
		return
	}
	start, end, _ := fs.Resolve(d.Primary)
	fmt.Fprintf(w, "  %s %s:%d:%d\n", p.gutter.Sprint("-->"), displayPath(fs, f, opts.PathMode), start.Line, start.Col)
	if len(f.Content) == 0 {
		printNotes(w, d, fs, opts, p, 2)
		return
	}

	first := start.Line
	for i := 0; i < opts.Context && first > 1; i++ {
		first--
	}
	width := len(strconv.FormatUint(uint64(start.Line), 10))
	pad := strings.Repeat(" ", width)
	fmt.Fprintf(w, "%s %s\n", pad, p.gutter.Sprint("|"))
	for n := first; n <= start.Line; n++ {
		fmt.Fprintf(w, "%s %s\n", p.gutter.Sprintf("%*d |", width, n), expandTabs(lineText(f, n)))
	}

	line := lineText(f, start.Line)
	col := int(start.Col) - 1
	endCol := len(line)
	if end.Line == start.Line {
		endCol = min(int(end.Col)-1, len(line))
	}
	col = min(col, len(line))
	lead := runewidth.StringWidth(expandTabs(line[:col]))
	span := max(1, runewidth.StringWidth(expandTabs(line[col:max(col, endCol)])))
	underline := "^" + strings.Repeat("~", span-1)
	fmt.Fprintf(w, "%s %s %s%s\n", pad, p.gutter.Sprint("|"), strings.Repeat(" ", lead), p.marker.Sprint(underline))
	printNotes(w, d, fs, opts, p, width+1)
}

func printNotes(w io.Writer, d *diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, p palette, indent int) {
	if !opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		loc := ""
		if f := fs.Get(n.Span.File); f != nil {
			start, _, _ := fs.Resolve(n.Span)
			loc = fmt.Sprintf(" (%s:%d:%d)", displayPath(fs, f, opts.PathMode), start.Line, start.Col)
		}
		fmt.Fprintf(w, "%s%s %s%s\n", strings.Repeat(" ", indent), p.gutter.Sprint("= note:"), n.Msg, loc)
	}
}

func displayPath(fs *source.FileSet, f *source.File, mode PathMode) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(filepath.FromSlash(f.Path)); err == nil {
			return filepath.ToSlash(abs)
		}
		return f.Path
	case PathModeBasename:
		return filepath.Base(filepath.FromSlash(f.Path))
	default:
		return fs.RelativePath(f.ID)
	}
}

// lineText returns line n (1-based) without its newline.
func lineText(f *source.File, n uint32) string {
	if n == 0 {
		return ""
	}
	start := 0
	if n > 1 {
		if int(n-2) >= len(f.LineIdx) {
			return ""
		}
		start = int(f.LineIdx[n-2]) + 1
	}
	end := len(f.Content)
	if int(n-1) < len(f.LineIdx) {
		end = int(f.LineIdx[n-1])
	}
	if start > end {
		return ""
	}
	return string(f.Content[start:end])
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}
