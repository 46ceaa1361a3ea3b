package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/sema"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [flags] <unit.snap>",
		Short: "Print a compilation unit snapshot as shader source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args[0])
			if err != nil {
				return err
			}
			u := in.unit
			printer, err := newDiagPrinter(cmd)
			if err != nil {
				return err
			}
			if check, _ := cmd.Flags().GetBool("resolve"); check {
				maxDiags, _ := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
				if _, err := sema.Resolve(u.Program, u.Symbols, u.Types, sema.Options{MaxDiagnostics: maxDiags}); err != nil {
					printer.failure(u.Name, u.Files, err)
					return fmt.Errorf("%s does not resolve", args[0])
				}
			}
			if files, _ := cmd.Flags().GetBool("files"); files {
				for _, f := range u.Files.Files() {
					fmt.Fprintf(cmd.OutOrStdout(), "// file %s (%d bytes)\n", f.Path, len(f.Content))
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), ast.Format(u.Program, u.Symbols, u.Types))
			return nil
		},
	}
	cmd.Flags().Bool("resolve", false, "resolve the unit and report its diagnostics first")
	cmd.Flags().Bool("files", false, "list the source files embedded in the snapshot")
	return cmd
}
