package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"shaderpipe/internal/transform"
)

var passDescriptions = map[string]string{
	transform.SingleEntryPointName:             "keep one entry point and what it transitively needs",
	transform.FoldTrivialLets{}.Name():         "inline let bindings into their uses",
	transform.PromoteModuleState{}.Name():      "thread once-assigned private globals through function parameters",
	transform.ZeroInitWorkgroupMemory{}.Name(): "zero workgroup memory at the start of each compute entry point",
}

func newPassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passes",
		Short: "List the lowering passes and the order they run in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			passes, err := transform.Build(cfg.Pipeline.Passes, cfg.PassConfig())
			if err != nil {
				return err
			}
			active := make([]string, len(passes))
			for i, p := range passes {
				active[i] = p.Name()
			}
			out := cmd.OutOrStdout()
			for _, name := range transform.Names() {
				marker := "  "
				if i := slices.Index(active, name); i >= 0 {
					marker = okLabel.Sprintf("%d.", i+1)
				}
				fmt.Fprintf(out, "%s %-28s %s\n", marker, name, passDescriptions[name])
			}
			return nil
		},
	}
}
