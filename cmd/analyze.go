package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aygp-dr/gdb-game-ai/analyze"
)

func newAnalyzeCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "analyze <source-dir>",
		Short: "Extract memory-layout hints from the target's C sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := analyze.New(args[0]).Run()
			if err != nil {
				return err
			}

			hLine("structures")
			for name, s := range report.Structures {
				Printf("%s (%s): %d fields\n", name, s.File, len(s.Fields))
			}

			hLine("functions")
			for name, fn := range report.Functions {
				Printf("%s %s() in %s\n", fn.ReturnType, name, fn.File)
			}

			hLine("hints")
			for _, h := range report.Hints {
				fmt.Println("  - " + h)
			}

			if out != "" {
				if err := report.Save(out); err != nil {
					return err
				}
				Printf("report saved to %s\n", out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write the report as TOML to this path")
	return cmd
}
