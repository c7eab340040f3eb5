package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"longrec/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify recording directories, output directories and external binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cfg)
			fmt.Fprintln(out, "Directories")
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out, "Binaries")
			missing := 0
			for _, dep := range preflight.CheckSystemDeps(cfg) {
				kind, detail := statusOK, dep.Command
				if !dep.Available {
					detail = dep.Detail
					if dep.Optional {
						kind = statusWarn
					} else {
						kind = statusError
						missing++
					}
				}
				fmt.Fprintln(out, renderStatusLine(dep.Name, kind, detail, colorize))
			}

			if failed := len(preflight.Failed(results)) + missing; failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
