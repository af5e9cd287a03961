// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"atelier-cli/internal/hostcap"
	"atelier-cli/internal/issue"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Probe the host accelerator and show the selected profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := hostcap.Detect(cmd.Context(), log.Default())
		if err != nil {
			return finishError(cmd, err)
		}

		out := cmd.OutOrStdout()
		acc := host.Accelerator
		flags := hostcap.DeriveRuntimeFlags(host)

		fmt.Fprintln(out, TitleStyle.Render("Host capabilities"))
		if acc.Present {
			fmt.Fprintf(out, "  Accelerator:     %s\n", ValueStyle.Render(acc.Name))
			fmt.Fprintf(out, "  VRAM:            %d MB\n", acc.MemoryMB)
			fmt.Fprintf(out, "  Driver:          %s\n", acc.DriverVersion)
			if acc.ToolkitVersion != "" {
				fmt.Fprintf(out, "  CUDA toolkit:    %s\n", acc.ToolkitVersion)
			}
		} else {
			fmt.Fprintf(out, "  Accelerator:     %s\n", WarningStyle.Render("none detected"))
		}
		fmt.Fprintf(out, "  System memory:   %d MB\n", host.SystemMemoryMB)
		if acc.Present {
			fmt.Fprintf(out, "  Profile:         %s (VRAM fraction %.2f, %s)\n",
				ValueStyle.Render(string(flags.Profile)),
				flags.Profile.MemoryFraction(), flags.VRAMFlag)
		} else {
			fmt.Fprintf(out, "  Profile:         %s\n",
				WarningStyle.Render("none (GPU flags omitted)"))
		}

		if !acc.Present {
			if entry := issue.Get(issue.AcceleratorAbsentId); entry != nil {
				if rendered, rerr := entry.Render("dark"); rerr == nil {
					fmt.Fprint(out, rendered)
				}
			}
		}
		return nil
	},
}
