// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"atelier-cli/internal/bind"
	"atelier-cli/internal/issue"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Bind model directories to shared storage",
	Long: `Make each model subdirectory (checkpoints, loras, vae, ...) a symlink
into the external mount, falling back to plain local directories when
the mount is absent. Existing local content is preserved in timestamped
backups before any symlink replaces it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return finishError(cmd, err)
		}

		binder := bind.New(string(cfg.AppDir), cfg.MountRoot, log.Default())
		plan := binder.Plan()

		out := cmd.OutOrStdout()
		if cfg.DryRun {
			fmt.Fprintln(out, TitleStyle.Render("Dry run: planned bindings"))
			for _, bd := range plan {
				printBinding(cmd, bd)
			}
			return nil
		}

		applied, err := binder.Apply(plan)
		if err != nil {
			return finishError(cmd, newServiceError(err,
				issue.MountPermissionDeniedId,
				ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose)+"\n"))
		}

		fmt.Fprintln(out, TitleStyle.Render("Model directories bound"))
		for _, bd := range applied {
			printBinding(cmd, bd)
		}
		return nil
	},
}

func init() {
	bindCmd.Flags().String("app-dir", "", "application directory")
	bindCmd.Flags().String("mount-root", "", "external model mount root")
}

func printBinding(cmd *cobra.Command, bd bind.Binding) {
	out := cmd.OutOrStdout()
	switch bd.Mode {
	case bind.ModeSymlink:
		fmt.Fprintf(out, "  %-16s -> %s\n", bd.Subpath, ValueStyle.Render(bd.External))
	default:
		fmt.Fprintf(out, "  %-16s %s\n", bd.Subpath, SubtitleStyle.Render("(local)"))
	}
	if bd.BackupPath != "" {
		fmt.Fprintf(out, "  %-16s %s\n", "", WarningStyle.Render("backed up to "+bd.BackupPath))
	}
}
