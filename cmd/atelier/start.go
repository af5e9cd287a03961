// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"atelier-cli/internal/config"
	"atelier-cli/internal/hostcap"
	"atelier-cli/internal/issue"
	"atelier-cli/internal/lifecycle"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var startNoWait bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Launch the service and wait for readiness",
	Long: `Launch the service via its startup script, then poll the liveness
endpoint until it answers or the attempt budget runs out. The script is
generated first if a previous provision run has not left one behind.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return finishError(cmd, err)
		}
		if cfg.DryRun {
			fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("Dry run: service would be launched"))
			return nil
		}

		scriptPath := filepath.Join(string(cfg.WorkDir), lifecycle.ScriptName)
		if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
			if err := generateScript(cmd, cfg, scriptPath); err != nil {
				return finishError(cmd, err)
			}
		}

		controller := lifecycle.NewController(cfg.ReadinessMaxAttempts, cfg.ReadinessInterval, log.Default())

		if err := config.CheckPortFree(cfg.ListenHost, cfg.Port); err != nil {
			log.Warn("listen port check", "warning", err)
		}

		handle, err := controller.Launch(cmd.Context(), scriptPath, cfg.ListenHost, cfg.Port.Int(), cfg.HealthPath)
		if err != nil {
			return finishError(cmd, err)
		}

		if startNoWait {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
				SuccessStyle.Render("Launched:"), ValueStyle.Render(handle.URL()))
			return nil
		}

		state, err := controller.AwaitReady(cmd.Context(), handle)
		if err != nil {
			return finishError(cmd, err)
		}
		if state == lifecycle.TimedOut {
			return finishError(cmd, newServiceError(
				errors.New("service did not become ready within the polling budget"),
				issue.ServiceNotReadyId,
				WarningStyle.Render("Warning: ")+"service launched but is not ready yet\n"))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
			SuccessStyle.Render("Ready:"), ValueStyle.Render(handle.URL()))
		return nil
	},
}

func init() {
	startCmd.Flags().BoolVar(&startNoWait, "no-wait", false, "launch without polling for readiness")
	startCmd.Flags().Int("max-attempts", 0, "readiness polling attempt budget")
	startCmd.Flags().Duration("interval", 0, "readiness polling interval")
	startCmd.Flags().Int("port", 0, "service listen port")
	startCmd.Flags().String("listen-host", "", "service listen host")
}

// generateScript probes the host and writes a fresh startup script when
// starting on a machine that was never provisioned.
func generateScript(cmd *cobra.Command, cfg *config.Config, scriptPath string) error {
	host, err := hostcap.Detect(cmd.Context(), log.Default())
	if err != nil {
		return err
	}

	script, err := lifecycle.RenderScript(lifecycle.ScriptParams{
		AppDir:     string(cfg.AppDir),
		ListenHost: cfg.ListenHost,
		Port:       cfg.Port.Int(),
		Flags:      hostcap.DeriveRuntimeFlags(host),
	})
	if err != nil {
		return err
	}

	if err := config.EnsureWorkDir(cfg.WorkDir, false); err != nil {
		return newServiceError(err,
			issue.WorkDirNotWritableId,
			ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose)+"\n")
	}
	return lifecycle.WriteScript(scriptPath, script)
}
