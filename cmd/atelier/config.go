// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"time"

	"atelier-cli/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage atelier configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{
			ConfigFilePath: cfgFile,
			FlagOverride:   flagOverride(cmd),
		})
		if err != nil {
			return finishError(cmd, err)
		}

		out := cmd.OutOrStdout()
		if path == "" {
			fmt.Fprintln(out, SubtitleStyle.Render("No config file found; showing defaults, environment, and flags"))
		} else {
			fmt.Fprintf(out, "%s %s\n", SubtitleStyle.Render("Config file:"), path)
		}

		fmt.Fprintf(out, "  work_dir:                %s\n", cfg.WorkDir)
		fmt.Fprintf(out, "  app_dir:                 %s\n", cfg.AppDir)
		fmt.Fprintf(out, "  listen_host:             %s\n", cfg.ListenHost)
		fmt.Fprintf(out, "  port:                    %d\n", cfg.Port)
		fmt.Fprintf(out, "  api_port:                %d\n", cfg.APIPort)
		fmt.Fprintf(out, "  health_path:             %s\n", cfg.HealthPath)
		fmt.Fprintf(out, "  mount_root:              %s\n", cfg.MountRoot)
		fmt.Fprintf(out, "  manifest:                %s\n", orDefault(cfg.ManifestPath, "(built-in)"))
		fmt.Fprintf(out, "  auto:                    %t\n", cfg.Auto)
		fmt.Fprintf(out, "  dry_run:                 %t\n", cfg.DryRun)
		fmt.Fprintf(out, "  download_timeout:        %s\n", durationOrUnbounded(cfg.DownloadTimeout))
		fmt.Fprintf(out, "  readiness_max_attempts:  %d\n", cfg.ReadinessMaxAttempts)
		fmt.Fprintf(out, "  readiness_interval:      %s\n", cfg.ReadinessInterval)
		fmt.Fprintf(out, "  hf_token:                %s\n", maskSecret(cfg.HFToken))
		fmt.Fprintf(out, "  civitai_token:           %s\n", maskSecret(cfg.CivitaiToken))
		if cfg.ObjectStore.Enabled() {
			fmt.Fprintf(out, "  object_store_endpoint:   %s\n", cfg.ObjectStore.Endpoint)
			fmt.Fprintf(out, "  object_store_bucket:     %s\n", cfg.ObjectStore.Bucket)
			fmt.Fprintf(out, "  object_store_region:     %s\n", cfg.ObjectStore.Region)
			fmt.Fprintf(out, "  object_store_access_key: %s\n", maskSecret(cfg.ObjectStore.AccessKey))
		} else {
			fmt.Fprintf(out, "  object_store:            %s\n", SubtitleStyle.Render("not configured"))
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.CreateDefaultConfig()
		if err != nil {
			return finishError(cmd, err)
		}
		if path == "" {
			fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("A configuration file already exists; nothing written"))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
			SuccessStyle.Render("Created:"), ValueStyle.Render(path))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func durationOrUnbounded(d time.Duration) string {
	if d == 0 {
		return "unbounded"
	}
	return d.String()
}

func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	return "********"
}
