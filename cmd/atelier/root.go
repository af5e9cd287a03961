// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"atelier-cli/internal/config"
	"atelier-cli/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging.
	verbose bool
	// cfgFile allows specifying a custom config file.
	cfgFile string
	// dryRun previews every mutation without performing it.
	dryRun bool

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "atelier",
		Short: "Provision and run a ComfyUI image generation workstation",
		Long: TitleStyle.Render("atelier") + SubtitleStyle.Render(" - image generation workstation provisioning") + `

atelier takes a host from bare to serving: it probes the accelerator,
binds model directories to shared storage, fetches the models declared
in an asset manifest, generates a deterministic startup script, and
launches the service.

Manifests are written in CUE; a built-in FLUX stack manifest is used
when none is configured.

` + SubtitleStyle.Render("Examples:") + `
  atelier provision              Full pipeline, stop before launching
  atelier provision --start      Full pipeline, then launch and wait
  atelier provision --dry-run    Preview without touching anything
  atelier detect                 Show accelerator and profile
  atelier fetch                  Fetch manifest assets only
  atelier start                  Launch the service and wait for readiness
  atelier config show            Show resolved configuration`,
	}
)

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/atelier/atelier.env)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "validate and report without changing anything")

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(bindCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(configCmd)
}

func initLogging() {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// flagKeyBindings maps command-line flag names to configuration keys.
// Only flags the user actually set are layered over the environment and
// file values, keeping flags the strongest precedence level.
var flagKeyBindings = map[string]string{
	"work-dir":     "work_dir",
	"app-dir":      "app_dir",
	"listen-host":  "listen_host",
	"port":         "port",
	"mount-root":   "mount_root",
	"manifest":     "manifest",
	"dry-run":      "dry_run",
	"max-attempts": "readiness_max_attempts",
	"interval":     "readiness_interval",
}

func flagOverride(cmd *cobra.Command) func(*viper.Viper) error {
	return func(v *viper.Viper) error {
		for flagName, key := range flagKeyBindings {
			f := cmd.Flags().Lookup(flagName)
			if f == nil {
				f = cmd.InheritedFlags().Lookup(flagName)
			}
			if f != nil && f.Changed {
				v.Set(key, f.Value.String())
			}
		}
		return nil
	}
}

// loadConfig resolves configuration for a command, layering any flags
// the user set on top of environment, file, and defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewProvider().Load(cmd.Context(), config.LoadOptions{
		ConfigFilePath: cfgFile,
		FlagOverride:   flagOverride(cmd),
	})
	if err != nil {
		return nil, newServiceError(err,
			issue.ConfigLoadFailedId,
			ErrorStyle.Render("Error: ")+err.Error()+"\n")
	}
	return cfg, nil
}
