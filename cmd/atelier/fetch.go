// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"atelier-cli/internal/fetch"
	"atelier-cli/internal/issue"
	"atelier-cli/pkg/manifest"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var fetchPrintManifest bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch manifest assets",
	Long: `Download every asset in the manifest that is not already present.
Assets with a non-zero-size target file are skipped, so re-running is
cheap and safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return finishError(cmd, err)
		}

		m, err := resolveManifest(cfg.ManifestPath)
		if err != nil {
			return finishError(cmd, err)
		}

		if fetchPrintManifest {
			printManifest(cmd, m)
			return nil
		}

		fetcher, err := fetch.New(cfg, log.Default())
		if err != nil {
			return finishError(cmd, classifyProvisionError(err))
		}

		if !cfg.DryRun {
			fetch.SweepPartials(string(cfg.AppDir), log.Default())
		}

		results, err := fetcher.Fetch(cmd.Context(), m)
		printFetchResults(cmd, results)
		if err != nil {
			return finishError(cmd, newServiceError(err,
				issue.RequiredAssetFailedId,
				ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose)+"\n"))
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchPrintManifest, "print-manifest", false, "show the resolved manifest and exit")
	fetchCmd.Flags().String("manifest", "", "asset manifest path (default: built-in FLUX stack)")
	fetchCmd.Flags().String("app-dir", "", "application directory")
}

// resolveManifest loads the configured manifest, distinguishing a
// missing file from an unparseable one for the issue catalog.
func resolveManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		return manifest.Default()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, newServiceError(
			fmt.Errorf("manifest not found at %s", path),
			issue.ManifestNotFoundId,
			ErrorStyle.Render("Error: ")+"manifest not found at "+path+"\n")
	}
	m, err := manifest.Parse(path)
	if err != nil {
		return nil, newServiceError(err,
			issue.ManifestParseErrorId,
			ErrorStyle.Render("Error: ")+err.Error()+"\n")
	}
	return m, nil
}

func printManifest(cmd *cobra.Command, m *manifest.Manifest) {
	out := cmd.OutOrStdout()
	source := m.FilePath
	if source == "" {
		source = "built-in"
	}
	fmt.Fprintf(out, "%s %s\n", TitleStyle.Render("Manifest:"), source)
	for _, a := range m.Assets {
		optional := ""
		if a.Optional {
			optional = SubtitleStyle.Render(" (optional)")
		}
		fmt.Fprintf(out, "  %-18s %-14s %s%s\n", a.Name, a.Source, ValueStyle.Render(a.Locator), optional)
	}
}

func printFetchResults(cmd *cobra.Command, results []fetch.Result) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		var status string
		switch r.Status {
		case fetch.StatusDownloaded:
			status = SuccessStyle.Render(string(r.Status))
		case fetch.StatusFailed:
			status = ErrorStyle.Render(string(r.Status))
		case fetch.StatusStale:
			status = WarningStyle.Render(string(r.Status))
		default:
			status = SubtitleStyle.Render(string(r.Status))
		}
		fmt.Fprintf(out, "  %-18s %s\n", r.Asset.Name, status)
	}
}
