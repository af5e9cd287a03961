// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"atelier-cli/internal/bind"
	"atelier-cli/internal/fetch"
	"atelier-cli/internal/issue"
	"atelier-cli/internal/lifecycle"
	"atelier-cli/internal/provision"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var provisionStart bool

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Run the full provisioning pipeline",
	Long: `Run every provisioning stage in order: validate directories, probe
the host, bind model directories, fetch manifest assets, and generate
the startup script and starter workflow.

With --start (or AUTO=true in the configuration) the service is then
launched and polled until ready.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return finishError(cmd, err)
		}

		p := provision.New(cfg, log.Default())
		report, err := p.Run(cmd.Context(), provision.Options{
			Launch: provisionStart || cfg.Auto,
		})
		if err != nil {
			return finishError(cmd, classifyProvisionError(err))
		}

		printReport(cmd, report)

		if report.Ready == lifecycle.TimedOut {
			return finishError(cmd, newServiceError(
				errors.New("service did not become ready within the polling budget"),
				issue.ServiceNotReadyId,
				WarningStyle.Render("Warning: ")+"service launched but is not ready yet\n"))
		}
		return nil
	},
}

func init() {
	provisionCmd.Flags().BoolVar(&provisionStart, "start", false, "launch the service after provisioning")
	provisionCmd.Flags().String("work-dir", "", "provisioning working directory")
	provisionCmd.Flags().String("app-dir", "", "application directory")
	provisionCmd.Flags().String("mount-root", "", "external model mount root")
	provisionCmd.Flags().String("manifest", "", "asset manifest path (default: built-in FLUX stack)")
	provisionCmd.Flags().String("listen-host", "", "service listen host")
	provisionCmd.Flags().Int("port", 0, "service listen port")
	provisionCmd.Flags().Int("max-attempts", 0, "readiness polling attempt budget")
	provisionCmd.Flags().Duration("interval", 0, "readiness polling interval")
}

// classifyProvisionError maps a pipeline stage failure to the issue
// catalog entry with the right remediation steps.
func classifyProvisionError(err error) error {
	issueID := issue.Id(0)

	var se *provision.StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case provision.StageValidate:
			issueID = issue.WorkDirNotWritableId
		case provision.StageBind:
			issueID = issue.MountPermissionDeniedId
		case provision.StageManifest:
			issueID = issue.ManifestParseErrorId
		case provision.StageFetch:
			issueID = issue.RequiredAssetFailedId
		case provision.StageLaunch:
			issueID = issue.ServiceNotReadyId
		}
	}

	return newServiceError(err, issueID,
		fmt.Sprintf("%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose)))
}

func printReport(cmd *cobra.Command, report *provision.Report) {
	out := cmd.OutOrStdout()

	header := "Provisioning complete"
	if report.DryRun {
		header = "Dry run: no changes were made"
	}
	fmt.Fprintln(out, TitleStyle.Render(header))

	if report.Host != nil {
		acc := report.Host.Accelerator
		if acc.Present {
			fmt.Fprintf(out, "  Accelerator:  %s (%d MB VRAM, driver %s)\n",
				ValueStyle.Render(acc.Name), acc.MemoryMB, acc.DriverVersion)
		} else {
			fmt.Fprintf(out, "  Accelerator:  %s\n", WarningStyle.Render("none (CPU mode)"))
		}
		profile := string(report.Profile)
		if profile == "" {
			profile = "none"
		}
		fmt.Fprintf(out, "  Profile:      %s\n", ValueStyle.Render(profile))
	}

	linked, local := 0, 0
	for _, bd := range report.Bindings {
		if bd.Mode == bind.ModeSymlink {
			linked++
		} else {
			local++
		}
		if bd.BackupPath != "" {
			fmt.Fprintf(out, "  Backed up:    %s -> %s\n", bd.Subpath, bd.BackupPath)
		}
	}
	fmt.Fprintf(out, "  Model dirs:   %d linked to shared storage, %d local\n", linked, local)

	counts := map[fetch.Status]int{}
	for _, r := range report.Fetches {
		counts[r.Status]++
	}
	fmt.Fprintf(out, "  Assets:       %d downloaded, %d skipped, %d planned, %d stale, %d failed\n",
		counts[fetch.StatusDownloaded], counts[fetch.StatusSkipped],
		counts[fetch.StatusPlanned], counts[fetch.StatusStale], counts[fetch.StatusFailed])

	if report.ScriptPath != "" {
		fmt.Fprintf(out, "  Startup:      %s\n", ValueStyle.Render(report.ScriptPath))
	}
	if report.WorkflowPath != "" {
		fmt.Fprintf(out, "  Workflow:     %s\n", ValueStyle.Render(report.WorkflowPath))
	}
	switch report.Ready {
	case lifecycle.Ready:
		fmt.Fprintf(out, "  Service:      %s\n", SuccessStyle.Render("ready"))
	case lifecycle.TimedOut:
		fmt.Fprintf(out, "  Service:      %s\n", WarningStyle.Render("not ready yet"))
	}
}
