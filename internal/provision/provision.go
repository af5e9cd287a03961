// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"path/filepath"
	"strings"

	"atelier-cli/internal/bind"
	"atelier-cli/internal/config"
	"atelier-cli/internal/fetch"
	"atelier-cli/internal/hostcap"
	"atelier-cli/internal/lifecycle"
	"atelier-cli/internal/workflow"
	"atelier-cli/pkg/manifest"

	"github.com/charmbracelet/log"
)

// Options select optional stages of a provisioning run.
type Options struct {
	// Launch starts the service and waits for readiness after the
	// filesystem work is done.
	Launch bool
}

// Report summarizes what a provisioning run did (or, in dry-run mode,
// would do).
type Report struct {
	DryRun bool
	Host   *hostcap.Host
	// Profile is empty when the host has no accelerator.
	Profile  hostcap.Profile
	Bindings []bind.Binding
	Fetches  []fetch.Result
	// ScriptPath is where the startup script was written. Empty in
	// dry-run mode.
	ScriptPath string
	// WorkflowPath is where the starter workflow was written. Empty
	// when one already existed or in dry-run mode.
	WorkflowPath string
	// Ready reports the service readiness outcome when Launch was
	// requested. Empty otherwise.
	Ready lifecycle.ReadyState
}

// Provisioner runs the provisioning pipeline against resolved
// configuration.
type Provisioner struct {
	cfg    *config.Config
	logger *log.Logger
}

// New creates a Provisioner.
func New(cfg *config.Config, logger *log.Logger) *Provisioner {
	if logger == nil {
		logger = log.Default()
	}
	return &Provisioner{cfg: cfg, logger: logger}
}

// Run executes the pipeline. In dry-run mode every stage validates and
// reports without mutating the filesystem or the network. Degraded
// outcomes (optional asset failures, stale repositories, a service that
// is slow to become ready) are recorded in the Report; only conditions
// that leave the workstation unusable return an error.
func (p *Provisioner) Run(ctx context.Context, opts Options) (*Report, error) {
	cfg := p.cfg
	report := &Report{DryRun: cfg.DryRun}

	if err := config.EnsureWorkDir(cfg.WorkDir, cfg.DryRun); err != nil {
		return report, stageErr(StageValidate, err)
	}
	if err := config.CheckPortFree(cfg.ListenHost, cfg.Port); err != nil {
		p.logger.Warn("listen port check", "warning", err)
	}

	host, err := hostcap.Detect(ctx, p.logger)
	if err != nil {
		return report, stageErr(StageDetect, err)
	}
	report.Host = host
	flags := hostcap.DeriveRuntimeFlags(host)
	report.Profile = flags.Profile
	if host.Accelerator.Present {
		p.logger.Info("performance profile selected",
			"profile", flags.Profile, "vram_mb", host.Accelerator.MemoryMB)
	} else {
		p.logger.Warn("no accelerator detected; GPU flags omitted")
	}

	binder := bind.New(string(cfg.AppDir), cfg.MountRoot, p.logger)
	plan := binder.Plan()
	if cfg.DryRun {
		report.Bindings = plan
	} else {
		applied, err := binder.Apply(plan)
		report.Bindings = applied
		if err != nil {
			return report, stageErr(StageBind, err)
		}
	}

	m, err := p.loadManifest()
	if err != nil {
		return report, stageErr(StageManifest, err)
	}

	if !cfg.DryRun {
		fetch.SweepPartials(string(cfg.AppDir), p.logger)
	}

	fetcher, err := fetch.New(cfg, p.logger)
	if err != nil {
		return report, stageErr(StageFetch, err)
	}
	results, err := fetcher.Fetch(ctx, m)
	report.Fetches = results
	if err != nil {
		return report, stageErr(StageFetch, err)
	}

	script, err := lifecycle.RenderScript(lifecycle.ScriptParams{
		AppDir:     string(cfg.AppDir),
		ListenHost: cfg.ListenHost,
		Port:       cfg.Port.Int(),
		Flags:      flags,
	})
	if err != nil {
		return report, stageErr(StageScript, err)
	}

	if !cfg.DryRun {
		scriptPath := filepath.Join(string(cfg.WorkDir), lifecycle.ScriptName)
		if err := lifecycle.WriteScript(scriptPath, script); err != nil {
			return report, stageErr(StageScript, err)
		}
		report.ScriptPath = scriptPath

		workflowDir := filepath.Join(string(cfg.AppDir), "user", "default", "workflows")
		wfPath, err := workflow.WriteStarter(workflowDir, starterCheckpoint(m))
		if err != nil {
			p.logger.Warn("could not write starter workflow", "error", err)
		} else {
			report.WorkflowPath = wfPath
		}
	}

	if opts.Launch && !cfg.DryRun {
		controller := lifecycle.NewController(cfg.ReadinessMaxAttempts, cfg.ReadinessInterval, p.logger)
		handle, err := controller.Launch(ctx, report.ScriptPath, cfg.ListenHost, cfg.Port.Int(), cfg.HealthPath)
		if err != nil {
			return report, stageErr(StageLaunch, err)
		}
		state, err := controller.AwaitReady(ctx, handle)
		if err != nil {
			return report, stageErr(StageLaunch, err)
		}
		report.Ready = state
	}

	return report, nil
}

// loadManifest resolves the configured manifest, falling back to the
// built-in FLUX stack when none is configured.
func (p *Provisioner) loadManifest() (*manifest.Manifest, error) {
	if p.cfg.ManifestPath == "" {
		return manifest.Default()
	}
	return manifest.Parse(p.cfg.ManifestPath)
}

// starterCheckpoint picks the model filename the starter workflow loads:
// the first asset landing in a checkpoints or unet directory, with a
// stable fallback when the manifest has none.
func starterCheckpoint(m *manifest.Manifest) string {
	for _, a := range m.Assets {
		if a.Source == manifest.SourceVersionControl {
			continue
		}
		dest := filepath.ToSlash(a.Dest)
		if strings.Contains(dest, "checkpoints") || strings.Contains(dest, "unet") {
			return a.TargetFilename()
		}
	}
	return "flux1-dev-fp8.safetensors"
}
