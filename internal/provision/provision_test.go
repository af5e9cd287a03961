// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"atelier-cli/internal/bind"
	"atelier-cli/internal/config"
	"atelier-cli/internal/fetch"
	"atelier-cli/internal/lifecycle"
	"atelier-cli/internal/workflow"
	"atelier-cli/pkg/manifest"
)

func writeManifest(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.cue")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := *config.DefaultConfig()
	root := t.TempDir()
	cfg.WorkDir = config.DirPath(root)
	cfg.AppDir = config.DirPath(filepath.Join(root, "ComfyUI"))
	cfg.MountRoot = filepath.Join(root, "no-such-mount")
	return cfg
}

// TestRun_DryRunMutatesNothing provisions in dry-run mode and asserts
// the report is fully populated while the filesystem stays untouched.
func TestRun_DryRunMutatesNothing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("dry run must not reach the network")
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.DryRun = true
	cfg.ManifestPath = writeManifest(t, `
assets: [{
	name:    "model"
	source:  "http"
	locator: "`+srv.URL+`/m.safetensors"
	dest:    "models/unet"
}]
`)

	report, err := New(&cfg, nil).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}

	if !report.DryRun {
		t.Error("report should record dry-run mode")
	}
	if len(report.Bindings) != len(bind.DefaultSubpaths()) {
		t.Errorf("report has %d bindings, want %d", len(report.Bindings), len(bind.DefaultSubpaths()))
	}
	if len(report.Fetches) != 1 || report.Fetches[0].Status != fetch.StatusPlanned {
		t.Errorf("fetches = %+v, want one planned result", report.Fetches)
	}
	if report.ScriptPath != "" {
		t.Errorf("dry run wrote a script at %s", report.ScriptPath)
	}

	// The application directory must not have been created.
	if _, err := os.Stat(string(cfg.AppDir)); !os.IsNotExist(err) {
		t.Error("dry run created the application directory")
	}
	// The work directory must still be empty.
	entries, err := os.ReadDir(string(cfg.WorkDir))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != filepath.Base(string(cfg.AppDir)) {
			t.Errorf("dry run created %q in the work directory", e.Name())
		}
	}
}

func TestRun_FullProvision(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.MountRoot = t.TempDir() // external mount available
	cfg.ManifestPath = writeManifest(t, `
assets: [{
	name:    "model"
	source:  "http"
	locator: "`+srv.URL+`/model.safetensors"
	dest:    "models/checkpoints"
}]
`)

	report, err := New(&cfg, nil).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	// Bindings point at the external mount.
	for _, bd := range report.Bindings {
		if bd.Mode != bind.ModeSymlink {
			t.Errorf("%s: mode = %s, want symlink with mount present", bd.Subpath, bd.Mode)
		}
	}

	// The asset landed through the symlinked tree.
	if report.Fetches[0].Status != fetch.StatusDownloaded {
		t.Fatalf("fetch status = %s, want downloaded", report.Fetches[0].Status)
	}
	content, err := os.ReadFile(report.Fetches[0].Path)
	if err != nil {
		t.Fatalf("reading fetched asset: %v", err)
	}
	if string(content) != "weights" {
		t.Errorf("asset content = %q", content)
	}

	// Startup script written and executable.
	if report.ScriptPath != filepath.Join(string(cfg.WorkDir), lifecycle.ScriptName) {
		t.Errorf("ScriptPath = %q", report.ScriptPath)
	}
	info, err := os.Stat(report.ScriptPath)
	if err != nil {
		t.Fatalf("stat script: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Error("startup script is not executable")
	}

	// Starter workflow placed for first run.
	if report.WorkflowPath == "" {
		t.Fatal("starter workflow was not written")
	}
	if filepath.Base(report.WorkflowPath) != workflow.StarterName {
		t.Errorf("WorkflowPath = %q", report.WorkflowPath)
	}

	// Second run is idempotent: asset skipped, workflow left alone.
	report, err = New(&cfg, nil).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("re-provision: %v", err)
	}
	if report.Fetches[0].Status != fetch.StatusSkipped {
		t.Errorf("re-run fetch status = %s, want skipped", report.Fetches[0].Status)
	}
	if report.WorkflowPath != "" {
		t.Error("re-run rewrote the starter workflow")
	}
}

func TestRun_RequiredAssetFailureIsFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.ManifestPath = writeManifest(t, `
assets: [{
	name:    "gated-model"
	source:  "http"
	provider: "huggingface"
	locator: "`+srv.URL+`/gated.safetensors"
	dest:    "models/unet"
}]
`)

	report, err := New(&cfg, nil).Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("required asset failure must fail the run")
	}
	if len(report.Fetches) != 1 || report.Fetches[0].Status != fetch.StatusFailed {
		t.Errorf("fetches = %+v, want one failed result", report.Fetches)
	}
}

// The listen-port check is advisory: a busy port is worth a warning
// during validation but must never fail a run that does not launch.
func TestRun_BusyPortIsAdvisory(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := testConfig(t)
	cfg.DryRun = true
	cfg.ListenHost = "127.0.0.1"
	cfg.Port = config.TCPPort(ln.Addr().(*net.TCPAddr).Port)

	if _, err := New(&cfg, nil).Run(context.Background(), Options{}); err != nil {
		t.Fatalf("busy listen port failed the run: %v", err)
	}
}

func TestRun_BuiltinManifestFallback(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.DryRun = true
	cfg.ManifestPath = ""

	report, err := New(&cfg, nil).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("dry run with builtin manifest: %v", err)
	}

	builtin, err := manifest.Default()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Fetches) != len(builtin.Assets) {
		t.Errorf("planned %d fetches, want %d (one per builtin asset)",
			len(report.Fetches), len(builtin.Assets))
	}
}
