// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"atelier-cli/internal/hostcap"
)

func gpuFlags(memoryMB uint64) hostcap.RuntimeFlags {
	return hostcap.DeriveRuntimeFlags(&hostcap.Host{
		Accelerator: hostcap.Accelerator{Present: true, MemoryMB: memoryMB},
	})
}

func baseParams() ScriptParams {
	return ScriptParams{
		AppDir:     "/srv/atelier/ComfyUI",
		ListenHost: "127.0.0.1",
		Port:       8188,
		Flags:      gpuFlags(24 * 1024),
	}
}

// TestRenderScript_Deterministic renders the same parameters repeatedly
// and requires byte-identical output. Export ordering must not depend
// on map iteration.
func TestRenderScript_Deterministic(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.ExtraExports = map[string]string{
		"ZETA":  "z",
		"ALPHA": "a",
		"MID":   "m",
	}

	first, err := RenderScript(p)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := RenderScript(p)
		if err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("render %d differs:\n%s\nvs\n%s", i, again, first)
		}
	}

	// Sorted export order.
	alpha := strings.Index(first, "export ALPHA=")
	mid := strings.Index(first, "export MID=")
	zeta := strings.Index(first, "export ZETA=")
	if alpha == -1 || mid == -1 || zeta == -1 {
		t.Fatalf("exports missing from script:\n%s", first)
	}
	if !(alpha < mid && mid < zeta) {
		t.Errorf("exports not in sorted order:\n%s", first)
	}
}

func TestRenderScript_LaunchLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		memoryMB uint64
		wantFlag string
	}{
		{24 * 1024, "--highvram"},
		{16 * 1024, "--normalvram"},
		{8 * 1024, "--lowvram"},
	}

	for _, tt := range tests {
		p := baseParams()
		p.Flags = gpuFlags(tt.memoryMB)

		out, err := RenderScript(p)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if !strings.Contains(out, "--listen 127.0.0.1 --port 8188 "+tt.wantFlag) {
			t.Errorf("%d MB: launch line missing expected flags:\n%s", tt.memoryMB, out)
		}
		if !strings.Contains(out, "set -euo pipefail") {
			t.Errorf("script missing strict mode:\n%s", out)
		}
	}
}

// A CPU-only host gets a script with no GPU environment and no VRAM
// flag; the service chooses CPU execution on its own.
func TestRenderScript_NoAcceleratorOmitsGPUFlags(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.Flags = hostcap.DeriveRuntimeFlags(&hostcap.Host{})

	out, err := RenderScript(p)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, forbidden := range []string{
		"--highvram", "--normalvram", "--lowvram",
		"PYTORCH_CUDA_ALLOC_CONF", "COMFYUI_MEMORY_FRACTION", "ATELIER_PROFILE",
	} {
		if strings.Contains(out, forbidden) {
			t.Errorf("CPU-only script contains %q:\n%s", forbidden, out)
		}
	}
	if !strings.Contains(out, "--listen 127.0.0.1 --port 8188\n") {
		t.Errorf("launch line malformed:\n%s", out)
	}
}

func TestRenderScript_ProfileExportsPresent(t *testing.T) {
	t.Parallel()

	out, err := RenderScript(baseParams())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "export COMFYUI_MEMORY_FRACTION='0.90'") {
		t.Errorf("memory fraction export missing:\n%s", out)
	}
	if !strings.Contains(out, "export PYTORCH_CUDA_ALLOC_CONF=") {
		t.Errorf("alloc conf export missing:\n%s", out)
	}
}

func TestRenderScript_ExtraExportOverridesProfile(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.ExtraExports = map[string]string{"COMFYUI_MEMORY_FRACTION": "0.50"}

	out, err := RenderScript(p)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "export COMFYUI_MEMORY_FRACTION='0.50'") {
		t.Errorf("override lost:\n%s", out)
	}
	if strings.Contains(out, "'0.90'") {
		t.Errorf("overridden value still present:\n%s", out)
	}
}

func TestRenderScript_RejectsQuoteInjection(t *testing.T) {
	t.Parallel()

	p := baseParams()
	p.ExtraExports = map[string]string{"EVIL": "'; rm -rf / #"}

	if _, err := RenderScript(p); err == nil {
		t.Fatal("quote-bearing export value must be rejected")
	}
}

func TestWriteScript_Executable(t *testing.T) {
	t.Parallel()

	content, err := RenderScript(baseParams())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	path := filepath.Join(t.TempDir(), ScriptName)
	if err := WriteScript(path, content); err != nil {
		t.Fatalf("write: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("script mode %v is not executable", info.Mode())
	}
}
