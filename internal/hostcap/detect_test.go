// SPDX-License-Identifier: MPL-2.0

package hostcap

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/mem"
)

// stubProbes replaces the external probe commands for the duration of a
// test. Tests using it must not run in parallel.
func stubProbes(t *testing.T, smiOut string, smiErr error, nvccOut string, nvccErr error, totalBytes uint64) {
	t.Helper()

	origSMI, origNvcc, origVM := runNvidiaSMI, runNvcc, virtualMemory
	t.Cleanup(func() {
		runNvidiaSMI, runNvcc, virtualMemory = origSMI, origNvcc, origVM
	})

	runNvidiaSMI = func(context.Context) ([]byte, error) { return []byte(smiOut), smiErr }
	runNvcc = func(context.Context) ([]byte, error) { return []byte(nvccOut), nvccErr }
	virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: totalBytes}, nil
	}
}

func TestDetect_AcceleratorPresent(t *testing.T) {
	stubProbes(t,
		"NVIDIA GeForce RTX 4090, 24564, 550.54.14\n", nil,
		"nvcc: NVIDIA (R) Cuda compiler driver\nCuda compilation tools, release 12.4, V12.4.131\n", nil,
		64*1024*1024*1024)

	host, err := Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acc := host.Accelerator
	if !acc.Present {
		t.Fatal("accelerator should be present")
	}
	if acc.Name != "NVIDIA GeForce RTX 4090" {
		t.Errorf("Name = %q", acc.Name)
	}
	if acc.MemoryMB != 24564 {
		t.Errorf("MemoryMB = %d, want 24564", acc.MemoryMB)
	}
	if acc.DriverVersion != "550.54.14" {
		t.Errorf("DriverVersion = %q", acc.DriverVersion)
	}
	if acc.ToolkitVersion != "12.4" {
		t.Errorf("ToolkitVersion = %q, want 12.4", acc.ToolkitVersion)
	}
	if host.SystemMemoryMB != 64*1024 {
		t.Errorf("SystemMemoryMB = %d, want %d", host.SystemMemoryMB, 64*1024)
	}
}

func TestDetect_AcceleratorAbsentIsNotAnError(t *testing.T) {
	stubProbes(t, "", errors.New("exec: \"nvidia-smi\": executable file not found in $PATH"),
		"", errors.New("no nvcc"), 16*1024*1024*1024)

	host, err := Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("missing accelerator must not be an error: %v", err)
	}
	if host.Accelerator.Present {
		t.Error("accelerator reported present without a driver")
	}
	if host.SystemMemoryMB != 16*1024 {
		t.Errorf("SystemMemoryMB = %d, want %d", host.SystemMemoryMB, 16*1024)
	}
}

func TestDetect_MultiGPUTakesFirstDevice(t *testing.T) {
	stubProbes(t,
		"NVIDIA A100-SXM4-40GB, 40960, 535.104.05\nNVIDIA A100-SXM4-40GB, 40960, 535.104.05\n", nil,
		"", errors.New("no nvcc"), 256*1024*1024*1024)

	host, err := Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host.Accelerator.MemoryMB != 40960 {
		t.Errorf("MemoryMB = %d, want 40960", host.Accelerator.MemoryMB)
	}
	if host.Accelerator.ToolkitVersion != "" {
		t.Errorf("ToolkitVersion = %q, want empty without nvcc", host.Accelerator.ToolkitVersion)
	}
}

func TestDetect_GarbageProbeOutput(t *testing.T) {
	stubProbes(t, "not,csv", nil, "", errors.New("no nvcc"), 8*1024*1024*1024)

	host, err := Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host.Accelerator.Present {
		t.Error("unparseable probe output must not report an accelerator")
	}
}

func TestParseNvccVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		out  string
		want string
	}{
		{
			"standard banner",
			"Cuda compilation tools, release 12.4, V12.4.131",
			"12.4",
		},
		{"empty", "", ""},
		{"unrecognized", "nvcc fatal : no input", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseNvccVersion(tt.out); got != tt.want {
				t.Errorf("parseNvccVersion(%q) = %q, want %q", tt.out, got, tt.want)
			}
		})
	}
}
