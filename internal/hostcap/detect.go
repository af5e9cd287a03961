// SPDX-License-Identifier: MPL-2.0

package hostcap

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v4/mem"
)

// Accelerator describes the detected GPU, if any.
type Accelerator struct {
	Present        bool
	Name           string
	MemoryMB       uint64
	DriverVersion  string
	ToolkitVersion string
}

// Host is the full probe result.
type Host struct {
	Accelerator    Accelerator
	SystemMemoryMB uint64
}

// Function variables for testing.
var (
	runNvidiaSMI = func(ctx context.Context) ([]byte, error) {
		return exec.CommandContext(ctx, "nvidia-smi",
			"--query-gpu=name,memory.total,driver_version",
			"--format=csv,noheader,nounits").Output()
	}
	runNvcc = func(ctx context.Context) ([]byte, error) {
		return exec.CommandContext(ctx, "nvcc", "--version").Output()
	}
	virtualMemory = mem.VirtualMemoryWithContext
)

var nvccReleaseRe = regexp.MustCompile(`release\s+([0-9]+\.[0-9]+)`)

// Detect probes the host. A missing accelerator (no driver, no GPU, or
// nvidia-smi absent from PATH) is a normal outcome, not an error: the
// service can still run in CPU mode. Only a failed system memory probe
// returns an error.
func Detect(ctx context.Context, logger *log.Logger) (*Host, error) {
	if logger == nil {
		logger = log.Default()
	}

	host := &Host{}

	vm, err := virtualMemory(ctx)
	if err != nil {
		return nil, err
	}
	host.SystemMemoryMB = vm.Total / (1024 * 1024)

	out, err := runNvidiaSMI(ctx)
	if err != nil {
		logger.Warn("no accelerator detected, continuing in CPU mode", "probe", "nvidia-smi")
		return host, nil
	}

	acc, ok := parseNvidiaSMI(string(out))
	if !ok {
		logger.Warn("could not parse accelerator probe output", "probe", "nvidia-smi")
		return host, nil
	}

	if nvccOut, err := runNvcc(ctx); err == nil {
		acc.ToolkitVersion = parseNvccVersion(string(nvccOut))
	}

	host.Accelerator = acc
	logger.Info("accelerator detected",
		"name", acc.Name, "vram_mb", acc.MemoryMB, "driver", acc.DriverVersion)
	return host, nil
}

// parseNvidiaSMI parses one CSV line of nvidia-smi query output:
//
//	NVIDIA GeForce RTX 4090, 24564, 550.54.14
//
// Multi-GPU hosts report one line per device; the first device wins.
func parseNvidiaSMI(out string) (Accelerator, bool) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return Accelerator{}, false
	}

	memMB, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return Accelerator{}, false
	}

	return Accelerator{
		Present:       true,
		Name:          strings.TrimSpace(fields[0]),
		MemoryMB:      memMB,
		DriverVersion: strings.TrimSpace(fields[2]),
	}, true
}

// parseNvccVersion extracts the toolkit release from `nvcc --version`
// output. Returns empty when the banner format is unrecognized.
func parseNvccVersion(out string) string {
	m := nvccReleaseRe.FindStringSubmatch(out)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
