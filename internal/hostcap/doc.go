// SPDX-License-Identifier: MPL-2.0

// Package hostcap probes what the host can do: accelerator presence and
// VRAM via the NVIDIA driver tools, toolkit version via nvcc, and
// system memory via gopsutil. Probe results feed the performance
// profile that shapes the service startup flags.
package hostcap
