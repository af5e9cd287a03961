// SPDX-License-Identifier: MPL-2.0

package hostcap

import (
	"fmt"
)

// Profile is the performance tier derived from accelerator VRAM.
type Profile string

const (
	// ProfileHigh targets cards with 24GB of VRAM or more.
	ProfileHigh Profile = "high"
	// ProfileMedium targets cards with 12GB or more.
	ProfileMedium Profile = "medium"
	// ProfileLow covers smaller cards and CPU-only hosts.
	ProfileLow Profile = "low"
)

const mbPerGB = 1024

// ProfileFor maps accelerator VRAM to a performance tier. Thresholds
// use whole gigabytes: driver tools report VRAM in MiB, and cards
// advertise round GB figures.
func ProfileFor(memoryMB uint64) Profile {
	gb := memoryMB / mbPerGB
	switch {
	case gb >= 24:
		return ProfileHigh
	case gb >= 12:
		return ProfileMedium
	default:
		return ProfileLow
	}
}

// MemoryFraction is the share of VRAM the service may claim.
func (p Profile) MemoryFraction() float64 {
	switch p {
	case ProfileHigh:
		return 0.90
	case ProfileMedium:
		return 0.80
	default:
		return 0.70
	}
}

// VRAMFlag is the service command-line flag selecting the VRAM
// management strategy for this tier.
func (p Profile) VRAMFlag() string {
	switch p {
	case ProfileHigh:
		return "--highvram"
	case ProfileMedium:
		return "--normalvram"
	default:
		return "--lowvram"
	}
}

// AllocConf builds the PYTORCH_CUDA_ALLOC_CONF value for this tier.
// Only the low tier gets a split-size cap to curb fragmentation.
func (p Profile) AllocConf() string {
	if p == ProfileLow {
		return "max_split_size_mb:256,expandable_segments:True"
	}
	return "expandable_segments:True"
}

// Exports returns the environment variables the startup script must set
// for this tier.
func (p Profile) Exports() map[string]string {
	return map[string]string{
		"PYTORCH_CUDA_ALLOC_CONF": p.AllocConf(),
		"COMFYUI_MEMORY_FRACTION": fmt.Sprintf("%.2f", p.MemoryFraction()),
		"ATELIER_PROFILE":         string(p),
	}
}

// RuntimeFlags are the accelerator-dependent pieces of the service
// launch: environment exports and the VRAM management flag.
type RuntimeFlags struct {
	// Profile is the selected performance tier. Empty when the host
	// has no accelerator.
	Profile Profile
	// Exports are the environment variables for the startup script.
	Exports map[string]string
	// VRAMFlag is the service command-line flag. Empty when the host
	// has no accelerator; the service then selects CPU execution on
	// its own.
	VRAMFlag string
}

// DeriveRuntimeFlags maps probed capabilities to launch flags. A host
// without an accelerator gets no exports and no VRAM flag.
func DeriveRuntimeFlags(host *Host) RuntimeFlags {
	if host == nil || !host.Accelerator.Present {
		return RuntimeFlags{Exports: map[string]string{}}
	}
	profile := ProfileFor(host.Accelerator.MemoryMB)
	return RuntimeFlags{
		Profile:  profile,
		Exports:  profile.Exports(),
		VRAMFlag: profile.VRAMFlag(),
	}
}
