// SPDX-License-Identifier: MPL-2.0

// Package lifecycle generates the service startup script and controls
// the service process: launch, bounded readiness polling, and shutdown.
// Scripts are rendered deterministically so repeated provisioning runs
// produce byte-identical output, and every rendered script is checked
// against a real shell parser before it reaches disk.
package lifecycle
