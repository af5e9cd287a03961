// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for atelier: the end-to-end
// provision command plus per-stage commands (detect, bind, fetch,
// start) and configuration management.
package cmd
