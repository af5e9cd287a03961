// SPDX-License-Identifier: MPL-2.0

// Package provision drives the end-to-end workstation setup: validate
// directories, probe the host, bind the model tree, fetch manifest
// assets, generate the startup script and starter workflow, and
// optionally launch the service. Each stage is also reachable on its
// own through the corresponding CLI command.
package provision
