// SPDX-License-Identifier: MPL-2.0

// Package bind manages the model directory layout under the application
// tree. Each well-known model subdirectory (checkpoints, loras, vae, ...)
// is either a symlink into a shared external mount or a plain local
// directory, never both. When an external mount is available, existing
// local directories with content are preserved as timestamped backups
// before the symlink replaces them.
package bind
