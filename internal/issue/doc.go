// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error infrastructure for the atelier CLI.
//
// It has two halves:
//   - actionable.go: ActionableError, a structured error carrying the failed
//     operation, the resource involved, and fix suggestions, built through the
//     fluent ErrorContext builder.
//   - catalog.go: a catalog of known provisioning failure modes, each with a
//     markdown help page rendered to the terminal via glamour.
package issue
