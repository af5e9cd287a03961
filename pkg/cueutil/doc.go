// SPDX-License-Identifier: MPL-2.0

// Package cueutil wraps the CUE evaluation flow used for every CUE
// document in the project: compile the embedded schema, compile the user
// document, unify, validate, decode. Errors come back with JSON-path
// locations so users can find the offending field.
package cueutil
