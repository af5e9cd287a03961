// SPDX-License-Identifier: MPL-2.0

// Package config resolves the effective atelier configuration using Viper
// with a dotenv-style key=value file format.
//
// Precedence, strongest first: command-line flag > environment variable >
// configuration file > built-in default. The file is loaded from the first
// existing candidate: the --config path (exclusive when set),
// ~/.config/atelier/atelier.env (or the platform equivalent), then
// ./atelier.env. Every key is overridable by the identically-named
// environment variable (e.g. WORK_DIR, HF_TOKEN, OBJECT_STORE_ENDPOINT).
//
// The resolved Config is immutable for the remainder of the run: every
// component receives it by value at construction instead of consulting the
// process environment ad hoc.
package config
