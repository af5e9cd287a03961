// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"atelier-cli/internal/issue"

	"golang.org/x/sys/unix"
)

// EnsureWorkDir verifies the working directory exists or is creatable, and
// is writable. Failure here is fatal for the run: provisioning has nowhere
// to place scripts, logs, or temp downloads.
//
// In dry-run mode no directory is created; instead the nearest existing
// ancestor is checked for write access so the same validation errors
// surface without mutating the filesystem.
func EnsureWorkDir(path DirPath, dryRun bool) error {
	if valid, errs := path.IsValid(); !valid {
		return errs[0]
	}

	if dryRun {
		if err := checkAncestorWritable(string(path)); err != nil {
			return issue.NewErrorContext().
				WithOperation("validate working directory").
				WithResource(string(path)).
				WithSuggestion("Create the directory with the right ownership before provisioning").
				Wrap(err).
				BuildError()
		}
		return nil
	}

	if err := os.MkdirAll(string(path), 0o755); err != nil {
		return issue.NewErrorContext().
			WithOperation("create working directory").
			WithResource(string(path)).
			WithSuggestion("Check permissions on the parent directory").
			Wrap(err).
			BuildError()
	}

	probe, err := os.CreateTemp(string(path), ".write-check-*")
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("validate working directory").
			WithResource(string(path)).
			WithSuggestion("Check directory ownership and mode").
			Wrap(err).
			BuildError()
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return nil
}

// checkAncestorWritable walks up from path to the nearest existing
// directory and checks write access on it.
func checkAncestorWritable(path string) error {
	dir := filepath.Clean(path)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s exists and is not a directory", dir)
			}
			if err := unix.Access(dir, unix.W_OK); err != nil {
				return fmt.Errorf("%s is not writable: %w", dir, err)
			}
			return nil
		}
		if !os.IsNotExist(err) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("no existing ancestor for %s", path)
		}
		dir = parent
	}
}

// CheckPortFree reports whether the requested listen port is currently
// bindable. The check is advisory only: a non-nil error must be logged as
// a warning, never treated as fatal, since the port may free up before the
// service actually starts (or the occupant may be a previous instance).
func CheckPortFree(host string, port TCPPort) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port.Int()))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d appears to be in use: %w", port.Int(), err)
	}
	_ = l.Close()
	return nil
}
