// SPDX-License-Identifier: MPL-2.0

package bind

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"atelier-cli/internal/issue"

	"github.com/charmbracelet/log"
)

// Mode selects how a model subdirectory is realized.
type Mode string

const (
	// ModeSymlink points the canonical path at the external mount.
	ModeSymlink Mode = "symlink"
	// ModeLocal keeps the canonical path as a plain directory.
	ModeLocal Mode = "local"
)

// Binding describes the desired (and, after Apply, actual) state of one
// model subdirectory.
type Binding struct {
	// Subpath is the model category name, e.g. "checkpoints".
	Subpath string
	// Canonical is the path the application reads models from.
	Canonical string
	// External is the corresponding path under the shared mount. Empty
	// in local mode.
	External string
	// Mode records how Canonical is realized.
	Mode Mode
	// BackupPath is set by Apply when pre-existing local content had to
	// be moved aside before linking.
	BackupPath string
}

// DefaultSubpaths lists the model categories the application expects.
func DefaultSubpaths() []string {
	return []string{
		"checkpoints",
		"clip",
		"controlnet",
		"embeddings",
		"loras",
		"unet",
		"upscale_models",
		"vae",
	}
}

// Binder plans and applies the model directory layout.
type Binder struct {
	appDir    string
	mountRoot string
	subpaths  []string
	logger    *log.Logger

	now func() time.Time
}

// New creates a Binder for the given application directory and external
// mount root. A nil logger falls back to the package default.
func New(appDir, mountRoot string, logger *log.Logger) *Binder {
	if logger == nil {
		logger = log.Default()
	}
	return &Binder{
		appDir:    appDir,
		mountRoot: mountRoot,
		subpaths:  DefaultSubpaths(),
		logger:    logger,
		now:       time.Now,
	}
}

// modelsDir is where the application expects its model tree.
func (b *Binder) modelsDir() string {
	return filepath.Join(b.appDir, "models")
}

// MountAvailable reports whether the external mount root exists and is a
// directory.
func (b *Binder) MountAvailable() bool {
	info, err := os.Stat(b.mountRoot)
	return err == nil && info.IsDir()
}

// Plan computes the desired binding for every model subdirectory without
// touching the filesystem. When the external mount is absent every
// binding falls back to local mode.
func (b *Binder) Plan() []Binding {
	mounted := b.MountAvailable()
	plan := make([]Binding, 0, len(b.subpaths))
	for _, sub := range b.subpaths {
		bd := Binding{
			Subpath:   sub,
			Canonical: filepath.Join(b.modelsDir(), sub),
			Mode:      ModeLocal,
		}
		if mounted {
			bd.Mode = ModeSymlink
			bd.External = filepath.Join(b.mountRoot, sub)
		}
		plan = append(plan, bd)
	}
	return plan
}

// Apply realizes the plan on disk and returns the resulting bindings,
// with BackupPath filled in where local content was moved aside. Any
// filesystem error aborts the whole operation: a half-bound model tree
// would make the service read from a mix of locations.
func (b *Binder) Apply(plan []Binding) ([]Binding, error) {
	if err := os.MkdirAll(b.modelsDir(), 0o755); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("create models directory").
			WithResource(b.modelsDir()).
			WithSuggestion("Check ownership and mode of the application directory").
			Wrap(err).
			BuildError()
	}

	applied := make([]Binding, 0, len(plan))
	for _, bd := range plan {
		result, err := b.applyOne(bd)
		if err != nil {
			return applied, err
		}
		applied = append(applied, result)
	}
	return applied, nil
}

func (b *Binder) applyOne(bd Binding) (Binding, error) {
	switch bd.Mode {
	case ModeLocal:
		if err := os.MkdirAll(bd.Canonical, 0o755); err != nil {
			return bd, b.wrapf(bd, "create local model directory", err)
		}
		return bd, nil

	case ModeSymlink:
		if err := os.MkdirAll(bd.External, 0o755); err != nil {
			return bd, b.wrapf(bd, "create external model directory", err)
		}
		return b.link(bd)

	default:
		return bd, fmt.Errorf("unknown binding mode %q for %s", bd.Mode, bd.Subpath)
	}
}

// link makes bd.Canonical a symlink to bd.External, moving any existing
// real content to a timestamped backup first.
func (b *Binder) link(bd Binding) (Binding, error) {
	info, err := os.Lstat(bd.Canonical)
	switch {
	case os.IsNotExist(err):
		// Nothing in the way.

	case err != nil:
		return bd, b.wrapf(bd, "inspect model directory", err)

	case info.Mode()&os.ModeSymlink != 0:
		target, rerr := os.Readlink(bd.Canonical)
		if rerr == nil && target == bd.External {
			return bd, nil
		}
		// Stale or foreign link; symlinks carry no data, replace directly.
		if rerr := os.Remove(bd.Canonical); rerr != nil {
			return bd, b.wrapf(bd, "remove stale symlink", rerr)
		}

	case info.IsDir():
		empty, derr := dirEmpty(bd.Canonical)
		if derr != nil {
			return bd, b.wrapf(bd, "inspect model directory", derr)
		}
		if empty {
			if rerr := os.Remove(bd.Canonical); rerr != nil {
				return bd, b.wrapf(bd, "remove empty model directory", rerr)
			}
		} else {
			backup := b.backupName(bd.Canonical)
			b.logger.Warn("model directory has local content, backing up",
				"subpath", bd.Subpath, "backup", backup)
			if rerr := os.Rename(bd.Canonical, backup); rerr != nil {
				return bd, b.wrapf(bd, "back up model directory", rerr)
			}
			bd.BackupPath = backup
		}

	default:
		// A regular file where a directory belongs. Preserve it too.
		backup := b.backupName(bd.Canonical)
		if rerr := os.Rename(bd.Canonical, backup); rerr != nil {
			return bd, b.wrapf(bd, "back up conflicting file", rerr)
		}
		bd.BackupPath = backup
	}

	if err := os.Symlink(bd.External, bd.Canonical); err != nil {
		return bd, b.wrapf(bd, "create model symlink", err)
	}
	b.logger.Debug("bound model directory", "subpath", bd.Subpath, "target", bd.External)
	return bd, nil
}

func (b *Binder) backupName(path string) string {
	return fmt.Sprintf("%s.bak-%s", path, b.now().Format("20060102-150405"))
}

func (b *Binder) wrapf(bd Binding, op string, err error) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(bd.Canonical).
		WithSuggestion("Verify write access to the application and mount directories").
		Wrap(err).
		BuildError()
}

func dirEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
