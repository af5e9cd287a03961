// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// SweepPartials removes leftover .part files under root, the residue of
// interrupted downloads. Returns the number of files removed. Walk
// errors are logged and skipped: a sweep is housekeeping, never a
// reason to abort provisioning.
func SweepPartials(root string, logger *log.Logger) int {
	if logger == nil {
		logger = log.Default()
	}

	removed := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("skipping during partial sweep", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".part") {
			return nil
		}
		if rerr := os.Remove(path); rerr != nil {
			logger.Warn("could not remove partial download", "path", path, "error", rerr)
			return nil
		}
		logger.Info("removed interrupted download", "path", path)
		removed++
		return nil
	})
	return removed
}
