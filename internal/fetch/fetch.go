// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"atelier-cli/internal/config"
	"atelier-cli/internal/issue"
	"atelier-cli/pkg/manifest"

	"github.com/charmbracelet/log"
)

// Status classifies the outcome of fetching one asset.
type Status string

const (
	// StatusDownloaded means the asset was transferred this run.
	StatusDownloaded Status = "downloaded"
	// StatusSkipped means the asset was already present (or a repository
	// was already up to date) and nothing was transferred.
	StatusSkipped Status = "skipped"
	// StatusPlanned means dry-run mode reported what would be fetched.
	StatusPlanned Status = "planned"
	// StatusStale means a repository exists locally but could not be
	// updated. The run continues with the local copy.
	StatusStale Status = "stale"
	// StatusFailed means the asset could not be materialized.
	StatusFailed Status = "failed"
)

// Result records the outcome for one manifest asset.
type Result struct {
	Asset  manifest.Asset
	Status Status
	// Path is where the asset lives (or would live, for planned).
	Path string
	// Err is set for failed and stale outcomes.
	Err error
}

// Fetcher downloads manifest assets into the application directory.
type Fetcher struct {
	appDir string
	dryRun bool
	logger *log.Logger

	http   *httpFetcher
	object *objectFetcher
	git    *gitSyncer
}

// New builds a Fetcher from resolved configuration. The object store
// client is constructed once here; if the object store is not configured,
// objectstore assets fail at fetch time with a pointed error.
func New(cfg *config.Config, logger *log.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = log.Default()
	}

	f := &Fetcher{
		appDir: string(cfg.AppDir),
		dryRun: cfg.DryRun,
		logger: logger,
		http:   newHTTPFetcher(cfg.HFToken, cfg.CivitaiToken, cfg.DownloadTimeout),
		git:    newGitSyncer(logger),
	}

	if cfg.ObjectStore.Enabled() {
		object, err := newObjectFetcher(cfg.ObjectStore)
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("configure object store client").
				WithResource(cfg.ObjectStore.Endpoint).
				WithSuggestion("Check OBJECT_STORE_ENDPOINT and credentials").
				Wrap(err).
				BuildError()
		}
		f.object = object
	}

	return f, nil
}

// Fetch materializes every asset in the manifest. All assets are
// attempted even when earlier ones fail, so one bad URL does not hide
// the rest. The returned error is non-nil only when a required asset
// failed; optional failures are reported in the results and logged.
func (f *Fetcher) Fetch(ctx context.Context, m *manifest.Manifest) ([]Result, error) {
	results := make([]Result, 0, len(m.Assets))
	var requiredFailures []string

	for _, asset := range m.Assets {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := f.fetchOne(ctx, asset)
		results = append(results, res)

		switch res.Status {
		case StatusFailed:
			if asset.Optional {
				f.logger.Warn("optional asset failed, continuing",
					"asset", asset.Name, "error", res.Err)
			} else {
				f.logger.Error("required asset failed",
					"asset", asset.Name, "error", res.Err)
				requiredFailures = append(requiredFailures, asset.Name)
			}
		case StatusStale:
			f.logger.Warn("repository not updated, using local copy",
				"asset", asset.Name, "error", res.Err)
		case StatusSkipped:
			f.logger.Debug("asset already present", "asset", asset.Name, "path", res.Path)
		case StatusDownloaded:
			f.logger.Info("asset fetched", "asset", asset.Name, "path", res.Path)
		case StatusPlanned:
			f.logger.Info("would fetch asset", "asset", asset.Name, "path", res.Path)
		}
	}

	if len(requiredFailures) > 0 {
		return results, issue.NewErrorContext().
			WithOperation("fetch required assets").
			WithResource(strings.Join(requiredFailures, ", ")).
			WithSuggestion("Check network access and provider credentials (HF_TOKEN, CIVITAI_TOKEN)").
			Wrap(fmt.Errorf("%d required asset(s) failed", len(requiredFailures))).
			BuildError()
	}
	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, asset manifest.Asset) Result {
	if asset.Source == manifest.SourceVersionControl {
		return f.fetchRepo(ctx, asset)
	}

	destPath := filepath.Join(f.appDir, asset.Dest, asset.TargetFilename())
	res := Result{Asset: asset, Path: destPath}

	if present, err := fileExistsNonEmpty(destPath); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	} else if present {
		res.Status = StatusSkipped
		return res
	}

	if f.dryRun {
		res.Status = StatusPlanned
		return res
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	var err error
	switch asset.Source {
	case manifest.SourceHTTP:
		err = f.http.download(ctx, asset, destPath)
	case manifest.SourceObjectStore:
		if f.object == nil {
			err = fmt.Errorf("asset %s needs an object store, but none is configured", asset.Name)
		} else {
			err = f.object.download(ctx, asset, destPath)
		}
	default:
		err = fmt.Errorf("unknown asset source %q", asset.Source)
	}

	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	res.Status = StatusDownloaded
	return res
}

func (f *Fetcher) fetchRepo(ctx context.Context, asset manifest.Asset) Result {
	destPath := filepath.Join(f.appDir, asset.Dest)
	res := Result{Asset: asset, Path: destPath}

	if f.dryRun {
		if _, err := os.Stat(filepath.Join(destPath, ".git")); err == nil {
			res.Status = StatusSkipped
		} else {
			res.Status = StatusPlanned
		}
		return res
	}

	status, err := f.git.sync(ctx, asset.Locator, destPath)
	res.Status = status
	res.Err = err
	return res
}

// fileExistsNonEmpty reports whether path is a regular file with content.
// Zero-size files are treated as absent so interrupted runs retry.
func fileExistsNonEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}
