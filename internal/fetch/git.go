// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// gitSyncer keeps versioncontrol-source assets (custom node
// repositories) present and current.
type gitSyncer struct {
	auth   transport.AuthMethod
	logger *log.Logger
}

func newGitSyncer(logger *log.Logger) *gitSyncer {
	return &gitSyncer{
		auth:   tokenAuthFromEnv(),
		logger: logger,
	}
}

// tokenAuthFromEnv configures HTTP token auth when a hosting token is in
// the environment. Public repositories work without any of these.
func tokenAuthFromEnv() transport.AuthMethod {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}
	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		return &githttp.BasicAuth{Username: "gitlab-ci-token", Password: token}
	}
	if token := os.Getenv("GIT_TOKEN"); token != "" {
		return &githttp.BasicAuth{Username: "git", Password: token}
	}
	return nil
}

// sync clones the repository if destPath has no checkout, otherwise
// pulls in place. A pull failure on an existing checkout is not fatal:
// the local copy still works, so the result is stale rather than failed.
func (g *gitSyncer) sync(ctx context.Context, url, destPath string) (Status, error) {
	repo, err := git.PlainOpen(destPath)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		_, cloneErr := git.PlainCloneContext(ctx, destPath, false, &git.CloneOptions{
			URL:  url,
			Auth: g.auth,
		})
		if cloneErr != nil {
			return StatusFailed, cloneErr
		}
		return StatusDownloaded, nil
	}
	if err != nil {
		return StatusFailed, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return StatusStale, err
	}

	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName: "origin",
		Auth:       g.auth,
	})
	switch {
	case err == nil:
		return StatusDownloaded, nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return StatusSkipped, nil
	default:
		return StatusStale, err
	}
}
