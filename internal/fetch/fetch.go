// Package fetch populates a workspace with the requested revision of a
// git repository. The fallback behavior is an explicit ordered list of
// strategies, tried in sequence until one succeeds.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/CZERTAINLY/Prospector/internal/cmdexec"
	"github.com/CZERTAINLY/Prospector/internal/model"
)

// Fetcher runs git as an external command. Run is replaceable in tests.
type Fetcher struct {
	Git     string
	Timeout time.Duration
	Run     cmdexec.RunFunc
}

func New(git string, timeout time.Duration) Fetcher {
	if git == "" {
		git = "git"
	}
	return Fetcher{
		Git:     git,
		Timeout: timeout,
		Run:     cmdexec.Run,
	}
}

type strategy struct {
	name string
	run  func(context.Context) error
}

// Fetch checks out repoURL at ref into dir. With a ref it first tries a
// shallow clone at that ref (branches and tags), then a shallow default
// clone followed by a depth-1 fetch of the ref and a checkout; a bare
// commit hash only resolves through the second strategy. Without a ref
// only the default branch is cloned. Each strategy gets exactly one
// attempt and a clean dir. When all fail, the returned FetchError joins
// every per-strategy failure.
func (f Fetcher) Fetch(ctx context.Context, repoURL, ref, dir string) error {
	var errs []error
	for i, s := range f.strategies(repoURL, ref, dir) {
		if i > 0 {
			if err := resetDir(dir); err != nil {
				return &model.WorkspaceError{Op: "release", Path: dir, Err: err}
			}
		}
		err := s.run(ctx)
		if err == nil {
			slog.DebugContext(ctx, "source fetched", "strategy", s.name, "repo", repoURL, "ref", ref)
			return nil
		}
		slog.WarnContext(ctx, "fetch strategy failed", "strategy", s.name, "repo", repoURL, "ref", ref, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return &model.FetchError{RepoURL: repoURL, Ref: ref, Err: errors.Join(errs...)}
}

func (f Fetcher) strategies(repoURL, ref, dir string) []strategy {
	if ref == "" {
		return []strategy{{
			name: "clone-default",
			run: func(ctx context.Context) error {
				return f.git(ctx, "", "clone", "--depth", "1", "--", repoURL, dir)
			},
		}}
	}
	return []strategy{
		{
			name: "clone-at-ref",
			run: func(ctx context.Context) error {
				return f.git(ctx, "", "clone", "--depth", "1", "--branch", ref, "--", repoURL, dir)
			},
		},
		{
			name: "clone-fetch-checkout",
			run: func(ctx context.Context) error {
				if err := f.git(ctx, "", "clone", "--depth", "1", "--", repoURL, dir); err != nil {
					return err
				}
				fetchErr := f.git(ctx, dir, "fetch", "--depth", "1", "origin", ref)
				// checkout is attempted even after a failed fetch: the
				// ref may already be resolvable locally
				if err := f.git(ctx, dir, "checkout", ref); err != nil {
					if fetchErr != nil {
						return errors.Join(fetchErr, err)
					}
					return err
				}
				if fetchErr != nil {
					slog.Warn("fetch of ref failed but checkout succeeded", "ref", ref, "error", fetchErr)
				}
				return nil
			},
		},
	}
}

func (f Fetcher) git(ctx context.Context, dir string, args ...string) error {
	_, err := f.Run(ctx, cmdexec.Command{
		Path:    f.Git,
		Args:    args,
		Dir:     dir,
		Timeout: f.Timeout,
	})
	return err
}

// resetDir empties dir between strategy attempts, so a later clone does
// not trip over a partial tree left by an earlier one.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
