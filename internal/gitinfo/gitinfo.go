// Package gitinfo reads repository metadata from a local working copy so
// callers do not have to pass the upstream URL and branch explicitly.
package gitinfo

import (
	git "github.com/go-git/go-git/v5"

	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Info describes the local documentation repository.
type Info struct {
	// RemoteURL is the first URL of the "origin" remote; empty when the
	// repository has no origin remote.
	RemoteURL string
	// Branch is the short name of the checked-out branch; empty for a
	// detached HEAD or an unborn branch.
	Branch string
}

// Detect opens the repository at or above repoPath and extracts Info.
func Detect(repoPath string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Info{}, ferrors.WrapError(err, ferrors.CategoryValidation, "open git repository").
			WithContext("path", repoPath).
			Build()
	}

	info := Info{}

	if remote, err := repo.Remote("origin"); err == nil {
		urls := remote.Config().URLs
		if len(urls) > 0 {
			info.RemoteURL = urls[0]
		}
	}

	// HEAD resolution fails on a fresh repository with no commits; the
	// branch is simply unknown then, not an error.
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	return info, nil
}
