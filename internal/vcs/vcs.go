// Package vcs reads git metadata for the document header and clones remote
// repositories given as project paths.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	"github.com/temirov/codexify/internal/utils"
)

const (
	shortHashLength       = 7
	detachedHeadName      = "detached"
	revisionFormat        = "%s@%s"
	cloneDirectoryPattern = "codexify-git-"
	gitURLSuffix          = ".git"
	sshURLPrefix          = "git@"
	openRepositoryFormat  = "open repository at %s: %w"
	resolveHeadFormat     = "resolve HEAD of %s: %w"
	createCloneDirFormat  = "create clone directory: %w"
	cloneRepositoryFormat = "clone repository %s: %w"
)

// Revision identifies the checked-out commit of a repository.
type Revision struct {
	RepositoryRoot string
	Branch         string
	CommitHash     string
}

// String renders the revision as branch@shorthash.
func (revision Revision) String() string {
	branch := revision.Branch
	if branch == "" {
		branch = detachedHeadName
	}
	shortHash := revision.CommitHash
	if len(shortHash) > shortHashLength {
		shortHash = shortHash[:shortHashLength]
	}
	return fmt.Sprintf(revisionFormat, branch, shortHash)
}

// Describe reports the revision of the repository containing path. The boolean
// is false when path is not inside a repository or the repository has no commits.
func Describe(path string) (Revision, bool, error) {
	repository, openError := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if openError != nil {
		if errors.Is(openError, git.ErrRepositoryNotExists) {
			return Revision{}, false, nil
		}
		return Revision{}, false, fmt.Errorf(openRepositoryFormat, path, openError)
	}
	headReference, headError := repository.Head()
	if headError != nil {
		if errors.Is(headError, plumbing.ErrReferenceNotFound) {
			return Revision{}, false, nil
		}
		return Revision{}, false, fmt.Errorf(resolveHeadFormat, path, headError)
	}
	revision := Revision{CommitHash: headReference.Hash().String()}
	if headReference.Name().IsBranch() {
		revision.Branch = headReference.Name().Short()
	}
	if worktree, worktreeError := repository.Worktree(); worktreeError == nil {
		revision.RepositoryRoot = worktree.Filesystem.Root()
	}
	return revision, true, nil
}

// IsRepositoryURL reports whether input looks like a clonable git URL rather
// than a local path.
func IsRepositoryURL(input string) bool {
	trimmedInput := strings.TrimSpace(input)
	if strings.HasPrefix(trimmedInput, sshURLPrefix) {
		return true
	}
	if !strings.HasSuffix(trimmedInput, gitURLSuffix) {
		return false
	}
	return strings.Contains(trimmedInput, "://")
}

// Clone performs a shallow clone of url into a temporary directory. The
// returned cleanup function removes the directory.
func Clone(ctx context.Context, url string, logger *zap.Logger) (string, func(), error) {
	logger = utils.LoggerOrNop(logger)
	temporaryDirectory, createError := os.MkdirTemp("", cloneDirectoryPattern)
	if createError != nil {
		return "", nil, fmt.Errorf(createCloneDirFormat, createError)
	}
	cleanup := func() {
		_ = os.RemoveAll(temporaryDirectory)
	}
	logger.Info("cloning repository", zap.String("url", url), zap.String("directory", temporaryDirectory))
	_, cloneError := git.PlainCloneContext(ctx, temporaryDirectory, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.HEAD,
		SingleBranch:  true,
		Depth:         1,
	})
	if cloneError != nil {
		cleanup()
		return "", nil, fmt.Errorf(cloneRepositoryFormat, url, cloneError)
	}
	return temporaryDirectory, cleanup, nil
}
