// Package repo defines the git capability the propagation engine consumes
// (spec.md §6) and two implementations: GitRepo, backed by go-git, and
// FakeRepo, an in-memory double driven by a literal commit graph for tests
// (spec.md §9's design note).
package repo

import "github.com/starkandwayne/cepler/pkg/model"

// Capability is every git operation the engine needs. It deliberately
// excludes anything about *how* those operations happen (SSH keys, network
// retries, pack protocol) — that is the concrete implementation's problem,
// out of scope per spec.md §1.
type Capability interface {
	// HeadCommitHash returns the commit HEAD currently points at.
	HeadCommitHash() (model.CommitHash, error)

	// HeadFiles returns every working-tree path matching any of
	// headFilters and none of ignore.
	HeadFiles(headFilters, ignore []string) ([]string, error)

	// IsFileDirty reports whether path's working-tree content differs
	// from what the last commit recorded at that path.
	IsFileDirty(path string) (bool, error)

	// FindLastChangedCommit returns the newest commit touching any of
	// paths or deletedPaths, tie-broken lexicographically smallest commit
	// hash among ties (spec.md §9 open question), along with its subject.
	FindLastChangedCommit(paths, deletedPaths []string) (model.CommitHash, string, error)

	// GetFileContent reads path's blob at commit. ok is false if the path
	// did not exist at that commit.
	GetFileContent(commit model.CommitHash, path string) (content []byte, ok bool, err error)

	// CheckoutHead restores the working tree to HEAD, restricted to
	// headFilters when non-nil, honoring ignore.
	CheckoutHead(headFilters, ignore []string) error

	// CheckoutFileFrom writes path's content as of commit into the
	// working tree.
	CheckoutFileFrom(path string, commit model.CommitHash) error

	// CommitStateFile stages and commits path (the freshly-written
	// environment .state file).
	CommitStateFile(path string) error

	// Push pushes the current branch to its configured remote.
	Push() error

	// ReadWorkingFile reads path's current working-tree content, regardless
	// of whether it has been committed. ok is false if path does not exist.
	ReadWorkingFile(path string) (content []byte, ok bool, err error)

	// RemoveWorkingFile deletes path from the working tree without
	// affecting history. It is not an error if path is already absent.
	RemoveWorkingFile(path string) error
}

// GitConfig names the remote and branch a Capability clones/pushes to.
type GitConfig struct {
	URL        string
	Branch     string
	Dir        string
	PrivateKey string
}
