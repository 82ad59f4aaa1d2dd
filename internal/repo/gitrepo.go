package repo

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/pkg/errors"

	"github.com/starkandwayne/cepler/internal/globset"
	"github.com/starkandwayne/cepler/pkg/model"
)

// GitRepo implements Capability against a real working tree via go-git.
type GitRepo struct {
	repo *gogit.Repository
	dir  string
}

// Open wraps the git repository rooted at the current working directory.
func Open() (*GitRepo, error) {
	r, err := gogit.PlainOpen(".")
	if err != nil {
		return nil, errors.Wrap(err, "opening repository")
	}
	return &GitRepo{repo: r, dir: "."}, nil
}

// Clone clones cfg.URL at cfg.Branch into cfg.Dir and returns a GitRepo
// rooted there.
func Clone(cfg GitConfig) (*GitRepo, error) {
	auth, err := authMethod(cfg)
	if err != nil {
		return nil, err
	}
	r, err := gogit.PlainClone(cfg.Dir, false, &gogit.CloneOptions{
		URL:           cfg.URL,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(cfg.Branch),
		SingleBranch:  true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cloning %s", cfg.URL)
	}
	return &GitRepo{repo: r, dir: cfg.Dir}, nil
}

// Pull fast-forwards the current branch from cfg's remote.
func (g *GitRepo) Pull(cfg GitConfig) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "resolving worktree")
	}
	auth, err := authMethod(cfg)
	if err != nil {
		return err
	}
	if err := wt.Pull(&gogit.PullOptions{Auth: auth, SingleBranch: true}); err != nil && err != gogit.NoErrAlreadyUpToDate {
		return errors.Wrap(err, "pulling latest state")
	}
	return nil
}

func authMethod(cfg GitConfig) (transport.AuthMethod, error) {
	if cfg.PrivateKey == "" {
		return nil, nil
	}
	auth, err := ssh.NewPublicKeys("git", []byte(cfg.PrivateKey), "")
	if err != nil {
		return nil, errors.Wrap(err, "loading private key")
	}
	return auth, nil
}

// HeadCommitHash implements Capability.
func (g *GitRepo) HeadCommitHash() (model.CommitHash, error) {
	head, err := g.repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "resolving HEAD")
	}
	return model.CommitHash(head.Hash().String()), nil
}

// HeadFiles implements Capability by walking HEAD's tree and filtering with
// globset. It lists only paths tracked in HEAD: untracked working-tree files
// are not listed, and a tracked file deleted from the working tree still is.
func (g *GitRepo) HeadFiles(headFilters, ignore []string) ([]string, error) {
	head, err := g.repo.Head()
	if err != nil {
		return nil, errors.Wrap(err, "resolving HEAD")
	}
	commit, err := g.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, errors.Wrap(err, "loading HEAD commit")
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "loading HEAD tree")
	}

	var files []string
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "walking HEAD tree")
		}
		if entry.Mode.IsFile() && globset.Set(headFilters).Matches(name) && !globset.Set(ignore).Matches(name) {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

// IsFileDirty implements Capability via worktree status.
func (g *GitRepo) IsFileDirty(path string) (bool, error) {
	wt, err := g.repo.Worktree()
	if err != nil {
		return false, errors.Wrap(err, "resolving worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return false, errors.Wrap(err, "computing status")
	}
	fs, ok := status[path]
	if !ok {
		return false, nil
	}
	return fs.Worktree != gogit.Unmodified || fs.Staging != gogit.Unmodified, nil
}

// FindLastChangedCommit implements Capability by walking commit history
// from HEAD, returning the newest commit whose diff against its parent
// touches any of paths/deletedPaths. Ties are broken lexicographically by
// commit hash, per spec.md §9's open question.
func (g *GitRepo) FindLastChangedCommit(paths, deletedPaths []string) (model.CommitHash, string, error) {
	head, err := g.repo.Head()
	if err != nil {
		return "", "", errors.Wrap(err, "resolving HEAD")
	}

	wanted := make(map[string]struct{}, len(paths)+len(deletedPaths))
	for _, p := range paths {
		wanted[p] = struct{}{}
	}
	for _, p := range deletedPaths {
		wanted[p] = struct{}{}
	}

	commits, err := g.repo.Log(&gogit.LogOptions{From: head.Hash(), Order: gogit.LogOrderCommitterTime})
	if err != nil {
		return "", "", errors.Wrap(err, "walking commit log")
	}
	defer commits.Close()

	var best *object.Commit
	var bestTime int64 = -1
	err = commits.ForEach(func(c *object.Commit) error {
		touches, terr := commitTouchesAny(c, wanted)
		if terr != nil {
			return terr
		}
		if !touches {
			return nil
		}
		t := c.Committer.When.Unix()
		switch {
		case t > bestTime:
			best, bestTime = c, t
		case t == bestTime && best != nil && c.Hash.String() < best.Hash.String():
			best = c
		}
		return nil
	})
	if err != nil {
		return "", "", errors.Wrap(err, "scanning commits for last change")
	}
	if best == nil {
		return "", "", errors.New("no commit touches the requested paths")
	}
	return model.CommitHash(best.Hash.String()), firstLine(best.Message), nil
}

func commitTouchesAny(c *object.Commit, wanted map[string]struct{}) (bool, error) {
	tree, err := c.Tree()
	if err != nil {
		return false, errors.Wrapf(err, "loading tree for %s", c.Hash)
	}

	parents := c.Parents()
	parent, err := parents.Next()
	if err != nil {
		// Root commit: every tracked path it contains counts as touched.
		for path := range wanted {
			if _, err := tree.File(path); err == nil {
				return true, nil
			}
		}
		return false, nil
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return false, errors.Wrapf(err, "loading parent tree for %s", c.Hash)
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return false, errors.Wrapf(err, "diffing %s against parent", c.Hash)
	}
	for _, change := range changes {
		if _, ok := wanted[change.From.Name]; ok {
			return true, nil
		}
		if _, ok := wanted[change.To.Name]; ok {
			return true, nil
		}
	}
	return false, nil
}

func firstLine(message string) string {
	for i, r := range message {
		if r == '\n' {
			return message[:i]
		}
	}
	return message
}

// GetFileContent implements Capability by reading path's blob at commit.
func (g *GitRepo) GetFileContent(commit model.CommitHash, path string) ([]byte, bool, error) {
	hash := plumbing.NewHash(commit.String())
	c, err := g.repo.CommitObject(hash)
	if err != nil {
		return nil, false, errors.Wrapf(err, "loading commit %s", commit.ShortRef())
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, false, errors.Wrapf(err, "loading tree for %s", commit.ShortRef())
	}
	f, err := tree.File(path)
	if err == object.ErrFileNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %s at %s", path, commit.ShortRef())
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, false, errors.Wrapf(err, "decoding blob for %s at %s", path, commit.ShortRef())
	}
	return []byte(contents), true, nil
}

// CheckoutHead implements Capability by writing HEAD's blob content for
// every path matching headFilters (or every tracked path, when
// headFilters is nil) and not in ignore.
func (g *GitRepo) CheckoutHead(headFilters, ignore []string) error {
	filters := headFilters
	if filters == nil {
		filters = []string{"**/*"}
	}
	files, err := g.HeadFiles(filters, ignore)
	if err != nil {
		return err
	}
	head, err := g.HeadCommitHash()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := g.CheckoutFileFrom(path, head); err != nil {
			return err
		}
	}
	return nil
}

// CheckoutFileFrom implements Capability by writing path's content as of
// commit onto disk, creating parent directories as needed.
func (g *GitRepo) CheckoutFileFrom(path string, commit model.CommitHash) error {
	content, ok, err := g.GetFileContent(commit, path)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("path %s does not exist at commit %s", path, commit.ShortRef())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent directories for %s", path)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// CommitStateFile implements Capability by staging and committing path.
func (g *GitRepo) CommitStateFile(path string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "resolving worktree")
	}
	if _, err := wt.Add(path); err != nil {
		return errors.Wrapf(err, "staging %s", path)
	}
	_, err = wt.Commit("cepler: record deploy state", &gogit.CommitOptions{})
	if err != nil {
		return errors.Wrap(err, "committing state file")
	}
	return nil
}

// Push implements Capability against the repository's configured remote
// and branch.
func (g *GitRepo) Push() error {
	if err := g.repo.Push(&gogit.PushOptions{}); err != nil && err != gogit.NoErrAlreadyUpToDate {
		return errors.Wrap(err, "pushing")
	}
	return nil
}

// ReadWorkingFile implements Capability by reading path straight off disk.
func (g *GitRepo) ReadWorkingFile(path string) ([]byte, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "reading %s", path)
	}
	return content, true, nil
}

// RemoveWorkingFile implements Capability by deleting path off disk.
func (g *GitRepo) RemoveWorkingFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}

var _ Capability = (*GitRepo)(nil)
