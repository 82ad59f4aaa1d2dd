package repo

import (
	"github.com/pkg/errors"

	"github.com/starkandwayne/cepler/internal/globset"
	"github.com/starkandwayne/cepler/pkg/model"
)

// Commit is one node of a FakeRepo's literal commit graph: a full snapshot
// of tracked file contents, not a diff, so tests can state "paths at this
// commit" directly instead of building a patch chain.
type Commit struct {
	Hash    model.CommitHash
	Message string
	Time    int64
	Files   map[string]string // path -> content, full snapshot at this commit.
	Parent  *Commit
}

// FakeRepo is an in-memory Capability double driven by a literal commit
// graph, per spec.md §9's design note ("tests supply an in-memory fake
// driven by literal commit graphs").
type FakeRepo struct {
	byHash map[model.CommitHash]*Commit
	Head   *Commit

	// Working is the current on-disk content, seeded from Head.Files and
	// then mutated by tests (to simulate edits) or by CheckoutFileFrom /
	// CheckoutHead (to simulate a real checkout).
	Working map[string]string
	// Removed marks a path as absent from the working tree even though it
	// exists in Head.Files or Working.
	Removed map[string]bool

	Pushed    bool
	Committed []string // paths passed to CommitStateFile, in call order.
}

// NewFakeRepo builds a FakeRepo whose HEAD is the last commit in chain
// (chain[0] is the root commit; each subsequent entry's Parent is set to
// its predecessor).
func NewFakeRepo(chain ...*Commit) *FakeRepo {
	byHash := make(map[model.CommitHash]*Commit, len(chain))
	var prev *Commit
	for _, c := range chain {
		c.Parent = prev
		byHash[c.Hash] = c
		prev = c
	}
	fr := &FakeRepo{
		byHash:  byHash,
		Head:    prev,
		Working: make(map[string]string),
		Removed: make(map[string]bool),
	}
	if fr.Head != nil {
		for path, content := range fr.Head.Files {
			fr.Working[path] = content
		}
	}
	return fr
}

// Edit simulates an uncommitted working-tree change to path.
func (f *FakeRepo) Edit(path, content string) {
	f.Working[path] = content
	delete(f.Removed, path)
}

// Remove simulates deleting path from the working tree without committing.
func (f *FakeRepo) Remove(path string) {
	f.Removed[path] = true
}

func (f *FakeRepo) HeadCommitHash() (model.CommitHash, error) {
	if f.Head == nil {
		return "", errors.New("fake repo has no commits")
	}
	return f.Head.Hash, nil
}

func (f *FakeRepo) HeadFiles(headFilters, ignore []string) ([]string, error) {
	var files []string
	for path := range f.Working {
		if f.Removed[path] {
			continue
		}
		if globset.Set(headFilters).Matches(path) && !globset.Set(ignore).Matches(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

func (f *FakeRepo) IsFileDirty(path string) (bool, error) {
	if f.Removed[path] {
		_, existedAtHead := f.headContent(path)
		return existedAtHead, nil
	}
	working, workingOk := f.Working[path]
	headContent, headOk := f.headContent(path)
	if workingOk != headOk {
		return true, nil
	}
	return working != headContent, nil
}

func (f *FakeRepo) headContent(path string) (string, bool) {
	if f.Head == nil {
		return "", false
	}
	content, ok := f.Head.Files[path]
	return content, ok
}

func (f *FakeRepo) FindLastChangedCommit(paths, deletedPaths []string) (model.CommitHash, string, error) {
	wanted := make(map[string]struct{}, len(paths)+len(deletedPaths))
	for _, p := range paths {
		wanted[p] = struct{}{}
	}
	for _, p := range deletedPaths {
		wanted[p] = struct{}{}
	}

	var best *Commit
	for c := f.Head; c != nil; c = c.Parent {
		if !commitTouches(c, wanted) {
			continue
		}
		switch {
		case best == nil, c.Time > best.Time:
			best = c
		case c.Time == best.Time && c.Hash < best.Hash:
			best = c
		}
	}
	if best == nil {
		return "", "", errors.New("no commit touches the requested paths")
	}
	return best.Hash, best.Message, nil
}

func commitTouches(c *Commit, wanted map[string]struct{}) bool {
	for path := range wanted {
		content, ok := c.Files[path]
		var parentContent string
		var parentOk bool
		if c.Parent != nil {
			parentContent, parentOk = c.Parent.Files[path]
		}
		if ok != parentOk || content != parentContent {
			return true
		}
	}
	return false
}

func (f *FakeRepo) GetFileContent(commit model.CommitHash, path string) ([]byte, bool, error) {
	c, ok := f.byHash[commit]
	if !ok {
		return nil, false, errors.Errorf("unknown commit %s", commit)
	}
	content, ok := c.Files[path]
	if !ok {
		return nil, false, nil
	}
	return []byte(content), true, nil
}

func (f *FakeRepo) CheckoutHead(headFilters, ignore []string) error {
	filters := headFilters
	if filters == nil {
		filters = []string{"**/*"}
	}
	if f.Head == nil {
		return nil
	}
	for path, content := range f.Head.Files {
		if globset.Set(filters).Matches(path) && !globset.Set(ignore).Matches(path) {
			f.Working[path] = content
			delete(f.Removed, path)
		}
	}
	return nil
}

func (f *FakeRepo) CheckoutFileFrom(path string, commit model.CommitHash) error {
	content, ok, err := f.GetFileContent(commit, path)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("path %s does not exist at commit %s", path, commit)
	}
	f.Working[path] = string(content)
	delete(f.Removed, path)
	return nil
}

func (f *FakeRepo) CommitStateFile(path string) error {
	f.Committed = append(f.Committed, path)
	return nil
}

func (f *FakeRepo) Push() error {
	f.Pushed = true
	return nil
}

func (f *FakeRepo) ReadWorkingFile(path string) ([]byte, bool, error) {
	if f.Removed[path] {
		return nil, false, nil
	}
	content, ok := f.Working[path]
	if !ok {
		return nil, false, nil
	}
	return []byte(content), true, nil
}

func (f *FakeRepo) RemoveWorkingFile(path string) error {
	f.Removed[path] = true
	return nil
}

var _ Capability = (*FakeRepo)(nil)
