// Package workspace implements the propagation engine: constructing an
// environment's candidate deploy state, diffing it against the database's
// recorded current, and realizing files on disk for check/prepare/record
// (spec.md §4.1, §4.6).
package workspace

import (
	"fmt"
	"os"
	"sort"

	"github.com/starkandwayne/cepler/internal/cerr"
	"github.com/starkandwayne/cepler/internal/config"
	"github.com/starkandwayne/cepler/internal/database"
	"github.com/starkandwayne/cepler/internal/fingerprint"
	"github.com/starkandwayne/cepler/internal/globset"
	"github.com/starkandwayne/cepler/internal/repo"
	"github.com/starkandwayne/cepler/pkg/model"
)

// hashWorkingFile fingerprints path as it currently stands in the working
// tree, through the Capability rather than the local filesystem, so the
// same logic runs against a real checkout or a FakeRepo. A nil result means
// the path is absent (treated as a removed file, per spec.md §3).
func hashWorkingFile(capability repo.Capability, path string) (*model.FileHash, error) {
	content, ok, err := capability.ReadWorkingFile(path)
	if err != nil {
		return nil, cerr.Wrap(cerr.IoError, err, "reading "+path)
	}
	if !ok {
		return nil, nil
	}
	return fingerprint.HashBytes(content), nil
}

// Workspace ties a Database to the config file it was opened from, and is
// the entry point for check/prepare/record.
type Workspace struct {
	pathToConfig string
	db           *database.Database
}

// New opens the database rooted next to pathToConfig.
func New(pathToConfig string) (*Workspace, error) {
	db, err := database.Open(pathToConfig)
	if err != nil {
		return nil, err
	}
	return &Workspace{pathToConfig: pathToConfig, db: db}, nil
}

// Ls lists the paths env's deploy state would contain at the current HEAD,
// without recording or diffing anything (from original_source/
// src/workspace.rs's `ls`, supplementing spec.md with a read-only
// introspection operation).
func (w *Workspace) Ls(capability repo.Capability, env *config.EnvironmentConfig) ([]string, error) {
	state, err := w.constructEnvState(capability, env, false)
	if err != nil {
		return nil, err
	}
	return state.SortedPaths(), nil
}

// CheckResult is what Check returns when there is new work to deploy.
type CheckResult struct {
	CommitShortRef string
	Diffs          []model.FileDiff
}

// Check builds env's candidate deploy state and diffs it against the last
// recorded one, per spec.md §4.6. A nil result (with nil error) means
// nothing new.
func (w *Workspace) Check(capability repo.Capability, env *config.EnvironmentConfig) (*CheckResult, error) {
	if upstream, ok := env.PropagatedFrom(); ok {
		if w.db.GetCurrentState(upstream) == nil {
			return nil, cerr.New(cerr.PrerequisiteError, fmt.Sprintf("previous environment %q not deployed yet", upstream))
		}
	}

	candidate, err := w.constructEnvState(capability, env, false)
	if err != nil {
		return nil, err
	}

	diffs, err := w.diffAgainstCurrent(env.Name, candidate)
	if err != nil {
		return nil, err
	}
	if diffs == nil {
		return nil, nil
	}

	paths, deleted := splitDiffPaths(diffs)
	commit, _, err := capability.FindLastChangedCommit(paths, deleted)
	if err != nil {
		return nil, cerr.Wrap(cerr.IoError, err, "finding last changed commit")
	}

	return &CheckResult{CommitShortRef: commit.ShortRef(), Diffs: diffs}, nil
}

// diffAgainstCurrent returns nil, nil when the diff against the recorded
// current is empty. When there is no recorded current yet, the diff is
// synthesized as "every file is added".
func (w *Workspace) diffAgainstCurrent(envName string, candidate *model.DeployState) ([]model.FileDiff, error) {
	last := w.db.GetCurrentState(envName)
	if last == nil {
		return allAdded(candidate), nil
	}
	diffs := candidate.Diff(last)
	if len(diffs) == 0 {
		return nil, nil
	}
	return diffs, nil
}

func allAdded(s *model.DeployState) []model.FileDiff {
	var diffs []model.FileDiff
	for _, path := range s.SortedPaths() {
		state := s.Files[path]
		diffs = append(diffs, model.FileDiff{Path: path, CurrentState: &state, Added: true})
	}
	return diffs
}

func splitDiffPaths(diffs []model.FileDiff) (present, deleted []string) {
	for _, d := range diffs {
		if d.CurrentState != nil {
			present = append(present, d.Path)
		} else {
			deleted = append(deleted, d.Path)
		}
	}
	return present, deleted
}

// Prepare realizes env's deploy state on disk: checks out HEAD (restricted
// to head filters when forceClean), removes stale propagated artifacts that
// no longer belong, and checks out each propagated file at the commit that
// last changed it upstream (spec.md §4.6).
func (w *Workspace) Prepare(capability repo.Capability, env *config.EnvironmentConfig, forceClean bool) error {
	var headFilters []string
	if forceClean {
		headFilters = env.HeadFilters()
	}
	ignore := w.ignoreList()

	if err := capability.CheckoutHead(headFilters, ignore); err != nil {
		return cerr.Wrap(cerr.IoError, err, "checking out HEAD")
	}

	headPatterns := globset.Set(env.HeadFilePatterns())
	ignoreSet := globset.Set(ignore)
	propagatedPatterns := globset.Set(env.PropagatedFilePatterns())

	stalePaths, err := w.stalePropagatedFiles(capability, env, headPatterns, ignoreSet, propagatedPatterns)
	if err != nil {
		return err
	}
	for _, path := range stalePaths {
		if err := capability.RemoveWorkingFile(path); err != nil {
			return cerr.Wrap(cerr.IoError, err, "removing stale propagated file "+path)
		}
	}

	upstream, ok := env.PropagatedFrom()
	if !ok {
		return nil
	}
	target := w.db.GetTargetPropagatedState(env.Name, upstream)
	if target == nil {
		return nil
	}
	for _, path := range target.SortedPaths() {
		if !propagatedPatterns.Matches(path) || headPatterns.Matches(path) {
			continue
		}
		state := target.Files[path]
		if err := capability.CheckoutFileFrom(path, state.FromCommit); err != nil {
			return cerr.Wrap(cerr.IoError, err, "checking out propagated file "+path)
		}
	}
	return nil
}

// stalePropagatedFiles lists working-tree paths under the env's HEAD
// enumeration that are neither head-sourced nor ignored: leftover
// propagated artifacts from a previous environment configuration.
func (w *Workspace) stalePropagatedFiles(capability repo.Capability, env *config.EnvironmentConfig, headPatterns, ignoreSet, propagatedPatterns globset.Set) ([]string, error) {
	candidates, err := capability.HeadFiles([]string{"**/*"}, nil)
	if err != nil {
		return nil, cerr.Wrap(cerr.IoError, err, "listing working tree files")
	}
	var stale []string
	for _, path := range candidates {
		if ignoreSet.Matches(path) || headPatterns.Matches(path) {
			continue
		}
		stale = append(stale, path)
	}
	sort.Strings(stale)
	return stale, nil
}

// RecordResult is what Record returns: the new HEAD short ref and the diff
// that was just recorded.
type RecordResult struct {
	HeadShortRef string
	Diffs        []model.FileDiff
}

// Record constructs env's current deploy state with recording=true, diffs
// it against the prior current, commits it to the database, and optionally
// has the Capability commit the state file, reset the working tree, and
// push — in that order, per spec.md §5's ordering guarantees.
func (w *Workspace) Record(capability repo.Capability, env *config.EnvironmentConfig, doCommit, doReset, doPush bool) (*RecordResult, error) {
	fmt.Fprintln(os.Stderr, "Recording current state")

	newState, err := w.constructEnvState(capability, env, true)
	if err != nil {
		return nil, err
	}

	diffs, err := w.diffAgainstCurrent(env.Name, newState)
	if err != nil {
		return nil, err
	}

	var propagatedFrom *string
	if upstream, ok := env.PropagatedFrom(); ok {
		propagatedFrom = &upstream
	}
	statePath, err := w.db.SetCurrentEnvironmentState(env.Name, propagatedFrom, newState)
	if err != nil {
		return nil, err
	}

	if doCommit {
		fmt.Fprintln(os.Stderr, "Adding commit to repository to persist state")
		if err := capability.CommitStateFile(statePath); err != nil {
			return nil, cerr.Wrap(cerr.IoError, err, "committing state file")
		}
	}
	if doReset {
		fmt.Fprintln(os.Stderr, "Resetting head to have a clean workspace")
		if err := capability.CheckoutHead(nil, nil); err != nil {
			return nil, cerr.Wrap(cerr.IoError, err, "resetting working tree")
		}
	}
	if doPush {
		fmt.Fprintln(os.Stderr, "Pushing to remote")
		if err := capability.Push(); err != nil {
			return nil, cerr.Wrap(cerr.IoError, err, "pushing")
		}
	}

	head, err := capability.HeadCommitHash()
	if err != nil {
		return nil, cerr.Wrap(cerr.IoError, err, "resolving HEAD after record")
	}
	return &RecordResult{HeadShortRef: head.ShortRef(), Diffs: diffs}, nil
}

// constructEnvState builds env's candidate deploy state per spec.md §4.1:
// HEAD-sourced files first, then propagated files overriding any head-
// sourced entry at the same path.
func (w *Workspace) constructEnvState(capability repo.Capability, env *config.EnvironmentConfig, recording bool) (*model.DeployState, error) {
	head, err := capability.HeadCommitHash()
	if err != nil {
		return nil, cerr.Wrap(cerr.IoError, err, "resolving HEAD")
	}
	state := model.NewDeployState(head)

	ignore := w.ignoreList()
	files, err := capability.HeadFiles(env.HeadFilters(), ignore)
	if err != nil {
		return nil, cerr.Wrap(cerr.IoError, err, "listing HEAD files")
	}
	for _, path := range files {
		dirty, err := capability.IsFileDirty(path)
		if err != nil {
			return nil, cerr.Wrap(cerr.IoError, err, "checking dirty status of "+path)
		}
		fromCommit, message, err := capability.FindLastChangedCommit([]string{path}, nil)
		if err != nil {
			return nil, cerr.Wrap(cerr.IoError, err, "finding last commit for "+path)
		}
		fileHash, err := hashWorkingFile(capability, path)
		if err != nil {
			return nil, err
		}
		state.Files[path] = model.FileState{
			FileHash:   fileHash,
			Dirty:      dirty,
			FromCommit: fromCommit,
			Message:    message,
			Propagated: false,
		}
	}

	if upstream, ok := env.PropagatedFrom(); ok {
		target := w.db.GetTargetPropagatedState(env.Name, upstream)
		if target != nil {
			upstreamHead := target.HeadCommit
			state.PropagatedHead = &upstreamHead

			patterns := globset.Set(env.PropagatedFilePatterns())
			for _, path := range target.SortedPaths() {
				if !patterns.Matches(path) {
					continue
				}
				prev := target.Files[path]
				var dirty bool
				var fileHash *model.FileHash
				if recording {
					h, err := hashWorkingFile(capability, path)
					if err != nil {
						return nil, err
					}
					fileHash = h
					dirty = !model.EqualHash(fileHash, prev.FileHash)
				} else {
					dirty = false
					fileHash = prev.FileHash
				}
				state.Files[path] = model.FileState{
					FileHash:   fileHash,
					Dirty:      dirty,
					FromCommit: prev.FromCommit,
					Message:    prev.Message,
					Propagated: true,
				}
			}
		}
	}

	state.RecomputeAnyDirty()
	return state, nil
}

// ignoreList always excludes the config file, the state directory, .git,
// and .gitignore, per spec.md §4.7.
func (w *Workspace) ignoreList() []string {
	return []string{
		w.pathToConfig,
		w.db.StateDir + "/*",
		".git/*",
		".gitignore",
	}
}
