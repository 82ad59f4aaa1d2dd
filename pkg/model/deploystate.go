// Package model holds the data structures shared by the propagation engine:
// deploy states, file states, environment states and the diff between two
// deploy states. Nothing in this package touches disk or git; persistence
// lives in internal/database, git access in internal/repo.
package model

import "sort"

// FileState describes one file's position within a DeployState.
type FileState struct {
	FileHash   *FileHash  // nil means the file was logically removed.
	Dirty      bool       // working tree differs from what FromCommit recorded.
	FromCommit CommitHash // last commit that changed this path.
	Message    string     // commit subject of FromCommit.
	Propagated bool       // true if sourced from an upstream environment, not HEAD. Not serialized as a field.
}

// DeployState is the content-addressed snapshot an environment "would
// deploy" at a point in time.
type DeployState struct {
	HeadCommit     CommitHash
	PropagatedHead *CommitHash // upstream's head_commit that propagated files were sourced from.
	AnyDirty       bool
	Files          map[string]FileState
}

// NewDeployState returns an empty state rooted at headCommit.
func NewDeployState(headCommit CommitHash) *DeployState {
	return &DeployState{
		HeadCommit: headCommit,
		Files:      make(map[string]FileState),
	}
}

// RecomputeAnyDirty sets AnyDirty to the disjunction of every file's Dirty
// bit. Called whenever Files is mutated before the state is persisted.
func (s *DeployState) RecomputeAnyDirty() {
	for _, f := range s.Files {
		if f.Dirty {
			s.AnyDirty = true
			return
		}
	}
	s.AnyDirty = false
}

// SortedPaths returns the file paths in s in deterministic (lexical) order.
func (s *DeployState) SortedPaths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FileDiff classifies a single path's change between two deploy states.
// CurrentState == nil means the path was removed; Added together with a nil
// CurrentState is never produced.
type FileDiff struct {
	Path         string
	CurrentState *FileState
	Added        bool
}

// Diff compares s (the "new" state) against old, classifying every path per
// spec.md §4.2:
//   - path only in s            -> added (removed, if its hash is nil)
//   - path in both, both hashes nil -> no entry (tombstone collapse)
//   - path in both, dirty or hash changed -> changed (added iff old had no hash)
//   - path in both, otherwise    -> no entry
//   - path only in old          -> removed
func (s *DeployState) Diff(old *DeployState) []FileDiff {
	removed := make(map[string]struct{}, len(old.Files))
	for p := range old.Files {
		removed[p] = struct{}{}
	}

	var diffs []FileDiff
	for _, path := range s.SortedPaths() {
		state := s.Files[path]
		lastState, existed := old.Files[path]
		if !existed {
			diffs = append(diffs, FileDiff{
				Path:         path,
				CurrentState: currentStateOf(state),
				Added:        state.FileHash != nil,
			})
			continue
		}
		delete(removed, path)

		if state.FileHash == nil && lastState.FileHash == nil {
			continue
		}
		if state.Dirty || lastState.Dirty || !EqualHash(state.FileHash, lastState.FileHash) {
			diffs = append(diffs, FileDiff{
				Path:         path,
				CurrentState: currentStateOf(state),
				Added:        lastState.FileHash == nil,
			})
		}
	}

	removedPaths := make([]string, 0, len(removed))
	for p := range removed {
		removedPaths = append(removedPaths, p)
	}
	sort.Strings(removedPaths)
	for _, p := range removedPaths {
		diffs = append(diffs, FileDiff{Path: p, CurrentState: nil, Added: false})
	}

	return diffs
}

func currentStateOf(s FileState) *FileState {
	if s.FileHash == nil {
		return nil
	}
	cp := s
	return &cp
}
