package database

import "github.com/starkandwayne/cepler/pkg/model"

// The on-disk schema (spec.md §6) splits a DeployState's Files into two
// buckets — propagated and latest — so that FileState.Propagated, which is
// never itself serialized, round-trips correctly: whichever bucket a path
// is read back from determines its Propagated bit.

type persistedFileState struct {
	FileHash   *string `yaml:"file_hash"`
	Dirty      bool    `yaml:"dirty,omitempty"`
	FromCommit string  `yaml:"from_commit"`
	Message    string  `yaml:"message"`
}

type persistedDeployState struct {
	HeadCommit     string                        `yaml:"head_commit"`
	PropagatedHead *string                       `yaml:"propagated_head,omitempty"`
	AnyDirty       bool                          `yaml:"any_dirty,omitempty"`
	Propagated     map[string]persistedFileState `yaml:"propagated"`
	Latest         map[string]persistedFileState `yaml:"latest"`
}

type persistedEnvironmentState struct {
	Current          persistedDeployState   `yaml:"current"`
	PropagatedFrom   *string                `yaml:"propagated_from,omitempty"`
	PropagationQueue []persistedDeployState `yaml:"propagation_queue,omitempty"`
}

func toPersistedFileState(fs model.FileState) persistedFileState {
	var hash *string
	if fs.FileHash != nil {
		s := fs.FileHash.String()
		hash = &s
	}
	return persistedFileState{
		FileHash:   hash,
		Dirty:      fs.Dirty,
		FromCommit: fs.FromCommit.String(),
		Message:    fs.Message,
	}
}

func fromPersistedFileState(p persistedFileState, propagated bool) model.FileState {
	var hash *model.FileHash
	if p.FileHash != nil {
		h := model.FileHash(*p.FileHash)
		hash = &h
	}
	return model.FileState{
		FileHash:   hash,
		Dirty:      p.Dirty,
		FromCommit: model.CommitHash(p.FromCommit),
		Message:    p.Message,
		Propagated: propagated,
	}
}

func toPersistedDeployState(s *model.DeployState) persistedDeployState {
	out := persistedDeployState{
		HeadCommit: s.HeadCommit.String(),
		AnyDirty:   s.AnyDirty,
		Propagated: make(map[string]persistedFileState),
		Latest:     make(map[string]persistedFileState),
	}
	if s.PropagatedHead != nil {
		h := s.PropagatedHead.String()
		out.PropagatedHead = &h
	}
	for path, fs := range s.Files {
		if fs.Propagated {
			out.Propagated[path] = toPersistedFileState(fs)
		} else {
			out.Latest[path] = toPersistedFileState(fs)
		}
	}
	return out
}

func fromPersistedDeployState(p persistedDeployState) *model.DeployState {
	s := &model.DeployState{
		HeadCommit: model.CommitHash(p.HeadCommit),
		AnyDirty:   p.AnyDirty,
		Files:      make(map[string]model.FileState, len(p.Propagated)+len(p.Latest)),
	}
	if p.PropagatedHead != nil {
		h := model.CommitHash(*p.PropagatedHead)
		s.PropagatedHead = &h
	}
	for path, fs := range p.Latest {
		s.Files[path] = fromPersistedFileState(fs, false)
	}
	// Propagated entries are applied last: a path present in both buckets
	// is an invariant violation, and propagated-overrides-latest is the
	// chosen last-write-wins policy (spec.md §9).
	for path, fs := range p.Propagated {
		s.Files[path] = fromPersistedFileState(fs, true)
	}
	return s
}

func toPersistedEnvironmentState(e *model.EnvironmentState) persistedEnvironmentState {
	out := persistedEnvironmentState{
		Current: toPersistedDeployState(e.Current),
	}
	if e.PropagatedFrom != nil {
		name := *e.PropagatedFrom
		out.PropagatedFrom = &name
	}
	for _, q := range e.PropagationQueue {
		out.PropagationQueue = append(out.PropagationQueue, toPersistedDeployState(q))
	}
	return out
}

func fromPersistedEnvironmentState(p persistedEnvironmentState) *model.EnvironmentState {
	e := &model.EnvironmentState{
		Current: fromPersistedDeployState(p.Current),
	}
	if p.PropagatedFrom != nil {
		name := *p.PropagatedFrom
		e.PropagatedFrom = &name
	}
	for _, q := range p.PropagationQueue {
		e.PropagationQueue = append(e.PropagationQueue, fromPersistedDeployState(q))
	}
	return e
}
