// Package database loads and persists every environment's state from the
// ".cepler" state directory next to the pipeline config (spec.md §6), and
// maintains each environment's propagation queue (spec.md §4.4, §4.5).
package database

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/starkandwayne/cepler/internal/cerr"
	"github.com/starkandwayne/cepler/internal/repo"
	"github.com/starkandwayne/cepler/pkg/model"
)

const stateDirName = ".cepler"

// Database holds every tracked environment's state in memory and knows
// where to persist it.
type Database struct {
	state    *model.DbState
	StateDir string
}

func stateDirFor(pathToConfig string) string {
	dir := filepath.Dir(pathToConfig)
	if dir == "." || dir == "" {
		return stateDirName
	}
	return filepath.Join(dir, stateDirName)
}

// Open loads every "*.state" file found in the state directory next to
// pathToConfig from the working tree.
func Open(pathToConfig string) (*Database, error) {
	dir := stateDirFor(pathToConfig)
	db := &Database{state: model.NewDbState(), StateDir: dir}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return db, nil
	}
	if err != nil {
		return nil, cerr.Wrap(cerr.IoError, err, "listing state directory "+dir)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".state" {
			continue
		}
		envName := name[:len(name)-len(".state")]
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, cerr.Wrap(cerr.IoError, err, "reading state file "+name)
		}
		env, err := unmarshalEnvironmentState(data)
		if err != nil {
			return nil, cerr.Wrap(cerr.ConfigError, err, "parsing state file "+name)
		}
		db.state.Environments[envName] = env
	}
	return db, nil
}

// OpenEnv loads just one environment (and its immediate upstream, if given)
// by reading their ".state" blobs out of a specific commit rather than the
// working tree — the CI-plugin entry points (out of scope here) use this to
// answer "is there anything new" without a full checkout.
func OpenEnv(pathToConfig, envName string, propagatedName *string, commit model.CommitHash, capability repo.Capability) (*Database, error) {
	dir := stateDirFor(pathToConfig)
	db := &Database{state: model.NewDbState(), StateDir: dir}

	if env, err := loadEnvAt(capability, commit, dir, envName); err != nil {
		return nil, err
	} else if env != nil {
		db.state.Environments[envName] = env
	}

	if propagatedName != nil {
		if env, err := loadEnvAt(capability, commit, dir, *propagatedName); err != nil {
			return nil, err
		} else if env != nil {
			db.state.Environments[*propagatedName] = env
		}
	}
	return db, nil
}

func loadEnvAt(capability repo.Capability, commit model.CommitHash, dir, envName string) (*model.EnvironmentState, error) {
	path := filepath.Join(dir, envName+".state")
	content, ok, err := capability.GetFileContent(commit, path)
	if err != nil {
		return nil, cerr.Wrap(cerr.IoError, err, "reading "+path+" at "+commit.ShortRef())
	}
	if !ok {
		return nil, nil
	}
	env, err := unmarshalEnvironmentState(content)
	if err != nil {
		return nil, cerr.Wrap(cerr.ConfigError, err, "parsing "+path)
	}
	return env, nil
}

func unmarshalEnvironmentState(data []byte) (*model.EnvironmentState, error) {
	var p persistedEnvironmentState
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "decoding YAML")
	}
	return fromPersistedEnvironmentState(p), nil
}

// GetCurrentState returns env's current deploy state, or nil if env has
// never been recorded.
func (db *Database) GetCurrentState(env string) *model.DeployState {
	e, ok := db.state.Environments[env]
	if !ok {
		return nil
	}
	return e.Current
}

// GetTargetPropagatedState answers "what upstream state should env
// propagate from, next" per spec.md §4.3.
func (db *Database) GetTargetPropagatedState(env, upstream string) *model.DeployState {
	from, fromOK := db.state.Environments[upstream]
	if !fromOK {
		return nil
	}
	e, envOK := db.state.Environments[env]
	if !envOK {
		return from.Current
	}

	target := e.Current.PropagatedHead
	if target == nil {
		return from.Current
	}
	if *target == from.Current.HeadCommit || len(from.PropagationQueue) == 0 {
		return from.Current
	}

	for idx, q := range from.PropagationQueue {
		if q.HeadCommit != *target {
			continue
		}
		if idx == 0 {
			return from.Current
		}
		return from.PropagationQueue[idx-1]
	}
	// target not found in the retained queue: it predates everything we
	// retained (e.g. a history rewrite upstream). Fall back to the oldest
	// retained entry — documented, non-fatal per spec.md §4.5/§9.
	return from.PropagationQueue[len(from.PropagationQueue)-1]
}

// SetCurrentEnvironmentState records newState as name's current deploy
// state, demoting the prior current into the propagation queue, pruning
// that queue (and the upstream's queue, when propagatedFrom is set), and
// persisting the database to disk. It returns the path to
// name's state file (spec.md §4.4).
func (db *Database) SetCurrentEnvironmentState(name string, propagatedFrom *string, newState *model.DeployState) (string, error) {
	newState.RecomputeAnyDirty()

	statePath := filepath.Join(db.StateDir, name+".state")
	if e, ok := db.state.Environments[name]; ok {
		e.PushDemoted(newState)
	} else {
		db.state.Environments[name] = model.NewEnvironmentState(newState, propagatedFrom)
	}

	db.prunePropagationQueue(name)
	if propagatedFrom != nil {
		db.prunePropagationQueue(*propagatedFrom)
	}

	if err := db.persist(); err != nil {
		return "", err
	}
	return statePath, nil
}

// prunePropagationQueue drops every entry from name's propagation queue
// that no downstream environment still needs to resolve GetTargetPropagatedState,
// per spec.md §4.5. The entry a downstream's PropagatedHead matches is
// retained together with every newer entry before it.
func (db *Database) prunePropagationQueue(name string) {
	toPrune, ok := db.state.Environments[name]
	if !ok {
		return
	}

	keep := 0
	for _, downstreamName := range db.sortedEnvNames() {
		downstream := db.state.Environments[downstreamName]
		if downstreamName == name || downstream.PropagatedFrom == nil || *downstream.PropagatedFrom != name {
			continue
		}
		target := downstream.Current.PropagatedHead
		if target == nil || *target == toPrune.Current.HeadCommit {
			continue
		}
		for idx := keep; idx < len(toPrune.PropagationQueue); idx++ {
			if idx+1 > keep {
				keep = idx + 1
			}
			if toPrune.PropagationQueue[idx].HeadCommit == *target {
				break
			}
		}
	}

	if keep < len(toPrune.PropagationQueue) {
		toPrune.PropagationQueue = toPrune.PropagationQueue[:keep]
	}
}

func (db *Database) sortedEnvNames() []string {
	names := make([]string, 0, len(db.state.Environments))
	for name := range db.state.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// persist fully rewrites the state directory: remove, recreate, write every
// environment's ".state" file. Single-writer per spec.md §5, so a full
// rewrite is atomic enough; a crash-safe deployment could write-temp-then-
// rename instead, but that is left to the caller's orchestrator.
func (db *Database) persist() error {
	if err := os.RemoveAll(db.StateDir); err != nil {
		return cerr.Wrap(cerr.IoError, err, "clearing state directory "+db.StateDir)
	}
	if err := os.MkdirAll(db.StateDir, 0o755); err != nil {
		return cerr.Wrap(cerr.IoError, err, "creating state directory "+db.StateDir)
	}
	for name, env := range db.state.Environments {
		data, err := yaml.Marshal(toPersistedEnvironmentState(env))
		if err != nil {
			return cerr.Wrap(cerr.InvariantError, err, "encoding state for "+name)
		}
		path := filepath.Join(db.StateDir, name+".state")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return cerr.Wrap(cerr.IoError, err, "writing "+path)
		}
	}
	return nil
}
