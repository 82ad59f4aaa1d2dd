package workspace

import (
	"path/filepath"
	"testing"

	"github.com/starkandwayne/cepler/internal/config"
	"github.com/starkandwayne/cepler/internal/repo"
)

func newWorkspace(t *testing.T) (*Workspace, string) {
	t.Helper()
	dir := t.TempDir()
	pathToConfig := filepath.Join(dir, ".cepler.yml")
	ws, err := New(pathToConfig)
	if err != nil {
		t.Fatal(err)
	}
	return ws, pathToConfig
}

func devEnv() *config.EnvironmentConfig {
	return &config.EnvironmentConfig{Name: "dev"}
}

func stagingEnv() *config.EnvironmentConfig {
	return &config.EnvironmentConfig{Name: "staging", PropagatedFromRef: "dev", PropagatedField: []string{"*.yml"}}
}

// TestCheckFreshEnvironment covers S1: an environment never recorded before
// reports every HEAD file as added.
func TestCheckFreshEnvironment(t *testing.T) {
	ws, _ := newWorkspace(t)
	fake := repo.NewFakeRepo(&repo.Commit{
		Hash:    "C1",
		Message: "initial",
		Time:    1,
		Files:   map[string]string{"a.yml": "A1", "b.yml": "B1"},
	})

	result, err := ws.Check(fake, devEnv())
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected a result for a fresh environment, got nil")
	}
	if len(result.Diffs) != 2 {
		t.Fatalf("diffs = %+v, want 2 added entries", result.Diffs)
	}
	for _, d := range result.Diffs {
		if !d.Added {
			t.Errorf("path %s should be reported as added", d.Path)
		}
	}
}

// TestRecordThenCheckIsClean covers S2: recording a state and checking again
// with nothing changed reports no new work.
func TestRecordThenCheckIsClean(t *testing.T) {
	ws, _ := newWorkspace(t)
	fake := repo.NewFakeRepo(&repo.Commit{
		Hash:    "C1",
		Message: "initial",
		Time:    1,
		Files:   map[string]string{"a.yml": "A1"},
	})

	if _, err := ws.Record(fake, devEnv(), false, false, false); err != nil {
		t.Fatal(err)
	}

	result, err := ws.Check(fake, devEnv())
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Fatalf("expected no new work after recording, got %+v", result)
	}
}

// TestCheckDetectsDirtyEdit covers S3: editing a tracked file without
// committing is surfaced as a dirty, non-added diff.
func TestCheckDetectsDirtyEdit(t *testing.T) {
	ws, _ := newWorkspace(t)
	fake := repo.NewFakeRepo(&repo.Commit{
		Hash:    "C1",
		Message: "initial",
		Time:    1,
		Files:   map[string]string{"a.yml": "A1"},
	})
	if _, err := ws.Record(fake, devEnv(), false, false, false); err != nil {
		t.Fatal(err)
	}

	fake.Edit("a.yml", "A1-edited")

	result, err := ws.Check(fake, devEnv())
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected the dirty edit to be reported")
	}
	if len(result.Diffs) != 1 || result.Diffs[0].Added {
		t.Fatalf("diffs = %+v, want a single non-added change", result.Diffs)
	}
	if !result.Diffs[0].CurrentState.Dirty {
		t.Fatalf("expected dirty=true, got %+v", result.Diffs[0].CurrentState)
	}
}

// TestRecordPropagationMonotonicity covers invariant 7 from spec.md §8:
// after recording staging having consumed dev's current, staging's
// PropagatedHead equals dev's current HeadCommit.
func TestRecordPropagationMonotonicity(t *testing.T) {
	ws, _ := newWorkspace(t)

	devRepo := repo.NewFakeRepo(&repo.Commit{
		Hash:    "D1",
		Message: "dev initial",
		Time:    1,
		Files:   map[string]string{"app.yml": "v1"},
	})
	if _, err := ws.Record(devRepo, devEnv(), false, false, false); err != nil {
		t.Fatal(err)
	}

	stagingRepo := repo.NewFakeRepo(&repo.Commit{
		Hash:    "S1",
		Message: "staging initial",
		Time:    1,
		Files:   map[string]string{},
	})
	result, err := ws.Record(stagingRepo, stagingEnv(), false, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("expected a record result")
	}

	current := ws.db.GetCurrentState("staging")
	if current == nil || current.PropagatedHead == nil {
		t.Fatalf("staging should have recorded a propagated head, got %+v", current)
	}
	if *current.PropagatedHead != "D1" {
		t.Fatalf("staging.PropagatedHead = %v, want dev's current head D1", *current.PropagatedHead)
	}
}

// TestCheckRequiresUpstreamRecorded ensures a downstream environment cannot
// be checked before its upstream has been recorded at least once.
func TestCheckRequiresUpstreamRecorded(t *testing.T) {
	ws, _ := newWorkspace(t)
	stagingRepo := repo.NewFakeRepo(&repo.Commit{Hash: "S1", Message: "m", Time: 1, Files: map[string]string{}})

	if _, err := ws.Check(stagingRepo, stagingEnv()); err == nil {
		t.Fatal("expected an error when upstream has never been recorded")
	}
}

// TestLsReflectsPropagatedFiles checks that Ls surfaces propagated paths
// once an upstream has recorded them, supplementing spec.md with the
// read-only introspection operation ported from original_source/.
func TestLsReflectsPropagatedFiles(t *testing.T) {
	ws, _ := newWorkspace(t)

	devRepo := repo.NewFakeRepo(&repo.Commit{
		Hash:    "D1",
		Message: "dev initial",
		Time:    1,
		Files:   map[string]string{"app.yml": "v1"},
	})
	if _, err := ws.Record(devRepo, devEnv(), false, false, false); err != nil {
		t.Fatal(err)
	}

	stagingRepo := repo.NewFakeRepo(&repo.Commit{Hash: "S1", Message: "m", Time: 1, Files: map[string]string{}})
	paths, err := ws.Ls(stagingRepo, stagingEnv())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "app.yml" {
		t.Fatalf("Ls = %v, want [app.yml]", paths)
	}
}
