package database

import (
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/starkandwayne/cepler/pkg/model"
)

func hashPtr(h model.FileHash) *model.FileHash { return &h }

// TestRoundTripPersistence checks invariant 1 from spec.md §8: load(save(e))
// == e modulo the propagated/latest bucket split, which is exactly how
// Propagated is rehydrated.
func TestRoundTripPersistence(t *testing.T) {
	upstream := model.CommitHash("C1")
	state := model.NewDeployState("C2")
	state.PropagatedHead = &upstream
	state.Files = map[string]model.FileState{
		"a.yml": {FileHash: hashPtr("H1"), FromCommit: "C1", Message: "add a", Propagated: false},
		"b.yml": {FileHash: nil, FromCommit: "C0", Message: "remove b", Propagated: false},
		"c.yml": {FileHash: hashPtr("H3"), Dirty: true, FromCommit: "C1", Message: "add c", Propagated: true},
	}
	state.RecomputeAnyDirty()

	env := model.NewEnvironmentState(state, strPtr("dev"))
	env.PropagationQueue = []*model.DeployState{model.NewDeployState("C0")}

	data, err := yaml.Marshal(toPersistedEnvironmentState(env))
	if err != nil {
		t.Fatal(err)
	}

	var p persistedEnvironmentState
	if err := yaml.Unmarshal(data, &p); err != nil {
		t.Fatal(err)
	}
	roundTripped := fromPersistedEnvironmentState(p)

	if !reflect.DeepEqual(roundTripped.Current.Files, env.Current.Files) {
		t.Fatalf("files did not round-trip:\n got  %+v\n want %+v", roundTripped.Current.Files, env.Current.Files)
	}
	if roundTripped.Current.HeadCommit != env.Current.HeadCommit {
		t.Errorf("head_commit mismatch: %v != %v", roundTripped.Current.HeadCommit, env.Current.HeadCommit)
	}
	if *roundTripped.Current.PropagatedHead != *env.Current.PropagatedHead {
		t.Errorf("propagated_head mismatch")
	}
	if roundTripped.Current.AnyDirty != env.Current.AnyDirty {
		t.Errorf("any_dirty mismatch: %v != %v", roundTripped.Current.AnyDirty, env.Current.AnyDirty)
	}
	if *roundTripped.PropagatedFrom != *env.PropagatedFrom {
		t.Errorf("propagated_from mismatch")
	}
	if len(roundTripped.PropagationQueue) != 1 || roundTripped.PropagationQueue[0].HeadCommit != "C0" {
		t.Errorf("propagation_queue did not round-trip: %+v", roundTripped.PropagationQueue)
	}

	if !roundTripped.Current.Files["c.yml"].Propagated {
		t.Error("c.yml should rehydrate as propagated")
	}
	if roundTripped.Current.Files["a.yml"].Propagated {
		t.Error("a.yml should rehydrate as not propagated")
	}
}

func TestFileHashNullPreserved(t *testing.T) {
	data, err := yaml.Marshal(toPersistedFileState(model.FileState{FromCommit: "C1", Message: "m"}))
	if err != nil {
		t.Fatal(err)
	}
	var decoded persistedFileState
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.FileHash != nil {
		t.Errorf("expected nil file_hash to round-trip as nil, got %v", *decoded.FileHash)
	}
}
