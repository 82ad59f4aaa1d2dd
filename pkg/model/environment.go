package model

// EnvironmentState is everything the database tracks for one named
// environment: its current deploy state, the upstream it propagates from
// (if any), and a bounded history of demoted deploy states retained so that
// downstream environments can still resolve their propagation target.
type EnvironmentState struct {
	Current          *DeployState
	PropagatedFrom   *string        // upstream environment name, if any.
	PropagationQueue []*DeployState // index 0 = most recently demoted.
}

// NewEnvironmentState wraps current as a freshly-recorded environment with
// no queue history yet.
func NewEnvironmentState(current *DeployState, propagatedFrom *string) *EnvironmentState {
	return &EnvironmentState{
		Current:        current,
		PropagatedFrom: propagatedFrom,
	}
}

// PushDemoted swaps in newCurrent as Current and pushes the prior Current to
// the front of PropagationQueue, per spec.md §4.4 step 2.
func (e *EnvironmentState) PushDemoted(newCurrent *DeployState) {
	prior := e.Current
	e.Current = newCurrent
	e.PropagationQueue = append([]*DeployState{prior}, e.PropagationQueue...)
}

// DbState is the full set of tracked environments, keyed by name.
type DbState struct {
	Environments map[string]*EnvironmentState
}

// NewDbState returns an empty database state.
func NewDbState() *DbState {
	return &DbState{Environments: make(map[string]*EnvironmentState)}
}
