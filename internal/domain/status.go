package domain

// State is the lifecycle state of the protocol loop.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateStopped
)

var stateLabels = map[State]string{
	StateStarting: "starting",
	StateRunning:  "running",
	StateDraining: "draining",
	StateStopped:  "stopped",
}

// String returns a human-readable label for the state.
func (s State) String() string {
	if label, ok := stateLabels[s]; ok {
		return label
	}

	return "invalid"
}
