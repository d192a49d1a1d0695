package primitive

import "fmt"

// State is the pipeline's lifecycle stage. Ready is the only legal initial
// state; Complete and Failed are terminal.
type State uint8

const (
	StateReady State = iota
	StateCreating
	StateCreated
	StateCombining
	StateCombined
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateCreating:
		return "creating"
	case StateCreated:
		return "created"
	case StateCombining:
		return "combining"
	case StateCombined:
		return "combined"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}
