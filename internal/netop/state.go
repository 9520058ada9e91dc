package netop

// State is the lifecycle state of an Operation.
type State int

// Operation states. Cancelled, Completed and Failed are terminal.
// Completing covers the window in which the result is being built; it can
// no longer be cancelled.
const (
	StateSuspended State = iota
	StateRunning
	StateCompleting
	StateCancelled
	StateCompleted
	StateFailed
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateCompleted || s == StateFailed
}

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateCompleting:
		return "completing"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
