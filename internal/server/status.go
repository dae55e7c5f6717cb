package server

// State is the lifecycle state of the supervised service
type State int

const (
	StateStopped State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Status is a point-in-time copy of the supervisor state
type Status struct {
	State          State
	InstanceID     string
	Host           string
	Port           uint16
	LoggingEnabled bool
	RatingRange    int
}
