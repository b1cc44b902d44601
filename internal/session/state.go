package session

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseListening
	PhaseRestarting
	PhaseStopping
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseListening:
		return "listening"
	case PhaseRestarting:
		return "restarting"
	case PhaseStopping:
		return "stopping"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the session phase. Reason is set only for PhaseFailed.
type State struct {
	Phase  Phase
	Reason string
}

// Active reports whether the microphone is conceptually in use.
func (s State) Active() bool {
	switch s.Phase {
	case PhaseStarting, PhaseListening, PhaseRestarting:
		return true
	}
	return false
}

func (s State) String() string {
	if s.Phase == PhaseFailed && s.Reason != "" {
		return s.Phase.String() + ": " + s.Reason
	}
	return s.Phase.String()
}
