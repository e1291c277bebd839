package takion

// ConnState is a Takion endpoint's connection lifecycle state.
type ConnState int

const (
	StateClosed ConnState = iota
	StateConnecting
	StateHandshake
	StateEstablished
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateHandshake:
		return "handshake"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

var validTransitions = map[ConnState][]ConnState{
	StateClosed:      {StateConnecting},
	StateConnecting:  {StateHandshake, StateClosed},
	StateHandshake:   {StateEstablished, StateClosed},
	StateEstablished: {StateClosing},
	StateClosing:     {StateClosed},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// step in the Takion connection lifecycle.
func CanTransition(from, to ConnState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
