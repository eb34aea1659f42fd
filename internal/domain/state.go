package domain

// SessionState is the single process-wide call state. It belongs to the
// orchestrator, never to an individual view.
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Live reports whether a session currently exists in any form.
func (s SessionState) Live() bool {
	return s != StateIdle
}

// MarshalJSON renders the state as its string form for the control surface.
func (s SessionState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
