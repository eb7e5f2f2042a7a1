package client

// State is the connection lifecycle state.
type State int32

const (
	// StateUnconnected is the initial state before Start.
	StateUnconnected State = iota
	// StateConnected means the read loop is running and requests flow.
	StateConnected
	// StateClosing means teardown has begun; no new requests are accepted.
	StateClosing
	// StateClosed is terminal.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
