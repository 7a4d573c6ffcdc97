// Package conn defines the connection lifecycle state shared between
// the socket manager and the event bus.
package conn

// State is the connection lifecycle state. Exactly one value holds at
// any time.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

// Live reports whether the state represents an established connection.
func (s State) Live() bool {
	return s == StateConnected
}
