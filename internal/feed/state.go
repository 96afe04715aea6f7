package feed

// State is one of the four connection states the feed client's state
// machine can occupy (spec §4.1).
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)
