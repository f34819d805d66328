package gateway

import "fmt"

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHello
	StateIdentifying
	StateConnected
	StateClosing
	StateClosed
)

var stateNames = []string{
	StateDisconnected:  "disconnected",
	StateConnecting:    "connecting",
	StateAwaitingHello: "awaiting_hello",
	StateIdentifying:   "identifying",
	StateConnected:     "connected",
	StateClosing:       "closing",
	StateClosed:        "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// transitions lists the only moves a session may make. Connecting goes straight
// to Closed when no socket was opened; every open socket passes through Closing.
var transitions = map[State][]State{
	StateDisconnected:  {StateConnecting},
	StateConnecting:    {StateAwaitingHello, StateClosed},
	StateAwaitingHello: {StateIdentifying, StateClosing},
	StateIdentifying:   {StateConnected, StateClosing},
	StateConnected:     {StateClosing},
	StateClosing:       {StateClosed},
}

func (s State) canTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
