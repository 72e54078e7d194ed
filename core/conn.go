package core

// ConnState is the lifecycle position of one connection.
// Transitions only move forward and every path ends in StateClosed.
type ConnState int

const (
	StateAccepted ConnState = iota
	StateReading
	StateParsed
	StateResponding
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateReading:
		return "reading"
	case StateParsed:
		return "parsed"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// lifecycle guards the state machine of a single connection
type lifecycle struct {
	state ConnState
}

// advance moves to next. It refuses backward moves and anything after
// StateClosed, so the close path can only run once.
func (l *lifecycle) advance(next ConnState) bool {
	if l.state == StateClosed || next <= l.state {
		return false
	}
	l.state = next
	return true
}

func (l *lifecycle) State() ConnState {
	return l.state
}
