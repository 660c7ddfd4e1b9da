package session

// State is the lifecycle position of a Manager's session.
type State int

const (
	Disconnected State = iota
	Connecting
	Authenticated
	Rooted
	Active
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Rooted:
		return "rooted"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}
