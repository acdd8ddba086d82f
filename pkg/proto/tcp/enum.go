package tcp

// State is the protocol state of a connection. Only the states reachable by
// a passive open are modelled; FIN_WAIT1/2, CLOSE_WAIT, LAST_ACK and
// TIME_WAIT belong here once FIN processing exists.
type State int

const (
	CLOSED      State = 0
	SYN_RECVD   State = 3
	ESTABLISHED State = 4
)

func (s State) String() string {
	switch s {
	case CLOSED:
		return "CLOSED"
	case SYN_RECVD:
		return "SYN_RECVD"
	case ESTABLISHED:
		return "ESTABLISHED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether a connection in state s must leave the table.
func (s State) Terminal() bool {
	switch s {
	case CLOSED:
		return true
	case SYN_RECVD, ESTABLISHED:
		return false
	default:
		return true
	}
}

const (
	windowZero    uint16 = 0
	defaultWindow uint16 = 1024
)
