package connection

// State is the lifecycle state of the database connection.
// The numeric values are exposed to clients as "database_code".
type State int32

const (
	Disconnected  State = 0
	Connected     State = 1
	Connecting    State = 2
	Disconnecting State = 3
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Connecting:
		return "connecting"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the connection. Database and Host are only set
// while connected.
type Status struct {
	State    State
	Database string
	Host     string
}
