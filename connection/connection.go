package connection

// Connection is the lifecycle surface an IRC session holds onto. A single
// Connection maps to a single network link; once it has fully disconnected it
// may be opened again after the internal state has been reset.
type Connection interface {
	Open()
	Close()
	CloseWithReason(reason error)
	Send(data []byte)
	State() State
	Ready() bool
	Done() <-chan struct{}
	Err() error
}

// Delegate receives lifecycle and data events for a connection. All delegate
// methods are invoked from the connection's event loop, one at a time, in
// order.
type Delegate interface {
	WillConnect(host string, port uint16)
	DidConnect(host string)
	SecuredWith(protocolVersion string, cipherSuite string)

	// One call per framed line, in wire order, delimiter stripped
	Received(line []byte)

	WillSend(data []byte)
	DidSend()

	Disconnected()
	DisconnectedWithError(err error)
}

// State enum
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Securing
	Secured
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Securing:
		return "securing"
	case Secured:
		return "secured"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Established reports whether data can flow in this state.
func (s State) Established() bool {
	return s == Connected || s == Securing || s == Secured
}
