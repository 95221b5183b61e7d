package wsmanager

import (
	"context"
)

// Connection describes an already negotiated, message based, bidirectional connection between a client and the Server.
// Receive blocks until the next complete frame is available. It returns an error when the connection has been closed
// or the transport failed. Send must be safe for concurrent use, because the connection loop and hubs
// of other connections may write to the same connection.
// The Context of a Connection is done when the connection is closed.
type Connection interface {
	Context() context.Context
	ConnectionID() string
	SetConnectionID(id string)
	Receive() ([]byte, error)
	Send(data []byte) error
	State() ConnectionState
	Close() error
}

// ConnectionState is the lifecycle state of a connection
type ConnectionState int32

const (
	Connecting ConnectionState = iota
	Open
	Closing
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}
