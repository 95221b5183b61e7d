package wsmanager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrConnectionClosed is returned by Send on connections which are no longer open
var ErrConnectionClosed = errors.New("connection closed")

// NewConnectionBase initializes a ConnectionBase with a context.Context and a connection id.
// The context of the ConnectionBase is derived from ctx and canceled by CloseWith.
func NewConnectionBase(ctx context.Context, connectionID string) *ConnectionBase {
	cbCtx, cancel := context.WithCancel(ctx)
	cb := &ConnectionBase{
		ctx:          cbCtx,
		cancel:       cancel,
		connectionID: connectionID,
	}
	cb.state.Store(int32(Open))
	return cb
}

// ConnectionBase is a baseclass for implementers of the Connection interface.
type ConnectionBase struct {
	mx           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	connectionID string
	state        atomic.Int32
	closeOnce    sync.Once
	closeErr     error
}

func (cb *ConnectionBase) Context() context.Context {
	return cb.ctx
}

func (cb *ConnectionBase) ConnectionID() string {
	cb.mx.RLock()
	defer cb.mx.RUnlock()
	return cb.connectionID
}

func (cb *ConnectionBase) SetConnectionID(id string) {
	cb.mx.Lock()
	defer cb.mx.Unlock()
	cb.connectionID = id
}

// State returns Open until the connection is closed or its context ended
func (cb *ConnectionBase) State() ConnectionState {
	state := ConnectionState(cb.state.Load())
	if state == Open && cb.ctx.Err() != nil {
		return Closed
	}
	return state
}

// CloseWith runs closeTransport once, moving the connection through Closing to Closed.
// The context of the connection is canceled afterwards. Later calls return the result of the first.
func (cb *ConnectionBase) CloseWith(closeTransport func() error) error {
	cb.closeOnce.Do(func() {
		cb.state.Store(int32(Closing))
		cb.closeErr = closeTransport()
		cb.state.Store(int32(Closed))
		cb.cancel()
	})
	return cb.closeErr
}
