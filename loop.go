package wsmanager

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

var errClosedDuringInvocation = errors.New("connection closed during invocation")

// loop is the dispatcher of a single connection. It owns the hub of the connection
// and calls its methods sequentially in the order the invocations are received.
type loop struct {
	server     *server
	conn       Connection
	hub        HubInterface
	methods    *MethodTable
	info       StructuredLogger
	dbg        StructuredLogger
	registered bool
	closeOnce  sync.Once
	// abandoned is set when a hub method outlived the drain timeout. It receives when the method returns.
	abandoned <-chan invocationOutcome
}

func (s *server) newLoop(conn Connection) *loop {
	info, dbg := s.prefixLoggers(conn.ConnectionID(), nil)
	return &loop{
		server: s,
		conn:   conn,
		info:   info,
		dbg:    dbg,
	}
}

// Run activates the hub, registers the connection and processes its frames until the connection ends
func (l *loop) Run() error {
	connectionID := l.conn.ConnectionID()
	l.setState(Connecting)
	if err := l.activate(); err != nil {
		l.server.metrics.activationFailed()
		_ = l.info.Log(evt, "activate", "error", err, react, "close connection")
		_ = l.conn.Close()
		l.setState(Closed)
		return err
	}
	defer l.close()
	// Server cancellation ends the connection
	stop := context.AfterFunc(l.server.ctx, func() { _ = l.conn.Close() })
	defer stop()

	if err := l.server.registry.Add(connectionID, l.conn); err != nil {
		_ = l.info.Log(evt, "register", "error", err, react, "close connection")
		return err
	}
	l.registered = true
	l.setState(Open)
	l.server.metrics.connectionOpened()
	l.safeHubCall("OnConnected", func() { l.hub.OnConnected(connectionID) })

	for {
		frame, err := l.conn.Receive()
		if err != nil {
			_ = l.dbg.Log(evt, msgRecv, "error", err, react, "close connection")
			break
		}
		if err = l.handleFrame(frame); err != nil {
			break
		}
	}
	_ = l.dbg.Log(evt, "message loop ended")
	return nil
}

func (l *loop) activate() error {
	connectionID := l.conn.ConnectionID()
	hub, err := l.server.activator.Create(l.conn.Context(), connectionID)
	if err != nil {
		return &ActivationError{ConnectionID: connectionID, Err: err}
	}
	l.info, l.dbg = l.server.prefixLoggers(connectionID, hub)
	err = func() (err error) {
		defer recoverActivationPanic(&err)
		hub.Initialize(&connectionHubContext{
			clients: &callerHubClients{
				defaultHubClients: l.server.defaultHubClients,
				connectionID:      connectionID,
			},
			connectionID: connectionID,
			abort:        func() { _ = l.conn.Close() },
			info:         l.info,
			dbg:          l.dbg,
		})
		l.methods = methodTableOf(hub)
		return nil
	}()
	if err != nil {
		if releaseErr := l.server.activator.Release(hub); releaseErr != nil {
			_ = l.info.Log(evt, "release", "error", releaseErr)
		}
		return &ActivationError{ConnectionID: connectionID, Err: err}
	}
	l.hub = hub
	return nil
}

// close runs the cleanup of the connection exactly once.
// If a hub method is still running, the hub is released after it returned, so no
// released hub is ever invoked.
func (l *loop) close() {
	l.closeOnce.Do(func() {
		connectionID := l.conn.ConnectionID()
		l.setState(Closing)
		if l.registered {
			l.server.registry.Remove(connectionID)
			l.server.metrics.connectionClosed()
		}
		if l.abandoned == nil {
			l.releaseHub(connectionID)
		}
		if err := l.conn.Close(); err != nil {
			_ = l.dbg.Log(evt, "close", "error", err)
		}
		l.setState(Closed)
		if l.abandoned != nil {
			go func() {
				<-l.abandoned
				_ = l.dbg.Log(evt, "release", msg, "abandoned invocation returned")
				l.releaseHub(connectionID)
			}()
		}
	})
}

func (l *loop) releaseHub(connectionID string) {
	if l.registered {
		l.safeHubCall("OnDisconnected", func() { l.hub.OnDisconnected(connectionID) })
	}
	if err := l.server.activator.Release(l.hub); err != nil {
		_ = l.info.Log(evt, "release", "error", err)
	}
}

// handleFrame dispatches a single frame. It only returns an error if the result could not be sent.
func (l *loop) handleFrame(frame []byte) error {
	start := time.Now()
	if size := uint(len(frame)); size > l.server.maximumReceiveMessageSize {
		err := fmt.Errorf("%w: frame size %d exceeds the maximum of %d bytes", ErrMalformedMessage, size, l.server.maximumReceiveMessageSize)
		_ = l.info.Log(evt, msgRecv, "error", err, react, "send failure result")
		l.server.metrics.rejected(KindMalformedMessage)
		return l.sendResult(failureResult("", err))
	}
	invocation, err := l.server.codec.DecodeInvocation(frame)
	if err != nil {
		_ = l.info.Log(evt, msgRecv, "error", err, msg, string(frame), react, "send failure result")
		l.server.metrics.rejected(KindMalformedMessage)
		return l.sendResult(failureResult("", err))
	}
	_ = l.dbg.Log(evt, msgRecv, msg, fmt.Sprintf("%#v", invocation))
	method, err := l.methods.lookup(invocation.MethodName, len(invocation.Arguments))
	if err != nil {
		_ = l.info.Log(evt, "lookup", "error", err, "name", invocation.MethodName, react, "send failure result")
		l.server.metrics.rejected(KindMethodNotFound)
		return l.sendResult(failureResult(invocation.InvocationID, err))
	}
	call, err := method.bind(func(index int, value interface{}) error {
		return l.server.codec.UnmarshalArgument(invocation.Arguments[index], value)
	})
	if err != nil {
		_ = l.info.Log(evt, "bind", "error", err, "name", invocation.MethodName, react, "send failure result")
		l.server.metrics.rejected(KindArgumentMismatch)
		return l.sendResult(failureResult(invocation.InvocationID, err))
	}
	value, err := l.invoke(invocation, call)
	switch {
	case errors.Is(err, errClosedDuringInvocation):
		return err
	case err != nil:
		l.server.metrics.invoked(KindInvocationError, start)
		if !errors.Is(err, ErrInvocation) {
			err = fmt.Errorf("%w: %v", ErrInvocation, err)
		}
		_ = l.dbg.Log(evt, "invoke", "error", err, "name", invocation.MethodName, react, "send failure result")
		return l.sendResult(failureResult(invocation.InvocationID, err))
	default:
		l.server.metrics.invoked("Success", start)
		return l.sendResult(successResult(invocation.InvocationID, value))
	}
}

type invocationOutcome struct {
	value interface{}
	err   error
}

// invoke runs the hub method and waits for it to return. If the connection is closed meanwhile, the context
// passed to the method is canceled and the method gets the drain timeout to return.
func (l *loop) invoke(invocation InvocationDescriptor, call invokeFunc) (interface{}, error) {
	ctx, cancel := context.WithCancel(l.conn.Context())
	defer cancel()
	done := make(chan invocationOutcome, 1)
	go func() {
		var outcome invocationOutcome
		defer func() {
			if r := recover(); r != nil {
				outcome = invocationOutcome{err: l.recoveredError(invocation, r)}
			}
			done <- outcome
		}()
		outcome.value, outcome.err = call(ctx)
	}()
	select {
	case outcome := <-done:
		return outcome.value, outcome.err
	case <-l.conn.Context().Done():
		cancel()
		select {
		case <-done:
		case <-time.After(l.server.invocationDrainTimeout):
			_ = l.info.Log(evt, "invoke", "name", invocation.MethodName,
				"error", fmt.Sprintf("hub method did not return within %v after the connection was closed", l.server.invocationDrainTimeout),
				react, "release hub when the method returns")
			l.abandoned = done
		}
		return nil, errClosedDuringInvocation
	}
}

func (l *loop) recoveredError(invocation InvocationDescriptor, r interface{}) error {
	stack := string(debug.Stack())
	_ = l.info.Log(evt, "recover", "error", r, "name", invocation.MethodName, "stack", stack, react, "send failure result")
	if l.server.enableDetailedErrors {
		return fmt.Errorf("%w: %v\n%v", ErrInvocation, r, stack)
	}
	return fmt.Errorf("%w: %v", ErrInvocation, r)
}

func (l *loop) sendResult(result InvocationResult) error {
	data, err := l.server.codec.EncodeResult(result)
	if err != nil {
		_ = l.info.Log(evt, msgSend, "error", err, msg, fmt.Sprintf("%#v", result), react, "send failure result")
		data, err = l.server.codec.EncodeResult(failureResult(result.InvocationID,
			fmt.Errorf("%w: result can not be encoded: %v", ErrInvocation, err)))
		if err != nil {
			return err
		}
	}
	if err = l.conn.Send(data); err != nil {
		_ = l.info.Log(evt, msgSend, "error", err, react, "close connection")
		return err
	}
	_ = l.dbg.Log(evt, msgSend, msg, fmt.Sprintf("%#v", result))
	return nil
}

// safeHubCall keeps panics in hub lifecycle methods from ending the server
func (l *loop) safeHubCall(name string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			_ = l.info.Log(evt, name, "error", r, "stack", string(debug.Stack()))
		}
	}()
	f()
}

func (l *loop) setState(state ConnectionState) {
	_ = l.dbg.Log(evt, "state", "state", state)
	if l.server.stateObserver != nil {
		l.server.stateObserver(l.conn.ConnectionID(), state)
	}
}
