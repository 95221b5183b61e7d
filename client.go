package wsmanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/google/uuid"
)

// Client invokes hub methods over a Connection and receives the invocations the hub pushes to it.
// Invoke correlates each result with its invocation by invocation id.
type Client struct {
	conn      Connection
	codec     Codec
	info      StructuredLogger
	dbg       StructuredLogger
	mx        sync.Mutex
	pending   map[string]chan InvocationResult
	pushes    chan InvocationDescriptor
	results   chan InvocationResult
	done      chan struct{}
	err       error
}

// NewClient creates a Client for conn. Options are Logger, WithCodec and PushBufferSize.
// The client starts receiving immediately.
func NewClient(conn Connection, options ...func(party) error) (*Client, error) {
	info, dbg := buildInfoDebugLogger(log.NewLogfmtLogger(os.Stderr), false)
	c := &Client{
		conn:    conn,
		codec:   &JSONCodec{},
		info:    info,
		dbg:     dbg,
		pending: make(map[string]chan InvocationResult),
		pushes:  make(chan InvocationDescriptor, 32),
		results: make(chan InvocationResult, 32),
		done:    make(chan struct{}),
	}
	for _, option := range options {
		if option != nil {
			if err := option(c); err != nil {
				return nil, err
			}
		}
	}
	c.info = log.WithPrefix(c.info, "ts", log.DefaultTimestampUTC, "class", "Client")
	c.dbg = log.WithPrefix(c.dbg, "ts", log.DefaultTimestampUTC, "class", "Client")
	go c.receive()
	return c, nil
}

// PushBufferSize sets how many pushed invocations and uncorrelated results the client buffers.
// When a buffer is full, further messages are dropped. Default is 32.
func PushBufferSize(size uint) func(party) error {
	return func(p party) error {
		if c, ok := p.(*Client); ok {
			c.pushes = make(chan InvocationDescriptor, size)
			c.results = make(chan InvocationResult, size)
			return nil
		}
		return errors.New("option PushBufferSize is client only")
	}
}

func (c *Client) setLoggers(info StructuredLogger, dbg StructuredLogger) {
	c.info = info
	c.dbg = dbg
}

func (c *Client) setCodec(codec Codec) {
	c.codec = codec
}

// Invoke invokes the hub method and waits for its result.
// A failed invocation is returned as result with Success false, not as error.
// Errors are returned if the invocation could not be sent, ctx ended or the connection was closed.
func (c *Client) Invoke(ctx context.Context, method string, args ...interface{}) (InvocationResult, error) {
	if args == nil {
		args = []interface{}{}
	}
	invocationID := uuid.NewString()
	resultChan := make(chan InvocationResult, 1)
	c.mx.Lock()
	c.pending[invocationID] = resultChan
	c.mx.Unlock()
	defer func() {
		c.mx.Lock()
		delete(c.pending, invocationID)
		c.mx.Unlock()
	}()
	data, err := c.codec.EncodeInvocation(InvocationDescriptor{
		InvocationID: invocationID,
		MethodName:   method,
		Arguments:    args,
	})
	if err != nil {
		return InvocationResult{}, err
	}
	if err = c.conn.Send(data); err != nil {
		return InvocationResult{}, err
	}
	select {
	case result := <-resultChan:
		return result, nil
	case <-ctx.Done():
		return InvocationResult{}, ctx.Err()
	case <-c.done:
		return InvocationResult{}, c.Err()
	}
}

// SendFrame sends a raw frame to the server
func (c *Client) SendFrame(data []byte) error {
	return c.conn.Send(data)
}

// UnmarshalResult converts the value of a successful result into value, which must be a pointer.
// For failed results, the *ResultError of the result is returned.
func (c *Client) UnmarshalResult(result InvocationResult, value interface{}) error {
	if !result.Success {
		if result.Error == nil {
			return errors.New("invocation failed without error")
		}
		return result.Error
	}
	return c.codec.UnmarshalArgument(result.Value, value)
}

// Pushes returns the invocations the server sent to this client
func (c *Client) Pushes() <-chan InvocationDescriptor {
	return c.pushes
}

// Results returns results which could not be correlated to a pending Invoke,
// e.g. the answers to malformed frames, which carry no invocation id
func (c *Client) Results() <-chan InvocationResult {
	return c.results
}

// Done is closed when the connection of the client ended
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error which ended the connection
func (c *Client) Err() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.err
}

// Close closes the connection of the client
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) receive() {
	for {
		data, err := c.conn.Receive()
		if err != nil {
			_ = c.dbg.Log(evt, msgRecv, "error", err, react, "end client")
			c.mx.Lock()
			c.err = fmt.Errorf("connection ended: %w", err)
			c.mx.Unlock()
			close(c.done)
			return
		}
		message, err := c.codec.DecodeMessage(data)
		if err != nil {
			_ = c.info.Log(evt, msgRecv, "error", err, msg, string(data), react, "ignore message")
			continue
		}
		switch message := message.(type) {
		case InvocationResult:
			c.complete(message)
		case InvocationDescriptor:
			select {
			case c.pushes <- message:
			default:
				_ = c.info.Log(evt, msgRecv, "error", "push buffer full", "target", message.MethodName, react, "drop message")
			}
		}
	}
}

func (c *Client) complete(result InvocationResult) {
	c.mx.Lock()
	resultChan, ok := c.pending[result.InvocationID]
	c.mx.Unlock()
	if ok {
		select {
		case resultChan <- result:
		default:
			_ = c.info.Log(evt, msgRecv, "error", "duplicate result", "invocationId", result.InvocationID, react, "drop result")
		}
		return
	}
	select {
	case c.results <- result:
	default:
		_ = c.info.Log(evt, msgRecv, "error", "result buffer full", react, "drop result")
	}
}
