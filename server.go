package wsmanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/go-kit/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Server is a per connection hub server.
// For every connection passed to Serve, a hub is activated, the invocations of the client are dispatched to it
// and the hub is released after the connection has been closed.
type Server interface {
	// Serve runs the connection loop for conn. It blocks until the connection has been closed.
	// It returns an *ActivationError if no hub could be activated for the connection
	// and ErrDuplicateIdentity if the connection id is already in use.
	Serve(conn Connection) error
	MapHTTP(routerFactory func() MappableRouter, path string)
	HubClients() HubClients
	Registry() ConnectionRegistry
	Codec() Codec
	// MaximumReceiveMessageSize is the largest frame the server dispatches
	MaximumReceiveMessageSize() uint
	Context() context.Context
	Cancel()
}

type server struct {
	ctx                       context.Context
	cancelFunc                context.CancelFunc
	activator                 HubActivator
	codec                     Codec
	registry                  ConnectionRegistry
	defaultHubClients         *defaultHubClients
	info                      StructuredLogger
	dbg                       StructuredLogger
	enableDetailedErrors      bool
	maximumReceiveMessageSize uint
	invocationDrainTimeout    time.Duration
	insecureSkipVerify        bool
	originPatterns            []string
	metricsRegisterer         prometheus.Registerer
	metrics                   *serverMetrics
	stateObserver             func(connectionID string, state ConnectionState)
	newConnectionID           func() string
}

// NewServer creates a new server for one type of hub. The hub type is set by one of the
// options UseHub, SimpleHubFactory, HubFactory or WithHubActivator.
// The server ends all of its connections when ctx is canceled.
func NewServer(ctx context.Context, options ...func(party) error) (Server, error) {
	info, dbg := buildInfoDebugLogger(log.NewLogfmtLogger(os.Stderr), false)
	srvCtx, cancel := context.WithCancel(ctx)
	s := &server{
		ctx:                       srvCtx,
		cancelFunc:                cancel,
		codec:                     &JSONCodec{},
		registry:                  NewConnectionRegistry(),
		info:                      info,
		dbg:                       dbg,
		maximumReceiveMessageSize: 1 << 15, // 32KB
		invocationDrainTimeout:    5 * time.Second,
		newConnectionID:           uuid.NewString,
	}
	for _, option := range options {
		if option != nil {
			if err := option(s); err != nil {
				cancel()
				return nil, err
			}
		}
	}
	if s.activator == nil {
		cancel()
		return nil, errors.New("could not create server: no hub set. Use UseHub, SimpleHubFactory, HubFactory or WithHubActivator")
	}
	if s.metricsRegisterer != nil {
		metrics, err := newServerMetrics(s.metricsRegisterer)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("could not create server: %w", err)
		}
		s.metrics = metrics
		if registry, ok := s.registry.(*defaultConnectionRegistry); ok {
			registry.metrics = metrics
		}
	}
	s.defaultHubClients = &defaultHubClients{
		registry: s.registry,
		codec:    s.codec,
	}
	return s, nil
}

// Serve serves the connection. If conn has no connection id, a new one is assigned.
func (s *server) Serve(conn Connection) error {
	if conn.ConnectionID() == "" {
		conn.SetConnectionID(s.newConnectionID())
	}
	return s.newLoop(conn).Run()
}

// HubClients returns the clients of the server. Caller and Others are not available outside a hub.
func (s *server) HubClients() HubClients {
	return s.defaultHubClients
}

func (s *server) Registry() ConnectionRegistry {
	return s.registry
}

func (s *server) Codec() Codec {
	return s.codec
}

func (s *server) MaximumReceiveMessageSize() uint {
	return s.maximumReceiveMessageSize
}

func (s *server) Context() context.Context {
	return s.ctx
}

// Cancel ends all connections of the server
func (s *server) Cancel() {
	s.cancelFunc()
}

func (s *server) setLoggers(info StructuredLogger, dbg StructuredLogger) {
	s.info = info
	s.dbg = dbg
}

func (s *server) setCodec(codec Codec) {
	s.codec = codec
}

func (s *server) prefixLoggers(connectionID string, hub HubInterface) (info StructuredLogger, dbg StructuredLogger) {
	hubType := "<nil>"
	if hub != nil {
		t := reflect.TypeOf(hub)
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		hubType = t.String()
	}
	return log.WithPrefix(s.info, "ts", log.DefaultTimestampUTC,
			"class", "Server",
			"connection", connectionID,
			"hub", hubType),
		log.WithPrefix(s.dbg, "ts", log.DefaultTimestampUTC,
			"class", "Server",
			"connection", connectionID,
			"hub", hubType)
}

const (
	evt     = "event"
	msgRecv = "message received"
	msgSend = "message send"
	msg     = "message"
	react   = "reaction"
)
