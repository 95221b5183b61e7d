package wsmanager

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimpleHubFactory sets a HubActivator which creates a new hub with the underlying type
// of hubProto for each connection.
func SimpleHubFactory(hubProto HubInterface) func(party) error {
	return WithHubActivator(NewDefaultActivator(hubProto))
}

// UseHub is an alias of SimpleHubFactory. hub is only used as prototype, every connection gets its own instance.
func UseHub(hub HubInterface) func(party) error {
	return SimpleHubFactory(hub)
}

// HubFactory sets the function which returns the hub instance for every connection.
// If hub instances should be created and initialized by a DI framework,
// the frameworks factory method can be called here.
func HubFactory(factoryFunc func(connectionID string) HubInterface) func(party) error {
	return WithHubActivator(NewFactoryActivator(func(connectionID string) (HubInterface, error) {
		return factoryFunc(connectionID), nil
	}))
}

// WithHubActivator sets the HubActivator which creates and releases the hub of each connection
func WithHubActivator(activator HubActivator) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			if activator == nil {
				return errors.New("option WithHubActivator: activator is nil")
			}
			s.activator = activator
			return nil
		}
		return errors.New("option WithHubActivator is server only")
	}
}

// WithConnectionRegistry replaces the default in-process ConnectionRegistry
func WithConnectionRegistry(registry ConnectionRegistry) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			if registry == nil {
				return errors.New("option WithConnectionRegistry: registry is nil")
			}
			s.registry = registry
			return nil
		}
		return errors.New("option WithConnectionRegistry is server only")
	}
}

// EnableDetailedErrors - if true, the stack trace of panics in hub methods is returned to the client.
// The default is false, as stack traces can contain sensitive information.
func EnableDetailedErrors(enable bool) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			s.enableDetailedErrors = enable
			return nil
		}
		return errors.New("option EnableDetailedErrors is server only")
	}
}

// MaximumReceiveMessageSize is the maximum size of a single incoming frame.
// Larger frames are answered with a MalformedMessage result.
// Default is 32KB
func MaximumReceiveMessageSize(size uint) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			if size == 0 {
				return errors.New("unsupported MaximumReceiveMessageSize 0")
			}
			s.maximumReceiveMessageSize = size
			return nil
		}
		return errors.New("option MaximumReceiveMessageSize is server only")
	}
}

// InvocationDrainTimeout is the time the server waits for a running hub method to return
// after its connection has been closed. The context passed to the method is canceled immediately.
// Default is 5 seconds.
func InvocationDrainTimeout(timeout time.Duration) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			if timeout < 0 {
				return errors.New("unsupported negative InvocationDrainTimeout")
			}
			s.invocationDrainTimeout = timeout
			return nil
		}
		return errors.New("option InvocationDrainTimeout is server only")
	}
}

// InsecureSkipVerify disables Accepts origin verification behaviour which is used to avoid CSRF attacks.
// See https://pkg.go.dev/github.com/coder/websocket#AcceptOptions
func InsecureSkipVerify(skip bool) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			s.insecureSkipVerify = skip
			return nil
		}
		return errors.New("option InsecureSkipVerify is server only")
	}
}

// AllowOriginPatterns lists the host patterns for authorized origins which is used for avoid CSRF attacks.
// See https://pkg.go.dev/github.com/coder/websocket#AcceptOptions
func AllowOriginPatterns(origins []string) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			s.originPatterns = origins
			return nil
		}
		return errors.New("option AllowOriginPatterns is server only")
	}
}

// WithMetrics registers the server metrics with registerer.
// Registering two servers with the same registerer lets them share the collectors.
func WithMetrics(registerer prometheus.Registerer) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			if registerer == nil {
				return errors.New("option WithMetrics: registerer is nil")
			}
			s.metricsRegisterer = registerer
			return nil
		}
		return errors.New("option WithMetrics is server only")
	}
}

// StateObserver sets a function which is called on every state transition of a connection.
// It is called from the connection loop and must not block.
func StateObserver(observer func(connectionID string, state ConnectionState)) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			s.stateObserver = observer
			return nil
		}
		return errors.New("option StateObserver is server only")
	}
}

// ConnectionIDGenerator sets the function which creates the id of connections which do not bring their own.
// Default is a random UUID.
func ConnectionIDGenerator(newConnectionID func() string) func(party) error {
	return func(p party) error {
		if s, ok := p.(*server); ok {
			if newConnectionID == nil {
				return errors.New("option ConnectionIDGenerator: generator is nil")
			}
			s.newConnectionID = newConnectionID
			return nil
		}
		return errors.New("option ConnectionIDGenerator is server only")
	}
}
