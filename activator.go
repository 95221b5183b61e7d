package wsmanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
)

// HubActivator creates the hub instance for a connection and releases it when the connection has been closed.
// Release is called exactly once for every hub returned by a successful Create.
type HubActivator interface {
	Create(ctx context.Context, connectionID string) (HubInterface, error)
	Release(hub HubInterface) error
}

// NewDefaultActivator returns a HubActivator which creates a new hub with the underlying type
// of hubProto for each connection. On Release, hubs implementing io.Closer are closed.
func NewDefaultActivator(hubProto HubInterface) HubActivator {
	hubType := reflect.TypeOf(hubProto)
	return NewFactoryActivator(func(string) (HubInterface, error) {
		if hubType.Kind() != reflect.Ptr {
			return nil, fmt.Errorf("hub prototype %v is not a pointer", hubType)
		}
		return reflect.New(hubType.Elem()).Interface().(HubInterface), nil
	})
}

// NewFactoryActivator returns a HubActivator which calls factory for each connection.
// If hub instances should be created and initialized by a DI framework,
// the frameworks factory method can be called here.
func NewFactoryActivator(factory func(connectionID string) (HubInterface, error)) HubActivator {
	return &factoryActivator{factory: factory}
}

type factoryActivator struct {
	factory func(connectionID string) (HubInterface, error)
}

func (f *factoryActivator) Create(_ context.Context, connectionID string) (hub HubInterface, err error) {
	defer recoverActivationPanic(&err)
	if hub, err = f.factory(connectionID); err == nil && hub == nil {
		err = errors.New("factory returned no hub")
	}
	return hub, err
}

func (f *factoryActivator) Release(hub HubInterface) error {
	if closer, ok := hub.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// HubScope is a lifetime scope of a DI container. The hub resolved from the scope
// lives until the scope is disposed.
type HubScope interface {
	Resolve() (HubInterface, error)
	Dispose() error
}

// NewScopedActivator returns a HubActivator which opens a new scope for each connection,
// resolves the hub from it and disposes the scope when the hub is released.
// Scopes must resolve pointers, as hubs are told apart by identity on release.
func NewScopedActivator(newScope func(ctx context.Context) (HubScope, error)) HubActivator {
	return &scopedActivator{
		newScope: newScope,
		scopes:   make(map[HubInterface]HubScope),
	}
}

type scopedActivator struct {
	newScope func(ctx context.Context) (HubScope, error)
	mx       sync.Mutex
	scopes   map[HubInterface]HubScope
}

func (s *scopedActivator) Create(ctx context.Context, _ string) (hub HubInterface, err error) {
	defer recoverActivationPanic(&err)
	scope, err := s.newScope(ctx)
	if err != nil {
		return nil, err
	}
	if hub, err = scope.Resolve(); err != nil || hub == nil {
		if err == nil {
			err = errors.New("scope resolved no hub")
		}
		return nil, errors.Join(err, scope.Dispose())
	}
	if reflect.TypeOf(hub).Kind() != reflect.Ptr {
		return nil, errors.Join(fmt.Errorf("scope resolved hub %T, which is not a pointer", hub), scope.Dispose())
	}
	s.mx.Lock()
	s.scopes[hub] = scope
	s.mx.Unlock()
	return hub, nil
}

func (s *scopedActivator) Release(hub HubInterface) error {
	s.mx.Lock()
	scope, ok := s.scopes[hub]
	delete(s.scopes, hub)
	s.mx.Unlock()
	if !ok {
		return fmt.Errorf("no scope for hub %T", hub)
	}
	return scope.Dispose()
}

// NewPoolingActivator returns a HubActivator which reuses released hubs.
// At most size idle hubs are kept. reset is called on release, before the hub is returned to the pool.
// A hub gets a new HubContext each time it is activated.
func NewPoolingActivator(newHub func() HubInterface, size int, reset func(hub HubInterface)) HubActivator {
	return &poolingActivator{
		newHub: newHub,
		reset:  reset,
		idle:   make(chan HubInterface, size),
	}
}

type poolingActivator struct {
	newHub func() HubInterface
	reset  func(hub HubInterface)
	idle   chan HubInterface
}

func (p *poolingActivator) Create(context.Context, string) (hub HubInterface, err error) {
	defer recoverActivationPanic(&err)
	select {
	case hub = <-p.idle:
		return hub, nil
	default:
	}
	if hub = p.newHub(); hub == nil {
		return nil, errors.New("pool created no hub")
	}
	return hub, nil
}

func (p *poolingActivator) Release(hub HubInterface) error {
	if p.reset != nil {
		p.reset(hub)
	}
	select {
	case p.idle <- hub:
	default:
		// pool is full, drop the hub
	}
	return nil
}

func recoverActivationPanic(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic during hub activation: %v", r)
	}
}
