package wsmanager

import (
	"fmt"
	"sort"
	"sync"
)

// ConnectionRegistry tracks the open connections of a Server by their connection id.
// Send operations are best-effort: a failing connection does not keep the others from receiving the payload.
// The failures are returned as *DeliveryError after all connections have been tried.
type ConnectionRegistry interface {
	Add(connectionID string, conn Connection) error
	Remove(connectionID string)
	Get(connectionID string) (Connection, error)
	SendTo(connectionID string, payload []byte) error
	SendToAll(payload []byte) error
	SendToAllExcept(excludedConnectionID string, payload []byte) error
	Count() int
	ConnectionIDs() []string
}

// NewConnectionRegistry creates the default, in-process ConnectionRegistry
func NewConnectionRegistry() ConnectionRegistry {
	return &defaultConnectionRegistry{
		connections: make(map[string]Connection),
	}
}

type defaultConnectionRegistry struct {
	mx          sync.RWMutex
	connections map[string]Connection
	metrics     *serverMetrics
}

func (d *defaultConnectionRegistry) Add(connectionID string, conn Connection) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if _, ok := d.connections[connectionID]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateIdentity, connectionID)
	}
	d.connections[connectionID] = conn
	return nil
}

func (d *defaultConnectionRegistry) Remove(connectionID string) {
	d.mx.Lock()
	defer d.mx.Unlock()
	delete(d.connections, connectionID)
}

func (d *defaultConnectionRegistry) Get(connectionID string) (Connection, error) {
	d.mx.RLock()
	defer d.mx.RUnlock()
	if conn, ok := d.connections[connectionID]; ok {
		return conn, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrNotFound, connectionID)
}

func (d *defaultConnectionRegistry) SendTo(connectionID string, payload []byte) error {
	conn, err := d.Get(connectionID)
	if err != nil {
		return err
	}
	return d.deliver(map[string]Connection{connectionID: conn}, payload)
}

func (d *defaultConnectionRegistry) SendToAll(payload []byte) error {
	return d.deliver(d.snapshot(""), payload)
}

func (d *defaultConnectionRegistry) SendToAllExcept(excludedConnectionID string, payload []byte) error {
	return d.deliver(d.snapshot(excludedConnectionID), payload)
}

func (d *defaultConnectionRegistry) Count() int {
	d.mx.RLock()
	defer d.mx.RUnlock()
	return len(d.connections)
}

func (d *defaultConnectionRegistry) ConnectionIDs() []string {
	d.mx.RLock()
	ids := make([]string, 0, len(d.connections))
	for id := range d.connections {
		ids = append(ids, id)
	}
	d.mx.RUnlock()
	sort.Strings(ids)
	return ids
}

// snapshot copies the table, so writes happen outside the lock
func (d *defaultConnectionRegistry) snapshot(excludedConnectionID string) map[string]Connection {
	d.mx.RLock()
	defer d.mx.RUnlock()
	targets := make(map[string]Connection, len(d.connections))
	for id, conn := range d.connections {
		if id != excludedConnectionID {
			targets[id] = conn
		}
	}
	return targets
}

func (d *defaultConnectionRegistry) deliver(targets map[string]Connection, payload []byte) error {
	var wg sync.WaitGroup
	var fmx sync.Mutex
	failures := make(map[string]error)
	for id, conn := range targets {
		wg.Add(1)
		go func(id string, conn Connection) {
			defer wg.Done()
			if err := conn.Send(payload); err != nil {
				fmx.Lock()
				failures[id] = err
				fmx.Unlock()
			}
		}(id, conn)
	}
	wg.Wait()
	if len(failures) > 0 {
		d.metrics.deliveryFailed(len(failures))
		return &DeliveryError{Failures: failures}
	}
	return nil
}
