package wsmanager

import (
	"sync"
)

// HubContext is passed to the hub when it is activated.
// It gives access to the clients, the connection and per connection items.
type HubContext interface {
	Clients() HubClients
	ConnectionID() string
	Items() *sync.Map
	Abort()
	Logger() (info StructuredLogger, dbg StructuredLogger)
}

type connectionHubContext struct {
	clients      HubClients
	connectionID string
	items        sync.Map
	abort        func()
	info         StructuredLogger
	dbg          StructuredLogger
}

func (c *connectionHubContext) Clients() HubClients {
	return c.clients
}

func (c *connectionHubContext) ConnectionID() string {
	return c.connectionID
}

func (c *connectionHubContext) Items() *sync.Map {
	return &c.items
}

func (c *connectionHubContext) Abort() {
	c.abort()
}

func (c *connectionHubContext) Logger() (info StructuredLogger, dbg StructuredLogger) {
	return c.info, c.dbg
}
