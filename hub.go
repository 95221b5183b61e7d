package wsmanager

import "sync"

// HubInterface is the interface a hub must implement.
// Initialize is called once after the hub has been activated for a connection.
type HubInterface interface {
	Initialize(hubContext HubContext)
	OnConnected(connectionID string)
	OnDisconnected(connectionID string)
}

// Hub is a base class for hubs. Embed it in your hub type
type Hub struct {
	context HubContext
}

// Initialize initializes a hub with a HubContext
func (h *Hub) Initialize(ctx HubContext) {
	h.context = ctx
}

// Clients returns the clients of this hub
func (h *Hub) Clients() HubClients {
	return h.context.Clients()
}

// ConnectionID is the id of the connection the hub is bound to
func (h *Hub) ConnectionID() string {
	return h.context.ConnectionID()
}

// Items returns the items for this connection
func (h *Hub) Items() *sync.Map {
	return h.context.Items()
}

// Abort closes the connection of the hub
func (h *Hub) Abort() {
	h.context.Abort()
}

// Logger returns the loggers used in this server. By using these, messages returned by the loggers
// will be prefixed with the connection id and the hub type.
func (h *Hub) Logger() (info StructuredLogger, dbg StructuredLogger) {
	return h.context.Logger()
}

// OnConnected is called when the hub is connected
func (h *Hub) OnConnected(string) {}

// OnDisconnected is called when the hub is disconnected
func (h *Hub) OnDisconnected(string) {}

// SendToCaller invokes the client side method target on the connection of the hub
func (h *Hub) SendToCaller(target string, args ...interface{}) error {
	return h.Clients().Caller().Send(target, args...)
}

// SendToConnection invokes the client side method target on the connection with the connectionID
func (h *Hub) SendToConnection(connectionID string, target string, args ...interface{}) error {
	return h.Clients().Client(connectionID).Send(target, args...)
}

// SendToAll invokes the client side method target on all connections
func (h *Hub) SendToAll(target string, args ...interface{}) error {
	return h.Clients().All().Send(target, args...)
}

// SendToOthers invokes the client side method target on all connections except the connection of the hub
func (h *Hub) SendToOthers(target string, args ...interface{}) error {
	return h.Clients().Others().Send(target, args...)
}
