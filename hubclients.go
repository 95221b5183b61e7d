package wsmanager

// HubClients gives the hub access to various client groups
// All() gets a ClientProxy that can be used to invoke methods on all clients connected to the hub
// Caller() gets a ClientProxy that can be used to invoke methods of the current calling client
// Client() gets a ClientProxy that can be used to invoke methods on the specified client connection
// Others() gets a ClientProxy that can be used to invoke methods on all clients except the calling client
type HubClients interface {
	All() ClientProxy
	Caller() ClientProxy
	Client(connectionID string) ClientProxy
	Others() ClientProxy
}

type defaultHubClients struct {
	registry ConnectionRegistry
	codec    Codec
}

func (c *defaultHubClients) All() ClientProxy {
	return &allClientProxy{registry: c.registry, codec: c.codec}
}

func (c *defaultHubClients) Client(connectionID string) ClientProxy {
	return &singleClientProxy{connectionID: connectionID, registry: c.registry, codec: c.codec}
}

// Caller is only implemented to fulfill the HubClients interface, so the servers defaultHubClients interface can be
// used for implementing Server.HubClients.
func (c *defaultHubClients) Caller() ClientProxy {
	return nil
}

// Others is only implemented to fulfill the HubClients interface. Outside a hub, there are no others.
func (c *defaultHubClients) Others() ClientProxy {
	return nil
}

type callerHubClients struct {
	defaultHubClients *defaultHubClients
	connectionID      string
}

func (c *callerHubClients) All() ClientProxy {
	return c.defaultHubClients.All()
}

func (c *callerHubClients) Caller() ClientProxy {
	return c.defaultHubClients.Client(c.connectionID)
}

func (c *callerHubClients) Client(connectionID string) ClientProxy {
	return c.defaultHubClients.Client(connectionID)
}

func (c *callerHubClients) Others() ClientProxy {
	return &othersClientProxy{
		excludedConnectionID: c.connectionID,
		registry:             c.defaultHubClients.registry,
		codec:                c.defaultHubClients.codec,
	}
}
