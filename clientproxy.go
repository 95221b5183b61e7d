package wsmanager

// ClientProxy allows the hub to send messages to one or more of its clients.
// Send encodes an invocation of the client side method target and returns the registry error,
// which is a *DeliveryError if some connections could not be reached.
type ClientProxy interface {
	Send(target string, args ...interface{}) error
}

func encodeClientInvocation(codec Codec, target string, args []interface{}) ([]byte, error) {
	return codec.EncodeInvocation(InvocationDescriptor{MethodName: target, Arguments: args})
}

type allClientProxy struct {
	registry ConnectionRegistry
	codec    Codec
}

func (a *allClientProxy) Send(target string, args ...interface{}) error {
	payload, err := encodeClientInvocation(a.codec, target, args)
	if err != nil {
		return err
	}
	return a.registry.SendToAll(payload)
}

type singleClientProxy struct {
	connectionID string
	registry     ConnectionRegistry
	codec        Codec
}

func (s *singleClientProxy) Send(target string, args ...interface{}) error {
	payload, err := encodeClientInvocation(s.codec, target, args)
	if err != nil {
		return err
	}
	return s.registry.SendTo(s.connectionID, payload)
}

type othersClientProxy struct {
	excludedConnectionID string
	registry             ConnectionRegistry
	codec                Codec
}

func (o *othersClientProxy) Send(target string, args ...interface{}) error {
	payload, err := encodeClientInvocation(o.codec, target, args)
	if err != nil {
		return err
	}
	return o.registry.SendToAllExcept(o.excludedConnectionID, payload)
}
