package wsmanager

// TransferFormat is the format of the frames a Codec produces
type TransferFormat int

const (
	TextTransferFormat TransferFormat = iota
	BinaryTransferFormat
)

// Message types on the wire
const (
	invocationMessageType = 1
	resultMessageType     = 3
)

// InvocationDescriptor names a method and carries its arguments.
// When decoded by a Codec, Arguments contains raw, codec specific values which are converted to the
// parameter types of the method with Codec.UnmarshalArgument.
// When encoded, Arguments contains the plain values to send.
type InvocationDescriptor struct {
	InvocationID string
	MethodName   string
	Arguments    []interface{}
}

// InvocationResult is the answer to an InvocationDescriptor.
// If Success is true, Value holds the return value of the method, which is nil for methods without a result.
// Otherwise Error describes the failure.
// When decoded by a Codec, Value is a raw value which can be converted with Codec.UnmarshalArgument.
type InvocationResult struct {
	InvocationID string
	Success      bool
	Value        interface{}
	Error        *ResultError
}

// ResultError is the failure part of an InvocationResult
type ResultError struct {
	Kind    string `json:"kind" msgpack:"kind"`
	Message string `json:"message" msgpack:"message"`
}

func (r *ResultError) Error() string {
	return r.Kind + ": " + r.Message
}

func successResult(invocationID string, value interface{}) InvocationResult {
	return InvocationResult{InvocationID: invocationID, Success: true, Value: value}
}

func failureResult(invocationID string, err error) InvocationResult {
	return InvocationResult{
		InvocationID: invocationID,
		Error: &ResultError{
			Kind:    errorKind(err),
			Message: err.Error(),
		},
	}
}

// Codec converts frames to and from invocations and results.
// Implementations must be stateless per call, so they can be shared by all connections.
type Codec interface {
	// Name is used as websocket subprotocol
	Name() string
	TransferFormat() TransferFormat
	// DecodeInvocation decodes an inbound frame. It returns an error matching ErrMalformedMessage
	// if the frame can not be parsed or carries no method name. Unknown fields are ignored.
	DecodeInvocation(data []byte) (InvocationDescriptor, error)
	EncodeInvocation(invocation InvocationDescriptor) ([]byte, error)
	EncodeResult(result InvocationResult) ([]byte, error)
	// DecodeMessage decodes a frame sent by the server. It returns an InvocationDescriptor or an InvocationResult.
	DecodeMessage(data []byte) (interface{}, error)
	// UnmarshalArgument converts a raw argument or result value into value, which must be a pointer.
	UnmarshalArgument(argument interface{}, value interface{}) error
}
