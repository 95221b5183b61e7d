package wsmanager

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MessagePackCodec is a binary Codec.
// Invocations are encoded as [1, invocationId, methodName, [arguments...]],
// results as [3, invocationId, success, value | {kind, message}].
// Additional trailing elements are ignored when decoding.
type MessagePackCodec struct{}

func (m *MessagePackCodec) Name() string {
	return "messagepack"
}

func (m *MessagePackCodec) TransferFormat() TransferFormat {
	return BinaryTransferFormat
}

func (m *MessagePackCodec) DecodeInvocation(data []byte) (InvocationDescriptor, error) {
	decoder := msgpack.NewDecoder(bytes.NewReader(data))
	msgLen, msgType, err := m.decodeHeader(decoder)
	if err != nil {
		return InvocationDescriptor{}, err
	}
	if msgType != invocationMessageType {
		return InvocationDescriptor{}, fmt.Errorf("%w: unexpected message type %v", ErrMalformedMessage, msgType)
	}
	return m.decodeInvocation(decoder, msgLen, len(data))
}

func (m *MessagePackCodec) decodeHeader(decoder *msgpack.Decoder) (msgLen int, msgType int, err error) {
	if msgLen, err = decoder.DecodeArrayLen(); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msgLen < 1 {
		return 0, 0, fmt.Errorf("%w: empty message", ErrMalformedMessage)
	}
	if msgType, err = decoder.DecodeInt(); err != nil {
		return 0, 0, fmt.Errorf("%w: invalid message type: %v", ErrMalformedMessage, err)
	}
	return msgLen, msgType, nil
}

// decodeInvocation decodes the elements following the message type.
// size is the length of the frame, which bounds the number of arguments it can hold.
func (m *MessagePackCodec) decodeInvocation(decoder *msgpack.Decoder, msgLen int, size int) (InvocationDescriptor, error) {
	if msgLen < 4 {
		return InvocationDescriptor{}, fmt.Errorf("%w: invalid invocation message length %v", ErrMalformedMessage, msgLen)
	}
	invocationID, err := m.decodeOptionalString(decoder)
	if err != nil {
		return InvocationDescriptor{}, fmt.Errorf("%w: invalid invocationId: %v", ErrMalformedMessage, err)
	}
	methodName, err := m.decodeOptionalString(decoder)
	if err != nil {
		return InvocationDescriptor{}, fmt.Errorf("%w: invalid methodName: %v", ErrMalformedMessage, err)
	}
	if methodName == "" {
		return InvocationDescriptor{}, fmt.Errorf("%w: missing methodName", ErrMalformedMessage)
	}
	argLen, err := decoder.DecodeArrayLen()
	if err != nil {
		return InvocationDescriptor{}, fmt.Errorf("%w: invalid arguments: %v", ErrMalformedMessage, err)
	}
	if argLen < 0 {
		argLen = 0
	}
	// every argument takes at least one byte
	if argLen > size {
		return InvocationDescriptor{}, fmt.Errorf("%w: %v arguments do not fit into a frame of %v bytes", ErrMalformedMessage, argLen, size)
	}
	arguments := make([]interface{}, argLen)
	for i := 0; i < argLen; i++ {
		var raw msgpack.RawMessage
		if err = decoder.Decode(&raw); err != nil {
			return InvocationDescriptor{}, fmt.Errorf("%w: invalid argument %v: %v", ErrMalformedMessage, i, err)
		}
		arguments[i] = raw
	}
	return InvocationDescriptor{
		InvocationID: invocationID,
		MethodName:   methodName,
		Arguments:    arguments,
	}, nil
}

func (m *MessagePackCodec) decodeOptionalString(decoder *msgpack.Decoder) (string, error) {
	var s *string
	if err := decoder.Decode(&s); err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

func (m *MessagePackCodec) EncodeInvocation(invocation InvocationDescriptor) ([]byte, error) {
	var buf bytes.Buffer
	encoder := msgpack.NewEncoder(&buf)
	if err := encoder.EncodeArrayLen(4); err != nil {
		return nil, err
	}
	if err := encoder.EncodeInt(invocationMessageType); err != nil {
		return nil, err
	}
	if err := encoder.EncodeString(invocation.InvocationID); err != nil {
		return nil, err
	}
	if err := encoder.EncodeString(invocation.MethodName); err != nil {
		return nil, err
	}
	if err := encoder.EncodeArrayLen(len(invocation.Arguments)); err != nil {
		return nil, err
	}
	for _, argument := range invocation.Arguments {
		if err := encoder.Encode(argument); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (m *MessagePackCodec) EncodeResult(result InvocationResult) ([]byte, error) {
	var buf bytes.Buffer
	encoder := msgpack.NewEncoder(&buf)
	if err := encoder.EncodeArrayLen(4); err != nil {
		return nil, err
	}
	if err := encoder.EncodeInt(resultMessageType); err != nil {
		return nil, err
	}
	if err := encoder.EncodeString(result.InvocationID); err != nil {
		return nil, err
	}
	if err := encoder.EncodeBool(result.Success); err != nil {
		return nil, err
	}
	var err error
	if result.Success {
		err = encoder.Encode(result.Value)
	} else {
		err = encoder.Encode(result.Error)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *MessagePackCodec) DecodeMessage(data []byte) (interface{}, error) {
	decoder := msgpack.NewDecoder(bytes.NewReader(data))
	msgLen, msgType, err := m.decodeHeader(decoder)
	if err != nil {
		return nil, err
	}
	switch msgType {
	case invocationMessageType:
		return m.decodeInvocation(decoder, msgLen, len(data))
	case resultMessageType:
		if msgLen < 4 {
			return nil, fmt.Errorf("%w: invalid result message length %v", ErrMalformedMessage, msgLen)
		}
		result := InvocationResult{}
		if result.InvocationID, err = m.decodeOptionalString(decoder); err != nil {
			return nil, fmt.Errorf("%w: invalid invocationId: %v", ErrMalformedMessage, err)
		}
		if result.Success, err = decoder.DecodeBool(); err != nil {
			return nil, fmt.Errorf("%w: invalid success flag: %v", ErrMalformedMessage, err)
		}
		if result.Success {
			var raw msgpack.RawMessage
			if err = decoder.Decode(&raw); err != nil {
				return nil, fmt.Errorf("%w: invalid value: %v", ErrMalformedMessage, err)
			}
			result.Value = raw
		} else {
			result.Error = &ResultError{}
			if err = decoder.Decode(result.Error); err != nil {
				return nil, fmt.Errorf("%w: invalid error: %v", ErrMalformedMessage, err)
			}
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: unexpected message type %v", ErrMalformedMessage, msgType)
	}
}

// UnmarshalArgument unmarshals a msgpack.RawMessage into value
func (m *MessagePackCodec) UnmarshalArgument(argument interface{}, value interface{}) error {
	var raw []byte
	switch a := argument.(type) {
	case msgpack.RawMessage:
		raw = a
	case []byte:
		raw = a
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported argument type %T", argument)
	}
	return msgpack.Unmarshal(raw, value)
}
