package wsmanager

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONCodec is the default, text based Codec
type JSONCodec struct{}

// Protocol specific message for correct unmarshaling of Arguments.
// jsonInvocationMessage is only used in DecodeInvocation, not in EncodeInvocation
type jsonInvocationMessage struct {
	Type         int               `json:"type"`
	InvocationID string            `json:"invocationId"`
	MethodName   string            `json:"methodName"`
	Arguments    []json.RawMessage `json:"arguments"`
}

type jsonSendInvocationMessage struct {
	Type         int           `json:"type"`
	InvocationID string        `json:"invocationId,omitempty"`
	MethodName   string        `json:"methodName"`
	Arguments    []interface{} `json:"arguments"`
}

type jsonResultMessage struct {
	Type         int          `json:"type"`
	InvocationID string       `json:"invocationId,omitempty"`
	Success      bool         `json:"success"`
	Value        interface{}  `json:"value,omitempty"`
	Error        *ResultError `json:"error,omitempty"`
}

type jsonReceivedResultMessage struct {
	InvocationID string          `json:"invocationId"`
	Success      bool            `json:"success"`
	Value        json.RawMessage `json:"value"`
	Error        *ResultError    `json:"error"`
}

type jsonMessageProbe struct {
	Type    int   `json:"type"`
	Success *bool `json:"success"`
}

type jsonError struct {
	raw string
	err error
}

func (j *jsonError) Error() string {
	return fmt.Sprintf("%v (source: %v)", j.err, j.raw)
}

func (j *jsonError) Unwrap() error {
	return j.err
}

func (j *JSONCodec) Name() string {
	return "json"
}

func (j *JSONCodec) TransferFormat() TransferFormat {
	return TextTransferFormat
}

// DecodeInvocation decodes a JSON invocation message. The type field is optional.
func (j *JSONCodec) DecodeInvocation(data []byte) (InvocationDescriptor, error) {
	jsonInvocation := jsonInvocationMessage{}
	if err := json.Unmarshal(data, &jsonInvocation); err != nil {
		return InvocationDescriptor{}, fmt.Errorf("%w: %w", ErrMalformedMessage, &jsonError{string(data), err})
	}
	if jsonInvocation.Type != 0 && jsonInvocation.Type != invocationMessageType {
		return InvocationDescriptor{}, fmt.Errorf("%w: unexpected message type %v", ErrMalformedMessage, jsonInvocation.Type)
	}
	if jsonInvocation.MethodName == "" {
		return InvocationDescriptor{}, fmt.Errorf("%w: missing methodName (source: %s)", ErrMalformedMessage, data)
	}
	arguments := make([]interface{}, len(jsonInvocation.Arguments))
	for i, a := range jsonInvocation.Arguments {
		arguments[i] = a
	}
	return InvocationDescriptor{
		InvocationID: jsonInvocation.InvocationID,
		MethodName:   jsonInvocation.MethodName,
		Arguments:    arguments,
	}, nil
}

func (j *JSONCodec) EncodeInvocation(invocation InvocationDescriptor) ([]byte, error) {
	arguments := invocation.Arguments
	if arguments == nil {
		arguments = make([]interface{}, 0)
	}
	return json.Marshal(jsonSendInvocationMessage{
		Type:         invocationMessageType,
		InvocationID: invocation.InvocationID,
		MethodName:   invocation.MethodName,
		Arguments:    arguments,
	})
}

func (j *JSONCodec) EncodeResult(result InvocationResult) ([]byte, error) {
	message := jsonResultMessage{
		Type:         resultMessageType,
		InvocationID: result.InvocationID,
		Success:      result.Success,
	}
	if result.Success {
		message.Value = result.Value
	} else {
		message.Error = result.Error
	}
	return json.Marshal(message)
}

func (j *JSONCodec) DecodeMessage(data []byte) (interface{}, error) {
	probe := jsonMessageProbe{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, &jsonError{string(data), err})
	}
	if probe.Type == resultMessageType || (probe.Type == 0 && probe.Success != nil) {
		received := jsonReceivedResultMessage{}
		if err := json.Unmarshal(data, &received); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, &jsonError{string(data), err})
		}
		result := InvocationResult{
			InvocationID: received.InvocationID,
			Success:      received.Success,
			Error:        received.Error,
		}
		if received.Value != nil {
			result.Value = received.Value
		}
		return result, nil
	}
	return j.DecodeInvocation(data)
}

// UnmarshalArgument unmarshals a json.RawMessage depending on the specified value type into value
func (j *JSONCodec) UnmarshalArgument(argument interface{}, value interface{}) error {
	var raw []byte
	switch a := argument.(type) {
	case json.RawMessage:
		raw = a
	case []byte:
		raw = a
	case nil:
		raw = []byte("null")
	default:
		return fmt.Errorf("unsupported argument type %T", argument)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(value); err != nil {
		return &jsonError{string(raw), err}
	}
	return nil
}
