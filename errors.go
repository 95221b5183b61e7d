package wsmanager

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrActivation is matched by every *ActivationError
	ErrActivation = errors.New("hub activation failed")
	// ErrDuplicateIdentity is returned by ConnectionRegistry.Add when the connection id is already registered
	ErrDuplicateIdentity = errors.New("duplicate connection identity")
	// ErrNotFound is returned when a connection id is not registered
	ErrNotFound = errors.New("connection not found")
	// ErrMalformedMessage is returned by codecs for frames which can not be decoded into an InvocationDescriptor
	ErrMalformedMessage = errors.New("malformed message")
	// ErrMethodNotFound signals that the hub has no method with the requested name and argument count
	ErrMethodNotFound = errors.New("method not found")
	// ErrArgumentMismatch signals that an argument could not be coerced to the parameter type
	ErrArgumentMismatch = errors.New("argument mismatch")
	// ErrInvocation signals that the hub method returned an error or panicked
	ErrInvocation = errors.New("invocation error")
)

// Kinds of ResultError
const (
	KindMalformedMessage = "MalformedMessage"
	KindMethodNotFound   = "MethodNotFound"
	KindArgumentMismatch = "ArgumentMismatch"
	KindInvocationError  = "InvocationError"
)

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return KindMalformedMessage
	case errors.Is(err, ErrMethodNotFound):
		return KindMethodNotFound
	case errors.Is(err, ErrArgumentMismatch):
		return KindArgumentMismatch
	default:
		return KindInvocationError
	}
}

// ActivationError is returned when a HubActivator could not create a hub for a connection.
// The connection is never opened.
type ActivationError struct {
	ConnectionID string
	Err          error
}

func (a *ActivationError) Error() string {
	return fmt.Sprintf("%v for connection %v: %v", ErrActivation, a.ConnectionID, a.Err)
}

func (a *ActivationError) Unwrap() error {
	return a.Err
}

func (a *ActivationError) Is(target error) bool {
	return target == ErrActivation
}

// DeliveryError collects the failed deliveries of a registry send operation.
// Failures maps connection ids to the error returned by their connection.
type DeliveryError struct {
	Failures map[string]error
}

func (d *DeliveryError) Error() string {
	ids := make([]string, 0, len(d.Failures))
	for id := range d.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	fmt.Fprintf(&b, "delivery failed for %d connection(s):", len(ids))
	for _, id := range ids {
		fmt.Fprintf(&b, " %v: %v;", id, d.Failures[id])
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (d *DeliveryError) Unwrap() []error {
	errs := make([]error, 0, len(d.Failures))
	for _, err := range d.Failures {
		errs = append(errs, err)
	}
	return errs
}
