package wsmanager

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ArgumentDecoder converts the raw argument at index into value, which must be a pointer.
type ArgumentDecoder func(index int, value interface{}) error

type invokeFunc func(ctx context.Context) (interface{}, error)

// binder converts the raw arguments of an invocation into typed values and returns the call bound to them.
type binder func(args ArgumentDecoder) (invokeFunc, error)

type hubMethod struct {
	name  string
	arity int
	bind  binder
}

// MethodTable maps method names and argument counts to invokers.
// A MethodTable is built once for each hub instance when the hub is activated.
type MethodTable struct {
	methods map[string]map[int]hubMethod
}

// MethodProvider can be implemented by hubs to register their methods with typed invokers
// instead of having them discovered by reflection.
// Use Func0..Func3 and Action0..Action3 inside Methods, or let cmd/hubgen generate it.
type MethodProvider interface {
	Methods(t *MethodTable)
}

// NewMethodTable creates an empty MethodTable
func NewMethodTable() *MethodTable {
	return &MethodTable{methods: make(map[string]map[int]hubMethod)}
}

func (t *MethodTable) register(name string, arity int, bind binder) {
	overloads, ok := t.methods[name]
	if !ok {
		overloads = make(map[int]hubMethod)
		t.methods[name] = overloads
	}
	overloads[arity] = hubMethod{name: name, arity: arity, bind: bind}
}

func (t *MethodTable) lookup(name string, arity int) (hubMethod, error) {
	overloads, ok := t.methods[name]
	if !ok {
		return hubMethod{}, fmt.Errorf("%w: unknown method %v", ErrMethodNotFound, name)
	}
	m, ok := overloads[arity]
	if !ok {
		return hubMethod{}, fmt.Errorf("%w: method %v does not take %v argument(s)", ErrMethodNotFound, name, arity)
	}
	return m, nil
}

// Has reports if a method with name and arity is registered
func (t *MethodTable) Has(name string, arity int) bool {
	_, err := t.lookup(name, arity)
	return err == nil
}

// Names returns the sorted names of all registered methods
func (t *MethodTable) Names() []string {
	names := make([]string, 0, len(t.methods))
	for name := range t.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeArgument[A any](args ArgumentDecoder, index int) (A, error) {
	var a A
	if err := args(index, &a); err != nil {
		return a, fmt.Errorf("%w: argument %d: %v", ErrArgumentMismatch, index, err)
	}
	return a, nil
}

// Func0 registers a method without arguments returning a value
func Func0[R any](t *MethodTable, name string, f func(ctx context.Context) (R, error)) {
	t.register(name, 0, func(ArgumentDecoder) (invokeFunc, error) {
		return func(ctx context.Context) (interface{}, error) {
			r, err := f(ctx)
			return r, err
		}, nil
	})
}

func Func1[A, R any](t *MethodTable, name string, f func(ctx context.Context, a A) (R, error)) {
	t.register(name, 1, func(args ArgumentDecoder) (invokeFunc, error) {
		a, err := decodeArgument[A](args, 0)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (interface{}, error) {
			r, err := f(ctx, a)
			return r, err
		}, nil
	})
}

func Func2[A, B, R any](t *MethodTable, name string, f func(ctx context.Context, a A, b B) (R, error)) {
	t.register(name, 2, func(args ArgumentDecoder) (invokeFunc, error) {
		a, err := decodeArgument[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := decodeArgument[B](args, 1)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (interface{}, error) {
			r, err := f(ctx, a, b)
			return r, err
		}, nil
	})
}

func Func3[A, B, C, R any](t *MethodTable, name string, f func(ctx context.Context, a A, b B, c C) (R, error)) {
	t.register(name, 3, func(args ArgumentDecoder) (invokeFunc, error) {
		a, err := decodeArgument[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := decodeArgument[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := decodeArgument[C](args, 2)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (interface{}, error) {
			r, err := f(ctx, a, b, c)
			return r, err
		}, nil
	})
}

// Action0 registers a method without arguments and without a result
func Action0(t *MethodTable, name string, f func(ctx context.Context) error) {
	t.register(name, 0, func(ArgumentDecoder) (invokeFunc, error) {
		return func(ctx context.Context) (interface{}, error) {
			return nil, f(ctx)
		}, nil
	})
}

func Action1[A any](t *MethodTable, name string, f func(ctx context.Context, a A) error) {
	t.register(name, 1, func(args ArgumentDecoder) (invokeFunc, error) {
		a, err := decodeArgument[A](args, 0)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (interface{}, error) {
			return nil, f(ctx, a)
		}, nil
	})
}

func Action2[A, B any](t *MethodTable, name string, f func(ctx context.Context, a A, b B) error) {
	t.register(name, 2, func(args ArgumentDecoder) (invokeFunc, error) {
		a, err := decodeArgument[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := decodeArgument[B](args, 1)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (interface{}, error) {
			return nil, f(ctx, a, b)
		}, nil
	})
}

func Action3[A, B, C any](t *MethodTable, name string, f func(ctx context.Context, a A, b B, c C) error) {
	t.register(name, 3, func(args ArgumentDecoder) (invokeFunc, error) {
		a, err := decodeArgument[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := decodeArgument[B](args, 1)
		if err != nil {
			return nil, err
		}
		c, err := decodeArgument[C](args, 2)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (interface{}, error) {
			return nil, f(ctx, a, b, c)
		}, nil
	})
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	// Methods of the Hub base type are not invocable by clients
	hubBaseMethods = func() map[string]bool {
		names := map[string]bool{"Methods": true}
		hubType := reflect.TypeOf(&Hub{})
		for i := 0; i < hubType.NumMethod(); i++ {
			names[hubType.Method(i).Name] = true
		}
		return names
	}()
)

// IsHubBaseMethod reports if name is a method of HubInterface, Hub or MethodProvider. These methods are never invocable by clients.
func IsHubBaseMethod(name string) bool {
	return hubBaseMethods[name]
}

func methodTableOf(hub HubInterface) *MethodTable {
	if provider, ok := hub.(MethodProvider); ok {
		t := NewMethodTable()
		provider.Methods(t)
		return t
	}
	return reflectMethodTable(hub)
}

// reflectMethodTable builds a MethodTable from the exported methods of target.
// Methods may take a context.Context as first parameter. Supported results are
// none, error, a value, a value and an error, multiple values (returned as array) and
// a receivable channel, which is awaited for its first value.
func reflectMethodTable(target interface{}) *MethodTable {
	t := NewMethodTable()
	targetType := reflect.TypeOf(target)
	targetValue := reflect.ValueOf(target)
	for i := 0; i < targetType.NumMethod(); i++ {
		if m := targetType.Method(i); !hubBaseMethods[m.Name] {
			t.registerReflected(m.Name, targetValue.Method(i))
		}
	}
	return t
}

func (t *MethodTable) registerReflected(name string, method reflect.Value) {
	methodType := method.Type()
	offset := 0
	if methodType.NumIn() > 0 && methodType.In(0) == contextType {
		offset = 1
	}
	t.register(name, methodType.NumIn()-offset, func(args ArgumentDecoder) (invokeFunc, error) {
		in := make([]reflect.Value, methodType.NumIn())
		for i := offset; i < len(in); i++ {
			arg := reflect.New(methodType.In(i))
			if err := args(i-offset, arg.Interface()); err != nil {
				return nil, fmt.Errorf("%w: argument %d: %v", ErrArgumentMismatch, i-offset, err)
			}
			in[i] = arg.Elem()
		}
		return func(ctx context.Context) (interface{}, error) {
			if offset == 1 {
				in[0] = reflect.ValueOf(&ctx).Elem()
			}
			var out []reflect.Value
			if methodType.IsVariadic() {
				out = method.CallSlice(in)
			} else {
				out = method.Call(in)
			}
			return reflectedResult(ctx, out)
		}, nil
	})
}

func reflectedResult(ctx context.Context, out []reflect.Value) (interface{}, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if err, _ := out[n-1].Interface().(error); err != nil {
			return nil, err
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Kind() == reflect.Chan && out[0].Type().ChanDir()&reflect.RecvDir != 0 {
			return awaitChan(ctx, out[0])
		}
		return out[0].Interface(), nil
	default:
		values := make([]interface{}, len(out))
		for i, rv := range out {
			values[i] = rv.Interface()
		}
		return values, nil
	}
}

// awaitChan waits for the first value of a channel returned by a suspending hub method
func awaitChan(ctx context.Context, ch reflect.Value) (interface{}, error) {
	chosen, value, ok := reflect.Select([]reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: ch},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
	})
	if chosen == 1 {
		return nil, ctx.Err()
	}
	if !ok {
		return nil, errors.New("hub method returned closed channel")
	}
	if err, isErr := value.Interface().(error); isErr && value.Type() == errorType {
		return nil, err
	}
	return value.Interface(), nil
}
