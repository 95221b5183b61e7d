package wsmanager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type lifecycleHub struct {
	Hub
	events chan string
}

func (l *lifecycleHub) OnConnected(connectionID string) {
	l.events <- "OnConnected"
}

func (l *lifecycleHub) OnDisconnected(connectionID string) {
	l.events <- "OnDisconnected"
}

func (l *lifecycleHub) Close() error {
	l.events <- "Release"
	return nil
}

func (l *lifecycleHub) Wait(ctx context.Context) error {
	l.events <- "Wait"
	<-ctx.Done()
	l.events <- "Canceled"
	return ctx.Err()
}

func (l *lifecycleHub) Stubborn(millis int) {
	l.events <- "Stubborn"
	time.Sleep(time.Duration(millis) * time.Millisecond)
}

func (l *lifecycleHub) Quit() {
	l.Abort()
}

func (l *lifecycleHub) Echo(value string) string {
	return value
}

// pooledHub counts invocations which overlap on one instance or see their connection change
type pooledHub struct {
	Hub
	active   atomic.Int32
	overlaps *atomic.Int32
	switched *atomic.Int32
}

func (p *pooledHub) Stubborn(millis int) {
	if p.active.Add(1) > 1 {
		p.overlaps.Add(1)
	}
	defer p.active.Add(-1)
	connectionID := p.ConnectionID()
	time.Sleep(time.Duration(millis) * time.Millisecond)
	if p.ConnectionID() != connectionID {
		p.switched.Add(1)
	}
}

type countingActivator struct {
	HubActivator
	created  atomic.Int32
	released atomic.Int32
}

func (c *countingActivator) Create(ctx context.Context, connectionID string) (HubInterface, error) {
	c.created.Add(1)
	return c.HubActivator.Create(ctx, connectionID)
}

func (c *countingActivator) Release(hub HubInterface) error {
	c.released.Add(1)
	return c.HubActivator.Release(hub)
}

type stateRecorder struct {
	mx     sync.Mutex
	states map[string][]ConnectionState
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{states: make(map[string][]ConnectionState)}
}

func (s *stateRecorder) observe(connectionID string, state ConnectionState) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.states[connectionID] = append(s.states[connectionID], state)
}

func (s *stateRecorder) of(connectionID string) []ConnectionState {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]ConnectionState{}, s.states[connectionID]...)
}

func newLifecycleServer(events chan string, options ...func(party) error) (Server, *countingActivator) {
	activator := &countingActivator{HubActivator: NewFactoryActivator(func(string) (HubInterface, error) {
		return &lifecycleHub{events: events}, nil
	})}
	server, err := NewServer(context.TODO(),
		append([]func(party) error{WithHubActivator(activator), testLoggerOption()}, options...)...)
	Expect(err).NotTo(HaveOccurred())
	return server, activator
}

func serveAsync(server Server, conn Connection) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(conn)
	}()
	return errCh
}

var _ = Describe("Connection loop", func() {

	Describe("Lifecycle", func() {
		It("should pass Connecting, Open, Closing and Closed and release the hub once", func(done Done) {
			events := make(chan string, 10)
			recorder := newStateRecorder()
			server, activator := newLifecycleServer(events, StateObserver(recorder.observe))
			conn := newTestingConnection()
			errCh := serveAsync(server, conn)
			Expect(<-events).To(Equal("OnConnected"))
			Expect(server.Registry().Count()).To(Equal(1))
			Expect(conn.Close()).To(Succeed())
			Expect(<-errCh).NotTo(HaveOccurred())
			Expect(<-events).To(Equal("OnDisconnected"))
			Expect(<-events).To(Equal("Release"))
			Expect(activator.created.Load()).To(Equal(int32(1)))
			Expect(activator.released.Load()).To(Equal(int32(1)))
			Expect(server.Registry().Count()).To(Equal(0))
			Expect(recorder.of(conn.ConnectionID())).To(Equal([]ConnectionState{Connecting, Open, Closing, Closed}))
			close(done)
		}, 2.0)

		It("should assign a connection id to connections without one", func(done Done) {
			server, _ := newLifecycleServer(make(chan string, 10), ConnectionIDGenerator(func() string { return "fixed" }))
			conn := newTestingConnection()
			errCh := serveAsync(server, conn)
			Eventually(func() error {
				_, err := server.Registry().Get("fixed")
				return err
			}).ShouldNot(HaveOccurred())
			server.Cancel()
			Expect(<-errCh).NotTo(HaveOccurred())
			close(done)
		}, 2.0)

		It("should end all connections when the server is canceled", func(done Done) {
			events := make(chan string, 20)
			server, activator := newLifecycleServer(events)
			conn1 := newTestingConnection()
			conn2 := newTestingConnection()
			errCh1 := serveAsync(server, conn1)
			errCh2 := serveAsync(server, conn2)
			Eventually(server.Registry().Count).Should(Equal(2))
			server.Cancel()
			Expect(<-errCh1).NotTo(HaveOccurred())
			Expect(<-errCh2).NotTo(HaveOccurred())
			Expect(activator.released.Load()).To(Equal(int32(2)))
			Expect(conn1.State()).To(Equal(Closed))
			Expect(conn2.State()).To(Equal(Closed))
			close(done)
		}, 2.0)

		It("should end the connection when the hub aborts it", func(done Done) {
			events := make(chan string, 10)
			server, activator := newLifecycleServer(events)
			conn := newTestingConnection()
			errCh := serveAsync(server, conn)
			Expect(<-events).To(Equal("OnConnected"))
			conn.ClientInvoke("1", "Quit")
			Expect(<-errCh).NotTo(HaveOccurred())
			Expect(activator.released.Load()).To(Equal(int32(1)))
			close(done)
		}, 2.0)

		It("should end the connection when a result can not be written", func(done Done) {
			events := make(chan string, 10)
			server, activator := newLifecycleServer(events)
			conn := newTestingConnection()
			errCh := serveAsync(server, conn)
			Expect(<-events).To(Equal("OnConnected"))
			conn.FailWrite()
			conn.ClientInvoke("1", "Echo", "x")
			Expect(<-errCh).NotTo(HaveOccurred())
			Expect(conn.State()).To(Equal(Closed))
			Expect(activator.released.Load()).To(Equal(int32(1)))
			Expect(server.Registry().Count()).To(Equal(0))
			close(done)
		}, 2.0)
	})

	Describe("Disconnect during an invocation", func() {
		It("should cancel the context of the method and release the hub once", func(done Done) {
			events := make(chan string, 10)
			server, activator := newLifecycleServer(events)
			conn := newTestingConnection()
			errCh := serveAsync(server, conn)
			Expect(<-events).To(Equal("OnConnected"))
			conn.ClientInvoke("1", "Wait")
			Expect(<-events).To(Equal("Wait"))
			Expect(conn.Close()).To(Succeed())
			Expect(<-events).To(Equal("Canceled"))
			Expect(<-errCh).NotTo(HaveOccurred())
			Expect(<-events).To(Equal("OnDisconnected"))
			Expect(<-events).To(Equal("Release"))
			Expect(activator.released.Load()).To(Equal(int32(1)))
			Expect(server.Registry().Count()).To(Equal(0))
			close(done)
		}, 2.0)

		It("should not wait longer than the drain timeout for methods ignoring the context", func(done Done) {
			events := make(chan string, 10)
			server, activator := newLifecycleServer(events, InvocationDrainTimeout(50*time.Millisecond))
			conn := newTestingConnection()
			errCh := serveAsync(server, conn)
			Expect(<-events).To(Equal("OnConnected"))
			conn.ClientInvoke("1", "Stubborn", 1000)
			Expect(<-events).To(Equal("Stubborn"))
			start := time.Now()
			Expect(conn.Close()).To(Succeed())
			Expect(<-errCh).NotTo(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically("<", 500*time.Millisecond))
			// the hub is still in use
			Expect(activator.released.Load()).To(Equal(int32(0)))
			Eventually(activator.released.Load, 2*time.Second).Should(Equal(int32(1)))
			Expect(<-events).To(Equal("OnDisconnected"))
			Expect(<-events).To(Equal("Release"))
			close(done)
		}, 3.0)

		It("should not hand a hub with a running method to the next connection", func(done Done) {
			var created, overlaps, switched atomic.Int32
			activator := NewPoolingActivator(func() HubInterface {
				created.Add(1)
				return &pooledHub{overlaps: &overlaps, switched: &switched}
			}, 1, nil)
			server, err := NewServer(context.TODO(), WithHubActivator(activator),
				InvocationDrainTimeout(10*time.Millisecond), testLoggerOption())
			Expect(err).NotTo(HaveOccurred())
			defer server.Cancel()

			first := newTestingConnection()
			firstErr := serveAsync(server, first)
			Eventually(first.State).Should(Equal(Open))
			first.ClientInvoke("1", "Stubborn", 300)
			time.Sleep(50 * time.Millisecond)
			Expect(first.Close()).To(Succeed())
			Expect(<-firstErr).NotTo(HaveOccurred())

			second := newTestingConnection()
			serveAsync(server, second)
			Eventually(second.State).Should(Equal(Open))
			Expect(created.Load()).To(Equal(int32(2)))
			second.ClientInvoke("2", "Stubborn", 300)
			recv, err := second.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Success).To(BeTrue())
			Expect(overlaps.Load()).To(Equal(int32(0)))
			Expect(switched.Load()).To(Equal(int32(0)))

			// the first hub returned to the pool after its method ended
			third := newTestingConnection()
			serveAsync(server, third)
			Eventually(third.State).Should(Equal(Open))
			Expect(created.Load()).To(Equal(int32(2)))
			close(done)
		}, 3.0)
	})

	Describe("Activation failure", func() {
		It("should close the connection without registering it", func(done Done) {
			recorder := newStateRecorder()
			server, err := NewServer(context.TODO(),
				WithHubActivator(NewFactoryActivator(func(string) (HubInterface, error) {
					return nil, errors.New("container down")
				})),
				StateObserver(recorder.observe),
				testLoggerOption())
			Expect(err).NotTo(HaveOccurred())
			conn := newTestingConnection()
			err = server.Serve(conn)
			Expect(errors.Is(err, ErrActivation)).To(BeTrue())
			var activationError *ActivationError
			Expect(errors.As(err, &activationError)).To(BeTrue())
			Expect(activationError.ConnectionID).To(Equal(conn.ConnectionID()))
			Expect(err.Error()).To(ContainSubstring("container down"))
			Expect(conn.State()).To(Equal(Closed))
			Expect(server.Registry().Count()).To(Equal(0))
			Expect(recorder.of(conn.ConnectionID())).To(Equal([]ConnectionState{Connecting, Closed}))
			close(done)
		}, 2.0)

		It("should turn a panicking factory into an activation error", func(done Done) {
			server, err := NewServer(context.TODO(),
				HubFactory(func(string) HubInterface { panic("factory panic") }),
				testLoggerOption())
			Expect(err).NotTo(HaveOccurred())
			err = server.Serve(newTestingConnection())
			Expect(errors.Is(err, ErrActivation)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("factory panic"))
			close(done)
		}, 2.0)
	})

	Describe("Duplicate connection id", func() {
		It("should reject the second connection and keep the first", func(done Done) {
			events := make(chan string, 10)
			server, activator := newLifecycleServer(events)
			conn1 := newTestingConnection()
			conn1.SetConnectionID("same")
			errCh := serveAsync(server, conn1)
			Expect(<-events).To(Equal("OnConnected"))
			conn2 := newTestingConnection()
			conn2.SetConnectionID("same")
			err := server.Serve(conn2)
			Expect(errors.Is(err, ErrDuplicateIdentity)).To(BeTrue())
			Expect(<-events).To(Equal("Release"))
			Expect(conn2.State()).To(Equal(Closed))
			registered, err := server.Registry().Get("same")
			Expect(err).NotTo(HaveOccurred())
			Expect(registered).To(BeIdenticalTo(conn1))
			Expect(activator.created.Load()).To(Equal(int32(2)))
			Expect(activator.released.Load()).To(Equal(int32(1)))
			server.Cancel()
			Expect(<-errCh).NotTo(HaveOccurred())
			Expect(activator.released.Load()).To(Equal(int32(2)))
			close(done)
		}, 2.0)
	})

	Describe("Frame size", func() {
		It("should answer frames exceeding the maximum size with MalformedMessage", func(done Done) {
			server, conn, _ := connect(&invocationHub{}, MaximumReceiveMessageSize(64))
			defer server.Cancel()
			conn.ClientInvoke("1", "SimpleString", strings.Repeat("a", 100), "b")
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Success).To(BeFalse())
			Expect(recv.Error.Kind).To(Equal(KindMalformedMessage))
			Expect(conn.State()).To(Equal(Open))
			close(done)
		}, 2.0)
	})
})
