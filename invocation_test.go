package wsmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var invocationQueue = make(chan string, 20)

type invocationHub struct {
	Hub
}

func (i *invocationHub) Simple() {
	invocationQueue <- "Simple()"
}

func (i *invocationHub) SimpleInt(value int) int {
	invocationQueue <- fmt.Sprintf("SimpleInt(%v)", value)
	return value + 1
}

func (i *invocationHub) Add(a int, b int) int {
	return a + b
}

func (i *invocationHub) SimpleFloat(value float64) (float64, float64) {
	invocationQueue <- fmt.Sprintf("SimpleFloat(%v)", value)
	return value * 10.0, value * 100.0
}

func (i *invocationHub) SimpleString(value1 string, value2 string) string {
	invocationQueue <- fmt.Sprintf("SimpleString(%v, %v)", value1, value2)
	return strings.ToLower(value1 + value2)
}

func (i *invocationHub) Sum(values ...int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum
}

func (i *invocationHub) Async() chan bool {
	r := make(chan bool)
	go func() {
		defer close(r)
		r <- true
	}()
	invocationQueue <- "Async()"
	return r
}

func (i *invocationHub) AsyncClosedChan() chan bool {
	r := make(chan bool)
	close(r)
	invocationQueue <- "AsyncClosedChan()"
	return r
}

func (i *invocationHub) WithContext(ctx context.Context, value string) (string, error) {
	if ctx == nil {
		return "", errors.New("no context")
	}
	return strings.ToUpper(value), nil
}

func (i *invocationHub) Fail(message string) error {
	return errors.New(message)
}

func (i *invocationHub) Panic() {
	invocationQueue <- "Panic()"
	panic("Don't panic!")
}

var _ = Describe("Invocation", func() {
	var server Server
	var conn *testingConnection
	BeforeEach(func(done Done) {
		server, conn, _ = connect(&invocationHub{})
		close(done)
	}, 2.0)
	AfterEach(func(done Done) {
		server.Cancel()
		close(done)
	})

	Describe("Simple invocation", func() {
		Context("When invoked by the client", func() {
			It("should be invoked and return a successful result", func(done Done) {
				conn.ClientSend(`{"type":1,"invocationId": "123","methodName":"Simple","arguments":[]}`)
				Expect(<-invocationQueue).To(Equal("Simple()"))
				recv, err := conn.ClientReceive()
				Expect(err).NotTo(HaveOccurred())
				Expect(recv.Type).To(Equal(3))
				Expect(recv.InvocationID).To(Equal("123"))
				Expect(recv.Success).To(BeTrue())
				Expect(recv.Error).To(BeNil())
				close(done)
			}, 2.0)
		})
		Context("When invoked without type and arguments", func() {
			It("should be invoked and return a successful result", func(done Done) {
				conn.ClientSend(`{"invocationId": "124","methodName":"Simple"}`)
				Expect(<-invocationQueue).To(Equal("Simple()"))
				recv, err := conn.ClientReceive()
				Expect(err).NotTo(HaveOccurred())
				Expect(recv.InvocationID).To(Equal("124"))
				Expect(recv.Success).To(BeTrue())
				close(done)
			}, 2.0)
		})
		Context("When invoked without invocationId", func() {
			It("should still return exactly one result", func(done Done) {
				conn.ClientSend(`{"type":1,"methodName":"Simple","arguments":[]}`)
				Expect(<-invocationQueue).To(Equal("Simple()"))
				recv, err := conn.ClientReceive()
				Expect(err).NotTo(HaveOccurred())
				Expect(recv.InvocationID).To(Equal(""))
				Expect(recv.Success).To(BeTrue())
				Expect(conn.ClientReceiveNone(100 * time.Millisecond)).To(Succeed())
				close(done)
			}, 2.0)
		})
	})

	Describe("Invocation with results", func() {
		It("should return the value of the synchronous method", func(done Done) {
			conn.ClientInvoke("1", "Add", 2, 3)
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Success).To(BeTrue())
			Expect(string(recv.Value)).To(Equal("5"))
			close(done)
		}, 2.0)
		It("should return the int result", func(done Done) {
			conn.ClientInvoke("2", "SimpleInt", 314)
			Expect(<-invocationQueue).To(Equal("SimpleInt(314)"))
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.InvocationID).To(Equal("2"))
			Expect(string(recv.Value)).To(Equal("315"))
			close(done)
		}, 2.0)
		It("should return multiple results as array", func(done Done) {
			conn.ClientInvoke("3", "SimpleFloat", 3.1)
			Expect(<-invocationQueue).To(Equal("SimpleFloat(3.1)"))
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Success).To(BeTrue())
			Expect(string(recv.Value)).To(MatchJSON(`[31, 310]`))
			close(done)
		}, 2.0)
		It("should pass two string arguments", func(done Done) {
			conn.ClientInvoke("4", "SimpleString", "Camel", "Case")
			Expect(<-invocationQueue).To(Equal("SimpleString(Camel, Case)"))
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(recv.Value)).To(Equal(`"camelcase"`))
			close(done)
		}, 2.0)
		It("should pass the connection context to methods which take one", func(done Done) {
			conn.ClientInvoke("5", "WithContext", "up")
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Success).To(BeTrue())
			Expect(string(recv.Value)).To(Equal(`"UP"`))
			close(done)
		}, 2.0)
		It("should pass the variadic argument as array", func(done Done) {
			conn.ClientInvoke("6", "Sum", []int{1, 2, 3})
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Success).To(BeTrue())
			Expect(string(recv.Value)).To(Equal("6"))
			close(done)
		}, 2.0)
	})

	Describe("Suspending invocation", func() {
		It("should await the channel and return its value", func(done Done) {
			conn.ClientInvoke("7", "Async")
			Expect(<-invocationQueue).To(Equal("Async()"))
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Success).To(BeTrue())
			Expect(string(recv.Value)).To(Equal("true"))
			close(done)
		}, 2.0)
		It("should return an InvocationError when the channel is closed without value", func(done Done) {
			conn.ClientInvoke("8", "AsyncClosedChan")
			Expect(<-invocationQueue).To(Equal("AsyncClosedChan()"))
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Success).To(BeFalse())
			Expect(recv.Error.Kind).To(Equal(KindInvocationError))
			close(done)
		}, 2.0)
	})

	Describe("Failing invocation", func() {
		It("should return the error of the method as InvocationError", func(done Done) {
			conn.ClientInvoke("9", "Fail", "no way")
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.InvocationID).To(Equal("9"))
			Expect(recv.Success).To(BeFalse())
			Expect(recv.Error.Kind).To(Equal(KindInvocationError))
			Expect(recv.Error.Message).To(ContainSubstring("no way"))
			close(done)
		}, 2.0)
		It("should recover from a panic and keep the connection open", func(done Done) {
			conn.ClientInvoke("10", "Panic")
			Expect(<-invocationQueue).To(Equal("Panic()"))
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Success).To(BeFalse())
			Expect(recv.Error.Kind).To(Equal(KindInvocationError))
			Expect(recv.Error.Message).To(ContainSubstring("Don't panic!"))
			Expect(recv.Error.Message).NotTo(ContainSubstring("goroutine"))
			Expect(conn.State()).To(Equal(Open))
			conn.ClientInvoke("11", "Add", 1, 1)
			recv, err = conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(recv.Value)).To(Equal("2"))
			close(done)
		}, 2.0)
	})

	Describe("Invocation of unknown methods", func() {
		It("should return MethodNotFound for a missing method", func(done Done) {
			conn.ClientInvoke("12", "Missing")
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.InvocationID).To(Equal("12"))
			Expect(recv.Success).To(BeFalse())
			Expect(recv.Error.Kind).To(Equal(KindMethodNotFound))
			Expect(server.Registry().Count()).To(Equal(1))
			close(done)
		}, 2.0)
		It("should return MethodNotFound when the argument count does not match", func(done Done) {
			conn.ClientInvoke("13", "Add", 1)
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Error.Kind).To(Equal(KindMethodNotFound))
			close(done)
		}, 2.0)
		It("should match method names exactly", func(done Done) {
			conn.ClientInvoke("14", "add", 1, 2)
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Error.Kind).To(Equal(KindMethodNotFound))
			close(done)
		}, 2.0)
		It("should not expose the methods of the Hub base", func(done Done) {
			conn.ClientInvoke("15", "Abort")
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.Error.Kind).To(Equal(KindMethodNotFound))
			Expect(conn.State()).To(Equal(Open))
			close(done)
		}, 2.0)
	})

	Describe("Invocation with wrong arguments", func() {
		It("should return ArgumentMismatch and not invoke the method", func(done Done) {
			conn.ClientInvoke("16", "SimpleInt", "not a number")
			recv, err := conn.ClientReceive()
			Expect(err).NotTo(HaveOccurred())
			Expect(recv.InvocationID).To(Equal("16"))
			Expect(recv.Success).To(BeFalse())
			Expect(recv.Error.Kind).To(Equal(KindArgumentMismatch))
			Expect(invocationQueue).NotTo(Receive())
			close(done)
		}, 2.0)
	})

	Describe("Malformed frames", func() {
		for _, frame := range []string{
			`{`,
			`[]`,
			`null`,
			`{"type":1,"invocationId":"x"}`,
			`{"type":7,"methodName":"Simple"}`,
			`{"type":1,"methodName":"Simple","arguments":5}`,
		} {
			frame := frame
			It(fmt.Sprintf("should answer %v with exactly one MalformedMessage result", frame), func(done Done) {
				conn.ClientSend(frame)
				recv, err := conn.ClientReceive()
				Expect(err).NotTo(HaveOccurred())
				Expect(recv.Success).To(BeFalse())
				Expect(recv.Error.Kind).To(Equal(KindMalformedMessage))
				Expect(conn.ClientReceiveNone(100 * time.Millisecond)).To(Succeed())
				Expect(conn.State()).To(Equal(Open))
				conn.ClientInvoke("17", "Add", 2, 2)
				recv, err = conn.ClientReceive()
				Expect(err).NotTo(HaveOccurred())
				Expect(string(recv.Value)).To(Equal("4"))
				close(done)
			}, 2.0)
		}
	})

	Describe("Sequential invocations", func() {
		It("should process invocations in the order they were received", func(done Done) {
			for i := 0; i < 10; i++ {
				conn.ClientInvoke(fmt.Sprint(i), "SimpleInt", i)
			}
			for i := 0; i < 10; i++ {
				Expect(<-invocationQueue).To(Equal(fmt.Sprintf("SimpleInt(%v)", i)))
				recv, err := conn.ClientReceive()
				Expect(err).NotTo(HaveOccurred())
				Expect(recv.InvocationID).To(Equal(fmt.Sprint(i)))
				Expect(string(recv.Value)).To(Equal(fmt.Sprint(i + 1)))
			}
			close(done)
		}, 2.0)
	})
})

var _ = Describe("Invocation with detailed errors", func() {
	It("should send the stack of a panic", func(done Done) {
		server, conn, _ := connect(&invocationHub{}, EnableDetailedErrors(true))
		defer server.Cancel()
		conn.ClientInvoke("1", "Panic")
		Expect(<-invocationQueue).To(Equal("Panic()"))
		recv, err := conn.ClientReceive()
		Expect(err).NotTo(HaveOccurred())
		Expect(recv.Error.Kind).To(Equal(KindInvocationError))
		Expect(recv.Error.Message).To(ContainSubstring("goroutine"))
		close(done)
	}, 2.0)
})
