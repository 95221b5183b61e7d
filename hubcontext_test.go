package wsmanager

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type pushHub struct {
	Hub
}

func (p *pushHub) ToCaller(message string) error {
	return p.SendToCaller("caller", message)
}

func (p *pushHub) ToOthers(message string) error {
	return p.SendToOthers("others", message)
}

func (p *pushHub) ToAll(message string) error {
	return p.SendToAll("all", message)
}

func (p *pushHub) ToConnection(connectionID string, message string) error {
	return p.SendToConnection(connectionID, "direct", message)
}

func (p *pushHub) Remember(value string) {
	p.Items().Store("value", value)
}

func (p *pushHub) Recall() string {
	if value, ok := p.Items().Load("value"); ok {
		return value.(string)
	}
	return ""
}

func (p *pushHub) Me() string {
	return p.ConnectionID()
}

// receiveUntilResult collects the invocations pushed to conn until the result with invocationID arrives
func receiveUntilResult(conn *testingConnection, invocationID string) (pushes []clientMessage, result clientMessage) {
	for {
		message, err := conn.ClientReceive()
		Expect(err).NotTo(HaveOccurred())
		if message.Type == 3 && message.InvocationID == invocationID {
			return pushes, message
		}
		pushes = append(pushes, message)
	}
}

var _ = Describe("HubContext", func() {
	var server Server
	var conn1, conn2 *testingConnection
	BeforeEach(func(done Done) {
		var err error
		server, err = NewServer(context.TODO(), SimpleHubFactory(&pushHub{}), testLoggerOption())
		Expect(err).NotTo(HaveOccurred())
		conn1 = newTestingConnection()
		conn1.SetConnectionID("conn1")
		conn2 = newTestingConnection()
		conn2.SetConnectionID("conn2")
		go func() { _ = server.Serve(conn1) }()
		go func() { _ = server.Serve(conn2) }()
		Eventually(server.Registry().Count).Should(Equal(2))
		close(done)
	}, 2.0)
	AfterEach(func(done Done) {
		server.Cancel()
		close(done)
	})

	It("should give each connection its own hub", func(done Done) {
		conn1.ClientInvoke("1", "Me")
		_, result := receiveUntilResult(conn1, "1")
		Expect(string(result.Value)).To(Equal(`"conn1"`))
		conn2.ClientInvoke("1", "Me")
		_, result = receiveUntilResult(conn2, "1")
		Expect(string(result.Value)).To(Equal(`"conn2"`))
		close(done)
	}, 2.0)

	It("should keep items per connection", func(done Done) {
		conn1.ClientInvoke("1", "Remember", "first")
		receiveUntilResult(conn1, "1")
		conn2.ClientInvoke("2", "Recall")
		_, result := receiveUntilResult(conn2, "2")
		Expect(string(result.Value)).To(Equal(`""`))
		conn1.ClientInvoke("3", "Recall")
		_, result = receiveUntilResult(conn1, "3")
		Expect(string(result.Value)).To(Equal(`"first"`))
		close(done)
	}, 2.0)

	It("should push to the caller only", func(done Done) {
		conn1.ClientInvoke("1", "ToCaller", "hi")
		pushes, result := receiveUntilResult(conn1, "1")
		Expect(result.Success).To(BeTrue())
		Expect(pushes).To(HaveLen(1))
		Expect(pushes[0].Type).To(Equal(1))
		Expect(pushes[0].MethodName).To(Equal("caller"))
		Expect(string(pushes[0].Arguments[0])).To(Equal(`"hi"`))
		Expect(conn2.ClientReceiveNone(100 * time.Millisecond)).To(Succeed())
		close(done)
	}, 2.0)

	It("should push to the others only", func(done Done) {
		conn1.ClientInvoke("1", "ToOthers", "hi")
		pushes, _ := receiveUntilResult(conn1, "1")
		Expect(pushes).To(BeEmpty())
		message, err := conn2.ClientReceive()
		Expect(err).NotTo(HaveOccurred())
		Expect(message.MethodName).To(Equal("others"))
		close(done)
	}, 2.0)

	It("should push to all", func(done Done) {
		conn1.ClientInvoke("1", "ToAll", "hi")
		pushes, _ := receiveUntilResult(conn1, "1")
		Expect(pushes).To(HaveLen(1))
		Expect(pushes[0].MethodName).To(Equal("all"))
		message, err := conn2.ClientReceive()
		Expect(err).NotTo(HaveOccurred())
		Expect(message.MethodName).To(Equal("all"))
		close(done)
	}, 2.0)

	It("should push to a single connection", func(done Done) {
		conn1.ClientInvoke("1", "ToConnection", "conn2", "psst")
		pushes, result := receiveUntilResult(conn1, "1")
		Expect(result.Success).To(BeTrue())
		Expect(pushes).To(BeEmpty())
		message, err := conn2.ClientReceive()
		Expect(err).NotTo(HaveOccurred())
		Expect(message.MethodName).To(Equal("direct"))
		Expect(string(message.Arguments[0])).To(Equal(`"psst"`))
		close(done)
	}, 2.0)

	It("should return an error when pushing to an unknown connection", func(done Done) {
		conn1.ClientInvoke("1", "ToConnection", "nobody", "psst")
		_, result := receiveUntilResult(conn1, "1")
		Expect(result.Success).To(BeFalse())
		Expect(result.Error.Kind).To(Equal(KindInvocationError))
		Expect(result.Error.Message).To(ContainSubstring(ErrNotFound.Error()))
		close(done)
	}, 2.0)

	It("should report connections which could not be reached and still deliver to the others", func(done Done) {
		conn2.FailWrite()
		err := server.HubClients().All().Send("all", "from server")
		var deliveryError *DeliveryError
		Expect(errors.As(err, &deliveryError)).To(BeTrue())
		Expect(deliveryError.Failures).To(HaveKey("conn2"))
		Expect(deliveryError.Failures).NotTo(HaveKey("conn1"))
		message, err := conn1.ClientReceive()
		Expect(err).NotTo(HaveOccurred())
		Expect(message.MethodName).To(Equal("all"))
		close(done)
	}, 2.0)

	It("should not offer Caller and Others outside of a hub", func() {
		Expect(server.HubClients().Caller()).To(BeNil())
		Expect(server.HubClients().Others()).To(BeNil())
	})
})
