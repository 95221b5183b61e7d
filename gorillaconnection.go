package wsmanager

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const gorillaWriteWait = 10 * time.Second

type gorillaConnection struct {
	*ConnectionBase
	conn        *websocket.Conn
	messageType int
	wmx         sync.Mutex
}

// NewGorillaConnection wraps a websocket connection upgraded by github.com/gorilla/websocket into a Connection.
// format must match the TransferFormat of the Codec used by the Server.
func NewGorillaConnection(ctx context.Context, conn *websocket.Conn, format TransferFormat) Connection {
	messageType := websocket.TextMessage
	if format == BinaryTransferFormat {
		messageType = websocket.BinaryMessage
	}
	g := &gorillaConnection{
		ConnectionBase: NewConnectionBase(ctx, ""),
		conn:           conn,
		messageType:    messageType,
	}
	// ReadMessage does not know contexts
	go func() {
		<-g.Context().Done()
		_ = g.Close()
	}()
	return g
}

func (g *gorillaConnection) Receive() ([]byte, error) {
	_, data, err := g.conn.ReadMessage()
	return data, err
}

func (g *gorillaConnection) Send(data []byte) error {
	if g.State() != Open {
		return ErrConnectionClosed
	}
	g.wmx.Lock()
	defer g.wmx.Unlock()
	_ = g.conn.SetWriteDeadline(time.Now().Add(gorillaWriteWait))
	return g.conn.WriteMessage(g.messageType, data)
}

func (g *gorillaConnection) Close() error {
	return g.CloseWith(func() error {
		_ = g.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return g.conn.Close()
	})
}

// GorillaHandler returns a http.Handler which upgrades requests with upgrader and serves them with server.
// The subprotocol of the server's codec is added to the upgrader.
// Frames larger than twice the MaximumReceiveMessageSize of the server end the connection.
func GorillaHandler(server Server, upgrader websocket.Upgrader) http.Handler {
	upgrader.Subprotocols = append(upgrader.Subprotocols, server.Codec().Name())
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			// Upgrade has already replied with an error
			return
		}
		conn.SetReadLimit(2 * int64(server.MaximumReceiveMessageSize()))
		_ = server.Serve(NewGorillaConnection(server.Context(), conn, server.Codec().TransferFormat()))
	})
}
