package wsmanager

import (
	"context"

	"github.com/coder/websocket"
)

type webSocketConnection struct {
	*ConnectionBase
	conn        *websocket.Conn
	messageType websocket.MessageType
}

func newWebSocketConnection(ctx context.Context, connectionID string, conn *websocket.Conn, format TransferFormat) *webSocketConnection {
	messageType := websocket.MessageText
	if format == BinaryTransferFormat {
		messageType = websocket.MessageBinary
	}
	return &webSocketConnection{
		ConnectionBase: NewConnectionBase(ctx, connectionID),
		conn:           conn,
		messageType:    messageType,
	}
}

func (w *webSocketConnection) Receive() ([]byte, error) {
	_, data, err := w.conn.Read(w.Context())
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (w *webSocketConnection) Send(data []byte) error {
	if w.State() != Open {
		return ErrConnectionClosed
	}
	return w.conn.Write(w.Context(), w.messageType, data)
}

func (w *webSocketConnection) Close() error {
	return w.CloseWith(func() error {
		return w.conn.Close(websocket.StatusNormalClosure, "")
	})
}
