package wsmanager

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
)

// DialWebSocket connects to the websocket endpoint of a Server at address, e.g. "ws://localhost:8086/hub".
// Failed dials are retried with exponential backoff until maxElapsedTime has passed or ctx ends.
// Client errors (4xx) are not retried. ctx is only used for dialing, the returned Connection lives until it is closed.
func DialWebSocket(ctx context.Context, address string, codec Codec, maxElapsedTime time.Duration) (Connection, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsedTime
	var wsConn *websocket.Conn
	err := backoff.Retry(func() error {
		conn, resp, err := websocket.Dial(ctx, address, &websocket.DialOptions{
			Subprotocols: []string{codec.Name()},
		})
		if err != nil {
			if resp != nil && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		wsConn = conn
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}
	if wsConn.Subprotocol() != codec.Name() {
		_ = wsConn.Close(websocket.StatusProtocolError, "unsupported subprotocol")
		return nil, errors.New("server does not support codec " + codec.Name())
	}
	wsConn.SetReadLimit(1 << 24)
	return newWebSocketConnection(context.WithoutCancel(ctx), "", wsConn, codec.TransferFormat()), nil
}
