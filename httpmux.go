package wsmanager

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/teivah/onecontext"
)

// MappableRouter encapsulates the methods used by server.MapHTTP to configure the handlers required by the server.
type MappableRouter interface {
	HandleFunc(string, func(w http.ResponseWriter, r *http.Request))
	Handle(string, http.Handler)
}

// WithHTTPServeMux is a MappableRouter factory for MapHTTP which converts a http.ServeMux to a MappableRouter.
// For factories for other routers, see github.com/philippseith/wsmanager/router
func WithHTTPServeMux(serveMux *http.ServeMux) func() MappableRouter {
	return func() MappableRouter {
		return serveMux
	}
}

// MapHTTP maps the websocket endpoint of the server to path
func (s *server) MapHTTP(routerFactory func() MappableRouter, path string) {
	routerFactory().Handle(path, newHTTPMux(s))
}

type httpMux struct {
	server *server
}

func newHTTPMux(s *server) *httpMux {
	return &httpMux{server: s}
}

func (h *httpMux) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet || !isWebSocketUpgrade(request) {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	h.handleWebsocket(writer, request)
}

func isWebSocketUpgrade(request *http.Request) bool {
	for _, connHead := range strings.Split(request.Header.Get("Connection"), ",") {
		if strings.ToLower(strings.TrimSpace(connHead)) == "upgrade" {
			return strings.ToLower(request.Header.Get("Upgrade")) == "websocket"
		}
	}
	return false
}

func (h *httpMux) handleWebsocket(writer http.ResponseWriter, request *http.Request) {
	accOptions := &websocket.AcceptOptions{
		Subprotocols:       []string{h.server.codec.Name()},
		CompressionMode:    websocket.CompressionContextTakeover,
		InsecureSkipVerify: h.server.insecureSkipVerify,
		OriginPatterns:     h.server.originPatterns,
	}
	websocketConn, err := websocket.Accept(writer, request, accOptions)
	if err != nil {
		_ = h.server.dbg.Log(evt, "handleWebsocket", msg, "error accepting websockets", "error", err)
		// don't need to write an error header here as websocket.Accept has already used http.Error
		return
	}
	// frames up to twice the limit reach the loop, which answers oversized ones with a failure result
	websocketConn.SetReadLimit(2 * int64(h.server.MaximumReceiveMessageSize()))
	ctx, cancel := onecontext.Merge(h.server.ctx, request.Context())
	defer cancel()
	conn := newWebSocketConnection(ctx, h.server.newConnectionID(), websocketConn, h.server.codec.TransferFormat())
	if err = h.server.Serve(conn); err != nil {
		_ = h.server.info.Log(evt, "handleWebsocket", "connection", conn.ConnectionID(), "error", err)
	}
}
