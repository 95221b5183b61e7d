package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/philippseith/wsmanager"
)

// WithGorillaRouter is a wsmanager.MappableRouter factory for wsmanager.Server.MapHTTP
// which mounts handlers on a mux.Router as GET routes, as websocket upgrades are GET requests.
// Requests with other methods on a mounted path get 405 from mux.
func WithGorillaRouter(r *mux.Router) func() wsmanager.MappableRouter {
	return func() wsmanager.MappableRouter {
		return &gorillaMappableRouter{r: r}
	}
}

type gorillaMappableRouter struct {
	r *mux.Router
}

func (g *gorillaMappableRouter) Handle(path string, handler http.Handler) {
	g.r.Handle(path, handler).Methods(http.MethodGet)
}

func (g *gorillaMappableRouter) HandleFunc(path string, handleFunc func(w http.ResponseWriter, r *http.Request)) {
	g.r.HandleFunc(path, handleFunc).Methods(http.MethodGet)
}
