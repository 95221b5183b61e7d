package router

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/philippseith/wsmanager"
)

// WithHttpRouter is a wsmanager.MappableRouter factory for wsmanager.Server.MapHTTP
// which converts a httprouter.Router to a wsmanager.MappableRouter.
// Websocket upgrades are GET requests, so handlers are registered for GET only.
func WithHttpRouter(r *httprouter.Router) func() wsmanager.MappableRouter {
	return func() wsmanager.MappableRouter {
		return &julienRouter{r: r}
	}
}

type julienRouter struct {
	r *httprouter.Router
}

func (j *julienRouter) HandleFunc(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	j.r.HandlerFunc(http.MethodGet, path, handler)
}

func (j *julienRouter) Handle(pattern string, handler http.Handler) {
	j.r.Handler(http.MethodGet, pattern, handler)
}
