package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/philippseith/wsmanager"
)

// WithChiRouter is a wsmanager.MappableRouter factory for wsmanager.Server.MapHTTP
// which mounts handlers on a chi.Router as GET routes.
// The hub endpoint only accepts websocket upgrades, which are GET requests. Other methods get 405 from chi.
func WithChiRouter(r chi.Router) func() wsmanager.MappableRouter {
	return func() wsmanager.MappableRouter {
		return &chiRouter{r: r}
	}
}

type chiRouter struct {
	r chi.Router
}

func (c *chiRouter) HandleFunc(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	c.r.MethodFunc(http.MethodGet, path, handler)
}

func (c *chiRouter) Handle(path string, handler http.Handler) {
	c.r.Method(http.MethodGet, path, handler)
}
