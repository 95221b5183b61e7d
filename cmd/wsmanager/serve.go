package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	gorillaws "github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/philippseith/wsmanager"
	"github.com/philippseith/wsmanager/chatsample"
	"github.com/philippseith/wsmanager/chatsample/middleware"
	"github.com/philippseith/wsmanager/router"
)

var (
	serveAddr       string
	servePath       string
	serveRouter     string
	serveTransport  string
	serveTCPAddr    string
	detailedErrors  bool
	maxMessageSize  uint
	drainTimeout    time.Duration
	allowedOrigins  []string
	skipOriginCheck bool
)

// serveCmd serves the chat hub
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat hub",
	Long:  "Serve the chat sample hub over websockets (and optionally raw TCP). Metrics are served on /metrics.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8086", "HTTP listen address")
	serveCmd.Flags().StringVar(&servePath, "path", "/hub", "path of the hub endpoint")
	serveCmd.Flags().StringVar(&serveRouter, "router", "chi", "http router: chi, gorilla, httprouter or std")
	serveCmd.Flags().StringVar(&serveTransport, "transport", "coder", "websocket implementation: coder or gorilla")
	serveCmd.Flags().StringVar(&serveTCPAddr, "tcp-addr", "", "also serve length prefixed frames over raw TCP on this address")
	serveCmd.Flags().BoolVar(&detailedErrors, "detailed-errors", false, "send stack traces of panics to clients")
	serveCmd.Flags().UintVar(&maxMessageSize, "max-message-size", 1<<15, "maximum size of an incoming frame in bytes")
	serveCmd.Flags().DurationVar(&drainTimeout, "drain-timeout", 5*time.Second, "time running invocations get to return after their connection closed")
	serveCmd.Flags().StringSliceVar(&allowedOrigins, "allow-origin", nil, "host patterns of allowed origins")
	serveCmd.Flags().BoolVar(&skipOriginCheck, "insecure-skip-verify", false, "disable origin verification")
}

func serve(ctx context.Context) error {
	logger := newLogger()
	codec, err := codecByName(protocol)
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	server, err := wsmanager.NewServer(ctx,
		wsmanager.HubFactory(chatsample.NewChat),
		wsmanager.WithCodec(codec),
		wsmanager.Logger(logger, debug),
		wsmanager.EnableDetailedErrors(detailedErrors),
		wsmanager.MaximumReceiveMessageSize(maxMessageSize),
		wsmanager.InvocationDrainTimeout(drainTimeout),
		wsmanager.AllowOriginPatterns(allowedOrigins),
		wsmanager.InsecureSkipVerify(skipOriginCheck),
		wsmanager.WithMetrics(registry))
	if err != nil {
		return err
	}
	handler, routerFactory, err := newRouter(serveRouter, log.With(logger, "class", "http"))
	if err != nil {
		return err
	}
	switch serveTransport {
	case "coder":
		server.MapHTTP(routerFactory, servePath)
	case "gorilla":
		upgrader := gorillaws.Upgrader{}
		if skipOriginCheck {
			upgrader.CheckOrigin = func(*http.Request) bool { return true }
		}
		routerFactory().Handle(servePath, wsmanager.GorillaHandler(server, upgrader))
	default:
		return fmt.Errorf("unknown transport %q", serveTransport)
	}
	routerFactory().Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{Addr: serveAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 2)
	go func() {
		_ = logger.Log("event", "listen", "addr", serveAddr, "path", servePath, "protocol", codec.Name())
		errCh <- httpServer.ListenAndServe()
	}()
	var listener net.Listener
	if serveTCPAddr != "" {
		if listener, err = net.Listen("tcp", serveTCPAddr); err != nil {
			return err
		}
		go func() {
			_ = logger.Log("event", "listen", "tcp-addr", listener.Addr())
			errCh <- serveTCP(server, listener, logger)
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = logger.Log("event", "serve", "error", err)
		}
	}
	server.Cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout+time.Second)
	defer cancel()
	errs := []error{httpServer.Shutdown(shutdownCtx)}
	if listener != nil {
		errs = append(errs, listener.Close())
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// newRouter returns the root handler and a MappableRouter factory for it
func newRouter(name string, logger log.Logger) (http.Handler, func() wsmanager.MappableRouter, error) {
	logRequests := middleware.LogRequests(logger)
	switch name {
	case "chi":
		r := chi.NewRouter()
		r.Use(logRequests)
		return r, router.WithChiRouter(r), nil
	case "gorilla":
		r := mux.NewRouter()
		r.Use(logRequests)
		return r, router.WithGorillaRouter(r), nil
	case "httprouter":
		r := httprouter.New()
		return logRequests(r), router.WithHttpRouter(r), nil
	case "std":
		r := http.NewServeMux()
		return logRequests(r), wsmanager.WithHTTPServeMux(r), nil
	default:
		return nil, nil, fmt.Errorf("unknown router %q", name)
	}
}

func serveTCP(server wsmanager.Server, listener net.Listener, logger log.Logger) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return http.ErrServerClosed
			}
			return err
		}
		go func() {
			if err := server.Serve(wsmanager.NewNetConnection(server.Context(), conn)); err != nil {
				_ = logger.Log("event", "serve tcp", "remote", conn.RemoteAddr(), "error", err)
			}
		}()
	}
}
