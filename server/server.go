// Package server bootstraps the gateway's HTTP (JSON-RPC), WebSocket,
// metrics, and health endpoints, and runs them side by side under one
// errgroup with ctx-driven graceful shutdown — the same shape as the
// teacher's server/json_rpc.go's StartJSONRPC, generalised from one
// HTTP server plus a separately-started WS server into three
// errgroup.Group members that all shut down off the same context.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"cosmossdk.io/log"

	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/metrics"
	"github.com/hashlink-network/eth-rpc-relay/rpc/dispatcher"
	"github.com/hashlink-network/eth-rpc-relay/rpc/websockets"
)

// Deps bundles the collaborators Start wires into the HTTP/WS mux.
type Deps struct {
	Cfg        config.Snapshot
	Dispatcher *dispatcher.Dispatcher
	WS         *websockets.Server
	Metrics    *metrics.Registry
	Logger     log.Logger

	// Ready is polled by the readiness endpoint; nil means always ready.
	Ready func() bool
}

// Start runs the JSON-RPC HTTP server, the WebSocket server, and the
// metrics server until ctx is cancelled, returning once every server
// has shut down (or the first one to fail has returned its error).
func Start(ctx context.Context, d Deps) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return runHTTPServer(ctx, d) })
	g.Go(func() error { return runWSServer(ctx, d) })
	if d.Metrics != nil {
		g.Go(func() error {
			return d.Metrics.StartServer(ctx, d.Logger, net.JoinHostPort(d.Cfg.ServerHost, portString(d.Cfg.MetricsPort)))
		})
	}

	return g.Wait()
}

func runHTTPServer(ctx context.Context, d Deps) error {
	logger := d.Logger.With(log.ModuleKey, "http")

	r := mux.NewRouter()
	r.HandleFunc("/", jsonRPCHandler(d.Dispatcher)).Methods("POST")
	r.HandleFunc("/health/liveness", livenessHandler).Methods("GET")
	r.HandleFunc("/health/readiness", readinessHandler(d.Ready)).Methods("GET")

	handlerWithCORS := cors.Default()
	if d.Cfg.EnableUnsafeCORS {
		handlerWithCORS = cors.AllowAll()
	}

	timeout := d.Cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	addr := net.JoinHostPort(d.Cfg.ServerHost, portString(d.Cfg.ServerPort))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handlerWithCORS.Handler(r),
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
	}

	return runWithGracefulShutdown(ctx, logger, "JSON-RPC", addr, httpSrv)
}

func runWSServer(ctx context.Context, d Deps) error {
	logger := d.Logger.With(log.ModuleKey, "ws")
	addr := net.JoinHostPort(d.Cfg.ServerHost, portString(d.Cfg.WSPort))
	wsSrv := &http.Server{
		Addr:    addr,
		Handler: d.WS,
	}
	return runWithGracefulShutdown(ctx, logger, "WebSocket", addr, wsSrv)
}

// runWithGracefulShutdown listens on addr and serves httpSrv until ctx
// is cancelled or the listener fails, shutting down gracefully on
// cancellation — the select{ctx.Done(); errCh} pattern the teacher uses
// for both its JSON-RPC HTTP server and its metrics server.
func runWithGracefulShutdown(ctx context.Context, logger log.Logger, name, addr string, httpSrv *http.Server) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting "+name+" server", "address", addr)
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		logger.Info("stopping "+name+" server", "address", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown "+name+" server", "err", err)
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start "+name+" server", "err", err)
			return err
		}
		return nil
	}
}

func jsonRPCHandler(d *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		responses := d.Dispatch(r.Context(), body, dispatcher.Origin{IP: clientIP(r)})

		w.Header().Set("Content-Type", "application/json")
		if !isBatchRequest(body) && len(responses) == 1 {
			_ = json.NewEncoder(w).Encode(responses[0])
			return
		}
		_ = json.NewEncoder(w).Encode(responses)
	}
}

func livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readinessHandler(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// isBatchRequest reports whether raw encodes a JSON array, so the HTTP
// handler can echo back an array even for a single-element batch per
// the JSON-RPC 2.0 batch contract.
func isBatchRequest(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func portString(p int) string {
	return strconv.Itoa(p)
}
