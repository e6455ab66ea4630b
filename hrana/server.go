// Package hrana implements the Hrana SQL-over-WebSocket protocol server:
// subprotocol negotiation and connection accept (this file), the
// per-connection state machine (session.go), the stream table
// (streams.go), the compute-machine/execution-interface glue (prog.go),
// back-pressure (backpressure.go), and outbound response fan-in
// (responsequeue.go).
package hrana

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/libsql/libsql-extended/hrana/auth"
	"github.com/libsql/libsql-extended/hrana/exec"
)

// Server accepts WebSocket connections and serves the Hrana protocol on
// each (§2's "Server" component, ~20% of the core).
type Server struct {
	logger   *slog.Logger
	auth     auth.Validator
	executor exec.Executor

	maxStreamsPerConn   int
	maxInFlightRequests int
	handshakeTimeout    time.Duration
	acceptLimiter       *rate.Limiter

	upgrader websocket.Upgrader

	closing atomic.Bool
	wg      sync.WaitGroup
	closer  chan struct{}
}

// NewServer constructs a Server. An executor must be supplied via
// WithExecutor; every other option has a default.
func NewServer(options ...OptionFn) (*Server, error) {
	srv := &Server{
		logger:               slog.Default(),
		auth:                 auth.NoAuth(),
		maxStreamsPerConn:    16,
		maxInFlightRequests:  64,
		handshakeTimeout:     10 * time.Second,
		closer:               make(chan struct{}),
	}

	for _, option := range options {
		option(srv)
	}

	if srv.executor == nil {
		return nil, errors.New("hrana: NewServer requires WithExecutor")
	}

	srv.upgrader = websocket.Upgrader{
		Subprotocols:    []string{string(Version2), string(Version1)},
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return srv, nil
}

// ListenAndServe opens a TCP listener on address and serves Hrana
// connections over it until Close is called.
func (srv *Server) ListenAndServe(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return srv.Serve(listener)
}

// Serve accepts WebSocket upgrade requests on listener and spawns one
// session per connection. It blocks until Close is called or listener
// stops accepting.
func (srv *Server) Serve(listener net.Listener) error {
	defer srv.logger.Info("hrana server closed")

	httpSrv := &http.Server{Handler: srv}

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		<-srv.closer
		_ = httpSrv.Shutdown(context.Background())
	}()

	srv.logger.Info("hrana server listening", slog.String("addr", listener.Addr().String()))
	err := httpSrv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ServeHTTP upgrades the connection to WebSocket, negotiates the Hrana
// subprotocol version, and runs one session on it (§6's transport
// contract).
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if srv.closing.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	if srv.acceptLimiter != nil && !srv.acceptLimiter.Allow() {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	version, ok := Negotiate(websocket.Subprotocols(r))
	if !ok {
		http.Error(w, "no supported Hrana subprotocol offered", http.StatusBadRequest)
		return
	}

	conn, err := srv.upgrader.Upgrade(w, r, http.Header{"Sec-WebSocket-Protocol": []string{string(version)}})
	if err != nil {
		srv.logger.Debug("websocket upgrade failed", slog.String("err", err.Error()))
		return
	}

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		defer conn.Close()

		s := newSession(srv, conn, version)
		if err := s.serve(context.Background()); err != nil {
			srv.logger.Debug("connection closed", slog.String("err", err.Error()))
		}
	}()
}

// Close gracefully shuts the server down: stops accepting new
// connections and waits for in-flight connections to finish tearing
// down.
func (srv *Server) Close() error {
	if srv.closing.Swap(true) {
		return nil
	}
	close(srv.closer)
	srv.wg.Wait()
	return nil
}
