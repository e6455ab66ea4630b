package hrana

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/libsql/libsql-extended/hrana/auth"
	"github.com/libsql/libsql-extended/hrana/exec"
)

// OptionFn configures a Server at construction time.
type OptionFn func(*Server)

// WithLogger sets the structured logger used for connection and server
// lifecycle events. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) OptionFn {
	return func(srv *Server) {
		srv.logger = logger
	}
}

// WithAuth sets the credential validator consulted on every hello
// message (§5). Defaults to auth.NoAuth().
func WithAuth(validator auth.Validator) OptionFn {
	return func(srv *Server) {
		srv.auth = validator
	}
}

// WithExecutor sets the backend executor new streams acquire sessions
// from (§4.3). Required; NewServer returns an error if it is never set.
func WithExecutor(executor exec.Executor) OptionFn {
	return func(srv *Server) {
		srv.executor = executor
	}
}

// WithMaxStreamsPerConn caps the number of simultaneously open streams on
// one connection (§4.4's quota). Defaults to 16.
func WithMaxStreamsPerConn(n int) OptionFn {
	return func(srv *Server) {
		srv.maxStreamsPerConn = n
	}
}

// WithMaxInFlightRequests sets the size of the per-connection in-flight
// request credit window (§5, §9). Defaults to 64.
func WithMaxInFlightRequests(n int) OptionFn {
	return func(srv *Server) {
		srv.maxInFlightRequests = n
	}
}

// WithConnectRateLimit caps the rate of new accepted WebSocket
// connections across the whole server (§2's "global limits"), using
// golang.org/x/time/rate's token bucket. This is deliberately a distinct
// knob from the per-connection in-flight credit window, which is a plain
// channel (see backpressure.go).
func WithConnectRateLimit(perSecond float64, burst int) OptionFn {
	return func(srv *Server) {
		srv.acceptLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHandshakeTimeout bounds how long the server waits for the client's
// hello message before closing the connection. Defaults to 10s.
func WithHandshakeTimeout(d time.Duration) OptionFn {
	return func(srv *Server) {
		srv.handshakeTimeout = d
	}
}
