package hrana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/libsql/libsql-extended/hrana/exec"
	"github.com/libsql/libsql-extended/hrana/herrors"
	"github.com/libsql/libsql-extended/hrana/proto"
)

// connState is the per-connection state machine (§4.7).
type connState int32

const (
	stateOpening connState = iota
	stateAwaitHello
	stateRunning
	stateClosing
	stateClosed
)

// session is one WebSocket connection's worth of state: the receiver and
// sender tasks, the stream table, the shared compute environment, the
// outstanding-request registry, and the back-pressure credit window (§3,
// §5).
type session struct {
	srv     *Server
	conn    *websocket.Conn
	version Version
	logger  *slog.Logger

	outbound *responseQueue
	creditCh credit
	streams  *streamTable
	engine   *engine

	mu          sync.Mutex
	state       connState
	outstanding map[int32]struct{}
}

func newSession(srv *Server, conn *websocket.Conn, version Version) *session {
	return &session{
		srv:         srv,
		conn:        conn,
		version:     version,
		logger:      srv.logger,
		outbound:    newResponseQueue(srv.maxInFlightRequests),
		creditCh:    newCredit(srv.maxInFlightRequests),
		streams:     newStreamTable(srv.executor, srv.maxStreamsPerConn),
		engine:      newEngine(srv.executor, version),
		outstanding: make(map[int32]struct{}),
		state:       stateOpening,
	}
}

// serve drives the connection to completion, running the sender and
// receiver tasks concurrently and tearing everything down once either
// exits (§4.7).
func (s *session) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.sendLoop(ctx)
	})
	g.Go(func() error {
		defer s.outbound.closeWith("")
		return s.receiveLoop(ctx)
	})

	err := g.Wait()

	s.mu.Lock()
	s.state = stateClosing
	s.mu.Unlock()

	s.streams.shutdownAll()

	s.mu.Lock()
	s.state = stateClosed
	s.mu.Unlock()

	if errors.Is(err, context.Canceled) || errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (s *session) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-s.outbound.ch:
			if !ok {
				return nil
			}
			if msg.closeWS {
				code := websocket.CloseNormalClosure
				if msg.reason != "" {
					code = websocket.ClosePolicyViolation
				}
				deadline := time.Now().Add(2 * time.Second)
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, msg.reason), deadline)
				return nil
			}

			if err := s.conn.WriteJSON(msg.payload); err != nil {
				return fmt.Errorf("hrana: write: %w", err)
			}
		}
	}
}

func (s *session) receiveLoop(ctx context.Context) error {
	if err := s.awaitHello(ctx); err != nil {
		return err
	}

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil
		}

		if mt != websocket.TextMessage {
			err = herrors.Violation("binary frames are not supported")
		} else {
			err = s.dispatchFrame(ctx, data)
		}
		if err != nil {
			if herrors.IsViolation(err) {
				s.logger.Debug("closing connection after protocol violation", slog.String("reason", err.Error()))
				s.outbound.closeWith(err.Error())
			}
			return err
		}
	}
}

func (s *session) awaitHello(ctx context.Context) error {
	s.mu.Lock()
	s.state = stateAwaitHello
	s.mu.Unlock()

	if s.srv.handshakeTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.srv.handshakeTimeout))
	}

	mt, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil
	}

	msg, err := proto.DecodeClientMessage(data)
	if err != nil || msg.Kind != proto.ClientHello || mt != websocket.TextMessage {
		violation := herrors.Violation("first client message must be hello")
		s.outbound.closeWith(violation.Error())
		return violation
	}

	_ = s.conn.SetReadDeadline(time.Time{})

	if authErr := s.srv.auth(ctx, msg.Hello.Jwt); authErr != nil {
		s.outbound.send(proto.NewHelloErrorMsg(authErr.Error()))
		s.outbound.closeWith("")
		return fmt.Errorf("hrana: hello rejected: %w", authErr)
	}

	s.mu.Lock()
	s.state = stateRunning
	s.mu.Unlock()

	s.outbound.send(proto.NewHelloOkMsg())
	return nil
}

// dispatchFrame decodes and handles one post-hello client frame. A
// returned error is always a protocol violation; operational failures are
// reported via response_error on the outbound channel instead of being
// returned.
func (s *session) dispatchFrame(ctx context.Context, data []byte) error {
	msg, err := proto.DecodeClientMessage(data)
	if err != nil {
		return herrors.Violation(err.Error())
	}

	if msg.Kind != proto.ClientRequest {
		return herrors.Violation("hello may only be sent as the first message")
	}

	req := msg.Request
	if !s.creditCh.acquire(ctx.Done()) {
		return herrors.Violation("connection closing")
	}

	s.mu.Lock()
	if _, dup := s.outstanding[req.RequestID]; dup {
		s.mu.Unlock()
		s.creditCh.release()
		return herrors.Violation(fmt.Sprintf("duplicate in-flight request_id %d", req.RequestID))
	}
	s.outstanding[req.RequestID] = struct{}{}
	s.mu.Unlock()

	if err := s.dispatchRequest(ctx, req); err != nil {
		return err
	}
	return nil
}

// dispatchRequest routes req to the stream lane it targets, to a freshly
// spawned goroutine for open_stream/close_stream, or runs a compute
// request inline on the receive loop (§4.5). It
// returns an error only for protocol violations discovered synchronously
// (unknown stream_id); everything else resolves asynchronously into a
// response_ok/response_error on the outbound channel.
func (s *session) dispatchRequest(ctx context.Context, req proto.RequestMsg) error {
	finish := func(resp proto.Response) {
		s.finishRequest(req.RequestID, proto.NewResponseOkMsg(req.RequestID, resp))
	}
	finishErr := func(err error) {
		s.finishRequest(req.RequestID, proto.NewResponseErrorMsg(req.RequestID, err.Error()))
	}

	switch req.Request.Kind {
	case proto.ReqOpenStream:
		id := req.Request.StreamID
		go func() {
			if err := s.streams.open(ctx, id); err != nil {
				if herrors.IsViolation(err) {
					s.outbound.closeWith(err.Error())
					return
				}
				finishErr(err)
				return
			}
			finish(proto.Response{Kind: proto.ReqOpenStream})
		}()
		return nil

	case proto.ReqCloseStream:
		id := req.Request.StreamID
		go func() {
			if err := s.streams.close(id); err != nil {
				if herrors.IsViolation(err) {
					s.outbound.closeWith(err.Error())
					return
				}
				finishErr(err)
				return
			}
			finish(proto.Response{Kind: proto.ReqCloseStream})
		}()
		return nil

	case proto.ReqCompute:
		// Run inline on the receive loop so compute requests execute in
		// arrival order relative to each other.
		results, err := s.engine.runCompute(req.Request.Ops)
		if err != nil {
			finishErr(err)
			return nil
		}
		finish(proto.Response{Kind: proto.ReqCompute, Results: results})
		return nil

	case proto.ReqExecute:
		st, ok := s.streams.get(req.Request.StreamID)
		if !ok {
			return herrors.Violation(fmt.Sprintf("execute references unallocated stream %d", req.Request.StreamID))
		}
		if (req.Request.Condition != nil || len(req.Request.OnOk) > 0 || len(req.Request.OnError) > 0) && !s.version.allowsExecuteHooks() {
			return herrors.Violation("condition/on_ok/on_error on a bare execute request require hrana1")
		}
		st.enqueue(func() {
			session := s.streamSession(st)
			if session == nil {
				finishErr(exec.ExecutionErrorf("hrana: stream %d is not open", req.Request.StreamID))
				return
			}
			result, skipped, err := s.engine.runExecute(ctx, session, req.Request.Stmt, req.Request.Condition, req.Request.OnOk, req.Request.OnError)
			if err != nil {
				finishErr(err)
				return
			}
			if skipped {
				finish(proto.Response{Kind: proto.ReqExecute})
				return
			}
			finish(proto.Response{Kind: proto.ReqExecute, Result: result})
		})
		return nil

	case proto.ReqProg:
		st, ok := s.streams.get(req.Request.StreamID)
		if !ok {
			return herrors.Violation(fmt.Sprintf("prog references unallocated stream %d", req.Request.StreamID))
		}
		st.enqueue(func() {
			session := s.streamSession(st)
			if session == nil {
				finishErr(exec.ExecutionErrorf("hrana: stream %d is not open", req.Request.StreamID))
				return
			}
			result, err := s.engine.runProg(ctx, session, req.Request.Prog)
			if err != nil {
				finishErr(err)
				return
			}
			finish(proto.Response{Kind: proto.ReqProg, ProgResult: result})
		})
		return nil

	default:
		return herrors.Violation(fmt.Sprintf("unknown request type %q", req.Request.Kind))
	}
}

func (s *session) streamSession(st *stream) exec.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.state != streamOpen {
		return nil
	}
	return st.session
}

func (s *session) finishRequest(requestID int32, payload any) {
	s.mu.Lock()
	delete(s.outstanding, requestID)
	s.mu.Unlock()
	s.creditCh.release()
	s.outbound.send(payload)
}
