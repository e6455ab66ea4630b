package hrana

import (
	"context"
	"fmt"
	"sync"

	"github.com/libsql/libsql-extended/hrana/exec"
	"github.com/libsql/libsql-extended/hrana/herrors"
)

// streamState is a stream's liveness flag (§3, §4.4).
type streamState int32

const (
	streamOpening streamState = iota
	streamOpen
	streamFailed
	streamClosed
)

// stream is one client-chosen execution lane, owning at most one backend
// session for its lifetime (§3, §4.4, §9's "per-stream ownership").
// Work items are delivered on a buffered channel and drained by a single
// goroutine, which gives FIFO processing for free: enqueue order is
// processing order, and closing stopped (after draining for a graceful
// close_stream, or immediately for connection teardown) is how the lane
// terminates.
type stream struct {
	id       int32
	mu       sync.Mutex
	state    streamState
	session  exec.Session
	work     chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newStream(id int32) *stream {
	s := &stream{
		id:      id,
		state:   streamOpening,
		work:    make(chan func(), 32),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *stream) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.work:
			fn()
		case <-s.stopped:
			return
		}
	}
}

// enqueue schedules fn to run on the stream's lane, blocking until there is
// room so that a backed-up lane applies back-pressure to its caller (the
// connection's receive loop, per §5) instead of ever running two work items
// for the same stream concurrently. It is a no-op once the lane has been
// stopped.
func (s *stream) enqueue(fn func()) {
	select {
	case s.work <- fn:
	case <-s.stopped:
	}
}

// shutdown cancels the lane immediately (§5's "closing a connection
// cancels all lanes immediately"), without waiting for queued work. Safe to
// call more than once.
func (s *stream) shutdown() {
	s.mu.Lock()
	if s.state != streamClosed {
		s.state = streamClosed
	}
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stopped) })
}

// streamTable is the per-connection map of allocated stream ids (§3).
type streamTable struct {
	mu       sync.Mutex
	streams  map[int32]*stream
	executor exec.Executor
	maxOpen  int
}

func newStreamTable(executor exec.Executor, maxOpen int) *streamTable {
	return &streamTable{streams: make(map[int32]*stream), executor: executor, maxOpen: maxOpen}
}

// open allocates id and acquires a backend session for it (§4.4). A
// duplicate id is a protocol violation. Exceeding the per-connection quota
// still allocates the id, but leaves it in the failed state, so the
// caller gets an operational error instead.
func (t *streamTable) open(ctx context.Context, id int32) error {
	t.mu.Lock()
	if _, exists := t.streams[id]; exists {
		t.mu.Unlock()
		return herrors.Violation(fmt.Sprintf("stream %d is already allocated", id))
	}

	full := t.countOpenLocked() >= t.maxOpen

	s := newStream(id)
	t.streams[id] = s

	if full {
		s.state = streamFailed
		t.mu.Unlock()
		return exec.ExecutionErrorf("hrana: stream quota exceeded (max %d open streams)", t.maxOpen)
	}
	t.mu.Unlock()

	session, err := t.executor.NewSession(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = streamFailed
		s.mu.Unlock()
		return exec.ExecutionErrorf("hrana: open_stream %d: %w", id, err)
	}

	s.mu.Lock()
	s.session = session
	s.state = streamOpen
	s.mu.Unlock()
	return nil
}

func (t *streamTable) countOpenLocked() int {
	n := 0
	for _, s := range t.streams {
		s.mu.Lock()
		if s.state == streamOpen || s.state == streamOpening {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// get returns the stream for id, or (nil, false) if it was never
// allocated on this connection — a protocol violation for the caller to
// raise (§4.4).
func (t *streamTable) get(id int32) (*stream, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.streams[id]
	return s, ok
}

// close drains the stream's lane, releases its backend session, and frees
// the id for reuse (§4.4). A failed stream has no session and closes
// immediately.
func (t *streamTable) close(id int32) error {
	t.mu.Lock()
	s, ok := t.streams[id]
	if !ok {
		t.mu.Unlock()
		return herrors.Violation(fmt.Sprintf("close_stream references unallocated stream %d", id))
	}
	delete(t.streams, id)
	t.mu.Unlock()

	drained := make(chan struct{})
	s.enqueue(func() {
		s.mu.Lock()
		session := s.session
		s.state = streamClosed
		s.mu.Unlock()

		if session != nil {
			session.Close()
		}
		close(drained)
	})

	select {
	case <-drained:
	case <-s.stopped:
	}
	s.shutdown()
	return nil
}

// shutdownAll cancels every stream's lane immediately, for connection
// teardown (§4.7's Closing state).
func (t *streamTable) shutdownAll() {
	t.mu.Lock()
	streams := make([]*stream, 0, len(t.streams))
	for _, s := range t.streams {
		streams = append(streams, s)
	}
	t.streams = make(map[int32]*stream)
	t.mu.Unlock()

	for _, s := range streams {
		s.mu.Lock()
		session := s.session
		s.mu.Unlock()
		s.shutdown()
		if session != nil {
			session.Close()
		}
	}
}
