package hrana

import (
	"sync"
	"time"
)

// outboundMsg is one server→client frame queued for the sender task.
// Responses from different streams, and from the dispatcher, are fed
// into the same channel as soon as each completes — the implementation
// never buffers to restore request order (§4.5, §9).
type outboundMsg struct {
	payload any
	closeWS bool
	reason  string
}

// responseQueue is the single outbound channel a connection's stream
// lanes and compute dispatcher funnel their completed responses into.
// The sender task is the only reader.
type responseQueue struct {
	ch     chan outboundMsg
	closed chan struct{}
	once   sync.Once
}

func newResponseQueue(capacity int) *responseQueue {
	return &responseQueue{ch: make(chan outboundMsg, capacity), closed: make(chan struct{})}
}

// send enqueues payload for transmission, blocking while the outbound
// buffer is full so that a backed-up sender applies back-pressure all the
// way to the connection's receive loop (§5) rather than silently dropping
// a response — §8 invariant 1 requires exactly one response per request,
// unconditionally. It becomes a no-op once the connection has started
// closing, since nothing will read the channel again by then.
func (q *responseQueue) send(payload any) {
	select {
	case q.ch <- outboundMsg{payload: payload}:
	case <-q.closed:
	}
}

// closeWith requests that the sender flush pending messages and then
// close the WebSocket with reason (§4.7's Closing state). Safe to call
// more than once; only the first call's reason takes effect.
func (q *responseQueue) closeWith(reason string) {
	q.once.Do(func() {
		select {
		case q.ch <- outboundMsg{closeWS: true, reason: reason}:
		case <-time.After(2 * time.Second):
			// sender already gone (e.g. a dead write); nothing left to notify.
		}
		close(q.closed)
	})
}
