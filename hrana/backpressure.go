package hrana

// credit is a bounded semaphore over the number of outstanding requests a
// connection will admit before its receiver stops reading frames (§5,
// §9): a plain buffered channel, not golang.org/x/time/rate — this knob
// bounds concurrent in-flight work, not an arrival rate, and the receiver
// blocking on a full channel is exactly the back-pressure §5 calls for.
type credit chan struct{}

func newCredit(window int) credit {
	return make(credit, window)
}

// acquire blocks until a slot is free, or cancel closes.
func (c credit) acquire(cancel <-chan struct{}) bool {
	select {
	case c <- struct{}{}:
		return true
	case <-cancel:
		return false
	}
}

// release returns a previously acquired slot. finishRequest calls it when
// the request's work has completed, right after removing the request_id
// from the outstanding set and just before its response is handed to the
// outbound channel.
func (c credit) release() {
	select {
	case <-c:
	default:
	}
}
