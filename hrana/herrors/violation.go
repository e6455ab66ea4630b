package herrors

import (
	"errors"
	"fmt"
)

// protocolViolation marks an error as fatal to the connection (§8): the
// client sent something the wire format itself forbids (malformed JSON, an
// unknown message type, a duplicate request_id, a hello sent twice). The
// server closes the socket rather than responding with response_error.
type protocolViolation struct {
	reason string
}

func (p *protocolViolation) Error() string { return p.reason }

// Violation builds a protocol violation error carrying reason.
func Violation(reason string) error {
	return &protocolViolation{reason: reason}
}

// Violationf builds a protocol violation error with a formatted reason.
func Violationf(format string, args ...any) error {
	return &protocolViolation{reason: fmt.Sprintf(format, args...)}
}

// IsViolation reports whether err (or anything it wraps) is a protocol
// violation, as opposed to an operational error that should be reported to
// the client via response_error instead of closing the connection.
func IsViolation(err error) bool {
	var p *protocolViolation
	return errors.As(err, &p)
}
