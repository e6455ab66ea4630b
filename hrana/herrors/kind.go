// Package herrors provides the two error taxonomies used throughout the
// Hrana server (§8): operational errors, which are decorated with a Kind and
// reported back to the client as response_error while the socket stays
// open, and protocol violations, which always close the connection.
package herrors

import "errors"

// Kind classifies an operational error by which layer raised it, so that
// handlers can decide how to log and report it without re-deriving that
// from the error's message.
type Kind string

const (
	KindHello     Kind = "HELLO"
	KindStream    Kind = "STREAM"
	KindExecution Kind = "EXECUTION"
	KindCompute   Kind = "COMPUTE"
)

// WithKind decorates err with kind. The wrapped error's message is
// unchanged; Error() delegates to cause.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}

	return &withKind{cause: err, kind: kind}
}

// GetKind returns the Kind attached to err, walking the Unwrap chain. It
// returns the empty Kind if none of err's wrapped causes carry one.
func GetKind(err error) Kind {
	var w *withKind
	if errors.As(err, &w) {
		return w.kind
	}
	return ""
}

type withKind struct {
	cause error
	kind  Kind
}

func (w *withKind) Error() string { return w.cause.Error() }
func (w *withKind) Unwrap() error { return w.cause }
