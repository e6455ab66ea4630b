// Package exec defines the execution interface the core dispatches
// against (§4.3): a backend session capable of running one Stmt at a time,
// plus the argument-sigil normalization the core performs before handing
// the statement to that session.
package exec

import (
	"context"
	"fmt"

	"github.com/libsql/libsql-extended/hrana/herrors"
	"github.com/libsql/libsql-extended/hrana/proto"
)

// Session is one backend SQL session, exclusively owned by a single stream
// for its lifetime (§4.4). Close releases whatever backend resource the
// session holds (a *sql.Conn, a libSQL connection handle, ...).
type Session interface {
	Close() error
}

// Executor runs statements against sessions it creates. A Server has
// exactly one Executor, shared by every connection and stream.
type Executor interface {
	// NewSession acquires a backend session for one stream. The context
	// bounds only the acquisition itself, not the session's lifetime.
	NewSession(ctx context.Context) (Session, error)

	// Execute runs stmt against session and returns its result. It must be
	// cancel-safe (§4.3): if ctx is canceled, in-flight backend work is
	// either completed and discarded or cleanly aborted, never left
	// corrupting session state.
	Execute(ctx context.Context, session Session, stmt proto.Stmt) (proto.StmtResult, error)
}

// ExecutionError wraps err as an operational execution error (§7):
// reported to the client as response_error, connection stays open.
func ExecutionError(err error) error {
	if err == nil {
		return nil
	}
	return herrors.WithKind(err, herrors.KindExecution)
}

// ExecutionErrorf builds a formatted ExecutionError.
func ExecutionErrorf(format string, args ...any) error {
	return ExecutionError(fmt.Errorf(format, args...))
}
