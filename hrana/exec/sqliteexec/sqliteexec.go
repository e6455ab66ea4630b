// Package sqliteexec implements hrana/exec's Executor contract on top of
// database/sql and the pure-Go modernc.org/sqlite driver, giving each
// stream its own *sql.Conn pinned out of a shared *sql.DB pool so that
// transaction state started on one statement is visible to the next
// (§4.4's "same backend session" invariant).
package sqliteexec

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/libsql/libsql-extended/hrana/exec"
	"github.com/libsql/libsql-extended/hrana/proto"
)

// Executor runs statements against sqlite connections drawn from a shared
// pool, one connection per stream.
type Executor struct {
	db *sql.DB
}

// Open opens a sqlite database at dsn (a file path, or ":memory:") and
// returns an Executor backed by it.
func Open(dsn string) (*Executor, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqliteexec: open %s: %w", dsn, err)
	}
	return &Executor{db: db}, nil
}

// New wraps an already-open *sql.DB.
func New(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// Close closes the underlying pool.
func (e *Executor) Close() error {
	return e.db.Close()
}

// Session is a single stream's exclusively-owned sqlite connection.
type Session struct {
	conn *sql.Conn
}

// NewSession pins a fresh *sql.Conn out of the pool for the calling
// stream's exclusive use.
func (e *Executor) NewSession(ctx context.Context) (exec.Session, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqliteexec: acquire connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Execute runs stmt against session's connection (§4.3). It rejects
// multiple SQL statements in one Stmt, resolves named-argument sigils
// against the :name/@name/$name tokens found in the SQL text, binds positional and
// named arguments (named wins a slot contested by both, per §3), and
// collects rows only when stmt.WantRows is set.
func (e *Executor) Execute(ctx context.Context, session exec.Session, stmt proto.Stmt) (proto.StmtResult, error) {
	s, ok := session.(*Session)
	if !ok {
		return proto.StmtResult{}, exec.ExecutionErrorf("sqliteexec: foreign session type %T", session)
	}

	query, err := singleStatement(stmt.SQL)
	if err != nil {
		return proto.StmtResult{}, exec.ExecutionError(err)
	}

	args, err := bindArgs(stmt, query)
	if err != nil {
		return proto.StmtResult{}, err
	}

	if stmt.WantRows {
		return e.executeQuery(ctx, s, query, args)
	}
	return e.executeStatement(ctx, s, query, args)
}

func (e *Executor) executeStatement(ctx context.Context, s *Session, query string, args []any) (proto.StmtResult, error) {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return proto.StmtResult{}, exec.ExecutionErrorf("sqliteexec: %w", err)
	}

	result := proto.StmtResult{}

	affected, err := res.RowsAffected()
	if err == nil {
		result.AffectedRowCount = int32(affected)
	}

	if id, err := res.LastInsertId(); err == nil && id != 0 {
		result.LastInsertRowID = &id
	}

	return result, nil
}

func (e *Executor) executeQuery(ctx context.Context, s *Session, query string, args []any) (proto.StmtResult, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return proto.StmtResult{}, exec.ExecutionErrorf("sqliteexec: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return proto.StmtResult{}, exec.ExecutionErrorf("sqliteexec: columns: %w", err)
	}

	cols := make([]proto.Col, len(names))
	for i, n := range names {
		name := n
		cols[i] = proto.Col{Name: &name}
	}

	result := proto.StmtResult{Cols: cols, Rows: [][]proto.Value{}}

	scanned := make([]any, len(names))
	pointers := make([]any, len(names))
	for i := range scanned {
		pointers[i] = &scanned[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return proto.StmtResult{}, exec.ExecutionErrorf("sqliteexec: scan: %w", err)
		}

		row := make([]proto.Value, len(names))
		for i, v := range scanned {
			row[i] = convertValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return proto.StmtResult{}, exec.ExecutionErrorf("sqliteexec: %w", err)
	}

	return result, nil
}

func convertValue(v any) proto.Value {
	switch t := v.(type) {
	case nil:
		return proto.Null()
	case int64:
		return proto.Integer(t)
	case float64:
		return proto.Float(t)
	case string:
		return proto.Text(t)
	case []byte:
		return proto.Blob(t)
	default:
		return proto.Text(fmt.Sprint(t))
	}
}

var paramNamePattern = regexp.MustCompile(`[:@$][A-Za-z_][A-Za-z0-9_]*`)

func bindArgs(stmt proto.Stmt, query string) ([]any, error) {
	args := make([]any, 0, len(stmt.Args)+len(stmt.NamedArgs))
	for _, v := range stmt.Args {
		args = append(args, valueToDriver(v))
	}

	declared := make(map[string]bool)
	for _, tok := range paramNamePattern.FindAllString(query, -1) {
		declared[tok] = true
	}

	normalized, err := exec.NormalizeNamedArgs(stmt, func(name string) bool { return declared[name] })
	if err != nil {
		return nil, err
	}

	for _, arg := range normalized.NamedArgs {
		args = append(args, sql.Named(strings.TrimLeft(arg.Name, ":@$"), valueToDriver(arg.Value)))
	}

	return args, nil
}

func singleStatement(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSuffix(trimmed, ";")
	if strings.Contains(trimmed, ";") {
		return "", fmt.Errorf("sqliteexec: multiple statements in one Stmt are not allowed")
	}
	return trimmed, nil
}

func valueToDriver(v proto.Value) any {
	switch v.Kind {
	case proto.KindNull:
		return nil
	case proto.KindInteger:
		return v.Int
	case proto.KindFloat:
		return v.Flt
	case proto.KindText:
		return v.Str
	case proto.KindBlob:
		return v.Blob
	default:
		return nil
	}
}
