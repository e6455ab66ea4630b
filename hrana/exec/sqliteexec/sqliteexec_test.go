package sqliteexec

import (
	"context"
	"testing"

	"github.com/libsql/libsql-extended/hrana/proto"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Executor {
	t.Helper()
	e, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func TestExecuteSelectLiteral(t *testing.T) {
	t.Parallel()

	e := open(t)
	ctx := context.Background()

	s, err := e.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	res, err := e.Execute(ctx, s, proto.Stmt{SQL: "SELECT 1", WantRows: true})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.True(t, res.Rows[0][0].Equal(proto.Integer(1)))
}

func TestExecuteCreateAndInsertReturnsLastInsertRowID(t *testing.T) {
	t.Parallel()

	e := open(t)
	ctx := context.Background()

	s, err := e.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	_, err = e.Execute(ctx, s, proto.Stmt{SQL: "CREATE TABLE t (v INTEGER)"})
	require.NoError(t, err)

	res, err := e.Execute(ctx, s, proto.Stmt{
		SQL:  "INSERT INTO t VALUES (?)",
		Args: []proto.Value{proto.Integer(42)},
	})
	require.NoError(t, err)
	require.NotNil(t, res.LastInsertRowID)
	require.Equal(t, int64(1), *res.LastInsertRowID)
	require.Equal(t, int32(1), res.AffectedRowCount)
}

func TestExecuteTransactionStatePersistsAcrossCalls(t *testing.T) {
	t.Parallel()

	e := open(t)
	ctx := context.Background()

	s, err := e.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	_, err = e.Execute(ctx, s, proto.Stmt{SQL: "CREATE TABLE t (v INTEGER)"})
	require.NoError(t, err)
	_, err = e.Execute(ctx, s, proto.Stmt{SQL: "BEGIN"})
	require.NoError(t, err)
	_, err = e.Execute(ctx, s, proto.Stmt{SQL: "INSERT INTO t VALUES (1)"})
	require.NoError(t, err)
	_, err = e.Execute(ctx, s, proto.Stmt{SQL: "ROLLBACK"})
	require.NoError(t, err)

	res, err := e.Execute(ctx, s, proto.Stmt{SQL: "SELECT count(*) FROM t", WantRows: true})
	require.NoError(t, err)
	require.True(t, res.Rows[0][0].Equal(proto.Integer(0)), "rollback on the same session must undo the insert")
}

func TestExecuteNamedArgWithSigil(t *testing.T) {
	t.Parallel()

	e := open(t)
	ctx := context.Background()

	s, err := e.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	res, err := e.Execute(ctx, s, proto.Stmt{
		SQL:       "SELECT :v",
		WantRows:  true,
		NamedArgs: []proto.NamedArg{{Name: ":v", Value: proto.Text("hi")}},
	})
	require.NoError(t, err)
	require.True(t, res.Rows[0][0].Equal(proto.Text("hi")))
}

func TestExecuteNamedArgGuessesSigil(t *testing.T) {
	t.Parallel()

	e := open(t)
	ctx := context.Background()

	s, err := e.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	res, err := e.Execute(ctx, s, proto.Stmt{
		SQL:       "SELECT @v",
		WantRows:  true,
		NamedArgs: []proto.NamedArg{{Name: "v", Value: proto.Integer(7)}},
	})
	require.NoError(t, err)
	require.True(t, res.Rows[0][0].Equal(proto.Integer(7)))
}

func TestExecuteRejectsMultipleStatements(t *testing.T) {
	t.Parallel()

	e := open(t)
	ctx := context.Background()

	s, err := e.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	_, err = e.Execute(ctx, s, proto.Stmt{SQL: "SELECT 1; SELECT 2"})
	require.Error(t, err)
}

func TestExecuteNoRowsWhenWantRowsFalse(t *testing.T) {
	t.Parallel()

	e := open(t)
	ctx := context.Background()

	s, err := e.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	_, err = e.Execute(ctx, s, proto.Stmt{SQL: "CREATE TABLE t (v INTEGER)"})
	require.NoError(t, err)
	_, err = e.Execute(ctx, s, proto.Stmt{SQL: "INSERT INTO t VALUES (1)"})
	require.NoError(t, err)

	res, err := e.Execute(ctx, s, proto.Stmt{SQL: "SELECT * FROM t", WantRows: false})
	require.NoError(t, err)
	require.Empty(t, res.Rows)
}
