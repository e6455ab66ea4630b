package hrana

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libsql/libsql-extended/hrana/herrors"
	"github.com/libsql/libsql-extended/hrana/proto"
)

func TestEngineRunComputeSequencesOps(t *testing.T) {
	t.Parallel()

	e := newEngine(&fakeExecutor{}, Version2)
	results, err := e.runCompute([]proto.Op{
		proto.SetOp(1, proto.LitExpr(proto.Integer(5))),
		proto.EvalOp(proto.VarExpr(1)),
	})
	require.NoError(t, err)
	require.True(t, results[1].Equal(proto.Integer(5)))
}

func TestEngineRunExecuteConditionFalseSkips(t *testing.T) {
	t.Parallel()

	called := false
	e := newEngine(&fakeExecutor{executeFn: func(proto.Stmt) (proto.StmtResult, error) {
		called = true
		return proto.StmtResult{}, nil
	}}, Version1)

	_, skipped, err := e.runExecute(context.Background(), &fakeSession{}, proto.Stmt{SQL: "SELECT 1"},
		proto.LitExpr(proto.Integer(0)), nil, nil)
	require.NoError(t, err)
	require.True(t, skipped)
	require.False(t, called, "statement must not run when condition is false")
}

func TestEngineRunExecuteOnOkRunsOnSuccess(t *testing.T) {
	t.Parallel()

	e := newEngine(&fakeExecutor{executeFn: func(proto.Stmt) (proto.StmtResult, error) {
		return proto.StmtResult{}, nil
	}}, Version1)

	onOk := []proto.Op{proto.SetOp(1, proto.LitExpr(proto.Integer(9)))}
	_, skipped, err := e.runExecute(context.Background(), &fakeSession{}, proto.Stmt{SQL: "INSERT"}, nil, onOk, nil)
	require.NoError(t, err)
	require.False(t, skipped)

	v, err := e.env.Get(1)
	require.NoError(t, err)
	require.True(t, v.Equal(proto.Integer(9)))
}

func TestEngineRunExecuteOnErrorRunsOnFailure(t *testing.T) {
	t.Parallel()

	e := newEngine(&fakeExecutor{executeFn: func(proto.Stmt) (proto.StmtResult, error) {
		return proto.StmtResult{}, assertionErr("constraint failed")
	}}, Version1)

	onError := []proto.Op{proto.SetOp(1, proto.LitExpr(proto.Integer(1)))}
	_, _, err := e.runExecute(context.Background(), &fakeSession{}, proto.Stmt{SQL: "INSERT"}, nil, nil, onError)
	require.Error(t, err, "execute failure must still surface as an execution error")

	v, err2 := e.env.Get(1)
	require.NoError(t, err2)
	require.True(t, v.Equal(proto.Integer(1)), "on_error hook must have run")
}

func TestEngineRunProgCountOfTypeIndexing(t *testing.T) {
	t.Parallel()

	e := newEngine(&fakeExecutor{executeFn: func(proto.Stmt) (proto.StmtResult, error) {
		return proto.StmtResult{}, nil
	}}, Version2)

	prog := proto.Prog{Steps: []proto.Step{
		{Kind: proto.StepOp, Ops: []proto.Op{proto.SetOp(1, proto.LitExpr(proto.Integer(1)))}},
		{Kind: proto.StepExecute, Stmt: proto.Stmt{SQL: "INSERT 1"}},
		{Kind: proto.StepOutput, Output: proto.VarExpr(1)},
		{Kind: proto.StepExecute, Stmt: proto.Stmt{SQL: "INSERT 2"}},
	}}

	result, err := e.runProg(context.Background(), &fakeSession{}, prog)
	require.NoError(t, err)
	require.Len(t, result.ExecuteResults, 2, "count-of-type indexing sizes by execute-step count, not absolute step count")
	require.Len(t, result.Outputs, 1)
}

func TestEngineRunProgAbsoluteIndexing(t *testing.T) {
	t.Parallel()

	e := newEngine(&fakeExecutor{executeFn: func(proto.Stmt) (proto.StmtResult, error) {
		return proto.StmtResult{}, nil
	}}, Version1)

	prog := proto.Prog{Steps: []proto.Step{
		{Kind: proto.StepOp, Ops: []proto.Op{proto.SetOp(1, proto.LitExpr(proto.Integer(1)))}},
		{Kind: proto.StepExecute, Stmt: proto.Stmt{SQL: "INSERT 1"}},
	}}

	result, err := e.runProg(context.Background(), &fakeSession{}, prog)
	require.NoError(t, err)
	require.Len(t, result.ExecuteResults, 2, "absolute indexing sizes by total step count")
	require.Nil(t, result.ExecuteResults[0], "non-execute step's slot must stay nil")
	require.NotNil(t, result.ExecuteResults[1])
}

func TestEngineRunProgExecuteFailureDoesNotAbortProgram(t *testing.T) {
	t.Parallel()

	call := 0
	e := newEngine(&fakeExecutor{executeFn: func(proto.Stmt) (proto.StmtResult, error) {
		call++
		if call == 1 {
			return proto.StmtResult{}, assertionErr("insert failed")
		}
		return proto.StmtResult{}, nil
	}}, Version2)

	prog := proto.Prog{Steps: []proto.Step{
		{Kind: proto.StepExecute, Stmt: proto.Stmt{SQL: "INSERT"}, OnError: []proto.Op{proto.SetOp(1, proto.LitExpr(proto.Integer(1)))}},
		{Kind: proto.StepExecute, Stmt: proto.Stmt{SQL: "COMMIT"},
			Condition: proto.NotExpr(proto.VarExpr(1))},
	}}

	result, err := e.runProg(context.Background(), &fakeSession{}, prog)
	require.NoError(t, err)
	require.NotNil(t, result.ExecuteErrors[0])
	require.Nil(t, result.ExecuteResults[0])
	require.Nil(t, result.ExecuteResults[1], "COMMIT must be skipped because the condition is false")
}

func TestEngineRunProgComputeFailureIsFatalToProgram(t *testing.T) {
	t.Parallel()

	e := newEngine(&fakeExecutor{}, Version2)
	prog := proto.Prog{Steps: []proto.Step{
		{Kind: proto.StepOutput, Output: proto.VarExpr(99)},
	}}

	_, err := e.runProg(context.Background(), &fakeSession{}, prog)
	require.Error(t, err)
	require.Equal(t, herrors.KindCompute, herrors.GetKind(err))
}

type assertionErr string

func (e assertionErr) Error() string { return string(e) }
