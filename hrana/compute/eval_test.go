package compute

import (
	"testing"

	"github.com/libsql/libsql-extended/hrana/proto"
	"github.com/stretchr/testify/require"
)

func TestEvalLiteral(t *testing.T) {
	t.Parallel()

	env := NewEnv()
	v, err := Eval(env, proto.LitExpr(proto.Integer(42)))
	require.NoError(t, err)
	require.True(t, v.Equal(proto.Integer(42)))
}

func TestEvalUnsetVariableIsError(t *testing.T) {
	t.Parallel()

	env := NewEnv()
	_, err := Eval(env, proto.VarExpr(7))
	require.Error(t, err)
}

func TestEvalVarAfterSet(t *testing.T) {
	t.Parallel()

	env := NewEnv()
	env.Set(1, proto.Text("hi"))
	v, err := Eval(env, proto.VarExpr(1))
	require.NoError(t, err)
	require.True(t, v.Equal(proto.Text("hi")))
}

func TestEvalNot(t *testing.T) {
	t.Parallel()

	env := NewEnv()
	v, err := Eval(env, proto.NotExpr(proto.LitExpr(proto.Integer(0))))
	require.NoError(t, err)
	require.True(t, v.Truthy())

	v, err = Eval(env, proto.NotExpr(proto.LitExpr(proto.Integer(1))))
	require.NoError(t, err)
	require.False(t, v.Truthy())
}

func TestEvalBoolCoercion(t *testing.T) {
	t.Parallel()

	env := NewEnv()
	cases := []struct {
		expr proto.Value
		want bool
	}{
		{proto.Null(), false},
		{proto.Integer(0), false},
		{proto.Integer(5), true},
		{proto.Float(0), false},
		{proto.Float(0.5), true},
		{proto.Text(""), false},
		{proto.Text("x"), true},
		{proto.Blob(nil), false},
		{proto.Blob([]byte{1}), true},
	}

	for _, c := range cases {
		got, err := EvalBool(env, proto.LitExpr(c.expr))
		require.NoError(t, err)
		require.Equal(t, c.want, got, "truthiness of %+v", c.expr)
	}
}

func TestExecSetUnsetEval(t *testing.T) {
	t.Parallel()

	env := NewEnv()

	r, err := Exec(env, &proto.Op{Kind: proto.OpSet, Var: 3, Expr: proto.LitExpr(proto.Integer(9))})
	require.NoError(t, err)
	require.True(t, r.IsNull())

	v, err := env.Get(3)
	require.NoError(t, err)
	require.True(t, v.Equal(proto.Integer(9)))

	r, err = Exec(env, &proto.Op{Kind: proto.OpEval, Expr: proto.VarExpr(3)})
	require.NoError(t, err)
	require.True(t, r.Equal(proto.Integer(9)))

	r, err = Exec(env, &proto.Op{Kind: proto.OpUnset, Var: 3})
	require.NoError(t, err)
	require.True(t, r.IsNull())

	_, err = env.Get(3)
	require.Error(t, err)
}

func TestExecUnsetAbsentIsNotError(t *testing.T) {
	t.Parallel()

	env := NewEnv()
	_, err := Exec(env, &proto.Op{Kind: proto.OpUnset, Var: 99})
	require.NoError(t, err)
}

func TestRunOpsLeftToRight(t *testing.T) {
	t.Parallel()

	env := NewEnv()
	ops := []proto.Op{
		proto.SetOp(1, proto.LitExpr(proto.Integer(10))),
		proto.SetOp(2, proto.VarExpr(1)),
		proto.EvalOp(proto.VarExpr(2)),
	}

	results, err := RunOps(env, ops)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.True(t, results[2].Equal(proto.Integer(10)))
}

func TestRunOpsStopsOnFirstError(t *testing.T) {
	t.Parallel()

	env := NewEnv()
	ops := []proto.Op{
		proto.EvalOp(proto.VarExpr(42)),
		proto.SetOp(1, proto.LitExpr(proto.Integer(1))),
	}

	_, err := RunOps(env, ops)
	require.Error(t, err)

	_, err = env.Get(1)
	require.Error(t, err, "ops after the failing one must not have run")
}
