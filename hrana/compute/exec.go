package compute

import (
	"fmt"

	"github.com/libsql/libsql-extended/hrana/proto"
)

// Exec runs one operation against env, applying its side effect (if any)
// and returning the operation's own result value (§4.2): set/unset yield
// null, eval yields the expression's value.
func Exec(env *Env, op *proto.Op) (proto.Value, error) {
	if op == nil {
		return proto.Value{}, fmt.Errorf("compute: nil operation")
	}

	switch op.Kind {
	case proto.OpSet:
		v, err := Eval(env, op.Expr)
		if err != nil {
			return proto.Value{}, err
		}
		env.Set(op.Var, v)
		return proto.Null(), nil
	case proto.OpUnset:
		env.Unset(op.Var)
		return proto.Null(), nil
	case proto.OpEval:
		return Eval(env, op.Expr)
	default:
		return proto.Value{}, fmt.Errorf("compute: unknown operation kind %q", op.Kind)
	}
}

// RunOps runs a sequence of operations strictly left-to-right, returning
// the per-op result vector (§4.2: "the machine evaluates strictly
// left-to-right... ops are imperative"). It stops and returns the error
// from the first operation that fails, with no results; side effects of
// the operations before it stay in env. The caller turns the error into
// the request type's failure (a failed
// "compute" request is a response_error; a failed on_ok/on_error hook
// discards the prog's otherwise-successful step outcome per §4.6).
func RunOps(env *Env, ops []proto.Op) ([]proto.Value, error) {
	results := make([]proto.Value, 0, len(ops))
	for i := range ops {
		v, err := Exec(env, &ops[i])
		if err != nil {
			return nil, fmt.Errorf("compute: op %d: %w", i, err)
		}
		results = append(results, v)
	}
	return results, nil
}
