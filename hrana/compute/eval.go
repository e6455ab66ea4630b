package compute

import (
	"fmt"

	"github.com/libsql/libsql-extended/hrana/proto"
)

// Eval evaluates an expression against env. Evaluation is pure and total
// except for the one documented failure mode: reading an unset variable
// (§4.2).
func Eval(env *Env, e *proto.Expr) (proto.Value, error) {
	if e == nil {
		return proto.Value{}, fmt.Errorf("compute: nil expression")
	}

	switch e.Kind {
	case proto.ExprLit:
		return e.Lit, nil
	case proto.ExprVar:
		v, err := env.Get(e.Var)
		if err != nil {
			return proto.Value{}, err
		}
		return v, nil
	case proto.ExprNot:
		v, err := Eval(env, e.Expr)
		if err != nil {
			return proto.Value{}, err
		}
		return proto.Integer(boolToInt(!v.Truthy())), nil
	default:
		return proto.Value{}, fmt.Errorf("compute: unknown expression kind %q", e.Kind)
	}
}

// EvalBool evaluates e and coerces the result to a boolean per §4.2's
// truthiness rules.
func EvalBool(env *Env, e *proto.Expr) (bool, error) {
	v, err := Eval(env, e)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
