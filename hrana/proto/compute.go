package proto

import (
	"fmt"

	"github.com/segmentio/encoding/json"
)

// ExprKind discriminates the compute machine's expression union (§4.2).
type ExprKind string

const (
	ExprLit ExprKind = "lit"
	ExprVar ExprKind = "var"
	ExprNot ExprKind = "not"
)

// Expr is a pure, side-effect-free expression: a literal Value, a
// reference to a variable-environment slot, or a boolean negation of a
// nested expression.
type Expr struct {
	Kind ExprKind
	Lit  Value
	Var  int32
	Expr *Expr
}

// LitExpr constructs a literal expression.
func LitExpr(v Value) *Expr { return &Expr{Kind: ExprLit, Lit: v} }

// VarExpr constructs a variable-reference expression.
func VarExpr(id int32) *Expr { return &Expr{Kind: ExprVar, Var: id} }

// NotExpr constructs a boolean-negation expression.
func NotExpr(e *Expr) *Expr { return &Expr{Kind: ExprNot, Expr: e} }

type exprWire struct {
	Type  ExprKind        `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	Var   *int32          `json:"var,omitempty"`
	Expr  json.RawMessage `json:"expr,omitempty"`
}

// MarshalJSON renders the expression using the wire's "type" discriminator.
func (e Expr) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case ExprLit:
		v, err := json.Marshal(e.Lit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Type  ExprKind        `json:"type"`
			Value json.RawMessage `json:"value"`
		}{ExprLit, v})
	case ExprVar:
		return json.Marshal(struct {
			Type ExprKind `json:"type"`
			Var  int32    `json:"var"`
		}{ExprVar, e.Var})
	case ExprNot:
		inner, err := json.Marshal(e.Expr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Type ExprKind        `json:"type"`
			Expr json.RawMessage `json:"expr"`
		}{ExprNot, inner})
	default:
		return nil, fmt.Errorf("proto: unknown expr kind %q", e.Kind)
	}
}

// UnmarshalJSON parses an expression per its "type" discriminator.
func (e *Expr) UnmarshalJSON(data []byte) error {
	var raw exprWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("proto: malformed expr: %w", err)
	}

	switch raw.Type {
	case ExprLit:
		var v Value
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return fmt.Errorf("proto: malformed lit expr: %w", err)
		}
		*e = Expr{Kind: ExprLit, Lit: v}
		return nil
	case ExprVar:
		if raw.Var == nil {
			return fmt.Errorf("proto: var expr is missing \"var\"")
		}
		*e = Expr{Kind: ExprVar, Var: *raw.Var}
		return nil
	case ExprNot:
		var inner Expr
		if err := json.Unmarshal(raw.Expr, &inner); err != nil {
			return fmt.Errorf("proto: malformed not expr: %w", err)
		}
		*e = Expr{Kind: ExprNot, Expr: &inner}
		return nil
	default:
		// A bare Value ({"type":"integer","value":"1"}, ...) is also a
		// literal expression.
		var v Value
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("proto: unknown expr type %q", raw.Type)
		}
		*e = Expr{Kind: ExprLit, Lit: v}
		return nil
	}
}

// OpKind discriminates the compute machine's operation union (§4.2).
type OpKind string

const (
	OpSet   OpKind = "set"
	OpUnset OpKind = "unset"
	OpEval  OpKind = "eval"
)

// Op is a side-effecting compute-machine operation: write a variable slot,
// remove one, or evaluate an expression for its value.
type Op struct {
	Kind OpKind
	Var  int32
	Expr *Expr
}

// SetOp constructs a set(var, expr) operation.
func SetOp(id int32, e *Expr) Op { return Op{Kind: OpSet, Var: id, Expr: e} }

// UnsetOp constructs an unset(var) operation.
func UnsetOp(id int32) Op { return Op{Kind: OpUnset, Var: id} }

// EvalOp constructs an eval(expr) operation.
func EvalOp(e *Expr) Op { return Op{Kind: OpEval, Expr: e} }

type opWire struct {
	Type OpKind          `json:"type"`
	Var  *int32          `json:"var,omitempty"`
	Expr json.RawMessage `json:"expr,omitempty"`
}

// MarshalJSON renders the operation using the wire's "type" discriminator.
func (o Op) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OpSet:
		expr, err := json.Marshal(o.Expr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Type OpKind          `json:"type"`
			Var  int32           `json:"var"`
			Expr json.RawMessage `json:"expr"`
		}{OpSet, o.Var, expr})
	case OpUnset:
		return json.Marshal(struct {
			Type OpKind `json:"type"`
			Var  int32  `json:"var"`
		}{OpUnset, o.Var})
	case OpEval:
		expr, err := json.Marshal(o.Expr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Type OpKind          `json:"type"`
			Expr json.RawMessage `json:"expr"`
		}{OpEval, expr})
	default:
		return nil, fmt.Errorf("proto: unknown op kind %q", o.Kind)
	}
}

// UnmarshalJSON parses an operation per its "type" discriminator.
func (o *Op) UnmarshalJSON(data []byte) error {
	var raw opWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("proto: malformed op: %w", err)
	}

	switch raw.Type {
	case OpSet:
		if raw.Var == nil {
			return fmt.Errorf("proto: set op is missing \"var\"")
		}
		var expr Expr
		if err := json.Unmarshal(raw.Expr, &expr); err != nil {
			return fmt.Errorf("proto: malformed set op expr: %w", err)
		}
		*o = Op{Kind: OpSet, Var: *raw.Var, Expr: &expr}
		return nil
	case OpUnset:
		if raw.Var == nil {
			return fmt.Errorf("proto: unset op is missing \"var\"")
		}
		*o = Op{Kind: OpUnset, Var: *raw.Var}
		return nil
	case OpEval:
		var expr Expr
		if err := json.Unmarshal(raw.Expr, &expr); err != nil {
			return fmt.Errorf("proto: malformed eval op expr: %w", err)
		}
		*o = Op{Kind: OpEval, Expr: &expr}
		return nil
	default:
		return fmt.Errorf("proto: unknown op type %q", raw.Type)
	}
}
