package proto

import (
	"fmt"

	"github.com/segmentio/encoding/json"
)

// StepKind discriminates a Prog step (§4.6).
type StepKind string

const (
	StepExecute StepKind = "execute"
	StepOutput  StepKind = "output"
	StepOp      StepKind = "op"
)

// Step is one instruction of a Prog, executed strictly in arrival order on
// a single stream.
type Step struct {
	Kind StepKind

	// StepExecute fields.
	Stmt      Stmt
	Condition *Expr
	OnOk      []Op
	OnError   []Op

	// StepOutput fields.
	Output *Expr

	// StepOp fields.
	Ops []Op
}

type stepWire struct {
	Type      StepKind        `json:"type"`
	Stmt      json.RawMessage `json:"stmt,omitempty"`
	Condition json.RawMessage `json:"condition,omitempty"`
	OnOk      []Op            `json:"on_ok,omitempty"`
	OnError   []Op            `json:"on_error,omitempty"`
	Output    json.RawMessage `json:"expr,omitempty"`
	Ops       []Op            `json:"ops,omitempty"`
}

// MarshalJSON renders the step using the wire's "type" discriminator.
func (s Step) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StepExecute:
		stmt, err := json.Marshal(s.Stmt)
		if err != nil {
			return nil, err
		}
		w := stepWire{Type: StepExecute, Stmt: stmt, OnOk: s.OnOk, OnError: s.OnError}
		if s.Condition != nil {
			cond, err := json.Marshal(s.Condition)
			if err != nil {
				return nil, err
			}
			w.Condition = cond
		}
		return json.Marshal(w)
	case StepOutput:
		expr, err := json.Marshal(s.Output)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stepWire{Type: StepOutput, Output: expr})
	case StepOp:
		return json.Marshal(stepWire{Type: StepOp, Ops: s.Ops})
	default:
		return nil, fmt.Errorf("proto: unknown step kind %q", s.Kind)
	}
}

// UnmarshalJSON parses a step per its "type" discriminator.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw stepWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("proto: malformed step: %w", err)
	}

	switch raw.Type {
	case StepExecute:
		var stmt Stmt
		if err := json.Unmarshal(raw.Stmt, &stmt); err != nil {
			return fmt.Errorf("proto: malformed execute step stmt: %w", err)
		}
		step := Step{Kind: StepExecute, Stmt: stmt, OnOk: raw.OnOk, OnError: raw.OnError}
		if len(raw.Condition) > 0 {
			var cond Expr
			if err := json.Unmarshal(raw.Condition, &cond); err != nil {
				return fmt.Errorf("proto: malformed execute step condition: %w", err)
			}
			step.Condition = &cond
		}
		*s = step
		return nil
	case StepOutput:
		var expr Expr
		if err := json.Unmarshal(raw.Output, &expr); err != nil {
			return fmt.Errorf("proto: malformed output step expr: %w", err)
		}
		*s = Step{Kind: StepOutput, Output: &expr}
		return nil
	case StepOp:
		*s = Step{Kind: StepOp, Ops: raw.Ops}
		return nil
	default:
		return fmt.Errorf("proto: unknown step type %q", raw.Type)
	}
}

// Prog is a sequence of steps executed strictly in order on one stream
// (§4.6, Glossary).
type Prog struct {
	Steps []Step `json:"steps"`
}

// ProgResult is the outcome of running a Prog: per-execute-step results and
// errors (indexed per the negotiated subprotocol version, see
// hrana.Version), plus the accumulated outputs.
type ProgResult struct {
	ExecuteResults []*StmtResult `json:"execute_results"`
	ExecuteErrors  []*ErrorPayload `json:"execute_errors"`
	Outputs        []Value       `json:"outputs"`
}
