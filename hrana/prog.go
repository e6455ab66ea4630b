package hrana

import (
	"context"
	"fmt"

	"github.com/libsql/libsql-extended/hrana/compute"
	"github.com/libsql/libsql-extended/hrana/exec"
	"github.com/libsql/libsql-extended/hrana/herrors"
	"github.com/libsql/libsql-extended/hrana/proto"
)

// engine ties the compute machine to the execution interface for one
// connection (§4.2, §4.3, §4.6): it runs bare executes (with their
// optional condition/on_ok/on_error, hrana1 only) and full Progs against
// a stream's session, sharing the connection's single variable
// environment.
type engine struct {
	env      *compute.Env
	executor exec.Executor
	version  Version
}

func newEngine(executor exec.Executor, version Version) *engine {
	return &engine{env: compute.NewEnv(), executor: executor, version: version}
}

// runCompute executes a standalone "compute" request's op vector (§4.2
// case 1).
func (e *engine) runCompute(ops []proto.Op) ([]proto.Value, error) {
	results, err := compute.RunOps(e.env, ops)
	if err != nil {
		return nil, herrors.WithKind(err, herrors.KindCompute)
	}
	return results, nil
}

// runExecute runs one statement with its optional condition/on_ok/on_error
// directly (§4.2 cases 2 and 3, as exposed on a bare execute request under
// hrana1). A false condition skips execution, invokes no hook, and returns
// skipped=true with a zero StmtResult; the execute response for a skipped
// statement then carries that empty result, not null. A failing condition
// or hook evaluation is a compute
// error; it does not run the other hook.
func (e *engine) runExecute(ctx context.Context, session exec.Session, stmt proto.Stmt, condition *proto.Expr, onOk, onError []proto.Op) (proto.StmtResult, bool /* skipped */, error) {
	if condition != nil {
		ok, err := compute.EvalBool(e.env, condition)
		if err != nil {
			return proto.StmtResult{}, false, herrors.WithKind(err, herrors.KindCompute)
		}
		if !ok {
			return proto.StmtResult{}, true, nil
		}
	}

	result, execErr := e.executor.Execute(ctx, session, stmt)
	if execErr == nil {
		if _, err := compute.RunOps(e.env, onOk); err != nil {
			return proto.StmtResult{}, false, herrors.WithKind(err, herrors.KindCompute)
		}
		return result, false, nil
	}

	if _, err := compute.RunOps(e.env, onError); err != nil {
		return proto.StmtResult{}, false, herrors.WithKind(err, herrors.KindCompute)
	}
	return proto.StmtResult{}, false, exec.ExecutionError(execErr)
}

// runProg executes every step of prog strictly in order on session
// (§4.6). Indexing of execute_results/execute_errors/outputs follows the
// negotiated subprotocol version (§9).
func (e *engine) runProg(ctx context.Context, session exec.Session, prog proto.Prog) (proto.ProgResult, error) {
	n := len(prog.Steps)
	absolute := e.version.absoluteStepIndexing()

	size := n
	if !absolute {
		size = countStepsOfKind(prog.Steps, proto.StepExecute)
	}
	result := proto.ProgResult{
		ExecuteResults: make([]*proto.StmtResult, size),
		ExecuteErrors:  make([]*proto.ErrorPayload, size),
	}

	outSize := n
	if !absolute {
		outSize = countStepsOfKind(prog.Steps, proto.StepOutput)
	}
	result.Outputs = make([]proto.Value, outSize)

	executeSeen := 0
	outputSeen := 0

	for i, step := range prog.Steps {
		switch step.Kind {
		case proto.StepExecute:
			slot := executeSeen
			if absolute {
				slot = i
			}
			executeSeen++

			if step.Condition != nil {
				ok, err := compute.EvalBool(e.env, step.Condition)
				if err != nil {
					return proto.ProgResult{}, herrors.WithKind(fmt.Errorf("prog: step %d condition: %w", i, err), herrors.KindCompute)
				}
				if !ok {
					result.ExecuteResults[slot] = nil
					result.ExecuteErrors[slot] = nil
					continue
				}
			}

			stmtResult, execErr := e.executor.Execute(ctx, session, step.Stmt)
			if execErr == nil {
				result.ExecuteResults[slot] = &stmtResult
				result.ExecuteErrors[slot] = nil
				if _, err := compute.RunOps(e.env, step.OnOk); err != nil {
					return proto.ProgResult{}, herrors.WithKind(fmt.Errorf("prog: step %d on_ok: %w", i, err), herrors.KindCompute)
				}
			} else {
				result.ExecuteResults[slot] = nil
				result.ExecuteErrors[slot] = &proto.ErrorPayload{Message: execErr.Error()}
				if _, err := compute.RunOps(e.env, step.OnError); err != nil {
					return proto.ProgResult{}, herrors.WithKind(fmt.Errorf("prog: step %d on_error: %w", i, err), herrors.KindCompute)
				}
			}

		case proto.StepOutput:
			slot := outputSeen
			if absolute {
				slot = i
			}
			outputSeen++

			v, err := compute.Eval(e.env, step.Output)
			if err != nil {
				return proto.ProgResult{}, herrors.WithKind(fmt.Errorf("prog: step %d output: %w", i, err), herrors.KindCompute)
			}
			result.Outputs[slot] = v

		case proto.StepOp:
			if _, err := compute.RunOps(e.env, step.Ops); err != nil {
				return proto.ProgResult{}, herrors.WithKind(fmt.Errorf("prog: step %d op: %w", i, err), herrors.KindCompute)
			}

		default:
			return proto.ProgResult{}, herrors.Violation(fmt.Sprintf("prog: unknown step kind %q", step.Kind))
		}
	}

	return result, nil
}

func countStepsOfKind(steps []proto.Step, kind proto.StepKind) int {
	n := 0
	for _, s := range steps {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
