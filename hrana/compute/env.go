// Package compute implements the Hrana compute machine (§4.2): a small,
// synchronous tree-walk interpreter over pure expressions and
// side-effecting operations, evaluated against a per-connection variable
// environment. It is invoked standalone (the "compute" request), as the
// condition guard on an execute step, and as the on_ok/on_error hooks that
// follow a statement's completion.
package compute

import (
	"fmt"
	"sync"

	"github.com/libsql/libsql-extended/hrana/proto"
)

// Env is the sparse, per-connection variable environment (§3): a mapping
// from client-assigned i32 ids to Values. It is shared by every stream
// lane on a connection, so all access goes through its own mutex rather
// than assuming a single-threaded caller.
type Env struct {
	mu   sync.Mutex
	vars map[int32]proto.Value
}

// NewEnv constructs an empty variable environment, created at hello_ok per
// §3's stated lifetime.
func NewEnv() *Env {
	return &Env{vars: make(map[int32]proto.Value)}
}

// Get returns the value bound to id. Reading an unset variable is an
// evaluation error (§3).
func (e *Env) Get(id int32) (proto.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.vars[id]
	if !ok {
		return proto.Value{}, fmt.Errorf("compute: variable %d is not set", id)
	}
	return v, nil
}

// Set writes v into slot id, creating it if absent.
func (e *Env) Set(id int32, v proto.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.vars[id] = v
}

// Unset removes slot id. It is not an error for id to already be absent
// (§4.2).
func (e *Env) Unset(id int32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.vars, id)
}
