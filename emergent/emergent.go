// Package emergent defines the goal-decomposition boundary. A Strategy may
// expand or reshuffle the seat list before execution; the engine only
// depends on this interface and ships a pass-through variant for callers
// that supply their seats explicitly.
package emergent

import (
	"context"

	"github.com/agencykit/agencykit/core"
)

// Task is one decomposed unit of work produced by a strategy.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	// AssignedRole names the seat responsible for this task.
	AssignedRole string `json:"assigned_role,omitempty"`
}

// Context is the strategy's working state for one agency run. It lives for
// the duration of the run and must be disposed when the run ends.
type Context struct {
	// CoordinationLog is opaque decomposition metadata passed through to the
	// execution result.
	CoordinationLog map[string]string

	onDispose func()
}

// Dispose tears down any strategy working state. Safe to call on nil and
// safe to call more than once.
func (c *Context) Dispose() {
	if c == nil || c.onDispose == nil {
		return
	}
	c.onDispose()
	c.onDispose = nil
}

// Decomposition is the outcome of a strategy transform. Roles replaces the
// caller-supplied seat list entirely.
type Decomposition struct {
	Tasks   []Task
	Roles   []core.SeatDefinition
	Context *Context
}

// Strategy reshapes an execution input into an effective seat list. A
// transform failure is a setup error: it surfaces to the agency caller
// before any seat starts.
type Strategy interface {
	Transform(ctx context.Context, input core.ExecutionInput) (*Decomposition, error)
}

// Passthrough is the no-decomposition strategy: the caller's roles are used
// verbatim and no working context is created.
type Passthrough struct{}

// Transform implements Strategy.
func (Passthrough) Transform(_ context.Context, input core.ExecutionInput) (*Decomposition, error) {
	roles := make([]core.SeatDefinition, len(input.Roles))
	copy(roles, input.Roles)
	return &Decomposition{Roles: roles}, nil
}

// NewContext builds a strategy context with an optional dispose hook,
// intended for Strategy implementations.
func NewContext(coordinationLog map[string]string, onDispose func()) *Context {
	return &Context{CoordinationLog: coordinationLog, onDispose: onDispose}
}
