// Package gateway defines the persistence boundary for agency and seat
// lifecycle records. The orchestrator treats every call as best-effort: a
// degraded backend is logged and never interrupts execution.
//
// InMemoryGateway is the concurrency-safe reference implementation; the
// sqlite subpackage provides a durable one.
package gateway

import (
	"context"
	"time"

	"github.com/agencykit/agencykit/core"
)

// Agency lifecycle states as recorded by the gateway.
const (
	AgencyStatusRunning   = "running"
	AgencyStatusCompleted = "completed"
	AgencyStatusFailed    = "failed"
)

// AgencyRecord is the initial durable record for one execution.
type AgencyRecord struct {
	AgencyID             string    `json:"agency_id"`
	Goal                 string    `json:"goal"`
	UserID               string    `json:"user_id"`
	ConversationID       string    `json:"conversation_id"`
	WorkflowDefinitionID string    `json:"workflow_definition_id,omitempty"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
}

// AgencyUpdate carries terminal state for an execution.
type AgencyUpdate struct {
	Status string `json:"status"`
	// Result is set when the execution completed and produced one.
	Result *core.ExecutionResult `json:"result,omitempty"`
}

// SeatRecord is the initial durable record for one seat.
type SeatRecord struct {
	AgencyID    string          `json:"agency_id"`
	RoleID      string          `json:"role_id"`
	PersonaID   string          `json:"persona_id"`
	Instruction string          `json:"instruction"`
	Status      core.SeatStatus `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SeatUpdate carries one seat status transition.
type SeatUpdate struct {
	Status        core.SeatStatus `json:"status"`
	GMIInstanceID string          `json:"gmi_instance_id,omitempty"`
	Attempt       int             `json:"attempt,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Gateway is the durable store for agency and seat lifecycle. All methods
// are asynchronous from the engine's perspective and may fail freely; the
// engine logs and continues.
type Gateway interface {
	CreateAgencyExecution(ctx context.Context, rec AgencyRecord) error
	UpdateAgencyExecution(ctx context.Context, agencyID string, update AgencyUpdate) error
	MarkAgencyExecutionFailed(ctx context.Context, agencyID, reason string) error
	CreateAgencySeat(ctx context.Context, rec SeatRecord) error
	UpdateAgencySeat(ctx context.Context, agencyID, roleID string, update SeatUpdate) error
}

// NoOpGateway discards all records. Useful when persistence is disabled.
type NoOpGateway struct{}

// CreateAgencyExecution implements Gateway.
func (NoOpGateway) CreateAgencyExecution(context.Context, AgencyRecord) error { return nil }

// UpdateAgencyExecution implements Gateway.
func (NoOpGateway) UpdateAgencyExecution(context.Context, string, AgencyUpdate) error { return nil }

// MarkAgencyExecutionFailed implements Gateway.
func (NoOpGateway) MarkAgencyExecutionFailed(context.Context, string, string) error { return nil }

// CreateAgencySeat implements Gateway.
func (NoOpGateway) CreateAgencySeat(context.Context, SeatRecord) error { return nil }

// UpdateAgencySeat implements Gateway.
func (NoOpGateway) UpdateAgencySeat(context.Context, string, string, SeatUpdate) error { return nil }
