package core

// SeatStatus tracks the lifecycle of a single seat within an agency run.
// Transitions only move forward: pending -> running -> {completed, failed}.
type SeatStatus string

const (
	// SeatStatusPending marks a seat that has not started executing yet.
	SeatStatusPending SeatStatus = "pending"
	// SeatStatusRunning marks a seat with an in-flight runtime session.
	SeatStatusRunning SeatStatus = "running"
	// SeatStatusCompleted marks a seat that finished without error.
	SeatStatusCompleted SeatStatus = "completed"
	// SeatStatusFailed marks a seat that exhausted all attempts.
	SeatStatusFailed SeatStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s SeatStatus) Terminal() bool {
	return s == SeatStatusCompleted || s == SeatStatusFailed
}

// rank orders statuses along the allowed transition path.
func (s SeatStatus) rank() int {
	switch s {
	case SeatStatusPending:
		return 0
	case SeatStatusRunning:
		return 1
	case SeatStatusCompleted, SeatStatusFailed:
		return 2
	default:
		return -1
	}
}

// SeatDefinition describes one role assignment within an agency: which
// persona to instantiate and what it should work on. Definitions are
// immutable once execution starts.
type SeatDefinition struct {
	// RoleID uniquely identifies the seat within its agency. It is the
	// stable key used for addressing, result ordering and persistence.
	RoleID string `json:"role_id"`
	// PersonaID names the agent persona the runtime should instantiate.
	PersonaID string `json:"persona_id"`
	// Instruction is the task text for this seat.
	Instruction string `json:"instruction"`
	// Priority is an optional caller-defined ordering hint.
	Priority int `json:"priority,omitempty"`
	// Metadata carries optional free-form seat annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SeatSnapshot is the live view of one seat's progress. Exactly one snapshot
// exists per seat; the board mutates it in place as the seat advances, and
// every progress emission copies the full current set.
type SeatSnapshot struct {
	RoleID    string `json:"role_id"`
	PersonaID string `json:"persona_id"`
	// GMIInstanceID is assigned once the runtime session starts.
	GMIInstanceID string            `json:"gmi_instance_id,omitempty"`
	Status        SeatStatus        `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
