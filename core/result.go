package core

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a unique identifier for agencies, seats and runtime
// sessions.
func NewID() string { return uuid.NewString() }

// SeatResult is the terminal outcome of one seat, win or lose. Exactly one
// is produced per seat; a non-empty Error always pairs with a failed seat
// snapshot.
type SeatResult struct {
	RoleID        string            `json:"role_id"`
	PersonaID     string            `json:"persona_id"`
	GMIInstanceID string            `json:"gmi_instance_id,omitempty"`
	Output        string            `json:"output"`
	Usage         *TokenUsage       `json:"usage,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Failed reports whether the seat terminated with an error.
func (r SeatResult) Failed() bool { return r.Error != "" }

// FormattedOutput pairs the requested output format with its rendered
// content.
type FormattedOutput struct {
	Format  OutputFormat `json:"format"`
	Content string       `json:"content"`
}

// ExecutionResult is the complete outcome of one agency run. SeatResults
// always has the same length and ordering as the effective role list,
// independent of completion order.
type ExecutionResult struct {
	AgencyID           string            `json:"agency_id"`
	Goal               string            `json:"goal"`
	SeatResults        []SeatResult      `json:"gmi_results"`
	ConsolidatedOutput string            `json:"consolidated_output"`
	FormattedOutput    FormattedOutput   `json:"formatted_output"`
	DurationMs         int64             `json:"duration_ms"`
	TotalUsage         TokenUsage        `json:"total_usage"`
	EmergentMetadata   map[string]string `json:"emergent_metadata,omitempty"`
}

// ProgressSnapshot is one full-state progress emission. Consumers must treat
// each snapshot as a replacement of the previous one, not a diff; delivery is
// at-least-once and best-effort.
type ProgressSnapshot struct {
	AgencyID       string         `json:"agency_id"`
	ConversationID string         `json:"conversation_id"`
	Seats          []SeatSnapshot `json:"seats"`
	// IsFinal is true exactly when every seat reached a terminal status.
	IsFinal   bool      `json:"is_final"`
	Timestamp time.Time `json:"timestamp"`
}
