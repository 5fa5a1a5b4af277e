package core

import (
	"errors"
	"fmt"
)

// OutputFormat selects the representation of the consolidated agency output.
type OutputFormat string

const (
	// FormatMarkdown renders one heading per seat with separators (default).
	FormatMarkdown OutputFormat = "markdown"
	// FormatJSON renders a pretty-printed dump of the result array.
	FormatJSON OutputFormat = "json"
	// FormatCSV renders one quoted row per seat.
	FormatCSV OutputFormat = "csv"
	// FormatText renders one "[roleId] output" line per seat.
	FormatText OutputFormat = "text"
)

// Valid reports whether the format is one of the supported variants.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatMarkdown, FormatJSON, FormatCSV, FormatText:
		return true
	default:
		return false
	}
}

// ExecutionInput is the caller-supplied description of one agency run:
// a shared goal plus the ordered seat assignments working toward it.
type ExecutionInput struct {
	// Goal is the shared objective text all seats work toward.
	Goal string `json:"goal"`
	// Roles is the ordered seat list. With emergent behavior enabled it may
	// be replaced by the decomposition strategy before dispatch.
	Roles          []SeatDefinition `json:"roles"`
	UserID         string           `json:"user_id"`
	ConversationID string           `json:"conversation_id"`
	// WorkflowDefinitionID optionally links the run to a stored workflow.
	WorkflowDefinitionID string `json:"workflow_definition_id,omitempty"`
	// OutputFormat selects the formatted output variant; empty means markdown.
	OutputFormat OutputFormat      `json:"output_format,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	// EnableEmergentBehavior lets the decomposition strategy reshape the
	// seat list before execution.
	EnableEmergentBehavior bool `json:"enable_emergent_behavior,omitempty"`
}

// Validate checks the input before any seat is dispatched. Violations here
// are the only failures surfaced as errors from an agency execution.
func (in ExecutionInput) Validate() error {
	if in.Goal == "" {
		return errors.New("goal must not be empty")
	}
	if len(in.Roles) == 0 {
		return errors.New("at least one role is required")
	}
	seen := make(map[string]struct{}, len(in.Roles))
	for i, role := range in.Roles {
		if role.RoleID == "" {
			return fmt.Errorf("role %d: role id must not be empty", i)
		}
		if role.PersonaID == "" {
			return fmt.Errorf("role %q: persona id must not be empty", role.RoleID)
		}
		if _, dup := seen[role.RoleID]; dup {
			return fmt.Errorf("duplicate role id %q", role.RoleID)
		}
		seen[role.RoleID] = struct{}{}
	}
	if in.OutputFormat != "" && !in.OutputFormat.Valid() {
		return fmt.Errorf("unsupported output format %q", in.OutputFormat)
	}
	return nil
}

// EffectiveFormat returns the requested output format or the markdown default.
func (in ExecutionInput) EffectiveFormat() OutputFormat {
	if in.OutputFormat == "" {
		return FormatMarkdown
	}
	return in.OutputFormat
}
