package agency

import (
	"context"
	"fmt"
	"strings"

	"github.com/agencykit/agencykit/core"
	"github.com/agencykit/agencykit/gmi"
	"github.com/agencykit/agencykit/internal/util"
)

// executeSeat drives one runtime session to completion and folds its chunk
// stream into a single seat result.
//
// The fold accumulates incremental text deltas, prefers the final
// authoritative response text over accumulated deltas when both exist,
// keeps the last usage reported on any chunk and forwards every chunk
// unmodified to the optional chunk callback. An empty output is valid; the
// attempt only fails if the runtime reported an error.
//
// Seat instructions may reference the goal and seat identity with template
// placeholders ({{.Goal}}, {{.RoleID}}, {{.PersonaID}}); plain instructions
// pass through untouched.
func (o *Orchestrator) executeSeat(ctx context.Context, run seatRun, instanceID string) (core.SeatResult, error) {
	instruction, err := util.RenderInstruction(run.seat.Instruction, map[string]any{
		"Goal":      run.goal,
		"RoleID":    run.seat.RoleID,
		"PersonaID": run.seat.PersonaID,
	})
	if err != nil {
		return core.SeatResult{}, err
	}

	session := gmi.Session{
		InstanceID:     instanceID,
		AgencyID:       run.agencyID,
		ConversationID: run.conversationID,
		UserID:         run.userID,
		PersonaID:      run.seat.PersonaID,
		Instruction:    compositeInstruction(run.goal, instruction),
	}

	chunkCh, errCh := o.runtime.Open(ctx, session)

	var deltas strings.Builder
	var finalText string
	var sawFinal bool
	var usage *core.TokenUsage

	for chunkCh != nil || errCh != nil {
		select {
		case chunk, ok := <-chunkCh:
			if !ok {
				chunkCh = nil
				continue
			}
			if o.onChunk != nil {
				o.onChunk(run.seat.RoleID, chunk)
			}
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
			if chunk.Partial {
				deltas.WriteString(chunk.Text)
			} else {
				finalText = chunk.Text
				sawFinal = true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return core.SeatResult{}, err
			}
		}
	}

	output := deltas.String()
	if sawFinal && finalText != "" {
		output = finalText
	}

	return core.SeatResult{
		RoleID:        run.seat.RoleID,
		PersonaID:     run.seat.PersonaID,
		GMIInstanceID: instanceID,
		Output:        strings.TrimSpace(output),
		Usage:         usage,
		Metadata:      run.seat.Metadata,
	}, nil
}

// compositeInstruction builds the per-seat task text from the shared goal
// and the seat's own instruction.
func compositeInstruction(goal, instruction string) string {
	return fmt.Sprintf("Goal: %s\n\nRole: %s", goal, instruction)
}
