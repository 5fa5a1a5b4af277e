package agency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agencykit/agencykit/core"
	"github.com/agencykit/agencykit/gateway"
)

// seatRun bundles everything one seat execution needs. The board is shared
// across all in-flight seats; each run mutates only its own entry.
type seatRun struct {
	agencyID       string
	conversationID string
	userID         string
	goal           string
	seat           core.SeatDefinition
	board          *core.SeatBoard
}

// runSeatWithRetry drives one seat through the pending -> running ->
// {completed, failed} state machine with bounded retries and a fixed
// inter-attempt delay.
//
// It never returns an error: after maxRetries+1 failed attempts it produces
// a synthetic result carrying the last error and an empty output, so the
// orchestrator can always proceed with partial results. Every attempt
// transition is persisted best-effort and emitted as a progress snapshot.
func (o *Orchestrator) runSeatWithRetry(ctx context.Context, run seatRun) core.SeatResult {
	attempts := o.maxRetries + 1
	roleID := run.seat.RoleID

	var lastErr error
	var lastInstanceID string

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
			case <-time.After(o.retryDelay):
			}
			// A cancelled run stops retrying; the seat terminates as failed
			// with the context error.
			if ctx.Err() != nil {
				lastErr = ctx.Err()
				break
			}
		}

		// One runtime session per seat+agency+attempt.
		instanceID := fmt.Sprintf("gmi-%s-%s-%d", run.agencyID, roleID, attempt)
		lastInstanceID = instanceID

		run.board.SetStatus(roleID, core.SeatStatusRunning)
		run.board.SetGMIInstance(roleID, instanceID)
		o.persist("update agency seat", func() error {
			return o.gateway.UpdateAgencySeat(ctx, run.agencyID, roleID, gateway.SeatUpdate{
				Status:        core.SeatStatusRunning,
				GMIInstanceID: instanceID,
				Attempt:       attempt,
			})
		})
		o.emit(run.agencyID, run.conversationID, run.board, false)

		result, err := o.executeSeat(ctx, run, instanceID)
		if err == nil && !result.Failed() {
			run.board.SetStatus(roleID, core.SeatStatusCompleted)
			o.persist("update agency seat", func() error {
				return o.gateway.UpdateAgencySeat(ctx, run.agencyID, roleID, gateway.SeatUpdate{
					Status:        core.SeatStatusCompleted,
					GMIInstanceID: instanceID,
					Attempt:       attempt,
				})
			})
			o.emit(run.agencyID, run.conversationID, run.board, false)
			return result
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New(result.Error)
		}
		o.logger.Warn("seat attempt failed",
			"agency_id", run.agencyID, "role_id", roleID,
			"attempt", attempt, "max_attempts", attempts, "error", lastErr)
	}

	run.board.SetStatus(roleID, core.SeatStatusFailed)
	errMsg := "seat execution failed"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	o.persist("update agency seat", func() error {
		return o.gateway.UpdateAgencySeat(ctx, run.agencyID, roleID, gateway.SeatUpdate{
			Status:        core.SeatStatusFailed,
			GMIInstanceID: lastInstanceID,
			Attempt:       attempts,
			Error:         errMsg,
		})
	})
	o.emit(run.agencyID, run.conversationID, run.board, false)

	return core.SeatResult{
		RoleID:        roleID,
		PersonaID:     run.seat.PersonaID,
		GMIInstanceID: lastInstanceID,
		Output:        "",
		Metadata:      run.seat.Metadata,
		Error:         errMsg,
	}
}
