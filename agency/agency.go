// Package agency implements the multi-agent agency execution engine: given
// a shared goal and a set of seat assignments it drives one runtime session
// per seat, bounds how many run concurrently, retries failing seats,
// streams live progress snapshots and consolidates the per-seat outputs
// into a single result.
package agency

import (
	"context"
	"fmt"
	"time"

	"github.com/agencykit/agencykit/consolidate"
	"github.com/agencykit/agencykit/core"
	"github.com/agencykit/agencykit/emergent"
	"github.com/agencykit/agencykit/gateway"
	"github.com/agencykit/agencykit/gmi"
	"github.com/agencykit/agencykit/logging"
	"github.com/agencykit/agencykit/pool"
	"github.com/agencykit/agencykit/sink"
)

const (
	// DefaultMaxConcurrentSeats balances throughput against runtime and
	// provider rate limits. Tunable via Options.
	DefaultMaxConcurrentSeats = 4
	// DefaultMaxRetries is the number of additional attempts after the
	// first failure of a seat.
	DefaultMaxRetries = 2
	// DefaultRetryDelay is the fixed inter-attempt delay.
	DefaultRetryDelay = 1000 * time.Millisecond
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MaxConcurrentSeats limits how many seats execute at once. The
	// effective limit for a run is min(MaxConcurrentSeats, seat count).
	MaxConcurrentSeats int
	// MaxRetries is the number of retries per seat; a seat makes
	// MaxRetries+1 attempts before it is recorded as failed.
	MaxRetries int
	// RetryDelay is the fixed delay between attempts of the same seat.
	RetryDelay time.Duration
	// Gateway durably records agency/seat lifecycle. All calls are
	// best-effort; failures are logged and never abort execution.
	Gateway gateway.Gateway
	// Sink receives full-state progress snapshots.
	Sink sink.Sink
	// Emergent is the goal-decomposition strategy used when an input sets
	// EnableEmergentBehavior. Nil falls back to pass-through.
	Emergent emergent.Strategy
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// OnRuntimeChunk, when set, receives every runtime chunk of every seat
	// unmodified, keyed by role id.
	OnRuntimeChunk func(roleID string, chunk gmi.Chunk)
}

// Orchestrator coordinates agency executions against one agent runtime.
// Public methods are safe for concurrent use.
type Orchestrator struct {
	runtime gmi.Runtime

	maxConcurrentSeats int
	maxRetries         int
	retryDelay         time.Duration

	gateway  gateway.Gateway
	sink     sink.Sink
	emergent emergent.Strategy
	logger   logging.Logger
	onChunk  func(roleID string, chunk gmi.Chunk)
}

// New constructs an Orchestrator with optional overrides.
func New(runtime gmi.Runtime, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxConcurrentSeats: DefaultMaxConcurrentSeats,
		MaxRetries:         DefaultMaxRetries,
		RetryDelay:         DefaultRetryDelay,
		Gateway:            gateway.NoOpGateway{},
		Sink:               sink.NoOp{},
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrentSeats < 1 {
		opts.MaxConcurrentSeats = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Orchestrator{
		runtime:            runtime,
		maxConcurrentSeats: opts.MaxConcurrentSeats,
		maxRetries:         opts.MaxRetries,
		retryDelay:         opts.RetryDelay,
		gateway:            opts.Gateway,
		sink:               opts.Sink,
		emergent:           opts.Emergent,
		logger:             opts.Logger,
		onChunk:            opts.OnRuntimeChunk,
	}
}

// ExecuteAgency runs one agency to completion and returns its result.
//
// It only returns an error for failures occurring before any seat is
// dispatched (invalid input, decomposition failure). Seat-level failures
// are isolated, retried per policy and surface as failed seat results in
// the returned ExecutionResult; the caller always receives a complete
// result for any input that passes validation, even when every seat
// failed.
func (o *Orchestrator) ExecuteAgency(ctx context.Context, input core.ExecutionInput) (*core.ExecutionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid execution input: %w", err)
	}

	agencyID := core.NewID()
	start := time.Now()

	o.logger.Info("agency execution started", "agency_id", agencyID, "goal", input.Goal, "seats", len(input.Roles))

	o.persist("create agency execution", func() error {
		return o.gateway.CreateAgencyExecution(ctx, gateway.AgencyRecord{
			AgencyID:             agencyID,
			Goal:                 input.Goal,
			UserID:               input.UserID,
			ConversationID:       input.ConversationID,
			WorkflowDefinitionID: input.WorkflowDefinitionID,
			Status:               gateway.AgencyStatusRunning,
			CreatedAt:            start,
		})
	})

	roles, emergentCtx, err := o.resolveRoles(ctx, input)
	if err != nil {
		o.persist("mark agency execution failed", func() error {
			return o.gateway.MarkAgencyExecutionFailed(ctx, agencyID, err.Error())
		})
		return nil, fmt.Errorf("goal decomposition failed: %w", err)
	}
	defer emergentCtx.Dispose()

	board := core.NewSeatBoard(roles)
	for _, role := range roles {
		role := role
		o.persist("create agency seat", func() error {
			return o.gateway.CreateAgencySeat(ctx, gateway.SeatRecord{
				AgencyID:    agencyID,
				RoleID:      role.RoleID,
				PersonaID:   role.PersonaID,
				Instruction: role.Instruction,
				Status:      core.SeatStatusPending,
				CreatedAt:   time.Now(),
			})
		})
	}

	// Initial snapshot: all seats pending.
	o.emit(agencyID, input.ConversationID, board, false)

	tasks := make([]pool.Task[core.SeatResult], len(roles))
	for i, role := range roles {
		run := seatRun{
			agencyID:       agencyID,
			conversationID: input.ConversationID,
			userID:         input.UserID,
			goal:           input.Goal,
			seat:           role,
			board:          board,
		}
		tasks[i] = func(taskCtx context.Context) (core.SeatResult, error) {
			return o.runSeatWithRetry(taskCtx, run), nil
		}
	}

	limit := o.maxConcurrentSeats
	if limit > len(roles) {
		limit = len(roles)
	}

	// The retry wrapper never returns an error, so the scheduler cannot
	// fail here.
	results, err := pool.Run(ctx, limit, tasks)
	if err != nil {
		return nil, err
	}

	result := &core.ExecutionResult{
		AgencyID:           agencyID,
		Goal:               input.Goal,
		SeatResults:        results,
		ConsolidatedOutput: consolidate.Consolidate(input.Goal, results),
		FormattedOutput:    consolidate.Format(input.EffectiveFormat(), input.Goal, results),
		DurationMs:         time.Since(start).Milliseconds(),
		TotalUsage:         core.SumUsage(results),
	}
	if emergentCtx != nil {
		result.EmergentMetadata = emergentCtx.CoordinationLog
	}

	// Final snapshot: isFinal once every seat reached a terminal status.
	o.emit(agencyID, input.ConversationID, board, true)

	o.persist("update agency execution", func() error {
		return o.gateway.UpdateAgencyExecution(ctx, agencyID, gateway.AgencyUpdate{
			Status: gateway.AgencyStatusCompleted,
			Result: result,
		})
	})

	o.logger.Info("agency execution finished", "agency_id", agencyID, "duration_ms", result.DurationMs)

	return result, nil
}

// resolveRoles applies the decomposition strategy when emergent behavior is
// requested, otherwise uses the input roles verbatim.
func (o *Orchestrator) resolveRoles(ctx context.Context, input core.ExecutionInput) ([]core.SeatDefinition, *emergent.Context, error) {
	if !input.EnableEmergentBehavior {
		return input.Roles, nil, nil
	}

	strategy := o.emergent
	if strategy == nil {
		strategy = emergent.Passthrough{}
	}

	dec, err := strategy.Transform(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	if len(dec.Roles) == 0 {
		return nil, nil, fmt.Errorf("decomposition produced no roles")
	}
	return dec.Roles, dec.Context, nil
}

// persist runs one gateway call best-effort: a failure is logged and never
// affects control flow.
func (o *Orchestrator) persist(op string, fn func() error) {
	if err := fn(); err != nil {
		o.logger.Warn("persistence call failed", "op", op, "error", err)
	}
}

// emit delivers a full-state progress snapshot to the sink best-effort.
// IsFinal is only ever set on the closing emission of a run.
func (o *Orchestrator) emit(agencyID, conversationID string, board *core.SeatBoard, final bool) {
	snapshot := core.ProgressSnapshot{
		AgencyID:       agencyID,
		ConversationID: conversationID,
		Seats:          board.Snapshots(),
		IsFinal:        final && board.AllTerminal(),
		Timestamp:      time.Now().UTC(),
	}
	if err := o.sink.OnChunk(snapshot); err != nil {
		o.logger.Warn("progress emission failed", "agency_id", agencyID, "error", err)
	}
}
