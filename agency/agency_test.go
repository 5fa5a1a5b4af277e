package agency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agencykit/agencykit/core"
	"github.com/agencykit/agencykit/emergent"
	"github.com/agencykit/agencykit/gateway"
	"github.com/agencykit/agencykit/gmi"
	"github.com/agencykit/agencykit/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptRuntime is a configurable gmi.Runtime for orchestration tests. It
// records every opened session and tracks how many are in flight.
type scriptRuntime struct {
	mu       sync.Mutex
	sessions []gmi.Session
	inFlight int
	peak     int
	delay    time.Duration
	// script decides the outcome per session; nil scripts echo the persona.
	script func(session gmi.Session) ([]gmi.Chunk, error)
}

func (s *scriptRuntime) Open(ctx context.Context, session gmi.Session) (<-chan gmi.Chunk, <-chan error) {
	s.mu.Lock()
	s.sessions = append(s.sessions, session)
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	chunkCh := make(chan gmi.Chunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)
		defer func() {
			s.mu.Lock()
			s.inFlight--
			s.mu.Unlock()
		}()

		if s.delay > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(s.delay):
			}
		}

		var chunks []gmi.Chunk
		var err error
		if s.script != nil {
			chunks, err = s.script(session)
		} else {
			chunks = []gmi.Chunk{{Partial: false, Text: "output of " + session.PersonaID}}
		}
		if err != nil {
			errCh <- err
			return
		}
		for _, c := range chunks {
			chunkCh <- c
		}
	}()

	return chunkCh, errCh
}

func (s *scriptRuntime) sessionCount(roleID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if strings.Contains(sess.InstanceID, "-"+roleID+"-") {
			n++
		}
	}
	return n
}

// failingGateway errors on every call.
type failingGateway struct{}

func (failingGateway) CreateAgencyExecution(context.Context, gateway.AgencyRecord) error {
	return errors.New("gateway down")
}

func (failingGateway) UpdateAgencyExecution(context.Context, string, gateway.AgencyUpdate) error {
	return errors.New("gateway down")
}

func (failingGateway) MarkAgencyExecutionFailed(context.Context, string, string) error {
	return errors.New("gateway down")
}

func (failingGateway) CreateAgencySeat(context.Context, gateway.SeatRecord) error {
	return errors.New("gateway down")
}

func (failingGateway) UpdateAgencySeat(context.Context, string, string, gateway.SeatUpdate) error {
	return errors.New("gateway down")
}

// recordingSink captures every progress snapshot in order.
type recordingSink struct {
	mu        sync.Mutex
	snapshots []core.ProgressSnapshot
}

func (r *recordingSink) OnChunk(snapshot core.ProgressSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
	return nil
}

func (r *recordingSink) all() []core.ProgressSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.ProgressSnapshot, len(r.snapshots))
	copy(out, r.snapshots)
	return out
}

func reportInput() core.ExecutionInput {
	return core.ExecutionInput{
		Goal: "Report",
		Roles: []core.SeatDefinition{
			{RoleID: "analyst", PersonaID: "p1", Instruction: "compute stats"},
			{RoleID: "writer", PersonaID: "p2", Instruction: "write summary"},
		},
		UserID:         "user-1",
		ConversationID: "conv-1",
	}
}

func fastRetries(o *Options) {
	o.RetryDelay = time.Millisecond
}

func TestExecuteAgency_TwoSeatsSucceed(t *testing.T) {
	rt := gmi.NewMockRuntime()
	rt.AddResponse("p1", "mean=4.2")
	rt.AddResponse("p2", "Numbers trend upward.")
	rt.SetUsage(core.TokenUsage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10})

	g := gateway.NewInMemoryGateway()
	o := New(rt, fastRetries, func(opt *Options) { opt.Gateway = g })

	result, err := o.ExecuteAgency(context.Background(), reportInput())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.AgencyID)
	assert.Equal(t, "Report", result.Goal)
	require.Len(t, result.SeatResults, 2)
	assert.Equal(t, "analyst", result.SeatResults[0].RoleID)
	assert.Equal(t, "writer", result.SeatResults[1].RoleID)
	assert.Equal(t, "mean=4.2", result.SeatResults[0].Output)
	assert.Empty(t, result.SeatResults[0].Error)

	// Consolidated output holds one heading per seat in role order.
	assert.Less(t,
		strings.Index(result.ConsolidatedOutput, "## analyst"),
		strings.Index(result.ConsolidatedOutput, "## writer"))
	assert.Equal(t, core.FormatMarkdown, result.FormattedOutput.Format)

	assert.Equal(t, 20, result.TotalUsage.TotalTokens)
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))

	rec, ok := g.Agency(result.AgencyID)
	require.True(t, ok)
	assert.Equal(t, gateway.AgencyStatusCompleted, rec.Status)
	seat, ok := g.Seat(result.AgencyID, "writer")
	require.True(t, ok)
	assert.Equal(t, core.SeatStatusCompleted, seat.Status)
}

func TestExecuteAgency_RequestedFormatHonored(t *testing.T) {
	rt := gmi.NewMockRuntime()
	o := New(rt, fastRetries)

	input := reportInput()
	input.OutputFormat = core.FormatCSV

	result, err := o.ExecuteAgency(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, core.FormatCSV, result.FormattedOutput.Format)
	assert.Contains(t, result.FormattedOutput.Content, "roleId,personaId,status,output")
	// Markdown prose is produced regardless of the requested format.
	assert.Contains(t, result.ConsolidatedOutput, "# Agency Result: Report")
}

func TestExecuteAgency_ResultOrderIndependentOfCompletion(t *testing.T) {
	// With more seats than workers, completion order diverges from role
	// order; results must still follow role order.
	rt := &scriptRuntime{
		script: func(session gmi.Session) ([]gmi.Chunk, error) {
			return []gmi.Chunk{{Text: "from " + session.PersonaID}}, nil
		},
	}
	rt.delay = 2 * time.Millisecond

	input := core.ExecutionInput{Goal: "Plan", UserID: "u", ConversationID: "c"}
	for i := 0; i < 6; i++ {
		input.Roles = append(input.Roles, core.SeatDefinition{
			RoleID:      fmt.Sprintf("seat-%d", i),
			PersonaID:   fmt.Sprintf("persona-%d", i),
			Instruction: "work",
		})
	}

	o := New(rt, fastRetries)
	result, err := o.ExecuteAgency(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.SeatResults, 6)
	for i, r := range result.SeatResults {
		assert.Equal(t, fmt.Sprintf("seat-%d", i), r.RoleID)
		assert.Equal(t, fmt.Sprintf("from persona-%d", i), r.Output)
	}
}

func TestExecuteAgency_ConcurrencyBounded(t *testing.T) {
	rt := &scriptRuntime{delay: 10 * time.Millisecond}

	input := core.ExecutionInput{Goal: "Plan", UserID: "u", ConversationID: "c"}
	for i := 0; i < 8; i++ {
		input.Roles = append(input.Roles, core.SeatDefinition{
			RoleID:    fmt.Sprintf("seat-%d", i),
			PersonaID: "p",
		})
	}

	o := New(rt, fastRetries, func(opt *Options) { opt.MaxConcurrentSeats = 2 })
	_, err := o.ExecuteAgency(context.Background(), input)
	require.NoError(t, err)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.LessOrEqual(t, rt.peak, 2)
	assert.Len(t, rt.sessions, 8)
}

func TestExecuteAgency_SeatFailsAfterAllAttempts(t *testing.T) {
	sentinel := errors.New("runtime unavailable")
	rt := &scriptRuntime{
		script: func(session gmi.Session) ([]gmi.Chunk, error) {
			if session.PersonaID == "p1" {
				return nil, sentinel
			}
			return []gmi.Chunk{{Text: "summary done"}}, nil
		},
	}

	g := gateway.NewInMemoryGateway()
	o := New(rt, fastRetries, func(opt *Options) { opt.Gateway = g })

	result, err := o.ExecuteAgency(context.Background(), reportInput())
	require.NoError(t, err, "seat failures never raise")

	analyst := result.SeatResults[0]
	assert.Equal(t, "analyst", analyst.RoleID)
	assert.Empty(t, analyst.Output)
	assert.Contains(t, analyst.Error, "runtime unavailable")

	writer := result.SeatResults[1]
	assert.Empty(t, writer.Error)
	assert.Equal(t, "summary done", writer.Output)

	// Default policy: 2 retries means exactly 3 attempts.
	assert.Equal(t, 3, rt.sessionCount("analyst"))
	assert.Equal(t, 1, rt.sessionCount("writer"))

	seat, ok := g.Seat(result.AgencyID, "analyst")
	require.True(t, ok)
	assert.Equal(t, core.SeatStatusFailed, seat.Status)

	// The failed seat is visible in the consolidated output, not omitted.
	assert.Contains(t, result.ConsolidatedOutput, "## analyst")
	assert.Contains(t, result.ConsolidatedOutput, "runtime unavailable")
}

func TestExecuteAgency_SeatRecoversOnRetry(t *testing.T) {
	rt := gmi.NewMockRuntime()
	rt.AddResponse("p1", "recovered")
	rt.AddResponse("p2", "fine")
	rt.FailTimes("p1", 1)

	o := New(rt, fastRetries)
	result, err := o.ExecuteAgency(context.Background(), reportInput())
	require.NoError(t, err)

	analyst := result.SeatResults[0]
	assert.Empty(t, analyst.Error)
	assert.Equal(t, "recovered", analyst.Output)
	// The successful attempt is the second one.
	assert.True(t, strings.HasSuffix(analyst.GMIInstanceID, "-2"), analyst.GMIInstanceID)
}

func TestExecuteAgency_InvalidInput(t *testing.T) {
	rt := &scriptRuntime{}
	o := New(rt, fastRetries)

	_, err := o.ExecuteAgency(context.Background(), core.ExecutionInput{Goal: ""})
	assert.ErrorContains(t, err, "invalid execution input")
	assert.Empty(t, rt.sessions, "no seat may start on invalid input")
}

func TestExecuteAgency_PersistenceFailuresNeverSurface(t *testing.T) {
	rt := gmi.NewMockRuntime()
	rt.AddResponse("p1", "a")
	rt.AddResponse("p2", "b")

	o := New(rt, fastRetries, func(opt *Options) { opt.Gateway = failingGateway{} })

	result, err := o.ExecuteAgency(context.Background(), reportInput())
	require.NoError(t, err)
	require.Len(t, result.SeatResults, 2)
	assert.Equal(t, "a", result.SeatResults[0].Output)
	assert.Equal(t, "b", result.SeatResults[1].Output)
}

func TestExecuteAgency_SinkFailuresNeverSurface(t *testing.T) {
	rt := gmi.NewMockRuntime()
	o := New(rt, fastRetries, func(opt *Options) {
		opt.Sink = sink.Func(func(core.ProgressSnapshot) error { return errors.New("observer gone") })
	})

	_, err := o.ExecuteAgency(context.Background(), reportInput())
	assert.NoError(t, err)
}

func TestExecuteAgency_ProgressSnapshots(t *testing.T) {
	rt := gmi.NewMockRuntime()
	rec := &recordingSink{}
	o := New(rt, fastRetries, func(opt *Options) { opt.Sink = rec })

	result, err := o.ExecuteAgency(context.Background(), reportInput())
	require.NoError(t, err)

	snaps := rec.all()
	require.GreaterOrEqual(t, len(snaps), 3)

	first := snaps[0]
	assert.Equal(t, result.AgencyID, first.AgencyID)
	assert.Equal(t, "conv-1", first.ConversationID)
	assert.False(t, first.IsFinal)
	for _, seat := range first.Seats {
		assert.Equal(t, core.SeatStatusPending, seat.Status)
	}

	// Every emission is a full-state replace.
	for _, s := range snaps {
		assert.Len(t, s.Seats, 2)
	}

	// IsFinal only on the last emission, where all seats are terminal.
	for _, s := range snaps[:len(snaps)-1] {
		assert.False(t, s.IsFinal)
	}
	last := snaps[len(snaps)-1]
	assert.True(t, last.IsFinal)
	for _, seat := range last.Seats {
		assert.True(t, seat.Status.Terminal())
	}
}

type fixedStrategy struct {
	roles    []core.SeatDefinition
	log      map[string]string
	err      error
	disposed bool
}

func (s *fixedStrategy) Transform(_ context.Context, _ core.ExecutionInput) (*emergent.Decomposition, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &emergent.Decomposition{
		Roles:   s.roles,
		Context: emergent.NewContext(s.log, func() { s.disposed = true }),
	}, nil
}

func TestExecuteAgency_EmergentDecomposition(t *testing.T) {
	strategy := &fixedStrategy{
		roles: []core.SeatDefinition{
			{RoleID: "researcher", PersonaID: "p3", Instruction: "dig"},
			{RoleID: "critic", PersonaID: "p4", Instruction: "review"},
			{RoleID: "editor", PersonaID: "p5", Instruction: "polish"},
		},
		log: map[string]string{"plan": "research -> critique -> edit"},
	}

	rt := gmi.NewMockRuntime()
	o := New(rt, fastRetries, func(opt *Options) { opt.Emergent = strategy })

	input := reportInput()
	input.EnableEmergentBehavior = true

	result, err := o.ExecuteAgency(context.Background(), input)
	require.NoError(t, err)

	// The decomposition replaces the caller-supplied roles entirely.
	require.Len(t, result.SeatResults, 3)
	assert.Equal(t, "researcher", result.SeatResults[0].RoleID)
	assert.Equal(t, "critic", result.SeatResults[1].RoleID)
	assert.Equal(t, "editor", result.SeatResults[2].RoleID)

	assert.Equal(t, "research -> critique -> edit", result.EmergentMetadata["plan"])
	assert.True(t, strategy.disposed, "working context must be disposed")
}

func TestExecuteAgency_EmergentFlagWithoutStrategy(t *testing.T) {
	rt := gmi.NewMockRuntime()
	o := New(rt, fastRetries)

	input := reportInput()
	input.EnableEmergentBehavior = true

	result, err := o.ExecuteAgency(context.Background(), input)
	require.NoError(t, err)
	// Pass-through keeps the caller's roles verbatim.
	require.Len(t, result.SeatResults, 2)
	assert.Equal(t, "analyst", result.SeatResults[0].RoleID)
}

func TestExecuteAgency_DecompositionFailureIsSetupError(t *testing.T) {
	strategy := &fixedStrategy{err: errors.New("planner offline")}
	rt := &scriptRuntime{}
	o := New(rt, fastRetries, func(opt *Options) { opt.Emergent = strategy })

	input := reportInput()
	input.EnableEmergentBehavior = true

	_, err := o.ExecuteAgency(context.Background(), input)
	assert.ErrorContains(t, err, "goal decomposition failed")
	assert.Empty(t, rt.sessions)
}

func TestExecuteAgency_ChunkCallbackSeesEveryChunk(t *testing.T) {
	rt := gmi.NewMockRuntime()
	rt.AddResponse("p1", "alpha beta")
	rt.AddResponse("p2", "gamma")

	var mu sync.Mutex
	chunksByRole := map[string]int{}

	o := New(rt, fastRetries, func(opt *Options) {
		opt.OnRuntimeChunk = func(roleID string, chunk gmi.Chunk) {
			mu.Lock()
			chunksByRole[roleID]++
			mu.Unlock()
		}
	})

	_, err := o.ExecuteAgency(context.Background(), reportInput())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	// Partial word chunks plus the final chunk per seat.
	assert.GreaterOrEqual(t, chunksByRole["analyst"], 2)
	assert.GreaterOrEqual(t, chunksByRole["writer"], 2)
}

func TestExecuteAgency_CancelledContext(t *testing.T) {
	rt := &scriptRuntime{delay: 50 * time.Millisecond}
	o := New(rt, fastRetries, func(opt *Options) { opt.MaxRetries = 0 })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	result, err := o.ExecuteAgency(ctx, reportInput())
	require.NoError(t, err, "cancellation after dispatch surfaces as failed seats")
	for _, r := range result.SeatResults {
		assert.NotEmpty(t, r.Error)
	}
}
