// Package gmi defines the agent-runtime boundary: one GMI (generative model
// instance) session turns a seat's instruction into a streamed textual
// response plus usage metrics.
//
// The engine consumes runtimes through the Runtime interface and never
// assumes a particular provider; adapters for real providers live in the
// gmi/anthropic and gmi/openai subpackages, and MockRuntime serves tests and
// examples.
package gmi

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agencykit/agencykit/core"
)

// Session identifies one runtime invocation. InstanceID is unique per
// seat+agency+attempt so repeated attempts never collide.
type Session struct {
	InstanceID     string `json:"instance_id"`
	AgencyID       string `json:"agency_id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	// PersonaID names the agent persona to instantiate.
	PersonaID string `json:"persona_id"`
	// Instruction is the full composite task text for this session.
	Instruction string `json:"instruction"`
}

// Chunk is one streamed fragment of a runtime response. A partial chunk
// carries an incremental text delta; the final chunk carries the full
// authoritative text. Usage may appear on any chunk; consumers keep the last
// one reported.
type Chunk struct {
	// Partial marks an incremental delta; false marks the final response.
	Partial bool `json:"partial"`
	// Text is the delta for partial chunks and the complete response text
	// for the final chunk.
	Text  string           `json:"text"`
	Usage *core.TokenUsage `json:"usage,omitempty"`
}

// Runtime opens streaming sessions against an agent runtime.
//
// Open returns a chunk channel and an error channel. Both are closed when
// the session ends; the error channel carries at most one terminal error.
// Implementations must honor context cancellation.
type Runtime interface {
	Open(ctx context.Context, session Session) (<-chan Chunk, <-chan error)
}

// MockRuntime is a lightweight in-memory Runtime for tests and examples.
// Responses are keyed by persona id; unknown personas get a generated echo
// response. Scripted failures let tests exercise retry behavior. Safe for
// concurrent sessions.
type MockRuntime struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]int
	usage     *core.TokenUsage
}

// NewMockRuntime constructs an empty mock runtime.
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		responses: make(map[string]string),
		failures:  make(map[string]int),
	}
}

// AddResponse registers a canned response for a persona.
func (m *MockRuntime) AddResponse(personaID, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[personaID] = response
}

// FailTimes makes the next n sessions for a persona end with an error before
// any text is produced.
func (m *MockRuntime) FailTimes(personaID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[personaID] = n
}

// SetUsage attaches fixed usage metrics to every final chunk.
func (m *MockRuntime) SetUsage(usage core.TokenUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = &usage
}

// Open implements Runtime; it streams the canned response word by word and
// finishes with a final chunk carrying the full text.
func (m *MockRuntime) Open(ctx context.Context, session Session) (<-chan Chunk, <-chan error) {
	chunkCh := make(chan Chunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		m.mu.Lock()
		fail := m.failures[session.PersonaID] > 0
		if fail {
			m.failures[session.PersonaID]--
		}
		full, ok := m.responses[session.PersonaID]
		usage := m.usage
		m.mu.Unlock()

		if fail {
			errCh <- fmt.Errorf("mock runtime failure for persona %s", session.PersonaID)
			return
		}
		if !ok {
			full = fmt.Sprintf("Mock response to: %s", session.Instruction)
		}

		for _, word := range strings.SplitAfter(full, " ") {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case chunkCh <- Chunk{Partial: true, Text: word}:
			}
		}

		chunkCh <- Chunk{Partial: false, Text: full, Usage: usage}
	}()

	return chunkCh, errCh
}
