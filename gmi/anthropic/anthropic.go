// Package anthropic implements the gmi.Runtime boundary on top of the
// Anthropic Messages API. Responses are produced non-streaming and emitted
// as a single final chunk carrying text and usage.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/agencykit/agencykit/core"
	"github.com/agencykit/agencykit/gmi"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Options configures the Anthropic runtime adapter (model id, temperature,
// max tokens, API key, persona prompts, pricing).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// Personas maps persona ids to system prompts. Unknown personas fall
	// back to a generic prompt naming the persona.
	Personas map[string]string
	// PromptCostPer1K / CompletionCostPer1K convert token counts into the
	// cost reported on usage. Zero disables cost reporting.
	PromptCostPer1K     float64
	CompletionCostPer1K float64
}

// Runtime wraps the Anthropic Messages API behind gmi.Runtime.
type Runtime struct {
	client *anthropic.Client
	opts   Options
}

// NewRuntime creates a runtime using the official client.
func NewRuntime(optFns ...func(o *Options)) *Runtime {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Runtime{client: &client, opts: opts}
}

// NewRuntimeFromClient creates a runtime from an existing client.
func NewRuntimeFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Runtime {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runtime{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
		Personas:    map[string]string{},
	}
}

// Open implements gmi.Runtime with a single request/response round trip.
func (r *Runtime) Open(ctx context.Context, session gmi.Session) (<-chan gmi.Chunk, <-chan error) {
	chunkCh := make(chan gmi.Chunk, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       r.opts.Model,
			MaxTokens:   r.opts.MaxTokens,
			Temperature: anthropic.Float(r.opts.Temperature),
			System: []anthropic.TextBlockParam{
				{Text: r.systemPrompt(session.PersonaID)},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(session.Instruction)),
			},
		}

		resp, err := r.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var textBuilder strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				textBuilder.WriteString(block.AsText().Text)
			}
		}

		chunkCh <- gmi.Chunk{
			Partial: false,
			Text:    textBuilder.String(),
			Usage:   r.convertUsage(resp.Usage),
		}
	}()

	return chunkCh, errCh
}

func (r *Runtime) systemPrompt(personaID string) string {
	if prompt, ok := r.opts.Personas[personaID]; ok {
		return prompt
	}
	return fmt.Sprintf("You are the agent persona %q. Complete the assigned role faithfully.", personaID)
}

func (r *Runtime) convertUsage(u anthropic.Usage) *core.TokenUsage {
	return &core.TokenUsage{
		PromptTokens:     int(u.InputTokens),
		CompletionTokens: int(u.OutputTokens),
		TotalTokens:      int(u.InputTokens + u.OutputTokens),
		Cost: float64(u.InputTokens)/1000*r.opts.PromptCostPer1K +
			float64(u.OutputTokens)/1000*r.opts.CompletionCostPer1K,
	}
}
