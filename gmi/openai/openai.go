// Package openai implements the gmi.Runtime boundary on top of the OpenAI
// Chat Completions API with streaming enabled, translating completion deltas
// into incremental chunks and the terminal usage report into the final chunk.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/agencykit/agencykit/core"
	"github.com/agencykit/agencykit/gmi"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI runtime adapter. Fields mirror a minimal
// subset of Chat Completion parameters; extend via functional options
// without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// Personas maps persona ids to system prompts. Unknown personas fall
	// back to a generic prompt naming the persona.
	Personas map[string]string
	// PromptCostPer1K / CompletionCostPer1K convert token counts into the
	// cost reported on usage. Zero disables cost reporting.
	PromptCostPer1K     float64
	CompletionCostPer1K float64
}

// Runtime wraps the OpenAI Chat Completions API behind gmi.Runtime.
type Runtime struct {
	client *openai.Client
	opts   Options
}

// NewRuntime creates a runtime using the default OpenAI client (API key from
// the environment).
func NewRuntime(optFns ...func(o *Options)) *Runtime {
	client := openai.NewClient()
	return NewRuntimeFromClient(&client, optFns...)
}

// NewRuntimeFromClient creates a runtime from an existing client.
func NewRuntimeFromClient(client *openai.Client, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		Personas:            map[string]string{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runtime{client: client, opts: opts}
}

// Open implements gmi.Runtime using a streaming chat completion.
func (r *Runtime) Open(ctx context.Context, session gmi.Session) (<-chan gmi.Chunk, <-chan error) {
	chunkCh := make(chan gmi.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		params := openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(r.systemPrompt(session.PersonaID)),
				openai.UserMessage(session.Instruction),
			},
			Model:               r.opts.Model,
			Temperature:         openai.Float(r.opts.Temperature),
			MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}

		stream := r.client.Chat.Completions.NewStreaming(ctx, params)

		var textBuilder strings.Builder
		var usage *core.TokenUsage

		for stream.Next() {
			ck := stream.Current()
			for _, choice := range ck.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				textBuilder.WriteString(choice.Delta.Content)
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case chunkCh <- gmi.Chunk{Partial: true, Text: choice.Delta.Content}:
				}
			}
			if ck.Usage.TotalTokens > 0 {
				usage = r.convertUsage(ck.Usage)
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
			return
		}

		chunkCh <- gmi.Chunk{Partial: false, Text: textBuilder.String(), Usage: usage}
	}()

	return chunkCh, errCh
}

func (r *Runtime) systemPrompt(personaID string) string {
	if prompt, ok := r.opts.Personas[personaID]; ok {
		return prompt
	}
	return fmt.Sprintf("You are the agent persona %q. Complete the assigned role faithfully.", personaID)
}

func (r *Runtime) convertUsage(u openai.CompletionUsage) *core.TokenUsage {
	return &core.TokenUsage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
		Cost: float64(u.PromptTokens)/1000*r.opts.PromptCostPer1K +
			float64(u.CompletionTokens)/1000*r.opts.CompletionCostPer1K,
	}
}
