// Package agencykit provides a high-level façade over the agency
// orchestrator and its supporting services (persistence gateway, progress
// sink & logging) enabling rapid construction of multi‑agent execution
// pipelines. Most applications interact with this package by:
//  1. Creating an AgencyKit via New() with a gmi.Runtime (optionally
//     overriding the default in‑memory services)
//  2. Describing the work as a core.ExecutionInput (goal plus seats)
//  3. Executing it with Execute and reading the consolidated result
//
// The façade delegates orchestration to agency.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a
// durable gateway, a broker-backed sink and a structured logger.
package agencykit

import (
	"context"

	"github.com/agencykit/agencykit/agency"
	"github.com/agencykit/agencykit/core"
	"github.com/agencykit/agencykit/emergent"
	"github.com/agencykit/agencykit/gateway"
	"github.com/agencykit/agencykit/gmi"
	"github.com/agencykit/agencykit/logging"
	"github.com/agencykit/agencykit/sink"
)

// Options configures the AgencyKit instance.
type Options struct {
	// MaxConcurrentSeats limits the number of seats that can execute
	// simultaneously. This prevents resource exhaustion and provides
	// backpressure against the underlying runtime.
	MaxConcurrentSeats int

	// MaxRetries is the per-seat retry budget. A seat makes at most
	// MaxRetries+1 attempts before it is marked failed.
	MaxRetries int

	// Gateway persists execution and seat lifecycle records
	// (defaults to an in-memory implementation if not provided).
	Gateway gateway.Gateway

	// Sink receives progress snapshots as seats change state
	// (defaults to a no-op sink if not provided).
	Sink sink.Sink

	// Emergent transforms the goal into seats when the input requests
	// emergent behavior.
	Emergent emergent.Strategy

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgencyKit is the high-level façade aggregating the orchestrator and services.
type AgencyKit struct {
	opts         Options
	orchestrator *agency.Orchestrator
}

// New creates a new AgencyKit instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(runtime gmi.Runtime, optFns ...func(o *Options)) *AgencyKit {
	opts := Options{
		MaxConcurrentSeats: agency.DefaultMaxConcurrentSeats,
		MaxRetries:         agency.DefaultMaxRetries,
		Gateway:            gateway.NewInMemoryGateway(),
		Sink:               sink.NoOp{},
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	o := agency.New(runtime, func(ao *agency.Options) {
		ao.MaxConcurrentSeats = opts.MaxConcurrentSeats
		ao.MaxRetries = opts.MaxRetries
		ao.Gateway = opts.Gateway
		ao.Sink = opts.Sink
		ao.Emergent = opts.Emergent
		ao.Logger = opts.Logger
	})

	return &AgencyKit{opts: opts, orchestrator: o}
}

// Execute runs one agency to completion and returns the consolidated result.
func (k *AgencyKit) Execute(ctx context.Context, input core.ExecutionInput) (*core.ExecutionResult, error) {
	return k.orchestrator.ExecuteAgency(ctx, input)
}
