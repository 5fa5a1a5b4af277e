// Package core provides the foundational domain types shared across the
// AgencyKit engine. It defines the core abstractions for:
//
//   - Seats (role assignments binding a persona to an instruction)
//   - Execution inputs and results for a whole agency run
//   - The live seat board (concurrency-safe status snapshots)
//   - Token usage accounting across seats
//
// The package intentionally keeps implementation concerns (persistence,
// runtime adapters, orchestration) out of scope, exposing plain data types
// and small helpers so higher layers stay decoupled.
package core
