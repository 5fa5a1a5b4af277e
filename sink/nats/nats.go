// Package nats publishes progress snapshots to a NATS subject so external
// observers can follow agency runs without coupling to the engine process.
package nats

import (
	"encoding/json"
	"fmt"

	"github.com/agencykit/agencykit/core"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix prefixes the per-agency subject when none is set.
const DefaultSubjectPrefix = "agency.progress"

// Sink publishes JSON-encoded snapshots to "<prefix>.<agencyId>".
type Sink struct {
	conn   *nats.Conn
	prefix string
}

// New connects to the NATS server at url.
func New(url string, optFns ...func(s *Sink)) (*Sink, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewFromConn(conn, optFns...), nil
}

// NewFromConn wraps an existing connection.
func NewFromConn(conn *nats.Conn, optFns ...func(s *Sink)) *Sink {
	s := &Sink{conn: conn, prefix: DefaultSubjectPrefix}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// WithSubjectPrefix overrides the subject prefix.
func WithSubjectPrefix(prefix string) func(s *Sink) {
	return func(s *Sink) { s.prefix = prefix }
}

// OnChunk implements sink.Sink.
func (s *Sink) OnChunk(snapshot core.ProgressSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", s.prefix, snapshot.AgencyID)
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the connection.
func (s *Sink) Close() {
	_ = s.conn.Flush()
	s.conn.Close()
}
