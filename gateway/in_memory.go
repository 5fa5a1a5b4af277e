package gateway

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryGateway is a volatile Gateway implementation storing records in
// process-local maps. It is safe for concurrent access and best suited for
// tests and examples. Returned records are copies to prevent external
// mutation of internal state.
type InMemoryGateway struct {
	mu       sync.RWMutex
	agencies map[string]*AgencyRecord
	updates  map[string][]AgencyUpdate
	seats    map[string]map[string]*SeatRecord
	seatLog  map[string][]SeatUpdate
}

// NewInMemoryGateway constructs an empty in-memory gateway.
func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{
		agencies: make(map[string]*AgencyRecord),
		updates:  make(map[string][]AgencyUpdate),
		seats:    make(map[string]map[string]*SeatRecord),
		seatLog:  make(map[string][]SeatUpdate),
	}
}

// CreateAgencyExecution implements Gateway.
func (g *InMemoryGateway) CreateAgencyExecution(_ context.Context, rec AgencyRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	stored := rec
	g.agencies[rec.AgencyID] = &stored
	return nil
}

// UpdateAgencyExecution implements Gateway.
func (g *InMemoryGateway) UpdateAgencyExecution(_ context.Context, agencyID string, update AgencyUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rec, ok := g.agencies[agencyID]; ok {
		rec.Status = update.Status
	}
	g.updates[agencyID] = append(g.updates[agencyID], update)
	return nil
}

// MarkAgencyExecutionFailed implements Gateway.
func (g *InMemoryGateway) MarkAgencyExecutionFailed(ctx context.Context, agencyID, reason string) error {
	return g.UpdateAgencyExecution(ctx, agencyID, AgencyUpdate{Status: AgencyStatusFailed + ": " + reason})
}

// CreateAgencySeat implements Gateway.
func (g *InMemoryGateway) CreateAgencySeat(_ context.Context, rec SeatRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	seats, ok := g.seats[rec.AgencyID]
	if !ok {
		seats = make(map[string]*SeatRecord)
		g.seats[rec.AgencyID] = seats
	}
	stored := rec
	seats[rec.RoleID] = &stored
	return nil
}

// UpdateAgencySeat implements Gateway.
func (g *InMemoryGateway) UpdateAgencySeat(_ context.Context, agencyID, roleID string, update SeatUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seats, ok := g.seats[agencyID]; ok {
		if seat, ok := seats[roleID]; ok {
			seat.Status = update.Status
		}
	}
	key := seatKey(agencyID, roleID)
	g.seatLog[key] = append(g.seatLog[key], update)
	return nil
}

// Agency returns a copy of the stored agency record.
func (g *InMemoryGateway) Agency(agencyID string) (AgencyRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.agencies[agencyID]
	if !ok {
		return AgencyRecord{}, false
	}
	return *rec, true
}

// Seat returns a copy of the stored seat record.
func (g *InMemoryGateway) Seat(agencyID, roleID string) (SeatRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seats, ok := g.seats[agencyID]
	if !ok {
		return SeatRecord{}, false
	}
	rec, ok := seats[roleID]
	if !ok {
		return SeatRecord{}, false
	}
	return *rec, true
}

// SeatUpdates returns the ordered transition log recorded for one seat.
func (g *InMemoryGateway) SeatUpdates(agencyID, roleID string) []SeatUpdate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	log := g.seatLog[seatKey(agencyID, roleID)]
	out := make([]SeatUpdate, len(log))
	copy(out, log)
	return out
}

func seatKey(agencyID, roleID string) string {
	return fmt.Sprintf("%s/%s", agencyID, roleID)
}
