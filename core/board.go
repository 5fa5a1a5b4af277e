package core

import "sync"

// SeatBoard holds the authoritative current state of every seat in one
// agency run. It is safe for concurrent access: each in-flight seat task
// mutates only its own entry while progress emissions read the full set.
//
// Contract:
//   - Seat ordering matches the effective role list and never changes
//   - Status transitions only move forward; regressions are ignored
//   - Snapshots returns defensive copies so callers cannot mutate state
type SeatBoard struct {
	mu    sync.RWMutex
	order []string
	seats map[string]*SeatSnapshot
}

// NewSeatBoard builds a board with one pending snapshot per definition,
// preserving definition order.
func NewSeatBoard(defs []SeatDefinition) *SeatBoard {
	b := &SeatBoard{seats: make(map[string]*SeatSnapshot, len(defs))}
	for _, def := range defs {
		b.order = append(b.order, def.RoleID)
		b.seats[def.RoleID] = &SeatSnapshot{
			RoleID:    def.RoleID,
			PersonaID: def.PersonaID,
			Status:    SeatStatusPending,
			Metadata:  def.Metadata,
		}
	}
	return b
}

// SetStatus advances a seat's status. Backward transitions (including any
// change away from a terminal state) are ignored; it reports whether the
// status was applied.
func (b *SeatBoard) SetStatus(roleID string, status SeatStatus) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	seat, ok := b.seats[roleID]
	if !ok {
		return false
	}
	if status.rank() <= seat.Status.rank() {
		return false
	}
	seat.Status = status
	return true
}

// SetGMIInstance records the runtime session id assigned to a seat.
func (b *SeatBoard) SetGMIInstance(roleID, instanceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seat, ok := b.seats[roleID]; ok {
		seat.GMIInstanceID = instanceID
	}
}

// Status returns the current status of a seat.
func (b *SeatBoard) Status(roleID string) (SeatStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seat, ok := b.seats[roleID]
	if !ok {
		return "", false
	}
	return seat.Status, true
}

// Snapshots returns a copy of all seat snapshots in board order.
func (b *SeatBoard) Snapshots() []SeatSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]SeatSnapshot, 0, len(b.order))
	for _, roleID := range b.order {
		out = append(out, *b.seats[roleID])
	}
	return out
}

// AllTerminal reports whether every seat reached a final status.
func (b *SeatBoard) AllTerminal() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, seat := range b.seats {
		if !seat.Status.Terminal() {
			return false
		}
	}
	return true
}

// Len returns the number of seats on the board.
func (b *SeatBoard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}
