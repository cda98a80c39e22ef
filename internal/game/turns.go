// internal/game/turns.go
package game

import "github.com/google/uuid"

// AliveFunc reports whether a participant may still take turns.
type AliveFunc func(id uuid.UUID) bool

// TurnScheduler tracks turn order, the current turn holder, the number of consecutive
// turn-slots the holder still owes and any attack debt queued for other participants.
// It holds no lock of its own; the owning game serialises access.
type TurnScheduler struct {
	order     []uuid.UUID
	current   int
	turnsLeft int
	debt      map[uuid.UUID]int
	stale     bool // the current participant was removed and the pointer needs healing
}

// NewTurnScheduler returns an empty scheduler.
func NewTurnScheduler() *TurnScheduler {
	return &TurnScheduler{debt: make(map[uuid.UUID]int)}
}

// Order returns a copy of the turn order.
func (t *TurnScheduler) Order() []uuid.UUID {
	out := make([]uuid.UUID, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of participants in the turn order.
func (t *TurnScheduler) Len() int {
	return len(t.order)
}

// Current returns the current turn holder.
func (t *TurnScheduler) Current() (uuid.UUID, bool) {
	if len(t.order) == 0 || t.stale || t.current < 0 || t.current >= len(t.order) {
		return uuid.Nil, false
	}
	return t.order[t.current], true
}

// Index returns the position of id in the turn order or -1.
func (t *TurnScheduler) Index(id uuid.UUID) int {
	for i, pid := range t.order {
		if pid == id {
			return i
		}
	}
	return -1
}

// TurnsLeft returns how many consecutive turn-slots the current holder still owes.
func (t *TurnScheduler) TurnsLeft() int {
	return t.turnsLeft
}

// Debt returns the extra turn-slots queued for id.
func (t *TurnScheduler) Debt(id uuid.UUID) int {
	return t.debt[id]
}

// NextAliveIndex scans forward circularly from the position after from, for up to
// Len() steps, and returns the first alive participant's index. The scan ends on from
// itself, so a lone survivor finds itself. It returns -1 when nobody is alive.
func (t *TurnScheduler) NextAliveIndex(from int, alive AliveFunc) int {
	n := len(t.order)
	for step := 1; step <= n; step++ {
		idx := ((from+step)%n + n) % n
		if alive(t.order[idx]) {
			return idx
		}
	}
	return -1
}

// SetCurrent hands the turn to the participant at idx, draining their debt.
func (t *TurnScheduler) SetCurrent(idx int) {
	if idx < 0 || idx >= len(t.order) {
		return
	}
	t.current = idx
	t.stale = false
	id := t.order[idx]
	t.turnsLeft = 1 + t.debt[id]
	delete(t.debt, id)
}

// ConsumeOne spends one turn-slot of the current holder. When none remain the turn
// moves to the next alive participant. advanced reports a change of holder; ok is false
// when no alive participant could be found.
func (t *TurnScheduler) ConsumeOne(alive AliveFunc) (advanced bool, ok bool) {
	t.turnsLeft--
	if t.turnsLeft > 0 {
		return false, true
	}
	return t.advance(alive)
}

// EndTurn forfeits every remaining slot of the current holder and advances.
func (t *TurnScheduler) EndTurn(alive AliveFunc) (advanced bool, ok bool) {
	t.turnsLeft = 0
	return t.advance(alive)
}

func (t *TurnScheduler) advance(alive AliveFunc) (bool, bool) {
	next := t.NextAliveIndex(t.current, alive)
	if next < 0 {
		t.turnsLeft = 0
		return false, false
	}
	t.SetCurrent(next)
	return true, true
}

// AddDebt queues n extra turn-slots for id.
func (t *TurnScheduler) AddDebt(id uuid.UUID, n int) {
	t.debt[id] += n
}

// ClearDebt discards any queued slots for id.
func (t *TurnScheduler) ClearDebt(id uuid.UUID) {
	delete(t.debt, id)
}

// Add appends id to the end of the turn order without moving the pointer.
func (t *TurnScheduler) Add(id uuid.UUID) {
	if t.Index(id) >= 0 {
		return
	}
	t.order = append(t.order, id)
}

// Remove drops id from the turn order. The pointer keeps addressing the same
// participant; if the current holder itself is removed the pointer is parked on the
// predecessor and marked stale so Heal can hand the turn to the successor.
// It reports whether the removed participant held the turn.
func (t *TurnScheduler) Remove(id uuid.UUID) bool {
	i := t.Index(id)
	if i < 0 {
		return false
	}
	wasCurrent := i == t.current && !t.stale
	t.order = append(t.order[:i], t.order[i+1:]...)
	delete(t.debt, id)

	if len(t.order) == 0 {
		t.current = 0
		t.turnsLeft = 0
		t.stale = false
		return wasCurrent
	}
	switch {
	case i < t.current:
		t.current--
	case i == t.current:
		t.current = (i - 1 + len(t.order)) % len(t.order)
		t.turnsLeft = 0
		t.stale = true
	}
	if t.current >= len(t.order) {
		t.current = 0
	}
	return wasCurrent
}

// Heal re-derives the turn holder when the pointer is stale or addresses a
// participant who is no longer alive. healed reports that the holder changed; ok is
// false when nobody alive remains.
func (t *TurnScheduler) Heal(alive AliveFunc) (healed bool, ok bool) {
	if len(t.order) == 0 {
		return false, false
	}
	if !t.stale && t.current >= 0 && t.current < len(t.order) && alive(t.order[t.current]) {
		return false, true
	}
	next := t.NextAliveIndex(t.current, alive)
	if next < 0 {
		return false, false
	}
	t.SetCurrent(next)
	return true, true
}

// Reset clears the pointer, remaining slots and all debt. Membership is kept.
func (t *TurnScheduler) Reset() {
	t.current = 0
	t.turnsLeft = 0
	t.stale = false
	t.debt = make(map[uuid.UUID]int)
}
