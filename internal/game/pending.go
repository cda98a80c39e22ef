// internal/game/pending.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/models"
)

// Reasons attached to game_action_cancelled.
const (
	CancelReasonNoped     = "noped"
	CancelReasonActorLeft = "actor_left"
)

// PendingAction is a played card waiting out its counter-play window. At most one
// exists per game.
type PendingAction struct {
	Seq         int
	ActorID     uuid.UUID
	DisplayCard models.Card // what was physically played
	EffectCard  models.Card // what takes effect, after clone substitution
	ClonedFrom  models.Card // set when DisplayCard is a clone
	TargetID    uuid.UUID   // steal victim for pair plays
	NopeCount   int
	ResolveAt   time.Time

	generation int
	cancel     CancelFunc
}

// Cancelled reports whether the action would be cancelled if it settled now.
func (p *PendingAction) Cancelled() bool {
	return p.NopeCount%2 == 1
}

// PendingSummary is the public view of a pending action.
type PendingSummary struct {
	Seq         int         `json:"seq"`
	ActorID     uuid.UUID   `json:"actorId"`
	DisplayCard models.Card `json:"displayCard"`
	EffectCard  models.Card `json:"effectCard"`
	ClonedFrom  models.Card `json:"clonedFrom,omitempty"`
	TargetID    *uuid.UUID  `json:"targetId,omitempty"`
	NopeCount   int         `json:"nopeCount"`
	ResolveAt   int64       `json:"resolveAt"`
}

func (p *PendingAction) summary() *PendingSummary {
	s := &PendingSummary{
		Seq:         p.Seq,
		ActorID:     p.ActorID,
		DisplayCard: p.DisplayCard,
		EffectCard:  p.EffectCard,
		ClonedFrom:  p.ClonedFrom,
		NopeCount:   p.NopeCount,
		ResolveAt:   p.ResolveAt.UnixMilli(),
	}
	if p.TargetID != uuid.Nil {
		t := p.TargetID
		s.TargetID = &t
	}
	return s
}

func (p *PendingAction) payload() map[string]interface{} {
	out := map[string]interface{}{
		"seq":         p.Seq,
		"displayCard": p.DisplayCard,
		"effectCard":  p.EffectCard,
		"nopeCount":   p.NopeCount,
		"resolveAt":   p.ResolveAt.UnixMilli(),
	}
	if p.ClonedFrom != "" {
		out["clonedFrom"] = p.ClonedFrom
	}
	if p.TargetID != uuid.Nil {
		out["target"] = p.TargetID
	}
	return out
}

// openPending registers a new pending action and starts its window.
// Assumes lock is held.
func (g *KaboomGame) openPending(actorID uuid.UUID, display, effect models.Card, targetID uuid.UUID) {
	g.pendingSeq++
	pa := &PendingAction{
		Seq:         g.pendingSeq,
		ActorID:     actorID,
		DisplayCard: display,
		EffectCard:  effect,
		TargetID:    targetID,
	}
	if display == models.CardClone {
		pa.ClonedFrom = effect
	}
	g.pending = pa
	g.schedulePendingResolution()

	g.fireEvent(GameEvent{
		Type:    EventGameActionPending,
		User:    g.eventUser(actorID),
		Card:    display,
		Payload: pa.payload(),
	})
	g.logAction(actorID, string(EventGameActionPending), pa.payload())
}

// schedulePendingResolution (re)starts the counter-play window. Any earlier callback
// is cancelled and the generation bumped, so a callback already waiting on the lock
// recognises itself as superseded.
// Assumes lock is held.
func (g *KaboomGame) schedulePendingResolution() {
	pa := g.pending
	if pa.cancel != nil {
		pa.cancel()
	}
	pa.generation++
	pa.ResolveAt = g.scheduler.Now().Add(g.Rules.NopeWindow)

	seq, gen := pa.Seq, pa.generation
	pa.cancel = g.scheduler.AfterFunc(g.Rules.NopeWindow, func() {
		g.onPendingDeadline(seq, gen)
	})
}

// onPendingDeadline settles the pending action once its window has lapsed.
func (g *KaboomGame) onPendingDeadline(seq, generation int) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	pa := g.pending
	if pa == nil || pa.Seq != seq || pa.generation != generation || g.Phase != PhasePlaying {
		g.log.Debugf("ignoring stale pending callback seq=%d gen=%d", seq, generation)
		return
	}
	g.pending = nil

	if pa.Cancelled() {
		g.fireEvent(GameEvent{
			Type:    EventGameActionCancelled,
			User:    g.eventUser(pa.ActorID),
			Card:    pa.DisplayCard,
			Payload: map[string]interface{}{"seq": pa.Seq, "reason": CancelReasonNoped, "nopeCount": pa.NopeCount},
		})
		g.logAction(pa.ActorID, string(EventGameActionCancelled), map[string]interface{}{"seq": pa.Seq, "reason": CancelReasonNoped})
		g.broadcastSyncStateToAll()
		return
	}

	g.fireEvent(GameEvent{
		Type:    EventGameActionResolved,
		User:    g.eventUser(pa.ActorID),
		Card:    pa.DisplayCard,
		Payload: map[string]interface{}{"seq": pa.Seq, "effectCard": pa.EffectCard, "nopeCount": pa.NopeCount},
	})
	g.logAction(pa.ActorID, string(EventGameActionResolved), map[string]interface{}{"seq": pa.Seq, "effectCard": pa.EffectCard})
	g.resolveEffect(pa)
	g.broadcastSyncStateToAll()
}

// addNope records a counter-play against the pending action and restarts its window.
// Assumes lock is held.
func (g *KaboomGame) addNope(byID uuid.UUID) {
	pa := g.pending
	pa.NopeCount++
	g.schedulePendingResolution()

	g.fireEvent(GameEvent{
		Type:    EventGameActionUpdated,
		User:    g.eventUser(byID),
		Card:    models.CardNope,
		Payload: pa.payload(),
	})
	g.logAction(byID, string(EventGameActionUpdated), pa.payload())
}

// clearPending drops the pending action without settling it. A non-empty reason is
// broadcast as a cancellation.
// Assumes lock is held.
func (g *KaboomGame) clearPending(reason string) {
	pa := g.pending
	if pa == nil {
		return
	}
	if pa.cancel != nil {
		pa.cancel()
	}
	g.pending = nil
	if reason == "" {
		return
	}
	g.fireEvent(GameEvent{
		Type:    EventGameActionCancelled,
		User:    g.eventUser(pa.ActorID),
		Card:    pa.DisplayCard,
		Payload: map[string]interface{}{"seq": pa.Seq, "reason": reason, "nopeCount": pa.NopeCount},
	})
	g.logAction(pa.ActorID, string(EventGameActionCancelled), map[string]interface{}{"seq": pa.Seq, "reason": reason})
}
