// internal/game/effects.go
package game

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/models"
)

// Effect is the closed set of things a resolved action can do.
type Effect int

const (
	EffectSkip Effect = iota
	EffectAttack
	EffectSeeFuture
	EffectDrawBottom
	EffectShuffle
	EffectSteal
)

func (e Effect) String() string {
	switch e {
	case EffectSkip:
		return "skip"
	case EffectAttack:
		return "attack"
	case EffectSeeFuture:
		return "see_future"
	case EffectDrawBottom:
		return "draw_bottom"
	case EffectShuffle:
		return "shuffle"
	case EffectSteal:
		return "steal"
	default:
		return "unknown"
	}
}

// EffectOf maps a card identity to its effect. Clone is a substitution made at play
// time and has no effect of its own; bomb, defuse, nope and plain cards are not played
// as actions.
func EffectOf(c models.Card) (Effect, bool) {
	switch c {
	case models.CardSkip:
		return EffectSkip, true
	case models.CardAttack:
		return EffectAttack, true
	case models.CardSeeFuture:
		return EffectSeeFuture, true
	case models.CardDrawBottom:
		return EffectDrawBottom, true
	case models.CardShuffle:
		return EffectShuffle, true
	case models.CardPairTaco, models.CardPairMelon, models.CardPairBeard:
		return EffectSteal, true
	}
	return 0, false
}

// clonable reports whether a clone may copy c. Steals need a second card and a
// target, so pairs are excluded.
func clonable(c models.Card) bool {
	e, ok := EffectOf(c)
	return ok && e != EffectSteal
}

// resolveEffect applies a settled, un-noped pending action.
// Assumes lock is held.
func (g *KaboomGame) resolveEffect(pa *PendingAction) {
	effect, ok := EffectOf(pa.EffectCard)
	if !ok {
		g.log.Errorf("pending action %d carries non-effect card %s", pa.Seq, pa.EffectCard)
		return
	}
	actor := g.Players[pa.ActorID]
	if actor == nil || !actor.Alive {
		g.log.Debugf("actor %s of pending action %d is gone, dropping %s", pa.ActorID, pa.Seq, effect)
		if effect == EffectSteal {
			g.fireStealFailure(pa, StealFailActorGone)
		}
		return
	}

	switch effect {
	case EffectSkip:
		g.consumeTurn()
	case EffectAttack:
		g.resolveAttack(pa.ActorID)
	case EffectSeeFuture:
		cards := g.Deck.PeekTop(g.Rules.SeeFutureCount)
		g.fireEventToPlayer(pa.ActorID, GameEvent{
			Type:    EventPrivateSeeFuture,
			User:    g.eventUser(pa.ActorID),
			Payload: map[string]interface{}{"cards": cards},
		})
	case EffectDrawBottom:
		if err := g.performDraw(pa.ActorID, true); err != nil {
			g.failAction(pa, err)
		}
	case EffectShuffle:
		g.Deck.Shuffle(g.rng)
		g.TopCardPublic = false
		g.fireEvent(GameEvent{Type: EventGameDeckShuffled, User: g.eventUser(pa.ActorID)})
		g.logAction(pa.ActorID, string(EventGameDeckShuffled), nil)
	case EffectSteal:
		g.resolveSteal(pa)
		if g.Phase == PhasePlaying {
			g.consumeTurn()
		}
	default:
		g.log.Errorf("unhandled effect %s", effect)
	}
}

// resolveAttack queues one extra slot for the next alive participant and ends one
// slot of the actor's turn. With nobody else alive the actor wins outright.
// Assumes lock is held.
func (g *KaboomGame) resolveAttack(actorID uuid.UUID) {
	next := g.Turns.NextAliveIndex(g.Turns.Index(actorID), g.isAlive)
	if next < 0 || g.Turns.Order()[next] == actorID {
		g.endRound(actorID)
		return
	}
	victim := g.Turns.Order()[next]
	g.Turns.AddDebt(victim, 1)
	g.logAction(actorID, "attack_debt", map[string]interface{}{"target": victim, "debt": g.Turns.Debt(victim)})
	g.consumeTurn()
}

// ActionFailDeckEmpty is reported when a settled draw finds the deck exhausted.
const ActionFailDeckEmpty = "deck_empty"

// failAction tells the actor their settled action could not run. A draw that finds
// the deck exhausted still spends the slot it would have ended.
// Assumes lock is held.
func (g *KaboomGame) failAction(pa *PendingAction, err error) {
	reason := err.Error()
	if errors.Is(err, ErrDeckEmpty) {
		reason = ActionFailDeckEmpty
	}
	g.log.Infof("settled %s of %s could not run: %v", pa.EffectCard, pa.ActorID, err)
	g.fireEventToPlayer(pa.ActorID, GameEvent{
		Type:    EventPrivateActionFailed,
		User:    g.eventUser(pa.ActorID),
		Card:    pa.DisplayCard,
		Payload: map[string]interface{}{"seq": pa.Seq, "reason": reason},
	})
	g.logAction(pa.ActorID, string(EventPrivateActionFailed), map[string]interface{}{"seq": pa.Seq, "reason": reason})
	if errors.Is(err, ErrDeckEmpty) {
		g.consumeTurn()
	}
}

// Steal failure reasons.
const (
	StealFailActorGone        = "actor_gone"
	StealFailTargetGone       = "target_gone"
	StealFailTargetEliminated = "target_eliminated"
	StealFailTargetEmptyHand  = "target_empty_hand"
)

// resolveSteal moves one uniformly random card from the target to the actor. Only the
// thief learns the card; the victim learns who took it.
// Assumes lock is held and the actor is alive.
func (g *KaboomGame) resolveSteal(pa *PendingAction) {
	target := g.Players[pa.TargetID]
	switch {
	case target == nil:
		g.fireStealFailure(pa, StealFailTargetGone)
		return
	case !target.Alive:
		g.fireStealFailure(pa, StealFailTargetEliminated)
		return
	case len(target.Hand) == 0:
		g.fireStealFailure(pa, StealFailTargetEmptyHand)
		return
	}

	actor := g.Players[pa.ActorID]
	stolen := target.RemoveCardAt(g.rng.Intn(len(target.Hand)))
	actor.AddCard(stolen)

	g.fireEvent(GameEvent{
		Type:    EventPlayerSteal,
		User:    g.eventUser(pa.ActorID),
		Target:  g.eventUser(pa.TargetID),
		Payload: map[string]interface{}{"success": true},
	})
	g.fireEventToPlayer(pa.ActorID, GameEvent{
		Type:   EventPrivateStealSuccess,
		User:   g.eventUser(pa.ActorID),
		Target: g.eventUser(pa.TargetID),
		Card:   stolen,
	})
	g.fireEventToPlayer(pa.TargetID, GameEvent{
		Type:   EventPrivateStolenFrom,
		User:   g.eventUser(pa.ActorID),
		Target: g.eventUser(pa.TargetID),
	})
	g.logAction(pa.ActorID, string(EventPlayerSteal), map[string]interface{}{"target": pa.TargetID, "card": stolen})
}

// Assumes lock is held.
func (g *KaboomGame) fireStealFailure(pa *PendingAction, reason string) {
	g.fireEvent(GameEvent{
		Type:    EventPlayerSteal,
		User:    g.eventUser(pa.ActorID),
		Target:  g.eventUser(pa.TargetID),
		Payload: map[string]interface{}{"success": false, "reason": reason},
	})
	g.logAction(pa.ActorID, string(EventPlayerSteal), map[string]interface{}{"target": pa.TargetID, "reason": reason})
}
