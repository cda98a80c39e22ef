// internal/game/draw.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/models"
)

// performDraw runs draw resolution for actorID from the top, or the bottom when
// fromBottom is set. A bomb is neutralised by a clone standing in for a discarded
// defuse first, then by a real defuse; otherwise the actor is eliminated.
// Assumes lock is held.
func (g *KaboomGame) performDraw(actorID uuid.UUID, fromBottom bool) error {
	p := g.Players[actorID]
	if p == nil || !p.Alive {
		return ErrPlayerEliminated
	}

	var (
		card   models.Card
		err    error
		source = "top"
	)
	if fromBottom {
		source = "bottom"
		card, err = g.Deck.DrawBottom()
	} else {
		card, err = g.Deck.DrawTop()
	}
	if err != nil {
		return err
	}
	g.TopCardPublic = false

	if card != models.CardBomb {
		p.AddCard(card)
		g.fireEvent(GameEvent{
			Type:    EventPlayerDraw,
			User:    g.eventUser(actorID),
			Payload: map[string]interface{}{"source": source},
		})
		g.fireEventToPlayer(actorID, GameEvent{
			Type:    EventPrivateDraw,
			User:    g.eventUser(actorID),
			Card:    card,
			Payload: map[string]interface{}{"source": source},
		})
		g.logAction(actorID, string(EventPlayerDraw), map[string]interface{}{"source": source, "card": card})
		g.consumeTurn()
		return nil
	}

	g.fireEvent(GameEvent{
		Type:    EventPlayerBombDrawn,
		User:    g.eventUser(actorID),
		Card:    models.CardBomb,
		Payload: map[string]interface{}{"source": source},
	})
	g.logAction(actorID, string(EventPlayerBombDrawn), map[string]interface{}{"source": source})

	var neutraliser models.Card
	if top, ok := g.Discard.Effective(); ok && top == models.CardDefuse && p.RemoveCard(models.CardClone) {
		g.Discard.PushClone(models.CardDefuse)
		neutraliser = models.CardClone
	} else if p.RemoveCard(models.CardDefuse) {
		g.Discard.Push(models.CardDefuse)
		neutraliser = models.CardDefuse
	}

	if neutraliser == "" {
		g.eliminate(actorID)
		return nil
	}

	p.AddCard(models.CardBomb)
	g.DefusingID = actorID

	payload := map[string]interface{}{"neutraliser": neutraliser}
	if neutraliser == models.CardClone {
		payload["clonedFrom"] = models.CardDefuse
	}
	g.fireEvent(GameEvent{
		Type:    EventPlayerBombDefused,
		User:    g.eventUser(actorID),
		Card:    neutraliser,
		Payload: payload,
	})
	g.fireEventToPlayer(actorID, GameEvent{
		Type: EventPrivateInsertBomb,
		User: g.eventUser(actorID),
		Payload: map[string]interface{}{
			"minIndex": 0,
			"maxIndex": g.Deck.Len(),
		},
	})
	g.logAction(actorID, string(EventPlayerBombDefused), payload)
	return nil
}

// eliminate knocks out the drawer of an unneutralised bomb. The bomb is discarded,
// any queued debt is dropped and the rest of their turn is forfeited.
// Assumes lock is held.
func (g *KaboomGame) eliminate(id uuid.UUID) {
	p := g.Players[id]
	p.Alive = false
	g.eliminated = append(g.eliminated, id)
	g.Discard.Push(models.CardBomb)
	g.Turns.ClearDebt(id)

	g.log.Infof("player %s eliminated", id)
	g.fireEvent(GameEvent{Type: EventPlayerEliminated, User: g.eventUser(id), Card: models.CardBomb})
	g.logAction(id, string(EventPlayerEliminated), nil)

	// The pointer now addresses a dead participant; healing hands the turn on.
	g.recomputePhase()
}

// insertBomb validates and applies a bomb reinsertion.
// Assumes lock is held.
func (g *KaboomGame) insertBomb(actorID uuid.UUID, index int, public bool) error {
	if g.Phase != PhasePlaying {
		return ErrNotPlaying
	}
	if g.pending != nil {
		return ErrActionPending
	}
	if g.DefusingID == uuid.Nil || g.DefusingID != actorID {
		return ErrNotDefusing
	}
	p := g.Players[actorID]
	if p == nil || !p.RemoveCard(models.CardBomb) {
		g.log.Errorf("defuser %s holds no bomb, releasing lock", actorID)
		g.DefusingID = uuid.Nil
		return ErrNotDefusing
	}

	idx := g.Deck.InsertAt(index, models.CardBomb)
	g.TopCardPublic = public && g.Deck.IsTop(idx)
	g.DefusingID = uuid.Nil

	payload := map[string]interface{}{"public": g.TopCardPublic}
	g.fireEvent(GameEvent{Type: EventPlayerBombInserted, User: g.eventUser(actorID), Payload: payload})
	g.logAction(actorID, string(EventPlayerBombInserted), map[string]interface{}{"index": idx, "public": g.TopCardPublic})

	g.consumeTurn()
	return nil
}
