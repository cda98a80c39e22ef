// internal/game/game.go
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/cache"
	"github.com/jason-s-yu/kaboom/internal/models"
	"github.com/sirupsen/logrus"
)

// MinPlayers is the number of connected participants needed to play a round.
const MinPlayers = 2

// Phase is the match lifecycle state.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
)

// RoundResult describes a finished round.
type RoundResult struct {
	GameID   uuid.UUID
	Round    int
	WinnerID uuid.UUID // uuid.Nil when nobody survived
	// Placements lists the participants still seated, best first: the winner, then
	// the eliminated in reverse order of elimination.
	Placements []uuid.UUID
	EndedAt    time.Time
}

// OnRoundEndFunc is invoked with the game lock held when a round finishes.
// Implementations must not call back into the game.
type OnRoundEndFunc func(result RoundResult)

// KaboomGame holds the entire state for a single room in memory.
type KaboomGame struct {
	ID    uuid.UUID
	Rules HouseRules

	Players map[uuid.UUID]*models.Player
	Deck    *Deck
	Discard *DiscardPile
	Turns   *TurnScheduler

	Phase         Phase
	Round         int
	WinnerID      uuid.UUID
	DefusingID    uuid.UUID // participant who must reinsert a neutralised bomb
	TopCardPublic bool      // a bomb was publicly placed on top of the deck

	pending     *PendingAction
	pendingSeq  int
	eliminated  []uuid.UUID // this round, in elimination order
	closed      bool        // the last participant left; the room accepts no one
	actionIndex int // increments for each logged action for the historian

	Mu sync.Mutex

	// BroadcastFn sends an event to every participant. It is called with the lock held.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends an event to one participant. It is called with the lock held.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)

	// OnRoundEnd is invoked whenever a round finishes.
	OnRoundEnd OnRoundEndFunc

	// OnEmpty is invoked, without the lock, after the last participant leaves.
	OnEmpty func(gameID uuid.UUID)

	scheduler Scheduler
	rng       *rand.Rand
	log       *logrus.Entry
	publish   func(rec cache.GameActionRecord)
}

// NewKaboomGame builds an empty room waiting for participants.
func NewKaboomGame(id uuid.UUID, rules HouseRules) *KaboomGame {
	g := &KaboomGame{
		ID:        id,
		Rules:     rules,
		Players:   make(map[uuid.UUID]*models.Player),
		Deck:      NewDeck(),
		Discard:   NewDiscardPile(),
		Turns:     NewTurnScheduler(),
		Phase:     PhaseWaiting,
		scheduler: WallClock(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       logrus.WithField("game_id", id),
	}
	g.publish = g.publishToRedis
	return g
}

// SetLogger routes the game's logs through logger.
func (g *KaboomGame) SetLogger(logger *logrus.Logger) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.log = logger.WithField("game_id", g.ID)
}

// AddPlayer seats a participant. Joining an existing seat only resends the snapshot.
// A participant joining mid-round is dealt a bomb-free hand and appended to the turn
// order without moving the turn pointer. ErrRoomClosed means the room emptied and is
// being discarded; callers should fetch a fresh one.
func (g *KaboomGame) AddPlayer(id uuid.UUID, username string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.closed {
		return ErrRoomClosed
	}
	if _, exists := g.Players[id]; exists {
		g.log.Debugf("player %s rejoined", id)
		g.sendSyncState(id)
		return nil
	}

	p := &models.Player{
		ID:       id,
		Username: username,
		Hand:     []models.Card{},
		Alive:    g.Phase != PhaseEnded,
	}
	g.Players[id] = p
	g.Turns.Add(id)

	if g.Phase == PhasePlaying {
		hand, relocated := g.Deck.DealHand(g.Rules.HandSize, models.CardBomb)
		p.Hand = hand
		if relocated {
			g.Deck.Shuffle(g.rng)
			g.TopCardPublic = false
		}
	}

	g.log.Infof("player %s (%s) joined, %d seated", id, username, len(g.Players))
	g.fireEvent(GameEvent{Type: EventPlayerJoined, User: g.eventUser(id)})
	g.logAction(id, string(EventPlayerJoined), map[string]interface{}{"username": username})

	g.recomputePhase()
	g.broadcastSyncStateToAll()
	return nil
}

// HandleDisconnect removes a participant. A pending action they opened is cancelled,
// a defuse lock they held is released and the phase is recomputed.
func (g *KaboomGame) HandleDisconnect(id uuid.UUID) {
	g.Mu.Lock()
	if _, exists := g.Players[id]; !exists {
		g.Mu.Unlock()
		return
	}

	delete(g.Players, id)
	if g.Turns.Remove(id) {
		g.log.Debugf("turn holder %s left, pointer marked for healing", id)
	}
	if g.DefusingID == id {
		g.DefusingID = uuid.Nil
		g.TopCardPublic = false
	}
	if g.pending != nil && g.pending.ActorID == id {
		g.clearPending(CancelReasonActorLeft)
	}

	g.log.Infof("player %s left, %d seated", id, len(g.Players))
	g.fireEvent(GameEvent{Type: EventPlayerLeft, User: &EventUser{ID: id}})
	g.logAction(id, string(EventPlayerLeft), nil)

	g.recomputePhase()
	g.broadcastSyncStateToAll()

	empty := len(g.Players) == 0
	g.closed = empty
	onEmpty := g.OnEmpty
	g.Mu.Unlock()

	if empty && onEmpty != nil {
		onEmpty(g.ID)
	}
}

// PlayCard plays a single action card, or a clone of the discard pile's top card,
// and opens its counter-play window.
func (g *KaboomGame) PlayCard(actorID uuid.UUID, card models.Card) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.validateTurnAction(actorID); err != nil {
		return err
	}
	p := g.Players[actorID]
	if !p.HasCard(card) {
		return fmt.Errorf("%w: %s", ErrCardNotHeld, card)
	}

	effect := card
	if card == models.CardClone {
		top, ok := g.Discard.Effective()
		if !ok {
			return ErrDiscardEmpty
		}
		if !clonable(top) {
			return fmt.Errorf("%w: %s", ErrNotClonable, top)
		}
		effect = top
	} else {
		e, ok := EffectOf(card)
		if !ok {
			return fmt.Errorf("%w: %s", ErrCardNotPlayable, card)
		}
		if e == EffectSteal {
			return fmt.Errorf("%w: %s must be played as a pair", ErrCardNotPlayable, card)
		}
	}
	if effect == models.CardDrawBottom && g.Deck.Len() == 0 {
		return ErrDeckEmpty
	}

	p.RemoveCard(card)
	payload := map[string]interface{}{}
	if card == models.CardClone {
		g.Discard.PushClone(effect)
		payload["clonedFrom"] = effect
	} else {
		g.Discard.Push(card)
	}

	g.fireEvent(GameEvent{
		Type:    EventPlayerCardPlayed,
		User:    g.eventUser(actorID),
		Card:    card,
		Payload: payload,
	})
	g.openPending(actorID, card, effect, uuid.Nil)
	g.broadcastSyncStateToAll()
	return nil
}

// PlayPair discards two copies of a pair card and opens a pending steal against
// targetID.
func (g *KaboomGame) PlayPair(actorID uuid.UUID, card models.Card, targetID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.validateTurnAction(actorID); err != nil {
		return err
	}
	if !card.IsPair() {
		return fmt.Errorf("%w: %s", ErrNotAPair, card)
	}
	p := g.Players[actorID]
	if p.CountCard(card) < 2 {
		return fmt.Errorf("%w: need two %s", ErrCardNotHeld, card)
	}
	target := g.Players[targetID]
	if target == nil || !target.Alive || targetID == actorID {
		return ErrInvalidTarget
	}

	p.RemoveCard(card)
	p.RemoveCard(card)
	g.Discard.Push(card)
	g.Discard.Push(card)

	g.fireEvent(GameEvent{
		Type:    EventPlayerCardPlayed,
		User:    g.eventUser(actorID),
		Target:  g.eventUser(targetID),
		Card:    card,
		Payload: map[string]interface{}{"pair": true},
	})
	g.openPending(actorID, card, card, targetID)
	g.broadcastSyncStateToAll()
	return nil
}

// PlayNope counters the pending action. Anyone alive and not defusing may nope,
// including the actor who opened it.
func (g *KaboomGame) PlayNope(actorID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Phase != PhasePlaying {
		return ErrNotPlaying
	}
	if g.pending == nil {
		return ErrNoPendingAction
	}
	p := g.Players[actorID]
	if p == nil {
		return ErrUnknownPlayer
	}
	if !p.Alive {
		return ErrPlayerEliminated
	}
	if g.DefusingID == actorID {
		return ErrDefusing
	}
	if !p.RemoveCard(models.CardNope) {
		return fmt.Errorf("%w: %s", ErrCardNotHeld, models.CardNope)
	}
	g.Discard.Push(models.CardNope)

	g.fireEvent(GameEvent{
		Type:    EventPlayerCardPlayed,
		User:    g.eventUser(actorID),
		Card:    models.CardNope,
		Payload: map[string]interface{}{"nopeCount": g.pending.NopeCount + 1},
	})
	g.addNope(actorID)
	g.broadcastSyncStateToAll()
	return nil
}

// DrawCard draws from the top of the deck and ends one turn-slot, unless a bomb
// comes up.
func (g *KaboomGame) DrawCard(actorID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.validateTurnAction(actorID); err != nil {
		return err
	}
	if err := g.performDraw(actorID, false); err != nil {
		return err
	}
	g.broadcastSyncStateToAll()
	return nil
}

// InsertBomb puts the neutralised bomb back into the deck at index (clamped, counted
// from the bottom) and ends the defuser's turn-slot. The bomb is revealed publicly
// only when public is set and it landed exactly on top.
func (g *KaboomGame) InsertBomb(actorID uuid.UUID, index int, public bool) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if err := g.insertBomb(actorID, index, public); err != nil {
		return err
	}
	g.broadcastSyncStateToAll()
	return nil
}

// Restart starts a fresh round, or falls back to waiting when too few are seated.
func (g *KaboomGame) Restart(actorID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if _, ok := g.Players[actorID]; !ok {
		return ErrUnknownPlayer
	}
	if len(g.Players) < MinPlayers {
		g.toWaiting()
	} else {
		g.startRound(true)
	}
	g.logAction(actorID, models.ActionRestart, nil)
	g.broadcastSyncStateToAll()
	return nil
}

// PlayerCount returns the number of seated participants.
func (g *KaboomGame) PlayerCount() int {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return len(g.Players)
}

// HasPlayer reports whether id is seated in the room.
func (g *KaboomGame) HasPlayer(id uuid.UUID) bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	_, ok := g.Players[id]
	return ok
}

// SendState pushes the caller's snapshot to them.
func (g *KaboomGame) SendState(actorID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if _, ok := g.Players[actorID]; !ok {
		return ErrUnknownPlayer
	}
	g.sendSyncState(actorID)
	return nil
}

// HandlePlayerAction routes a decoded socket command to the matching operation.
func (g *KaboomGame) HandlePlayerAction(playerID uuid.UUID, action models.GameAction) error {
	switch action.ActionType {
	case models.ActionPlayCard:
		return g.PlayCard(playerID, action.Card)
	case models.ActionPlayPair:
		return g.PlayPair(playerID, action.Card, action.TargetID)
	case models.ActionNope:
		return g.PlayNope(playerID)
	case models.ActionDraw:
		return g.DrawCard(playerID)
	case models.ActionInsertBomb:
		return g.InsertBomb(playerID, action.Index, action.Public)
	case models.ActionRestart:
		return g.Restart(playerID)
	case models.ActionRequestState:
		return g.SendState(playerID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action.ActionType)
	}
}

// validateTurnAction checks the preconditions shared by every turn command.
// Assumes lock is held.
func (g *KaboomGame) validateTurnAction(actorID uuid.UUID) error {
	if g.Phase != PhasePlaying {
		return ErrNotPlaying
	}
	p := g.Players[actorID]
	if p == nil {
		return ErrUnknownPlayer
	}
	if g.pending != nil {
		return ErrActionPending
	}
	if g.DefusingID != uuid.Nil {
		return ErrDefusing
	}
	if !p.Alive {
		return ErrPlayerEliminated
	}
	if cur, ok := g.Turns.Current(); !ok || cur != actorID {
		return ErrNotYourTurn
	}
	return nil
}

// recomputePhase applies the phase rules after a participant-count change or an
// elimination.
// Assumes lock is held.
func (g *KaboomGame) recomputePhase() {
	if len(g.Players) < MinPlayers {
		g.toWaiting()
		return
	}
	switch g.Phase {
	case PhaseWaiting:
		g.startRound(false)
	case PhasePlaying:
		if g.aliveCount() <= 1 {
			g.endRound(g.soleSurvivor())
			return
		}
		healed, ok := g.Turns.Heal(g.isAlive)
		if !ok {
			g.endRound(uuid.Nil)
			return
		}
		if healed {
			g.log.Debugf("turn pointer healed")
			g.announceTurn()
		}
	}
}

// toWaiting drops every piece of transient match state.
// Assumes lock is held.
func (g *KaboomGame) toWaiting() {
	wasWaiting := g.Phase == PhaseWaiting
	g.Phase = PhaseWaiting
	g.WinnerID = uuid.Nil
	g.DefusingID = uuid.Nil
	g.TopCardPublic = false
	g.clearPending("")
	g.Deck.Clear()
	g.Discard.Clear()
	g.Turns.Reset()
	if !wasWaiting {
		g.log.Info("not enough players, waiting")
		g.logAction(uuid.Nil, "game_waiting", nil)
	}
}

// startRound builds a fresh deck, revives and deals every seated participant and
// hands the first turn to the earliest joiner.
// Assumes lock is held.
func (g *KaboomGame) startRound(restart bool) {
	g.Round++
	g.clearPending("")
	g.Deck = BuildDeck(g.Rules.Deck, g.rng)
	g.Discard.Clear()
	g.Phase = PhasePlaying
	g.WinnerID = uuid.Nil
	g.DefusingID = uuid.Nil
	g.TopCardPublic = false
	g.Turns.Reset()
	g.eliminated = g.eliminated[:0]

	relocated := false
	for _, id := range g.Turns.Order() {
		p := g.Players[id]
		p.Alive = true
		hand, moved := g.Deck.DealHand(g.Rules.HandSize, models.CardBomb)
		p.Hand = hand
		relocated = relocated || moved
	}
	if relocated {
		g.Deck.Shuffle(g.rng)
	}
	g.Turns.SetCurrent(g.Turns.NextAliveIndex(-1, g.isAlive))

	g.log.Infof("round %d started with %d players", g.Round, len(g.Players))
	g.fireEvent(GameEvent{
		Type: EventGameRoundStarted,
		Payload: map[string]interface{}{
			"round":    g.Round,
			"restart":  restart,
			"order":    g.Turns.Order(),
			"deckSize": g.Deck.Len(),
		},
	})
	g.logAction(uuid.Nil, string(EventGameRoundStarted), map[string]interface{}{"round": g.Round, "restart": restart})
	g.announceTurn()
}

// endRound finishes the round with winner, or nobody when winner is uuid.Nil.
// Assumes lock is held.
func (g *KaboomGame) endRound(winner uuid.UUID) {
	g.Phase = PhaseEnded
	g.WinnerID = winner
	g.DefusingID = uuid.Nil
	g.TopCardPublic = false
	g.clearPending("")
	g.Deck.Clear()
	g.Turns.Reset()

	g.log.Infof("round %d ended, winner %s", g.Round, winner)
	payload := map[string]interface{}{"round": g.Round}
	ev := GameEvent{Type: EventGameRoundEnded, Payload: payload}
	if winner != uuid.Nil {
		ev.User = g.eventUser(winner)
		payload["winner"] = winner
	}
	g.fireEvent(ev)
	g.logAction(winner, string(EventGameRoundEnded), payload)

	if g.OnRoundEnd != nil {
		g.OnRoundEnd(RoundResult{
			GameID:     g.ID,
			Round:      g.Round,
			WinnerID:   winner,
			Placements: g.placements(winner),
			EndedAt:    g.scheduler.Now(),
		})
	}
}

// placements orders the seated participants of the finished round.
// Assumes lock is held.
func (g *KaboomGame) placements(winner uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(g.Players))
	if winner != uuid.Nil {
		out = append(out, winner)
	}
	for i := len(g.eliminated) - 1; i >= 0; i-- {
		id := g.eliminated[i]
		if _, seated := g.Players[id]; seated && id != winner {
			out = append(out, id)
		}
	}
	return out
}

// consumeTurn spends one turn-slot of the current holder.
// Assumes lock is held.
func (g *KaboomGame) consumeTurn() {
	if g.Phase != PhasePlaying || g.DefusingID != uuid.Nil {
		return
	}
	if g.aliveCount() <= 1 {
		g.endRound(g.soleSurvivor())
		return
	}
	advanced, ok := g.Turns.ConsumeOne(g.isAlive)
	if !ok {
		g.endRound(uuid.Nil)
		return
	}
	if advanced {
		g.announceTurn()
	}
}

// announceTurn tells everyone who holds the turn and how many slots they owe.
// Assumes lock is held.
func (g *KaboomGame) announceTurn() {
	cur, ok := g.Turns.Current()
	if !ok {
		return
	}
	g.fireEvent(GameEvent{
		Type:    EventGamePlayerTurn,
		User:    g.eventUser(cur),
		Payload: map[string]interface{}{"turnsLeft": g.Turns.TurnsLeft()},
	})
	g.logAction(cur, string(EventGamePlayerTurn), map[string]interface{}{"turnsLeft": g.Turns.TurnsLeft()})
}

// Assumes lock is held.
func (g *KaboomGame) isAlive(id uuid.UUID) bool {
	p := g.Players[id]
	return p != nil && p.Alive
}

// Assumes lock is held.
func (g *KaboomGame) aliveCount() int {
	n := 0
	for _, p := range g.Players {
		if p.Alive {
			n++
		}
	}
	return n
}

// soleSurvivor returns the only alive participant, or uuid.Nil.
// Assumes lock is held.
func (g *KaboomGame) soleSurvivor() uuid.UUID {
	var survivor uuid.UUID
	for id, p := range g.Players {
		if p.Alive {
			if survivor != uuid.Nil {
				return uuid.Nil
			}
			survivor = id
		}
	}
	return survivor
}

// Assumes lock is held.
func (g *KaboomGame) eventUser(id uuid.UUID) *EventUser {
	if p := g.Players[id]; p != nil {
		return &EventUser{ID: id, Username: p.Username}
	}
	return &EventUser{ID: id}
}

// fireEvent broadcasts an event to all connected players.
// Assumes lock is held.
func (g *KaboomGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn == nil {
		g.log.Debugf("no broadcaster, dropping %s", ev.Type)
		return
	}
	g.BroadcastFn(ev)
}

// fireEventToPlayer sends an event only to a specific player.
// Assumes lock is held.
func (g *KaboomGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn == nil {
		g.log.Debugf("no private broadcaster, dropping %s for %s", ev.Type, playerID)
		return
	}
	if _, ok := g.Players[playerID]; !ok {
		return
	}
	g.BroadcastToPlayerFn(playerID, ev)
}

// logAction sends the action details to the historian service via Redis.
// Assumes lock is held.
func (g *KaboomGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		Round:         g.Round,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	g.publish(record)
}

// publishToRedis pushes record onto the historian queue without blocking the game.
func (g *KaboomGame) publishToRedis(record cache.GameActionRecord) {
	if cache.Rdb == nil {
		return
	}
	log := g.log
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			log.Warnf("failed to publish action %d: %v", rec.ActionIndex, err)
		}
	}(record)
}
