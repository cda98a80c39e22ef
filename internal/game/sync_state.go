// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/models"
)

// ObfPlayerState is one participant as seen by someone else: hand size only.
type ObfPlayerState struct {
	PlayerID      uuid.UUID `json:"player_id"`
	Username      string    `json:"username"`
	Alive         bool      `json:"alive"`
	HandSize      int       `json:"hand_size"`
	IsCurrentTurn bool      `json:"isCurrentTurn"`
	Defusing      bool      `json:"defusing,omitempty"`
}

// ObfGameState is the per-viewer snapshot. Only the viewer's own hand is included.
type ObfGameState struct {
	GameID          uuid.UUID        `json:"game_id"`
	Round           int              `json:"round"`
	Phase           Phase            `json:"phase"`
	You             uuid.UUID        `json:"you"`
	Hand            []models.Card    `json:"hand"`
	Players         []ObfPlayerState `json:"players"`
	DeckSize        int              `json:"deckSize"`
	DiscardSize     int              `json:"discardSize"`
	DiscardTop      models.Card      `json:"discardTop,omitempty"`
	DiscardEffect   models.Card      `json:"discardEffect,omitempty"` // what a clone on top stands in for
	CurrentPlayerID *uuid.UUID       `json:"currentPlayerId,omitempty"`
	TurnsLeft       int              `json:"turnsLeftForCurrent"`
	Pending         *PendingSummary  `json:"pendingAction,omitempty"`
	WinnerID        *uuid.UUID       `json:"winnerId,omitempty"`
	TopCardPublic   bool             `json:"topCardPublic"`
}

// GetCurrentObfuscatedGameState generates a snapshot of the game for the requesting user.
func (g *KaboomGame) GetCurrentObfuscatedGameState(forUser uuid.UUID) ObfGameState {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.snapshotFor(forUser)
}

// snapshotFor builds forUser's view.
// Assumes lock is held.
func (g *KaboomGame) snapshotFor(forUser uuid.UUID) ObfGameState {
	obf := ObfGameState{
		GameID:        g.ID,
		Round:         g.Round,
		Phase:         g.Phase,
		You:           forUser,
		Hand:          []models.Card{},
		Players:       []ObfPlayerState{},
		DeckSize:      g.Deck.Len(),
		DiscardSize:   g.Discard.Len(),
		TopCardPublic: g.TopCardPublic,
	}
	if top, ok := g.Discard.Top(); ok {
		obf.DiscardTop = top
		obf.DiscardEffect, _ = g.Discard.Effective()
	}

	var current uuid.UUID
	if g.Phase == PhasePlaying {
		if cur, ok := g.Turns.Current(); ok {
			current = cur
			obf.CurrentPlayerID = &cur
			obf.TurnsLeft = g.Turns.TurnsLeft()
		}
	}
	if g.pending != nil {
		obf.Pending = g.pending.summary()
	}
	if g.WinnerID != uuid.Nil {
		w := g.WinnerID
		obf.WinnerID = &w
	}

	for _, id := range g.Turns.Order() {
		pl := g.Players[id]
		if pl == nil {
			continue
		}
		obf.Players = append(obf.Players, ObfPlayerState{
			PlayerID:      pl.ID,
			Username:      pl.Username,
			Alive:         pl.Alive,
			HandSize:      len(pl.Hand),
			IsCurrentTurn: current != uuid.Nil && pl.ID == current,
			Defusing:      g.DefusingID == pl.ID,
		})
		if pl.ID == forUser {
			obf.Hand = append(obf.Hand, pl.Hand...)
		}
	}
	return obf
}

// sendSyncState pushes playerID's snapshot to them.
// Assumes lock is held.
func (g *KaboomGame) sendSyncState(playerID uuid.UUID) {
	state := g.snapshotFor(playerID)
	g.fireEventToPlayer(playerID, GameEvent{
		Type:  EventPrivateSyncState,
		State: &state,
	})
}

// broadcastSyncStateToAll pushes every participant their own snapshot.
// Assumes lock is held.
func (g *KaboomGame) broadcastSyncStateToAll() {
	for id := range g.Players {
		g.sendSyncState(id)
	}
}
