// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/models"
)

// GameEventType names an outbound event. Public events are prefixed player_ or game_;
// events sent to a single participant are prefixed private_.
type GameEventType string

const (
	EventPlayerJoined        GameEventType = "player_joined"
	EventPlayerLeft          GameEventType = "player_left"
	EventGameRoundStarted    GameEventType = "game_round_started"
	EventGameRoundEnded      GameEventType = "game_round_ended"
	EventGamePlayerTurn      GameEventType = "game_player_turn"
	EventPlayerCardPlayed    GameEventType = "player_card_played"
	EventGameActionPending   GameEventType = "game_action_pending"
	EventGameActionUpdated   GameEventType = "game_action_updated"
	EventGameActionResolved  GameEventType = "game_action_resolved"
	EventGameActionCancelled GameEventType = "game_action_cancelled"
	EventPlayerDraw          GameEventType = "player_draw"
	EventPrivateDraw         GameEventType = "private_draw"
	EventPlayerBombDrawn     GameEventType = "player_bomb_drawn"
	EventPlayerBombDefused   GameEventType = "player_bomb_defused"
	EventPrivateInsertBomb   GameEventType = "private_insert_bomb"
	EventPlayerBombInserted  GameEventType = "player_bomb_inserted"
	EventPlayerEliminated    GameEventType = "player_eliminated"
	EventPrivateSeeFuture    GameEventType = "private_see_future"
	EventGameDeckShuffled    GameEventType = "game_deck_shuffled"
	EventPlayerSteal         GameEventType = "player_steal"
	EventPrivateStealSuccess GameEventType = "private_steal_success"
	EventPrivateStolenFrom   GameEventType = "private_stolen_from"
	EventPrivateSyncState    GameEventType = "private_sync_state"
	EventPrivateActionFailed GameEventType = "private_action_failed"
)

// EventUser identifies a participant inside an event.
type EventUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
}

// GameEvent is the envelope for every outbound message.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	User    *EventUser             `json:"user,omitempty"`
	Target  *EventUser             `json:"target,omitempty"`
	Card    models.Card            `json:"card,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	State   *ObfGameState          `json:"state,omitempty"`
}
