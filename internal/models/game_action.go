package models

import "github.com/google/uuid"

// GameAction captures a participant's command as it arrives over the socket.
// Only the fields relevant to ActionType are read.
type GameAction struct {
	ActionType string    `json:"type"`
	Card       Card      `json:"card,omitempty"`
	TargetID   uuid.UUID `json:"target,omitempty"`
	Index      int       `json:"index,omitempty"`
	Public     bool      `json:"public,omitempty"`
}

// Command types accepted from clients.
const (
	ActionPlayCard     = "action_play_card"
	ActionPlayPair     = "action_play_pair"
	ActionNope         = "action_nope"
	ActionDraw         = "action_draw"
	ActionInsertBomb   = "action_insert_bomb"
	ActionRestart      = "action_restart"
	ActionRequestState = "request_state"
)
