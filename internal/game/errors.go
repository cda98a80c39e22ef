// internal/game/errors.go
package game

import "errors"

// Validation errors. None of these mutate game state; they are reported only to the
// participant that issued the command.
var (
	ErrNotPlaying       = errors.New("no round is in progress")
	ErrActionPending    = errors.New("an action is waiting to resolve; only nope may be played")
	ErrDefusing         = errors.New("a bomb is being defused")
	ErrNotYourTurn      = errors.New("it is not your turn")
	ErrPlayerEliminated = errors.New("you have been eliminated")
	ErrUnknownPlayer    = errors.New("player is not in this game")
	ErrCardNotHeld      = errors.New("you do not hold that card")
	ErrCardNotPlayable  = errors.New("that card cannot be played on its own")
	ErrNotAPair         = errors.New("that card is not a pair card")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrNoPendingAction  = errors.New("there is no action to nope")
	ErrNotDefusing      = errors.New("you are not defusing a bomb")
	ErrDeckEmpty        = errors.New("the deck is empty")
	ErrDiscardEmpty     = errors.New("the discard pile is empty")
	ErrNotClonable      = errors.New("the top of the discard pile cannot be cloned")
	ErrUnknownAction    = errors.New("unknown action type")
)

// ErrRoomClosed is returned by AddPlayer once the last participant has left and the
// room is being torn down. Callers should create a fresh room.
var ErrRoomClosed = errors.New("room is closed")
