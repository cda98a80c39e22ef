package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email,omitempty"`
	Password string    `json:"-"`
	Username string    `json:"username"`

	IsEphemeral bool `json:"is_ephemeral"`

	GamesPlayed int `json:"games_played"`
	GamesWon    int `json:"games_won"`

	// Glicko-2 rating on the 1500 scale.
	Rating          int     `json:"rating"`
	RatingDeviation float64 `json:"rating_deviation"`
	Volatility      float64 `json:"volatility"`
}
