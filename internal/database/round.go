package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/kaboom/internal/models"
	"github.com/jason-s-yu/kaboom/internal/rating"
)

// RoundRecord is a finished round as persisted.
type RoundRecord struct {
	GameID     uuid.UUID
	Round      int
	WinnerID   uuid.UUID
	Placements []uuid.UUID // best first
	EndedAt    time.Time
}

// RecordRoundResult stores one row per placed participant, bumps the play counters of
// registered accounts and applies the rating update, all in one transaction. Guests
// without an account row are recorded in round_results only.
func RecordRoundResult(ctx context.Context, rec RoundRecord) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, status)
			VALUES ($1, 'in_progress')
			ON CONFLICT (id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, upsertGame, rec.GameID); err != nil {
			return err
		}

		for place, pid := range rec.Placements {
			q := `
				INSERT INTO round_results (game_id, round, player_id, place, did_win, ended_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (game_id, round, player_id)
				DO UPDATE SET place=$4, did_win=$5, ended_at=$6
			`
			if _, err := tx.Exec(ctx, q, rec.GameID, rec.Round, pid, place+1, pid == rec.WinnerID, rec.EndedAt); err != nil {
				return err
			}
		}

		users, err := lockUsers(ctx, tx, rec.Placements)
		if err != nil {
			return err
		}
		updated := rating.ApplyRound(users, rec.Placements)
		for i, u := range updated {
			won := 0
			if u.ID == rec.WinnerID {
				won = 1
			}
			q := `
				UPDATE users
				SET games_played = games_played + 1, games_won = games_won + $2,
				    rating = $3, rating_deviation = $4, volatility = $5
				WHERE id = $1
			`
			if _, err := tx.Exec(ctx, q, u.ID, won, u.Rating, u.RatingDeviation, u.Volatility); err != nil {
				return err
			}
			hist := `
				INSERT INTO ratings (user_id, game_id, round, old_rating, new_rating)
				VALUES ($1, $2, $3, $4, $5)
			`
			if _, err := tx.Exec(ctx, hist, u.ID, rec.GameID, rec.Round, users[i].Rating, u.Rating); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record round %d of %s: %w", rec.Round, rec.GameID, err)
	}
	return nil
}

// lockUsers loads the registered accounts among ids for update.
func lockUsers(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]models.User, error) {
	rows, err := tx.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// MarkGameAbandoned flags a game that stopped producing actions.
func MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) error {
	q := `
		UPDATE games
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, gameID)
		return err
	})
}

// MarkGameCompleted closes a game whose room was emptied.
func MarkGameCompleted(ctx context.Context, gameID uuid.UUID) error {
	q := `
		UPDATE games
		SET status = 'completed', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	_, err := DB.Exec(ctx, q, gameID)
	return err
}
