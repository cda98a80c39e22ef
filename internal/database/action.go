package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/kaboom/internal/cache"
)

// InsertGameActions persists a batch of historian records in one transaction,
// upserting each game row on first sight.
func InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of %s: %w", rec.ActionIndex, rec.GameID, err)
			}
		}
		return nil
	})
}

func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	upsertGameQ := `
		INSERT INTO games (id, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (id)
		DO UPDATE SET status = 'in_progress', end_time = NULL
		WHERE games.status = 'abandoned'
	`
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID); err != nil {
		return err
	}

	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO game_actions (
			game_id, round, action_index, actor_user_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, NULLIF($4, '00000000-0000-0000-0000-000000000000'::uuid), $5, $6, $7)
	`
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.Round, rec.ActionIndex, rec.ActorUserID, rec.ActionType, jsonPayload,
		time.UnixMilli(rec.Timestamp),
	)
	return err
}
