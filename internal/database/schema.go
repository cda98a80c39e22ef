package database

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id               UUID PRIMARY KEY,
	email            TEXT UNIQUE,
	password         TEXT NOT NULL DEFAULT '',
	username         TEXT NOT NULL,
	is_ephemeral     BOOLEAN NOT NULL DEFAULT FALSE,
	games_played     INT NOT NULL DEFAULT 0,
	games_won        INT NOT NULL DEFAULT 0,
	rating           INT NOT NULL DEFAULT 1500,
	rating_deviation DOUBLE PRECISION NOT NULL DEFAULT 350,
	volatility       DOUBLE PRECISION NOT NULL DEFAULT 0.06,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS games (
	id         UUID PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'in_progress',
	start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS round_results (
	game_id   UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	round     INT NOT NULL,
	player_id UUID NOT NULL,
	place     INT NOT NULL,
	did_win   BOOLEAN NOT NULL,
	ended_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (game_id, round, player_id)
);

CREATE TABLE IF NOT EXISTS ratings (
	user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	game_id    UUID NOT NULL,
	round      INT NOT NULL,
	old_rating INT NOT NULL,
	new_rating INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS game_actions (
	id             BIGSERIAL PRIMARY KEY,
	game_id        UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	round          INT NOT NULL,
	action_index   INT NOT NULL,
	actor_user_id  UUID,
	action_type    TEXT NOT NULL,
	action_payload JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS game_actions_game_idx ON game_actions (game_id, created_at);
`

// EnsureSchema creates the tables the service needs if they do not exist yet.
func EnsureSchema(ctx context.Context) error {
	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
