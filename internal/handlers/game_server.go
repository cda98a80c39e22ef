// internal/handlers/game_server.go
package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/database"
	"github.com/jason-s-yu/kaboom/internal/game"
	"github.com/sirupsen/logrus"
)

// GameServer holds the room registry and the socket hub of every live room.
type GameServer struct {
	GameStore *game.GameStore
	Rules     game.HouseRules

	logger *logrus.Logger

	mu   sync.Mutex
	hubs map[*game.KaboomGame]*Hub
}

func NewGameServer(logger *logrus.Logger, rules game.HouseRules) *GameServer {
	return &GameServer{
		GameStore: game.NewGameStore(),
		Rules:     rules,
		logger:    logger,
		hubs:      make(map[*game.KaboomGame]*Hub),
	}
}

// GetOrCreateGame returns the room for id together with its hub, creating both on
// first use.
func (gs *GameServer) GetOrCreateGame(id uuid.UUID) (*game.KaboomGame, *Hub) {
	g, created := gs.GameStore.GetOrCreate(id, gs.newGame)
	if created {
		gs.logger.Infof("created room %s", id)
	}
	return g, gs.hubFor(g)
}

// JoinGame seats userID in room id. A room that closed between lookup and join is
// retried until the registry hands out a fresh one.
func (gs *GameServer) JoinGame(ctx context.Context, id, userID uuid.UUID, username string) (*game.KaboomGame, *Hub, error) {
	for {
		g, hub := gs.GetOrCreateGame(id)
		err := g.AddPlayer(userID, username)
		if !errors.Is(err, game.ErrRoomClosed) {
			return g, hub, err
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (gs *GameServer) hubFor(g *game.KaboomGame) *Hub {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if hub, ok := gs.hubs[g]; ok {
		return hub
	}
	hub := NewHub(g.ID, gs.logger)
	gs.hubs[g] = hub
	return hub
}

// newGame builds a room wired to its hub and to persistence. Called under the
// registry lock, so it must not touch the registry itself.
func (gs *GameServer) newGame(id uuid.UUID) *game.KaboomGame {
	g := game.NewKaboomGame(id, gs.Rules)
	g.SetLogger(gs.logger)

	hub := gs.hubFor(g)
	g.BroadcastFn = hub.Broadcast
	g.BroadcastToPlayerFn = hub.SendTo
	g.OnRoundEnd = gs.recordRound
	g.OnEmpty = func(gameID uuid.UUID) {
		gs.removeGame(gameID, g)
	}
	return g
}

// removeGame drops an emptied room from the registry.
func (gs *GameServer) removeGame(id uuid.UUID, g *game.KaboomGame) {
	gs.GameStore.DeleteGame(id, g)

	gs.mu.Lock()
	hub := gs.hubs[g]
	delete(gs.hubs, g)
	gs.mu.Unlock()
	if hub != nil {
		hub.Close()
	}

	gs.logger.Infof("room %s emptied and removed", id)
	if database.DB == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.MarkGameCompleted(ctx, id); err != nil {
			gs.logger.Warnf("failed to mark room %s completed: %v", id, err)
		}
	}()
}

// recordRound persists a finished round. It runs with the game lock held, so the
// write happens in the background.
func (gs *GameServer) recordRound(res game.RoundResult) {
	if database.DB == nil {
		return
	}
	rec := database.RoundRecord{
		GameID:     res.GameID,
		Round:      res.Round,
		WinnerID:   res.WinnerID,
		Placements: res.Placements,
		EndedAt:    res.EndedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.RecordRoundResult(ctx, rec); err != nil {
			gs.logger.Errorf("failed to record round: %v", err)
		}
	}()
}
