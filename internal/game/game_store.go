// internal/game/game_store.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// GameStore is the registry of live rooms. Its lock is never held while calling into
// a game.
type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*KaboomGame
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*KaboomGame),
	}
}

func (s *GameStore) AddGame(game *KaboomGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
}

func (s *GameStore) GetGame(id uuid.UUID) (*KaboomGame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.games[id]
	return g, exists
}

// GetOrCreate returns the room for id, building it with create on first use. created
// reports whether create was called.
func (s *GameStore) GetOrCreate(id uuid.UUID, create func(id uuid.UUID) *KaboomGame) (g *KaboomGame, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.games[id]; ok {
		return g, false
	}
	g = create(id)
	s.games[id] = g
	return g, true
}

// DeleteGame removes the room for id if it is still game.
func (s *GameStore) DeleteGame(id uuid.UUID, game *KaboomGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.games[id]; ok && cur == game {
		delete(s.games, id)
	}
}

// Len returns the number of live rooms.
func (s *GameStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}
