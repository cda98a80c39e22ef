// internal/handlers/game.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/kaboom/internal/auth"
)

// GameStateHandler serves GET /game/state/{room_uuid}: the caller's own snapshot of a
// room they are seated in.
func (gs *GameServer) GameStateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	gameID, ok := parseRoomID(r.URL.Path, "/game/state/")
	if !ok {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	claims, err := auth.AuthenticateJWT(extractToken(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	g, ok := gs.GameStore.GetGame(gameID)
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if !g.HasPlayer(claims.UserID) {
		http.Error(w, "not a participant of this game", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, g.GetCurrentObfuscatedGameState(claims.UserID))
}

// HealthzHandler reports liveness and the number of open rooms.
func (gs *GameServer) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"rooms":  gs.GameStore.Len(),
	})
}
