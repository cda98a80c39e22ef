// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/kaboom/internal/game"
	"github.com/jason-s-yu/kaboom/internal/middleware"
	"github.com/jason-s-yu/kaboom/internal/models"
	"github.com/sirupsen/logrus"
)

const maxMessageBytes = 4096

type wsError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var pongFrame = []byte(`{"type":"pong"}`)

// GameWSHandler upgrades GET /game/ws/{room_uuid}. Connecting joins the room, which
// is created on first contact; disconnecting leaves it.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, ok := parseRoomID(r.URL.Path, "/game/ws/")
		if !ok {
			http.Error(w, "invalid game id, use /game/ws/{uuid}", http.StatusBadRequest)
			return
		}

		// The identity cookie has to be set on the handshake response.
		ident, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("authentication failed for game %s: %v", gameID, err)
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error for game %s: %v", gameID, err)
			return
		}
		defer c.CloseNow()
		c.SetReadLimit(maxMessageBytes)

		if c.Subprotocol() != "game" {
			logger.Warnf("client for game %s connected with invalid subprotocol %q", gameID, c.Subprotocol())
			c.Close(BadSubprotocolError, "client must use the game subprotocol")
			return
		}

		g, hub, err := gs.JoinGame(r.Context(), gameID, ident.UserID, ident.Username)
		if err != nil {
			logger.Warnf("user %s could not join game %s: %v", ident.UserID, gameID, err)
			c.Close(JoinFailedError, "could not join game")
			return
		}
		cl := hub.Register(ident.UserID, c)
		middleware.LogWebSocketConnect(logger, gameID, ident.UserID, r)

		// The join snapshot went out before the socket was attached.
		g.SendState(ident.UserID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		readGameMessages(ctx, c, g, hub, ident.UserID, logger)

		if hub.Unregister(cl) {
			g.HandleDisconnect(ident.UserID)
		}
		middleware.LogWebSocketDisconnect(logger, gameID, ident.UserID)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readGameMessages decodes commands from one socket and hands them to the room until
// the socket closes. Rejections are reported only to the sender.
func readGameMessages(ctx context.Context, c *websocket.Conn, g *game.KaboomGame, hub *Hub, userID uuid.UUID, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				logger.Debugf("socket of %s in game %s closed normally", userID, g.ID)
			case errors.Is(err, context.Canceled):
				logger.Debugf("socket context of %s in game %s canceled", userID, g.ID)
			default:
				logger.Infof("read from %s in game %s ended: %v", userID, g.ID, err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var action models.GameAction
		if err := json.Unmarshal(data, &action); err != nil {
			sendWsError(hub, userID, "invalid JSON format")
			continue
		}

		if action.ActionType == "ping" {
			hub.SendRaw(userID, pongFrame)
			continue
		}

		logger.Tracef("game %s: %s sent %s", g.ID, userID, action.ActionType)
		if err := g.HandlePlayerAction(userID, action); err != nil {
			logger.Debugf("game %s: rejected %s from %s: %v", g.ID, action.ActionType, userID, err)
			sendWsError(hub, userID, err.Error())
		}
	}
}

func sendWsError(hub *Hub, userID uuid.UUID, msg string) {
	data, err := json.Marshal(wsError{Type: "error", Message: msg})
	if err != nil {
		return
	}
	hub.SendRaw(userID, data)
}
