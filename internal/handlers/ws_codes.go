// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Application close codes sent on game sockets. Auth and path problems are rejected
// before the upgrade with a plain HTTP status instead.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client did not negotiate the "game" subprotocol.
	JoinFailedError     websocket.StatusCode = 3004 // The room refused the participant.
)
