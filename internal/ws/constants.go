// internal/ws/constants.go
package websocket

import (
	"github.com/gorilla/websocket"
)

// Re-exported message types, so the build server addresses the manager
// and the protocol through one import.
const (
	TextMessage = websocket.TextMessage
	PingMessage = websocket.PingMessage
	PongMessage = websocket.PongMessage
)

// Close codes the read loop treats as a client leaving normally.
const (
	CloseNormalClosure    = websocket.CloseNormalClosure
	CloseGoingAway        = websocket.CloseGoingAway
	CloseNoStatusReceived = websocket.CloseNoStatusReceived
)

// IsUnexpectedCloseError reports whether err is a close error outside the
// given codes.
func IsUnexpectedCloseError(err error, codes ...int) bool {
	return websocket.IsUnexpectedCloseError(err, codes...)
}
