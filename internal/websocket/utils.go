package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 5 * time.Minute
	pingPeriod = (pongWait * 9) / 10
)

// IsUnexpectedClose reports whether err ended the socket abnormally.
// Normal closes and going-away (tab closed, client quit) are expected.
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived)
}
