package realtime

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	ws "github.com/stemsi/classqa/internal/websocket"
)

const writeWait = 10 * time.Second

// WSTransport is a Transport over a gorilla/websocket client connection.
// It does not reconnect: once the link drops, Connected stays false.
type WSTransport struct {
	conn      *websocket.Conn
	log       zerolog.Logger
	writeMu   sync.Mutex
	connected atomic.Bool
	closeOnce sync.Once
}

// Dial opens a socket to url (ws:// or wss://).
func Dial(ctx context.Context, url string, header http.Header, log zerolog.Logger) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	t := &WSTransport{
		conn: conn,
		log:  log.With().Str("component", "ws_transport").Logger(),
	}
	t.connected.Store(true)
	return t, nil
}

// Connected reports whether the link is up.
func (t *WSTransport) Connected() bool {
	return t.connected.Load()
}

// Send writes one command. The write deadline is the context deadline when
// set, otherwise writeWait.
func (t *WSTransport) Send(ctx context.Context, cmd ws.Command) error {
	if !t.Connected() {
		return ErrNotConnected
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteJSON(cmd); err != nil {
		t.connected.Store(false)
		return err
	}
	return nil
}

// Listen reads frames and hands each to dispatch until the link closes.
// A normal closure returns nil.
func (t *WSTransport) Listen(dispatch func([]byte)) error {
	defer t.connected.Store(false)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.log.Debug().Msg("Connection closed")
				return nil
			}
			if !t.Connected() {
				return nil
			}
			return err
		}
		dispatch(data)
	}
}

// Close sends a close frame and tears the socket down.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.connected.Store(false)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}
