package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/model"
)

const sendBuffer = 64

// ErrMalformedCommand marks an inbound frame that could not be decoded.
var ErrMalformedCommand = errors.New("malformed command")

// Conn is one participant's socket. Reads happen on the handler goroutine;
// every write goes through the send queue drained by WritePump.
type Conn struct {
	ws       *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	log      zerolog.Logger
	UserID   string
	UserType model.UserType

	mu        sync.Mutex
	sessionID string
}

// NewConn wraps an upgraded socket for the given participant.
func NewConn(ws *websocket.Conn, userID string, userType model.UserType, log zerolog.Logger) *Conn {
	c := &Conn{
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		log:      log,
		UserID:   userID,
		UserType: userType,
	}
	if ws != nil {
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	return c
}

// SessionID returns the room this connection has joined, if any.
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Conn) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// Enqueue queues a pre-encoded message without blocking. It returns false
// when the connection is closed or its queue is full.
func (c *Conn) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Send encodes and queues a message.
func (c *Conn) Send(msg Message) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("Encode message failed")
		return false
	}
	return c.Enqueue(payload)
}

// Reply queues a direct reply carrying the request's correlation id.
func (c *Conn) Reply(event Event, requestID string, payload any) bool {
	msg, err := NewMessage(event, requestID, payload)
	if err != nil {
		c.log.Error().Err(err).Str("event", string(event)).Msg("Build reply failed")
		return false
	}
	return c.Send(msg)
}

// ReplyError queues an error event for a request.
func (c *Conn) ReplyError(requestID, code, message string) bool {
	return c.Reply(EventError, requestID, ErrorPayload{Code: code, Message: message})
}

// ReadCommand blocks for the next client command. A frame that is not a
// command envelope yields ErrMalformedCommand; the socket stays usable.
func (c *Conn) ReadCommand() (Command, error) {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return Command{}, err
	}
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return cmd, nil
}

// WritePump drains the send queue and keeps the peer alive with pings.
// Call in a goroutine; it owns closing the underlying socket.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the connection is shutting down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}
