package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/config"
)

// Hub tracks which connections sit in which session room and fans events
// out to them. With a Redis client, broadcasts travel through pub/sub so
// every server instance delivers to its own members; without one, delivery
// is local only.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewHub creates a Hub. rdb may be nil.
func NewHub(rdb *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Conn]struct{}),
		rdb:   rdb,
		log:   log.With().Str("component", "hub").Logger(),
	}
}

// Join moves c into the session's room, leaving any previous room. A
// closed connection is not admitted.
func (h *Hub) Join(sessionID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-c.Done():
		return
	default:
	}
	if prev := c.SessionID(); prev != "" && prev != sessionID {
		h.removeLocked(prev, c)
	}
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*Conn]struct{})
		h.rooms[sessionID] = room
	}
	room[c] = struct{}{}
	c.setSessionID(sessionID)
}

// Leave removes c from its room.
func (h *Hub) Leave(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sessionID := c.SessionID(); sessionID != "" {
		h.removeLocked(sessionID, c)
		c.setSessionID("")
	}
}

func (h *Hub) removeLocked(sessionID string, c *Conn) {
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

// Members returns the number of local connections in a room.
func (h *Hub) Members(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Stats returns the number of open rooms and locally connected members.
func (h *Hub) Stats() (rooms, members int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, room := range h.rooms {
		members += len(room)
	}
	return len(h.rooms), members
}

// Broadcast sends msg to every member of the session's room.
func (h *Hub) Broadcast(ctx context.Context, sessionID string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if h.rdb == nil {
		h.deliver(sessionID, payload)
		return nil
	}
	return h.rdb.Publish(ctx, config.CacheKey.SessionEventsChannel(sessionID), payload).Err()
}

// Run relays Redis pub/sub messages to local rooms until ctx is cancelled.
// Call in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		<-ctx.Done()
		return
	}

	pubsub := h.rdb.PSubscribe(ctx, config.CacheKey.SessionEventsPattern())
	defer pubsub.Close()

	h.log.Info().Msg("Hub relay started")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Hub relay stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			sessionID, ok := config.CacheKey.SessionIDFromChannel(msg.Channel)
			if !ok {
				continue
			}
			h.deliver(sessionID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	var slow []*Conn
	for c := range h.rooms[sessionID] {
		if !c.Enqueue(payload) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("session_id", sessionID).Str("user_id", c.UserID).Msg("Dropping slow consumer")
		// Close first so a concurrent Join cannot readmit the connection.
		c.Close()
		h.Leave(c)
	}
}
