package realtime

import (
	"encoding/json"
	"sync"

	ws "github.com/stemsi/classqa/internal/websocket"
)

// Event is one inbound delivery from the server.
type Event struct {
	Name      ws.Event
	RequestID string
	Data      json.RawMessage
}

// Handler receives events for the name it was registered under.
type Handler func(Event)

var knownEvents = map[ws.Event]struct{}{
	ws.EventQuestionUpdate:     {},
	ws.EventAnswerUpdate:       {},
	ws.EventSessionUpdate:      {},
	ws.EventClassCodeGenerated: {},
	ws.EventClassCodeValidated: {},
	ws.EventError:              {},
}

// IsKnownEvent reports whether name belongs to the fixed event set.
func IsKnownEvent(name ws.Event) bool {
	_, ok := knownEvents[name]
	return ok
}

// Registry maps event names to subscribers. Every subscriber of a name
// receives each emission, in registration order.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[ws.Event][]*Subscription
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[ws.Event][]*Subscription)}
}

// Subscription is the handle returned by On.
type Subscription struct {
	registry *Registry
	name     ws.Event
	id       uint64
	handler  Handler
}

// Name returns the event this subscription listens to.
func (s *Subscription) Name() ws.Event {
	return s.name
}

// Unsubscribe removes this subscriber. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.registry == nil {
		return
	}
	s.registry.remove(s.name, s.id)
}

// On registers h for name.
func (r *Registry) On(name ws.Event, h Handler) (*Subscription, error) {
	if !IsKnownEvent(name) {
		return nil, ErrUnknownEvent
	}
	if h == nil {
		return &Subscription{name: name}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub := &Subscription{registry: r, name: name, id: r.nextID, handler: h}
	r.subs[name] = append(r.subs[name], sub)
	return sub, nil
}

// Off drops every subscriber of name. Safe when nothing is registered.
func (r *Registry) Off(name ws.Event) {
	r.mu.Lock()
	delete(r.subs, name)
	r.mu.Unlock()
}

// RemoveAllListeners clears every slot.
func (r *Registry) RemoveAllListeners() {
	r.mu.Lock()
	r.subs = make(map[ws.Event][]*Subscription)
	r.mu.Unlock()
}

// Len returns the number of subscribers of name.
func (r *Registry) Len(name ws.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[name])
}

// Emit invokes every subscriber of ev.Name exactly once and returns how many
// ran. Handlers run outside the lock, so they may subscribe or unsubscribe.
func (r *Registry) Emit(ev Event) int {
	r.mu.Lock()
	subs := make([]*Subscription, len(r.subs[ev.Name]))
	copy(subs, r.subs[ev.Name])
	r.mu.Unlock()

	for _, s := range subs {
		s.handler(ev)
	}
	return len(subs)
}

func (r *Registry) remove(name ws.Event, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subs[name]
	for i, s := range subs {
		if s.id == id {
			r.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(r.subs[name]) == 0 {
		delete(r.subs, name)
	}
}
