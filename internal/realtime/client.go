package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/model"
	ws "github.com/stemsi/classqa/internal/websocket"
)

// DefaultTimeout bounds how long a request may wait for its reply.
const DefaultTimeout = 10 * time.Second

// Transport is the duplex link to the server.
type Transport interface {
	Connected() bool
	Send(ctx context.Context, cmd ws.Command) error
}

// Client sends commands over a Transport and routes inbound events into a
// Registry. Each command carries a request id the server echoes back, so a
// caller can also wait on its own reply with Call.
type Client struct {
	transport Transport
	registry  *Registry
	log       zerolog.Logger
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string]chan Event
}

// NewClient creates a Client. A zero timeout means DefaultTimeout.
func NewClient(t Transport, reg *Registry, log zerolog.Logger, timeout time.Duration) *Client {
	if reg == nil {
		reg = NewRegistry()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		transport: t,
		registry:  reg,
		log:       log.With().Str("component", "realtime_client").Logger(),
		timeout:   timeout,
		pending:   make(map[string]chan Event),
	}
}

// Registry returns the registry inbound events are emitted on.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Timeout returns the reply window.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Connected reports whether the transport link is up.
func (c *Client) Connected() bool {
	return c.transport != nil && c.transport.Connected()
}

// NewRequestID returns a fresh correlation id.
func NewRequestID() string {
	return uuid.NewString()
}

// Send delivers one command with the given correlation id. It never touches
// the transport while disconnected.
func (c *Client) Send(ctx context.Context, requestID string, action ws.Action, payload any) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	cmd, err := ws.NewCommand(action, requestID, payload)
	if err != nil {
		return err
	}
	return c.transport.Send(ctx, cmd)
}

func (c *Client) fire(ctx context.Context, action ws.Action, payload any) (string, error) {
	id := NewRequestID()
	if err := c.Send(ctx, id, action, payload); err != nil {
		return "", err
	}
	return id, nil
}

// GenerateClassCode asks the server to open a session and issue its code.
func (c *Client) GenerateClassCode(ctx context.Context, professorID, className string) (string, error) {
	return c.fire(ctx, ws.ActionGenerateClassCode, ws.GenerateClassCodeRequest{ProfessorID: professorID, ClassName: className})
}

// ValidateClassCode asks whether code names an active session.
func (c *Client) ValidateClassCode(ctx context.Context, code string) (string, error) {
	return c.fire(ctx, ws.ActionValidateClassCode, ws.ValidateClassCodeRequest{Code: code})
}

// SendQuestion submits a question to the joined session.
func (c *Client) SendQuestion(ctx context.Context, q model.Question) (string, error) {
	return c.fire(ctx, ws.ActionSendQuestion, ws.SendQuestionRequest{Question: q})
}

// SendAnswer submits an answer to the joined session.
func (c *Client) SendAnswer(ctx context.Context, a model.Answer) (string, error) {
	return c.fire(ctx, ws.ActionSendAnswer, ws.SendAnswerRequest{Answer: a})
}

// JoinSession attaches this connection to a session room.
func (c *Client) JoinSession(ctx context.Context, sessionID string) (string, error) {
	return c.fire(ctx, ws.ActionJoinSession, ws.JoinSessionRequest{SessionID: sessionID})
}

// LikeAnswer records this participant's like on an answer.
func (c *Client) LikeAnswer(ctx context.Context, answerID string) (string, error) {
	return c.fire(ctx, ws.ActionLikeAnswer, ws.LikeAnswerRequest{AnswerID: answerID})
}

// Call sends a command and waits for the event carrying the same request id.
// An error event is returned as *ServerError.
func (c *Client) Call(ctx context.Context, action ws.Action, payload any) (Event, error) {
	id := NewRequestID()
	ch := make(chan Event, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.Send(ctx, id, action, payload); err != nil {
		return Event{}, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case ev := <-ch:
		if ev.Name == ws.EventError {
			return ev, decodeServerError(ev)
		}
		return ev, nil
	case <-timer.C:
		return Event{}, ErrTimeout
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// AwaitClassCode generates a class code and waits for it.
func (c *Client) AwaitClassCode(ctx context.Context, professorID, className string) (ws.ClassCodeGenerated, error) {
	return callTyped[ws.ClassCodeGenerated](ctx, c, ws.ActionGenerateClassCode,
		ws.GenerateClassCodeRequest{ProfessorID: professorID, ClassName: className})
}

// AwaitValidation validates a class code and waits for the verdict.
func (c *Client) AwaitValidation(ctx context.Context, code string) (ws.ClassCodeValidated, error) {
	return callTyped[ws.ClassCodeValidated](ctx, c, ws.ActionValidateClassCode, ws.ValidateClassCodeRequest{Code: code})
}

// AwaitJoin joins a session and waits for the resulting session-update.
func (c *Client) AwaitJoin(ctx context.Context, sessionID string) (model.SessionUpdate, error) {
	return callTyped[model.SessionUpdate](ctx, c, ws.ActionJoinSession, ws.JoinSessionRequest{SessionID: sessionID})
}

// AwaitLike likes an answer and waits for the updated answer.
func (c *Client) AwaitLike(ctx context.Context, answerID string) (model.Answer, error) {
	return callTyped[model.Answer](ctx, c, ws.ActionLikeAnswer, ws.LikeAnswerRequest{AnswerID: answerID})
}

func callTyped[T any](ctx context.Context, c *Client, action ws.Action, payload any) (T, error) {
	var out T
	ev, err := c.Call(ctx, action, payload)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(ev.Data, &out); err != nil {
		return out, errors.Join(ErrInvalidResponse, err)
	}
	return out, nil
}

// Dispatch routes one raw inbound frame. Malformed frames and unknown event
// names are logged and dropped.
func (c *Client) Dispatch(raw []byte) {
	var msg ws.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Warn().Err(err).Msg("Dropping malformed event")
		return
	}
	if msg.Event == ws.EventPong {
		return
	}
	if !IsKnownEvent(msg.Event) {
		c.log.Warn().Str("event", string(msg.Event)).Msg("Dropping unknown event")
		return
	}

	ev := Event{Name: msg.Event, RequestID: msg.RequestID, Data: msg.Data}
	if ev.RequestID != "" {
		c.mu.Lock()
		ch, ok := c.pending[ev.RequestID]
		if ok {
			delete(c.pending, ev.RequestID)
		}
		c.mu.Unlock()
		if ok {
			ch <- ev
		}
	}

	c.registry.Emit(ev)
}

// OnQuestionUpdate subscribes fn to decoded question-update payloads.
func (c *Client) OnQuestionUpdate(fn func(model.Question)) (*Subscription, error) {
	return c.registry.On(ws.EventQuestionUpdate, typed(c.log, func(q model.Question, _ Event) { fn(q) }))
}

// OnAnswerUpdate subscribes fn to decoded answer-update payloads.
func (c *Client) OnAnswerUpdate(fn func(model.Answer)) (*Subscription, error) {
	return c.registry.On(ws.EventAnswerUpdate, typed(c.log, func(a model.Answer, _ Event) { fn(a) }))
}

// OnSessionUpdate subscribes fn to decoded session-update payloads.
func (c *Client) OnSessionUpdate(fn func(model.SessionUpdate)) (*Subscription, error) {
	return c.registry.On(ws.EventSessionUpdate, typed(c.log, func(u model.SessionUpdate, _ Event) { fn(u) }))
}

// typed wraps fn in a Handler that decodes the payload first. Events whose
// payload does not decode are dropped.
func typed[T any](log zerolog.Logger, fn func(T, Event)) Handler {
	return func(ev Event) {
		var v T
		if len(ev.Data) == 0 {
			log.Warn().Str("event", string(ev.Name)).Msg("Dropping event without payload")
			return
		}
		if err := json.Unmarshal(ev.Data, &v); err != nil {
			log.Warn().Err(err).Str("event", string(ev.Name)).Msg("Dropping event with invalid payload")
			return
		}
		fn(v, ev)
	}
}

func decodeServerError(ev Event) error {
	var p ws.ErrorPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		return ErrInvalidResponse
	}
	return &ServerError{Code: p.Code, Message: p.Message}
}
