package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/stemsi/classqa/internal/model"
	ws "github.com/stemsi/classqa/internal/websocket"
)

// Handlers are the result callbacks a view hands to its Binding. Any of
// them may be nil.
type Handlers struct {
	OnCodeGenerated  func(code, className string)
	OnCodeValidated  func(isValid bool, className string)
	OnQuestionUpdate func(model.Question)
	OnAnswerUpdate   func(model.Answer)
	OnSessionUpdate  func(model.SessionUpdate)
}

type opKind int

const (
	opGenerate opKind = iota
	opValidate
	opSend
	opCount
)

type pendingOp struct {
	requestID string
	timer     *time.Timer
}

// Binding ties registry subscriptions to a view's lifetime: Mount
// subscribes, Unmount drops every subscription so late events are ignored.
// It tracks one outstanding request per kind; a second request of the same
// kind while one is in flight is rejected with ErrBusy.
type Binding struct {
	client  *Client
	timeout time.Duration

	mu       sync.Mutex
	handlers Handlers
	subs     []*Subscription
	mounted  bool
	pending  [opCount]*pendingOp
	err      string
	onChange func()
}

// NewBinding creates an unmounted Binding. The reply window defaults to
// the client's timeout.
func NewBinding(client *Client, h Handlers) *Binding {
	return &Binding{
		client:   client,
		timeout:  client.Timeout(),
		handlers: h,
	}
}

// SetTimeout overrides the reply window.
func (b *Binding) SetTimeout(d time.Duration) {
	b.mu.Lock()
	b.timeout = d
	b.mu.Unlock()
}

// OnChange registers fn to run after any busy flag or the error slot changes.
func (b *Binding) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Mount subscribes the binding. Mounting twice is a no-op.
func (b *Binding) Mount() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mounted {
		return nil
	}
	if err := b.subscribeLocked(); err != nil {
		return err
	}
	b.mounted = true
	return nil
}

// SetHandlers swaps the result callbacks, re-subscribing if mounted.
func (b *Binding) SetHandlers(h Handlers) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = h
	if !b.mounted {
		return nil
	}
	b.unsubscribeLocked()
	return b.subscribeLocked()
}

// Unmount drops every subscription and abandons in-flight requests.
func (b *Binding) Unmount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mounted = false
	b.unsubscribeLocked()
	for i, op := range b.pending {
		if op != nil {
			op.timer.Stop()
			b.pending[i] = nil
		}
	}
}

// IsGenerating reports whether a class code request is in flight.
func (b *Binding) IsGenerating() bool { return b.busy(opGenerate) }

// IsValidating reports whether a code validation is in flight.
func (b *Binding) IsValidating() bool { return b.busy(opValidate) }

// IsSending reports whether a question or answer submission is in flight.
func (b *Binding) IsSending() bool { return b.busy(opSend) }

// Error returns the last request error, or "".
func (b *Binding) Error() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// GenerateClassCode requests a new class code.
func (b *Binding) GenerateClassCode(ctx context.Context, professorID, className string) error {
	return b.start(ctx, opGenerate, ws.ActionGenerateClassCode,
		ws.GenerateClassCodeRequest{ProfessorID: professorID, ClassName: className})
}

// ValidateClassCode checks a class code.
func (b *Binding) ValidateClassCode(ctx context.Context, code string) error {
	return b.start(ctx, opValidate, ws.ActionValidateClassCode, ws.ValidateClassCodeRequest{Code: code})
}

// SendQuestion submits a question to the joined session.
func (b *Binding) SendQuestion(ctx context.Context, text string) error {
	return b.start(ctx, opSend, ws.ActionSendQuestion, ws.SendQuestionRequest{Question: model.Question{Text: text}})
}

// SendAnswer submits an answer to the joined session.
func (b *Binding) SendAnswer(ctx context.Context, a model.Answer) error {
	return b.start(ctx, opSend, ws.ActionSendAnswer, ws.SendAnswerRequest{Answer: a})
}

// JoinSession attaches to a session room. It has no busy flag; the
// resulting session-update reaches OnSessionUpdate.
func (b *Binding) JoinSession(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	if !b.mounted {
		b.mu.Unlock()
		return ErrNotMounted
	}
	b.err = ""
	b.mu.Unlock()

	err := b.client.Send(ctx, NewRequestID(), ws.ActionJoinSession, ws.JoinSessionRequest{SessionID: sessionID})
	if err != nil {
		b.fail(err)
	}
	b.changed()
	return err
}

func (b *Binding) start(ctx context.Context, kind opKind, action ws.Action, payload any) error {
	b.mu.Lock()
	if !b.mounted {
		b.mu.Unlock()
		return ErrNotMounted
	}
	if b.pending[kind] != nil {
		b.err = ErrBusy.Error()
		b.mu.Unlock()
		b.changed()
		return ErrBusy
	}
	b.err = ""
	if !b.client.Connected() {
		b.err = ErrNotConnected.Error()
		b.mu.Unlock()
		b.changed()
		return ErrNotConnected
	}

	op := &pendingOp{requestID: NewRequestID()}
	op.timer = time.AfterFunc(b.timeout, func() { b.expire(kind, op) })
	b.pending[kind] = op
	b.mu.Unlock()
	b.changed()

	if err := b.client.Send(ctx, op.requestID, action, payload); err != nil {
		b.mu.Lock()
		if b.pending[kind] == op {
			op.timer.Stop()
			b.pending[kind] = nil
		}
		b.err = err.Error()
		b.mu.Unlock()
		b.changed()
		return err
	}
	return nil
}

func (b *Binding) expire(kind opKind, op *pendingOp) {
	b.mu.Lock()
	if b.pending[kind] != op {
		b.mu.Unlock()
		return
	}
	b.pending[kind] = nil
	b.err = ErrTimeout.Error()
	b.mu.Unlock()
	b.changed()
}

// settle clears the pending op of kind if ev answers it. It reports whether
// the event belongs to this binding.
func (b *Binding) settle(kind opKind, ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return false
	}
	op := b.pending[kind]
	if op == nil {
		return ev.RequestID == ""
	}
	if ev.RequestID != "" && ev.RequestID != op.requestID {
		return false
	}
	op.timer.Stop()
	b.pending[kind] = nil
	return true
}

func (b *Binding) busy(kind opKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[kind] != nil
}

func (b *Binding) fail(err error) {
	b.mu.Lock()
	b.err = err.Error()
	b.mu.Unlock()
}

func (b *Binding) changed() {
	b.mu.Lock()
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (b *Binding) current() (Handlers, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers, b.mounted
}

func (b *Binding) subscribeLocked() error {
	log := b.client.log
	reg := b.client.registry

	add := func(name ws.Event, h Handler) error {
		sub, err := reg.On(name, h)
		if err != nil {
			return err
		}
		b.subs = append(b.subs, sub)
		return nil
	}

	// Reply events are always observed so busy flags clear even without a callback.
	err := add(ws.EventClassCodeGenerated, typed(log, func(p ws.ClassCodeGenerated, ev Event) {
		if !b.settle(opGenerate, ev) {
			return
		}
		b.changed()
		if h, ok := b.current(); ok && h.OnCodeGenerated != nil {
			h.OnCodeGenerated(p.Code, p.ClassName)
		}
	}))
	if err != nil {
		return err
	}

	err = add(ws.EventClassCodeValidated, typed(log, func(p ws.ClassCodeValidated, ev Event) {
		if !b.settle(opValidate, ev) {
			return
		}
		b.changed()
		if h, ok := b.current(); ok && h.OnCodeValidated != nil {
			h.OnCodeValidated(p.IsValid, p.ClassName)
		}
	}))
	if err != nil {
		return err
	}

	err = add(ws.EventError, typed(log, func(p ws.ErrorPayload, ev Event) {
		if ev.RequestID == "" {
			return
		}
		b.mu.Lock()
		matched := false
		if b.mounted {
			for i, op := range b.pending {
				if op != nil && op.requestID == ev.RequestID {
					op.timer.Stop()
					b.pending[i] = nil
					matched = true
				}
			}
			if matched {
				b.err = (&ServerError{Code: p.Code, Message: p.Message}).Error()
			}
		}
		b.mu.Unlock()
		if matched {
			b.changed()
		}
	}))
	if err != nil {
		return err
	}

	// Broadcast events reach the callback whoever caused them; our own
	// submission also clears the sending flag.
	err = add(ws.EventQuestionUpdate, typed(log, func(q model.Question, ev Event) {
		b.settleSend(ev)
		if h, ok := b.current(); ok && h.OnQuestionUpdate != nil {
			h.OnQuestionUpdate(q)
		}
	}))
	if err != nil {
		return err
	}

	err = add(ws.EventAnswerUpdate, typed(log, func(a model.Answer, ev Event) {
		b.settleSend(ev)
		if h, ok := b.current(); ok && h.OnAnswerUpdate != nil {
			h.OnAnswerUpdate(a)
		}
	}))
	if err != nil {
		return err
	}

	if b.handlers.OnSessionUpdate != nil {
		err = add(ws.EventSessionUpdate, typed(log, func(u model.SessionUpdate, _ Event) {
			if h, ok := b.current(); ok && h.OnSessionUpdate != nil {
				h.OnSessionUpdate(u)
			}
		}))
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Binding) settleSend(ev Event) {
	if ev.RequestID == "" {
		return
	}
	b.mu.Lock()
	op := b.pending[opSend]
	matched := b.mounted && op != nil && op.requestID == ev.RequestID
	if matched {
		op.timer.Stop()
		b.pending[opSend] = nil
	}
	b.mu.Unlock()
	if matched {
		b.changed()
	}
}

func (b *Binding) unsubscribeLocked() {
	for _, s := range b.subs {
		s.Unsubscribe()
	}
	b.subs = nil
}
