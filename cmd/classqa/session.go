package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/stemsi/classqa/internal/clientstate"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/realtime"
	"github.com/stemsi/classqa/internal/view"
)

var (
	errNotLoggedIn = errors.New("not logged in; run classqa login first")
	errNoClass     = errors.New("no class joined; run classqa join CODE first")
)

// link is an open classroom socket.
type link struct {
	client    *realtime.Client
	transport *realtime.WSTransport
	// closed receives the read loop result once the socket drops.
	closed chan error
}

func (l *link) Close() error { return l.transport.Close() }

// identity returns the stored participant and its ticket.
func (a *app) identity() (clientstate.StoredUser, string, error) {
	u, ok := a.store.User()
	if !ok {
		return clientstate.StoredUser{}, "", errNotLoggedIn
	}
	ticket, ok := a.store.Ticket()
	if !ok {
		return clientstate.StoredUser{}, "", errNotLoggedIn
	}
	return u, ticket, nil
}

func (a *app) connect(ctx context.Context, ticket string) (*link, error) {
	target, err := socketURL(a.cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+ticket)

	t, err := realtime.Dial(ctx, target, header, a.log)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}
	client := realtime.NewClient(t, realtime.NewRegistry(), a.log, a.cfg.Timeout)

	l := &link{client: client, transport: t, closed: make(chan error, 1)}
	go func() { l.closed <- t.Listen(client.Dispatch) }()
	return l, nil
}

// enter validates a class code and joins its room.
func (a *app) enter(ctx context.Context, l *link, code string) (model.SessionUpdate, error) {
	verdict, err := l.client.AwaitValidation(ctx, code)
	if err != nil {
		return model.SessionUpdate{}, err
	}
	if !verdict.IsValid {
		return model.SessionUpdate{}, fmt.Errorf("class code %s is not valid", strings.ToUpper(code))
	}
	return l.client.AwaitJoin(ctx, verdict.SessionID)
}

// joined opens a socket and re-enters the class recorded in the state file.
func (a *app) joined(ctx context.Context) (*link, clientstate.StoredUser, model.SessionUpdate, error) {
	u, ticket, err := a.identity()
	if err != nil {
		return nil, u, model.SessionUpdate{}, err
	}
	code, ok := a.store.JoinedClass()
	if !ok {
		return nil, u, model.SessionUpdate{}, errNoClass
	}
	l, err := a.connect(ctx, ticket)
	if err != nil {
		return nil, u, model.SessionUpdate{}, err
	}
	update, err := a.enter(ctx, l, code)
	if err != nil {
		l.Close()
		return nil, u, model.SessionUpdate{}, err
	}
	return l, u, update, nil
}

// notify returns a channel poked on every binding state change. Register it
// before starting a request so no change is missed.
func notify(b *realtime.Binding) <-chan struct{} {
	ch := make(chan struct{}, 1)
	b.OnChange(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch
}

// settled waits until busy reports false and returns the binding error.
func settled(ctx context.Context, b *realtime.Binding, changes <-chan struct{}, busy func() bool) error {
	for busy() {
		select {
		case <-changes:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if msg := b.Error(); msg != "" {
		return errors.New(msg)
	}
	return nil
}

// board is the live view of one session.
type board struct {
	mu        sync.Mutex
	out       io.Writer
	render    *view.Renderer
	clear     bool
	session   model.SessionUpdate
	questions *realtime.Feed[model.Question]
	answers   *realtime.Feed[model.Answer]
	loading   bool
	err       string
	busy      string
	status    string
}

func (b *board) draw() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clear {
		fmt.Fprint(b.out, "\033[H\033[2J")
	}
	_ = b.render.Session(b.out, b.session)
	fmt.Fprintln(b.out)
	_ = b.render.Questions(b.out, view.QuestionList{
		Questions: b.questions.Items(),
		IsLoading: b.loading,
		Error:     b.err,
	})
	fmt.Fprintln(b.out)
	_ = b.render.Answers(b.out, view.AnswerList{
		Answers:   b.answers.Items(),
		IsLoading: b.loading,
	})
	if b.busy != "" || b.status != "" {
		fmt.Fprintln(b.out)
		_ = b.render.Status(b.out, b.busy, b.status)
	}
}

// watch redraws the status footer whenever the binding's flags change.
func (b *board) watch(binding *realtime.Binding) {
	binding.OnChange(func() {
		busy, errMsg := bindingStatus(binding)
		b.update(func() { b.busy, b.status = busy, errMsg })
	})
}

// bindingStatus names the binding's in-flight request and its last error.
func bindingStatus(b *realtime.Binding) (busy, errMsg string) {
	switch {
	case b.IsGenerating():
		busy = "Generating class code"
	case b.IsValidating():
		busy = "Checking class code"
	case b.IsSending():
		busy = "Sending"
	}
	return busy, b.Error()
}

func (b *board) update(fn func()) {
	b.mu.Lock()
	fn()
	b.mu.Unlock()
	b.draw()
}

// follow renders the session and redraws on every update until the socket
// drops or ctx is cancelled.
func (a *app) follow(ctx context.Context, l *link, ticket string, session model.SessionUpdate) error {
	bd := &board{
		out:       a.out,
		render:    a.renderer(),
		clear:     a.tty,
		session:   session,
		questions: realtime.NewQuestionFeed(nil),
		answers:   realtime.NewAnswerFeed(nil),
		loading:   true,
	}
	bd.draw()

	binding := realtime.NewBinding(l.client, realtime.Handlers{
		OnQuestionUpdate: func(q model.Question) { bd.update(func() { bd.questions.Apply(q) }) },
		OnAnswerUpdate:   func(ans model.Answer) { bd.update(func() { bd.answers.Apply(ans) }) },
		OnSessionUpdate:  func(u model.SessionUpdate) { bd.update(func() { bd.session = u }) },
	})
	bd.watch(binding)
	if err := binding.Mount(); err != nil {
		return err
	}
	defer binding.Unmount()

	api := newAPIClient(a.cfg.ServerURL, ticket)
	questions, qErr := api.questions(ctx, session.SessionID)
	answers, aErr := api.answers(ctx, session.SessionID)
	bd.update(func() {
		bd.loading = false
		if err := errors.Join(qErr, aErr); err != nil {
			bd.err = err.Error()
		}
		// Live updates may already be in the feeds; history goes ahead of them.
		bd.questions.Backfill(questions)
		bd.answers.Backfill(answers)
	})

	select {
	case <-ctx.Done():
		return nil
	case err := <-l.closed:
		if err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
		fmt.Fprintln(a.out, "Connection closed.")
		return nil
	}
}
