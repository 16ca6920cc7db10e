package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stemsi/classqa/internal/model"
	ws "github.com/stemsi/classqa/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountBinding(t *testing.T, c *Client, h Handlers) *Binding {
	t.Helper()
	b := NewBinding(c, h)
	require.NoError(t, b.Mount())
	t.Cleanup(b.Unmount)
	return b
}

func TestBindingGenerateClassCodeBusyFlag(t *testing.T) {
	c, tr := newTestClient(true)
	var code, className string
	b := mountBinding(t, c, Handlers{OnCodeGenerated: func(cd, cn string) { code, className = cd, cn }})

	require.NoError(t, b.GenerateClassCode(context.Background(), "p1", "CS101"))
	assert.True(t, b.IsGenerating())
	assert.Empty(t, b.Error())

	c.Dispatch(frame(t, ws.EventClassCodeGenerated, tr.last(t).RequestID, ws.ClassCodeGenerated{Code: "K7QX2M", ClassName: "CS101"}))

	assert.False(t, b.IsGenerating())
	assert.Equal(t, "K7QX2M", code)
	assert.Equal(t, "CS101", className)
}

func TestBindingValidateClassCodeScenario(t *testing.T) {
	c, _ := newTestClient(true)
	var valid bool
	var className string
	calls := 0
	b := mountBinding(t, c, Handlers{OnCodeValidated: func(v bool, cn string) {
		calls++
		valid, className = v, cn
	}})

	require.NoError(t, b.ValidateClassCode(context.Background(), "ABC123"))
	assert.True(t, b.IsValidating())

	// Reply without a correlation id still matches by type.
	c.Dispatch([]byte(`{"event":"class-code-validated","data":{"isValid":true,"className":"CS101"}}`))

	assert.False(t, b.IsValidating())
	assert.Equal(t, 1, calls)
	assert.True(t, valid)
	assert.Equal(t, "CS101", className)
}

func TestBindingIgnoresReplyForOtherRequest(t *testing.T) {
	c, _ := newTestClient(true)
	calls := 0
	b := mountBinding(t, c, Handlers{OnCodeGenerated: func(string, string) { calls++ }})

	require.NoError(t, b.GenerateClassCode(context.Background(), "p1", "CS101"))
	c.Dispatch(frame(t, ws.EventClassCodeGenerated, "other-view", ws.ClassCodeGenerated{Code: "AAAAAA"}))

	assert.True(t, b.IsGenerating())
	assert.Zero(t, calls)
}

func TestBindingDisconnectedSendNeverTouchesTransport(t *testing.T) {
	c, tr := newTestClient(false)
	b := mountBinding(t, c, Handlers{})
	ctx := context.Background()

	attempts := []func() error{
		func() error { return b.GenerateClassCode(ctx, "p1", "CS101") },
		func() error { return b.ValidateClassCode(ctx, "ABC123") },
		func() error { return b.SendQuestion(ctx, "why?") },
		func() error { return b.SendAnswer(ctx, model.Answer{Text: "because"}) },
		func() error { return b.JoinSession(ctx, "s1") },
	}
	for _, attempt := range attempts {
		assert.ErrorIs(t, attempt(), ErrNotConnected)
		assert.NotEmpty(t, b.Error())
	}
	assert.Empty(t, tr.Sent())
	assert.False(t, b.IsGenerating())
	assert.False(t, b.IsValidating())
	assert.False(t, b.IsSending())
}

func TestBindingRejectsWhileBusy(t *testing.T) {
	c, tr := newTestClient(true)
	b := mountBinding(t, c, Handlers{})

	require.NoError(t, b.ValidateClassCode(context.Background(), "ABC123"))
	err := b.ValidateClassCode(context.Background(), "XYZ789")

	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, ErrBusy.Error(), b.Error())
	assert.True(t, b.IsValidating())
	assert.Len(t, tr.Sent(), 1)
}

func TestBindingErrorClearedOnNewAttempt(t *testing.T) {
	c, tr := newTestClient(false)
	b := mountBinding(t, c, Handlers{})

	_ = b.ValidateClassCode(context.Background(), "ABC123")
	require.NotEmpty(t, b.Error())

	tr.mu.Lock()
	tr.connected = true
	tr.mu.Unlock()

	require.NoError(t, b.ValidateClassCode(context.Background(), "ABC123"))
	assert.Empty(t, b.Error())
}

func TestBindingTimeoutClearsBusy(t *testing.T) {
	c, _ := newTestClient(true)
	b := mountBinding(t, c, Handlers{})
	b.SetTimeout(20 * time.Millisecond)

	changed := make(chan struct{}, 8)
	b.OnChange(func() { changed <- struct{}{} })

	require.NoError(t, b.GenerateClassCode(context.Background(), "p1", "CS101"))
	assert.Eventually(t, func() bool { return !b.IsGenerating() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ErrTimeout.Error(), b.Error())
	assert.NotEmpty(t, changed)
}

func TestBindingServerErrorClearsMatchingRequest(t *testing.T) {
	c, tr := newTestClient(true)
	b := mountBinding(t, c, Handlers{})

	require.NoError(t, b.SendQuestion(context.Background(), "why?"))
	assert.True(t, b.IsSending())

	c.Dispatch(frame(t, ws.EventError, tr.last(t).RequestID, ws.ErrorPayload{Code: "NOT_JOINED", Message: "join a session first"}))

	assert.False(t, b.IsSending())
	assert.Contains(t, b.Error(), "join a session first")
}

func TestBindingOwnQuestionClearsSending(t *testing.T) {
	c, tr := newTestClient(true)
	var got []model.Question
	b := mountBinding(t, c, Handlers{OnQuestionUpdate: func(q model.Question) { got = append(got, q) }})

	require.NoError(t, b.SendQuestion(context.Background(), "why?"))
	c.Dispatch(frame(t, ws.EventQuestionUpdate, tr.last(t).RequestID, model.Question{ID: "q1", Text: "why?", Status: model.QuestionStatusUnanswered}))

	assert.False(t, b.IsSending())
	require.Len(t, got, 1)
	assert.Equal(t, "q1", got[0].ID)
}

func TestBindingUnmountDropsLateEvents(t *testing.T) {
	c, tr := newTestClient(true)
	calls := 0
	b := NewBinding(c, Handlers{
		OnCodeGenerated:  func(string, string) { calls++ },
		OnQuestionUpdate: func(model.Question) { calls++ },
		OnSessionUpdate:  func(model.SessionUpdate) { calls++ },
	})
	require.NoError(t, b.Mount())
	require.NoError(t, b.GenerateClassCode(context.Background(), "p1", "CS101"))
	reqID := tr.last(t).RequestID

	b.Unmount()
	c.Dispatch(frame(t, ws.EventClassCodeGenerated, reqID, ws.ClassCodeGenerated{Code: "K7QX2M"}))
	c.Dispatch(frame(t, ws.EventQuestionUpdate, "", model.Question{ID: "q1"}))
	c.Dispatch(frame(t, ws.EventSessionUpdate, "", model.SessionUpdate{ProfessorID: "p1"}))

	assert.Zero(t, calls)
	assert.False(t, b.IsGenerating())
	for _, name := range []ws.Event{ws.EventClassCodeGenerated, ws.EventClassCodeValidated, ws.EventQuestionUpdate, ws.EventAnswerUpdate, ws.EventSessionUpdate, ws.EventError} {
		assert.Zero(t, c.Registry().Len(name), name)
	}
	assert.ErrorIs(t, b.ValidateClassCode(context.Background(), "ABC123"), ErrNotMounted)
}

func TestBindingSessionUpdateScenario(t *testing.T) {
	c, _ := newTestClient(true)
	var got model.SessionUpdate
	mountBinding(t, c, Handlers{OnSessionUpdate: func(u model.SessionUpdate) { got = u }})

	c.Dispatch([]byte(`{"event":"session-update","data":{"students":["s1","s2"],"professorId":"p1"}}`))

	assert.Equal(t, []string{"s1", "s2"}, got.Students)
	assert.Equal(t, "p1", got.ProfessorID)
}

func TestBindingSetHandlersReplacesCallbacks(t *testing.T) {
	c, _ := newTestClient(true)
	first, second := 0, 0
	b := mountBinding(t, c, Handlers{OnAnswerUpdate: func(model.Answer) { first++ }})

	require.NoError(t, b.SetHandlers(Handlers{OnAnswerUpdate: func(model.Answer) { second++ }}))
	c.Dispatch(frame(t, ws.EventAnswerUpdate, "", model.Answer{ID: "a1"}))

	assert.Zero(t, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, c.Registry().Len(ws.EventAnswerUpdate))
}

func TestBindingTransportFailureSurfacesError(t *testing.T) {
	c, tr := newTestClient(true)
	tr.sendErr = errors.New("broken pipe")
	b := mountBinding(t, c, Handlers{})

	err := b.ValidateClassCode(context.Background(), "ABC123")
	assert.Error(t, err)
	assert.False(t, b.IsValidating())
	assert.Equal(t, "broken pipe", b.Error())
}
