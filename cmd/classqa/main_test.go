package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/clientstate"
	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/realtime"
	"github.com/stemsi/classqa/internal/view"
	ws "github.com/stemsi/classqa/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, server string) (*app, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	cfg := &config.ClientConfig{
		ServerURL: server,
		StatePath: filepath.Join(t.TempDir(), "state.json"),
		Timeout:   time.Second,
	}
	return &app{
		cfg:   cfg,
		store: clientstate.Open(cfg.StatePath, zerolog.Nop()),
		log:   zerolog.Nop(),
		out:   out,
	}, out
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://localhost:8080", want: "ws://localhost:8080/ws/v1/classroom"},
		{base: "https://qa.example.edu/", want: "wss://qa.example.edu/ws/v1/classroom"},
		{base: "https://qa.example.edu/classqa", want: "wss://qa.example.edu/classqa/ws/v1/classroom"},
		{base: "ftp://qa.example.edu", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := socketURL(tt.base)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tkt", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"data":null,"error":{"code":"FORBIDDEN","message":"You cannot view this session"},"metadata":{}}`))
	}))
	defer srv.Close()

	_, err := newAPIClient(srv.URL, "tkt").questions(context.Background(), "s1")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
	assert.Contains(t, err.Error(), "cannot view")
}

func TestLoginStoresIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/participants", r.URL.Path)
		var req model.CreateParticipantRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.UserTypeProfessor, req.Type)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": model.ParticipantResponse{
				User:   model.User{ID: "p1", Name: req.Name, Type: req.Type},
				Ticket: "signed",
			},
		})
	}))
	defer srv.Close()

	a, out := newTestApp(t, srv.URL)
	require.NoError(t, a.store.SetJoinedClass("OLD123"))

	err := a.run(context.Background(), []string{"login", "-name", "Dr. Ada", "-role", "professor"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Logged in as Dr. Ada (professor)")

	u, ok := a.store.User()
	require.True(t, ok)
	assert.Equal(t, "p1", u.ID)
	assert.Equal(t, model.UserTypeProfessor, u.UserType)
	ticket, ok := a.store.Ticket()
	assert.True(t, ok)
	assert.Equal(t, "signed", ticket)
	_, joined := a.store.JoinedClass()
	assert.False(t, joined, "a new identity starts without a class")
}

func TestRunRejectsBadInput(t *testing.T) {
	a, _ := newTestApp(t, "http://localhost:1")
	ctx := context.Background()

	assert.ErrorIs(t, a.run(ctx, nil), errUsage)
	assert.ErrorIs(t, a.run(ctx, []string{"dance"}), errUsage)
	assert.ErrorIs(t, a.run(ctx, []string{"login"}), errUsage)
	assert.ErrorIs(t, a.run(ctx, []string{"ask"}), errUsage)
	assert.Error(t, a.run(ctx, []string{"login", "-name", "x", "-role", "admin"}))
}

func TestCommandsRequireIdentity(t *testing.T) {
	a, _ := newTestApp(t, "http://localhost:1")
	ctx := context.Background()

	assert.ErrorIs(t, a.run(ctx, []string{"ask", "why?"}), errNotLoggedIn)
	assert.ErrorIs(t, a.run(ctx, []string{"watch"}), errNotLoggedIn)
	assert.ErrorIs(t, a.run(ctx, []string{"host", "Physics"}), errNotLoggedIn)

	require.NoError(t, a.store.SaveUser(clientstate.StoredUser{ID: "s1", UserType: model.UserTypeStudent}))
	require.NoError(t, a.store.Set(clientstate.KeyTicket, "t"))
	assert.ErrorIs(t, a.run(ctx, []string{"ask", "why?"}), errNoClass)
	assert.EqualError(t, a.run(ctx, []string{"host", "Physics"}), "only professors can host a class")
}

func TestThemeAndLogout(t *testing.T) {
	a, out := newTestApp(t, "http://localhost:1")
	ctx := context.Background()

	require.NoError(t, a.run(ctx, []string{"theme", "dark"}))
	assert.Equal(t, clientstate.ThemeDark, a.store.Theme())
	assert.Error(t, a.run(ctx, []string{"theme", "neon"}))

	require.NoError(t, a.store.SaveUser(clientstate.StoredUser{ID: "s1", UserType: model.UserTypeStudent}))
	require.NoError(t, a.run(ctx, []string{"logout"}))
	_, ok := a.store.User()
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Logged out.")
	assert.Equal(t, clientstate.ThemeDark, a.store.Theme(), "logout keeps the theme")
}

type stubTransport struct{ connected bool }

func (s stubTransport) Connected() bool { return s.connected }

func (s stubTransport) Send(context.Context, ws.Command) error { return nil }

func newTestBoard(out *bytes.Buffer) *board {
	return &board{
		out:       out,
		render:    view.NewRenderer(clientstate.ThemePlain, time.UTC),
		questions: realtime.NewQuestionFeed(nil),
		answers:   realtime.NewAnswerFeed(nil),
	}
}

func TestBoardFooterShowsBindingStatus(t *testing.T) {
	t.Run("sending", func(t *testing.T) {
		out := &bytes.Buffer{}
		bd := newTestBoard(out)
		client := realtime.NewClient(stubTransport{connected: true}, nil, zerolog.Nop(), time.Minute)
		binding := realtime.NewBinding(client, realtime.Handlers{})
		require.NoError(t, binding.Mount())
		defer binding.Unmount()
		bd.watch(binding)

		require.NoError(t, binding.SendQuestion(context.Background(), "What is a monad?"))
		assert.Contains(t, out.String(), "Sending...")
	})

	t.Run("error", func(t *testing.T) {
		out := &bytes.Buffer{}
		bd := newTestBoard(out)
		client := realtime.NewClient(stubTransport{}, nil, zerolog.Nop(), time.Minute)
		binding := realtime.NewBinding(client, realtime.Handlers{})
		require.NoError(t, binding.Mount())
		defer binding.Unmount()
		bd.watch(binding)

		err := binding.SendQuestion(context.Background(), "What is a monad?")
		assert.ErrorIs(t, err, realtime.ErrNotConnected)
		assert.Contains(t, out.String(), "Error: "+realtime.ErrNotConnected.Error())
		assert.NotContains(t, out.String(), "Sending...")
	})

	t.Run("idle board has no footer", func(t *testing.T) {
		out := &bytes.Buffer{}
		newTestBoard(out).draw()
		assert.NotContains(t, out.String(), "Error:")
	})
}
