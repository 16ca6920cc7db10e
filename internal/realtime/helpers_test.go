package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	ws "github.com/stemsi/classqa/internal/websocket"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	sent      []ws.Command
	sendErr   error
	onSend    func(ws.Command)
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Send(_ context.Context, cmd ws.Command) error {
	f.mu.Lock()
	f.sent = append(f.sent, cmd)
	err, hook := f.sendErr, f.onSend
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(cmd)
	}
	return nil
}

func (f *fakeTransport) Sent() []ws.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ws.Command, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) last(t *testing.T) ws.Command {
	t.Helper()
	sent := f.Sent()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1]
}

func newTestClient(connected bool) (*Client, *fakeTransport) {
	tr := &fakeTransport{connected: connected}
	return NewClient(tr, NewRegistry(), zerolog.Nop(), 0), tr
}

// frame encodes a server event the way it arrives on the wire.
func frame(t *testing.T, event ws.Event, requestID string, payload any) []byte {
	t.Helper()
	msg, err := ws.NewMessage(event, requestID, payload)
	require.NoError(t, err)
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}
