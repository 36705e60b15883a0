// Copyright 2024-2026 Aiku AI

package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGatewayServer speaks just enough of the gateway protocol for one
// connection: hello, then whatever frames the test scripted.
type fakeGatewayServer struct {
	t      *testing.T
	frames []payload

	mu       sync.Mutex
	identify payload
}

func (f *fakeGatewayServer) handler() http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(f.t, err)
		defer conn.Close()

		require.NoError(f.t, conn.WriteJSON(payload{
			Op: opHello,
			D:  json.RawMessage(`{"heartbeat_interval": 45000}`),
		}))

		var identify payload
		require.NoError(f.t, conn.ReadJSON(&identify))
		f.mu.Lock()
		f.identify = identify
		f.mu.Unlock()

		for _, frame := range f.frames {
			require.NoError(f.t, conn.WriteJSON(frame))
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func seqPtr(n int64) *int64 { return &n }

func TestGatewayIdentifiesAndDispatches(t *testing.T) {
	t.Parallel()
	events := make(chan string, 4)
	fake := &fakeGatewayServer{t: t, frames: []payload{
		{Op: opDispatch, T: "READY", S: seqPtr(1),
			D: json.RawMessage(`{"session_id": "sess-1", "resume_gateway_url": "wss://resume.example"}`)},
		{Op: opDispatch, T: "THREAD_CREATE", S: seqPtr(2),
			D: json.RawMessage(`{"id": "800", "parent_id": "500"}`)},
		{Op: opHeartbeatACK},
	}}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	g := NewGateway("bot-token", func(_ context.Context, eventType string, _ json.RawMessage) error {
		events <- eventType
		return nil
	}, zerolog.Nop())
	g.SetURL(wsURL(srv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	select {
	case ev := <-events:
		assert.Equal(t, "THREAD_CREATE", ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no dispatch reached the handler")
	}

	// READY is consumed by the gateway itself, never forwarded.
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %q", ev)
	case <-time.After(100 * time.Millisecond):
	}

	fake.mu.Lock()
	identify := fake.identify
	fake.mu.Unlock()
	assert.Equal(t, opIdentify, identify.Op)
	var d struct {
		Token   string `json:"token"`
		Intents int    `json:"intents"`
	}
	require.NoError(t, json.Unmarshal(identify.D, &d))
	assert.Equal(t, "bot-token", d.Token)
	assert.Equal(t, gatewayIntents, d.Intents)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Equal(t, int64(2), g.seq.Load())
	assert.Equal(t, "sess-1", g.sessionID)
}

func TestGatewayRespondsToHeartbeatRequest(t *testing.T) {
	t.Parallel()
	heartbeats := make(chan payload, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(payload{Op: opHello, D: json.RawMessage(`{"heartbeat_interval": 45000}`)}))
		var identify payload
		require.NoError(t, conn.ReadJSON(&identify))

		require.NoError(t, conn.WriteJSON(payload{Op: opHeartbeat}))
		var hb payload
		require.NoError(t, conn.ReadJSON(&hb))
		heartbeats <- hb
	}))
	t.Cleanup(srv.Close)

	g := NewGateway("bot-token", func(context.Context, string, json.RawMessage) error { return nil }, zerolog.Nop())
	g.SetURL(wsURL(srv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = g.Run(ctx) }()

	select {
	case hb := <-heartbeats:
		assert.Equal(t, opHeartbeat, hb.Op)
	case <-time.After(5 * time.Second):
		t.Fatal("no heartbeat reply")
	}
}

// Streams dispatches while the heartbeat goroutine fires continuously, so
// the race detector exercises the sequence counter from both goroutines.
func TestGatewayHeartbeatDuringDispatchStream(t *testing.T) {
	t.Parallel()
	const frames = 200
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteJSON(payload{Op: opHello, D: json.RawMessage(`{"heartbeat_interval": 1}`)}); err != nil {
			return
		}
		var identify payload
		if err := conn.ReadJSON(&identify); err != nil {
			return
		}
		// Drain the client's heartbeats so its writes never block.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		for i := int64(1); i <= frames; i++ {
			if err := conn.WriteJSON(payload{Op: opDispatch, T: "THREAD_UPDATE", S: seqPtr(i), D: json.RawMessage(`{}`)}); err != nil {
				return
			}
		}
		time.Sleep(2 * time.Second)
	}))
	t.Cleanup(srv.Close)

	var handled atomic.Int64
	g := NewGateway("bot-token", func(context.Context, string, json.RawMessage) error {
		handled.Add(1)
		return nil
	}, zerolog.Nop())
	g.SetURL(wsURL(srv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool {
		return handled.Load() == frames
	}, 10*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, int64(frames), g.seq.Load())
}

func TestGatewayInvalidSessionClearsResumeState(t *testing.T) {
	t.Parallel()
	g := NewGateway("bot-token", func(context.Context, string, json.RawMessage) error { return nil }, zerolog.Nop())
	g.sessionID = "sess-1"
	g.resumeURL = "wss://resume.example"
	g.seq.Store(40)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(payload{Op: opHello, D: json.RawMessage(`{"heartbeat_interval": 45000}`)}))
		var resume payload
		require.NoError(t, conn.ReadJSON(&resume))
		assert.Equal(t, opResume, resume.Op)
		require.NoError(t, conn.WriteJSON(payload{Op: opInvalidSession, D: json.RawMessage(`false`)}))
	}))
	t.Cleanup(srv.Close)
	// Point the resume URL at the test server so runOnce dials it.
	g.resumeURL = wsURL(srv)
	g.url = wsURL(srv)

	err := g.runOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidated")
	assert.Empty(t, g.sessionID)
	assert.Empty(t, g.resumeURL)
	assert.Zero(t, g.seq.Load())
}
